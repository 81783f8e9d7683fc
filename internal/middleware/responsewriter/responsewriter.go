// Package responsewriter provides a response writer that remembers the
// status code written by the wrapped handler.
package responsewriter

import "net/http"

// Recorder wraps a http.ResponseWriter and records the status code.
type Recorder struct {
	http.ResponseWriter

	status      int
	wroteHeader bool
}

// Wrap returns a Recorder around w. A handler that never calls
// WriteHeader is reported as 200 OK.
func Wrap(w http.ResponseWriter) *Recorder {
	return &Recorder{ResponseWriter: w, status: http.StatusOK}
}

func (r *Recorder) WriteHeader(status int) {
	if !r.wroteHeader {
		r.status = status
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *Recorder) Write(b []byte) (int, error) {
	r.wroteHeader = true
	return r.ResponseWriter.Write(b)
}

// Status returns the status code sent to the client.
func (r *Recorder) Status() int {
	return r.status
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *Recorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
