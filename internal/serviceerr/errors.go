// Package serviceerr defines the errors surfaced by the relay and their
// mapping onto HTTP status codes.
package serviceerr

import "net/http"

type Code string

const (
	// RFC6749 error codes
	CodeInvalidRequest Code = "invalid_request"
	CodeServerError    Code = "server_error"

	// Relay specific error codes
	CodeConflict          Code = "conflict"
	CodeInProgress        Code = "in_progress"
	CodeNotFound          Code = "not_found"
	CodePending           Code = "pending"
	CodeTokenNotAvailable Code = "token_not_available"
	CodeExchangeFailed    Code = "exchange_failed"
	CodeLoginFailed       Code = "login_failed"
)

// Error is a relay error with a code that maps onto a HTTP status.
// The description is safe to show to the caller.
type Error struct {
	Err         Code
	Description string
}

var (
	ErrInvalidRequest = &Error{Err: CodeInvalidRequest}

	ErrConflict          = &Error{Err: CodeConflict, Description: "already exists"}
	ErrInProgress        = &Error{Err: CodeInProgress, Description: "login is being completed"}
	ErrNotFound          = &Error{Err: CodeNotFound, Description: "not found"}
	ErrPending           = &Error{Err: CodePending, Description: "login not completed yet"}
	ErrTokenNotAvailable = &Error{Err: CodeTokenNotAvailable, Description: "Token not available"}
	ErrExchangeFailed    = &Error{Err: CodeExchangeFailed, Description: "Authentication failed"}
	ErrLoginFailed       = &Error{Err: CodeLoginFailed, Description: "Authentication failed"}
)

func (e *Error) Error() string {
	if e.Description == "" {
		return string(e.Err)
	}

	return string(e.Err) + ": " + e.Description
}

func (e *Error) HTTPStatus() int {
	switch e.Err {
	case CodeInvalidRequest:
		return http.StatusBadRequest
	case CodeConflict, CodeInProgress:
		return http.StatusConflict
	case CodeNotFound, CodePending, CodeTokenNotAvailable:
		return http.StatusNotFound
	case CodeLoginFailed:
		return http.StatusGone
	case CodeServerError, CodeExchangeFailed:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Is matches any *Error carrying the same code, so errors built by
// InvalidRequest match ErrInvalidRequest.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}

	return e.Err == t.Err
}

// InvalidRequest returns a bad request error with the given description.
func InvalidRequest(description string) *Error {
	return &Error{Err: CodeInvalidRequest, Description: description}
}
