package server

import (
	"net/http"

	slogctx "github.com/veqryn/slog-context"
)

func pingHandler(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	_, err := w.Write([]byte("{ \"result\": \"pong\" }"))
	if err != nil {
		slogctx.Debug(req.Context(), "Failed to write ping response", "error", err)
	}
}
