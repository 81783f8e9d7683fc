package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/auth-relay/internal/serviceerr"
)

const (
	headerSessionID = "X-Session-Id"

	msgLoginSucceeded   = "<h2>Authentication successful! You can close this window and return to the app.</h2>"
	msgInvalidCallback  = "Invalid request."
	msgLoginCancelled   = "Authentication was cancelled. Please restart the login from the app."
	msgSessionNotFound  = "Login session not found or expired. Please restart the login from the app."
	msgAlreadyCompleted = "This login has already been completed. You can close this window."
	msgInProgress       = "This login is already being completed. You can close this window."
	msgLoginFailed      = "Authentication failed"
	msgMissingSessionID = "Missing session ID"
	msgInternalError    = "Internal server error"
)

type relayHandlers struct {
	relay Relay
}

type startLoginResponse struct {
	SessionID string `json:"sessionId"`
	AuthURL   string `json:"authUrl"`
}

type tokenResponse struct {
	IDToken string `json:"id_token"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// startLogin creates a session. Clients that open the browser themselves
// get the URL as JSON; with redirect=true the browser is sent straight on.
func (h *relayHandlers) startLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	redirect, _ := strconv.ParseBool(r.URL.Query().Get("redirect"))

	login, err := h.relay.StartLogin(ctx)
	if err != nil {
		slogctx.Error(ctx, "Failed to start login", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: msgInternalError})
		return
	}

	w.Header().Set("Cache-Control", "no-store")

	if redirect {
		w.Header().Set(headerSessionID, login.SessionID)
		http.Redirect(w, r, login.AuthURL, http.StatusFound)
		return
	}

	writeJSON(w, http.StatusOK, startLoginResponse{
		SessionID: login.SessionID,
		AuthURL:   login.AuthURL,
	})
}

// callback is where the provider sends the browser after the login.
func (h *relayHandlers) callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	state := q.Get("state")

	if providerErr := q.Get("error"); providerErr != "" {
		if state != "" {
			if err := h.relay.AbortLogin(ctx, state, providerErr); err != nil {
				slogctx.Warn(ctx, "Could not record the provider error", "error", err)
			}
		}
		writeText(w, http.StatusBadRequest, msgLoginCancelled)
		return
	}

	err := h.relay.FinaliseLogin(ctx, state, q.Get("code"))
	switch {
	case err == nil:
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(msgLoginSucceeded))
	case errors.Is(err, serviceerr.ErrExchangeFailed):
		writeText(w, http.StatusInternalServerError, msgLoginFailed)
	case errors.Is(err, serviceerr.ErrNotFound):
		writeText(w, http.StatusNotFound, msgSessionNotFound)
	case errors.Is(err, serviceerr.ErrInProgress):
		writeText(w, http.StatusConflict, msgInProgress)
	case errors.Is(err, serviceerr.ErrConflict):
		writeText(w, http.StatusConflict, msgAlreadyCompleted)
	case errors.Is(err, serviceerr.ErrInvalidRequest):
		writeText(w, http.StatusBadRequest, msgInvalidCallback)
	default:
		slogctx.Error(ctx, "Failed to finalise login", "error", err)
		writeText(w, http.StatusInternalServerError, msgLoginFailed)
	}
}

// takeToken is polled by the client until the token is ready.
func (h *relayHandlers) takeToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token, err := h.relay.TakeToken(ctx, r.URL.Query().Get("sessionId"))
	if err != nil {
		var serviceErr *serviceerr.Error
		if !errors.As(err, &serviceErr) {
			slogctx.Error(ctx, "Failed to take token", "error", err)
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: msgInternalError})
			return
		}

		msg := serviceErr.Description
		if serviceErr.Err == serviceerr.CodeInvalidRequest {
			msg = msgMissingSessionID
		}
		writeJSON(w, serviceErr.HTTPStatus(), errorResponse{Error: msg})
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, tokenResponse{IDToken: token})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(msg))
}
