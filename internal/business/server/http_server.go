package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/samber/oops"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/auth-relay/internal/config"
	"github.com/openkcm/auth-relay/internal/middleware/cors"
	"github.com/openkcm/auth-relay/internal/session"
)

const readHeaderTimeout = 10 * time.Second

// Relay is the login relay served over HTTP.
type Relay interface {
	StartLogin(ctx context.Context) (session.LoginStart, error)
	FinaliseLogin(ctx context.Context, state, code string) error
	AbortLogin(ctx context.Context, state, reason string) error
	TakeToken(ctx context.Context, sessionID string) (string, error)
}

// createHTTPServer creates the public API http server using the given config
func createHTTPServer(ctx context.Context, cfg *config.Config, relay Relay) (*http.Server, error) {
	m, err := initMeters(ctx, cfg)
	if err != nil {
		return nil, err
	}

	h := &relayHandlers{relay: relay}
	route := newTraceMiddleware(cfg, m)

	mux := http.NewServeMux()
	mux.Handle("GET /auth/start", route("StartLogin", h.startLogin))
	mux.Handle("GET /auth/callback", route("Callback", h.callback))
	mux.Handle("GET /auth/token", route("TakeToken", h.takeToken))
	mux.Handle("GET /ping", route("Ping", pingHandler))

	return &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           cors.Middleware(mux),
		ReadHeaderTimeout: readHeaderTimeout,
	}, nil
}

// StartHTTPServer starts the HTTP server using the given config and blocks
// until the context is cancelled.
func StartHTTPServer(ctx context.Context, cfg *config.Config, relay Relay) error {
	server, err := createHTTPServer(ctx, cfg, relay)
	if err != nil {
		return err
	}

	slogctx.Info(ctx, "Starting a listener", "address", server.Addr)

	// Parse network if the address if provided in the format of network://address.
	// Otherwise use tcp network by default. Binding to a unix socket spares
	// tests from looking up a free port.
	network := "tcp"
	if idx := strings.IndexRune(server.Addr, ':'); idx != -1 && len(server.Addr) > idx+3 && server.Addr[idx:idx+3] == "://" {
		network = server.Addr[:idx]
		server.Addr = server.Addr[idx+3:]
	}

	listener, err := new(net.ListenConfig).Listen(ctx, network, server.Addr)
	if err != nil {
		return oops.In("HTTP Server").
			WithContext(ctx).
			Wrapf(err, "Failed to create a listener")
	}

	slogctx.Info(ctx, "A listener started", "address", listener.Addr().String())

	go func() {
		slogctx.Info(ctx, "Serving an HTTP server", "address", listener.Addr().String())
		err := server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slogctx.Error(ctx, "Failed to serve an HTTP server", "error", err)
		}

		slogctx.Info(ctx, "Stopped an HTTP server")
	}()

	<-ctx.Done()

	shutdownCtx, shutdownRelease := context.WithTimeout(context.WithoutCancel(ctx), cfg.HTTP.ShutdownTimeout)
	defer shutdownRelease()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return oops.In("HTTP Server").
			WithContext(ctx).
			Wrapf(err, "Failed shutting down HTTP server")
	}

	slogctx.Info(ctx, "Completed graceful shutdown of HTTP server")

	return nil
}
