package business

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	otlpaudit "github.com/openkcm/common-sdk/pkg/otlp/audit"
	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/auth-relay/internal/business/server"
	"github.com/openkcm/auth-relay/internal/config"
	"github.com/openkcm/auth-relay/internal/session"
	sessionmemory "github.com/openkcm/auth-relay/internal/session/memory"
)

// Main starts the relay HTTP server and the session housekeeper.
func Main(ctx context.Context, cfg *config.Config) error {
	sessionManager, err := initSessionManager(cfg)
	if err != nil {
		return fmt.Errorf("initialising the session manager: %w", err)
	}
	defer func() {
		if err := sessionManager.Close(); err != nil {
			slogctx.Warn(ctx, "Could not close the session manager", "error", err)
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// errChan is used to capture the first error and shutdown the workers.
	errChan := make(chan error, 2)

	// wg is used to wait for all workers to shutdown.
	var wg sync.WaitGroup

	// start public HTTP REST API server
	wg.Go(func() {
		errChan <- server.StartHTTPServer(ctx, cfg, sessionManager)
	})

	// start the expired session sweep
	wg.Go(func() {
		errChan <- runHousekeeper(ctx, sessionManager, cfg.Relay.SweepInterval)
	})

	// wait for any error to initiate the shutdown
	err = <-errChan
	if err != nil {
		slogctx.Error(ctx, "Shutting down relay", "error", err)
	}
	cancel()

	// wait for all workers to shutdown
	wg.Wait()

	return err
}

func initSessionManager(cfg *config.Config) (*session.Manager, error) {
	opts := []session.Option{
		session.WithHTTPClient(&http.Client{Timeout: cfg.Relay.ExchangeTimeout}),
	}

	if cfg.Audit.Endpoint != "" {
		auditLogger, err := otlpaudit.NewLogger(&cfg.Audit)
		if err != nil {
			return nil, fmt.Errorf("creating audit logger: %w", err)
		}
		opts = append(opts, session.WithAuditLogger(auditLogger))
	}

	sessionRepo := sessionmemory.NewRepository(cfg.Relay.SessionTTL)

	sessManager, err := session.NewManager(&cfg.Relay, sessionRepo, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating session manager: %w", err)
	}

	return sessManager, nil
}
