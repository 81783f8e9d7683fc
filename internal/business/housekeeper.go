package business

import (
	"context"
	"time"

	slogctx "github.com/veqryn/slog-context"
)

type sweeper interface {
	CleanupExpiredSessions(ctx context.Context) error
}

// runHousekeeper sweeps expired sessions on every tick until the context
// is done. Sweep errors are logged and the loop carries on.
func runHousekeeper(ctx context.Context, s sweeper, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.CleanupExpiredSessions(ctx); err != nil {
				slogctx.Error(ctx, "Error during session housekeeping", "error", err)
			}
		case <-ctx.Done():
			return nil
		}
	}
}
