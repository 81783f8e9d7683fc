package session

import (
	"context"
	"fmt"

	slogctx "github.com/veqryn/slog-context"
)

// CleanupExpiredSessions removes sessions that were never completed or
// never picked up within their TTL.
func (m *Manager) CleanupExpiredSessions(ctx context.Context) error {
	n, err := m.sessions.DeleteExpired(ctx)
	if err != nil {
		return fmt.Errorf("deleting expired sessions: %w", err)
	}

	if n > 0 {
		m.meters.expired.Add(ctx, int64(n))
		slogctx.Info(ctx, "Deleted expired sessions", "count", n)
	}

	return nil
}
