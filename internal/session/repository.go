package session

import "context"

// Repository is the session registry. Implementations must make every
// operation indivisible with respect to the others for the same ID and
// must hide expired sessions from all of them.
type Repository interface {
	// Create inserts a pending session. It fails with serviceerr.ErrConflict
	// when the ID is already in use.
	Create(ctx context.Context, s Session) error
	// Load returns a copy of the session or serviceerr.ErrNotFound.
	Load(ctx context.Context, sessionID string) (Session, error)
	// BeginExchange claims a pending or failed session for one callback and
	// returns a copy of it. A session already claimed yields
	// serviceerr.ErrInProgress and one holding a token serviceerr.ErrConflict.
	BeginExchange(ctx context.Context, sessionID string) (Session, error)
	// Complete attaches the token to a claimed session. It fails with
	// serviceerr.ErrNotFound when the session is gone and with
	// serviceerr.ErrConflict when the session is not claimed.
	Complete(ctx context.Context, sessionID, token string) error
	// Fail marks a claimed session as failed. It fails with
	// serviceerr.ErrConflict when the session is not claimed.
	Fail(ctx context.Context, sessionID, reason string) error
	// TakeIfReady removes and returns a completed or failed session. A
	// pending or claimed session yields serviceerr.ErrPending and stays in place.
	TakeIfReady(ctx context.Context, sessionID string) (Session, error)
	// DeleteExpired removes expired sessions and reports how many were removed.
	DeleteExpired(ctx context.Context) (int, error)
	// Count returns the number of live sessions.
	Count(ctx context.Context) (int, error)
}
