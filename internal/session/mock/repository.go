package sessionmock

import (
	"context"
	"sync"

	"github.com/openkcm/auth-relay/internal/serviceerr"
	"github.com/openkcm/auth-relay/internal/session"
)

type RepositoryOption func(*Repository)

// Repository is a map backed session.Repository with injectable errors.
// It never expires anything on its own.
type Repository struct {
	mu       sync.Mutex
	sessions map[string]session.Session
	expired  map[string]session.Session

	createErr, beginErr, completeErr, failErr error
	takeErr, deleteExpiredErr, countErr       error
}

func WithSession(s session.Session) RepositoryOption {
	return func(r *Repository) { r.sessions[s.ID] = s }
}
func WithExpiredSession(s session.Session) RepositoryOption {
	return func(r *Repository) { r.expired[s.ID] = s }
}
func WithCreateError(err error) RepositoryOption {
	return func(r *Repository) { r.createErr = err }
}
func WithBeginExchangeError(err error) RepositoryOption {
	return func(r *Repository) { r.beginErr = err }
}
func WithCompleteError(err error) RepositoryOption {
	return func(r *Repository) { r.completeErr = err }
}
func WithFailError(err error) RepositoryOption {
	return func(r *Repository) { r.failErr = err }
}
func WithTakeError(err error) RepositoryOption {
	return func(r *Repository) { r.takeErr = err }
}
func WithDeleteExpiredError(err error) RepositoryOption {
	return func(r *Repository) { r.deleteExpiredErr = err }
}
func WithCountError(err error) RepositoryOption {
	return func(r *Repository) { r.countErr = err }
}

var _ = session.Repository(&Repository{})

func NewInMemRepository(opts ...RepositoryOption) *Repository {
	r := &Repository{
		sessions: make(map[string]session.Session),
		expired:  make(map[string]session.Session),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *Repository) Create(_ context.Context, s session.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.createErr != nil {
		return r.createErr
	}
	if _, ok := r.sessions[s.ID]; ok {
		return serviceerr.ErrConflict
	}
	s.Status = session.StatusPending
	s.Token = ""
	r.sessions[s.ID] = s
	return nil
}

func (r *Repository) Load(_ context.Context, sessionID string) (session.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[sessionID]; ok {
		return s, nil
	}
	return session.Session{}, serviceerr.ErrNotFound
}

func (r *Repository) BeginExchange(_ context.Context, sessionID string) (session.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.beginErr != nil {
		return session.Session{}, r.beginErr
	}
	s, ok := r.sessions[sessionID]
	if !ok {
		return session.Session{}, serviceerr.ErrNotFound
	}
	switch s.Status {
	case session.StatusExchanging:
		return session.Session{}, serviceerr.ErrInProgress
	case session.StatusCompleted:
		return session.Session{}, serviceerr.ErrConflict
	}
	s.Status = session.StatusExchanging
	r.sessions[sessionID] = s
	return s, nil
}

func (r *Repository) Complete(_ context.Context, sessionID, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.completeErr != nil {
		return r.completeErr
	}
	s, ok := r.sessions[sessionID]
	if !ok {
		return serviceerr.ErrNotFound
	}
	if s.Status != session.StatusExchanging {
		return serviceerr.ErrConflict
	}
	s.Status = session.StatusCompleted
	s.Token = token
	s.FailureReason = ""
	r.sessions[sessionID] = s
	return nil
}

func (r *Repository) Fail(_ context.Context, sessionID, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failErr != nil {
		return r.failErr
	}
	s, ok := r.sessions[sessionID]
	if !ok {
		return serviceerr.ErrNotFound
	}
	if s.Status != session.StatusExchanging {
		return serviceerr.ErrConflict
	}
	s.Status = session.StatusFailed
	s.FailureReason = reason
	r.sessions[sessionID] = s
	return nil
}

func (r *Repository) TakeIfReady(_ context.Context, sessionID string) (session.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.takeErr != nil {
		return session.Session{}, r.takeErr
	}
	s, ok := r.sessions[sessionID]
	if !ok {
		return session.Session{}, serviceerr.ErrNotFound
	}
	if s.Status == session.StatusPending || s.Status == session.StatusExchanging {
		return session.Session{}, serviceerr.ErrPending
	}
	delete(r.sessions, sessionID)
	return s, nil
}

func (r *Repository) DeleteExpired(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.deleteExpiredErr != nil {
		return 0, r.deleteExpiredErr
	}
	n := len(r.expired)
	clear(r.expired)
	return n, nil
}

func (r *Repository) Count(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.countErr != nil {
		return 0, r.countErr
	}
	return len(r.sessions), nil
}

// TGet returns the stored session without any state checks.
func (r *Repository) TGet(sessionID string) (session.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	return s, ok
}
