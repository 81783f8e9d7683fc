// Package sessionmemory keeps the session registry in process memory.
// Sessions are lost when the process exits.
package sessionmemory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/openkcm/auth-relay/internal/serviceerr"
	"github.com/openkcm/auth-relay/internal/session"
)

type Repository struct {
	// mu serialises the read-modify-write sequences below; the cache
	// itself only guards single calls.
	mu    sync.Mutex
	cache *cache.Cache
}

var _ = session.Repository(&Repository{})

// NewRepository creates a registry whose sessions expire ttl after creation.
// Expired sessions are invisible right away and removed by DeleteExpired.
func NewRepository(ttl time.Duration) *Repository {
	return &Repository{
		// no janitor goroutine, the housekeeper drives DeleteExpired
		cache: cache.New(ttl, 0),
	}
}

func (r *Repository) Create(_ context.Context, s session.Session) error {
	if s.ID == "" {
		return errors.New("session id is empty")
	}

	s.Status = session.StatusPending
	s.Token = ""

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.cache.Add(s.ID, &s, cache.DefaultExpiration); err != nil {
		return serviceerr.ErrConflict
	}

	return nil
}

func (r *Repository) Load(_ context.Context, sessionID string) (session.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.get(sessionID)
	if !ok {
		return session.Session{}, serviceerr.ErrNotFound
	}

	return *s, nil
}

func (r *Repository) BeginExchange(_ context.Context, sessionID string) (session.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.get(sessionID)
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

	return *s, nil
}

func (r *Repository) Complete(_ context.Context, sessionID, token string) error {
	if token == "" {
		return errors.New("token is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.get(sessionID)
	if !ok {
		return serviceerr.ErrNotFound
	}
	if s.Status != session.StatusExchanging {
		return serviceerr.ErrConflict
	}

	s.Status = session.StatusCompleted
	s.Token = token
	s.FailureReason = ""

	return nil
}

func (r *Repository) Fail(_ context.Context, sessionID, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.get(sessionID)
	if !ok {
		return serviceerr.ErrNotFound
	}
	if s.Status != session.StatusExchanging {
		return serviceerr.ErrConflict
	}

	s.Status = session.StatusFailed
	s.FailureReason = reason

	return nil
}

func (r *Repository) TakeIfReady(_ context.Context, sessionID string) (session.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.get(sessionID)
	if !ok {
		return session.Session{}, serviceerr.ErrNotFound
	}
	if s.Status == session.StatusPending || s.Status == session.StatusExchanging {
		return session.Session{}, serviceerr.ErrPending
	}

	r.cache.Delete(sessionID)

	return *s, nil
}

func (r *Repository) DeleteExpired(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// ItemCount includes expired items that have not been removed yet
	before := r.cache.ItemCount()
	r.cache.DeleteExpired()

	return before - r.cache.ItemCount(), nil
}

func (r *Repository) Count(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.cache.Items()), nil
}

// get returns the live record. Callers must hold mu.
func (r *Repository) get(sessionID string) (*session.Session, bool) {
	if sessionID == "" {
		return nil, false
	}

	v, ok := r.cache.Get(sessionID)
	if !ok {
		return nil, false
	}

	//nolint:forcetypeassert
	return v.(*session.Session), true
}
