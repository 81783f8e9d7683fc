package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/oauth2"

	otlpaudit "github.com/openkcm/common-sdk/pkg/otlp/audit"
	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/auth-relay/internal/config"
	"github.com/openkcm/auth-relay/internal/pkce"
	"github.com/openkcm/auth-relay/internal/serviceerr"
)

// maxCreateAttempts bounds the retries on a session ID collision.
const maxCreateAttempts = 3

var errMissingIDToken = errors.New("token response carries no id_token")

// IDSource produces session IDs and PKCE pairs.
type IDSource interface {
	SessionID() string
	PKCE() pkce.PKCE
}

// Manager drives the three legs of a relayed login. The legs only
// coordinate through the session repository.
type Manager struct {
	sessions Repository
	ids      IDSource
	audit    *otlpaudit.AuditLogger
	meters   *meters

	meterProvider metric.MeterProvider
	closeOnce     sync.Once

	oauth           *oauth2.Config
	authParams      []oauth2.AuthCodeOption
	httpClient      *http.Client
	exchangeTimeout time.Duration
}

type Option func(*Manager)

// WithIDSource replaces the crypto/rand backed ID source.
func WithIDSource(src IDSource) Option {
	return func(m *Manager) { m.ids = src }
}

// WithHTTPClient sets the client used for the token exchange.
func WithHTTPClient(c *http.Client) Option {
	return func(m *Manager) { m.httpClient = c }
}

// WithMeterProvider replaces the global meter provider.
func WithMeterProvider(p metric.MeterProvider) Option {
	return func(m *Manager) { m.meterProvider = p }
}

// WithAuditLogger enables login audit events.
func WithAuditLogger(l *otlpaudit.AuditLogger) Option {
	return func(m *Manager) { m.audit = l }
}

func NewManager(cfg *config.Relay, sessions Repository, opts ...Option) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("relay config is nil")
	}
	if sessions == nil {
		return nil, errors.New("session repository is nil")
	}
	if cfg.ClientID == "" {
		return nil, errors.New("client id is empty")
	}

	redirectURL, err := url.Parse(cfg.RedirectURI)
	if err != nil {
		return nil, fmt.Errorf("parsing redirect URI: %w", err)
	}
	if !redirectURL.IsAbs() {
		return nil, fmt.Errorf("redirect URI %q is not absolute", cfg.RedirectURI)
	}

	for name, endpoint := range map[string]string{"authorization": cfg.Provider.AuthURL, "token": cfg.Provider.TokenURL} {
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("parsing %s endpoint: %w", name, err)
		}
		if !u.IsAbs() {
			return nil, fmt.Errorf("%s endpoint %q is not absolute", name, endpoint)
		}
	}

	authParams := make([]oauth2.AuthCodeOption, 0, len(cfg.Provider.AdditionalAuthParameters))
	for key, value := range cfg.Provider.AdditionalAuthParameters {
		authParams = append(authParams, oauth2.SetAuthURLParam(key, value))
	}

	m := &Manager{
		sessions: sessions,
		ids:      pkce.Source{},
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  redirectURL.String(),
			Scopes:       cfg.Provider.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.Provider.AuthURL,
				TokenURL:  cfg.Provider.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		authParams:      authParams,
		httpClient:      http.DefaultClient,
		exchangeTimeout: cfg.ExchangeTimeout,
		meterProvider:   otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	if m.exchangeTimeout <= 0 {
		m.exchangeTimeout = config.DefaultExchangeTimeout
	}
	if m.meterProvider == nil {
		m.meterProvider = otel.GetMeterProvider()
	}

	m.meters, err = newMeters(m.meterProvider, sessions)
	if err != nil {
		return nil, fmt.Errorf("creating meters: %w", err)
	}

	return m, nil
}

// Close stops reporting the active session gauge. It is safe to call more
// than once.
func (m *Manager) Close() error {
	var err error
	m.closeOnce.Do(func() {
		err = m.meters.active.Unregister()
	})

	return err
}

// StartLogin creates a pending session and returns the provider
// authorization URL carrying the session ID in its state parameter.
func (m *Manager) StartLogin(ctx context.Context) (LoginStart, error) {
	for range maxCreateAttempts {
		proof := m.ids.PKCE()
		s := Session{
			ID:           m.ids.SessionID(),
			Status:       StatusPending,
			PKCEVerifier: proof.Verifier,
			CreatedAt:    time.Now(),
		}

		err := m.sessions.Create(ctx, s)
		if errors.Is(err, serviceerr.ErrConflict) {
			slogctx.Warn(ctx, "Session ID collision, generating a new one")
			continue
		}
		if err != nil {
			return LoginStart{}, fmt.Errorf("storing session: %w", err)
		}

		m.meters.created.Add(ctx, 1)
		slogctx.Debug(ctx, "Created login session", "session", fingerprint(s.ID))

		return LoginStart{
			SessionID: s.ID,
			AuthURL:   m.authURI(s.ID, proof),
		}, nil
	}

	return LoginStart{}, fmt.Errorf("no unique session id after %d attempts", maxCreateAttempts)
}

func (m *Manager) authURI(sessionID string, proof pkce.PKCE) string {
	opts := make([]oauth2.AuthCodeOption, 0, len(m.authParams)+2)
	opts = append(opts, m.authParams...)
	opts = append(opts,
		oauth2.SetAuthURLParam("code_challenge", proof.Challenge),
		oauth2.SetAuthURLParam("code_challenge_method", proof.Method),
	)

	return m.oauth.AuthCodeURL(sessionID, opts...)
}

// FinaliseLogin handles the provider redirect: it exchanges the code for an
// ID token and stores it on the session named by state.
func (m *Manager) FinaliseLogin(ctx context.Context, state, code string) error {
	if state == "" || code == "" {
		return serviceerr.InvalidRequest("missing code or state")
	}

	ctx = slogctx.With(ctx, "session", fingerprint(state))

	// a replayed callback stops here while the first one owns the session
	s, err := m.sessions.BeginExchange(ctx, state)
	if err != nil {
		return fmt.Errorf("claiming session: %w", err)
	}

	token, err := m.exchangeCode(ctx, code, s.PKCEVerifier)
	if err != nil {
		slogctx.Error(ctx, "Failed to exchange the authorization code", "error", err)
		m.meters.failed.Add(ctx, 1)
		m.sendLoginFailureAudit(ctx, state, "failed to exchange code for tokens")

		if failErr := m.sessions.Fail(ctx, state, err.Error()); failErr != nil {
			slogctx.Warn(ctx, "Could not mark session as failed", "error", failErr)
		}

		return errors.Join(serviceerr.ErrExchangeFailed, err)
	}

	slogctx.Info(ctx, "Exchanged the auth code for tokens")

	if err := m.sessions.Complete(ctx, state, token); err != nil {
		m.sendLoginFailureAudit(ctx, state, "failed to store token")
		return fmt.Errorf("completing session: %w", err)
	}

	m.meters.completed.Add(ctx, 1)
	m.sendLoginSuccessAudit(ctx, state)

	return nil
}

// AbortLogin records a provider side error, such as the user denying
// consent, so the polling client stops waiting.
func (m *Manager) AbortLogin(ctx context.Context, state, reason string) error {
	if state == "" {
		return serviceerr.InvalidRequest("missing state")
	}

	ctx = slogctx.With(ctx, "session", fingerprint(state))
	slogctx.Info(ctx, "Provider returned an error", "reason", reason)

	if _, err := m.sessions.BeginExchange(ctx, state); err != nil {
		return fmt.Errorf("claiming session: %w", err)
	}
	if err := m.sessions.Fail(ctx, state, "provider error: "+reason); err != nil {
		return fmt.Errorf("failing session: %w", err)
	}

	m.meters.failed.Add(ctx, 1)
	m.sendLoginFailureAudit(ctx, state, "provider error: "+reason)

	return nil
}

// TakeToken returns the token of a completed session exactly once. Pending
// and unknown sessions are indistinguishable to the caller.
func (m *Manager) TakeToken(ctx context.Context, sessionID string) (string, error) {
	if sessionID == "" {
		return "", serviceerr.InvalidRequest("missing session id")
	}

	ctx = slogctx.With(ctx, "session", fingerprint(sessionID))

	s, err := m.sessions.TakeIfReady(ctx, sessionID)
	switch {
	case errors.Is(err, serviceerr.ErrPending):
		slogctx.Debug(ctx, "Token requested for a pending session")
		return "", serviceerr.ErrTokenNotAvailable
	case errors.Is(err, serviceerr.ErrNotFound):
		slogctx.Debug(ctx, "Token requested for an unknown session")
		return "", serviceerr.ErrTokenNotAvailable
	case err != nil:
		return "", fmt.Errorf("taking session: %w", err)
	}

	if s.Status != StatusCompleted || s.Token == "" {
		slogctx.Info(ctx, "Reported a failed login to the client", "reason", s.FailureReason)
		return "", serviceerr.ErrLoginFailed
	}

	m.meters.delivered.Add(ctx, 1)
	slogctx.Info(ctx, "Delivered token to the client")

	return s.Token, nil
}

func (m *Manager) exchangeCode(ctx context.Context, code, verifier string) (string, error) {
	// the exchange outlives a browser that goes away mid-request
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.exchangeTimeout)
	defer cancel()

	ctx = context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)

	tokens, err := m.oauth.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			return "", fmt.Errorf("provider rejected the code with status %d (%s): %w",
				retrieveErr.Response.StatusCode, retrieveErr.ErrorCode, err)
		}

		return "", fmt.Errorf("executing token request: %w", err)
	}

	idToken, _ := tokens.Extra("id_token").(string)
	if idToken == "" {
		return "", errMissingIDToken
	}

	return idToken, nil
}

// fingerprint identifies a session in logs without revealing its ID,
// which is a bearer handle for the token.
func fingerprint(sessionID string) string {
	sum := sha256.Sum256([]byte(sessionID))
	return hex.EncodeToString(sum[:6])
}
