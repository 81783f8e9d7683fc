package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"golang.org/x/oauth2/endpoints"
)

const (
	DefaultPort            = 5000
	DefaultSessionTTL      = 10 * time.Minute
	DefaultSweepInterval   = time.Minute
	DefaultExchangeTimeout = 10 * time.Second
	DefaultShutdownTimeout = 5 * time.Second
)

var DefaultScopes = []string{"openid", "email", "profile"}

// LoadEnv reads the OAuth client registration and the listening port from
// the environment and fills in defaults for everything left unset.
func LoadEnv(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	if err := env.Parse(&cfg.Relay); err != nil {
		return fmt.Errorf("parsing environment: %w", err)
	}

	ApplyDefaults(cfg)

	return nil
}

// ApplyDefaults fills zero values with their defaults.
func ApplyDefaults(cfg *Config) {
	r := &cfg.Relay
	if r.Port == 0 {
		r.Port = DefaultPort
	}
	if r.SessionTTL <= 0 {
		r.SessionTTL = DefaultSessionTTL
	}
	if r.SweepInterval <= 0 {
		r.SweepInterval = DefaultSweepInterval
	}
	if r.ExchangeTimeout <= 0 {
		r.ExchangeTimeout = DefaultExchangeTimeout
	}

	p := &r.Provider
	if p.AuthURL == "" {
		p.AuthURL = endpoints.Google.AuthURL
	}
	if p.TokenURL == "" {
		p.TokenURL = endpoints.Google.TokenURL
	}
	if len(p.Scopes) == 0 {
		p.Scopes = DefaultScopes
	}
	if p.AdditionalAuthParameters == nil {
		// sent on every authorization request unless configured otherwise
		p.AdditionalAuthParameters = map[string]string{
			"access_type": "offline",
			"prompt":      "consent",
		}
	}

	if cfg.HTTP.Address == "" {
		cfg.HTTP.Address = net.JoinHostPort("", strconv.Itoa(r.Port))
	}
	if cfg.HTTP.ShutdownTimeout <= 0 {
		cfg.HTTP.ShutdownTimeout = DefaultShutdownTimeout
	}
}
