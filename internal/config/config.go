// Package config defines the necessary types to configure the application.
// An example config file config.yaml is provided in the repository.
package config

import (
	"log/slog"
	"time"

	"github.com/openkcm/common-sdk/pkg/commoncfg"
)

type Config struct {
	commoncfg.BaseConfig `mapstructure:",squash" yaml:",inline"`

	Audit commoncfg.Audit `yaml:"audit"`

	HTTP  HTTPServer `yaml:"http"`
	Relay Relay      `yaml:"relay"`
}

type HTTPServer struct {
	// Address overrides the listener address. When empty the server
	// binds to all interfaces on Relay.Port.
	Address         string        `yaml:"address"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" default:"5s"`
}

// Relay holds the OAuth client registration and the session tunables.
// The client registration is read from the environment only.
type Relay struct {
	ClientID     string `yaml:"-" env:"CLIENT_ID,required,notEmpty"`
	ClientSecret string `yaml:"-" env:"CLIENT_SECRET,required,notEmpty"`
	RedirectURI  string `yaml:"-" env:"REDIRECT_URI,required,notEmpty"`
	Port         int    `yaml:"-" env:"PORT" envDefault:"5000"`

	SessionTTL      time.Duration `yaml:"sessionTTL" default:"10m"`
	SweepInterval   time.Duration `yaml:"sweepInterval" default:"1m"`
	ExchangeTimeout time.Duration `yaml:"exchangeTimeout" default:"10s"`

	Provider Provider `yaml:"provider"`
}

// Provider describes the OAuth 2.0 authorization server. Empty endpoints
// fall back to Google.
type Provider struct {
	AuthURL                  string            `yaml:"authURL"`
	TokenURL                 string            `yaml:"tokenURL"`
	Scopes                   []string          `yaml:"scopes"`
	AdditionalAuthParameters map[string]string `yaml:"additionalAuthParameters"`
}

// LogValue keeps the client secret out of the logs.
func (r Relay) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("clientID", r.ClientID),
		slog.String("redirectURI", r.RedirectURI),
		slog.Int("port", r.Port),
		slog.Duration("sessionTTL", r.SessionTTL),
		slog.Duration("sweepInterval", r.SweepInterval),
		slog.Duration("exchangeTimeout", r.ExchangeTimeout),
		slog.String("authURL", r.Provider.AuthURL),
		slog.String("tokenURL", r.Provider.TokenURL),
		slog.Any("scopes", r.Provider.Scopes),
	)
}
