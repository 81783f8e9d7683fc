package business

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/openkcm/common-sdk/pkg/commoncfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openkcm/auth-relay/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := &config.Config{
		BaseConfig: commoncfg.BaseConfig{
			Application: commoncfg.Application{Name: "test-app"},
		},
		HTTP: config.HTTPServer{Address: "localhost:0", ShutdownTimeout: time.Second},
		Relay: config.Relay{
			ClientID:     "client",
			ClientSecret: "secret",
			RedirectURI:  "http://localhost:5000/auth/callback",
		},
	}
	config.ApplyDefaults(cfg)

	return cfg
}

func TestInitSessionManager(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		m, err := initSessionManager(testConfig(t))
		require.NoError(t, err)
		assert.NotNil(t, m)
	})

	t.Run("Invalid relay config", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Relay.RedirectURI = "not-absolute"

		_, err := initSessionManager(cfg)
		assert.ErrorContains(t, err, "creating session manager")
	})
}

func TestMain_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Relay.ClientID = ""

	err := Main(t.Context(), cfg)
	assert.ErrorContains(t, err, "initialising the session manager")
}

func TestMain_ListenerError(t *testing.T) {
	cfg := testConfig(t)
	cfg.HTTP.Address = "unix://" + filepath.Join(t.TempDir(), "missing", "relay.sock")

	done := make(chan error, 1)
	go func() {
		done <- Main(t.Context(), cfg)
	}()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Main did not return after the server failed")
	}
}

func TestMain_GracefulShutdown(t *testing.T) {
	dir, err := os.MkdirTemp("", "relay")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	cfg := testConfig(t)
	sock := filepath.Join(dir, "relay.sock")
	cfg.HTTP.Address = "unix://" + sock

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() {
		done <- Main(ctx, cfg)
	}()

	require.Eventually(t, func() bool {
		_, err := os.Stat(sock)
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Main did not shut down")
	}
}
