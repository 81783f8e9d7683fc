package server

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/openkcm/common-sdk/pkg/commoncfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openkcm/auth-relay/internal/config"
)

func testConfig(address string) *config.Config {
	return &config.Config{
		BaseConfig: commoncfg.BaseConfig{
			Application: commoncfg.Application{
				Name: "test-app",
			},
		},
		HTTP: config.HTTPServer{
			Address:         address,
			ShutdownTimeout: 1 * time.Second,
		},
	}
}

func TestStartHTTPServer_ContextCancellation(t *testing.T) {
	t.Run("gracefully shuts down when context is cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())

		// Use port 0 to get a random available port
		cfg := testConfig("localhost:0")

		// Start the server in a goroutine
		errChan := make(chan error, 1)
		go func() {
			errChan <- StartHTTPServer(ctx, cfg, &fakeRelay{})
		}()

		// Give the server a moment to start
		time.Sleep(100 * time.Millisecond)

		// Cancel the context to trigger shutdown
		cancel()

		// Wait for shutdown to complete
		select {
		case err := <-errChan:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("Server did not shut down within timeout")
		}
	})

	t.Run("serves on a unix socket", func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())
		defer cancel()

		// t.TempDir can exceed the unix socket path limit
		dir, err := os.MkdirTemp("", "relay")
		require.NoError(t, err)
		t.Cleanup(func() { _ = os.RemoveAll(dir) })

		sock := filepath.Join(dir, "relay.sock")
		cfg := testConfig("unix://" + sock)

		errChan := make(chan error, 1)
		go func() {
			errChan <- StartHTTPServer(ctx, cfg, &fakeRelay{})
		}()

		client := &http.Client{Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				return new(net.Dialer).DialContext(ctx, "unix", sock)
			},
		}}

		require.Eventually(t, func() bool {
			resp, err := client.Get("http://relay/ping")
			if err != nil {
				return false
			}
			defer resp.Body.Close()
			return resp.StatusCode == http.StatusOK
		}, 5*time.Second, 50*time.Millisecond)

		cancel()
		assert.NoError(t, <-errChan)
	})

	t.Run("fails on an unusable address", func(t *testing.T) {
		cfg := testConfig("unix://" + filepath.Join(t.TempDir(), "missing", "relay.sock"))

		err := StartHTTPServer(t.Context(), cfg, &fakeRelay{})
		assert.Error(t, err)
	})
}

func TestCreateHTTPServer(t *testing.T) {
	t.Run("creates HTTP server with default config", func(t *testing.T) {
		server, err := createHTTPServer(t.Context(), testConfig("localhost:8080"), &fakeRelay{})

		require.NoError(t, err)
		assert.NotNil(t, server)
		assert.Equal(t, "localhost:8080", server.Addr)
		assert.NotNil(t, server.Handler)
	})

	t.Run("creates HTTP server with unix socket", func(t *testing.T) {
		server, err := createHTTPServer(t.Context(), testConfig("unix:///tmp/test.sock"), &fakeRelay{})

		require.NoError(t, err)
		assert.NotNil(t, server)
		assert.Equal(t, "unix:///tmp/test.sock", server.Addr)
	})

	t.Run("routes", func(t *testing.T) {
		server, err := createHTTPServer(t.Context(), testConfig("localhost:0"), &fakeRelay{})
		require.NoError(t, err)

		tests := []struct {
			method string
			target string
			want   int
		}{
			{http.MethodGet, "/ping", http.StatusOK},
			{http.MethodGet, "/auth/start", http.StatusOK},
			{http.MethodGet, "/auth/token", http.StatusBadRequest},
			{http.MethodGet, "/auth/callback", http.StatusBadRequest},
			{http.MethodPost, "/auth/start", http.StatusMethodNotAllowed},
			{http.MethodGet, "/auth/unknown", http.StatusNotFound},
		}
		for _, tt := range tests {
			t.Run(tt.method+" "+tt.target, func(t *testing.T) {
				rec := httptest.NewRecorder()
				server.Handler.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.target, nil))

				assert.Equal(t, tt.want, rec.Code)
				assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
			})
		}
	})
}
