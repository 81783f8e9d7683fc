//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"io/fs"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/stretchr/testify/require"
)

const testIDToken = "integration.id.token"

type infraStat struct {
	ConfigFilePath string
	Procdir        string
	Socket         string
	Cfg            map[string]any

	provider *httptest.Server
}

func initInfra(t *testing.T, exeName string) (istat infraStat) {
	t.Helper()

	// Since the config is read from the file $PWD/config.yaml,
	// we're running a process in a subdirectory so that we aren't interferring with the other tests.
	wd, err := os.Getwd()
	require.NoError(t, err, "failed to get wd")
	istat.Procdir = filepath.Join(wd, exeName+"-test")
	istat.ConfigFilePath = filepath.Join(istat.Procdir, "config.yaml")

	// Prepare a directory for the test
	err = os.MkdirAll(istat.Procdir, fs.ModePerm)
	require.NoError(t, err, "failed to create a dir for the process")

	err = yaml.Unmarshal([]byte(validConfig), &istat.Cfg)
	require.NoError(t, err, "failed to parse config")

	// A unix socket spares us from looking for a free port
	istat.Socket = filepath.Join(istat.Procdir, exeName+".sock")
	istat.section("http")["address"] = "unix://" + istat.Socket

	return istat
}

func (istat *infraStat) section(name string) map[string]any {
	sec, ok := istat.Cfg[name].(map[string]any)
	if !ok {
		sec = map[string]any{}
		istat.Cfg[name] = sec
	}
	return sec
}

// PrepareProvider starts a fake OAuth token endpoint and points the relay at it.
func (istat *infraStat) PrepareProvider(t *testing.T) {
	t.Helper()

	istat.provider = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/token" || r.FormValue("code") == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "access-token",
			"token_type":   "Bearer",
			"id_token":     testIDToken,
		})
	}))

	relay := istat.section("relay")
	provider, ok := relay["provider"].(map[string]any)
	if !ok {
		provider = map[string]any{}
		relay["provider"] = provider
	}
	provider["authURL"] = istat.provider.URL + "/authorize"
	provider["tokenURL"] = istat.provider.URL + "/token"
}

// PrepareConfig writes a config file for running the test into the ConfigFilePath.
func (istat *infraStat) PrepareConfig(t *testing.T) {
	t.Helper()

	out, err := yaml.Marshal(istat.Cfg)
	require.NoError(t, err, "failed to encode config")

	err = os.WriteFile(istat.ConfigFilePath, out, 0o600)
	require.NoError(t, err, "failed to write config")
}

// Start runs the binary from the test directory and stops it with SIGTERM
// when the test ends so that coverprofiles are written.
func (istat *infraStat) Start(t *testing.T, cmdName, logName string) {
	t.Helper()

	currdir, err := os.Getwd()
	require.NoError(t, err, "failed to get wd")

	cmd := exec.CommandContext(t.Context(), filepath.Join(currdir, binary), cmdName)
	cmd.Dir = istat.Procdir
	cmd.Env = append(os.Environ(),
		"CLIENT_ID=integration-client",
		"CLIENT_SECRET=integration-secret",
		"REDIRECT_URI=http://localhost:5000/auth/callback",
	)

	cmdOut, err := os.Create(filepath.Join(currdir, logName))
	require.NoError(t, err, "failed to create a log file")
	t.Cleanup(func() { cmdOut.Close() })

	cmd.Stdout = cmdOut
	cmd.Stderr = cmdOut
	t.Logf("starting an app process. Logs will be saved into %s", cmdOut.Name())

	require.NoError(t, cmd.Start(), "could not start command")
	t.Cleanup(func() {
		_ = syscall.Kill(cmd.Process.Pid, syscall.SIGTERM)
		_ = cmd.Wait()
	})
}

// RelayClient talks to the relay over its unix socket.
func (istat *infraStat) RelayClient() *http.Client {
	return &http.Client{
		Timeout: 5 * time.Second,
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				return new(net.Dialer).DialContext(ctx, "unix", istat.Socket)
			},
		},
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (istat *infraStat) Close() {
	if istat.provider != nil {
		istat.provider.Close()
	}
	os.Remove(istat.ConfigFilePath)
	os.RemoveAll(istat.Procdir)
}
