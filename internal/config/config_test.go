package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ungeskriptet/samsung-grab/internal/domain"
	"github.com/ungeskriptet/samsung-grab/internal/remote"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"BASE_URL", "LOOKUP_URL", "DB", "HTTP_TIMEOUT", "CLAIM_RATE", "LOG_LEVEL", "METRICS_FILE", "NOTIFY"} {
		t.Setenv(envPrefix+k, "")
	}
	empty := filepath.Join(t.TempDir(), "empty.toml")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	t.Setenv(envPrefix+"CONFIG", empty)
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv(envPrefix+"DB", "/var/lib/grab/tasks.json")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, remote.DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, "https://data.nicolas17.xyz/samsung-grab", cfg.BaseURL)
	assert.Equal(t, domain.DefaultLookupPrefix, cfg.LookupURL)
	assert.Equal(t, "/var/lib/grab/tasks.json", cfg.StorePath)
	assert.Zero(t, cfg.HTTPTimeout)
	assert.Equal(t, 2.0, cfg.ClaimRate)
	assert.Equal(t, slog.LevelWarn, cfg.LogLevel)
	assert.Empty(t, cfg.MetricsFile)
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
base_url = "http://file.test"
http_timeout = "30s"
claim_rate = 0.5
log_level = "debug"
notify = "https://hooks.test/a"
`), 0o644))
	t.Setenv(envPrefix+"CONFIG", path)
	t.Setenv(envPrefix+"HTTP_TIMEOUT", "10s")
	t.Setenv(envPrefix+"DB", "tasks.db")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://file.test", cfg.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 0.5, cfg.ClaimRate)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "https://hooks.test/a", cfg.Notify)
	assert.Equal(t, "tasks.db", cfg.StorePath)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "bad timeout", env: map[string]string{"HTTP_TIMEOUT": "soon"}},
		{name: "bad rate", env: map[string]string{"CLAIM_RATE": "fast"}},
		{name: "negative rate", env: map[string]string{"CLAIM_RATE": "-1"}},
		{name: "bad level", env: map[string]string{"LOG_LEVEL": "loud"}},
		{name: "missing explicit config", env: map[string]string{"CONFIG": "/nonexistent/config.toml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(envPrefix+k, v)
			}
			_, err := Load()
			require.Error(t, err)
		})
	}
}

func TestResolveStorePath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	tests := []struct {
		name      string
		override  string
		stateHome string
		want      string
	}{
		{name: "override wins", override: "/data/tasks.json", stateHome: "/state", want: "/data/tasks.json"},
		{name: "override expands home", override: "~/tasks.json", want: filepath.Join(home, "tasks.json")},
		{name: "state directory", stateHome: "/state", want: "/state/samsung-grab.json"},
		{name: "working directory", want: "samsung-grab.json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveStorePath(tt.override, tt.stateHome))
		})
	}
}
