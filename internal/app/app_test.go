package app

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ungeskriptet/samsung-grab/internal/config"
	"github.com/ungeskriptet/samsung-grab/internal/domain"
	"github.com/ungeskriptet/samsung-grab/internal/remote/remotetest"
	"github.com/ungeskriptet/samsung-grab/internal/service"
)

func testConfig(t *testing.T, baseURL, store string) *config.Config {
	t.Helper()
	return &config.Config{
		BaseURL:     baseURL,
		LookupURL:   domain.DefaultLookupPrefix,
		StorePath:   store,
		LogLevel:    slog.LevelDebug,
		MetricsFile: filepath.Join(t.TempDir(), "samsung-grab.prom"),
	}
}

func TestNew_ClaimSurvivesRestart(t *testing.T) {
	srv := remotetest.NewServer(domain.Task{TaskID: "T1", Version: "v1", Filename: "f.bin", FilesizeText: "10 MB"})
	defer srv.Close()

	for _, name := range []string{"state/tasks.json", "state/tasks.db"} {
		t.Run(filepath.Ext(name), func(t *testing.T) {
			srv.Queue = []domain.Task{{TaskID: "T1", Version: "v1", Filename: "f.bin", FilesizeText: "10 MB"}}
			cfg := testConfig(t, srv.URL, filepath.Join(t.TempDir(), name))
			var logs bytes.Buffer

			a, err := New(cfg, Options{Stderr: &logs})
			require.NoError(t, err)
			_, err = a.Service.Claim(context.Background(), service.ClaimRequest{Username: "alice"})
			require.NoError(t, err)
			require.NoError(t, a.Close())

			assert.Contains(t, logs.String(), "run=")
			assert.Contains(t, logs.String(), "request completed")

			prom, err := os.ReadFile(cfg.MetricsFile)
			require.NoError(t, err)
			assert.Contains(t, string(prom), "samsunggrab_tasks_claimed_total 1")

			a, err = New(cfg, Options{})
			require.NoError(t, err)
			defer a.Close()
			assert.Equal(t, 1, a.Store.Len())
			assert.Len(t, a.Store.FindByID("T1"), 1)
		})
	}
}

func TestNew_BadNotifyTarget(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1", filepath.Join(t.TempDir(), "tasks.json"))
	_, err := New(cfg, Options{Notify: []string{"ftp://example.test"}})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "unsupported scheme"))
}
