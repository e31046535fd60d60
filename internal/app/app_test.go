package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/monoxbridge/internal/history"
	"github.com/vk/monoxbridge/internal/simulator"
	"github.com/vk/monoxbridge/internal/uartwifi"
)

// writeConfig drops an HCL config file into a temp dir and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "monoxbridge.hcl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func quietAppConfig(configPath string) *AppConfig {
	return &AppConfig{
		ConfigPath: configPath,
		LogFormat:  "text",
		LogLevel:   "error",
	}
}

func TestNewApp_PanicsOnBrokenConfig(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `printer "garage" {`)
	require.Panics(t, func() {
		NewApp(&bytes.Buffer{}, quietAppConfig(path))
	})
}

func TestNewApp_DiscoveryModeNeedsNoConfig(t *testing.T) {
	t.Parallel()

	cfg := quietAppConfig("/does/not/exist")
	cfg.DiscoverCIDR = "192.168.1.0/30"
	require.NotPanics(t, func() {
		NewApp(&bytes.Buffer{}, cfg)
	})
}

func TestRun_OnceAgainstSimulator(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	sim := simulator.New(simulator.DefaultIdentity)
	require.NoError(t, sim.Start(ctx, "127.0.0.1:0"))
	t.Cleanup(sim.Shutdown)

	dbPath := filepath.Join(t.TempDir(), "history.db")
	path := writeConfig(t, fmt.Sprintf(`
		printer "garage" {
			host = %q
		}
		history {
			path = %q
		}
	`, sim.Addr(), dbPath))

	cfg := quietAppConfig(path)
	cfg.Once = true
	a := NewApp(&bytes.Buffer{}, cfg)
	require.NoError(t, a.Run(ctx))

	snaps := a.Snapshots()
	require.Contains(t, snaps, "garage")
	assert.True(t, snaps["garage"].Online)
	assert.Equal(t, "Photon Mono X 6K", snaps["garage"].Printer.Model)

	// The snapshot was persisted before the store was closed again.
	store, err := history.Open(ctx, dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	latest, err := store.Latest(ctx, "garage")
	require.NoError(t, err)
	assert.Equal(t, string(uartwifi.StateStopped), latest.State)
}

func TestStatusEndpoints(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
		printer "garage" {
			host = "192.168.1.50"
		}
	`)
	a := NewApp(&bytes.Buffer{}, quietAppConfig(path))
	server := a.newStatusServer(0)

	get := func(target string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		return rec
	}

	t.Run("health", func(t *testing.T) {
		rec := get("/health")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "OK\n", rec.Body.String())
	})

	t.Run("printers", func(t *testing.T) {
		rec := get("/printers")
		require.Equal(t, http.StatusOK, rec.Code)

		var views []printerView
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
		require.Len(t, views, 1)
		assert.Equal(t, "garage", views[0].Name)
		assert.Equal(t, "192.168.1.50", views[0].Host)
	})

	t.Run("status before first contact", func(t *testing.T) {
		rec := get("/status")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, "{}", rec.Body.String())
	})
}

func TestWatchConfig_SignalsOnWrite(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	path := writeConfig(t, `
		printer "garage" {
			host = "192.168.1.50"
		}
	`)
	a := NewApp(&bytes.Buffer{}, quietAppConfig(path))

	reload := make(chan string, 1)
	watcher, err := a.watchConfig(ctx, reload)
	require.NoError(t, err)
	t.Cleanup(func() { watcher.Close() })

	require.NoError(t, os.WriteFile(path, []byte(`
		printer "garage" {
			host = "192.168.1.51"
		}
	`), 0o600))

	select {
	case changed := <-reload:
		assert.Equal(t, path, filepath.Clean(changed))
	case <-time.After(5 * time.Second):
		t.Fatal("expected a reload signal after rewriting the config")
	}
}

func TestWatchConfig_IgnoresSiblingFiles(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	path := writeConfig(t, `
		printer "garage" {
			host = "192.168.1.50"
		}
	`)
	a := NewApp(&bytes.Buffer{}, quietAppConfig(path))

	reload := make(chan string, 1)
	watcher, err := a.watchConfig(ctx, reload)
	require.NoError(t, err)
	t.Cleanup(func() { watcher.Close() })

	sibling := filepath.Join(filepath.Dir(path), "notes.txt")
	require.NoError(t, os.WriteFile(sibling, []byte("unrelated"), 0o600))

	select {
	case changed := <-reload:
		t.Fatalf("unexpected reload signal for %q", changed)
	case <-time.After(250 * time.Millisecond):
	}
}
