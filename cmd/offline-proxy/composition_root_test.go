package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-offline-proxy/internal/models"
)

const testConfig = `
agent:
  version: %s
  upstream_url: %s
  manifest:
    - /
    - /app.js
persistent:
  backend: sqlite
storage:
  path: %s
server:
  listen_addr: 127.0.0.1:0
`

func writeConfig(t *testing.T, path, version, upstream, dbPath string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf(testConfig, version, upstream, dbPath)), 0600))
}

func get(t *testing.T, handler http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", target, nil)
	req.Header.Set("Accept", "text/html")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func getJSON(t *testing.T, handler http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", target, nil)
	req.Header.Set("Accept", "application/json")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestCompositionRoot_ServesOfflineAfterUpdate(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Header().Set("Date", time.Now().UTC().Format(http.TimeFormat))
		_, _ = io.WriteString(w, "<html>app</html>")
	}))
	defer upstream.Close()

	dir := t.TempDir()
	configPath := filepath.Join(dir, "offline_proxy.yaml")
	dbPath := filepath.Join(dir, "proxy.db")
	writeConfig(t, configPath, "v1", upstream.URL, dbPath)
	t.Setenv("OFFLINE_PROXY_CONFIG", configPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	root, err := NewCompositionRoot(ctx)
	require.NoError(t, err)
	t.Cleanup(func() {
		root.Stop()
		_ = root.Cleanup()
	})

	require.NoError(t, root.Start(ctx))
	assert.True(t, root.Controller.IsRegistered())
	assert.Equal(t, models.AgentStateActive, root.Host.State())

	handler := root.HTTPServer.Handler()

	w := get(t, handler, "/")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<html>app</html>")

	// A new version installs next to the active one and waits
	writeConfig(t, configPath, "v2", upstream.URL, dbPath)
	require.NoError(t, root.Reload(ctx))
	assert.True(t, root.Controller.IsUpdateAvailable())
	active, waiting := root.Host.Versions()
	assert.Equal(t, "v1", active)
	assert.Equal(t, "v2", waiting)

	req := httptest.NewRequest("POST", "/__agent/update", strings.NewReader(""))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Eventually(t, func() bool {
		active, _ := root.Host.Versions()
		return active == "v2" && !root.Controller.IsUpdateAvailable()
	}, 5*time.Second, 20*time.Millisecond)

	stats, err := root.Controller.CacheStats(ctx)
	require.NoError(t, err)
	assert.Contains(t, stats.Partitions, "static-v2")
	assert.NotContains(t, stats.Partitions, "static-v1")

	// Upstream gone: the navigation is answered from the installed partition
	upstream.Close()
	w = get(t, handler, "/")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<html>app</html>")
}

func TestCompositionRoot_RestartWithUpstreamDown(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Date", time.Now().UTC().Format(http.TimeFormat))
		switch r.URL.Path {
		case "/api/stats":
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"visits":7}`)
		case "/app.js":
			w.Header().Set("Content-Type", "application/javascript")
			_, _ = io.WriteString(w, "console.log('app')")
		default:
			w.Header().Set("Content-Type", "text/html")
			_, _ = io.WriteString(w, "<html>app</html>")
		}
	}))
	defer upstream.Close()

	dir := t.TempDir()
	configPath := filepath.Join(dir, "offline_proxy.yaml")
	writeConfig(t, configPath, "v1", upstream.URL, filepath.Join(dir, "proxy.db"))
	t.Setenv("OFFLINE_PROXY_CONFIG", configPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first, err := NewCompositionRoot(ctx)
	require.NoError(t, err)
	require.NoError(t, first.Start(ctx))

	w := getJSON(t, first.HTTPServer.Handler(), "/api/stats")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"visits":7}`, w.Body.String())

	first.Stop()
	_ = first.Cleanup()
	upstream.Close()

	second, err := NewCompositionRoot(ctx)
	require.NoError(t, err)
	t.Cleanup(func() {
		second.Stop()
		_ = second.Cleanup()
	})

	require.NoError(t, second.Start(ctx))
	assert.True(t, second.Controller.IsRegistered())
	assert.Equal(t, models.AgentStateActive, second.Host.State())

	handler := second.HTTPServer.Handler()

	w = getJSON(t, handler, "/api/stats")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"visits":7}`, w.Body.String())

	w = get(t, handler, "/app.js")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "console.log('app')", w.Body.String())
}

func TestNewCompositionRoot_InvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "offline_proxy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("agent:\n  upstream_url: nope\n"), 0600))
	t.Setenv("OFFLINE_PROXY_CONFIG", path)

	_, err := NewCompositionRoot(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load configuration")
}
