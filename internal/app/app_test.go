package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"siete/report-portal/report-portal-backend/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Server.ShutdownTimeout = 2 * time.Second
	cfg.Reports.StarterPath = filepath.Join(t.TempDir(), "missing-jasperstarter")
	cfg.Reports.TemplateDir = t.TempDir()
	cfg.Reports.TempDir = t.TempDir()
	cfg.Reports.DeleteDelay = time.Hour
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	gin.SetMode(gin.TestMode)
	a, err := New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	return a
}

func TestHealthReportsEngineStatus(t *testing.T) {
	a := newTestApp(t, testConfig(t))

	w := httptest.NewRecorder()
	a.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	a := newTestApp(t, testConfig(t))

	w := httptest.NewRecorder()
	a.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "reports_reaper_sweeps_total")
}

func TestCORSPreflight(t *testing.T) {
	a := newTestApp(t, testConfig(t))

	w := httptest.NewRecorder()
	a.Router().ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/api/v1/reports/available", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestShutdownFlushesPendingDeletions(t *testing.T) {
	cfg := testConfig(t)
	a := newTestApp(t, cfg)

	artifact := filepath.Join(cfg.Reports.TempDir, "ventas_1_abcd1234.pdf")
	require.NoError(t, os.WriteFile(artifact, []byte("%PDF-1.4"), 0o644))
	a.API().Service.ScheduleDeletion(artifact)

	require.NoError(t, a.Start())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, a.Shutdown(ctx))

	assert.NoFileExists(t, artifact)
	assert.Error(t, a.Start())
}

func TestStartSweepsStaleArtifacts(t *testing.T) {
	cfg := testConfig(t)
	a := newTestApp(t, cfg)

	stale := filepath.Join(cfg.Reports.TempDir, "stale.pdf")
	require.NoError(t, os.WriteFile(stale, []byte("%PDF-1.4"), 0o644))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	require.NoError(t, a.Start())
	defer a.Shutdown(context.Background())

	assert.NoFileExists(t, stale)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	a := newTestApp(t, testConfig(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
