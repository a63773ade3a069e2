package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"inboxd/internal/database"
	"inboxd/internal/metrics"
	"inboxd/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestServer(t *testing.T) (*Server, *database.Database, *metrics.Registry) {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "inboxd.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	registry := metrics.NewRegistry()
	cfg := &models.Config{Server: models.ServerConfig{Enabled: true, Port: 8082}}

	return NewServer(cfg, db, registry, logger), db, registry
}

func TestHealthEndpoint(t *testing.T) {
	server, _, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	server.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestStatusEndpoint(t *testing.T) {
	server, db, _ := setupTestServer(t)
	ctx := context.Background()

	_, _, err := db.IngestMessages(ctx, []models.MessageEvent{
		{GUID: "g1", Text: "t", DateLocal: "2026-08-31 11:58:00", TimestampEpoch: 1_700_000_000, RawJSON: "{}"},
		{GUID: "g2", Text: "t", DateLocal: "2026-08-31 11:59:00", TimestampEpoch: 1_700_000_060, RawJSON: "{}"},
	})
	require.NoError(t, err)
	require.NoError(t, db.SetWatermarkEpoch(ctx, 1_700_000_060))
	require.NoError(t, db.MarkJobResult(ctx, "g1", false, "boom"))

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	server.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var status statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, int64(1_700_000_060), status.WatermarkEpoch)
	assert.Equal(t, 1, status.Jobs["queued"])
	assert.Equal(t, 1, status.Jobs["failed"])
	assert.Equal(t, 0, status.Jobs["running"])
}

func TestMetricsEndpoint(t *testing.T) {
	server, _, registry := setupTestServer(t)
	registry.IncrementCounter(metrics.IngestCyclesTotal, "ingest cycles run")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	server.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Contains(t, payload, "counters")
	assert.Contains(t, payload, "uptime_ms")
}

func TestUnknownMethodRejected(t *testing.T) {
	server, _, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/health", nil)
	rec := httptest.NewRecorder()
	server.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
