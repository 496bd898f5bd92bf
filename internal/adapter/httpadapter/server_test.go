package httpadapter_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/couchcryptid/forest-data-etl/internal/adapter/httpadapter"
	"github.com/couchcryptid/forest-data-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type mockStatus struct {
	last *domain.RunStatus
}

func (m *mockStatus) LastRun() (domain.RunStatus, bool) {
	if m.last == nil {
		return domain.RunStatus{}, false
	}
	return *m.last, true
}

func newTestServer(readyErr error, last *domain.RunStatus) *httpadapter.Server {
	return httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, &mockStatus{last: last}, slog.Default())
}

func get(srv http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthzReturns200(t *testing.T) {
	rec := get(newTestServer(nil, nil), "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := get(newTestServer(nil, nil), "/readyz")

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	rec := get(newTestServer(fmt.Errorf("no successful reconciliation yet"), nil), "/readyz")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "no successful reconciliation yet")
}

func TestMetricsEndpoint(t *testing.T) {
	rec := get(newTestServer(nil, nil), "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestStatusBeforeFirstRun(t *testing.T) {
	rec := get(newTestServer(nil, nil), "/status")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "no runs yet")
}

func TestStatusAfterRun(t *testing.T) {
	finished := time.Date(2026, 3, 1, 12, 0, 5, 0, time.UTC)
	last := &domain.RunStatus{
		RunID:      "run-7",
		StartedAt:  finished.Add(-5 * time.Second),
		FinishedAt: finished,
		Success:    true,
		Summary:    &domain.RunSummary{Forests: 12, Geocoded: 10, GeocodeUnresolved: 2},
	}
	rec := get(newTestServer(nil, last), "/status")

	assert.Equal(t, http.StatusOK, rec.Code)
	var body domain.RunStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "run-7", body.RunID)
	assert.True(t, body.Success)
	require.NotNil(t, body.Summary)
	assert.Equal(t, 12, body.Summary.Forests)
	assert.Equal(t, 2, body.Summary.GeocodeUnresolved)
}
