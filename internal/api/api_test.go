package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joistio/joist/internal/runner"
	"github.com/joistio/joist/internal/worker"
)

func newTestServer(t *testing.T) (*Server, *worker.WorkerPool) {
	t.Helper()
	pool, err := worker.NewWorkerPool(worker.PoolConfig{MinSDKVersion: "0.3.0"}, nil)
	require.NoError(t, err)
	require.NoError(t, pool.Start(context.Background()))

	s := New(0, pool, runner.NewJobStore(), prometheus.NewRegistry())
	return s, pool
}

func doRequest(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	s.corsMiddleware(s.router).ServeHTTP(rec, req)
	return rec
}

func TestHealthAndReady(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(s, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStartStopWorkerEndpoints(t *testing.T) {
	s, pool := newTestServer(t)

	rec := doRequest(s, http.MethodPost, "/v1/workers/start", `{"worker_id":"w1","sdk_version":"0.3.0"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	_, ok := pool.Get("w1")
	assert.True(t, ok)

	rec = doRequest(s, http.MethodPost, "/v1/workers/start", `{"worker_id":"w1","sdk_version":"0.3.0"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(s, http.MethodPost, "/v1/workers/start", `{"worker_id":"w2","sdk_version":"0.1.0"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(s, http.MethodGet, "/v1/workers", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var listing struct {
		Workers []worker.WorkerInfo `json:"workers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	require.Len(t, listing.Workers, 1)
	assert.Equal(t, "w1", listing.Workers[0].WorkerID)

	rec = doRequest(s, http.MethodPost, "/v1/workers/stop", `{"worker_id":"w1"}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(s, http.MethodPost, "/v1/workers/stop", `{"worker_id":"w1"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMethodGuard(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(s, http.MethodPost, "/healthz", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = doRequest(s, http.MethodGet, "/v1/workers/start", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(s, http.MethodOptions, "/v1/workers", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestListJobsSince(t *testing.T) {
	pool, err := worker.NewWorkerPool(worker.PoolConfig{}, nil)
	require.NoError(t, err)
	require.NoError(t, pool.Start(context.Background()))

	r := runner.New()
	s := New(0, pool, r.Jobs(), prometheus.NewRegistry())

	rec := doRequest(s, http.MethodGet, "/v1/jobs", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(s, http.MethodGet, "/v1/jobs?since=zzzz-not-a-date", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestParseSince(t *testing.T) {
	zero, err := ParseSince("")
	require.NoError(t, err)
	assert.True(t, zero.IsZero())

	unix, err := ParseSince("1700000000")
	require.NoError(t, err)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), unix)

	_, err = ParseSince("-5")
	require.Error(t, err)

	parsed, err := ParseSince("2024-01-02")
	require.NoError(t, err)
	assert.Equal(t, 2024, parsed.Year())
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
