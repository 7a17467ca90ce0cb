package worker

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joistio/joist/internal/metrics"
	"github.com/joistio/joist/internal/pipeline"
)

func startedPool(t *testing.T, cfg PoolConfig) *WorkerPool {
	t.Helper()
	pool, err := NewWorkerPool(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, pool.Start(context.Background()))
	return pool
}

func TestPoolStartStopWorker(t *testing.T) {
	pool := startedPool(t, PoolConfig{})

	require.NoError(t, pool.StartWorker(StartWorkerRequest{WorkerID: "w1", SDKVersion: SDKVersion}))
	w, ok := pool.Get("w1")
	require.True(t, ok)
	assert.Equal(t, "w1", w.ID())

	infos := pool.Workers()
	require.Len(t, infos, 1)
	assert.Equal(t, "w1", infos[0].WorkerID)

	require.NoError(t, pool.StopWorker(StopWorkerRequest{WorkerID: "w1"}))
	_, ok = pool.Get("w1")
	assert.False(t, ok)
}

func TestPoolRejectsDuplicateStart(t *testing.T) {
	pool := startedPool(t, PoolConfig{})

	require.NoError(t, pool.StartWorker(StartWorkerRequest{WorkerID: "w1"}))
	err := pool.StartWorker(StartWorkerRequest{WorkerID: "w1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already started")
}

func TestPoolRejectsUnknownStop(t *testing.T) {
	pool := startedPool(t, PoolConfig{})

	err := pool.StopWorker(StopWorkerRequest{WorkerID: "ghost"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestPoolEnforcesMinimumVersion(t *testing.T) {
	pool := startedPool(t, PoolConfig{MinSDKVersion: "0.3.0"})

	err := pool.StartWorker(StartWorkerRequest{WorkerID: "old", SDKVersion: "0.2.9"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "older than minimum")

	err = pool.StartWorker(StartWorkerRequest{WorkerID: "unversioned"})
	require.Error(t, err)

	require.NoError(t, pool.StartWorker(StartWorkerRequest{WorkerID: "new", SDKVersion: "0.3.1"}))
}

func TestPoolStopClearsWorkers(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWorkerMetrics(reg, "pool")
	pool, err := NewWorkerPool(PoolConfig{}, m)
	require.NoError(t, err)
	require.NoError(t, pool.Start(context.Background()))

	require.NoError(t, pool.StartWorker(StartWorkerRequest{WorkerID: "w1"}))
	require.NoError(t, pool.StartWorker(StartWorkerRequest{WorkerID: "w2"}))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.ActiveWorkers))

	require.NoError(t, pool.Stop(context.Background()))
	assert.Empty(t, pool.Workers())
	assert.Equal(t, float64(0), testutil.ToFloat64(m.ActiveWorkers))

	err = pool.StartWorker(StartWorkerRequest{WorkerID: "w3"})
	require.Error(t, err)
}

func TestWorkerProcessBundle(t *testing.T) {
	w, err := NewWorker("w1", WorkerEndpoints{}, 8)
	require.NoError(t, err)

	w.RegisterDescriptor(&ProcessBundleDescriptor{
		ID: "pbd1",
		Transforms: map[string]*pipeline.Transform{
			"src": makeTransform(
				pipeline.CreateURN,
				nil,
				map[string]string{"out": "pc1"},
				[]byte(`{"values":["a","b"]}`),
			),
		},
	})

	outputs, err := w.ProcessBundle(context.Background(), "pbd1", "b1", nil)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"a", "b"}, outputs["pc1"])

	_, err = w.ProcessBundle(context.Background(), "missing", "b2", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown descriptor")
}

func TestWorkerMetricsCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWorkerMetrics(reg, "w1")
	w, err := NewWorker("w1", WorkerEndpoints{}, 8, WithMetrics(m))
	require.NoError(t, err)

	w.RegisterDescriptor(&ProcessBundleDescriptor{
		ID: "pbd1",
		Transforms: map[string]*pipeline.Transform{
			"src": makeTransform(
				pipeline.CreateURN,
				nil,
				map[string]string{"out": "pc1"},
				[]byte(`{"values":["a","b","c"]}`),
			),
		},
	})

	_, err = w.ProcessBundle(context.Background(), "pbd1", "b1", nil)
	require.NoError(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.BundlesTotal))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.BundleFailures))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.ElementsTotal))
}
