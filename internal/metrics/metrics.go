// Package metrics defines the Prometheus metrics exposed by the worker pool
// and the direct runner.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// WorkerMetrics holds Prometheus metrics for bundle execution observability.
type WorkerMetrics struct {
	BundlesTotal    prometheus.Counter // Total bundles processed
	BundleFailures  prometheus.Counter // Total bundles that failed
	ElementsTotal   prometheus.Counter // Total elements processed across all operators
	ActiveWorkers   prometheus.Gauge   // Workers currently registered with the pool
	BundleDurations prometheus.Histogram
}

// NewWorkerMetrics creates Prometheus metrics for a worker instance.
// The registerer parameter allows flexible registration (global registry in
// production, a fresh registry in tests). The workerID parameter enables
// multi-worker metric tracking via ConstLabels.
func NewWorkerMetrics(reg prometheus.Registerer, workerID string) *WorkerMetrics {
	bundlesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "joist_worker_bundles_total",
		Help:        "Total number of bundles processed",
		ConstLabels: prometheus.Labels{"worker": workerID},
	})

	bundleFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "joist_worker_bundle_failures_total",
		Help:        "Total number of bundles that failed processing",
		ConstLabels: prometheus.Labels{"worker": workerID},
	})

	elementsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "joist_worker_elements_total",
		Help:        "Total number of elements processed",
		ConstLabels: prometheus.Labels{"worker": workerID},
	})

	activeWorkers := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "joist_pool_active_workers",
		Help:        "Number of workers currently registered with the pool",
		ConstLabels: prometheus.Labels{"worker": workerID},
	})

	bundleDurations := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "joist_worker_bundle_duration_seconds",
		Help:        "Wall time of bundle processing",
		ConstLabels: prometheus.Labels{"worker": workerID},
		Buckets:     prometheus.DefBuckets,
	})

	reg.MustRegister(bundlesTotal)
	reg.MustRegister(bundleFailures)
	reg.MustRegister(elementsTotal)
	reg.MustRegister(activeWorkers)
	reg.MustRegister(bundleDurations)

	return &WorkerMetrics{
		BundlesTotal:    bundlesTotal,
		BundleFailures:  bundleFailures,
		ElementsTotal:   elementsTotal,
		ActiveWorkers:   activeWorkers,
		BundleDurations: bundleDurations,
	}
}
