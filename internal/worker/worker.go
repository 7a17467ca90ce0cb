package worker

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/joistio/joist/internal/coders"
	"github.com/joistio/joist/internal/logging"
	"github.com/joistio/joist/internal/metrics"
)

// WorkerEndpoints carries the endpoints a worker reports back to.
type WorkerEndpoints struct {
	ControlEndpoint string `json:"control_endpoint,omitempty"`
}

// Worker executes bundles against registered descriptors. Descriptors are
// held in an LRU cache so long-running workers shed stale jobs; a fresh
// BundleProcessor is wired per bundle, so bundles for the same descriptor
// may run concurrently.
type Worker struct {
	id        string
	endpoints WorkerEndpoints

	operators     *OperatorRegistry
	coderRegistry *coders.Registry
	descriptors   *lru.Cache[string, *ProcessBundleDescriptor]
	metrics       *metrics.WorkerMetrics
	logger        *logging.Logger
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithOperatorRegistry overrides the built-in operator registry.
func WithOperatorRegistry(registry *OperatorRegistry) WorkerOption {
	return func(w *Worker) { w.operators = registry }
}

// WithCoderRegistry overrides the default coder registry.
func WithCoderRegistry(registry *coders.Registry) WorkerOption {
	return func(w *Worker) { w.coderRegistry = registry }
}

// WithMetrics attaches bundle metrics.
func WithMetrics(m *metrics.WorkerMetrics) WorkerOption {
	return func(w *Worker) { w.metrics = m }
}

// NewWorker creates a worker with a descriptor cache of the given size.
func NewWorker(id string, endpoints WorkerEndpoints, cacheSize int, opts ...WorkerOption) (*Worker, error) {
	w := &Worker{
		id:            id,
		endpoints:     endpoints,
		operators:     NewOperatorRegistry(),
		coderRegistry: coders.Default(),
		logger:        logging.GetLogger("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}

	cache, err := lru.NewWithEvict(cacheSize, func(id string, _ *ProcessBundleDescriptor) {
		w.logger.Debug("evicted descriptor %s", id)
	})
	if err != nil {
		return nil, err
	}
	w.descriptors = cache
	return w, nil
}

// ID returns the worker id.
func (w *Worker) ID() string { return w.id }

// Endpoints returns the endpoints the worker was started with.
func (w *Worker) Endpoints() WorkerEndpoints { return w.endpoints }

// RegisterDescriptor makes a descriptor available for ProcessBundle.
func (w *Worker) RegisterDescriptor(d *ProcessBundleDescriptor) {
	w.descriptors.Add(d.ID, d)
	w.logger.Debug("registered descriptor %s (%d transforms)", d.ID, len(d.Transforms))
}

// ProcessBundle executes one bundle against a registered descriptor,
// feeding the given elements into the descriptor's external input
// collections, and returns the captured external outputs.
func (w *Worker) ProcessBundle(ctx context.Context, descriptorID, bundleID string, inputs map[string][]interface{}) (map[string][]interface{}, error) {
	descriptor, ok := w.descriptors.Get(descriptorID)
	if !ok {
		return nil, fmt.Errorf("worker %s: unknown descriptor %s", w.id, descriptorID)
	}

	processor, err := NewBundleProcessor(descriptor, w.operators, w.coderRegistry)
	if err != nil {
		return nil, fmt.Errorf("worker %s: wire descriptor %s: %w", w.id, descriptorID, err)
	}

	start := time.Now()
	outputs, err := processor.Process(ctx, bundleID, inputs)

	if w.metrics != nil {
		w.metrics.BundlesTotal.Inc()
		w.metrics.BundleDurations.Observe(time.Since(start).Seconds())
		if err != nil {
			w.metrics.BundleFailures.Inc()
		} else {
			var count float64
			for _, elements := range inputs {
				count += float64(len(elements))
			}
			for _, elements := range outputs {
				count += float64(len(elements))
			}
			w.metrics.ElementsTotal.Add(count)
		}
	}
	return outputs, err
}

// Stop releases the worker's cached descriptors.
func (w *Worker) Stop() {
	w.descriptors.Purge()
	w.logger.Debug("worker %s stopped", w.id)
}
