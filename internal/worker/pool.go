package worker

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	goversion "github.com/hashicorp/go-version"

	"github.com/joistio/joist/internal/logging"
	"github.com/joistio/joist/internal/metrics"
)

// SDKVersion is the version workers report when registering with a pool.
const SDKVersion = "0.3.0"

// StartWorkerRequest asks the pool to bring up a worker.
type StartWorkerRequest struct {
	WorkerID        string `json:"worker_id"`
	ControlEndpoint string `json:"control_endpoint,omitempty"`
	SDKVersion      string `json:"sdk_version,omitempty"`
}

// StopWorkerRequest asks the pool to tear down a worker.
type StopWorkerRequest struct {
	WorkerID string `json:"worker_id"`
}

// WorkerInfo describes a registered worker.
type WorkerInfo struct {
	WorkerID        string    `json:"worker_id"`
	ControlEndpoint string    `json:"control_endpoint,omitempty"`
	SDKVersion      string    `json:"sdk_version"`
	StartedAt       time.Time `json:"started_at"`
}

// PoolConfig configures a WorkerPool.
type PoolConfig struct {
	// MinSDKVersion rejects workers older than this version. Empty
	// disables the check.
	MinSDKVersion string

	// DescriptorCacheSize is handed to each worker's descriptor cache.
	DescriptorCacheSize int
}

// WorkerPool manages the set of live workers. It implements
// lifecycle.Component so the serving process can manage it alongside the
// API server.
type WorkerPool struct {
	cfg     PoolConfig
	minSDK  *goversion.Version
	logger  *logging.Logger
	metrics *metrics.WorkerMetrics

	mu      sync.Mutex
	workers map[string]*poolEntry
	running bool
}

type poolEntry struct {
	worker *Worker
	info   WorkerInfo
}

// NewWorkerPool creates an empty pool.
func NewWorkerPool(cfg PoolConfig, m *metrics.WorkerMetrics) (*WorkerPool, error) {
	p := &WorkerPool{
		cfg:     cfg,
		logger:  logging.GetLogger("worker.pool"),
		metrics: m,
		workers: map[string]*poolEntry{},
	}
	if cfg.MinSDKVersion != "" {
		min, err := goversion.NewVersion(cfg.MinSDKVersion)
		if err != nil {
			return nil, fmt.Errorf("invalid minimum sdk version %q: %w", cfg.MinSDKVersion, err)
		}
		p.minSDK = min
	}
	if p.cfg.DescriptorCacheSize <= 0 {
		p.cfg.DescriptorCacheSize = 128
	}
	return p, nil
}

// Name implements lifecycle.Component.
func (p *WorkerPool) Name() string { return "worker-pool" }

// Start implements lifecycle.Component.
func (p *WorkerPool) Start(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.running = true
	p.logger.Info("worker pool started")
	return nil
}

// Stop implements lifecycle.Component. All remaining workers are stopped.
func (p *WorkerPool) Stop(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, entry := range p.workers {
		entry.worker.Stop()
		delete(p.workers, id)
	}
	if p.metrics != nil {
		p.metrics.ActiveWorkers.Set(0)
	}
	p.running = false
	p.logger.Info("worker pool stopped")
	return nil
}

// StartWorker registers a new worker. Starting an id twice is an error;
// a second start of the same id must not silently replace a live worker.
func (p *WorkerPool) StartWorker(req StartWorkerRequest) error {
	if req.WorkerID == "" {
		return fmt.Errorf("worker_id is required")
	}
	if p.minSDK != nil {
		if req.SDKVersion == "" {
			return fmt.Errorf("worker %s: sdk_version is required (minimum %s)", req.WorkerID, p.minSDK)
		}
		v, err := goversion.NewVersion(req.SDKVersion)
		if err != nil {
			return fmt.Errorf("worker %s: invalid sdk_version %q: %w", req.WorkerID, req.SDKVersion, err)
		}
		if v.LessThan(p.minSDK) {
			return fmt.Errorf("worker %s: sdk version %s is older than minimum %s", req.WorkerID, v, p.minSDK)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return fmt.Errorf("worker pool is not running")
	}
	if _, exists := p.workers[req.WorkerID]; exists {
		return fmt.Errorf("worker %s already started", req.WorkerID)
	}

	var opts []WorkerOption
	if p.metrics != nil {
		opts = append(opts, WithMetrics(p.metrics))
	}
	w, err := NewWorker(req.WorkerID, WorkerEndpoints{ControlEndpoint: req.ControlEndpoint}, p.cfg.DescriptorCacheSize, opts...)
	if err != nil {
		return err
	}

	p.workers[req.WorkerID] = &poolEntry{
		worker: w,
		info: WorkerInfo{
			WorkerID:        req.WorkerID,
			ControlEndpoint: req.ControlEndpoint,
			SDKVersion:      req.SDKVersion,
			StartedAt:       time.Now().UTC(),
		},
	}
	if p.metrics != nil {
		p.metrics.ActiveWorkers.Set(float64(len(p.workers)))
	}
	p.logger.Info("started worker %s", req.WorkerID)
	return nil
}

// StopWorker tears down a worker. Stopping an unknown id is an error.
func (p *WorkerPool) StopWorker(req StopWorkerRequest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	entry, ok := p.workers[req.WorkerID]
	if !ok {
		return fmt.Errorf("worker %s not found", req.WorkerID)
	}
	entry.worker.Stop()
	delete(p.workers, req.WorkerID)
	if p.metrics != nil {
		p.metrics.ActiveWorkers.Set(float64(len(p.workers)))
	}
	p.logger.Info("stopped worker %s", req.WorkerID)
	return nil
}

// Get returns a live worker by id.
func (p *WorkerPool) Get(id string) (*Worker, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	entry, ok := p.workers[id]
	if !ok {
		return nil, false
	}
	return entry.worker, true
}

// Workers lists registered workers sorted by id.
func (p *WorkerPool) Workers() []WorkerInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	infos := make([]WorkerInfo, 0, len(p.workers))
	for _, entry := range p.workers {
		infos = append(infos, entry.info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].WorkerID < infos[j].WorkerID })
	return infos
}
