package runner

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/joistio/joist/internal/coders"
	"github.com/joistio/joist/internal/logging"
	"github.com/joistio/joist/internal/pipeline"
	"github.com/joistio/joist/internal/worker"
)

// DirectRunner executes a pipeline in process. Stage boundaries are
// materialized through the collections' coders, so any element that
// crosses a boundary has round-tripped its wire encoding.
type DirectRunner struct {
	maxParallelism int
	coderRegistry  *coders.Registry
	jobs           *JobStore
	logger         *logging.Logger
}

// Option configures a DirectRunner.
type Option func(*DirectRunner)

// WithMaxParallelism bounds how many bundles of one stage run
// concurrently.
func WithMaxParallelism(n int) Option {
	return func(r *DirectRunner) {
		if n > 0 {
			r.maxParallelism = n
		}
	}
}

// WithCoderRegistry overrides the default coder registry.
func WithCoderRegistry(registry *coders.Registry) Option {
	return func(r *DirectRunner) { r.coderRegistry = registry }
}

// WithJobStore records job lifecycles in the given store.
func WithJobStore(store *JobStore) Option {
	return func(r *DirectRunner) { r.jobs = store }
}

// New creates a DirectRunner.
func New(opts ...Option) *DirectRunner {
	r := &DirectRunner{
		maxParallelism: 4,
		coderRegistry:  coders.Default(),
		jobs:           NewJobStore(),
		logger:         logging.GetLogger("runner.direct"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Jobs returns the runner's job store.
func (r *DirectRunner) Jobs() *JobStore { return r.jobs }

// Run validates and executes the pipeline, blocking until it finishes.
// The first failing bundle aborts the job and surfaces its error.
func (r *DirectRunner) Run(ctx context.Context, p *pipeline.Pipeline) (*PipelineResult, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline: %w", err)
	}

	g := p.Graph()
	stages, err := fuseStages(g)
	if err != nil {
		return nil, err
	}

	jobID := uuid.NewString()
	r.jobs.start(jobID)
	r.logger.Info("job %s: %d transforms in %d stages", jobID, len(g.Transforms), len(stages))

	result := &PipelineResult{JobID: jobID, State: JobRunning}
	outputs, err := r.execute(ctx, g, stages, jobID)
	r.jobs.finish(jobID, err)
	if err != nil {
		result.State = JobFailed
		result.Err = err
		return result, err
	}
	result.State = JobDone
	result.outputs = outputs
	return result, nil
}

func (r *DirectRunner) execute(ctx context.Context, g *pipeline.Graph, stages []*stage, jobID string) (map[string][]interface{}, error) {
	w, err := worker.NewWorker("direct-"+jobID[:8], worker.WorkerEndpoints{}, len(stages)+1)
	if err != nil {
		return nil, err
	}
	defer w.Stop()

	coderCache := map[string]coders.Coder{}
	collectionCoder := func(cid string) (coders.Coder, error) {
		if c, ok := coderCache[cid]; ok {
			return c, nil
		}
		coll, ok := g.Collections[cid]
		if !ok {
			return nil, fmt.Errorf("unknown collection %s", cid)
		}
		c, err := pipeline.BuildCoder(g, coll.CoderID, r.coderRegistry)
		if err != nil {
			return nil, err
		}
		coderCache[cid] = c
		return c, nil
	}

	// materialized holds each stage-boundary collection as its coder's
	// byte stream.
	materialized := map[string][]byte{}

	for _, s := range stages {
		descriptor := s.descriptor(g, jobID)
		w.RegisterDescriptor(descriptor)

		inputs := map[string][]interface{}{}
		for _, cid := range descriptor.ExternalInputs() {
			coder, err := collectionCoder(cid)
			if err != nil {
				return nil, err
			}
			elements, err := coders.DecodeStream(coder, materialized[cid])
			if err != nil {
				return nil, fmt.Errorf("stage %d: decode %s: %w", s.level, cid, err)
			}
			inputs[cid] = elements
		}

		outputs, err := r.runStage(ctx, w, s, descriptor, inputs)
		if err != nil {
			return nil, err
		}

		for cid, elements := range outputs {
			coder, err := collectionCoder(cid)
			if err != nil {
				return nil, err
			}
			encoded, err := coders.EncodeStream(coder, elements)
			if err != nil {
				return nil, fmt.Errorf("stage %d: encode %s: %w", s.level, cid, err)
			}
			materialized[cid] = encoded
		}
	}

	return r.collectLeaves(g, materialized, collectionCoder)
}

// runStage executes one stage. Grouping stages and source stages run as a
// single bundle; element-wise stages shard their inputs across parallel
// bundles.
func (r *DirectRunner) runStage(ctx context.Context, w *worker.Worker, s *stage, descriptor *worker.ProcessBundleDescriptor, inputs map[string][]interface{}) (map[string][]interface{}, error) {
	parallelism := r.maxParallelism
	if s.grouping || len(inputs) == 0 {
		parallelism = 1
	}

	shards := shardInputs(inputs, parallelism)

	results := make([]map[string][]interface{}, len(shards))
	group, groupCtx := errgroup.WithContext(ctx)
	var mu sync.Mutex
	for i, shard := range shards {
		group.Go(func() error {
			bundleID := fmt.Sprintf("%s-b%d", descriptor.ID, i)
			out, err := w.ProcessBundle(groupCtx, descriptor.ID, bundleID, shard)
			if err != nil {
				return err
			}
			mu.Lock()
			results[i] = out
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, fmt.Errorf("stage %d: %w", s.level, err)
	}

	merged := map[string][]interface{}{}
	for _, out := range results {
		for cid, elements := range out {
			merged[cid] = append(merged[cid], elements...)
		}
	}
	return merged, nil
}

// shardInputs splits each input collection round-robin into at most n
// index-aligned shards. Empty shards are dropped but at least one bundle
// always runs.
func shardInputs(inputs map[string][]interface{}, n int) []map[string][]interface{} {
	if n < 1 {
		n = 1
	}
	shards := make([]map[string][]interface{}, n)
	for i := range shards {
		shards[i] = map[string][]interface{}{}
	}
	nonEmpty := 1
	for cid, elements := range inputs {
		for i, element := range elements {
			shard := i % n
			shards[shard][cid] = append(shards[shard][cid], element)
			if shard+1 > nonEmpty {
				nonEmpty = shard + 1
			}
		}
	}
	return shards[:nonEmpty]
}

// collectLeaves decodes the collections nothing downstream consumes.
func (r *DirectRunner) collectLeaves(g *pipeline.Graph, materialized map[string][]byte, collectionCoder func(string) (coders.Coder, error)) (map[string][]interface{}, error) {
	consumed := map[string]bool{}
	for _, t := range g.Transforms {
		if t.Spec == nil {
			continue
		}
		for _, cid := range t.Inputs {
			consumed[cid] = true
		}
	}

	leaves := map[string][]interface{}{}
	for cid, encoded := range materialized {
		if consumed[cid] {
			continue
		}
		coder, err := collectionCoder(cid)
		if err != nil {
			return nil, err
		}
		elements, err := coders.DecodeStream(coder, encoded)
		if err != nil {
			return nil, fmt.Errorf("decode leaf %s: %w", cid, err)
		}
		leaves[cid] = elements
	}
	return leaves, nil
}
