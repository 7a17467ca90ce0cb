package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joistio/joist/internal/coders"
	"github.com/joistio/joist/internal/examples"
	"github.com/joistio/joist/internal/pipeline"
	"github.com/joistio/joist/internal/transforms"
)

func TestWordCountEndToEnd(t *testing.T) {
	p, outputID, err := examples.WordCount("the cat", "the dog")
	require.NoError(t, err)

	r := New()
	result, err := r.Run(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, JobDone, result.State)

	elements, err := result.Elements(outputID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []interface{}{"the: 2", "cat: 1", "dog: 1"}, elements)
}

func TestRunRejectsInvalidPipeline(t *testing.T) {
	p := pipeline.New()
	p.CreateCollection("orphan", "coder999")

	_, err := New().Run(context.Background(), p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid pipeline")
}

func TestRunPropagatesBundleFailure(t *testing.T) {
	boom := errors.New("boom")
	transforms.RegisterDoFn("test.fail", func() transforms.DoFn {
		return &failingDoFn{err: boom}
	})

	p := pipeline.New()
	root := pipeline.NewRoot(p)
	source := root.MustApply(transforms.NewCreate("src", "a", "b"))
	_, err := source.Apply(transforms.NewParDo("fail", "test.fail"))
	require.NoError(t, err)

	r := New()
	result, err := r.Run(context.Background(), p)
	require.Error(t, err)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, JobFailed, result.State)

	record, ok := r.Jobs().Get(result.JobID)
	require.True(t, ok)
	assert.Equal(t, JobFailed, record.State)
	assert.Contains(t, record.Error, "boom")
}

type failingDoFn struct {
	transforms.DoFnBase
	err error
}

func (f *failingDoFn) ProcessElement(context.Context, interface{}, transforms.Emitter) error {
	return f.err
}

func TestParallelStagesMergeOutputs(t *testing.T) {
	p := pipeline.New()
	root := pipeline.NewRoot(p)

	lines := root.MustApply(transforms.NewCreate("lines", "a a", "b", "a").
		WithOutputCoder(&pipeline.CoderSpec{URN: coders.StringCoderURN}))

	kvSpec := &pipeline.CoderSpec{
		URN: coders.KVCoderURN,
		ComponentCoderIDs: []string{
			p.RegisterCoderURN(coders.StringCoderURN),
			p.RegisterCoderURN(coders.VarIntCoderURN),
		},
	}
	pairs := lines.MustApply(transforms.FlatMap("explode", func(line string) []coders.KV {
		var kvs []coders.KV
		for _, r := range line {
			if r != ' ' {
				kvs = append(kvs, coders.KV{Key: string(r), Value: 1})
			}
		}
		return kvs
	}).WithOutputCoder(kvSpec))

	grouped := pairs.MustApply(transforms.NewGroupByKey())
	counts := grouped.MustApply(transforms.Map("tally", func(kv coders.KV) coders.KV {
		return coders.KV{Key: kv.Key, Value: len(kv.Value.([]interface{}))}
	}).WithOutputCoder(kvSpec))

	r := New(WithMaxParallelism(3))
	result, err := r.Run(context.Background(), p)
	require.NoError(t, err)

	elements, err := result.Elements(counts.ID())
	require.NoError(t, err)

	tallies := map[interface{}]interface{}{}
	for _, e := range elements {
		kv := e.(coders.KV)
		tallies[kv.Key] = kv.Value
	}
	assert.Equal(t, int64(3), tallies["a"])
	assert.Equal(t, int64(1), tallies["b"])
}

func TestJobStoreSince(t *testing.T) {
	store := NewJobStore()
	store.start("old")
	store.finish("old", nil)

	cutoff := time.Now().UTC().Add(time.Minute)
	assert.Empty(t, store.Since(cutoff))
	assert.Len(t, store.Since(time.Now().UTC().Add(-time.Minute)), 1)
}

func TestFuseStagesSplitsAtGrouping(t *testing.T) {
	p, _, err := examples.WordCount("x y")
	require.NoError(t, err)

	stages, err := fuseStages(p.Graph())
	require.NoError(t, err)
	require.Len(t, stages, 3)
	assert.False(t, stages[0].grouping)
	assert.True(t, stages[1].grouping)
	require.Len(t, stages[1].transforms, 1)
	assert.False(t, stages[2].grouping)
}
