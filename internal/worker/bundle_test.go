package worker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joistio/joist/internal/coders"
	"github.com/joistio/joist/internal/pipeline"
)

func makeTransform(urn string, inputs, outputs map[string]string, payload []byte) *pipeline.Transform {
	return &pipeline.Transform{
		Spec:    &pipeline.FunctionSpec{URN: urn, Payload: payload},
		Inputs:  inputs,
		Outputs: outputs,
	}
}

func newProcessor(t *testing.T, descriptor *ProcessBundleDescriptor) *BundleProcessor {
	t.Helper()
	processor, err := NewBundleProcessor(descriptor, NewOperatorRegistry(), coders.Default())
	require.NoError(t, err)
	return processor
}

func TestOperatorConstruction(t *testing.T) {
	// Transforms are listed consumer-first; construction must still
	// resolve the order from the collection edges.
	descriptor := &ProcessBundleDescriptor{
		ID: "pbd1",
		Transforms: map[string]*pipeline.Transform{
			"y": makeTransform(
				pipeline.RecordingURN,
				map[string]string{"input": "pc1"},
				map[string]string{"out": "pc2"},
				nil,
			),
			"z": makeTransform(
				pipeline.RecordingURN,
				map[string]string{"input": "pc2"},
				nil,
				nil,
			),
			"x": makeTransform(
				pipeline.CreateURN,
				nil,
				map[string]string{"out": "pc1"},
				[]byte(`["a","b","c"]`),
			),
		},
	}

	ResetRecordingLog()
	processor := newProcessor(t, descriptor)

	_, err := processor.Process(context.Background(), "bundle_id", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{
		`z.start_bundle()`,
		`y.start_bundle()`,
		`y.process("a")`,
		`z.process("a")`,
		`y.process("b")`,
		`z.process("b")`,
		`y.process("c")`,
		`z.process("c")`,
		`y.finish_bundle()`,
		`z.finish_bundle()`,
	}, RecordingLog())
}

func TestBundleCapturesExternalOutputs(t *testing.T) {
	descriptor := &ProcessBundleDescriptor{
		ID: "pbd2",
		Transforms: map[string]*pipeline.Transform{
			"src": makeTransform(
				pipeline.CreateURN,
				nil,
				map[string]string{"out": "pc1"},
				[]byte(`{"values":["1","2"]}`),
			),
		},
	}

	processor := newProcessor(t, descriptor)
	outputs, err := processor.Process(context.Background(), "b1", nil)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"1", "2"}, outputs["pc1"])
}

func TestBundleExternalInputs(t *testing.T) {
	descriptor := &ProcessBundleDescriptor{
		ID: "pbd3",
		Transforms: map[string]*pipeline.Transform{
			"passthrough": makeTransform(
				pipeline.FlattenURN,
				map[string]string{"input": "in"},
				map[string]string{"out": "out"},
				nil,
			),
		},
	}

	assert.Equal(t, []string{"in"}, descriptor.ExternalInputs())
	assert.Equal(t, []string{"out"}, descriptor.ExternalOutputs())

	processor := newProcessor(t, descriptor)
	outputs, err := processor.Process(context.Background(), "b1", map[string][]interface{}{
		"in": {"x", "y"},
	})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"x", "y"}, outputs["out"])
}

func TestBundleGroupByKey(t *testing.T) {
	descriptor := &ProcessBundleDescriptor{
		ID: "pbd4",
		Transforms: map[string]*pipeline.Transform{
			"gbk": makeTransform(
				pipeline.GroupByKeyURN,
				map[string]string{"input": "in"},
				map[string]string{"out": "out"},
				nil,
			),
		},
	}

	processor := newProcessor(t, descriptor)
	outputs, err := processor.Process(context.Background(), "b1", map[string][]interface{}{
		"in": {
			coders.KV{Key: "a", Value: 1},
			coders.KV{Key: "b", Value: 2},
			coders.KV{Key: "a", Value: 3},
		},
	})
	require.NoError(t, err)

	require.Len(t, outputs["out"], 2)
	first := outputs["out"][0].(coders.KV)
	assert.Equal(t, "a", first.Key)
	assert.Equal(t, []interface{}{1, 3}, first.Value)
	second := outputs["out"][1].(coders.KV)
	assert.Equal(t, "b", second.Key)
	assert.Equal(t, []interface{}{2}, second.Value)
}

func TestBundleDetectsCycle(t *testing.T) {
	descriptor := &ProcessBundleDescriptor{
		ID: "pbd5",
		Transforms: map[string]*pipeline.Transform{
			"a": makeTransform(pipeline.FlattenURN, map[string]string{"input": "pc2"}, map[string]string{"out": "pc1"}, nil),
			"b": makeTransform(pipeline.FlattenURN, map[string]string{"input": "pc1"}, map[string]string{"out": "pc2"}, nil),
		},
	}

	_, err := NewBundleProcessor(descriptor, NewOperatorRegistry(), coders.Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestBundleUnknownURN(t *testing.T) {
	descriptor := &ProcessBundleDescriptor{
		ID: "pbd6",
		Transforms: map[string]*pipeline.Transform{
			"t": makeTransform("joist:transform:bogus:v1", nil, map[string]string{"out": "pc1"}, nil),
		},
	}

	_, err := NewBundleProcessor(descriptor, NewOperatorRegistry(), coders.Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no operator for urn")
}
