package transforms

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joistio/joist/internal/coders"
	"github.com/joistio/joist/internal/pipeline"
)

func TestImpulseExpand(t *testing.T) {
	p := pipeline.New()
	root := pipeline.NewRoot(p)

	out, err := root.Apply(NewImpulse())
	require.NoError(t, err)
	assert.Equal(t, coders.BytesCoderURN, out.CoderURN())

	g := p.Graph()
	var impulse *pipeline.Transform
	for _, tr := range g.Transforms {
		if tr.Spec != nil && tr.Spec.URN == pipeline.ImpulseURN {
			impulse = tr
		}
	}
	require.NotNil(t, impulse)
	assert.Empty(t, impulse.Inputs)
	assert.Equal(t, out.ID(), impulse.Outputs["out"])
	require.NoError(t, p.Validate())
}

func TestCreatePayload(t *testing.T) {
	p := pipeline.New()
	root := pipeline.NewRoot(p)

	out, err := root.Apply(NewCreate("letters", "a", "b", "c"))
	require.NoError(t, err)

	g := p.Graph()
	var create *pipeline.Transform
	for _, tr := range g.Transforms {
		if tr.Spec != nil && tr.Spec.URN == pipeline.CreateURN {
			create = tr
		}
	}
	require.NotNil(t, create)
	assert.True(t, strings.HasPrefix(create.UniqueName, "letters/"))

	var payload CreatePayload
	require.NoError(t, json.Unmarshal(create.Spec.Payload, &payload))
	require.Len(t, payload.Values, 3)
	assert.Equal(t, `"a"`, string(payload.Values[0]))

	assert.Equal(t, coders.JSONCoderURN, out.CoderURN())
	require.NoError(t, p.Validate())
}

func TestParDoPayloadAndCoder(t *testing.T) {
	p := pipeline.New()
	root := pipeline.NewRoot(p)

	pardo := NewParDo("enrich", "my.dofn").
		WithConfig(map[string]string{"endpoint": "http://localhost:9090"}).
		WithOutputCoder(&pipeline.CoderSpec{URN: coders.StringCoderURN})
	out, err := root.Apply(pardo)
	require.NoError(t, err)
	assert.Equal(t, coders.StringCoderURN, out.CoderURN())

	g := p.Graph()
	var tr *pipeline.Transform
	for _, candidate := range g.Transforms {
		if candidate.Spec != nil && candidate.Spec.URN == pipeline.ParDoURN {
			tr = candidate
		}
	}
	require.NotNil(t, tr)

	var payload ParDoPayload
	require.NoError(t, json.Unmarshal(tr.Spec.Payload, &payload))
	assert.Equal(t, "my.dofn", payload.DoFn)
	assert.Contains(t, string(payload.Config), "endpoint")
}

func TestMapDoFn(t *testing.T) {
	pardo := Map("upper", strings.ToUpper)

	var payload ParDoPayload
	p := pipeline.New()
	root := pipeline.NewRoot(p)
	_, err := root.Apply(pardo)
	require.NoError(t, err)
	for _, tr := range p.Graph().Transforms {
		if tr.Spec != nil && tr.Spec.URN == pipeline.ParDoURN {
			require.NoError(t, json.Unmarshal(tr.Spec.Payload, &payload))
		}
	}

	fn, err := NewDoFn(payload.DoFn)
	require.NoError(t, err)

	var got []interface{}
	emit := func(v interface{}) { got = append(got, v) }
	require.NoError(t, fn.ProcessElement(context.Background(), "hello", emit))
	assert.Equal(t, []interface{}{"HELLO"}, got)

	err = fn.ProcessElement(context.Background(), 42, emit)
	require.Error(t, err)
}

func TestFilterDoFn(t *testing.T) {
	RegisterDoFn("test.filter", func() DoFn {
		return &filterDoFn[int]{fn: func(n int) bool { return n%2 == 0 }}
	})
	fn, err := NewDoFn("test.filter")
	require.NoError(t, err)

	var got []interface{}
	emit := func(v interface{}) { got = append(got, v) }
	for _, n := range []int{1, 2, 3, 4} {
		require.NoError(t, fn.ProcessElement(context.Background(), n, emit))
	}
	assert.Equal(t, []interface{}{2, 4}, got)
}

func TestFlatMapDoFn(t *testing.T) {
	RegisterDoFn("test.split", func() DoFn {
		return &flatMapDoFn[string, string]{fn: strings.Fields}
	})
	fn, err := NewDoFn("test.split")
	require.NoError(t, err)

	var got []interface{}
	emit := func(v interface{}) { got = append(got, v) }
	require.NoError(t, fn.ProcessElement(context.Background(), "a b c", emit))
	assert.Equal(t, []interface{}{"a", "b", "c"}, got)
}

func TestNewDoFnUnknown(t *testing.T) {
	_, err := NewDoFn("no.such.dofn")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown dofn")
}

func kvCollection(t *testing.T, p *pipeline.Pipeline) *pipeline.Collection {
	t.Helper()
	root := pipeline.NewRoot(p)
	out, err := root.Apply(NewCreate("pairs").WithOutputCoder(&pipeline.CoderSpec{
		URN: coders.KVCoderURN,
		ComponentCoderIDs: []string{
			p.RegisterCoderURN(coders.StringCoderURN),
			p.RegisterCoderURN(coders.VarIntCoderURN),
		},
	}))
	require.NoError(t, err)
	return out
}

func TestGroupByKeyCoders(t *testing.T) {
	p := pipeline.New()
	pairs := kvCollection(t, p)

	grouped, err := pairs.Apply(NewGroupByKey())
	require.NoError(t, err)
	assert.Equal(t, coders.KVCoderURN, grouped.CoderURN())

	g := p.Graph()
	outSpec := g.Coders[g.Collections[grouped.ID()].CoderID]
	require.Equal(t, coders.KVCoderURN, outSpec.URN)
	iterSpec := g.Coders[outSpec.ComponentCoderIDs[1]]
	assert.Equal(t, coders.IterableCoderURN, iterSpec.URN)
	require.NoError(t, p.Validate())
}

func TestGroupByKeyRejectsNonKV(t *testing.T) {
	p := pipeline.New()
	root := pipeline.NewRoot(p)
	out, err := root.Apply(NewCreate("plain", "x"))
	require.NoError(t, err)

	_, err = out.Apply(NewGroupByKey())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not kv-coded")
}

func TestFlattenCollections(t *testing.T) {
	p := pipeline.New()
	root := pipeline.NewRoot(p)

	a, err := root.Apply(NewCreate("a", "1"))
	require.NoError(t, err)
	b, err := root.Apply(NewCreate("b", "2"))
	require.NoError(t, err)

	merged, err := FlattenCollections("merge", a, b)
	require.NoError(t, err)
	assert.Equal(t, a.CoderURN(), merged.CoderURN())

	g := p.Graph()
	var flatten *pipeline.Transform
	for _, tr := range g.Transforms {
		if tr.Spec != nil && tr.Spec.URN == pipeline.FlattenURN {
			flatten = tr
		}
	}
	require.NotNil(t, flatten)
	assert.Len(t, flatten.Inputs, 2)
	require.NoError(t, p.Validate())
}

func TestFlattenRejectsMixedCoders(t *testing.T) {
	p := pipeline.New()
	root := pipeline.NewRoot(p)

	a, err := root.Apply(NewCreate("a", "1").WithOutputCoder(&pipeline.CoderSpec{URN: coders.StringCoderURN}))
	require.NoError(t, err)
	b, err := root.Apply(NewCreate("b", 2).WithOutputCoder(&pipeline.CoderSpec{URN: coders.VarIntCoderURN}))
	require.NoError(t, err)

	_, err = FlattenCollections("merge", a, b)
	require.Error(t, err)
}
