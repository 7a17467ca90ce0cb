package transforms

import (
	"fmt"

	"github.com/joistio/joist/internal/coders"
	"github.com/joistio/joist/internal/pipeline"
)

// GroupByKey groups a KV collection by key, producing one KV per distinct
// key with an iterable of all values seen for it. The input collection
// must be coded with the KV coder so keys have a stable encoded form to
// group on.
type GroupByKey struct{}

// NewGroupByKey builds a GroupByKey transform.
func NewGroupByKey() *GroupByKey { return &GroupByKey{} }

func (*GroupByKey) Name() string { return "group_by_key" }

func (*GroupByKey) Expand(input *pipeline.Collection, p *pipeline.Pipeline, proto *pipeline.Transform) (*pipeline.Collection, error) {
	graph := p.Graph()
	coll, ok := graph.Collections[input.ID()]
	if !ok {
		return nil, fmt.Errorf("group_by_key: unknown input collection %s", input.ID())
	}
	spec, ok := graph.Coders[coll.CoderID]
	if !ok || spec.URN != coders.KVCoderURN {
		return nil, fmt.Errorf("group_by_key: input %s is not kv-coded", input.ID())
	}
	keyID, valueID := spec.ComponentCoderIDs[0], spec.ComponentCoderIDs[1]

	proto.Spec = &pipeline.FunctionSpec{URN: pipeline.GroupByKeyURN}

	iterID := p.RegisterCoder(&pipeline.CoderSpec{
		URN:               coders.IterableCoderURN,
		ComponentCoderIDs: []string{valueID},
	})
	outCoderID := p.RegisterCoder(&pipeline.CoderSpec{
		URN:               coders.KVCoderURN,
		ComponentCoderIDs: []string{keyID, iterID},
	})
	collID := p.CreateCollection(proto.UniqueName+".out", outCoderID)
	return pipeline.NewCollection(p, collID, coders.KVCoderURN), nil
}
