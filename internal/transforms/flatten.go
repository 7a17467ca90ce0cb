package transforms

import (
	"fmt"

	"github.com/joistio/joist/internal/pipeline"
)

// FlattenCollections merges several collections into one. All inputs must
// share an element coder; the output reuses the first input's coder. This
// bypasses the single-input Apply path since flatten is the one built-in
// with multiple inputs.
func FlattenCollections(name string, inputs ...*pipeline.Collection) (*pipeline.Collection, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("flatten %s: no inputs", name)
	}
	p := inputs[0].Pipeline()
	graph := p.Graph()

	first, ok := graph.Collections[inputs[0].ID()]
	if !ok {
		return nil, fmt.Errorf("flatten %s: unknown collection %s", name, inputs[0].ID())
	}
	for _, in := range inputs[1:] {
		if in.Pipeline() != p {
			return nil, fmt.Errorf("flatten %s: inputs belong to different pipelines", name)
		}
		coll, ok := graph.Collections[in.ID()]
		if !ok {
			return nil, fmt.Errorf("flatten %s: unknown collection %s", name, in.ID())
		}
		if coll.CoderID != first.CoderID {
			return nil, fmt.Errorf("flatten %s: input %s has coder %s, want %s", name, in.ID(), coll.CoderID, first.CoderID)
		}
	}

	outID := p.CreateCollection(name+".out", first.CoderID)

	proto := &pipeline.Transform{
		UniqueName:    name,
		Spec:          &pipeline.FunctionSpec{URN: pipeline.FlattenURN},
		Inputs:        map[string]string{},
		Outputs:       map[string]string{"out": outID},
		EnvironmentID: pipeline.DefaultEnvironmentID,
	}
	for i, in := range inputs {
		proto.Inputs[fmt.Sprintf("input%d", i)] = in.ID()
	}
	p.RegisterTransform(proto)

	return pipeline.NewCollection(p, outID, inputs[0].CoderURN()), nil
}
