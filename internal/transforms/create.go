package transforms

import (
	"encoding/json"
	"fmt"

	"github.com/joistio/joist/internal/coders"
	"github.com/joistio/joist/internal/pipeline"
)

// CreatePayload carries the literal elements of a Create transform,
// JSON-encoded one by one so heterogeneous values survive the trip.
type CreatePayload struct {
	Values []json.RawMessage `json:"values"`
}

// Create emits a fixed list of elements. Useful in tests and as the head
// of small pipelines.
type Create struct {
	name   string
	values []interface{}
	coder  *pipeline.CoderSpec
}

// NewCreate builds a Create emitting the given values. The output coder
// defaults to JSON.
func NewCreate(name string, values ...interface{}) *Create {
	return &Create{
		name:   name,
		values: values,
		coder:  &pipeline.CoderSpec{URN: coders.JSONCoderURN},
	}
}

// WithOutputCoder overrides the output collection's coder.
func (c *Create) WithOutputCoder(spec *pipeline.CoderSpec) *Create {
	c.coder = spec
	return c
}

func (c *Create) Name() string { return c.name }

func (c *Create) Expand(_ *pipeline.Collection, p *pipeline.Pipeline, proto *pipeline.Transform) (*pipeline.Collection, error) {
	payload := CreatePayload{Values: make([]json.RawMessage, 0, len(c.values))}
	for i, v := range c.values {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("create %s: marshal value %d: %w", c.name, i, err)
		}
		payload.Values = append(payload.Values, data)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	proto.Spec = &pipeline.FunctionSpec{URN: pipeline.CreateURN, Payload: data}

	coderID := p.RegisterCoder(c.coder)
	collID := p.CreateCollection(proto.UniqueName+".out", coderID)
	return pipeline.NewCollection(p, collID, c.coder.URN), nil
}
