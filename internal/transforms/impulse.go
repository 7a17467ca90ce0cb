package transforms

import (
	"github.com/joistio/joist/internal/coders"
	"github.com/joistio/joist/internal/pipeline"
)

// Impulse emits a single empty byte slice, the conventional way to kick
// off a pipeline whose real source logic lives in a downstream ParDo.
type Impulse struct{}

// NewImpulse builds an Impulse transform. It applies against the pipeline
// root.
func NewImpulse() *Impulse { return &Impulse{} }

func (*Impulse) Name() string { return "impulse" }

func (*Impulse) Expand(_ *pipeline.Collection, p *pipeline.Pipeline, proto *pipeline.Transform) (*pipeline.Collection, error) {
	proto.Spec = &pipeline.FunctionSpec{URN: pipeline.ImpulseURN}

	coderID := p.RegisterCoderURN(coders.BytesCoderURN)
	collID := p.CreateCollection(proto.UniqueName+".out", coderID)
	return pipeline.NewCollection(p, collID, coders.BytesCoderURN), nil
}
