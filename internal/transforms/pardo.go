package transforms

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/joistio/joist/internal/coders"
	"github.com/joistio/joist/internal/pipeline"
)

// ParDoPayload is the wire payload of a ParDo transform. DoFn names the
// registered factory and Config is an opaque blob handed to the DoFn if it
// implements Configurable.
type ParDoPayload struct {
	DoFn   string          `json:"dofn"`
	Config json.RawMessage `json:"config,omitempty"`
}

// ParDo applies a registered DoFn to every element of its input.
type ParDo struct {
	name        string
	fnName      string
	config      json.RawMessage
	outputCoder *pipeline.CoderSpec
}

// NewParDo builds a ParDo invoking the DoFn registered under fnName. The
// output coder defaults to JSON.
func NewParDo(name, fnName string) *ParDo {
	return &ParDo{
		name:        name,
		fnName:      fnName,
		outputCoder: &pipeline.CoderSpec{URN: coders.JSONCoderURN},
	}
}

// WithConfig attaches a configuration value, marshalled to JSON, to the
// transform payload. Panics if the value cannot be marshalled; configs are
// plain structs built at pipeline-construction time.
func (d *ParDo) WithConfig(config interface{}) *ParDo {
	data, err := json.Marshal(config)
	if err != nil {
		panic(fmt.Sprintf("pardo %s: marshal config: %v", d.name, err))
	}
	d.config = data
	return d
}

// WithOutputCoder overrides the output collection's coder.
func (d *ParDo) WithOutputCoder(spec *pipeline.CoderSpec) *ParDo {
	d.outputCoder = spec
	return d
}

func (d *ParDo) Name() string { return d.name }

func (d *ParDo) Expand(input *pipeline.Collection, p *pipeline.Pipeline, proto *pipeline.Transform) (*pipeline.Collection, error) {
	// A ParDo needs elements to react to. Applied against the bare root it
	// gets an impulse in front so the DoFn fires exactly once.
	if input.Kind() == pipeline.KindRoot {
		impulseOut, err := input.Apply(NewImpulse())
		if err != nil {
			return nil, err
		}
		proto.Inputs["input"] = impulseOut.ID()
	}

	payload, err := json.Marshal(ParDoPayload{DoFn: d.fnName, Config: d.config})
	if err != nil {
		return nil, err
	}
	proto.Spec = &pipeline.FunctionSpec{URN: pipeline.ParDoURN, Payload: payload}

	coderID := p.RegisterCoder(d.outputCoder)
	collID := p.CreateCollection(proto.UniqueName+".out", coderID)
	return pipeline.NewCollection(p, collID, d.outputCoder.URN), nil
}

type mapDoFn[T, O any] struct {
	DoFnBase
	fn func(T) O
}

func (m *mapDoFn[T, O]) ProcessElement(_ context.Context, element interface{}, emit Emitter) error {
	v, ok := element.(T)
	if !ok {
		return fmt.Errorf("map: element is %T, not %T", element, v)
	}
	emit(m.fn(v))
	return nil
}

// Map builds a ParDo from a plain function, registering it under a unique
// derived name. The resulting transform only executes in-process.
func Map[T, O any](name string, fn func(T) O) *ParDo {
	fnName := fmt.Sprintf("%s/%s", name, uuid.NewString())
	RegisterDoFn(fnName, func() DoFn { return &mapDoFn[T, O]{fn: fn} })
	return NewParDo(name, fnName)
}

type filterDoFn[T any] struct {
	DoFnBase
	fn func(T) bool
}

func (f *filterDoFn[T]) ProcessElement(_ context.Context, element interface{}, emit Emitter) error {
	v, ok := element.(T)
	if !ok {
		return fmt.Errorf("filter: element is %T, not %T", element, v)
	}
	if f.fn(v) {
		emit(v)
	}
	return nil
}

// Filter builds a ParDo keeping only elements for which fn returns true.
func Filter[T any](name string, fn func(T) bool) *ParDo {
	fnName := fmt.Sprintf("%s/%s", name, uuid.NewString())
	RegisterDoFn(fnName, func() DoFn { return &filterDoFn[T]{fn: fn} })
	return NewParDo(name, fnName)
}

type flatMapDoFn[T, O any] struct {
	DoFnBase
	fn func(T) []O
}

func (f *flatMapDoFn[T, O]) ProcessElement(_ context.Context, element interface{}, emit Emitter) error {
	v, ok := element.(T)
	if !ok {
		return fmt.Errorf("flatmap: element is %T, not %T", element, v)
	}
	for _, out := range f.fn(v) {
		emit(out)
	}
	return nil
}

// FlatMap builds a ParDo emitting zero or more outputs per element.
func FlatMap[T, O any](name string, fn func(T) []O) *ParDo {
	fnName := fmt.Sprintf("%s/%s", name, uuid.NewString())
	RegisterDoFn(fnName, func() DoFn { return &flatMapDoFn[T, O]{fn: fn} })
	return NewParDo(name, fnName)
}
