package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/joistio/joist/internal/coders"
	"github.com/joistio/joist/internal/logging"
	"github.com/joistio/joist/internal/pipeline"
	"github.com/joistio/joist/internal/transforms"
)

// ElementProcessor receives one element. Operators implement it alongside
// the bundle lifecycle; capture sinks implement only this.
type ElementProcessor interface {
	Process(ctx context.Context, element interface{}) error
}

// Operator is a transform instantiated for execution. StartBundle runs
// before any element, Process once per input element, FinishBundle after
// the last element. FinishBundle may still push elements downstream.
type Operator interface {
	ElementProcessor
	StartBundle(ctx context.Context) error
	FinishBundle(ctx context.Context) error
}

// Receiver fans one collection out to the operators consuming it.
type Receiver struct {
	consumers []ElementProcessor
}

// NewReceiver builds a receiver over a set of consumers.
func NewReceiver(consumers ...ElementProcessor) *Receiver {
	return &Receiver{consumers: consumers}
}

// Receive delivers an element to every consumer.
func (r *Receiver) Receive(ctx context.Context, element interface{}) error {
	for _, c := range r.consumers {
		if err := c.Process(ctx, element); err != nil {
			return err
		}
	}
	return nil
}

// OperatorContext carries everything a factory needs to instantiate an
// operator for one transform.
type OperatorContext struct {
	TransformID string
	Transform   *pipeline.Transform
	Descriptor  *ProcessBundleDescriptor
	Out         *Receiver
	Coders      *coders.Registry
	Logger      *logging.Logger
}

// OperatorFactory builds an operator for a transform URN.
type OperatorFactory func(opCtx *OperatorContext) (Operator, error)

// OperatorRegistry maps transform URNs to operator factories.
type OperatorRegistry struct {
	mu        sync.RWMutex
	factories map[string]OperatorFactory
}

// NewOperatorRegistry returns a registry with all built-in operators.
func NewOperatorRegistry() *OperatorRegistry {
	r := &OperatorRegistry{factories: map[string]OperatorFactory{}}
	r.Register(pipeline.ImpulseURN, newImpulseOperator)
	r.Register(pipeline.CreateURN, newCreateOperator)
	r.Register(pipeline.ParDoURN, newParDoOperator)
	r.Register(pipeline.FlattenURN, newFlattenOperator)
	r.Register(pipeline.GroupByKeyURN, newGroupByKeyOperator)
	r.Register(pipeline.RecordingURN, newRecordingOperator)
	return r
}

// Register adds or replaces the factory for a URN.
func (r *OperatorRegistry) Register(urn string, factory OperatorFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[urn] = factory
}

// Build instantiates the operator for the context's transform.
func (r *OperatorRegistry) Build(opCtx *OperatorContext) (Operator, error) {
	if opCtx.Transform.Spec == nil {
		return nil, fmt.Errorf("transform %s has no spec", opCtx.TransformID)
	}
	urn := opCtx.Transform.Spec.URN
	r.mu.RLock()
	factory, ok := r.factories[urn]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no operator for urn %s (transform %s)", urn, opCtx.TransformID)
	}
	return factory(opCtx)
}

// sourceOperator marks operators that produce elements without input; the
// bundle processor triggers them once per bundle.
type sourceOperator interface {
	Trigger(ctx context.Context) error
}

type impulseOperator struct {
	out *Receiver
}

func newImpulseOperator(opCtx *OperatorContext) (Operator, error) {
	return &impulseOperator{out: opCtx.Out}, nil
}

func (o *impulseOperator) StartBundle(context.Context) error  { return nil }
func (o *impulseOperator) FinishBundle(context.Context) error { return nil }

func (o *impulseOperator) Process(ctx context.Context, _ interface{}) error {
	return o.Trigger(ctx)
}

func (o *impulseOperator) Trigger(ctx context.Context) error {
	return o.out.Receive(ctx, []byte{})
}

type createOperator struct {
	out    *Receiver
	values []interface{}
}

func newCreateOperator(opCtx *OperatorContext) (Operator, error) {
	var payload transforms.CreatePayload
	raw := opCtx.Transform.Spec.Payload
	// The payload is either the CreatePayload envelope or, for hand-built
	// descriptors, a bare JSON array of values.
	if err := json.Unmarshal(raw, &payload); err != nil {
		var bare []json.RawMessage
		if err2 := json.Unmarshal(raw, &bare); err2 != nil {
			return nil, fmt.Errorf("create %s: decode payload: %w", opCtx.TransformID, err)
		}
		payload.Values = bare
	}

	values := make([]interface{}, 0, len(payload.Values))
	for i, raw := range payload.Values {
		var v interface{}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("create %s: decode value %d: %w", opCtx.TransformID, i, err)
		}
		values = append(values, v)
	}
	return &createOperator{out: opCtx.Out, values: values}, nil
}

func (o *createOperator) StartBundle(context.Context) error  { return nil }
func (o *createOperator) FinishBundle(context.Context) error { return nil }

func (o *createOperator) Process(ctx context.Context, _ interface{}) error {
	return o.Trigger(ctx)
}

func (o *createOperator) Trigger(ctx context.Context) error {
	for _, v := range o.values {
		if err := o.out.Receive(ctx, v); err != nil {
			return err
		}
	}
	return nil
}

type parDoOperator struct {
	name string
	fn   transforms.DoFn
	out  *Receiver
}

func newParDoOperator(opCtx *OperatorContext) (Operator, error) {
	var payload transforms.ParDoPayload
	if err := json.Unmarshal(opCtx.Transform.Spec.Payload, &payload); err != nil {
		return nil, fmt.Errorf("pardo %s: decode payload: %w", opCtx.TransformID, err)
	}
	fn, err := transforms.NewDoFn(payload.DoFn)
	if err != nil {
		return nil, fmt.Errorf("pardo %s: %w", opCtx.TransformID, err)
	}
	if len(payload.Config) > 0 {
		configurable, ok := fn.(transforms.Configurable)
		if !ok {
			return nil, fmt.Errorf("pardo %s: dofn %s does not accept config", opCtx.TransformID, payload.DoFn)
		}
		if err := configurable.Configure(payload.Config); err != nil {
			return nil, err
		}
	}
	return &parDoOperator{name: opCtx.Transform.UniqueName, fn: fn, out: opCtx.Out}, nil
}

func (o *parDoOperator) StartBundle(ctx context.Context) error {
	return o.fn.StartBundle(ctx)
}

func (o *parDoOperator) Process(ctx context.Context, element interface{}) error {
	emitter := newEmitter(ctx, o.out)
	if err := o.fn.ProcessElement(ctx, element, emitter.emit); err != nil {
		return fmt.Errorf("%s: %w", o.name, err)
	}
	return emitter.err
}

func (o *parDoOperator) FinishBundle(ctx context.Context) error {
	emitter := newEmitter(ctx, o.out)
	if err := o.fn.FinishBundle(ctx, emitter.emit); err != nil {
		return fmt.Errorf("%s: %w", o.name, err)
	}
	return emitter.err
}

// receiverEmitter adapts a Receiver to the DoFn emit callback, holding the
// first downstream error.
type receiverEmitter struct {
	ctx context.Context
	out *Receiver
	err error
}

func newEmitter(ctx context.Context, out *Receiver) *receiverEmitter {
	return &receiverEmitter{ctx: ctx, out: out}
}

func (e *receiverEmitter) emit(value interface{}) {
	if e.err != nil {
		return
	}
	e.err = e.out.Receive(e.ctx, value)
}

type flattenOperator struct {
	out *Receiver
}

func newFlattenOperator(opCtx *OperatorContext) (Operator, error) {
	return &flattenOperator{out: opCtx.Out}, nil
}

func (o *flattenOperator) StartBundle(context.Context) error  { return nil }
func (o *flattenOperator) FinishBundle(context.Context) error { return nil }

func (o *flattenOperator) Process(ctx context.Context, element interface{}) error {
	return o.out.Receive(ctx, element)
}

// groupByKeyOperator groups by the encoded form of the key so any
// key type with a coder gets exact grouping. Groups are emitted during
// FinishBundle, which runs before downstream operators finish.
type groupByKeyOperator struct {
	out      *Receiver
	keyCoder coders.Coder

	order  []string
	groups map[string]*group
}

type group struct {
	key    interface{}
	values []interface{}
}

func newGroupByKeyOperator(opCtx *OperatorContext) (Operator, error) {
	keyCoder, err := gbkKeyCoder(opCtx)
	if err != nil {
		return nil, err
	}
	return &groupByKeyOperator{
		out:      opCtx.Out,
		keyCoder: keyCoder,
		groups:   map[string]*group{},
	}, nil
}

// gbkKeyCoder resolves the key coder from the input collection's KV coder.
// Descriptors without coder tables fall back to the JSON coder, which is
// enough for string and numeric keys.
func gbkKeyCoder(opCtx *OperatorContext) (coders.Coder, error) {
	for _, cid := range opCtx.Transform.Inputs {
		coll, ok := opCtx.Descriptor.Collections[cid]
		if !ok {
			continue
		}
		spec, ok := opCtx.Descriptor.Coders[coll.CoderID]
		if !ok || spec.URN != coders.KVCoderURN {
			return nil, fmt.Errorf("group_by_key %s: input %s is not kv-coded", opCtx.TransformID, cid)
		}
		return opCtx.Descriptor.buildCoder(spec.ComponentCoderIDs[0], opCtx.Coders)
	}
	return opCtx.Coders.Build(coders.JSONCoderURN, nil)
}

func (o *groupByKeyOperator) StartBundle(context.Context) error {
	o.order = nil
	o.groups = map[string]*group{}
	return nil
}

func (o *groupByKeyOperator) Process(_ context.Context, element interface{}) error {
	kv, ok := element.(coders.KV)
	if !ok {
		return fmt.Errorf("group_by_key: element is %T, want KV", element)
	}
	encoded, err := coders.EncodeToBytes(o.keyCoder, kv.Key)
	if err != nil {
		return fmt.Errorf("group_by_key: encode key: %w", err)
	}
	g, ok := o.groups[string(encoded)]
	if !ok {
		g = &group{key: kv.Key}
		o.groups[string(encoded)] = g
		o.order = append(o.order, string(encoded))
	}
	g.values = append(g.values, kv.Value)
	return nil
}

func (o *groupByKeyOperator) FinishBundle(ctx context.Context) error {
	for _, encoded := range o.order {
		g := o.groups[encoded]
		if err := o.out.Receive(ctx, coders.KV{Key: g.key, Value: g.values}); err != nil {
			return err
		}
	}
	o.order = nil
	o.groups = map[string]*group{}
	return nil
}

// captureSink collects the elements of an external output collection.
type captureSink struct {
	mu       *sync.Mutex
	elements *[]interface{}
}

func (s *captureSink) Process(_ context.Context, element interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	*s.elements = append(*s.elements, element)
	return nil
}
