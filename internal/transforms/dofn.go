// Package transforms provides the built-in pipeline transforms: sources
// (Impulse, Create), element-wise processing (ParDo and the Map, Filter and
// FlatMap helpers), grouping (GroupByKey) and union (FlattenCollections).
// Transforms only build graph nodes; execution happens in the worker.
package transforms

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Emitter receives output elements from a DoFn.
type Emitter func(value interface{})

// DoFn is user processing logic invoked by a ParDo. StartBundle runs once
// before the first element of a bundle, ProcessElement once per element,
// and FinishBundle once after the last element. FinishBundle may still
// emit, for example to flush buffered output.
type DoFn interface {
	StartBundle(ctx context.Context) error
	ProcessElement(ctx context.Context, element interface{}, emit Emitter) error
	FinishBundle(ctx context.Context, emit Emitter) error
}

// Configurable is implemented by DoFns that accept a configuration blob
// from the transform payload. Configure runs after construction and before
// the first bundle.
type Configurable interface {
	Configure(config json.RawMessage) error
}

// DoFnBase provides no-op bundle hooks so simple DoFns only implement
// ProcessElement.
type DoFnBase struct{}

func (DoFnBase) StartBundle(context.Context) error           { return nil }
func (DoFnBase) FinishBundle(context.Context, Emitter) error { return nil }

var (
	dofnMu    sync.RWMutex
	dofnNames = map[string]func() DoFn{}
)

// RegisterDoFn registers a DoFn factory under a name so workers can
// construct it from a transform payload. Registering the same name twice
// replaces the previous factory.
func RegisterDoFn(name string, factory func() DoFn) {
	dofnMu.Lock()
	defer dofnMu.Unlock()
	dofnNames[name] = factory
}

// NewDoFn constructs a fresh DoFn instance for a registered name.
func NewDoFn(name string) (DoFn, error) {
	dofnMu.RLock()
	factory, ok := dofnNames[name]
	dofnMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown dofn: %s", name)
	}
	return factory(), nil
}
