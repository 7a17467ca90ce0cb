package coders

import (
	"fmt"
	"sync"
)

// Factory constructs a coder from its resolved component coders. Leaf
// coders receive an empty slice.
type Factory func(components []Coder) (Coder, error)

// Registry maps coder URNs to factories. A worker holds a registry so it
// can reconstruct coders named in a bundle descriptor; applications register
// custom coders into the default registry before building pipelines.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns a registry pre-populated with all built-in coders.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}

	r.Register(BytesCoderURN, leaf(BytesCoder{}))
	r.Register(StringCoderURN, leaf(StringCoder{}))
	r.Register(VarIntCoderURN, leaf(VarIntCoder{}))
	r.Register(BoolCoderURN, leaf(BoolCoder{}))
	r.Register(DoubleCoderURN, leaf(DoubleCoder{}))
	r.Register(UnitCoderURN, leaf(UnitCoder{}))
	r.Register(JSONCoderURN, leaf(JSONCoder{}))

	r.Register(KVCoderURN, func(components []Coder) (Coder, error) {
		if len(components) != 2 {
			return nil, fmt.Errorf("kv coder requires 2 components, got %d", len(components))
		}
		return KVCoder{KeyCoder: components[0], ValueCoder: components[1]}, nil
	})
	r.Register(IterableCoderURN, func(components []Coder) (Coder, error) {
		if len(components) != 1 {
			return nil, fmt.Errorf("iterable coder requires 1 component, got %d", len(components))
		}
		return IterableCoder{ElemCoder: components[0]}, nil
	})
	r.Register(NullableCoderURN, func(components []Coder) (Coder, error) {
		if len(components) != 1 {
			return nil, fmt.Errorf("nullable coder requires 1 component, got %d", len(components))
		}
		return NullableCoder{ElemCoder: components[0]}, nil
	})
	r.Register(GzipCoderURN, func(components []Coder) (Coder, error) {
		if len(components) != 1 {
			return nil, fmt.Errorf("gzip coder requires 1 component, got %d", len(components))
		}
		return GzipCoder{ElemCoder: components[0]}, nil
	})

	return r
}

// leaf adapts a stateless coder into a Factory that rejects components.
func leaf(c Coder) Factory {
	return func(components []Coder) (Coder, error) {
		if len(components) != 0 {
			return nil, fmt.Errorf("coder %s takes no components, got %d", c.URN(), len(components))
		}
		return c, nil
	}
}

// Register adds or replaces the factory for a URN. Re-registering a URN
// replaces the previous factory; tests rely on this to install recording
// coders.
func (r *Registry) Register(urn string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[urn] = f
}

// Build constructs the coder for a URN with the given component coders.
func (r *Registry) Build(urn string, components []Coder) (Coder, error) {
	r.mu.RLock()
	f, ok := r.factories[urn]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown coder urn: %s", urn)
	}
	coder, err := f(components)
	if err != nil {
		return nil, fmt.Errorf("failed to build coder %s: %w", urn, err)
	}
	return coder, nil
}

// defaultRegistry serves pipeline construction and in-process execution.
var defaultRegistry = NewRegistry()

// Default returns the process-wide registry.
func Default() *Registry {
	return defaultRegistry
}

// RegisterCustom registers an application coder under the custom URN
// namespace and returns the full URN to record in pipeline graphs.
func RegisterCustom(name string, f Factory) string {
	urn := CustomCoderURNPrefix + name
	defaultRegistry.Register(urn, f)
	return urn
}
