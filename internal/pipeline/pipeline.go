package pipeline

import (
	"fmt"
	"sync"

	"github.com/joistio/joist/internal/coders"
	"github.com/joistio/joist/internal/logging"
)

// Pipeline is a thread-safe builder around a Graph. Ids are sequential per
// kind, which keeps serialized graphs deterministic and diffable.
type Pipeline struct {
	mu     sync.Mutex
	graph  *Graph
	logger *logging.Logger

	transformCount  int
	collectionCount int
	coderCount      int
}

// New creates an empty pipeline.
func New() *Pipeline {
	return &Pipeline{
		graph:  NewGraph(),
		logger: logging.GetLogger("pipeline"),
	}
}

// Graph returns the underlying graph. Callers must not mutate it after the
// pipeline has been handed to a runner.
func (p *Pipeline) Graph() *Graph {
	return p.graph
}

// RegisterCoder records a coder spec and returns its id. Identical specs
// are deduplicated.
func (p *Pipeline) RegisterCoder(spec *CoderSpec) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	for id, existing := range p.graph.Coders {
		if existing.URN == spec.URN && equalStrings(existing.ComponentCoderIDs, spec.ComponentCoderIDs) {
			return id
		}
	}

	p.coderCount++
	id := fmt.Sprintf("coder%d", p.coderCount)
	p.graph.Coders[id] = spec
	return id
}

// RegisterCoderURN is shorthand for registering a leaf coder by URN.
func (p *Pipeline) RegisterCoderURN(urn string) string {
	return p.RegisterCoder(&CoderSpec{URN: urn})
}

// CreateCollection registers a new bounded collection with the given coder
// id and returns its spec id.
func (p *Pipeline) CreateCollection(name, coderID string) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.collectionCount++
	id := fmt.Sprintf("c%d", p.collectionCount)
	p.graph.Collections[id] = &CollectionSpec{
		UniqueName:          name,
		CoderID:             coderID,
		IsBounded:           true,
		WindowingStrategyID: GlobalWindowingStrategyID,
	}
	return id
}

// RegisterTransform records a transform proto and returns its id.
func (p *Pipeline) RegisterTransform(t *Transform) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.transformCount++
	id := fmt.Sprintf("t%d", p.transformCount)
	p.graph.Transforms[id] = t
	if len(t.Inputs) == 0 {
		p.graph.RootTransformIDs = append(p.graph.RootTransformIDs, id)
	}
	return id
}

// ApplyTransform expands a transform against an input collection: it
// prepares the transform proto with the input wired in, lets the transform
// fill in its spec and outputs, and registers the result.
func (p *Pipeline) ApplyTransform(t PTransform, input *Collection) (*Collection, error) {
	proto := &Transform{
		UniqueName:    fmt.Sprintf("%s/%d", t.Name(), p.nextTransformOrdinal()),
		Inputs:        map[string]string{},
		Outputs:       map[string]string{},
		EnvironmentID: DefaultEnvironmentID,
	}
	if input.kind != KindRoot {
		proto.Inputs["input"] = input.id
	}

	output, err := t.Expand(input, p, proto)
	if err != nil {
		return nil, fmt.Errorf("failed to expand %s: %w", t.Name(), err)
	}

	if output != nil && output.id != "" {
		proto.Outputs["out"] = output.id
	}

	id := p.RegisterTransform(proto)
	p.logger.Debug("applied transform %s (%s)", proto.UniqueName, id)

	return output, nil
}

// nextTransformOrdinal returns a unique ordinal for transform naming
// without consuming a transform id.
func (p *Pipeline) nextTransformOrdinal() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.transformCount + 1
}

// Validate checks graph consistency: every transform input/output must name
// a registered collection and every collection a registered coder.
func (p *Pipeline) Validate() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for tid, t := range p.graph.Transforms {
		for name, cid := range t.Inputs {
			if _, ok := p.graph.Collections[cid]; !ok {
				return fmt.Errorf("transform %s input %q references unknown collection %s", tid, name, cid)
			}
		}
		for name, cid := range t.Outputs {
			if _, ok := p.graph.Collections[cid]; !ok {
				return fmt.Errorf("transform %s output %q references unknown collection %s", tid, name, cid)
			}
		}
	}

	for cid, c := range p.graph.Collections {
		if _, ok := p.graph.Coders[c.CoderID]; !ok {
			return fmt.Errorf("collection %s references unknown coder %s", cid, c.CoderID)
		}
	}

	return nil
}

// BuildCoder resolves a coder id from the graph into a usable coder,
// recursively constructing components through the registry.
func (p *Pipeline) BuildCoder(coderID string, registry *coders.Registry) (coders.Coder, error) {
	return BuildCoder(p.graph, coderID, registry)
}

// BuildCoder resolves a coder id against an arbitrary graph.
func BuildCoder(g *Graph, coderID string, registry *coders.Registry) (coders.Coder, error) {
	spec, ok := g.Coders[coderID]
	if !ok {
		return nil, fmt.Errorf("unknown coder id: %s", coderID)
	}

	components := make([]coders.Coder, 0, len(spec.ComponentCoderIDs))
	for _, cid := range spec.ComponentCoderIDs {
		c, err := BuildCoder(g, cid, registry)
		if err != nil {
			return nil, err
		}
		components = append(components, c)
	}

	return registry.Build(spec.URN, components)
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
