package worker

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/joistio/joist/internal/coders"
	"github.com/joistio/joist/internal/logging"
)

// BundleProcessor executes bundles for one descriptor. Operators are wired
// once at construction; Process may be called repeatedly, one bundle at a
// time.
//
// Construction is independent of the descriptor's map iteration order:
// transforms are ordered topologically by their collection edges, so a
// consumer always exists before its producer's receiver is built.
type BundleProcessor struct {
	descriptor *ProcessBundleDescriptor
	logger     *logging.Logger

	// topo holds transform ids, producers before consumers.
	topo      []string
	operators map[string]Operator
	roots     []string

	externalIn  map[string]*Receiver
	externalOut map[string]*[]interface{}

	mu sync.Mutex
}

// NewBundleProcessor wires the descriptor's transforms into operators
// using the registry's factories.
func NewBundleProcessor(descriptor *ProcessBundleDescriptor, registry *OperatorRegistry, coderRegistry *coders.Registry) (*BundleProcessor, error) {
	b := &BundleProcessor{
		descriptor:  descriptor,
		logger:      logging.GetLogger("worker.bundle"),
		operators:   map[string]Operator{},
		externalIn:  map[string]*Receiver{},
		externalOut: map[string]*[]interface{}{},
	}

	topo, err := topologicalOrder(descriptor)
	if err != nil {
		return nil, err
	}
	b.topo = topo

	consumers := map[string][]string{}
	for tid, t := range descriptor.Transforms {
		for _, cid := range t.Inputs {
			consumers[cid] = append(consumers[cid], tid)
		}
		if len(t.Inputs) == 0 {
			b.roots = append(b.roots, tid)
		}
	}
	sort.Strings(b.roots)

	captured := map[string]bool{}
	for _, cid := range descriptor.ExternalOutputs() {
		captured[cid] = true
	}

	// Build sinks first so each producer's receiver can reference its
	// consumers' operators.
	for i := len(topo) - 1; i >= 0; i-- {
		tid := topo[i]
		t := descriptor.Transforms[tid]

		out := &Receiver{}
		for _, cid := range t.Outputs {
			for _, consumer := range sortedStrings(consumers[cid]) {
				op, ok := b.operators[consumer]
				if !ok {
					return nil, fmt.Errorf("consumer %s of %s not yet constructed", consumer, cid)
				}
				out.consumers = append(out.consumers, op)
			}
			if captured[cid] {
				elements := &[]interface{}{}
				b.externalOut[cid] = elements
				out.consumers = append(out.consumers, &captureSink{mu: &b.mu, elements: elements})
			}
		}

		op, err := registry.Build(&OperatorContext{
			TransformID: tid,
			Transform:   t,
			Descriptor:  descriptor,
			Out:         out,
			Coders:      coderRegistry,
			Logger:      b.logger,
		})
		if err != nil {
			return nil, err
		}
		b.operators[tid] = op
	}

	for _, cid := range descriptor.ExternalInputs() {
		recv := &Receiver{}
		for _, consumer := range sortedStrings(consumers[cid]) {
			recv.consumers = append(recv.consumers, b.operators[consumer])
		}
		b.externalIn[cid] = recv
	}

	return b, nil
}

// topologicalOrder sorts transform ids so producers precede consumers.
// Ties break lexicographically to keep execution deterministic.
func topologicalOrder(descriptor *ProcessBundleDescriptor) ([]string, error) {
	produced := descriptor.producedCollections()

	indegree := map[string]int{}
	dependents := map[string][]string{}
	for tid, t := range descriptor.Transforms {
		indegree[tid] = 0
		for _, cid := range t.Inputs {
			if producer, ok := produced[cid]; ok {
				indegree[tid]++
				dependents[producer] = append(dependents[producer], tid)
			}
		}
	}

	var ready []string
	for tid, deg := range indegree {
		if deg == 0 {
			ready = append(ready, tid)
		}
	}
	sort.Strings(ready)

	var order []string
	for len(ready) > 0 {
		tid := ready[0]
		ready = ready[1:]
		order = append(order, tid)

		next := sortedStrings(dependents[tid])
		var unlocked []string
		for _, dep := range next {
			indegree[dep]--
			if indegree[dep] == 0 {
				unlocked = append(unlocked, dep)
			}
		}
		ready = append(ready, unlocked...)
		sort.Strings(ready)
	}

	if len(order) != len(descriptor.Transforms) {
		return nil, fmt.Errorf("descriptor %s has a transform cycle", descriptor.ID)
	}
	return order, nil
}

func sortedStrings(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}

// Process runs one bundle: operators start sinks-first, sources emit and
// external inputs stream through, then operators finish sources-first so
// buffering operators can flush into still-open downstream operators.
// It returns the elements captured on external output collections.
func (b *BundleProcessor) Process(ctx context.Context, bundleID string, inputs map[string][]interface{}) (map[string][]interface{}, error) {
	b.mu.Lock()
	for _, elements := range b.externalOut {
		*elements = nil
	}
	b.mu.Unlock()

	b.logger.Debug("processing bundle %s (%s)", bundleID, b.descriptor.ID)

	for i := len(b.topo) - 1; i >= 0; i-- {
		if err := b.operators[b.topo[i]].StartBundle(ctx); err != nil {
			return nil, fmt.Errorf("bundle %s: start %s: %w", bundleID, b.topo[i], err)
		}
	}

	for _, tid := range b.roots {
		op := b.operators[tid]
		source, ok := op.(sourceOperator)
		if !ok {
			continue
		}
		if err := source.Trigger(ctx); err != nil {
			return nil, fmt.Errorf("bundle %s: source %s: %w", bundleID, tid, err)
		}
	}

	for _, cid := range b.descriptor.ExternalInputs() {
		recv := b.externalIn[cid]
		for _, element := range inputs[cid] {
			if err := recv.Receive(ctx, element); err != nil {
				return nil, fmt.Errorf("bundle %s: input %s: %w", bundleID, cid, err)
			}
		}
	}

	for _, tid := range b.topo {
		if err := b.operators[tid].FinishBundle(ctx); err != nil {
			return nil, fmt.Errorf("bundle %s: finish %s: %w", bundleID, tid, err)
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	outputs := make(map[string][]interface{}, len(b.externalOut))
	for cid, elements := range b.externalOut {
		outputs[cid] = append([]interface{}(nil), *elements...)
	}
	return outputs, nil
}
