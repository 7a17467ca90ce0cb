// Package worker executes pipeline bundles. A runner hands a worker a
// ProcessBundleDescriptor naming a subgraph of transforms; the worker wires
// the transforms into operators and streams elements through them.
package worker

import (
	"fmt"
	"sort"

	"github.com/joistio/joist/internal/coders"
	"github.com/joistio/joist/internal/pipeline"
)

// ProcessBundleDescriptor is the unit of work a runner registers with a
// worker: a self-contained subgraph of transforms plus the collections and
// coders they reference.
type ProcessBundleDescriptor struct {
	ID          string                              `json:"id"`
	Transforms  map[string]*pipeline.Transform      `json:"transforms"`
	Collections map[string]*pipeline.CollectionSpec `json:"collections,omitempty"`
	Coders      map[string]*pipeline.CoderSpec      `json:"coders,omitempty"`
}

// producedCollections returns the set of collection ids written by
// transforms inside the descriptor.
func (d *ProcessBundleDescriptor) producedCollections() map[string]string {
	produced := map[string]string{}
	for tid, t := range d.Transforms {
		for _, cid := range t.Outputs {
			produced[cid] = tid
		}
	}
	return produced
}

// ExternalInputs returns the collection ids consumed inside the descriptor
// but produced outside it, sorted for determinism. The runner feeds these
// when processing a bundle.
func (d *ProcessBundleDescriptor) ExternalInputs() []string {
	produced := d.producedCollections()
	seen := map[string]bool{}
	var external []string
	for _, t := range d.Transforms {
		for _, cid := range t.Inputs {
			if _, ok := produced[cid]; !ok && !seen[cid] {
				seen[cid] = true
				external = append(external, cid)
			}
		}
	}
	sort.Strings(external)
	return external
}

// ExternalOutputs returns the collection ids produced inside the
// descriptor but not consumed by any of its transforms, sorted. The worker
// captures these as bundle output.
func (d *ProcessBundleDescriptor) ExternalOutputs() []string {
	consumed := map[string]bool{}
	for _, t := range d.Transforms {
		for _, cid := range t.Inputs {
			consumed[cid] = true
		}
	}
	var external []string
	for cid := range d.producedCollections() {
		if !consumed[cid] {
			external = append(external, cid)
		}
	}
	sort.Strings(external)
	return external
}

// buildCoder resolves a coder id from the descriptor's coder table into a
// runnable coder, recursively building components.
func (d *ProcessBundleDescriptor) buildCoder(coderID string, registry *coders.Registry) (coders.Coder, error) {
	spec, ok := d.Coders[coderID]
	if !ok {
		return nil, fmt.Errorf("unknown coder id: %s", coderID)
	}
	components := make([]coders.Coder, 0, len(spec.ComponentCoderIDs))
	for _, cid := range spec.ComponentCoderIDs {
		c, err := d.buildCoder(cid, registry)
		if err != nil {
			return nil, err
		}
		components = append(components, c)
	}
	return registry.Build(spec.URN, components)
}
