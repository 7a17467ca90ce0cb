// Package runner executes pipelines in process. The direct runner fuses
// the graph into stages at group-by-key barriers, materializes stage
// boundaries through the collections' coders, and drives bundles on a
// worker.
package runner

import (
	"fmt"
	"sort"

	"github.com/joistio/joist/internal/pipeline"
	"github.com/joistio/joist/internal/worker"
)

// stage is a fused subgraph executed as bundles of one descriptor. Stages
// earlier in level order must complete before later ones since grouping
// needs every element of its input collection.
type stage struct {
	level      int
	transforms []string
	grouping   bool
}

// fuseStages partitions the graph's executable transforms into stages.
// A group-by-key sits alone in its stage; everything else fuses with its
// producers until a grouping boundary intervenes.
func fuseStages(g *pipeline.Graph) ([]*stage, error) {
	producers := map[string]string{}
	executable := map[string]*pipeline.Transform{}
	for tid, t := range g.Transforms {
		if t.Spec == nil {
			continue
		}
		executable[tid] = t
		for _, cid := range t.Outputs {
			producers[cid] = tid
		}
	}

	levels := map[string]int{}
	var resolve func(tid string, seen map[string]bool) (int, error)
	resolve = func(tid string, seen map[string]bool) (int, error) {
		if level, ok := levels[tid]; ok {
			return level, nil
		}
		if seen[tid] {
			return 0, fmt.Errorf("transform cycle through %s", tid)
		}
		seen[tid] = true

		t := executable[tid]
		level := 0
		for _, cid := range t.Inputs {
			producer, ok := producers[cid]
			if !ok {
				continue
			}
			producerLevel, err := resolve(producer, seen)
			if err != nil {
				return 0, err
			}
			contribution := producerLevel
			if isGrouping(executable[producer]) {
				contribution++
			}
			if contribution > level {
				level = contribution
			}
		}
		if isGrouping(t) {
			level++
		}
		levels[tid] = level
		return level, nil
	}

	for tid := range executable {
		if _, err := resolve(tid, map[string]bool{}); err != nil {
			return nil, err
		}
	}

	// Grouping transforms and element-wise transforms never share a level:
	// a grouping's level is one past all its producers and its consumers
	// land one past it again.
	byLevel := map[int]*stage{}
	for tid, level := range levels {
		s, ok := byLevel[level]
		if !ok {
			s = &stage{level: level}
			byLevel[level] = s
		}
		s.transforms = append(s.transforms, tid)
		if isGrouping(executable[tid]) {
			s.grouping = true
		}
	}

	stages := make([]*stage, 0, len(byLevel))
	for _, s := range byLevel {
		sort.Strings(s.transforms)
		stages = append(stages, s)
	}
	sort.Slice(stages, func(i, j int) bool { return stages[i].level < stages[j].level })
	return stages, nil
}

func isGrouping(t *pipeline.Transform) bool {
	return t.Spec != nil && t.Spec.URN == pipeline.GroupByKeyURN
}

// descriptor builds the stage's ProcessBundleDescriptor, subsetting the
// graph to the collections and coders the stage references.
func (s *stage) descriptor(g *pipeline.Graph, jobID string) *worker.ProcessBundleDescriptor {
	d := &worker.ProcessBundleDescriptor{
		ID:          fmt.Sprintf("%s-stage%d", jobID, s.level),
		Transforms:  map[string]*pipeline.Transform{},
		Collections: map[string]*pipeline.CollectionSpec{},
		Coders:      map[string]*pipeline.CoderSpec{},
	}

	var addCoder func(id string)
	addCoder = func(id string) {
		if _, done := d.Coders[id]; done {
			return
		}
		spec, ok := g.Coders[id]
		if !ok {
			return
		}
		d.Coders[id] = spec
		for _, cid := range spec.ComponentCoderIDs {
			addCoder(cid)
		}
	}
	addCollection := func(id string) {
		if coll, ok := g.Collections[id]; ok {
			d.Collections[id] = coll
			addCoder(coll.CoderID)
		}
	}

	for _, tid := range s.transforms {
		t := g.Transforms[tid]
		d.Transforms[tid] = t
		for _, cid := range t.Inputs {
			addCollection(cid)
		}
		for _, cid := range t.Outputs {
			addCollection(cid)
		}
	}
	return d
}
