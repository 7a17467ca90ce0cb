// Package pipeline implements construction and serialization of joist
// pipeline graphs.
//
// A pipeline is a directed acyclic graph of transforms over collections.
// Applications build the graph through Collection.Apply; the result is a
// portable Graph value that serializes to JSON and can be handed to a
// runner or shipped to a worker.
package pipeline

import "encoding/json"

// FunctionSpec identifies what a transform does: a URN naming the operation
// plus an opaque payload whose format is defined by the URN.
type FunctionSpec struct {
	URN     string          `json:"urn"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Transform is one node of the pipeline graph. Inputs and Outputs map local
// names ("input", "out") to collection ids.
type Transform struct {
	UniqueName    string            `json:"unique_name"`
	Spec          *FunctionSpec     `json:"spec,omitempty"`
	Inputs        map[string]string `json:"inputs,omitempty"`
	Outputs       map[string]string `json:"outputs,omitempty"`
	Subtransforms []string          `json:"subtransforms,omitempty"`
	EnvironmentID string            `json:"environment_id,omitempty"`
}

// CollectionSpec describes a collection: its coder and boundedness. The
// windowing strategy id is recorded for forward compatibility; only the
// global strategy exists today.
type CollectionSpec struct {
	UniqueName          string `json:"unique_name"`
	CoderID             string `json:"coder_id"`
	IsBounded           bool   `json:"is_bounded"`
	WindowingStrategyID string `json:"windowing_strategy_id"`
}

// CoderSpec names a coder by URN plus its component coder ids.
type CoderSpec struct {
	URN               string   `json:"urn"`
	ComponentCoderIDs []string `json:"component_coder_ids,omitempty"`
}

// WindowingStrategy is a placeholder for per-collection windowing. Only the
// global window is supported.
type WindowingStrategy struct {
	WindowFn string `json:"window_fn"`
}

// Environment describes where a transform's user code runs. The direct
// runner executes everything in the default in-process environment.
type Environment struct {
	URN string `json:"urn"`
}

// Graph is the serializable pipeline representation. All maps are keyed by
// generated ids; JSON marshaling of maps is key-sorted, so the encoding is
// deterministic for a given graph.
type Graph struct {
	Transforms          map[string]*Transform         `json:"transforms"`
	Collections         map[string]*CollectionSpec    `json:"collections"`
	Coders              map[string]*CoderSpec         `json:"coders"`
	WindowingStrategies map[string]*WindowingStrategy `json:"windowing_strategies"`
	Environments        map[string]*Environment       `json:"environments"`
	RootTransformIDs    []string                      `json:"root_transform_ids"`
}

// NewGraph returns an empty graph with the default global windowing
// strategy and in-process environment pre-registered.
func NewGraph() *Graph {
	return &Graph{
		Transforms:  make(map[string]*Transform),
		Collections: make(map[string]*CollectionSpec),
		Coders:      make(map[string]*CoderSpec),
		WindowingStrategies: map[string]*WindowingStrategy{
			GlobalWindowingStrategyID: {WindowFn: GlobalWindowFnURN},
		},
		Environments: map[string]*Environment{
			DefaultEnvironmentID: {URN: DefaultEnvironmentURN},
		},
	}
}

// Marshal serializes the graph to JSON.
func (g *Graph) Marshal() ([]byte, error) {
	return json.MarshalIndent(g, "", "  ")
}

// UnmarshalGraph parses a serialized graph.
func UnmarshalGraph(data []byte) (*Graph, error) {
	var g Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, err
	}
	if g.Transforms == nil {
		g.Transforms = make(map[string]*Transform)
	}
	if g.Collections == nil {
		g.Collections = make(map[string]*CollectionSpec)
	}
	if g.Coders == nil {
		g.Coders = make(map[string]*CoderSpec)
	}
	return &g, nil
}
