package pipeline

import "github.com/joistio/joist/internal/coders"

// Kind distinguishes the pipeline root handle from materialized
// collections.
type Kind int

const (
	// KindRoot is the handle returned by NewRoot; it carries no elements
	// and exists only so source transforms have something to apply against.
	KindRoot Kind = iota
	// KindCollection is a regular collection of elements.
	KindCollection
)

// Collection is a handle to one collection in the pipeline graph. Handles
// are cheap values; the graph itself lives in the Pipeline.
type Collection struct {
	id       string
	kind     Kind
	coderURN string
	pipeline *Pipeline
}

// NewCollection wraps an already-registered collection id in a handle.
func NewCollection(p *Pipeline, id, coderURN string) *Collection {
	return &Collection{
		id:       id,
		kind:     KindCollection,
		coderURN: coderURN,
		pipeline: p,
	}
}

// NewRoot creates the root handle for a pipeline and registers the implicit
// impulse transform it hangs off: a root collection with the bytes coder
// and a source transform emitting into it. The impulse element is a single
// empty byte slice.
func NewRoot(p *Pipeline) *Collection {
	coderID := p.RegisterCoderURN(coders.BytesCoderURN)
	collID := p.CreateCollection("root", coderID)

	p.RegisterTransform(&Transform{
		UniqueName: "root",
		Outputs:    map[string]string{"out": collID},
	})

	return &Collection{
		id:       collID,
		kind:     KindRoot,
		coderURN: coders.BytesCoderURN,
		pipeline: p,
	}
}

// ID returns the collection id within the graph.
func (c *Collection) ID() string { return c.id }

// Kind returns whether this handle is the root or a regular collection.
func (c *Collection) Kind() Kind { return c.kind }

// CoderURN returns the URN of the collection's element coder.
func (c *Collection) CoderURN() string { return c.coderURN }

// Pipeline returns the owning pipeline.
func (c *Collection) Pipeline() *Pipeline { return c.pipeline }

// Apply expands a transform against this collection and returns the output
// collection.
func (c *Collection) Apply(t PTransform) (*Collection, error) {
	return c.pipeline.ApplyTransform(t, c)
}

// MustApply is Apply for pipeline-construction code paths where expansion
// cannot fail (all built-in transforms). It panics on error.
func (c *Collection) MustApply(t PTransform) *Collection {
	out, err := c.Apply(t)
	if err != nil {
		panic(err)
	}
	return out
}

// PTransform is implemented by anything that can expand itself into the
// pipeline graph. Expand receives the prepared transform proto with inputs
// already wired and must fill in the spec, create output collections, and
// return the output handle.
type PTransform interface {
	Name() string
	Expand(input *Collection, p *Pipeline, proto *Transform) (*Collection, error)
}

// Flatten returns the collections reachable from a handle as a flat map
// with string keys. A plain collection (or the root) maps to "main", or to
// the provided prefix if non-empty.
func Flatten(c *Collection, prefix string) map[string]*Collection {
	result := make(map[string]*Collection)
	key := "main"
	if prefix != "" {
		key = prefix
	}
	result[key] = c
	return result
}
