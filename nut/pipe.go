package nut

import (
	"bytes"
	"io"
	"sort"
)

// Transformer is one step of a nut's content pipe: the byte-level pipeline
// bound to a single asset, distinct from the stage chain a request flows
// through.
type Transformer interface {
	// Transform reads the current content from in and writes the transformed
	// content to out. Returning false declines the input, which then passes
	// through unchanged.
	Transform(in io.Reader, out io.Writer, n *Nut) (bool, error)
	// Order places the transformer in the pipe; lower runs first. Stages use
	// their own chain ordering value here.
	Order() int
	// CanAggregate reports whether the transformed output may be
	// concatenated with sibling outputs when aggregation is requested.
	CanAggregate() bool
}

// Pipe is the ordered transformer list bound to one nut. The zero value is
// an empty pipe. A Pipe is not safe for concurrent use; Nut serializes
// access to its own pipe.
type Pipe struct {
	transformers []Transformer
}

// Add inserts t and keeps the pipe sorted by Order, insertion order
// preserved between equal keys.
func (p *Pipe) Add(t Transformer) {
	p.transformers = append(p.transformers, t)
	sort.SliceStable(p.transformers, func(i, j int) bool {
		return p.transformers[i].Order() < p.transformers[j].Order()
	})
}

// Transformers returns a copy of the pipe in execution order.
func (p *Pipe) Transformers() []Transformer {
	out := make([]Transformer, len(p.transformers))
	copy(out, p.transformers)
	return out
}

// CanAggregate reports whether every transformer in the pipe tolerates
// aggregation. An empty pipe does.
func (p *Pipe) CanAggregate() bool {
	for _, t := range p.transformers {
		if !t.CanAggregate() {
			return false
		}
	}
	return true
}

// Run threads the content read from r through every transformer in order
// and returns the final bytes. A transformer that declines leaves the
// current bytes untouched.
func (p *Pipe) Run(r io.Reader, owner *Nut) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	for _, t := range p.transformers {
		var buf bytes.Buffer
		applied, err := t.Transform(bytes.NewReader(data), &buf, owner)
		if err != nil {
			return nil, err
		}
		if applied {
			data = buf.Bytes()
		}
	}
	return data, nil
}

// clone returns a pipe sharing the transformer values but not the slice.
func (p *Pipe) clone() Pipe {
	out := Pipe{transformers: make([]Transformer, len(p.transformers))}
	copy(out.transformers, p.transformers)
	return out
}
