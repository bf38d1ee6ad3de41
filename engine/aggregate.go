package engine

import (
	"bytes"
	"context"

	"github.com/tool-recommender-bot/wuic/nut"
)

// aggregateBaseName is the name stem of a merged nut; the type's canonical
// extension is appended.
const aggregateBaseName = "aggregate"

// Aggregator merges every aggregatable nut of one handled type into a
// single nut per type, named aggregate.<ext>. Nuts that decline aggregation
// pass through first in their original order; the merged nuts are appended
// after them. Contents are joined with a newline.
type Aggregator struct {
	enabled bool
}

// NewAggregator creates the aggregation stage. A disabled stage passes
// every nut through untouched.
func NewAggregator(enabled bool) *Aggregator {
	return &Aggregator{enabled: enabled}
}

// Name implements Stage.
func (a *Aggregator) Name() string { return "aggregate" }

// Category implements Stage.
func (a *Aggregator) Category() Category { return CategoryAggregate }

// Handles implements Stage.
func (a *Aggregator) Handles() []nut.Type {
	return []nut.Type{nut.TypeCSS, nut.TypeJavascript}
}

// Transform implements Stage.
func (a *Aggregator) Transform(ctx context.Context, req *Request) ([]*nut.Nut, error) {
	if !a.enabled {
		return req.Nuts(), nil
	}

	var (
		results []*nut.Nut
		groups  = make(map[nut.Type][]*nut.Nut)
		order   []nut.Type
	)
	for _, n := range req.Nuts() {
		if handles(a.Handles(), n.Type()) && n.CanAggregate() {
			if _, ok := groups[n.Type()]; !ok {
				order = append(order, n.Type())
			}
			groups[n.Type()] = append(groups[n.Type()], n)
			continue
		}
		results = append(results, n)
	}

	for _, typ := range order {
		combined, err := a.merge(ctx, typ, groups[typ])
		if err != nil {
			return nil, err
		}
		results = append(results, combined)
	}
	return results, nil
}

// merge concatenates the sources in order and wraps the result in a fresh
// nut whose version is the digest of the combined bytes.
func (a *Aggregator) merge(ctx context.Context, typ nut.Type, sources []*nut.Nut) (*nut.Nut, error) {
	var buf bytes.Buffer
	for i, src := range sources {
		data, err := src.Content(ctx)
		if err != nil {
			return nil, err
		}
		if i > 0 {
			buf.WriteByte('\n')
		}
		buf.Write(data)
	}

	name := aggregateBaseName + typ.Extensions()[0]
	combined := nut.NewBytes(name, typ, nut.ResolvedVersion(nut.DigestBytes(buf.Bytes())), buf.Bytes())

	// The merged nut inherits the referenced graph of its sources, and the
	// owning origin when the sources agree on one.
	source := ""
	uniform := true
	for _, src := range sources {
		for _, ref := range src.Referenced() {
			combined.AddReferenced(ref)
		}
		switch {
		case source == "":
			source = src.Source()
		case src.Source() != source:
			uniform = false
		}
	}
	if uniform {
		combined.SetSource(source)
	}
	return combined, nil
}

// Verify interface compliance at compile time.
var _ Stage = (*Aggregator)(nil)
