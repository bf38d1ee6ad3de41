package nut

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

// OpenFunc supplies the raw content of a nut. Every call returns a fresh
// reader positioned at the start of the content.
type OpenFunc func(ctx context.Context) (io.ReadCloser, error)

// VersionCallback transforms the externally observed version number of a
// nut. Callbacks compose in registration order: the output of one is the
// input of the next.
type VersionCallback func(n *Nut, current int64) int64

// Nut is one named, typed, versioned asset. Its referenced nuts form a DAG
// discovered during processing (extracted scripts, sprites, source maps);
// nodes may be shared by multiple parents but never cycle back to an
// ancestor. A nut instance lives for one pipeline run unless it reaches a
// cache store.
type Nut struct {
	name    string
	typ     Type
	version *Version

	mu           sync.Mutex
	aggregatable bool
	compressed   bool
	dynamic      bool
	subResource  bool
	proxyURI     string
	source       string
	referenced   []*Nut
	callbacks    []VersionCallback
	pipe         Pipe
	open         OpenFunc
	content      []byte
	materialized bool
}

// New creates a nut whose content is supplied by open. Nuts start out
// aggregatable; stages and sources flip the flags they own.
func New(name string, typ Type, version *Version, open OpenFunc) *Nut {
	return &Nut{
		name:         name,
		typ:          typ,
		version:      version,
		aggregatable: true,
		open:         open,
	}
}

// NewBytes creates a nut holding static in-memory content.
func NewBytes(name string, typ Type, version *Version, content []byte) *Nut {
	n := New(name, typ, version, func(context.Context) (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(content)), nil
	})
	return n
}

// Name returns the nut name, unique within one processing result set.
func (n *Nut) Name() string { return n.name }

// Type returns the content type.
func (n *Nut) Type() Type { return n.typ }

// Version returns the underlying version future, without callbacks applied.
func (n *Nut) Version() *Version { return n.version }

// VersionNumber blocks until the version resolves, then folds it through
// the registered callbacks in registration order.
func (n *Nut) VersionNumber(ctx context.Context) (int64, error) {
	if n.version == nil {
		return 0, fmt.Errorf("nut %s has no version", n.name)
	}
	v, err := n.version.Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("resolve version of %s: %w", n.name, err)
	}
	n.mu.Lock()
	cbs := make([]VersionCallback, len(n.callbacks))
	copy(cbs, n.callbacks)
	n.mu.Unlock()
	for _, cb := range cbs {
		v = cb(n, v)
	}
	return v, nil
}

// AddVersionCallback appends a version transform. The propagation pass in
// the chain executor guarantees at most one registration per nut per run.
func (n *Nut) AddVersionCallback(cb VersionCallback) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.callbacks = append(n.callbacks, cb)
}

// AddReferenced records a nut discovered while processing this one.
func (n *Nut) AddReferenced(ref *Nut) {
	if ref == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.referenced = append(n.referenced, ref)
}

// Referenced returns a snapshot of the referenced nuts in discovery order.
func (n *Nut) Referenced() []*Nut {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]*Nut, len(n.referenced))
	copy(out, n.referenced)
	return out
}

// AddTransformer inserts a transformer into the nut's pipe, kept sorted by
// ordering key.
func (n *Nut) AddTransformer(t Transformer) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pipe.Add(t)
}

// Transformers returns a snapshot of the pipe in execution order.
func (n *Nut) Transformers() []Transformer {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.pipe.Transformers()
}

// CanAggregate reports whether the nut itself and every transformer in its
// pipe tolerate concatenation with sibling outputs. Dynamic nuts never
// aggregate.
func (n *Nut) CanAggregate() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.aggregatable && !n.dynamic && n.pipe.CanAggregate()
}

// Open returns the raw, untransformed content stream.
func (n *Nut) Open(ctx context.Context) (io.ReadCloser, error) {
	n.mu.Lock()
	open := n.open
	n.mu.Unlock()
	if open == nil {
		return nil, fmt.Errorf("nut %s has no content source", n.name)
	}
	return open(ctx)
}

// Content materializes the nut through its pipe. The bytes are realized on
// first call and cached for the nut's lifetime; failures are not cached and
// a later call retries. The pipe runs outside the nut lock so transformers
// may inspect their owner; concurrent first calls may both compute, the
// first stored result wins. Transformers must not read their owner's
// Content.
func (n *Nut) Content(ctx context.Context) ([]byte, error) {
	n.mu.Lock()
	if n.materialized {
		defer n.mu.Unlock()
		return n.content, nil
	}
	open := n.open
	pipe := n.pipe.clone()
	n.mu.Unlock()

	if open == nil {
		return nil, fmt.Errorf("nut %s has no content source", n.name)
	}
	rc, err := open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", n.name, err)
	}
	defer rc.Close()
	data, err := pipe.Run(rc, n)
	if err != nil {
		return nil, fmt.Errorf("transform %s: %w", n.name, err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.materialized {
		n.content = data
		n.materialized = true
	}
	return n.content, nil
}

// SetAggregatable flips whether the nut may be merged into an aggregate.
func (n *Nut) SetAggregatable(v bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.aggregatable = v
}

// Aggregatable reports the raw flag, ignoring the pipe. Most callers want
// CanAggregate.
func (n *Nut) Aggregatable() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.aggregatable
}

// SetCompressed records that the pipe output is already compressed.
func (n *Nut) SetCompressed(v bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.compressed = v
}

// Compressed reports whether the pipe output is compressed.
func (n *Nut) Compressed() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.compressed
}

// SetDynamic marks content that changes on every evaluation. Dynamic nuts
// are never cached and never aggregated.
func (n *Nut) SetDynamic(v bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.dynamic = v
}

// Dynamic reports whether the nut is regenerated per request.
func (n *Nut) Dynamic() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.dynamic
}

// SetSubResource marks a referenced nut the root document needs during its
// own load, which upgrades its delivery hint from prefetch to preload.
func (n *Nut) SetSubResource(v bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subResource = v
}

// SubResource reports whether the nut is critical to its referencing
// document.
func (n *Nut) SubResource() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.subResource
}

// SetProxyURI makes the delivery layer serve the nut from an external URL
// instead of a generated one.
func (n *Nut) SetProxyURI(uri string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.proxyURI = uri
}

// ProxyURI returns the external URL, or "" when the nut is served locally.
func (n *Nut) ProxyURI() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.proxyURI
}

// SetSource records the identifier of the origin the nut was resolved from,
// used to invalidate cache entries when that origin changes.
func (n *Nut) SetSource(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.source = id
}

// Source returns the owning origin identifier, or "" for synthetic nuts.
func (n *Nut) Source() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.source
}

// Rename returns a shallow copy of the nut under a different name, sharing
// version, flags, pipe and referenced nuts with the original.
func (n *Nut) Rename(name string) *Nut {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := &Nut{
		name:         name,
		typ:          n.typ,
		version:      n.version,
		aggregatable: n.aggregatable,
		compressed:   n.compressed,
		dynamic:      n.dynamic,
		subResource:  n.subResource,
		proxyURI:     n.proxyURI,
		source:       n.source,
		open:         n.open,
		content:      n.content,
		materialized: n.materialized,
	}
	out.referenced = make([]*Nut, len(n.referenced))
	copy(out.referenced, n.referenced)
	out.callbacks = make([]VersionCallback, len(n.callbacks))
	copy(out.callbacks, n.callbacks)
	out.pipe = n.pipe.clone()
	return out
}
