package heap

import (
	"context"
	"fmt"
	"sync"

	"github.com/tool-recommender-bot/wuic/logger"
	"github.com/tool-recommender-bot/wuic/nut"
	"github.com/tool-recommender-bot/wuic/source"
)

// Entry binds one glob pattern to the origin it is expanded against.
type Entry struct {
	Source  source.Source
	Pattern string
}

// Listener is notified when an origin backing the heap reports a change to
// any asset the heap resolved.
type Listener func(h *Heap, sourceID string)

// Heap is a named group of assets drawn from one or more origins, possibly
// composed of other heaps. Resolve builds fresh nuts on every call; results
// are only ever reused through the cache store.
type Heap struct {
	id       string
	entries  []Entry
	children []*Heap

	mu        sync.RWMutex
	listeners []Listener
	observed  map[string]struct{}
}

// New creates a heap over the given pattern entries.
func New(id string, entries ...Entry) *Heap {
	return &Heap{
		id:       id,
		entries:  entries,
		observed: make(map[string]struct{}),
	}
}

// Compose creates a heap whose assets are its children's, in child order.
// The composite fires its listeners when any child does.
func Compose(id string, children ...*Heap) *Heap {
	h := New(id)
	h.children = children
	for _, c := range children {
		c.AddListener(func(_ *Heap, sourceID string) {
			h.fire(sourceID)
		})
	}
	return h
}

// ID returns the heap name referenced by workflow configuration.
func (h *Heap) ID() string { return h.id }

// Sources returns the distinct origins contributing to the heap, children
// first, in declaration order.
func (h *Heap) Sources() []source.Source {
	var out []source.Source
	seen := make(map[string]struct{})
	for _, c := range h.children {
		for _, src := range c.Sources() {
			if _, ok := seen[src.ID()]; ok {
				continue
			}
			seen[src.ID()] = struct{}{}
			out = append(out, src)
		}
	}
	for _, e := range h.entries {
		if _, ok := seen[e.Source.ID()]; ok {
			continue
		}
		seen[e.Source.ID()] = struct{}{}
		out = append(out, e.Source)
	}
	return out
}

// AddListener subscribes to change notifications.
func (h *Heap) AddListener(l Listener) {
	if l == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, l)
}

// Resolve expands every pattern and builds one nut per matched name.
// Children resolve first, then the heap's own entries. A name served by
// several origins resolves once, first occurrence wins. Every resolved name
// is observed at its origin so later changes reach the heap's listeners.
func (h *Heap) Resolve(ctx context.Context) ([]*nut.Nut, error) {
	var out []*nut.Nut
	seen := make(map[string]struct{})

	for _, c := range h.children {
		nuts, err := c.Resolve(ctx)
		if err != nil {
			return nil, err
		}
		for _, n := range nuts {
			if _, ok := seen[n.Name()]; ok {
				continue
			}
			seen[n.Name()] = struct{}{}
			out = append(out, n)
		}
	}

	for _, e := range h.entries {
		names, err := e.Source.ListNames(ctx, e.Pattern)
		if err != nil {
			return nil, fmt.Errorf("heap %s: %w", h.id, err)
		}
		for _, name := range names {
			if _, ok := seen[name]; ok {
				logger.L().Debug("duplicate name skipped",
					"heap", h.id, "name", name, "source", e.Source.ID())
				continue
			}
			seen[name] = struct{}{}

			n, err := e.Source.Resolve(ctx, name)
			if err != nil {
				return nil, fmt.Errorf("heap %s: %w", h.id, err)
			}
			out = append(out, n)
			h.observe(e.Source, name)
		}
	}

	if len(out) == 0 {
		logger.L().Warn("heap resolved no assets", "heap", h.id)
	}
	return out, nil
}

// observe registers the heap's change handler for name, once per origin and
// name pair.
func (h *Heap) observe(src source.Source, name string) {
	key := src.ID() + "\x00" + name
	h.mu.Lock()
	if _, ok := h.observed[key]; ok {
		h.mu.Unlock()
		return
	}
	h.observed[key] = struct{}{}
	h.mu.Unlock()

	src.Observe(name, func(sourceID, changed string) {
		logger.L().Info("heap asset changed",
			"heap", h.id, "source", sourceID, "name", changed)
		h.fire(sourceID)
	})
}

// fire notifies every listener outside the lock.
func (h *Heap) fire(sourceID string) {
	h.mu.RLock()
	ls := make([]Listener, len(h.listeners))
	copy(ls, h.listeners)
	h.mu.RUnlock()
	for _, l := range ls {
		l(h, sourceID)
	}
}
