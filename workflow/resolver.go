package workflow

import (
	"context"
	"fmt"
	"io/fs"
	"sync"

	"github.com/tool-recommender-bot/wuic/engine"
	"github.com/tool-recommender-bot/wuic/heap"
	"github.com/tool-recommender-bot/wuic/nut"
	"github.com/tool-recommender-bot/wuic/source"
)

// heapResolver resolves names discovered inside content against the
// workflow heap's origins, first origin wins. Every resolved reference is
// observed at its origin, so changing it invalidates cache entries exactly
// like changing a named asset.
type heapResolver struct {
	h        *heap.Heap
	onChange source.ChangeListener

	mu   sync.Mutex
	seen map[string]struct{}
}

func (r *Runtime) newResolver(h *heap.Heap) *heapResolver {
	return &heapResolver{
		h:        h,
		onChange: r.sourceChanged,
		seen:     make(map[string]struct{}),
	}
}

// Exists implements engine.ReferenceResolver. An origin failure is reported
// only when no other origin serves the name.
func (hr *heapResolver) Exists(ctx context.Context, name string) (bool, error) {
	var firstErr error
	for _, src := range hr.h.Sources() {
		ok, err := src.Exists(ctx, name)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if ok {
			return true, nil
		}
	}
	return false, firstErr
}

// Resolve implements engine.ReferenceResolver.
func (hr *heapResolver) Resolve(ctx context.Context, name string) (*nut.Nut, error) {
	for _, src := range hr.h.Sources() {
		ok, err := src.Exists(ctx, name)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		n, err := src.Resolve(ctx, name)
		if err != nil {
			return nil, err
		}
		hr.observe(src, name)
		return n, nil
	}
	return nil, fmt.Errorf("resolve %s: %w", name, fs.ErrNotExist)
}

// observe registers the change handler once per origin and name pair.
func (hr *heapResolver) observe(src source.Source, name string) {
	key := src.ID() + "\x00" + name
	hr.mu.Lock()
	if _, ok := hr.seen[key]; ok {
		hr.mu.Unlock()
		return
	}
	hr.seen[key] = struct{}{}
	hr.mu.Unlock()

	src.Observe(name, hr.onChange)
}

// Verify interface compliance at compile time.
var _ engine.ReferenceResolver = (*heapResolver)(nil)
