package source

import (
	"context"
	"sync"
	"time"

	"github.com/tool-recommender-bot/wuic/logger"
)

// registry tracks observed names, their listeners, and the stamp each name
// carried when last checked. Sources embed one and drive it either from a
// poll pass or from an explicit write.
type registry struct {
	mu        sync.Mutex
	listeners map[string][]ChangeListener
	stamps    map[string]int64
}

func newRegistry() *registry {
	return &registry{
		listeners: make(map[string][]ChangeListener),
		stamps:    make(map[string]int64),
	}
}

func (r *registry) observe(name string, l ChangeListener) {
	if l == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners[name] = append(r.listeners[name], l)
}

func (r *registry) observed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.listeners))
	for name := range r.listeners {
		out = append(out, name)
	}
	return out
}

// notify records the stamp that caused the change and fires every listener
// of name, outside the lock.
func (r *registry) notify(sourceID, name string, stamp int64) {
	r.mu.Lock()
	r.stamps[name] = stamp
	ls := make([]ChangeListener, len(r.listeners[name]))
	copy(ls, r.listeners[name])
	r.mu.Unlock()
	for _, l := range ls {
		l(sourceID, name)
	}
}

// poll checks every observed name's current stamp against the last seen one.
// The first check of a name records the baseline without firing; a name the
// stamp function cannot read is skipped until it reappears.
func (r *registry) poll(ctx context.Context, sourceID string, stamp func(context.Context, string) (time.Time, error)) error {
	for _, name := range r.observed() {
		if err := ctx.Err(); err != nil {
			return err
		}
		t, err := stamp(ctx, name)
		if err != nil {
			logger.L().Debug("poll skipped unreadable name",
				"source", sourceID, "name", name, "error", err)
			continue
		}
		cur := t.UnixMilli()

		r.mu.Lock()
		last, seen := r.stamps[name]
		if !seen || last == cur {
			r.stamps[name] = cur
			r.mu.Unlock()
			continue
		}
		r.mu.Unlock()

		logger.L().Info("origin change detected", "source", sourceID, "name", name)
		r.notify(sourceID, name, cur)
	}
	return nil
}
