package storage

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tool-recommender-bot/wuic/logger"
)

// ErrClosed is returned by every operation on a closed store.
var ErrClosed = errors.New("storage: store closed")

// MemoryStore keeps entries in process memory. Expiry is checked lazily on
// Get and enforced by a sweep goroutine rescheduled on every SetTTL call.
type MemoryStore struct {
	mu       sync.RWMutex
	entries  map[Fingerprint]*Entry
	bySource map[string]map[Fingerprint]struct{}
	ttl      time.Duration
	stop     chan struct{}
	closed   bool
}

// Verify interface compliance at compile time.
var _ Store = (*MemoryStore)(nil)

// NewMemory creates a memory store. A non-positive ttl keeps entries until
// invalidated or cleared.
func NewMemory(ttl time.Duration) *MemoryStore {
	m := &MemoryStore{
		entries:  make(map[Fingerprint]*Entry),
		bySource: make(map[string]map[Fingerprint]struct{}),
	}
	m.SetTTL(ttl)
	return m
}

// SetTTL replaces the store's time-to-live. Any pending sweep schedule is
// cancelled first; a positive ttl schedules a fresh sweep at that interval,
// a non-positive one leaves eviction disabled.
func (m *MemoryStore) SetTTL(ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stop != nil {
		close(m.stop)
		m.stop = nil
	}
	m.ttl = ttl
	if ttl > 0 && !m.closed {
		stop := make(chan struct{})
		m.stop = stop
		go m.sweepLoop(ttl, stop)
	}
}

func (m *MemoryStore) sweepLoop(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *MemoryStore) sweep() {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ttl <= 0 {
		return
	}
	evicted := 0
	for key, e := range m.entries {
		if now.Sub(e.CreatedAt) > m.ttl {
			m.removeLocked(key)
			evicted++
		}
	}
	if evicted > 0 {
		logger.L().Debug("cache sweep evicted entries", "count", evicted)
	}
}

// removeLocked drops one entry and unindexes its sources. Callers hold mu.
func (m *MemoryStore) removeLocked(key Fingerprint) {
	e, ok := m.entries[key]
	if !ok {
		return
	}
	delete(m.entries, key)
	for _, src := range e.Sources {
		set := m.bySource[src]
		delete(set, key)
		if len(set) == 0 {
			delete(m.bySource, src)
		}
	}
}

// Get implements Store. Expired entries read as misses even before the next
// sweep removes them.
func (m *MemoryStore) Get(_ context.Context, key Fingerprint) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	e, ok := m.entries[key]
	if !ok {
		return nil, nil
	}
	if m.ttl > 0 && time.Since(e.CreatedAt) > m.ttl {
		return nil, nil
	}
	return e, nil
}

// Put implements Store.
func (m *MemoryStore) Put(_ context.Context, e *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	m.removeLocked(e.Key)
	m.entries[e.Key] = e
	for _, src := range e.Sources {
		set, ok := m.bySource[src]
		if !ok {
			set = make(map[Fingerprint]struct{})
			m.bySource[src] = set
		}
		set[e.Key] = struct{}{}
	}
	return nil
}

// Invalidate implements Store.
func (m *MemoryStore) Invalidate(_ context.Context, key Fingerprint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.removeLocked(key)
	return nil
}

// InvalidateSource implements Store.
func (m *MemoryStore) InvalidateSource(_ context.Context, sourceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	keys := make([]Fingerprint, 0, len(m.bySource[sourceID]))
	for key := range m.bySource[sourceID] {
		keys = append(keys, key)
	}
	for _, key := range keys {
		m.removeLocked(key)
	}
	if len(keys) > 0 {
		logger.L().Debug("cache invalidated by source", "source", sourceID, "count", len(keys))
	}
	return nil
}

// Clear implements Store.
func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.entries = make(map[Fingerprint]*Entry)
	m.bySource = make(map[string]map[Fingerprint]struct{})
	return nil
}

// Close implements Store. Closing twice is harmless.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	if m.stop != nil {
		close(m.stop)
		m.stop = nil
	}
	m.entries = nil
	m.bySource = nil
	return nil
}
