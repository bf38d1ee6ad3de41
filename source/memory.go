package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/tool-recommender-bot/wuic/nut"
)

// MemorySource serves assets from an in-process map. Writes notify observers
// synchronously, so no poller is needed on top of it.
type MemorySource struct {
	id    string
	mu    sync.RWMutex
	files map[string]memFile
	watch *registry
}

type memFile struct {
	data    []byte
	modTime time.Time
}

// Verify interface compliance at compile time.
var (
	_ Source   = (*MemorySource)(nil)
	_ Pollable = (*MemorySource)(nil)
)

// NewMemory creates an empty in-process source.
func NewMemory(id string) *MemorySource {
	return &MemorySource{
		id:    id,
		files: make(map[string]memFile),
		watch: newRegistry(),
	}
}

// Put stores data under name and fires change listeners observing it.
func (m *MemorySource) Put(name string, data []byte) {
	now := time.Now()
	cp := make([]byte, len(data))
	copy(cp, data)

	m.mu.Lock()
	m.files[name] = memFile{data: cp, modTime: now}
	m.mu.Unlock()

	m.watch.notify(m.id, name, now.UnixMilli())
}

// Remove drops name and fires change listeners observing it.
func (m *MemorySource) Remove(name string) {
	m.mu.Lock()
	_, ok := m.files[name]
	delete(m.files, name)
	m.mu.Unlock()

	if ok {
		m.watch.notify(m.id, name, time.Now().UnixMilli())
	}
}

// ID implements Source.
func (m *MemorySource) ID() string { return m.id }

// ListNames implements Source.
func (m *MemorySource) ListNames(_ context.Context, pattern string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for name := range m.files {
		ok, err := path.Match(pattern, name)
		if err != nil {
			return nil, fmt.Errorf("list %q: %w", pattern, err)
		}
		if ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Exists implements Source.
func (m *MemorySource) Exists(_ context.Context, name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.files[name]
	return ok, nil
}

// Open implements Source.
func (m *MemorySource) Open(_ context.Context, name string) (io.ReadCloser, error) {
	m.mu.RLock()
	f, ok := m.files[name]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("open %s: %w", name, fs.ErrNotExist)
	}
	return io.NopCloser(bytes.NewReader(f.data)), nil
}

// LastModified implements Source.
func (m *MemorySource) LastModified(_ context.Context, name string) (time.Time, error) {
	m.mu.RLock()
	f, ok := m.files[name]
	m.mu.RUnlock()
	if !ok {
		return time.Time{}, fmt.Errorf("stat %s: %w", name, fs.ErrNotExist)
	}
	return f.modTime, nil
}

// Resolve implements Source. Content is at hand, so even the digest strategy
// resolves the version immediately.
func (m *MemorySource) Resolve(_ context.Context, name string) (*nut.Nut, error) {
	typ, err := nut.TypeOf(name)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", name, err)
	}
	m.mu.RLock()
	f, ok := m.files[name]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("resolve %s: %w", name, fs.ErrNotExist)
	}

	n := nut.NewBytes(name, typ, nut.ResolvedVersion(nut.DigestBytes(f.data)), f.data)
	n.SetSource(m.id)
	return n, nil
}

// Observe implements Source.
func (m *MemorySource) Observe(name string, l ChangeListener) {
	m.watch.observe(name, l)
}

// Poll implements Pollable. Writes already notify synchronously; a poll pass
// only catches listeners registered after the last write.
func (m *MemorySource) Poll(ctx context.Context) error {
	return m.watch.poll(ctx, m.id, m.LastModified)
}
