package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tool-recommender-bot/wuic/nut"
	"github.com/tool-recommender-bot/wuic/storage"
)

// stubStore is an in-memory Store with injectable failures.
type stubStore struct {
	entries map[storage.Fingerprint]*storage.Entry
	getErr  error
	putErr  error
	puts    int
}

func newStubStore() *stubStore {
	return &stubStore{entries: make(map[storage.Fingerprint]*storage.Entry)}
}

func (s *stubStore) Get(_ context.Context, key storage.Fingerprint) (*storage.Entry, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.entries[key], nil
}

func (s *stubStore) Put(_ context.Context, e *storage.Entry) error {
	s.puts++
	if s.putErr != nil {
		return s.putErr
	}
	s.entries[e.Key] = e
	return nil
}

func (s *stubStore) Invalidate(_ context.Context, key storage.Fingerprint) error {
	delete(s.entries, key)
	return nil
}

func (s *stubStore) InvalidateSource(_ context.Context, sourceID string) error {
	for key, e := range s.entries {
		for _, src := range e.Sources {
			if src == sourceID {
				delete(s.entries, key)
				break
			}
		}
	}
	return nil
}

func (s *stubStore) Clear(context.Context) error {
	s.entries = make(map[storage.Fingerprint]*storage.Entry)
	return nil
}

func (s *stubStore) Close() error { return nil }

// countingTail records tail executions and returns canned results.
type countingTail struct {
	runs    int
	results []*nut.Nut
	err     error
}

func (c *countingTail) next(_ context.Context, req *Request) ([]*nut.Nut, error) {
	c.runs++
	if c.err != nil {
		return nil, c.err
	}
	if c.results != nil {
		return c.results, nil
	}
	return req.Nuts(), nil
}

func cssInput(name string, version int64) *nut.Nut {
	n := nut.NewBytes(name, nut.TypeCSS, nut.ResolvedVersion(version), []byte(name))
	n.SetSource("static")
	return n
}

func TestCacheStage_MissRunsTailAndStores(t *testing.T) {
	store := newStubStore()
	stage := NewCacheStage(CacheConfig{Store: store})

	final := nut.NewBytes("aggregate.css", nut.TypeCSS, nut.ResolvedVersion(9), []byte("x"))
	final.SetSource("static")
	tail := &countingTail{results: []*nut.Nut{final}}

	req := NewRequest("wf", "/", []*nut.Nut{cssInput("a.css", 1)})
	out, err := stage.ProcessChain(context.Background(), req, tail.next)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tail.runs != 1 {
		t.Fatalf("expected the tail to run once, ran %d times", tail.runs)
	}
	if len(out) != 1 || out[0] != final {
		t.Fatalf("expected the tail result, got %v", out)
	}
	if len(store.entries) != 1 {
		t.Fatalf("expected 1 stored entry, got %d", len(store.entries))
	}
	for _, e := range store.entries {
		if e.WorkflowID != "wf" {
			t.Fatalf("expected workflow wf, got %s", e.WorkflowID)
		}
		if len(e.Sources) != 1 || e.Sources[0] != "static" {
			t.Fatalf("expected sources [static], got %v", e.Sources)
		}
	}
}

func TestCacheStage_HitVetoesTail(t *testing.T) {
	store := newStubStore()
	stage := NewCacheStage(CacheConfig{Store: store})
	tail := &countingTail{results: []*nut.Nut{cssInput("aggregate.css", 9)}}

	inputs := []*nut.Nut{cssInput("a.css", 1)}
	ctx := context.Background()

	if _, err := stage.ProcessChain(ctx, NewRequest("wf", "/", inputs), tail.next); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out, err := stage.ProcessChain(ctx, NewRequest("wf", "/", inputs), tail.next)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if tail.runs != 1 {
		t.Fatalf("expected the tail vetoed on the second run, ran %d times", tail.runs)
	}
	if len(out) != 1 || out[0].Name() != "aggregate.css" {
		t.Fatalf("expected the stored result, got %v", out)
	}
}

func TestCacheStage_InputVersionChangeMisses(t *testing.T) {
	store := newStubStore()
	stage := NewCacheStage(CacheConfig{Store: store})
	tail := &countingTail{}

	ctx := context.Background()
	if _, err := stage.ProcessChain(ctx, NewRequest("wf", "/", []*nut.Nut{cssInput("a.css", 1)}), tail.next); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := stage.ProcessChain(ctx, NewRequest("wf", "/", []*nut.Nut{cssInput("a.css", 2)}), tail.next); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if tail.runs != 2 {
		t.Fatalf("expected a recompute for the new version, ran %d times", tail.runs)
	}
	if len(store.entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(store.entries))
	}
}

func TestCacheStage_ChainConfigChangesFingerprint(t *testing.T) {
	store := newStubStore()
	type settings struct{ Minify bool }

	a := NewCacheStage(CacheConfig{Store: store, ChainConfig: settings{Minify: true}})
	b := NewCacheStage(CacheConfig{Store: store, ChainConfig: settings{Minify: false}})
	tail := &countingTail{}

	ctx := context.Background()
	if _, err := a.ProcessChain(ctx, NewRequest("wf", "/", []*nut.Nut{cssInput("a.css", 1)}), tail.next); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := b.ProcessChain(ctx, NewRequest("wf", "/", []*nut.Nut{cssInput("a.css", 1)}), tail.next); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if tail.runs != 2 {
		t.Fatalf("expected different settings to miss, ran %d times", tail.runs)
	}
}

func TestCacheStage_LookupFailureTreatedAsMiss(t *testing.T) {
	store := newStubStore()
	store.getErr = errors.New("backend down")
	stage := NewCacheStage(CacheConfig{Store: store})
	tail := &countingTail{}

	out, err := stage.ProcessChain(context.Background(), NewRequest("wf", "/", []*nut.Nut{cssInput("a.css", 1)}), tail.next)
	if err != nil {
		t.Fatalf("expected the request to survive a lookup failure, got %v", err)
	}
	if tail.runs != 1 {
		t.Fatal("expected the tail to run")
	}
	if len(out) != 1 {
		t.Fatalf("expected results, got %v", out)
	}
}

func TestCacheStage_StoreFailureStillServes(t *testing.T) {
	store := newStubStore()
	store.putErr = errors.New("disk full")
	stage := NewCacheStage(CacheConfig{Store: store})
	tail := &countingTail{}

	out, err := stage.ProcessChain(context.Background(), NewRequest("wf", "/", []*nut.Nut{cssInput("a.css", 1)}), tail.next)
	if err != nil {
		t.Fatalf("expected the request to survive a store failure, got %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected the computed results, got %v", out)
	}
}

func TestCacheStage_DynamicResultNotStored(t *testing.T) {
	store := newStubStore()
	stage := NewCacheStage(CacheConfig{Store: store})

	dyn := nut.NewBytes("live.css", nut.TypeCSS, nut.ResolvedVersion(1), []byte("x"))
	dyn.SetDynamic(true)
	tail := &countingTail{results: []*nut.Nut{dyn}}

	if _, err := stage.ProcessChain(context.Background(), NewRequest("wf", "/", []*nut.Nut{cssInput("a.css", 1)}), tail.next); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.puts != 0 {
		t.Fatalf("expected no store for dynamic content, got %d puts", store.puts)
	}
}

func TestCacheStage_BestEffortServesStaleRenamed(t *testing.T) {
	store := newStubStore()
	stats := storage.NewStats()
	stage := NewCacheStage(CacheConfig{Store: store, BestEffort: true, Stats: stats})

	good := nut.NewBytes("aggregate.css", nut.TypeCSS, nut.ResolvedVersion(9), []byte("good"))
	tail := &countingTail{results: []*nut.Nut{good}}

	ctx := context.Background()
	if _, err := stage.ProcessChain(ctx, NewRequest("wf", "/", []*nut.Nut{cssInput("a.css", 1)}), tail.next); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Same names, new version: the lookup misses and the recompute fails.
	tail.err = NewSourceAccessError(errors.New("origin unreachable"))
	out, err := stage.ProcessChain(ctx, NewRequest("wf", "/", []*nut.Nut{cssInput("a.css", 2)}), tail.next)
	if err != nil {
		t.Fatalf("expected a degraded result, got error %v", err)
	}

	if len(out) != 1 {
		t.Fatalf("expected 1 nut, got %d", len(out))
	}
	if !strings.HasPrefix(out[0].Name(), BestEffortPrefix) {
		t.Fatalf("expected the %s prefix, got %s", BestEffortPrefix, out[0].Name())
	}
	content, err := out[0].Content(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(content) != "good" {
		t.Fatalf("expected the stale content, got %q", content)
	}

	snapshot := stats.GetStats()
	if snapshot["degraded"].(int) != 1 {
		t.Fatalf("expected 1 degraded serve, got %v", snapshot["degraded"])
	}
}

func TestCacheStage_BestEffortOffPropagatesFailure(t *testing.T) {
	store := newStubStore()
	stage := NewCacheStage(CacheConfig{Store: store})
	tail := &countingTail{results: []*nut.Nut{cssInput("aggregate.css", 9)}}

	ctx := context.Background()
	if _, err := stage.ProcessChain(ctx, NewRequest("wf", "/", []*nut.Nut{cssInput("a.css", 1)}), tail.next); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tail.err = NewSourceAccessError(errors.New("origin unreachable"))
	if _, err := stage.ProcessChain(ctx, NewRequest("wf", "/", []*nut.Nut{cssInput("a.css", 2)}), tail.next); err == nil {
		t.Fatal("expected the failure to propagate without best-effort")
	}
}

func TestCacheStage_ConfigurationFailureNeverDegraded(t *testing.T) {
	store := newStubStore()
	stage := NewCacheStage(CacheConfig{Store: store, BestEffort: true})
	tail := &countingTail{results: []*nut.Nut{cssInput("aggregate.css", 9)}}

	ctx := context.Background()
	if _, err := stage.ProcessChain(ctx, NewRequest("wf", "/", []*nut.Nut{cssInput("a.css", 1)}), tail.next); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tail.err = NewConfigurationError(errors.New("bad stage"))
	if _, err := stage.ProcessChain(ctx, NewRequest("wf", "/", []*nut.Nut{cssInput("a.css", 2)}), tail.next); err == nil {
		t.Fatal("expected configuration failures to propagate")
	}
}

func TestCacheStage_NoStaleEntryPropagatesFailure(t *testing.T) {
	store := newStubStore()
	stage := NewCacheStage(CacheConfig{Store: store, BestEffort: true})
	tail := &countingTail{err: NewSourceAccessError(errors.New("origin unreachable"))}

	_, err := stage.ProcessChain(context.Background(), NewRequest("wf", "/", []*nut.Nut{cssInput("a.css", 1)}), tail.next)
	if err == nil {
		t.Fatal("expected the failure to propagate with nothing to serve")
	}
}

func TestCacheStage_StatsRecordLookups(t *testing.T) {
	store := newStubStore()
	stats := storage.NewStats()
	stage := NewCacheStage(CacheConfig{Store: store, Stats: stats})
	tail := &countingTail{results: []*nut.Nut{cssInput("aggregate.css", 9)}}

	ctx := context.Background()
	inputs := []*nut.Nut{cssInput("a.css", 1)}
	if _, err := stage.ProcessChain(ctx, NewRequest("wf", "/", inputs), tail.next); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := stage.ProcessChain(ctx, NewRequest("wf", "/", inputs), tail.next); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snapshot := stats.GetStats()
	if snapshot["hits"].(int) != 1 || snapshot["misses"].(int) != 1 {
		t.Fatalf("expected 1 hit and 1 miss, got %v", snapshot)
	}
	if snapshot["puts"].(int) != 1 {
		t.Fatalf("expected 1 put, got %v", snapshot["puts"])
	}
}
