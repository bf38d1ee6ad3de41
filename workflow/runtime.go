// Package workflow assembles origins, heaps, the cache store and stage
// chains from configuration, and processes workflows end to end.
package workflow

import (
	"context"
	"fmt"
	"sync"

	"github.com/tool-recommender-bot/wuic/config"
	"github.com/tool-recommender-bot/wuic/engine"
	"github.com/tool-recommender-bot/wuic/heap"
	"github.com/tool-recommender-bot/wuic/logger"
	"github.com/tool-recommender-bot/wuic/minify"
	"github.com/tool-recommender-bot/wuic/nut"
	"github.com/tool-recommender-bot/wuic/source"
	"github.com/tool-recommender-bot/wuic/storage"
	"github.com/tool-recommender-bot/wuic/telemetry"
)

// unit is one configured workflow: the heap it processes and the chain it
// runs.
type unit struct {
	heap  *heap.Heap
	chain *engine.Chain
}

// Runtime owns every component built from a configuration document. Create
// it with New, process workflows with Run, release resources with Close.
type Runtime struct {
	cfg     *config.Config
	store   storage.Store
	stats   *storage.Stats
	sources map[string]source.Source
	heaps   map[string]*heap.Heap
	units   map[string]*unit
	order   []string
	pollers []*source.Poller

	mu     sync.Mutex
	closed bool
}

// New builds a runtime from a validated configuration.
func New(cfg *config.Config) (*Runtime, error) {
	r := &Runtime{
		cfg:     cfg,
		stats:   storage.NewStats(),
		sources: make(map[string]source.Source, len(cfg.Sources)),
		units:   make(map[string]*unit, len(cfg.Workflows)),
	}

	store, err := newStore(cfg.Cache)
	if err != nil {
		return nil, engine.NewConfigurationError(fmt.Errorf("cache store: %w", err))
	}
	r.store = store

	for _, sc := range cfg.Sources {
		src, err := newSource(sc)
		if err != nil {
			r.Close()
			return nil, engine.NewConfigurationError(err)
		}
		r.sources[sc.ID] = src
		if interval := sc.PollInterval.Std(); interval > 0 {
			if p, ok := src.(source.Pollable); ok {
				r.pollers = append(r.pollers, source.NewPoller(p, interval))
			}
		}
	}

	r.heaps = buildHeaps(cfg, r.sources)

	for _, wc := range cfg.Workflows {
		h := r.heaps[wc.Heap]
		h.AddListener(func(_ *heap.Heap, sourceID string) {
			r.sourceChanged(sourceID, "")
		})

		chain, err := r.buildChain(wc, h)
		if err != nil {
			r.Close()
			return nil, err
		}
		r.units[wc.ID] = &unit{heap: h, chain: chain}
		r.order = append(r.order, wc.ID)
	}

	logger.Named("workflow").Info("runtime ready",
		"workflows", len(r.units), "sources", len(r.sources), "cache", storeKind(cfg.Cache))
	return r, nil
}

// newStore builds the entry store the cache stage memoizes into.
func newStore(cfg config.CacheConfig) (storage.Store, error) {
	switch cfg.Type {
	case "", "memory":
		return storage.NewMemory(cfg.TTL.Std()), nil
	case "sqlite":
		return storage.NewSQLite(storage.SQLiteConfig{
			Path: cfg.Path,
			TTL:  cfg.TTL.Std(),
		})
	case "redis":
		return storage.NewRedis(storage.RedisConfig{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
			TTL:      cfg.TTL.Std(),
		}), nil
	}
	return nil, fmt.Errorf("unknown cache type %q", cfg.Type)
}

func storeKind(cfg config.CacheConfig) string {
	if cfg.Type == "" {
		return "memory"
	}
	return cfg.Type
}

// newSource builds one origin from its declaration.
func newSource(cfg config.SourceConfig) (source.Source, error) {
	strategy, err := source.ParseVersionStrategy(cfg.Version)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", cfg.ID, err)
	}
	switch cfg.Type {
	case "", "disk":
		return source.NewDisk(source.DiskConfig{
			ID:       cfg.ID,
			Root:     cfg.Root,
			Strategy: strategy,
		}), nil
	case "memory":
		return source.NewMemory(cfg.ID), nil
	}
	return nil, fmt.Errorf("source %s: unknown type %q", cfg.ID, cfg.Type)
}

// buildHeaps constructs every declared heap, resolving compositions
// recursively. Validation has already ruled out unknown references and
// cycles.
func buildHeaps(cfg *config.Config, sources map[string]source.Source) map[string]*heap.Heap {
	byID := make(map[string]config.HeapConfig, len(cfg.Heaps))
	for _, hc := range cfg.Heaps {
		byID[hc.ID] = hc
	}

	built := make(map[string]*heap.Heap, len(cfg.Heaps))
	var build func(id string) *heap.Heap
	build = func(id string) *heap.Heap {
		if h, ok := built[id]; ok {
			return h
		}
		hc := byID[id]
		var h *heap.Heap
		if len(hc.Compose) > 0 {
			children := make([]*heap.Heap, 0, len(hc.Compose))
			for _, ref := range hc.Compose {
				children = append(children, build(ref))
			}
			h = heap.Compose(id, children...)
		} else {
			var entries []heap.Entry
			for _, a := range hc.Assets {
				for _, pattern := range a.Patterns {
					entries = append(entries, heap.Entry{Source: sources[a.Source], Pattern: pattern})
				}
			}
			h = heap.New(id, entries...)
		}
		built[id] = h
		return h
	}
	for _, hc := range cfg.Heaps {
		build(hc.ID)
	}
	return built
}

// buildChain assembles the stage chain for one workflow from the effective
// chain settings.
func (r *Runtime) buildChain(wc config.WorkflowConfig, h *heap.Heap) (*engine.Chain, error) {
	eff := r.cfg.Chain
	if wc.Chain != nil {
		eff = wc.Chain.ChainConfig
	}

	compressEnabled := eff.Compress != "none"
	codec := engine.CodecGzip
	if compressEnabled {
		var err error
		if codec, err = engine.ParseCodec(eff.Compress); err != nil {
			return nil, engine.NewConfigurationError(fmt.Errorf("workflow %s: %w", wc.ID, err))
		}
	}

	return engine.NewChainBuilder().Append(
		engine.NewAggregator(eff.Aggregate),
		engine.NewInspector(r.newResolver(h), eff.Inspect),
		engine.NewMinify(minify.New(), eff.Minify),
		engine.NewCacheStage(engine.CacheConfig{
			Store:       r.store,
			ChainConfig: eff,
			BestEffort:  r.cfg.Cache.BestEffort,
			Stats:       r.stats,
		}),
		engine.NewCompress(codec, compressEnabled),
	).Build()
}

// Run resolves the workflow's heap and processes it through the chain,
// returning the final nuts ready for delivery.
func (r *Runtime) Run(ctx context.Context, workflowID string) ([]*nut.Nut, error) {
	u, ok := r.units[workflowID]
	if !ok {
		return nil, fmt.Errorf("unknown workflow %q", workflowID)
	}

	ctx, span := telemetry.StartSpan(ctx, "workflow.run", telemetry.WithAttributes(map[string]any{
		"workflow": workflowID,
	}))
	defer span.End()

	nuts, err := u.heap.Resolve(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(telemetry.StatusError, err.Error())
		return nil, err
	}

	req := engine.NewRequest(workflowID, r.cfg.ContextPath, nuts)
	results, err := u.chain.Run(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(telemetry.StatusError, err.Error())
		return nil, err
	}
	return results, nil
}

// Workflows returns the configured workflow identifiers in declaration
// order.
func (r *Runtime) Workflows() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// ContextPath returns the URL prefix processed assets are served under.
func (r *Runtime) ContextPath() string { return r.cfg.ContextPath }

// Store exposes the entry store, mainly for tests and tooling.
func (r *Runtime) Store() storage.Store { return r.store }

// Stats exposes cache counters for reporting.
func (r *Runtime) Stats() *storage.Stats { return r.stats }

// Poll triggers one change-detection pass on every pollable origin.
// Schedulers call it on their own cadence; it is exposed for tooling.
func (r *Runtime) Poll(ctx context.Context) {
	for _, src := range r.sources {
		p, ok := src.(source.Pollable)
		if !ok {
			continue
		}
		if err := p.Poll(ctx); err != nil {
			logger.Named("workflow").Warn("poll failed", "source", src.ID(), "error", err)
		}
	}
}

// sourceChanged drops every cache entry computed from the origin. Heap
// listeners and reference observation both funnel here.
func (r *Runtime) sourceChanged(sourceID, _ string) {
	ctx := context.Background()
	if err := r.store.InvalidateSource(ctx, sourceID); err != nil {
		logger.Named("workflow").Warn("invalidation failed", "source", sourceID, "error", err)
		return
	}
	r.stats.RecordInvalidation()
	logger.Named("workflow").Info("cache invalidated", "source", sourceID)
}

// Close stops pollers and releases the store. Safe to call more than once.
func (r *Runtime) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	for _, p := range r.pollers {
		p.Close()
	}
	if r.store != nil {
		return r.store.Close()
	}
	return nil
}
