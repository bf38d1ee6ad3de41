package engine

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/tool-recommender-bot/wuic/logger"
	"github.com/tool-recommender-bot/wuic/nut"
	"github.com/tool-recommender-bot/wuic/storage"
)

// BestEffortPrefix marks nuts served from a stale entry after an origin
// failure, so downstream consumers can tell a degraded response from a
// regular one.
const BestEffortPrefix = "best-effort/"

// CacheConfig configures the cache stage.
type CacheConfig struct {
	// Store holds computed entries. Required.
	Store storage.Store
	// ChainConfig is the workflow's stage configuration; it is folded into
	// every fingerprint so a settings change cannot serve entries computed
	// under the old settings.
	ChainConfig any
	// BestEffort serves the last known good result, renamed with
	// BestEffortPrefix, when the origin fails mid-computation.
	BestEffort bool
	// Stats, when set, receives lookup and store outcomes.
	Stats *storage.Stats
}

// CacheStage memoizes the tail of the chain per input fingerprint. A hit
// returns the stored nuts without running later stages; a miss runs them and
// stores the final output. Concurrent misses on one fingerprint recompute
// independently; the last store wins.
type CacheStage struct {
	store      storage.Store
	config     any
	bestEffort bool
	stats      *storage.Stats

	mu       sync.Mutex
	lastGood map[string]*storage.Entry
}

// NewCacheStage creates the cache stage.
func NewCacheStage(cfg CacheConfig) *CacheStage {
	return &CacheStage{
		store:      cfg.Store,
		config:     cfg.ChainConfig,
		bestEffort: cfg.BestEffort,
		stats:      cfg.Stats,
		lastGood:   make(map[string]*storage.Entry),
	}
}

// Name implements Stage.
func (c *CacheStage) Name() string { return "cache" }

// Category implements Stage.
func (c *CacheStage) Category() Category { return CategoryCache }

// Handles implements Stage.
func (c *CacheStage) Handles() []nut.Type { return nut.Types() }

// Transform implements Stage. The executor always routes the cache stage
// through ProcessChain; a direct call passes the nuts through.
func (c *CacheStage) Transform(_ context.Context, req *Request) ([]*nut.Nut, error) {
	return req.Nuts(), nil
}

// ProcessChain implements Forwarder.
func (c *CacheStage) ProcessChain(ctx context.Context, req *Request, next Next) ([]*nut.Nut, error) {
	inputs := req.Nuts()
	fp, err := c.fingerprint(ctx, req.WorkflowID(), inputs)
	if err != nil {
		return c.degrade(req, inputs, err)
	}

	start := time.Now()
	entry, err := c.store.Get(ctx, fp)
	if err != nil {
		logger.L().Warn("cache lookup failed, treating as miss",
			"workflow", req.WorkflowID(), "error", err)
		entry = nil
	}
	c.recordLookup(req.WorkflowID(), entry != nil, time.Since(start))
	if entry != nil {
		return entry.Nuts, nil
	}

	results, err := next(ctx, req)
	if err != nil {
		return c.degrade(req, inputs, err)
	}

	c.storeResults(ctx, req, fp, inputs, results)
	return results, nil
}

// fingerprint derives the store key for the request. Version numbers block
// here; this is the point where the pipeline first observes them.
func (c *CacheStage) fingerprint(ctx context.Context, workflowID string, inputs []*nut.Nut) (storage.Fingerprint, error) {
	ids := make([]storage.InputNut, 0, len(inputs))
	for _, n := range inputs {
		v, err := n.VersionNumber(ctx)
		if err != nil {
			return storage.Fingerprint{}, err
		}
		ids = append(ids, storage.InputNut{Name: n.Name(), Version: v})
	}
	return storage.NewFingerprint(workflowID, c.config, ids)
}

// storeResults writes the computed entry. Dynamic content is never stored,
// and a store failure never fails the request that computed the results.
func (c *CacheStage) storeResults(ctx context.Context, req *Request, fp storage.Fingerprint, inputs, results []*nut.Nut) {
	for _, n := range nut.Flatten(results) {
		if n.Dynamic() {
			logger.L().Debug("skipping cache store, results contain dynamic nut",
				"workflow", req.WorkflowID(), "nut", n.Name())
			return
		}
	}

	entry := &storage.Entry{
		Key:        fp,
		WorkflowID: req.WorkflowID(),
		Sources:    collectSources(results),
		Nuts:       results,
		CreatedAt:  time.Now(),
	}

	c.mu.Lock()
	c.lastGood[nameKey(req.WorkflowID(), inputs)] = entry
	c.mu.Unlock()

	if err := c.store.Put(ctx, entry); err != nil {
		logger.L().Warn("cache store failed", "workflow", req.WorkflowID(), "error", err)
		return
	}
	if c.stats != nil {
		c.stats.RecordPut()
	}
}

// degrade serves the last good entry for the request's inputs when the
// failure is recoverable and best-effort is on; otherwise the failure stands.
// Served nuts are renamed so consumers can tell they are stale.
func (c *CacheStage) degrade(req *Request, inputs []*nut.Nut, cause error) ([]*nut.Nut, error) {
	if !c.bestEffort {
		return nil, cause
	}
	switch Classify(cause) {
	case CodeSourceAccess, CodeTransform:
	default:
		return nil, cause
	}

	c.mu.Lock()
	entry := c.lastGood[nameKey(req.WorkflowID(), inputs)]
	c.mu.Unlock()
	if entry == nil {
		return nil, cause
	}

	logger.L().Warn("serving stale result",
		"workflow", req.WorkflowID(), "age", time.Since(entry.CreatedAt), "error", cause)
	if c.stats != nil {
		c.stats.RecordDegraded()
	}

	out := make([]*nut.Nut, 0, len(entry.Nuts))
	for _, n := range entry.Nuts {
		out = append(out, n.Rename(BestEffortPrefix+n.Name()))
	}
	return out, nil
}

func (c *CacheStage) recordLookup(workflow string, hit bool, elapsed time.Duration) {
	if c.stats == nil {
		return
	}
	c.stats.RecordLookup(storage.Lookup{
		Workflow:  workflow,
		Hit:       hit,
		Duration:  elapsed,
		Timestamp: time.Now(),
	})
}

// nameKey identifies a request by workflow and input names only, so a stale
// entry stays reachable when versions cannot be resolved.
func nameKey(workflowID string, inputs []*nut.Nut) string {
	var b strings.Builder
	b.WriteString(workflowID)
	for _, n := range inputs {
		b.WriteByte(0)
		b.WriteString(n.Name())
	}
	return b.String()
}

// collectSources gathers the distinct origins the results were derived from,
// in first-seen order across the full referenced graph.
func collectSources(results []*nut.Nut) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, n := range nut.Flatten(results) {
		src := n.Source()
		if src == "" {
			continue
		}
		if _, ok := seen[src]; ok {
			continue
		}
		seen[src] = struct{}{}
		out = append(out, src)
	}
	return out
}

// Verify interface compliance at compile time.
var (
	_ Stage     = (*CacheStage)(nil)
	_ Forwarder = (*CacheStage)(nil)
)
