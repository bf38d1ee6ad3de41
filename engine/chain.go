package engine

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/tool-recommender-bot/wuic/logger"
	"github.com/tool-recommender-bot/wuic/nut"
	"github.com/tool-recommender-bot/wuic/telemetry"
)

// Chain is the canonical ordered stage list a request flows through. It is
// built once at configuration time and never mutated afterwards;
// reconfiguration builds a new chain and swaps it in.
type Chain struct {
	stages []Stage
}

// ChainBuilder composes configured stages into a canonical chain. Stages
// arrive in any order, possibly as pre-built sub-chains; Build flattens,
// orders and deduplicates them.
type ChainBuilder struct {
	stages []Stage
}

// NewChainBuilder creates an empty builder.
func NewChainBuilder() *ChainBuilder {
	return &ChainBuilder{}
}

// Append adds stages in discovery order. Nil stages are dropped.
func (b *ChainBuilder) Append(stages ...Stage) *ChainBuilder {
	for _, s := range stages {
		if s != nil {
			b.stages = append(b.stages, s)
		}
	}
	return b
}

// AppendChain flattens an existing chain into the builder, preserving its
// stage order.
func (b *ChainBuilder) AppendChain(c *Chain) *ChainBuilder {
	if c == nil {
		return b
	}
	return b.Append(c.stages...)
}

// Build returns the canonical chain. The appended stages are stable-sorted
// by category, then deduplicated by concrete kind: when the same kind
// appears twice, the later appended instance survives, placed at the
// earlier occurrence's slot. Building from zero stages is a configuration
// error.
func (b *ChainBuilder) Build() (*Chain, error) {
	if len(b.stages) == 0 {
		return nil, NewConfigurationError(ErrEmptyChain)
	}

	flat := make([]Stage, len(b.stages))
	copy(flat, b.stages)
	sort.SliceStable(flat, func(i, j int) bool {
		return flat[i].Category() < flat[j].Category()
	})

	// Same-kind stages share a category, so the stable sort keeps their
	// appended order: the last occurrence of a name is the latest instance.
	latest := make(map[string]Stage, len(flat))
	for _, s := range flat {
		latest[s.Name()] = s
	}

	orderedNames := make([]string, 0, len(latest))
	seen := make(map[string]struct{}, len(latest))
	for _, s := range flat {
		if _, ok := seen[s.Name()]; ok {
			continue
		}
		seen[s.Name()] = struct{}{}
		orderedNames = append(orderedNames, s.Name())
	}

	stages := make([]Stage, 0, len(orderedNames))
	for _, name := range orderedNames {
		stages = append(stages, latest[name])
	}
	return &Chain{stages: stages}, nil
}

// Stages returns a copy of the chain in execution order.
func (c *Chain) Stages() []Stage {
	out := make([]Stage, len(c.stages))
	copy(out, c.stages)
	return out
}

// Run executes the chain over req and returns the final nut list. A stage
// failure aborts the remainder of the chain for this request only.
func (c *Chain) Run(ctx context.Context, req *Request) ([]*nut.Nut, error) {
	return c.runFrom(ctx, req, 0)
}

func (c *Chain) runFrom(ctx context.Context, req *Request, i int) ([]*nut.Nut, error) {
	if i >= len(c.stages) {
		return req.Nuts(), nil
	}
	stage := c.stages[i]

	if req.Skipped(stage.Category()) {
		return c.runFrom(ctx, req, i+1)
	}

	next := func(ctx context.Context, fwd *Request) ([]*nut.Nut, error) {
		return c.runFrom(ctx, fwd, i+1)
	}

	ctx, span := telemetry.StartSpan(ctx, "engine."+stage.Name(), telemetry.WithAttributes(map[string]any{
		"workflow": req.WorkflowID(),
		"request":  req.ID(),
	}))
	defer span.End()
	start := time.Now()

	var (
		results []*nut.Nut
		err     error
	)
	forwarder, ownsTail := stage.(Forwarder)
	if ownsTail {
		results, err = forwarder.ProcessChain(ctx, req, next)
	} else {
		results, err = stage.Transform(ctx, req)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(telemetry.StatusError, err.Error())
		return nil, wrapStageError(stage.Name(), err)
	}

	if vt, ok := stage.(VersionTransformer); ok {
		if cb := vt.VersionCallback(); cb != nil {
			attachVersionCallback(stage.Handles(), results, cb)
		}
	}

	elapsed := time.Since(start)
	span.SetAttributes(telemetry.Attribute{Key: "elapsed_ms", Value: elapsed.Milliseconds()})
	logger.L().Debug("stage executed",
		"stage", stage.Name(), "workflow", req.WorkflowID(), "nuts", len(results), "elapsed", elapsed)

	if ownsTail {
		return results, nil
	}
	return c.runFrom(ctx, req.WithNuts(results), i+1)
}

// wrapStageError tags err with the failing stage unless one is already
// recorded, and classifies untyped errors.
func wrapStageError(stage string, err error) error {
	var e Error
	if errors.As(err, &e) {
		if e.Stage == "" {
			e.Stage = stage
			return e
		}
		return err
	}
	return Error{Code: Classify(err), Stage: stage, Err: err}
}

// attachVersionCallback registers cb on every result nut whose type is
// handled and on every matching nut reachable through references, exactly
// once per nut even when the graph shares nodes.
func attachVersionCallback(handled []nut.Type, results []*nut.Nut, cb nut.VersionCallback) {
	_ = nut.WalkAll(results, func(n *nut.Nut) error {
		if handles(handled, n.Type()) {
			n.AddVersionCallback(cb)
		}
		return nil
	})
}
