package storage

import (
	"context"
	"time"

	"github.com/tool-recommender-bot/wuic/nut"
)

// Entry is one cached computation: the nut list a chain produced for a
// fingerprint, with the origins it was derived from. Entries only ever hold
// successful results.
type Entry struct {
	Key        Fingerprint
	WorkflowID string
	Sources    []string
	Nuts       []*nut.Nut
	CreatedAt  time.Time
}

// Store maps a fingerprint to a previously computed entry. A miss is a nil
// entry, not an error. Implementations are safe for concurrent use; none of
// them deduplicates concurrent computation for the same key, so callers
// needing at-most-once recomputation must serialize themselves.
type Store interface {
	// Get returns the entry for key, or nil when absent or expired.
	Get(ctx context.Context, key Fingerprint) (*Entry, error)

	// Put stores e under e.Key, replacing any previous entry.
	Put(ctx context.Context, e *Entry) error

	// Invalidate drops one entry.
	Invalidate(ctx context.Context, key Fingerprint) error

	// InvalidateSource eagerly drops every entry derived from the origin,
	// independent of TTL.
	InvalidateSource(ctx context.Context, sourceID string) error

	// Clear drops every entry.
	Clear(ctx context.Context) error

	// Close stops background eviction and releases the backend.
	Close() error
}
