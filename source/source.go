package source

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/tool-recommender-bot/wuic/nut"
)

// ChangeListener is notified when an observed name changes at its origin.
type ChangeListener func(sourceID, name string)

// VersionStrategy selects how a source stamps the nuts it resolves.
type VersionStrategy int

const (
	// VersionByDigest hashes the content bytes, so identical bytes carry an
	// identical version no matter when they were written.
	VersionByDigest VersionStrategy = iota
	// VersionByTimestamp uses the origin's modification time, trading
	// digest stability for cheap resolution without a content read.
	VersionByTimestamp
)

// ParseVersionStrategy reads the configuration spelling of a strategy. The
// empty string selects the digest default.
func ParseVersionStrategy(s string) (VersionStrategy, error) {
	switch strings.ToLower(s) {
	case "", "digest":
		return VersionByDigest, nil
	case "timestamp":
		return VersionByTimestamp, nil
	default:
		return VersionByDigest, fmt.Errorf("unknown version strategy %q", s)
	}
}

// Source is one origin assets are resolved from. Implementations are safe
// for concurrent use.
type Source interface {
	// ID identifies the origin in cache invalidation signals.
	ID() string
	// ListNames expands a glob pattern into the names it matches.
	ListNames(ctx context.Context, pattern string) ([]string, error)
	// Exists reports whether the origin currently serves name.
	Exists(ctx context.Context, name string) (bool, error)
	// Open returns the raw byte stream of name.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// Resolve builds a fresh nut for name with the source's version strategy
	// applied and the origin recorded for cache invalidation.
	Resolve(ctx context.Context, name string) (*nut.Nut, error)
	// LastModified reports when name last changed at the origin.
	LastModified(ctx context.Context, name string) (time.Time, error)
	// Observe registers a listener for changes to name.
	Observe(name string, l ChangeListener)
}

// Pollable is an origin that can compare its observed names against their
// last known state, firing change listeners on a difference.
type Pollable interface {
	Poll(ctx context.Context) error
}
