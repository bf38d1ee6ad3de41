package nut

import (
	"context"
	"encoding/binary"
	"io"
	"time"

	"github.com/zeebo/blake3"
)

// Version is the asynchronously resolved version number of a nut. It is an
// explicit future: construction starts the computation and Get blocks only
// when a caller actually observes the value (fingerprints, URLs, manifest
// headers). A Version resolves exactly once.
type Version struct {
	done  chan struct{}
	value int64
	err   error
}

// ResolvedVersion returns a version already holding v.
func ResolvedVersion(v int64) *Version {
	ver := &Version{done: make(chan struct{}), value: v}
	close(ver.done)
	return ver
}

// TimestampVersion wraps a modification time as an already resolved version.
func TimestampVersion(t time.Time) *Version {
	return ResolvedVersion(t.UnixMilli())
}

// ComputeVersion resolves the version with the result of fn, run in its own
// goroutine.
func ComputeVersion(fn func() (int64, error)) *Version {
	ver := &Version{done: make(chan struct{})}
	go func() {
		defer close(ver.done)
		ver.value, ver.err = fn()
	}()
	return ver
}

// Get blocks until the version is resolved or ctx is done.
func (v *Version) Get(ctx context.Context) (int64, error) {
	select {
	case <-v.done:
		return v.value, v.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Resolved reports whether Get would return without blocking.
func (v *Version) Resolved() bool {
	select {
	case <-v.done:
		return true
	default:
		return false
	}
}

// DigestReader consumes r and folds a BLAKE3 digest of its bytes into a
// non-negative int64. Identical bytes always fold to the identical number;
// a single changed byte changes it.
func DigestReader(r io.Reader) (int64, error) {
	h := blake3.New()
	if _, err := io.Copy(h, r); err != nil {
		return 0, err
	}
	sum := h.Sum(nil)
	return int64(binary.BigEndian.Uint64(sum[:8]) &^ (1 << 63)), nil
}

// DigestBytes folds a BLAKE3 digest of b into a non-negative int64.
func DigestBytes(b []byte) int64 {
	sum := blake3.Sum256(b)
	return int64(binary.BigEndian.Uint64(sum[:8]) &^ (1 << 63))
}
