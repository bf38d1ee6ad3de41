package storage

import (
	"sync"
	"time"
)

// Lookup is one recorded cache probe.
type Lookup struct {
	Workflow  string        `json:"workflow"`
	Hit       bool          `json:"hit"`
	Duration  time.Duration `json:"duration,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

const maxLookupHistory = 1000

// Stats tracks cache effectiveness across requests. The cache stage records
// lookups and writes; the runtime records invalidation signals.
type Stats struct {
	mu            sync.RWMutex
	hits          int
	misses        int
	puts          int
	invalidations int
	degraded      int
	totalLookup   time.Duration
	lookupHistory []Lookup
	coldThreshold float64
	warmupLookups int
}

// NewStats creates an empty tracker.
func NewStats() *Stats {
	return &Stats{
		lookupHistory: make([]Lookup, 0),
		coldThreshold: 0.5,
		warmupLookups: 100,
	}
}

// RecordLookup adds one probe outcome.
func (s *Stats) RecordLookup(l Lookup) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l.Hit {
		s.hits++
	} else {
		s.misses++
	}
	s.totalLookup += l.Duration
	if l.Timestamp.IsZero() {
		l.Timestamp = time.Now()
	}
	s.lookupHistory = append(s.lookupHistory, l)

	if len(s.lookupHistory) > maxLookupHistory {
		s.lookupHistory = s.lookupHistory[len(s.lookupHistory)-maxLookupHistory:]
	}
}

// RecordPut counts one stored entry.
func (s *Stats) RecordPut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts++
}

// RecordInvalidation counts one source or key invalidation.
func (s *Stats) RecordInvalidation() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidations++
}

// RecordDegraded counts one response served in best-effort form.
func (s *Stats) RecordDegraded() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.degraded++
}

// GetStats returns a snapshot of cumulative statistics.
func (s *Stats) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lookups := s.hits + s.misses
	hitPercent := 0.0
	if lookups > 0 {
		hitPercent = float64(s.hits) / float64(lookups) * 100
	}

	stats := map[string]any{
		"hits":          s.hits,
		"misses":        s.misses,
		"lookups":       lookups,
		"hitPercent":    hitPercent,
		"puts":          s.puts,
		"invalidations": s.invalidations,
		"degraded":      s.degraded,
	}

	if lookups > 0 {
		stats["avgLookup"] = (s.totalLookup / time.Duration(lookups)).String()
	}

	return stats
}

// Recent returns up to n latest lookups, newest last.
func (s *Stats) Recent(n int) []Lookup {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n <= 0 || n > len(s.lookupHistory) {
		n = len(s.lookupHistory)
	}
	out := make([]Lookup, n)
	copy(out, s.lookupHistory[len(s.lookupHistory)-n:])
	return out
}

// IsCold reports whether the hit rate sits below the cold threshold after
// the warmup window, a hint that fingerprints churn faster than the TTL.
func (s *Stats) IsCold() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lookups := s.hits + s.misses
	if lookups < s.warmupLookups {
		return false
	}
	return float64(s.hits)/float64(lookups) < s.coldThreshold
}

// Reset clears all tracked data.
func (s *Stats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hits = 0
	s.misses = 0
	s.puts = 0
	s.invalidations = 0
	s.degraded = 0
	s.totalLookup = 0
	s.lookupHistory = make([]Lookup, 0)
}
