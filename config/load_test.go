package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const minimalDoc = `
sources:
  - id: static
    root: ./assets
heaps:
  - id: site
    assets:
      - source: static
        patterns: "css/*.css"
workflows:
  - id: main
    heap: site
`

func TestParse_AppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalDoc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ContextPath != "/" {
		t.Fatalf("expected context path /, got %q", cfg.ContextPath)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("expected log level info, got %q", cfg.LogLevel)
	}
	if cfg.Cache.Type != "memory" {
		t.Fatalf("expected memory cache, got %q", cfg.Cache.Type)
	}
	if !cfg.Chain.Aggregate || !cfg.Chain.Inspect || !cfg.Chain.Minify || cfg.Chain.Compress != "gzip" {
		t.Fatalf("unexpected chain defaults: %+v", cfg.Chain)
	}
	patterns := cfg.Heaps[0].Assets[0].Patterns
	if len(patterns) != 1 || patterns[0] != "css/*.css" {
		t.Fatalf("expected the scalar pattern as a single-element list, got %v", patterns)
	}
}

func TestParse_PatternListAcceptsSequence(t *testing.T) {
	doc := `
sources:
  - id: static
    root: ./assets
heaps:
  - id: site
    assets:
      - source: static
        patterns:
          - "css/*.css"
          - "js/*.js"
workflows:
  - id: main
    heap: site
`
	cfg, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	patterns := cfg.Heaps[0].Assets[0].Patterns
	if len(patterns) != 2 || patterns[0] != "css/*.css" || patterns[1] != "js/*.js" {
		t.Fatalf("unexpected patterns: %v", patterns)
	}
}

func TestParse_DurationScalars(t *testing.T) {
	doc := `
sources:
  - id: static
    root: ./assets
    poll_interval: 30s
heaps:
  - id: site
    assets:
      - source: static
        patterns: "*.css"
cache:
  ttl: 5m
workflows:
  - id: main
    heap: site
`
	cfg, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Sources[0].PollInterval.Std() != 30*time.Second {
		t.Fatalf("expected 30s, got %v", cfg.Sources[0].PollInterval.Std())
	}
	if cfg.Cache.TTL.Std() != 5*time.Minute {
		t.Fatalf("expected 5m, got %v", cfg.Cache.TTL.Std())
	}
}

func TestParse_RejectsBadDuration(t *testing.T) {
	doc := `
sources:
  - id: static
    root: ./assets
    poll_interval: fast
heaps:
  - id: site
    assets:
      - source: static
        patterns: "*.css"
workflows:
  - id: main
    heap: site
`
	if _, err := Parse([]byte(doc)); err == nil {
		t.Fatal("expected an error for an unparsable duration")
	}
}

func TestParse_InterpolatesEnvironment(t *testing.T) {
	t.Setenv("WUIC_ASSETS", "/srv/assets")
	t.Setenv("WUIC_REDIS", "cache.internal:6379")
	doc := `
sources:
  - id: static
    root: ${env:WUIC_ASSETS}
heaps:
  - id: site
    assets:
      - source: static
        patterns: "*.css"
cache:
  type: redis
  addr: ${env:WUIC_REDIS}
workflows:
  - id: main
    heap: site
`
	cfg, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Sources[0].Root != "/srv/assets" {
		t.Fatalf("expected the root interpolated, got %q", cfg.Sources[0].Root)
	}
	if cfg.Cache.Addr != "cache.internal:6379" {
		t.Fatalf("expected the address interpolated, got %q", cfg.Cache.Addr)
	}
}

func TestParse_WorkflowChainOverrideKeepsDefaults(t *testing.T) {
	doc := `
sources:
  - id: static
    root: ./assets
heaps:
  - id: site
    assets:
      - source: static
        patterns: "*.css"
workflows:
  - id: main
    heap: site
    chain:
      minify: false
`
	cfg, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	override := cfg.Workflows[0].Chain
	if override == nil {
		t.Fatal("expected a chain override")
	}
	if override.Minify {
		t.Fatal("expected minify disabled")
	}
	if !override.Aggregate || !override.Inspect || override.Compress != "gzip" {
		t.Fatalf("expected untouched fields to keep defaults, got %+v", override.ChainConfig)
	}
}

func TestParse_MalformedDocumentFails(t *testing.T) {
	if _, err := Parse([]byte("sources: [id: ")); err == nil {
		t.Fatal("expected a parse error")
	}
}

func TestParse_JoinsAllValidationFailures(t *testing.T) {
	doc := `
context_path: assets
sources:
  - id: static
    root: ./assets
heaps:
  - id: site
    assets:
      - source: missing
        patterns: "*.css"
workflows:
  - id: main
    heap: site
`
	_, err := Parse([]byte(doc))
	if err == nil {
		t.Fatal("expected validation errors")
	}
	msg := err.Error()
	if !strings.Contains(msg, "must start with /") {
		t.Fatalf("expected the context path failure reported, got %q", msg)
	}
	if !strings.Contains(msg, "source does not exist") {
		t.Fatalf("expected the dangling source reference reported, got %q", msg)
	}
}

func TestLoad_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wuic.yml")
	if err := os.WriteFile(path, []byte(minimalDoc), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Workflows) != 1 || cfg.Workflows[0].ID != "main" {
		t.Fatalf("unexpected workflows: %v", cfg.Workflows)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "absent.yml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
