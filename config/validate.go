package config

import (
	"fmt"
	"strings"

	"github.com/tool-recommender-bot/wuic/engine"
	"github.com/tool-recommender-bot/wuic/source"
)

// ValidationError describes an integrity issue in a configuration document.
type ValidationError struct {
	Section   string // "sources", "heaps", "workflows", "cache" or "chain"
	ID        string // identifier of the offending element, if any
	Field     string
	Reference string // the identifier that was referenced, if any
	Message   string
}

func (e ValidationError) Error() string {
	at := e.Section
	if e.ID != "" {
		at += " " + e.ID
	}
	if e.Field != "" {
		at += "." + e.Field
	}
	if e.Reference != "" {
		return fmt.Sprintf("config %s: references %q: %s", at, e.Reference, e.Message)
	}
	return fmt.Sprintf("config %s: %s", at, e.Message)
}

// Validate checks identifier uniqueness, reference integrity and enum fields.
// Returns nil if the configuration is usable.
func Validate(cfg *Config) []ValidationError {
	var errs []ValidationError

	if !strings.HasPrefix(cfg.ContextPath, "/") {
		errs = append(errs, ValidationError{
			Section: "context_path",
			Message: "must start with /",
		})
	}

	sources := make(map[string]bool, len(cfg.Sources))
	for _, s := range cfg.Sources {
		if s.ID == "" {
			errs = append(errs, ValidationError{
				Section: "sources",
				Field:   "id",
				Message: "identifier is required",
			})
			continue
		}
		if sources[s.ID] {
			errs = append(errs, ValidationError{
				Section: "sources",
				ID:      s.ID,
				Field:   "id",
				Message: "duplicate identifier",
			})
		}
		sources[s.ID] = true

		switch s.Type {
		case "", "disk":
			if s.Root == "" {
				errs = append(errs, ValidationError{
					Section: "sources",
					ID:      s.ID,
					Field:   "root",
					Message: "disk source requires a root directory",
				})
			}
		case "memory":
		default:
			errs = append(errs, ValidationError{
				Section: "sources",
				ID:      s.ID,
				Field:   "type",
				Message: fmt.Sprintf("unknown source type %q", s.Type),
			})
		}

		if _, err := source.ParseVersionStrategy(s.Version); err != nil {
			errs = append(errs, ValidationError{
				Section: "sources",
				ID:      s.ID,
				Field:   "version",
				Message: err.Error(),
			})
		}
	}

	heaps := make(map[string]bool, len(cfg.Heaps))
	for _, h := range cfg.Heaps {
		if h.ID == "" {
			errs = append(errs, ValidationError{
				Section: "heaps",
				Field:   "id",
				Message: "identifier is required",
			})
			continue
		}
		if heaps[h.ID] {
			errs = append(errs, ValidationError{
				Section: "heaps",
				ID:      h.ID,
				Field:   "id",
				Message: "duplicate identifier",
			})
		}
		heaps[h.ID] = true
	}

	for _, h := range cfg.Heaps {
		if h.ID == "" {
			continue
		}
		if len(h.Assets) == 0 && len(h.Compose) == 0 {
			errs = append(errs, ValidationError{
				Section: "heaps",
				ID:      h.ID,
				Message: "declare assets or compose other heaps",
			})
		}
		if len(h.Assets) > 0 && len(h.Compose) > 0 {
			errs = append(errs, ValidationError{
				Section: "heaps",
				ID:      h.ID,
				Message: "assets and compose are mutually exclusive",
			})
		}
		for i, a := range h.Assets {
			if a.Source == "" || !sources[a.Source] {
				errs = append(errs, ValidationError{
					Section:   "heaps",
					ID:        h.ID,
					Field:     fmt.Sprintf("assets[%d].source", i),
					Reference: a.Source,
					Message:   "source does not exist",
				})
			}
			if len(a.Patterns) == 0 {
				errs = append(errs, ValidationError{
					Section: "heaps",
					ID:      h.ID,
					Field:   fmt.Sprintf("assets[%d].patterns", i),
					Message: "at least one pattern is required",
				})
			}
		}
		for i, ref := range h.Compose {
			if ref == h.ID {
				errs = append(errs, ValidationError{
					Section:   "heaps",
					ID:        h.ID,
					Field:     fmt.Sprintf("compose[%d]", i),
					Reference: ref,
					Message:   "self-loop detected",
				})
				continue
			}
			if !heaps[ref] {
				errs = append(errs, ValidationError{
					Section:   "heaps",
					ID:        h.ID,
					Field:     fmt.Sprintf("compose[%d]", i),
					Reference: ref,
					Message:   "heap does not exist",
				})
			}
		}
	}
	errs = append(errs, validateHeapCycles(cfg.Heaps)...)

	switch cfg.Cache.Type {
	case "", "memory":
	case "sqlite":
		if cfg.Cache.Path == "" {
			errs = append(errs, ValidationError{
				Section: "cache",
				Field:   "path",
				Message: "sqlite cache requires a database path",
			})
		}
	case "redis":
		if cfg.Cache.Addr == "" {
			errs = append(errs, ValidationError{
				Section: "cache",
				Field:   "addr",
				Message: "redis cache requires an address",
			})
		}
	default:
		errs = append(errs, ValidationError{
			Section: "cache",
			Field:   "type",
			Message: fmt.Sprintf("unknown cache type %q", cfg.Cache.Type),
		})
	}

	errs = append(errs, validateChain("chain", "", &cfg.Chain)...)

	if len(cfg.Workflows) == 0 {
		errs = append(errs, ValidationError{
			Section: "workflows",
			Message: "at least one workflow is required",
		})
	}
	workflows := make(map[string]bool, len(cfg.Workflows))
	for _, w := range cfg.Workflows {
		if w.ID == "" {
			errs = append(errs, ValidationError{
				Section: "workflows",
				Field:   "id",
				Message: "identifier is required",
			})
			continue
		}
		if workflows[w.ID] {
			errs = append(errs, ValidationError{
				Section: "workflows",
				ID:      w.ID,
				Field:   "id",
				Message: "duplicate identifier",
			})
		}
		workflows[w.ID] = true

		if w.Heap == "" || !heaps[w.Heap] {
			errs = append(errs, ValidationError{
				Section:   "workflows",
				ID:        w.ID,
				Field:     "heap",
				Reference: w.Heap,
				Message:   "heap does not exist",
			})
		}
		if w.Chain != nil {
			errs = append(errs, validateChain("workflows", w.ID, &w.Chain.ChainConfig)...)
		}
	}

	return errs
}

func validateChain(section, id string, c *ChainConfig) []ValidationError {
	if c.Compress == "none" {
		return nil
	}
	if _, err := engine.ParseCodec(c.Compress); err != nil {
		return []ValidationError{{
			Section: section,
			ID:      id,
			Field:   "compress",
			Message: err.Error(),
		}}
	}
	return nil
}

// validateHeapCycles reports every heap sitting on a composition cycle.
// Direct self-loops are reported by Validate and skipped here.
func validateHeapCycles(heaps []HeapConfig) []ValidationError {
	children := make(map[string][]string, len(heaps))
	for _, h := range heaps {
		children[h.ID] = h.Compose
	}

	reaches := func(from, target string) bool {
		seen := map[string]bool{from: true}
		var walk func(id string) bool
		walk = func(id string) bool {
			for _, ref := range children[id] {
				if ref == target {
					return true
				}
				if seen[ref] {
					continue
				}
				seen[ref] = true
				if walk(ref) {
					return true
				}
			}
			return false
		}
		return walk(from)
	}

	var errs []ValidationError
	for _, h := range heaps {
		for _, ref := range h.Compose {
			if ref == h.ID {
				continue
			}
			if reaches(ref, h.ID) {
				errs = append(errs, ValidationError{
					Section: "heaps",
					ID:      h.ID,
					Field:   "compose",
					Message: "composition cycle detected",
				})
				break
			}
		}
	}
	return errs
}
