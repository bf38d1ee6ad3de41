package engine

import "fmt"

// Category orders stages inside a chain. The declared order is the chain
// order: aggregation first so every later stage sees merged content,
// caching after the content-shaping stages so an entry holds their output,
// compression last.
type Category int

const (
	CategoryAggregate Category = iota + 1
	CategoryInspect
	CategoryMinify
	CategoryCache
	CategoryCompress
)

// String returns the label used in logs and configuration files.
func (c Category) String() string {
	switch c {
	case CategoryAggregate:
		return "aggregate"
	case CategoryInspect:
		return "inspect"
	case CategoryMinify:
		return "minify"
	case CategoryCache:
		return "cache"
	case CategoryCompress:
		return "compress"
	}
	return "unknown"
}

// ParseCategory maps a configuration label to its Category.
func ParseCategory(s string) (Category, error) {
	for _, c := range []Category{CategoryAggregate, CategoryInspect, CategoryMinify, CategoryCache, CategoryCompress} {
		if c.String() == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown stage category %q", s)
}
