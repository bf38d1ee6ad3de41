package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration supports "30s" / "5m" scalars in YAML. Zero and negative values
// are valid; schedulers treat them as disabled.
type Duration time.Duration

// UnmarshalYAML parses a Go duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be a scalar such as \"30s\"")
	}
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the standard library representation.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// PatternList supports both a single pattern and a list in YAML.
type PatternList []string

// UnmarshalYAML allows patterns to be either a single string or a list.
func (p *PatternList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		*p = []string{value.Value}
		return nil
	}
	var list []string
	if err := value.Decode(&list); err != nil {
		return err
	}
	*p = list
	return nil
}

// Config is the root configuration document.
type Config struct {
	ContextPath string           `yaml:"context_path"`
	LogLevel    string           `yaml:"log_level"`
	Trace       bool             `yaml:"trace"`
	Sources     []SourceConfig   `yaml:"sources"`
	Heaps       []HeapConfig     `yaml:"heaps"`
	Cache       CacheConfig      `yaml:"cache"`
	Chain       ChainConfig      `yaml:"chain"`
	Workflows   []WorkflowConfig `yaml:"workflows"`
}

// SourceConfig declares one asset origin.
type SourceConfig struct {
	ID   string `yaml:"id"`
	Type string `yaml:"type"`
	Root string `yaml:"root"`
	// Version selects the stamp strategy: digest (default) or timestamp.
	Version string `yaml:"version"`
	// PollInterval schedules origin change detection; non-positive or
	// absent disables polling for the source.
	PollInterval Duration `yaml:"poll_interval"`
}

// AssetGroup binds glob patterns to a declared source.
type AssetGroup struct {
	Source   string      `yaml:"source"`
	Patterns PatternList `yaml:"patterns"`
}

// HeapConfig declares one named asset group, either from pattern entries or
// composed of other heaps.
type HeapConfig struct {
	ID      string       `yaml:"id"`
	Assets  []AssetGroup `yaml:"assets"`
	Compose []string     `yaml:"compose"`
}

// CacheConfig selects and configures the entry store.
type CacheConfig struct {
	// Type is memory (default), sqlite or redis.
	Type string `yaml:"type"`
	// TTL schedules entry eviction; non-positive or absent disables it.
	TTL        Duration `yaml:"ttl"`
	BestEffort bool     `yaml:"best_effort"`

	// Path locates the sqlite database file.
	Path string `yaml:"path"`

	// Redis connection settings.
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// ChainConfig enables and tunes the pipeline stages. Workflows may override
// it per workflow; the overriding stage instance replaces the global one.
type ChainConfig struct {
	Aggregate bool `yaml:"aggregate"`
	Inspect   bool `yaml:"inspect"`
	Minify    bool `yaml:"minify"`
	// Compress selects the codec: gzip (default), zstd, or none.
	Compress string `yaml:"compress"`
}

// ChainOverride decodes onto the default chain settings, so a partial
// per-workflow block keeps defaults for the fields it leaves out.
type ChainOverride struct {
	ChainConfig
}

// UnmarshalYAML decodes the block over Default().Chain.
func (o *ChainOverride) UnmarshalYAML(value *yaml.Node) error {
	cfg := Default().Chain
	if err := value.Decode(&cfg); err != nil {
		return err
	}
	o.ChainConfig = cfg
	return nil
}

// WorkflowConfig binds a workflow identifier to the heap it processes.
type WorkflowConfig struct {
	ID   string `yaml:"id"`
	Heap string `yaml:"heap"`
	// Chain, when present, replaces the top-level chain settings for this
	// workflow.
	Chain *ChainOverride `yaml:"chain"`
}

// Default returns the configuration used when a field is absent from the
// document.
func Default() Config {
	return Config{
		ContextPath: "/",
		LogLevel:    "info",
		Cache:       CacheConfig{Type: "memory"},
		Chain: ChainConfig{
			Aggregate: true,
			Inspect:   true,
			Minify:    true,
			Compress:  "gzip",
		},
	}
}
