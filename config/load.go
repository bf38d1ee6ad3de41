package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads, interpolates and validates a configuration file. The returned
// configuration has defaults applied for absent fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes a configuration document.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	interpolateConfig(&cfg)

	if errs := Validate(&cfg); len(errs) > 0 {
		joined := make([]error, len(errs))
		for i, e := range errs {
			joined[i] = e
		}
		return nil, errors.Join(joined...)
	}
	return &cfg, nil
}

// interpolateConfig replaces ${env:VAR} with actual environment variable values.
func interpolateConfig(cfg *Config) {
	cfg.ContextPath = interpolateEnv(cfg.ContextPath)

	for i := range cfg.Sources {
		cfg.Sources[i].Root = interpolateEnv(cfg.Sources[i].Root)
	}

	cfg.Cache.Path = interpolateEnv(cfg.Cache.Path)
	cfg.Cache.Addr = interpolateEnv(cfg.Cache.Addr)
	cfg.Cache.Password = interpolateEnv(cfg.Cache.Password)
}

// interpolateEnv replaces ${env:VAR} with the environment variable value.
func interpolateEnv(s string) string {
	if strings.HasPrefix(s, "${env:") && strings.HasSuffix(s, "}") {
		varName := strings.TrimPrefix(s, "${env:")
		varName = strings.TrimSuffix(varName, "}")
		return os.Getenv(varName)
	}
	return s
}
