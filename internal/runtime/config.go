package runtime

import (
	"os"

	"github.com/goccy/go-yaml"
)

// Config is the on-disk, YAML-shaped counterpart of Options — the format
// cmd/goquill's --config flag loads, letting an embedder pin GC tuning and
// feature flags outside of Go source.
type Config struct {
	GCHighWaterMark int             `yaml:"gc_high_water_mark"`
	Features        map[string]bool `yaml:"features"`
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Options converts the parsed config into the functional options New
// expects.
func (c *Config) Options() []Option {
	opts := make([]Option, 0, 1+len(c.Features))
	if c.GCHighWaterMark != 0 {
		opts = append(opts, WithGCHighWaterMark(c.GCHighWaterMark))
	}
	for name, enabled := range c.Features {
		opts = append(opts, WithFeature(name, enabled))
	}
	return opts
}
