package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/fieldops/core/dispatch"
	"github.com/kilianp07/fieldops/core/settlement"
	revenuejob "github.com/kilianp07/fieldops/jobs/revenue"
)

// EnvPrefix prefixes environment overrides. Nested keys use a double
// underscore: FIELDOPS_SETTLEMENT__PLATFORM_COMMISSION_RATE=0.12.
const EnvPrefix = "FIELDOPS_"

type Config struct {
	Dispatch    dispatch.Config   `json:"dispatch"`
	Settlement  settlement.Config `json:"settlement"`
	Aggregation revenuejob.Config `json:"aggregation"`
	Storage     StorageConfig     `json:"storage"`
	Metrics     MetricsConfig     `json:"metrics"`
	DecisionLog PluginConfig      `json:"decision_log"`
}

// Load reads a YAML or JSON file, applies environment overrides, then fills
// defaults and validates every section. An empty path loads defaults and
// environment only.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		ext := strings.ToLower(filepath.Ext(path))
		var parser koanf.Parser
		switch ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, err
		}
	}
	// Optional environment overrides
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.SetDefaults()
	return &cfg
}

// SetDefaults applies the defaults of every section.
func (c *Config) SetDefaults() {
	c.Dispatch.SetDefaults()
	c.Settlement.SetDefaults()
	c.Aggregation.SetDefaults()
	c.Storage.SetDefaults()
	c.Metrics.SetDefaults()
	if c.DecisionLog.Type == "" {
		c.DecisionLog.Type = "none"
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.Dispatch.Validate(); err != nil {
		return err
	}
	if err := c.Settlement.Validate(); err != nil {
		return err
	}
	if err := c.Aggregation.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	return c.Metrics.Validate()
}
