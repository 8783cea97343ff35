// Package config loads the truckhub configuration file.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/truckhub/core/capacity"
	"github.com/kilianp07/truckhub/core/dispatch"
	"github.com/kilianp07/truckhub/core/metrics"
	"github.com/kilianp07/truckhub/core/model"
	"github.com/kilianp07/truckhub/core/runner"
	"github.com/kilianp07/truckhub/core/synth"
	"github.com/kilianp07/truckhub/infra/logger"
	"github.com/kilianp07/truckhub/infra/monitoring"
)

// EnvPrefix marks environment overrides. K_RUNNER__WORKERS=4 sets runner.workers.
const EnvPrefix = "K_"

type Config struct {
	Scenario ScenarioConfig  `json:"scenario"`
	Data     DataConfig      `json:"data"`
	Grid     GridConfig      `json:"grid"`
	Capacity capacity.Config `json:"capacity"`
	Dispatch dispatch.Config `json:"dispatch"`
	Runner   runner.Config   `json:"runner"`
	Store    StoreConfig     `json:"store"`
	Metrics  metrics.Config  `json:"metrics"`
	Events   EventsConfig    `json:"events"`
	Synth    synth.Config    `json:"synth"`
	Logging  logger.Options  `json:"logging"`
	Output   OutputConfig    `json:"output"`
	// Monitoring reports failed units to Sentry when a DSN is set.
	Monitoring monitoring.Config `json:"monitoring"`
}

// GridConfig holds the battery charging envelope.
type GridConfig struct {
	// Envelope replaces the default two-piece charging curve when set.
	Envelope model.Envelope `json:"envelope"`
}

// OutputConfig selects where and how aggregated results are written.
type OutputConfig struct {
	Dir string `json:"dir"`
	// Formats lists "csv" and/or "json".
	Formats []string `json:"formats"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
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

// SetDefaults fills every section.
func (c *Config) SetDefaults() {
	c.Data.SetDefaults()
	c.Scenario.SetDefaults(c.Data)
	if len(c.Grid.Envelope) == 0 {
		c.Grid.Envelope = model.DefaultEnvelope
	}
	c.Capacity.SetDefaults()
	c.Dispatch.SetDefaults()
	c.Runner.SetDefaults()
	c.Store.SetDefaults()
	c.Events.SetDefaults()
	c.Synth.SetDefaults()
	if c.Output.Dir == "" {
		c.Output.Dir = "out"
	}
	if len(c.Output.Formats) == 0 {
		c.Output.Formats = []string{"csv"}
	}
}

// Validate reports every invalid section at once.
func (c Config) Validate() error {
	errs := []error{
		c.Scenario.Validate(c.Data),
		c.Capacity.Validate(),
		c.Dispatch.Validate(),
		c.Runner.Validate(),
		c.Store.Validate(),
		c.Events.Validate(),
		c.Synth.Validate(),
		c.Logging.Validate(),
		c.Monitoring.Validate(),
	}
	for _, f := range c.Output.Formats {
		if f != "csv" && f != "json" {
			errs = append(errs, fmt.Errorf("output: unknown format %q", f))
		}
	}
	return errors.Join(errs...)
}
