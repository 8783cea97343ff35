package config

import (
	"errors"
	"fmt"
	"slices"

	"github.com/kilianp07/truckhub/core/scenario"
	"github.com/kilianp07/truckhub/core/strategy"
)

// ScenarioConfig lists the scenarios to run. Descriptors and the catalog
// entries are combined.
type ScenarioConfig struct {
	Descriptors []string `json:"descriptors"`
	// Catalog is a YAML file of descriptors.
	Catalog string `json:"catalog"`
	// Strategies applies to every scenario without its own list. Empty means
	// every strategy whose series is configured.
	Strategies []string `json:"strategies"`
}

// SetDefaults falls back to the base scenario and the strategies the data
// section can feed.
func (c *ScenarioConfig) SetDefaults(data DataConfig) {
	if len(c.Descriptors) == 0 && c.Catalog == "" {
		c.Descriptors = []string{scenario.Default().String()}
	}
	if len(c.Strategies) == 0 {
		src := data.Sources()
		for _, name := range strategy.Names {
			if key, ok := seriesKey(name); ok {
				if _, have := src[key]; !have {
					continue
				}
			}
			c.Strategies = append(c.Strategies, name)
		}
	}
}

// Validate parses the inline descriptors and checks that every strategy is
// known and has its series.
func (c ScenarioConfig) Validate(data DataConfig) error {
	var errs []error
	for _, d := range c.Descriptors {
		if _, err := scenario.ParseDescriptor(d); err != nil {
			errs = append(errs, fmt.Errorf("scenario: %w", err))
		}
	}
	errs = append(errs, checkStrategies(c.Strategies, data))
	return errors.Join(errs...)
}

func checkStrategies(names []string, data DataConfig) error {
	src := data.Sources()
	var errs []error
	for _, name := range names {
		if !slices.Contains(strategy.Names, name) {
			errs = append(errs, fmt.Errorf("scenario: %w: %q", strategy.ErrUnknownStrategy, name))
			continue
		}
		if key, ok := seriesKey(name); ok {
			if _, have := src[key]; !have {
				errs = append(errs, fmt.Errorf("scenario: %w: %s needs data.%s", strategy.ErrMissingSeries, name, sourceField[key]))
			}
		}
	}
	return errors.Join(errs...)
}

// Resolve parses the inline descriptors and the catalog. Catalog entries
// without strategies inherit Strategies.
func (c ScenarioConfig) Resolve(data DataConfig) ([]scenario.Resolved, error) {
	var (
		out  []scenario.Resolved
		errs []error
	)
	for _, d := range c.Descriptors {
		sc, err := scenario.ParseDescriptor(d)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, scenario.Resolved{Scenario: sc, Strategies: c.Strategies})
	}
	if c.Catalog != "" {
		cat, err := scenario.LoadCatalog(c.Catalog)
		if err != nil {
			return nil, err
		}
		entries, err := cat.Resolve()
		errs = append(errs, err)
		for _, e := range entries {
			if len(e.Strategies) == 0 {
				e.Strategies = c.Strategies
			} else {
				errs = append(errs, checkStrategies(e.Strategies, data))
			}
			out = append(out, e)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return out, nil
}

// seriesKey returns the series a strategy is built from.
func seriesKey(name string) (string, bool) {
	switch name {
	case strategy.DayAhead, strategy.Intraday, strategy.NRV:
		return name, true
	}
	return "", false
}
