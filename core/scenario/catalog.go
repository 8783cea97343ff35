package scenario

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Entry is one catalog line.
type Entry struct {
	Descriptor  string   `yaml:"descriptor"`
	Description string   `yaml:"description,omitempty"`
	Strategies  []string `yaml:"strategies,omitempty"`
	Disabled    bool     `yaml:"disabled,omitempty"`
}

// Catalog is a YAML list of scenarios to run. Base names the reference case
// that derived scenarios are compared against.
type Catalog struct {
	Base      string  `yaml:"base,omitempty"`
	Scenarios []Entry `yaml:"scenarios"`
}

// Resolved is a parsed catalog entry.
type Resolved struct {
	Scenario   Scenario
	Strategies []string
}

// LoadCatalog reads a catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return &c, nil
}

// Resolve parses every enabled entry. All descriptor errors are reported
// together.
func (c *Catalog) Resolve() ([]Resolved, error) {
	var (
		out  []Resolved
		errs []error
	)
	if c.Base != "" {
		if _, err := ParseDescriptor(c.Base); err != nil {
			errs = append(errs, fmt.Errorf("base: %w", err))
		}
	}
	for _, e := range c.Scenarios {
		if e.Disabled {
			continue
		}
		sc, err := ParseDescriptor(e.Descriptor)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, Resolved{Scenario: sc, Strategies: e.Strategies})
	}
	return out, errors.Join(errs...)
}
