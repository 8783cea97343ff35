package dispatch

import (
	"fmt"

	"github.com/kilianp07/truckhub/core/optim"
	"github.com/kilianp07/truckhub/core/strategy"
)

// Mode selects how a strategy's primary and secondary objectives are combined.
type Mode string

const (
	// Lexicographic optimises the primary objective, then the secondary one
	// without giving up primary value.
	Lexicographic Mode = "lexicographic"
	// Weighted folds both into M·primary + secondary.
	Weighted Mode = "weighted"
)

// Config defines dispatch-related settings.
type Config struct {
	Mode     Mode             `json:"objective_mode"`
	Solver   optim.Options    `json:"solver"`
	Strategy strategy.Options `json:"strategy"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Mode == "" {
		c.Mode = Lexicographic
	}
	c.Solver.SetDefaults()
	c.Strategy.SetDefaults()
}

// Validate checks the objective mode and the solver backend.
func (c Config) Validate() error {
	switch c.Mode {
	case Lexicographic, Weighted:
	default:
		return fmt.Errorf("dispatch: unknown objective mode %q", c.Mode)
	}
	if err := c.Solver.Validate(); err != nil {
		return fmt.Errorf("dispatch: %w", err)
	}
	return nil
}
