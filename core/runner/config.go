package runner

import (
	"fmt"
	"runtime"
	"time"
)

// DefaultUnitTimeout applies when unit_timeout is unset.
const DefaultUnitTimeout = 10 * time.Minute

// Config controls the batch execution of units.
type Config struct {
	// Workers bounds the number of units solved concurrently.
	Workers int `json:"workers"`
	// UnitTimeout bounds the solve time of one unit. A unit still running
	// when it expires is reported as having no optimal dispatch.
	UnitTimeout time.Duration `json:"unit_timeout"`
	// Weeks restricts the run to the listed planning weeks.
	Weeks []int `json:"weeks"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.UnitTimeout == 0 {
		c.UnitTimeout = DefaultUnitTimeout
	}
}

// Validate checks the week filter.
func (c Config) Validate() error {
	for _, w := range c.Weeks {
		if w < 1 || w > 53 {
			return fmt.Errorf("runner: week %d outside 1..53", w)
		}
	}
	if c.UnitTimeout < 0 {
		return fmt.Errorf("runner: negative unit_timeout %s", c.UnitTimeout)
	}
	return nil
}
