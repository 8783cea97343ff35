package capacity

import "fmt"

// DefaultChangeoverMin is the buffer added after each departure before a
// station can be reused.
const DefaultChangeoverMin = 5

// Config holds the sizing and labelling settings.
type Config struct {
	ChangeoverMin int `json:"changeover_min"`
	MaxIterations int `json:"max_iterations"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.ChangeoverMin == 0 {
		c.ChangeoverMin = DefaultChangeoverMin
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = DefaultMaxIterations
	}
}

// Validate checks the iteration bound.
func (c Config) Validate() error {
	if c.MaxIterations < 1 {
		return fmt.Errorf("capacity: max_iterations must be positive, got %d", c.MaxIterations)
	}
	return nil
}

// Changeover returns the buffer in minutes. A negative ChangeoverMin disables it.
func (c Config) Changeover() int {
	return max(c.ChangeoverMin, 0)
}
