package metrics

import "github.com/kilianp07/truckhub/core/factory"

// Config defines settings for metrics sinks.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
	// LoadProfile forwards aggregated load profiles to sinks that support it.
	LoadProfile bool `json:"load_profile" yaml:"load_profile"`
}
