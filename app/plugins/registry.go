// Package plugins maps configured backend names to result store
// implementations.
package plugins

import (
	"github.com/kilianp07/truckhub/config"
	"github.com/kilianp07/truckhub/core/factory"
	"github.com/kilianp07/truckhub/core/results"
)

var stores = factory.NewRegistry[results.Store]()

// RegisterStore adds a store factory for a backend name.
func RegisterStore(name string, f factory.Factory[results.Store]) error {
	return stores.Register(name, f)
}

// StoreBackends lists the registered backend names.
func StoreBackends() []string { return stores.Names() }

// NewStore opens the store selected by cfg.Backend.
func NewStore(cfg config.StoreConfig) (results.Store, error) {
	return stores.Create(factory.ModuleConfig{
		Type: cfg.Backend,
		Conf: map[string]any{
			"path":         cfg.Path,
			"max_size_mb":  cfg.MaxSizeMB,
			"max_backups":  cfg.MaxBackups,
			"max_age_days": cfg.MaxAgeDays,
		},
	})
}
