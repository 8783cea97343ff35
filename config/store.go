package config

import "fmt"

// Store backends.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreJSONL  = "jsonl"
)

// StoreConfig defines where solved units are persisted.
type StoreConfig struct {
	// Backend selects the store type: "memory", "sqlite" or "jsonl".
	Backend string `json:"backend"`
	// Path is the file location of the store.
	Path string `json:"path"`
	// MaxSizeMB triggers rotation of the jsonl file when it exceeds this size in megabytes.
	MaxSizeMB int `json:"max_size_mb"`
	// MaxBackups limits the number of rotated files to keep.
	MaxBackups int `json:"max_backups"`
	// MaxAgeDays removes rotated files older than this number of days.
	MaxAgeDays int `json:"max_age_days"`
}

// SetDefaults applies sane defaults.
func (c *StoreConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = StoreMemory
	}
	if c.Path == "" {
		switch c.Backend {
		case StoreSQLite:
			c.Path = "results.db"
		case StoreJSONL:
			c.Path = "results.jsonl"
		}
	}
}

// Validate checks mandatory fields.
func (c StoreConfig) Validate() error {
	switch c.Backend {
	case StoreMemory:
		return nil
	case StoreSQLite, StoreJSONL:
		if c.Path == "" {
			return fmt.Errorf("store: path is required for %s", c.Backend)
		}
		return nil
	}
	return fmt.Errorf("store: unknown backend %q", c.Backend)
}
