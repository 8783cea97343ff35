package plugins

import (
	"github.com/kilianp07/truckhub/config"
	"github.com/kilianp07/truckhub/core/factory"
	"github.com/kilianp07/truckhub/core/results"
)

func init() {
	_ = RegisterStore(config.StoreMemory, func(map[string]any) (results.Store, error) {
		return results.NewMemoryStore(), nil
	})
	_ = RegisterStore(config.StoreSQLite, func(conf map[string]any) (results.Store, error) {
		var sc config.StoreConfig
		if err := factory.Decode(conf, &sc); err != nil {
			return nil, err
		}
		s, err := results.NewSQLiteStore(sc.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
	_ = RegisterStore(config.StoreJSONL, func(conf map[string]any) (results.Store, error) {
		var sc config.StoreConfig
		if err := factory.Decode(conf, &sc); err != nil {
			return nil, err
		}
		s, err := results.NewJSONLStore(sc.Path, sc.MaxSizeMB, sc.MaxBackups, sc.MaxAgeDays)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
}
