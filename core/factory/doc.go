// Package factory resolves configured module names to implementations.
// Result stores and metrics sinks are selected this way: each backend
// registers a constructor under its name, and the constructor decodes its
// own settings from the raw conf map with Decode.
//
//	sinks := factory.NewRegistry[metrics.Sink]()
//	_ = sinks.Register("nop", func(map[string]any) (metrics.Sink, error) {
//		return metrics.NopSink{}, nil
//	})
//	all, err := sinks.CreateAll(cfg.Metrics.Sinks)
package factory
