package metrics

import "github.com/kilianp07/truckhub/core/factory"

var sinks = factory.NewRegistry[Sink]()

// RegisterSink adds a sink constructor under name.
func RegisterSink(name string, f factory.Factory[Sink]) error {
	return sinks.Register(name, f)
}

// SinkTypes lists the registered sink names.
func SinkTypes() []string { return sinks.Names() }

// NewSink builds the configured sinks. No entry yields a NopSink and several
// entries are combined in a MultiSink.
func NewSink(cfgs []factory.ModuleConfig) (Sink, error) {
	all, err := sinks.CreateAll(cfgs)
	switch {
	case err != nil:
		return nil, err
	case len(all) == 0:
		return NopSink{}, nil
	case len(all) == 1:
		return all[0], nil
	}
	return NewMultiSink(all...), nil
}
