package metrics

import "errors"

// MultiSink fans out records to multiple sinks.
type MultiSink struct {
	Sinks []Sink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordUnit forwards the record to all sinks. Every sink is called and the
// errors are joined.
func (m *MultiSink) RecordUnit(rec UnitRecord) error {
	var errs []error
	for _, s := range m.Sinks {
		errs = append(errs, s.RecordUnit(rec))
	}
	return errors.Join(errs...)
}

// RecordSizing forwards sizing records.
func (m *MultiSink) RecordSizing(rec SizingRecord) error {
	var errs []error
	for _, s := range m.Sinks {
		errs = append(errs, s.RecordSizing(rec))
	}
	return errors.Join(errs...)
}

// RecordLoadProfile forwards the profile to sinks that support it.
func (m *MultiSink) RecordLoadProfile(points []LoadPoint) error {
	var errs []error
	for _, s := range m.Sinks {
		if r, ok := s.(LoadProfileRecorder); ok {
			errs = append(errs, r.RecordLoadProfile(points))
		}
	}
	return errors.Join(errs...)
}

// Close releases every sink that holds a client.
func (m *MultiSink) Close() {
	for _, s := range m.Sinks {
		if c, ok := s.(interface{ Close() }); ok {
			c.Close()
		}
	}
}
