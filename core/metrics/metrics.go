package metrics

import (
	"time"

	"github.com/kilianp07/truckhub/core/model"
)

// UnitRecord is the outcome of one (scenario, week, strategy) unit.
type UnitRecord struct {
	RunID        string
	Key          model.UnitKey
	Outcome      string
	Served       int
	FullyCharged int
	Quota        float64
	EnergyKWh    float64
	SiteBudgetKW float64
	SolveTime    time.Duration
	Time         time.Time
}

// SizingRecord is the station count found for one class.
type SizingRecord struct {
	RunID     string
	Scenario  string
	Class     model.StationClass
	Target    float64
	Stations  int
	Quota     float64
	Converged bool
	Time      time.Time
}

// Sink records run results for observability purposes.
type Sink interface {
	RecordUnit(rec UnitRecord) error
	RecordSizing(rec SizingRecord) error
}

// LoadPoint is one step of an aggregated load profile.
type LoadPoint struct {
	Scenario  string
	Strategy  string
	Step      int
	PowerKW   float64
	SiteCapKW float64
	ClassKW   map[model.StationClass]float64
}

// LoadProfileRecorder is implemented by sinks able to store time series.
type LoadProfileRecorder interface {
	RecordLoadProfile(points []LoadPoint) error
}

// NopSink implements Sink with no-op methods.
type NopSink struct{}

func (NopSink) RecordUnit(UnitRecord) error         { return nil }
func (NopSink) RecordSizing(SizingRecord) error     { return nil }
func (NopSink) RecordLoadProfile([]LoadPoint) error { return nil }
