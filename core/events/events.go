package events

import (
	"time"

	"github.com/kilianp07/truckhub/core/capacity"
	"github.com/kilianp07/truckhub/core/model"
)

// Topics used when events leave the process.
const (
	TopicUnits  = "units"
	TopicSizing = "sizing"
)

// Unit outcomes.
const (
	OutcomeOptimal    = "optimal"
	OutcomeNoSolution = "no_solution"
	OutcomeTimeout    = "timeout"
)

// Event is implemented by every bus event.
type Event interface {
	Topic() string
	Kind() string
}

// Envelope is the wire form of an event leaving the process.
type Envelope struct {
	Kind  string `json:"kind"`
	Event Event  `json:"event"`
}

// Wrap builds the envelope of ev.
func Wrap(ev Event) Envelope { return Envelope{Kind: ev.Kind(), Event: ev} }

// UnitStarted is published before a unit is solved.
type UnitStarted struct {
	RunID    string        `json:"run_id"`
	Key      model.UnitKey `json:"key"`
	Sessions int           `json:"sessions"`
	Time     time.Time     `json:"time"`
}

func (UnitStarted) Topic() string { return TopicUnits }
func (UnitStarted) Kind() string  { return "unit_started" }

// UnitFinished is published once per unit. Result is nil unless Outcome is
// OutcomeOptimal.
type UnitFinished struct {
	RunID     string            `json:"run_id"`
	Key       model.UnitKey     `json:"key"`
	Outcome   string            `json:"outcome"`
	Error     string            `json:"error,omitempty"`
	Duration  time.Duration     `json:"duration"`
	Result    *model.UnitResult `json:"-"`
	Served    int               `json:"served"`
	Quota     float64           `json:"quota"`
	EnergyKWh float64           `json:"energy_kwh"`
	Time      time.Time         `json:"time"`
}

func (UnitFinished) Topic() string { return TopicUnits }
func (UnitFinished) Kind() string  { return "unit_finished" }

// SizingDone reports the station count search of one class.
type SizingDone struct {
	RunID    string                `json:"run_id"`
	Scenario string                `json:"scenario"`
	Class    model.StationClass    `json:"class"`
	Target   float64               `json:"target_quota"`
	Result   capacity.SizingResult `json:"result"`
	Error    string                `json:"error,omitempty"`
	Time     time.Time             `json:"time"`
}

func (SizingDone) Topic() string { return TopicSizing }
func (SizingDone) Kind() string  { return "sizing_done" }

// Finished builds a UnitFinished from a solved unit.
func Finished(res *model.UnitResult, d time.Duration) UnitFinished {
	energy := 0.0
	for _, s := range res.Sessions {
		energy += s.EnergyKWh
	}
	return UnitFinished{
		RunID:     res.RunID,
		Key:       res.Key,
		Outcome:   OutcomeOptimal,
		Duration:  d,
		Result:    res,
		Served:    res.Served,
		Quota:     res.Quota,
		EnergyKWh: energy,
		Time:      time.Now(),
	}
}
