package model

import (
	"fmt"
	"strings"
)

// PauseType distinguishes short driver breaks from overnight rests.
type PauseType int

const (
	// PauseFast is the legally required short break (Schnelllader).
	PauseFast PauseType = iota
	// PauseNight is the daily rest period (Nachtlader).
	PauseNight
)

func (p PauseType) String() string {
	switch p {
	case PauseFast:
		return "fast"
	case PauseNight:
		return "night"
	default:
		return fmt.Sprintf("PauseType(%d)", int(p))
	}
}

// ParsePauseType accepts the English and the original German labels.
func ParsePauseType(s string) (PauseType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fast", "schnelllader":
		return PauseFast, nil
	case "night", "nachtlader":
		return PauseNight, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownPauseType, s)
}

// Session is one charging opportunity of a truck.
type Session struct {
	Cluster     int
	ID          string
	Arrival     int // minutes from epoch
	Departure   int // minutes from epoch, exclusive
	Pause       PauseType
	Class       StationClass
	CapacityKWh float64
	MaxPowerKW  float64
	SoCInitial  float64
	SoCTarget   float64
	Served      bool
}

// Week returns the planning week of the arrival.
func (s Session) Week() int { return WeekOf(s.Arrival) }

// Duration is the break length in minutes.
func (s Session) Duration() int { return s.Departure - s.Arrival }

// Steps returns the inclusive grid range [tIn, tOut] in which the truck can draw
// power. tOut is the last step starting before departure.
func (s Session) Steps() (tIn, tOut int) {
	tIn = StepOf(s.Arrival)
	tOut = StepOf(s.Departure - StepMinutes)
	if tOut < tIn {
		tOut = tIn
	}
	return tIn, tOut
}

// TargetBelowInitial reports a session asking for less charge than it holds.
func (s Session) TargetBelowInitial() bool { return s.SoCTarget < s.SoCInitial }

// EnergyRequiredKWh is the energy needed to reach the target, never negative.
func (s Session) EnergyRequiredKWh() float64 {
	if s.TargetBelowInitial() {
		return 0
	}
	return s.CapacityKWh * (s.SoCTarget - s.SoCInitial)
}

// Validate checks the window and battery fields.
func (s Session) Validate() error {
	switch {
	case s.Departure <= s.Arrival:
		return fmt.Errorf("%w %s: departure %d not after arrival %d", ErrInvalidSession, s.ID, s.Departure, s.Arrival)
	case s.Arrival < 0:
		return fmt.Errorf("%w %s: negative arrival", ErrInvalidSession, s.ID)
	case s.CapacityKWh <= 0:
		return fmt.Errorf("%w %s: capacity must be positive", ErrInvalidSession, s.ID)
	case s.MaxPowerKW <= 0:
		return fmt.Errorf("%w %s: max power must be positive", ErrInvalidSession, s.ID)
	case s.SoCInitial < 0 || s.SoCInitial > 1 || s.SoCTarget < 0 || s.SoCTarget > 1:
		return fmt.Errorf("%w %s: soc outside [0,1]", ErrInvalidSession, s.ID)
	}
	return nil
}

// ApplyPauseDurations recomputes departures from the pause type. Durations are
// in minutes.
func ApplyPauseDurations(sessions []Session, fast, night int) {
	for i := range sessions {
		switch sessions[i].Pause {
		case PauseFast:
			sessions[i].Departure = sessions[i].Arrival + fast
		case PauseNight:
			sessions[i].Departure = sessions[i].Arrival + night
		}
	}
}

// ScaleMaxPower multiplies the vehicle-side power rating of every session.
func ScaleMaxPower(sessions []Session, factor float64) {
	for i := range sessions {
		sessions[i].MaxPowerKW *= factor
	}
}

// FilterServed returns the served sessions.
func FilterServed(sessions []Session) []Session {
	out := make([]Session, 0, len(sessions))
	for _, s := range sessions {
		if s.Served {
			out = append(out, s)
		}
	}
	return out
}

// GroupByWeek buckets sessions by arrival week.
func GroupByWeek(sessions []Session) map[int][]Session {
	out := make(map[int][]Session)
	for _, s := range sessions {
		w := s.Week()
		out[w] = append(out[w], s)
	}
	return out
}
