package model

import (
	"errors"
	"math"
	"testing"
)

func TestSessionSteps(t *testing.T) {
	s := Session{ID: "a", Arrival: 60, Departure: 60 + 45}
	tIn, tOut := s.Steps()
	if tIn != 12 || tOut != 20 {
		t.Fatalf("expected [12,20], got [%d,%d]", tIn, tOut)
	}
	short := Session{ID: "b", Arrival: 7, Departure: 9}
	tIn, tOut = short.Steps()
	if tIn != 1 || tOut != 1 {
		t.Fatalf("expected single step window, got [%d,%d]", tIn, tOut)
	}
}

func TestSessionEnergyRequired(t *testing.T) {
	s := Session{CapacityKWh: 500, SoCInitial: 0.2, SoCTarget: 0.8}
	if got := s.EnergyRequiredKWh(); math.Abs(got-300) > 1e-9 {
		t.Fatalf("expected 300 kWh, got %v", got)
	}
	s.SoCTarget = 0.1
	if !s.TargetBelowInitial() || s.EnergyRequiredKWh() != 0 {
		t.Fatalf("target below initial must clamp requirement to zero")
	}
}

func TestSessionValidate(t *testing.T) {
	ok := Session{ID: "ok", Arrival: 0, Departure: 45, CapacityKWh: 400, MaxPowerKW: 500, SoCInitial: 0.1, SoCTarget: 0.8}
	if err := ok.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bad := ok
	bad.Departure = 0
	if err := bad.Validate(); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession, got %v", err)
	}
}

func TestParsePauseType(t *testing.T) {
	cases := []struct {
		in   string
		want PauseType
	}{
		{"Schnelllader", PauseFast},
		{"nachtlader", PauseNight},
		{"fast", PauseFast},
	}
	for _, c := range cases {
		got, err := ParsePauseType(c.in)
		if err != nil || got != c.want {
			t.Errorf("%s: got %v err %v", c.in, got, err)
		}
	}
	if _, err := ParsePauseType("Mittagspause"); !errors.Is(err, ErrUnknownPauseType) {
		t.Fatalf("expected ErrUnknownPauseType, got %v", err)
	}
}

func TestApplyPauseDurations(t *testing.T) {
	ss := []Session{{Arrival: 100, Pause: PauseFast}, {Arrival: 200, Pause: PauseNight}}
	ApplyPauseDurations(ss, 30, 600)
	if ss[0].Departure != 130 || ss[1].Departure != 800 {
		t.Fatalf("unexpected departures %d %d", ss[0].Departure, ss[1].Departure)
	}
}

func TestWeekMath(t *testing.T) {
	if WeekOf(0) != 1 || WeekOf(MinutesPerWeek) != 2 {
		t.Fatalf("week boundaries wrong")
	}
	if WeekStartStep(2) != StepsPerWeek || WeekOfStep(StepsPerWeek-1) != 1 {
		t.Fatalf("week step mapping wrong")
	}
	if StepsPerYear != 105408 {
		t.Fatalf("unexpected steps per year %d", StepsPerYear)
	}
}

func TestServiceQuota(t *testing.T) {
	if q := ServiceQuota(8, 10); q != 0.8 {
		t.Fatalf("expected 0.8, got %v", q)
	}
	if q := ServiceQuota(0, 0); q != 1 {
		t.Fatalf("empty set must count as served, got %v", q)
	}
}
