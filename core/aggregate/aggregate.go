// Package aggregate turns solved dispatch units into a site load profile and a
// per-session ledger.
package aggregate

import (
	"sort"

	"github.com/kilianp07/truckhub/core/model"
	"github.com/kilianp07/truckhub/core/series"
)

// ProfileRow is the site load at one grid step under one strategy.
type ProfileRow struct {
	Scenario         string                         `json:"scenario"`
	Strategy         string                         `json:"strategy"`
	Step             int                            `json:"step"`
	Week             int                            `json:"week"`
	PowerKW          float64                        `json:"power_kw"`
	ClassKW          map[model.StationClass]float64 `json:"class_kw"`
	SiteCapKW        float64                        `json:"site_cap_kw"`
	MaxDeliverableKW float64                        `json:"max_deliverable_kw"`
	Quota            float64                        `json:"quota"`
	DayAheadEUR      float64                        `json:"day_ahead_eur,omitempty"`
	IntradayEUR      float64                        `json:"intraday_eur,omitempty"`
}

// Prices are the optional series used to cost the load profile.
type Prices struct {
	DayAhead *series.Series
	Intraday *series.Series
}

// LedgerRow is one step of one served session.
type LedgerRow struct {
	Scenario  string             `json:"scenario"`
	Week      int                `json:"week"`
	Strategy  string             `json:"strategy"`
	SessionID string             `json:"session_id"`
	Class     model.StationClass `json:"class"`
	model.StepResult
}

type profileKey struct {
	scenario string
	strategy string
}

type accumulator struct {
	rows   map[int]*ProfileRow
	quota  map[int]float64
	cap    float64
	first  int
	last   int
	filled bool
}

// LoadProfile sums the dispatch of all units per (scenario, strategy) and
// step. Every step from the start of the first week to the end of the last
// week, or the last spill-over step if later, gets a row. A step's quota is
// the quota of the unit whose week contains it, or zero when that week was not
// dispatched. Rows are ordered by scenario, strategy and step.
//
// Each week is dispatched against its own site budget, so spill-over from the
// previous week can push PowerKW above SiteCapKW in the first steps of a week.
func LoadProfile(units []*model.UnitResult, prices Prices) []ProfileRow {
	accs := make(map[profileKey]*accumulator)
	for _, u := range units {
		if u == nil {
			continue
		}
		k := profileKey{u.Key.Scenario, u.Key.Strategy}
		acc, ok := accs[k]
		if !ok {
			acc = &accumulator{rows: make(map[int]*ProfileRow), quota: make(map[int]float64)}
			accs[k] = acc
		}
		acc.quota[u.Key.Week] = u.Quota
		if u.SiteBudgetKW > acc.cap {
			acc.cap = u.SiteBudgetKW
		}
		acc.span(model.WeekStartStep(u.Key.Week), model.WeekStartStep(u.Key.Week+1)-1)
		for _, s := range u.Sessions {
			for _, st := range s.Steps {
				if st.Terminal {
					continue
				}
				acc.span(st.Step, st.Step)
				r := acc.row(st.Step)
				r.PowerKW += st.PowerKW
				r.ClassKW[s.Class] += st.PowerKW
				r.MaxDeliverableKW += st.MaxPowerKW
			}
		}
	}

	keys := make([]profileKey, 0, len(accs))
	for k := range accs {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].scenario != keys[j].scenario {
			return keys[i].scenario < keys[j].scenario
		}
		return keys[i].strategy < keys[j].strategy
	})

	var out []ProfileRow
	for _, k := range keys {
		acc := accs[k]
		for step := acc.first; step <= acc.last; step++ {
			r := acc.row(step)
			r.Scenario, r.Strategy = k.scenario, k.strategy
			r.Week = model.WeekOfStep(step)
			r.SiteCapKW = acc.cap
			r.Quota = acc.quota[r.Week]
			if prices.DayAhead != nil {
				r.DayAheadEUR = cost(prices.DayAhead, step, r.PowerKW)
			}
			if prices.Intraday != nil {
				r.IntradayEUR = cost(prices.Intraday, step, r.PowerKW)
			}
			out = append(out, *r)
		}
	}
	return out
}

func (a *accumulator) span(first, last int) {
	if !a.filled {
		a.first, a.last, a.filled = first, last, true
		return
	}
	if first < a.first {
		a.first = first
	}
	if last > a.last {
		a.last = last
	}
}

func (a *accumulator) row(step int) *ProfileRow {
	r, ok := a.rows[step]
	if !ok {
		r = &ProfileRow{Step: step, ClassKW: make(map[model.StationClass]float64, len(model.Classes))}
		for _, c := range model.Classes {
			r.ClassKW[c] = 0
		}
		a.rows[step] = r
	}
	return r
}

// cost is the price of drawing powerKW for one step, with prices in EUR/MWh.
func cost(s *series.Series, step int, powerKW float64) float64 {
	return s.At(step) * powerKW * model.StepHours / 1000
}

// Ledger flattens the units into per-step session rows ordered by scenario,
// strategy, week, session and step.
func Ledger(units []*model.UnitResult) []LedgerRow {
	var out []LedgerRow
	for _, u := range units {
		if u == nil {
			continue
		}
		for _, s := range u.Sessions {
			for _, st := range s.Steps {
				out = append(out, LedgerRow{
					Scenario:   u.Key.Scenario,
					Week:       u.Key.Week,
					Strategy:   u.Key.Strategy,
					SessionID:  s.SessionID,
					Class:      s.Class,
					StepResult: st,
				})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch {
		case a.Scenario != b.Scenario:
			return a.Scenario < b.Scenario
		case a.Strategy != b.Strategy:
			return a.Strategy < b.Strategy
		case a.Week != b.Week:
			return a.Week < b.Week
		case a.SessionID != b.SessionID:
			return a.SessionID < b.SessionID
		}
		return a.Step < b.Step
	})
	return out
}

// Totals summarises a profile.
type Totals struct {
	EnergyKWh   float64 `json:"energy_kwh"`
	PeakKW      float64 `json:"peak_kw"`
	DayAheadEUR float64 `json:"day_ahead_eur"`
	IntradayEUR float64 `json:"intraday_eur"`
}

// Summarize totals the rows of one strategy.
func Summarize(rows []ProfileRow, strategy string) Totals {
	var t Totals
	for _, r := range rows {
		if r.Strategy != strategy {
			continue
		}
		t.EnergyKWh += r.PowerKW * model.StepHours
		if r.PowerKW > t.PeakKW {
			t.PeakKW = r.PowerKW
		}
		t.DayAheadEUR += r.DayAheadEUR
		t.IntradayEUR += r.IntradayEUR
	}
	return t
}
