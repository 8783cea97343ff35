// Package kpi derives flexibility indicators from the p_max and p_min load
// profiles of a scenario.
package kpi

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/truckhub/core/aggregate"
	"github.com/kilianp07/truckhub/core/model"
	"github.com/kilianp07/truckhub/core/strategy"
)

var (
	// ErrMissingProfile is returned when a reference strategy has no rows.
	ErrMissingProfile = errors.New("missing load profile")
	// ErrNoSiteCap is returned when the profile carries no positive site cap.
	ErrNoSiteCap = errors.New("site cap must be positive")
)

// EFPoint is the energy flexibility at one minute of the day: how much more
// energy the earliest plan has delivered than the latest plan by then.
type EFPoint struct {
	Minute   int                            `json:"minute"`
	TotalKWh float64                        `json:"total_kwh"`
	ClassKWh map[model.StationClass]float64 `json:"class_kwh"`
}

// Report holds the indicators of one scenario.
type Report struct {
	Scenario string `json:"scenario"`
	// EF is averaged over the days of the profile.
	EF []EFPoint `json:"ef"`
	// EFLong is the cumulative difference over the whole horizon, one entry per step.
	EFLong []float64 `json:"ef_long"`
	// EFC normalises the per class EF by the number of trucks of the class.
	EFC  []EFPoint `json:"efc"`
	EFI  float64   `json:"efi"`
	MPFI float64   `json:"mpfi"`
	APFI float64   `json:"apfi"`
}

// Compute evaluates the indicators for scenario. trucks counts the served
// sessions per class and may be nil, which leaves EFC empty.
func Compute(scenario string, rows []aggregate.ProfileRow, trucks map[model.StationClass]int) (Report, error) {
	early := pick(rows, scenario, strategy.PMax)
	late := pick(rows, scenario, strategy.PMin)
	if len(early) == 0 || len(late) == 0 {
		return Report{}, fmt.Errorf("%w: scenario %s needs %s and %s", ErrMissingProfile, scenario, strategy.PMax, strategy.PMin)
	}
	r := Report{Scenario: scenario}
	steps := unionSteps(early, late)

	total := diffCumulative(steps, early, late, func(p aggregate.ProfileRow) float64 { return p.PowerKW })
	r.EFLong = total
	perClass := make(map[model.StationClass][]float64, len(model.Classes))
	for _, c := range model.Classes {
		perClass[c] = diffCumulative(steps, early, late, func(p aggregate.ProfileRow) float64 { return p.ClassKW[c] })
	}
	r.EF = foldDays(steps, total, perClass)
	if trucks != nil {
		norm := make(map[model.StationClass][]float64, len(perClass))
		for c, v := range perClass {
			out := make([]float64, len(v))
			if n := trucks[c]; n > 0 {
				floats.ScaleTo(out, 1/float64(n), v)
			}
			norm[c] = out
		}
		r.EFC = foldDays(steps, make([]float64, len(steps)), norm)
	}

	var err error
	if r.EFI, r.MPFI, r.APFI, err = powerIndicators(early); err != nil {
		return Report{}, fmt.Errorf("scenario %s: %w", scenario, err)
	}
	return r, nil
}

func pick(rows []aggregate.ProfileRow, scenario, name string) map[int]aggregate.ProfileRow {
	out := make(map[int]aggregate.ProfileRow)
	for _, r := range rows {
		if r.Scenario == scenario && r.Strategy == name {
			out[r.Step] = r
		}
	}
	return out
}

func unionSteps(a, b map[int]aggregate.ProfileRow) []int {
	seen := make(map[int]struct{}, len(a))
	for s := range a {
		seen[s] = struct{}{}
	}
	for s := range b {
		seen[s] = struct{}{}
	}
	out := make([]int, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Ints(out)
	return out
}

// diffCumulative returns the running energy of a minus the running energy of b.
func diffCumulative(steps []int, a, b map[int]aggregate.ProfileRow, f func(aggregate.ProfileRow) float64) []float64 {
	ea := make([]float64, len(steps))
	eb := make([]float64, len(steps))
	for i, s := range steps {
		if r, ok := a[s]; ok {
			ea[i] = f(r) * model.StepHours
		}
		if r, ok := b[s]; ok {
			eb[i] = f(r) * model.StepHours
		}
	}
	floats.CumSum(ea, ea)
	floats.CumSum(eb, eb)
	floats.Sub(ea, eb)
	return ea
}

// foldDays averages series by minute of day over the days they cover.
func foldDays(steps []int, total []float64, perClass map[model.StationClass][]float64) []EFPoint {
	points := make([]EFPoint, model.StepsPerDay)
	counts := make([]float64, model.StepsPerDay)
	for i := range points {
		points[i] = EFPoint{Minute: i * model.StepMinutes, ClassKWh: make(map[model.StationClass]float64, len(model.Classes))}
	}
	for i, s := range steps {
		k := s % model.StepsPerDay
		counts[k]++
		points[k].TotalKWh += total[i]
		for c, v := range perClass {
			points[k].ClassKWh[c] += v[i]
		}
	}
	for k := range points {
		if counts[k] == 0 {
			continue
		}
		points[k].TotalKWh /= counts[k]
		for c := range points[k].ClassKWh {
			points[k].ClassKWh[c] /= counts[k]
		}
	}
	return points
}

// powerIndicators computes EFI, MPFI and APFI from the earliest plan.
func powerIndicators(rows map[int]aggregate.ProfileRow) (efi, mpfi, apfi float64, err error) {
	steps := make([]int, 0, len(rows))
	siteCap := 0.0
	for s, r := range rows {
		steps = append(steps, s)
		siteCap = max(siteCap, r.SiteCapKW)
	}
	if siteCap <= 0 {
		return 0, 0, 0, ErrNoSiteCap
	}
	sort.Ints(steps)

	var charged, potential, active []float64
	peaks := make(map[int]float64)
	for _, s := range steps {
		r := rows[s]
		charged = append(charged, r.PowerKW)
		potential = append(potential, r.MaxDeliverableKW)
		if r.MaxDeliverableKW != 0 {
			active = append(active, r.PowerKW)
		}
		day := s / model.StepsPerDay
		peaks[day] = max(peaks[day], r.PowerKW)
	}
	if ePot := floats.Sum(potential); ePot > 0 {
		efi = 1 - floats.Sum(charged)/ePot
	}
	dayPeaks := make([]float64, 0, len(peaks))
	for _, p := range peaks {
		dayPeaks = append(dayPeaks, p)
	}
	mpfi = 1 - stat.Mean(dayPeaks, nil)/siteCap
	apfi = 1
	if len(active) > 0 {
		apfi = 1 - stat.Mean(active, nil)/siteCap
	}
	return efi, mpfi, apfi, nil
}
