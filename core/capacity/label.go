package capacity

import (
	"errors"
	"fmt"
	"sort"

	"github.com/kilianp07/truckhub/core/model"
)

// GroupKey identifies the sessions of one station class in one week.
type GroupKey struct {
	Class model.StationClass
	Week  int
}

// GroupStats summarises the labelling of one group.
type GroupStats struct {
	Stations int
	Total    int
	Served   int
}

// WindowOf returns the station occupancy of a session. changeover minutes are
// added after departure before the station can be reused.
func WindowOf(s model.Session, changeover int) Window {
	return Window{Start: s.Arrival, End: s.Departure + changeover}
}

// Windows maps sessions to occupancy windows.
func Windows(sessions []model.Session, changeover int) []Window {
	out := make([]Window, len(sessions))
	for i, s := range sessions {
		out[i] = WindowOf(s, changeover)
	}
	return out
}

// Label returns a copy of sessions with Served set by scheduling each
// (class, week) group on the stations of its class.
func Label(sessions []model.Session, pool model.StationPool, changeover int) ([]model.Session, map[GroupKey]GroupStats) {
	out := make([]model.Session, len(sessions))
	copy(out, sessions)

	groups := make(map[GroupKey][]int)
	for i, s := range out {
		key := GroupKey{Class: s.Class, Week: s.Week()}
		groups[key] = append(groups[key], i)
	}

	stats := make(map[GroupKey]GroupStats, len(groups))
	for key, idx := range groups {
		ws := make([]Window, len(idx))
		for j, i := range idx {
			ws[j] = WindowOf(out[i], changeover)
		}
		k := pool.Count(key.Class)
		a := Schedule(ws, k)
		for j, i := range idx {
			out[i].Served = a.Served[j]
		}
		stats[key] = GroupStats{Stations: k, Total: len(idx), Served: a.Count}
	}
	return out, stats
}

// ClassResult pairs a station class with its sizing outcome.
type ClassResult struct {
	Class  model.StationClass `json:"class"`
	Result SizingResult       `json:"result"`
	Err    error              `json:"-"`
}

// SizeClasses runs Size for every class with a configured quota. Unreachable
// quotas are reported per class and joined into the returned error while the
// remaining classes are still sized.
func SizeClasses(sessions []model.Session, quotas map[model.StationClass]float64, changeover, maxIterations int) ([]ClassResult, error) {
	byClass := make(map[model.StationClass][]model.Session)
	for _, s := range sessions {
		byClass[s.Class] = append(byClass[s.Class], s)
	}
	classes := make([]model.StationClass, 0, len(quotas))
	for c := range quotas {
		classes = append(classes, c)
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i] < classes[j] })

	var errs []error
	out := make([]ClassResult, 0, len(classes))
	for _, c := range classes {
		res, err := Size(Windows(byClass[c], changeover), SizingOptions{Quota: quotas[c], MaxIterations: maxIterations})
		out = append(out, ClassResult{Class: c, Result: res, Err: err})
		if err != nil {
			errs = append(errs, fmt.Errorf("class %s: %w", c, err))
		}
	}
	return out, errors.Join(errs...)
}

// Counts converts sizing results to station counts per class.
func Counts(results []ClassResult) map[model.StationClass]int {
	out := make(map[model.StationClass]int, len(results))
	for _, r := range results {
		out[r.Class] = r.Result.Stations
	}
	return out
}
