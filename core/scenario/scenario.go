// Package scenario describes one simulated configuration of the hub and
// parses the compact descriptor strings used to name scenarios, e.g.
//
//	cl_2_quote_80-80-80_netz_100_pow_100-100-100_pause_45-540_M_1_Base
package scenario

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kilianp07/truckhub/core/model"
)

// ErrInvalidDescriptor is returned for malformed descriptor strings or
// inconsistent scenario values.
var ErrInvalidDescriptor = errors.New("invalid scenario descriptor")

// Scenario is a parsed descriptor. Fractions are stored as ratios, so a
// descriptor value of 80 becomes 0.8.
type Scenario struct {
	Cluster           int                            `json:"cluster"`
	Quotas            map[model.StationClass]float64 `json:"quotas"`
	SiteFraction      float64                        `json:"site_fraction"`
	ClassPower        map[model.StationClass]float64 `json:"class_power"`
	VehiclePowerScale float64                        `json:"vehicle_power_scale"`
	PauseFast         int                            `json:"pause_fast_min"`
	PauseNight        int                            `json:"pause_night_min"`
	Bidirectional     bool                           `json:"bidirectional"`
	Index             int                            `json:"index"`
	Label             string                         `json:"label"`
}

// Default returns the base case.
func Default() Scenario {
	return Scenario{
		Cluster:           2,
		Quotas:            perClass(0.8, 0.8, 0.8),
		SiteFraction:      1,
		ClassPower:        perClass(1, 1, 1),
		VehiclePowerScale: 1,
		PauseFast:         45,
		PauseNight:        540,
		Index:             1,
		Label:             "Base",
	}
}

func perClass(ncs, hpc, mcs float64) map[model.StationClass]float64 {
	return map[model.StationClass]float64{model.NCS: ncs, model.HPC: hpc, model.MCS: mcs}
}

// ParseDescriptor parses the underscore separated descriptor format.
func ParseDescriptor(s string) (Scenario, error) {
	fail := func(format string, args ...any) (Scenario, error) {
		return Scenario{}, fmt.Errorf("%w %q: %s", ErrInvalidDescriptor, s, fmt.Sprintf(format, args...))
	}
	tok := strings.Split(strings.TrimSpace(s), "_")
	if len(tok) < 12 {
		return fail("expected at least 12 fields, got %d", len(tok))
	}
	for i, want := range map[int]string{0: "cl", 2: "quote", 4: "netz", 8: "pause"} {
		if tok[i] != want {
			return fail("field %d: expected %q, got %q", i+1, want, tok[i])
		}
	}

	var sc Scenario
	var err error
	if sc.Cluster, err = strconv.Atoi(tok[1]); err != nil {
		return fail("cluster %q", tok[1])
	}
	q, err := triple(tok[3])
	if err != nil {
		return fail("quote: %v", err)
	}
	sc.Quotas = perClass(q[0], q[1], q[2])
	site, err := percent(tok[5])
	if err != nil {
		return fail("netz: %v", err)
	}
	sc.SiteFraction = site

	sc.VehiclePowerScale = 1
	switch pow := tok[6]; {
	case pow == "pow":
	case strings.HasPrefix(pow, "pow-"):
		if sc.VehiclePowerScale, err = percent(strings.TrimPrefix(pow, "pow-")); err != nil {
			return fail("pow: %v", err)
		}
	default:
		return fail("field 7: expected \"pow\" or \"pow-<pct>\", got %q", pow)
	}
	p, err := triple(tok[7])
	if err != nil {
		return fail("pow: %v", err)
	}
	sc.ClassPower = perClass(p[0], p[1], p[2])

	pauses := strings.Split(tok[9], "-")
	if len(pauses) != 2 {
		return fail("pause %q: expected <fast>-<night>", tok[9])
	}
	if sc.PauseFast, err = strconv.Atoi(pauses[0]); err != nil {
		return fail("pause fast %q", pauses[0])
	}
	if sc.PauseNight, err = strconv.Atoi(pauses[1]); err != nil {
		return fail("pause night %q", pauses[1])
	}

	switch tok[10] {
	case "M":
	case "B":
		sc.Bidirectional = true
	default:
		return fail("direction %q: expected M or B", tok[10])
	}
	if sc.Index, err = strconv.Atoi(tok[11]); err != nil {
		return fail("index %q", tok[11])
	}
	sc.Label = strings.Join(tok[12:], "_")
	if err := sc.Validate(); err != nil {
		return Scenario{}, fmt.Errorf("%q: %w", s, err)
	}
	return sc, nil
}

// MustParse is ParseDescriptor for literals known to be valid.
func MustParse(s string) Scenario {
	sc, err := ParseDescriptor(s)
	if err != nil {
		panic(err)
	}
	return sc
}

func percent(s string) (float64, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%q is not an integer percentage", s)
	}
	return float64(v) / 100, nil
}

func triple(s string) ([3]float64, error) {
	var out [3]float64
	parts := strings.Split(s, "-")
	if len(parts) != 3 {
		return out, fmt.Errorf("%q: expected three values for NCS-HPC-MCS", s)
	}
	for i, p := range parts {
		v, err := percent(p)
		if err != nil {
			return out, err
		}
		out[i] = v
	}
	return out, nil
}

// Validate checks value ranges.
func (sc Scenario) Validate() error {
	for _, c := range model.Classes {
		q, ok := sc.Quotas[c]
		if !ok || q <= 0 || q > 1 {
			return fmt.Errorf("%w: quota %s must be in (0,1]", ErrInvalidDescriptor, c)
		}
		if p, ok := sc.ClassPower[c]; !ok || p <= 0 {
			return fmt.Errorf("%w: power fraction %s must be positive", ErrInvalidDescriptor, c)
		}
	}
	switch {
	case sc.Cluster < 0:
		return fmt.Errorf("%w: negative cluster", ErrInvalidDescriptor)
	case sc.SiteFraction < 0:
		return fmt.Errorf("%w: negative site fraction", ErrInvalidDescriptor)
	case sc.VehiclePowerScale <= 0:
		return fmt.Errorf("%w: vehicle power scale must be positive", ErrInvalidDescriptor)
	case sc.PauseFast <= 0 || sc.PauseNight <= 0:
		return fmt.Errorf("%w: pause durations must be positive", ErrInvalidDescriptor)
	}
	return nil
}

// String renders the canonical descriptor.
func (sc Scenario) String() string {
	pow := "pow"
	if sc.VehiclePowerScale != 1 {
		pow = "pow-" + pct(sc.VehiclePowerScale)
	}
	dir := "M"
	if sc.Bidirectional {
		dir = "B"
	}
	s := fmt.Sprintf("cl_%d_quote_%s_netz_%s_%s_%s_pause_%d-%d_%s_%d",
		sc.Cluster, pcts(sc.Quotas), pct(sc.SiteFraction), pow, pcts(sc.ClassPower),
		sc.PauseFast, sc.PauseNight, dir, sc.Index)
	if sc.Label != "" {
		s += "_" + sc.Label
	}
	return s
}

func pct(f float64) string { return strconv.Itoa(int(math.Round(f * 100))) }

func pcts(m map[model.StationClass]float64) string {
	parts := make([]string, len(model.Classes))
	for i, c := range model.Classes {
		parts[i] = pct(m[c])
	}
	return strings.Join(parts, "-")
}

// Pool builds the station pool of this scenario from sized station counts.
func (sc Scenario) Pool(counts map[model.StationClass]int) model.StationPool {
	return model.NewStationPool(counts, sc.ClassPower, sc.SiteFraction)
}

// Apply sets pause durations and vehicle power scaling on sessions.
func (sc Scenario) Apply(sessions []model.Session) {
	model.ApplyPauseDurations(sessions, sc.PauseFast, sc.PauseNight)
	if sc.VehiclePowerScale != 1 {
		model.ScaleMaxPower(sessions, sc.VehiclePowerScale)
	}
}
