package model

import (
	"fmt"
	"strings"
)

// StationClass identifies a charging technology tier.
type StationClass int

const (
	// NCS is the overnight charging system used for long breaks.
	NCS StationClass = iota
	// HPC is the high power charger used for short breaks.
	HPC
	// MCS is the megawatt charging system used when HPC is too slow.
	MCS
)

// Classes lists all station classes in canonical order.
var Classes = []StationClass{NCS, HPC, MCS}

var nominalPowerKW = map[StationClass]float64{NCS: 100, HPC: 350, MCS: 1000}

func (c StationClass) String() string {
	switch c {
	case NCS:
		return "NCS"
	case HPC:
		return "HPC"
	case MCS:
		return "MCS"
	default:
		return fmt.Sprintf("StationClass(%d)", int(c))
	}
}

// NominalPowerKW returns the rated power of one station of the class.
func (c StationClass) NominalPowerKW() float64 { return nominalPowerKW[c] }

// ParseStationClass converts a label such as "HPC" into a StationClass.
func ParseStationClass(s string) (StationClass, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "NCS":
		return NCS, nil
	case "HPC":
		return HPC, nil
	case "MCS":
		return MCS, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownStationClass, s)
}

// StationSpec describes the stations of one class at the hub.
type StationSpec struct {
	Class      StationClass
	Count      int
	PowerCapKW float64
}

// StationPool is the read-only station configuration of a scenario.
type StationPool struct {
	Specs        map[StationClass]StationSpec
	SiteFraction float64
}

// NewStationPool derives per-class power caps from the nominal ratings scaled by
// classFraction and keeps the site fraction used for the site budget.
func NewStationPool(counts map[StationClass]int, classFraction map[StationClass]float64, siteFraction float64) StationPool {
	p := StationPool{Specs: make(map[StationClass]StationSpec, len(Classes)), SiteFraction: siteFraction}
	for _, c := range Classes {
		f, ok := classFraction[c]
		if !ok {
			f = 1
		}
		p.Specs[c] = StationSpec{Class: c, Count: counts[c], PowerCapKW: c.NominalPowerKW() * f}
	}
	return p
}

// Count returns the number of stations of class c.
func (p StationPool) Count(c StationClass) int { return p.Specs[c].Count }

// PowerCapKW returns the per-station power ceiling of class c.
func (p StationPool) PowerCapKW(c StationClass) float64 { return p.Specs[c].PowerCapKW }

// InstalledKW is the sum of all station ceilings.
func (p StationPool) InstalledKW() float64 {
	total := 0.0
	for _, s := range p.Specs {
		total += float64(s.Count) * s.PowerCapKW
	}
	return total
}

// SiteBudgetKW is the shared grid connection limit across all active sessions.
func (p StationPool) SiteBudgetKW() float64 {
	return p.InstalledKW() * p.SiteFraction
}

// Validate checks counts and caps.
func (p StationPool) Validate() error {
	for c, s := range p.Specs {
		if s.Count < 0 {
			return fmt.Errorf("station pool %s: negative count %d", c, s.Count)
		}
		if s.PowerCapKW < 0 {
			return fmt.Errorf("station pool %s: negative power cap %.1f", c, s.PowerCapKW)
		}
	}
	if p.SiteFraction < 0 {
		return fmt.Errorf("station pool: negative site fraction %.3f", p.SiteFraction)
	}
	return nil
}

// MarshalText encodes the class by its label.
func (c StationClass) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// UnmarshalText decodes a class label.
func (c *StationClass) UnmarshalText(b []byte) error {
	v, err := ParseStationClass(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}
