package config

import (
	"github.com/kilianp07/truckhub/core/model"
	"github.com/kilianp07/truckhub/core/strategy"
)

// SeriesSource locates one column of a series CSV.
type SeriesSource struct {
	Path string `json:"path"`
	// Column defaults to the last column of the file.
	Column string `json:"column"`
}

// DataConfig locates the input files.
type DataConfig struct {
	Sessions string `json:"sessions"`
	// Stations holds fixed station counts. Sizing runs when it is empty.
	Stations  string       `json:"stations"`
	DayAhead  SeriesSource `json:"day_ahead"`
	Intraday  SeriesSource `json:"intraday"`
	Imbalance SeriesSource `json:"imbalance"`
	// SeriesSteps is the expected length of every series.
	SeriesSteps int `json:"series_steps"`
}

var sourceField = map[string]string{
	strategy.DayAhead: "day_ahead",
	strategy.Intraday: "intraday",
	strategy.NRV:      "imbalance",
}

// SetDefaults fills unset fields.
func (d *DataConfig) SetDefaults() {
	if d.Sessions == "" {
		d.Sessions = "sessions.csv"
	}
	if d.SeriesSteps <= 0 {
		d.SeriesSteps = model.StepsPerYear
	}
}

// Sources returns the configured series keyed by the name strategies look
// them up with.
func (d DataConfig) Sources() map[string]SeriesSource {
	out := make(map[string]SeriesSource, 3)
	for key, src := range map[string]SeriesSource{
		strategy.DayAhead: d.DayAhead,
		strategy.Intraday: d.Intraday,
		strategy.NRV:      d.Imbalance,
	} {
		if src.Path != "" {
			out[key] = src
		}
	}
	return out
}
