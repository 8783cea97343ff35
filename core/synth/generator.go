// Package synth generates synthetic truck arrivals for a cluster and assigns
// each session the station class it needs.
package synth

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/kilianp07/truckhub/core/model"
)

// ErrInvalidConfig is returned for unusable generator settings.
var ErrInvalidConfig = errors.New("invalid synth config")

// TruckType is one vehicle model of the fleet mix.
type TruckType struct {
	Share       float64 `json:"share"`
	CapacityKWh float64 `json:"capacity_kwh"`
	MaxPowerKW  float64 `json:"max_power_kw"`
}

// Arrival is a normal distribution of arrival minutes within a day.
type Arrival struct {
	MeanMinute float64 `json:"mean_minute"`
	StdMinutes float64 `json:"std_minutes"`
}

// Config controls the generator. Days start on a Monday.
type Config struct {
	Seed    uint64      `json:"seed"`
	Cluster int         `json:"cluster"`
	Days    int         `json:"days"`
	Trucks  []TruckType `json:"trucks"`
	// FastPerDay and NightPerDay are arrivals per weekday, Monday first.
	FastPerDay   [7]int  `json:"fast_per_day"`
	NightPerDay  [7]int  `json:"night_per_day"`
	FastArrival  Arrival `json:"fast_arrival"`
	NightArrival Arrival `json:"night_arrival"`
	PauseFast    int     `json:"pause_fast_min"`
	PauseNight   int     `json:"pause_night_min"`
	// LegEnergyKWh is the energy a fast-break truck needs for its next leg.
	LegEnergyKWh float64 `json:"leg_energy_kwh"`
	// SafetyMargin is added to the fast-break target SoC.
	SafetyMargin float64 `json:"safety_margin"`
}

// SetDefaults fills unset fields with the reference fleet.
func (c *Config) SetDefaults() {
	if c.Seed == 0 {
		c.Seed = 42
	}
	if c.Days == 0 {
		c.Days = 7
	}
	if len(c.Trucks) == 0 {
		c.Trucks = []TruckType{
			{Share: 0.093, CapacityKWh: 600, MaxPowerKW: 750},
			{Share: 0.187, CapacityKWh: 720, MaxPowerKW: 750},
			{Share: 0.289, CapacityKWh: 840, MaxPowerKW: 1200},
			{Share: 0.431, CapacityKWh: 960, MaxPowerKW: 1200},
		}
	}
	if c.FastPerDay == ([7]int{}) {
		c.FastPerDay = [7]int{60, 62, 63, 62, 58, 30, 12}
	}
	if c.NightPerDay == ([7]int{}) {
		c.NightPerDay = [7]int{35, 38, 38, 37, 33, 15, 8}
	}
	if c.FastArrival == (Arrival{}) {
		c.FastArrival = Arrival{MeanMinute: 720, StdMinutes: 180}
	}
	if c.NightArrival == (Arrival{}) {
		c.NightArrival = Arrival{MeanMinute: 1110, StdMinutes: 90}
	}
	if c.PauseFast == 0 {
		c.PauseFast = 45
	}
	if c.PauseNight == 0 {
		c.PauseNight = 540
	}
	if c.LegEnergyKWh == 0 {
		c.LegEnergyKWh = 80 * 4.5 * 1.26
	}
	if c.SafetyMargin == 0 {
		c.SafetyMargin = 0.1
	}
}

// Validate checks the fleet mix and counts.
func (c Config) Validate() error {
	if c.Days < 0 {
		return fmt.Errorf("%w: negative days", ErrInvalidConfig)
	}
	total := 0.0
	for i, t := range c.Trucks {
		if t.Share < 0 || t.CapacityKWh <= 0 || t.MaxPowerKW <= 0 {
			return fmt.Errorf("%w: truck type %d", ErrInvalidConfig, i+1)
		}
		total += t.Share
	}
	if total <= 0 {
		return fmt.Errorf("%w: fleet shares sum to zero", ErrInvalidConfig)
	}
	for d := 0; d < 7; d++ {
		if c.FastPerDay[d] < 0 || c.NightPerDay[d] < 0 {
			return fmt.Errorf("%w: negative count on weekday %d", ErrInvalidConfig, d+1)
		}
	}
	return nil
}

// Generate draws the sessions of cfg.Days days sorted by arrival. Sessions
// carry no station class yet.
func Generate(cfg Config) ([]model.Session, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	src := rand.NewPCG(cfg.Seed, uint64(cfg.Cluster))
	shares := make([]float64, len(cfg.Trucks))
	for i, t := range cfg.Trucks {
		shares[i] = t.Share
	}
	fleet := distuv.NewCategorical(shares, src)
	noise := distuv.Uniform{Min: -0.1, Max: 0.1, Src: src}
	arrivals := map[model.PauseType]distuv.Normal{
		model.PauseFast:  {Mu: cfg.FastArrival.MeanMinute, Sigma: cfg.FastArrival.StdMinutes, Src: src},
		model.PauseNight: {Mu: cfg.NightArrival.MeanMinute, Sigma: cfg.NightArrival.StdMinutes, Src: src},
	}

	var out []model.Session
	for day := 0; day < cfg.Days; day++ {
		weekday := day % 7
		for _, pause := range []model.PauseType{model.PauseFast, model.PauseNight} {
			n, length := cfg.FastPerDay[weekday], cfg.PauseFast
			if pause == model.PauseNight {
				n, length = cfg.NightPerDay[weekday], cfg.PauseNight
			}
			for i := 0; i < n; i++ {
				truck := cfg.Trucks[int(fleet.Rand())]
				minute := dayMinute(arrivals[pause].Rand())
				soc := clamp(initialSoC(minute)+noise.Rand(), 0, 1)
				out = append(out, model.Session{
					Cluster:     cfg.Cluster,
					Arrival:     day*model.MinutesPerDay + minute,
					Departure:   day*model.MinutesPerDay + minute + length,
					Pause:       pause,
					CapacityKWh: truck.CapacityKWh,
					MaxPowerKW:  truck.MaxPowerKW,
					SoCInitial:  soc,
					SoCTarget:   targetSoC(pause, soc, truck.CapacityKWh, cfg),
				})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Arrival < out[j].Arrival })
	for i := range out {
		out[i].ID = fmt.Sprintf("%d-%04d", cfg.Cluster, i+1)
	}
	return out, nil
}

// dayMinute rounds a drawn arrival onto the grid within the day.
func dayMinute(v float64) int {
	m := int(math.Round(v/model.StepMinutes)) * model.StepMinutes
	return int(clamp(float64(m), 0, model.MinutesPerDay-model.StepMinutes))
}

// initialSoC is the mean arrival charge: trucks arriving before 6:00 start
// their day nearly empty, later arrivals have driven less the later they come.
func initialSoC(minute int) float64 {
	if minute < 360 {
		return 0.2
	}
	return -0.00028*float64(minute) + 0.6
}

func targetSoC(p model.PauseType, soc, capacityKWh float64, cfg Config) float64 {
	if p == model.PauseNight {
		return 1
	}
	return math.Min(math.Max(cfg.LegEnergyKWh/capacityKWh+cfg.SafetyMargin, soc), 1)
}

func clamp(v, lo, hi float64) float64 { return math.Max(lo, math.Min(hi, v)) }
