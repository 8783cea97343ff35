package dispatch

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/truckhub/core/logger"
	"github.com/kilianp07/truckhub/core/model"
	"github.com/kilianp07/truckhub/core/optim"
	"github.com/kilianp07/truckhub/core/series"
	"github.com/kilianp07/truckhub/core/strategy"
)

type entry struct {
	level  string
	msg    string
	fields map[string]any
}

type spyLogger struct{ entries []entry }

func (l *spyLogger) add(level, msg string, f map[string]any) {
	l.entries = append(l.entries, entry{level: level, msg: msg, fields: f})
}
func (l *spyLogger) Debugf(format string, a ...any)      { l.add("debug", fmt.Sprintf(format, a...), nil) }
func (l *spyLogger) Debugw(msg string, f map[string]any) { l.add("debug", msg, f) }
func (l *spyLogger) Infof(format string, a ...any)       { l.add("info", fmt.Sprintf(format, a...), nil) }
func (l *spyLogger) Infow(msg string, f map[string]any)  { l.add("info", msg, f) }
func (l *spyLogger) Warnf(format string, a ...any)       { l.add("warn", fmt.Sprintf(format, a...), nil) }
func (l *spyLogger) Warnw(msg string, f map[string]any)  { l.add("warn", msg, f) }
func (l *spyLogger) Errorf(format string, a ...any)      { l.add("error", fmt.Sprintf(format, a...), nil) }
func (l *spyLogger) Errorw(msg string, f map[string]any) { l.add("error", msg, f) }

func (l *spyLogger) levels(level string) []entry {
	var out []entry
	for _, e := range l.entries {
		if e.level == level {
			out = append(out, e)
		}
	}
	return out
}

var _ logger.Logger = (*spyLogger)(nil)

// stepEnergy is the energy of one step at 100 kW.
const stepEnergy = 100 * model.StepHours

// ncsSession returns a served session on a 13-step window starting at minute 0
// that needs two full steps of a 100 kW station.
func ncsSession(id string) model.Session {
	return model.Session{
		ID: id, Arrival: 0, Departure: 65, Class: model.NCS, Pause: model.PauseNight,
		CapacityKWh: 600, MaxPowerKW: 1000, SoCInitial: 0.2,
		SoCTarget: 0.2 + 2*stepEnergy/600, Served: true,
	}
}

func ncsPool(count int, siteFraction float64) model.StationPool {
	return model.NewStationPool(map[model.StationClass]int{model.NCS: count}, nil, siteFraction)
}

func optimize(t *testing.T, cfg Config, u Unit, name string, opts strategy.Options) (*model.UnitResult, *spyLogger) {
	t.Helper()
	st, err := strategy.New(name, opts)
	require.NoError(t, err)
	log := &spyLogger{}
	res, err := NewOptimizer(cfg, log).Optimize(context.Background(), u, st)
	require.NoError(t, err)
	return res, log
}

func powers(sr model.SessionResult) []float64 {
	out := make([]float64, 0, len(sr.Steps))
	for _, r := range sr.Steps {
		if !r.Terminal {
			out = append(out, r.PowerKW)
		}
	}
	return out
}

func assertSoCRecursion(t *testing.T, s model.Session, sr model.SessionResult) {
	t.Helper()
	require.InDelta(t, s.SoCInitial, sr.Steps[0].SoC, 1e-9)
	for k := 0; k+1 < len(sr.Steps); k++ {
		want := sr.Steps[k].SoC + model.StepHours/s.CapacityKWh*sr.Steps[k].PowerKW
		assert.InDelta(t, want, sr.Steps[k+1].SoC, 1e-6, "step %d", k)
	}
	assert.True(t, sr.Steps[len(sr.Steps)-1].Terminal)
	assert.LessOrEqual(t, sr.EnergyKWh, s.EnergyRequiredKWh()+1e-6)
}

func TestFrontAndBackLoading(t *testing.T) {
	cases := []struct {
		name     string
		charging []int
	}{
		{strategy.PMax, []int{0, 1}},
		{strategy.TMin, []int{0, 1}},
		{strategy.PMin, []int{11, 12}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := ncsSession("a")
			u := Unit{Scenario: "sc", Week: 1, Sessions: []model.Session{s}, Pool: ncsPool(1, 1)}
			res, _ := optimize(t, Config{}, u, tc.name, strategy.Options{})
			require.Len(t, res.Sessions, 1)
			sr := res.Sessions[0]
			require.Len(t, sr.Steps, 14)
			p := powers(sr)
			want := make([]float64, 13)
			for _, k := range tc.charging {
				want[k] = 100
			}
			for k := range want {
				assert.InDelta(t, want[k], p[k], 1e-4, "step %d", k)
			}
			assertSoCRecursion(t, s, sr)
			assert.True(t, sr.FullyCharged)
			assert.Equal(t, 1.0, res.Quota)
			assert.Equal(t, 1, res.Served)
			assert.Equal(t, 13, sr.Steps[13].Step)
		})
	}
}

func TestSiteCapShared(t *testing.T) {
	a, b := ncsSession("a"), ncsSession("b")
	u := Unit{Scenario: "sc", Week: 1, Sessions: []model.Session{a, b}, Pool: ncsPool(2, 0.5)}
	res, _ := optimize(t, Config{}, u, strategy.PMax, strategy.Options{})
	require.Len(t, res.Sessions, 2)
	assert.Equal(t, 100.0, res.SiteBudgetKW)
	total := make([]float64, 13)
	for i, sr := range res.Sessions {
		assertSoCRecursion(t, u.Sessions[i], sr)
		assert.True(t, sr.FullyCharged)
		for k, p := range powers(sr) {
			total[k] += p
		}
	}
	for k, p := range total {
		assert.LessOrEqual(t, p, 100+1e-6, "step %d", k)
		if k < 4 {
			assert.InDelta(t, 100, p, 1e-4, "step %d", k)
		}
	}
}

func TestEnergyShortfallLowersQuota(t *testing.T) {
	s := ncsSession("a")
	s.SoCInitial, s.SoCTarget = 0.1, 1.0
	u := Unit{Scenario: "sc", Week: 1, Sessions: []model.Session{s}, Pool: ncsPool(1, 1)}
	res, _ := optimize(t, Config{}, u, strategy.PMax, strategy.Options{})
	sr := res.Sessions[0]
	assert.InDelta(t, 13*stepEnergy, sr.EnergyKWh, 1e-4)
	assert.False(t, sr.FullyCharged)
	assert.Equal(t, 0.0, res.Quota)
	assertSoCRecursion(t, s, sr)
}

func TestEnvelopeLimitsPower(t *testing.T) {
	s := model.Session{
		ID: "hi", Arrival: 0, Departure: 65, Class: model.NCS,
		CapacityKWh: 100, MaxPowerKW: 100, SoCInitial: 0.9, SoCTarget: 1, Served: true,
	}
	u := Unit{Scenario: "sc", Week: 1, Sessions: []model.Session{s}, Pool: ncsPool(1, 1)}
	res, _ := optimize(t, Config{}, u, strategy.PMax, strategy.Options{})
	sr := res.Sessions[0]
	for _, r := range sr.Steps[:13] {
		limit := model.DefaultEnvelope.MaxPowerKW(r.SoC, s.MaxPowerKW)
		assert.LessOrEqual(t, r.PowerKW, limit+1e-4, "step %d", r.Step)
		assert.Equal(t, 100.0, r.MaxPowerKW)
	}
	assert.InDelta(t, 0.9*-1.51705+1.6336, sr.Steps[0].PowerKW/100, 1e-5)
	assertSoCRecursion(t, s, sr)
}

func TestZeroSiteBudgetFails(t *testing.T) {
	st, err := strategy.New(strategy.PMax, strategy.Options{})
	require.NoError(t, err)
	log := &spyLogger{}
	u := Unit{Scenario: "sc", Week: 1, Sessions: []model.Session{ncsSession("a")}, Pool: ncsPool(1, 0)}
	res, err := NewOptimizer(Config{}, log).Optimize(context.Background(), u, st)
	if !errors.Is(err, ErrNoSolution) || !errors.Is(err, optim.ErrInfeasible) {
		t.Fatalf("expected ErrNoSolution wrapping ErrInfeasible, got %v", err)
	}
	assert.Nil(t, res)
	errs := log.levels("error")
	require.Len(t, errs, 1)
	assert.Equal(t, "sc", errs[0].fields["scenario"])
	assert.Equal(t, 1, errs[0].fields["week"])
	assert.Equal(t, strategy.PMax, errs[0].fields["strategy"])
}

func TestEmptyUnit(t *testing.T) {
	s := ncsSession("a")
	s.Served = false
	u := Unit{Scenario: "sc", Week: 1, Sessions: []model.Session{s}, Pool: ncsPool(0, 0)}
	res, _ := optimize(t, Config{}, u, strategy.PMax, strategy.Options{})
	assert.Empty(t, res.Sessions)
	assert.Equal(t, 1.0, res.Quota)
}

func TestTargetBelowInitialWarns(t *testing.T) {
	s := ncsSession("a")
	s.SoCTarget = 0.1
	u := Unit{Scenario: "sc", Week: 1, Sessions: []model.Session{s}, Pool: ncsPool(1, 1)}
	res, log := optimize(t, Config{}, u, strategy.PMax, strategy.Options{})
	warns := log.levels("warn")
	require.Len(t, warns, 1)
	assert.Equal(t, "a", warns[0].fields["session"])
	assert.InDelta(t, 0, res.Sessions[0].EnergyKWh, 1e-6)
	assert.True(t, res.Sessions[0].FullyCharged)
}

func TestBidirectionalFrontLoad(t *testing.T) {
	s := ncsSession("a")
	s.Departure = 15
	u := Unit{Scenario: "sc", Week: 1, Sessions: []model.Session{s}, Pool: ncsPool(1, 1), Bidirectional: true}
	res, _ := optimize(t, Config{}, u, strategy.PMax, strategy.Options{})
	sr := res.Sessions[0]
	require.Len(t, sr.Steps, 4)
	assert.InDelta(t, 100, sr.Steps[0].ChargeKW, 1e-4)
	assert.InDelta(t, 100, sr.Steps[1].ChargeKW, 1e-4)
	assert.InDelta(t, 0, sr.Steps[2].PowerKW, 1e-4)
	for _, r := range sr.Steps {
		assert.InDelta(t, 0, r.DischargeKW, 1e-4)
	}
	assertSoCRecursion(t, s, sr)
	assert.True(t, sr.FullyCharged)
}

func cheapSteps() *series.Series {
	v := make([]float64, model.StepsPerWeek)
	for i := range v {
		v[i] = 50
	}
	v[5], v[6] = 10, 10
	return series.New(strategy.DayAhead, v)
}

func TestDayAheadPicksCheapSteps(t *testing.T) {
	for _, mode := range []Mode{Lexicographic, Weighted} {
		t.Run(string(mode), func(t *testing.T) {
			u := Unit{Scenario: "sc", Week: 1, Sessions: []model.Session{ncsSession("a")}, Pool: ncsPool(1, 1)}
			opts := strategy.Options{Series: map[string]*series.Series{strategy.DayAhead: cheapSteps()}}
			res, _ := optimize(t, Config{Mode: mode}, u, strategy.DayAhead, opts)
			sr := res.Sessions[0]
			p := powers(sr)
			for k := range p {
				want := 0.0
				if k == 5 || k == 6 {
					want = 100
				}
				assert.InDelta(t, want, p[k], 1e-3, "step %d", k)
			}
			assert.InDelta(t, 10*100*model.StepHours/1000, sr.Steps[5].CostEUR, 1e-6)
			assert.True(t, sr.FullyCharged)
		})
	}
}

func TestKonstantFlattensPower(t *testing.T) {
	u := Unit{Scenario: "sc", Week: 1, Sessions: []model.Session{ncsSession("a")}, Pool: ncsPool(1, 1)}
	res, _ := optimize(t, Config{}, u, strategy.Konstant, strategy.Options{})
	for k, p := range powers(res.Sessions[0]) {
		assert.InDelta(t, 200.0/13, p, 1e-3, "step %d", k)
	}
}

func TestCancelledContext(t *testing.T) {
	st, _ := strategy.New(strategy.PMax, strategy.Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	u := Unit{Scenario: "sc", Week: 1, Sessions: []model.Session{ncsSession("a")}, Pool: ncsPool(1, 1)}
	_, err := NewOptimizer(Config{}, &spyLogger{}).Optimize(ctx, u, st)
	assert.ErrorIs(t, err, ErrNoSolution)
	assert.ErrorIs(t, err, context.Canceled)
}
