package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/truckhub/config"
	"github.com/kilianp07/truckhub/core/events"
	"github.com/kilianp07/truckhub/core/model"
	"github.com/kilianp07/truckhub/core/scenario"
	"github.com/kilianp07/truckhub/core/strategy"
	"github.com/kilianp07/truckhub/infra/mqtt"
	"github.com/kilianp07/truckhub/infra/tabular"
)

func hpcSession(id string, arrival int) model.Session {
	return model.Session{
		Cluster: 2, ID: id, Arrival: arrival, Departure: arrival + 45,
		Pause: model.PauseFast, Class: model.HPC,
		CapacityKWh: 600, MaxPowerKW: 750, SoCInitial: 0.2, SoCTarget: 0.5,
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	week2 := model.MinutesPerWeek
	sessions := []model.Session{
		hpcSession("2-0001", 600),
		hpcSession("2-0002", 605),
		hpcSession("2-0003", 610),
		hpcSession("2-0004", week2+600),
	}
	path := filepath.Join(dir, "sessions.csv")
	require.NoError(t, tabular.SaveSessions(path, sessions))

	cfg := &config.Config{}
	cfg.Scenario.Descriptors = []string{scenario.Default().String()}
	cfg.Scenario.Strategies = []string{strategy.PMax, strategy.PMin}
	cfg.Data.Sessions = path
	cfg.Store = config.StoreConfig{Backend: config.StoreSQLite, Path: filepath.Join(dir, "results.db")}
	cfg.Output = config.OutputConfig{Dir: filepath.Join(dir, "out"), Formats: []string{"csv", "json"}}
	cfg.Runner.Workers = 2
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())
	return cfg
}

func newService(t *testing.T, cfg *config.Config, opts ...Option) *Service {
	t.Helper()
	svc, err := New(context.Background(), cfg, opts...)
	require.NoError(t, err)
	return svc
}

func TestRunEndToEnd(t *testing.T) {
	cfg := testConfig(t)
	pub := mqtt.NewMemoryPublisher()
	svc := newService(t, cfg, WithPublisher(pub))

	sums, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, svc.Close())
	require.Len(t, sums, 1)

	sum := sums[0]
	assert.Equal(t, 3, sum.Counts[model.HPC])
	assert.Equal(t, 4, sum.Solved)
	assert.Empty(t, sum.Failures)
	require.Contains(t, sum.Totals, strategy.PMax)
	require.Contains(t, sum.Totals, strategy.PMin)
	assert.Greater(t, sum.Totals[strategy.PMax].EnergyKWh, 0.0)
	require.NotNil(t, sum.KPI)
	assert.Greater(t, sum.KPI.MPFI, 0.0)

	assert.InDelta(t, sum.KPI.APFI, sum.Indicators["apfi"], 1e-12)

	// profile csv/json, ledger csv/json, kpi, summary
	require.Len(t, sum.Files, 6)
	for _, f := range sum.Files {
		_, err := os.Stat(f)
		assert.NoError(t, err, f)
	}

	topics := map[string]int{}
	for _, m := range pub.Snapshot() {
		topics[m.Topic]++
	}
	assert.Equal(t, 8, topics[events.TopicUnits], "started and finished per unit")
	assert.Equal(t, 3, topics[events.TopicSizing])
}

func TestKPIFromStore(t *testing.T) {
	cfg := testConfig(t)
	svc := newService(t, cfg)
	sums, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, svc.Close())

	svc = newService(t, cfg)
	reps, err := svc.KPI(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, reps, 1)
	assert.InDelta(t, sums[0].KPI.EFI, reps[0].EFI, 1e-9)
	_, err = os.Stat(filepath.Join(cfg.Output.Dir, "kpi_"+reps[0].Scenario+".json"))
	assert.NoError(t, err)

	_, err = svc.Run(context.Background())
	require.NoError(t, err)
	_, err = svc.KPI(context.Background(), "")
	assert.ErrorIs(t, err, ErrAmbiguousRun)
	reps, err = svc.KPI(context.Background(), sums[0].RunID)
	require.NoError(t, err)
	assert.Len(t, reps, 1)
	require.NoError(t, svc.Close())
}

func TestSize(t *testing.T) {
	cfg := testConfig(t)
	svc := newService(t, cfg)
	defer svc.Close()

	out, err := svc.Size(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 3, out[0].Counts[model.HPC])
	assert.InDelta(t, 350, out[0].Stations[model.HPC], 1e-9)

	counts, err := tabular.LoadCounts(out[0].Files[0])
	require.NoError(t, err)
	assert.Equal(t, out[0].Counts, counts)
	labelled, err := tabular.LoadSessions(out[0].Files[1])
	require.NoError(t, err)
	for _, s := range labelled {
		assert.True(t, s.Served, s.ID)
	}
}

func TestDispatchUsesStationFile(t *testing.T) {
	cfg := testConfig(t)
	svc := newService(t, cfg)
	_, err := svc.Dispatch(context.Background())
	assert.ErrorIs(t, err, ErrNoStations)
	require.NoError(t, svc.Close())

	cfg.Data.Stations = filepath.Join(t.TempDir(), "stations.csv")
	require.NoError(t, tabular.SaveCounts(cfg.Data.Stations, map[model.StationClass]int{model.HPC: 1}))
	svc = newService(t, cfg)
	defer svc.Close()
	sums, err := svc.Dispatch(context.Background())
	require.NoError(t, err)
	require.Len(t, sums, 1)
	assert.Equal(t, 1, sums[0].Counts[model.HPC])
	assert.Nil(t, sums[0].KPI)
	assert.Equal(t, 4, sums[0].Solved)
}

func TestGenerate(t *testing.T) {
	cfg := testConfig(t)
	cfg.Data.Sessions = filepath.Join(t.TempDir(), "generated.csv")
	cfg.Synth.Days = 1
	svc := newService(t, cfg)
	defer svc.Close()

	sessions, err := svc.Generate(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, sessions)
	loaded, err := tabular.LoadSessions(cfg.Data.Sessions)
	require.NoError(t, err)
	require.Len(t, loaded, len(sessions))
	for _, s := range loaded {
		if s.Pause == model.PauseNight {
			assert.Equal(t, model.NCS, s.Class, s.ID)
		} else {
			assert.NotEqual(t, model.NCS, s.Class, s.ID)
		}
	}
}

func TestServedTrucks(t *testing.T) {
	units := []*model.UnitResult{
		{Key: model.UnitKey{Strategy: strategy.PMax}, Sessions: []model.SessionResult{{SessionID: "a", Class: model.HPC}, {SessionID: "b", Class: model.MCS}}},
		{Key: model.UnitKey{Strategy: strategy.PMax}, Sessions: []model.SessionResult{{SessionID: "a", Class: model.HPC}}},
		{Key: model.UnitKey{Strategy: strategy.PMin}, Sessions: []model.SessionResult{{SessionID: "c", Class: model.NCS}}},
	}
	got := ServedTrucks(units)
	assert.Equal(t, 1, got[model.HPC])
	assert.Equal(t, 1, got[model.MCS])
	assert.Equal(t, 0, got[model.NCS])
}
