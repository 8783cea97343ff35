package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/truckhub/core/dispatch"
	"github.com/kilianp07/truckhub/core/model"
	"github.com/kilianp07/truckhub/core/optim"
	"github.com/kilianp07/truckhub/core/runner"
	"github.com/kilianp07/truckhub/core/scenario"
	"github.com/kilianp07/truckhub/core/strategy"
)

const base = "cl_2_quote_80-80-80_netz_100_pow_100-100-100_pause_45-540_M_1_Base"

func write(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

//nolint:gocyclo
func TestLoad(t *testing.T) {
	path := write(t, "config.yaml", `scenario:
  descriptors:
    - "`+base+`"
  strategies: [p_max, p_min, day_ahead]
data:
  sessions: "in/sessions.csv"
  day_ahead:
    path: "in/da.csv"
    column: "price"
capacity:
  changeover_min: 10
dispatch:
  objective_mode: weighted
  strategy:
    price_weight: 500
runner:
  workers: 2
  unit_timeout: 90s
  weeks: [1, 2]
store:
  backend: sqlite
  path: "out/results.db"
metrics:
  load_profile: true
  sinks:
    - type: "nop"
events:
  mqtt:
    broker: "tcp://localhost:1883"
    topic_prefix: "hub/"
logging:
  level: warn
  format: json
output:
  formats: [csv, json]
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"descriptor", cfg.Scenario.Descriptors[0], base},
		{"strategies", len(cfg.Scenario.Strategies), 3},
		{"sessions", cfg.Data.Sessions, "in/sessions.csv"},
		{"day_ahead.column", cfg.Data.DayAhead.Column, "price"},
		{"series_steps", cfg.Data.SeriesSteps, model.StepsPerYear},
		{"changeover", cfg.Capacity.ChangeoverMin, 10},
		{"max_iterations", cfg.Capacity.MaxIterations, 50},
		{"objective_mode", cfg.Dispatch.Mode, dispatch.Weighted},
		{"price_weight", cfg.Dispatch.Strategy.PriceWeight, 500.0},
		{"workers", cfg.Runner.Workers, 2},
		{"unit_timeout", cfg.Runner.UnitTimeout, 90 * time.Second},
		{"weeks", len(cfg.Runner.Weeks), 2},
		{"store", cfg.Store.Backend, StoreSQLite},
		{"load_profile", cfg.Metrics.LoadProfile, true},
		{"sink", cfg.Metrics.Sinks[0].Type, "nop"},
		{"mqtt.prefix", cfg.Events.MQTT.TopicPrefix, "hub"},
		{"mqtt.retries", cfg.Events.MQTT.MaxRetries, 3},
		{"buffer", cfg.Events.Buffer, 64},
		{"log.level", cfg.Logging.Level, "warn"},
		{"envelope", len(cfg.Grid.Envelope), 2},
		{"synth.days", cfg.Synth.Days, 7},
		{"output.dir", cfg.Output.Dir, "out"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s mismatch: got %v want %v", c.name, c.got, c.want)
		}
	}
}

func TestLoadEnvOverride(t *testing.T) {
	path := write(t, "config.json", `{"runner": {"workers": 1}, "store": {"backend": "memory"}}`)
	t.Setenv("K_RUNNER__WORKERS", "4")
	t.Setenv("K_STORE__BACKEND", "jsonl")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Runner.Workers)
	assert.Equal(t, StoreJSONL, cfg.Store.Backend)
	assert.Equal(t, "results.jsonl", cfg.Store.Path)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(write(t, "empty.yaml", "{}\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{scenario.Default().String()}, cfg.Scenario.Descriptors)
	assert.Equal(t, []string{strategy.PMax, strategy.PMin, strategy.Konstant, strategy.TMin}, cfg.Scenario.Strategies)
	assert.Equal(t, StoreMemory, cfg.Store.Backend)
	assert.Empty(t, cfg.Events.MQTT.Broker)
	assert.Equal(t, []string{"csv"}, cfg.Output.Formats)
	assert.Equal(t, runner.DefaultUnitTimeout, cfg.Runner.UnitTimeout)
}

func TestLoadErrors(t *testing.T) {
	cases := map[string]struct {
		data string
		want error
	}{
		"bad descriptor":  {data: "scenario:\n  descriptors: [\"cl_x\"]\n", want: scenario.ErrInvalidDescriptor},
		"unknown strat":   {data: "scenario:\n  strategies: [fastest]\n", want: strategy.ErrUnknownStrategy},
		"missing series":  {data: "scenario:\n  strategies: [nrv]\n", want: strategy.ErrMissingSeries},
		"unknown store":   {data: "store:\n  backend: postgres\n"},
		"negative week":   {data: "runner:\n  weeks: [0]\n"},
		"bad format":      {data: "output:\n  formats: [xlsx]\n"},
		"bad log level":   {data: "logging:\n  level: loud\n"},
		"bad mqtt qos":    {data: "events:\n  mqtt:\n    broker: tcp://x:1883\n    qos: 3\n"},
		"bad objective":   {data: "dispatch:\n  objective_mode: random\n"},
		"bad lp backend":  {data: "dispatch:\n  solver:\n    backend: highs\n", want: optim.ErrInvalidModel},
		"bad synth share": {data: "synth:\n  trucks:\n    - share: -1\n      capacity_kwh: 500\n      max_power_kw: 400\n"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(write(t, "config.yaml", tc.data))
			require.Error(t, err)
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}

	_, err := Load(write(t, "config.toml", ""))
	assert.Error(t, err)
}

func TestResolveCatalog(t *testing.T) {
	catalog := write(t, "catalog.yaml", `base: "`+base+`"
scenarios:
  - descriptor: "`+base+`"
  - descriptor: "cl_2_quote_90-90-90_netz_80_pow_100-100-100_pause_45-540_B_2_Bidi"
    strategies: [t_min]
  - descriptor: "broken"
    disabled: true
`)
	c := ScenarioConfig{Catalog: catalog}
	var data DataConfig
	data.SetDefaults()
	c.SetDefaults(data)
	require.Empty(t, c.Descriptors)

	got, err := c.Resolve(data)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, c.Strategies, got[0].Strategies)
	assert.Equal(t, []string{strategy.TMin}, got[1].Strategies)
	assert.True(t, got[1].Scenario.Bidirectional)

	c.Descriptors = []string{base}
	got, err = c.Resolve(data)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestResolveCatalogMissingSeries(t *testing.T) {
	catalog := write(t, "catalog.yaml", `scenarios:
  - descriptor: "`+base+`"
    strategies: [intraday]
`)
	_, err := ScenarioConfig{Catalog: catalog}.Resolve(DataConfig{})
	assert.ErrorIs(t, err, strategy.ErrMissingSeries)
}
