package scenario

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/truckhub/core/model"
)

const base = "cl_2_quote_80-80-80_netz_100_pow_100-100-100_pause_45-540_M_1_Base"

func TestParseDescriptor(t *testing.T) {
	sc, err := ParseDescriptor(base)
	require.NoError(t, err)
	assert.Equal(t, 2, sc.Cluster)
	assert.Equal(t, 0.8, sc.Quotas[model.HPC])
	assert.Equal(t, 1.0, sc.SiteFraction)
	assert.Equal(t, 1.0, sc.VehiclePowerScale)
	assert.Equal(t, 45, sc.PauseFast)
	assert.Equal(t, 540, sc.PauseNight)
	assert.False(t, sc.Bidirectional)
	assert.Equal(t, 1, sc.Index)
	assert.Equal(t, "Base", sc.Label)
	assert.Equal(t, base, sc.String())
	assert.Equal(t, Default(), sc)
}

func TestParseVariants(t *testing.T) {
	sc, err := ParseDescriptor("cl_2_quote_80-80-80_netz_70_pow-120_100-100-120_pause_45-540_B_14_Leistung-MCS-120")
	require.NoError(t, err)
	assert.True(t, sc.Bidirectional)
	assert.InDelta(t, 1.2, sc.VehiclePowerScale, 1e-12)
	assert.InDelta(t, 1.2, sc.ClassPower[model.MCS], 1e-12)
	assert.InDelta(t, 0.7, sc.SiteFraction, 1e-12)
	assert.Equal(t, "Leistung-MCS-120", sc.Label)
	assert.Equal(t, "cl_2_quote_80-80-80_netz_70_pow-120_100-100-120_pause_45-540_B_14_Leistung-MCS-120", sc.String())

	pool := sc.Pool(map[model.StationClass]int{model.MCS: 2})
	assert.InDelta(t, 1200, pool.PowerCapKW(model.MCS), 1e-9)
	assert.InDelta(t, 2*1200*0.7, pool.SiteBudgetKW(), 1e-9)
}

func TestParseDescriptorErrors(t *testing.T) {
	bad := []string{
		"",
		"cl_2_quote_80-80_netz_100_pow_100-100-100_pause_45-540_M_1_Base",
		"cl_x_quote_80-80-80_netz_100_pow_100-100-100_pause_45-540_M_1_Base",
		"cl_2_quota_80-80-80_netz_100_pow_100-100-100_pause_45-540_M_1_Base",
		"cl_2_quote_80-80-80_netz_100_power_100-100-100_pause_45-540_M_1_Base",
		"cl_2_quote_80-80-80_netz_100_pow_100-100-100_pause_45_M_1_Base",
		"cl_2_quote_80-80-80_netz_100_pow_100-100-100_pause_45-540_X_1_Base",
		"cl_2_quote_80-80-80_netz_100_pow_100-100-100_pause_45-540_M_one_Base",
		"cl_2_quote_0-80-80_netz_100_pow_100-100-100_pause_45-540_M_1_Base",
		"cl_2_quote_80-80-80_netz_100_pow_100-100-100_pause_0-540_M_1_Base",
	}
	for _, s := range bad {
		if _, err := ParseDescriptor(s); !errors.Is(err, ErrInvalidDescriptor) {
			t.Errorf("%q: expected ErrInvalidDescriptor, got %v", s, err)
		}
	}
}

func TestApply(t *testing.T) {
	sc := MustParse("cl_2_quote_80-80-80_netz_100_pow-110_100-100-100_pause_50-600_M_2_Test")
	sessions := []model.Session{
		{ID: "a", Arrival: 10, Pause: model.PauseFast, MaxPowerKW: 100},
		{ID: "b", Arrival: 20, Pause: model.PauseNight, MaxPowerKW: 200},
	}
	sc.Apply(sessions)
	assert.Equal(t, 60, sessions[0].Departure)
	assert.Equal(t, 620, sessions[1].Departure)
	assert.InDelta(t, 110, sessions[0].MaxPowerKW, 1e-9)
	assert.InDelta(t, 220, sessions[1].MaxPowerKW, 1e-9)
}

func TestLoadCatalog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	data := `base: ` + base + `
scenarios:
  - descriptor: ` + base + `
  - descriptor: cl_2_quote_80-80-80_netz_100_pow_100-100-100_pause_45-540_B_2_Bidirektional
    strategies: [p_max, p_min]
  - descriptor: broken
    disabled: true
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	c, err := LoadCatalog(path)
	require.NoError(t, err)
	res, err := c.Resolve()
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.True(t, res[1].Scenario.Bidirectional)
	assert.Equal(t, []string{"p_max", "p_min"}, res[1].Strategies)

	c.Scenarios[2].Disabled = false
	_, err = c.Resolve()
	assert.ErrorIs(t, err, ErrInvalidDescriptor)
}
