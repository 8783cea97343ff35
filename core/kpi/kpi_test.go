package kpi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/truckhub/core/aggregate"
	"github.com/kilianp07/truckhub/core/model"
)

func profile(name string, siteCap float64, power map[int]float64, deliverable map[int]float64) []aggregate.ProfileRow {
	rows := make([]aggregate.ProfileRow, model.StepsPerDay)
	for s := range rows {
		rows[s] = aggregate.ProfileRow{
			Scenario:         "sc",
			Strategy:         name,
			Step:             s,
			PowerKW:          power[s],
			ClassKW:          map[model.StationClass]float64{model.NCS: power[s]},
			SiteCapKW:        siteCap,
			MaxDeliverableKW: deliverable[s],
		}
	}
	return rows
}

func fixture(siteCap float64) []aggregate.ProfileRow {
	deliverable := map[int]float64{0: 100, 1: 100}
	rows := profile("p_max", siteCap, map[int]float64{0: 100}, deliverable)
	return append(rows, profile("p_min", siteCap, map[int]float64{1: 100}, deliverable)...)
}

func TestCompute(t *testing.T) {
	r, err := Compute("sc", fixture(200), map[model.StationClass]int{model.NCS: 2})
	require.NoError(t, err)
	step := 100 * model.StepHours

	require.Len(t, r.EFLong, model.StepsPerDay)
	assert.InDelta(t, step, r.EFLong[0], 1e-9)
	assert.InDelta(t, 0, r.EFLong[1], 1e-9)

	require.Len(t, r.EF, model.StepsPerDay)
	assert.Equal(t, 5, r.EF[1].Minute)
	assert.InDelta(t, step, r.EF[0].TotalKWh, 1e-9)
	assert.InDelta(t, step, r.EF[0].ClassKWh[model.NCS], 1e-9)
	assert.InDelta(t, 0, r.EF[0].ClassKWh[model.HPC], 1e-9)
	assert.InDelta(t, step/2, r.EFC[0].ClassKWh[model.NCS], 1e-9)

	assert.InDelta(t, 0.5, r.EFI, 1e-12)
	assert.InDelta(t, 0.5, r.MPFI, 1e-12)
	assert.InDelta(t, 0.75, r.APFI, 1e-12)
}

func TestComputeErrors(t *testing.T) {
	rows := profile("p_max", 200, nil, nil)
	_, err := Compute("sc", rows, nil)
	assert.ErrorIs(t, err, ErrMissingProfile)

	_, err = Compute("sc", fixture(0), nil)
	assert.ErrorIs(t, err, ErrNoSiteCap)
}
