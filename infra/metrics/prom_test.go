package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/truckhub/core/events"
	coremetrics "github.com/kilianp07/truckhub/core/metrics"
	"github.com/kilianp07/truckhub/core/model"
)

func TestPromSink_RecordUnit(t *testing.T) {
	reg := prometheus.NewRegistry()
	s, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	key := model.UnitKey{Scenario: "S1", Week: 1, Strategy: "p_max"}
	require.NoError(t, s.RecordUnit(coremetrics.UnitRecord{Key: key, Outcome: events.OutcomeOptimal, Quota: 0.75, EnergyKWh: 100, SolveTime: time.Second}))
	require.NoError(t, s.RecordUnit(coremetrics.UnitRecord{Key: key, Outcome: events.OutcomeOptimal, Quota: 0.5, EnergyKWh: 50}))
	require.NoError(t, s.RecordUnit(coremetrics.UnitRecord{Key: key, Outcome: events.OutcomeNoSolution}))

	assert.Equal(t, 2.0, testutil.ToFloat64(s.units.WithLabelValues("S1", "p_max", events.OutcomeOptimal)))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.units.WithLabelValues("S1", "p_max", events.OutcomeNoSolution)))
	assert.Equal(t, 0.5, testutil.ToFloat64(s.quota.WithLabelValues("S1", "p_max")))
	assert.Equal(t, 150.0, testutil.ToFloat64(s.energy.WithLabelValues("S1", "p_max")))
	assert.Equal(t, 1, testutil.CollectAndCount(s.solve))
}

func TestPromSink_RecordSizing(t *testing.T) {
	reg := prometheus.NewRegistry()
	s, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	require.NoError(t, s.RecordSizing(coremetrics.SizingRecord{Scenario: "S1", Class: model.HPC, Stations: 6, Quota: 0.82}))
	assert.Equal(t, 6.0, testutil.ToFloat64(s.stations.WithLabelValues("S1", "HPC")))
	assert.Equal(t, 0.82, testutil.ToFloat64(s.sizeQuota.WithLabelValues("S1", "HPC")))
}

func TestPromSink_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	s1, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	s2, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	require.NoError(t, s1.RecordSizing(coremetrics.SizingRecord{Scenario: "S", Class: model.NCS, Stations: 2}))
	assert.Equal(t, 2.0, testutil.ToFloat64(s2.stations.WithLabelValues("S", "NCS")))
}
