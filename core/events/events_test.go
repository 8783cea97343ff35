package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/truckhub/core/capacity"
	"github.com/kilianp07/truckhub/core/model"
)

func TestTopics(t *testing.T) {
	var evs = []Event{UnitStarted{}, UnitFinished{}, SizingDone{}}
	assert.Equal(t, TopicUnits, evs[0].Topic())
	assert.Equal(t, TopicUnits, evs[1].Topic())
	assert.Equal(t, TopicSizing, evs[2].Topic())
	assert.Equal(t, "unit_finished", Wrap(evs[1]).Kind)
}

func TestFinished(t *testing.T) {
	res := &model.UnitResult{
		RunID:    "r1",
		Key:      model.UnitKey{Scenario: "S", Week: 2, Strategy: "p_max"},
		Served:   2,
		Quota:    0.5,
		Sessions: []model.SessionResult{{EnergyKWh: 100}, {EnergyKWh: 50}},
	}
	ev := Finished(res, time.Second)
	assert.Equal(t, OutcomeOptimal, ev.Outcome)
	assert.InDelta(t, 150, ev.EnergyKWh, 1e-9)
	assert.Same(t, res, ev.Result)
	assert.Equal(t, time.Second, ev.Duration)
}

func TestSizingDoneJSON(t *testing.T) {
	ev := SizingDone{Scenario: "S", Class: model.MCS, Target: 0.8,
		Result: capacity.SizingResult{Stations: 3, Served: 8, Total: 10, Quota: 0.8, Converged: true}}
	b, err := json.Marshal(ev)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Equal(t, "MCS", m["class"])
	assert.EqualValues(t, 3, m["result"].(map[string]any)["stations"])
}
