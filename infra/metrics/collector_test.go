package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/truckhub/core/capacity"
	"github.com/kilianp07/truckhub/core/events"
	coremetrics "github.com/kilianp07/truckhub/core/metrics"
	"github.com/kilianp07/truckhub/core/model"
	"github.com/kilianp07/truckhub/infra/logger"
	"github.com/kilianp07/truckhub/internal/eventbus"
)

type captureSink struct {
	mu     sync.Mutex
	units  []coremetrics.UnitRecord
	sizing []coremetrics.SizingRecord
	err    error
}

func (c *captureSink) RecordUnit(r coremetrics.UnitRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.units = append(c.units, r)
	return c.err
}

func (c *captureSink) RecordSizing(r coremetrics.SizingRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sizing = append(c.sizing, r)
	return c.err
}

func TestStartEventCollector(t *testing.T) {
	bus := eventbus.New[events.Event]()
	sink := &captureSink{err: errors.New("ignored")}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := StartEventCollector(ctx, bus, sink, logger.NopLogger{})

	res := &model.UnitResult{RunID: "r1", Key: model.UnitKey{Scenario: "S", Week: 1, Strategy: "nrv"},
		Served: 2, FullyCharged: 1, Quota: 0.5, SiteBudgetKW: 300}
	bus.Publish(events.UnitStarted{RunID: "r1", Key: res.Key})
	bus.Publish(events.Finished(res, time.Second))
	bus.Publish(events.SizingDone{Scenario: "S", Class: model.HPC, Result: capacity.SizingResult{Stations: 3, Quota: 0.9, Converged: true}})
	bus.Close()
	<-done

	require.Len(t, sink.units, 1)
	u := sink.units[0]
	assert.Equal(t, events.OutcomeOptimal, u.Outcome)
	assert.Equal(t, 1, u.FullyCharged)
	assert.Equal(t, 300.0, u.SiteBudgetKW)
	assert.Equal(t, time.Second, u.SolveTime)
	require.Len(t, sink.sizing, 1)
	assert.Equal(t, 3, sink.sizing[0].Stations)
	assert.True(t, sink.sizing[0].Converged)
}

func TestStartEventCollector_NilBus(t *testing.T) {
	done := StartEventCollector(context.Background(), nil, &captureSink{}, logger.NopLogger{})
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("collector without bus should stop immediately")
	}
}

func TestStartPromServer(t *testing.T) {
	reg := prometheus.NewRegistry()
	s, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	require.NoError(t, s.RecordSizing(coremetrics.SizingRecord{Scenario: "S", Class: model.MCS, Stations: 1}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	addr, err := StartPromServer(ctx, "127.0.0.1:0", reg, logger.NopLogger{})
	require.NoError(t, err)

	resp, err := http.Get("http://" + addr + "/metrics")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `truckhub_sizing_stations{class="MCS",scenario="S"} 1`), string(body))
}
