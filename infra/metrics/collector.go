package metrics

import (
	"context"

	"github.com/kilianp07/truckhub/core/events"
	coremetrics "github.com/kilianp07/truckhub/core/metrics"
	"github.com/kilianp07/truckhub/infra/logger"
	"github.com/kilianp07/truckhub/internal/eventbus"
)

// StartEventCollector records bus events on sink until ctx is canceled or the
// bus closes. The returned channel is closed when the collector has stopped.
func StartEventCollector(ctx context.Context, bus *eventbus.Bus[events.Event], sink coremetrics.Sink, log logger.Logger) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || sink == nil {
		close(done)
		return done
	}
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if err := record(sink, ev); err != nil {
					log.Warnw("metrics sink error", map[string]any{"topic": ev.Topic(), "error": err.Error()})
				}
			}
		}
	}()
	return done
}

func record(sink coremetrics.Sink, ev events.Event) error {
	switch e := ev.(type) {
	case events.UnitFinished:
		rec := coremetrics.UnitRecord{
			RunID:     e.RunID,
			Key:       e.Key,
			Outcome:   e.Outcome,
			Served:    e.Served,
			Quota:     e.Quota,
			EnergyKWh: e.EnergyKWh,
			SolveTime: e.Duration,
			Time:      e.Time,
		}
		if e.Result != nil {
			rec.FullyCharged = e.Result.FullyCharged
			rec.SiteBudgetKW = e.Result.SiteBudgetKW
		}
		return sink.RecordUnit(rec)
	case events.SizingDone:
		return sink.RecordSizing(coremetrics.SizingRecord{
			RunID:     e.RunID,
			Scenario:  e.Scenario,
			Class:     e.Class,
			Target:    e.Target,
			Stations:  e.Result.Stations,
			Quota:     e.Result.Quota,
			Converged: e.Result.Converged,
			Time:      e.Time,
		})
	}
	return nil
}
