// Package monitoring forwards run failures to Sentry.
package monitoring

import (
	"context"
	"errors"
	"strconv"

	"github.com/kilianp07/truckhub/core/events"
	coremon "github.com/kilianp07/truckhub/core/monitoring"
	"github.com/kilianp07/truckhub/internal/eventbus"
)

// StartErrorReporter captures units without an optimal dispatch and sizing
// searches that missed their quota until ctx is canceled or the bus closes.
func StartErrorReporter(ctx context.Context, bus *eventbus.Bus[events.Event], mon coremon.Monitor) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || mon == nil {
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
				report(mon, ev)
			}
		}
	}()
	return done
}

func report(mon coremon.Monitor, ev events.Event) {
	switch e := ev.(type) {
	case events.UnitFinished:
		if e.Outcome == events.OutcomeOptimal {
			return
		}
		mon.CaptureException(errors.New(e.Error), map[string]string{
			"run_id":   e.RunID,
			"scenario": e.Key.Scenario,
			"week":     strconv.Itoa(e.Key.Week),
			"strategy": e.Key.Strategy,
			"outcome":  e.Outcome,
		})
	case events.SizingDone:
		if e.Error == "" {
			return
		}
		mon.CaptureException(errors.New(e.Error), map[string]string{
			"run_id":   e.RunID,
			"scenario": e.Scenario,
			"class":    e.Class.String(),
		})
	}
}
