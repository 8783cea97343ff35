package mqtt

import (
	"context"

	"github.com/kilianp07/truckhub/core/events"
	"github.com/kilianp07/truckhub/infra/logger"
	"github.com/kilianp07/truckhub/internal/eventbus"
)

// StartBridge forwards bus events to pub under their topic until ctx is
// canceled or the bus closes. Publish failures are logged and skipped. The
// returned channel is closed once the bridge has stopped.
func StartBridge(ctx context.Context, bus *eventbus.Bus[events.Event], pub Publisher, log logger.Logger) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || pub == nil {
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
				if err := pub.Publish(ev.Topic(), events.Wrap(ev)); err != nil {
					log.Warnw("mqtt bridge publish failed", map[string]any{"topic": ev.Topic(), "error": err.Error()})
				}
			}
		}
	}()
	return done
}
