package metrics

import (
	"context"

	"github.com/kilianp07/fieldops/core/events"
	"github.com/kilianp07/fieldops/core/logger"
	coremetrics "github.com/kilianp07/fieldops/core/metrics"
	"github.com/kilianp07/fieldops/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records metrics for
// booking transitions. It stops when the context is canceled or the bus closes.
// The returned channel is closed once the collector has exited. Sink errors
// are logged and do not stop collection; log may be nil.
func StartEventCollector(ctx context.Context, bus *eventbus.TypedBus[events.Event], sink coremetrics.Sink, log logger.Logger) <-chan struct{} {
	log = logger.OrNop(log)
	done := make(chan struct{})
	if bus == nil || sink == nil {
		close(done)
		return done
	}
	sub := bus.SubscribeBuffered(256)
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
				if e, ok := ev.(events.BookingTransitioned); ok {
					if err := sink.RecordTransition(e.From, e.To); err != nil {
						log.Warnf("record transition metrics %s -> %s: %v", e.From, e.To, err)
					}
				}
			}
		}
	}()
	return done
}
