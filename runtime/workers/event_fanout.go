package workers

import (
	"context"
	"fmt"
	"log/slog"
	"messenger/contract"
	"messenger/domain/event"
	"time"
)

// EventFanout delivers session events to every registered sink.
//
// It provides best-effort fan-out with no guarantees regarding delivery,
// durability, or retries. Each sink gets its own deadline so a stuck
// renderer cannot hold the others back. Events are delivered one at a time,
// which makes the fanout the serialization point into the rendering layer.
type EventFanout struct {
	log         *slog.Logger
	events      <-chan event.SessionEvent
	sinks       []contract.EventSink
	sinkTimeout time.Duration
}

var _ contract.Worker = (*EventFanout)(nil)

func NewEventFanout(log *slog.Logger, events <-chan event.SessionEvent,
	sinks []contract.EventSink, sinkTimeout time.Duration) *EventFanout {
	return &EventFanout{log: log, events: events, sinks: sinks, sinkTimeout: sinkTimeout}
}

func (w *EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case evt, ok := <-w.events:
			if !ok {
				w.log.Debug("Session events closed, stopping fanout")
				return nil
			}
			w.Fanout(ctx, evt)
		case <-ctx.Done():
			w.log.Debug("Context done, stopping fanout")
			return nil
		}
	}
}

// Fanout One sink for each event
func (w *EventFanout) Fanout(ctx context.Context, evt event.SessionEvent) {
	for _, sink := range w.sinks {
		sinkCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
		done := make(chan error, 1)
		go func(s contract.EventSink) {
			done <- s.Consume(sinkCtx, evt)
		}(sink)

		select {
		case err := <-done:
			if err != nil {
				w.log.Warn("Sink failed to consume event", "sink", sinkName(sink), "error", err)
			}
		case <-sinkCtx.Done():
			w.log.Warn("Sink timed out", "sink", sinkName(sink), "error", sinkCtx.Err())
		}
		cancel()
	}
}

func sinkName(s contract.EventSink) string {
	return fmt.Sprintf("%T", s)
}
