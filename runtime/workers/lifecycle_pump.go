package workers

import (
	"context"
	"log/slog"
	"messenger/contract"
	"messenger/domain"
)

var _ contract.Worker = (*LifecyclePump)(nil)

// LifecyclePump forwards the transport's discovery stream to the presence machine.
type LifecyclePump struct {
	log      *slog.Logger
	events   <-chan domain.LifecycleEvent
	presence contract.Presence
}

func NewLifecyclePump(log *slog.Logger, events <-chan domain.LifecycleEvent, presence contract.Presence) *LifecyclePump {
	return &LifecyclePump{log: log, events: events, presence: presence}
}

func (w *LifecyclePump) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping lifecycle pump")
			return ctx.Err()
		case evt, ok := <-w.events:
			if !ok {
				w.log.Debug("Discovery stream closed")
				return nil
			}
			w.log.Debug("Lifecycle event", "kind", evt.Kind, "handle", evt.Handle)
			if err := w.dispatch(ctx, evt); err != nil {
				return err
			}
		}
	}
}

func (w *LifecyclePump) dispatch(ctx context.Context, evt domain.LifecycleEvent) error {
	switch evt.Kind {
	case domain.Discovered:
		return w.presence.Discovered(ctx, evt.Handle)
	case domain.Lost:
		return w.presence.Disconnected(ctx, evt.Handle)
	case domain.Reconnected:
		return w.presence.Reconnected(ctx, evt.Handle)
	default:
		w.log.Warn("Unknown lifecycle event", "kind", evt.Kind)
		return nil
	}
}
