package workers

import (
	"context"
	"log/slog"
	"messenger/contract"
)

// StatusApplier records a network status reported by the transport.
type StatusApplier interface {
	Apply(ctx context.Context, online bool) error
}

var _ contract.Worker = (*ConnectivityWatcher)(nil)

// ConnectivityWatcher follows the transport's online/offline callbacks.
type ConnectivityWatcher struct {
	log     *slog.Logger
	status  <-chan bool
	applier StatusApplier
}

func NewConnectivityWatcher(log *slog.Logger, status <-chan bool, applier StatusApplier) *ConnectivityWatcher {
	return &ConnectivityWatcher{log: log, status: status, applier: applier}
}

func (w *ConnectivityWatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping connectivity watcher")
			return ctx.Err()
		case online, ok := <-w.status:
			if !ok {
				w.log.Debug("Connectivity stream closed")
				return nil
			}
			if err := w.applier.Apply(ctx, online); err != nil {
				return err
			}
		}
	}
}
