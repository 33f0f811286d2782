package runtime

import (
	"context"
	"log/slog"
	"messenger/contract"
	"sync"
)

// Connectivity tracks whether the local peer is on the network.
// Going offline tears the conversation down; going online does nothing by
// itself, peers come back through discovery.
type Connectivity struct {
	// transition is held from a status change until the input it queues is accepted,
	// so an offline clear always precedes the discoveries of the next online period.
	transition sync.Mutex
	mu         sync.Mutex
	log      *slog.Logger
	network  contract.Network
	presence contract.Presence
	online   bool
}

func NewConnectivity(log *slog.Logger, network contract.Network, presence contract.Presence) *Connectivity {
	return &Connectivity{log: log, network: network, presence: presence}
}

func (c *Connectivity) IsOnline() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.online
}

func (c *Connectivity) GoOnline(ctx context.Context) error {
	c.transition.Lock()
	defer c.transition.Unlock()
	if err := c.network.GoOnline(ctx); err != nil {
		return err
	}
	return c.applyLocked(ctx, true)
}

func (c *Connectivity) GoOffline(ctx context.Context) error {
	c.transition.Lock()
	defer c.transition.Unlock()
	if err := c.network.GoOffline(ctx); err != nil {
		return err
	}
	return c.applyLocked(ctx, false)
}

// Toggle goes offline when online and online when offline.
func (c *Connectivity) Toggle(ctx context.Context) error {
	if c.IsOnline() {
		return c.GoOffline(ctx)
	}
	return c.GoOnline(ctx)
}

// Apply records a status reported by the caller or by the transport.
// Only an online to offline transition reaches the presence machine.
func (c *Connectivity) Apply(ctx context.Context, online bool) error {
	c.transition.Lock()
	defer c.transition.Unlock()
	return c.applyLocked(ctx, online)
}

func (c *Connectivity) applyLocked(ctx context.Context, online bool) error {
	c.mu.Lock()
	wasOnline := c.online
	c.online = online
	c.mu.Unlock()

	if wasOnline == online {
		return nil
	}
	c.log.Info("Network status changed", "online", online)
	if online {
		return nil
	}
	return c.presence.LocalWentOffline(ctx)
}
