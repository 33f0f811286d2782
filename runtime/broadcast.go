package runtime

import (
	"context"
	"log/slog"
	"messenger/contract"
	"messenger/domain"
	"messenger/errors"
	"messenger/observability"
	"strings"
	"sync"
	"time"
)

// Broadcaster fans a locally authored message out to every active peer.
//
// Delivery is fire-and-forget: each peer gets its own goroutine, bounded by the
// delivery timeout and detached from the caller's cancellation. A failing peer
// is logged and counted, never reported to the sender.
type Broadcaster struct {
	log             *slog.Logger
	registry        contract.IRegistry
	invoker         contract.Invoker
	sink            contract.SessionEventSink
	stats           *observability.SessionStats
	identity        domain.LocalIdentity
	deliveryTimeout time.Duration
	inFlight        sync.WaitGroup
}

func NewBroadcaster(log *slog.Logger, registry contract.IRegistry, invoker contract.Invoker,
	sink contract.SessionEventSink, stats *observability.SessionStats,
	identity domain.LocalIdentity, deliveryTimeout time.Duration) *Broadcaster {
	return &Broadcaster{
		log:             log,
		registry:        registry,
		invoker:         invoker,
		sink:            sink,
		stats:           stats,
		identity:        identity,
		deliveryTimeout: deliveryTimeout,
	}
}

// Broadcast initiates delivery to every active peer then prints the message locally.
// It returns the number of peers delivery was initiated to.
func (b *Broadcaster) Broadcast(ctx context.Context, text string) (int, error) {
	if strings.TrimSpace(text) == "" {
		return 0, errors.ErrEmptyMessage
	}
	peers := b.registry.ActivePeers()
	deliveryCtx := context.WithoutCancel(ctx)
	for _, peer := range peers {
		b.inFlight.Add(1)
		go b.deliver(deliveryCtx, peer, text)
	}
	b.stats.AddDeliveriesAttempt(len(peers))
	b.stats.IncrMessagesSent()
	b.sink.Message(b.identity.Name, text)
	return len(peers), nil
}

func (b *Broadcaster) deliver(ctx context.Context, peer domain.PeerEntry, text string) {
	defer b.inFlight.Done()
	if b.deliveryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.deliveryTimeout)
		defer cancel()
	}

	var err error
	select {
	case res, ok := <-b.invoker.InvokeAsync(ctx, peer.Handle, contract.MethodReceiveMessage, b.identity.Name, text):
		if ok {
			err = res.Err
		}
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err == nil {
		return
	}

	name, _ := peer.Name()
	b.stats.IncrDeliveriesFailed()
	b.log.Warn("Delivery failed", "handle", peer.Handle, "error", &errors.DeliveryError{Peer: name, Err: err})
}

// Wait blocks until every delivery started so far has completed or timed out.
func (b *Broadcaster) Wait() {
	b.inFlight.Wait()
}
