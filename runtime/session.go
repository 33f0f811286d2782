// Package runtime turns transport events into a consistent conversation.
// It owns the presence machine, the registry and the broadcast fan-out,
// and never talks to the rendering layer other than through the session sink.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"messenger/contract"
	"messenger/domain"
	"messenger/observability"
	"messenger/runtime/workers"
	"time"
)

// SessionConfig carries the tunables of a conversation.
type SessionConfig struct {
	Tag              string
	ResolveTimeout   time.Duration
	DeliveryTimeout  time.Duration
	BufferSize       int
	StrictInvariants bool
}

// Session wires the presence machine, the broadcaster and the connectivity
// monitor around one transport.
type Session struct {
	log          *slog.Logger
	tag          string
	transport    contract.Transport
	sink         contract.SessionEventSink
	supervisor   contract.ISupervisor
	stats        *observability.SessionStats
	identity     domain.LocalIdentity
	registry     *Registry
	presence     *Presence
	broadcaster  *Broadcaster
	connectivity *Connectivity
}

func NewSession(log *slog.Logger, config SessionConfig, transport contract.Transport,
	sink contract.SessionEventSink, supervisor contract.ISupervisor,
	stats *observability.SessionStats, identity domain.LocalIdentity) *Session {
	registry := NewRegistry()
	presence := NewPresence(log, registry, NewResolver(transport, config.ResolveTimeout),
		sink, stats, config.BufferSize, config.StrictInvariants)
	return &Session{
		log:          log,
		tag:          config.Tag,
		transport:    transport,
		sink:         sink,
		supervisor:   supervisor,
		stats:        stats,
		identity:     identity,
		registry:     registry,
		presence:     presence,
		broadcaster:  NewBroadcaster(log, registry, transport, sink, stats, identity, config.DeliveryTimeout),
		connectivity: NewConnectivity(log, transport, presence),
	}
}

// Start announces the local messenger, starts discovery and goes online.
// It blocks until ctx is canceled or Stop is called.
func (s *Session) Start(ctx context.Context) error {
	// 1. Preparation phase
	if err := s.transport.Announce(s.tag, localMessenger{session: s}); err != nil {
		return fmt.Errorf("announce %q: %w", s.tag, err)
	}
	lifecycle, err := s.transport.Discover(ctx, s.tag)
	if err != nil {
		return fmt.Errorf("discover %q: %w", s.tag, err)
	}

	// 2. Registering the session workers next to the ones already added
	s.supervisor.Add(
		s.presence,
		workers.NewLifecyclePump(s.log, lifecycle, s.presence),
		workers.NewConnectivityWatcher(s.log, s.transport.Connectivity(), s.connectivity),
	)

	if err := s.connectivity.GoOnline(ctx); err != nil {
		return fmt.Errorf("go online: %w", err)
	}

	// 3. Execution phase
	s.log.Info("Session started", "name", s.identity.Name, "tag", s.tag)
	s.supervisor.Run(ctx)
	return nil
}

// SendMessage broadcasts text to the conversation and returns
// the number of peers delivery was initiated to.
func (s *Session) SendMessage(ctx context.Context, text string) (int, error) {
	return s.broadcaster.Broadcast(ctx, text)
}

func (s *Session) IsOnline() bool { return s.connectivity.IsOnline() }

func (s *Session) GoOnline(ctx context.Context) error { return s.connectivity.GoOnline(ctx) }

func (s *Session) GoOffline(ctx context.Context) error { return s.connectivity.GoOffline(ctx) }

func (s *Session) Toggle(ctx context.Context) error { return s.connectivity.Toggle(ctx) }

// Peers is a snapshot of the registry, in discovery order.
func (s *Session) Peers() []domain.PeerEntry { return s.registry.Snapshot() }

func (s *Session) Registry() *Registry { return s.registry }

func (s *Session) Stats() observability.Snapshot { return s.stats.GetLatest() }

func (s *Session) Identity() domain.LocalIdentity { return s.identity }

// Stop cancels the session workers and waits for in-flight deliveries.
func (s *Session) Stop() {
	s.log.Info("Requesting session shutdown")
	s.supervisor.Stop()
	s.broadcaster.Wait()
}

// localMessenger is what remote peers call.
type localMessenger struct {
	session *Session
}

func (m localMessenger) GetName() string {
	return m.session.identity.Name
}

// ReceiveMessage goes straight to the sink: inbound text is not tied to the registry.
func (m localMessenger) ReceiveMessage(name, text string) {
	m.session.stats.IncrMessagesReceived()
	m.session.sink.Message(name, text)
}
