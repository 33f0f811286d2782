package grpc

import (
	"context"
	"fmt"
	"log/slog"
	"messenger/contract"
	"messenger/domain"
	"messenger/errors"
	"sync"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

type fakeMessenger struct {
	mu       sync.Mutex
	name     string
	received []string
}

func (f *fakeMessenger) GetName() string { return f.name }

func (f *fakeMessenger) ReceiveMessage(name, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.received = append(f.received, fmt.Sprintf("%s: %s", name, text))
}

func (f *fakeMessenger) Received() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.received...)
}

func newTransport(t *testing.T, name string, peers ...string) (*Transport, *fakeMessenger) {
	transport := NewTransport(logs.GetLoggerFromLevel(slog.LevelDebug), Options{
		ListenAddr: "127.0.0.1:0",
		Peers:      peers,
		MaxBackoff: 200 * time.Millisecond,
	})
	t.Cleanup(func() { _ = transport.Close() })
	messenger := &fakeMessenger{name: name}
	require.NoError(t, transport.Announce("MESSENGER", messenger))
	return transport, messenger
}

func nextEvent(t *testing.T, events <-chan domain.LifecycleEvent) domain.LifecycleEvent {
	select {
	case evt := <-events:
		return evt
	case <-time.After(5 * time.Second):
		require.FailNow(t, "no lifecycle event")
		return domain.LifecycleEvent{}
	}
}

func TestTransport_Discovery_Invocation_And_Reconnection(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	// Given bob serving his messenger
	bob, bobMessenger := newTransport(t, "Bob")
	req.NoError(bob.GoOnline(ctx))

	// And alice configured with bob's address
	alice, _ := newTransport(t, "Alice", bob.Addr())
	events, err := alice.Discover(ctx, "MESSENGER")
	req.NoError(err)
	req.NoError(alice.GoOnline(ctx))

	// Then alice discovers bob
	discovered := nextEvent(t, events)
	req.Equal(domain.Discovered, discovered.Kind)
	req.Equal(bob.Addr(), discovered.Handle.Endpoint())

	// And can call his messenger
	res := <-alice.InvokeAsync(ctx, discovered.Handle, contract.MethodGetName)
	req.NoError(res.Err)
	req.Equal("Bob", res.Value)
	res = <-alice.InvokeAsync(ctx, discovered.Handle, contract.MethodReceiveMessage, "Alice", "hi")
	req.NoError(res.Err)
	req.Equal([]string{"Alice: hi"}, bobMessenger.Received())

	// When bob goes offline then online on the same address
	req.NoError(bob.GoOffline(ctx))
	lost := nextEvent(t, events)
	req.NoError(bob.GoOnline(ctx))
	back := nextEvent(t, events)

	// Then alice loses and finds him again under the same handle
	req.Equal(domain.Lost, lost.Kind)
	req.Equal(discovered.Handle, lost.Handle)
	req.Equal(domain.Reconnected, back.Kind)
	req.Equal(discovered.Handle, back.Handle)
}

func TestTransport_New_Handles_After_Going_Offline(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	bob, _ := newTransport(t, "Bob")
	req.NoError(bob.GoOnline(ctx))
	alice, _ := newTransport(t, "Alice", bob.Addr())
	events, err := alice.Discover(ctx, "MESSENGER")
	req.NoError(err)
	req.NoError(alice.GoOnline(ctx))
	first := nextEvent(t, events)

	// When alice goes offline
	req.NoError(alice.GoOffline(ctx))

	// Then her handles are gone
	res := <-alice.InvokeAsync(ctx, first.Handle, contract.MethodGetName)
	req.ErrorIs(res.Err, errors.ErrOffline)

	// And bob is discovered again under a new handle
	req.NoError(alice.GoOnline(ctx))
	second := nextEvent(t, events)
	req.Equal(domain.Discovered, second.Kind)
	req.NotEqual(first.Handle, second.Handle)
	res = <-alice.InvokeAsync(ctx, first.Handle, contract.MethodGetName)
	req.ErrorIs(res.Err, errors.ErrUnknownHandle)
}

func TestTransport_Other_Tag_Is_Not_Announced(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	bob, _ := newTransport(t, "Bob")
	req.NoError(bob.GoOnline(ctx))
	alice, _ := newTransport(t, "Alice", bob.Addr())
	events, err := alice.Discover(ctx, "ELSEWHERE")
	req.NoError(err)
	req.NoError(alice.GoOnline(ctx))
	handle := nextEvent(t, events).Handle

	res := <-alice.InvokeAsync(ctx, handle, contract.MethodGetName)

	req.ErrorIs(res.Err, errors.ErrNotAnnounced)
}

func TestTransport_Rejects_Unknown_Method_And_Second_Discovery(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	bob, _ := newTransport(t, "Bob")
	req.NoError(bob.GoOnline(ctx))
	alice, _ := newTransport(t, "Alice", bob.Addr())
	events, err := alice.Discover(ctx, "MESSENGER")
	req.NoError(err)
	req.NoError(alice.GoOnline(ctx))
	handle := nextEvent(t, events).Handle

	res := <-alice.InvokeAsync(ctx, handle, "shout")
	req.ErrorIs(res.Err, errors.ErrUnknownMethod)

	_, err = alice.Discover(ctx, "MESSENGER")
	req.ErrorIs(err, errors.ErrAlreadyDiscovering)
}
