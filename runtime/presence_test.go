package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"messenger/domain"
	"messenger/errors"
	"messenger/mocks"
	"messenger/observability"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type presenceFixture struct {
	t        *testing.T
	ctx      context.Context
	presence *Presence
	registry *Registry
	resolver *mocks.MockNameResolver
	sink     *mocks.MockSessionEventSink
	stats    *observability.SessionStats
}

func newPresenceFixture(t *testing.T) *presenceFixture {
	ctrl := gomock.NewController(t)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	f := &presenceFixture{
		t:        t,
		ctx:      ctx,
		registry: NewRegistry(),
		resolver: mocks.NewMockNameResolver(ctrl),
		sink:     mocks.NewMockSessionEventSink(ctrl),
		stats:    observability.NewSessionStats(),
	}
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	f.presence = NewPresence(log, f.registry, f.resolver, f.sink, f.stats, 16, true)
	return f
}

// expectResolve returns the channel through which the test answers the resolution.
func (f *presenceFixture) expectResolve(handle domain.RemoteHandle) chan domain.Result {
	results := make(chan domain.Result, 1)
	f.resolver.EXPECT().Resolve(gomock.Any(), handle).Return(results).Times(1)
	return results
}

// step applies exactly one queued input. Only the wait is bounded: the input is
// applied under the fixture context, which outlives the resolutions it starts.
func (f *presenceFixture) step() {
	select {
	case in := <-f.presence.inputs:
		f.presence.apply(f.ctx, in)
	case <-time.After(time.Second):
		require.FailNow(f.t, "no input was queued")
	}
}

func (f *presenceFixture) discover(handle domain.RemoteHandle) {
	require.NoError(f.t, f.presence.Discovered(f.ctx, handle))
	f.step()
}

func (f *presenceFixture) disconnect(handle domain.RemoteHandle) {
	require.NoError(f.t, f.presence.Disconnected(f.ctx, handle))
	f.step()
}

func (f *presenceFixture) reconnect(handle domain.RemoteHandle) {
	require.NoError(f.t, f.presence.Reconnected(f.ctx, handle))
	f.step()
}

func (f *presenceFixture) resolve(results chan domain.Result, name string, err error) {
	results <- domain.Result{Value: name, Err: err}
	close(results)
	f.step()
}

func (f *presenceFixture) activate(endpoint, name string) domain.RemoteHandle {
	handle := domain.NewRemoteHandle(endpoint)
	results := f.expectResolve(handle)
	f.sink.EXPECT().PeerJoined(name).Times(1)
	f.discover(handle)
	f.resolve(results, name, nil)
	return handle
}

func TestPresence_Join_Leave_Then_Discarded_Newcomer(t *testing.T) {
	req := require.New(t)
	f := newPresenceFixture(t)

	// Given Bob is discovered and his name resolves
	h1 := domain.NewRemoteHandle("bob")
	results := f.expectResolve(h1)
	f.sink.EXPECT().PeerJoined("Bob").Times(1)
	f.discover(h1)
	f.resolve(results, "Bob", nil)

	// When he disconnects
	f.sink.EXPECT().PeerLeft("Bob").Times(1)
	f.disconnect(h1)

	// Then a new handle disconnecting before its resolution produces nothing
	h2 := domain.NewRemoteHandle("bob")
	late := f.expectResolve(h2)
	f.discover(h2)
	f.disconnect(h2)
	f.resolve(late, "Bob", nil)

	req.Zero(f.registry.Len())
	req.Equal(uint64(1), f.stats.GetLatest().DiscardedResults)
}

func TestPresence_No_Join_After_Disconnect(t *testing.T) {
	req := require.New(t)
	f := newPresenceFixture(t)
	handle := domain.NewRemoteHandle("carol")
	results := f.expectResolve(handle)

	// Given a handle still resolving
	f.discover(handle)
	entry, ok := f.registry.Get(handle)
	req.True(ok)
	req.Equal(domain.Resolving, entry.State)

	// When it disconnects before the name arrives
	f.disconnect(handle)
	req.Zero(f.registry.Len())

	// Then the late name is dropped and no event is emitted
	f.resolve(results, "Carol", nil)
	req.Zero(f.registry.Len())
}

func TestPresence_Resolution_Failure_Drops_Peer_Silently(t *testing.T) {
	req := require.New(t)
	f := newPresenceFixture(t)
	handle := domain.NewRemoteHandle("dave")
	results := f.expectResolve(handle)

	f.discover(handle)
	f.resolve(results, "", fmt.Errorf("%w: timeout", errors.ErrResolutionFailed))

	req.Zero(f.registry.Len())
	req.Equal(uint64(1), f.stats.GetLatest().ResolutionsFailed)
}

func TestPresence_Reconnect_Reuses_Resolved_Name(t *testing.T) {
	req := require.New(t)
	f := newPresenceFixture(t)

	// Given Alice became active then disconnected
	handle := f.activate("alice", "Alice")
	f.sink.EXPECT().PeerLeft("Alice").Times(1)
	f.disconnect(handle)

	// When the same handle reconnects
	f.sink.EXPECT().PeerJoined("Alice").Times(1)
	f.reconnect(handle)

	// Then she is active again without a second resolution
	entry, ok := f.registry.Get(handle)
	req.True(ok)
	req.Equal(domain.Active, entry.State)
	req.Equal("Alice", *entry.DisplayName)
	req.Equal(uint64(2), f.stats.GetLatest().PeersJoined)
}

func TestPresence_Reconnect_Without_Name_Resolves_From_Scratch(t *testing.T) {
	f := newPresenceFixture(t)
	handle := domain.NewRemoteHandle("erin")
	results := f.expectResolve(handle)

	// When an unknown handle reports a reconnection
	f.reconnect(handle)

	// Then it is resolved like a discovery
	f.sink.EXPECT().PeerJoined("Erin").Times(1)
	f.resolve(results, "Erin", nil)
}

func TestPresence_Reconnect_While_Resolving_Reuses_Pending_Resolution(t *testing.T) {
	req := require.New(t)
	f := newPresenceFixture(t)
	handle := domain.NewRemoteHandle("frank")

	// Given a single resolution is expected for the handle
	results := f.expectResolve(handle)
	f.discover(handle)
	f.disconnect(handle)

	// When it comes back before its name arrived
	f.reconnect(handle)

	// Then the outstanding resolution completes the entry
	f.sink.EXPECT().PeerJoined("Frank").Times(1)
	f.resolve(results, "Frank", nil)
	entry, _ := f.registry.Get(handle)
	req.Equal(domain.Active, entry.State)
}

func TestPresence_Offline_Clears_Everything_Silently(t *testing.T) {
	req := require.New(t)
	f := newPresenceFixture(t)

	// Given 3 active peers and one still resolving
	for _, name := range []string{"A", "B", "C"} {
		f.activate(name, name)
	}
	pending := domain.NewRemoteHandle("d")
	results := f.expectResolve(pending)
	f.discover(pending)
	req.Equal(4, f.registry.Len())

	// When the local peer goes offline
	req.NoError(f.presence.LocalWentOffline(f.ctx))
	f.step()

	// Then the registry is empty and no PeerLeft was emitted
	req.Zero(f.registry.Len())

	// And the late resolution is ignored
	f.resolve(results, "D", nil)
	req.Zero(f.registry.Len())
	req.Equal(uint64(1), f.stats.GetLatest().OfflineTransitions)
}

func TestPresence_Discovered_Twice_Is_Ignored(t *testing.T) {
	req := require.New(t)
	f := newPresenceFixture(t)
	handle := domain.NewRemoteHandle("gus")
	results := f.expectResolve(handle)

	f.discover(handle)
	f.discover(handle)

	f.sink.EXPECT().PeerJoined("Gus").Times(1)
	f.resolve(results, "Gus", nil)
	req.Equal(1, f.registry.Len())
}

func TestPresence_Unknown_Resolution_Fails_Fast_In_Strict_Mode(t *testing.T) {
	f := newPresenceFixture(t)

	require.Panics(t, func() {
		f.presence.apply(f.ctx, presenceInput{
			kind:   inputResolved,
			handle: domain.NewRemoteHandle("ghost"),
			token:  42,
			result: domain.Result{Value: "Ghost"},
		})
	})
}

func TestPresence_Run_Processes_Queued_Inputs(t *testing.T) {
	req := require.New(t)
	f := newPresenceFixture(t)
	handle := domain.NewRemoteHandle("hank")
	joined := make(chan struct{})

	f.resolver.EXPECT().Resolve(gomock.Any(), handle).Return(resultOf("Hank", nil))
	f.sink.EXPECT().PeerJoined("Hank").Do(func(string) { close(joined) })

	ctx, cancel := context.WithCancel(f.ctx)
	done := make(chan struct{})
	go func() {
		_ = f.presence.Run(ctx)
		close(done)
	}()

	req.NoError(f.presence.Discovered(ctx, handle))

	select {
	case <-joined:
	case <-time.After(time.Second):
		req.Fail("peer never joined")
	}
	req.Len(f.registry.ActivePeers(), 1)

	cancel()
	<-done
}

func TestPresence_Completions_Arrive_After_Later_Inputs(t *testing.T) {
	req := require.New(t)
	f := newPresenceFixture(t)

	// Given many handles discovered before any name is known
	pending := make(map[domain.RemoteHandle]chan domain.Result)
	handles := make([]domain.RemoteHandle, 0, 20)
	for i := 0; i < 20; i++ {
		handle := domain.NewRemoteHandle(fmt.Sprintf("peer-%d", i))
		pending[handle] = f.expectResolve(handle)
		handles = append(handles, handle)
		f.discover(handle)
	}

	// When every name arrives, long after the input that asked for it
	for i, handle := range handles {
		name := fmt.Sprintf("Peer %d", i)
		f.sink.EXPECT().PeerJoined(name).Times(1)
		f.resolve(pending[handle], name, nil)
	}

	// Then no completion was lost
	req.Len(f.registry.ActivePeers(), 20)
	req.Zero(f.stats.GetLatest().DiscardedResults)
}

func TestPresence_Submit_Prefers_Queueing_While_Context_Is_Alive(t *testing.T) {
	req := require.New(t)
	f := newPresenceFixture(t)
	ctx, cancel := context.WithCancel(f.ctx)

	req.NoError(f.presence.Discovered(ctx, domain.NewRemoteHandle("ivy")))
	cancel()

	req.ErrorIs(f.presence.Discovered(ctx, domain.NewRemoteHandle("jay")), context.Canceled)
	req.Len(f.presence.inputs, 1)
}
