package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"messenger/domain"
	"messenger/errors"
	"messenger/observability"
	"messenger/runtime/workers"
	"messenger/transport/memory"
	"sync"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type recordingSink struct {
	mu    sync.Mutex
	lines []string
}

func (r *recordingSink) PeerJoined(name string) { r.record(fmt.Sprintf("joined %s", name)) }

func (r *recordingSink) PeerLeft(name string) { r.record(fmt.Sprintf("left %s", name)) }

func (r *recordingSink) Message(sender, text string) { r.record(fmt.Sprintf("%s: %s", sender, text)) }

func (r *recordingSink) record(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, line)
}

func (r *recordingSink) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

type muteMessenger struct{}

func (muteMessenger) GetName() string { return "" }

func (muteMessenger) ReceiveMessage(string, string) {}

type runningSession struct {
	session *Session
	sink    *recordingSink
	node    *memory.Node
	done    chan error
}

func startSession(t *testing.T, ctx context.Context, hub *memory.Hub, name string) *runningSession {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	identity, err := domain.NewLocalIdentity(name)
	require.NoError(t, err)
	config := SessionConfig{
		Tag:              "MESSENGER",
		ResolveTimeout:   time.Second,
		DeliveryTimeout:  time.Second,
		BufferSize:       16,
		StrictInvariants: true,
	}
	r := &runningSession{sink: &recordingSink{}, node: hub.Join(name), done: make(chan error, 1)}
	r.session = NewSession(log, config, r.node, r.sink,
		workers.NewSupervisor(log, 10*time.Millisecond), observability.NewSessionStats(), identity)
	go func() { r.done <- r.session.Start(ctx) }()
	require.Eventually(t, r.session.IsOnline, time.Second, 5*time.Millisecond)
	return r
}

func (r *runningSession) stop(t *testing.T) {
	r.session.Stop()
	select {
	case err := <-r.done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		require.FailNow(t, "session did not stop")
	}
}

func eventuallyContains(t *testing.T, sink *recordingSink, line string) {
	require.Eventually(t, func() bool {
		for _, l := range sink.Lines() {
			if l == line {
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond, "missing %q in %v", line, sink.Lines())
}

func TestSession_Conversation_Over_Memory_Hub(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	req := require.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := memory.NewHub(logs.GetLoggerFromLevel(slog.LevelDebug))

	// Given alice and bob in the same conversation
	alice := startSession(t, ctx, hub, "Alice")
	bob := startSession(t, ctx, hub, "Bob")
	eventuallyContains(t, alice.sink, "joined Bob")
	eventuallyContains(t, bob.sink, "joined Alice")

	// When alice sends a message
	sent, err := alice.session.SendMessage(ctx, "hi")

	// Then it is printed on both sides
	req.NoError(err)
	req.Equal(1, sent)
	eventuallyContains(t, alice.sink, "Alice: hi")
	eventuallyContains(t, bob.sink, "Alice: hi")

	// When bob goes offline then online again
	req.NoError(bob.session.GoOffline(ctx))
	eventuallyContains(t, alice.sink, "left Bob")
	require.Eventually(t, func() bool { return len(bob.session.Peers()) == 0 }, time.Second, 5*time.Millisecond)
	req.NoError(bob.session.GoOnline(ctx))

	// Then alice sees bob again from the name she remembers
	require.Eventually(t, func() bool { return len(alice.sink.Lines()) == 4 }, 2*time.Second, 5*time.Millisecond)
	req.Equal([]string{"joined Bob", "Alice: hi", "left Bob", "joined Bob"}, alice.sink.Lines())
	req.EqualValues(2, alice.session.Stats().PeersJoined)

	alice.stop(t)
	bob.stop(t)
	hub.Close()
}

func TestSession_Peer_Without_Name_Never_Joins(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	req := require.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := memory.NewHub(logs.GetLoggerFromLevel(slog.LevelDebug))

	// Given carol cannot tell her name
	carol := hub.Join("Carol")
	carol.FailInvocations("getName", fmt.Errorf("no name yet"))
	req.NoError(carol.Announce("MESSENGER", muteMessenger{}))

	alice := startSession(t, ctx, hub, "Alice")
	bob := startSession(t, ctx, hub, "Bob")
	eventuallyContains(t, alice.sink, "joined Bob")

	// When carol comes online
	req.NoError(carol.GoOnline(ctx))

	// Then alice tries, fails and keeps carol out of the conversation
	require.Eventually(t, func() bool {
		return alice.session.Stats().ResolutionsFailed == 1
	}, 2*time.Second, 5*time.Millisecond)
	req.Len(alice.session.Peers(), 1)
	req.Equal([]string{"joined Bob"}, alice.sink.Lines())

	alice.stop(t)
	bob.stop(t)
	hub.Close()
}

func TestSession_Blank_Message_Is_Rejected(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := memory.NewHub(logs.GetLoggerFromLevel(slog.LevelDebug))
	alice := startSession(t, ctx, hub, "Alice")

	_, err := alice.session.SendMessage(ctx, "   ")

	require.ErrorIs(t, err, errors.ErrEmptyMessage)
	require.Empty(t, alice.sink.Lines())
	alice.stop(t)
	hub.Close()
}
