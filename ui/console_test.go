package ui

import (
	"bytes"
	"context"
	"log/slog"
	"messenger/domain"
	"messenger/errors"
	"messenger/observability"
	"strings"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	online bool
	sent   []string
	peers  []domain.PeerEntry
}

func (f *fakeSession) SendMessage(_ context.Context, text string) (int, error) {
	if strings.TrimSpace(text) == "" {
		return 0, errors.ErrEmptyMessage
	}
	f.sent = append(f.sent, text)
	return len(f.peers), nil
}

func (f *fakeSession) IsOnline() bool { return f.online }

func (f *fakeSession) GoOnline(context.Context) error {
	f.online = true
	return nil
}

func (f *fakeSession) GoOffline(context.Context) error {
	f.online = false
	return nil
}

func (f *fakeSession) Toggle(ctx context.Context) error {
	if f.online {
		return f.GoOffline(ctx)
	}
	return f.GoOnline(ctx)
}

func (f *fakeSession) Peers() []domain.PeerEntry { return f.peers }

func (f *fakeSession) Stats() observability.Snapshot {
	return observability.Snapshot{MessagesSent: uint64(len(f.sent))}
}

type fixedHistory []string

func (h fixedHistory) Lines() []string { return h }

func newConsole(session *fakeSession) (*Console, *bytes.Buffer) {
	out := &bytes.Buffer{}
	history := fixedHistory{"Bob has joined the conversation.", "Bob: hi"}
	return NewConsole(logs.GetLoggerFromLevel(slog.LevelDebug), session, history, out), out
}

func TestConsole_Plain_Line_Is_Sent(t *testing.T) {
	req := require.New(t)
	session := &fakeSession{}
	console, _ := newConsole(session)

	req.NoError(console.Handle(context.Background(), "  hello there "))

	req.Equal([]string{"hello there"}, session.sent)
}

func TestConsole_Connectivity_Commands(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	session := &fakeSession{}
	console, _ := newConsole(session)

	req.NoError(console.Handle(ctx, "/online"))
	req.True(session.online)
	req.NoError(console.Handle(ctx, "/toggle"))
	req.False(session.online)
	req.NoError(console.Handle(ctx, "/TOGGLE"))
	req.True(session.online)
	req.NoError(console.Handle(ctx, "/offline"))
	req.False(session.online)
}

func TestConsole_Who_Lists_Peers(t *testing.T) {
	req := require.New(t)
	session := &fakeSession{peers: []domain.PeerEntry{
		domain.NewActiveEntry(domain.NewRemoteHandle("10.0.0.2:7070"), "Bob"),
		domain.NewResolvingEntry(domain.NewRemoteHandle("10.0.0.3:7070")),
	}}
	console, out := newConsole(session)

	req.NoError(console.Handle(context.Background(), "/who"))

	req.Contains(out.String(), "Bob")
	req.Contains(out.String(), "active")
	req.Contains(out.String(), "resolving")
	req.Contains(out.String(), "10.0.0.3:7070")
}

func TestConsole_History_And_Status(t *testing.T) {
	req := require.New(t)
	console, out := newConsole(&fakeSession{online: true})

	req.NoError(console.Handle(context.Background(), "/history"))
	req.NoError(console.Handle(context.Background(), "/status"))

	req.Contains(out.String(), "Bob has joined the conversation.\nBob: hi\n")
	req.Contains(out.String(), "online")
}

func TestConsole_Unknown_Command(t *testing.T) {
	console, _ := newConsole(&fakeSession{})

	err := console.Handle(context.Background(), "/dance")

	require.ErrorContains(t, err, "unknown command /dance")
}

func TestConsole_Run_Until_Quit(t *testing.T) {
	req := require.New(t)
	session := &fakeSession{}
	console, out := newConsole(session)

	err := console.Run(context.Background(), ReadLines(strings.NewReader("hi\n   \n/dance\n/quit\nnever sent\n")))

	req.NoError(err)
	req.Equal([]string{"hi"}, session.sent)
	req.Contains(out.String(), "unknown command /dance")
}
