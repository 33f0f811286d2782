package server

import (
	"context"
	"log/slog"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

type namedMessenger struct {
	name string
	got  [][2]string
}

func (n *namedMessenger) GetName() string { return n.name }

func (n *namedMessenger) ReceiveMessage(name, text string) {
	n.got = append(n.got, [2]string{name, text})
}

func withTag(tag string) context.Context {
	return metadata.NewIncomingContext(context.Background(), metadata.Pairs(TagHeader, tag))
}

func TestMessengerServer_Not_Announced(t *testing.T) {
	s := NewMessengerServer(logs.GetLoggerFromLevel(slog.LevelDebug))

	_, err := s.GetName(withTag("MESSENGER"), &emptypb.Empty{})

	require.Equal(t, codes.NotFound, status.Code(err))
}

func TestMessengerServer_GetName_Checks_Tag(t *testing.T) {
	req := require.New(t)
	s := NewMessengerServer(logs.GetLoggerFromLevel(slog.LevelDebug))
	s.Announce("MESSENGER", &namedMessenger{name: "Bob"})

	out, err := s.GetName(withTag("MESSENGER"), &emptypb.Empty{})
	req.NoError(err)
	req.Equal("Bob", out.GetValue())

	_, err = s.GetName(withTag("OTHER"), &emptypb.Empty{})
	req.Equal(codes.NotFound, status.Code(err))
}

func TestMessengerServer_ReceiveMessage(t *testing.T) {
	req := require.New(t)
	messenger := &namedMessenger{name: "Bob"}
	s := NewMessengerServer(logs.GetLoggerFromLevel(slog.LevelDebug))
	s.Announce("MESSENGER", messenger)

	in, err := structpb.NewStruct(map[string]any{"name": "Alice", "text": "hi"})
	req.NoError(err)
	_, err = s.ReceiveMessage(withTag("MESSENGER"), in)
	req.NoError(err)
	req.Equal([][2]string{{"Alice", "hi"}}, messenger.got)

	empty, err := structpb.NewStruct(map[string]any{"name": "Alice", "text": ""})
	req.NoError(err)
	_, err = s.ReceiveMessage(withTag("MESSENGER"), empty)
	req.Equal(codes.InvalidArgument, status.Code(err))

	anonymous, err := structpb.NewStruct(map[string]any{"text": "hi"})
	req.NoError(err)
	_, err = s.ReceiveMessage(withTag("MESSENGER"), anonymous)
	req.Equal(codes.InvalidArgument, status.Code(err))
}
