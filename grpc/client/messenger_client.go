package client

import (
	"context"
	"messenger/errors"
	"messenger/grpc/server"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// MessengerClient calls the messenger announced by one remote peer.
type MessengerClient struct {
	conn grpc.ClientConnInterface
	tag  string
}

func NewMessengerClient(conn grpc.ClientConnInterface, tag string) *MessengerClient {
	return &MessengerClient{conn: conn, tag: tag}
}

func (c *MessengerClient) GetName(ctx context.Context) (string, error) {
	out := new(wrapperspb.StringValue)
	if err := c.conn.Invoke(c.outgoing(ctx), server.GetNameFullMethodName, &emptypb.Empty{}, out); err != nil {
		return "", errors.FromGRPCError(err)
	}
	return out.GetValue(), nil
}

func (c *MessengerClient) ReceiveMessage(ctx context.Context, name, text string) error {
	in, err := structpb.NewStruct(map[string]any{"name": name, "text": text})
	if err != nil {
		return err
	}
	if err := c.conn.Invoke(c.outgoing(ctx), server.ReceiveMessageFullMethodName, in, &emptypb.Empty{}); err != nil {
		return errors.FromGRPCError(err)
	}
	return nil
}

func (c *MessengerClient) outgoing(ctx context.Context) context.Context {
	return metadata.AppendToOutgoingContext(ctx, server.TagHeader, c.tag)
}
