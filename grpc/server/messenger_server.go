package server

import (
	"context"
	"fmt"
	"log/slog"
	"messenger/contract"
	"messenger/errors"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	ServiceName                  = "messenger.v1.Messenger"
	GetNameFullMethodName        = "/" + ServiceName + "/GetName"
	ReceiveMessageFullMethodName = "/" + ServiceName + "/ReceiveMessage"

	// TagHeader carries the service tag the caller discovered the peer under.
	TagHeader = "x-service-tag"
)

// MessengerServiceServer is the server API of messenger.v1.Messenger.
type MessengerServiceServer interface {
	GetName(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error)
	ReceiveMessage(context.Context, *structpb.Struct) (*emptypb.Empty, error)
}

// MessengerServiceDesc describes messenger.v1.Messenger with well-known types only.
var MessengerServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MessengerServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetName", Handler: getNameHandler},
		{MethodName: "ReceiveMessage", Handler: receiveMessageHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "messenger/v1/messenger.proto",
}

func RegisterMessengerServiceServer(s grpc.ServiceRegistrar, srv MessengerServiceServer) {
	s.RegisterService(&MessengerServiceDesc, srv)
}

func getNameHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MessengerServiceServer).GetName(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetNameFullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(MessengerServiceServer).GetName(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func receiveMessageHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MessengerServiceServer).ReceiveMessage(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ReceiveMessageFullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(MessengerServiceServer).ReceiveMessage(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

var _ MessengerServiceServer = (*MessengerServer)(nil)

// MessengerServer exposes the announced local messenger to remote peers.
// It outlives the gRPC servers of successive online periods.
type MessengerServer struct {
	mu        sync.RWMutex
	log       *slog.Logger
	tag       string
	messenger contract.Messenger
}

func NewMessengerServer(log *slog.Logger) *MessengerServer {
	return &MessengerServer{log: log}
}

// Announce makes messenger reachable by the callers discovering tag.
func (s *MessengerServer) Announce(tag string, messenger contract.Messenger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tag = tag
	s.messenger = messenger
}

func (s *MessengerServer) GetName(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.StringValue, error) {
	messenger, err := s.lookup(ctx)
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	return wrapperspb.String(messenger.GetName()), nil
}

// ReceiveMessage expects a struct with the string fields "name" and "text".
func (s *MessengerServer) ReceiveMessage(ctx context.Context, in *structpb.Struct) (*emptypb.Empty, error) {
	messenger, err := s.lookup(ctx)
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	fields := in.GetFields()
	name := fields["name"].GetStringValue()
	text := fields["text"].GetStringValue()
	if name == "" {
		return nil, errors.MapToGRPCError(fmt.Errorf("%w: sender is missing", errors.ErrInvalidName))
	}
	if text == "" {
		return nil, errors.MapToGRPCError(errors.ErrEmptyMessage)
	}
	messenger.ReceiveMessage(name, text)
	return &emptypb.Empty{}, nil
}

// lookup returns the messenger if the caller asked for the announced tag.
func (s *MessengerServer) lookup(ctx context.Context) (contract.Messenger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.messenger == nil {
		return nil, errors.ErrNotAnnounced
	}
	md, _ := metadata.FromIncomingContext(ctx)
	if tags := md.Get(TagHeader); len(tags) > 0 && tags[0] != s.tag {
		s.log.Debug("Call for another service", "tag", tags[0])
		return nil, fmt.Errorf("%w: %s", errors.ErrNotAnnounced, tags[0])
	}
	return s.messenger, nil
}
