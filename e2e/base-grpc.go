package e2e

import (
	"context"
	"fmt"
	"messenger/grpc/client"
	"strings"
	"testing"
	"time"

	"github.com/gookit/color"
	"github.com/stretchr/testify/suite"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

const callTimeout = 10 * time.Second

// BaseGrpcSuite talks to a messenger started outside the test run.
type BaseGrpcSuite struct {
	suite.Suite
	Config Config
}

func (s *BaseGrpcSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.MessengerAddr == "" {
		s.T().Skip("E2E_MESSENGER_ADDR is not set")
	}
}

// GrpcConn dials addr and traces every call made through it under the step name.
func (s *BaseGrpcSuite) GrpcConn(t *testing.T, step string, addr string) *grpc.ClientConn {
	t.Log(s.banner(step))
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(s.traceCalls(t)),
	)
	s.Require().NoError(err, "cannot reach messenger at %s", addr)
	return conn
}

// WithMessenger runs fn against the messenger under test, as a peer discovering the configured tag.
func (s *BaseGrpcSuite) WithMessenger(step string, fn func(ctx context.Context, messenger *client.MessengerClient)) {
	conn := s.GrpcConn(s.T(), step, s.Config.MessengerAddr)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	fn(ctx, client.NewMessengerClient(conn, s.Config.ServiceTag))
}

func (s *BaseGrpcSuite) banner(step string) string {
	line := fmt.Sprintf("--- %s ---", step)
	if !s.Config.Colours {
		return line
	}
	return color.New(color.FgLightBlue, color.OpBold).Render(line)
}

// traceCalls logs the method, status and latency of each call,
// and the messages themselves when E2E_DEBUG_JSON is set.
func (s *BaseGrpcSuite) traceCalls(t *testing.T) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		start := time.Now()
		err := invoker(ctx, method, req, reply, cc, opts...)

		var trace strings.Builder
		fmt.Fprintf(&trace, "%s -> %s (%v)", method, status.Code(err), time.Since(start))
		if s.Config.DebugJSON {
			fmt.Fprintf(&trace, "\n  sent: %s", asJSON(req))
			if err == nil {
				fmt.Fprintf(&trace, "\n  got:  %s", asJSON(reply))
			}
		}
		t.Log(trace.String())
		return err
	}
}

func asJSON(v any) string {
	msg, ok := v.(proto.Message)
	if !ok {
		return fmt.Sprintf("%v", v)
	}
	return protojson.MarshalOptions{UseProtoNames: true, EmitUnpopulated: true}.Format(msg)
}
