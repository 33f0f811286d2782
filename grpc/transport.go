// Package grpc carries the conversation over the network. Each configured peer
// endpoint is one client connection, and its connectivity state is what the
// session sees as discovery, disconnection and reconnection.
package grpc

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"messenger/contract"
	"messenger/domain"
	"messenger/errors"
	"messenger/grpc/client"
	"messenger/grpc/server"
	"messenger/transport/mailbox"
	"net"
	"sync"
	"time"

	sdkgrpc "github.com/mama165/sdk-go/grpc"
	"github.com/samber/lo"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
)

type Options struct {
	// ListenAddr is where the local messenger is served. A zero port is
	// resolved on the first online period and kept for the next ones.
	ListenAddr string
	Peers      []string
	// MaxBackoff bounds the delay between two attempts to reach a peer.
	MaxBackoff time.Duration
}

var _ contract.Transport = (*Transport)(nil)

type peerLink struct {
	endpoint string
	handle   domain.RemoteHandle
	conn     *gogrpc.ClientConn
	client   *client.MessengerClient
	seen     bool
	ready    bool
}

// Transport implements contract.Transport over gRPC.
// Handles are minted per online period: after GoOffline every peer is
// discovered again under a new handle.
type Transport struct {
	mu        sync.Mutex
	log       *slog.Logger
	opts      Options
	messenger *server.MessengerServer

	online      bool
	server      *gogrpc.Server
	addr        string
	period      context.Context
	cancel      context.CancelFunc
	tag         string
	discovering bool
	links       map[domain.RemoteHandle]*peerLink
	watchers    sync.WaitGroup

	lifecycle *mailbox.Mailbox[domain.LifecycleEvent]
	status    *mailbox.Mailbox[bool]
	done      chan struct{}
	closeOnce sync.Once
}

func NewTransport(log *slog.Logger, opts Options) *Transport {
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 3 * time.Second
	}
	done := make(chan struct{})
	return &Transport{
		log:       log,
		opts:      opts,
		messenger: server.NewMessengerServer(log),
		links:     make(map[domain.RemoteHandle]*peerLink),
		lifecycle: mailbox.New[domain.LifecycleEvent](done),
		status:    mailbox.New[bool](done),
		done:      done,
	}
}

// Addr is the address the local messenger is served on, once online.
func (t *Transport) Addr() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.addr
}

func (t *Transport) Announce(tag string, messenger contract.Messenger) error {
	t.messenger.Announce(tag, messenger)
	return nil
}

// Discover dials every configured peer while online.
// Reporting stops when ctx is done.
func (t *Transport) Discover(ctx context.Context, tag string) (<-chan domain.LifecycleEvent, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.discovering {
		return nil, fmt.Errorf("%w: %s", errors.ErrAlreadyDiscovering, t.tag)
	}
	t.tag = tag
	t.discovering = true
	if t.online {
		if err := t.dialLocked(); err != nil {
			return nil, err
		}
	}
	context.AfterFunc(ctx, t.stopDiscovery)
	return t.lifecycle.Out(), nil
}

// Connectivity reports a server that stopped on its own.
func (t *Transport) Connectivity() <-chan bool {
	return t.status.Out()
}

func (t *Transport) GoOnline(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.online {
		return nil
	}

	listener, err := net.Listen("tcp", t.opts.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", t.opts.ListenAddr, err)
	}
	t.addr = listener.Addr().String()
	t.opts.ListenAddr = t.addr

	s := gogrpc.NewServer(gogrpc.ChainUnaryInterceptor(sdkgrpc.UnaryLoggingInterceptor(t.log)))
	server.RegisterMessengerServiceServer(s, t.messenger)
	t.server = s
	t.period, t.cancel = context.WithCancel(context.Background())
	t.online = true

	go t.serve(t.period, s, listener)

	if t.discovering {
		if err := t.dialLocked(); err != nil {
			return err
		}
	}
	return nil
}

func (t *Transport) serve(period context.Context, s *gogrpc.Server, listener net.Listener) {
	t.log.Info("Serving messenger", "address", listener.Addr().String())
	err := s.Serve(listener)
	if err == nil || stderrors.Is(err, gogrpc.ErrServerStopped) || period.Err() != nil {
		return
	}
	t.log.Error("Messenger server stopped", "error", err)
	t.status.Push(false)
}

// GoOffline stops serving and drops every peer connection. Nothing is
// reported for the dropped peers: the caller clears its own view.
func (t *Transport) GoOffline(_ context.Context) error {
	t.mu.Lock()
	if !t.online {
		t.mu.Unlock()
		return nil
	}
	t.online = false
	t.cancel()
	s := t.server
	links := lo.Values(t.links)
	t.links = make(map[domain.RemoteHandle]*peerLink)
	t.lifecycle.Drop()
	t.mu.Unlock()

	t.closeLinks(links)
	s.Stop()
	t.watchers.Wait()
	return nil
}

// Close goes offline and stops delivering events.
func (t *Transport) Close() error {
	err := t.GoOffline(context.Background())
	t.closeOnce.Do(func() { close(t.done) })
	return err
}

func (t *Transport) stopDiscovery() {
	t.mu.Lock()
	t.discovering = false
	links := lo.Values(t.links)
	t.links = make(map[domain.RemoteHandle]*peerLink)
	t.lifecycle.Drop()
	t.mu.Unlock()

	t.closeLinks(links)
}

func (t *Transport) closeLinks(links []*peerLink) {
	for _, link := range links {
		if err := link.conn.Close(); err != nil {
			t.log.Debug("Failed to close peer connection", "endpoint", link.endpoint, "error", err)
		}
	}
}

// dialLocked creates one connection per configured peer, each under a new handle.
func (t *Transport) dialLocked() error {
	for _, endpoint := range t.opts.Peers {
		if endpoint == t.addr {
			continue
		}
		conn, err := gogrpc.NewClient(endpoint,
			gogrpc.WithTransportCredentials(insecure.NewCredentials()),
			gogrpc.WithIdleTimeout(0),
			gogrpc.WithConnectParams(gogrpc.ConnectParams{
				Backoff: backoff.Config{
					BaseDelay:  100 * time.Millisecond,
					Multiplier: 1.6,
					Jitter:     0.2,
					MaxDelay:   t.opts.MaxBackoff,
				},
				MinConnectTimeout: time.Second,
			}),
		)
		if err != nil {
			return fmt.Errorf("failed to create client for %s: %w", endpoint, err)
		}
		link := &peerLink{
			endpoint: endpoint,
			handle:   domain.NewRemoteHandle(endpoint),
			conn:     conn,
			client:   client.NewMessengerClient(conn, t.tag),
		}
		t.links[link.handle] = link
		t.watchers.Add(1)
		go t.watch(t.period, link)
	}
	return nil
}

// watch turns the connectivity states of one connection into lifecycle events.
func (t *Transport) watch(period context.Context, link *peerLink) {
	defer t.watchers.Done()
	state := link.conn.GetState()
	link.conn.Connect()
	for {
		if !link.conn.WaitForStateChange(period, state) {
			return
		}
		state = link.conn.GetState()
		switch state {
		case connectivity.Shutdown:
			return
		case connectivity.Idle:
			// A lost connection rests in Idle until asked to reconnect.
			link.conn.Connect()
		}
		t.observe(period, link, state == connectivity.Ready)
	}
}

func (t *Transport) observe(period context.Context, link *peerLink, ready bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if period.Err() != nil || t.links[link.handle] != link || ready == link.ready {
		return
	}
	link.ready = ready
	switch {
	case !ready:
		t.lifecycle.Push(domain.NewLost(link.handle))
	case link.seen:
		t.lifecycle.Push(domain.NewReconnected(link.handle))
	default:
		link.seen = true
		t.lifecycle.Push(domain.NewDiscovered(link.handle))
	}
	t.log.Debug("Peer connectivity changed", "endpoint", link.endpoint, "handle", link.handle, "ready", ready)
}

func (t *Transport) InvokeAsync(ctx context.Context, handle domain.RemoteHandle, method string, args ...string) <-chan domain.Result {
	results := make(chan domain.Result, 1)
	go func() {
		defer close(results)
		value, err := t.invoke(ctx, handle, method, args)
		results <- domain.Result{Value: value, Err: err}
	}()
	return results
}

func (t *Transport) invoke(ctx context.Context, handle domain.RemoteHandle, method string, args []string) (string, error) {
	t.mu.Lock()
	online := t.online
	link, ok := t.links[handle]
	t.mu.Unlock()
	if !online {
		return "", errors.ErrOffline
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", errors.ErrUnknownHandle, handle)
	}

	switch method {
	case contract.MethodGetName:
		return link.client.GetName(ctx)
	case contract.MethodReceiveMessage:
		if len(args) != 2 {
			return "", fmt.Errorf("%s expects 2 arguments, got %d", method, len(args))
		}
		return "", link.client.ReceiveMessage(ctx, args[0], args[1])
	default:
		return "", fmt.Errorf("%w: %s", errors.ErrUnknownMethod, method)
	}
}
