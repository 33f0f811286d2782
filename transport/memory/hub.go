// Package memory is an in-process transport: every node of a Hub sees the
// others as remote peers. It backs the tests and the tester simulation.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"messenger/contract"
	"messenger/domain"
	"messenger/errors"
	"messenger/transport/mailbox"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
)

type Option func(*Hub)

// WithFreshHandles mints a new handle every time a peer becomes visible again,
// so observers see Discovered instead of Reconnected.
func WithFreshHandles() Option {
	return func(h *Hub) { h.freshHandles = true }
}

type link struct{ a, b string }

func newLink(a, b string) link {
	if a > b {
		a, b = b, a
	}
	return link{a: a, b: b}
}

// Hub is the shared medium of a set of nodes.
type Hub struct {
	mu           sync.Mutex
	log          *slog.Logger
	nodes        map[string]*Node
	partitions   map[link]bool
	freshHandles bool
	done         chan struct{}
	closeOnce    sync.Once
}

func NewHub(log *slog.Logger, opts ...Option) *Hub {
	h := &Hub{
		log:        log,
		nodes:      make(map[string]*Node),
		partitions: make(map[link]bool),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Join adds a node. It starts offline and without any announced service.
func (h *Hub) Join(id string) *Node {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n, ok := h.nodes[id]; ok {
		return n
	}
	n := &Node{
		hub:       h,
		id:        id,
		lifecycle: mailbox.New[domain.LifecycleEvent](h.done),
		status:    mailbox.New[bool](h.done),
		handles:   make(map[string]domain.RemoteHandle),
		peers:     make(map[domain.RemoteHandle]string),
		visible:   make(map[string]bool),
		failures:  make(map[string]error),
	}
	h.nodes[id] = n
	return n
}

// Partition cuts the link between two nodes.
func (h *Hub) Partition(a, b *Node) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.partitions[newLink(a.id, b.id)] = true
	h.reconcileLocked()
}

func (h *Hub) Heal(a, b *Node) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.partitions, newLink(a.id, b.id))
	h.reconcileLocked()
}

// Close stops delivering events to every node.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

func (h *Hub) reachableLocked(a, b *Node) bool {
	return a.online && b.online && !h.partitions[newLink(a.id, b.id)]
}

// reconcileLocked compares what each discovering node should see with
// what it was told so far, and emits the difference.
func (h *Hub) reconcileLocked() {
	ids := lo.Keys(h.nodes)
	sort.Strings(ids)
	for _, observerID := range ids {
		observer := h.nodes[observerID]
		if observer.tag == "" {
			continue
		}
		for _, peerID := range ids {
			if peerID == observerID {
				continue
			}
			peer := h.nodes[peerID]
			should := observer.online && peer.messenger != nil &&
				peer.announcedTag == observer.tag && h.reachableLocked(observer, peer)
			if should == observer.visible[peerID] {
				continue
			}
			observer.visible[peerID] = should
			if should {
				observer.lifecycle.Push(h.appearLocked(observer, peer))
			} else {
				observer.lifecycle.Push(domain.NewLost(observer.handles[peerID]))
			}
		}
	}
}

func (h *Hub) appearLocked(observer, peer *Node) domain.LifecycleEvent {
	handle, known := observer.handles[peer.id]
	if known && !h.freshHandles {
		return domain.NewReconnected(handle)
	}
	if known {
		delete(observer.peers, handle)
	}
	handle = domain.NewRemoteHandle("mem://" + peer.id)
	observer.handles[peer.id] = handle
	observer.peers[handle] = peer.id
	h.log.Debug("Handle minted", "observer", observer.id, "peer", peer.id, "handle", handle)
	return domain.NewDiscovered(handle)
}

var _ contract.Transport = (*Node)(nil)

// Node is one participant of the hub, seen by the session as its transport.
type Node struct {
	hub          *Hub
	id           string
	online       bool
	tag          string
	announcedTag string
	messenger    contract.Messenger
	latency      time.Duration
	failures     map[string]error

	lifecycle *mailbox.Mailbox[domain.LifecycleEvent]
	status    *mailbox.Mailbox[bool]

	// Per peer node id, the handle minted for this observer.
	handles map[string]domain.RemoteHandle
	peers   map[domain.RemoteHandle]string
	visible map[string]bool
}

func (n *Node) ID() string { return n.id }

func (n *Node) Announce(tag string, messenger contract.Messenger) error {
	n.hub.mu.Lock()
	defer n.hub.mu.Unlock()
	n.announcedTag = tag
	n.messenger = messenger
	n.hub.reconcileLocked()
	return nil
}

// Discover starts reporting the peers announced under tag.
// Reporting stops when ctx is done.
func (n *Node) Discover(ctx context.Context, tag string) (<-chan domain.LifecycleEvent, error) {
	n.hub.mu.Lock()
	defer n.hub.mu.Unlock()
	if n.tag != "" {
		return nil, fmt.Errorf("%w: %s", errors.ErrAlreadyDiscovering, n.tag)
	}
	n.tag = tag
	context.AfterFunc(ctx, n.stopDiscovery)
	n.hub.reconcileLocked()
	return n.lifecycle.Out(), nil
}

func (n *Node) stopDiscovery() {
	n.hub.mu.Lock()
	defer n.hub.mu.Unlock()
	n.tag = ""
	n.visible = make(map[string]bool)
	n.lifecycle.Drop()
}

// Connectivity reports the changes of network the node did not ask for,
// see LoseNetwork and RestoreNetwork.
func (n *Node) Connectivity() <-chan bool {
	return n.status.Out()
}

func (n *Node) GoOnline(_ context.Context) error {
	n.setOnline(true)
	return nil
}

func (n *Node) GoOffline(_ context.Context) error {
	n.setOnline(false)
	return nil
}

// LoseNetwork simulates the loss of the network under the node's feet.
func (n *Node) LoseNetwork() {
	n.setOnline(false)
	n.status.Push(false)
}

func (n *Node) RestoreNetwork() {
	n.setOnline(true)
	n.status.Push(true)
}

func (n *Node) setOnline(online bool) {
	n.hub.mu.Lock()
	defer n.hub.mu.Unlock()
	if n.online == online {
		return
	}
	n.online = online
	if !online {
		// The observer forgets silently: its own presence is cleared on its side.
		n.visible = make(map[string]bool)
		n.lifecycle.Drop()
	}
	n.hub.reconcileLocked()
}

// FailInvocations makes every call of method on this node fail with err.
// A nil err restores the method.
func (n *Node) FailInvocations(method string, err error) {
	n.hub.mu.Lock()
	defer n.hub.mu.Unlock()
	if err == nil {
		delete(n.failures, method)
		return
	}
	n.failures[method] = err
}

// SetLatency delays every call served by this node.
func (n *Node) SetLatency(d time.Duration) {
	n.hub.mu.Lock()
	defer n.hub.mu.Unlock()
	n.latency = d
}

func (n *Node) InvokeAsync(ctx context.Context, handle domain.RemoteHandle, method string, args ...string) <-chan domain.Result {
	results := make(chan domain.Result, 1)
	go func() {
		defer close(results)
		value, err := n.invoke(ctx, handle, method, args)
		results <- domain.Result{Value: value, Err: err}
	}()
	return results
}

func (n *Node) invoke(ctx context.Context, handle domain.RemoteHandle, method string, args []string) (string, error) {
	target, latency, err := n.route(handle, method)
	if err != nil {
		return "", err
	}
	if latency > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(latency):
		}
	}

	switch method {
	case contract.MethodGetName:
		return target.GetName(), nil
	case contract.MethodReceiveMessage:
		if len(args) != 2 {
			return "", fmt.Errorf("%s expects 2 arguments, got %d", method, len(args))
		}
		target.ReceiveMessage(args[0], args[1])
		return "", nil
	default:
		return "", fmt.Errorf("%w: %s", errors.ErrUnknownMethod, method)
	}
}

// route resolves the messenger behind handle as long as both ends can talk.
func (n *Node) route(handle domain.RemoteHandle, method string) (contract.Messenger, time.Duration, error) {
	n.hub.mu.Lock()
	defer n.hub.mu.Unlock()
	if !n.online {
		return nil, 0, errors.ErrOffline
	}
	peerID, ok := n.peers[handle]
	if !ok {
		return nil, 0, fmt.Errorf("%w: %s", errors.ErrUnknownHandle, handle)
	}
	peer := n.hub.nodes[peerID]
	if !n.hub.reachableLocked(n, peer) {
		return nil, 0, fmt.Errorf("%w: %s unreachable", errors.ErrOffline, peerID)
	}
	if peer.messenger == nil {
		return nil, 0, fmt.Errorf("%w: %s", errors.ErrNotAnnounced, peerID)
	}
	if err, failing := peer.failures[method]; failing {
		return nil, 0, err
	}
	return peer.messenger, peer.latency, nil
}
