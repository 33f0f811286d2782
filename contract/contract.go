//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"messenger/domain"
	"messenger/domain/event"
	"reflect"
)

// Remote methods exposed by every messenger.
const (
	MethodGetName        = "getName"
	MethodReceiveMessage = "receiveMessage"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// SessionEventSink is the only crossing point into the rendering layer.
// Implementations must not assume which goroutine calls them.
type SessionEventSink interface {
	PeerJoined(name string)
	PeerLeft(name string)
	Message(sender, text string)
}

// EventSink consumes rendered session events behind the fanout.
type EventSink interface {
	Consume(ctx context.Context, e event.SessionEvent) error
}

// Messenger is the callable surface the local peer announces to the network.
type Messenger interface {
	GetName() string
	ReceiveMessage(name, text string)
}

// NameResolver asks a peer for its display name.
// The returned channel yields exactly one result and is then closed.
type NameResolver interface {
	Resolve(ctx context.Context, handle domain.RemoteHandle) <-chan domain.Result
}

type Discoverer interface {
	Discover(ctx context.Context, tag string) (<-chan domain.LifecycleEvent, error)
}

// Invoker issues an asynchronous remote method call.
// The returned channel yields exactly one result and is then closed.
type Invoker interface {
	InvokeAsync(ctx context.Context, handle domain.RemoteHandle, method string, args ...string) <-chan domain.Result
}

type Announcer interface {
	Announce(tag string, messenger Messenger) error
}

type Network interface {
	Connectivity() <-chan bool
	GoOnline(ctx context.Context) error
	GoOffline(ctx context.Context) error
}

// Transport is the peer-discovery and remote-invocation substrate.
type Transport interface {
	Discoverer
	Invoker
	Announcer
	Network
}

// Presence receives lifecycle inputs. Calls only enqueue: they return
// once the input is accepted by the serialized presence loop.
type Presence interface {
	Discovered(ctx context.Context, handle domain.RemoteHandle) error
	Disconnected(ctx context.Context, handle domain.RemoteHandle) error
	Reconnected(ctx context.Context, handle domain.RemoteHandle) error
	LocalWentOffline(ctx context.Context) error
}

// IRegistry is the set of peers currently part of the conversation.
type IRegistry interface {
	Add(entry domain.PeerEntry) bool
	Get(handle domain.RemoteHandle) (domain.PeerEntry, bool)
	Activate(handle domain.RemoteHandle, name string) bool
	Remove(handle domain.RemoteHandle) (domain.PeerEntry, bool)
	Clear() []domain.PeerEntry
	Snapshot() []domain.PeerEntry
	ActivePeers() []domain.PeerEntry
	Len() int
}
