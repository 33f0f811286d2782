// Package domain contains core concepts of the messenger.
// Handles, peer entries and lifecycle events live here.
// No runtime, network, or UI logic should be added here.
package domain

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// RemoteHandle is an opaque reference to a service exposed by a peer.
// Handles are minted by the transport and compared by identity only:
// two handles pointing at the same endpoint are different if they were
// minted for different connection attempts.
type RemoteHandle struct {
	id       uuid.UUID
	endpoint string
}

func NewRemoteHandle(endpoint string) RemoteHandle {
	return RemoteHandle{id: uuid.New(), endpoint: endpoint}
}

func (h RemoteHandle) ID() uuid.UUID { return h.id }

// Endpoint is informational. It must never be used to compare handles.
func (h RemoteHandle) Endpoint() string { return h.endpoint }

func (h RemoteHandle) IsZero() bool { return h.id == uuid.Nil }

func (h RemoteHandle) String() string {
	if h.endpoint == "" {
		return h.id.String()
	}
	return fmt.Sprintf("%s@%s", h.id, h.endpoint)
}

// LogValue keeps handles readable in structured logs.
func (h RemoteHandle) LogValue() slog.Value {
	return slog.StringValue(h.String())
}

// Result is the single outcome of an asynchronous remote invocation.
type Result struct {
	Value string
	Err   error
}
