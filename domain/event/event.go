// Package event holds what the session shows to the rendering layer.
// Each event knows how to print itself as a conversation line.
package event

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type SessionEvent interface {
	OccurredAt() time.Time
	Line() string
}

type PeerJoined struct {
	Name string
	At   time.Time
}

func (e PeerJoined) OccurredAt() time.Time { return e.At }

func (e PeerJoined) Line() string {
	return fmt.Sprintf("%s has joined the conversation.", e.Name)
}

type PeerLeft struct {
	Name string
	At   time.Time
}

func (e PeerLeft) OccurredAt() time.Time { return e.At }

func (e PeerLeft) Line() string {
	return fmt.Sprintf("%s has left the conversation.", e.Name)
}

// MessagePrinted is a conversation line, authored locally or received from a peer.
type MessagePrinted struct {
	ID     uuid.UUID
	Sender string
	Text   string
	At     time.Time
}

func (e MessagePrinted) OccurredAt() time.Time { return e.At }

func (e MessagePrinted) Line() string {
	return fmt.Sprintf("%s: %s", e.Sender, e.Text)
}
