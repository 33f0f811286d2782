package sink

import (
	"context"
	"messenger/contract"
	"messenger/domain/event"
	"sync"
)

var _ contract.EventSink = (*Transcript)(nil)

// Transcript holds the last rendered lines of the conversation in memory.
// Nothing is persisted: it disappears with the session.
type Transcript struct {
	mu       sync.RWMutex
	capacity int
	lines    []string
}

func NewTranscript(capacity int) *Transcript {
	return &Transcript{capacity: capacity}
}

func (t *Transcript) Consume(_ context.Context, e event.SessionEvent) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, e.Line())
	if t.capacity > 0 && len(t.lines) > t.capacity {
		t.lines = t.lines[len(t.lines)-t.capacity:]
	}
	return nil
}

// Lines returns a copy, oldest first.
func (t *Transcript) Lines() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]string(nil), t.lines...)
}
