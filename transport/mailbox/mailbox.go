// Package mailbox holds the unbounded queues transports use to report events
// without ever blocking their own callers.
package mailbox

import "sync"

// Mailbox is an unbounded FIFO drained into Out by a goroutine that
// only lives while items are waiting.
type Mailbox[T any] struct {
	mu      sync.Mutex
	items   []T
	pumping bool
	out     chan T
	done    <-chan struct{}
	// Closed and replaced by every Drop.
	reset chan struct{}
}

// New builds a mailbox that gives up on its pending items once done is closed.
func New[T any](done <-chan struct{}) *Mailbox[T] {
	return &Mailbox[T]{out: make(chan T), done: done, reset: make(chan struct{})}
}

func (m *Mailbox[T]) Out() <-chan T {
	return m.out
}

func (m *Mailbox[T]) Push(v T) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, v)
	if m.pumping {
		return
	}
	m.pumping = true
	go m.pump()
}

// Drop forgets every item not yet handed to the reader,
// including the one the pump is currently offering.
func (m *Mailbox[T]) Drop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = nil
	close(m.reset)
	m.reset = make(chan struct{})
}

func (m *Mailbox[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

func (m *Mailbox[T]) pump() {
	for {
		m.mu.Lock()
		if len(m.items) == 0 {
			m.pumping = false
			m.mu.Unlock()
			return
		}
		v := m.items[0]
		reset := m.reset
		m.mu.Unlock()

		select {
		case m.out <- v:
			m.mu.Lock()
			if reset == m.reset {
				m.items = m.items[1:]
			}
			m.mu.Unlock()
		case <-reset:
		case <-m.done:
			m.mu.Lock()
			m.items = nil
			m.pumping = false
			m.mu.Unlock()
			return
		}
	}
}
