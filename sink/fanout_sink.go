package sink

import (
	"messenger/contract"
	"messenger/domain/event"
	"sync"
	"time"

	"github.com/google/uuid"
)

var _ contract.SessionEventSink = (*FanoutSink)(nil)

// FanoutSink turns session notifications into events queued for the fanout worker.
// Calls block only while the queue is full, and never after Close.
type FanoutSink struct {
	events    chan event.SessionEvent
	done      chan struct{}
	closeOnce sync.Once
	now       func() time.Time
}

func NewFanoutSink(bufferSize int) *FanoutSink {
	return &FanoutSink{
		events: make(chan event.SessionEvent, bufferSize),
		done:   make(chan struct{}),
		now:    time.Now,
	}
}

// Events is consumed by workers.EventFanout.
func (s *FanoutSink) Events() <-chan event.SessionEvent {
	return s.events
}

func (s *FanoutSink) PeerJoined(name string) {
	s.push(event.PeerJoined{Name: name, At: s.now()})
}

func (s *FanoutSink) PeerLeft(name string) {
	s.push(event.PeerLeft{Name: name, At: s.now()})
}

func (s *FanoutSink) Message(sender, text string) {
	s.push(event.MessagePrinted{ID: uuid.New(), Sender: sender, Text: text, At: s.now()})
}

// Close drops every later notification.
func (s *FanoutSink) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *FanoutSink) push(e event.SessionEvent) {
	select {
	case <-s.done:
		return
	default:
	}
	select {
	case s.events <- e:
	case <-s.done:
	}
}
