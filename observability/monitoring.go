package observability

import (
	"sync/atomic"
	"time"
)

// SessionStats counts what happened during a session.
// All counters are safe for concurrent use.
type SessionStats struct {
	startedAt          time.Time
	peersJoined        uint64
	peersLeft          uint64
	resolutionsFailed  uint64
	discardedResults   uint64
	deliveriesAttempt  uint64
	deliveriesFailed   uint64
	messagesSent       uint64
	messagesReceived   uint64
	offlineTransitions uint64
}

// Snapshot is a point-in-time copy of SessionStats.
type Snapshot struct {
	Uptime             time.Duration `json:"uptime"`
	PeersJoined        uint64        `json:"peers_joined"`
	PeersLeft          uint64        `json:"peers_left"`
	ResolutionsFailed  uint64        `json:"resolutions_failed"`
	DiscardedResults   uint64        `json:"discarded_results"`
	DeliveriesAttempt  uint64        `json:"deliveries_attempted"`
	DeliveriesFailed   uint64        `json:"deliveries_failed"`
	MessagesSent       uint64        `json:"messages_sent"`
	MessagesReceived   uint64        `json:"messages_received"`
	OfflineTransitions uint64        `json:"offline_transitions"`
}

func NewSessionStats() *SessionStats {
	return &SessionStats{startedAt: time.Now()}
}

func (s *SessionStats) IncrPeersJoined()        { atomic.AddUint64(&s.peersJoined, 1) }
func (s *SessionStats) IncrPeersLeft()          { atomic.AddUint64(&s.peersLeft, 1) }
func (s *SessionStats) IncrResolutionsFailed()  { atomic.AddUint64(&s.resolutionsFailed, 1) }
func (s *SessionStats) IncrDiscardedResults()   { atomic.AddUint64(&s.discardedResults, 1) }
func (s *SessionStats) IncrDeliveriesFailed()   { atomic.AddUint64(&s.deliveriesFailed, 1) }
func (s *SessionStats) IncrMessagesSent()       { atomic.AddUint64(&s.messagesSent, 1) }
func (s *SessionStats) IncrMessagesReceived()   { atomic.AddUint64(&s.messagesReceived, 1) }
func (s *SessionStats) IncrOfflineTransitions() { atomic.AddUint64(&s.offlineTransitions, 1) }

func (s *SessionStats) AddDeliveriesAttempt(n int) {
	atomic.AddUint64(&s.deliveriesAttempt, uint64(n))
}

func (s *SessionStats) GetLatest() Snapshot {
	return Snapshot{
		Uptime:             time.Since(s.startedAt).Truncate(time.Second),
		PeersJoined:        atomic.LoadUint64(&s.peersJoined),
		PeersLeft:          atomic.LoadUint64(&s.peersLeft),
		ResolutionsFailed:  atomic.LoadUint64(&s.resolutionsFailed),
		DiscardedResults:   atomic.LoadUint64(&s.discardedResults),
		DeliveriesAttempt:  atomic.LoadUint64(&s.deliveriesAttempt),
		DeliveriesFailed:   atomic.LoadUint64(&s.deliveriesFailed),
		MessagesSent:       atomic.LoadUint64(&s.messagesSent),
		MessagesReceived:   atomic.LoadUint64(&s.messagesReceived),
		OfflineTransitions: atomic.LoadUint64(&s.offlineTransitions),
	}
}
