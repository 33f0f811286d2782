package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSessionEvent_Lines(t *testing.T) {
	req := require.New(t)
	now := time.Now()

	req.Equal("Bob has joined the conversation.", PeerJoined{Name: "Bob", At: now}.Line())
	req.Equal("Bob has left the conversation.", PeerLeft{Name: "Bob", At: now}.Line())
	req.Equal("Alice: hi there", MessagePrinted{Sender: "Alice", Text: "hi there", At: now}.Line())
	req.Equal(now, MessagePrinted{At: now}.OccurredAt())
}
