package sink

import (
	"context"
	"fmt"
	"io"
	"messenger/contract"
	"messenger/domain/event"
	"sync"

	"github.com/gookit/color"
)

var _ contract.EventSink = (*ConsoleSink)(nil)

// ConsoleSink prints conversation lines to a terminal.
type ConsoleSink struct {
	mu      sync.Mutex
	out     io.Writer
	colours bool
	self    string
}

// NewConsoleSink highlights lines when colours is set.
// Lines authored by self are rendered differently from the others.
func NewConsoleSink(out io.Writer, colours bool, self string) *ConsoleSink {
	return &ConsoleSink{out: out, colours: colours, self: self}
}

func (c *ConsoleSink) Consume(_ context.Context, e event.SessionEvent) error {
	line := c.render(e)
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintln(c.out, line)
	return err
}

func (c *ConsoleSink) render(e event.SessionEvent) string {
	if !c.colours {
		return e.Line()
	}
	switch evt := e.(type) {
	case event.PeerJoined:
		return color.New(color.FgGreen).Render(evt.Line())
	case event.PeerLeft:
		return color.New(color.FgYellow).Render(evt.Line())
	case event.MessagePrinted:
		style := color.New(color.FgCyan, color.OpBold)
		if evt.Sender == c.self {
			style = color.New(color.FgMagenta, color.OpBold)
		}
		return fmt.Sprintf("%s: %s", style.Render(evt.Sender), evt.Text)
	default:
		return e.Line()
	}
}
