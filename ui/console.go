// Package ui is the terminal front-end of the messenger.
// It turns typed lines into session calls and never touches the registry itself.
package ui

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"messenger/domain"
	"messenger/observability"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
)

// ErrQuit is returned by Handle when the user asked to leave.
var ErrQuit = errors.New("quit requested")

// Session is what the console drives.
type Session interface {
	SendMessage(ctx context.Context, text string) (int, error)
	IsOnline() bool
	GoOnline(ctx context.Context) error
	GoOffline(ctx context.Context) error
	Toggle(ctx context.Context) error
	Peers() []domain.PeerEntry
	Stats() observability.Snapshot
}

type History interface {
	Lines() []string
}

type Console struct {
	log     *slog.Logger
	session Session
	history History
	out     io.Writer
}

func NewConsole(log *slog.Logger, session Session, history History, out io.Writer) *Console {
	return &Console{log: log, session: session, history: history, out: out}
}

// ReadLines feeds the lines of r until EOF. The reader cannot be interrupted,
// so the goroutine lives as long as r stays open.
func ReadLines(r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}

// Run handles lines until they are exhausted, ctx is done or the user quits.
func (c *Console) Run(ctx context.Context, lines <-chan string) error {
	c.println("Type a message, or /help.")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := c.Handle(ctx, line); err != nil {
				if errors.Is(err, ErrQuit) {
					return nil
				}
				c.log.Debug("Command failed", "line", line, "error", err)
				c.println(err.Error())
			}
		}
	}
}

// Handle runs one command, or sends the line to the conversation.
func (c *Console) Handle(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if !strings.HasPrefix(line, "/") {
		_, err := c.session.SendMessage(ctx, line)
		return err
	}

	switch strings.ToLower(line) {
	case "/quit", "/exit":
		return ErrQuit
	case "/online":
		return c.session.GoOnline(ctx)
	case "/offline":
		return c.session.GoOffline(ctx)
	case "/toggle":
		return c.session.Toggle(ctx)
	case "/status":
		c.status()
	case "/who":
		c.who()
	case "/history":
		for _, l := range c.history.Lines() {
			c.println(l)
		}
	case "/help":
		c.println("/who /status /history /online /offline /toggle /quit")
	default:
		return fmt.Errorf("unknown command %s, try /help", line)
	}
	return nil
}

func (c *Console) status() {
	state := "offline"
	if c.session.IsOnline() {
		state = "online"
	}
	stats := c.session.Stats()
	table := newTable(c.out, "Status", "Value")
	table.AppendBulk([][]string{
		{"network", state},
		{"uptime", stats.Uptime.Round(time.Second).String()},
		{"peers joined", fmt.Sprint(stats.PeersJoined)},
		{"peers left", fmt.Sprint(stats.PeersLeft)},
		{"messages sent", fmt.Sprint(stats.MessagesSent)},
		{"messages received", fmt.Sprint(stats.MessagesReceived)},
		{"deliveries failed", fmt.Sprint(stats.DeliveriesFailed)},
	})
	table.Render()
}

func (c *Console) who() {
	peers := c.session.Peers()
	if len(peers) == 0 {
		c.println("Nobody else is here.")
		return
	}
	table := newTable(c.out, "Name", "State", "Endpoint")
	table.AppendBulk(lo.Map(peers, func(p domain.PeerEntry, _ int) []string {
		name, ok := p.Name()
		if !ok {
			name = "?"
		}
		return []string{name, p.State.String(), p.Handle.Endpoint()}
	}))
	table.Render()
}

func newTable(out io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(out)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}

func (c *Console) println(s string) {
	_, _ = fmt.Fprintln(c.out, s)
}
