// Command tester plays a scripted conversation between in-process peers
// and prints what each of them saw.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"messenger/contract"
	"messenger/domain"
	"messenger/observability"
	"messenger/runtime"
	"messenger/runtime/workers"
	"messenger/sink"
	"messenger/transport/memory"
	"os"
	"sync"
	"time"

	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

type participant struct {
	node       *memory.Node
	session    *runtime.Session
	sink       *sink.FanoutSink
	transcript *sink.Transcript
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Tester terminated with error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	config, err := LoadConfig()
	if err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if len(config.Names) < 2 {
		return exitConfig, fmt.Errorf("at least two names are needed, got %d", len(config.Names))
	}
	logger := logs.GetLoggerFromString(config.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := memory.NewHub(logger)
	defer hub.Close()

	participants := make([]*participant, 0, len(config.Names))
	var wg sync.WaitGroup
	for _, name := range config.Names {
		p, err := newParticipant(logger, hub, name, config)
		if err != nil {
			return exitConfig, err
		}
		participants = append(participants, p)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := p.session.Start(ctx); err != nil {
				logger.Error("Session failed", "name", name, "error", err)
			}
		}()
	}

	if err := play(ctx, hub, participants, config); err != nil {
		return exitRuntime, err
	}

	for _, p := range participants {
		p.session.Stop()
	}
	wg.Wait()
	for _, p := range participants {
		p.sink.Close()
	}

	printTranscripts(participants, config.Colours)
	return exitOK, nil
}

func newParticipant(logger *slog.Logger, hub *memory.Hub, name string, config Config) (*participant, error) {
	identity, err := domain.NewLocalIdentity(name)
	if err != nil {
		return nil, err
	}
	node := hub.Join(name)
	node.SetLatency(config.Latency)

	sessionSink := sink.NewFanoutSink(64)
	transcript := sink.NewTranscript(0)
	supervisor := workers.NewSupervisor(logger, 100*time.Millisecond)
	supervisor.Add(workers.NewEventFanout(logger, sessionSink.Events(), []contract.EventSink{transcript}, time.Second))

	session := runtime.NewSession(logger, runtime.SessionConfig{
		Tag:              "MESSENGER",
		ResolveTimeout:   time.Second,
		DeliveryTimeout:  time.Second,
		BufferSize:       64,
		StrictInvariants: true,
	}, node, sessionSink, supervisor, observability.NewSessionStats(), identity)

	return &participant{node: node, session: session, sink: sessionSink, transcript: transcript}, nil
}

// play runs the script: everybody talks, the last one drops out and comes back,
// then the first two lose sight of each other for a while.
func play(ctx context.Context, hub *memory.Hub, participants []*participant, config Config) error {
	pause := func() { time.Sleep(config.StepDelay) }
	first, second, last := participants[0], participants[1], participants[len(participants)-1]
	pause()

	for i := 0; i < config.Messages; i++ {
		for _, p := range participants {
			text := fmt.Sprintf("message %d from %s", i+1, p.session.Identity().Name)
			if _, err := p.session.SendMessage(ctx, text); err != nil {
				return err
			}
		}
	}
	pause()

	if err := last.session.GoOffline(ctx); err != nil {
		return err
	}
	pause()
	if _, err := first.session.SendMessage(ctx, "is anybody missing?"); err != nil {
		return err
	}
	if err := last.session.GoOnline(ctx); err != nil {
		return err
	}
	pause()

	hub.Partition(first.node, second.node)
	pause()
	hub.Heal(first.node, second.node)
	pause()

	_, err := last.session.SendMessage(ctx, "bye")
	pause()
	return err
}

func printTranscripts(participants []*participant, colours bool) {
	for _, p := range participants {
		header := fmt.Sprintf("  ====== %s ======", p.session.Identity().Name)
		if colours {
			header = color.New(color.BgBlack, color.FgGreen).Render(header)
		}
		fmt.Println(header)

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"#", "Line"})
		table.SetAutoWrapText(false)
		table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
		table.SetAlignment(tablewriter.ALIGN_LEFT)
		table.SetBorder(false)
		for i, line := range p.transcript.Lines() {
			table.Append([]string{fmt.Sprint(i + 1), line})
		}
		table.Render()
	}
}
