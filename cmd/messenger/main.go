package main

import (
	"context"
	"errors"
	"fmt"
	"messenger/contract"
	"messenger/domain"
	"messenger/grpc"
	"messenger/internal"
	"messenger/observability"
	"messenger/runtime"
	"messenger/runtime/workers"
	"messenger/sink"
	"messenger/ui"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Messenger terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires the session around the gRPC transport and drives it from the terminal.
// Every deferred cleanup runs before the exit code is handed back to main.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return exitConfig, err
	}
	logger := logs.GetLoggerFromString(config.LogLevel)

	// 2. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// 3. Local identity, asked on the terminal when not configured
	lines := ui.ReadLines(os.Stdin)
	identity, err := askIdentity(ctx, config.LocalName, lines)
	if err != nil {
		return exitConfig, err
	}

	// 4. Transport, sinks and session
	transport := grpc.NewTransport(logger, grpc.Options{
		ListenAddr: config.ListenAddr,
		Peers:      config.PeerList(),
	})
	defer func() { _ = transport.Close() }()

	stats := observability.NewSessionStats()
	supervisor := workers.NewSupervisor(logger, config.RestartInterval)
	sessionSink := sink.NewFanoutSink(config.BufferSize)
	defer sessionSink.Close()
	transcript := sink.NewTranscript(config.TranscriptSize)
	console := sink.NewConsoleSink(os.Stdout, config.Colours, identity.Name)

	session := runtime.NewSession(logger, runtime.SessionConfig{
		Tag:              config.ServiceTag,
		ResolveTimeout:   config.ResolveTimeout,
		DeliveryTimeout:  config.DeliveryTimeout,
		BufferSize:       config.BufferSize,
		StrictInvariants: config.StrictInvariants,
	}, transport, sessionSink, supervisor, stats, identity)

	supervisor.Add(
		workers.NewEventFanout(logger, sessionSink.Events(), []contract.EventSink{console, transcript}, config.SinkTimeout),
		workers.NewHeartbeatWorker(logger, stats, session.Registry(), config.MetricInterval),
	)
	if config.DebugAddr != "" {
		supervisor.Add(internal.NewDebugServer(logger, config.DebugAddr, map[string]internal.StatsProvider{
			"stats": func() any { return session.Stats() },
			"peers": func() any { return peerRows(session.Peers()) },
		}))
	}

	// 5. Run the session and the terminal together
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return session.Start(gCtx)
	})
	g.Go(func() error {
		// Leaving the terminal ends the session.
		defer cancel()
		return ui.NewConsole(logger, session, transcript, os.Stdout).Run(gCtx, lines)
	})

	err = g.Wait()
	session.Stop()
	if err != nil && !errors.Is(err, context.Canceled) {
		return exitRuntime, err
	}
	logger.Info("Messenger stopped cleanly")
	return exitOK, nil
}

func askIdentity(ctx context.Context, name string, lines <-chan string) (domain.LocalIdentity, error) {
	if name != "" {
		return domain.NewLocalIdentity(name)
	}
	for {
		fmt.Print("Your name: ")
		select {
		case <-ctx.Done():
			return domain.LocalIdentity{}, ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return domain.LocalIdentity{}, errors.New("no name given")
			}
			identity, err := domain.NewLocalIdentity(line)
			if err == nil {
				return identity, nil
			}
			fmt.Println(err)
		}
	}
}

func peerRows(peers []domain.PeerEntry) []map[string]string {
	return lo.Map(peers, func(p domain.PeerEntry, _ int) map[string]string {
		name, _ := p.Name()
		return map[string]string{
			"handle": p.Handle.String(),
			"state":  p.State.String(),
			"name":   name,
		}
	})
}
