package internal

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

type StatsProvider func() any

// DebugServer exposes the live session state as JSON for local inspection.
type DebugServer struct {
	log    *slog.Logger
	server *http.Server
}

// NewDebugServer serves every provider under /inspect, keyed by its name.
func NewDebugServer(log *slog.Logger, addr string, providers map[string]StatsProvider) *DebugServer {
	mux := http.NewServeMux()
	mux.HandleFunc("/inspect", func(w http.ResponseWriter, _ *http.Request) {
		data := make(map[string]any, len(providers))
		for name, provider := range providers {
			data[name] = provider()
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Debug("Failed to encode inspection", "error", err)
		}
	})
	return &DebugServer{
		log:    log,
		server: &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second},
	}
}

// Run serves until ctx is done.
func (d *DebugServer) Run(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		d.log.Info("Debug inspector available", "url", "http://"+d.server.Addr+"/inspect")
		if err := d.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = d.server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err, ok := <-errChan:
		if !ok {
			return nil
		}
		return err
	}
}

func (d *DebugServer) Handler() http.Handler {
	return d.server.Handler
}
