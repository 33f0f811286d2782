package workers

import (
	"context"
	"log/slog"
	"messenger/observability"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

// PeerCounter reports how many peers are currently tracked.
type PeerCounter interface {
	Len() int
}

// HeartbeatWorker periodically logs the health of the local peer:
// process usage next to the session counters.
type HeartbeatWorker struct {
	log      *slog.Logger
	stats    *observability.SessionStats
	peers    PeerCounter
	interval time.Duration
}

func NewHeartbeatWorker(log *slog.Logger, stats *observability.SessionStats,
	peers PeerCounter, interval time.Duration) *HeartbeatWorker {
	return &HeartbeatWorker{log: log, stats: stats, peers: peers, interval: interval}
}

func (w *HeartbeatWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			snapshot := w.stats.GetLatest()
			attrs := []any{
				"peers", w.peers.Len(),
				"joined", snapshot.PeersJoined,
				"left", snapshot.PeersLeft,
				"sent", snapshot.MessagesSent,
				"received", snapshot.MessagesReceived,
				"deliveries_failed", snapshot.DeliveriesFailed,
				"uptime", snapshot.Uptime,
			}
			rss, cpu, err := getSelfStats(p)
			if err != nil {
				w.log.Debug("Failed to collect self stats", "err", err)
			} else {
				attrs = append(attrs, "rss_bytes", rss, "cpu_percent", cpu)
			}
			w.log.Info("Heartbeat", attrs...)
		}
	}
}

// getSelfStats retrieves memory and CPU usage of the given process.
func getSelfStats(p *process.Process) (uint64, float64, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, err
	}
	return memInfo.RSS, cpuPercent, nil
}
