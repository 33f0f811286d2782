package internal

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

type Config struct {
	LocalName        string        `env:"LOCAL_NAME"`
	ServiceTag       string        `env:"SERVICE_TAG,default=MESSENGER" validate:"required,alphanum"`
	ListenAddr       string        `env:"LISTEN_ADDR,default=127.0.0.1:7070" validate:"required,hostname_port"`
	Peers            string        `env:"PEERS"`
	LogLevel         string        `env:"LOG_LEVEL,default=INFO" validate:"oneof=DEBUG INFO WARN ERROR"`
	ResolveTimeout   time.Duration `env:"RESOLVE_TIMEOUT,default=5s" validate:"gt=0"`
	DeliveryTimeout  time.Duration `env:"DELIVERY_TIMEOUT,default=5s" validate:"gt=0"`
	SinkTimeout      time.Duration `env:"SINK_TIMEOUT,default=500ms" validate:"gt=0"`
	BufferSize       int           `env:"BUFFER_SIZE,default=256" validate:"gt=0"`
	RestartInterval  time.Duration `env:"RESTART_INTERVAL,default=1s" validate:"gt=0"`
	MetricInterval   time.Duration `env:"METRIC_INTERVAL,default=1m" validate:"gt=0"`
	TranscriptSize   int           `env:"TRANSCRIPT_SIZE,default=500" validate:"gte=0"`
	StrictInvariants bool          `env:"STRICT_INVARIANTS,default=false"`
	Colours          bool          `env:"COLOURS,default=true"`
	DebugAddr        string        `env:"DEBUG_ADDR" validate:"omitempty,hostname_port"`
}

// Validate checks the decoded values and the peer list.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	for _, peer := range c.PeerList() {
		if err := validator.New().Var(peer, "hostname_port"); err != nil {
			return fmt.Errorf("invalid peer %q: %w", peer, err)
		}
	}
	return nil
}

// PeerList splits PEERS on commas, ignoring blanks and duplicates.
func (c Config) PeerList() []string {
	peers := lo.Map(strings.Split(c.Peers, ","), func(p string, _ int) string {
		return strings.TrimSpace(p)
	})
	return lo.Uniq(lo.Compact(peers))
}
