package main

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Names     []string      `envconfig:"TESTER_NAMES" default:"Alice,Bob,Carol"`
	Messages  int           `envconfig:"TESTER_MESSAGES" default:"2"`
	Latency   time.Duration `envconfig:"TESTER_LATENCY" default:"20ms"`
	StepDelay time.Duration `envconfig:"TESTER_STEP_DELAY" default:"300ms"`
	LogLevel  string        `envconfig:"LOG_LEVEL" default:"WARN"`
	// TESTER_COLOURS enables colorized output of the transcripts
	Colours bool `envconfig:"TESTER_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
