package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// E2E_MESSENGER_ADDR is the address of a running messenger. Scenarios are skipped without it.
	MessengerAddr string `envconfig:"E2E_MESSENGER_ADDR"`
	ServiceTag    string `envconfig:"E2E_SERVICE_TAG" default:"MESSENGER"`
	// E2E_DEBUG_JSON allows dumping full gRPC request/response bodies as JSON
	DebugJSON bool `envconfig:"E2E_DEBUG_JSON" default:"false"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
