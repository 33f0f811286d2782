package internal

import (
	"testing"
	"time"

	"github.com/Netflix/go-env"
	"github.com/stretchr/testify/require"
)

func TestConfig_Defaults(t *testing.T) {
	req := require.New(t)
	var config Config

	_, err := env.UnmarshalFromEnviron(&config)

	req.NoError(err)
	req.Equal("MESSENGER", config.ServiceTag)
	req.Equal(5*time.Second, config.DeliveryTimeout)
	req.Equal(256, config.BufferSize)
	req.True(config.Colours)
	req.NoError(config.Validate())
}

func TestConfig_From_Environment(t *testing.T) {
	req := require.New(t)
	t.Setenv("LOCAL_NAME", "Alice")
	t.Setenv("PEERS", " 10.0.0.2:7070, ,10.0.0.3:7070,10.0.0.2:7070")
	t.Setenv("STRICT_INVARIANTS", "true")
	var config Config

	_, err := env.UnmarshalFromEnviron(&config)

	req.NoError(err)
	req.Equal("Alice", config.LocalName)
	req.True(config.StrictInvariants)
	req.Equal([]string{"10.0.0.2:7070", "10.0.0.3:7070"}, config.PeerList())
	req.NoError(config.Validate())
}

func TestConfig_Validate(t *testing.T) {
	req := require.New(t)
	var config Config
	_, err := env.UnmarshalFromEnviron(&config)
	req.NoError(err)

	invalidPeer := config
	invalidPeer.Peers = "not a peer"
	req.Error(invalidPeer.Validate())

	invalidLevel := config
	invalidLevel.LogLevel = "VERBOSE"
	req.Error(invalidLevel.Validate())

	invalidBuffer := config
	invalidBuffer.BufferSize = 0
	req.Error(invalidBuffer.Validate())
}
