package task

import (
	"fmt"

	"github.com/1ureka/webrtc-task/internal/chunk"
	"github.com/1ureka/webrtc-task/internal/protocol"
)

const (
	DefaultMaxChunkLength = 262144
	DefaultMaxPacketSize  = 16384
)

// Config holds the local task parameters that are negotiated with the peer.
type Config struct {
	Version Version
	// Handover requests moving the signaling traffic to a dedicated data
	// channel. The peer may refuse, which disables it.
	Handover bool
	// MaxChunkLength caps the chunk size used on the signaling channel.
	MaxChunkLength int
	// MaxPacketSize is announced by the legacy variant only. 0 means no
	// preference.
	MaxPacketSize uint32
	// Exclude lists data channel ids the application uses itself.
	Exclude []uint16
}

// DefaultConfig returns the configuration of a current, handover-enabled task.
func DefaultConfig() Config {
	return Config{
		Version:        V1,
		Handover:       true,
		MaxChunkLength: DefaultMaxChunkLength,
		MaxPacketSize:  DefaultMaxPacketSize,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Version != V0 && c.Version != V1 {
		return fmt.Errorf("unknown task version %d", int(c.Version))
	}
	if c.MaxChunkLength <= chunk.HeaderLength {
		return fmt.Errorf("max chunk length must be greater than %d, got %d", chunk.HeaderLength, c.MaxChunkLength)
	}
	for _, id := range c.Exclude {
		if id > protocol.MaxChannelID {
			return fmt.Errorf("excluded %w", protocol.ErrInvalidChannelID)
		}
	}
	return nil
}
