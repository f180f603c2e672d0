// Package config holds the CLI configuration types.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/pflag"

	"github.com/1ureka/webrtc-task/internal/protocol"
	"github.com/1ureka/webrtc-task/internal/task"
	"github.com/1ureka/webrtc-task/internal/webrtc"
)

// Role represents the user's chosen role (host or client).
type Role string

const (
	RoleHost   Role = "host"
	RoleClient Role = "client"
)

// PINLength is the length of generated PINs.
const PINLength = 4

// Config stores all parameters gathered from flags or interactive prompts.
type Config struct {
	Role           Role
	Version        string   // task version: v0 or v1
	Handover       bool     // move signaling to a data channel once connected
	MaxChunkLength int      // upper bound for signaling chunks
	MaxPacketSize  uint32   // announced by the v0 task only
	ListenAddr     string   // Host: WebSocket listen address
	WSURL          string   // Client: WebSocket URL to connect to
	PIN            string   // Client: PIN printed by the host
	STUNServers    []string // ICE servers used for gathering
	Debug          bool
}

// Default returns the configuration used when no flags are given.
func Default() Config {
	cfg := task.DefaultConfig()
	return Config{
		Version:        cfg.Version.String(),
		Handover:       cfg.Handover,
		MaxChunkLength: cfg.MaxChunkLength,
		MaxPacketSize:  cfg.MaxPacketSize,
		ListenAddr:     ":0",
		STUNServers:    webrtc.DefaultSTUNServers,
	}
}

// RegisterFlags binds the configuration to fs.
func (c *Config) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVar((*string)(&c.Role), "role", string(c.Role), "Role: host or client")
	fs.StringVar(&c.Version, "task-version", c.Version, "Task version: v0 or v1")
	fs.BoolVar(&c.Handover, "handover", c.Handover, "Hand signaling over to a data channel once connected")
	fs.IntVar(&c.MaxChunkLength, "max-chunk-length", c.MaxChunkLength, "Maximum signaling chunk length in bytes")
	fs.Uint32Var(&c.MaxPacketSize, "max-packet-size", c.MaxPacketSize, "Max packet size announced by the v0 task (0 = no preference)")
	fs.StringVar(&c.ListenAddr, "listen", c.ListenAddr, "WebSocket listen address (host only)")
	fs.StringVar(&c.WSURL, "ws-url", c.WSURL, "WebSocket URL to connect to (client only)")
	fs.StringVar(&c.PIN, "pin", c.PIN, "PIN shown by the host (client only)")
	fs.StringSliceVar(&c.STUNServers, "stun", c.STUNServers, "STUN server URLs")
	fs.BoolVar(&c.Debug, "debug", c.Debug, "Enable debug logging")
}

// Validate checks that the configuration is complete for its role.
func (c Config) Validate() error {
	if _, err := c.TaskConfig(); err != nil {
		return err
	}
	switch c.Role {
	case RoleHost:
		if c.ListenAddr == "" {
			return errors.New("missing listen address")
		}
	case RoleClient:
		if c.WSURL == "" {
			return errors.New("missing WebSocket URL for client role")
		}
		if _, err := NormalizeWSURL(c.WSURL); err != nil {
			return err
		}
		if c.PIN == "" {
			return errors.New("missing PIN for client role")
		}
	default:
		return fmt.Errorf("invalid role %q: must be 'host' or 'client'", c.Role)
	}
	return nil
}

// TaskConfig converts the configuration into the task's parameters.
func (c Config) TaskConfig() (task.Config, error) {
	version, err := task.ParseVersion(c.Version)
	if err != nil {
		return task.Config{}, err
	}
	cfg := task.Config{
		Version:        version,
		Handover:       c.Handover,
		MaxChunkLength: c.MaxChunkLength,
		MaxPacketSize:  c.MaxPacketSize,
	}
	if err := cfg.Validate(); err != nil {
		return task.Config{}, err
	}
	return cfg, nil
}

// SignalingRole maps the CLI role to the signaling role: the host initiates.
func (c Config) SignalingRole() protocol.Role {
	if c.Role == RoleHost {
		return protocol.RoleInitiator
	}
	return protocol.RoleResponder
}

// DialURL returns the normalized WebSocket URL including the PIN.
func (c Config) DialURL() (string, error) {
	base, err := NormalizeWSURL(c.WSURL)
	if err != nil {
		return "", err
	}
	return base + "?pin=" + url.QueryEscape(c.PIN), nil
}

// NormalizeWSURL validates a raw WebSocket URL or host name and returns it as
// a ws/wss URL on the signaling path. Bare hosts default to wss.
func NormalizeWSURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "wss://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid WebSocket URL: %s", raw)
	}
	scheme := "wss"
	if u.Scheme == "ws" || u.Scheme == "wss" {
		scheme = u.Scheme
	}
	return fmt.Sprintf("%s://%s/ws", scheme, u.Host), nil
}
