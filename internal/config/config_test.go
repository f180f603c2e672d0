package config

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1ureka/webrtc-task/internal/protocol"
	"github.com/1ureka/webrtc-task/internal/task"
)

func parse(t *testing.T, args ...string) Config {
	t.Helper()
	cfg := Default()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg.RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return cfg
}

func TestDefaults(t *testing.T) {
	cfg := parse(t, "--role", "host")
	require.NoError(t, cfg.Validate())

	tc, err := cfg.TaskConfig()
	require.NoError(t, err)
	assert.Equal(t, task.DefaultConfig(), tc)
	assert.Equal(t, protocol.RoleInitiator, cfg.SignalingRole())
}

func TestClientFlags(t *testing.T) {
	cfg := parse(t,
		"--role=client",
		"--ws-url=example.devtunnels.ms",
		"--pin=1234",
		"--task-version=v0",
		"--handover=false",
		"--max-chunk-length=1024",
		"--max-packet-size=0",
		"--stun=stun:a:3478,stun:b:3478",
	)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, protocol.RoleResponder, cfg.SignalingRole())
	assert.Equal(t, []string{"stun:a:3478", "stun:b:3478"}, cfg.STUNServers)

	tc, err := cfg.TaskConfig()
	require.NoError(t, err)
	assert.Equal(t, task.Config{Version: task.V0, MaxChunkLength: 1024}, tc)

	dial, err := cfg.DialURL()
	require.NoError(t, err)
	assert.Equal(t, "wss://example.devtunnels.ms/ws?pin=1234", dial)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no role", nil},
		{"unknown role", []string{"--role=server"}},
		{"client without url", []string{"--role=client", "--pin=1"}},
		{"client without pin", []string{"--role=client", "--ws-url=ws://localhost:8080"}},
		{"bad version", []string{"--role=host", "--task-version=v2"}},
		{"chunk length too small", []string{"--role=host", "--max-chunk-length=9"}},
		{"host without listen address", []string{"--role=host", "--listen="}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, parse(t, tt.args...).Validate())
		})
	}
}

func TestNormalizeWSURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"ws://localhost:8080", "ws://localhost:8080/ws"},
		{"wss://abc.asse.devtunnels.ms/ws", "wss://abc.asse.devtunnels.ms/ws"},
		{"https://abc.asse.devtunnels.ms/", "wss://abc.asse.devtunnels.ms/ws"},
		{"  abc.asse.devtunnels.ms  ", "wss://abc.asse.devtunnels.ms/ws"},
	}
	for _, tt := range tests {
		got, err := NormalizeWSURL(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := NormalizeWSURL("://")
	assert.Error(t, err)
}
