// Command webrtc-task is the CLI entry point.
//
// This tool runs a signaling session between two peers over WebSocket,
// negotiates a WebRTC peer connection through the WebRTC task and then hands
// the signaling traffic over to a dedicated, end-to-end encrypted data
// channel. After the handover the WebSocket connection is closed.
//
// It can be launched interactively (no flags) or non-interactively via CLI
// flags (--role, --listen, --ws-url, --pin, --task-version, --handover, ...).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/pflag"

	"github.com/1ureka/webrtc-task/internal/app"
	"github.com/1ureka/webrtc-task/internal/config"
	"github.com/1ureka/webrtc-task/internal/util"
)

var version = "dev"

func main() {
	// Root context, cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg := config.Default()
	fs := pflag.NewFlagSet("webrtc-task", pflag.ExitOnError)
	cfg.RegisterFlags(fs)
	_ = fs.Parse(os.Args[1:])

	if cfg.Debug {
		util.EnableDebug()
	}

	pterm.Info.Println(fmt.Sprintf("webrtc-task — v%s", version))
	pterm.Println()

	if cfg.Role == "" {
		// No --role flag → interactive mode.
		askRole(&cfg)
	}

	if err := cfg.Validate(); err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}

	var err error
	switch cfg.Role {
	case config.RoleHost:
		err = app.RunHost(ctx, cfg)
	case config.RoleClient:
		err = app.RunClient(ctx, cfg)
	}
	if err != nil {
		util.LogError("signaling failed: %v", err)
		os.Exit(1)
	}

	util.LogInfo("successfully closed signaling session")
}

// ---------------------------------------------------------------------------
// Interactive prompts
// ---------------------------------------------------------------------------

// askRole fills in the role and the client connection details interactively.
func askRole(cfg *config.Config) {
	role, _ := pterm.DefaultInteractiveSelect.
		WithOptions([]string{"Host  — Wait for a peer", "Client — Connect to a host"}).
		WithDefaultText("Select your role").
		Show()

	pterm.Println()

	if strings.HasPrefix(role, "Host") {
		cfg.Role = config.RoleHost
		return
	}
	cfg.Role = config.RoleClient
	if cfg.WSURL == "" {
		cfg.WSURL = askURL()
	}
	if cfg.PIN == "" {
		cfg.PIN = askPIN()
	}
}

// askURL prompts the user for a valid WebSocket URL until one is entered.
func askURL() string {
	for {
		raw, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText("WebSocket URL (e.g. wss://***.asse.devtunnels.ms/ws)").
			Show()

		if _, err := config.NormalizeWSURL(raw); err == nil {
			pterm.Println()
			return strings.TrimSpace(raw)
		}

		pterm.Println()
		util.LogWarning("invalid input: please enter a valid host or URL")
	}
}

// askPIN prompts the user for the PIN printed by the host.
func askPIN() string {
	for {
		raw, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText(fmt.Sprintf("PIN (%d digits)", config.PINLength)).
			Show()

		pin := strings.TrimSpace(raw)
		if len(pin) == config.PINLength && strings.Trim(pin, "0123456789") == "" {
			pterm.Println()
			return pin
		}

		util.LogWarning("invalid PIN: must be %d digits", config.PINLength)
		pterm.Println()
	}
}
