package app

import (
	"context"
	"fmt"

	"github.com/pterm/pterm"

	"github.com/1ureka/webrtc-task/internal/config"
	"github.com/1ureka/webrtc-task/internal/signaling"
	"github.com/1ureka/webrtc-task/internal/util"
)

// RunHost orchestrates the host (initiator) lifecycle:
//  1. Start the WS server with a random PIN
//  2. Wait for the client to connect via WebSocket
//  3. Run the signaling session: negotiate, send the offer, hand over
func RunHost(ctx context.Context, cfg config.Config) error {
	// ── 1. Generate PIN & start WS server ──────────────────────────────
	pin := signaling.GeneratePIN(config.PINLength)
	server := signaling.NewServer(pin)
	wsPort, err := server.Start(cfg.ListenAddr)
	if err != nil {
		return err
	}
	defer server.Close()

	pterm.DefaultBox.WithTitle("WebSocket Signaling Server").Println(
		fmt.Sprintf("Port : %d\nPIN  : %s\nPath : %s", wsPort, pin, signaling.Path))
	util.LogInfo("waiting for client...")

	// ── 2. Wait for client WS connection ───────────────────────────────
	wsConn, err := server.WaitForClient(ctx)
	if err != nil {
		return fmt.Errorf("failed to wait for client: %w", err)
	}
	server.Close()
	util.LogInfo("client connected: %s", wsConn.RemoteAddr())

	// ── 3. Signaling session ───────────────────────────────────────────
	return run(ctx, cfg, wsConn)
}
