package app

import (
	"context"

	"github.com/1ureka/webrtc-task/internal/config"
	"github.com/1ureka/webrtc-task/internal/signaling"
	"github.com/1ureka/webrtc-task/internal/util"
)

// RunClient orchestrates the client (responder) lifecycle:
//  1. Connect to the host's WS server with the PIN
//  2. Run the signaling session: negotiate, answer the offer, hand over
func RunClient(ctx context.Context, cfg config.Config) error {
	// ── 1. Connect to WS server ────────────────────────────────────────
	wsURL, err := cfg.DialURL()
	if err != nil {
		return err
	}
	util.LogInfo("connecting to host...")
	wsConn, err := signaling.Connect(ctx, wsURL)
	if err != nil {
		return err
	}
	util.LogInfo("WS connected: %s", cfg.WSURL)

	// ── 2. Signaling session ───────────────────────────────────────────
	return run(ctx, cfg, wsConn)
}
