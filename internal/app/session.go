// Package app contains the top-level orchestration for host and client roles.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"

	"github.com/1ureka/webrtc-task/internal/config"
	"github.com/1ureka/webrtc-task/internal/protocol"
	"github.com/1ureka/webrtc-task/internal/signaling"
	"github.com/1ureka/webrtc-task/internal/task"
	"github.com/1ureka/webrtc-task/internal/transport"
	"github.com/1ureka/webrtc-task/internal/util"
	"github.com/1ureka/webrtc-task/internal/webrtc"
)

// run drives one signaling session on conn until it closes:
//  1. Handshake and task negotiation
//  2. Offer/answer and candidate exchange through the task
//  3. Handover of the signaling traffic to the negotiated data channel
//  4. Greeting over the encrypted application channel
//  5. Block until either side closes or ctx is cancelled
func run(ctx context.Context, cfg config.Config, conn *websocket.Conn) error {
	taskCfg, err := cfg.TaskConfig()
	if err != nil {
		conn.Close()
		return err
	}
	// The application channel's id must never be picked for signaling.
	taskCfg.Exclude = append(taskCfg.Exclude, appChannelID)
	role := cfg.SignalingRole()
	initiator := role == protocol.RoleInitiator

	// ── 1. Peer connection, task and session ───────────────────────────
	peer, err := webrtc.NewPeer(cfg.STUNServers)
	if err != nil {
		conn.Close()
		return err
	}
	defer peer.Close()

	b := newBridge(peer, initiator)
	tk, err := task.New(taskCfg, b)
	if err != nil {
		conn.Close()
		return err
	}
	b.bind(tk)

	sess, err := signaling.NewSession(conn, role, tk)
	if err != nil {
		conn.Close()
		return err
	}
	sess.OnStateChange(func(state protocol.SignalingState) {
		util.LogDebug("signaling state: %s", state)
	})

	if err := sess.Handshake(ctx); err != nil {
		return err
	}
	util.LogSuccess("signaling session established (%s, %s)", role, tk.Name())

	// ── 2. Signaling channel and offer/answer ──────────────────────────
	var (
		channel *webrtc.SignalingChannel
		link    *transport.Link
	)
	if tk.HandoverNegotiated() {
		link, err = tk.TransportLink()
		if err != nil {
			sess.ResetConnection(protocol.CloseInternalError)
			return err
		}
		channel, err = webrtc.OpenSignalingChannel(peer.PeerConnection(), link)
		if err != nil {
			sess.ResetConnection(protocol.CloseInternalError)
			return fmt.Errorf("failed to create signaling channel: %w", err)
		}
	}

	appChannel, err := webrtc.OpenSecureChannel(peer.PeerConnection(), appChannelLabel, appChannelID, tk)
	if err != nil {
		sess.ResetConnection(protocol.CloseInternalError)
		return err
	}
	appChannel.OnMessage(func(data []byte) {
		util.LogInfo("secure channel %d: %s", appChannel.ID(), data)
	})

	peer.OnCandidates(func(c task.Candidates) {
		if err := tk.SendCandidates(c); err != nil {
			util.LogWarning("failed to send candidates: %v", err)
		}
	})

	// Candidates must be forwarded before the first offer is processed.
	runErr := make(chan error, 1)
	go func() { runErr <- sess.Run(ctx) }()

	if initiator {
		offer, err := peer.CreateOffer()
		if err != nil {
			sess.ResetConnection(protocol.CloseInternalError)
			return err
		}
		if err := tk.SendOffer(offer); err != nil {
			return err
		}
	}

	if err := wait(ctx, sess, runErr, peer.Connected(), peer.Failed()); err != nil {
		sess.ResetConnection(protocol.CloseGoingAway)
		return fmt.Errorf("peer connection: %w", err)
	}
	util.LogSuccess("peer connection established")

	// ── 3. Handover ────────────────────────────────────────────────────
	if channel != nil {
		if err := wait(ctx, sess, runErr, channel.Open(), peer.Failed()); err != nil {
			sess.ResetConnection(protocol.CloseGoingAway)
			return fmt.Errorf("signaling channel: %w", err)
		}
		if err := tk.Handover(channel); err != nil {
			sess.ResetConnection(protocol.CloseInternalError)
			return fmt.Errorf("handover: %w", err)
		}
		if err := wait(ctx, sess, runErr, sess.HandoverState().Done(), peer.Failed()); err != nil {
			sess.ResetConnection(protocol.CloseGoingAway)
			return fmt.Errorf("handover: %w", err)
		}
		util.LogSuccess("signaling handed over to data channel %d", link.ID())
	}

	// ── 4. Greet the peer over the encrypted application channel ───────
	if err := wait(ctx, sess, runErr, appChannel.Open(), peer.Failed()); err != nil {
		sess.ResetConnection(protocol.CloseGoingAway)
		return fmt.Errorf("application channel: %w", err)
	}
	if err := appChannel.Send([]byte(fmt.Sprintf("hello from the %s", role))); err != nil {
		util.LogWarning("failed to send on secure channel: %v", err)
	}

	// ── 5. Block until shutdown ────────────────────────────────────────
	util.StartStatsReporter(ctx)
	select {
	case <-sess.Done():
	case <-peer.Failed():
		sess.ResetConnection(protocol.CloseGoingAway)
	case <-ctx.Done():
		sess.ResetConnection(protocol.CloseGoingAway)
	}
	util.LogInfo("signaling session closed: %s", sess.CloseCode())
	return nil
}

// Negotiated application data channel, wrapped in the task's encryption.
const (
	appChannelID    uint16 = 1
	appChannelLabel        = "app"
)

var errPeerFailed = errors.New("peer connection failed")

// wait blocks until ready is closed, failing early if the session ends, the
// relayed connection breaks, failed is closed or ctx is cancelled.
func wait(ctx context.Context, sess *signaling.Session, runErr <-chan error, ready, failed <-chan struct{}) error {
	for {
		select {
		case <-ready:
			return nil
		case <-failed:
			return errPeerFailed
		case <-sess.Done():
			return fmt.Errorf("signaling session closed: %s", sess.CloseCode())
		case err := <-runErr:
			if err != nil {
				return err
			}
			// The relayed connection closed after handover; keep waiting.
			runErr = nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
