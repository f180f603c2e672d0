// Package signaling is the outer signaling layer the WebRTC task runs on.
//
// Two peers connect over a PIN-guarded WebSocket, exchange session keys in a
// hello frame and from then on send CBOR frames sealed with NaCl box. The
// auth frame carries the task negotiation data. Once both peers handed over,
// the WebSocket is closed with the handover close code and every further
// signaling message travels through the task's dedicated data channel.
package signaling

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"golang.org/x/crypto/nacl/box"

	"github.com/1ureka/webrtc-task/internal/protocol"
	"github.com/1ureka/webrtc-task/internal/task"
	"github.com/1ureka/webrtc-task/internal/util"
)

// ErrSessionClosed is returned when sending on a closed session.
var ErrSessionClosed = errors.New("signaling session closed")

// Session is one signaling session between an initiator and a responder. It
// implements task.Signaling.
type Session struct {
	role protocol.Role
	conn *websocket.Conn
	task *task.Task
	log  *util.Logger

	publicKey  *[32]byte
	privateKey *[32]byte
	shared     [32]byte

	sender   *sender
	receiver *receiver
	handover protocol.HandoverState

	mu         sync.Mutex
	state      protocol.SignalingState
	closed     bool
	handedOver bool
	closeCode  protocol.CloseCode
	onState    func(protocol.SignalingState)
	done       chan struct{}
	handshaken bool
}

// NewSession creates a session for role on an established WebSocket.
func NewSession(conn *websocket.Conn, role protocol.Role, t *task.Task) (*Session, error) {
	publicKey, privateKey, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate session key: %w", err)
	}
	s := &Session{
		role:       role,
		conn:       conn,
		task:       t,
		log:        util.NewLogger("SaltyRTC.Signaling." + string(role)),
		publicKey:  publicKey,
		privateKey: privateKey,
		state:      protocol.StateNew,
		done:       make(chan struct{}),
	}
	s.sender = &sender{conn: conn, shared: &s.shared}
	s.receiver = &receiver{conn: conn, shared: &s.shared}
	return s, nil
}

// OnStateChange registers fn to be called on every state transition. It
// must be set before Handshake.
func (s *Session) OnStateChange(fn func(protocol.SignalingState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onState = fn
}

// State returns the current signaling state.
func (s *Session) State() protocol.SignalingState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed once the session reached StateClosed.
func (s *Session) Done() <-chan struct{} { return s.done }

// CloseCode returns the code the session was closed with.
func (s *Session) CloseCode() protocol.CloseCode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCode
}

// ---------------------------------------------------------------------------
// Handshake
// ---------------------------------------------------------------------------

// Handshake exchanges the session keys and the task negotiation data. The
// initiator authenticates first. On failure the session is reset.
func (s *Session) Handshake(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { s.conn.Close() })
	defer stop()

	if err := s.handshake(); err != nil {
		if ctx.Err() != nil {
			err = errors.Join(ctx.Err(), err)
		}
		s.log.Error("Handshake failed", "error", err)
		s.ResetConnection(protocol.CloseCodeOf(err))
		return fmt.Errorf("signaling handshake: %w", err)
	}
	return nil
}

func (s *Session) handshake() error {
	s.setState(protocol.StatePeerHandshake)

	if err := s.sender.sendHello(s.publicKey); err != nil {
		return err
	}
	peerKey, err := s.receiver.readHello()
	if err != nil {
		return err
	}
	if bytes.Equal(peerKey[:], s.publicKey[:]) {
		return &protocol.ConnectionError{Code: protocol.CloseInvalidKey, Err: errors.New("peer reflected our public key")}
	}
	box.Precompute(&s.shared, peerKey, s.privateKey)
	s.mu.Lock()
	s.handshaken = true
	s.mu.Unlock()

	if s.role == protocol.RoleInitiator {
		if err := s.sendAuth(); err != nil {
			return err
		}
		if err := s.readAuth(); err != nil {
			return err
		}
	} else {
		if err := s.readAuth(); err != nil {
			return err
		}
		if err := s.sendAuth(); err != nil {
			return err
		}
	}

	s.setState(protocol.StateTask)
	s.task.OnPeerHandshakeDone()
	return nil
}

func (s *Session) sendAuth() error {
	return s.sendRelayed(message{Type: msgTypeAuth, Task: s.task.Name(), Data: s.task.Data()})
}

func (s *Session) readAuth() error {
	msg, err := s.receiver.read()
	if err != nil {
		return err
	}
	switch msg.Type {
	case msgTypeAuth:
	case msgTypeClose:
		return &protocol.ConnectionError{Code: protocol.CloseCode(msg.Reason), Err: errors.New("peer closed during handshake")}
	default:
		return &protocol.ConnectionError{Code: protocol.CloseProtocolError, Err: fmt.Errorf("expected auth, got %q", msg.Type)}
	}
	if msg.Task != s.task.Name() {
		return &protocol.ConnectionError{Code: protocol.CloseNoSharedTask, Err: fmt.Errorf("peer offered task %q", msg.Task)}
	}
	if err := s.task.Init(s, msg.Data); err != nil {
		return fmt.Errorf("initialize task: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Message loop
// ---------------------------------------------------------------------------

// Run reads frames from the WebSocket until it is closed. It returns nil when
// the WebSocket was closed because of a handover or a local reset; the
// session itself lives on until Done is closed.
func (s *Session) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { s.ResetConnection(protocol.CloseGoingAway) })
	defer stop()

	go s.watchHandover()

	for {
		msg, err := s.receiver.read()
		if err != nil {
			return s.readFailed(err)
		}
		s.dispatch(msg)
	}
}

func (s *Session) readFailed(err error) error {
	s.mu.Lock()
	closed, handedOver := s.closed, s.handedOver
	s.mu.Unlock()

	if handedOver || websocket.IsCloseError(err, int(protocol.CloseHandover)) {
		s.log.Info("Relayed connection closed after handover")
		s.conn.Close()
		return nil
	}
	if closed {
		return nil
	}

	code := protocol.CloseGoingAway
	var connErr *protocol.ConnectionError
	var closeErr *websocket.CloseError
	switch {
	case errors.As(err, &connErr):
		s.log.Error("Invalid frame", "error", err)
		s.ResetConnection(connErr.Code)
		return err
	case errors.As(err, &closeErr):
		code = protocol.CloseCode(closeErr.Code)
	}
	s.log.Warn("Relayed connection lost", "error", err)
	s.shutdown(code, false)
	return &protocol.ConnectionError{Code: code, Err: err}
}

// watchHandover closes the WebSocket once both peers handed over.
func (s *Session) watchHandover() {
	select {
	case <-s.handover.Done():
	case <-s.done:
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.handedOver = true
	s.mu.Unlock()

	s.log.Info("Handover finished, closing relayed connection")
	if err := s.sender.sendClose(protocol.CloseHandover); err != nil {
		s.log.Warn("Unable to close relayed connection", "error", err)
	}
}

func (s *Session) dispatch(msg message) {
	switch msg.Type {
	case msgTypeClose:
		s.log.Info("Peer closed the session", "reason", protocol.CloseCode(msg.Reason))
		s.shutdown(protocol.CloseCode(msg.Reason), false)
	case msgTypeHello, msgTypeAuth:
		s.log.Warn("Unexpected frame after handshake", "type", msg.Type)
	default:
		s.task.OnTaskMessage(protocol.TaskMessage{Type: msg.Type, Data: msg.Data})
	}
}

// ---------------------------------------------------------------------------
// task.Signaling
// ---------------------------------------------------------------------------

// Role returns the role of this side.
func (s *Session) Role() protocol.Role { return s.role }

// HandoverState returns the handover flags of the session.
func (s *Session) HandoverState() *protocol.HandoverState { return &s.handover }

// EncryptForPeer seals data with the session key and nonce.
func (s *Session) EncryptForPeer(data, nonce []byte) (protocol.Box, error) {
	if len(nonce) != protocol.NonceLength {
		return protocol.Box{}, fmt.Errorf("nonce must be %d bytes, got %d", protocol.NonceLength, len(nonce))
	}
	var n [24]byte
	copy(n[:], nonce)
	return protocol.Box{Nonce: nonce, Data: box.SealAfterPrecomputation(nil, data, &n, &s.shared)}, nil
}

// DecryptFromPeer opens a box sealed by the peer.
func (s *Session) DecryptFromPeer(b protocol.Box) ([]byte, error) {
	if len(b.Nonce) != protocol.NonceLength {
		return nil, fmt.Errorf("nonce must be %d bytes, got %d", protocol.NonceLength, len(b.Nonce))
	}
	var n [24]byte
	copy(n[:], b.Nonce)
	plaintext, ok := box.OpenAfterPrecomputation(nil, b.Data, &n, &s.shared)
	if !ok {
		return nil, errDecrypt
	}
	return plaintext, nil
}

// SendTaskMessage sends msg to the peer, through the dedicated channel once
// this side handed over and over the WebSocket before.
func (s *Session) SendTaskMessage(msg protocol.TaskMessage) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return &protocol.ConnectionError{Code: protocol.CloseGoingAway, Err: ErrSessionClosed}
	}
	return s.send(message{Type: msg.Type, Data: msg.Data})
}

// OnSignalingPeerMessage handles a message received on the dedicated channel.
func (s *Session) OnSignalingPeerMessage(data []byte) {
	msg, err := decodeMessage(data)
	if err != nil {
		s.log.Error("Invalid signaling message", "error", err)
		s.ResetConnection(protocol.CloseProtocolError)
		return
	}
	s.dispatch(msg)
}

// SetState is called by the signaling transport when the dedicated channel
// is closing or closed.
func (s *Session) SetState(state protocol.SignalingState) {
	if state == protocol.StateClosed {
		s.shutdown(protocol.CloseGoingAway, false)
		return
	}
	s.setState(state)
}

// ResetConnection closes the session with code and tells the peer, if the
// WebSocket is still in use. It is idempotent.
func (s *Session) ResetConnection(code protocol.CloseCode) {
	s.shutdown(code, true)
}

func (s *Session) send(msg message) error {
	if s.handover.Local() {
		data, err := encode(msg)
		if err != nil {
			return err
		}
		return s.task.SendSignalingMessage(data)
	}
	return s.sendRelayed(msg)
}

func (s *Session) sendRelayed(msg message) error {
	data, err := encode(msg)
	if err != nil {
		return err
	}
	return s.sender.send(data)
}

func (s *Session) shutdown(code protocol.CloseCode, notify bool) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.closeCode = code
	handedOver, handshaken := s.handedOver, s.handshaken
	s.mu.Unlock()

	s.log.Info("Closing session", "code", code)
	s.setState(protocol.StateClosing)

	relayed := !handedOver && !s.handover.Local()
	if notify && relayed && handshaken {
		if err := s.sendRelayed(message{Type: msgTypeClose, Reason: uint16(code)}); err != nil {
			s.log.Debug("Unable to send close message", "error", err)
		}
	}
	s.task.Close(code)
	if relayed {
		if err := s.sender.sendClose(code); err != nil {
			s.log.Debug("Unable to close relayed connection", "error", err)
		}
	}
	s.conn.Close()

	s.setState(protocol.StateClosed)
	close(s.done)
}

func (s *Session) setState(state protocol.SignalingState) {
	s.mu.Lock()
	if s.state == state {
		s.mu.Unlock()
		return
	}
	s.state = state
	fn := s.onState
	s.mu.Unlock()

	s.log.Debug("Signaling state changed", "state", state)
	if fn != nil {
		fn(state)
	}
}
