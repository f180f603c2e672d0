package signaling

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/crypto/nacl/box"

	"github.com/1ureka/webrtc-task/internal/protocol"
)

const closeTimeout = time.Second

// sender serializes outgoing frames to the WebSocket.
type sender struct {
	conn   *websocket.Conn
	shared *[32]byte
	mu     sync.Mutex
}

// sendHello writes the unencrypted hello frame.
func (s *sender) sendHello(publicKey *[32]byte) error {
	data, err := encode(hello{Type: msgTypeHello, Key: publicKey[:]})
	if err != nil {
		return err
	}
	return s.write(data)
}

// send encrypts plaintext with a random nonce and writes nonce ‖ ciphertext.
func (s *sender) send(plaintext []byte) error {
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}
	return s.write(box.SealAfterPrecomputation(nonce[:], plaintext, &nonce, s.shared))
}

func (s *sender) write(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return &protocol.ConnectionError{Code: protocol.CloseGoingAway, Err: err}
	}
	return nil
}

// sendClose writes a WebSocket close frame carrying code.
func (s *sender) sendClose(code protocol.CloseCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(int(code), code.String()), time.Now().Add(closeTimeout))
}
