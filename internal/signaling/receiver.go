package signaling

import (
	"errors"
	"fmt"

	"github.com/gorilla/websocket"
	"golang.org/x/crypto/nacl/box"

	"github.com/1ureka/webrtc-task/internal/protocol"
)

var errDecrypt = errors.New("could not decrypt frame")

// receiver reads frames from the WebSocket.
type receiver struct {
	conn   *websocket.Conn
	shared *[32]byte
}

// readHello reads the peer's hello frame and returns its public key.
func (r *receiver) readHello() (*[32]byte, error) {
	data, err := r.readFrame()
	if err != nil {
		return nil, err
	}
	var h hello
	if err := decMode.Unmarshal(data, &h); err != nil {
		return nil, &protocol.ConnectionError{Code: protocol.CloseProtocolError, Err: fmt.Errorf("decode hello: %w", err)}
	}
	if h.Type != msgTypeHello {
		return nil, &protocol.ConnectionError{Code: protocol.CloseProtocolError, Err: fmt.Errorf("expected hello, got %q", h.Type)}
	}
	if len(h.Key) != 32 {
		return nil, &protocol.ConnectionError{Code: protocol.CloseInvalidKey, Err: fmt.Errorf("public key has %d bytes", len(h.Key))}
	}
	var key [32]byte
	copy(key[:], h.Key)
	return &key, nil
}

// read reads and decrypts the next frame.
func (r *receiver) read() (message, error) {
	data, err := r.readFrame()
	if err != nil {
		return message{}, err
	}
	plaintext, err := r.open(data)
	if err != nil {
		return message{}, &protocol.ConnectionError{Code: protocol.CloseProtocolError, Err: err}
	}
	msg, err := decodeMessage(plaintext)
	if err != nil {
		return message{}, &protocol.ConnectionError{Code: protocol.CloseProtocolError, Err: err}
	}
	return msg, nil
}

func (r *receiver) readFrame() ([]byte, error) {
	typ, data, err := r.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	if typ != websocket.BinaryMessage {
		return nil, &protocol.ConnectionError{Code: protocol.CloseProtocolError, Err: fmt.Errorf("unexpected frame type %d", typ)}
	}
	return data, nil
}

func (r *receiver) open(data []byte) ([]byte, error) {
	if len(data) < 24+box.Overhead {
		return nil, fmt.Errorf("%w: %d bytes", protocol.ErrBufferTooShort, len(data))
	}
	var nonce [24]byte
	copy(nonce[:], data[:24])
	plaintext, ok := box.OpenAfterPrecomputation(nil, data[24:], &nonce, r.shared)
	if !ok {
		return nil, errDecrypt
	}
	return plaintext, nil
}
