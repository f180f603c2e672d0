package transport

import "github.com/1ureka/webrtc-task/internal/protocol"

// Handler is implemented by the application to give the task access to the
// dedicated signaling channel.
type Handler interface {
	// MaxMessageSize returns the largest message the channel can send.
	MaxMessageSize() uint64
	// Send sends one chunk. Chunks must neither be modified nor reordered,
	// and the slice must be used or copied before Send returns.
	Send(chunk []byte) error
	// Close starts closing the channel.
	Close() error
}

// Signaling is the part of the signaling layer the transport reports to.
type Signaling interface {
	HandoverState() *protocol.HandoverState
	OnSignalingPeerMessage(message []byte)
	SetState(state protocol.SignalingState)
}

// Crypto encrypts and decrypts the messages of one channel.
type Crypto interface {
	Encrypt(data []byte) (protocol.Box, error)
	Decrypt(box protocol.Box) ([]byte, error)
}

// Owner is the task the transport belongs to. The transport closes it with
// a protocol error code when an invariant is broken.
type Owner interface {
	Close(code protocol.CloseCode)
}
