package transport

import (
	"errors"
	"sync"
)

// Label must be used as the label of the dedicated signaling data channel.
const Label = "saltyrtc-signaling"

// ErrUntied is returned by the link's callbacks when no signaling transport
// is bound to it (not created yet, or already closed).
var ErrUntied = errors.New("link is not tied to a signaling transport")

// Link contains everything the application needs to create the dedicated
// signaling channel, and the callbacks the application must invoke as that
// channel's events fire.
type Link struct {
	id       uint16
	protocol string

	mu        sync.RWMutex
	transport *SignalingTransport
}

// NewLink creates a link for the channel id and sub-protocol name.
func NewLink(id uint16, protocol string) *Link {
	return &Link{id: id, protocol: protocol}
}

// ID must be used as the negotiated id of the data channel.
func (l *Link) ID() uint16 { return l.id }

// Protocol must be used as the sub-protocol of the data channel.
func (l *Link) Protocol() string { return l.protocol }

// Label must be used as the label of the data channel.
func (l *Link) Label() string { return Label }

// Closing must be called when the channel has started closing.
func (l *Link) Closing() error {
	t := l.tied()
	if t == nil {
		return ErrUntied
	}
	t.onClosing()
	return nil
}

// Closed must be called when the channel has been closed.
func (l *Link) Closed() error {
	t := l.tied()
	if t == nil {
		return ErrUntied
	}
	t.onClosed()
	return nil
}

// Receive must be called for every message received on the channel. The
// application must not modify chunk afterwards.
func (l *Link) Receive(chunk []byte) error {
	t := l.tied()
	if t == nil {
		return ErrUntied
	}
	t.receiveChunk(chunk)
	return nil
}

func (l *Link) tied() *SignalingTransport {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.transport
}

func (l *Link) tie(t *SignalingTransport) {
	l.mu.Lock()
	l.transport = t
	l.mu.Unlock()
}

// untie detaches t, leaving the link alone if another transport has been
// tied in the meantime.
func (l *Link) untie(t *SignalingTransport) {
	l.mu.Lock()
	if l.transport == t {
		l.transport = nil
	}
	l.mu.Unlock()
}
