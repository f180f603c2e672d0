package webrtc

import (
	"errors"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/webrtc-task/internal/transport"
	"github.com/1ureka/webrtc-task/internal/util"
)

const (
	highWaterMark = 256 * 1024 // pause sending when bufferedAmount exceeds this
	lowWaterMark  = 64 * 1024  // resume sending when bufferedAmount drops below this

	// defaultMaxMessageSize applies when the remote did not announce one.
	defaultMaxMessageSize = 65536
)

// ErrChannelClosed is returned by Send after the channel closed.
var ErrChannelClosed = errors.New("signaling data channel closed")

// SignalingChannel is the dedicated signaling data channel. It implements
// transport.Handler and forwards the channel's events to the link.
type SignalingChannel struct {
	pc          *webrtc.PeerConnection
	raw         *webrtc.DataChannel
	open        chan struct{}
	closed      chan struct{}
	drainSignal chan struct{}
	openOnce    sync.Once
	closeOnce   sync.Once
}

// OpenSignalingChannel creates the negotiated data channel described by link
// on pc. Both peers create it independently with the same id.
func OpenSignalingChannel(pc *webrtc.PeerConnection, link *transport.Link) (*SignalingChannel, error) {
	ordered := true
	negotiated := true
	id := link.ID()
	protocol := link.Protocol()

	raw, err := pc.CreateDataChannel(link.Label(), &webrtc.DataChannelInit{
		Ordered:    &ordered,
		Negotiated: &negotiated,
		ID:         &id,
		Protocol:   &protocol,
	})
	if err != nil {
		return nil, err
	}

	c := &SignalingChannel{
		pc:          pc,
		raw:         raw,
		open:        make(chan struct{}),
		closed:      make(chan struct{}),
		drainSignal: make(chan struct{}, 1),
	}

	raw.SetBufferedAmountLowThreshold(uint64(lowWaterMark))
	raw.OnBufferedAmountLow(func() {
		select {
		case c.drainSignal <- struct{}{}:
		default:
		}
	})
	raw.OnOpen(func() {
		util.LogDebug("signaling channel %d open", id)
		c.openOnce.Do(func() { close(c.open) })
	})
	raw.OnMessage(func(msg webrtc.DataChannelMessage) {
		if err := link.Receive(msg.Data); err != nil {
			util.LogDebug("dropped signaling chunk: %v", err)
		}
	})
	raw.OnClose(func() {
		c.closeOnce.Do(func() { close(c.closed) })
		if err := link.Closed(); err != nil {
			util.LogDebug("signaling channel closed: %v", err)
		}
	})
	return c, nil
}

// Open is closed once the channel can carry data.
func (c *SignalingChannel) Open() <-chan struct{} { return c.open }

// MaxMessageSize returns the largest message the remote accepts.
func (c *SignalingChannel) MaxMessageSize() uint64 {
	if sctp := c.pc.SCTP(); sctp != nil {
		if size := sctp.GetCapabilities().MaxMessageSize; size > 0 {
			return uint64(size)
		}
	}
	return defaultMaxMessageSize
}

// Send writes one chunk, waiting while the send buffer is above the high
// water mark.
func (c *SignalingChannel) Send(chunk []byte) error {
	if c.raw.BufferedAmount() > uint64(highWaterMark) {
		select {
		case <-c.drainSignal:
		case <-c.closed:
			return ErrChannelClosed
		}
	}
	return c.raw.Send(chunk)
}

// Close closes the data channel.
func (c *SignalingChannel) Close() error {
	return c.raw.Close()
}
