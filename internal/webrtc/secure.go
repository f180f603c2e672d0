package webrtc

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/webrtc-task/internal/chunk"
	"github.com/1ureka/webrtc-task/internal/crypto"
	"github.com/1ureka/webrtc-task/internal/protocol"
	"github.com/1ureka/webrtc-task/internal/task"
	"github.com/1ureka/webrtc-task/internal/util"
)

const (
	secureGCChunkCount = 32
	secureGCMaxAge     = 60 * time.Second
)

// SecureTask is what a secure channel needs from the task: the session keys
// and the negotiated packet size.
type SecureTask interface {
	CreateCryptoContext(channelID uint16) (*crypto.Context, error)
	MaxPacketSize() (size uint32, ok bool)
}

// rawChannel is the part of a pion DataChannel the secure channel uses.
type rawChannel interface {
	ID() *uint16
	Label() string
	Send(data []byte) error
	Close() error
	OnMessage(f func(msg webrtc.DataChannelMessage))
}

// SecureChannel wraps an application data channel and encrypts everything
// sent through it with the keys of the signaling session. Each message is
// sealed under a data channel nonce and split into chunks no longer than the
// negotiated max packet size.
//
// An invalid nonce, chunk or counter overflow closes the channel. Data that
// fails to decrypt is dropped.
type SecureChannel struct {
	dc          rawChannel
	id          uint16
	crypto      *crypto.Context
	chunkLength int
	log         *util.Logger
	open        chan struct{}
	openOnce    sync.Once

	sendMu    sync.Mutex
	messageID uint64

	mu         sync.Mutex
	unchunker  *chunk.Unchunker
	chunkCount int
	onMessage  func([]byte)
	closed     bool
}

// OpenSecureChannel creates a negotiated, ordered application data channel
// with the given id on pc and wraps it. Both peers must open it with the same
// id, and the id must be excluded from the signaling channel selection.
func OpenSecureChannel(pc *webrtc.PeerConnection, label string, id uint16, t SecureTask) (*SecureChannel, error) {
	ordered := true
	negotiated := true
	dc, err := pc.CreateDataChannel(label, &webrtc.DataChannelInit{
		Ordered:    &ordered,
		Negotiated: &negotiated,
		ID:         &id,
	})
	if err != nil {
		return nil, fmt.Errorf("create data channel %q: %w", label, err)
	}

	c, err := newSecureChannel(dc, t)
	if err != nil {
		dc.Close()
		return nil, err
	}
	dc.OnOpen(c.markOpen)
	dc.OnClose(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		c.log.Info("Data channel closed")
	})
	return c, nil
}

func newSecureChannel(dc rawChannel, t SecureTask) (*SecureChannel, error) {
	idPtr := dc.ID()
	if idPtr == nil {
		return nil, errors.New("data channel has no id yet")
	}
	id := *idPtr

	ctx, err := t.CreateCryptoContext(id)
	if err != nil {
		return nil, err
	}

	size, ok := t.MaxPacketSize()
	if !ok {
		return nil, protocol.IllegalState("task has not been initialized")
	}
	chunkLength := int(size)
	if size == 0 {
		chunkLength = task.DefaultMaxPacketSize
	}
	if chunkLength <= chunk.HeaderLength {
		return nil, fmt.Errorf("max packet size %d leaves no room for payload", size)
	}

	c := &SecureChannel{
		dc:          dc,
		id:          id,
		crypto:      ctx,
		chunkLength: chunkLength,
		log:         util.NewLogger("SaltyRTC.SecureDataChannel"),
		open:        make(chan struct{}),
		unchunker:   chunk.NewUnchunker(),
	}
	dc.OnMessage(func(msg webrtc.DataChannelMessage) { c.receiveChunk(msg.Data) })
	return c, nil
}

// ID returns the data channel id.
func (c *SecureChannel) ID() uint16 { return c.id }

// Label returns the data channel label.
func (c *SecureChannel) Label() string { return c.dc.Label() }

// ChunkLength returns the chunk length used for outgoing messages.
func (c *SecureChannel) ChunkLength() int { return c.chunkLength }

// Open is closed once the channel can carry data.
func (c *SecureChannel) Open() <-chan struct{} { return c.open }

func (c *SecureChannel) markOpen() {
	c.openOnce.Do(func() { close(c.open) })
}

// OnMessage registers fn to receive decrypted messages.
func (c *SecureChannel) OnMessage(fn func([]byte)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onMessage = fn
}

// Closed reports whether the channel has been closed.
func (c *SecureChannel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Send encrypts data and writes it to the channel in chunks.
func (c *SecureChannel) Send(data []byte) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.Closed() {
		return ErrChannelClosed
	}

	box, err := c.crypto.Encrypt(data)
	if err != nil {
		var overflow *protocol.OverflowError
		if errors.As(err, &overflow) {
			c.log.Error("CSN overflow, closing data channel", "error", err)
			c.Close()
		}
		return fmt.Errorf("encrypt outgoing data: %w", err)
	}

	if c.messageID > math.MaxUint32 {
		c.log.Error("Message id overflow, closing data channel")
		c.Close()
		return &protocol.OverflowError{What: "chunk message id"}
	}
	id := uint32(c.messageID)
	c.messageID++

	chunker, err := chunk.NewChunker(id, box.Bytes(), c.chunkLength)
	if err != nil {
		return err
	}
	for chunker.HasNext() {
		out := chunker.Next()
		if err := c.dc.Send(out); err != nil {
			return fmt.Errorf("send chunk: %w", err)
		}
		util.Stats.AddSent(len(out))
	}
	util.Stats.AddMessageSent()
	return nil
}

func (c *SecureChannel) receiveChunk(data []byte) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	message, complete, err := c.unchunker.Add(data)
	c.chunkCount++
	if c.chunkCount > secureGCChunkCount {
		c.unchunker.GC(secureGCMaxAge)
		c.chunkCount = 0
	}
	c.mu.Unlock()

	if err != nil {
		c.log.Error("Invalid chunk, closing data channel", "error", err)
		c.Close()
		return
	}
	util.Stats.AddRecv(len(data))
	if complete {
		c.receiveMessage(message)
	}
}

func (c *SecureChannel) receiveMessage(message []byte) {
	box, err := protocol.DecodeBox(message, protocol.NonceLength)
	if err != nil {
		c.log.Error("Invalid message, closing data channel", "error", err)
		c.Close()
		return
	}
	data, err := c.crypto.Decrypt(box)
	if err != nil {
		var valErr *protocol.ValidationError
		if errors.As(err, &valErr) {
			c.log.Error("Invalid nonce, closing data channel", "error", err)
			c.Close()
			return
		}
		c.log.Error("Could not decrypt incoming data", "error", err)
		return
	}
	util.Stats.AddMessageRecv()

	c.mu.Lock()
	fn := c.onMessage
	c.mu.Unlock()
	if fn == nil {
		c.log.Warn("Received new message, but no handler is registered")
		return
	}
	fn(data)
}

// Close closes the underlying data channel. Subsequent calls do nothing.
func (c *SecureChannel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	return c.dc.Close()
}
