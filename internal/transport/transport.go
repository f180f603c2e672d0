// Package transport replaces the relayed signaling connection with a
// dedicated peer-to-peer channel once handover has been initiated.
//
// A SignalingTransport binds the task's Link to the application's Handler. It
// encrypts and chunks outgoing signaling messages, reassembles and decrypts
// incoming ones, and holds them back until the peer has acknowledged the
// handover so that no message overtakes one still travelling over the relayed
// connection.
package transport

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/1ureka/webrtc-task/internal/chunk"
	"github.com/1ureka/webrtc-task/internal/protocol"
	"github.com/1ureka/webrtc-task/internal/util"
)

// Unchunker garbage collection.
const (
	gcChunkCount = 32               // run GC after this many received chunks
	gcMaxAge     = 60 * time.Second // drop incomplete messages older than this
)

// ErrClosed is returned by Send once the transport has been closed.
var ErrClosed = errors.New("signaling transport closed")

// SignalingTransport carries signaling messages over the dedicated channel.
//
// Outgoing messages are serialised by sendMu. Incoming chunks and queue
// flushes are serialised by deliverMu so messages reach the signaling layer
// in arrival order. mu guards the unchunker, the queue and the closed flag
// and is never held while calling out, so Close may be called from within
// any callback.
type SignalingTransport struct {
	link      *Link
	handler   Handler
	owner     Owner
	signaling Signaling
	crypto    Crypto
	log       *util.Logger

	chunkLength int

	sendMu    sync.Mutex
	messageID uint64

	deliverMu sync.Mutex

	mu          sync.Mutex
	unchunker   *chunk.Unchunker
	chunkCount  int
	queueActive bool
	queue       [][]byte
	closed      bool
}

// New creates a signaling transport and ties it to link.
//
// The chunk length is the smaller of the handler's maximum message size and
// maxChunkLength. Incoming messages are queued unless the peer has already
// requested handover.
func New(
	link *Link,
	handler Handler,
	owner Owner,
	signaling Signaling,
	crypto Crypto,
	maxChunkLength int,
) (*SignalingTransport, error) {
	chunkLength := maxChunkLength
	if size := handler.MaxMessageSize(); size < uint64(maxChunkLength) {
		chunkLength = int(size)
	}
	if chunkLength <= chunk.HeaderLength {
		return nil, fmt.Errorf("chunk length %d leaves no room for payload after the %d byte header",
			chunkLength, chunk.HeaderLength)
	}

	t := &SignalingTransport{
		link:        link,
		handler:     handler,
		owner:       owner,
		signaling:   signaling,
		crypto:      crypto,
		log:         util.NewLogger("SaltyRTC.WebRTC.SignalingTransport"),
		chunkLength: chunkLength,
		unchunker:   chunk.NewUnchunker(),
		queueActive: !signaling.HandoverState().Peer(),
	}

	link.tie(t)
	t.log.Info("Signaling transport created", "channel", link.ID(), "chunkLength", chunkLength)
	return t, nil
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

// Link returns the link the transport is bound to.
func (t *SignalingTransport) Link() *Link { return t.link }

// ChunkLength returns the effective chunk length, header included.
func (t *SignalingTransport) ChunkLength() int { return t.chunkLength }

// QueuedMessages returns a copy of the messages held back until flush.
func (t *SignalingTransport) QueuedMessages() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	queued := make([][]byte, len(t.queue))
	copy(queued, t.queue)
	return queued
}

// IsClosed reports whether the transport reached its terminal state.
func (t *SignalingTransport) IsClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// ---------------------------------------------------------------------------
// Outgoing
// ---------------------------------------------------------------------------

// Send encrypts message, splits it into chunks and hands them to the handler
// in order. Any failure closes the owning task with a protocol error.
func (t *SignalingTransport) Send(message []byte) error {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	if t.IsClosed() {
		return ErrClosed
	}
	t.log.Debug("Sending message", "bytes", len(message))

	box, err := t.crypto.Encrypt(message)
	if err != nil {
		t.log.Error("Unable to encrypt message", "error", err)
		t.die()
		return fmt.Errorf("encrypt signaling message: %w", err)
	}

	if t.messageID > math.MaxUint32 {
		err := &protocol.OverflowError{What: "chunk message id"}
		t.log.Error("Unable to send message", "error", err)
		t.die()
		return err
	}
	id := uint32(t.messageID)
	t.messageID++

	chunker, err := chunk.NewChunker(id, box.Bytes(), t.chunkLength)
	if err != nil {
		t.die()
		return err
	}
	for chunker.HasNext() {
		c := chunker.Next()
		t.log.Debug("Sending chunk", "id", id, "bytes", len(c))
		if err := t.handler.Send(c); err != nil {
			t.log.Error("Unable to send chunk", "error", err)
			t.die()
			return fmt.Errorf("send chunk: %w", err)
		}
		util.Stats.AddSent(len(c))
	}
	util.Stats.AddMessageSent()
	return nil
}

// ---------------------------------------------------------------------------
// Incoming
// ---------------------------------------------------------------------------

// receiveChunk registers a chunk received on the channel.
func (t *SignalingTransport) receiveChunk(c []byte) {
	t.deliverMu.Lock()
	defer t.deliverMu.Unlock()

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	message, complete, err := t.unchunker.Add(c)
	t.chunkCount++
	if t.chunkCount > gcChunkCount {
		if n := t.unchunker.GC(gcMaxAge); n > 0 {
			t.log.Warn("Dropped stale incomplete messages", "count", n)
		}
		t.chunkCount = 0
	}
	t.mu.Unlock()

	if err != nil {
		t.log.Error("Invalid chunk", "error", err)
		t.die()
		return
	}
	util.Stats.AddRecv(len(c))
	t.log.Debug("Received chunk", "bytes", len(c))

	if complete {
		t.receiveMessage(message)
	}
}

// receiveMessage decrypts a reassembled message and delivers or queues it.
// The caller holds deliverMu.
func (t *SignalingTransport) receiveMessage(message []byte) {
	t.log.Debug("Received message", "bytes", len(message))

	box, err := protocol.DecodeBox(message, protocol.NonceLength)
	if err != nil {
		t.log.Error("Invalid message", "error", err)
		t.die()
		return
	}
	decrypted, err := t.crypto.Decrypt(box)
	if err != nil {
		var valErr *protocol.ValidationError
		if errors.As(err, &valErr) {
			t.log.Error("Invalid nonce", "error", err)
		} else {
			t.log.Error("Could not decrypt incoming data", "error", err)
		}
		t.die()
		return
	}
	util.Stats.AddMessageRecv()

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	if t.queueActive {
		t.queue = append(t.queue, decrypted)
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()

	t.signaling.OnSignalingPeerMessage(decrypted)
}

// FlushMessageQueue delivers every queued message in arrival order and turns
// the transport into a pass-through. It must only be called once the peer
// has requested handover.
func (t *SignalingTransport) FlushMessageQueue() error {
	if !t.signaling.HandoverState().Peer() {
		return protocol.IllegalState("remote did not request handover")
	}

	t.deliverMu.Lock()
	defer t.deliverMu.Unlock()

	t.mu.Lock()
	queued := t.queue
	t.queue = nil
	t.queueActive = false
	t.mu.Unlock()

	t.log.Debug("Flushing message queue", "count", len(queued))
	for _, message := range queued {
		if t.IsClosed() {
			return nil
		}
		t.signaling.OnSignalingPeerMessage(message)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// onClosing is called when the channel started closing.
func (t *SignalingTransport) onClosing() {
	t.log.Info("Closing (remote)")
	if t.signaling.HandoverState().Any() {
		t.signaling.SetState(protocol.StateClosing)
	}
}

// onClosed is called when the channel has been closed.
func (t *SignalingTransport) onClosed() {
	t.log.Info("Closed (remote)")
	t.unbind()
	if t.signaling.HandoverState().Any() {
		t.signaling.SetState(protocol.StateClosed)
	}
}

// Close closes the channel and unbinds from all events. This is the final
// state of the transport: nothing is delivered to the signaling layer or the
// task afterwards.
func (t *SignalingTransport) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		t.log.Warn("Close called on a closed signaling transport")
		return
	}
	t.closed = true
	t.queue = nil
	t.mu.Unlock()

	if err := t.handler.Close(); err != nil {
		t.log.Error("Unable to close data channel", "error", err)
	}
	t.log.Info("Closed (local)")
	t.unbind()
}

// die closes the owning task abruptly due to a protocol error.
func (t *SignalingTransport) die() {
	t.log.Warn("Closing task due to an error")
	t.owner.Close(protocol.CloseProtocolError)
}

// unbind marks the transport closed and unties it from the link.
func (t *SignalingTransport) unbind() {
	t.mu.Lock()
	t.closed = true
	t.queue = nil
	t.queueActive = false
	t.mu.Unlock()

	t.link.untie(t)
}
