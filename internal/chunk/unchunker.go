package chunk

import (
	"container/heap"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/1ureka/webrtc-task/internal/protocol"
)

// header is the decoded chunk header.
type header struct {
	end    bool
	id     uint32
	serial uint32
}

type fragment struct {
	serial  uint32
	payload []byte
}

// message collects the fragments of one message id until it is complete.
type message struct {
	fragments fragmentHeap
	seen      map[uint32]struct{}
	maxSerial uint32
	endSerial uint32
	hasEnd    bool
	updated   time.Time
}

// Unchunker reassembles messages from chunks. Chunks of a message may arrive
// in any order; a message is emitted once its end chunk and every serial
// before it have been received.
//
// It is not safe for concurrent use; the owner serialises access.
type Unchunker struct {
	messages map[uint32]*message
	now      func() time.Time
}

// NewUnchunker creates an empty unchunker.
func NewUnchunker() *Unchunker {
	return &Unchunker{
		messages: make(map[uint32]*message),
		now:      time.Now,
	}
}

func parseHeader(chunk []byte) (header, error) {
	if len(chunk) < HeaderLength {
		return header{}, &protocol.ValidationError{
			Reason: fmt.Sprintf("%s: chunk of %d bytes (need at least %d)", protocol.ErrBufferTooShort, len(chunk), HeaderLength),
			Err:    protocol.ErrBufferTooShort,
		}
	}
	return header{
		end:    chunk[0]&optionEndOfMessage != 0,
		id:     binary.BigEndian.Uint32(chunk[1:5]),
		serial: binary.BigEndian.Uint32(chunk[5:9]),
	}, nil
}

// Add registers a chunk. When it completes a message, the reassembled
// message is returned with ok set to true.
func (u *Unchunker) Add(chunk []byte) (data []byte, ok bool, err error) {
	h, err := parseHeader(chunk)
	if err != nil {
		return nil, false, err
	}

	msg, found := u.messages[h.id]
	if !found {
		msg = &message{seen: make(map[uint32]struct{})}
		u.messages[h.id] = msg
	}

	if _, dup := msg.seen[h.serial]; dup {
		return nil, false, protocol.Validationf("duplicate chunk %d of message %d", h.serial, h.id)
	}
	if h.end {
		if msg.hasEnd {
			return nil, false, protocol.Validationf("second end chunk for message %d", h.id)
		}
		if len(msg.seen) > 0 && msg.maxSerial > h.serial {
			return nil, false, protocol.Validationf("end chunk %d of message %d precedes chunk %d", h.serial, h.id, msg.maxSerial)
		}
		msg.hasEnd = true
		msg.endSerial = h.serial
	}
	if msg.hasEnd && h.serial > msg.endSerial {
		return nil, false, protocol.Validationf("chunk %d beyond end of message %d", h.serial, h.id)
	}

	payload := make([]byte, len(chunk)-HeaderLength)
	copy(payload, chunk[HeaderLength:])
	heap.Push(&msg.fragments, fragment{serial: h.serial, payload: payload})
	msg.seen[h.serial] = struct{}{}
	msg.maxSerial = max(msg.maxSerial, h.serial)
	msg.updated = u.now()

	if !msg.hasEnd || uint64(msg.fragments.Len()) != uint64(msg.endSerial)+1 {
		return nil, false, nil
	}

	// Complete. The heap yields fragments in serial order.
	delete(u.messages, h.id)
	for msg.fragments.Len() > 0 {
		f := heap.Pop(&msg.fragments).(fragment)
		data = append(data, f.payload...)
	}
	if data == nil {
		data = []byte{}
	}
	return data, true, nil
}

// GC drops incomplete messages that have not received a chunk for longer
// than maxAge and returns how many were removed.
func (u *Unchunker) GC(maxAge time.Duration) int {
	cutoff := u.now().Add(-maxAge)
	removed := 0
	for id, msg := range u.messages {
		if msg.updated.Before(cutoff) {
			delete(u.messages, id)
			removed++
		}
	}
	return removed
}

// Pending returns the number of incomplete messages.
func (u *Unchunker) Pending() int {
	return len(u.messages)
}

// ---------------------------------------------------------------------------
// fragmentHeap implements a min-heap sorted by serial.
// ---------------------------------------------------------------------------

type fragmentHeap []fragment

func (h fragmentHeap) Len() int            { return len(h) }
func (h fragmentHeap) Less(i, j int) bool  { return h[i].serial < h[j].serial }
func (h fragmentHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *fragmentHeap) Push(x interface{}) { *h = append(*h, x.(fragment)) }

func (h *fragmentHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = fragment{}
	*h = old[:n-1]
	return item
}
