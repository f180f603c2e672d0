package protocol

import (
	"strconv"
	"sync"
	"sync/atomic"
)

// Role of a peer in the signaling session.
type Role string

const (
	RoleInitiator Role = "Initiator"
	RoleResponder Role = "Responder"
)

// SignalingState is the externally observable state of a signaling session.
type SignalingState int

const (
	StateNew SignalingState = iota
	StateWSConnecting
	StateServerHandshake
	StatePeerHandshake
	StateTask
	StateClosing
	StateClosed
)

var stateNames = map[SignalingState]string{
	StateNew:             "new",
	StateWSConnecting:    "ws-connecting",
	StateServerHandshake: "server-handshake",
	StatePeerHandshake:   "peer-handshake",
	StateTask:            "task",
	StateClosing:         "closing",
	StateClosed:          "closed",
}

func (s SignalingState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown(" + strconv.Itoa(int(s)) + ")"
}

// CloseCode is sent when a signaling connection is closed or reset.
type CloseCode uint16

const (
	CloseGoingAway           CloseCode = 1001
	CloseNoSharedSubprotocol CloseCode = 1002
	ClosePathFull            CloseCode = 3000
	CloseProtocolError       CloseCode = 3001
	CloseInternalError       CloseCode = 3002
	CloseHandover            CloseCode = 3003
	CloseDroppedByInitiator  CloseCode = 3004
	CloseInitiatorNoDecrypt  CloseCode = 3005
	CloseNoSharedTask        CloseCode = 3006
	CloseInvalidKey          CloseCode = 3007
	CloseTimeout             CloseCode = 3008
)

var closeCodeNames = map[CloseCode]string{
	CloseGoingAway:           "going away",
	CloseNoSharedSubprotocol: "no shared subprotocol",
	ClosePathFull:            "path full",
	CloseProtocolError:       "protocol error",
	CloseInternalError:       "internal error",
	CloseHandover:            "handover",
	CloseDroppedByInitiator:  "dropped by initiator",
	CloseInitiatorNoDecrypt:  "initiator could not decrypt",
	CloseNoSharedTask:        "no shared task",
	CloseInvalidKey:          "invalid key",
	CloseTimeout:             "timeout",
}

func (c CloseCode) String() string {
	if name, ok := closeCodeNames[c]; ok {
		return name + " (" + strconv.Itoa(int(c)) + ")"
	}
	return strconv.Itoa(int(c))
}

// HandoverState tracks whether each side has switched its signaling traffic
// to the dedicated channel. Both flags start false and are set exactly once;
// they are never reset, so observers never see a handover being undone.
type HandoverState struct {
	local atomic.Bool
	peer  atomic.Bool

	mu   sync.Mutex
	done chan struct{}
}

// Local reports whether this side has sent its handover message.
func (h *HandoverState) Local() bool { return h.local.Load() }

// Peer reports whether the peer's handover message has been received.
func (h *HandoverState) Peer() bool { return h.peer.Load() }

// Any reports Local() || Peer().
func (h *HandoverState) Any() bool { return h.Local() || h.Peer() }

// All reports Local() && Peer().
func (h *HandoverState) All() bool { return h.Local() && h.Peer() }

// SetLocal flips the local flag. It returns false if it was already set.
func (h *HandoverState) SetLocal() bool {
	if !h.local.CompareAndSwap(false, true) {
		return false
	}
	h.notify()
	return true
}

// SetPeer flips the peer flag. It returns false if it was already set.
func (h *HandoverState) SetPeer() bool {
	if !h.peer.CompareAndSwap(false, true) {
		return false
	}
	h.notify()
	return true
}

// Done returns a channel that is closed once both flags are set.
func (h *HandoverState) Done() <-chan struct{} {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.done == nil {
		h.done = make(chan struct{})
		if h.All() {
			close(h.done)
		}
	}
	return h.done
}

func (h *HandoverState) notify() {
	if !h.All() {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.done == nil {
		h.done = make(chan struct{})
	}
	select {
	case <-h.done:
	default:
		close(h.done)
	}
}

// TaskMessage is a task-level message exchanged between the peers. Data is
// the message's map payload, without the type tag.
type TaskMessage struct {
	Type string
	Data map[string]any
}
