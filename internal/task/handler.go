package task

import (
	"github.com/1ureka/webrtc-task/internal/crypto"
	"github.com/1ureka/webrtc-task/internal/protocol"
	"github.com/1ureka/webrtc-task/internal/transport"
)

// MessageHandler receives the task messages the application has to act on.
// Callbacks run on the goroutine delivering the task message.
type MessageHandler interface {
	OnOffer(offer Offer)
	OnAnswer(answer Answer)
	OnCandidates(candidates Candidates)
}

// Signaling is the outer signaling session the task runs on.
type Signaling interface {
	crypto.Sealer
	transport.Signaling

	// SendTaskMessage sends msg to the peer over the current signaling path.
	SendTaskMessage(msg protocol.TaskMessage) error
	// ResetConnection closes the session with code. It must be idempotent.
	ResetConnection(code protocol.CloseCode)
	Role() protocol.Role
}
