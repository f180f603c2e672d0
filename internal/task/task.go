// Package task implements the WebRTC signaling task: negotiation of the
// signaling channel, the offer/answer/candidates exchange and the handover of
// the signaling traffic to a dedicated data channel.
package task

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"sync"

	"github.com/1ureka/webrtc-task/internal/crypto"
	"github.com/1ureka/webrtc-task/internal/protocol"
	"github.com/1ureka/webrtc-task/internal/transport"
	"github.com/1ureka/webrtc-task/internal/util"
)

const loggerName = "SaltyRTC.WebRTC"

// Task is a WebRTC signaling task bound to one signaling session.
//
// It is created by the application, initialised by the signaling layer once
// the peer has accepted it, and then drives the handover: Handover creates
// the signaling transport and announces the switch, and an incoming Handover
// message flushes whatever the transport has queued in the meantime.
type Task struct {
	cfg     Config
	handler MessageHandler

	mu            sync.Mutex
	log           *util.Logger
	initialized   bool
	signaling     Signaling
	exclude       map[uint16]struct{}
	doHandover    bool
	maxPacketSize uint32
	link          *transport.Link
	transport     *transport.SignalingTransport
	closed        bool
}

// New creates a task. handler may be nil when the application only needs the
// handover.
func New(cfg Config, handler MessageHandler) (*Task, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid task config: %w", err)
	}
	exclude := make(map[uint16]struct{}, len(cfg.Exclude))
	for _, id := range cfg.Exclude {
		exclude[id] = struct{}{}
	}
	return &Task{
		cfg:        cfg,
		handler:    handler,
		log:        util.NewLogger(loggerName),
		exclude:    exclude,
		doHandover: cfg.Handover,
	}, nil
}

// ---------------------------------------------------------------------------
// Negotiation
// ---------------------------------------------------------------------------

// Init binds the task to the signaling session and applies the negotiation
// data sent by the peer.
func (t *Task) Init(signaling Signaling, data map[string]any) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.initialized {
		return protocol.IllegalState("task already initialized")
	}
	log := util.NewLogger(loggerName + "." + string(signaling.Role()))

	// Nothing is committed until every field has been validated.
	peerExclude, err := parseExclude(data[FieldExclude])
	if err != nil {
		return err
	}
	exclude := maps.Clone(t.exclude)
	for _, id := range peerExclude {
		exclude[id] = struct{}{}
	}

	peerHandover, err := boolValue(data[FieldHandover], FieldHandover)
	if err != nil {
		return err
	}
	doHandover := t.doHandover
	if doHandover && !peerHandover {
		log.Info("Peer does not support handover, signaling stays on the relayed connection")
		doHandover = false
	}

	var maxPacketSize uint32
	if t.cfg.Version == V0 {
		remote, err := uintValue(data[FieldMaxPacketSize], FieldMaxPacketSize, math.MaxUint32)
		if err != nil {
			return err
		}
		maxPacketSize = resolveMaxPacketSize(t.cfg.MaxPacketSize, uint32(remote))
	}

	var link *transport.Link
	if doHandover {
		id, err := selectChannelID(exclude)
		if err != nil {
			return err
		}
		link = transport.NewLink(id, t.cfg.Version.ProtocolName())
		log.Debug("Selected signaling channel id", "id", id)
	}

	t.log = log
	t.exclude = exclude
	t.doHandover = doHandover
	t.maxPacketSize = maxPacketSize
	t.link = link
	t.signaling = signaling
	t.initialized = true
	return nil
}

// OnPeerHandshakeDone is called by the signaling layer once the peer
// handshake completed.
func (t *Task) OnPeerHandshakeDone() {
	t.logger().Info("Peer handshake done")
}

// Name returns the protocol name the task is advertised under.
func (t *Task) Name() string { return t.cfg.Version.ProtocolName() }

// SupportedMessageTypes returns the task message tags this task handles.
func (t *Task) SupportedMessageTypes() []string {
	return []string{TypeOffer, TypeAnswer, TypeCandidates, TypeHandover}
}

// Data returns the negotiation data sent to the peer.
func (t *Task) Data() map[string]any {
	t.mu.Lock()
	defer t.mu.Unlock()

	exclude := make([]any, 0, len(t.exclude))
	for _, id := range slices.Sorted(maps.Keys(t.exclude)) {
		exclude = append(exclude, id)
	}
	data := map[string]any{
		FieldExclude:  exclude,
		FieldHandover: t.doHandover,
	}
	if t.cfg.Version == V0 {
		data[FieldMaxPacketSize] = t.cfg.MaxPacketSize
	}
	return data
}

// MaxPacketSize returns the negotiated max packet size of the legacy variant.
// ok is false until the task has been initialized.
func (t *Task) MaxPacketSize() (size uint32, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.maxPacketSize, t.initialized
}

// HandoverNegotiated reports whether both peers agreed to hand over.
func (t *Task) HandoverNegotiated() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.initialized && t.doHandover
}

// TransportLink returns the link the application must use to create the
// dedicated signaling channel.
func (t *Task) TransportLink() (*transport.Link, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.initialized {
		return nil, protocol.IllegalState("task has not been initialized")
	}
	if t.link == nil {
		return nil, protocol.IllegalState("handover has not been negotiated")
	}
	return t.link, nil
}

// CreateCryptoContext returns a crypto context for a data channel, encrypting
// with the keys of the signaling session.
func (t *Task) CreateCryptoContext(channelID uint16) (*crypto.Context, error) {
	t.mu.Lock()
	signaling := t.signaling
	t.mu.Unlock()
	if signaling == nil {
		return nil, protocol.IllegalState("task has not been initialized")
	}
	return crypto.New(channelID, signaling)
}

// ---------------------------------------------------------------------------
// Task messages
// ---------------------------------------------------------------------------

// OnTaskMessage dispatches an incoming task message. Unknown and malformed
// messages are logged and dropped.
func (t *Task) OnTaskMessage(msg protocol.TaskMessage) {
	log := t.logger()
	log.Debug("New task message arrived", "type", msg.Type)

	m, err := ParseMessage(t.cfg.Version, msg)
	if err != nil {
		log.Error("Validation failed for incoming message", "type", msg.Type, "error", err)
		return
	}

	switch m := m.(type) {
	case Offer:
		if t.handler != nil {
			t.handler.OnOffer(m)
		}
	case Answer:
		if t.handler != nil {
			t.handler.OnAnswer(m)
		}
	case Candidates:
		if t.handler != nil {
			t.handler.OnCandidates(m)
		}
	case Handover:
		t.onHandover()
	default:
		log.Warn("Received message with unknown type", "type", msg.Type)
	}
}

// SendOffer sends an offer to the responder. Only the initiator may send
// offers.
func (t *Task) SendOffer(offer Offer) error {
	if err := t.requireRole(protocol.RoleInitiator, TypeOffer); err != nil {
		return err
	}
	t.logger().Debug("Sending offer")
	return t.send(offer)
}

// SendAnswer sends an answer to the initiator. Only the responder may send
// answers.
func (t *Task) SendAnswer(answer Answer) error {
	if err := t.requireRole(protocol.RoleResponder, TypeAnswer); err != nil {
		return err
	}
	t.logger().Debug("Sending answer")
	return t.send(answer)
}

func (t *Task) requireRole(role protocol.Role, msgType string) error {
	t.mu.Lock()
	signaling := t.signaling
	t.mu.Unlock()
	if signaling == nil {
		return protocol.IllegalState("task has not been initialized")
	}
	if r := signaling.Role(); r != role {
		return protocol.IllegalState("%s cannot send an %s", r, msgType)
	}
	return nil
}

// SendCandidates sends a batch of ICE candidates to the peer.
func (t *Task) SendCandidates(candidates Candidates) error {
	t.logger().Debug("Sending candidates", "count", len(candidates.Candidates))
	return t.send(candidates)
}

// send forwards m to the signaling layer. A failure resets the connection
// with the code carried by the error.
func (t *Task) send(m Message) error {
	t.mu.Lock()
	signaling := t.signaling
	t.mu.Unlock()
	if signaling == nil {
		return protocol.IllegalState("task has not been initialized")
	}

	if err := signaling.SendTaskMessage(ToTaskMessage(t.cfg.Version, m)); err != nil {
		code := protocol.CloseCodeOf(err)
		t.logger().Error("Could not send task message", "type", m.MessageType(), "error", err)
		signaling.ResetConnection(code)
		return fmt.Errorf("send %s: %w", m.MessageType(), err)
	}
	return nil
}

// SendSignalingMessage sends a signaling message through the dedicated
// channel. The signaling layer calls it once local handover happened.
func (t *Task) SendSignalingMessage(payload []byte) error {
	t.mu.Lock()
	tr := t.transport
	t.mu.Unlock()
	if tr == nil {
		return protocol.IllegalState("no signaling transport")
	}
	return tr.Send(payload)
}

// ---------------------------------------------------------------------------
// Handover
// ---------------------------------------------------------------------------

// Handover starts moving the signaling traffic to the dedicated channel
// behind handler. The channel must have been created from TransportLink.
func (t *Task) Handover(handler transport.Handler) error {
	t.mu.Lock()
	if !t.initialized {
		t.mu.Unlock()
		return protocol.IllegalState("task has not been initialized")
	}
	if !t.doHandover {
		t.mu.Unlock()
		return protocol.IllegalState("handover has not been negotiated")
	}
	if t.closed {
		t.mu.Unlock()
		return protocol.IllegalState("task closed")
	}
	if t.transport != nil || t.signaling.HandoverState().Local() {
		t.mu.Unlock()
		return protocol.IllegalState("handover already requested")
	}

	// The transport reads the peer flag when it is created, so both happen
	// under mu together with onHandover's update of that flag.
	ctx, err := crypto.New(t.link.ID(), t.signaling)
	if err != nil {
		t.mu.Unlock()
		return err
	}
	tr, err := transport.New(t.link, handler, t, t.signaling, ctx, t.cfg.MaxChunkLength)
	if err != nil {
		t.mu.Unlock()
		return err
	}
	t.transport = tr
	signaling, log := t.signaling, t.log
	t.mu.Unlock()

	log.Info("Initiating handover", "channel", t.link.ID())
	if err := t.send(Handover{}); err != nil {
		return err
	}
	signaling.HandoverState().SetLocal()
	if signaling.HandoverState().All() {
		log.Info("Handover to the dedicated channel finished")
	}
	return nil
}

func (t *Task) onHandover() {
	t.mu.Lock()
	signaling, log := t.signaling, t.log
	if !t.initialized {
		t.mu.Unlock()
		log.Error("Received handover message before initialization")
		return
	}
	if !t.doHandover {
		t.mu.Unlock()
		log.Error("Received handover message although handover has not been negotiated")
		signaling.ResetConnection(protocol.CloseProtocolError)
		return
	}
	if !signaling.HandoverState().SetPeer() {
		t.mu.Unlock()
		log.Warn("Handover already received")
		return
	}
	tr := t.transport
	t.mu.Unlock()

	if tr != nil {
		if err := tr.FlushMessageQueue(); err != nil {
			log.Error("Unable to flush signaling message queue", "error", err)
		}
	}
	if signaling.HandoverState().All() {
		log.Info("Handover to the dedicated channel finished")
	}
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// Close tears down the signaling transport and resets the signaling
// connection with code. Subsequent calls do nothing.
func (t *Task) Close(code protocol.CloseCode) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	tr, signaling, log := t.transport, t.signaling, t.log
	t.mu.Unlock()

	log.Info("Closing task", "code", code)
	if tr != nil && !tr.IsClosed() {
		tr.Close()
	}
	if signaling != nil {
		signaling.ResetConnection(code)
	}
}

// Closed reports whether Close has been called.
func (t *Task) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *Task) logger() *util.Logger {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.log
}
