// Package webrtc binds the task to pion: it creates the PeerConnection,
// trickles candidates through the task, and opens the negotiated signaling
// data channel described by the task's transport link.
package webrtc

import (
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/webrtc-task/internal/task"
	"github.com/1ureka/webrtc-task/internal/util"
)

// DefaultSTUNServers are used for ICE candidate gathering. No TURN: the tool
// is designed for direct P2P connectivity with zero infrastructure cost.
var DefaultSTUNServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
}

// Peer wraps a PeerConnection and speaks the task's message types.
type Peer struct {
	pc        *webrtc.PeerConnection
	connected chan struct{}
	failed    chan struct{}
	once      sync.Once
	failOnce  sync.Once
}

// NewPeer creates a PeerConnection using the given STUN servers.
func NewPeer(stunServers []string) (*Peer, error) {
	config := webrtc.Configuration{}
	if len(stunServers) > 0 {
		config.ICEServers = []webrtc.ICEServer{{URLs: stunServers}}
	}
	pc, err := webrtc.NewPeerConnection(config)
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	p := &Peer{
		pc:        pc,
		connected: make(chan struct{}),
		failed:    make(chan struct{}),
	}
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		util.LogDebug("peer connection state: %s", state)
		switch state {
		case webrtc.PeerConnectionStateConnected:
			p.once.Do(func() { close(p.connected) })
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			p.failOnce.Do(func() { close(p.failed) })
		}
	})
	return p, nil
}

// PeerConnection returns the underlying pion PeerConnection.
func (p *Peer) PeerConnection() *webrtc.PeerConnection { return p.pc }

// Connected is closed once the peer connection is established.
func (p *Peer) Connected() <-chan struct{} { return p.connected }

// Failed is closed when the peer connection failed or was closed.
func (p *Peer) Failed() <-chan struct{} { return p.failed }

// OnCandidates registers fn for every gathered local candidate. The end of
// gathering is reported as a single nil entry.
func (p *Peer) OnCandidates(fn func(task.Candidates)) {
	p.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			fn(task.Candidates{Candidates: []*task.Candidate{nil}})
			return
		}
		fn(task.Candidates{Candidates: []*task.Candidate{CandidateFromICE(c.ToJSON())}})
	})
}

// CreateOffer creates an offer and sets it as local description.
func (p *Peer) CreateOffer() (task.Offer, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return task.Offer{}, fmt.Errorf("CreateOffer: %w", err)
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return task.Offer{}, fmt.Errorf("SetLocalDescription: %w", err)
	}
	return OfferFromDescription(offer)
}

// AcceptOffer applies the remote offer and returns the local answer.
func (p *Peer) AcceptOffer(offer task.Offer) (task.Answer, error) {
	if err := p.pc.SetRemoteDescription(OfferToDescription(offer)); err != nil {
		return task.Answer{}, fmt.Errorf("SetRemoteDescription: %w", err)
	}
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return task.Answer{}, fmt.Errorf("CreateAnswer: %w", err)
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return task.Answer{}, fmt.Errorf("SetLocalDescription: %w", err)
	}
	return AnswerFromDescription(answer)
}

// AcceptAnswer applies the remote answer.
func (p *Peer) AcceptAnswer(answer task.Answer) error {
	if err := p.pc.SetRemoteDescription(AnswerToDescription(answer)); err != nil {
		return fmt.Errorf("SetRemoteDescription: %w", err)
	}
	return nil
}

// AddCandidates adds remote candidates. Nil entries are skipped.
func (p *Peer) AddCandidates(candidates task.Candidates) error {
	for _, c := range candidates.Candidates {
		if c == nil {
			continue
		}
		if err := p.pc.AddICECandidate(CandidateToICE(c)); err != nil {
			return fmt.Errorf("AddICECandidate: %w", err)
		}
	}
	return nil
}

// Close closes the peer connection.
func (p *Peer) Close() error {
	return p.pc.Close()
}
