package app

import (
	"sync"

	"github.com/1ureka/webrtc-task/internal/task"
	"github.com/1ureka/webrtc-task/internal/util"
)

// peerConn is the part of the peer connection the task messages act on.
type peerConn interface {
	AcceptOffer(offer task.Offer) (task.Answer, error)
	AcceptAnswer(answer task.Answer) error
	AddCandidates(candidates task.Candidates) error
}

// answerSender sends the local answer back to the initiator.
type answerSender interface {
	SendAnswer(answer task.Answer) error
}

// bridge applies incoming task messages to the peer connection. Remote
// candidates are held back until the remote description is set.
type bridge struct {
	peer      peerConn
	initiator bool

	mu        sync.Mutex
	task      answerSender
	remoteSet bool
	pending   []task.Candidates
}

func newBridge(peer peerConn, initiator bool) *bridge {
	return &bridge{peer: peer, initiator: initiator}
}

func (b *bridge) bind(t answerSender) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.task = t
}

func (b *bridge) OnOffer(offer task.Offer) {
	if b.initiator {
		util.LogWarning("ignoring offer: the initiator sends the offer")
		return
	}
	answer, err := b.peer.AcceptOffer(offer)
	if err != nil {
		util.LogError("failed to accept offer: %v", err)
		return
	}
	b.remoteReady()

	b.mu.Lock()
	t := b.task
	b.mu.Unlock()
	if err := t.SendAnswer(answer); err != nil {
		util.LogError("failed to send answer: %v", err)
	}
}

func (b *bridge) OnAnswer(answer task.Answer) {
	if !b.initiator {
		util.LogWarning("ignoring answer: the responder sends the answer")
		return
	}
	if err := b.peer.AcceptAnswer(answer); err != nil {
		util.LogError("failed to accept answer: %v", err)
		return
	}
	b.remoteReady()
}

func (b *bridge) OnCandidates(candidates task.Candidates) {
	b.mu.Lock()
	if !b.remoteSet {
		b.pending = append(b.pending, candidates)
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()
	b.addCandidates(candidates)
}

func (b *bridge) remoteReady() {
	b.mu.Lock()
	pending := b.pending
	b.pending = nil
	b.remoteSet = true
	b.mu.Unlock()

	for _, c := range pending {
		b.addCandidates(c)
	}
}

func (b *bridge) addCandidates(candidates task.Candidates) {
	if err := b.peer.AddCandidates(candidates); err != nil {
		util.LogWarning("failed to add remote candidates: %v", err)
	}
}
