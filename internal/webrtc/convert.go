package webrtc

import (
	"fmt"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/webrtc-task/internal/task"
)

// CandidateFromICE converts a pion candidate into its task representation.
func CandidateFromICE(init webrtc.ICECandidateInit) *task.Candidate {
	c := &task.Candidate{SDP: init.Candidate}
	if init.SDPMid != nil {
		mid := *init.SDPMid
		c.SDPMid = &mid
	}
	if init.SDPMLineIndex != nil {
		index := *init.SDPMLineIndex
		c.SDPMLineIndex = &index
	}
	return c
}

// CandidateToICE converts a task candidate into a pion candidate.
func CandidateToICE(c *task.Candidate) webrtc.ICECandidateInit {
	init := webrtc.ICECandidateInit{Candidate: c.SDP}
	if c.SDPMid != nil {
		mid := *c.SDPMid
		init.SDPMid = &mid
	}
	if c.SDPMLineIndex != nil {
		index := *c.SDPMLineIndex
		init.SDPMLineIndex = &index
	}
	return init
}

// OfferFromDescription extracts the SDP of an offer.
func OfferFromDescription(sd webrtc.SessionDescription) (task.Offer, error) {
	if sd.Type != webrtc.SDPTypeOffer {
		return task.Offer{}, fmt.Errorf("session description is not an offer, but %s", sd.Type)
	}
	return task.Offer{SDP: sd.SDP}, nil
}

// AnswerFromDescription extracts the SDP of an answer.
func AnswerFromDescription(sd webrtc.SessionDescription) (task.Answer, error) {
	if sd.Type != webrtc.SDPTypeAnswer {
		return task.Answer{}, fmt.Errorf("session description is not an answer, but %s", sd.Type)
	}
	return task.Answer{SDP: sd.SDP}, nil
}

// OfferToDescription builds the pion session description of an offer.
func OfferToDescription(offer task.Offer) webrtc.SessionDescription {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: offer.SDP}
}

// AnswerToDescription builds the pion session description of an answer.
func AnswerToDescription(answer task.Answer) webrtc.SessionDescription {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: answer.SDP}
}
