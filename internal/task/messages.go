package task

import (
	"math"

	"github.com/1ureka/webrtc-task/internal/protocol"
)

// Task message type tags.
const (
	TypeOffer      = "offer"
	TypeAnswer     = "answer"
	TypeCandidates = "candidates"
	TypeHandover   = "handover"
)

// Payload field names.
const (
	fieldType          = "type"
	fieldSDP           = "sdp"
	fieldCandidates    = "candidates"
	fieldCandidate     = "candidate"
	fieldSDPMid        = "sdpMid"
	fieldSDPMLineIndex = "sdpMLineIndex"
)

// Message is one of Offer, Answer, Candidates, Handover or Unknown.
type Message interface {
	MessageType() string
}

// Offer carries the initiator's session description.
type Offer struct {
	SDP string
}

// Answer carries the responder's session description.
type Answer struct {
	SDP string
}

// Candidate is a single ICE candidate. Nil fields are sent as null.
type Candidate struct {
	SDP           string
	SDPMid        *string
	SDPMLineIndex *uint16
}

// Candidates carries a batch of ICE candidates. Nil entries are kept as they
// are: they mark the end of candidates.
type Candidates struct {
	Candidates []*Candidate
}

// Handover announces that the sender switched its outgoing signaling traffic
// to the dedicated channel.
type Handover struct{}

// Unknown is a message with a type tag this task does not handle.
type Unknown struct {
	Tag  string
	Data map[string]any
}

func (Offer) MessageType() string      { return TypeOffer }
func (Answer) MessageType() string     { return TypeAnswer }
func (Candidates) MessageType() string { return TypeCandidates }
func (Handover) MessageType() string   { return TypeHandover }
func (u Unknown) MessageType() string  { return u.Tag }

// ToTaskMessage wraps m into the wire representation of version v.
func ToTaskMessage(v Version, m Message) protocol.TaskMessage {
	switch m := m.(type) {
	case Offer:
		return sessionDescription(v, TypeOffer, m.SDP)
	case Answer:
		return sessionDescription(v, TypeAnswer, m.SDP)
	case Candidates:
		list := make([]any, len(m.Candidates))
		for i, c := range m.Candidates {
			if c == nil {
				continue
			}
			entry := map[string]any{
				fieldCandidate:     c.SDP,
				fieldSDPMid:        nil,
				fieldSDPMLineIndex: nil,
			}
			if c.SDPMid != nil {
				entry[fieldSDPMid] = *c.SDPMid
			}
			if c.SDPMLineIndex != nil {
				entry[fieldSDPMLineIndex] = *c.SDPMLineIndex
			}
			list[i] = entry
		}
		return protocol.TaskMessage{Type: TypeCandidates, Data: map[string]any{fieldCandidates: list}}
	case Handover:
		return protocol.TaskMessage{Type: TypeHandover, Data: map[string]any{}}
	case Unknown:
		return protocol.TaskMessage{Type: m.Tag, Data: m.Data}
	}
	panic("task: unsupported message type")
}

func sessionDescription(v Version, tag, sdp string) protocol.TaskMessage {
	inner := map[string]any{fieldType: tag, fieldSDP: sdp}
	if v == V0 {
		return protocol.TaskMessage{Type: tag, Data: inner}
	}
	return protocol.TaskMessage{Type: tag, Data: map[string]any{tag: inner}}
}

// ParseMessage decodes a task message of version v. Unknown tags decode into
// Unknown. Malformed payloads return a *protocol.ValidationError.
func ParseMessage(v Version, msg protocol.TaskMessage) (Message, error) {
	switch msg.Type {
	case TypeOffer:
		sdp, err := parseSessionDescription(v, TypeOffer, msg.Data)
		if err != nil {
			return nil, err
		}
		return Offer{SDP: sdp}, nil
	case TypeAnswer:
		sdp, err := parseSessionDescription(v, TypeAnswer, msg.Data)
		if err != nil {
			return nil, err
		}
		return Answer{SDP: sdp}, nil
	case TypeCandidates:
		return parseCandidates(msg.Data)
	case TypeHandover:
		return Handover{}, nil
	}
	return Unknown{Tag: msg.Type, Data: msg.Data}, nil
}

func parseSessionDescription(v Version, tag string, data map[string]any) (string, error) {
	inner := data
	if v != V0 {
		var err error
		if inner, err = mapValue(data[tag], tag); err != nil {
			return "", err
		}
	}
	typ, err := stringValue(inner[fieldType], fieldType)
	if err != nil {
		return "", err
	}
	if typ != tag {
		return "", protocol.Validationf("%s must be %q, got %q", fieldType, tag, typ)
	}
	return stringValue(inner[fieldSDP], fieldSDP)
}

func parseCandidates(data map[string]any) (Candidates, error) {
	list, err := listValue(data[fieldCandidates], fieldCandidates)
	if err != nil {
		return Candidates{}, err
	}

	candidates := make([]*Candidate, len(list))
	for i, raw := range list {
		if raw == nil {
			continue
		}
		entry, err := mapValue(raw, fieldCandidate)
		if err != nil {
			return Candidates{}, err
		}

		c := &Candidate{}
		if c.SDP, err = stringValue(entry[fieldCandidate], fieldCandidate); err != nil {
			return Candidates{}, err
		}
		if mid := entry[fieldSDPMid]; mid != nil {
			s, err := stringValue(mid, fieldSDPMid)
			if err != nil {
				return Candidates{}, err
			}
			c.SDPMid = &s
		}
		if index := entry[fieldSDPMLineIndex]; index != nil {
			n, err := uintValue(index, fieldSDPMLineIndex, math.MaxUint16)
			if err != nil {
				return Candidates{}, err
			}
			idx := uint16(n)
			c.SDPMLineIndex = &idx
		}
		candidates[i] = c
	}
	return Candidates{Candidates: candidates}, nil
}
