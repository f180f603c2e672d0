package task

import (
	"fmt"
	"strings"
)

// Version selects the wire variant of the task.
type Version int

const (
	// V0 is the legacy variant: flat offer/answer and max_packet_size negotiation.
	V0 Version = iota
	// V1 nests offer/answer under their type key.
	V1
)

// Protocol names, also used as the sub-protocol of the signaling channel.
const (
	ProtocolV0 = "v0.webrtc.tasks.saltyrtc.org"
	ProtocolV1 = "v1.webrtc.tasks.saltyrtc.org"
)

// ProtocolName returns the advertised task name of the version.
func (v Version) ProtocolName() string {
	if v == V0 {
		return ProtocolV0
	}
	return ProtocolV1
}

func (v Version) String() string {
	return fmt.Sprintf("v%d", int(v))
}

// ParseVersion accepts "v0", "v1" or a full protocol name.
func ParseVersion(s string) (Version, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "v0", "0", ProtocolV0:
		return V0, nil
	case "v1", "1", ProtocolV1:
		return V1, nil
	}
	return 0, fmt.Errorf("unknown task version %q", s)
}
