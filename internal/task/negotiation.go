package task

import (
	"math"

	"github.com/1ureka/webrtc-task/internal/protocol"
)

// Negotiation data fields.
const (
	FieldExclude       = "exclude"
	FieldHandover      = "handover"
	FieldMaxPacketSize = "max_packet_size"
)

// parseExclude reads the data channel ids the peer reserved.
func parseExclude(v any) ([]uint16, error) {
	switch ids := v.(type) {
	case []uint16:
		return ids, nil
	case nil:
		return nil, protocol.Validationf("%s field must not be null", FieldExclude)
	}
	list, err := listValue(v, FieldExclude)
	if err != nil {
		return nil, err
	}
	ids := make([]uint16, 0, len(list))
	for _, raw := range list {
		id, err := uintValue(raw, FieldExclude, math.MaxUint16)
		if err != nil {
			return nil, err
		}
		ids = append(ids, uint16(id))
	}
	return ids, nil
}

// selectChannelID returns the lowest channel id not in exclude.
func selectChannelID(exclude map[uint16]struct{}) (uint16, error) {
	for id := 0; id <= int(protocol.MaxChannelID); id++ {
		if _, ok := exclude[uint16(id)]; !ok {
			return uint16(id), nil
		}
	}
	return 0, protocol.Validationf("exclude list is too big, no free data channel id can be found")
}

// resolveMaxPacketSize merges both announced values: 0 defers to the other
// side, otherwise the smaller one wins.
func resolveMaxPacketSize(local, remote uint32) uint32 {
	switch {
	case local == 0:
		return remote
	case remote == 0:
		return local
	}
	return min(local, remote)
}
