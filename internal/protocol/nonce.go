// Package protocol defines the wire structures and shared state of the WebRTC
// signaling task: the data channel nonce, combined sequence numbers, boxes,
// close codes, signaling/handover state and the error taxonomy.
package protocol

// Nonce layout sizes.
const (
	CookieLength = 16
	NonceLength  = 24 // Cookie(16) + ChannelID(2) + Overflow(2) + Sequence(4)

	// InvalidChannelID is reserved and never assigned to a channel.
	InvalidChannelID uint16 = 65535
	// MaxChannelID is the highest usable channel id.
	MaxChannelID uint16 = 65534
)

// Nonce is the 24-byte data channel nonce:
//
//	|CCCCCCCCCCCCCCCC|DD|OO|QQQQ|
//
// C: cookie, D: data channel id, O: overflow number, Q: sequence number.
// All integers are big-endian.
type Nonce struct {
	Cookie    [CookieLength]byte
	ChannelID uint16
	Overflow  uint16
	Sequence  uint32
}

// NewNonce validates its arguments and returns a nonce.
func NewNonce(cookie [CookieLength]byte, channelID uint16, overflow uint16, sequence uint32) (Nonce, error) {
	if channelID > MaxChannelID {
		return Nonce{}, NewValidationError(ErrInvalidChannelID)
	}
	return Nonce{
		Cookie:    cookie,
		ChannelID: channelID,
		Overflow:  overflow,
		Sequence:  sequence,
	}, nil
}

// CombinedSequence returns the 48-bit combined sequence number of the nonce.
func (n Nonce) CombinedSequence() CombinedSequence {
	return CombinedSequence{Overflow: n.Overflow, Sequence: n.Sequence}
}
