package protocol

import (
	"encoding/binary"
	"fmt"
)

// EncodeNonce serializes a Nonce into its 24-byte wire form.
func EncodeNonce(n Nonce) []byte {
	buf := make([]byte, NonceLength)
	copy(buf[0:16], n.Cookie[:])
	binary.BigEndian.PutUint16(buf[16:18], n.ChannelID)
	binary.BigEndian.PutUint16(buf[18:20], n.Overflow)
	binary.BigEndian.PutUint32(buf[20:24], n.Sequence)
	return buf
}

// DecodeNonce deserializes the first 24 bytes of data into a Nonce.
func DecodeNonce(data []byte) (Nonce, error) {
	if len(data) < NonceLength {
		return Nonce{}, &ValidationError{
			Reason: fmt.Sprintf("%s: %d bytes (need at least %d)", ErrBufferTooShort, len(data), NonceLength),
			Err:    ErrBufferTooShort,
		}
	}
	var cookie [CookieLength]byte
	copy(cookie[:], data[0:16])
	return NewNonce(
		cookie,
		binary.BigEndian.Uint16(data[16:18]),
		binary.BigEndian.Uint16(data[18:20]),
		binary.BigEndian.Uint32(data[20:24]),
	)
}
