package protocol

import "fmt"

// Box is an encrypted payload together with the nonce it was sealed with.
// On the wire it is framed as nonce ‖ data.
type Box struct {
	Nonce []byte
	Data  []byte
}

// Bytes returns the wire framing nonce ‖ data.
func (b Box) Bytes() []byte {
	buf := make([]byte, 0, len(b.Nonce)+len(b.Data))
	buf = append(buf, b.Nonce...)
	return append(buf, b.Data...)
}

// DecodeBox splits a framed box whose nonce is nonceLength bytes long.
func DecodeBox(data []byte, nonceLength int) (Box, error) {
	if len(data) < nonceLength {
		return Box{}, &ValidationError{
			Reason: fmt.Sprintf("%s: box of %d bytes (nonce needs %d)", ErrBufferTooShort, len(data), nonceLength),
			Err:    ErrBufferTooShort,
		}
	}
	box := Box{
		Nonce: make([]byte, nonceLength),
		Data:  make([]byte, len(data)-nonceLength),
	}
	copy(box.Nonce, data[:nonceLength])
	copy(box.Data, data[nonceLength:])
	return box, nil
}
