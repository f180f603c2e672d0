package protocol

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cookieOf(b byte) [CookieLength]byte {
	var c [CookieLength]byte
	for i := range c {
		c[i] = b
	}
	return c
}

// TestNonceRoundTrip verifies that EncodeNonce and DecodeNonce are inverse
// operations over the boundary values of every field.
func TestNonceRoundTrip(t *testing.T) {
	testCases := []struct {
		name  string
		nonce Nonce
	}{
		{"zero", Nonce{}},
		{"max fields", Nonce{Cookie: cookieOf(0xff), ChannelID: MaxChannelID, Overflow: math.MaxUint16, Sequence: math.MaxUint32}},
		{"mixed", Nonce{Cookie: cookieOf(0x42), ChannelID: 1337, Overflow: 7, Sequence: 0xDEADBEEF}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			encoded := EncodeNonce(tc.nonce)
			require.Len(t, encoded, NonceLength)

			decoded, err := DecodeNonce(encoded)
			require.NoError(t, err)
			assert.Equal(t, tc.nonce, decoded)
			assert.Equal(t, encoded, EncodeNonce(decoded))
		})
	}
}

// TestNonceLayout pins the big-endian wire layout.
func TestNonceLayout(t *testing.T) {
	cookie := cookieOf(0x01)
	n := Nonce{Cookie: cookie, ChannelID: 0x0539, Overflow: 0x0102, Sequence: 0x0A0B0C0D}
	want := append(make([]byte, 0, NonceLength), cookie[:]...)
	want = append(want, 0x05, 0x39, 0x01, 0x02, 0x0A, 0x0B, 0x0C, 0x0D)
	assert.Equal(t, want, EncodeNonce(n))
}

func TestDecodeNonceTooShort(t *testing.T) {
	for _, size := range []int{0, 1, NonceLength - 1} {
		_, err := DecodeNonce(make([]byte, size))
		require.Error(t, err)

		var valErr *ValidationError
		assert.True(t, errors.As(err, &valErr), "size %d", size)
		assert.ErrorIs(t, err, ErrBufferTooShort)
	}
}

// TestDecodeNonceIgnoresTrailingData verifies that only the first 24 bytes
// are consumed.
func TestDecodeNonceIgnoresTrailingData(t *testing.T) {
	n := Nonce{Cookie: cookieOf(0x09), ChannelID: 3, Sequence: 99}
	data := append(EncodeNonce(n), 1, 2, 3)

	decoded, err := DecodeNonce(data)
	require.NoError(t, err)
	assert.Equal(t, n, decoded)
}

func TestNonceRejectsReservedChannelID(t *testing.T) {
	_, err := NewNonce(cookieOf(0), InvalidChannelID, 0, 0)
	assert.ErrorIs(t, err, ErrInvalidChannelID)

	encoded := EncodeNonce(Nonce{ChannelID: InvalidChannelID})
	_, err = DecodeNonce(encoded)
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "channel id must be between 0 and 65534", valErr.Reason)
}

func TestNonceCombinedSequence(t *testing.T) {
	n := Nonce{Overflow: 2, Sequence: 5}
	assert.Equal(t, uint64(2)<<32|5, n.CombinedSequence().Value())
}

func TestDecodeBox(t *testing.T) {
	box := Box{Nonce: EncodeNonce(Nonce{ChannelID: 1}), Data: []byte{1, 2, 3}}

	decoded, err := DecodeBox(box.Bytes(), NonceLength)
	require.NoError(t, err)
	assert.Equal(t, box, decoded)

	_, err = DecodeBox(make([]byte, 10), NonceLength)
	assert.ErrorIs(t, err, ErrBufferTooShort)
}
