package crypto

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1ureka/webrtc-task/internal/protocol"
)

// plainSealer frames data with the nonce without encrypting it.
type plainSealer struct {
	failEncrypt bool
}

func (s plainSealer) EncryptForPeer(data, nonce []byte) (protocol.Box, error) {
	if s.failEncrypt {
		return protocol.Box{}, errors.New("sealer broken")
	}
	return protocol.Box{Nonce: nonce, Data: data}, nil
}

func (plainSealer) DecryptFromPeer(box protocol.Box) ([]byte, error) {
	return box.Data, nil
}

const channelID = 1337

func newContext(t *testing.T) *Context {
	t.Helper()
	ctx, err := New(channelID, plainSealer{})
	require.NoError(t, err)
	return ctx
}

func peerBox(t *testing.T, cookie Cookie, channel uint16, overflow uint16, sequence uint32) protocol.Box {
	t.Helper()
	nonce, err := protocol.NewNonce(cookie, channel, overflow, sequence)
	require.NoError(t, err)
	return protocol.Box{Nonce: protocol.EncodeNonce(nonce), Data: []byte("payload")}
}

func TestEncryptBuildsNonce(t *testing.T) {
	ctx := newContext(t)

	for want := uint32(1); want <= 3; want++ {
		box, err := ctx.Encrypt([]byte{1, 2, 3})
		require.NoError(t, err)

		nonce, err := protocol.DecodeNonce(box.Nonce)
		require.NoError(t, err)
		assert.Equal(t, [protocol.CookieLength]byte(ctx.Cookie()), nonce.Cookie)
		assert.Equal(t, uint16(channelID), nonce.ChannelID)
		assert.Equal(t, uint16(0), nonce.Overflow)
		assert.Equal(t, want, nonce.Sequence)
		assert.Equal(t, []byte{1, 2, 3}, box.Data)
	}
}

func TestEncryptOverflow(t *testing.T) {
	ctx := newContext(t)
	ctx.csn = protocol.NewCSNGeneratorFrom(protocol.CombinedSequence{Overflow: math.MaxUint16, Sequence: math.MaxUint32})

	_, err := ctx.Encrypt([]byte{1})
	var overflowErr *protocol.OverflowError
	assert.ErrorAs(t, err, &overflowErr)
}

func TestEncryptSealerFailure(t *testing.T) {
	ctx, err := New(channelID, plainSealer{failEncrypt: true})
	require.NoError(t, err)

	_, err = ctx.Encrypt([]byte{1})
	assert.ErrorContains(t, err, "sealer broken")
}

func TestDecryptValid(t *testing.T) {
	ctx := newContext(t)
	peer, err := NewCookie()
	require.NoError(t, err)

	data, err := ctx.Decrypt(peerBox(t, peer, channelID, 0, 42))
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)
}

func TestDecryptTooShort(t *testing.T) {
	ctx := newContext(t)

	_, err := ctx.Decrypt(protocol.Box{Nonce: make([]byte, 10)})
	var valErr *protocol.ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.ErrorIs(t, err, protocol.ErrBufferTooShort)
}

func TestDecryptCookieReflection(t *testing.T) {
	ctx := newContext(t)

	// Our own outgoing traffic reflected back at us.
	box, err := ctx.Encrypt([]byte("hello"))
	require.NoError(t, err)

	_, err = ctx.Decrypt(box)
	assert.ErrorIs(t, err, protocol.ErrCookieReflection)
}

func TestDecryptCookieChanged(t *testing.T) {
	ctx := newContext(t)
	first, err := NewCookie()
	require.NoError(t, err)
	second, err := NewCookie()
	require.NoError(t, err)

	_, err = ctx.Decrypt(peerBox(t, first, channelID, 0, 1))
	require.NoError(t, err)

	_, err = ctx.Decrypt(peerBox(t, second, channelID, 0, 2))
	assert.ErrorIs(t, err, protocol.ErrCookieChanged)
}

func TestDecryptCSNReuse(t *testing.T) {
	ctx := newContext(t)
	peer, err := NewCookie()
	require.NoError(t, err)
	box := peerBox(t, peer, channelID, 0, 7)

	_, err = ctx.Decrypt(box)
	require.NoError(t, err)

	_, err = ctx.Decrypt(box)
	assert.ErrorIs(t, err, protocol.ErrCSNReuse)
}

// TestDecryptToleratesUnorderedCSN verifies that only exact repeats are
// rejected, not a CSN lower than the previous one.
func TestDecryptToleratesUnorderedCSN(t *testing.T) {
	ctx := newContext(t)
	peer, err := NewCookie()
	require.NoError(t, err)

	for _, seq := range []uint32{5, 3, 4, 3} {
		_, err := ctx.Decrypt(peerBox(t, peer, channelID, 0, seq))
		require.NoError(t, err, "sequence %d", seq)
	}
}

func TestDecryptChannelIDMismatch(t *testing.T) {
	ctx := newContext(t)
	peer, err := NewCookie()
	require.NoError(t, err)

	_, err = ctx.Decrypt(peerBox(t, peer, channelID+1, 0, 1))
	assert.ErrorIs(t, err, protocol.ErrChannelIDMismatch)

	// A rejected message does not count as the last seen CSN.
	_, err = ctx.Decrypt(peerBox(t, peer, channelID, 0, 1))
	assert.NoError(t, err)
}

func TestNewRejectsReservedChannelID(t *testing.T) {
	_, err := New(protocol.InvalidChannelID, plainSealer{})
	assert.ErrorIs(t, err, protocol.ErrInvalidChannelID)
}
