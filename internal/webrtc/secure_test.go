package webrtc

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1ureka/webrtc-task/internal/chunk"
	"github.com/1ureka/webrtc-task/internal/crypto"
	"github.com/1ureka/webrtc-task/internal/protocol"
	"github.com/1ureka/webrtc-task/internal/task"
)

// plainSealer frames data with the nonce without encrypting it.
type plainSealer struct {
	failDecrypt bool
}

func (s plainSealer) EncryptForPeer(data, nonce []byte) (protocol.Box, error) {
	return protocol.Box{Nonce: nonce, Data: data}, nil
}

func (s plainSealer) DecryptFromPeer(box protocol.Box) ([]byte, error) {
	if s.failDecrypt {
		return nil, errors.New("bad box")
	}
	return box.Data, nil
}

type fakeTask struct {
	sealer        plainSealer
	maxPacketSize uint32
	uninitialized bool
}

func (t fakeTask) CreateCryptoContext(channelID uint16) (*crypto.Context, error) {
	return crypto.New(channelID, t.sealer)
}

func (t fakeTask) MaxPacketSize() (uint32, bool) {
	return t.maxPacketSize, !t.uninitialized
}

// fakeDataChannel delivers everything sent on it to its peer synchronously.
type fakeDataChannel struct {
	id        *uint16
	peer      *fakeDataChannel
	onMessage func(webrtc.DataChannelMessage)

	mu     sync.Mutex
	sent   [][]byte
	closed bool
}

func newFakeDataChannel(id uint16) *fakeDataChannel {
	return &fakeDataChannel{id: &id}
}

func (d *fakeDataChannel) ID() *uint16   { return d.id }
func (d *fakeDataChannel) Label() string { return "app" }
func (d *fakeDataChannel) OnMessage(f func(msg webrtc.DataChannelMessage)) {
	d.onMessage = f
}

func (d *fakeDataChannel) Send(data []byte) error {
	d.mu.Lock()
	d.sent = append(d.sent, bytes.Clone(data))
	d.mu.Unlock()
	if d.peer != nil && d.peer.onMessage != nil {
		d.peer.onMessage(webrtc.DataChannelMessage{Data: bytes.Clone(data)})
	}
	return nil
}

func (d *fakeDataChannel) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *fakeDataChannel) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

type received struct {
	mu       sync.Mutex
	messages [][]byte
}

func (r *received) add(data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, data)
}

func (r *received) all() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.messages
}

// newSecurePair links two secure channels with the given ids.
func newSecurePair(t *testing.T, idA, idB uint16, taskA, taskB fakeTask) (*SecureChannel, *fakeDataChannel, *SecureChannel, *fakeDataChannel, *received) {
	t.Helper()
	rawA, rawB := newFakeDataChannel(idA), newFakeDataChannel(idB)
	rawA.peer, rawB.peer = rawB, rawA

	a, err := newSecureChannel(rawA, taskA)
	require.NoError(t, err)
	b, err := newSecureChannel(rawB, taskB)
	require.NoError(t, err)

	got := &received{}
	b.OnMessage(got.add)
	return a, rawA, b, rawB, got
}

func TestSecureChannelRoundTrip(t *testing.T) {
	tk := fakeTask{maxPacketSize: 20}
	a, rawA, b, _, got := newSecurePair(t, 7, 7, tk, tk)
	assert.Equal(t, uint16(7), a.ID())
	assert.Equal(t, "app", a.Label())
	assert.Equal(t, 20, a.ChunkLength())

	message := bytes.Repeat([]byte{0xAB}, 100)
	require.NoError(t, a.Send(message))
	require.NoError(t, a.Send([]byte("second")))

	require.Len(t, got.all(), 2)
	assert.Equal(t, message, got.all()[0])
	assert.Equal(t, []byte("second"), got.all()[1])

	// 24 byte nonce + 100 byte payload in chunks of 11 payload bytes, then
	// 24 + 6 bytes for the second message.
	require.Len(t, rawA.sent, 12+3)
	for i, c := range rawA.sent {
		assert.LessOrEqual(t, len(c), 20, "chunk %d", i)
	}
	assert.Equal(t, byte(0), rawA.sent[11][4])
	assert.Equal(t, byte(1), rawA.sent[12][4])
	assert.False(t, b.Closed())
}

func TestSecureChannelChunkLength(t *testing.T) {
	a, err := newSecureChannel(newFakeDataChannel(1), fakeTask{maxPacketSize: 0})
	require.NoError(t, err)
	assert.Equal(t, task.DefaultMaxPacketSize, a.ChunkLength())

	_, err = newSecureChannel(newFakeDataChannel(1), fakeTask{maxPacketSize: chunk.HeaderLength})
	assert.Error(t, err)

	_, err = newSecureChannel(newFakeDataChannel(1), fakeTask{uninitialized: true})
	var stateErr *protocol.IllegalStateError
	assert.ErrorAs(t, err, &stateErr)

	_, err = newSecureChannel(&fakeDataChannel{}, fakeTask{})
	assert.Error(t, err)
}

func TestSecureChannelClosesOnChannelIDMismatch(t *testing.T) {
	tk := fakeTask{maxPacketSize: 64}
	a, _, b, rawB, got := newSecurePair(t, 5, 6, tk, tk)

	require.NoError(t, a.Send([]byte("hello")))

	assert.Empty(t, got.all())
	assert.True(t, b.Closed())
	assert.True(t, rawB.isClosed())
}

func TestSecureChannelClosesOnInvalidChunk(t *testing.T) {
	tk := fakeTask{maxPacketSize: 64}
	_, _, b, rawB, got := newSecurePair(t, 5, 5, tk, tk)

	rawB.onMessage(webrtc.DataChannelMessage{Data: []byte{1, 2}})

	assert.Empty(t, got.all())
	assert.True(t, b.Closed())
	assert.True(t, rawB.isClosed())
}

func TestSecureChannelDropsUndecryptableData(t *testing.T) {
	a, _, b, rawB, got := newSecurePair(t, 5, 5,
		fakeTask{maxPacketSize: 64},
		fakeTask{maxPacketSize: 64, sealer: plainSealer{failDecrypt: true}})

	require.NoError(t, a.Send([]byte("hello")))

	assert.Empty(t, got.all())
	assert.False(t, b.Closed())
	assert.False(t, rawB.isClosed())
}

func TestSecureChannelSendAfterClose(t *testing.T) {
	tk := fakeTask{maxPacketSize: 64}
	a, rawA, _, _, _ := newSecurePair(t, 5, 5, tk, tk)

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
	assert.True(t, rawA.isClosed())
	assert.ErrorIs(t, a.Send([]byte("late")), ErrChannelClosed)
	assert.Empty(t, rawA.sent)
}
