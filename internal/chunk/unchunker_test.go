package chunk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1ureka/webrtc-task/internal/protocol"
)

func TestUnchunkerInOrder(t *testing.T) {
	message := []byte{1, 2, 3, 4, 5, 6}
	chunks, err := Split(0, message, HeaderLength+2)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	u := NewUnchunker()
	for i, c := range chunks {
		data, ok, err := u.Add(c)
		require.NoError(t, err)
		if i < len(chunks)-1 {
			assert.False(t, ok)
			continue
		}
		require.True(t, ok)
		assert.Equal(t, message, data)
	}
	assert.Equal(t, 0, u.Pending())
}

func TestUnchunkerOutOfOrder(t *testing.T) {
	message := []byte("the quick brown fox jumps over the lazy dog")
	chunks, err := Split(9, message, HeaderLength+4)
	require.NoError(t, err)

	u := NewUnchunker()
	order := []int{len(chunks) - 1}
	for i := len(chunks) - 2; i >= 0; i-- {
		order = append(order, i)
	}

	var got []byte
	for n, i := range order {
		data, ok, err := u.Add(chunks[i])
		require.NoError(t, err)
		if n == len(order)-1 {
			require.True(t, ok)
			got = data
		} else {
			require.False(t, ok)
		}
	}
	assert.Equal(t, message, got)
}

func TestUnchunkerInterleavedMessages(t *testing.T) {
	a, err := Split(1, []byte("aaaa"), HeaderLength+2)
	require.NoError(t, err)
	b, err := Split(2, []byte("bbbbbb"), HeaderLength+2)
	require.NoError(t, err)

	u := NewUnchunker()
	var done []string
	for _, c := range [][]byte{a[0], b[0], b[1], a[1], b[2]} {
		data, ok, err := u.Add(c)
		require.NoError(t, err)
		if ok {
			done = append(done, string(data))
		}
	}
	assert.Equal(t, []string{"aaaa", "bbbbbb"}, done)
}

func TestUnchunkerRejectsMalformedChunks(t *testing.T) {
	u := NewUnchunker()

	_, _, err := u.Add([]byte{0, 0, 0})
	assert.ErrorIs(t, err, protocol.ErrBufferTooShort)

	chunk := []byte{0, 0, 0, 0, 1, 0, 0, 0, 0, 42}
	_, _, err = u.Add(chunk)
	require.NoError(t, err)
	_, _, err = u.Add(chunk)
	var valErr *protocol.ValidationError
	assert.ErrorAs(t, err, &valErr)
}

func TestUnchunkerRejectsEndBeforeHigherSerial(t *testing.T) {
	u := NewUnchunker()

	// Serial 5 of message 7 arrives before an end chunk claiming serial 1.
	_, ok, err := u.Add([]byte{0, 0, 0, 0, 7, 0, 0, 0, 5, 'X'})
	require.NoError(t, err)
	require.False(t, ok)

	data, ok, err := u.Add([]byte{1, 0, 0, 0, 7, 0, 0, 0, 1, 'B'})
	var valErr *protocol.ValidationError
	assert.ErrorAs(t, err, &valErr)
	assert.False(t, ok)
	assert.Nil(t, data)
}

func TestUnchunkerGC(t *testing.T) {
	now := time.Unix(1000, 0)
	u := NewUnchunker()
	u.now = func() time.Time { return now }

	_, ok, err := u.Add([]byte{0, 0, 0, 0, 1, 0, 0, 0, 0, 42})
	require.NoError(t, err)
	require.False(t, ok)

	now = now.Add(30 * time.Second)
	assert.Equal(t, 0, u.GC(time.Minute))
	assert.Equal(t, 1, u.Pending())

	now = now.Add(time.Minute)
	assert.Equal(t, 1, u.GC(time.Minute))
	assert.Equal(t, 0, u.Pending())
}
