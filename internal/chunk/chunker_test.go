package chunk

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestChunkerSixBytes fragments a 6-byte message with 2 payload bytes per
// chunk and checks the exact wire bytes.
func TestChunkerSixBytes(t *testing.T) {
	chunks, err := Split(0, []byte{1, 2, 3, 4, 5, 6}, HeaderLength+2)
	require.NoError(t, err)

	want := [][]byte{
		{0, 0, 0, 0, 0, 0, 0, 0, 0, 1, 2},
		{0, 0, 0, 0, 0, 0, 0, 0, 1, 3, 4},
		{1, 0, 0, 0, 0, 0, 0, 0, 2, 5, 6},
	}
	assert.Equal(t, want, chunks)
}

func TestChunkerSharesMessageID(t *testing.T) {
	chunks, err := Split(0xCAFEBABE, bytes.Repeat([]byte{7}, 100), 20)
	require.NoError(t, err)
	require.Len(t, chunks, 10) // 11 payload bytes per chunk

	for i, c := range chunks {
		h, err := parseHeader(c)
		require.NoError(t, err)
		assert.Equal(t, uint32(0xCAFEBABE), h.id)
		assert.Equal(t, uint32(i), h.serial)
		assert.Equal(t, i == len(chunks)-1, h.end)
		assert.LessOrEqual(t, len(c), 20)
	}
}

func TestChunkerEmptyMessage(t *testing.T) {
	chunks, err := Split(3, nil, 12)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, []byte{1, 0, 0, 0, 3, 0, 0, 0, 0}, chunks[0])
}

func TestChunkerRejectsTinyChunkLength(t *testing.T) {
	_, err := NewChunker(0, []byte{1}, HeaderLength)
	assert.Error(t, err)
}
