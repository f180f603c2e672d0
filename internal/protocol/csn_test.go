package protocol

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSNGeneratorMonotonic(t *testing.T) {
	g := NewCSNGenerator()

	var prev uint64
	for i := 0; i < 1000; i++ {
		csn, err := g.Next()
		require.NoError(t, err)
		require.Greater(t, csn.Value(), prev)
		prev = csn.Value()
	}
	assert.Equal(t, uint64(1000), prev)
}

// TestCSNGeneratorOverflowCarry verifies that the sequence number carries into
// the overflow number instead of wrapping.
func TestCSNGeneratorOverflowCarry(t *testing.T) {
	g := &CSNGenerator{overflow: 0, sequence: math.MaxUint32 - 1}

	csn, err := g.Next()
	require.NoError(t, err)
	assert.Equal(t, CombinedSequence{Overflow: 0, Sequence: math.MaxUint32}, csn)

	csn, err = g.Next()
	require.NoError(t, err)
	assert.Equal(t, CombinedSequence{Overflow: 1, Sequence: 0}, csn)
	assert.Equal(t, uint64(1)<<32, csn.Value())
}

// TestCSNGeneratorExhausted verifies that the last value of the 48-bit space
// is handed out once and every later call fails.
func TestCSNGeneratorExhausted(t *testing.T) {
	g := &CSNGenerator{overflow: math.MaxUint16, sequence: math.MaxUint32 - 1}

	csn, err := g.Next()
	require.NoError(t, err)
	assert.Equal(t, uint64(1)<<48-1, csn.Value())

	for i := 0; i < 2; i++ {
		_, err = g.Next()
		var overflowErr *OverflowError
		require.ErrorAs(t, err, &overflowErr)
		assert.ErrorIs(t, err, ErrCSNExhausted)
	}
}

func TestCSNGeneratorConcurrentUnique(t *testing.T) {
	g := NewCSNGenerator()

	const workers, perWorker = 8, 500
	values := make(chan uint64, workers*perWorker)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				csn, err := g.Next()
				if err != nil {
					t.Error(err)
					return
				}
				values <- csn.Value()
			}
		}()
	}
	wg.Wait()
	close(values)

	seen := make(map[uint64]struct{}, workers*perWorker)
	for v := range values {
		_, dup := seen[v]
		require.False(t, dup, "duplicate CSN %d", v)
		seen[v] = struct{}{}
	}
	assert.Len(t, seen, workers*perWorker)
}
