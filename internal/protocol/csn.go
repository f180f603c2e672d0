package protocol

import (
	"fmt"
	"math"
	"sync"
)

// CombinedSequence is a 48-bit value built from a 16-bit overflow number and
// a 32-bit sequence number.
type CombinedSequence struct {
	Overflow uint16
	Sequence uint32
}

// Value returns (overflow << 32) | sequence.
func (c CombinedSequence) Value() uint64 {
	return uint64(c.Overflow)<<32 | uint64(c.Sequence)
}

func (c CombinedSequence) String() string {
	return fmt.Sprintf("%d/%d", c.Overflow, c.Sequence)
}

// CSNGenerator produces strictly increasing combined sequence numbers for
// one direction of one channel. It never wraps around: once the 48-bit space
// is used up every call to Next fails and the channel must be closed.
//
// It is safe for concurrent use; two concurrent calls never observe the same
// value.
type CSNGenerator struct {
	mu       sync.Mutex
	overflow uint16
	sequence uint32
}

// NewCSNGenerator creates a generator starting at (0, 0).
// The first call to Next returns (0, 1).
func NewCSNGenerator() *CSNGenerator {
	return &CSNGenerator{}
}

// NewCSNGeneratorFrom creates a generator whose last handed out value is
// start.
func NewCSNGeneratorFrom(start CombinedSequence) *CSNGenerator {
	return &CSNGenerator{overflow: start.Overflow, sequence: start.Sequence}
}

// Next advances the generator and returns the new value.
func (g *CSNGenerator) Next() (CombinedSequence, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.sequence == math.MaxUint32 {
		if g.overflow == math.MaxUint16 {
			return CombinedSequence{}, &OverflowError{What: "combined sequence number", Err: ErrCSNExhausted}
		}
		g.overflow++
		g.sequence = 0
	} else {
		g.sequence++
	}

	return CombinedSequence{Overflow: g.overflow, Sequence: g.sequence}, nil
}
