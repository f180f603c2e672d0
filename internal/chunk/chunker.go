// Package chunk splits messages into size-bounded chunks and reassembles them.
//
// Every chunk carries a 9-byte header:
//
//	|O|IIII|SSSS|
//
// O: options (bit 0 set on the last chunk of a message), I: message id,
// S: serial number of the chunk within its message. Integers are big-endian.
package chunk

import (
	"encoding/binary"
	"fmt"
)

// HeaderLength is the size of the chunk header.
const HeaderLength = 9

const optionEndOfMessage byte = 0x01

// Chunker fragments one message into ordered chunks of at most chunkLength
// bytes (header included). It is not safe for concurrent use.
type Chunker struct {
	id          uint32
	data        []byte
	chunkLength int

	offset int
	serial uint32
	done   bool
}

// NewChunker creates a chunker for message id. chunkLength must leave room
// for at least one payload byte after the header.
func NewChunker(id uint32, data []byte, chunkLength int) (*Chunker, error) {
	if chunkLength <= HeaderLength {
		return nil, fmt.Errorf("chunk length %d must be greater than the %d byte header", chunkLength, HeaderLength)
	}
	return &Chunker{id: id, data: data, chunkLength: chunkLength}, nil
}

// HasNext reports whether another chunk is available.
func (c *Chunker) HasNext() bool {
	return !c.done
}

// Next returns the next chunk. The returned slice is owned by the caller.
func (c *Chunker) Next() []byte {
	if c.done {
		return nil
	}

	remaining := len(c.data) - c.offset
	size := c.chunkLength - HeaderLength
	var options byte
	if remaining <= size {
		size = remaining
		options |= optionEndOfMessage
		c.done = true
	}

	buf := make([]byte, HeaderLength+size)
	buf[0] = options
	binary.BigEndian.PutUint32(buf[1:5], c.id)
	binary.BigEndian.PutUint32(buf[5:9], c.serial)
	copy(buf[HeaderLength:], c.data[c.offset:c.offset+size])

	c.offset += size
	c.serial++
	return buf
}

// Split fragments data into all of its chunks at once.
func Split(id uint32, data []byte, chunkLength int) ([][]byte, error) {
	c, err := NewChunker(id, data, chunkLength)
	if err != nil {
		return nil, err
	}
	var chunks [][]byte
	for c.HasNext() {
		chunks = append(chunks, c.Next())
	}
	return chunks, nil
}
