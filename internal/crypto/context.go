// Package crypto encrypts and decrypts data for a data channel with a fixed
// channel id, building nonces from a per-context cookie and combined sequence
// number and validating the nonces of incoming data.
package crypto

import (
	"fmt"
	"sync"

	"github.com/1ureka/webrtc-task/internal/protocol"
)

// Sealer is the opaque authenticated encryption of the signaling layer. The
// context never inspects what it produces.
type Sealer interface {
	EncryptForPeer(data, nonce []byte) (protocol.Box, error)
	DecryptFromPeer(box protocol.Box) ([]byte, error)
}

// Context can encrypt and decrypt data for the data channel with a specific
// id. It is safe for concurrent use.
type Context struct {
	channelID uint16
	sealer    Sealer

	mu              sync.Mutex
	ownCookie       Cookie
	peerCookie      *Cookie
	csn             *protocol.CSNGenerator
	lastIncomingCSN *uint64
}

// New creates a context for channelID with a freshly generated cookie.
func New(channelID uint16, sealer Sealer) (*Context, error) {
	if channelID > protocol.MaxChannelID {
		return nil, protocol.NewValidationError(protocol.ErrInvalidChannelID)
	}
	cookie, err := NewCookie()
	if err != nil {
		return nil, err
	}
	return &Context{
		channelID: channelID,
		sealer:    sealer,
		ownCookie: cookie,
		csn:       protocol.NewCSNGenerator(),
	}, nil
}

// ChannelID returns the channel id the context is bound to.
func (c *Context) ChannelID() uint16 { return c.channelID }

// Cookie returns the local cookie.
func (c *Context) Cookie() Cookie { return c.ownCookie }

// Encrypt seals data with the next outgoing nonce.
func (c *Context) Encrypt(data []byte) (protocol.Box, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	csn, err := c.csn.Next()
	if err != nil {
		return protocol.Box{}, err
	}

	nonce, err := protocol.NewNonce(c.ownCookie, c.channelID, csn.Overflow, csn.Sequence)
	if err != nil {
		return protocol.Box{}, err
	}

	box, err := c.sealer.EncryptForPeer(data, protocol.EncodeNonce(nonce))
	if err != nil {
		return protocol.Box{}, fmt.Errorf("encrypt for peer: %w", err)
	}
	return box, nil
}

// Decrypt validates the nonce of box and opens it. The checks run in a fixed
// order and each one fails with its own reason.
func (c *Context) Decrypt(box protocol.Box) ([]byte, error) {
	nonce, err := protocol.DecodeNonce(box.Nonce)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if Cookie(nonce.Cookie) == c.ownCookie {
		return nil, protocol.NewValidationError(protocol.ErrCookieReflection)
	}

	if c.peerCookie == nil {
		peer := Cookie(nonce.Cookie)
		c.peerCookie = &peer
	} else if Cookie(nonce.Cookie) != *c.peerCookie {
		return nil, protocol.NewValidationError(protocol.ErrCookieChanged)
	}

	// Only an exact repeat of the previous CSN is rejected so that unordered
	// channels keep working.
	csn := nonce.CombinedSequence().Value()
	if c.lastIncomingCSN != nil && csn == *c.lastIncomingCSN {
		return nil, protocol.NewValidationError(protocol.ErrCSNReuse)
	}

	if nonce.ChannelID != c.channelID {
		return nil, &protocol.ValidationError{
			Reason: fmt.Sprintf("%s: nonce has %d, channel is %d", protocol.ErrChannelIDMismatch, nonce.ChannelID, c.channelID),
			Err:    protocol.ErrChannelIDMismatch,
		}
	}

	c.lastIncomingCSN = &csn

	data, err := c.sealer.DecryptFromPeer(box)
	if err != nil {
		return nil, fmt.Errorf("decrypt from peer: %w", err)
	}
	return data, nil
}
