package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/1ureka/webrtc-task/internal/protocol"
)

// Cookie identifies who generated a nonce.
type Cookie [protocol.CookieLength]byte

// NewCookie returns 16 random bytes.
func NewCookie() (Cookie, error) {
	var c Cookie
	if _, err := rand.Read(c[:]); err != nil {
		return Cookie{}, fmt.Errorf("generate cookie: %w", err)
	}
	return c, nil
}

func (c Cookie) String() string {
	return hex.EncodeToString(c[:])
}
