package protocol

import (
	"errors"
	"fmt"
)

// Sentinel causes. They are always wrapped in one of the typed errors below
// so callers can match either the category (errors.As) or the exact reason
// (errors.Is).
var (
	ErrBufferTooShort    = errors.New("buffer too short")
	ErrInvalidChannelID  = errors.New("channel id must be between 0 and 65534")
	ErrCookieReflection  = errors.New("cookie reflection")
	ErrCookieChanged     = errors.New("cookie changed")
	ErrCSNReuse          = errors.New("CSN reuse")
	ErrChannelIDMismatch = errors.New("channel id mismatch")
	ErrCSNExhausted      = errors.New("CSN space exhausted")
)

// ValidationError reports malformed or adversarial input. It is recoverable
// at the point of decoding.
type ValidationError struct {
	Reason string
	Err    error
}

// NewValidationError wraps a sentinel cause.
func NewValidationError(err error) *ValidationError {
	return &ValidationError{Reason: err.Error(), Err: err}
}

// Validationf builds a ValidationError from a formatted reason.
func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string { return "validation error: " + e.Reason }
func (e *ValidationError) Unwrap() error { return e.Err }

// OverflowError reports exhaustion of a counter that must never wrap
// (combined sequence numbers, chunk message ids). Fatal to the channel.
type OverflowError struct {
	What string
	Err  error
}

func (e *OverflowError) Error() string { return "overflow: " + e.What }
func (e *OverflowError) Unwrap() error { return e.Err }

// IllegalStateError reports API misuse. It is a programming error.
type IllegalStateError struct {
	Reason string
}

func (e *IllegalStateError) Error() string { return "illegal state: " + e.Reason }

// IllegalState builds an IllegalStateError.
func IllegalState(format string, args ...any) *IllegalStateError {
	return &IllegalStateError{Reason: fmt.Sprintf(format, args...)}
}

// ConnectionError is returned by a signaling layer that had to give up on the
// underlying connection. Code is the close code the connection should be
// reset with.
type ConnectionError struct {
	Code CloseCode
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error (%s): %v", e.Code, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// CloseCodeOf extracts the close code carried by err, falling back to
// CloseInternalError.
func CloseCodeOf(err error) CloseCode {
	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		return connErr.Code
	}
	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return CloseProtocolError
	}
	return CloseInternalError
}
