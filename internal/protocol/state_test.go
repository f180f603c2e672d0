package protocol

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandoverStateTransitions(t *testing.T) {
	var h HandoverState
	assert.False(t, h.Any())
	assert.False(t, h.All())

	assert.True(t, h.SetLocal())
	assert.False(t, h.SetLocal(), "local must be set exactly once")
	assert.True(t, h.Local())
	assert.True(t, h.Any())
	assert.False(t, h.All())

	done := h.Done()
	select {
	case <-done:
		t.Fatal("done before both sides switched")
	default:
	}

	assert.True(t, h.SetPeer())
	assert.False(t, h.SetPeer())
	assert.True(t, h.All())

	select {
	case <-done:
	default:
		t.Fatal("done not closed after both sides switched")
	}
}

func TestHandoverStateDoneAfterCompletion(t *testing.T) {
	var h HandoverState
	h.SetPeer()
	h.SetLocal()

	select {
	case <-h.Done():
	default:
		t.Fatal("done not closed")
	}
}

func TestCloseCodeOf(t *testing.T) {
	assert.Equal(t, CloseGoingAway, CloseCodeOf(&ConnectionError{Code: CloseGoingAway, Err: errors.New("bye")}))
	assert.Equal(t, CloseProtocolError, CloseCodeOf(NewValidationError(ErrCSNReuse)))
	assert.Equal(t, CloseInternalError, CloseCodeOf(errors.New("boom")))
}

func TestStringers(t *testing.T) {
	assert.Equal(t, "protocol error (3001)", CloseProtocolError.String())
	assert.Equal(t, "4000", CloseCode(4000).String())
	assert.Equal(t, "task", StateTask.String())
}
