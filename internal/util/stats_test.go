package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatBytes(t *testing.T) {
	testCases := []struct {
		in   float64
		want string
	}{
		{0, " 0.0   B"},
		{99, "99.0   B"},
		{1536, " 1.5 KiB"},
		{100 * 1024, " 0.1 MiB"},
	}

	for _, tc := range testCases {
		got := formatBytes(tc.in)
		assert.Equal(t, tc.want, got)
		assert.Len(t, got, 8)
	}
}

func TestFormatStats(t *testing.T) {
	assert.Equal(t, "In: 99.0   B/s | Out:  0.0   B/s | Msg:  3↓  1↑", formatStats(99, 0, 3, 1))
}

func TestLoggerName(t *testing.T) {
	l := NewLogger("SaltyRTC.WebRTC.Initiator")
	assert.Equal(t, "SaltyRTC.WebRTC.Initiator", l.Name())
}
