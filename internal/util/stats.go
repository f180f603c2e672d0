package util

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pterm/pterm"
)

// ──────────────────────────────────────────────────────────────────────────────
// Global stats singleton
// ──────────────────────────────────────────────────────────────────────────────

// Stats is the process-wide signaling channel counter.
var Stats = &stats{}

type stats struct {
	MessagesSent atomic.Int64 // signaling messages sent over the handed-over channel
	MessagesRecv atomic.Int64 // signaling messages reassembled from the handed-over channel
	BytesSent    atomic.Int64 // cumulative chunk bytes handed to the channel handler
	BytesRecv    atomic.Int64 // cumulative chunk bytes received from the channel
}

func (s *stats) AddMessageSent() { s.MessagesSent.Add(1) }
func (s *stats) AddMessageRecv() { s.MessagesRecv.Add(1) }
func (s *stats) AddSent(n int)   { s.BytesSent.Add(int64(n)) }
func (s *stats) AddRecv(n int)   { s.BytesRecv.Add(int64(n)) }

// ──────────────────────────────────────────────────────────────────────────────
// Periodic reporter
// ──────────────────────────────────────────────────────────────────────────────

// StartStatsReporter launches a goroutine that logs signaling channel
// statistics every 10 seconds. It stops when ctx is cancelled.
func StartStatsReporter(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()

		var prevSent, prevRecv, prevMsgOut, prevMsgIn int64
		for {
			select {
			case <-ticker.C:
				msgOut := Stats.MessagesSent.Load()
				msgIn := Stats.MessagesRecv.Load()
				sent := Stats.BytesSent.Load()
				recv := Stats.BytesRecv.Load()

				outS := float64(sent-prevSent) / 10.0
				inS := float64(recv-prevRecv) / 10.0
				outM := msgOut - prevMsgOut
				inM := msgIn - prevMsgIn

				if outM > 0 || inM > 0 {
					pterm.DefaultLogger.Info(formatStats(inS, outS, inM, outM))
				}

				prevSent = sent
				prevRecv = recv
				prevMsgOut = msgOut
				prevMsgIn = msgIn

			case <-ctx.Done():
				return
			}
		}
	}()
}

// byteUnits defines the units for formatting byte counts in a human-readable way.
var byteUnits = []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB"}

// formatBytes formats a byte count into a human-readable string with fixed width (exactly 8 chars)
// for example: "99.0   B", " 1.5 KiB", " 0.1 MiB", "98.9 GiB", etc.
func formatBytes(b float64) string {
	unitIdx := 0

	// to prevent "100.0 KiB", which is 9 chars
	for b > 99 && unitIdx < 5 {
		b /= 1024
		unitIdx++
	}

	return fmt.Sprintf("%4.1f %3s", b, byteUnits[unitIdx])
}

// formatStats returns a formatted string of the current stats for display in the logger.
func formatStats(inS, outS float64, inM, outM int64) string {
	return fmt.Sprintf("In: %s/s | Out: %s/s | Msg: %2d↓ %2d↑",
		formatBytes(inS),
		formatBytes(outS),
		inM,
		outM,
	)
}
