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

// Stats is the process-wide peer traffic counter.
var Stats = &stats{}

type stats struct {
	OpenedConns   atomic.Int64 // cumulative count of connections reaching Connected
	ClosedConns   atomic.Int64 // cumulative count of connections leaving Connected
	FramesSent    atomic.Int64 // frames handed to a transport
	FramesRecv    atomic.Int64 // frames received from a transport
	BytesSent     atomic.Int64
	BytesRecv     atomic.Int64
	DecodeFailed  atomic.Int64 // inbound frames dropped because they did not decode
	HandshakeFail atomic.Int64 // connections closed by a handshake timeout
}

func (s *stats) AddConn()          { s.OpenedConns.Add(1) }
func (s *stats) RemoveConn()       { s.ClosedConns.Add(1) }
func (s *stats) AddDecodeFailure() { s.DecodeFailed.Add(1) }
func (s *stats) AddHandshakeFail() { s.HandshakeFail.Add(1) }

func (s *stats) AddSent(n int) {
	s.FramesSent.Add(1)
	s.BytesSent.Add(int64(n))
}

func (s *stats) AddRecv(n int) {
	s.FramesRecv.Add(1)
	s.BytesRecv.Add(int64(n))
}

// ──────────────────────────────────────────────────────────────────────────────
// Periodic reporter
// ──────────────────────────────────────────────────────────────────────────────

// reportInterval is how often StartStatsReporter samples the counters.
const reportInterval = 10 * time.Second

// StartStatsReporter launches a goroutine that logs peer traffic statistics
// every 10 seconds. It stops when ctx is cancelled.
func StartStatsReporter(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(reportInterval)
		defer ticker.Stop()

		var prev snapshot
		for {
			select {
			case <-ticker.C:
				cur := takeSnapshot()
				if line, ok := formatStats(prev, cur, reportInterval.Seconds()); ok {
					pterm.DefaultLogger.Info(line)
				}
				prev = cur

			case <-ctx.Done():
				return
			}
		}
	}()
}

type snapshot struct {
	opened, closed      int64
	sent, recv          int64
	framesOut, framesIn int64
	dropped             int64
}

func takeSnapshot() snapshot {
	return snapshot{
		opened:    Stats.OpenedConns.Load(),
		closed:    Stats.ClosedConns.Load(),
		sent:      Stats.BytesSent.Load(),
		recv:      Stats.BytesRecv.Load(),
		framesOut: Stats.FramesSent.Load(),
		framesIn:  Stats.FramesRecv.Load(),
		dropped:   Stats.DecodeFailed.Load(),
	}
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

// formatStats renders the delta between two snapshots. It reports false when
// nothing happened during the interval.
func formatStats(prev, cur snapshot, seconds float64) (string, bool) {
	outS := float64(cur.sent-prev.sent) / seconds
	inS := float64(cur.recv-prev.recv) / seconds
	opened := cur.opened - prev.opened
	closed := cur.closed - prev.closed
	frames := (cur.framesOut - prev.framesOut) + (cur.framesIn - prev.framesIn)
	dropped := cur.dropped - prev.dropped

	if opened == 0 && closed == 0 && frames == 0 && dropped == 0 {
		return "", false
	}

	return fmt.Sprintf("In: %s/s | Out: %s/s | Frames: %4d | Peers: %2d↑ %2d↓ | Dropped: %d",
		formatBytes(inS),
		formatBytes(outS),
		frames,
		opened,
		closed,
		dropped,
	), true
}
