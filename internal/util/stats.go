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

// Stats is the process-wide sync/call counter.
var Stats = &stats{}

type stats struct {
	CandidatesSent atomic.Int64 // local ICE candidates republished to the store
	CandidatesRecv atomic.Int64 // remote ICE candidates forwarded to the engine
	ClipboardPush  atomic.Int64 // local clipboard changes published
	ClipboardPull  atomic.Int64 // remote clipboard values applied locally
	AudioBytes     atomic.Int64 // cumulative RTP payload bytes received
}

func (s *stats) AddCandidateSent() { s.CandidatesSent.Add(1) }
func (s *stats) AddCandidateRecv() { s.CandidatesRecv.Add(1) }
func (s *stats) AddClipboardPush() { s.ClipboardPush.Add(1) }
func (s *stats) AddClipboardPull() { s.ClipboardPull.Add(1) }
func (s *stats) AddAudio(n int)    { s.AudioBytes.Add(int64(n)) }

// ──────────────────────────────────────────────────────────────────────────────
// Periodic reporter
// ──────────────────────────────────────────────────────────────────────────────

// StartStatsReporter launches a goroutine that logs companion statistics
// every 10 seconds. Quiet intervals produce no output. It stops when ctx is
// cancelled.
func StartStatsReporter(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()

		var prevAudio, prevClip, prevCand int64
		for {
			select {
			case <-ticker.C:
				audio := Stats.AudioBytes.Load()
				clip := Stats.ClipboardPush.Load() + Stats.ClipboardPull.Load()
				cand := Stats.CandidatesSent.Load() + Stats.CandidatesRecv.Load()

				audioS := float64(audio-prevAudio) / 10.0
				clipD := clip - prevClip
				candD := cand - prevCand

				if audioS > 0 || clipD > 0 || candD > 0 {
					pterm.DefaultLogger.Info(formatStats(audioS, clipD, candD))
				}

				prevAudio = audio
				prevClip = clip
				prevCand = cand

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
func formatStats(audioS float64, clipD, candD int64) string {
	return fmt.Sprintf("Audio: %s/s | Clipboard: %2d | ICE: %2d",
		formatBytes(audioS),
		clipD,
		candD,
	)
}
