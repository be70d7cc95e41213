// Package hud builds the on-screen statistics overlay.
package hud

import "time"

// Stats accumulates frame timings. FPS is averaged over whole seconds.
type Stats struct {
	FPS       float64
	FrameTime time.Duration

	frames      int
	last        time.Time
	windowStart time.Time
}

// Tick records a frame finishing at now.
func (s *Stats) Tick(now time.Time) {
	if s.last.IsZero() {
		s.last, s.windowStart = now, now
		return
	}
	s.FrameTime = now.Sub(s.last)
	s.last = now
	s.frames++
	if elapsed := now.Sub(s.windowStart); elapsed >= time.Second {
		s.FPS = float64(s.frames) / elapsed.Seconds()
		s.frames = 0
		s.windowStart = now
	}
}
