package core

import "time"

// SlidingWindow implements segmented sliding-window counting.
// It holds no state of its own; callers load and persist WindowState.
type SlidingWindow struct {
	config Config
}

// NewSlidingWindow creates a new sliding window with the given configuration
func NewSlidingWindow(config Config) *SlidingWindow {
	if config.Segments <= 0 {
		config.Segments = 1
	}
	return &SlidingWindow{config: config}
}

// Config returns the window's policy.
func (sw *SlidingWindow) Config() Config {
	return sw.config
}

// Segment returns the segment index containing now.
func (sw *SlidingWindow) Segment(now time.Time) int64 {
	return floorDiv(now.Unix(), sw.config.SegmentSeconds())
}

// Check determines if a request should be allowed based on the current window state.
// It returns the state to persist and the check result. On denial the returned
// state is nil: nothing needs to be written.
func (sw *SlidingWindow) Check(state WindowState, now time.Time) (WindowState, Result) {
	segSec := sw.config.SegmentSeconds()
	segments := int64(sw.config.Segments)
	current := sw.Segment(now)
	oldestActive := current - segments + 1

	sum := 0
	oldestUsed := current
	for idx, count := range state {
		if idx < oldestActive || idx > current || count <= 0 {
			continue
		}
		sum += count
		if idx < oldestUsed {
			oldestUsed = idx
		}
	}

	// The oldest counted segment stops counting once the window has moved
	// segments steps past it.
	resetAt := (oldestUsed + segments) * segSec

	if sum >= sw.config.Limit {
		return nil, Result{
			Allowed:   false,
			Limit:     sw.config.Limit,
			Remaining: 0,
			ResetAt:   resetAt,
		}
	}

	next := make(WindowState, len(state)+1)
	for idx, count := range state {
		if idx >= oldestActive && idx <= current && count > 0 {
			next[idx] = count
		}
	}
	next[current]++

	return next, Result{
		Allowed:   true,
		Limit:     sw.config.Limit,
		Remaining: sw.config.Limit - sum - 1,
		ResetAt:   resetAt,
	}
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
