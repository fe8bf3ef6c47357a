package core

import "time"

// Config defines the sliding-window policy for one category
type Config struct {
	Limit    int           // Maximum requests per window
	Window   time.Duration // Total window size
	Segments int           // Number of segments the window is split into
}

// SegmentSeconds returns the length of one segment in whole seconds (at least 1).
func (c Config) SegmentSeconds() int64 {
	if c.Segments <= 0 {
		return int64(c.Window.Seconds())
	}
	s := int64(c.Window.Seconds()) / int64(c.Segments)
	if s < 1 {
		return 1
	}
	return s
}

// WindowState maps segment index to request count.
// Index = floor(unixSeconds / segmentSeconds).
type WindowState map[int64]int

// Result contains the outcome of a rate limit check
type Result struct {
	Allowed   bool  // Whether the request is allowed
	Limit     int   // Configured limit for the category
	Remaining int   // Requests left in the current window after this one
	ResetAt   int64 // Unix seconds when the oldest counted segment leaves the window
}

// RetryAfter returns whole seconds until ResetAt, never less than one.
func (r Result) RetryAfter(now time.Time) int64 {
	d := r.ResetAt - now.Unix()
	if d < 1 {
		return 1
	}
	return d
}
