package core

import (
	"testing"
	"time"
)

// 60s window split into 6 segments of 10s.
var testConfig = Config{Limit: 10, Window: time.Minute, Segments: 6}

func TestSlidingWindow_AllowsUpToLimit(t *testing.T) {
	window := NewSlidingWindow(testConfig)
	now := time.Unix(1_700_000_000, 0)

	var state WindowState

	// Should allow exactly limit requests
	for i := 0; i < 10; i++ {
		next, result := window.Check(state, now)
		if !result.Allowed {
			t.Fatalf("Request %d should be allowed", i+1)
		}
		if result.Remaining != 9-i {
			t.Errorf("Request %d: Remaining = %d, want %d", i+1, result.Remaining, 9-i)
		}
		state = next
	}

	// 11th request should be blocked
	next, result := window.Check(state, now)
	if result.Allowed {
		t.Error("Request 11 should be blocked (window full)")
	}
	if result.Remaining != 0 {
		t.Errorf("Remaining = %d, want 0", result.Remaining)
	}
	if next != nil {
		t.Error("Denied check should not produce state to persist")
	}
	if result.RetryAfter(now) <= 0 {
		t.Error("RetryAfter should be positive when blocked")
	}
}

func TestSlidingWindow_IgnoresStaleSegments(t *testing.T) {
	window := NewSlidingWindow(testConfig)
	now := time.Unix(1_700_000_000, 0)
	current := window.Segment(now)

	// A blob written just before the window moved: the oldest entry is
	// exactly segments steps old and must not be counted.
	state := WindowState{
		current - 6:  100,
		current - 30: 100,
		current - 5:  3,
	}

	_, result := window.Check(state, now)
	if !result.Allowed {
		t.Fatal("stale segments must not count toward the limit")
	}
	if result.Remaining != 10-3-1 {
		t.Errorf("Remaining = %d, want %d", result.Remaining, 10-3-1)
	}
}

func TestSlidingWindow_PrunesStaleSegments(t *testing.T) {
	window := NewSlidingWindow(testConfig)
	now := time.Unix(1_700_000_000, 0)
	current := window.Segment(now)

	state := WindowState{current - 10: 4, current - 1: 2}
	next, _ := window.Check(state, now)

	if _, ok := next[current-10]; ok {
		t.Error("stale segment should be dropped from persisted state")
	}
	if next[current-1] != 2 {
		t.Errorf("active segment count = %d, want 2", next[current-1])
	}
	if next[current] != 1 {
		t.Errorf("current segment count = %d, want 1", next[current])
	}
}

func TestSlidingWindow_SlidesOverTime(t *testing.T) {
	window := NewSlidingWindow(testConfig)
	now := time.Unix(1_700_000_000, 0)

	var state WindowState
	for i := 0; i < 10; i++ {
		state, _ = window.Check(state, now)
	}

	_, result := window.Check(state, now)
	if result.Allowed {
		t.Fatal("Should be blocked immediately after filling the window")
	}

	// Still inside the window 50s later
	if _, result := window.Check(state, now.Add(50*time.Second)); result.Allowed {
		t.Error("Should remain blocked while the filled segment is active")
	}

	// One full window later the segment has left
	later := now.Add(time.Minute)
	if _, result := window.Check(state, later); !result.Allowed {
		t.Error("Request should be allowed once the window has slid past")
	}
}

func TestSlidingWindow_ResetAt(t *testing.T) {
	window := NewSlidingWindow(testConfig)
	// Aligned to a segment boundary
	now := time.Unix(1_700_000_000-1_700_000_000%10, 0)
	current := window.Segment(now)

	state := WindowState{current - 2: 10}
	_, result := window.Check(state, now)
	if result.Allowed {
		t.Fatal("window is full")
	}

	want := (current - 2 + 6) * 10
	if result.ResetAt != want {
		t.Errorf("ResetAt = %d, want %d", result.ResetAt, want)
	}
	if got := result.RetryAfter(now); got != 40 {
		t.Errorf("RetryAfter = %d, want 40", got)
	}
}

func TestSlidingWindow_NegativeClock(t *testing.T) {
	window := NewSlidingWindow(testConfig)
	if got := window.Segment(time.Unix(-1, 0)); got != -1 {
		t.Errorf("Segment(-1s) = %d, want -1", got)
	}
}

func TestConfig_SegmentSeconds(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		want   int64
	}{
		{"six segments", Config{Window: time.Minute, Segments: 6}, 10},
		{"sub-second segments clamp to one", Config{Window: 3 * time.Second, Segments: 10}, 1},
		{"no segments", Config{Window: time.Minute}, 60},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.config.SegmentSeconds(); got != tt.want {
				t.Errorf("SegmentSeconds() = %d, want %d", got, tt.want)
			}
		})
	}
}
