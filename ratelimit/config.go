package ratelimit

import (
	"fmt"
	"time"
)

// Config holds the rate limiting settings shared by every category.
type Config struct {
	// Enabled is a global kill switch; false allows everything.
	Enabled bool

	// Window is the sliding window size. Cached state lives this long.
	Window time.Duration

	// Segments is how many segments the window is split into.
	Segments int

	// Limits is the per-window request limit of each category.
	Limits map[Category]int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:  true,
		Window:   time.Minute,
		Segments: 6,
		Limits: map[Category]int{
			CategorySave:        30,
			CategoryQuickCreate: 10,
			CategorySearch:      60,
			CategoryJobs:        20,
			CategoryShare:       20,
			CategoryRecent:      60,
		},
	}
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if c.Window < time.Second {
		return fmt.Errorf("%w: window must be at least 1s, got %s", ErrInvalidConfig, c.Window)
	}
	if c.Segments <= 0 {
		return fmt.Errorf("%w: segments must be positive, got %d", ErrInvalidConfig, c.Segments)
	}
	if int64(c.Segments) > int64(c.Window/time.Second) {
		return fmt.Errorf("%w: %d segments do not fit a %s window", ErrInvalidConfig, c.Segments, c.Window)
	}
	if c.Window%(time.Duration(c.Segments)*time.Second) != 0 {
		return fmt.Errorf("%w: %s window does not split into %d whole-second segments", ErrInvalidConfig, c.Window, c.Segments)
	}
	for category, limit := range c.Limits {
		if !category.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownCategory, category)
		}
		if limit <= 0 {
			return fmt.Errorf("%w: limit for %s must be positive, got %d", ErrInvalidConfig, category, limit)
		}
	}
	return nil
}
