package ratelimit

import "errors"

var (
	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid rate limit configuration")

	// ErrUnknownCategory is returned for a category outside the closed set
	ErrUnknownCategory = errors.New("unknown rate limit category")
)
