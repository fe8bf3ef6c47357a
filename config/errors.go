package config

import "errors"

// ErrInvalidConfig is returned when the configuration cannot be loaded or
// fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")
