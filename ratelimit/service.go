// Package ratelimit bounds request volume per principal per operation category.
//
// Counts live in the shared cache as a segmented sliding window and are
// updated with a plain read-modify-write. Concurrent requests for the same
// (principal, category) may race and under-count; the limiter is approximate
// backpressure, not a quota ledger. Any cache failure allows the request.
package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/KanavDutta/admission/cache"
	"github.com/KanavDutta/admission/core"
)

// Checker is implemented by Service; filters depend on this interface.
type Checker interface {
	CheckAndIncrement(ctx context.Context, principalKey string, category Category) core.Result
}

// Recorder receives decision and failure events. *metrics.Metrics implements it.
type Recorder interface {
	RecordDecision(category, principal string, allowed bool)
	RecordCacheFailure(component, op string)
}

// Service is the sliding-window rate limiter.
type Service struct {
	cache   cache.Cache
	config  Config
	windows map[Category]*core.SlidingWindow
	now     func() time.Time
	logger  *zap.Logger
	metrics Recorder
}

// Ensure Service implements Checker
var _ Checker = (*Service)(nil)

// Option is a functional option for configuring a Service.
type Option func(*Service) error

// WithClock sets the time source (for testing).
func WithClock(now func() time.Time) Option {
	return func(s *Service) error {
		if now == nil {
			return fmt.Errorf("%w: clock cannot be nil", ErrInvalidConfig)
		}
		s.now = now
		return nil
	}
}

// WithLogger sets the logger used for fail-open warnings.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) error {
		if logger == nil {
			return fmt.Errorf("%w: logger cannot be nil", ErrInvalidConfig)
		}
		s.logger = logger
		return nil
	}
}

// WithMetrics sets the decision recorder.
func WithMetrics(recorder Recorder) Option {
	return func(s *Service) error {
		s.metrics = recorder
		return nil
	}
}

// NewService creates a rate limit service backed by c.
func NewService(c cache.Cache, config Config, opts ...Option) (*Service, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: cache cannot be nil", ErrInvalidConfig)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	s := &Service{
		cache:   c,
		config:  config,
		windows: make(map[Category]*core.SlidingWindow, len(config.Limits)),
		now:     time.Now,
		logger:  zap.NewNop(),
	}
	for category, limit := range config.Limits {
		s.windows[category] = core.NewSlidingWindow(core.Config{
			Limit:    limit,
			Window:   config.Window,
			Segments: config.Segments,
		})
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}
	return s, nil
}

// Limit returns the configured limit for category.
func (s *Service) Limit(category Category) (int, bool) {
	w, ok := s.windows[category]
	if !ok {
		return 0, false
	}
	return w.Config().Limit, true
}

// CheckAndIncrement counts one request for principalKey in category and
// reports whether it is within the limit.
func (s *Service) CheckAndIncrement(ctx context.Context, principalKey string, category Category) core.Result {
	now := s.now()
	if !s.config.Enabled {
		return s.unlimited(now)
	}

	window, ok := s.windows[category]
	if !ok {
		s.logger.Warn("rate limit category not configured, allowing request",
			zap.String("category", string(category)))
		return s.unlimited(now)
	}

	key := cacheKey(category, principalKey)
	raw, found, err := s.cache.Get(ctx, key)
	if err != nil {
		return s.failOpen(now, "get", category, err)
	}

	state := core.WindowState{}
	if found {
		if err := json.Unmarshal([]byte(raw), &state); err != nil {
			return s.failOpen(now, "decode", category, err)
		}
	}

	next, result := window.Check(state, now)
	if s.metrics != nil {
		s.metrics.RecordDecision(string(category), principalKey, result.Allowed)
	}
	if !result.Allowed {
		s.logger.Debug("rate limit exceeded",
			zap.String("category", string(category)),
			zap.String("principal", principalKey),
			zap.Int("limit", result.Limit))
		return result
	}

	data, err := json.Marshal(next)
	if err != nil {
		return s.failOpen(now, "encode", category, err)
	}
	if err := s.cache.Set(ctx, key, string(data), s.config.Window); err != nil {
		return s.failOpen(now, "set", category, err)
	}
	return result
}

func (s *Service) unlimited(now time.Time) core.Result {
	return core.Result{
		Allowed:   true,
		Limit:     math.MaxInt,
		Remaining: math.MaxInt,
		ResetAt:   now.Add(s.config.Window).Unix(),
	}
}

func (s *Service) failOpen(now time.Time, op string, category Category, err error) core.Result {
	s.logger.Warn("rate limit cache unavailable, allowing request",
		zap.String("op", op),
		zap.String("category", string(category)),
		zap.Error(err))
	if s.metrics != nil {
		s.metrics.RecordCacheFailure("ratelimit", op)
	}
	return s.unlimited(now)
}
