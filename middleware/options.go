package middleware

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/KanavDutta/admission/principal"
)

// Recorder receives idempotency outcomes and absorbed cache failures.
// *metrics.Metrics implements it.
type Recorder interface {
	RecordIdempotency(outcome string)
	RecordCacheFailure(component, op string)
}

type options struct {
	resolver       principal.Resolver
	logger         *zap.Logger
	now            func() time.Time
	metrics        Recorder
	responseTTL    time.Duration
	lockTTL        time.Duration
	releaseTimeout time.Duration
	maxBodyBytes   int64
	methods        map[string]bool
}

func defaultOptions() options {
	return options{
		resolver:       principal.Resolve,
		logger:         zap.NewNop(),
		now:            time.Now,
		responseTTL:    24 * time.Hour,
		lockTTL:        2 * time.Minute,
		releaseTimeout: 5 * time.Second,
		maxBodyBytes:   1 << 20,
		methods:        map[string]bool{http.MethodPost: true},
	}
}

// Option configures the admission filters. Options that do not apply to a
// filter are ignored by it.
type Option func(*options)

// WithResolver sets how the principal key is derived from request claims.
func WithResolver(resolver principal.Resolver) Option {
	return func(o *options) {
		if resolver != nil {
			o.resolver = resolver
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock sets the time source used for Retry-After.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithMetrics sets the outcome recorder.
func WithMetrics(recorder Recorder) Option {
	return func(o *options) {
		o.metrics = recorder
	}
}

// WithResponseTTL sets how long successful responses are replayed. Default: 24h.
func WithResponseTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.responseTTL = ttl
		}
	}
}

// WithLockTTL bounds how long a crashed request can block its fingerprint.
// It should exceed the slowest expected handler latency. Default: 2m.
func WithLockTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.lockTTL = ttl
		}
	}
}

// WithMaxBodyBytes sets the largest body that is fingerprinted; larger
// bodies pass through unchecked. Default: 1 MiB.
func WithMaxBodyBytes(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.maxBodyBytes = n
		}
	}
}

// WithMethods sets which HTTP methods are deduplicated. Default: POST.
func WithMethods(methods ...string) Option {
	return func(o *options) {
		if len(methods) == 0 {
			return
		}
		o.methods = make(map[string]bool, len(methods))
		for _, m := range methods {
			o.methods[m] = true
		}
	}
}
