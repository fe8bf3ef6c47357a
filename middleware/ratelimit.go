package middleware

import (
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/KanavDutta/admission/principal"
	"github.com/KanavDutta/admission/ratelimit"
)

// Rate limit response headers
const (
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
	HeaderRetryAfter         = "Retry-After"
)

// RateLimit provides HTTP middleware that applies per-principal,
// per-category limits. The category is bound when the route is registered.
type RateLimit struct {
	checker ratelimit.Checker
	opts    options
}

// NewRateLimit creates the rate limit filter.
func NewRateLimit(checker ratelimit.Checker, opts ...Option) *RateLimit {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &RateLimit{checker: checker, opts: o}
}

// Middleware returns a constructor wrapping handlers with category's limit.
func (rl *RateLimit) Middleware(category ratelimit.Category) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return rl.Handler(category, next)
	}
}

// Handler wraps next with category's limit.
func (rl *RateLimit) Handler(category ratelimit.Category, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, ok := principal.FromRequest(r, rl.opts.resolver)
		if !ok {
			// No stable identity: authentication is enforced upstream
			next.ServeHTTP(w, r)
			return
		}

		result := rl.checker.CheckAndIncrement(r.Context(), key, category)

		h := w.Header()
		h.Set(HeaderRateLimitLimit, strconv.Itoa(result.Limit))
		h.Set(HeaderRateLimitReset, strconv.FormatInt(result.ResetAt, 10))

		if !result.Allowed {
			retryAfter := result.RetryAfter(rl.opts.now())
			h.Set(HeaderRateLimitRemaining, "0")
			h.Set(HeaderRetryAfter, strconv.FormatInt(retryAfter, 10))

			rl.opts.logger.Debug("request rate limited",
				zap.String("category", string(category)),
				zap.String("path", r.URL.Path),
				zap.Int64("retry_after", retryAfter))

			WriteProblem(w, ProblemDetails{
				Type:              TypeRateLimited,
				Title:             "Too Many Requests",
				Status:            http.StatusTooManyRequests,
				Detail:            fmt.Sprintf("Rate limit of %d requests exceeded for %s operations. Retry after %d seconds.", result.Limit, category, retryAfter),
				ErrorCode:         ErrorCodeRateLimited,
				RetryAfterSeconds: retryAfter,
			})
			return
		}

		h.Set(HeaderRateLimitRemaining, strconv.Itoa(result.Remaining))
		next.ServeHTTP(w, r)
	})
}
