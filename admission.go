package admission

import (
	"net/http"

	"github.com/KanavDutta/admission/cache"
	"github.com/KanavDutta/admission/middleware"
	"github.com/KanavDutta/admission/principal"
	"github.com/KanavDutta/admission/ratelimit"
)

// Re-export main types for convenience
type (
	Cache     = cache.Cache
	Category  = ratelimit.Category
	Config    = ratelimit.Config
	Claims    = principal.Claims
	MapClaims = principal.MapClaims
	Option    = middleware.Option
)

// Admission pairs the rate limit and idempotency filters over one cache.
type Admission struct {
	Limiter     *ratelimit.Service
	RateLimit   *middleware.RateLimit
	Idempotency *middleware.Idempotency
}

// New builds both filters over c. Service options configure the limiter,
// opts configure both filters.
func New(c cache.Cache, cfg ratelimit.Config, opts []middleware.Option, serviceOpts ...ratelimit.Option) (*Admission, error) {
	limiter, err := ratelimit.NewService(c, cfg, serviceOpts...)
	if err != nil {
		return nil, err
	}
	return &Admission{
		Limiter:     limiter,
		RateLimit:   middleware.NewRateLimit(limiter, opts...),
		Idempotency: middleware.NewIdempotency(c, opts...),
	}, nil
}

// Guard wraps next with the category's rate limit, then idempotency.
func (a *Admission) Guard(category ratelimit.Category, next http.Handler) http.Handler {
	return a.RateLimit.Handler(category, a.Idempotency.Middleware(next))
}
