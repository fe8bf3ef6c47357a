// Package admission guards mutating HTTP endpoints that run on many
// stateless instances behind a shared cache.
//
// Two filters run in front of each guarded handler:
//
//   - a sliding-window rate limiter that bounds requests per principal per
//     operation category, and
//   - an idempotency filter that executes a retried POST once, replays its
//     successful response and rejects identical requests still in flight.
//
// Both identify the caller by a principal key derived from verified token
// claims, and both fail open: a cache outage never blocks a request.
//
// # Quick Start
//
//	shared := cache.NewRedisCache(cache.RedisConfig{
//	    Addrs:     []string{"localhost:6379"},
//	    Namespace: "office",
//	})
//
//	guard, err := admission.New(shared, ratelimit.DefaultConfig(), nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	mux.Handle("POST /api/save", guard.Guard(ratelimit.CategorySave, saveHandler))
//
// Claims must already be on the request context, see principal.NewContext.
// Requests without a resolvable principal pass through both filters.
//
// # Responses
//
// Allowed requests carry X-RateLimit-Limit, X-RateLimit-Remaining and
// X-RateLimit-Reset. Denied requests get 429 with Retry-After and an
// application/problem+json body whose errorCode is
// OFFICE_RATE_LIMIT_EXCEEDED. A replayed response carries
// X-Idempotency-Status: cached, a freshly stored one X-Idempotency-Status:
// new. A duplicate of an in-flight request gets 409 with errorCode
// OFFICE_IDEMPOTENCY_CONFLICT.
//
// # Caveats
//
// Counters are updated with read-then-write, so concurrent requests from one
// principal may slightly exceed a limit. Only 2xx responses are replayed.
package admission
