package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/KanavDutta/admission/cache"
	"github.com/KanavDutta/admission/metrics"
	"github.com/KanavDutta/admission/middleware"
	"github.com/KanavDutta/admission/ratelimit"
)

// HeaderRequestID carries the request id, generated when the caller sent none.
const HeaderRequestID = "X-Request-ID"

// Route is one guarded endpoint.
type Route struct {
	Pattern  string
	Category ratelimit.Category
}

// Routes lists the guarded demo endpoints, one per category.
var Routes = []Route{
	{"POST /api/save", ratelimit.CategorySave},
	{"POST /api/quickcreate", ratelimit.CategoryQuickCreate},
	{"POST /api/search", ratelimit.CategorySearch},
	{"POST /api/jobs", ratelimit.CategoryJobs},
	{"POST /api/share", ratelimit.CategoryShare},
	{"GET /api/recent", ratelimit.CategoryRecent},
}

// Deps are the collaborators the router wires together.
type Deps struct {
	Limiter ratelimit.Checker
	Cache   cache.Cache
	Logger  *zap.Logger

	// Metrics, when set, records idempotency outcomes and backs /stats
	Metrics *metrics.Metrics

	// Gatherer backs /metrics. Default: prometheus.DefaultGatherer
	Gatherer prometheus.Gatherer

	// JWTSecret enables bearer token validation when non-empty
	JWTSecret []byte

	// Ping reports cache health on /health. Optional.
	Ping func(ctx context.Context) error

	// FilterOptions are appended to the options of both admission filters
	FilterOptions []middleware.Option
}

// NewRouter builds the service's HTTP handler. Each guarded route runs
// rate limiting first, then idempotency, then the endpoint.
func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	opts := []middleware.Option{middleware.WithLogger(logger)}
	if d.Metrics != nil {
		opts = append(opts, middleware.WithMetrics(d.Metrics))
	}
	opts = append(opts, d.FilterOptions...)

	limit := middleware.NewRateLimit(d.Limiter, opts...)
	idem := middleware.NewIdempotency(d.Cache, opts...)

	mux := http.NewServeMux()
	for _, route := range Routes {
		guarded := limit.Handler(route.Category, idem.Middleware(NewHandler(route.Category)))
		mux.Handle(route.Pattern, guarded)
	}

	mux.Handle("GET /health", healthHandler(d.Ping))
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	if d.Metrics != nil {
		mux.Handle("GET /stats", NewStatsHandler(d.Metrics))
	}

	var h http.Handler = mux
	if len(d.JWTSecret) > 0 {
		h = Authenticate(d.JWTSecret, logger)(h)
	}
	return requestID(h)
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)
		next.ServeHTTP(w, r)
	})
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Cache   string `json:"cache,omitempty"`
}

// The filters fail open, so an unreachable cache degrades but does not
// take the service down.
func healthHandler(ping func(ctx context.Context) error) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{Status: "healthy", Service: "admission"}
		if ping != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				resp.Status = "degraded"
				resp.Cache = err.Error()
			} else {
				resp.Cache = "ok"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})
}
