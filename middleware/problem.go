package middleware

import (
	"encoding/json"
	"net/http"
)

// Machine-readable error codes carried in problem responses.
const (
	ErrorCodeRateLimited         = "OFFICE_RATE_LIMIT_EXCEEDED"
	ErrorCodeIdempotencyConflict = "OFFICE_IDEMPOTENCY_CONFLICT"
)

// Problem type URIs
const (
	TypeRateLimited         = "https://tools.ietf.org/html/rfc6585#section-4"
	TypeIdempotencyConflict = "https://tools.ietf.org/html/rfc9110#section-15.5.10"
)

// ProblemDetails is an RFC 7807 error body with errorCode and statusCode
// extensions. StatusCode always mirrors Status.
type ProblemDetails struct {
	Type       string `json:"type,omitempty"`
	Title      string `json:"title"`
	Status     int    `json:"status"`
	StatusCode int    `json:"statusCode"`
	Detail     string `json:"detail"`
	ErrorCode  string `json:"errorCode"`

	// RetryAfterSeconds mirrors the Retry-After header on 429 responses
	RetryAfterSeconds int64 `json:"retryAfterSeconds,omitempty"`
}

// WriteProblem writes p as application/problem+json with status p.Status.
func WriteProblem(w http.ResponseWriter, p ProblemDetails) {
	p.StatusCode = p.Status
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}
