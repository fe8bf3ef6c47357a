package api

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/KanavDutta/admission/principal"
	"github.com/KanavDutta/admission/ratelimit"
)

// Handler serves the demo endpoints that sit behind the admission filters.
// It stands in for the real office operations: every call creates an
// entity with a fresh id, so a replayed response is easy to tell apart
// from a second execution.
type Handler struct {
	category ratelimit.Category
	now      func() time.Time
}

// NewHandler creates a demo handler for category.
func NewHandler(category ratelimit.Category) *Handler {
	return &Handler{category: category, now: time.Now}
}

// EntityResponse is returned by the mutating demo endpoints.
type EntityResponse struct {
	ID        string          `json:"id"`
	Operation string          `json:"operation"`
	Principal string          `json:"principal,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// RecentResponse is returned by the read-only demo endpoint.
type RecentResponse struct {
	Operation string           `json:"operation"`
	Items     []EntityResponse `json:"items"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ServeHTTP creates an entity from a JSON body, or lists nothing on GET.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key, _ := principal.FromRequest(r, nil)

	if r.Method == http.MethodGet {
		h.sendJSON(w, http.StatusOK, RecentResponse{Operation: string(h.category), Items: []EntityResponse{}})
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.sendError(w, http.StatusBadRequest, "unreadable_body", "Request body could not be read")
		return
	}
	if len(body) > 0 && !json.Valid(body) {
		h.sendError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	h.sendJSON(w, http.StatusCreated, EntityResponse{
		ID:        uuid.NewString(),
		Operation: string(h.category),
		Principal: key,
		Payload:   body,
		CreatedAt: h.now().UTC(),
	})
}

func (h *Handler) sendJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

func (h *Handler) sendError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	h.sendJSON(w, statusCode, ErrorResponse{
		Error:   errorCode,
		Message: message,
	})
}
