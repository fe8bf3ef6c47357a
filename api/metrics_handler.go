package api

import (
	"encoding/json"
	"net/http"

	"github.com/KanavDutta/admission/metrics"
)

// StatsProvider defines the interface for getting admission statistics
type StatsProvider interface {
	GetSnapshot() *metrics.Snapshot
}

// StatsHandler handles GET /stats requests
type StatsHandler struct {
	provider StatsProvider
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(provider StatsProvider) *StatsHandler {
	return &StatsHandler{provider: provider}
}

// ServeHTTP writes the current snapshot as JSON.
func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.provider.GetSnapshot())
}
