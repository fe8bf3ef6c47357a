package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/KanavDutta/admission/principal"
	"github.com/KanavDutta/admission/ratelimit"
)

func TestHandler_CreatesEntity(t *testing.T) {
	handler := NewHandler(ratelimit.CategorySave)
	handler.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	req := httptest.NewRequest(http.MethodPost, "/api/save", bytes.NewBufferString(`{"title":"draft"}`))
	req = req.WithContext(principal.NewContext(req.Context(), principal.MapClaims{"oid": "user-1"}))
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusCreated)
	}

	var resp EntityResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ID == "" {
		t.Error("ID should be generated")
	}
	if resp.Operation != "Save" {
		t.Errorf("Operation = %q, want Save", resp.Operation)
	}
	if resp.Principal != "user-1" {
		t.Errorf("Principal = %q, want user-1", resp.Principal)
	}
	if string(resp.Payload) != `{"title":"draft"}` {
		t.Errorf("Payload = %s", resp.Payload)
	}
	if !resp.CreatedAt.Equal(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("CreatedAt = %v", resp.CreatedAt)
	}
}

func TestHandler_FreshIDPerExecution(t *testing.T) {
	handler := NewHandler(ratelimit.CategoryJobs)
	ids := make(map[string]bool)

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/jobs", bytes.NewBufferString(`{}`)))

		var resp EntityResponse
		json.NewDecoder(w.Body).Decode(&resp)
		ids[resp.ID] = true
	}

	if len(ids) != 3 {
		t.Errorf("got %d distinct ids, want 3", len(ids))
	}
}

func TestHandler_RejectsInvalidJSON(t *testing.T) {
	handler := NewHandler(ratelimit.CategorySave)

	req := httptest.NewRequest(http.MethodPost, "/api/save", bytes.NewBufferString(`{"title":`))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusBadRequest)
	}

	var resp ErrorResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Error != "invalid_request" {
		t.Errorf("Error = %q, want invalid_request", resp.Error)
	}
}

func TestHandler_Recent(t *testing.T) {
	handler := NewHandler(ratelimit.CategoryRecent)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/recent", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp RecentResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Operation != "Recent" || resp.Items == nil {
		t.Errorf("unexpected response %+v", resp)
	}
}
