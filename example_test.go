package admission_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/KanavDutta/admission"
	"github.com/KanavDutta/admission/cache"
	"github.com/KanavDutta/admission/principal"
	"github.com/KanavDutta/admission/ratelimit"
)

func ExampleAdmission_Guard() {
	cfg := ratelimit.DefaultConfig()
	cfg.Limits[ratelimit.CategoryQuickCreate] = 3

	guard, err := admission.New(cache.NewMemoryCache("example"), cfg, nil)
	if err != nil {
		panic(err)
	}

	handler := guard.Guard(ratelimit.CategoryQuickCreate, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	for i := 1; i <= 5; i++ {
		// Requests 1 and 2 share a body, so the second is a replay
		body := fmt.Sprintf(`{"n":%d}`, max(i, 2))
		req := httptest.NewRequest(http.MethodPost, "/quickcreate", strings.NewReader(body))
		req = req.WithContext(principal.NewContext(req.Context(), principal.MapClaims{"sub": "user-123"}))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		fmt.Printf("request %d: %d remaining=%s idempotency=%s\n",
			i, w.Code, w.Header().Get("X-RateLimit-Remaining"), w.Header().Get("X-Idempotency-Status"))
	}

	// Output:
	// request 1: 201 remaining=2 idempotency=new
	// request 2: 201 remaining=1 idempotency=cached
	// request 3: 201 remaining=0 idempotency=new
	// request 4: 429 remaining=0 idempotency=
	// request 5: 429 remaining=0 idempotency=
}
