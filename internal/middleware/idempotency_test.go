package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/edwds/mimy/internal/idempotency"
)

const batchRoute = "/api/ranking/batch"

func idemHandler(repo idempotency.Repository, inner http.HandlerFunc) http.Handler {
	return IdempotencyMiddleware(repo, map[string]bool{batchRoute: true})(inner)
}

func postBatch(handler http.Handler, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, batchRoute, nil)
	if key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestIdempotencyMiddleware_MissingKey(t *testing.T) {
	handler := idemHandler(idempotency.NewInMemoryRepository(), func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	w := postBatch(handler, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "missing_idempotency_key") {
		t.Errorf("expected error code 'missing_idempotency_key', got %s", w.Body.String())
	}
}

func TestIdempotencyMiddleware_KeyTooLong(t *testing.T) {
	handler := idemHandler(idempotency.NewInMemoryRepository(), func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	w := postBatch(handler, strings.Repeat("a", idempotency.MaxKeyLength+1))
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "idempotency_key_too_long") {
		t.Errorf("expected error code 'idempotency_key_too_long', got %s", w.Body.String())
	}
}

func TestIdempotencyMiddleware_FirstRequestStoresResponse(t *testing.T) {
	repo := idempotency.NewInMemoryRepository()
	handlerCalled := false
	handler := idemHandler(repo, func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"committed":3,"failed":0}`))
	})

	w := postBatch(handler, "batch-key-1")
	if !handlerCalled {
		t.Error("handler should run for the first request")
	}
	if w.Code != http.StatusCreated {
		t.Errorf("expected status 201, got %d", w.Code)
	}

	stored, err := repo.Get("batch-key-1")
	if err != nil {
		t.Fatalf("expected key to be stored, got error: %v", err)
	}
	if stored.ResponseBody != w.Body.String() {
		t.Error("stored response body does not match sent response")
	}
	if stored.ResponseStatusCode != http.StatusCreated {
		t.Errorf("stored status = %d, want 201", stored.ResponseStatusCode)
	}
}

func TestIdempotencyMiddleware_DuplicateReplaysResponse(t *testing.T) {
	calls := 0
	handler := idemHandler(idempotency.NewInMemoryRepository(), func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"committed":5,"failed":1}`))
	})

	w1 := postBatch(handler, "batch-key-2")
	w2 := postBatch(handler, "batch-key-2")

	if calls != 1 {
		t.Errorf("handler should run exactly once, ran %d times", calls)
	}
	if w1.Code != w2.Code {
		t.Errorf("status codes differ: %d vs %d", w1.Code, w2.Code)
	}
	if w1.Body.String() != w2.Body.String() {
		t.Errorf("response bodies differ:\n%s\nvs\n%s", w1.Body.String(), w2.Body.String())
	}
}

func TestIdempotencyMiddleware_BypassesNonPost(t *testing.T) {
	handlerCalled := false
	handler := idemHandler(idempotency.NewInMemoryRepository(), func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		w.WriteHeader(http.StatusOK)
	})

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, batchRoute, nil))

	if !handlerCalled || w.Code != http.StatusOK {
		t.Errorf("GET without a key should pass through, got called=%v status=%d", handlerCalled, w.Code)
	}
}

func TestIdempotencyMiddleware_BypassesUnconfiguredRoutes(t *testing.T) {
	handlerCalled := false
	handler := idemHandler(idempotency.NewInMemoryRepository(), func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		w.WriteHeader(http.StatusOK)
	})

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/match/scores", nil))

	if !handlerCalled || w.Code != http.StatusOK {
		t.Errorf("POST to an unconfigured route should pass through, got called=%v status=%d", handlerCalled, w.Code)
	}
}

func TestIdempotencyMiddleware_ErrorResponsesNotCached(t *testing.T) {
	repo := idempotency.NewInMemoryRepository()
	calls := 0
	handler := idemHandler(repo, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_tier"}`))
	})

	postBatch(handler, "batch-key-err")
	if _, err := repo.Get("batch-key-err"); err != idempotency.ErrKeyNotFound {
		t.Error("error response should not be cached")
	}

	postBatch(handler, "batch-key-err")
	if calls != 2 {
		t.Errorf("handler should run again after an error response, ran %d times", calls)
	}
}

func TestIdempotencyMiddleware_KeyAvailableInContext(t *testing.T) {
	var capturedKey string
	handler := idemHandler(idempotency.NewInMemoryRepository(), func(w http.ResponseWriter, r *http.Request) {
		capturedKey = GetIdempotencyKey(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	postBatch(handler, "batch-key-ctx")
	if capturedKey != "batch-key-ctx" {
		t.Errorf("expected context key 'batch-key-ctx', got %q", capturedKey)
	}
}

func TestIdempotencyMiddleware_LargeResponse(t *testing.T) {
	responseBody := `{"data":"` + string(bytes.Repeat([]byte("a"), 10000)) + `"}`
	handler := idemHandler(idempotency.NewInMemoryRepository(), func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(responseBody))
	})

	w1 := postBatch(handler, "batch-key-large")
	w2 := postBatch(handler, "batch-key-large")

	if w1.Body.String() != w2.Body.String() {
		t.Error("replayed large response does not match original")
	}
	if w2.Body.Len() != len(responseBody) {
		t.Errorf("replayed response length = %d, want %d", w2.Body.Len(), len(responseBody))
	}
}

func TestIdempotencyMiddleware_ConcurrentRequests(t *testing.T) {
	repo := idempotency.NewInMemoryRepository()
	var mu sync.Mutex
	calls := 0
	handler := idemHandler(repo, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()

		// Widen the check-then-store window.
		time.Sleep(50 * time.Millisecond)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"committed":2,"failed":0}`))
	})

	const numRequests = 5
	var wg sync.WaitGroup
	responses := make([]*httptest.ResponseRecorder, numRequests)
	for i := 0; i < numRequests; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			responses[idx] = postBatch(handler, "batch-key-concurrent")
		}(i)
	}
	wg.Wait()

	firstBody := responses[0].Body.String()
	for i, w := range responses {
		if w.Code != http.StatusOK {
			t.Errorf("request %d: expected status 200, got %d", i, w.Code)
		}
		if w.Body.String() != firstBody {
			t.Errorf("request %d: response body differs from first response", i)
		}
	}

	// Concurrent first requests may each run the handler; the store keeps
	// the first completed response either way.
	mu.Lock()
	if calls > 1 {
		t.Logf("handler ran %d times for concurrent duplicates", calls)
	}
	mu.Unlock()

	stored, err := repo.Get("batch-key-concurrent")
	if err != nil {
		t.Fatalf("expected key to be stored, got error: %v", err)
	}
	if stored.ResponseBody != firstBody {
		t.Error("stored response body does not match responses")
	}
}
