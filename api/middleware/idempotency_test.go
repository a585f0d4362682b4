package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	pkgerrors "github.com/domeo/backoffice/pkg/errors"
)

const batchPath = "/api/documents/create-batch"

type fakeStore struct {
	data map[string]string
	ttls map[string]time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	str, _ := value.(string)
	f.data[key] = str
	f.ttls[key] = ttl
	return true, nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("fake:%s:%s", scope, id)
}

func requestWithPattern(method, url, pattern string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, url, body)
	rc := chi.NewRouteContext()
	rc.RoutePatterns = []string{pattern}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func TestRouteEligible(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		pattern string
		ok      bool
	}{
		{"create batch", http.MethodPost, batchPath, true},
		{"notification read", http.MethodPost, "/api/notifications/{id}/read", true},
		{"read all", http.MethodPost, "/api/notifications/read-all", true},
		{"get document", http.MethodGet, "/api/documents/{id}", false},
		{"wrong method", http.MethodGet, batchPath, false},
		{"empty", http.MethodPost, "", false},
	}

	for _, tt := range tests {
		if got := routeEligible(tt.method, tt.pattern); got != tt.ok {
			t.Fatalf("%s: expected %v got %v", tt.name, tt.ok, got)
		}
	}
}

func TestIdempotencyMiddlewarePassesThroughWithoutHeader(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, time.Hour, nil)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	})

	for i := 0; i < 2; i++ {
		req := requestWithPattern(http.MethodPost, batchPath, batchPath, strings.NewReader(`{"client_id":"c1"}`))
		resp := httptest.NewRecorder()
		mw(handler).ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("expected 200 got %d", resp.Code)
		}
	}
	if calls != 2 {
		t.Fatalf("expected handler to run twice, ran %d", calls)
	}
	if len(store.data) != 0 {
		t.Fatalf("nothing should be stored without a key")
	}
}

func TestIdempotencyMiddlewareWithoutStore(t *testing.T) {
	mw := Idempotency(nil, time.Hour, nil)
	called := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	req := requestWithPattern(http.MethodPost, batchPath, batchPath, strings.NewReader(`{}`))
	req.Header.Set(IdempotencyHeader, "abc")
	mw(handler).ServeHTTP(httptest.NewRecorder(), req)
	if !called {
		t.Fatal("handler should run when no store is configured")
	}
}

func TestIdempotencyMiddlewareReplaysStoredResponse(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, 2*time.Hour, nil)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"client_id":"c1"}` {
			t.Errorf("handler saw body %q", body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"success":true}`))
	})

	req := requestWithPattern(http.MethodPost, batchPath, batchPath, strings.NewReader(`{"client_id":"c1"}`))
	req.Header.Set(IdempotencyHeader, "abc")
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected first response 200 got %d", resp.Code)
	}

	replay := requestWithPattern(http.MethodPost, batchPath, batchPath, strings.NewReader(`{"client_id":"c1"}`))
	replay.Header.Set(IdempotencyHeader, "abc")
	rec := httptest.NewRecorder()
	mw(handler).ServeHTTP(rec, replay)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected replay status 200 got %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("expected content-type header preserved")
	}
	if strings.TrimSpace(rec.Body.String()) != `{"success":true}` {
		t.Fatalf("expected stored body got %s", rec.Body.String())
	}
	if calls != 1 {
		t.Fatalf("handler executed %d times, expected 1", calls)
	}

	key := store.IdempotencyKey(http.MethodPost+"|"+batchPath, "abc")
	if store.ttls[key] != 2*time.Hour {
		t.Fatalf("expected configured ttl, got %v", store.ttls[key])
	}
}

func TestIdempotencyMiddlewareSkipsServerErrors(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, 0, nil)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	})

	for i := 0; i < 2; i++ {
		req := requestWithPattern(http.MethodPost, batchPath, batchPath, strings.NewReader(`{}`))
		req.Header.Set(IdempotencyHeader, "retry-me")
		mw(handler).ServeHTTP(httptest.NewRecorder(), req)
	}
	if calls != 2 {
		t.Fatalf("expected failed request to be retried, calls=%d", calls)
	}
	if len(store.data) != 0 {
		t.Fatalf("server errors must not be stored")
	}
}

func TestIdempotencyMiddlewareDetectsBodyChange(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, time.Hour, nil)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := requestWithPattern(http.MethodPost, batchPath, batchPath, strings.NewReader(`{"foo":"bar"}`))
	req.Header.Set(IdempotencyHeader, "xyz")
	mw(handler).ServeHTTP(httptest.NewRecorder(), req)

	replay := requestWithPattern(http.MethodPost, batchPath, batchPath, strings.NewReader(`{"foo":"diff"}`))
	replay.Header.Set(IdempotencyHeader, "xyz")
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, replay)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	var payload struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse error response: %v", err)
	}
	if payload.Code != string(pkgerrors.CodeIdempotency) {
		t.Fatalf("expected error code %s got %s", pkgerrors.CodeIdempotency, payload.Code)
	}
	if payload.Error == "" {
		t.Fatalf("expected error message")
	}
}

func TestRoutePatternFallsBackToPathForWildcards(t *testing.T) {
	req := requestWithPattern(http.MethodPost, batchPath, "/api/*", strings.NewReader(`{}`))
	if got := routePattern(req); got != batchPath {
		t.Fatalf("expected request path, got %q", got)
	}
}

func TestIdempotencyMiddlewareScopesByQuery(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, time.Hour, nil)
	var clients []string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clients = append(clients, r.URL.Query().Get("client_id"))
		w.WriteHeader(http.StatusNoContent)
	})

	const pattern = "/api/notifications/{notificationId}/read"
	for _, client := range []string{"A", "B", "A"} {
		req := requestWithPattern(http.MethodPost, "/api/notifications/n-1/read?client_id="+client, pattern, nil)
		req.Header.Set(IdempotencyHeader, "k1")
		resp := httptest.NewRecorder()
		mw(handler).ServeHTTP(resp, req)
		if resp.Code != http.StatusNoContent {
			t.Fatalf("client %s: expected 204 got %d", client, resp.Code)
		}
	}

	if len(clients) != 2 || clients[0] != "A" || clients[1] != "B" {
		t.Fatalf("expected handler to run once per client, ran for %v", clients)
	}
}

func TestBuildScopeCanonicalQuery(t *testing.T) {
	a := httptest.NewRequest(http.MethodPost, "/api/notifications/read-all?client_id=c1&x=1", nil)
	b := httptest.NewRequest(http.MethodPost, "/api/notifications/read-all?x=1&client_id=c1", nil)
	if buildScope(a) != buildScope(b) {
		t.Fatalf("parameter order should not change scope: %q vs %q", buildScope(a), buildScope(b))
	}
	c := httptest.NewRequest(http.MethodPost, "/api/notifications/read-all?client_id=c2", nil)
	if buildScope(a) == buildScope(c) {
		t.Fatal("different clients must not share a scope")
	}
	plain := httptest.NewRequest(http.MethodPost, batchPath, nil)
	if got := buildScope(plain); got != "POST|"+batchPath {
		t.Fatalf("unexpected scope %q", got)
	}
}
