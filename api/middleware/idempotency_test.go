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

	pkgerrors "github.com/angelmondragon/crushlink-backend/pkg/errors"
)

type fakeStore struct {
	data map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]string)}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	str, _ := value.(string)
	f.data[key] = str
	return true, nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("fake:%s:%s", scope, id)
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

const crushesPath = "/api/v1/crushes"

func requestWithPattern(method, url, pattern string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, url, body)
	rc := chi.NewRouteContext()
	rc.RoutePatterns = []string{pattern}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func TestIdempotencyCoversSubmissionsOnly(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		pattern string
		want    bool
	}{
		{"submit", http.MethodPost, crushesPath, true},
		{"validate", http.MethodPost, "/api/public/validate", false},
		{"wrong method", http.MethodGet, crushesPath, false},
	}
	for _, tt := range tests {
		if got := covered(tt.method, tt.pattern); got != tt.want {
			t.Fatalf("%s: expected %v got %v", tt.name, tt.want, got)
		}
	}
}

func TestIdempotencyMiddlewarePassesThroughWithoutHeader(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, time.Hour, nil)
	calls := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	})

	for i := 0; i < 2; i++ {
		req := requestWithPattern(http.MethodPost, crushesPath, crushesPath, strings.NewReader(`{"usn":"4VP21CS045"}`))
		mw(handler).ServeHTTP(httptest.NewRecorder(), req)
	}
	if calls != 2 {
		t.Fatalf("expected handler to run twice, ran %d", calls)
	}
	if len(store.data) != 0 {
		t.Fatalf("nothing should be stored without a key")
	}
}

func TestIdempotencyMiddlewareReplaysStoredResponse(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, time.Hour, nil)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"data":{"status":"pending"}}`))
	})

	req := requestWithPattern(http.MethodPost, crushesPath, crushesPath, strings.NewReader(`{"usn":"4VP21CS045"}`))
	req.Header.Set("Idempotency-Key", "abc")
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected first response 200 got %d", resp.Code)
	}

	replay := requestWithPattern(http.MethodPost, crushesPath, crushesPath, strings.NewReader(`{"usn":"4VP21CS045"}`))
	replay.Header.Set("Idempotency-Key", "abc")
	rec := httptest.NewRecorder()
	mw(handler).ServeHTTP(rec, replay)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected replay status 200 got %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("expected content-type header preserved")
	}
	if rec.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatalf("expected replay marker")
	}
	if strings.TrimSpace(rec.Body.String()) != `{"data":{"status":"pending"}}` {
		t.Fatalf("expected stored body got %s", rec.Body.String())
	}
	if calls != 1 {
		t.Fatalf("handler executed %d times, expected 1", calls)
	}
}

func TestIdempotencyMiddlewareDoesNotStoreServerErrors(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, time.Hour, nil)
	calls := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	for i := 0; i < 2; i++ {
		req := requestWithPattern(http.MethodPost, crushesPath, crushesPath, strings.NewReader(`{}`))
		req.Header.Set("Idempotency-Key", "retry-me")
		mw(handler).ServeHTTP(httptest.NewRecorder(), req)
	}
	if calls != 2 {
		t.Fatalf("retry after 503 should reach the handler, ran %d", calls)
	}
}

func TestIdempotencyMiddlewareDetectsBodyChange(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, time.Hour, nil)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := requestWithPattern(http.MethodPost, crushesPath, crushesPath, strings.NewReader(`{"usn":"4VP21CS045"}`))
	req.Header.Set("Idempotency-Key", "xyz")
	mw(handler).ServeHTTP(httptest.NewRecorder(), req)

	replay := requestWithPattern(http.MethodPost, crushesPath, crushesPath, strings.NewReader(`{"usn":"4VP21CS099"}`))
	replay.Header.Set("Idempotency-Key", "xyz")
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, replay)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse error response: %v", err)
	}
	if payload.Error.Code != string(pkgerrors.CodeIdempotency) {
		t.Fatalf("expected error code %s got %s", pkgerrors.CodeIdempotency, payload.Error.Code)
	}
}

func TestIdempotencyMiddlewareRejectsOversizedBody(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, time.Hour, nil)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler must not run for an oversized body")
	})

	big := `{"name":"` + strings.Repeat("a", 17<<10) + `"}`
	req := requestWithPattern(http.MethodPost, crushesPath, crushesPath, strings.NewReader(big))
	req.Header.Set("Idempotency-Key", "huge")
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if len(store.data) != 0 {
		t.Fatalf("oversized request must not be stored")
	}
}
