package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeRateStore struct {
	counts map[string]int64
	err    error
	scopes []string
}

func (f *fakeRateStore) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	if f.err != nil {
		return false, 0, f.err
	}
	if f.counts == nil {
		f.counts = make(map[string]int64)
	}
	f.counts[scope]++
	f.scopes = append(f.scopes, scope)
	count := f.counts[scope]
	return count <= limit, count, nil
}

func rateLimitedHandler(store *fakeRateStore, limit int64) http.Handler {
	policy := NewRateLimitPolicy("webhooks", time.Minute, limit)
	return RateLimit(policy, store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
}

func TestRateLimitBlocksOverLimit(t *testing.T) {
	t.Parallel()

	store := &fakeRateStore{}
	handler := rateLimitedHandler(store, 2)

	for i, want := range []int{http.StatusAccepted, http.StatusAccepted, http.StatusTooManyRequests} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/payments/stripe", nil)
		req.RemoteAddr = "203.0.113.7:51234"
		handler.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Fatalf("request %d: expected %d, got %d", i+1, want, rec.Code)
		}
	}
}

func TestRateLimitScopesByClientIP(t *testing.T) {
	t.Parallel()

	store := &fakeRateStore{}
	handler := rateLimitedHandler(store, 1)

	first := httptest.NewRequest(http.MethodPost, "/payments/stripe", nil)
	first.RemoteAddr = "203.0.113.7:51234"
	second := httptest.NewRequest(http.MethodPost, "/payments/stripe", nil)
	second.RemoteAddr = "198.51.100.4:40918"

	for _, req := range []*http.Request{first, second} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusAccepted {
			t.Fatalf("expected distinct IPs to each pass, got %d", rec.Code)
		}
	}

	if len(store.scopes) != 2 || store.scopes[0] == store.scopes[1] {
		t.Fatalf("expected two distinct scopes, got %v", store.scopes)
	}
}

func TestRateLimitPrefersForwardedHeader(t *testing.T) {
	t.Parallel()

	store := &fakeRateStore{}
	handler := rateLimitedHandler(store, 10)

	req := httptest.NewRequest(http.MethodPost, "/payments/stripe", nil)
	req.RemoteAddr = "10.0.0.1:443"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if len(store.scopes) != 1 || store.scopes[0] != "webhooks:ip:203.0.113.7" {
		t.Fatalf("expected forwarded address in scope, got %v", store.scopes)
	}
}

func TestRateLimitFailsOpenOnStoreError(t *testing.T) {
	t.Parallel()

	store := &fakeRateStore{err: errors.New("redis down")}
	handler := rateLimitedHandler(store, 1)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/payments/stripe", nil)
	req.RemoteAddr = "203.0.113.7:51234"
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected request to pass when the counter backend is down, got %d", rec.Code)
	}
}

func TestRateLimitDisabledPolicyPassesThrough(t *testing.T) {
	t.Parallel()

	handler := rateLimitedHandler(&fakeRateStore{}, 0)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/payments/stripe", nil)
	req.RemoteAddr = "203.0.113.7:51234"
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected zero limit to disable throttling, got %d", rec.Code)
	}
}
