package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	pkgerrors "github.com/trydo/wts-backend/pkg/errors"
)

type fakeRateStore struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func newFakeRateStore() *fakeRateStore {
	return &fakeRateStore{counts: map[string]int64{}}
}

func (f *fakeRateStore) CountInWindow(_ context.Context, key string, _ time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.counts[key]++
	return f.counts[key], nil
}

func (f *fakeRateStore) RateLimitKey(parts ...string) string {
	return "test:" + strings.Join(parts, ":")
}

func okHandler(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }

func postLogin(handler http.Handler, remote, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
	req.RemoteAddr = remote
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRateLimitPreservesBody(t *testing.T) {
	policy := RateLimitPolicy{Name: "login", Window: time.Minute, PerIP: 2, PerEmail: 2}
	handler := RateLimit(policy, newFakeRateStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		if !strings.Contains(string(body), `"email":"tester@example.com"`) {
			t.Fatalf("unexpected body: %s", string(body))
		}
		w.WriteHeader(http.StatusOK)
	}))

	rec := postLogin(handler, "1.2.3.4:5678", `{"email":"tester@example.com","password":"secret"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRateLimitEmailBudgetIgnoresCaseAndIP(t *testing.T) {
	store := newFakeRateStore()
	policy := RateLimitPolicy{Name: "login", Window: time.Minute, PerEmail: 2}
	handler := RateLimit(policy, store, nil)(http.HandlerFunc(okHandler))

	bodies := []string{
		`{"email":"blocked@example.com"}`,
		`{"email":" Blocked@Example.com "}`,
		`{"email":"BLOCKED@example.com"}`,
	}
	for i, body := range bodies {
		rec := postLogin(handler, "10.0.0."+strconv.Itoa(i+1)+":80", body)
		if i < 2 {
			if rec.Code != http.StatusOK {
				t.Fatalf("attempt %d: expected 200, got %d", i, rec.Code)
			}
			continue
		}
		if rec.Code != http.StatusTooManyRequests {
			t.Fatalf("expected 429, got %d", rec.Code)
		}
		if rec.Header().Get("Retry-After") != "60" {
			t.Fatalf("expected Retry-After 60, got %q", rec.Header().Get("Retry-After"))
		}
		var payload struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
			t.Fatalf("decode error: %v", err)
		}
		if payload.Error.Code != string(pkgerrors.CodeRateLimit) {
			t.Fatalf("unexpected code: %s", payload.Error.Code)
		}
	}

	for key := range store.counts {
		if strings.Contains(key, "@") {
			t.Fatalf("raw email leaked into key %s", key)
		}
	}
}

func TestRateLimitIPBudget(t *testing.T) {
	policy := RateLimitPolicy{Name: "activate", Window: time.Minute, PerIP: 1}
	handler := RateLimit(policy, newFakeRateStore(), nil)(http.HandlerFunc(okHandler))

	if rec := postLogin(handler, "5.6.7.8:1234", `{}`); rec.Code != http.StatusOK {
		t.Fatalf("expected success, got %d", rec.Code)
	}
	if rec := postLogin(handler, "5.6.7.8:4321", `{}`); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec := postLogin(handler, "9.9.9.9:1234", `{}`); rec.Code != http.StatusOK {
		t.Fatalf("expected other ip to pass, got %d", rec.Code)
	}
}

func TestRateLimitIPBudgetIgnoresSpoofedForwardedFor(t *testing.T) {
	policy := RateLimitPolicy{Name: "login", Window: time.Minute, PerIP: 1}
	handler := TrustProxies(1)(RateLimit(policy, newFakeRateStore(), nil)(http.HandlerFunc(okHandler)))

	post := func(forwarded string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{}`))
		req.RemoteAddr = "10.0.0.2:443"
		req.Header.Set("X-Forwarded-For", forwarded)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := post("1.1.1.1, 5.6.7.8"); code != http.StatusOK {
		t.Fatalf("expected success, got %d", code)
	}
	// rotating the client-supplied prefix must not open a fresh budget
	if code := post("2.2.2.2, 5.6.7.8"); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", code)
	}
	if code := post("1.1.1.1, 9.9.9.9"); code != http.StatusOK {
		t.Fatalf("expected other caller to pass, got %d", code)
	}
}

func TestRateLimitStoreFailure(t *testing.T) {
	store := newFakeRateStore()
	store.err = errors.New("connection refused")
	policy := RateLimitPolicy{Name: "activate", Window: time.Minute, PerIP: 5}
	handler := RateLimit(policy, store, nil)(http.HandlerFunc(okHandler))

	if rec := postLogin(handler, "5.6.7.8:1234", `{}`); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestRateLimitDisabledPassesThrough(t *testing.T) {
	handler := RateLimit(RateLimitPolicy{Name: "login", PerIP: 1}, newFakeRateStore(), nil)(http.HandlerFunc(okHandler))
	for i := 0; i < 3; i++ {
		if rec := postLogin(handler, "5.6.7.8:1234", `{}`); rec.Code != http.StatusOK {
			t.Fatalf("expected pass-through without a window, got %d", rec.Code)
		}
	}
}
