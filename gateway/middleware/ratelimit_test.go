package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func newTestLimiter(limits map[string]RateLimit) (*RateLimiter, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	limiter := NewRateLimiter(limits, nil)
	limiter.clockNow = clock.Now
	return limiter, clock
}

func serve(h http.Handler, method, path, apiKey string) int {
	req := httptest.NewRequest(method, path, nil)
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)
	return res.Code
}

func TestRateLimiterRefillsOverTime(t *testing.T) {
	limiter, clock := newTestLimiter(map[string]RateLimit{
		"lending": {RequestsPerMinute: 60, Burst: 1},
	})
	handler := limiter.Middleware("lending")(okHandler())

	if code := serve(handler, http.MethodGet, "/v1/lending/reserves", ""); code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", code)
	}
	if code := serve(handler, http.MethodGet, "/v1/lending/reserves", ""); code != http.StatusTooManyRequests {
		t.Fatalf("expected burst to be spent, got %d", code)
	}
	clock.now = clock.now.Add(time.Second)
	if code := serve(handler, http.MethodGet, "/v1/lending/reserves", ""); code != http.StatusOK {
		t.Fatalf("expected a token after one second, got %d", code)
	}
}

func TestRateLimiterRouteCosts(t *testing.T) {
	limiter, _ := newTestLimiter(map[string]RateLimit{
		"lending-write": {
			RatePerSecond: 0.1,
			Burst:         4,
			DefaultTokens: 1,
			Tokens:        map[string]int{"POST /v1/lending/liquidations": 3},
		},
	})
	handler := limiter.Middleware("lending-write")(okHandler())

	steps := []struct {
		path string
		want int
	}{
		{"/v1/lending/liquidations", http.StatusOK},
		{"/v1/lending/liquidations", http.StatusTooManyRequests},
		{"/v1/lending/supply", http.StatusOK},
		{"/v1/lending/supply", http.StatusTooManyRequests},
	}
	for i, step := range steps {
		if code := serve(handler, http.MethodPost, step.path, "desk"); code != step.want {
			t.Fatalf("step %d %s: expected %d, got %d", i, step.path, step.want, code)
		}
	}
}

func TestRateLimiterBucketsPerKeyAndClient(t *testing.T) {
	limiter, _ := newTestLimiter(map[string]RateLimit{
		"lending":       {RatePerSecond: 0.1, Burst: 1},
		"lending-write": {RatePerSecond: 0.1, Burst: 1},
	})
	reads := limiter.Middleware("lending")(okHandler())
	writes := limiter.Middleware("lending-write")(okHandler())
	open := limiter.Middleware("unconfigured")(okHandler())

	if code := serve(reads, http.MethodGet, "/v1/lending/reserves", "tenant-a"); code != http.StatusOK {
		t.Fatalf("tenant a read: %d", code)
	}
	if code := serve(writes, http.MethodPost, "/v1/lending/borrow", "tenant-a"); code != http.StatusOK {
		t.Fatalf("tenant a write should use its own bucket: %d", code)
	}
	if code := serve(reads, http.MethodGet, "/v1/lending/reserves", "tenant-b"); code != http.StatusOK {
		t.Fatalf("tenant b should not share tenant a's bucket: %d", code)
	}
	if code := serve(reads, http.MethodGet, "/v1/lending/reserves", "tenant-a"); code != http.StatusTooManyRequests {
		t.Fatalf("tenant a second read should be limited: %d", code)
	}
	for i := 0; i < 3; i++ {
		if code := serve(open, http.MethodGet, "/healthz", "tenant-a"); code != http.StatusOK {
			t.Fatalf("keys without limits pass through: %d", code)
		}
	}
}

func TestRateLimiterEvictsIdleClients(t *testing.T) {
	limiter, clock := newTestLimiter(map[string]RateLimit{
		"lending": {RatePerSecond: 1, Burst: 1},
	})
	handler := limiter.Middleware("lending")(okHandler())

	serve(handler, http.MethodGet, "/v1/lending/reserves", "idle")
	clock.now = clock.now.Add(limiter.idleTTL + time.Second)
	serve(handler, http.MethodGet, "/v1/lending/reserves", "active")

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	if _, ok := limiter.visitors["lending|key:idle"]; ok {
		t.Fatalf("expected idle bucket to be evicted")
	}
	if _, ok := limiter.visitors["lending|key:active"]; !ok {
		t.Fatalf("expected active bucket to exist")
	}
}

func TestClientID(t *testing.T) {
	cases := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"api key", map[string]string{"X-API-Key": " k1 ", "X-Real-IP": "10.0.0.1"}, "1.2.3.4:80", "key:k1"},
		{"real ip", map[string]string{"X-Real-IP": "10.0.0.1"}, "1.2.3.4:80", "10.0.0.1"},
		{"forwarded", map[string]string{"X-Forwarded-For": "10.0.0.2, 10.0.0.3"}, "1.2.3.4:80", "10.0.0.2"},
		{"remote", nil, "1.2.3.4:80", "1.2.3.4"},
		{"remote without port", nil, "pipe", "pipe"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remote
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			if got := clientID(req); got != tc.want {
				t.Fatalf("clientID = %q, want %q", got, tc.want)
			}
		})
	}
}
