package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const testSecret = "lending-secret"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func subjectHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(Subject(r.Context())))
	})
}

func TestAuthenticatorExposesSubject(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{Enabled: true, HMACSecret: testSecret, Issuer: "lendingd"}, nil)
	handler := auth.Middleware("lending:write")(subjectHandler())

	token := signToken(t, jwt.MapClaims{
		"sub":   "0x0000000000000000000000000000000000000a11",
		"iss":   "lendingd",
		"scope": "lending:read lending:write",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/lending/supply", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if got := res.Body.String(); got != "0x0000000000000000000000000000000000000a11" {
		t.Fatalf("unexpected subject %q", got)
	}
}

func TestAuthenticatorRejects(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{Enabled: true, HMACSecret: testSecret, Audience: "lending"}, nil)
	handler := auth.Middleware("lending:write")(subjectHandler())
	future := time.Now().Add(time.Hour).Unix()

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{name: "missing", header: "", want: http.StatusUnauthorized},
		{name: "malformed", header: "Bearer not-a-token", want: http.StatusUnauthorized},
		{name: "expired", header: "Bearer " + signToken(t, jwt.MapClaims{"sub": "a", "aud": "lending", "scope": "lending:write", "exp": time.Now().Add(-time.Hour).Unix()}), want: http.StatusUnauthorized},
		{name: "audience", header: "Bearer " + signToken(t, jwt.MapClaims{"sub": "a", "aud": "other", "scope": "lending:write", "exp": future}), want: http.StatusUnauthorized},
		{name: "no subject", header: "Bearer " + signToken(t, jwt.MapClaims{"aud": "lending", "scope": "lending:write", "exp": future}), want: http.StatusUnauthorized},
		{name: "scope", header: "Bearer " + signToken(t, jwt.MapClaims{"sub": "a", "aud": []interface{}{"lending"}, "scope": "lending:read", "exp": future}), want: http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/lending/borrow", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			res := httptest.NewRecorder()
			handler.ServeHTTP(res, req)
			if res.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, res.Code)
			}
		})
	}
}

type memoryReplay map[string]bool

func (m memoryReplay) Observe(_ context.Context, subject, id string, _ time.Time) (bool, error) {
	key := subject + "|" + id
	seen := m[key]
	m[key] = true
	return seen, nil
}

func TestAuthenticatorRejectsReplayedTokens(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{Enabled: true, HMACSecret: testSecret}, nil)
	auth.SetReplayGuard(memoryReplay{})
	handler := auth.Middleware()(subjectHandler())
	exp := time.Now().Add(time.Hour).Unix()

	serve := func(token string) int {
		req := httptest.NewRequest(http.MethodPost, "/v1/lending/withdraw", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		return res.Code
	}
	token := signToken(t, jwt.MapClaims{"sub": "alice", "jti": "1", "exp": exp})
	if code := serve(token); code != http.StatusOK {
		t.Fatalf("expected first use to pass, got %d", code)
	}
	if code := serve(token); code != http.StatusUnauthorized {
		t.Fatalf("expected replay to be rejected, got %d", code)
	}
	if code := serve(signToken(t, jwt.MapClaims{"sub": "alice", "exp": exp})); code != http.StatusUnauthorized {
		t.Fatalf("expected token without jti to be rejected, got %d", code)
	}
}

func TestAuthenticatorDisabledReadsCallerHeader(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{}, nil)
	handler := auth.Middleware("lending:write")(subjectHandler())

	req := httptest.NewRequest(http.MethodPost, "/v1/lending/supply", nil)
	req.Header.Set(CallerHeader, " 0xabc ")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK || res.Body.String() != "0xabc" {
		t.Fatalf("unexpected response %d %q", res.Code, res.Body.String())
	}
}

func TestCORSPreflight(t *testing.T) {
	handler := CORS(CORSConfig{AllowedOrigins: []string{"https://app.example"}})(subjectHandler())

	req := httptest.NewRequest(http.MethodOptions, "/v1/lending/supply", nil)
	req.Header.Set("Origin", "https://app.example")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", res.Code)
	}
	if got := res.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example" {
		t.Fatalf("unexpected allow origin %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/lending/reserves", nil)
	req.Header.Set("Origin", "https://evil.example")
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if got := res.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected no allow origin for unknown origin, got %q", got)
	}
}
