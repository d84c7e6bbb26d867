package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"

	"bawabamail/internal/delivery/http/helpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCORS(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	tests := []struct {
		name        string
		allowed     []string
		method      string
		origin      string
		preflight   bool
		wantStatus  int
		wantOrigin  string
		wantMethods bool
	}{
		{name: "allowed origin", allowed: []string{"https://bawaba.test/"}, method: http.MethodGet, origin: "https://bawaba.test", wantStatus: http.StatusOK, wantOrigin: "https://bawaba.test"},
		{name: "unknown origin", allowed: []string{"https://bawaba.test"}, method: http.MethodGet, origin: "https://evil.test", wantStatus: http.StatusOK},
		{name: "preflight allowed", allowed: []string{"https://bawaba.test"}, method: http.MethodOptions, origin: "https://bawaba.test", preflight: true, wantStatus: http.StatusNoContent, wantOrigin: "https://bawaba.test", wantMethods: true},
		{name: "preflight unknown", allowed: []string{"https://bawaba.test"}, method: http.MethodOptions, origin: "https://evil.test", preflight: true, wantStatus: http.StatusNoContent},
		{name: "wildcard", allowed: []string{"*"}, method: http.MethodGet, origin: "https://any.test", wantStatus: http.StatusOK, wantOrigin: "*"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "http://test/api/newsletter/subscribe", nil)
			req.Header.Set("Origin", tt.origin)
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			rr := httptest.NewRecorder()
			CORS(tt.allowed)(ok).ServeHTTP(rr, req)

			require.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, tt.wantOrigin, rr.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.wantMethods, rr.Header().Get("Access-Control-Allow-Methods") != "")
		})
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "http://test/healthz", nil)
	req.Header.Set(RequestIDHeader, "upstream-42")
	handler.ServeHTTP(rr, req)
	assert.Equal(t, "upstream-42", seen)
	assert.Equal(t, "upstream-42", rr.Header().Get(RequestIDHeader))

	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "http://test/healthz", nil)
	req.Header.Set(RequestIDHeader, "bad id with spaces")
	handler.ServeHTTP(rr, req)
	assert.Len(t, seen, 20)
	assert.NotEqual(t, "bad id with spaces", seen)
	assert.Equal(t, seen, rr.Header().Get(RequestIDHeader))
}

type fakeLimiter struct {
	allow bool
	err   error
	keys  []string
}

func (f *fakeLimiter) Allow(_ context.Context, key string) (bool, error) {
	f.keys = append(f.keys, key)
	return f.allow, f.err
}

func TestRateLimit(t *testing.T) {
	tests := []struct {
		name       string
		limiter    *fakeLimiter
		wantStatus int
	}{
		{"allowed", &fakeLimiter{allow: true}, http.StatusOK},
		{"limited", &fakeLimiter{allow: false}, http.StatusTooManyRequests},
		{"limiter down fails open", &fakeLimiter{err: errors.New("redis down")}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
			req := httptest.NewRequest(http.MethodPost, "http://test/api/newsletter/subscribe", nil)
			req.RemoteAddr = "203.0.113.7:5123"
			rr := httptest.NewRecorder()

			RateLimit(tt.limiter, nil, testLogger)(next).ServeHTTP(rr, req)

			require.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, []string{"203.0.113.7"}, tt.limiter.keys)
			if tt.wantStatus == http.StatusTooManyRequests {
				envelope := decodeEnvelope(t, rr)
				require.NotNil(t, envelope.Error)
				assert.Equal(t, helpers.ErrCodeRateLimited, envelope.Error.Code)
				assert.Equal(t, "60", rr.Header().Get("Retry-After"))
			}
		})
	}
}

func TestClientIP(t *testing.T) {
	proxies := []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")}

	tests := []struct {
		name    string
		trusted []netip.Prefix
		headers map[string]string
		remote  string
		want    string
	}{
		{"remote addr", proxies, nil, "198.51.100.1:443", "198.51.100.1"},
		{"no port", proxies, nil, "198.51.100.2", "198.51.100.2"},
		{"forwarded for via trusted proxy", proxies, map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.1"}, "10.0.0.2:80", "203.0.113.9"},
		{"client prepends a fake hop", proxies, map[string]string{"X-Forwarded-For": "1.1.1.1, 203.0.113.9"}, "10.0.0.2:80", "203.0.113.9"},
		{"all hops trusted", proxies, map[string]string{"X-Forwarded-For": "10.0.0.5, 10.0.0.1"}, "10.0.0.2:80", "10.0.0.5"},
		{"real ip via trusted proxy", proxies, map[string]string{"X-Real-IP": "203.0.113.10"}, "10.0.0.2:80", "203.0.113.10"},
		{"garbage real ip ignored", proxies, map[string]string{"X-Real-IP": "not-an-ip"}, "10.0.0.2:80", "10.0.0.2"},
		{"forwarded for from untrusted peer ignored", proxies, map[string]string{"X-Forwarded-For": "1.1.1.0"}, "203.0.113.9:5000", "203.0.113.9"},
		{"real ip from untrusted peer ignored", proxies, map[string]string{"X-Real-IP": "1.1.1.0"}, "203.0.113.9:5000", "203.0.113.9"},
		{"no trusted proxies configured", nil, map[string]string{"X-Forwarded-For": "1.1.1.0"}, "10.0.0.2:80", "10.0.0.2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "http://test/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(req, tt.trusted))
		})
	}
}

func TestRateLimit_SpoofedForwardedForSharesKey(t *testing.T) {
	limiter := &fakeLimiter{allow: true}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	handler := RateLimit(limiter, nil, testLogger)(next)

	for _, fwd := range []string{"1.1.1.0", "1.1.1.1", "1.1.1.2"} {
		req := httptest.NewRequest(http.MethodPost, "http://test/api/newsletter/subscribe", nil)
		req.RemoteAddr = "203.0.113.9:5123"
		req.Header.Set("X-Forwarded-For", fwd)
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
	assert.Equal(t, []string{"203.0.113.9", "203.0.113.9", "203.0.113.9"}, limiter.keys)
}
