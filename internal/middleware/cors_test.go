package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCORS(t *testing.T) {
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name        string
		origins     []string
		method      string
		origin      string
		wantStatus  int
		wantAllowed string
		wantMaxAge  string
		preflight   bool
	}{
		{
			name:       "disabled without origins",
			origins:    nil,
			method:     http.MethodGet,
			origin:     "https://evil.example",
			wantStatus: http.StatusOK,
		},
		{
			name:        "allowed origin",
			origins:     []string{"http://localhost:3000", "https://metricshour.com"},
			method:      http.MethodGet,
			origin:      "https://metricshour.com",
			wantStatus:  http.StatusOK,
			wantAllowed: "https://metricshour.com",
		},
		{
			name:       "disallowed origin",
			origins:    []string{"https://metricshour.com"},
			method:     http.MethodGet,
			origin:     "https://evil.example",
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "same origin request passes",
			origins:    []string{"https://metricshour.com"},
			method:     http.MethodPost,
			origin:     "",
			wantStatus: http.StatusOK,
		},
		{
			name:        "preflight",
			origins:     []string{"https://metricshour.com"},
			method:      http.MethodOptions,
			origin:      "https://metricshour.com",
			wantStatus:  http.StatusNoContent,
			wantAllowed: "https://metricshour.com",
			wantMaxAge:  "3600",
			preflight:   true,
		},
		{
			name:        "plain options request reaches handler",
			origins:     []string{"https://metricshour.com"},
			method:      http.MethodOptions,
			origin:      "https://metricshour.com",
			wantStatus:  http.StatusOK,
			wantAllowed: "https://metricshour.com",
		},
		{
			name:        "whitespace in configured origin",
			origins:     []string{"  https://metricshour.com  ", ""},
			method:      http.MethodGet,
			origin:      "https://metricshour.com",
			wantStatus:  http.StatusOK,
			wantAllowed: "https://metricshour.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := CORS(DefaultCORSConfig(tt.origins))(okHandler)
			req := httptest.NewRequest(tt.method, "/api/feed", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodGet)
			}
			rr := httptest.NewRecorder()

			handler.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if got := rr.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllowed {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.wantAllowed)
			}
			if got := rr.Header().Get("Access-Control-Max-Age"); got != tt.wantMaxAge {
				t.Errorf("Access-Control-Max-Age = %q, want %q", got, tt.wantMaxAge)
			}
		})
	}
}

func TestCORS_AllowedRequestHeaders(t *testing.T) {
	handler := CORS(DefaultCORSConfig([]string{"https://metricshour.com"}))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	req := httptest.NewRequest(http.MethodOptions, "/api/feed/follows", nil)
	req.Header.Set("Origin", "https://metricshour.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodDelete)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Methods"); got != "GET, POST, DELETE, OPTIONS" {
		t.Errorf("Access-Control-Allow-Methods = %q", got)
	}
	if got := rr.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("Access-Control-Allow-Credentials = %q, want true", got)
	}
	if got := rr.Header().Get("Vary"); got != "Origin" {
		t.Errorf("Vary = %q, want Origin", got)
	}
	if got := rr.Header().Get("Access-Control-Allow-Headers"); got != "Content-Type, Authorization, X-Request-ID" {
		t.Errorf("Access-Control-Allow-Headers = %q", got)
	}
}

func TestCORS_ExposedHeaders(t *testing.T) {
	handler := CORS(DefaultCORSConfig([]string{"https://metricshour.com"}))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	req := httptest.NewRequest(http.MethodGet, "/api/feed", nil)
	req.Header.Set("Origin", "https://metricshour.com")
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	exposed := rr.Header().Get("Access-Control-Expose-Headers")
	for _, h := range []string{"X-Request-ID", "X-RateLimit-Remaining", "Retry-After"} {
		if !strings.Contains(exposed, h) {
			t.Errorf("Access-Control-Expose-Headers = %q, missing %s", exposed, h)
		}
	}
	if rr.Header().Get("Access-Control-Allow-Methods") != "" {
		t.Error("Access-Control-Allow-Methods should only be set on preflight responses")
	}
}

func TestCORS_DisallowedOriginEnvelope(t *testing.T) {
	called := false
	handler := CORS(DefaultCORSConfig([]string{"https://metricshour.com"}))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/feed", nil)
	req.Header.Set("Origin", "https://evil.example")
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if called {
		t.Error("handler must not run for a disallowed origin")
	}
	var body errorBody
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Error.Code != ErrCodeOriginNotAllowed {
		t.Errorf("error code = %q, want %q", body.Error.Code, ErrCodeOriginNotAllowed)
	}
}
