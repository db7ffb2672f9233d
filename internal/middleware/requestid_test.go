package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestRequestID_GeneratesNewID(t *testing.T) {
	var ctxID string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxID = GetRequestID(r.Context())
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/feed", nil))

	responseID := rr.Header().Get(RequestIDHeader)
	if _, err := uuid.Parse(responseID); err != nil {
		t.Errorf("expected UUID request ID, got %q: %v", responseID, err)
	}
	if ctxID != responseID {
		t.Errorf("context ID %q does not match header %q", ctxID, responseID)
	}
}

func TestRequestID_IncomingHeader(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		wantKept bool
	}{
		{"printable id kept", "trace-123_abc", true},
		{"max length kept", strings.Repeat("a", maxRequestIDLength), true},
		{"too long replaced", strings.Repeat("a", maxRequestIDLength+1), false},
		{"whitespace replaced", "id with spaces", false},
		{"control character replaced", "id\x00x", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
			req := httptest.NewRequest(http.MethodGet, "/api/feed", nil)
			req.Header.Set(RequestIDHeader, tt.incoming)
			rr := httptest.NewRecorder()

			handler.ServeHTTP(rr, req)

			got := rr.Header().Get(RequestIDHeader)
			if kept := got == tt.incoming; kept != tt.wantKept {
				t.Errorf("kept = %v, want %v (got %q)", kept, tt.wantKept, got)
			}
			if got == "" {
				t.Error("expected a request ID in response")
			}
		})
	}
}
