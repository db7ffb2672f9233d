package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/feed", "/api/feed"},
		{"/api/feed/", "/api/feed"},
		{"/api/feed/follows", "/api/feed/follows"},
		{"/api/feed/123/interact", "/api/feed/{id}/interact"},
		{"/api/feed/abc/interact", "/api/feed/{id}/interact"},
		{"/api/feed/follows/asset/42", "/api/feed/follows/{entity_type}/{entity_id}"},
		{"/api/feed/follows/country/7/", "/api/feed/follows/{entity_type}/{entity_id}"},
		{"/api/feed/123", "other"},
		{"/api/feed//interact", "other"},
		{"/health", "/health"},
		{"/ready", "/ready"},
		{"/metrics", "/metrics"},
		{"/", "other"},
		{"/wp-login.php", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := normalizePath(tt.path); got != tt.want {
				t.Errorf("normalizePath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func labelsOf(m *dto.Metric) map[string]string {
	out := make(map[string]string)
	for _, l := range m.GetLabel() {
		out[l.GetName()] = l.GetValue()
	}
	return out
}

func TestHTTPMetrics_RecordsNormalizedRoute(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	handler := HTTPMetrics(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for _, id := range []string{"1", "2", "3"} {
		req := httptest.NewRequest(http.MethodPost, "/api/feed/"+id+"/interact", nil)
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() failed: %v", err)
	}
	var total *dto.MetricFamily
	for _, mf := range families {
		if mf.GetName() == MetricHTTPRequestsTotal {
			total = mf
		}
	}
	if total == nil {
		t.Fatal("requests total metric not found")
	}
	if len(total.GetMetric()) != 1 {
		t.Fatalf("expected 1 label set, got %d", len(total.GetMetric()))
	}

	metric := total.GetMetric()[0]
	labels := labelsOf(metric)
	if labels["method"] != "POST" || labels["route"] != "/api/feed/{id}/interact" || labels["status"] != "204" {
		t.Errorf("unexpected labels %v", labels)
	}
	if got := metric.GetCounter().GetValue(); got != 3 {
		t.Errorf("counter = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.httpInFlight); got != 0 {
		t.Errorf("in-flight = %v, want 0 after completion", got)
	}
}

func TestHTTPMetrics_SkipsProbes(t *testing.T) {
	m := NewMetrics()
	handler := HTTPMetrics(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for _, path := range []string{"/health", "/ready", "/metrics"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	if n := testutil.CollectAndCount(m.httpRequestsTotal); n != 0 {
		t.Errorf("expected no request series for probes, got %d", n)
	}
}

func TestHTTPMetrics_ResponseSize(t *testing.T) {
	m := NewMetrics()
	handler := HTTPMetrics(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"page":1,`))
		_, _ = w.Write([]byte(`"events":[]}`))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/feed", nil))

	obs, err := m.httpResponseSize.GetMetricWithLabelValues("GET", "/api/feed", "200")
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues() failed: %v", err)
	}
	var out dto.Metric
	if err := obs.(prometheus.Metric).Write(&out); err != nil {
		t.Fatalf("Write() failed: %v", err)
	}
	if got := out.GetHistogram().GetSampleSum(); got != 22 {
		t.Errorf("response size sum = %v, want 22", got)
	}
}

func BenchmarkNormalizePath(b *testing.B) {
	paths := []string{"/api/feed", "/api/feed/981/interact", "/api/feed/follows/asset/12", "/unknown"}
	for i := 0; i < b.N; i++ {
		_ = normalizePath(paths[i%len(paths)])
	}
}
