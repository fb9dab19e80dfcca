package metrics

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/hitoshi/jobtracker/internal/repository"
)

// findMetric は名前とラベルが一致するメトリクスを返す。
func findMetric(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) *dto.Metric {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelsMatch(m, labels) {
				return m
			}
		}
	}
	return nil
}

func labelsMatch(m *dto.Metric, want map[string]string) bool {
	got := make(map[string]string, len(m.GetLabel()))
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordHTTPRequest_CountsByRouteAndStatus はルート・ステータス別にカウントされることを検証する。
func TestRecordHTTPRequest_CountsByRouteAndStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPRequest(http.MethodGet, "/applications", 200, 10*time.Millisecond)
	c.RecordHTTPRequest(http.MethodGet, "/applications", 200, 20*time.Millisecond)
	c.RecordHTTPRequest(http.MethodGet, "/applications/{id}", 404, 5*time.Millisecond)

	m := findMetric(t, reg, "jobtracker_http_requests_total", map[string]string{
		"method": "GET", "route": "/applications", "status_code": "200",
	})
	if m == nil {
		t.Fatal("jobtracker_http_requests_total{route=/applications,status_code=200} not found")
	}
	if got := m.GetCounter().GetValue(); got != 2 {
		t.Errorf("requests = %v, want 2", got)
	}

	m = findMetric(t, reg, "jobtracker_http_requests_total", map[string]string{
		"route": "/applications/{id}", "status_code": "404",
	})
	if m == nil || m.GetCounter().GetValue() != 1 {
		t.Error("expected one 404 on /applications/{id}")
	}

	h := findMetric(t, reg, "jobtracker_http_request_duration_seconds", map[string]string{"route": "/applications"})
	if h == nil {
		t.Fatal("duration histogram not found")
	}
	if h.GetHistogram().GetSampleCount() != 2 {
		t.Errorf("sample_count = %d, want 2", h.GetHistogram().GetSampleCount())
	}
}

// TestObserveStoreOperation_ClassifiesResult はストア操作の結果がok/not_found/errorに分類されることを検証する。
func TestObserveStoreOperation_ClassifiesResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ObserveStoreOperation("postgres", "get", time.Millisecond, nil)
	c.ObserveStoreOperation("postgres", "get", time.Millisecond, fmt.Errorf("wrap: %w", repository.ErrNotFound))
	c.ObserveStoreOperation("postgres", "get", time.Millisecond, errors.New("connection refused"))
	c.ObserveStoreOperation("postgres", "get", time.Millisecond, errors.New("timeout"))

	tests := []struct {
		result string
		want   float64
	}{
		{"ok", 1},
		{"not_found", 1},
		{"error", 2},
	}
	for _, tt := range tests {
		m := findMetric(t, reg, "jobtracker_store_operations_total", map[string]string{
			"backend": "postgres", "op": "get", "result": tt.result,
		})
		if m == nil {
			t.Errorf("result=%s not found", tt.result)
			continue
		}
		if got := m.GetCounter().GetValue(); got != tt.want {
			t.Errorf("result=%s count = %v, want %v", tt.result, got, tt.want)
		}
	}

	h := findMetric(t, reg, "jobtracker_store_operation_duration_seconds", map[string]string{"backend": "postgres", "op": "get"})
	if h == nil || h.GetHistogram().GetSampleCount() != 4 {
		t.Error("expected 4 latency samples for postgres/get")
	}
}

// TestObserveLogin_CountsSuccessAndFailure はログイン成否がプロバイダ別に記録されることを検証する。
func TestObserveLogin_CountsSuccessAndFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ObserveLogin("google", true)
	c.ObserveLogin("google", false)
	c.ObserveLogin("microsoft", true)

	for _, tt := range []struct {
		provider, result string
	}{
		{"google", "success"},
		{"google", "failure"},
		{"microsoft", "success"},
	} {
		m := findMetric(t, reg, "jobtracker_logins_total", map[string]string{"provider": tt.provider, "result": tt.result})
		if m == nil || m.GetCounter().GetValue() != 1 {
			t.Errorf("logins{provider=%s,result=%s} want 1", tt.provider, tt.result)
		}
	}
}

// TestMetricsHandler_ReturnsPrometheusFormat は/metricsエンドポイントがPrometheus形式で返すことを検証する。
func TestMetricsHandler_ReturnsPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPRequest(http.MethodGet, "/health", 200, time.Millisecond)
	c.ObserveStoreOperation("memory", "scan", time.Millisecond, nil)
	c.ObserveLogin("google", true)

	handler := Handler(reg)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	bodyStr := string(body)

	for _, metric := range []string{
		"jobtracker_http_requests_total",
		"jobtracker_http_request_duration_seconds",
		"jobtracker_store_operations_total",
		"jobtracker_store_operation_duration_seconds",
		"jobtracker_logins_total",
	} {
		if !strings.Contains(bodyStr, metric) {
			t.Errorf("response body does not contain %q", metric)
		}
	}
}

// TestMultipleCollectors_IndependentRegistries は異なるレジストリで独立に動作することを検証する。
func TestMultipleCollectors_IndependentRegistries(t *testing.T) {
	reg1 := prometheus.NewRegistry()
	reg2 := prometheus.NewRegistry()
	c1 := NewCollector(reg1)
	c2 := NewCollector(reg2)

	c1.ObserveLogin("google", true)
	c2.ObserveLogin("google", true)
	c2.ObserveLogin("google", true)

	labels := map[string]string{"provider": "google", "result": "success"}
	if m := findMetric(t, reg1, "jobtracker_logins_total", labels); m == nil || m.GetCounter().GetValue() != 1 {
		t.Error("reg1 logins want 1")
	}
	if m := findMetric(t, reg2, "jobtracker_logins_total", labels); m == nil || m.GetCounter().GetValue() != 2 {
		t.Error("reg2 logins want 2")
	}
}

// TestHTTPMiddleware_UsesRoutePattern はパスパラメータではなくルートパターンでラベル付けされることを検証する。
func TestHTTPMiddleware_UsesRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	r := chi.NewRouter()
	r.Use(NewHTTPMiddleware(c))
	r.Get("/applications/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"a", "b", "c"} {
		req := httptest.NewRequest(http.MethodGet, "/applications/"+id, nil)
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	m := findMetric(t, reg, "jobtracker_http_requests_total", map[string]string{
		"method": "GET", "route": "/applications/{id}", "status_code": "404",
	})
	if m == nil {
		t.Fatal("expected metric labelled with route pattern")
	}
	if got := m.GetCounter().GetValue(); got != 3 {
		t.Errorf("requests = %v, want 3", got)
	}
}

// TestHTTPMiddleware_UnmatchedRoute はマッチしないパスがunmatchedとして集計されることを検証する。
func TestHTTPMiddleware_UnmatchedRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	r := chi.NewRouter()
	r.Use(NewHTTPMiddleware(c))
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {})

	req := httptest.NewRequest(http.MethodGet, "/no/such/path", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	m := findMetric(t, reg, "jobtracker_http_requests_total", map[string]string{
		"route": unmatchedRoute, "status_code": "404",
	})
	if m == nil {
		t.Fatal("expected unmatched route metric")
	}
}
