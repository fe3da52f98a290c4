package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// counterValue はラベル付きカウンタの値をGather結果から取り出すヘルパー。
func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() == name {
			var total float64
			for _, m := range mf.GetMetric() {
				total += m.GetCounter().GetValue()
			}
			return total
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordLoginSuccess_IncrementsCounter はログイン成功カウンタが増加することを検証する。
func TestRecordLoginSuccess_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLoginSuccess("google")
	c.RecordLoginSuccess("google")
	c.RecordLoginSuccess("discord")

	if got := counterValue(t, reg, "propsdb_login_success_total"); got != 3 {
		t.Errorf("login_success_total = %v, want 3", got)
	}
}

// TestRecordLoginFailure_LabelsByProviderAndStage はログイン失敗カウンタが
// プロバイダーと失敗段階のラベル付きで増加することを検証する。
func TestRecordLoginFailure_LabelsByProviderAndStage(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLoginFailure("google", "exchange")
	c.RecordLoginFailure("facebook", "state")

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "propsdb_login_fail_total" {
			found = true
			if len(mf.GetMetric()) != 2 {
				t.Errorf("expected 2 labeled series, got %d", len(mf.GetMetric()))
			}
		}
	}
	if !found {
		t.Error("propsdb_login_fail_total metric not found")
	}
}

// TestRecordItemMutation_IncrementsCounter はアイテム変更カウンタが増加することを検証する。
func TestRecordItemMutation_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordItemMutation("create")
	c.RecordItemMutation("delete")

	if got := counterValue(t, reg, "propsdb_item_mutations_total"); got != 2 {
		t.Errorf("item_mutations_total = %v, want 2", got)
	}
}

// TestRecordSessionsCleaned_AddsCount は削除セッション数が加算されることを検証する。
func TestRecordSessionsCleaned_AddsCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSessionsCleaned(5)
	c.RecordSessionsCleaned(3)

	if got := counterValue(t, reg, "propsdb_sessions_cleaned_total"); got != 8 {
		t.Errorf("sessions_cleaned_total = %v, want 8", got)
	}
}

// TestRecordOAuthExchangeLatency_Observes はレイテンシが記録されることを検証する。
func TestRecordOAuthExchangeLatency_Observes(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordOAuthExchangeLatency("google", 150*time.Millisecond)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "propsdb_oauth_exchange_latency_seconds" {
			found = true
			if count := mf.GetMetric()[0].GetHistogram().GetSampleCount(); count != 1 {
				t.Errorf("sample count = %d, want 1", count)
			}
		}
	}
	if !found {
		t.Error("propsdb_oauth_exchange_latency_seconds metric not found")
	}
}

// TestSetupMetricsRoute_ServesMetrics は/metricsパスでメトリクスが返ることを検証する。
func TestSetupMetricsRoute_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordLoginSuccess("google")
	c.RecordHTTPStatus(200)

	handler := SetupMetricsRoute(reg)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	if !strings.Contains(string(body), "propsdb_login_success_total") {
		t.Error("expected propsdb_login_success_total in scrape output")
	}
	if !strings.Contains(string(body), "propsdb_http_status_total") {
		t.Error("expected propsdb_http_status_total in scrape output")
	}
}
