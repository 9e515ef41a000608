package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

// gatherValue は指定名のメトリクスの最初のサンプル値を返す。
func gatherValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		m := mf.GetMetric()[0]
		if c := m.GetCounter(); c != nil {
			return c.GetValue()
		}
		if g := m.GetGauge(); g != nil {
			return g.GetValue()
		}
	}
	t.Fatalf("%s metric not found", name)
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

// TestRecordRefreshSuccess_IncrementsCounter は更新成功カウンタが増加することを検証する。
func TestRecordRefreshSuccess_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRefreshSuccess()
	c.RecordRefreshSuccess()

	if val := gatherValue(t, reg, "orbit_refresh_success_total"); val != 2 {
		t.Errorf("refresh_success_total = %v, want 2", val)
	}
}

// TestRecordRefreshFailure_LabelsByKind は失敗カウンタが分類別に増加することを検証する。
func TestRecordRefreshFailure_LabelsByKind(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRefreshFailure("network")
	c.RecordRefreshFailure("network")
	c.RecordRefreshFailure("http")

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	for _, mf := range metrics {
		if mf.GetName() != "orbit_refresh_fail_total" {
			continue
		}
		if len(mf.GetMetric()) != 2 {
			t.Fatalf("expected 2 labeled series, got %d", len(mf.GetMetric()))
		}
		return
	}
	t.Error("orbit_refresh_fail_total metric not found")
}

// TestSetDirtyArticles_SetsGauge はdirty記事数ゲージが設定されることを検証する。
func TestSetDirtyArticles_SetsGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.SetDirtyArticles(3)
	if val := gatherValue(t, reg, "orbit_dirty_articles"); val != 3 {
		t.Errorf("dirty_articles = %v, want 3", val)
	}

	c.SetDirtyArticles(0)
	if val := gatherValue(t, reg, "orbit_dirty_articles"); val != 0 {
		t.Errorf("dirty_articles = %v, want 0", val)
	}
}

// TestHandler_ExposesMetrics は/metricsハンドラーが登録済みメトリクスを出力することを検証する。
func TestHandler_ExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordBookmarkSync("confirmed")
	c.RecordRemoteLatency("bookmark", 0.05)
	c.RecordHTTPStatus("bookmark", 200)

	server := httptest.NewServer(Handler(reg))
	defer server.Close()

	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatalf("failed to scrape metrics: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}

	for _, want := range []string{
		"orbit_bookmark_sync_total",
		"orbit_remote_latency_seconds",
		"orbit_remote_http_status_total",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output should contain %s", want)
		}
	}
}
