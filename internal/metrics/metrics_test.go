package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	dto "github.com/prometheus/client_model/go"
)

func TestMetricsRecordingAndHandler(t *testing.T) {
	m := NewMetrics("test")

	m.RecordCycle("success")
	m.RecordCycle("error")
	m.RecordNewTransactions(3)
	m.RecordNewTransactions(0)
	m.RecordTokenRefresh("success")
	m.APIRequestLatency.WithLabelValues("200").Observe(0.12)
	m.ConsecutiveErrors.Set(2)
	m.StoredTransactions.Set(42)

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, req)

	if w.Code != 200 {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	body := w.Body.String()
	if !strings.Contains(body, "test_sync_cycles_total") {
		t.Fatalf("expected metrics output to contain sync cycles metric")
	}
	if !strings.Contains(body, "test_new_transactions_total 3") {
		t.Fatalf("expected new transactions counter to equal 3, output:\n%s", body)
	}

	if _, err := m.registry.Gather(); err != nil {
		t.Fatalf("expected gather to succeed: %v", err)
	}
}

func TestMetricsCycleOutcomeLabels(t *testing.T) {
	m := NewMetrics("testcy")

	m.RecordCycle("success")
	m.RecordCycle("success")
	m.RecordCycle("error")

	families, err := m.registry.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	if !metricHasLabel(families, "testcy_sync_cycles_total", "status", "success") {
		t.Fatalf("expected metrics for successful cycles")
	}
	if !metricHasLabel(families, "testcy_sync_cycles_total", "status", "error") {
		t.Fatalf("expected metrics for failed cycles")
	}
}

func metricHasLabel(families []*dto.MetricFamily, name, key, value string) bool {
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.Metric {
			for _, label := range metric.Label {
				if label.GetName() == key && label.GetValue() == value {
					return true
				}
			}
		}
	}
	return false
}
