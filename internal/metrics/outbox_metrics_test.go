package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var metric dto.Metric
	if err := g.Write(&metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	return metric.GetGauge().GetValue()
}

func TestOutboxMetrics_Record(t *testing.T) {
	m := NewOutboxMetricsWithRegisterer(prometheus.NewRegistry())

	m.RecordPublish(OutboxSent)
	m.RecordPublish(OutboxSent)
	m.RecordPublish(OutboxRetryError)
	m.SetBacklog(3, 12.5)

	if got := counterValue(t, m.publishAttempts.WithLabelValues(OutboxSent)); got != 2 {
		t.Errorf("expected 2 sent attempts, got %v", got)
	}
	if got := counterValue(t, m.publishAttempts.WithLabelValues(OutboxRetryError)); got != 1 {
		t.Errorf("expected 1 retry error, got %v", got)
	}
	if got := gaugeValue(t, m.pendingRecords); got != 3 {
		t.Errorf("expected pending=3, got %v", got)
	}
	if got := gaugeValue(t, m.oldestPendingAge); got != 12.5 {
		t.Errorf("expected age=12.5, got %v", got)
	}
}

func TestOutboxMetrics_ReuseRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := NewOutboxMetricsWithRegisterer(reg)
	second := NewOutboxMetricsWithRegisterer(reg)

	first.RecordPublish(OutboxFailed)
	if got := counterValue(t, second.publishAttempts.WithLabelValues(OutboxFailed)); got != 1 {
		t.Errorf("collectors must be shared between instances, got %v", got)
	}
}

func TestOutboxMetrics_NilSafe(t *testing.T) {
	var m *OutboxMetrics
	m.RecordPublish(OutboxSent)
	m.SetBacklog(1, 1)
}
