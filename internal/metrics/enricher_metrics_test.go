package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var metric dto.Metric
	if err := c.Write(&metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	return metric.GetCounter().GetValue()
}

func histogramCount(t *testing.T, o prometheus.Observer) uint64 {
	t.Helper()
	h, ok := o.(prometheus.Histogram)
	if !ok {
		t.Fatal("observer is not a histogram")
	}
	var metric dto.Metric
	if err := h.Write(&metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	return metric.GetHistogram().GetSampleCount()
}

func TestNewEnricherMetricsWithRegisterer(t *testing.T) {
	metrics := NewEnricherMetricsWithRegisterer(prometheus.NewRegistry())

	if metrics == nil {
		t.Fatal("NewEnricherMetricsWithRegisterer should not return nil")
	}
	if metrics.ordersCreated == nil {
		t.Error("ordersCreated counter should not be nil")
	}
	if metrics.createFailures == nil {
		t.Error("createFailures counter vec should not be nil")
	}
	if metrics.upstreamDuration == nil {
		t.Error("upstreamDuration histogram vec should not be nil")
	}
	if metrics.cacheRequests == nil {
		t.Error("cacheRequests counter vec should not be nil")
	}
	if metrics.httpRequests == nil {
		t.Error("httpRequests counter vec should not be nil")
	}
}

func TestNewEnricherMetrics_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()

	first := NewEnricherMetricsWithRegisterer(reg)
	second := NewEnricherMetricsWithRegisterer(reg)

	first.RecordOrderCreated()
	second.RecordOrderCreated()

	if got := counterValue(t, first.ordersCreated); got != 2 {
		t.Fatalf("expected shared counter value 2, got %v", got)
	}
}

func TestRecordCounters(t *testing.T) {
	m := NewEnricherMetricsWithRegisterer(prometheus.NewRegistry())

	m.RecordOrderCreated()
	m.RecordCreateFailed(ResultNotFound)
	m.RecordCreateFailed(ResultNotFound)
	m.RecordCacheLookup("by_id", CacheHit)
	m.RecordCacheInvalidation(ResultSuccess)
	m.RecordOutboxEnqueued()

	if got := counterValue(t, m.ordersCreated); got != 1 {
		t.Errorf("expected 1 created order, got %v", got)
	}
	if got := counterValue(t, m.createFailures.WithLabelValues(ResultNotFound)); got != 2 {
		t.Errorf("expected 2 not_found failures, got %v", got)
	}
	if got := counterValue(t, m.cacheRequests.WithLabelValues("by_id", CacheHit)); got != 1 {
		t.Errorf("expected 1 cache hit, got %v", got)
	}
	if got := counterValue(t, m.cacheInvalidations.WithLabelValues(ResultSuccess)); got != 1 {
		t.Errorf("expected 1 invalidation, got %v", got)
	}
	if got := counterValue(t, m.outboxEnqueued); got != 1 {
		t.Errorf("expected 1 outbox event, got %v", got)
	}
}

func TestRecordDurations(t *testing.T) {
	m := NewEnricherMetricsWithRegisterer(prometheus.NewRegistry())

	m.RecordCreateDuration(20 * time.Millisecond)
	m.RecordUpstreamFetch("customer", ResultSuccess, 5*time.Millisecond)
	m.RecordHTTPRequest("GET", "/v1/orders", 200, time.Millisecond)

	if got := histogramCount(t, m.createDuration); got != 1 {
		t.Errorf("expected 1 create duration sample, got %d", got)
	}
	if got := histogramCount(t, m.upstreamDuration.WithLabelValues("customer", ResultSuccess)); got != 1 {
		t.Errorf("expected 1 upstream sample, got %d", got)
	}
	if got := counterValue(t, m.httpRequests.WithLabelValues("GET", "/v1/orders", "200")); got != 1 {
		t.Errorf("expected 1 http request, got %v", got)
	}
}

func TestNilMetricsAreNoop(t *testing.T) {
	var m *EnricherMetrics

	m.RecordOrderCreated()
	m.RecordCreateFailed(ResultError)
	m.RecordCreateDuration(time.Second)
	m.RecordUpstreamFetch("product", ResultUnavailable, time.Second)
	m.RecordCacheLookup("list", CacheMiss)
	m.RecordCacheInvalidation(ResultError)
	m.RecordOutboxEnqueued()
	m.RecordHTTPRequest("POST", "/v1/orders", 201, time.Second)
}
