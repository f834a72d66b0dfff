package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Результаты операций для label "result".
const (
	ResultSuccess     = "success"
	ResultNotFound    = "not_found"
	ResultUnavailable = "unavailable"
	ResultInvalid     = "invalid"
	ResultPersistence = "persistence"
	ResultError       = "error"

	CacheHit  = "hit"
	CacheMiss = "miss"
)

// EnricherMetrics содержит метрики обогащения заказов, кэша и HTTP API.
// Все методы безопасны для nil-получателя.
type EnricherMetrics struct {
	// Счётчики создания заказов
	ordersCreated  prometheus.Counter
	createFailures *prometheus.CounterVec
	createDuration prometheus.Histogram

	// Обращения к внешним сервисам
	upstreamDuration *prometheus.HistogramVec

	// Кэш чтения
	cacheRequests      *prometheus.CounterVec
	cacheInvalidations *prometheus.CounterVec

	outboxEnqueued prometheus.Counter

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// NewEnricherMetrics регистрирует метрики в prometheus.DefaultRegisterer.
func NewEnricherMetrics() *EnricherMetrics {
	return NewEnricherMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewEnricherMetricsWithRegisterer регистрирует метрики в переданном registerer.
func NewEnricherMetricsWithRegisterer(registerer prometheus.Registerer) *EnricherMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &EnricherMetrics{
		ordersCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "oe_orders_created_total",
			Help: "Total number of orders enriched and persisted",
		}),
		createFailures: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "oe_order_create_failures_total",
			Help: "Total number of failed order creations grouped by reason",
		}, []string{"reason"}),
		createDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "oe_order_create_duration_seconds",
			Help:    "Duration of the whole create-order pipeline in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		upstreamDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "oe_upstream_fetch_duration_seconds",
			Help:    "Duration of single upstream lookups in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"dependency", "result"}),
		cacheRequests: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "oe_read_cache_requests_total",
			Help: "Read cache lookups grouped by query kind and hit/miss",
		}, []string{"query", "result"}),
		cacheInvalidations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "oe_read_cache_invalidations_total",
			Help: "Read cache wholesale invalidations grouped by result",
		}, []string{"result"}),
		outboxEnqueued: registerCounter(registerer, prometheus.CounterOpts{
			Name: "oe_outbox_enqueued_total",
			Help: "Total number of order events enqueued to the outbox",
		}),
		httpRequests: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "oe_http_requests_total",
			Help: "HTTP API requests grouped by method, route and status",
		}, []string{"method", "route", "status"}),
		httpDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "oe_http_request_duration_seconds",
			Help:    "HTTP API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// RecordOrderCreated увеличивает счётчик созданных заказов.
func (m *EnricherMetrics) RecordOrderCreated() {
	if m == nil {
		return
	}
	m.ordersCreated.Inc()
}

// RecordCreateFailed увеличивает счётчик неудачных созданий с причиной reason.
func (m *EnricherMetrics) RecordCreateFailed(reason string) {
	if m == nil {
		return
	}
	m.createFailures.WithLabelValues(reason).Inc()
}

// RecordCreateDuration записывает время выполнения создания заказа.
func (m *EnricherMetrics) RecordCreateDuration(duration time.Duration) {
	if m == nil {
		return
	}
	m.createDuration.Observe(duration.Seconds())
}

// RecordUpstreamFetch записывает время одного обращения к внешнему сервису.
func (m *EnricherMetrics) RecordUpstreamFetch(dependency, result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.upstreamDuration.WithLabelValues(dependency, result).Observe(duration.Seconds())
}

// RecordCacheLookup учитывает попадание или промах кэша для вида запроса query.
func (m *EnricherMetrics) RecordCacheLookup(query, result string) {
	if m == nil {
		return
	}
	m.cacheRequests.WithLabelValues(query, result).Inc()
}

// RecordCacheInvalidation учитывает полную очистку кэша.
func (m *EnricherMetrics) RecordCacheInvalidation(result string) {
	if m == nil {
		return
	}
	m.cacheInvalidations.WithLabelValues(result).Inc()
}

// RecordOutboxEnqueued увеличивает счётчик событий, поставленных в outbox.
func (m *EnricherMetrics) RecordOutboxEnqueued() {
	if m == nil {
		return
	}
	m.outboxEnqueued.Inc()
}

// RecordHTTPRequest записывает обработанный HTTP-запрос.
func (m *EnricherMetrics) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, fmt.Sprintf("%d", status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
