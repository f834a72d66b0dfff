// Package client содержит HTTP-клиенты внешних сервисов клиентов и товаров.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/order-enricher/internal/domain"
	"github.com/vladislavdragonenkov/order-enricher/internal/metrics"
)

const (
	defaultTimeout   = 5 * time.Second
	maxResponseBytes = 1 << 20
)

// Options задаёт параметры HTTP-клиента внешнего сервиса.
type Options struct {
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     *log.Entry
	Metrics    *metrics.EnricherMetrics
}

// Option настраивает клиент.
type Option func(*Options)

// WithHTTPClient подменяет http.Client (например, в тестах).
func WithHTTPClient(c *http.Client) Option {
	return func(opts *Options) {
		opts.HTTPClient = c
	}
}

// WithTimeout задаёт таймаут одного запроса.
func WithTimeout(timeout time.Duration) Option {
	return func(opts *Options) {
		opts.Timeout = timeout
	}
}

// WithLogger задаёт logger клиента.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithMetrics задаёт метрики для замеров обращений.
func WithMetrics(m *metrics.EnricherMetrics) Option {
	return func(opts *Options) {
		opts.Metrics = m
	}
}

// fetcher выполняет GET {baseURL}/{collection}/{id} и переводит ошибки в доменные.
type fetcher struct {
	baseURL    string
	collection string
	resource   string
	dependency string
	client     *http.Client
	timeout    time.Duration
	logger     *log.Entry
	metrics    *metrics.EnricherMetrics
	tracer     trace.Tracer
}

func newFetcher(baseURL, collection, resource, dependency string, options ...Option) *fetcher {
	opts := Options{Timeout: defaultTimeout}
	for _, option := range options {
		option(&opts)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", dependency+"-client")
	}

	return &fetcher{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		resource:   resource,
		dependency: dependency,
		client:     opts.HTTPClient,
		timeout:    opts.Timeout,
		logger:     logger,
		metrics:    opts.Metrics,
		tracer:     otel.Tracer("order-enricher/client"),
	}
}

// fetch делает одну попытку без повторов: 404 -> NotFoundError, всё остальное -> UnavailableError.
func (f *fetcher) fetch(ctx context.Context, id string, out any) (err error) {
	start := time.Now()
	ctx, span := f.tracer.Start(ctx, "Fetch"+f.resource, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(attribute.String("resource.id", id))
	defer func() {
		f.metrics.RecordUpstreamFetch(f.dependency, resultLabel(err), time.Since(start))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	reqCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/%s/%s", f.baseURL, f.collection, url.PathEscape(id))
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.NewUnavailableError(f.resource, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(reqCtx, propagation.HeaderCarrier(req.Header))

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.WithError(err).WithField("id", id).Warn("upstream request failed")
		return domain.NewUnavailableError(f.resource, fmt.Errorf("request %s: %w", endpoint, err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.NewNotFoundError(f.resource, id)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		f.logger.WithFields(log.Fields{
			"id":     id,
			"status": resp.StatusCode,
		}).Warn("upstream responded with unexpected status")
		return domain.NewUnavailableError(f.resource, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return domain.NewUnavailableError(f.resource, fmt.Errorf("read body: %w", err))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return domain.NewUnavailableError(f.resource, fmt.Errorf("decode body: %w", err))
	}

	return nil
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return metrics.ResultSuccess
	case errors.Is(err, domain.ErrNotFound):
		return metrics.ResultNotFound
	default:
		return metrics.ResultUnavailable
	}
}
