// Package httpapi публикует сервис обогащения заказов как JSON API под /v1.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/order-enricher/internal/domain"
	"github.com/vladislavdragonenkov/order-enricher/internal/metrics"
)

const (
	// BasePath — префикс всех маршрутов API.
	BasePath = "/v1"

	maxRequestBodyBytes = 1 << 20
	tracerName          = "github.com/vladislavdragonenkov/order-enricher/internal/transport/httpapi"
)

// OrderService — сценарии, которые обслуживает API.
type OrderService interface {
	CreateOrder(ctx context.Context, req domain.OrderRequest) (domain.EnrichedOrderView, error)
	GetOrderByID(ctx context.Context, orderID string) (domain.EnrichedOrderView, bool, error)
	GetOrders(ctx context.Context, criteria domain.OrderCriteria) ([]domain.EnrichedOrderView, error)
}

// HandlerOptions задаёт необязательные зависимости Handler.
type HandlerOptions struct {
	Logger  *log.Entry
	Metrics *metrics.EnricherMetrics
	Tracer  trace.Tracer
}

// Option настраивает Handler.
type Option func(*HandlerOptions)

func WithLogger(logger *log.Entry) Option {
	return func(opts *HandlerOptions) {
		opts.Logger = logger
	}
}

func WithMetrics(m *metrics.EnricherMetrics) Option {
	return func(opts *HandlerOptions) {
		opts.Metrics = m
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(opts *HandlerOptions) {
		opts.Tracer = tracer
	}
}

// Handler — HTTP-адаптер OrderService.
type Handler struct {
	service OrderService
	logger  *log.Entry
	metrics *metrics.EnricherMetrics
	tracer  trace.Tracer
}

// NewHandler создаёт Handler.
func NewHandler(service OrderService, options ...Option) *Handler {
	opts := HandlerOptions{}
	for _, option := range options {
		option(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = log.WithField("component", "http-api")
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(tracerName)
	}

	return &Handler{
		service: service,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		tracer:  opts.Tracer,
	}
}

// Routes возвращает роутер с маршрутами и middleware.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(chimw.Recoverer)
	r.Use(h.tracing)
	r.Use(h.accessLog)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "No route found.")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed.")
	})

	r.Route(BasePath, func(r chi.Router) {
		r.Post("/orders", h.createOrder)
		r.Get("/orders", h.listOrders)
		r.Get("/orders/{orderId}", h.getOrder)
	})

	return r
}

// orderRequestBody — тело POST /v1/orders.
type orderRequestBody struct {
	OrderID    string     `json:"orderId"`
	CustomerID string     `json:"customerId"`
	ProductIDs []string   `json:"productIds"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
}

func (b orderRequestBody) toDomain() domain.OrderRequest {
	req := domain.OrderRequest{
		OrderID:    b.OrderID,
		CustomerID: b.CustomerID,
		ProductIDs: b.ProductIDs,
	}
	if b.Timestamp != nil {
		req.Timestamp = b.Timestamp.UTC()
	}
	return req
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var body orderRequestBody
	if err := decodeJSON(w, r, &body); err != nil {
		h.logger.WithError(err).Debug("invalid create order body")
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	view, err := h.service.CreateOrder(r.Context(), body.toDomain())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, view)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	view, found, err := h.service.GetOrderByID(r.Context(), orderID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if !found {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	criteria := domain.NewOrderCriteria(query.Get("customerId"), query.Get("productId"))

	views, err := h.service.GetOrders(r.Context(), criteria)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if views == nil {
		views = []domain.EnrichedOrderView{}
	}

	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.WithError(err).WithField("request_id", RequestIDFromContext(r.Context())).Error("request failed")
		message = "Internal server error."
	}
	writeError(w, status, message)
}

// statusFor отображает ошибки сервиса на HTTP-статусы.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest
	case domain.IsNotFound(err):
		return http.StatusNotFound
	case domain.IsUnavailable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return fmt.Errorf("malformed request body: %w", err)
	}
	return nil
}
