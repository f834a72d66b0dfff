// Package enricher обогащает входящие заказы данными клиента и товаров,
// сохраняет результат и отдаёт его через кэш чтения.
package enricher

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/order-enricher/internal/cache"
	"github.com/vladislavdragonenkov/order-enricher/internal/domain"
	"github.com/vladislavdragonenkov/order-enricher/internal/mapper"
	"github.com/vladislavdragonenkov/order-enricher/internal/metrics"
)

const (
	tracerName = "github.com/vladislavdragonenkov/order-enricher/internal/service/enricher"

	queryByID = "by_id"
	queryList = "list"
)

// ServiceOptions задаёт необязательные зависимости сервиса.
type ServiceOptions struct {
	Logger  *log.Entry
	Metrics *metrics.EnricherMetrics
	Cache   domain.ReadCache
	Outbox  domain.OutboxRepository
	Tracer  trace.Tracer
	Clock   func() time.Time
}

// Option настраивает Service.
type Option func(*ServiceOptions)

func WithLogger(logger *log.Entry) Option {
	return func(opts *ServiceOptions) {
		opts.Logger = logger
	}
}

func WithMetrics(m *metrics.EnricherMetrics) Option {
	return func(opts *ServiceOptions) {
		opts.Metrics = m
	}
}

// WithCache задаёт кэш чтения; по умолчанию используется in-memory кэш.
func WithCache(c domain.ReadCache) Option {
	return func(opts *ServiceOptions) {
		opts.Cache = c
	}
}

// WithOutbox включает публикацию события order.enriched после сохранения заказа.
func WithOutbox(repo domain.OutboxRepository) Option {
	return func(opts *ServiceOptions) {
		opts.Outbox = repo
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(opts *ServiceOptions) {
		opts.Tracer = tracer
	}
}

// WithClock подменяет источник времени для заказов без timestamp.
func WithClock(clock func() time.Time) Option {
	return func(opts *ServiceOptions) {
		opts.Clock = clock
	}
}

// Service реализует сценарии создания, чтения и выборки обогащённых заказов.
type Service struct {
	customers domain.CustomerClient
	products  domain.ProductClient
	repo      domain.OrderRepository
	cache     domain.ReadCache
	outbox    domain.OutboxRepository
	logger    *log.Entry
	metrics   *metrics.EnricherMetrics
	tracer    trace.Tracer
	now       func() time.Time
}

// NewService конструирует сервис с обязательными зависимостями.
func NewService(
	customers domain.CustomerClient,
	products domain.ProductClient,
	repo domain.OrderRepository,
	options ...Option,
) *Service {
	opts := ServiceOptions{}
	for _, option := range options {
		option(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = log.WithField("component", "order-enricher")
	}
	if opts.Cache == nil {
		opts.Cache = cache.NewMemory()
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(tracerName)
	}
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return time.Now().UTC() }
	}

	return &Service{
		customers: customers,
		products:  products,
		repo:      repo,
		cache:     opts.Cache,
		outbox:    opts.Outbox,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		tracer:    opts.Tracer,
		now:       opts.Clock,
	}
}

// CreateOrder обогащает и сохраняет заказ.
// Ошибки клиентов возвращаются без изменений; при любой из них хранилище не трогается.
func (s *Service) CreateOrder(ctx context.Context, req domain.OrderRequest) (view domain.EnrichedOrderView, err error) {
	ctx, span := s.tracer.Start(ctx, "enricher.CreateOrder", trace.WithAttributes(
		attribute.String("order.id", req.OrderID),
		attribute.String("customer.id", req.CustomerID),
		attribute.Int("order.product_count", len(req.ProductIDs)),
	))
	started := time.Now()
	defer func() {
		s.metrics.RecordCreateDuration(time.Since(started))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			s.metrics.RecordCreateFailed(failureReason(err))
		}
		span.End()
	}()

	if errs := req.Validate(); len(errs) > 0 {
		return domain.EnrichedOrderView{}, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, errors.Join(errs...))
	}
	if req.Timestamp.IsZero() {
		req.Timestamp = s.now()
	}

	logger := s.logger.WithFields(log.Fields{
		"order_id":    req.OrderID,
		"customer_id": req.CustomerID,
	})

	customer, err := s.customers.FetchCustomer(ctx, req.CustomerID)
	if err != nil {
		logger.WithError(err).Warn("customer lookup failed")
		return domain.EnrichedOrderView{}, err
	}

	products := make([]domain.Product, 0, len(req.ProductIDs))
	for _, productID := range req.ProductIDs {
		product, err := s.products.FetchProduct(ctx, productID)
		if err != nil {
			logger.WithError(err).WithField("product_id", productID).Warn("product lookup failed")
			return domain.EnrichedOrderView{}, err
		}
		products = append(products, product)
	}

	order := mapper.ToEntity(req, customer, products)
	if err := s.repo.Save(ctx, order); err != nil {
		logger.WithError(err).Error("failed to persist enriched order")
		return domain.EnrichedOrderView{}, asPersistenceError("save order", err)
	}

	s.invalidateCache(ctx, logger)
	s.enqueueEvent(ctx, order, logger)
	s.metrics.RecordOrderCreated()

	logger.WithField("total_price", order.TotalPrice.String()).Info("order enriched")
	return mapper.ToView(order), nil
}

// GetOrderByID возвращает заказ; отсутствие заказа — не ошибка, а found=false.
func (s *Service) GetOrderByID(ctx context.Context, orderID string) (domain.EnrichedOrderView, bool, error) {
	ctx, span := s.tracer.Start(ctx, "enricher.GetOrderByID", trace.WithAttributes(
		attribute.String("order.id", orderID),
	))
	defer span.End()

	key := cache.OrderKey(orderID)
	gen, cacheable := s.cacheGeneration(ctx)
	if entry, ok := s.cacheGet(ctx, queryByID, key); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return entry.Order, entry.Found, nil
	}

	entry := domain.CacheEntry{}
	order, err := s.repo.Get(ctx, orderID)
	switch {
	case err == nil:
		entry.Found = true
		entry.Order = mapper.ToView(order)
	case errors.Is(err, domain.ErrOrderNotFound):
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.EnrichedOrderView{}, false, asPersistenceError("get order", err)
	}

	if cacheable {
		s.cacheSet(ctx, gen, key, entry)
	}
	return entry.Order, entry.Found, nil
}

// GetOrders возвращает заказы по критериям.
// При фильтре по товару в каждом заказе остаются только совпавшие позиции.
func (s *Service) GetOrders(ctx context.Context, criteria domain.OrderCriteria) ([]domain.EnrichedOrderView, error) {
	ctx, span := s.tracer.Start(ctx, "enricher.GetOrders", trace.WithAttributes(
		attribute.String("criteria", criteria.CacheKey()),
	))
	defer span.End()

	key := cache.OrdersKey(criteria)
	gen, cacheable := s.cacheGeneration(ctx)
	if entry, ok := s.cacheGet(ctx, queryList, key); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return entry.Orders, nil
	}

	var (
		orders []domain.EnrichedOrder
		err    error
	)
	if criteria.IsEmpty() {
		orders, err = s.repo.List(ctx)
	} else {
		orders, err = s.repo.FindByCriteria(ctx, criteria)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, asPersistenceError("find orders", err)
	}

	if criteria.ProductID != nil {
		for i := range orders {
			orders[i] = orders[i].WithProductsFiltered(*criteria.ProductID)
		}
	}

	views := mapper.ToViews(orders)
	if cacheable {
		s.cacheSet(ctx, gen, key, domain.CacheEntry{Found: true, Orders: views})
	}
	return views, nil
}

// cacheGeneration читает поколение до обращения к хранилищу; при ошибке результат не кэшируется.
func (s *Service) cacheGeneration(ctx context.Context) (uint64, bool) {
	gen, err := s.cache.Generation(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("read cache generation failed")
		return 0, false
	}
	return gen, true
}

func (s *Service) cacheGet(ctx context.Context, query, key string) (domain.CacheEntry, bool) {
	entry, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.WithError(err).WithField("cache_key", key).Warn("read cache lookup failed, falling back to store")
		s.metrics.RecordCacheLookup(query, metrics.ResultError)
		return domain.CacheEntry{}, false
	}
	if !ok {
		s.metrics.RecordCacheLookup(query, metrics.CacheMiss)
		return domain.CacheEntry{}, false
	}
	s.metrics.RecordCacheLookup(query, metrics.CacheHit)
	return entry, true
}

func (s *Service) cacheSet(ctx context.Context, gen uint64, key string, entry domain.CacheEntry) {
	if err := s.cache.Set(ctx, gen, key, entry); err != nil {
		s.logger.WithError(err).WithField("cache_key", key).Warn("read cache store failed")
	}
}

func (s *Service) invalidateCache(ctx context.Context, logger *log.Entry) {
	if err := s.cache.InvalidateAll(ctx); err != nil {
		logger.WithError(err).Error("read cache invalidation failed")
		s.metrics.RecordCacheInvalidation(metrics.ResultError)
		return
	}
	s.metrics.RecordCacheInvalidation(metrics.ResultSuccess)
}

func (s *Service) enqueueEvent(ctx context.Context, order domain.EnrichedOrder, logger *log.Entry) {
	if s.outbox == nil {
		return
	}

	msg, err := domain.NewOrderEnrichedMessage(order, s.now())
	if err != nil {
		logger.WithError(err).Error("failed to build order.enriched event")
		return
	}
	if _, err := s.outbox.Enqueue(ctx, msg); err != nil {
		logger.WithError(err).Error("failed to enqueue order.enriched event")
		return
	}
	s.metrics.RecordOutboxEnqueued()
}

func asPersistenceError(op string, err error) error {
	var pe *domain.PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return domain.NewPersistenceError(op, err)
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return metrics.ResultInvalid
	case domain.IsNotFound(err):
		return metrics.ResultNotFound
	case domain.IsUnavailable(err):
		return metrics.ResultUnavailable
	case errors.Is(err, domain.ErrPersistence):
		return metrics.ResultPersistence
	default:
		return metrics.ResultError
	}
}
