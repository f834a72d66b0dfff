package domain

import (
	"context"
	"time"
)

// CustomerClient получает запись клиента из customer-service.
type CustomerClient interface {
	// FetchCustomer возвращает *NotFoundError или *UnavailableError при ошибке.
	FetchCustomer(ctx context.Context, id string) (Customer, error)
}

// ProductClient получает запись товара из product-service.
type ProductClient interface {
	// FetchProduct возвращает *NotFoundError или *UnavailableError при ошибке.
	FetchProduct(ctx context.Context, id string) (Product, error)
}

// CacheEntry — закэшированный результат чтения (уже после маппинга).
type CacheEntry struct {
	// Found=false для поиска по id означает «заказа нет» и тоже кэшируется.
	Found  bool                `json:"found"`
	Order  EnrichedOrderView   `json:"order"`
	Orders []EnrichedOrderView `json:"orders"`
}

// ReadCache — общий кэш чтения для поиска по id и выборок.
type ReadCache interface {
	// Generation возвращает текущее поколение кэша.
	Generation(ctx context.Context) (uint64, error)
	Get(ctx context.Context, key string) (CacheEntry, bool, error)
	// Set сохраняет запись, только если поколение не изменилось с момента чтения gen.
	Set(ctx context.Context, gen uint64, key string, entry CacheEntry) error
	// InvalidateAll очищает всё пространство кэша.
	InvalidateAll(ctx context.Context) error
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(ctx context.Context, event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(ctx context.Context, msg OutboxMessage) (OutboxMessage, error)
	// PullPending возвращает до limit событий в порядке постановки в очередь.
	PullPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	Stats(ctx context.Context) (OutboxStats, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
