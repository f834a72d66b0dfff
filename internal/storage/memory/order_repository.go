package memory

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/order-enricher/internal/domain"
)

// orderRepositoryInMemory хранит обогащённые заказы в памяти процесса.
type orderRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.EnrichedOrder
	// order фиксирует порядок первой вставки для List.
	order []string
}

// NewOrderRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewOrderRepository() domain.OrderRepository {
	return &orderRepositoryInMemory{
		items: make(map[string]domain.EnrichedOrder),
	}
}

// Save сохраняет заказ; повторное сохранение с тем же OrderID заменяет запись целиком.
func (r *orderRepositoryInMemory) Save(ctx context.Context, order domain.EnrichedOrder) error {
	if err := ctx.Err(); err != nil {
		return domain.NewPersistenceError("save order", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[order.OrderID]; !exists {
		r.order = append(r.order, order.OrderID)
	}
	r.items[order.OrderID] = order.Clone()
	return nil
}

// Get возвращает заказ или ErrOrderNotFound, если его нет.
func (r *orderRepositoryInMemory) Get(ctx context.Context, orderID string) (domain.EnrichedOrder, error) {
	if err := ctx.Err(); err != nil {
		return domain.EnrichedOrder{}, domain.NewPersistenceError("get order", err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.items[orderID]
	if !ok {
		return domain.EnrichedOrder{}, domain.ErrOrderNotFound
	}
	return order.Clone(), nil
}

func (r *orderRepositoryInMemory) List(ctx context.Context) ([]domain.EnrichedOrder, error) {
	return r.FindByCriteria(ctx, domain.OrderCriteria{})
}

// FindByCriteria обходит заказы в порядке вставки; каждый заказ попадает в результат не более одного раза.
func (r *orderRepositoryInMemory) FindByCriteria(ctx context.Context, criteria domain.OrderCriteria) ([]domain.EnrichedOrder, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewPersistenceError("find orders", err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.EnrichedOrder, 0, len(r.order))
	for _, id := range r.order {
		order := r.items[id]
		if !criteria.Matches(order) {
			continue
		}
		result = append(result, order.Clone())
	}
	return result, nil
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
