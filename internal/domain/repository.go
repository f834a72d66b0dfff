package domain

import "context"

// OrderRepository описывает требования к хранилищу обогащённых заказов.
type OrderRepository interface {
	// Save сохраняет заказ; существующая запись с тем же OrderID перезаписывается.
	Save(ctx context.Context, order EnrichedOrder) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound, если его нет.
	Get(ctx context.Context, orderID string) (EnrichedOrder, error)
	// List возвращает все заказы в естественном для хранилища порядке.
	List(ctx context.Context) ([]EnrichedOrder, error)
	// FindByCriteria возвращает заказы, удовлетворяющие критериям; каждый заказ не более одного раза.
	FindByCriteria(ctx context.Context, criteria OrderCriteria) ([]EnrichedOrder, error)
}
