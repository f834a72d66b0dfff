// Package cache содержит реализации общего кэша чтения заказов.
package cache

import "github.com/vladislavdragonenkov/order-enricher/internal/domain"

// OrderKey возвращает ключ кэша для поиска по идентификатору заказа.
func OrderKey(orderID string) string {
	return "order:" + orderID
}

// OrdersKey возвращает ключ кэша для выборки по критериям.
func OrdersKey(criteria domain.OrderCriteria) string {
	return "orders:" + criteria.CacheKey()
}
