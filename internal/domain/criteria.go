package domain

import (
	"strconv"
)

// OrderCriteria задаёт необязательные фильтры выборки заказов.
// nil означает «фильтр не задан»; пустая строка — заданный фильтр.
type OrderCriteria struct {
	CustomerID *string
	ProductID  *string
}

// NewOrderCriteria собирает критерии, считая пустые строки отсутствующими фильтрами.
func NewOrderCriteria(customerID, productID string) OrderCriteria {
	var c OrderCriteria
	if customerID != "" {
		c.CustomerID = &customerID
	}
	if productID != "" {
		c.ProductID = &productID
	}
	return c
}

// IsEmpty сообщает, что ни один фильтр не задан.
func (c OrderCriteria) IsEmpty() bool {
	return c.CustomerID == nil && c.ProductID == nil
}

// Matches проверяет заказ: (клиент не задан ИЛИ совпадает) И (товар не задан ИЛИ есть хотя бы одна строка с ним).
func (c OrderCriteria) Matches(order EnrichedOrder) bool {
	if c.CustomerID != nil && order.Customer.CustomerID != *c.CustomerID {
		return false
	}
	if c.ProductID == nil {
		return true
	}
	for _, p := range order.Products {
		if p.ProductID == *c.ProductID {
			return true
		}
	}
	return false
}

// CacheKey возвращает ключ кэша для комбинации фильтров, включая случай «оба не заданы».
func (c OrderCriteria) CacheKey() string {
	return "customerId=" + optionalKeyPart(c.CustomerID) + ";productId=" + optionalKeyPart(c.ProductID)
}

func optionalKeyPart(v *string) string {
	if v == nil {
		return "*"
	}
	return strconv.Quote(*v)
}
