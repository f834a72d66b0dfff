// Package mapper переводит заказ между формой запроса/ответа и сохраняемой сущностью.
package mapper

import (
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/order-enricher/internal/domain"
)

// ToEntity собирает обогащённый заказ из запроса и полученных записей.
// Строки заказа идут в порядке products, повторы сохраняются.
func ToEntity(req domain.OrderRequest, customer domain.Customer, products []domain.Product) domain.EnrichedOrder {
	infos := make([]domain.ProductInfo, 0, len(products))
	total := decimal.Zero
	for _, p := range products {
		infos = append(infos, toProductInfo(p))
		total = total.Add(p.Price)
	}

	return domain.EnrichedOrder{
		OrderID:    req.OrderID,
		Timestamp:  req.Timestamp,
		Customer:   toCustomerInfo(customer),
		Products:   infos,
		TotalPrice: total,
	}
}

// ToView переводит сущность в представление для ответа.
func ToView(order domain.EnrichedOrder) domain.EnrichedOrderView {
	products := make([]domain.Product, 0, len(order.Products))
	for _, info := range order.Products {
		products = append(products, toProduct(info))
	}

	return domain.EnrichedOrderView{
		OrderID:    order.OrderID,
		Timestamp:  order.Timestamp,
		Customer:   toCustomer(order.Customer),
		Products:   products,
		TotalPrice: order.TotalPrice,
	}
}

// ToViews переводит набор сущностей, сохраняя порядок.
func ToViews(orders []domain.EnrichedOrder) []domain.EnrichedOrderView {
	views := make([]domain.EnrichedOrderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, ToView(o))
	}
	return views
}

func toCustomerInfo(c domain.Customer) domain.CustomerInfo {
	return domain.CustomerInfo{
		CustomerID: c.ID,
		Name:       c.Name,
		Street:     c.Street,
		Zip:        c.Zip,
		Country:    c.Country,
	}
}

func toProductInfo(p domain.Product) domain.ProductInfo {
	return domain.ProductInfo{
		ProductID: p.ID,
		Name:      p.Name,
		Price:     p.Price,
		Category:  p.Category,
		Tags:      copyTags(p.Tags),
	}
}

func toCustomer(info domain.CustomerInfo) domain.Customer {
	return domain.Customer{
		ID:      info.CustomerID,
		Name:    info.Name,
		Street:  info.Street,
		Zip:     info.Zip,
		Country: info.Country,
	}
}

func toProduct(info domain.ProductInfo) domain.Product {
	return domain.Product{
		ID:       info.ProductID,
		Name:     info.Name,
		Price:    info.Price,
		Category: info.Category,
		Tags:     copyTags(info.Tags),
	}
}

// copyTags копирует теги; отсутствующий список становится пустым, поэтому в JSON всегда "tags":[].
func copyTags(tags []string) []string {
	return append(make([]string, 0, len(tags)), tags...)
}
