package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderRequest — входящий заказ до обогащения.
type OrderRequest struct {
	// OrderID задаётся вызывающей стороной и служит ключом хранения.
	OrderID    string
	CustomerID string
	// ProductIDs сохраняет порядок и повторы.
	ProductIDs []string
	// Timestamp — момент создания заказа; нулевое значение заменяется текущим временем.
	Timestamp time.Time
}

// Validate проверяет входящий запрос и возвращает список замечаний.
func (r *OrderRequest) Validate() []error {
	var errs []error

	if strings.TrimSpace(r.OrderID) == "" {
		errs = append(errs, ErrOrderIDRequired)
	}
	if strings.TrimSpace(r.CustomerID) == "" {
		errs = append(errs, ErrCustomerRequired)
	}
	if len(r.ProductIDs) == 0 {
		errs = append(errs, ErrProductsRequired)
	}
	for idx, id := range r.ProductIDs {
		if strings.TrimSpace(id) == "" {
			errs = append(errs, fmt.Errorf("%w: product_ids[%d]", ErrProductIDBlank, idx))
		}
	}

	return errs
}

// Customer — запись клиента в том виде, в каком её отдаёт customer-service.
type Customer struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Street  string `json:"street"`
	Zip     string `json:"zip"`
	Country string `json:"country"`
}

// Product — запись товара в том виде, в каком её отдаёт product-service.
type Product struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Category string          `json:"category"`
	Tags     []string        `json:"tags"`
}

// CustomerInfo — снимок клиента, зафиксированный в момент обогащения.
type CustomerInfo struct {
	CustomerID string `json:"customer_id"`
	Name       string `json:"name"`
	Street     string `json:"street"`
	Zip        string `json:"zip"`
	Country    string `json:"country"`
}

// ProductInfo — снимок товара, одна строка заказа.
type ProductInfo struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Category  string          `json:"category"`
	Tags      []string        `json:"tags,omitempty"`
}

// EnrichedOrder — сохраняемая сущность обогащённого заказа.
type EnrichedOrder struct {
	OrderID   string        `json:"order_id"`
	Timestamp time.Time     `json:"timestamp"`
	Customer  CustomerInfo  `json:"customer"`
	Products  []ProductInfo `json:"products"`
	// TotalPrice считается один раз при создании и на чтении не пересчитывается.
	TotalPrice decimal.Decimal `json:"total_price"`
}

// WithProductsFiltered возвращает копию заказа, в которой остались только строки с productID.
// Исходный заказ не изменяется.
func (o EnrichedOrder) WithProductsFiltered(productID string) EnrichedOrder {
	filtered := make([]ProductInfo, 0, len(o.Products))
	for _, p := range o.Products {
		if p.ProductID == productID {
			filtered = append(filtered, p)
		}
	}
	o.Products = filtered
	return o
}

// Clone возвращает глубокую копию заказа.
func (o EnrichedOrder) Clone() EnrichedOrder {
	if o.Products == nil {
		return o
	}
	products := make([]ProductInfo, len(o.Products))
	for i, p := range o.Products {
		if p.Tags != nil {
			p.Tags = append([]string(nil), p.Tags...)
		}
		products[i] = p
	}
	o.Products = products
	return o
}

// EnrichedOrderView — представление заказа для ответов и кэша.
type EnrichedOrderView struct {
	OrderID    string          `json:"orderId"`
	Timestamp  time.Time       `json:"timestamp"`
	Customer   Customer        `json:"customer"`
	Products   []Product       `json:"products"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
}

// Clone возвращает глубокую копию представления.
func (v EnrichedOrderView) Clone() EnrichedOrderView {
	if v.Products == nil {
		return v
	}
	products := make([]Product, len(v.Products))
	for i, p := range v.Products {
		if p.Tags != nil {
			p.Tags = append([]string(nil), p.Tags...)
		}
		products[i] = p
	}
	v.Products = products
	return v
}
