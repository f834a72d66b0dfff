package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// AggregateTypeOrder — тип агрегата для событий обогащённого заказа.
	AggregateTypeOrder = "order"
	// EventTypeOrderEnriched публикуется после каждого успешного создания заказа.
	EventTypeOrderEnriched = "order.enriched"
)

// OrderEnrichedEvent — полезная нагрузка события order.enriched.
type OrderEnrichedEvent struct {
	EventType  string          `json:"event_type"`
	OrderID    string          `json:"order_id"`
	CustomerID string          `json:"customer_id"`
	ProductIDs []string        `json:"product_ids"`
	TotalPrice decimal.Decimal `json:"total_price"`
	OrderedAt  time.Time       `json:"ordered_at"`
	EnrichedAt time.Time       `json:"enriched_at"`
}

// NewOrderEnrichedMessage собирает outbox-сообщение для сохранённого заказа.
func NewOrderEnrichedMessage(order EnrichedOrder, enrichedAt time.Time) (OutboxMessage, error) {
	productIDs := make([]string, 0, len(order.Products))
	for _, p := range order.Products {
		productIDs = append(productIDs, p.ProductID)
	}

	payload, err := json.Marshal(OrderEnrichedEvent{
		EventType:  EventTypeOrderEnriched,
		OrderID:    order.OrderID,
		CustomerID: order.Customer.CustomerID,
		ProductIDs: productIDs,
		TotalPrice: order.TotalPrice,
		OrderedAt:  order.Timestamp,
		EnrichedAt: enrichedAt.UTC(),
	})
	if err != nil {
		return OutboxMessage{}, fmt.Errorf("marshal %s event: %w", EventTypeOrderEnriched, err)
	}

	return OutboxMessage{
		AggregateType: AggregateTypeOrder,
		AggregateID:   order.OrderID,
		EventType:     EventTypeOrderEnriched,
		Payload:       payload,
	}, nil
}
