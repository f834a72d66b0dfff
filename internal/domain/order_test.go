package domain_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/order-enricher/internal/domain"
)

// helper для создания корректного запроса.
func makeRequest() domain.OrderRequest {
	return domain.OrderRequest{
		OrderID:    "ORD-1",
		CustomerID: "C1",
		ProductIDs: []string{"P1", "P1", "P2"},
		Timestamp:  time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func makeOrder() domain.EnrichedOrder {
	return domain.EnrichedOrder{
		OrderID:   "ORD-1",
		Timestamp: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		Customer:  domain.CustomerInfo{CustomerID: "C1", Name: "Alice"},
		Products: []domain.ProductInfo{
			{ProductID: "P1", Price: decimal.NewFromInt(10), Tags: []string{"a"}},
			{ProductID: "P2", Price: decimal.NewFromInt(5)},
			{ProductID: "P1", Price: decimal.NewFromInt(10)},
		},
		TotalPrice: decimal.NewFromInt(25),
	}
}

func TestOrderRequestValidate_Ok(t *testing.T) {
	req := makeRequest()
	if errs := req.Validate(); len(errs) != 0 {
		t.Fatalf("expected no validation errors, got %v", errs)
	}
}

func TestOrderRequestValidate_Errors(t *testing.T) {
	cases := []struct {
		name string
		mut  func(r *domain.OrderRequest)
		want error
	}{
		{
			name: "no order id",
			mut:  func(r *domain.OrderRequest) { r.OrderID = " " },
			want: domain.ErrOrderIDRequired,
		},
		{
			name: "no customer",
			mut:  func(r *domain.OrderRequest) { r.CustomerID = "" },
			want: domain.ErrCustomerRequired,
		},
		{
			name: "no products",
			mut:  func(r *domain.OrderRequest) { r.ProductIDs = nil },
			want: domain.ErrProductsRequired,
		},
		{
			name: "blank product id",
			mut:  func(r *domain.OrderRequest) { r.ProductIDs = []string{"P1", ""} },
			want: domain.ErrProductIDBlank,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := makeRequest()
			tc.mut(&req)

			errs := req.Validate()
			if len(errs) == 0 {
				t.Fatalf("expected validation errors for case %s", tc.name)
			}
			if !errors.Is(errs[0], tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, errs[0])
			}
		})
	}
}

func TestEnrichedOrder_WithProductsFiltered(t *testing.T) {
	order := makeOrder()

	filtered := order.WithProductsFiltered("P1")

	if len(filtered.Products) != 2 {
		t.Fatalf("expected 2 matching products, got %d", len(filtered.Products))
	}
	for _, p := range filtered.Products {
		if p.ProductID != "P1" {
			t.Fatalf("unexpected product %s in filtered order", p.ProductID)
		}
	}
	// Исходный заказ не должен меняться.
	if len(order.Products) != 3 {
		t.Fatalf("source order mutated: %d products", len(order.Products))
	}
	if !filtered.TotalPrice.Equal(order.TotalPrice) {
		t.Fatalf("total must be kept as persisted, got %s", filtered.TotalPrice)
	}
}

func TestEnrichedOrder_Clone(t *testing.T) {
	order := makeOrder()
	clone := order.Clone()

	clone.Products[0].ProductID = "changed"
	clone.Products[0].Tags[0] = "changed"

	if order.Products[0].ProductID != "P1" || order.Products[0].Tags[0] != "a" {
		t.Fatalf("clone shares memory with source: %+v", order.Products[0])
	}
}

func TestOrderCriteria_Matches(t *testing.T) {
	order := makeOrder()
	cases := []struct {
		name     string
		criteria domain.OrderCriteria
		want     bool
	}{
		{name: "no filters", criteria: domain.NewOrderCriteria("", ""), want: true},
		{name: "customer match", criteria: domain.NewOrderCriteria("C1", ""), want: true},
		{name: "customer mismatch", criteria: domain.NewOrderCriteria("C2", ""), want: false},
		{name: "product match", criteria: domain.NewOrderCriteria("", "P2"), want: true},
		{name: "product mismatch", criteria: domain.NewOrderCriteria("", "P9"), want: false},
		{name: "both match", criteria: domain.NewOrderCriteria("C1", "P1"), want: true},
		{name: "customer match product mismatch", criteria: domain.NewOrderCriteria("C1", "P9"), want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.criteria.Matches(order); got != tc.want {
				t.Fatalf("Matches() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestOrderCriteria_CacheKeyDistinguishesCombinations(t *testing.T) {
	empty := ""
	keys := map[string]struct{}{}
	for _, c := range []domain.OrderCriteria{
		{},
		{CustomerID: &empty},
		{ProductID: &empty},
		domain.NewOrderCriteria("C1", ""),
		domain.NewOrderCriteria("", "C1"),
		domain.NewOrderCriteria("C1", "P1"),
	} {
		keys[c.CacheKey()] = struct{}{}
	}

	if len(keys) != 6 {
		t.Fatalf("expected 6 distinct cache keys, got %d: %v", len(keys), keys)
	}
	if !domain.NewOrderCriteria("", "").IsEmpty() {
		t.Fatal("criteria built from empty strings must be empty")
	}
}

func TestNewOrderEnrichedMessage(t *testing.T) {
	order := makeOrder()
	at := time.Date(2025, 3, 1, 12, 5, 0, 0, time.FixedZone("CET", 3600))

	msg, err := domain.NewOrderEnrichedMessage(order, at)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.AggregateType != domain.AggregateTypeOrder || msg.AggregateID != "ORD-1" || msg.EventType != domain.EventTypeOrderEnriched {
		t.Fatalf("unexpected envelope: %+v", msg)
	}

	var event domain.OrderEnrichedEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		t.Fatalf("payload is not valid json: %v", err)
	}
	if len(event.ProductIDs) != 3 || event.ProductIDs[2] != "P1" {
		t.Fatalf("unexpected product ids: %v", event.ProductIDs)
	}
	if !event.TotalPrice.Equal(decimal.NewFromInt(25)) {
		t.Fatalf("unexpected total: %s", event.TotalPrice)
	}
	if event.EnrichedAt.Location() != time.UTC {
		t.Fatalf("enriched_at must be UTC, got %s", event.EnrichedAt.Location())
	}
}
