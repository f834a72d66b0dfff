package client

import (
	"context"

	"github.com/vladislavdragonenkov/order-enricher/internal/domain"
)

// CustomerServiceClient получает клиентов из customer-service по GET /customers/{id}.
type CustomerServiceClient struct {
	fetcher *fetcher
}

// NewCustomerServiceClient создаёт клиент для baseURL.
func NewCustomerServiceClient(baseURL string, options ...Option) *CustomerServiceClient {
	return &CustomerServiceClient{
		fetcher: newFetcher(baseURL, "customers", domain.ResourceCustomer, "customer", options...),
	}
}

// FetchCustomer возвращает запись клиента без изменений.
func (c *CustomerServiceClient) FetchCustomer(ctx context.Context, id string) (domain.Customer, error) {
	var customer domain.Customer
	if err := c.fetcher.fetch(ctx, id, &customer); err != nil {
		return domain.Customer{}, err
	}
	return customer, nil
}

var _ domain.CustomerClient = (*CustomerServiceClient)(nil)
