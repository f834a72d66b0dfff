package client

import (
	"context"

	"github.com/vladislavdragonenkov/order-enricher/internal/domain"
)

// ProductServiceClient получает товары из product-service по GET /products/{id}.
type ProductServiceClient struct {
	fetcher *fetcher
}

// NewProductServiceClient создаёт клиент для baseURL.
func NewProductServiceClient(baseURL string, options ...Option) *ProductServiceClient {
	return &ProductServiceClient{
		fetcher: newFetcher(baseURL, "products", domain.ResourceProduct, "product", options...),
	}
}

// FetchProduct возвращает запись товара без изменений.
func (c *ProductServiceClient) FetchProduct(ctx context.Context, id string) (domain.Product, error) {
	var product domain.Product
	if err := c.fetcher.fetch(ctx, id, &product); err != nil {
		return domain.Product{}, err
	}
	return product, nil
}

var _ domain.ProductClient = (*ProductServiceClient)(nil)
