package client_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/order-enricher/internal/client"
	"github.com/vladislavdragonenkov/order-enricher/internal/domain"
)

func newUpstream(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestCustomerClient_ReturnsCustomer(t *testing.T) {
	srv := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/customers/CUST-123", r.URL.Path)
		require.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"CUST-123","name":"Test Customer","street":"Main 1","zip":"10115","country":"DE"}`))
	})

	c := client.NewCustomerServiceClient(srv.URL)
	customer, err := c.FetchCustomer(context.Background(), "CUST-123")

	require.NoError(t, err)
	require.Equal(t, domain.Customer{ID: "CUST-123", Name: "Test Customer", Street: "Main 1", Zip: "10115", Country: "DE"}, customer)
}

func TestProductClient_ReturnsProduct(t *testing.T) {
	srv := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/products/PROD-A1", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"PROD-A1","name":"Pen","price":12.50,"category":"office","tags":["blue","blue"]}`))
	})

	c := client.NewProductServiceClient(srv.URL + "/")
	product, err := c.FetchProduct(context.Background(), "PROD-A1")

	require.NoError(t, err)
	require.Equal(t, "PROD-A1", product.ID)
	require.True(t, product.Price.Equal(decimal.RequireFromString("12.5")))
	// Теги не дедуплицируются.
	require.Equal(t, []string{"blue", "blue"}, product.Tags)
}

func TestClients_ErrorMapping(t *testing.T) {
	cases := []struct {
		name            string
		handler         http.HandlerFunc
		wantNotFound    bool
		wantUnavailable bool
	}{
		{
			name:         "not found",
			handler:      func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNotFound) },
			wantNotFound: true,
		},
		{
			name:            "forbidden",
			handler:         func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusForbidden) },
			wantUnavailable: true,
		},
		{
			name:            "server error",
			handler:         func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusInternalServerError) },
			wantUnavailable: true,
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"id":`))
			},
			wantUnavailable: true,
		},
		{
			// У каждого клиента своё поле с неверным типом.
			name: "wrong field type",
			handler: func(w http.ResponseWriter, r *http.Request) {
				if strings.HasPrefix(r.URL.Path, "/customers/") {
					_, _ = w.Write([]byte(`{"id":1,"name":"Test Customer"}`))
					return
				}
				_, _ = w.Write([]byte(`{"id":"P1","price":"not-a-number"}`))
			},
			wantUnavailable: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newUpstream(t, tc.handler)

			_, custErr := client.NewCustomerServiceClient(srv.URL).FetchCustomer(context.Background(), "X-1")
			_, prodErr := client.NewProductServiceClient(srv.URL).FetchProduct(context.Background(), "X-1")

			for name, err := range map[string]error{"customer": custErr, "product": prodErr} {
				require.Error(t, err, name)
				require.Equal(t, tc.wantNotFound, domain.IsNotFound(err), "%s: err=%v", name, err)
				require.Equal(t, tc.wantUnavailable, domain.IsUnavailable(err), "%s: err=%v", name, err)
			}
		})
	}
}

func TestClient_NotFoundCarriesID(t *testing.T) {
	srv := newUpstream(t, func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNotFound) })

	_, err := client.NewCustomerServiceClient(srv.URL).FetchCustomer(context.Background(), "CUST-999")

	var nf *domain.NotFoundError
	require.True(t, errors.As(err, &nf))
	require.Equal(t, "CUST-999", nf.ID)
	require.Equal(t, domain.ResourceCustomer, nf.Resource)
}

func TestClient_ConnectionRefusedIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := client.NewProductServiceClient(url).FetchProduct(context.Background(), "P1")

	require.True(t, domain.IsUnavailable(err), "err=%v", err)
}

func TestClient_TimeoutIsUnavailable(t *testing.T) {
	release := make(chan struct{})
	srv := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	c := client.NewCustomerServiceClient(srv.URL, client.WithTimeout(20*time.Millisecond))
	_, err := c.FetchCustomer(context.Background(), "C1")

	require.True(t, domain.IsUnavailable(err), "err=%v", err)
}

func TestClient_EscapesID(t *testing.T) {
	srv := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/customers/a%2Fb", r.URL.EscapedPath())
		_, _ = w.Write([]byte(`{"id":"a/b"}`))
	})

	customer, err := client.NewCustomerServiceClient(srv.URL).FetchCustomer(context.Background(), "a/b")

	require.NoError(t, err)
	require.Equal(t, "a/b", customer.ID)
}
