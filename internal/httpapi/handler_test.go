package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/comanda/internal/domain"
	"github.com/vladislavdragonenkov/comanda/internal/service/checkout"
	"github.com/vladislavdragonenkov/comanda/internal/storage/memory"
)

func newTestServer(t *testing.T) (*memory.Store, *httptest.Server) {
	t.Helper()

	store := memory.NewStore()
	logger := log.New()
	logger.SetLevel(log.PanicLevel)

	service := checkout.NewServiceWithoutMetrics(store, store, logger.WithField("component", "checkout"))
	handler := NewHandler(service, logger.WithField("component", "httpapi"))
	server := httptest.NewServer(NewRouter(handler, logger.WithField("component", "httpapi")))
	t.Cleanup(server.Close)

	return store, server
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()

	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestCreateOrder(t *testing.T) {
	store, server := newTestServer(t)
	store.PutProduct(domain.Product{ID: "espresso", Name: "Espresso", PriceMinor: 500, Stock: 10})

	resp := doJSON(t, http.MethodPost, server.URL+"/orders", createOrderRequest{
		TableRef:      "table-7",
		PaymentMethod: "card",
		Items: []itemRequestDTO{
			{ProductID: "espresso", Quantity: 3},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	order := decodeBody[orderDTO](t, resp)
	assert.NotEmpty(t, order.ID)
	assert.Equal(t, "table-7", order.TableRef)
	assert.Equal(t, int64(1500), order.TotalMinor)
	require.Len(t, order.Items, 1)
	assert.Equal(t, int32(3), order.Items[0].Quantity)

	product, err := store.GetProduct(context.Background(), "espresso")
	require.NoError(t, err)
	assert.Equal(t, int32(7), product.Stock)
}

func TestCreateOrder_InsufficientStock(t *testing.T) {
	store, server := newTestServer(t)
	store.PutProduct(domain.Product{ID: "tiramisu", Name: "Tiramisu", PriceMinor: 900, Stock: 2})

	resp := doJSON(t, http.MethodPost, server.URL+"/orders", createOrderRequest{
		TableRef: "table-1",
		Items: []itemRequestDTO{
			{ProductID: "tiramisu", Quantity: 5},
		},
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	// Отказ не тронул сток.
	product, err := store.GetProduct(context.Background(), "tiramisu")
	require.NoError(t, err)
	assert.Equal(t, int32(2), product.Stock)
}

func TestCreateOrder_Validation(t *testing.T) {
	store, server := newTestServer(t)
	store.PutProduct(domain.Product{ID: "latte", Name: "Latte", PriceMinor: 600, Stock: 5})

	tests := []struct {
		name string
		req  createOrderRequest
	}{
		{name: "missing table ref", req: createOrderRequest{Items: []itemRequestDTO{{ProductID: "latte", Quantity: 1}}}},
		{name: "no items", req: createOrderRequest{TableRef: "table-2"}},
		{name: "zero quantity", req: createOrderRequest{TableRef: "table-2", Items: []itemRequestDTO{{ProductID: "latte", Quantity: 0}}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := doJSON(t, http.MethodPost, server.URL+"/orders", tc.req)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestGetOrder_NotFound(t *testing.T) {
	_, server := newTestServer(t)

	resp := doJSON(t, http.MethodGet, server.URL+"/orders/no-such-order", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAddDecrementRemoveItemFlow(t *testing.T) {
	store, server := newTestServer(t)
	store.PutProduct(domain.Product{ID: "espresso", Name: "Espresso", PriceMinor: 500, Stock: 10})
	store.PutProduct(domain.Product{ID: "cake", Name: "Cheesecake", PriceMinor: 800, Stock: 4})

	resp := doJSON(t, http.MethodPost, server.URL+"/orders", createOrderRequest{
		TableRef: "table-3",
		Items:    []itemRequestDTO{{ProductID: "espresso", Quantity: 2}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	order := decodeBody[orderDTO](t, resp)

	// Добавляем вторую позицию.
	resp = doJSON(t, http.MethodPost, server.URL+"/orders/"+order.ID+"/items", itemRequestDTO{
		ProductID: "cake",
		Quantity:  1,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	change := decodeBody[itemChangeDTO](t, resp)
	require.NotNil(t, change.Item)
	assert.Equal(t, int64(1800), change.OrderTotal)

	// Декремент espresso: 2 -> 1.
	espressoItemID := order.Items[0].ID
	resp = doJSON(t, http.MethodPatch, fmt.Sprintf("%s/orders/%s/items/%s/decrement", server.URL, order.ID, espressoItemID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	change = decodeBody[itemChangeDTO](t, resp)
	require.NotNil(t, change.Item)
	assert.Equal(t, int32(1), change.Item.Quantity)
	assert.Equal(t, int64(1300), change.OrderTotal)

	// Декремент последней единицы снимает позицию целиком.
	resp = doJSON(t, http.MethodPatch, fmt.Sprintf("%s/orders/%s/items/%s/decrement", server.URL, order.ID, espressoItemID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	change = decodeBody[itemChangeDTO](t, resp)
	assert.True(t, change.Removed)
	assert.Equal(t, int64(800), change.OrderTotal)

	product, err := store.GetProduct(context.Background(), "espresso")
	require.NoError(t, err)
	assert.Equal(t, int32(10), product.Stock)

	// Неизвестный item — 404, заказ не изменился.
	resp = doJSON(t, http.MethodDelete, fmt.Sprintf("%s/orders/%s/items/%s", server.URL, order.ID, "no-such-item"), nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, server.URL+"/orders/"+order.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	fresh := decodeBody[orderDTO](t, resp)
	require.Len(t, fresh.Items, 1)

	resp = doJSON(t, http.MethodDelete, fmt.Sprintf("%s/orders/%s/items/%s", server.URL, order.ID, fresh.Items[0].ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	change = decodeBody[itemChangeDTO](t, resp)
	assert.True(t, change.Removed)
	assert.Equal(t, int64(0), change.OrderTotal)

	cake, err := store.GetProduct(context.Background(), "cake")
	require.NoError(t, err)
	assert.Equal(t, int32(4), cake.Stock)
}

func TestStockEndpoints(t *testing.T) {
	store, server := newTestServer(t)
	store.PutProduct(domain.Product{ID: "espresso", Name: "Espresso", PriceMinor: 500, Stock: 10})
	store.PutProduct(domain.Product{ID: "latte", Name: "Latte", PriceMinor: 600, Stock: 3})

	resp := doJSON(t, http.MethodGet, server.URL+"/stock", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	products := decodeBody[[]productDTO](t, resp)
	require.Len(t, products, 2)
	assert.Equal(t, "Espresso", products[0].Name)

	resp = doJSON(t, http.MethodPut, server.URL+"/stock/latte", setStockRequest{Stock: 42})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decodeBody[productDTO](t, resp)
	assert.Equal(t, int32(42), updated.Stock)

	resp = doJSON(t, http.MethodPut, server.URL+"/stock/latte", setStockRequest{Stock: -1})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, http.MethodPut, server.URL+"/stock/no-such-product", setStockRequest{Stock: 5})
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDecreaseStockEndpoint(t *testing.T) {
	store, server := newTestServer(t)
	store.PutProduct(domain.Product{ID: "espresso", Name: "Espresso", PriceMinor: 500, Stock: 10})

	resp := doJSON(t, http.MethodPost, server.URL+"/stock/espresso/decrease", decreaseStockRequest{Quantity: 4})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decodeBody[productDTO](t, resp)
	assert.Equal(t, int32(6), updated.Stock)

	// Списание сверх остатка — конфликт, сток не меняется.
	resp = doJSON(t, http.MethodPost, server.URL+"/stock/espresso/decrease", decreaseStockRequest{Quantity: 7})
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	product, err := store.GetProduct(context.Background(), "espresso")
	require.NoError(t, err)
	assert.Equal(t, int32(6), product.Stock)

	resp = doJSON(t, http.MethodPost, server.URL+"/stock/espresso/decrease", decreaseStockRequest{Quantity: 0})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, server.URL+"/stock/no-such-product/decrease", decreaseStockRequest{Quantity: 1})
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
