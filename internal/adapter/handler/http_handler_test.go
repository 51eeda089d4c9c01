package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/factory-orders/internal/core/domain"
)

type envelope struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Data    json.RawMessage     `json:"data"`
	Errors  []domain.FieldError `json:"errors"`
}

type testServer struct {
	router    http.Handler
	orders    *stubOrders
	inventory *stubInventory
}

func newTestServer(t *testing.T, checks map[string]Pinger) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	orders := &stubOrders{}
	inventory := &stubInventory{product: &domain.Product{
		ID: 1, SKU: "BRK-100", Name: "Bracket", Price: decimal.RequireFromString("12.5"),
		StockQuantity: 3, MinStockLevel: 5, IsActive: true,
	}}
	h := NewHTTPHandler(orders, inventory, stubAuth{}, checks, logger)
	return &testServer{
		router:    NewRouter(h, RouterConfig{AllowedOrigins: []string{"*"}}, logger),
		orders:    orders,
		inventory: inventory,
	}
}

func (s *testServer) do(t *testing.T, method, path, token, body string, headers ...string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

const orderBody = `{"customer_id":5,"items":[{"product_id":1,"quantity":2,"unit_price":"10.00"}],"shipping_amount":5}`

func TestCreateOrder_HTTP(t *testing.T) {
	srv := newTestServer(t, nil)

	rec, env := srv.do(t, http.MethodPost, "/api/orders", "sales", orderBody, "Idempotency-Key", "abc-123")

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, env.Success)
	assert.Equal(t, "order created successfully", env.Message)

	var order OrderResponse
	require.NoError(t, json.Unmarshal(env.Data, &order))
	assert.Equal(t, "26.60", order.TotalAmount)
	assert.Equal(t, "1.60", order.TaxAmount)
	require.Len(t, order.Items, 1)
	assert.Equal(t, "10.00", order.Items[0].UnitPrice)

	require.Len(t, srv.orders.calls, 1)
	call := srv.orders.calls[0]
	assert.Equal(t, salesID, call.actor)
	assert.Equal(t, "abc-123", call.key)
	assert.Equal(t, int64(5), call.input.CustomerID)
	require.NotNil(t, call.input.Items[0].UnitPrice)
	assert.Equal(t, "10", call.input.Items[0].UnitPrice.String())
	assert.Equal(t, "5", call.input.ShippingAmount.String())
}

func TestCreateOrder_HTTPAuth(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		status  int
		message string
	}{
		{"missing token", "", http.StatusUnauthorized, "authentication required"},
		{"bad token", "forged", http.StatusUnauthorized, "authentication required"},
		{"disabled account", "disabled", http.StatusForbidden, "account is disabled"},
		{"viewer may not create", "viewer", http.StatusForbidden, `role "viewer" is not permitted to orders.create`},
		{"auth store failure", "broken", http.StatusInternalServerError, "internal error"},
		{"owner bypass", "owner", http.StatusCreated, "order created successfully"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, nil)

			rec, env := srv.do(t, http.MethodPost, "/api/orders", tt.token, orderBody)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.message, env.Message)
			assert.Equal(t, tt.status == http.StatusCreated, env.Success)
			if tt.status != http.StatusCreated {
				assert.Empty(t, srv.orders.calls)
			}
		})
	}
}

func TestCreateOrder_HTTPErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"invalid customer", domain.ErrInvalidCustomer, http.StatusUnprocessableEntity},
		{"unknown product", &domain.ProductNotFoundError{ProductID: 9}, http.StatusUnprocessableEntity},
		{"stock out", &domain.InsufficientStockError{ProductID: 1, SKU: "BRK-100", Available: 1, Requested: 2}, http.StatusConflict},
		{"duplicate", domain.ErrDuplicateRequest, http.StatusConflict},
		{"validation", domain.NewValidationError("items", "is required"), http.StatusBadRequest},
		{"storage", errors.New("connection reset"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, nil)
			srv.orders.err = tt.err

			rec, env := srv.do(t, http.MethodPost, "/api/orders", "sales", orderBody)

			assert.Equal(t, tt.status, rec.Code)
			assert.False(t, env.Success)
			assert.NotContains(t, env.Message, "connection reset")
		})
	}
}

func TestCreateOrder_HTTPErrorBodies(t *testing.T) {
	srv := newTestServer(t, nil)

	srv.orders.err = &domain.InsufficientStockError{ProductID: 1, SKU: "BRK-100", Available: 1, Requested: 2}
	_, env := srv.do(t, http.MethodPost, "/api/orders", "sales", orderBody)
	var shortage StockShortage
	require.NoError(t, json.Unmarshal(env.Data, &shortage))
	assert.Equal(t, StockShortage{ProductID: 1, SKU: "BRK-100", Available: 1, Requested: 2}, shortage)

	srv.orders.err = &domain.ValidationError{Fields: []domain.FieldError{
		{Field: "customer_id", Message: "is required"},
		{Field: "items[0].quantity", Message: "must be greater than 0"},
	}}
	rec, env := srv.do(t, http.MethodPost, "/api/orders", "sales", orderBody)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation failed", env.Message)
	assert.Len(t, env.Errors, 2)
}

func TestCreateOrder_MalformedBody(t *testing.T) {
	srv := newTestServer(t, nil)

	rec, env := srv.do(t, http.MethodPost, "/api/orders", "sales", `{"customer_id": "five"`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid request body", env.Message)
	assert.Empty(t, srv.orders.calls)
}

func TestCreateOrder_WrongFieldType(t *testing.T) {
	srv := newTestServer(t, nil)

	rec, env := srv.do(t, http.MethodPost, "/api/orders", "sales",
		`{"customer_id":5,"items":[{"product_id":1,"quantity":"two"}]}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation failed", env.Message)
	require.Len(t, env.Errors, 1)
	assert.Contains(t, env.Errors[0].Field, "quantity")
	assert.Equal(t, "has the wrong type", env.Errors[0].Message)
	assert.Empty(t, srv.orders.calls)
}

func TestGetOrder_HTTP(t *testing.T) {
	srv := newTestServer(t, nil)

	rec, env := srv.do(t, http.MethodGet, "/api/orders/99", "viewer", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var order OrderResponse
	require.NoError(t, json.Unmarshal(env.Data, &order))
	assert.Equal(t, "ORD123456001", order.OrderNumber)

	rec, _ = srv.do(t, http.MethodGet, "/api/orders/7", "viewer", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, env = srv.do(t, http.MethodGet, "/api/orders/abc", "viewer", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.Len(t, env.Errors, 1)
	assert.Equal(t, "id", env.Errors[0].Field)
}

func TestUpdateOrderStatus_HTTP(t *testing.T) {
	srv := newTestServer(t, nil)

	rec, _ := srv.do(t, http.MethodPatch, "/api/orders/99/status", "sales", `{"status":"shipped"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, env := srv.do(t, http.MethodPatch, "/api/orders/99/status", "manager", `{"status":"shipped"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var order OrderResponse
	require.NoError(t, json.Unmarshal(env.Data, &order))
	assert.Equal(t, domain.OrderStatusShipped, order.Status)

	rec, _ = srv.do(t, http.MethodPut, "/api/orders/99/status", "owner", `{"status":"teleported"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetProduct_OptionalAuth(t *testing.T) {
	srv := newTestServer(t, nil)

	_, env := srv.do(t, http.MethodGet, "/api/products/1", "", "")
	var anonymous map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &anonymous))
	assert.Equal(t, "12.50", anonymous["price"])
	assert.NotContains(t, anonymous, "stock_quantity")

	// An unusable token falls back to the anonymous view.
	rec, env := srv.do(t, http.MethodGet, "/api/products/1", "forged", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var fallback map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &fallback))
	assert.NotContains(t, fallback, "stock_quantity")

	_, env = srv.do(t, http.MethodGet, "/api/products/1", "viewer", "")
	var product ProductResponse
	require.NoError(t, json.Unmarshal(env.Data, &product))
	require.NotNil(t, product.StockQuantity)
	assert.Equal(t, 3, *product.StockQuantity)
	require.NotNil(t, product.LowStock)
	assert.True(t, *product.LowStock)

	srv.inventory.product.IsActive = false
	rec, _ = srv.do(t, http.MethodGet, "/api/products/1", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = srv.do(t, http.MethodGet, "/api/products/1", "viewer", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdjustStock_HTTP(t *testing.T) {
	srv := newTestServer(t, nil)

	rec, _ := srv.do(t, http.MethodPost, "/api/inventory/1/adjustments", "sales", `{"quantity":5,"type":"in"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, env := srv.do(t, http.MethodPost, "/api/inventory/1/adjustments", "manager", `{"quantity":5,"type":"in"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var product ProductResponse
	require.NoError(t, json.Unmarshal(env.Data, &product))
	assert.Equal(t, 8, *product.StockQuantity)

	srv.inventory.adjust = &domain.InsufficientStockError{ProductID: 1, Available: 3, Requested: 10}
	rec, _ = srv.do(t, http.MethodPost, "/api/inventory/1/adjustments", "owner", `{"quantity":-10}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHistory_HTTP(t *testing.T) {
	srv := newTestServer(t, nil)

	rec, env := srv.do(t, http.MethodGet, "/api/inventory/1/transactions?limit=7", "manager", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []LedgerEntryResponse
	require.NoError(t, json.Unmarshal(env.Data, &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, -2, entries[0].Delta)
	assert.Equal(t, 7, entries[1].Quantity)

	rec, _ = srv.do(t, http.MethodGet, "/api/inventory/1/transactions?limit=-1", "manager", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = srv.do(t, http.MethodGet, "/api/inventory/1/transactions", "viewer", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLoginAndMe_HTTP(t *testing.T) {
	srv := newTestServer(t, nil)

	rec, env := srv.do(t, http.MethodPost, "/api/auth/login", "", `{"email":"sam@example.com","password":"pw"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var login struct {
		Token string          `json:"token"`
		User  domain.Identity `json:"user"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &login))
	assert.Equal(t, "sales", login.Token)

	rec, env = srv.do(t, http.MethodGet, "/api/auth/me", login.Token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var me domain.Identity
	require.NoError(t, json.Unmarshal(env.Data, &me))
	assert.Equal(t, salesID, me)

	rec, _ = srv.do(t, http.MethodPost, "/api/auth/login", "", `{"email":"sam@example.com","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHealthCheck(t *testing.T) {
	srv := newTestServer(t, map[string]Pinger{"mysql": stubPinger{}, "redis": stubPinger{}})
	rec, _ := srv.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","mysql":"up","redis":"up"}`, rec.Body.String())

	srv = newTestServer(t, map[string]Pinger{"mysql": stubPinger{err: errors.New("down")}})
	rec, _ = srv.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"degraded","mysql":"down"}`, rec.Body.String())
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", bearerToken("Bearer abc"))
	assert.Equal(t, "abc", bearerToken("bearer  abc "))
	assert.Empty(t, bearerToken("Basic abc"))
	assert.Empty(t, bearerToken("abc"))
	assert.Empty(t, bearerToken(""))
}

func TestLogin_RateLimited(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHTTPHandler(&stubOrders{}, &stubInventory{}, stubAuth{}, nil, logger)
	router := NewRouter(h, RouterConfig{LoginRatePerMinute: 2}, logger)

	login := func(remote string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"sam@example.com","password":"pw"}`))
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, login("10.0.0.1:5000"))
	assert.Equal(t, http.StatusOK, login("10.0.0.1:5001"))
	assert.Equal(t, http.StatusTooManyRequests, login("10.0.0.1:5002"))

	// other clients keep their own budget
	assert.Equal(t, http.StatusOK, login("10.0.0.2:5000"))
}
