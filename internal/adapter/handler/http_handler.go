package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rl1809/factory-orders/internal/core/domain"
	"github.com/rl1809/factory-orders/internal/core/service"
)

const maxBodyBytes = 1 << 20

type OrderService interface {
	CreateOrder(ctx context.Context, actor domain.Identity, in service.CreateOrderInput, idempotencyKey string) (*domain.Order, error)
	GetOrder(ctx context.Context, orderID int64) (*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, actor domain.Identity, orderID int64, in service.UpdateOrderStatusInput) (*domain.Order, error)
}

type InventoryService interface {
	AdjustStock(ctx context.Context, actor domain.Identity, productID int64, in service.AdjustStockInput) (*domain.Product, error)
	History(ctx context.Context, productID int64, limit int) ([]domain.InventoryTransaction, error)
	GetProduct(ctx context.Context, productID int64, includeInactive bool) (*domain.Product, error)
}

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.Identity, error)
}

type AuthService interface {
	Authenticator
	Login(ctx context.Context, in service.LoginInput) (*service.LoginResult, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type HTTPHandler struct {
	orders    OrderService
	inventory InventoryService
	auth      AuthService
	checks    map[string]Pinger
	logger    *slog.Logger
}

// Response is the envelope of every JSON body.
type Response struct {
	Success bool                `json:"success"`
	Message string              `json:"message,omitempty"`
	Data    any                 `json:"data,omitempty"`
	Errors  []domain.FieldError `json:"errors,omitempty"`
}

func NewHTTPHandler(orders OrderService, inventory InventoryService, auth AuthService, checks map[string]Pinger, logger *slog.Logger) *HTTPHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPHandler{
		orders:    orders,
		inventory: inventory,
		auth:      auth,
		checks:    checks,
		logger:    logger,
	}
}

func (h *HTTPHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req service.LoginInput
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.auth.Login(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: res})
}

func (h *HTTPHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFrom(r.Context())
	writeJSON(w, http.StatusOK, Response{Success: true, Data: identity})
}

func (h *HTTPHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	actor, _ := IdentityFrom(r.Context())

	var req service.CreateOrderInput
	if !h.decode(w, r, &req) {
		return
	}

	order, err := h.orders.CreateOrder(r.Context(), actor, req, r.Header.Get("Idempotency-Key"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, Response{
		Success: true,
		Message: "order created successfully",
		Data:    newOrderResponse(order),
	})
}

func (h *HTTPHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(r.Context(), orderID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: newOrderResponse(order)})
}

func (h *HTTPHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	actor, _ := IdentityFrom(r.Context())
	orderID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	var req service.UpdateOrderStatusInput
	if !h.decode(w, r, &req) {
		return
	}

	order, err := h.orders.UpdateOrderStatus(r.Context(), actor, orderID, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "order status updated",
		Data:    newOrderResponse(order),
	})
}

// GetProduct serves the catalog view. Stock levels and inactive products
// are only visible to authenticated callers.
func (h *HTTPHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	_, authenticated := IdentityFrom(r.Context())

	product, err := h.inventory.GetProduct(r.Context(), productID, authenticated)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: newProductResponse(product, authenticated)})
}

func (h *HTTPHandler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	actor, _ := IdentityFrom(r.Context())
	productID, ok := h.pathID(w, r, "productID")
	if !ok {
		return
	}

	var req service.AdjustStockInput
	if !h.decode(w, r, &req) {
		return
	}

	product, err := h.inventory.AdjustStock(r.Context(), actor, productID, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "stock adjusted",
		Data:    newProductResponse(product, true),
	})
}

func (h *HTTPHandler) History(w http.ResponseWriter, r *http.Request) {
	productID, ok := h.pathID(w, r, "productID")
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			h.writeError(w, r, domain.NewValidationError("limit", "must be a positive integer"))
			return
		}
		limit = v
	}

	entries, err := h.inventory.History(r.Context(), productID, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: newLedgerResponse(entries)})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	report := map[string]string{"status": "ok"}
	for name, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			h.logger.Error("health check failed", "dependency", name, "error", err)
			report[name] = "down"
			report["status"] = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		report[name] = "up"
	}
	writeJSON(w, status, report)
}

func (h *HTTPHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			h.writeError(w, r, domain.NewValidationError(typeErr.Field, "has the wrong type"))
			return false
		}
		writeJSON(w, http.StatusBadRequest, Response{
			Success: false,
			Message: "invalid request body",
		})
		return false
	}
	return true
}

func (h *HTTPHandler) pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, r, domain.NewValidationError(param, "must be a positive integer"))
		return 0, false
	}
	return id, true
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	f := classify(err)
	if f.status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
	}
	writeJSON(w, f.status, Response{
		Success: false,
		Message: f.message,
		Data:    f.data,
		Errors:  f.fields,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
