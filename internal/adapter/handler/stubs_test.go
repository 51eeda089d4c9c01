package handler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/factory-orders/internal/core/domain"
	"github.com/rl1809/factory-orders/internal/core/service"
)

var (
	ownerID   = domain.Identity{ID: 1, FullName: "Olga Owner", Role: domain.RoleOwner, IsActive: true}
	salesID   = domain.Identity{ID: 2, FullName: "Sam Sales", Role: domain.RoleSales, IsActive: true}
	viewerID  = domain.Identity{ID: 3, FullName: "Val Viewer", Role: domain.RoleViewer, IsActive: true}
	managerID = domain.Identity{ID: 4, FullName: "Max Manager", Role: domain.RoleManager, IsActive: true}
)

// stubAuth resolves fixed tokens. "disabled" maps to a deactivated account.
type stubAuth struct{}

func (stubAuth) Authenticate(ctx context.Context, token string) (*domain.Identity, error) {
	switch token {
	case "owner":
		return &ownerID, nil
	case "sales":
		return &salesID, nil
	case "viewer":
		return &viewerID, nil
	case "manager":
		return &managerID, nil
	case "disabled":
		return nil, domain.ErrAccountDisabled
	case "broken":
		return nil, errors.New("db down")
	}
	return nil, domain.ErrUnauthenticated
}

func (stubAuth) Login(ctx context.Context, in service.LoginInput) (*service.LoginResult, error) {
	if in.Email == "sam@example.com" && in.Password == "pw" {
		return &service.LoginResult{Token: "sales", ExpiresAt: time.Now().Add(time.Hour), User: salesID}, nil
	}
	return nil, domain.ErrUnauthenticated
}

type createCall struct {
	actor domain.Identity
	input service.CreateOrderInput
	key   string
}

type stubOrders struct {
	mu      sync.Mutex
	calls   []createCall
	err     error
	updated []service.UpdateOrderStatusInput
}

func sampleOrder(id int64) *domain.Order {
	return &domain.Order{
		ID:             id,
		OrderNumber:    "ORD123456001",
		CustomerID:     5,
		CustomerName:   "Acme Tooling",
		CreatedBy:      salesID.ID,
		Status:         domain.OrderStatusPending,
		Subtotal:       decimal.RequireFromString("20"),
		TaxAmount:      decimal.RequireFromString("1.6"),
		ShippingAmount: decimal.RequireFromString("5"),
		TotalAmount:    decimal.RequireFromString("26.6"),
		Items: []domain.OrderItem{{
			ID: 1, OrderID: id, ProductID: 1, ProductSKU: "BRK-100", ProductName: "Bracket",
			Quantity: 2, UnitPrice: decimal.RequireFromString("10"), TotalPrice: decimal.RequireFromString("20"),
		}},
	}
}

func (s *stubOrders) CreateOrder(ctx context.Context, actor domain.Identity, in service.CreateOrderInput, key string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, createCall{actor: actor, input: in, key: key})
	if s.err != nil {
		return nil, s.err
	}
	return sampleOrder(99), nil
}

func (s *stubOrders) GetOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	if orderID != 99 {
		return nil, domain.ErrNotFound
	}
	return sampleOrder(orderID), nil
}

func (s *stubOrders) UpdateOrderStatus(ctx context.Context, actor domain.Identity, orderID int64, in service.UpdateOrderStatusInput) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updated = append(s.updated, in)
	if !in.Status.Valid() {
		return nil, domain.NewValidationError("status", "must be one of the order statuses")
	}
	o := sampleOrder(orderID)
	o.Status = in.Status
	return o, nil
}

type stubInventory struct {
	product *domain.Product
	adjust  error
}

func (s *stubInventory) AdjustStock(ctx context.Context, actor domain.Identity, productID int64, in service.AdjustStockInput) (*domain.Product, error) {
	if s.adjust != nil {
		return nil, s.adjust
	}
	p := *s.product
	p.StockQuantity += in.Quantity
	return &p, nil
}

func (s *stubInventory) History(ctx context.Context, productID int64, limit int) ([]domain.InventoryTransaction, error) {
	ref := int64(99)
	return []domain.InventoryTransaction{
		{ID: 2, ProductID: productID, Type: domain.TransactionOut, Quantity: 2, ReferenceType: domain.ReferenceSale, ReferenceID: &ref},
		{ID: 1, ProductID: productID, Type: domain.TransactionIn, Quantity: limit, ReferenceType: domain.ReferenceAdjustment},
	}, nil
}

func (s *stubInventory) GetProduct(ctx context.Context, productID int64, includeInactive bool) (*domain.Product, error) {
	if productID != s.product.ID || (!s.product.IsActive && !includeInactive) {
		return nil, domain.ErrNotFound
	}
	p := *s.product
	return &p, nil
}

type stubPinger struct {
	err error
}

func (p stubPinger) Ping(ctx context.Context) error { return p.err }
