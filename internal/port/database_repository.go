package port

import (
	"context"
	"time"

	"github.com/rl1809/factory-orders/internal/core/domain"
)

// DatabaseRepository is the relational store. Lookups return (nil, nil)
// when the row does not exist.
type DatabaseRepository interface {
	// RunInTx executes fn in a single transaction. The transaction commits
	// when fn returns nil and rolls back otherwise.
	RunInTx(ctx context.Context, fn func(tx Transaction) error) error

	GetOrder(ctx context.Context, orderID int64) (*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, status domain.OrderStatus, shippedAt *time.Time) error
	GetProduct(ctx context.Context, productID int64) (*domain.Product, error)
	GetUserByID(ctx context.Context, userID int64) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	CreateUser(ctx context.Context, user domain.User) (int64, error)
	TouchLastLogin(ctx context.Context, userID int64) error

	// ListInventoryTransactions returns ledger entries newest first.
	ListInventoryTransactions(ctx context.Context, productID int64, limit int) ([]domain.InventoryTransaction, error)

	Ping(ctx context.Context) error
}

// Transaction exposes the writes that must happen atomically.
type Transaction interface {
	GetCustomer(ctx context.Context, customerID int64) (*domain.Customer, error)
	GetProduct(ctx context.Context, productID int64) (*domain.Product, error)

	InsertOrder(ctx context.Context, order domain.Order) (int64, error)
	InsertOrderItem(ctx context.Context, item domain.OrderItem) (int64, error)
	// DecrementStock removes quantity from an active product only when
	// enough stock remains. It reports false when nothing was updated.
	DecrementStock(ctx context.Context, productID int64, quantity int) (bool, error)

	// AdjustStock applies a signed delta, refusing to go below zero.
	AdjustStock(ctx context.Context, productID int64, delta int) (bool, error)

	InsertInventoryTransaction(ctx context.Context, entry domain.InventoryTransaction) (int64, error)
}
