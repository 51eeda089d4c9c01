package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rl1809/factory-orders/internal/core/domain"
	"github.com/rl1809/factory-orders/internal/port"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

type AdjustStockInput struct {
	Quantity int                    `json:"quantity" validate:"required"`
	Type     domain.TransactionType `json:"type,omitempty" validate:"omitempty,oneof=in out adjustment"`
	Notes    string                 `json:"notes,omitempty" validate:"max=500"`
}

// delta converts the input into a signed stock change. In and out carry a
// positive magnitude; adjustments carry their own sign.
func (in AdjustStockInput) delta() (domain.TransactionType, int, error) {
	typ := in.Type
	if typ == "" {
		typ = domain.TransactionAdjustment
	}

	switch typ {
	case domain.TransactionIn:
		if in.Quantity < 0 {
			return "", 0, domain.NewValidationError("quantity", "must be positive for type in")
		}
		return typ, in.Quantity, nil
	case domain.TransactionOut:
		if in.Quantity < 0 {
			return "", 0, domain.NewValidationError("quantity", "must be positive for type out")
		}
		return typ, -in.Quantity, nil
	}
	return typ, in.Quantity, nil
}

type InventoryService struct {
	db     port.DatabaseRepository
	logger *slog.Logger
	now    func() time.Time
}

func NewInventoryService(db port.DatabaseRepository, logger *slog.Logger) *InventoryService {
	if logger == nil {
		logger = slog.Default()
	}
	return &InventoryService{db: db, logger: logger, now: time.Now}
}

// AdjustStock applies a manual correction and its ledger entry atomically.
// Stock never goes below zero.
func (s *InventoryService) AdjustStock(ctx context.Context, actor domain.Identity, productID int64, in AdjustStockInput) (*domain.Product, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	typ, delta, err := in.delta()
	if err != nil {
		return nil, err
	}

	err = s.db.RunInTx(ctx, func(tx port.Transaction) error {
		product, err := tx.GetProduct(ctx, productID)
		if err != nil {
			return fmt.Errorf("get product %d: %w", productID, err)
		}
		if product == nil {
			return &domain.ProductNotFoundError{ProductID: productID}
		}

		ok, err := tx.AdjustStock(ctx, productID, delta)
		if err != nil {
			return fmt.Errorf("adjust stock for product %d: %w", productID, err)
		}
		if !ok {
			return &domain.InsufficientStockError{
				ProductID: product.ID,
				SKU:       product.SKU,
				Available: product.StockQuantity,
				Requested: -delta,
			}
		}

		return RecordMovement(ctx, tx, Movement{
			ProductID:     productID,
			Type:          typ,
			Quantity:      in.Quantity,
			ReferenceType: domain.ReferenceAdjustment,
			Notes:         in.Notes,
		}, actor, s.now())
	})
	if err != nil {
		return nil, err
	}

	product, err := s.db.GetProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("get product %d: %w", productID, err)
	}
	if product == nil {
		return nil, &domain.ProductNotFoundError{ProductID: productID}
	}

	s.logger.Info("stock adjusted",
		"product_id", productID,
		"type", typ,
		"delta", delta,
		"stock", product.StockQuantity,
		"user_id", actor.ID,
	)
	if product.LowStock() {
		s.logger.Warn("product at or below minimum stock",
			"product_id", productID,
			"sku", product.SKU,
			"stock", product.StockQuantity,
			"min_stock_level", product.MinStockLevel,
		)
	}
	return product, nil
}

// History returns the ledger for a product, newest first.
func (s *InventoryService) History(ctx context.Context, productID int64, limit int) ([]domain.InventoryTransaction, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	limit = min(limit, maxHistoryLimit)

	product, err := s.db.GetProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("get product %d: %w", productID, err)
	}
	if product == nil {
		return nil, fmt.Errorf("product %d: %w", productID, domain.ErrNotFound)
	}

	entries, err := s.db.ListInventoryTransactions(ctx, productID, limit)
	if err != nil {
		return nil, fmt.Errorf("list inventory transactions: %w", err)
	}
	return entries, nil
}

// GetProduct returns a product. Inactive products are hidden unless
// includeInactive is set.
func (s *InventoryService) GetProduct(ctx context.Context, productID int64, includeInactive bool) (*domain.Product, error) {
	product, err := s.db.GetProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("get product %d: %w", productID, err)
	}
	if product == nil || (!product.IsActive && !includeInactive) {
		return nil, fmt.Errorf("product %d: %w", productID, domain.ErrNotFound)
	}
	return product, nil
}
