package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rl1809/factory-orders/internal/core/domain"
	"github.com/rl1809/factory-orders/internal/port"
)

// Movement describes one stock change to document in the ledger.
type Movement struct {
	ProductID     int64
	Type          domain.TransactionType
	Quantity      int
	ReferenceType string
	ReferenceID   *int64
	Notes         string
}

// RecordMovement appends one immutable ledger entry. It must run inside the
// same transaction as the stock mutation it documents.
func RecordMovement(ctx context.Context, tx port.Transaction, m Movement, actor domain.Identity, at time.Time) error {
	_, err := tx.InsertInventoryTransaction(ctx, domain.InventoryTransaction{
		ProductID:     m.ProductID,
		Type:          m.Type,
		Quantity:      m.Quantity,
		ReferenceType: m.ReferenceType,
		ReferenceID:   m.ReferenceID,
		Notes:         m.Notes,
		CreatedBy:     actor.ID,
		CreatedAt:     at,
	})
	if err != nil {
		return fmt.Errorf("record %s movement for product %d: %w", m.Type, m.ProductID, err)
	}
	return nil
}
