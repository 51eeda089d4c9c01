package domain

import "time"

type TransactionType string

const (
	TransactionIn         TransactionType = "in"
	TransactionOut        TransactionType = "out"
	TransactionAdjustment TransactionType = "adjustment"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TransactionIn, TransactionOut, TransactionAdjustment:
		return true
	}
	return false
}

const (
	ReferenceSale       = "sale"
	ReferenceAdjustment = "adjustment"
)

// InventoryTransaction is an append-only ledger entry. Quantity is a
// magnitude for in and out entries and signed for adjustments.
type InventoryTransaction struct {
	ID            int64
	ProductID     int64
	Type          TransactionType
	Quantity      int
	ReferenceType string
	ReferenceID   *int64
	Notes         string
	CreatedBy     int64
	CreatedAt     time.Time
}

// Delta returns the signed stock change the entry documents.
func (t InventoryTransaction) Delta() int {
	if t.Type == TransactionOut {
		return -t.Quantity
	}
	return t.Quantity
}
