package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID            int64
	SKU           string
	Name          string
	Price         decimal.Decimal
	StockQuantity int
	MinStockLevel int
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// LowStock reports whether stock has fallen to or below the reorder threshold.
func (p Product) LowStock() bool {
	return p.StockQuantity <= p.MinStockLevel
}
