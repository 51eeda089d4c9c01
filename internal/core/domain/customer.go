package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Customer credit terms are informational; nothing enforces them.
type Customer struct {
	ID           int64
	CompanyName  string
	ContactName  string
	Email        string
	Phone        string
	Address      string
	CreditLimit  decimal.Decimal
	PaymentTerms string
	IsActive     bool
	CreatedAt    time.Time
}
