package handler

import (
	"encoding/json"
	"time"

	"github.com/rl1809/factory-orders/internal/core/domain"
)

const moneyPlaces = 2

type OrderItemResponse struct {
	ID          int64  `json:"id"`
	ProductID   int64  `json:"product_id"`
	ProductSKU  string `json:"product_sku"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	TotalPrice  string `json:"total_price"`
}

type OrderResponse struct {
	ID              int64               `json:"id"`
	OrderNumber     string              `json:"order_number"`
	CustomerID      int64               `json:"customer_id"`
	CustomerName    string              `json:"customer_name"`
	CreatedBy       int64               `json:"created_by"`
	CreatedByName   string              `json:"created_by_name"`
	Status          domain.OrderStatus  `json:"status"`
	OrderDate       time.Time           `json:"order_date"`
	RequiredDate    *string             `json:"required_date"`
	ShippedAt       *time.Time          `json:"shipped_at"`
	Subtotal        string              `json:"subtotal"`
	TaxAmount       string              `json:"tax_amount"`
	ShippingAmount  string              `json:"shipping_amount"`
	DiscountAmount  string              `json:"discount_amount"`
	TotalAmount     string              `json:"total_amount"`
	ShippingAddress json.RawMessage     `json:"shipping_address"`
	BillingAddress  json.RawMessage     `json:"billing_address"`
	PaymentMethod   string              `json:"payment_method"`
	Notes           string              `json:"notes"`
	Items           []OrderItemResponse `json:"items"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

func newOrderResponse(o *domain.Order) *OrderResponse {
	resp := &OrderResponse{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		CustomerID:      o.CustomerID,
		CustomerName:    o.CustomerName,
		CreatedBy:       o.CreatedBy,
		CreatedByName:   o.CreatedByName,
		Status:          o.Status,
		OrderDate:       o.OrderDate,
		ShippedAt:       o.ShippedAt,
		Subtotal:        o.Subtotal.StringFixed(moneyPlaces),
		TaxAmount:       o.TaxAmount.StringFixed(moneyPlaces),
		ShippingAmount:  o.ShippingAmount.StringFixed(moneyPlaces),
		DiscountAmount:  o.DiscountAmount.StringFixed(moneyPlaces),
		TotalAmount:     o.TotalAmount.StringFixed(moneyPlaces),
		ShippingAddress: o.ShippingAddress,
		BillingAddress:  o.BillingAddress,
		PaymentMethod:   o.PaymentMethod,
		Notes:           o.Notes,
		Items:           make([]OrderItemResponse, 0, len(o.Items)),
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	if o.RequiredDate != nil {
		d := o.RequiredDate.Format("2006-01-02")
		resp.RequiredDate = &d
	}
	for _, item := range o.Items {
		resp.Items = append(resp.Items, OrderItemResponse{
			ID:          item.ID,
			ProductID:   item.ProductID,
			ProductSKU:  item.ProductSKU,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice.StringFixed(moneyPlaces),
			TotalPrice:  item.TotalPrice.StringFixed(moneyPlaces),
		})
	}
	return resp
}

// ProductResponse hides stock fields from anonymous callers.
type ProductResponse struct {
	ID            int64  `json:"id"`
	SKU           string `json:"sku"`
	Name          string `json:"name"`
	Price         string `json:"price"`
	IsActive      bool   `json:"is_active"`
	StockQuantity *int   `json:"stock_quantity,omitempty"`
	MinStockLevel *int   `json:"min_stock_level,omitempty"`
	LowStock      *bool  `json:"low_stock,omitempty"`
}

func newProductResponse(p *domain.Product, withStock bool) ProductResponse {
	resp := ProductResponse{
		ID:       p.ID,
		SKU:      p.SKU,
		Name:     p.Name,
		Price:    p.Price.StringFixed(moneyPlaces),
		IsActive: p.IsActive,
	}
	if withStock {
		stock, minLevel, low := p.StockQuantity, p.MinStockLevel, p.LowStock()
		resp.StockQuantity = &stock
		resp.MinStockLevel = &minLevel
		resp.LowStock = &low
	}
	return resp
}

type LedgerEntryResponse struct {
	ID            int64                  `json:"id"`
	ProductID     int64                  `json:"product_id"`
	Type          domain.TransactionType `json:"transaction_type"`
	Quantity      int                    `json:"quantity"`
	Delta         int                    `json:"delta"`
	ReferenceType string                 `json:"reference_type"`
	ReferenceID   *int64                 `json:"reference_id"`
	Notes         string                 `json:"notes"`
	CreatedBy     int64                  `json:"created_by"`
	CreatedAt     time.Time              `json:"created_at"`
}

func newLedgerResponse(entries []domain.InventoryTransaction) []LedgerEntryResponse {
	out := make([]LedgerEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, LedgerEntryResponse{
			ID:            e.ID,
			ProductID:     e.ProductID,
			Type:          e.Type,
			Quantity:      e.Quantity,
			Delta:         e.Delta(),
			ReferenceType: e.ReferenceType,
			ReferenceID:   e.ReferenceID,
			Notes:         e.Notes,
			CreatedBy:     e.CreatedBy,
			CreatedAt:     e.CreatedAt,
		})
	}
	return out
}

type StockShortage struct {
	ProductID int64  `json:"product_id"`
	SKU       string `json:"sku"`
	Available int    `json:"available"`
	Requested int    `json:"requested"`
}
