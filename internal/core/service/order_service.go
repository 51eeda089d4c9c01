package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/factory-orders/internal/core/domain"
	"github.com/rl1809/factory-orders/internal/port"
)

const dateLayout = "2006-01-02"

var DefaultTaxRate = decimal.RequireFromString("0.08")

// maxOrderAmount is the largest value the DECIMAL(14,2) order columns hold.
var maxOrderAmount = decimal.RequireFromString("999999999999.99")

type OrderItemInput struct {
	ProductID int64            `json:"product_id" validate:"required,gt=0"`
	Quantity  int              `json:"quantity" validate:"required,gt=0"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty" validate:"omitempty,gte=0,lte=9999999999.99"`
}

type CreateOrderInput struct {
	CustomerID      int64            `json:"customer_id" validate:"required,gt=0"`
	Items           []OrderItemInput `json:"items" validate:"required,min=1,max=200,dive"`
	RequiredDate    *string          `json:"required_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	ShippingAddress json.RawMessage  `json:"shipping_address,omitempty"`
	BillingAddress  json.RawMessage  `json:"billing_address,omitempty"`
	Notes           string           `json:"notes,omitempty" validate:"max=2000"`
	PaymentMethod   string           `json:"payment_method,omitempty" validate:"max=50"`
	DiscountAmount  decimal.Decimal  `json:"discount_amount" validate:"gte=0,lte=999999999999.99"`
	ShippingAmount  decimal.Decimal  `json:"shipping_amount" validate:"gte=0,lte=999999999999.99"`
	TaxRate         *decimal.Decimal `json:"tax_rate,omitempty" validate:"omitempty,gte=0,lte=1"`
}

func (in CreateOrderInput) Validate() error {
	err := validateStruct(in)
	if !objectOrEmpty(in.ShippingAddress) {
		err = appendFieldError(err, "shipping_address", "must be a JSON object")
	}
	if !objectOrEmpty(in.BillingAddress) {
		err = appendFieldError(err, "billing_address", "must be a JSON object")
	}
	return err
}

type UpdateOrderStatusInput struct {
	Status domain.OrderStatus `json:"status" validate:"required,oneof=pending confirmed processing shipped delivered cancelled"`
}

type OrderServiceConfig struct {
	DefaultTaxRate    decimal.NullDecimal
	IdempotencyTTL    time.Duration
	OrderNumberPrefix string
}

type OrderService struct {
	db             port.DatabaseRepository
	cache          port.CacheRepository
	numbers        *OrderNumberGenerator
	taxRate        decimal.Decimal
	idempotencyTTL time.Duration
	logger         *slog.Logger
	now            func() time.Time
}

// NewOrderService wires the order engine. cache may be nil, which disables
// idempotency keys and order number reservation.
func NewOrderService(db port.DatabaseRepository, cache port.CacheRepository, cfg OrderServiceConfig, logger *slog.Logger) *OrderService {
	taxRate := DefaultTaxRate
	if cfg.DefaultTaxRate.Valid {
		taxRate = cfg.DefaultTaxRate.Decimal
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = 24 * time.Hour
	}
	if cfg.OrderNumberPrefix == "" {
		cfg.OrderNumberPrefix = "ORD"
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &OrderService{
		db:             db,
		cache:          cache,
		numbers:        NewOrderNumberGenerator(cfg.OrderNumberPrefix, cache),
		taxRate:        taxRate,
		idempotencyTTL: cfg.IdempotencyTTL,
		logger:         logger,
		now:            time.Now,
	}
}

// CreateOrder validates the cart against current stock and pricing and
// persists the order, its items, the stock decrements and the ledger entries
// in one transaction. Any failure rolls everything back.
func (s *OrderService) CreateOrder(ctx context.Context, actor domain.Identity, in CreateOrderInput, idempotencyKey string) (_ *domain.Order, err error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var committed bool
	if idempotencyKey != "" && s.cache != nil {
		key := fmt.Sprintf("idempotency:order:%d:%s", actor.ID, idempotencyKey)
		ok, cacheErr := s.cache.SetIdempotency(ctx, key, s.idempotencyTTL)
		if cacheErr != nil {
			return nil, fmt.Errorf("idempotency check failed: %w", cacheErr)
		}
		if !ok {
			return nil, domain.ErrDuplicateRequest
		}
		defer func() {
			// Once committed the order exists, so the key must stay reserved.
			if err == nil || committed {
				return
			}
			if releaseErr := s.cache.ReleaseIdempotency(context.WithoutCancel(ctx), key); releaseErr != nil {
				s.logger.Error("release idempotency key", "key", key, "error", releaseErr)
			}
		}()
	}

	number, err := s.numbers.Next(ctx)
	if err != nil {
		return nil, err
	}

	var orderID int64
	err = s.db.RunInTx(ctx, func(tx port.Transaction) error {
		id, err := s.placeOrder(ctx, tx, actor, in, number)
		orderID = id
		return err
	})
	if err != nil {
		s.logger.Warn("order creation rolled back",
			"order_number", number,
			"customer_id", in.CustomerID,
			"user_id", actor.ID,
			"error", err,
		)
		return nil, err
	}
	committed = true

	order, err := s.db.GetOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order %d: %w", orderID, err)
	}
	if order == nil {
		return nil, fmt.Errorf("load order %d: %w", orderID, domain.ErrNotFound)
	}

	s.logger.Info("order created",
		"order_id", order.ID,
		"order_number", order.OrderNumber,
		"customer_id", order.CustomerID,
		"user_id", actor.ID,
		"items", len(order.Items),
		"total", order.TotalAmount.StringFixed(moneyPlaces),
	)
	return order, nil
}

func (s *OrderService) placeOrder(ctx context.Context, tx port.Transaction, actor domain.Identity, in CreateOrderInput, number string) (int64, error) {
	customer, err := tx.GetCustomer(ctx, in.CustomerID)
	if err != nil {
		return 0, fmt.Errorf("get customer: %w", err)
	}
	if customer == nil || !customer.IsActive {
		return 0, fmt.Errorf("%w: customer %d not found or inactive", domain.ErrInvalidCustomer, in.CustomerID)
	}

	items := make([]domain.OrderItem, 0, len(in.Items))
	subtotal := decimal.Zero
	for _, line := range in.Items {
		product, err := s.reserveStock(ctx, tx, line)
		if err != nil {
			return 0, err
		}

		unitPrice := product.Price
		if line.UnitPrice != nil {
			unitPrice = line.UnitPrice.Round(moneyPlaces)
		}
		lineTotal := unitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
		subtotal = subtotal.Add(lineTotal)

		items = append(items, domain.OrderItem{
			ProductID:   product.ID,
			ProductSKU:  product.SKU,
			ProductName: product.Name,
			Quantity:    line.Quantity,
			UnitPrice:   unitPrice,
			TotalPrice:  lineTotal,
		})
	}

	taxRate := s.taxRate
	if in.TaxRate != nil {
		taxRate = *in.TaxRate
	}
	totals := ComputeTotals(subtotal, taxRate, in.ShippingAmount, in.DiscountAmount)
	if totals.Total.IsNegative() {
		return 0, domain.NewValidationError("discount_amount", "must not exceed the order value")
	}
	if totals.Subtotal.GreaterThan(maxOrderAmount) || totals.Total.GreaterThan(maxOrderAmount) {
		return 0, domain.NewValidationError("items", "order value must be at most "+maxOrderAmount.String())
	}

	requiredDate, err := parseDate(in.RequiredDate)
	if err != nil {
		return 0, err
	}

	now := s.now()
	orderID, err := tx.InsertOrder(ctx, domain.Order{
		OrderNumber:     number,
		CustomerID:      customer.ID,
		CreatedBy:       actor.ID,
		Status:          domain.OrderStatusPending,
		OrderDate:       now,
		RequiredDate:    requiredDate,
		Subtotal:        totals.Subtotal,
		TaxAmount:       totals.Tax,
		ShippingAmount:  totals.Shipping,
		DiscountAmount:  totals.Discount,
		TotalAmount:     totals.Total,
		ShippingAddress: nullIfEmpty(in.ShippingAddress),
		BillingAddress:  nullIfEmpty(in.BillingAddress),
		PaymentMethod:   in.PaymentMethod,
		Notes:           in.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if err != nil {
		return 0, fmt.Errorf("insert order: %w", err)
	}

	for i := range items {
		items[i].OrderID = orderID
		if _, err := tx.InsertOrderItem(ctx, items[i]); err != nil {
			return 0, fmt.Errorf("insert order item %d: %w", i, err)
		}
	}

	for _, item := range items {
		m := Movement{
			ProductID:     item.ProductID,
			Type:          domain.TransactionOut,
			Quantity:      item.Quantity,
			ReferenceType: domain.ReferenceSale,
			ReferenceID:   &orderID,
		}
		if err := RecordMovement(ctx, tx, m, actor, now); err != nil {
			return 0, err
		}
	}

	s.logger.Debug("order totals computed",
		"order_number", number,
		"subtotal", totals.Subtotal.StringFixed(moneyPlaces),
		"tax_rate", percent(taxRate),
		"tax", totals.Tax.StringFixed(moneyPlaces),
		"total", totals.Total.StringFixed(moneyPlaces),
	)
	return orderID, nil
}

// reserveStock checks the product and takes line.Quantity from its stock.
// The decrement is conditional so a concurrent order cannot oversell between
// the read and the write.
func (s *OrderService) reserveStock(ctx context.Context, tx port.Transaction, line OrderItemInput) (*domain.Product, error) {
	product, err := tx.GetProduct(ctx, line.ProductID)
	if err != nil {
		return nil, fmt.Errorf("get product %d: %w", line.ProductID, err)
	}
	if product == nil || !product.IsActive {
		return nil, &domain.ProductNotFoundError{ProductID: line.ProductID}
	}
	if product.StockQuantity < line.Quantity {
		return nil, &domain.InsufficientStockError{
			ProductID: product.ID,
			SKU:       product.SKU,
			Available: product.StockQuantity,
			Requested: line.Quantity,
		}
	}

	ok, err := tx.DecrementStock(ctx, product.ID, line.Quantity)
	if err != nil {
		return nil, fmt.Errorf("decrement stock for product %d: %w", product.ID, err)
	}
	if ok {
		return product, nil
	}

	current, err := tx.GetProduct(ctx, product.ID)
	if err != nil {
		return nil, fmt.Errorf("get product %d: %w", product.ID, err)
	}
	if current == nil || !current.IsActive {
		return nil, &domain.ProductNotFoundError{ProductID: product.ID}
	}
	return nil, &domain.InsufficientStockError{
		ProductID: current.ID,
		SKU:       current.SKU,
		Available: current.StockQuantity,
		Requested: line.Quantity,
	}
}

func (s *OrderService) GetOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	order, err := s.db.GetOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order %d: %w", orderID, err)
	}
	if order == nil {
		return nil, fmt.Errorf("order %d: %w", orderID, domain.ErrNotFound)
	}
	return order, nil
}

// UpdateOrderStatus sets any status from any status. Moving to shipped
// stamps the shipped-at time.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, actor domain.Identity, orderID int64, in UpdateOrderStatusInput) (*domain.Order, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	shippedAt := order.ShippedAt
	if in.Status == domain.OrderStatusShipped {
		now := s.now()
		shippedAt = &now
	}

	if err := s.db.UpdateOrderStatus(ctx, orderID, in.Status, shippedAt); err != nil {
		return nil, fmt.Errorf("update order %d status: %w", orderID, err)
	}

	s.logger.Info("order status changed",
		"order_id", orderID,
		"from", order.Status,
		"to", in.Status,
		"user_id", actor.ID,
	)
	return s.GetOrder(ctx, orderID)
}

func parseDate(value *string) (*time.Time, error) {
	if value == nil || *value == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, *value)
	if err != nil {
		return nil, domain.NewValidationError("required_date", "must be a date formatted as YYYY-MM-DD")
	}
	return &t, nil
}

func nullIfEmpty(raw json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	return trimmed
}
