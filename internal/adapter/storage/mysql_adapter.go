package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/rl1809/factory-orders/internal/core/domain"
	"github.com/rl1809/factory-orders/internal/port"
)

const mysqlDuplicateEntry = 1062

var ErrDuplicateKey = errors.New("duplicate key")

type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// OpenMySQL opens a pool for dsn with parseTime forced on, since every
// timestamp column is scanned into time.Time.
func OpenMySQL(ctx context.Context, dsn string, pool PoolConfig) (*sql.DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("mysql connector: %w", err)
	}

	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return db, nil
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) RunInTx(ctx context.Context, fn func(tx port.Transaction) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&mysqlTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) Ping(ctx context.Context) error {
	return m.db.PingContext(ctx)
}

func (m *MySQLAdapter) GetProduct(ctx context.Context, productID int64) (*domain.Product, error) {
	return getProduct(ctx, m.db, productID)
}

func (m *MySQLAdapter) GetOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	var (
		o            domain.Order
		customerName sql.NullString
		createdBy    sql.NullString
		requiredDate sql.NullTime
		shippedAt    sql.NullTime
		shipping     []byte
		billing      []byte
	)
	err := m.db.QueryRowContext(ctx, `
		SELECT o.id, o.order_number, o.customer_id, c.company_name, o.created_by, u.full_name,
		       o.status, o.order_date, o.required_date, o.shipped_at,
		       o.subtotal, o.tax_amount, o.shipping_amount, o.discount_amount, o.total_amount,
		       o.shipping_address, o.billing_address, o.payment_method, o.notes,
		       o.created_at, o.updated_at
		FROM orders o
		LEFT JOIN customers c ON c.id = o.customer_id
		LEFT JOIN users u ON u.id = o.created_by
		WHERE o.id = ?`, orderID,
	).Scan(
		&o.ID, &o.OrderNumber, &o.CustomerID, &customerName, &o.CreatedBy, &createdBy,
		&o.Status, &o.OrderDate, &requiredDate, &shippedAt,
		&o.Subtotal, &o.TaxAmount, &o.ShippingAmount, &o.DiscountAmount, &o.TotalAmount,
		&shipping, &billing, &o.PaymentMethod, &o.Notes,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}

	o.CustomerName = customerName.String
	o.CreatedByName = createdBy.String
	o.RequiredDate = timePtr(requiredDate)
	o.ShippedAt = timePtr(shippedAt)
	o.ShippingAddress = shipping
	o.BillingAddress = billing

	items, err := m.orderItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return &o, nil
}

func (m *MySQLAdapter) orderItems(ctx context.Context, orderID int64) ([]domain.OrderItem, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT oi.id, oi.order_id, oi.product_id, COALESCE(p.sku, ''), COALESCE(p.name, ''),
		       oi.quantity, oi.unit_price, oi.total_price
		FROM order_items oi
		LEFT JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = ?
		ORDER BY oi.id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	items := []domain.OrderItem{}
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductSKU, &it.ProductName,
			&it.Quantity, &it.UnitPrice, &it.TotalPrice); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}
	return items, nil
}

func (m *MySQLAdapter) UpdateOrderStatus(ctx context.Context, orderID int64, status domain.OrderStatus, shippedAt *time.Time) error {
	_, err := m.db.ExecContext(ctx, `
		UPDATE orders
		SET status = ?, shipped_at = ?, updated_at = NOW()
		WHERE id = ?`,
		status, shippedAt, orderID,
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) GetUserByID(ctx context.Context, userID int64) (*domain.User, error) {
	return m.getUser(ctx, `WHERE id = ?`, userID)
}

func (m *MySQLAdapter) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return m.getUser(ctx, `WHERE email = ?`, email)
}

func (m *MySQLAdapter) getUser(ctx context.Context, where string, arg any) (*domain.User, error) {
	var (
		u         domain.User
		lastLogin sql.NullTime
	)
	err := m.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, full_name, role, is_active, last_login_at, created_at
		FROM users `+where, arg,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.Role, &u.IsActive, &lastLogin, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	u.LastLoginAt = timePtr(lastLogin)
	return &u, nil
}

func (m *MySQLAdapter) CreateUser(ctx context.Context, u domain.User) (int64, error) {
	result, err := m.db.ExecContext(ctx, `
		INSERT INTO users (email, password_hash, full_name, role, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		u.Email, u.PasswordHash, u.FullName, u.Role, u.IsActive, u.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert user: %w", classify(err))
	}
	return result.LastInsertId()
}

func (m *MySQLAdapter) TouchLastLogin(ctx context.Context, userID int64) error {
	_, err := m.db.ExecContext(ctx, `UPDATE users SET last_login_at = NOW() WHERE id = ?`, userID)
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) ListInventoryTransactions(ctx context.Context, productID int64, limit int) ([]domain.InventoryTransaction, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, product_id, transaction_type, quantity, reference_type, reference_id,
		       COALESCE(notes, ''), created_by, created_at
		FROM inventory_transactions
		WHERE product_id = ?
		ORDER BY id DESC
		LIMIT ?`, productID, limit)
	if err != nil {
		return nil, fmt.Errorf("query inventory transactions: %w", err)
	}
	defer rows.Close()

	entries := []domain.InventoryTransaction{}
	for rows.Next() {
		var (
			e     domain.InventoryTransaction
			refID sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &e.ProductID, &e.Type, &e.Quantity, &e.ReferenceType, &refID,
			&e.Notes, &e.CreatedBy, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan inventory transaction: %w", err)
		}
		if refID.Valid {
			e.ReferenceID = &refID.Int64
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate inventory transactions: %w", err)
	}
	return entries, nil
}

type mysqlTx struct {
	tx *sql.Tx
}

func (t *mysqlTx) GetCustomer(ctx context.Context, customerID int64) (*domain.Customer, error) {
	var c domain.Customer
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, company_name, COALESCE(contact_name, ''), COALESCE(email, ''), COALESCE(phone, ''),
		       COALESCE(address, ''), credit_limit, COALESCE(payment_terms, ''), is_active, created_at
		FROM customers WHERE id = ?`, customerID,
	).Scan(&c.ID, &c.CompanyName, &c.ContactName, &c.Email, &c.Phone,
		&c.Address, &c.CreditLimit, &c.PaymentTerms, &c.IsActive, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query customer: %w", err)
	}
	return &c, nil
}

func (t *mysqlTx) GetProduct(ctx context.Context, productID int64) (*domain.Product, error) {
	return getProduct(ctx, t.tx, productID)
}

func (t *mysqlTx) InsertOrder(ctx context.Context, o domain.Order) (int64, error) {
	result, err := t.tx.ExecContext(ctx, `
		INSERT INTO orders (order_number, customer_id, created_by, status, order_date, required_date,
		                    subtotal, tax_amount, shipping_amount, discount_amount, total_amount,
		                    shipping_address, billing_address, payment_method, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.OrderNumber, o.CustomerID, o.CreatedBy, o.Status, o.OrderDate, o.RequiredDate,
		o.Subtotal, o.TaxAmount, o.ShippingAmount, o.DiscountAmount, o.TotalAmount,
		jsonArg(o.ShippingAddress), jsonArg(o.BillingAddress), o.PaymentMethod, o.Notes,
		o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert order: %w", classify(err))
	}
	return result.LastInsertId()
}

func (t *mysqlTx) InsertOrderItem(ctx context.Context, it domain.OrderItem) (int64, error) {
	result, err := t.tx.ExecContext(ctx, `
		INSERT INTO order_items (order_id, product_id, quantity, unit_price, total_price)
		VALUES (?, ?, ?, ?, ?)`,
		it.OrderID, it.ProductID, it.Quantity, it.UnitPrice, it.TotalPrice,
	)
	if err != nil {
		return 0, fmt.Errorf("insert order item: %w", err)
	}
	return result.LastInsertId()
}

func (t *mysqlTx) DecrementStock(ctx context.Context, productID int64, quantity int) (bool, error) {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE products
		SET stock_quantity = stock_quantity - ?, updated_at = NOW()
		WHERE id = ? AND is_active = 1 AND stock_quantity >= ?`,
		quantity, productID, quantity,
	)
	if err != nil {
		return false, fmt.Errorf("decrement stock: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return rows == 1, nil
}

func (t *mysqlTx) AdjustStock(ctx context.Context, productID int64, delta int) (bool, error) {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE products
		SET stock_quantity = stock_quantity + ?, updated_at = NOW()
		WHERE id = ? AND stock_quantity + ? >= 0`,
		delta, productID, delta,
	)
	if err != nil {
		return false, fmt.Errorf("adjust stock: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return rows == 1, nil
}

func (t *mysqlTx) InsertInventoryTransaction(ctx context.Context, e domain.InventoryTransaction) (int64, error) {
	result, err := t.tx.ExecContext(ctx, `
		INSERT INTO inventory_transactions (product_id, transaction_type, quantity, reference_type,
		                                    reference_id, notes, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ProductID, e.Type, e.Quantity, e.ReferenceType, e.ReferenceID, e.Notes, e.CreatedBy, e.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert inventory transaction: %w", err)
	}
	return result.LastInsertId()
}

func getProduct(ctx context.Context, q queryer, productID int64) (*domain.Product, error) {
	var p domain.Product
	err := q.QueryRowContext(ctx, `
		SELECT id, sku, name, price, stock_quantity, min_stock_level, is_active, created_at, updated_at
		FROM products WHERE id = ?`, productID,
	).Scan(&p.ID, &p.SKU, &p.Name, &p.Price, &p.StockQuantity, &p.MinStockLevel, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	return &p, nil
}

// classify maps driver errors the service layer can act on.
func classify(err error) error {
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
		return fmt.Errorf("%w: %s", ErrDuplicateKey, me.Message)
	}
	return err
}

func jsonArg(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}
