package storage

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		email VARCHAR(255) NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		full_name VARCHAR(255) NOT NULL,
		role ENUM('owner','admin','manager','sales','viewer') NOT NULL DEFAULT 'viewer',
		is_active TINYINT(1) NOT NULL DEFAULT 1,
		last_login_at DATETIME NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_users_email (email)
	)`,

	`CREATE TABLE IF NOT EXISTS customers (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		company_name VARCHAR(255) NOT NULL,
		contact_name VARCHAR(255) NULL,
		email VARCHAR(255) NULL,
		phone VARCHAR(50) NULL,
		address VARCHAR(1000) NULL,
		credit_limit DECIMAL(14,2) NOT NULL DEFAULT 0,
		payment_terms VARCHAR(100) NULL,
		is_active TINYINT(1) NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS products (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		sku VARCHAR(64) NOT NULL,
		name VARCHAR(255) NOT NULL,
		price DECIMAL(12,2) NOT NULL,
		stock_quantity INT NOT NULL DEFAULT 0,
		min_stock_level INT NOT NULL DEFAULT 0,
		is_active TINYINT(1) NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_products_sku (sku),
		CONSTRAINT chk_products_stock CHECK (stock_quantity >= 0)
	)`,

	`CREATE TABLE IF NOT EXISTS orders (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		order_number VARCHAR(32) NOT NULL,
		customer_id BIGINT NOT NULL,
		created_by BIGINT NOT NULL,
		status ENUM('pending','confirmed','processing','shipped','delivered','cancelled') NOT NULL DEFAULT 'pending',
		order_date DATETIME NOT NULL,
		required_date DATE NULL,
		shipped_at DATETIME NULL,
		subtotal DECIMAL(14,2) NOT NULL,
		tax_amount DECIMAL(14,2) NOT NULL,
		shipping_amount DECIMAL(14,2) NOT NULL DEFAULT 0,
		discount_amount DECIMAL(14,2) NOT NULL DEFAULT 0,
		total_amount DECIMAL(14,2) NOT NULL,
		shipping_address JSON NULL,
		billing_address JSON NULL,
		payment_method VARCHAR(50) NOT NULL DEFAULT '',
		notes VARCHAR(2000) NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		UNIQUE KEY uq_orders_order_number (order_number),
		KEY idx_orders_customer_id (customer_id),
		KEY idx_orders_status (status),
		CONSTRAINT fk_orders_customer FOREIGN KEY (customer_id) REFERENCES customers (id),
		CONSTRAINT fk_orders_user FOREIGN KEY (created_by) REFERENCES users (id)
	)`,

	`CREATE TABLE IF NOT EXISTS order_items (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		order_id BIGINT NOT NULL,
		product_id BIGINT NOT NULL,
		quantity INT NOT NULL,
		unit_price DECIMAL(12,2) NOT NULL,
		total_price DECIMAL(14,2) NOT NULL,
		KEY idx_order_items_order_id (order_id),
		CONSTRAINT fk_order_items_order FOREIGN KEY (order_id) REFERENCES orders (id),
		CONSTRAINT fk_order_items_product FOREIGN KEY (product_id) REFERENCES products (id)
	)`,

	`CREATE TABLE IF NOT EXISTS inventory_transactions (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		product_id BIGINT NOT NULL,
		transaction_type ENUM('in','out','adjustment') NOT NULL,
		quantity INT NOT NULL,
		reference_type VARCHAR(32) NOT NULL,
		reference_id BIGINT NULL,
		notes VARCHAR(500) NULL,
		created_by BIGINT NOT NULL,
		created_at DATETIME NOT NULL,
		KEY idx_inventory_transactions_product (product_id, id),
		CONSTRAINT fk_inventory_transactions_product FOREIGN KEY (product_id) REFERENCES products (id)
	)`,
}

// EnsureSchema creates any missing table. Existing tables are left as they are.
func (m *MySQLAdapter) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
