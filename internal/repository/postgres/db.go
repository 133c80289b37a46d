package postgres

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"
)

func InitDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := migrateDB(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	slog.Info("Database connected and migrated")
	return db, nil
}

func migrateDB(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS products (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			image_url TEXT NOT NULL DEFAULT '',
			is_active BOOLEAN NOT NULL DEFAULT TRUE
		);

		CREATE TABLE IF NOT EXISTS product_variants (
			id TEXT PRIMARY KEY,
			product_id TEXT NOT NULL REFERENCES products(id),
			name TEXT NOT NULL,
			sku TEXT NOT NULL UNIQUE,
			price NUMERIC(12,2) NOT NULL DEFAULT 0,
			stock_quantity INT NOT NULL DEFAULT 0 CHECK (stock_quantity >= 0),
			is_active BOOLEAN NOT NULL DEFAULT TRUE
		);

		CREATE TABLE IF NOT EXISTS carts (
			id TEXT PRIMARY KEY,
			user_id TEXT,
			guest_session_id TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CHECK ((user_id IS NULL) <> (guest_session_id IS NULL))
		);
		CREATE UNIQUE INDEX IF NOT EXISTS carts_user_id_idx ON carts (user_id) WHERE user_id IS NOT NULL;
		CREATE UNIQUE INDEX IF NOT EXISTS carts_guest_session_id_idx ON carts (guest_session_id) WHERE guest_session_id IS NOT NULL;

		CREATE TABLE IF NOT EXISTS cart_items (
			id SERIAL PRIMARY KEY,
			cart_id TEXT NOT NULL REFERENCES carts(id) ON DELETE CASCADE,
			product_id TEXT NOT NULL,
			variant_id TEXT NOT NULL,
			quantity INT NOT NULL CHECK (quantity >= 1),
			unit_price NUMERIC(12,2) NOT NULL DEFAULT 0,
			UNIQUE (cart_id, variant_id)
		);

		CREATE TABLE IF NOT EXISTS orders (
			id TEXT PRIMARY KEY,
			number TEXT NOT NULL UNIQUE,
			user_id TEXT,
			guest_session_id TEXT,
			customer_email TEXT NOT NULL,
			customer_phone TEXT NOT NULL DEFAULT '',
			ship_line1 TEXT NOT NULL,
			ship_line2 TEXT NOT NULL DEFAULT '',
			ship_city TEXT NOT NULL,
			ship_region TEXT NOT NULL DEFAULT '',
			ship_postal_code TEXT NOT NULL,
			ship_country TEXT NOT NULL,
			shipping_method TEXT NOT NULL,
			subtotal NUMERIC(12,2) NOT NULL DEFAULT 0,
			shipping_cost NUMERIC(12,2) NOT NULL DEFAULT 0,
			tax_amount NUMERIC(12,2) NOT NULL DEFAULT 0,
			discount_amount NUMERIC(12,2) NOT NULL DEFAULT 0,
			total NUMERIC(12,2) NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'pending',
			cancelled_at TIMESTAMPTZ,
			cancellation_reason TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CHECK ((user_id IS NULL) <> (guest_session_id IS NULL))
		);

		CREATE TABLE IF NOT EXISTS order_items (
			id SERIAL PRIMARY KEY,
			order_id TEXT NOT NULL REFERENCES orders(id),
			product_id TEXT NOT NULL,
			variant_id TEXT NOT NULL,
			product_name TEXT NOT NULL,
			variant_name TEXT NOT NULL,
			sku TEXT NOT NULL,
			quantity INT NOT NULL DEFAULT 1,
			unit_price NUMERIC(12,2) NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS order_events (
			id SERIAL PRIMARY KEY,
			order_id TEXT NOT NULL REFERENCES orders(id),
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	return err
}
