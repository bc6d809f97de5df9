package postgres

import "context"

// schemaStatements is the full DDL, ordered so foreign keys resolve. The
// owner-scoped unique index on (owner_id, serial_number) is what keeps serial
// numbers unique per owner rather than globally.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		email         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS profiles (
		user_id    TEXT PRIMARY KEY REFERENCES users(id),
		owner_name TEXT NOT NULL DEFAULT '',
		mobile     TEXT NOT NULL DEFAULT '',
		shop_name  TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS sellers (
		id            TEXT PRIMARY KEY,
		owner_id      TEXT NOT NULL REFERENCES users(id),
		name          TEXT NOT NULL,
		mobile        TEXT,
		serial_number TEXT NOT NULL,
		address       TEXT,
		date          DATE NOT NULL,
		amount_cents  BIGINT NOT NULL DEFAULT 0,
		weight_grams  BIGINT NOT NULL DEFAULT 0,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS sellers_owner_serial_idx ON sellers (owner_id, serial_number)`,
	`CREATE TABLE IF NOT EXISTS seller_transactions (
		id                     TEXT PRIMARY KEY,
		seller_id              TEXT NOT NULL REFERENCES sellers(id),
		transaction_date       DATE NOT NULL,
		amount_added_cents     BIGINT NOT NULL,
		grams_added            BIGINT NOT NULL,
		previous_amount_cents  BIGINT NOT NULL,
		previous_grams         BIGINT NOT NULL,
		new_total_amount_cents BIGINT NOT NULL,
		new_total_grams        BIGINT NOT NULL,
		flower_name            TEXT,
		less_grams             BIGINT NOT NULL DEFAULT 0,
		salesman_name          TEXT,
		salesman_mobile        TEXT,
		salesman_address       TEXT,
		created_at             TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS seller_transactions_seller_date_idx ON seller_transactions (seller_id, transaction_date)`,
	`CREATE TABLE IF NOT EXISTS sold_to_transactions (
		id                     TEXT PRIMARY KEY,
		seller_id              TEXT NOT NULL REFERENCES sellers(id),
		customer_name          TEXT NOT NULL,
		customer_mobile        TEXT,
		sale_date              DATE NOT NULL,
		grams_sold             BIGINT NOT NULL,
		amount_sold_cents      BIGINT NOT NULL,
		previous_grams         BIGINT NOT NULL,
		previous_amount_cents  BIGINT NOT NULL,
		remaining_grams        BIGINT NOT NULL,
		remaining_amount_cents BIGINT NOT NULL,
		notes                  TEXT,
		created_at             TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS sold_to_transactions_seller_idx ON sold_to_transactions (seller_id, sale_date)`,
	`CREATE TABLE IF NOT EXISTS sale_to_contacts (
		seller_id  TEXT PRIMARY KEY REFERENCES sellers(id),
		name       TEXT NOT NULL,
		mobile     TEXT,
		address    TEXT,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS payments (
		id               TEXT PRIMARY KEY,
		seller_id        TEXT NOT NULL REFERENCES sellers(id),
		paid_at          TIMESTAMPTZ NOT NULL,
		from_date        DATE NOT NULL,
		to_date          DATE NOT NULL,
		amount_cents     BIGINT NOT NULL,
		cleared_grams    BIGINT NOT NULL,
		commission_cents BIGINT NOT NULL DEFAULT 0,
		advance_cents    BIGINT NOT NULL DEFAULT 0,
		notes            TEXT,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS payments_seller_idx ON payments (seller_id, paid_at)`,
	`CREATE TABLE IF NOT EXISTS payment_allocations (
		payment_id   TEXT NOT NULL REFERENCES payments(id),
		purchase_id  TEXT NOT NULL REFERENCES seller_transactions(id),
		grams        BIGINT NOT NULL,
		amount_cents BIGINT NOT NULL,
		PRIMARY KEY (payment_id, purchase_id)
	)`,
}

// dropStatements tear the schema down in reverse dependency order.
var dropStatements = []string{
	`DROP TABLE IF EXISTS payment_allocations`,
	`DROP TABLE IF EXISTS payments`,
	`DROP TABLE IF EXISTS sale_to_contacts`,
	`DROP TABLE IF EXISTS sold_to_transactions`,
	`DROP TABLE IF EXISTS seller_transactions`,
	`DROP TABLE IF EXISTS sellers`,
	`DROP TABLE IF EXISTS profiles`,
	`DROP TABLE IF EXISTS users`,
}

// Migrate applies the schema. Safe to run repeatedly at deploy time.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// DropAll removes every table. Only the migration tool calls this, behind an
// explicit flag.
func (s *Store) DropAll(ctx context.Context) error {
	for _, stmt := range dropStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
