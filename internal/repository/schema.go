package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema creates the order log tables. Statements are idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS orders (
	id             TEXT PRIMARY KEY,
	requester      TEXT NOT NULL DEFAULT '',
	base_status    TEXT NOT NULL,
	current_status TEXT NOT NULL,
	assigned_to    TEXT,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS orders_current_status_idx ON orders (current_status);
CREATE INDEX IF NOT EXISTS orders_assigned_to_idx ON orders (assigned_to) WHERE assigned_to IS NOT NULL;

CREATE TABLE IF NOT EXISTS order_status_history (
	seq      BIGSERIAL PRIMARY KEY,
	order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
	actor    TEXT NOT NULL,
	status   TEXT NOT NULL,
	kind     TEXT NOT NULL,
	at       TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS order_status_history_order_idx ON order_status_history (order_id, seq);
`

// Migrate applies Schema.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
