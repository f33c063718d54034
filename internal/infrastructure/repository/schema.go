package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Schema creates the event log and the asset and reservation tables.
// Asset and reservation ids are TEXT so a malformed id is simply not found.
const Schema = `
CREATE TABLE IF NOT EXISTS events (
	id UUID PRIMARY KEY,
	aggregate_id TEXT NOT NULL,
	aggregate_type TEXT NOT NULL,
	event_type TEXT NOT NULL,
	data JSONB NOT NULL,
	version INT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (aggregate_id, version)
);

CREATE TABLE IF NOT EXISTS assets (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	category_id TEXT NOT NULL DEFAULT '',
	stock_quantity INT NOT NULL CHECK (stock_quantity >= 0),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS reservations (
	id TEXT PRIMARY KEY,
	customer_id TEXT NOT NULL,
	status TEXT NOT NULL,
	checkout_date TIMESTAMPTZ NOT NULL,
	return_date TIMESTAMPTZ NOT NULL,
	actual_checkout_date TIMESTAMPTZ,
	actual_return_date TIMESTAMPTZ,
	notes TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	validated_at TIMESTAMPTZ,
	cancelled_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS reservation_items (
	reservation_id TEXT NOT NULL REFERENCES reservations(id) ON DELETE CASCADE,
	asset_id TEXT NOT NULL REFERENCES assets(id),
	quantity_reserved INT NOT NULL CHECK (quantity_reserved > 0),
	quantity_checked_out INT NOT NULL DEFAULT 0,
	quantity_returned INT NOT NULL DEFAULT 0,
	quantity_damaged INT NOT NULL DEFAULT 0,
	notes TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (reservation_id, asset_id)
);

CREATE INDEX IF NOT EXISTS idx_reservation_items_asset ON reservation_items (asset_id);
`

// Migrate applies Schema
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
