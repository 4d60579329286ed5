package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// changeChannel é o canal LISTEN/NOTIFY usado pelos triggers do schema
const changeChannel = "inventory_changes"

// schemaSQL é idempotente; roda a cada inicialização do serviço
var schemaSQL = `
CREATE TABLE IF NOT EXISTS items (
	barcode        TEXT PRIMARY KEY,
	name           TEXT NOT NULL,
	category       TEXT NOT NULL,
	quantity       INTEGER NOT NULL CHECK (quantity >= 0),
	original_stock INTEGER NOT NULL CHECK (original_stock >= 0),
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS transactions (
	id           TEXT PRIMARY KEY,
	barcode      TEXT NOT NULL,
	action       TEXT NOT NULL CHECK (action IN ('ADD', 'DEDUCT', 'VIEW')),
	quantity     INTEGER NOT NULL CHECK (quantity >= 0),
	timestamp_ms BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_timestamp ON transactions (timestamp_ms DESC, id DESC);

CREATE TABLE IF NOT EXISTS scanner_mode (
	id       SMALLINT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
	mode     TEXT NOT NULL,
	quantity INTEGER NOT NULL CHECK (quantity >= 1)
);

INSERT INTO scanner_mode (id, mode, quantity) VALUES (1, 'DECREMENT', 1)
ON CONFLICT (id) DO NOTHING;

CREATE TABLE IF NOT EXISTS scan_requests (
	request_id TEXT PRIMARY KEY,
	result     JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE OR REPLACE FUNCTION notify_inventory_change() RETURNS trigger AS $$
DECLARE
	changed JSONB;
BEGIN
	IF TG_OP = 'DELETE' THEN
		changed := to_jsonb(OLD);
	ELSE
		changed := to_jsonb(NEW);
	END IF;
	PERFORM pg_notify('` + changeChannel + `', json_build_object(
		'namespace', TG_ARGV[0],
		'op', TG_OP,
		'key', changed ->> TG_ARGV[1]
	)::text);
	RETURN NULL;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS items_notify ON items;
CREATE TRIGGER items_notify
	AFTER INSERT OR UPDATE OR DELETE ON items
	FOR EACH ROW EXECUTE FUNCTION notify_inventory_change('items', 'barcode');

DROP TRIGGER IF EXISTS transactions_notify ON transactions;
CREATE TRIGGER transactions_notify
	AFTER INSERT ON transactions
	FOR EACH ROW EXECUTE FUNCTION notify_inventory_change('transactions', 'id');

DROP TRIGGER IF EXISTS scanner_mode_notify ON scanner_mode;
CREATE TRIGGER scanner_mode_notify
	AFTER INSERT OR UPDATE ON scanner_mode
	FOR EACH ROW EXECUTE FUNCTION notify_inventory_change('scannerMode', 'id');
`

// migrate aplica o schema do inventário
func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
