package schema

// CurrentVersion is the schema version this build writes.
const CurrentVersion = 1

const createMetaTable = `CREATE TABLE IF NOT EXISTS schema_meta (
	id SMALLINT PRIMARY KEY CHECK (id = 1),
	version INTEGER NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const selectVersion = `SELECT version FROM schema_meta WHERE id = 1`

const upsertVersion = `INSERT INTO schema_meta (id, version, updated_at)
VALUES (1, $1, NOW())
ON CONFLICT (id) DO UPDATE SET version = EXCLUDED.version, updated_at = EXCLUDED.updated_at`

// createStatements builds the ledger tables. Every statement is idempotent.
var createStatements = []string{
	`CREATE TABLE IF NOT EXISTS bills (
	id BIGSERIAL PRIMARY KEY,
	bill_no BIGINT NOT NULL,
	"date" TEXT NOT NULL,
	"time" TEXT NOT NULL,
	total BIGINT NOT NULL CHECK (total >= 0),
	cash BIGINT NOT NULL CHECK (cash >= 0),
	balance BIGINT NOT NULL,
	CONSTRAINT bills_balance_derived CHECK (balance = cash - total)
)`,
	`CREATE TABLE IF NOT EXISTS bill_items (
	id BIGSERIAL PRIMARY KEY,
	bill_id BIGINT NOT NULL REFERENCES bills(id) ON DELETE CASCADE,
	item_name TEXT NOT NULL,
	qty INTEGER NOT NULL CHECK (qty > 0),
	price BIGINT NOT NULL CHECK (price >= 0),
	line_total BIGINT NOT NULL,
	CONSTRAINT bill_items_line_total_derived CHECK (line_total = qty * price)
)`,
	`CREATE INDEX IF NOT EXISTS idx_bills_date ON bills ("date")`,
	`CREATE INDEX IF NOT EXISTS idx_bill_items_bill_id ON bill_items (bill_id)`,
	`CREATE INDEX IF NOT EXISTS idx_bill_items_item_name ON bill_items (item_name)`,
}

// dropStatements removes the ledger tables, children first.
var dropStatements = []string{
	`DROP TABLE IF EXISTS bill_items`,
	`DROP TABLE IF EXISTS bills`,
}
