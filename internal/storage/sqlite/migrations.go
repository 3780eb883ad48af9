package sqlite

import "database/sql"

// schema contains the SQL statements to set up the database schema.
// These run on startup to ensure tables exist.
// Amounts are INTEGER (int64); participants are uuid strings.
const schema = `
CREATE TABLE IF NOT EXISTS payments (
    idx INTEGER PRIMARY KEY,
    creator TEXT NOT NULL,
    receiver TEXT NOT NULL,
    value INTEGER NOT NULL CHECK (value >= 0),
    start_time INTEGER NOT NULL,
    duration INTEGER NOT NULL CHECK (duration > 0),
    paid_to_date INTEGER NOT NULL CHECK (paid_to_date >= 0 AND paid_to_date <= value),
    vest_base INTEGER NOT NULL DEFAULT 0,
    vest_from INTEGER NOT NULL,
    is_fork INTEGER NOT NULL DEFAULT 0,
    parent_idx INTEGER,
    FOREIGN KEY (parent_idx) REFERENCES payments(idx)
);

CREATE TABLE IF NOT EXISTS payment_children (
    parent_idx INTEGER NOT NULL,
    position INTEGER NOT NULL,
    child_idx INTEGER NOT NULL UNIQUE,
    PRIMARY KEY (parent_idx, position),
    FOREIGN KEY (parent_idx) REFERENCES payments(idx),
    FOREIGN KEY (child_idx) REFERENCES payments(idx)
);

CREATE TABLE IF NOT EXISTS balances (
    participant TEXT PRIMARY KEY,
    amount INTEGER NOT NULL CHECK (amount >= 0)
);

CREATE TABLE IF NOT EXISTS delegations (
    owner TEXT NOT NULL,
    delegate TEXT NOT NULL,
    can_fork INTEGER NOT NULL DEFAULT 0,
    can_settle INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (owner, delegate)
);

CREATE TABLE IF NOT EXISTS events (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    kind TEXT NOT NULL,
    payment_idx INTEGER NOT NULL,
    participant TEXT NOT NULL,
    counterparty TEXT NOT NULL,
    amount INTEGER NOT NULL,
    at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_payments_receiver ON payments(receiver);
CREATE INDEX IF NOT EXISTS idx_events_payment_idx ON events(payment_idx);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
