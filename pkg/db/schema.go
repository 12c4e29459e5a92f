// Package db provides SQLite storage for the invoice export history.
package db

import "context"

// Schema defines the SQL statements to create database tables.
const Schema = `
-- Export history table
-- One row per invoice PDF handed out by the portal or the CLI
CREATE TABLE IF NOT EXISTS export_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    invoice_id TEXT NOT NULL,
    invoice_number TEXT NOT NULL,      -- may be empty
    user_email TEXT NOT NULL,          -- empty when the caller sent a bare token
    source TEXT NOT NULL,              -- 'portal' or 'cli'
    bytes INTEGER NOT NULL,
    exported_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_export_history_invoice
    ON export_history(invoice_id);

CREATE INDEX IF NOT EXISTS idx_export_history_exported_at
    ON export_history(exported_at);
`

// InitializeSchema creates all tables if they don't exist.
func InitializeSchema(ctx context.Context, conn *Connection) error {
	_, err := conn.ExecContext(ctx, Schema)
	return err
}
