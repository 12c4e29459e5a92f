package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Source identifies where an export was requested.
type Source string

const (
	SourcePortal Source = "portal"
	SourceCLI    Source = "cli"
)

// ExportRecord represents one exported invoice document.
type ExportRecord struct {
	ID            int64
	InvoiceID     string
	InvoiceNumber string
	UserEmail     string
	Source        Source
	Bytes         int
	ExportedAt    time.Time
}

// ExportHistory manages export history records.
type ExportHistory struct {
	conn *Connection
}

// NewExportHistory creates a new ExportHistory instance.
func NewExportHistory(conn *Connection) *ExportHistory {
	return &ExportHistory{conn: conn}
}

// Record stores an export. A zero ExportedAt is replaced with the current time.
func (h *ExportHistory) Record(ctx context.Context, record ExportRecord) error {
	if record.InvoiceID == "" {
		return errors.New("failed to record export: invoice id is empty")
	}
	if record.ExportedAt.IsZero() {
		record.ExportedAt = time.Now()
	}

	query := `
		INSERT INTO export_history (invoice_id, invoice_number, user_email, source, bytes, exported_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := h.conn.ExecContext(ctx, query,
		record.InvoiceID,
		record.InvoiceNumber,
		record.UserEmail,
		string(record.Source),
		record.Bytes,
		record.ExportedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record export: %w", err)
	}

	return nil
}

// Recent returns up to limit records, newest first. A non-empty invoiceID
// restricts the result to that invoice.
func (h *ExportHistory) Recent(ctx context.Context, invoiceID string, limit int) ([]ExportRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, invoice_id, invoice_number, user_email, source, bytes, exported_at
		FROM export_history
		WHERE (? = '' OR invoice_id = ?)
		ORDER BY exported_at DESC, id DESC
		LIMIT ?
	`

	rows, err := h.conn.QueryContext(ctx, query, invoiceID, invoiceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get export records: %w", err)
	}
	defer rows.Close()

	var records []ExportRecord
	for rows.Next() {
		var record ExportRecord
		var source string

		if err := rows.Scan(
			&record.ID,
			&record.InvoiceID,
			&record.InvoiceNumber,
			&record.UserEmail,
			&source,
			&record.Bytes,
			&record.ExportedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan export record: %w", err)
		}

		record.Source = Source(source)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read export records: %w", err)
	}

	return records, nil
}

// Stats represents export statistics.
type Stats struct {
	TotalExports     int
	DistinctInvoices int
	FromPortal       int
	FromCLI          int
	LastExport       sql.NullString
}

// GetStats retrieves export statistics.
func (h *ExportHistory) GetStats(ctx context.Context) (*Stats, error) {
	var stats Stats

	err := h.conn.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(DISTINCT invoice_id),
		       COALESCE(SUM(source = 'portal'), 0),
		       COALESCE(SUM(source = 'cli'), 0)
		FROM export_history
	`).Scan(&stats.TotalExports, &stats.DistinctInvoices, &stats.FromPortal, &stats.FromCLI)
	if err != nil {
		return nil, fmt.Errorf("failed to get export counts: %w", err)
	}

	err = h.conn.QueryRowContext(ctx, `SELECT MAX(exported_at) FROM export_history`).Scan(&stats.LastExport)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to get last export time: %w", err)
	}

	return &stats, nil
}
