package store

import (
	"context"
	"fmt"
	"time"

	"github.com/ohadcohen11/n8n-ryze-pixel-sender/internal/event"
)

const insertQuery = `
INSERT INTO conversions (trx_id, amount, commission_amount, source, created_at)
VALUES (:trx_id, :amount, :commission_amount, :source, :created_at)`

const updateQuery = `
UPDATE conversions
SET amount = ?, commission_amount = ?, created_at = ?
WHERE trx_id = ?`

// InsertConversions writes all rows in one multi-row INSERT. There is
// deliberately no conflict clause: inserting an identifier that already
// exists must fail with a constraint error, never merge silently. The
// caller owns deduplication.
func (s *Store) InsertConversions(ctx context.Context, rows []event.Record) error {
	if len(rows) == 0 {
		return nil
	}
	if _, err := s.db.NamedExecContext(ctx, insertQuery, rows); err != nil {
		return fmt.Errorf("insert %d conversions: %w", len(rows), err)
	}
	return nil
}

// UpdateConversion overwrites the stored amounts for one identifier and
// refreshes created_at to the write time; the column tracks the last
// successful transmission, not only the first. Updating an identifier
// with no row affects nothing and is not an error.
func (s *Store) UpdateConversion(ctx context.Context, trxID string, amount, commission float64, at time.Time) error {
	query := s.db.Rebind(updateQuery)
	if _, err := s.db.ExecContext(ctx, query, amount, commission, at, trxID); err != nil {
		return fmt.Errorf("update conversion %s: %w", trxID, err)
	}
	return nil
}
