package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ohadcohen11/n8n-ryze-pixel-sender/internal/event"
)

const lookupQuery = `
SELECT trx_id, amount, commission_amount, source, created_at
FROM conversions
WHERE trx_id IN (?)`

// LookupConversions fetches the stored records for the given
// transaction identifiers in a single round trip. Identifiers with no
// record are simply absent from the result; order is not guaranteed.
//
// Returns an empty slice, not nil, when nothing matches. An empty id
// list short-circuits without touching the database.
func (s *Store) LookupConversions(ctx context.Context, ids []string) ([]event.Record, error) {
	if len(ids) == 0 {
		return []event.Record{}, nil
	}

	query, args, err := sqlx.In(lookupQuery, ids)
	if err != nil {
		return nil, fmt.Errorf("expand lookup for %d ids: %w", len(ids), err)
	}
	query = s.db.Rebind(query)

	records := []event.Record{}
	if err := s.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("lookup %d conversions: %w", len(ids), err)
	}
	return records, nil
}

// CountConversions returns the number of stored rows carrying the given
// source tag. Used by the schema command to report table state.
func (s *Store) CountConversions(ctx context.Context, source string) (int, error) {
	query := s.db.Rebind(`SELECT COUNT(*) FROM conversions WHERE source = ?`)
	var n int
	if err := s.db.GetContext(ctx, &n, query, source); err != nil {
		return 0, fmt.Errorf("count conversions: %w", err)
	}
	return n, nil
}
