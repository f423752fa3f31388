package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ohadcohen11/n8n-ryze-pixel-sender/internal/event"
)

// createTestStore opens a SQLite-backed store in a temp directory that
// is cleaned up with the test.
func createTestStore(t *testing.T) *Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(DriverSQLite, dbPath)
	require.NoError(t, err, "failed to open test store")

	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func testRecord(trxID string, amount, commission float64) event.Record {
	return event.Record{
		TrxID:            trxID,
		Amount:           amount,
		CommissionAmount: commission,
		Source:           event.SourceTag,
		CreatedAt:        time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}
