package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ohadcohen11/n8n-ryze-pixel-sender/internal/event"
	"github.com/ohadcohen11/n8n-ryze-pixel-sender/internal/store"
)

func executeSchema(t *testing.T, args ...string) (string, error) {
	t.Helper()

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewSchemaCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return buf.String(), err
}

func TestSchemaCreatesStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "conversions.db")

	out, err := executeSchema(t, "--db-driver", "sqlite3", "--db-dsn", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Schema ready (sqlite3)")
	assert.Contains(t, out, "0 conversions recorded by ryze_pixel")

	// Idempotent on an existing store.
	out, err = executeSchema(t, "--db-driver", "sqlite3", "--db-dsn", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Schema ready (sqlite3)")
}

func TestSchemaCountsExistingRows(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "conversions.db")

	st, err := store.Open(store.DriverSQLite, dbPath)
	require.NoError(t, err)
	require.NoError(t, st.InsertConversions(context.Background(), []event.Record{
		{TrxID: "t-1", Amount: 100, CommissionAmount: 10, Source: event.SourceTag, CreatedAt: time.Now().UTC()},
		{TrxID: "t-2", Amount: 200, CommissionAmount: 20, Source: event.SourceTag, CreatedAt: time.Now().UTC()},
	}))
	require.NoError(t, st.Close())

	out, err := executeSchema(t, "--db-driver", "sqlite3", "--db-dsn", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "2 conversions recorded by ryze_pixel")
}

func TestSchemaMissingDSN(t *testing.T) {
	t.Setenv("PIXELSENDER_DATABASE__DSN", "")

	_, err := executeSchema(t)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "database DSN is required")
}

func TestSchemaBadDriver(t *testing.T) {
	_, err := executeSchema(t, "--db-driver", "oracle", "--db-dsn", "whatever")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
