// Package store provides durable storage for conversion records.
//
// The backing database is selected by driver name: mysql for the
// production record store, pgx for PostgreSQL deployments, sqlite3 for
// local runs and tests. All queries go through sqlx so placeholder
// styles rebind per driver; nothing in this package is dialect
// specific beyond the DSN.
//
// The conversions table is keyed by transaction identifier. Inserts
// carry no conflict clause on purpose: writing an identifier that
// already exists is an invariant violation upstream and must surface
// as a constraint error, not merge silently.
package store
