/*-------------------------------------------------------------------------
 *
 * DB Query Gateway
 *
 * Copyright (c) 2026, the DB Query Gateway authors
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package database

import (
	"context"
	"database/sql"
	"net/url"
	"time"
)

// Adapter encapsulates every engine-specific concern: URL validation,
// connecting, the connectivity probe, catalog introspection, and result
// column normalization. The rest of the system is dialect-agnostic.
type Adapter interface {
	// Name returns the dialect this adapter serves.
	Name() Dialect

	// Schemes returns the URL schemes this adapter claims (lowercase).
	Schemes() []string

	// LLMDialectLabel returns the human-readable engine name used in
	// generation prompts and error messages.
	LLMDialectLabel() string

	// ValidateURL verifies the URL belongs to this adapter and carries a
	// host and a database path segment.
	ValidateURL(rawURL string) (*url.URL, error)

	// Connect opens a connection honoring the timeout. The caller owns the
	// returned handle and must close it on every exit path.
	Connect(ctx context.Context, rawURL string, timeout time.Duration) (*sql.DB, error)

	// TestConnection opens a short-lived connection, runs a trivial
	// round-trip query, and releases it.
	TestConnection(ctx context.Context, rawURL string) error

	// FetchMetadata introspects the engine catalog and assembles a full
	// schema snapshot for the named connection.
	FetchMetadata(ctx context.Context, connectionName string, db *sql.DB) (*SchemaMetadata, error)

	// NormalizeColumnName extracts a column name from whatever the driver
	// reports, falling back to "unknown" rather than failing.
	NormalizeColumnName(ct *sql.ColumnType) string

	// NormalizeColumnType extracts a column type name from whatever the
	// driver reports, falling back to "unknown" rather than failing.
	NormalizeColumnType(ct *sql.ColumnType) string
}

// unknownSentinel is returned when a driver does not report column metadata.
// Result metadata must never block returning query rows.
const unknownSentinel = "unknown"
