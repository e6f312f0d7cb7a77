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
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver
)

// PostgresAdapter serves the Postgres engine family.
type PostgresAdapter struct{}

// NewPostgresAdapter creates the Postgres adapter.
func NewPostgresAdapter() *PostgresAdapter {
	return &PostgresAdapter{}
}

func (a *PostgresAdapter) Name() Dialect {
	return DialectPostgres
}

func (a *PostgresAdapter) Schemes() []string {
	return []string{"postgres", "postgresql"}
}

func (a *PostgresAdapter) LLMDialectLabel() string {
	return "PostgreSQL"
}

// ValidateURL verifies the scheme, host, and database path segment.
func (a *PostgresAdapter) ValidateURL(rawURL string) (*url.URL, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid connection URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "postgres" && scheme != "postgresql" {
		return nil, fmt.Errorf("only PostgreSQL URLs are supported by this adapter")
	}
	if parsed.Hostname() == "" {
		return nil, fmt.Errorf("database host is required")
	}
	if parsed.Path == "" || parsed.Path == "/" {
		return nil, fmt.Errorf("database name is required in URL path")
	}
	return parsed, nil
}

// Connect opens a database/sql handle backed by the pgx driver. The connect
// timeout is injected into the URL so the driver enforces it on dial.
func (a *PostgresAdapter) Connect(ctx context.Context, rawURL string, timeout time.Duration) (*sql.DB, error) {
	parsed, err := a.ValidateURL(rawURL)
	if err != nil {
		return nil, err
	}

	query := parsed.Query()
	if !query.Has("connect_timeout") {
		seconds := int(timeout / time.Second)
		if seconds < 1 {
			seconds = 1
		}
		query.Set("connect_timeout", strconv.Itoa(seconds))
	}
	if !query.Has("application_name") {
		query.Set("application_name", "DB Query Gateway")
	}
	parsed.RawQuery = query.Encode()

	db, err := sql.Open("pgx", parsed.String())
	if err != nil {
		return nil, fmt.Errorf("unable to open connection: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to reach database: %w", err)
	}
	return db, nil
}

// TestConnection opens a short-lived connection and runs a trivial query.
func (a *PostgresAdapter) TestConnection(ctx context.Context, rawURL string) error {
	db, err := a.Connect(ctx, rawURL, testConnectionTimeout)
	if err != nil {
		return err
	}
	defer db.Close()

	probeCtx, cancel := context.WithTimeout(ctx, testConnectionTimeout)
	defer cancel()

	var one int
	return db.QueryRowContext(probeCtx, "SELECT 1").Scan(&one)
}

// FetchMetadata introspects information_schema, excluding the system schemas
// Postgres exposes there.
func (a *PostgresAdapter) FetchMetadata(ctx context.Context, connectionName string, db *sql.DB) (*SchemaMetadata, error) {
	return introspectSchema(ctx, db, connectionName, catalogQueries{
		databaseName: "SELECT current_database()",
		tables: `
			SELECT table_schema, table_name, table_type
			FROM information_schema.tables
			WHERE table_schema NOT IN ('pg_catalog', 'information_schema')
			ORDER BY table_schema, table_name`,
		columns: `
			SELECT
				table_schema,
				table_name,
				column_name,
				data_type,
				is_nullable,
				column_default,
				character_maximum_length,
				numeric_precision
			FROM information_schema.columns
			WHERE table_schema NOT IN ('pg_catalog', 'information_schema')
			ORDER BY table_schema, table_name, ordinal_position`,
		primaryKeys: `
			SELECT
				tc.table_schema,
				tc.table_name,
				kcu.column_name
			FROM information_schema.table_constraints tc
			JOIN information_schema.key_column_usage kcu
			  ON tc.constraint_name = kcu.constraint_name
			 AND tc.table_schema = kcu.table_schema
			 AND tc.table_name = kcu.table_name
			WHERE tc.constraint_type = 'PRIMARY KEY'
			ORDER BY tc.table_schema, tc.table_name, kcu.ordinal_position`,
	})
}

func (a *PostgresAdapter) NormalizeColumnName(ct *sql.ColumnType) string {
	if ct == nil || ct.Name() == "" {
		return unknownSentinel
	}
	return ct.Name()
}

func (a *PostgresAdapter) NormalizeColumnType(ct *sql.ColumnType) string {
	if ct == nil || ct.DatabaseTypeName() == "" {
		return unknownSentinel
	}
	return strings.ToLower(ct.DatabaseTypeName())
}
