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
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

// MySQLAdapter serves the MySQL engine family.
type MySQLAdapter struct{}

// NewMySQLAdapter creates the MySQL adapter.
func NewMySQLAdapter() *MySQLAdapter {
	return &MySQLAdapter{}
}

func (a *MySQLAdapter) Name() Dialect {
	return DialectMySQL
}

func (a *MySQLAdapter) Schemes() []string {
	return []string{"mysql"}
}

func (a *MySQLAdapter) LLMDialectLabel() string {
	return "MySQL"
}

// ValidateURL verifies the scheme, host, and database path segment.
func (a *MySQLAdapter) ValidateURL(rawURL string) (*url.URL, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid connection URL: %w", err)
	}

	if strings.ToLower(parsed.Scheme) != "mysql" {
		return nil, fmt.Errorf("only MySQL URLs are supported by this adapter")
	}
	if parsed.Hostname() == "" {
		return nil, fmt.Errorf("database host is required")
	}
	if parsed.Path == "" || parsed.Path == "/" {
		return nil, fmt.Errorf("database name is required in URL path")
	}
	return parsed, nil
}

// buildDSN converts a mysql:// URL into the driver's DSN shape
// (user:password@tcp(host:port)/database).
func (a *MySQLAdapter) buildDSN(parsed *url.URL, timeout time.Duration) string {
	cfg := mysql.NewConfig()
	cfg.Net = "tcp"

	host := parsed.Hostname()
	port := parsed.Port()
	if port == "" {
		port = "3306"
	}
	cfg.Addr = host + ":" + port
	cfg.DBName = strings.TrimPrefix(parsed.Path, "/")

	if parsed.User != nil {
		cfg.User = parsed.User.Username()
		if password, ok := parsed.User.Password(); ok {
			cfg.Passwd = password
		}
	}

	cfg.Timeout = timeout
	cfg.ParseTime = true

	charset := parsed.Query().Get("charset")
	if charset == "" {
		charset = "utf8mb4"
	}
	cfg.Params = map[string]string{"charset": charset}

	return cfg.FormatDSN()
}

// Connect opens a database/sql handle backed by the MySQL driver.
func (a *MySQLAdapter) Connect(ctx context.Context, rawURL string, timeout time.Duration) (*sql.DB, error) {
	parsed, err := a.ValidateURL(rawURL)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", a.buildDSN(parsed, timeout))
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
func (a *MySQLAdapter) TestConnection(ctx context.Context, rawURL string) error {
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

// FetchMetadata introspects information_schema scoped to the current
// database; MySQL keeps system tables in separate schemas already.
func (a *MySQLAdapter) FetchMetadata(ctx context.Context, connectionName string, db *sql.DB) (*SchemaMetadata, error) {
	return introspectSchema(ctx, db, connectionName, catalogQueries{
		databaseName:     "SELECT DATABASE()",
		scopedToDatabase: true,
		tables: `
			SELECT table_schema, table_name, table_type
			FROM information_schema.tables
			WHERE table_schema = ?
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
			WHERE table_schema = ?
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
			  AND tc.table_schema = ?
			ORDER BY tc.table_schema, tc.table_name, kcu.ordinal_position`,
	})
}

func (a *MySQLAdapter) NormalizeColumnName(ct *sql.ColumnType) string {
	if ct == nil || ct.Name() == "" {
		return unknownSentinel
	}
	return ct.Name()
}

func (a *MySQLAdapter) NormalizeColumnType(ct *sql.ColumnType) string {
	if ct == nil || ct.DatabaseTypeName() == "" {
		return unknownSentinel
	}
	return strings.ToLower(ct.DatabaseTypeName())
}
