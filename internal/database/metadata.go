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
	"strings"
	"time"
)

// catalogQueries holds the three introspection queries for one engine,
// plus the query that resolves the current database name. Queries flagged
// scopedToDatabase take the database name as their single bind parameter.
type catalogQueries struct {
	databaseName     string
	tables           string
	columns          string
	primaryKeys      string
	scopedToDatabase bool
}

type tableKey struct {
	schemaName string
	tableName  string
}

// introspectSchema runs the engine's catalog queries and assembles a schema
// snapshot: tables and views with their columns in declaration order and
// primary key columns in key position order. A table with no column rows
// yields an empty column list, not an error.
func introspectSchema(ctx context.Context, db *sql.DB, connectionName string, q catalogQueries) (*SchemaMetadata, error) {
	databaseName := queryDatabaseName(ctx, db, q.databaseName)

	var args []interface{}
	if q.scopedToDatabase {
		args = []interface{}{databaseName}
	}

	tables, err := queryTables(ctx, db, q.tables, args)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	columns, err := queryColumns(ctx, db, q.columns, args)
	if err != nil {
		return nil, fmt.Errorf("failed to list columns: %w", err)
	}

	primaryKeys, err := queryPrimaryKeys(ctx, db, q.primaryKeys, args)
	if err != nil {
		return nil, fmt.Errorf("failed to list primary keys: %w", err)
	}

	metadata := &SchemaMetadata{
		ConnectionName: connectionName,
		DatabaseName:   databaseName,
		FetchedAt:      time.Now().UTC(),
		Tables:         []TableMetadata{},
		Views:          []TableMetadata{},
	}

	for _, t := range tables {
		key := tableKey{schemaName: t.SchemaName, tableName: t.TableName}
		t.Columns = columns[key]
		if t.Columns == nil {
			t.Columns = []ColumnMetadata{}
		}
		t.PrimaryKeys = primaryKeys[key]
		if t.PrimaryKeys == nil {
			t.PrimaryKeys = []string{}
		}
		if t.TableType == "VIEW" {
			metadata.Views = append(metadata.Views, t)
		} else {
			metadata.Tables = append(metadata.Tables, t)
		}
	}

	return metadata, nil
}

// queryDatabaseName resolves the current database name, returning the
// unknown sentinel rather than failing the whole snapshot.
func queryDatabaseName(ctx context.Context, db *sql.DB, query string) string {
	var name sql.NullString
	if err := db.QueryRowContext(ctx, query).Scan(&name); err != nil {
		return unknownSentinel
	}
	if !name.Valid || name.String == "" {
		return unknownSentinel
	}
	return name.String
}

func queryTables(ctx context.Context, db *sql.DB, query string, args []interface{}) ([]TableMetadata, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []TableMetadata
	for rows.Next() {
		var schemaName, tableName, tableType string
		if err := rows.Scan(&schemaName, &tableName, &tableType); err != nil {
			return nil, err
		}
		tables = append(tables, TableMetadata{
			SchemaName: schemaName,
			TableName:  tableName,
			TableType:  normalizeTableType(tableType),
		})
	}
	return tables, rows.Err()
}

func queryColumns(ctx context.Context, db *sql.DB, query string, args []interface{}) (map[tableKey][]ColumnMetadata, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	grouped := make(map[tableKey][]ColumnMetadata)
	for rows.Next() {
		var schemaName, tableName, columnName, dataType, isNullable string
		var defaultValue sql.NullString
		var maxLength, precision sql.NullInt64

		err := rows.Scan(&schemaName, &tableName, &columnName, &dataType,
			&isNullable, &defaultValue, &maxLength, &precision)
		if err != nil {
			return nil, err
		}

		column := ColumnMetadata{
			ColumnName: columnName,
			DataType:   dataType,
			IsNullable: isYes(isNullable),
		}
		if defaultValue.Valid {
			column.DefaultValue = &defaultValue.String
		}
		if maxLength.Valid {
			column.MaxLength = &maxLength.Int64
		}
		if precision.Valid {
			column.NumericPrecision = &precision.Int64
		}

		key := tableKey{schemaName: schemaName, tableName: tableName}
		grouped[key] = append(grouped[key], column)
	}
	return grouped, rows.Err()
}

func queryPrimaryKeys(ctx context.Context, db *sql.DB, query string, args []interface{}) (map[tableKey][]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	grouped := make(map[tableKey][]string)
	for rows.Next() {
		var schemaName, tableName, columnName string
		if err := rows.Scan(&schemaName, &tableName, &columnName); err != nil {
			return nil, err
		}
		key := tableKey{schemaName: schemaName, tableName: tableName}
		grouped[key] = append(grouped[key], columnName)
	}
	return grouped, rows.Err()
}

func normalizeTableType(raw string) string {
	if strings.ToUpper(raw) == "VIEW" {
		return "VIEW"
	}
	return "TABLE"
}

func isYes(value string) bool {
	return strings.ToUpper(value) == "YES"
}
