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

// MaxRowLimit caps the number of rows a query may return when the caller
// did not specify an explicit limit.
const MaxRowLimit = 1000

// QueryService enforces read-only, single-statement, bounded-result
// semantics on SQL text and executes validated queries.
type QueryService struct{}

// NewQueryService creates a query service.
func NewQueryService() *QueryService {
	return &QueryService{}
}

// ValidateSQL parses the text for the target dialect and returns the
// normalized statement. It rejects empty input, multiple statements, and
// anything that is not a SELECT. Statements without a row-limit clause get
// LIMIT 1000 appended; an explicit limit is preserved. Trailing semicolons
// and trailing comments are dropped so the appended clause stays effective.
//
// This is a pure function of (sql, dialect): same input, same output,
// independent of any connection state.
func (s *QueryService) ValidateSQL(sqlText string, dialect Dialect) (string, error) {
	trimmed := strings.TrimSpace(sqlText)
	if trimmed == "" {
		return "", &QueryValidationError{Message: "SQL query cannot be empty"}
	}

	cleaned, err := stripStringsAndComments(trimmed, dialect)
	if err != nil {
		return "", &QueryValidationError{
			Message: fmt.Sprintf("SQL syntax error: %v", err),
			Cause:   err,
		}
	}

	if countStatements(cleaned) != 1 {
		return "", &QueryValidationError{Message: "only a single SQL statement is allowed"}
	}

	switch kind := statementKind(cleaned); kind {
	case "select":
		// Read-only by construction.
	case "":
		return "", &QueryValidationError{
			Message: fmt.Sprintf("SQL syntax error: unrecognized statement %q", firstWord(cleaned)),
		}
	default:
		return "", &QueryValidationError{Message: "only SELECT statements are allowed"}
	}

	normalized := trimmed[:statementEnd(trimmed, dialect)]
	if hasTopLevelLimit(cleaned) {
		return normalized, nil
	}
	return fmt.Sprintf("%s LIMIT %d", normalized, MaxRowLimit), nil
}

func firstWord(cleaned string) string {
	fields := strings.Fields(cleaned)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// ExecuteQuery runs exactly the validated SQL, materializes all rows
// eagerly, and maps result columns through the adapter's normalization.
// Column order is preserved from the driver's reported order.
func (s *QueryService) ExecuteQuery(ctx context.Context, db *sql.DB, sqlText string, adapter Adapter) (*QueryResult, error) {
	start := time.Now()

	rows, err := db.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, fmt.Errorf("query execution failed: %w", err)
	}
	defer rows.Close()

	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to read result columns: %w", err)
	}

	columns := make([]ColumnDefinition, len(columnTypes))
	for i, ct := range columnTypes {
		columns[i] = ColumnDefinition{
			Name: adapter.NormalizeColumnName(ct),
			Type: adapter.NormalizeColumnType(ct),
		}
	}

	resultRows := []map[string]interface{}{}
	values := make([]interface{}, len(columns))
	pointers := make([]interface{}, len(columns))
	for i := range values {
		pointers[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make(map[string]interface{}, len(columns))
		for i, column := range columns {
			row[column.Name] = decodeValue(values[i])
		}
		resultRows = append(resultRows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return &QueryResult{
		Columns:       columns,
		Rows:          resultRows,
		RowCount:      len(resultRows),
		ExecutionTime: time.Since(start).Seconds(),
		Query:         sqlText,
	}, nil
}

// Probe executes a candidate statement against the live engine purely to
// test executability. Rows are discarded.
func (s *QueryService) Probe(ctx context.Context, db *sql.DB, sqlText string) error {
	rows, err := db.QueryContext(ctx, sqlText)
	if err != nil {
		return err
	}
	defer rows.Close()
	return rows.Err()
}

// decodeValue converts driver-specific raw values into JSON-friendly ones.
// The MySQL driver reports text columns as byte slices.
func decodeValue(value interface{}) interface{} {
	if b, ok := value.([]byte); ok {
		return string(b)
	}
	return value
}
