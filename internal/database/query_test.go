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
	"errors"
	"strings"
	"testing"
)

func TestValidateSQLAppendsDefaultLimit(t *testing.T) {
	service := NewQueryService()

	tests := []struct {
		name     string
		sql      string
		dialect  Dialect
		expected string
	}{
		{
			name:     "plain select",
			sql:      "SELECT * FROM users",
			dialect:  DialectPostgres,
			expected: "SELECT * FROM users LIMIT 1000",
		},
		{
			name:     "trailing semicolon removed",
			sql:      "SELECT id FROM orders;",
			dialect:  DialectPostgres,
			expected: "SELECT id FROM orders LIMIT 1000",
		},
		{
			name:     "whitespace trimmed",
			sql:      "  SELECT name FROM customers  ",
			dialect:  DialectMySQL,
			expected: "SELECT name FROM customers LIMIT 1000",
		},
		{
			name:     "subquery limit does not count",
			sql:      "SELECT * FROM t WHERE id IN (SELECT id FROM u LIMIT 5)",
			dialect:  DialectPostgres,
			expected: "SELECT * FROM t WHERE id IN (SELECT id FROM u LIMIT 5) LIMIT 1000",
		},
		{
			name:     "cte select",
			sql:      "WITH recent AS (SELECT * FROM events) SELECT * FROM recent",
			dialect:  DialectPostgres,
			expected: "WITH recent AS (SELECT * FROM events) SELECT * FROM recent LIMIT 1000",
		},
		{
			name:     "limit inside string literal does not count",
			sql:      "SELECT * FROM t WHERE note = 'limit 5'",
			dialect:  DialectPostgres,
			expected: "SELECT * FROM t WHERE note = 'limit 5' LIMIT 1000",
		},
		{
			name:     "trailing line comment cannot swallow the limit",
			sql:      "SELECT * FROM big -- all rows",
			dialect:  DialectPostgres,
			expected: "SELECT * FROM big LIMIT 1000",
		},
		{
			name:     "semicolon before trailing comment removed",
			sql:      "SELECT 1; -- done",
			dialect:  DialectPostgres,
			expected: "SELECT 1 LIMIT 1000",
		},
		{
			name:     "trailing block comment removed",
			sql:      "SELECT 1 /* trailing */",
			dialect:  DialectPostgres,
			expected: "SELECT 1 LIMIT 1000",
		},
		{
			name:     "parenthesized select",
			sql:      "(SELECT 1)",
			dialect:  DialectPostgres,
			expected: "(SELECT 1) LIMIT 1000",
		},
		{
			name:     "union of parenthesized selects",
			sql:      "(SELECT id FROM a) UNION (SELECT id FROM b)",
			dialect:  DialectMySQL,
			expected: "(SELECT id FROM a) UNION (SELECT id FROM b) LIMIT 1000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := service.ValidateSQL(tt.sql, tt.dialect)
			if err != nil {
				t.Fatalf("ValidateSQL(%q) returned error: %v", tt.sql, err)
			}
			if got != tt.expected {
				t.Errorf("ValidateSQL(%q) = %q, want %q", tt.sql, got, tt.expected)
			}
		})
	}
}

func TestValidateSQLPreservesExplicitLimit(t *testing.T) {
	service := NewQueryService()

	tests := []struct {
		name string
		sql  string
	}{
		{name: "small limit", sql: "SELECT * FROM users LIMIT 10"},
		{name: "large limit preserved", sql: "SELECT * FROM users LIMIT 50000"},
		{name: "limit with offset", sql: "SELECT * FROM users LIMIT 10 OFFSET 20"},
		{name: "fetch first clause", sql: "SELECT * FROM users FETCH FIRST 5 ROWS ONLY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := service.ValidateSQL(tt.sql, DialectPostgres)
			if err != nil {
				t.Fatalf("ValidateSQL(%q) returned error: %v", tt.sql, err)
			}
			if got != tt.sql {
				t.Errorf("ValidateSQL(%q) = %q, want input unchanged", tt.sql, got)
			}
		})
	}

	t.Run("explicit limit with trailing comment and semicolon", func(t *testing.T) {
		got, err := service.ValidateSQL("SELECT * FROM t LIMIT 5; -- five", DialectPostgres)
		if err != nil {
			t.Fatalf("ValidateSQL returned error: %v", err)
		}
		if got != "SELECT * FROM t LIMIT 5" {
			t.Errorf("ValidateSQL = %q, want trailer stripped", got)
		}
	})
}

func TestValidateSQLIsIdempotent(t *testing.T) {
	service := NewQueryService()

	inputs := []string{
		"SELECT * FROM users",
		"SELECT id, name FROM customers WHERE active = true",
		"WITH t AS (SELECT 1 AS n) SELECT n FROM t",
	}

	for _, input := range inputs {
		first, err := service.ValidateSQL(input, DialectPostgres)
		if err != nil {
			t.Fatalf("first ValidateSQL(%q) returned error: %v", input, err)
		}
		second, err := service.ValidateSQL(first, DialectPostgres)
		if err != nil {
			t.Fatalf("second ValidateSQL(%q) returned error: %v", first, err)
		}
		if first != second {
			t.Errorf("ValidateSQL not idempotent: %q -> %q", first, second)
		}
	}
}

func TestValidateSQLRejectsUnsafeInput(t *testing.T) {
	service := NewQueryService()

	tests := []struct {
		name    string
		sql     string
		dialect Dialect
	}{
		{name: "empty", sql: "", dialect: DialectPostgres},
		{name: "whitespace only", sql: "   \n\t ", dialect: DialectPostgres},
		{name: "insert", sql: "INSERT INTO t VALUES (1)", dialect: DialectPostgres},
		{name: "update", sql: "UPDATE t SET a = 1", dialect: DialectMySQL},
		{name: "delete", sql: "DELETE FROM t", dialect: DialectPostgres},
		{name: "drop", sql: "DROP TABLE t", dialect: DialectMySQL},
		{name: "cte hiding delete", sql: "WITH x AS (SELECT 1) DELETE FROM t", dialect: DialectPostgres},
		{
			name:    "stacked statements",
			sql:     "SELECT 1; DROP TABLE users",
			dialect: DialectPostgres,
		},
		{
			name:    "stacked statements hidden by comment",
			sql:     "SELECT 1; -- c\nDELETE FROM t",
			dialect: DialectPostgres,
		},
		{name: "unterminated string", sql: "SELECT 'oops FROM t", dialect: DialectPostgres},
		{name: "unterminated comment", sql: "SELECT 1 /* comment", dialect: DialectPostgres},
		{name: "explain", sql: "EXPLAIN SELECT 1", dialect: DialectPostgres},
		{name: "set", sql: "SET search_path TO public", dialect: DialectPostgres},
		{name: "parenthesized delete", sql: "(DELETE FROM t)", dialect: DialectPostgres},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.ValidateSQL(tt.sql, tt.dialect)
			if err == nil {
				t.Fatalf("ValidateSQL(%q) succeeded, want QueryValidationError", tt.sql)
			}
			var validationErr *QueryValidationError
			if !errors.As(err, &validationErr) {
				t.Errorf("ValidateSQL(%q) error = %T, want *QueryValidationError", tt.sql, err)
			}
		})
	}
}

func TestValidateSQLSemicolonInStringIsNotAStatementSeparator(t *testing.T) {
	service := NewQueryService()

	sql := "SELECT * FROM t WHERE note = 'a;b'"
	got, err := service.ValidateSQL(sql, DialectPostgres)
	if err != nil {
		t.Fatalf("ValidateSQL(%q) returned error: %v", sql, err)
	}
	if !strings.HasPrefix(got, sql) {
		t.Errorf("ValidateSQL(%q) = %q, want prefix %q", sql, got, sql)
	}
}

func TestValidateSQLMySQLHashComment(t *testing.T) {
	service := NewQueryService()

	sql := "SELECT id FROM t # trailing comment"
	got, err := service.ValidateSQL(sql, DialectMySQL)
	if err != nil {
		t.Fatalf("ValidateSQL(%q) returned error: %v", sql, err)
	}
	if got != "SELECT id FROM t LIMIT 1000" {
		t.Errorf("ValidateSQL(%q) = %q, want comment dropped and LIMIT 1000 appended", sql, got)
	}
}

func TestStripStringsAndCommentsBacktickIdentifiers(t *testing.T) {
	cleaned, err := stripStringsAndComments("SELECT `select` FROM `t`", DialectMySQL)
	if err != nil {
		t.Fatalf("stripStringsAndComments returned error: %v", err)
	}
	if strings.Contains(cleaned, "select`") {
		t.Errorf("backtick identifier leaked into cleaned text: %q", cleaned)
	}
}
