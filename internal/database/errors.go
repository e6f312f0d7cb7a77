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
	"fmt"
	"sort"
	"strings"
)

// Machine-readable error codes surfaced in API error payloads.
const (
	CodeDatabaseNotFound           = "DB_NOT_FOUND"
	CodeMetadataNotFound           = "METADATA_NOT_FOUND"
	CodeConnectionValidationFailed = "CONNECTION_VALIDATION_FAILED"
	CodeSQLValidationFailed        = "SQL_VALIDATION_FAILED"
	CodeGeneratedSQLInvalid        = "GENERATED_SQL_VALIDATION_FAILED"
	CodeQueryExecutionFailed       = "QUERY_EXECUTION_FAILED"
	CodeSQLGenerationFailed        = "SQL_GENERATION_FAILED"
	// Reserved in the wire vocabulary; schema context preparation is a
	// pure in-memory pass here and has no failure path.
	CodeSchemaContextFailed   = "SCHEMA_CONTEXT_PREPARATION_FAILED"
	CodeMetadataFetchFailed   = "METADATA_FETCH_FAILED"
	CodeMetadataRefreshFailed = "METADATA_REFRESH_FAILED"
)

// QueryError is the wire shape for every error the query surface reports.
type QueryError struct {
	ErrorType string `json:"errorType"` // connection|syntax|validation|execution|timeout
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message"`
	Details   string `json:"details,omitempty"`
	Query     string `json:"query,omitempty"`
}

// DatabaseNotFoundError reports a missing named connection.
type DatabaseNotFoundError struct {
	Name string
}

func (e *DatabaseNotFoundError) Error() string {
	return fmt.Sprintf("database connection %q not found", e.Name)
}

// MetadataNotFoundError reports a connection with no schema snapshot.
type MetadataNotFoundError struct {
	Name string
}

func (e *MetadataNotFoundError) Error() string {
	return fmt.Sprintf("metadata for %q not found", e.Name)
}

// ConnectionValidationError covers every way a connection URL can fail:
// malformed URL, unsupported scheme, unreachable engine, auth failure. The
// root cause is preserved so callers never need engine-specific handling.
type ConnectionValidationError struct {
	Message string
	Cause   error
}

func (e *ConnectionValidationError) Error() string {
	return e.Message
}

func (e *ConnectionValidationError) Unwrap() error {
	return e.Cause
}

// QueryValidationError reports SQL that failed the safety gate, or generated
// SQL that was not executable even after the fallback substitution.
type QueryValidationError struct {
	Message string
	Cause   error
}

func (e *QueryValidationError) Error() string {
	return e.Message
}

func (e *QueryValidationError) Unwrap() error {
	return e.Cause
}

// UnsupportedSchemeError reports a URL scheme no registered adapter claims.
type UnsupportedSchemeError struct {
	Scheme    string
	Supported []string
}

func (e *UnsupportedSchemeError) Error() string {
	supported := append([]string(nil), e.Supported...)
	sort.Strings(supported)
	return fmt.Sprintf("unsupported database scheme %q, supported: %s",
		e.Scheme, strings.Join(supported, ", "))
}
