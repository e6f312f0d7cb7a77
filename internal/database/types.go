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

import "time"

// Dialect identifies the SQL engine family a connection targets.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
)

// ConnectionStatus reflects the last known state of a registered connection.
// It is informational only and is not re-verified on reads.
type ConnectionStatus string

const (
	StatusActive  ConnectionStatus = "active"
	StatusError   ConnectionStatus = "error"
	StatusUnknown ConnectionStatus = "unknown"
)

// Connection is a registered database connection record.
type Connection struct {
	Name      string           `json:"name"`
	URL       string           `json:"url"`
	Dialect   Dialect          `json:"dialect"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
	Status    ConnectionStatus `json:"status"`
}

// ColumnMetadata describes one column of a table or view.
type ColumnMetadata struct {
	ColumnName       string  `json:"columnName"`
	DataType         string  `json:"dataType"`
	IsNullable       bool    `json:"isNullable"`
	DefaultValue     *string `json:"defaultValue,omitempty"`
	MaxLength        *int64  `json:"maxLength,omitempty"`
	NumericPrecision *int64  `json:"numericPrecision,omitempty"`
}

// TableMetadata describes one table or view, with columns in declaration
// order and primary key columns in key position order.
type TableMetadata struct {
	SchemaName  string           `json:"schemaName"`
	TableName   string           `json:"tableName"`
	TableType   string           `json:"tableType"` // "TABLE" or "VIEW"
	Columns     []ColumnMetadata `json:"columns"`
	PrimaryKeys []string         `json:"primaryKeys"`
}

// QualifiedName returns the schema-qualified table name.
func (t *TableMetadata) QualifiedName() string {
	return t.SchemaName + "." + t.TableName
}

// SchemaMetadata is an immutable snapshot of a connection's schema. It is
// replaced wholesale on every refresh.
type SchemaMetadata struct {
	ConnectionName string          `json:"connectionName"`
	DatabaseName   string          `json:"databaseName"`
	FetchedAt      time.Time       `json:"fetchedAt"`
	Tables         []TableMetadata `json:"tables"`
	Views          []TableMetadata `json:"views"`
}

// ColumnDefinition describes one column of a query result.
type ColumnDefinition struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// QueryResult holds the fully materialized rows of one executed query.
// It is transient and never persisted.
type QueryResult struct {
	Columns       []ColumnDefinition       `json:"columns"`
	Rows          []map[string]interface{} `json:"rows"`
	RowCount      int                      `json:"rowCount"`
	ExecutionTime float64                  `json:"executionTime"` // seconds
	Query         string                   `json:"query"`
}

// NaturalLanguageContext captures everything that went into one natural
// language SQL generation: the prompt, the selected schema context, and the
// final SQL. Transient, returned to the caller.
type NaturalLanguageContext struct {
	ConnectionName string                   `json:"connectionName"`
	UserPrompt     string                   `json:"userPrompt"`
	RelevantTables []string                 `json:"relevantTables"`
	SchemaContext  map[string]TableMetadata `json:"schemaContext"`
	GeneratedSQL   string                   `json:"generatedSql"`
	Timestamp      time.Time                `json:"timestamp"`
}

// NaturalQueryResponse is the outcome of the natural language workflow.
type NaturalQueryResponse struct {
	GeneratedSQL string                 `json:"generatedSql"`
	Context      NaturalLanguageContext `json:"context"`
}
