/*-------------------------------------------------------------------------
 *
 * DB Query Gateway
 *
 * Copyright (c) 2026, the DB Query Gateway authors
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package orchestrator composes the connection, query, and natural language
// services into the two public workflows: connection lifecycle and query
// execution.
package orchestrator

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"dbquery-gateway/internal/database"
	"dbquery-gateway/internal/logging"
	"dbquery-gateway/internal/nlsql"
)

// connectionProvider is the slice of the connection service the
// orchestrator uses.
type connectionProvider interface {
	ResolveAdapter(rawURL string) (database.Adapter, error)
	TestConnection(ctx context.Context, rawURL string) (database.Adapter, error)
	Connect(ctx context.Context, rawURL string, timeout time.Duration) (database.Adapter, *sql.DB, error)
	NewConnectionRecord(name, rawURL string, dialect database.Dialect, existing *database.Connection) database.Connection
}

// queryGate validates, executes, and probes SQL.
type queryGate interface {
	ValidateSQL(sqlText string, dialect database.Dialect) (string, error)
	ExecuteQuery(ctx context.Context, db *sql.DB, sqlText string, adapter database.Adapter) (*database.QueryResult, error)
	Probe(ctx context.Context, db *sql.DB, sqlText string) error
}

// naturalLanguage turns prompts into SQL over a schema snapshot.
type naturalLanguage interface {
	PrepareSchemaContext(metadata *database.SchemaMetadata, prompt string, limit int) ([]string, map[string]database.TableMetadata, *nlsql.PromptSchema)
	GenerateSQL(ctx context.Context, prompt, connectionName string, promptSchema *nlsql.PromptSchema, dialectLabel string) (string, error)
	BuildFallbackSQL(prompt string, promptSchema *nlsql.PromptSchema) string
}

// connectionStore persists connection records and schema snapshots.
type connectionStore interface {
	UpsertConnection(conn database.Connection) error
	ListConnections() ([]database.Connection, error)
	GetConnection(name string) (*database.Connection, error)
	DeleteConnection(name string) (bool, error)
	SaveMetadata(metadata *database.SchemaMetadata) error
	GetMetadata(connectionName string) (*database.SchemaMetadata, error)
}

// Orchestrator owns the executability-guarantee retry protocol and all
// cross-service workflows. It never mutates stored records directly, only
// through the store's upsert and delete calls.
type Orchestrator struct {
	connections connectionProvider
	queries     queryGate
	natural     naturalLanguage
	store       connectionStore
}

// New wires the orchestrator. All dependencies are constructed once at
// startup and shared across requests.
func New(connections connectionProvider, queries queryGate, natural naturalLanguage, store connectionStore) *Orchestrator {
	return &Orchestrator{
		connections: connections,
		queries:     queries,
		natural:     natural,
		store:       store,
	}
}

// ListConnections returns all registered connections.
func (o *Orchestrator) ListConnections() ([]database.Connection, error) {
	return o.store.ListConnections()
}

// GetConnection resolves a named connection or fails with
// DatabaseNotFoundError.
func (o *Orchestrator) GetConnection(name string) (*database.Connection, error) {
	conn, err := o.store.GetConnection(name)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, &database.DatabaseNotFoundError{Name: name}
	}
	return conn, nil
}

// UpsertConnectionAndMetadata registers or updates a connection: test the
// URL against a live engine, persist the record, then fetch and persist a
// fresh schema snapshot. A failed connectivity test leaves the registry
// untouched.
func (o *Orchestrator) UpsertConnectionAndMetadata(ctx context.Context, name, rawURL string) (*database.Connection, error) {
	adapter, err := o.connections.TestConnection(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	existing, err := o.store.GetConnection(name)
	if err != nil {
		return nil, err
	}

	record := o.connections.NewConnectionRecord(name, rawURL, adapter.Name(), existing)
	if err := o.store.UpsertConnection(record); err != nil {
		return nil, err
	}

	metadata, err := o.fetchMetadata(ctx, name, record.URL)
	if err != nil {
		return nil, err
	}
	if err := o.store.SaveMetadata(metadata); err != nil {
		return nil, err
	}

	logging.Info("connection registered",
		"name", name,
		"dialect", string(record.Dialect),
		"tables", len(metadata.Tables),
		"views", len(metadata.Views))
	return &record, nil
}

// GetDatabaseDetail returns a connection together with its latest schema
// snapshot.
func (o *Orchestrator) GetDatabaseDetail(name string) (*database.Connection, *database.SchemaMetadata, error) {
	conn, err := o.GetConnection(name)
	if err != nil {
		return nil, nil, err
	}

	metadata, err := o.store.GetMetadata(name)
	if err != nil {
		return nil, nil, err
	}
	if metadata == nil {
		return nil, nil, &database.MetadataNotFoundError{Name: name}
	}
	return conn, metadata, nil
}

// RefreshMetadata re-introspects the engine and replaces the stored
// snapshot wholesale.
func (o *Orchestrator) RefreshMetadata(ctx context.Context, name string) (*database.SchemaMetadata, error) {
	conn, err := o.GetConnection(name)
	if err != nil {
		return nil, err
	}

	metadata, err := o.fetchMetadata(ctx, name, conn.URL)
	if err != nil {
		return nil, err
	}
	if err := o.store.SaveMetadata(metadata); err != nil {
		return nil, err
	}

	logging.Info("metadata refreshed", "name", name, "tables", len(metadata.Tables))
	return metadata, nil
}

// DeleteConnection removes a connection and its snapshot.
func (o *Orchestrator) DeleteConnection(name string) error {
	deleted, err := o.store.DeleteConnection(name)
	if err != nil {
		return err
	}
	if !deleted {
		return &database.DatabaseNotFoundError{Name: name}
	}
	logging.Info("connection deleted", "name", name)
	return nil
}

// ExecuteSQL runs caller-supplied SQL through the safety gate and executes
// it once. No probe or fallback here: the caller chose this SQL and a
// silent substitution would be surprising.
func (o *Orchestrator) ExecuteSQL(ctx context.Context, name, sqlText string) (*database.QueryResult, error) {
	conn, err := o.GetConnection(name)
	if err != nil {
		return nil, err
	}

	adapter, err := o.connections.ResolveAdapter(conn.URL)
	if err != nil {
		return nil, err
	}

	validatedSQL, err := o.queries.ValidateSQL(sqlText, adapter.Name())
	if err != nil {
		return nil, err
	}

	connectedAdapter, db, err := o.connections.Connect(ctx, conn.URL, 0)
	if err != nil {
		return nil, err
	}
	defer o.closeDB(db)

	return o.queries.ExecuteQuery(ctx, db, validatedSQL, connectedAdapter)
}

// GenerateSQLFromNatural turns a prompt into validated, probe-verified SQL
// for a named connection. The returned SQL is guaranteed to have executed
// successfully at least once against the live engine.
func (o *Orchestrator) GenerateSQLFromNatural(ctx context.Context, name, prompt string) (*database.NaturalQueryResponse, error) {
	conn, metadata, err := o.GetDatabaseDetail(name)
	if err != nil {
		return nil, err
	}

	adapter, err := o.connections.ResolveAdapter(conn.URL)
	if err != nil {
		return nil, err
	}

	relevantTables, schemaContext, promptSchema := o.natural.PrepareSchemaContext(metadata, prompt, nlsql.DefaultContextLimit)

	generatedSQL, err := o.natural.GenerateSQL(ctx, prompt, name, promptSchema, adapter.LLMDialectLabel())
	if err != nil {
		return nil, err
	}

	validatedSQL, err := o.queries.ValidateSQL(generatedSQL, adapter.Name())
	if err != nil {
		return nil, err
	}

	executableSQL, err := o.ensureExecutable(ctx, conn.URL, prompt, promptSchema, validatedSQL, adapter)
	if err != nil {
		return nil, err
	}

	return &database.NaturalQueryResponse{
		GeneratedSQL: executableSQL,
		Context: database.NaturalLanguageContext{
			ConnectionName: name,
			UserPrompt:     prompt,
			RelevantTables: relevantTables,
			SchemaContext:  schemaContext,
			GeneratedSQL:   executableSQL,
			Timestamp:      time.Now().UTC(),
		},
	}, nil
}

// ensureExecutable probes the validated SQL against the live engine. If the
// probe fails it builds the deterministic fallback, validates it through
// the same gate, and probes that instead. A fallback textually identical to
// the failed primary is not re-probed. The connection is released on every
// exit path.
func (o *Orchestrator) ensureExecutable(ctx context.Context, connectionURL, prompt string, promptSchema *nlsql.PromptSchema, sqlText string, adapter database.Adapter) (string, error) {
	_, db, err := o.connections.Connect(ctx, connectionURL, 0)
	if err != nil {
		return "", err
	}
	defer o.closeDB(db)

	primaryErr := o.queries.Probe(ctx, db, sqlText)
	if primaryErr == nil {
		return sqlText, nil
	}

	logging.Warn("generated SQL failed probe, trying fallback",
		"dialect", adapter.LLMDialectLabel(),
		"error", primaryErr.Error())

	fallbackSQL := o.natural.BuildFallbackSQL(prompt, promptSchema)
	validatedFallback, err := o.queries.ValidateSQL(fallbackSQL, adapter.Name())
	if err != nil {
		return "", err
	}

	if strings.TrimSpace(validatedFallback) == strings.TrimSpace(sqlText) {
		return "", &database.QueryValidationError{
			Message: fmt.Sprintf("generated SQL is not executable for %s: %v",
				adapter.LLMDialectLabel(), primaryErr),
			Cause: primaryErr,
		}
	}

	if fallbackErr := o.queries.Probe(ctx, db, validatedFallback); fallbackErr != nil {
		return "", &database.QueryValidationError{
			Message: fmt.Sprintf("generated SQL is not executable and fallback SQL also failed. %s errors: primary=%v; fallback=%v",
				adapter.LLMDialectLabel(), primaryErr, fallbackErr),
			Cause: fallbackErr,
		}
	}
	return validatedFallback, nil
}

// fetchMetadata opens a connection, introspects, and closes it.
func (o *Orchestrator) fetchMetadata(ctx context.Context, name, rawURL string) (*database.SchemaMetadata, error) {
	adapter, db, err := o.connections.Connect(ctx, rawURL, 0)
	if err != nil {
		return nil, err
	}
	defer o.closeDB(db)

	return adapter.FetchMetadata(ctx, name, db)
}

func (o *Orchestrator) closeDB(db *sql.DB) {
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		logging.Warn("failed to close database connection", "error", err.Error())
	}
}
