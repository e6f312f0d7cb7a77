/*-------------------------------------------------------------------------
 *
 * DB Query Gateway
 *
 * Copyright (c) 2026, the DB Query Gateway authors
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package store persists registered connections and their schema snapshots
// in a local SQLite database.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"dbquery-gateway/internal/database"
)

const storeFileName = "dbquery.db"

// Store manages connection and metadata persistence using SQLite.
type Store struct {
	db   *sql.DB
	mu   sync.RWMutex
	path string
}

// NewStore opens (or creates) the registry database under dataDir.
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, storeFileName)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrent access
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Metadata rows must go when their connection goes
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &Store{
		db:   db,
		path: dbPath,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates the necessary tables
func (s *Store) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS connections (
        name TEXT PRIMARY KEY,
        url TEXT NOT NULL,
        dialect TEXT NOT NULL DEFAULT '',
        created_at TEXT NOT NULL,
        updated_at TEXT NOT NULL
    );

    CREATE TABLE IF NOT EXISTS metadata (
        connection_name TEXT NOT NULL,
        metadata_json TEXT NOT NULL,
        fetched_at TEXT NOT NULL,
        PRIMARY KEY (connection_name),
        FOREIGN KEY (connection_name) REFERENCES connections(name) ON DELETE CASCADE
    );
    `

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	// Migration: registries written before the multi-dialect support have
	// no dialect column. SQLite has no IF NOT EXISTS for ALTER TABLE, so
	// check first.
	var count int
	err := s.db.QueryRow(`
        SELECT COUNT(*) FROM pragma_table_info('connections')
        WHERE name = 'dialect'
    `).Scan(&count)
	if err != nil {
		return err
	}
	if count == 0 {
		if _, err := s.db.Exec(`ALTER TABLE connections ADD COLUMN dialect TEXT NOT NULL DEFAULT ''`); err != nil {
			return fmt.Errorf("failed to add dialect column: %w", err)
		}
	}

	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the location of the registry database file.
func (s *Store) Path() string {
	return s.path
}

// UpsertConnection inserts or updates a connection record. On conflict the
// URL, dialect, and update time are replaced while the original creation
// time is kept.
func (s *Store) UpsertConnection(conn database.Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO connections (name, url, dialect, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT(name) DO UPDATE SET
             url = excluded.url,
             dialect = excluded.dialect,
             updated_at = excluded.updated_at`,
		conn.Name, conn.URL, string(conn.Dialect),
		conn.CreatedAt.UTC().Format(time.RFC3339Nano),
		conn.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert connection: %w", err)
	}
	return nil
}

// ListConnections returns all registered connections ordered by name.
// Stored records carry no liveness information, so status is unknown.
func (s *Store) ListConnections() ([]database.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT name, url, dialect, created_at, updated_at
         FROM connections
         ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query connections: %w", err)
	}
	defer rows.Close()

	connections := []database.Connection{}
	for rows.Next() {
		conn, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		connections = append(connections, conn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return connections, nil
}

// GetConnection retrieves a connection by name, or nil when absent.
func (s *Store) GetConnection(name string) (*database.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(
		`SELECT name, url, dialect, created_at, updated_at
         FROM connections
         WHERE name = ?`, name)

	conn, err := scanConnection(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conn, nil
}

// DeleteConnection removes a connection and, via the foreign key cascade,
// its metadata snapshot. Returns whether a record was deleted.
func (s *Store) DeleteConnection(name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.Exec("DELETE FROM connections WHERE name = ?", name)
	if err != nil {
		return false, fmt.Errorf("failed to delete connection: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

// SaveMetadata replaces the schema snapshot for a connection wholesale.
func (s *Store) SaveMetadata(metadata *database.SchemaMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO metadata (connection_name, metadata_json, fetched_at)
         VALUES (?, ?, ?)
         ON CONFLICT(connection_name) DO UPDATE SET
             metadata_json = excluded.metadata_json,
             fetched_at = excluded.fetched_at`,
		metadata.ConnectionName, string(metadataJSON),
		metadata.FetchedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to save metadata: %w", err)
	}
	return nil
}

// GetMetadata retrieves the schema snapshot for a connection, or nil when
// none has been fetched yet.
func (s *Store) GetMetadata(connectionName string) (*database.SchemaMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var metadataJSON string
	err := s.db.QueryRow(
		`SELECT metadata_json FROM metadata WHERE connection_name = ?`,
		connectionName,
	).Scan(&metadataJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query metadata: %w", err)
	}

	var metadata database.SchemaMetadata
	if err := json.Unmarshal([]byte(metadataJSON), &metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return &metadata, nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanConnection(row rowScanner) (database.Connection, error) {
	var conn database.Connection
	var dialect, createdAt, updatedAt string

	err := row.Scan(&conn.Name, &conn.URL, &dialect, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return conn, err
	}
	if err != nil {
		return conn, fmt.Errorf("failed to scan connection: %w", err)
	}

	conn.Dialect = resolveDialect(dialect, conn.URL)
	conn.Status = database.StatusUnknown

	if conn.CreatedAt, err = parseStoredTime(createdAt); err != nil {
		return conn, fmt.Errorf("invalid created_at for %q: %w", conn.Name, err)
	}
	if conn.UpdatedAt, err = parseStoredTime(updatedAt); err != nil {
		return conn, fmt.Errorf("invalid updated_at for %q: %w", conn.Name, err)
	}
	return conn, nil
}

// resolveDialect handles legacy records written before the dialect column
// existed: infer from the URL scheme, mysql:// means MySQL and anything
// else is treated as Postgres.
func resolveDialect(stored, rawURL string) database.Dialect {
	if stored != "" {
		return database.Dialect(stored)
	}
	if strings.HasPrefix(strings.ToLower(rawURL), "mysql://") {
		return database.DialectMySQL
	}
	return database.DialectPostgres
}

func parseStoredTime(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02T15:04:05.999999-07:00", value)
}
