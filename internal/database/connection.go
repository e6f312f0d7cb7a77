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
	"time"
)

const (
	// testConnectionTimeout bounds connectivity probes.
	testConnectionTimeout = 5 * time.Second

	// DefaultConnectTimeout bounds data connections opened per operation.
	DefaultConnectTimeout = 10 * time.Second
)

// ConnectionService validates connection URLs against the resolved adapter,
// performs connectivity tests, and opens adapter-backed connections. Every
// adapter-level failure is re-raised uniformly as ConnectionValidationError
// carrying the original cause.
type ConnectionService struct {
	registry       *Registry
	connectTimeout time.Duration
}

// NewConnectionService creates a connection service over the registry.
func NewConnectionService(registry *Registry) *ConnectionService {
	return &ConnectionService{registry: registry, connectTimeout: DefaultConnectTimeout}
}

// SetConnectTimeout overrides the default data connection timeout. Zero or
// negative values restore DefaultConnectTimeout.
func (s *ConnectionService) SetConnectTimeout(timeout time.Duration) {
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	s.connectTimeout = timeout
}

// ResolveAdapter returns the adapter claiming the URL's scheme.
func (s *ConnectionService) ResolveAdapter(rawURL string) (Adapter, error) {
	adapter, err := s.registry.ResolveByURL(rawURL)
	if err != nil {
		return nil, &ConnectionValidationError{Message: err.Error(), Cause: err}
	}
	return adapter, nil
}

// ValidateConnectionURL resolves the adapter and validates the URL shape.
func (s *ConnectionService) ValidateConnectionURL(rawURL string) (Adapter, error) {
	adapter, err := s.ResolveAdapter(rawURL)
	if err != nil {
		return nil, err
	}
	if _, err := adapter.ValidateURL(rawURL); err != nil {
		return nil, &ConnectionValidationError{Message: err.Error(), Cause: err}
	}
	return adapter, nil
}

// TestConnection validates the URL and performs the adapter's connectivity
// probe, returning the adapter on success.
func (s *ConnectionService) TestConnection(ctx context.Context, rawURL string) (Adapter, error) {
	adapter, err := s.ValidateConnectionURL(rawURL)
	if err != nil {
		return nil, err
	}
	if err := adapter.TestConnection(ctx, rawURL); err != nil {
		return nil, &ConnectionValidationError{
			Message: fmt.Sprintf("failed to connect to database: %v", err),
			Cause:   err,
		}
	}
	return adapter, nil
}

// Connect validates the URL and opens a connection the caller must close.
// A zero timeout uses DefaultConnectTimeout.
func (s *ConnectionService) Connect(ctx context.Context, rawURL string, timeout time.Duration) (Adapter, *sql.DB, error) {
	adapter, err := s.ValidateConnectionURL(rawURL)
	if err != nil {
		return nil, nil, err
	}

	if timeout <= 0 {
		timeout = s.connectTimeout
	}
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}

	db, err := adapter.Connect(ctx, rawURL, timeout)
	if err != nil {
		return nil, nil, &ConnectionValidationError{
			Message: fmt.Sprintf("failed to connect to database: %v", err),
			Cause:   err,
		}
	}
	return adapter, db, nil
}

// NewConnectionRecord builds the persisted connection entity. When an
// existing record is given its creation time is preserved; the update time
// is always refreshed. Status is always active on the success path.
func (s *ConnectionService) NewConnectionRecord(name, rawURL string, dialect Dialect, existing *Connection) Connection {
	now := time.Now().UTC()
	createdAt := now
	if existing != nil {
		createdAt = existing.CreatedAt
	}
	return Connection{
		Name:      name,
		URL:       rawURL,
		Dialect:   dialect,
		CreatedAt: createdAt,
		UpdatedAt: now,
		Status:    StatusActive,
	}
}
