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
	"net/url"
	"strings"
)

// Registry maps connection URL schemes to the adapter that handles them.
// It is built once at startup with the full adapter set and is read-only
// afterwards, so concurrent resolution needs no locking.
type Registry struct {
	byScheme map[string]Adapter
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{byScheme: make(map[string]Adapter)}
}

// Register indexes the adapter under each scheme it claims.
func (r *Registry) Register(adapter Adapter) {
	for _, scheme := range adapter.Schemes() {
		r.byScheme[strings.ToLower(scheme)] = adapter
	}
}

// ResolveByURL returns the adapter for the URL's scheme. The failure lists
// every registered scheme for diagnosability.
func (r *Registry) ResolveByURL(rawURL string) (Adapter, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, &UnsupportedSchemeError{Scheme: "", Supported: r.schemes()}
	}

	scheme := strings.ToLower(parsed.Scheme)
	adapter, ok := r.byScheme[scheme]
	if !ok {
		return nil, &UnsupportedSchemeError{Scheme: scheme, Supported: r.schemes()}
	}
	return adapter, nil
}

func (r *Registry) schemes() []string {
	schemes := make([]string, 0, len(r.byScheme))
	for scheme := range r.byScheme {
		schemes = append(schemes, scheme)
	}
	return schemes
}

// NewDefaultRegistry builds the registry with the full fixed adapter set.
func NewDefaultRegistry() *Registry {
	registry := NewRegistry()
	registry.Register(NewPostgresAdapter())
	registry.Register(NewMySQLAdapter())
	return registry
}
