/*-------------------------------------------------------------------------
 *
 * DB Query Gateway
 *
 * Copyright (c) 2026, the DB Query Gateway authors
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package api exposes the gateway's HTTP surface: connection lifecycle
// under /api/v1/dbs and query execution under /api/v1/dbs/{name}/query.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"

	"dbquery-gateway/internal/database"
	"dbquery-gateway/internal/llm"
)

// connectionNamePattern constrains connection names to letters, digits,
// hyphen, and underscore.
var connectionNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ConnectionUpsertRequest is the body of PUT /api/v1/dbs/{name}.
type ConnectionUpsertRequest struct {
	URL string `json:"url"`
}

// DatabaseDetailResponse is the body of GET /api/v1/dbs/{name}.
type DatabaseDetailResponse struct {
	Connection *database.Connection     `json:"connection"`
	Metadata   *database.SchemaMetadata `json:"metadata"`
}

// SQLQueryPayload is the body of POST /api/v1/dbs/{name}/query.
type SQLQueryPayload struct {
	SQL string `json:"sql"`
}

// NaturalQueryPayload is the body of POST /api/v1/dbs/{name}/query/natural.
type NaturalQueryPayload struct {
	Prompt string `json:"prompt"`
}

// healthProber is the slice of the LLM client the health endpoint needs.
type healthProber interface {
	HealthProbe(ctx context.Context) llm.HealthStatus
}

// Gateway is the orchestration surface the API exposes. The orchestrator
// package provides the production implementation.
type Gateway interface {
	ListConnections() ([]database.Connection, error)
	UpsertConnectionAndMetadata(ctx context.Context, name, rawURL string) (*database.Connection, error)
	GetDatabaseDetail(name string) (*database.Connection, *database.SchemaMetadata, error)
	RefreshMetadata(ctx context.Context, name string) (*database.SchemaMetadata, error)
	DeleteConnection(name string) error
	ExecuteSQL(ctx context.Context, name, sqlText string) (*database.QueryResult, error)
	GenerateSQLFromNatural(ctx context.Context, name, prompt string) (*database.NaturalQueryResponse, error)
}

// Handler serves the gateway API over one orchestrator.
type Handler struct {
	orchestrator Gateway
	llmProber    healthProber
}

// NewHandler creates the API handler. llmProber may be nil when no model is
// configured; /health/llm then reports not configured.
func NewHandler(gateway Gateway, llmProber healthProber) *Handler {
	return &Handler{orchestrator: gateway, llmProber: llmProber}
}

// Routes registers all endpoints on a fresh mux, wrapped in request
// logging.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/dbs", h.handleListDatabases)
	mux.HandleFunc("PUT /api/v1/dbs/{name}", h.handleUpsertDatabase)
	mux.HandleFunc("GET /api/v1/dbs/{name}", h.handleGetDatabase)
	mux.HandleFunc("POST /api/v1/dbs/{name}/refresh", h.handleRefreshMetadata)
	mux.HandleFunc("DELETE /api/v1/dbs/{name}", h.handleDeleteDatabase)
	mux.HandleFunc("POST /api/v1/dbs/{name}/query", h.handleRunQuery)
	mux.HandleFunc("POST /api/v1/dbs/{name}/query/natural", h.handleNaturalQuery)
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /health/llm", h.handleLLMHealth)

	return RequestLogger(mux)
}

// connectionName extracts and validates the {name} path segment. On
// failure it writes the error response and returns false.
func (h *Handler) connectionName(w http.ResponseWriter, r *http.Request) (string, bool) {
	name := r.PathValue("name")
	if !connectionNamePattern.MatchString(name) {
		writeError(w, http.StatusBadRequest, database.QueryError{
			ErrorType: "validation",
			ErrorCode: database.CodeConnectionValidationFailed,
			Message:   "connection name must contain only letters, digits, hyphen, and underscore",
		})
		return "", false
	}
	return name, true
}

func (h *Handler) handleListDatabases(w http.ResponseWriter, r *http.Request) {
	connections, err := h.orchestrator.ListConnections()
	if err != nil {
		writeError(w, http.StatusInternalServerError, database.QueryError{
			ErrorType: "connection",
			ErrorCode: database.CodeConnectionValidationFailed,
			Message:   "failed to list connections",
			Details:   err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, connections)
}

func (h *Handler) handleUpsertDatabase(w http.ResponseWriter, r *http.Request) {
	name, ok := h.connectionName(w, r)
	if !ok {
		return
	}

	var req ConnectionUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeError(w, http.StatusBadRequest, database.QueryError{
			ErrorType: "validation",
			ErrorCode: database.CodeConnectionValidationFailed,
			Message:   "request body must carry a non-empty url",
		})
		return
	}

	conn, err := h.orchestrator.UpsertConnectionAndMetadata(r.Context(), name, req.URL)
	if err != nil {
		var validationErr *database.ConnectionValidationError
		if errors.As(err, &validationErr) {
			writeError(w, http.StatusBadRequest, database.QueryError{
				ErrorType: "connection",
				ErrorCode: database.CodeConnectionValidationFailed,
				Message:   validationErr.Error(),
			})
			return
		}
		writeError(w, http.StatusInternalServerError, database.QueryError{
			ErrorType: "connection",
			ErrorCode: database.CodeMetadataFetchFailed,
			Message:   "failed to fetch metadata",
			Details:   err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, conn)
}

func (h *Handler) handleGetDatabase(w http.ResponseWriter, r *http.Request) {
	name, ok := h.connectionName(w, r)
	if !ok {
		return
	}

	conn, metadata, err := h.orchestrator.GetDatabaseDetail(name)
	if err != nil {
		writeNotFoundOrInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DatabaseDetailResponse{Connection: conn, Metadata: metadata})
}

func (h *Handler) handleRefreshMetadata(w http.ResponseWriter, r *http.Request) {
	name, ok := h.connectionName(w, r)
	if !ok {
		return
	}

	metadata, err := h.orchestrator.RefreshMetadata(r.Context(), name)
	if err != nil {
		var notFound *database.DatabaseNotFoundError
		if errors.As(err, &notFound) {
			writeError(w, http.StatusNotFound, database.QueryError{
				ErrorType: "connection",
				ErrorCode: database.CodeDatabaseNotFound,
				Message:   err.Error(),
			})
			return
		}
		writeError(w, http.StatusInternalServerError, database.QueryError{
			ErrorType: "connection",
			ErrorCode: database.CodeMetadataRefreshFailed,
			Message:   "failed to refresh metadata",
			Details:   err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, metadata)
}

func (h *Handler) handleDeleteDatabase(w http.ResponseWriter, r *http.Request) {
	name, ok := h.connectionName(w, r)
	if !ok {
		return
	}

	if err := h.orchestrator.DeleteConnection(name); err != nil {
		writeNotFoundOrInternal(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRunQuery(w http.ResponseWriter, r *http.Request) {
	name, ok := h.connectionName(w, r)
	if !ok {
		return
	}

	var payload SQLQueryPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.SQL == "" {
		writeError(w, http.StatusBadRequest, database.QueryError{
			ErrorType: "validation",
			ErrorCode: database.CodeSQLValidationFailed,
			Message:   "request body must carry a non-empty sql field",
		})
		return
	}

	result, err := h.orchestrator.ExecuteSQL(r.Context(), name, payload.SQL)
	if err != nil {
		var notFound *database.DatabaseNotFoundError
		var validationErr *database.QueryValidationError
		var connectionErr *database.ConnectionValidationError
		switch {
		case errors.As(err, &notFound):
			writeError(w, http.StatusNotFound, database.QueryError{
				ErrorType: "connection",
				ErrorCode: database.CodeDatabaseNotFound,
				Message:   err.Error(),
				Query:     payload.SQL,
			})
		case errors.As(err, &validationErr):
			writeError(w, http.StatusBadRequest, database.QueryError{
				ErrorType: "validation",
				ErrorCode: database.CodeSQLValidationFailed,
				Message:   err.Error(),
				Query:     payload.SQL,
			})
		case errors.As(err, &connectionErr):
			writeError(w, http.StatusBadRequest, database.QueryError{
				ErrorType: "connection",
				ErrorCode: database.CodeConnectionValidationFailed,
				Message:   err.Error(),
				Query:     payload.SQL,
			})
		default:
			writeError(w, http.StatusInternalServerError, database.QueryError{
				ErrorType: "execution",
				ErrorCode: database.CodeQueryExecutionFailed,
				Message:   "failed to execute SQL query",
				Details:   err.Error(),
				Query:     payload.SQL,
			})
		}
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleNaturalQuery(w http.ResponseWriter, r *http.Request) {
	name, ok := h.connectionName(w, r)
	if !ok {
		return
	}

	var payload NaturalQueryPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Prompt == "" {
		writeError(w, http.StatusBadRequest, database.QueryError{
			ErrorType: "validation",
			ErrorCode: database.CodeSQLGenerationFailed,
			Message:   "request body must carry a non-empty prompt field",
		})
		return
	}

	response, err := h.orchestrator.GenerateSQLFromNatural(r.Context(), name, payload.Prompt)
	if err != nil {
		var notFound *database.DatabaseNotFoundError
		var metadataMissing *database.MetadataNotFoundError
		var validationErr *database.QueryValidationError
		var connectionErr *database.ConnectionValidationError
		switch {
		case errors.As(err, &notFound):
			writeError(w, http.StatusNotFound, database.QueryError{
				ErrorType: "connection",
				ErrorCode: database.CodeDatabaseNotFound,
				Message:   err.Error(),
			})
		case errors.As(err, &metadataMissing):
			writeError(w, http.StatusNotFound, database.QueryError{
				ErrorType: "validation",
				ErrorCode: database.CodeMetadataNotFound,
				Message:   err.Error(),
			})
		case errors.As(err, &validationErr):
			writeError(w, http.StatusBadRequest, database.QueryError{
				ErrorType: "validation",
				ErrorCode: database.CodeGeneratedSQLInvalid,
				Message:   err.Error(),
			})
		case errors.As(err, &connectionErr):
			writeError(w, http.StatusBadRequest, database.QueryError{
				ErrorType: "connection",
				ErrorCode: database.CodeConnectionValidationFailed,
				Message:   err.Error(),
			})
		default:
			writeError(w, http.StatusInternalServerError, database.QueryError{
				ErrorType: "execution",
				ErrorCode: database.CodeSQLGenerationFailed,
				Message:   "failed to generate SQL from natural language",
				Details:   err.Error(),
			})
		}
		return
	}
	writeJSON(w, http.StatusOK, response)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleLLMHealth(w http.ResponseWriter, r *http.Request) {
	if h.llmProber == nil {
		writeJSON(w, http.StatusOK, llm.HealthStatus{Status: "not_configured"})
		return
	}
	writeJSON(w, http.StatusOK, h.llmProber.HealthProbe(r.Context()))
}

// writeNotFoundOrInternal maps the two not-found kinds onto 404 and
// everything else onto 500.
func writeNotFoundOrInternal(w http.ResponseWriter, err error) {
	var notFound *database.DatabaseNotFoundError
	var metadataMissing *database.MetadataNotFoundError
	switch {
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, database.QueryError{
			ErrorType: "connection",
			ErrorCode: database.CodeDatabaseNotFound,
			Message:   err.Error(),
		})
	case errors.As(err, &metadataMissing):
		writeError(w, http.StatusNotFound, database.QueryError{
			ErrorType: "validation",
			ErrorCode: database.CodeMetadataNotFound,
			Message:   err.Error(),
		})
	default:
		writeError(w, http.StatusInternalServerError, database.QueryError{
			ErrorType: "execution",
			ErrorCode: database.CodeQueryExecutionFailed,
			Message:   err.Error(),
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // Error would only occur if connection is closed
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, payload database.QueryError) {
	writeJSON(w, status, payload)
}
