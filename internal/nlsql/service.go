/*-------------------------------------------------------------------------
 *
 * DB Query Gateway
 *
 * Copyright (c) 2026, the DB Query Gateway authors
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package nlsql selects prompt-relevant schema context and turns natural
// language prompts into SQL, with a deterministic schema-derived fallback
// when no model is available or the model call fails.
package nlsql

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"dbquery-gateway/internal/database"
	"dbquery-gateway/internal/logging"
)

// DefaultContextLimit caps how many tables enter the prompt context.
const DefaultContextLimit = 10

// fallbackRowLimit is the row cap used when the prompt names none.
const fallbackRowLimit = 1000

// catalogFallbackSQL is emitted when the schema context is empty; listing
// the catalog is the only query guaranteed to exist on both engines.
const catalogFallbackSQL = "SELECT table_schema, table_name FROM information_schema.tables LIMIT 1000"

var limitPattern = regexp.MustCompile(`\b(?:top|limit)\s+(\d{1,5})\b`)

// Generator is the model capability the service needs. The concrete
// implementation lives in the llm package.
type Generator interface {
	IsConfigured() bool
	GenerateSQL(ctx context.Context, prompt, connectionName, schemaContext, dialectLabel string) (string, error)
}

// ColumnSummary is the per-column slice of schema context shown to the
// model.
type ColumnSummary struct {
	Name       string `json:"name"`
	DataType   string `json:"dataType"`
	IsNullable bool   `json:"isNullable"`
}

// TableSummary is the per-table slice of schema context shown to the model.
type TableSummary struct {
	TableType   string          `json:"tableType"`
	Columns     []ColumnSummary `json:"columns"`
	PrimaryKeys []string        `json:"primaryKeys"`
}

// PromptSchema is an ordered table-name-to-summary mapping. Order carries
// the relevance ranking, so JSON serialization must preserve it; a plain
// map would shuffle keys.
type PromptSchema struct {
	names  []string
	tables map[string]TableSummary
}

// TableNames returns the qualified table names in relevance order.
func (p *PromptSchema) TableNames() []string {
	return append([]string(nil), p.names...)
}

// Table looks up a summary by qualified name.
func (p *PromptSchema) Table(name string) (TableSummary, bool) {
	summary, ok := p.tables[name]
	return summary, ok
}

// Len returns the number of tables in the context.
func (p *PromptSchema) Len() int {
	return len(p.names)
}

// MarshalJSON renders the mapping as a JSON object with keys in relevance
// order.
func (p *PromptSchema) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range p.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		value, err := json.Marshal(p.tables[name])
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Service turns prompts into SQL over a schema snapshot.
type Service struct {
	generator Generator
}

// NewService creates the service over a model generator. A nil generator
// is allowed and forces fallback-only operation.
func NewService(generator Generator) *Service {
	return &Service{generator: generator}
}

// PrepareSchemaContext scores every table and view in the snapshot against
// the prompt and keeps the most relevant ones, up to limit. Qualified table
// name hits weigh 4 per prompt term, column name hits 2. Ties break on
// (schema, table) so the selection is deterministic. When nothing scores,
// the first tables in catalog order are used so the model always sees some
// schema.
func (s *Service) PrepareSchemaContext(metadata *database.SchemaMetadata, prompt string, limit int) ([]string, map[string]database.TableMetadata, *PromptSchema) {
	if limit <= 0 {
		limit = DefaultContextLimit
	}

	terms := promptTerms(prompt)
	allItems := make([]database.TableMetadata, 0, len(metadata.Tables)+len(metadata.Views))
	allItems = append(allItems, metadata.Tables...)
	allItems = append(allItems, metadata.Views...)

	type scoredTable struct {
		score int
		table database.TableMetadata
	}
	scored := make([]scoredTable, 0, len(allItems))
	for _, table := range allItems {
		tableKey := strings.ToLower(table.QualifiedName())

		columnNames := make([]string, 0, len(table.Columns))
		for _, column := range table.Columns {
			columnNames = append(columnNames, strings.ToLower(column.ColumnName))
		}

		score := 0
		for term := range terms {
			if strings.Contains(tableKey, term) {
				score += 4
			}
			for _, columnName := range columnNames {
				if strings.Contains(columnName, term) {
					score += 2
					break
				}
			}
		}
		scored = append(scored, scoredTable{score: score, table: table})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		if scored[i].table.SchemaName != scored[j].table.SchemaName {
			return scored[i].table.SchemaName < scored[j].table.SchemaName
		}
		return scored[i].table.TableName < scored[j].table.TableName
	})

	var selected []database.TableMetadata
	for _, entry := range scored {
		if entry.score <= 0 {
			break
		}
		selected = append(selected, entry.table)
		if len(selected) == limit {
			break
		}
	}
	if len(selected) == 0 {
		if len(allItems) > limit {
			selected = allItems[:limit]
		} else {
			selected = allItems
		}
	}

	tableNames := make([]string, 0, len(selected))
	schemaContext := make(map[string]database.TableMetadata, len(selected))
	promptSchema := &PromptSchema{tables: make(map[string]TableSummary, len(selected))}

	for _, table := range selected {
		name := table.QualifiedName()
		tableNames = append(tableNames, name)
		schemaContext[name] = table

		columns := make([]ColumnSummary, len(table.Columns))
		for i, column := range table.Columns {
			columns[i] = ColumnSummary{
				Name:       column.ColumnName,
				DataType:   column.DataType,
				IsNullable: column.IsNullable,
			}
		}
		promptSchema.names = append(promptSchema.names, name)
		promptSchema.tables[name] = TableSummary{
			TableType:   table.TableType,
			Columns:     columns,
			PrimaryKeys: table.PrimaryKeys,
		}
	}

	return tableNames, schemaContext, promptSchema
}

// promptTerms tokenizes the prompt into a lowercase term set; underscores
// split words so "created_at" matches both "created" and "at".
func promptTerms(prompt string) map[string]bool {
	terms := make(map[string]bool)
	for _, field := range strings.Fields(strings.ReplaceAll(prompt, "_", " ")) {
		if term := strings.ToLower(strings.TrimSpace(field)); term != "" {
			terms[term] = true
		}
	}
	return terms
}

// GenerateSQL asks the model for SQL over the prepared context. Generation
// degrades gracefully: with no configured model, or when the model call
// fails, the deterministic fallback is returned instead of an error. Output
// is unvalidated; the caller owns the safety gate.
func (s *Service) GenerateSQL(ctx context.Context, prompt, connectionName string, promptSchema *PromptSchema, dialectLabel string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("natural language prompt cannot be empty")
	}

	fallbackSQL := s.BuildFallbackSQL(prompt, promptSchema)

	if s.generator == nil || !s.generator.IsConfigured() {
		logging.Debug("no model configured, using fallback SQL", "connection", connectionName)
		return fallbackSQL, nil
	}

	contextJSON, err := json.MarshalIndent(promptSchema, "", "  ")
	if err != nil {
		return fallbackSQL, nil
	}

	sqlText, err := s.generator.GenerateSQL(ctx, prompt, connectionName, string(contextJSON), dialectLabel)
	if err != nil {
		logging.Warn("model SQL generation failed, using fallback",
			"connection", connectionName,
			"error", err.Error())
		return fallbackSQL, nil
	}
	return sqlText, nil
}

// BuildFallbackSQL synthesizes a conservative SELECT from the schema
// context alone. Table choice prefers the first context table whose plain
// or qualified name appears in the prompt; a "count" prompt becomes
// COUNT(*), prompt words matching column names become a projection of at
// most 5 columns, anything else selects all columns. An explicit
// "top N"/"limit N" in the prompt sets the row limit, clamped to
// [1, 1000].
func (s *Service) BuildFallbackSQL(prompt string, promptSchema *PromptSchema) string {
	if promptSchema == nil || promptSchema.Len() == 0 {
		return catalogFallbackSQL
	}

	lowerPrompt := strings.ToLower(prompt)
	tableNames := promptSchema.TableNames()
	selectedTable := tableNames[0]
	for _, tableName := range tableNames {
		parts := strings.Split(tableName, ".")
		plainName := strings.ToLower(parts[len(parts)-1])
		if strings.Contains(lowerPrompt, plainName) ||
			strings.Contains(lowerPrompt, strings.ToLower(tableName)) {
			selectedTable = tableName
			break
		}
	}

	summary, _ := promptSchema.Table(selectedTable)

	var baseSQL string
	if strings.Contains(lowerPrompt, "count") {
		baseSQL = fmt.Sprintf("SELECT COUNT(*) AS total_count FROM %s", selectedTable)
	} else {
		var matching []string
		for _, column := range summary.Columns {
			if column.Name != "" && strings.Contains(lowerPrompt, strings.ToLower(column.Name)) {
				matching = append(matching, column.Name)
				if len(matching) == 5 {
					break
				}
			}
		}
		if len(matching) > 0 {
			baseSQL = fmt.Sprintf("SELECT %s FROM %s", strings.Join(matching, ", "), selectedTable)
		} else {
			baseSQL = fmt.Sprintf("SELECT * FROM %s", selectedTable)
		}
	}

	return fmt.Sprintf("%s LIMIT %d", baseSQL, extractLimit(lowerPrompt))
}

// extractLimit pulls an explicit "top N" or "limit N" out of the prompt.
// The last occurrence wins, clamped to [1, 1000]; absent any, 1000.
func extractLimit(lowerPrompt string) int {
	matches := limitPattern.FindAllStringSubmatch(lowerPrompt, -1)
	if len(matches) == 0 {
		return fallbackRowLimit
	}
	parsed, err := strconv.Atoi(matches[len(matches)-1][1])
	if err != nil {
		return fallbackRowLimit
	}
	if parsed < 1 {
		return 1
	}
	if parsed > fallbackRowLimit {
		return fallbackRowLimit
	}
	return parsed
}
