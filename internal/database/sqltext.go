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
	"strings"
)

// stripStringsAndComments replaces string literals with placeholders and
// comments with spaces so later keyword and separator scanning cannot be
// fooled by quoted text. MySQL additionally supports # comments, backslash
// escapes inside strings, and backtick-quoted identifiers.
func stripStringsAndComments(sqlText string, dialect Dialect) (string, error) {
	var result strings.Builder
	isMySQL := dialect == DialectMySQL
	i := 0
	n := len(sqlText)

	for i < n {
		// Single-line comment starting with --
		if i+1 < n && sqlText[i] == '-' && sqlText[i+1] == '-' {
			for i < n && sqlText[i] != '\n' {
				i++
			}
			result.WriteByte(' ')
			continue
		}

		// Single-line comment starting with # (MySQL only)
		if isMySQL && sqlText[i] == '#' {
			for i < n && sqlText[i] != '\n' {
				i++
			}
			result.WriteByte(' ')
			continue
		}

		// Multi-line comment /* */
		if i+1 < n && sqlText[i] == '/' && sqlText[i+1] == '*' {
			i += 2
			for {
				if i+1 >= n {
					return "", fmt.Errorf("unterminated comment")
				}
				if sqlText[i] == '*' && sqlText[i+1] == '/' {
					i += 2
					break
				}
				i++
			}
			result.WriteByte(' ')
			continue
		}

		// Single-quoted string
		if sqlText[i] == '\'' {
			i++
			closed := false
			for i < n {
				if sqlText[i] == '\'' {
					if i+1 < n && sqlText[i+1] == '\'' {
						i += 2 // escaped quote
						continue
					}
					i++
					closed = true
					break
				}
				if isMySQL && sqlText[i] == '\\' && i+1 < n {
					i += 2 // backslash escape
					continue
				}
				i++
			}
			if !closed {
				return "", fmt.Errorf("unterminated string literal")
			}
			result.WriteString("''")
			continue
		}

		// Double-quoted identifier (or string under MySQL ANSI_QUOTES)
		if sqlText[i] == '"' {
			i++
			closed := false
			for i < n {
				if sqlText[i] == '"' {
					if i+1 < n && sqlText[i+1] == '"' {
						i += 2
						continue
					}
					i++
					closed = true
					break
				}
				if isMySQL && sqlText[i] == '\\' && i+1 < n {
					i += 2
					continue
				}
				i++
			}
			if !closed {
				return "", fmt.Errorf("unterminated quoted identifier")
			}
			result.WriteString(`""`)
			continue
		}

		// Backtick-quoted identifier (MySQL only)
		if isMySQL && sqlText[i] == '`' {
			i++
			closed := false
			for i < n {
				if sqlText[i] == '`' {
					i++
					closed = true
					break
				}
				i++
			}
			if !closed {
				return "", fmt.Errorf("unterminated quoted identifier")
			}
			result.WriteString("``")
			continue
		}

		result.WriteByte(sqlText[i])
		i++
	}

	return result.String(), nil
}

// countStatements counts semicolon-separated statements in cleaned SQL.
// Trailing semicolons do not start a new statement.
func countStatements(cleaned string) int {
	count := 0
	for _, segment := range strings.Split(cleaned, ";") {
		if strings.TrimSpace(segment) != "" {
			count++
		}
	}
	return count
}

// topLevelWords returns the lowercase bare words of cleaned SQL that sit at
// parenthesis depth zero, in order.
func topLevelWords(cleaned string) []string {
	var words []string
	var current strings.Builder
	depth := 0

	flush := func() {
		if current.Len() > 0 {
			words = append(words, strings.ToLower(current.String()))
			current.Reset()
		}
	}

	for i := 0; i < len(cleaned); i++ {
		c := cleaned[i]
		switch {
		case c == '(':
			flush()
			depth++
		case c == ')':
			flush()
			if depth > 0 {
				depth--
			}
		case depth > 0:
			// Inside a subexpression; only depth tracking matters here.
		case isWordByte(c):
			current.WriteByte(c)
		default:
			flush()
		}
	}
	flush()
	return words
}

func isWordByte(c byte) bool {
	return c == '_' || (c >= '0' && c <= '9') ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// statementKeywords is the set of words that can begin a SQL statement.
// Scanning top-level words for the first of these identifies the statement
// kind even when a WITH clause precedes it.
var statementKeywords = map[string]bool{
	"select": true, "insert": true, "update": true, "delete": true,
	"merge": true, "replace": true, "create": true, "drop": true,
	"alter": true, "truncate": true, "grant": true, "revoke": true,
	"call": true, "execute": true, "set": true, "show": true,
	"explain": true, "analyze": true, "vacuum": true, "copy": true,
	"load": true, "handler": true, "rename": true, "lock": true,
	"unlock": true, "begin": true, "commit": true, "rollback": true,
	"do": true, "use": true, "prepare": true, "deallocate": true,
}

// statementKind returns the first top-level statement keyword in cleaned
// SQL, or an empty string when none is found. A statement may open with a
// parenthesized query, as in (SELECT ...) UNION (SELECT ...); when no
// top-level keyword exists the first parenthesized group classifies it.
func statementKind(cleaned string) string {
	for _, word := range topLevelWords(cleaned) {
		if statementKeywords[word] {
			return word
		}
	}
	if inner, ok := firstParenGroup(cleaned); ok {
		return statementKind(inner)
	}
	return ""
}

// firstParenGroup returns the contents of the first depth-zero
// parenthesized group in cleaned SQL.
func firstParenGroup(cleaned string) (string, bool) {
	depth := 0
	start := -1
	for i := 0; i < len(cleaned); i++ {
		switch cleaned[i] {
		case '(':
			if depth == 0 {
				start = i + 1
			}
			depth++
		case ')':
			depth--
			if depth == 0 && start >= 0 {
				return cleaned[start:i], true
			}
		}
	}
	return "", false
}

// statementEnd returns the offset just past the last significant byte of
// sqlText. Trailing whitespace, comments, and statement-terminating
// semicolons are excluded, so text appended at the offset cannot land
// inside a comment. The input must already have passed
// stripStringsAndComments; literals and comments are known well formed.
func statementEnd(sqlText string, dialect Dialect) int {
	isMySQL := dialect == DialectMySQL
	end := 0
	i := 0
	n := len(sqlText)

	for i < n {
		c := sqlText[i]
		switch {
		case i+1 < n && c == '-' && sqlText[i+1] == '-':
			for i < n && sqlText[i] != '\n' {
				i++
			}
		case isMySQL && c == '#':
			for i < n && sqlText[i] != '\n' {
				i++
			}
		case i+1 < n && c == '/' && sqlText[i+1] == '*':
			i += 2
			for i+1 < n && (sqlText[i] != '*' || sqlText[i+1] != '/') {
				i++
			}
			i += 2
		case c == '\'' || c == '"' || (isMySQL && c == '`'):
			i++
			for i < n {
				if sqlText[i] == c {
					if c != '`' && i+1 < n && sqlText[i+1] == c {
						i += 2 // doubled quote stays inside the literal
						continue
					}
					i++
					break
				}
				if isMySQL && c != '`' && sqlText[i] == '\\' && i+1 < n {
					i += 2
					continue
				}
				i++
			}
			end = i
		case c == ';' || c == ' ' || c == '\t' || c == '\r' || c == '\n':
			i++
		default:
			i++
			end = i
		}
	}
	return end
}

// hasTopLevelLimit reports whether cleaned SQL carries a row-limit clause at
// the top level: LIMIT, or the standard FETCH FIRST ... ROWS ONLY form.
func hasTopLevelLimit(cleaned string) bool {
	words := topLevelWords(cleaned)
	for i, word := range words {
		if word == "limit" {
			return true
		}
		if word == "fetch" && i+1 < len(words) &&
			(words[i+1] == "first" || words[i+1] == "next") {
			return true
		}
	}
	return false
}
