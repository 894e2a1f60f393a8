// Package analysis provides semantic analysis for Dataverse SQL statements.
package analysis

import (
	"strings"

	"github.com/alecthomas/participle/v2/lexer"

	"github.com/rlch/dvql"
	"github.com/rlch/dvql/metadata"
)

// AnalyzedQuery holds semantic analysis results for a single statement.
type AnalyzedQuery struct {
	// Statement is the parsed AST. Nil if parsing failed.
	Statement *dvql.Select

	// ParseError holds the parse error if parsing failed.
	ParseError error

	// Diagnostics contains all errors and warnings found during analysis.
	Diagnostics []Diagnostic

	// Tables contains the tables the statement reads from.
	Tables *TableScope

	// SchemaError is the first metadata error other than an unknown entity.
	// Metadata rules stop checking once it is set.
	SchemaError error

	schema     Schema
	entities   []metadata.EntitySuggestion
	attributes map[string][]metadata.AttributeSuggestion
}

// TableScope maps the names a statement can qualify columns with to the
// tables they refer to.
type TableScope struct {
	// Tables in declaration order. The FROM table comes first.
	Tables []*TableSymbol

	// Duplicates are tables whose name was already taken.
	Duplicates []*TableSymbol

	byName map[string]*TableSymbol
}

// TableSymbol is one table of a FROM or JOIN clause.
type TableSymbol struct {
	// Name is the alias, or the entity name when there is none.
	Name string
	// Entity is the entity logical name.
	Entity string
	Span   Span
	Ref    *dvql.TableRef
	// Join is nil for the FROM table.
	Join *dvql.Join
}

// Lookup returns the table called name, or nil.
func (s *TableScope) Lookup(name string) *TableSymbol {
	if s == nil {
		return nil
	}

	return s.byName[name]
}

// Primary returns the FROM table.
func (s *TableScope) Primary() *TableSymbol {
	if s == nil || len(s.Tables) == 0 {
		return nil
	}

	return s.Tables[0]
}

// Resolve returns the table a column belongs to: its qualifier's table, or
// the FROM table when unqualified.
func (s *TableScope) Resolve(col *dvql.ColumnRef) *TableSymbol {
	if q := col.Qualifier(); q != "" {
		return s.Lookup(q)
	}

	return s.Primary()
}

// Span represents a range in source code.
type Span struct {
	Start lexer.Position
	End   lexer.Position
}

// NameSpan returns the span of name starting at pos. Names never span lines.
func NameSpan(pos lexer.Position, name string) Span {
	end := pos
	end.Offset += len(name)
	end.Column += len(name)

	return Span{Start: pos, End: end}
}

// Diagnostic represents an error or warning found during analysis.
type Diagnostic struct {
	Span     Span
	Severity DiagnosticSeverity
	Message  string
	Code     string // e.g., "unknown-entity", "undefined-alias"
	Source   string // "dvql"
}

// DiagnosticSeverity indicates the severity of a diagnostic.
type DiagnosticSeverity int

// Diagnostic severity constants.
const (
	SeverityError DiagnosticSeverity = iota + 1
	SeverityWarning
	SeverityInformation
	SeverityHint
)

// HasErrors reports whether any diagnostic is an error.
func (q *AnalyzedQuery) HasErrors() bool {
	for _, d := range q.Diagnostics {
		if d.Severity == SeverityError {
			return true
		}
	}

	return false
}

// unquote strips the brackets of a [bracketed] identifier.
func unquote(name string) string {
	if len(name) >= 2 && strings.HasPrefix(name, "[") && strings.HasSuffix(name, "]") {
		return name[1 : len(name)-1]
	}

	return name
}
