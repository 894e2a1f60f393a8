package analysis

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/rlch/dvql"
	"github.com/rlch/dvql/metadata"
)

// Rule represents a semantic analysis check.
// Inspired by go/analysis.Analyzer pattern.
type Rule struct {
	// Name is a short identifier for the rule (used in diagnostic codes).
	Name string

	// Doc is a brief description of what the rule checks.
	Doc string

	// Severity is the default severity for diagnostics from this rule.
	Severity DiagnosticSeverity

	// NeedsSchema skips the rule when no metadata is available.
	NeedsSchema bool

	// Run executes the rule and appends any diagnostics to the query.
	Run func(ctx context.Context, q *AnalyzedQuery)
}

// DefaultRules returns all built-in semantic analysis rules.
func DefaultRules() []*Rule {
	return []*Rule{
		// Error-level checks.
		duplicateAliasRule,
		undefinedAliasRule,
		invalidJoinRule,

		// Warning-level checks.
		unknownEntityRule,
		unknownAttributeRule,

		// Hint-level checks.
		selectAllRule,
	}
}

// ----------------------------------------------------------------------------
// Rule: duplicate-alias
// ----------------------------------------------------------------------------

var duplicateAliasRule = &Rule{
	Name:     "duplicate-alias",
	Doc:      "Reports tables that reuse a name already given to another table.",
	Severity: SeverityError,
	Run:      checkDuplicateAliases,
}

func checkDuplicateAliases(_ context.Context, q *AnalyzedQuery) {
	for _, sym := range q.Tables.Duplicates {
		msg := "duplicate table name: " + sym.Name
		if sym.Ref.Alias != "" {
			msg = "duplicate table alias: " + sym.Name
		}

		q.report(Diagnostic{
			Span:     sym.Span,
			Severity: SeverityError,
			Message:  msg,
			Code:     "duplicate-alias",
		})
	}
}

// ----------------------------------------------------------------------------
// Rule: undefined-alias
// ----------------------------------------------------------------------------

var undefinedAliasRule = &Rule{
	Name:     "undefined-alias",
	Doc:      "Reports columns qualified with a name no table declares.",
	Severity: SeverityError,
	Run:      checkUndefinedAliases,
}

func checkUndefinedAliases(_ context.Context, q *AnalyzedQuery) {
	for _, col := range columnRefs(q.Statement) {
		qual := col.Qualifier()
		if qual == "" || q.Tables.Lookup(qual) != nil {
			continue
		}

		q.report(Diagnostic{
			Span:     NameSpan(col.Pos, qual),
			Severity: SeverityError,
			Message:  "undefined table alias: " + qual,
			Code:     "undefined-alias",
		})
	}
}

// ----------------------------------------------------------------------------
// Rule: invalid-join
// ----------------------------------------------------------------------------

var invalidJoinRule = &Rule{
	Name:     "invalid-join",
	Doc:      "Reports joins whose ON clause does not reference the joined table.",
	Severity: SeverityError,
	Run:      checkInvalidJoins,
}

func checkInvalidJoins(_ context.Context, q *AnalyzedQuery) {
	for _, join := range q.Statement.Joins {
		name := join.Table.Name()
		if join.On.Qualifier() == name || join.To.Qualifier() == name {
			continue
		}

		q.report(Diagnostic{
			Span:     NameSpan(join.On.Pos, join.On.String()),
			Severity: SeverityError,
			Message:  "ON clause does not reference " + name,
			Code:     "invalid-join",
		})
	}
}

// ----------------------------------------------------------------------------
// Rule: unknown-entity
// ----------------------------------------------------------------------------

var unknownEntityRule = &Rule{
	Name:        "unknown-entity",
	Doc:         "Reports tables that are not entities of the active environment.",
	Severity:    SeverityWarning,
	NeedsSchema: true,
	Run:         checkUnknownEntities,
}

func checkUnknownEntities(ctx context.Context, q *AnalyzedQuery) {
	for _, sym := range slices.Concat(q.Tables.Tables, q.Tables.Duplicates) {
		name := unquote(sym.Entity)

		entity, ok := q.entity(ctx, name)
		if !ok {
			return
		}

		if entity != nil {
			continue
		}

		q.report(Diagnostic{
			Span:     sym.Span,
			Severity: SeverityWarning,
			Message:  "unknown entity: " + name + didYouMean(name, entityNames(q.entities)),
			Code:     "unknown-entity",
		})
	}
}

// ----------------------------------------------------------------------------
// Rule: unknown-attribute
// ----------------------------------------------------------------------------

var unknownAttributeRule = &Rule{
	Name:        "unknown-attribute",
	Doc:         "Reports columns that are not attributes of their table's entity.",
	Severity:    SeverityWarning,
	NeedsSchema: true,
	Run:         checkUnknownAttributes,
}

func checkUnknownAttributes(ctx context.Context, q *AnalyzedQuery) {
	selectAliases := make(map[string]bool)
	for _, col := range q.Statement.Columns {
		if col.Alias != "" {
			selectAliases[col.Alias] = true
		}
	}

	orderBy := make(map[*dvql.ColumnRef]bool, len(q.Statement.OrderBy))
	for _, item := range q.Statement.OrderBy {
		orderBy[item.Column] = true
	}

	for _, col := range columnRefs(q.Statement) {
		// ORDER BY may name a select-list alias.
		if orderBy[col] && col.Qualifier() == "" && selectAliases[col.Name()] {
			continue
		}

		sym := q.Tables.Resolve(col)
		if sym == nil {
			continue
		}

		entityName := unquote(sym.Entity)

		entity, ok := q.entity(ctx, entityName)
		if !ok {
			return
		}

		// Reported by unknown-entity.
		if entity == nil {
			continue
		}

		attrs, ok := q.attributesOf(ctx, entityName)
		if !ok {
			return
		}

		// No attribute metadata for this entity.
		if len(attrs) == 0 {
			continue
		}

		name := unquote(col.Name())
		if hasAttribute(attrs, name) {
			continue
		}

		start := col.Pos
		if qual := col.Qualifier(); qual != "" {
			start.Offset += len(qual) + 1
			start.Column += len(qual) + 1
		}

		q.report(Diagnostic{
			Span:     NameSpan(start, col.Name()),
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("unknown attribute: %s.%s%s", entityName, name, didYouMean(name, attributeNames(attrs))),
			Code:     "unknown-attribute",
		})
	}
}

func hasAttribute(attrs []metadata.AttributeSuggestion, name string) bool {
	for _, a := range attrs {
		if a.LogicalName == name {
			return true
		}
	}

	return false
}

// ----------------------------------------------------------------------------
// Rule: select-all
// ----------------------------------------------------------------------------

var selectAllRule = &Rule{
	Name:     "select-all",
	Doc:      "Reports SELECT * queries, which fetch every attribute of the entity.",
	Severity: SeverityHint,
	Run:      checkSelectAll,
}

func checkSelectAll(_ context.Context, q *AnalyzedQuery) {
	if !q.Statement.All {
		return
	}

	q.report(Diagnostic{
		Span:     NameSpan(q.Statement.Pos, "SELECT"),
		Severity: SeverityHint,
		Message:  "SELECT * fetches every attribute",
		Code:     "select-all",
	})
}

// ----------------------------------------------------------------------------
// Helpers
// ----------------------------------------------------------------------------

// columnRefs returns every column reference of stmt in source order of
// clauses: select list, joins, where, order by.
func columnRefs(stmt *dvql.Select) []*dvql.ColumnRef {
	var refs []*dvql.ColumnRef

	for _, col := range stmt.Columns {
		refs = append(refs, col.Column)
	}

	for _, join := range stmt.Joins {
		refs = append(refs, join.On, join.To)
	}

	var walk func(e *dvql.Expr)

	walk = func(e *dvql.Expr) {
		if e == nil {
			return
		}

		for _, and := range e.Or {
			for _, term := range and.And {
				if term.Group != nil {
					walk(term.Group)

					continue
				}

				refs = append(refs, term.Condition.Column)
			}
		}
	}

	walk(stmt.Where)

	for _, item := range stmt.OrderBy {
		refs = append(refs, item.Column)
	}

	return refs
}

// didYouMean suggests a candidate that differs from name only in case.
func didYouMean(name string, candidates []string) string {
	for _, c := range candidates {
		if strings.EqualFold(c, name) {
			return fmt.Sprintf(" (did you mean %s?)", c)
		}
	}

	return ""
}

func entityNames(entities []metadata.EntitySuggestion) []string {
	names := make([]string, len(entities))
	for i, e := range entities {
		names[i] = e.LogicalName
	}

	return names
}

func attributeNames(attrs []metadata.AttributeSuggestion) []string {
	names := make([]string, len(attrs))
	for i, a := range attrs {
		names[i] = a.LogicalName
	}

	return names
}
