package analysis

import (
	"context"
	"errors"

	"github.com/alecthomas/participle/v2"

	"github.com/rlch/dvql"
	"github.com/rlch/dvql/metadata"
)

// Schema is the metadata of one environment.
type Schema interface {
	EntitySuggestions(ctx context.Context) ([]metadata.EntitySuggestion, error)
	AttributeSuggestions(ctx context.Context, entity string) ([]metadata.AttributeSuggestion, error)
}

// EnvironmentSchema reads environmentID's metadata from repo.
func EnvironmentSchema(repo metadata.Repository, environmentID string) Schema { //nolint:ireturn
	return &environmentSchema{repo: repo, env: environmentID}
}

type environmentSchema struct {
	repo metadata.Repository
	env  string
}

func (s *environmentSchema) EntitySuggestions(ctx context.Context) ([]metadata.EntitySuggestion, error) {
	return s.repo.EntitySuggestions(ctx, s.env)
}

func (s *environmentSchema) AttributeSuggestions(
	ctx context.Context,
	entity string,
) ([]metadata.AttributeSuggestion, error) {
	return s.repo.AttributeSuggestions(ctx, s.env, entity)
}

// Analyzer performs semantic analysis on SQL statements.
type Analyzer struct {
	// schema resolves entity and attribute names.
	// Nil skips the metadata rules.
	schema Schema

	// rules is the set of semantic checks to run.
	rules []*Rule
}

// NewAnalyzer creates a new analyzer with default rules.
// Pass nil for schema to check the statement on its own.
func NewAnalyzer(schema Schema) *Analyzer {
	return &Analyzer{
		schema: schema,
		rules:  DefaultRules(),
	}
}

// NewAnalyzerWithRules creates an analyzer with custom rules.
func NewAnalyzerWithRules(schema Schema, rules []*Rule) *Analyzer {
	return &Analyzer{
		schema: schema,
		rules:  rules,
	}
}

// Analyze parses and analyzes a query.
func (a *Analyzer) Analyze(ctx context.Context, source string) *AnalyzedQuery {
	stmt, err := dvql.Parse(source)
	if err != nil {
		return &AnalyzedQuery{
			ParseError:  err,
			Diagnostics: []Diagnostic{ParseErrorDiagnostic(err)},
		}
	}

	return a.AnalyzeStatement(ctx, stmt)
}

// AnalyzeStatement analyzes an already parsed statement.
func (a *Analyzer) AnalyzeStatement(ctx context.Context, stmt *dvql.Select) *AnalyzedQuery {
	result := &AnalyzedQuery{
		Statement:   stmt,
		Diagnostics: []Diagnostic{},
		Tables:      buildScope(stmt),
		schema:      a.schema,
	}

	for _, rule := range a.rules {
		if rule.NeedsSchema && !result.hasSchema() {
			continue
		}

		rule.Run(ctx, result)
	}

	return result
}

// ParseErrorDiagnostic converts a parse or lexer error to a diagnostic.
// The span is empty when the error carries no position.
func ParseErrorDiagnostic(err error) Diagnostic {
	d := Diagnostic{
		Severity: SeverityError,
		Message:  err.Error(),
		Code:     "syntax",
		Source:   "dvql",
	}

	var perr participle.Error
	if errors.As(err, &perr) {
		pos := perr.Position()
		d.Span = Span{Start: pos, End: pos}
		d.Message = perr.Message()
	}

	return d
}

// buildScope collects the FROM and JOIN tables.
func buildScope(stmt *dvql.Select) *TableScope {
	scope := &TableScope{byName: make(map[string]*TableSymbol)}

	add := func(ref *dvql.TableRef, join *dvql.Join) {
		sym := &TableSymbol{
			Name:   ref.Name(),
			Entity: ref.Entity,
			Span:   NameSpan(ref.Pos, ref.Entity),
			Ref:    ref,
			Join:   join,
		}

		if _, dup := scope.byName[sym.Name]; dup {
			scope.Duplicates = append(scope.Duplicates, sym)

			return
		}

		scope.byName[sym.Name] = sym
		scope.Tables = append(scope.Tables, sym)
	}

	if stmt.From != nil {
		add(stmt.From, nil)
	}

	for _, join := range stmt.Joins {
		add(join.Table, join)
	}

	return scope
}

func (q *AnalyzedQuery) hasSchema() bool {
	return q.schema != nil && q.SchemaError == nil
}

// entity returns the metadata of an entity, matching names exactly.
// ok is false when the schema failed; entity is nil when it has no such entity.
func (q *AnalyzedQuery) entity(ctx context.Context, name string) (*metadata.EntitySuggestion, bool) {
	if q.entities == nil {
		entities, err := q.schema.EntitySuggestions(ctx)
		if err != nil {
			q.SchemaError = err

			return nil, false
		}

		q.entities = entities
	}

	for i := range q.entities {
		if q.entities[i].LogicalName == name {
			return &q.entities[i], true
		}
	}

	return nil, true
}

// attributesOf returns the attributes of entity, fetched once per analysis.
func (q *AnalyzedQuery) attributesOf(ctx context.Context, entity string) ([]metadata.AttributeSuggestion, bool) {
	if attrs, ok := q.attributes[entity]; ok {
		return attrs, true
	}

	attrs, err := q.schema.AttributeSuggestions(ctx, entity)
	if err != nil && !errors.Is(err, metadata.ErrUnknownEntity) {
		q.SchemaError = err

		return nil, false
	}

	if q.attributes == nil {
		q.attributes = make(map[string][]metadata.AttributeSuggestion)
	}

	q.attributes[entity] = attrs

	return attrs, true
}

func (q *AnalyzedQuery) report(d Diagnostic) {
	d.Source = "dvql"
	q.Diagnostics = append(q.Diagnostics, d)
}
