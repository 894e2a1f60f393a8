// Package dvql provides a lexer, parser and FetchXML translator for the SQL
// dialect used to query Dataverse environments.
package dvql

import (
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
)

// Select is a parsed SELECT statement.
type Select struct {
	Pos lexer.Position

	Distinct bool            `parser:"Select @Distinct?"`
	Top      *int            `parser:"(Top @Number)?"`
	All      bool            `parser:"( @Star"`
	Columns  []*SelectColumn `parser:"| @@ (Comma @@)* )"`
	From     *TableRef       `parser:"From @@"`
	Joins    []*Join         `parser:"@@*"`
	Where    *Expr           `parser:"(Where @@)?"`
	OrderBy  []*OrderItem    `parser:"(Order By @@ (Comma @@)*)?"`
	Semi     bool            `parser:"@Semi?"`
}

// TableRef names an entity with an optional alias.
type TableRef struct {
	Pos lexer.Position

	Entity string `parser:"@Ident"`
	Alias  string `parser:"(As? @Ident)?"`
}

// Name returns the alias if set, otherwise the entity name.
func (t *TableRef) Name() string {
	if t.Alias != "" {
		return t.Alias
	}

	return t.Entity
}

// ColumnRef is a possibly alias-qualified column (`name` or `a.name`).
type ColumnRef struct {
	Pos lexer.Position

	Parts []string `parser:"@Ident (Dot @Ident)?"`
}

// Qualifier returns the alias part of a qualified column, or "".
func (c *ColumnRef) Qualifier() string {
	if len(c.Parts) == 2 { //nolint:mnd // alias.column
		return c.Parts[0]
	}

	return ""
}

// Name returns the unqualified column name.
func (c *ColumnRef) Name() string {
	return c.Parts[len(c.Parts)-1]
}

func (c *ColumnRef) String() string {
	return strings.Join(c.Parts, ".")
}

// SelectColumn is one projected column.
type SelectColumn struct {
	Pos lexer.Position

	Column *ColumnRef `parser:"@@"`
	Alias  string     `parser:"(As? @Ident)?"`
}

// Join is a JOIN clause. FetchXML only models inner and left outer links.
type Join struct {
	Pos lexer.Position

	Left  bool       `parser:"( Inner | @Left Outer? )? Join"`
	Table *TableRef  `parser:"@@"`
	On    *ColumnRef `parser:"On @@"`
	To    *ColumnRef `parser:"Eq @@"`
}

// Expr is a disjunction of conjunctions.
type Expr struct {
	Pos lexer.Position

	Or []*AndExpr `parser:"@@ (Or @@)*"`
}

// AndExpr is a conjunction of terms.
type AndExpr struct {
	Pos lexer.Position

	And []*Term `parser:"@@ (And @@)*"`
}

// Term is a parenthesised expression or a single condition.
type Term struct {
	Pos lexer.Position

	Group     *Expr      `parser:"  LParen @@ RParen"`
	Condition *Condition `parser:"| @@"`
}

// Condition compares a column against literal values.
type Condition struct {
	Pos lexer.Position

	Column  *ColumnRef `parser:"@@"`
	Op      string     `parser:"( @(Eq | NotEq | Lt | Gt | Lte | Gte)"`
	Value   *Value     `parser:"  @@"`
	IsNull  *NullCheck `parser:"| @@"`
	Negated bool       `parser:"| @Not?"`
	Like    *string    `parser:"  ( Like @String"`
	In      []*Value   `parser:"  | In LParen @@ (Comma @@)* RParen"`
	Between *Range     `parser:"  | @@ ) )"`
}

// NullCheck is `IS [NOT] NULL`.
type NullCheck struct {
	Is  bool `parser:"@Is"`
	Not bool `parser:"@Not? Null"`
}

// Range is `BETWEEN low AND high`.
type Range struct {
	Low  *Value `parser:"Between @@"`
	High *Value `parser:"And @@"`
}

// Value is a literal.
type Value struct {
	Pos lexer.Position

	Str    *string `parser:"  @String"`
	Number *string `parser:"| @Number"`
	Null   bool    `parser:"| @Null"`
}

// Text returns the literal as it appears in FetchXML.
func (v *Value) Text() string {
	switch {
	case v.Str != nil:
		return *v.Str
	case v.Number != nil:
		return *v.Number
	default:
		return ""
	}
}

// OrderItem is one ORDER BY column.
type OrderItem struct {
	Pos lexer.Position

	Column *ColumnRef `parser:"@@"`
	Desc   bool       `parser:"(Asc | @Desc)?"`
}
