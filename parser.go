package dvql

import (
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// sqlLexer is the custom lexer for the query dialect.
// Implements lexer.Definition interface for full control over tokenization.
var sqlLexer = sqlDefinition{}

var parser = participle.MustBuild[Select](
	participle.Lexer(sqlLexer),
	participle.Elide("Whitespace", "Comment"),
	participle.Map(unquoteString, "String"),
	participle.Map(unbracketIdent, "Ident"),
	participle.UseLookahead(2), //nolint:mnd // "AS alias" and "NOT LIKE" need two tokens
)

// Parse parses a single SELECT statement.
// Lexer errors are returned as *LexerError; grammar errors as participle.Error.
func Parse(query string) (*Select, error) {
	return parser.ParseString("", query)
}

// ExportedLexer returns the lexer definition for testing purposes.
//
//nolint:ireturn // participle interface
func ExportedLexer() lexer.Definition {
	return sqlLexer
}

// unquoteString strips the quotes of a 'string' token and collapses '' escapes.
func unquoteString(tok lexer.Token) (lexer.Token, error) {
	v := tok.Value
	if len(v) >= 2 { //nolint:mnd // surrounding quotes
		v = v[1 : len(v)-1]
	}

	tok.Value = strings.ReplaceAll(v, "''", "'")

	return tok, nil
}

// unbracketIdent strips the brackets of a [bracketed] identifier.
func unbracketIdent(tok lexer.Token) (lexer.Token, error) {
	if strings.HasPrefix(tok.Value, "[") && strings.HasSuffix(tok.Value, "]") {
		tok.Value = tok.Value[1 : len(tok.Value)-1]
	}

	return tok, nil
}
