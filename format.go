package dvql

import (
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
)

// Format rewrites a query with upper-case keywords, one clause per line and
// normalised spacing. Comments are kept. Input that does not parse is still
// formatted as long as it lexes.
func Format(query string) (string, error) {
	lex, err := sqlLexer.LexString("", query)
	if err != nil {
		return "", err
	}

	f := &formatter{lineStart: true}

	for {
		tok, err := lex.Next()
		if err != nil {
			return "", err
		}

		if tok.EOF() {
			break
		}

		f.token(tok)
	}

	out := strings.TrimSpace(f.b.String())
	if out == "" {
		return "", nil
	}

	return out + "\n", nil
}

type formatter struct {
	b         strings.Builder
	prev      lexer.TokenType
	lineStart bool
}

func (f *formatter) write(s string) {
	f.b.WriteString(s)
}

func (f *formatter) newline() {
	if !f.lineStart {
		f.write("\n")
		f.lineStart = true
	}
}

func (f *formatter) token(tok lexer.Token) {
	switch tok.Type {
	case TokenWhitespace:
		return
	case TokenComment:
		if !f.lineStart {
			f.write(" ")
		}

		f.write(strings.TrimRight(tok.Value, "\r"))
		f.lineStart = false
		f.newline()
		f.prev = TokenComment

		return
	}

	value := tok.Value
	if IsKeywordToken(tok.Type) {
		value = strings.ToUpper(value)
	}

	switch {
	case startsClause(tok.Type, f.prev):
		f.newline()
	case !f.lineStart && spaceBetween(f.prev, tok.Type):
		f.write(" ")
	}

	f.write(value)
	f.lineStart = false
	f.prev = tok.Type
}

func startsClause(typ, prev lexer.TokenType) bool {
	switch typ {
	case TokenSelect, TokenFrom, TokenWhere, TokenOrder, TokenInner, TokenLeft, TokenRight:
		return true
	case TokenJoin:
		return prev != TokenInner && prev != TokenLeft && prev != TokenRight && prev != TokenOuter
	default:
		return false
	}
}

func spaceBetween(prev, cur lexer.TokenType) bool {
	if prev == TokenDot || prev == TokenLParen {
		return false
	}

	switch cur {
	case TokenComma, TokenDot, TokenRParen, TokenSemi:
		return false
	default:
		return true
	}
}
