package dvql

import (
	"io"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/alecthomas/participle/v2/lexer"
)

// Token type constants - negative values as per participle convention.
// Exported for use in completion logic and diagnostics.
const (
	TokenEOF        lexer.TokenType = lexer.EOF
	TokenWhitespace lexer.TokenType = -(iota + 2) //nolint:mnd // participle convention
	TokenComment                                  // -- line comments
	TokenString                                   // 'quoted' strings
	TokenNumber                                   // integers and decimals
	TokenIdent                                    // identifiers, including [bracketed] ones
	// Comparison operators
	TokenEq    // =
	TokenNotEq // <> or !=
	TokenLt    // <
	TokenGt    // >
	TokenLte   // <=
	TokenGte   // >=
	// Punctuation
	TokenComma  // ,
	TokenDot    // .
	TokenLParen // (
	TokenRParen // )
	TokenStar   // *
	TokenSemi   // ;
	// Keywords - distinct token types so the grammar can tell them from identifiers
	TokenSelect
	TokenDistinct
	TokenTop
	TokenFrom
	TokenWhere
	TokenAnd
	TokenOr
	TokenNot
	TokenIn
	TokenLike
	TokenIs
	TokenNull
	TokenAs
	TokenOn
	TokenJoin
	TokenInner
	TokenLeft
	TokenRight
	TokenOuter
	TokenOrder
	TokenBy
	TokenAsc
	TokenDesc
	TokenBetween
)

// keywords maps upper-case keyword strings to their token types.
var keywords = map[string]lexer.TokenType{
	"SELECT":   TokenSelect,
	"DISTINCT": TokenDistinct,
	"TOP":      TokenTop,
	"FROM":     TokenFrom,
	"WHERE":    TokenWhere,
	"AND":      TokenAnd,
	"OR":       TokenOr,
	"NOT":      TokenNot,
	"IN":       TokenIn,
	"LIKE":     TokenLike,
	"IS":       TokenIs,
	"NULL":     TokenNull,
	"AS":       TokenAs,
	"ON":       TokenOn,
	"JOIN":     TokenJoin,
	"INNER":    TokenInner,
	"LEFT":     TokenLeft,
	"RIGHT":    TokenRight,
	"OUTER":    TokenOuter,
	"ORDER":    TokenOrder,
	"BY":       TokenBy,
	"ASC":      TokenAsc,
	"DESC":     TokenDesc,
	"BETWEEN":  TokenBetween,
}

// symbols names every token type for participle grammars.
var symbols = map[string]lexer.TokenType{
	"EOF":        TokenEOF,
	"Whitespace": TokenWhitespace,
	"Comment":    TokenComment,
	"String":     TokenString,
	"Number":     TokenNumber,
	"Ident":      TokenIdent,
	"Eq":         TokenEq,
	"NotEq":      TokenNotEq,
	"Lt":         TokenLt,
	"Gt":         TokenGt,
	"Lte":        TokenLte,
	"Gte":        TokenGte,
	"Comma":      TokenComma,
	"Dot":        TokenDot,
	"LParen":     TokenLParen,
	"RParen":     TokenRParen,
	"Star":       TokenStar,
	"Semi":       TokenSemi,
	"Select":     TokenSelect,
	"Distinct":   TokenDistinct,
	"Top":        TokenTop,
	"From":       TokenFrom,
	"Where":      TokenWhere,
	"And":        TokenAnd,
	"Or":         TokenOr,
	"Not":        TokenNot,
	"In":         TokenIn,
	"Like":       TokenLike,
	"Is":         TokenIs,
	"Null":       TokenNull,
	"As":         TokenAs,
	"On":         TokenOn,
	"Join":       TokenJoin,
	"Inner":      TokenInner,
	"Left":       TokenLeft,
	"Right":      TokenRight,
	"Outer":      TokenOuter,
	"Order":      TokenOrder,
	"By":         TokenBy,
	"Asc":        TokenAsc,
	"Desc":       TokenDesc,
	"Between":    TokenBetween,
}

// multiOps are matched before their single-character prefixes.
var multiOps = []struct {
	op  string
	typ lexer.TokenType
}{
	{"<>", TokenNotEq},
	{"!=", TokenNotEq},
	{"<=", TokenLte},
	{">=", TokenGte},
}

// Lexer errors.
var (
	ErrUnterminatedString     = &LexerError{msg: "unterminated string"}
	ErrUnterminatedIdentifier = &LexerError{msg: "unterminated bracketed identifier"}
	ErrUnexpectedCharacter    = &LexerError{msg: "unexpected character"}
)

// LexerError represents a lexer error with position.
type LexerError struct {
	msg string
	pos lexer.Position
	ch  rune
}

func (e *LexerError) Error() string {
	return e.pos.String() + ": " + e.Message()
}

// Is reports whether target is the same kind of lexer error, ignoring position.
func (e *LexerError) Is(target error) bool {
	t, ok := target.(*LexerError)

	return ok && t.msg == e.msg
}

// Message returns the error without its position.
func (e *LexerError) Message() string {
	if e.ch != 0 {
		return e.msg + ": " + string(e.ch)
	}

	return e.msg
}

// Position returns where the error occurred.
func (e *LexerError) Position() lexer.Position {
	return e.pos
}

// Char returns the offending rune, or 0 if none.
func (e *LexerError) Char() rune {
	return e.ch
}

func (e *LexerError) withPos(pos lexer.Position) *LexerError {
	return &LexerError{msg: e.msg, pos: pos, ch: e.ch}
}

func (e *LexerError) withChar(ch rune) *LexerError {
	return &LexerError{msg: e.msg, pos: e.pos, ch: ch}
}

// Token is a single lexeme of a query.
type Token struct {
	Type  lexer.TokenType
	Value string
	// Pos.Offset is the byte offset of the first character of the token.
	Pos lexer.Position
}

// IsKeyword reports whether the token is a reserved keyword.
func (t Token) IsKeyword() bool {
	return IsKeywordToken(t.Type)
}

// IsComparisonOperator reports whether the token is =, <>, !=, <, >, <= or >=.
func (t Token) IsComparisonOperator() bool {
	return t.Type == TokenEq ||
		t.Type == TokenNotEq ||
		t.Type == TokenLt ||
		t.Type == TokenGt ||
		t.Type == TokenLte ||
		t.Type == TokenGte
}

// IsOneOf reports whether the token has any of the given types.
func (t Token) IsOneOf(types ...lexer.TokenType) bool {
	for _, typ := range types {
		if t.Type == typ {
			return true
		}
	}

	return false
}

// EOF reports whether the token marks the end of input.
func (t Token) EOF() bool {
	return t.Type == TokenEOF
}

// String returns the symbol name and value, e.g. `Ident("name")`.
func (t Token) String() string {
	return TokenName(t.Type) + "(" + `"` + t.Value + `"` + ")"
}

// Classify returns the keyword token type for word, or TokenIdent.
// The lookup is case-sensitive against the upper-case keyword table.
func Classify(word string) lexer.TokenType {
	if typ, ok := keywords[word]; ok {
		return typ
	}

	return TokenIdent
}

// IsKeywordToken returns true if the token type is a reserved keyword.
func IsKeywordToken(typ lexer.TokenType) bool {
	return typ <= TokenSelect && typ >= TokenBetween
}

// Keywords returns the upper-case keyword table in no particular order.
func Keywords() []string {
	out := make([]string, 0, len(keywords))
	for kw := range keywords {
		out = append(out, kw)
	}

	return out
}

var symbolNames = func() map[lexer.TokenType]string {
	names := make(map[lexer.TokenType]string, len(symbols))
	for name, typ := range symbols {
		names[typ] = name
	}

	return names
}()

// TokenName returns the grammar symbol name of a token type.
func TokenName(typ lexer.TokenType) string {
	if name, ok := symbolNames[typ]; ok {
		return name
	}

	return "Unknown"
}

// Tokenize splits input into tokens, dropping whitespace and comments.
// The returned slice always ends with an EOF token on success. On a lexer
// error the tokens scanned before the error are returned with it.
func Tokenize(input string) ([]Token, error) {
	l := newLexerState("", input)

	var tokens []Token

	for {
		tok, err := l.Next()
		if err != nil {
			return tokens, err
		}

		if tok.Type == TokenWhitespace || tok.Type == TokenComment {
			continue
		}

		tokens = append(tokens, Token{Type: tok.Type, Value: tok.Value, Pos: tok.Pos})

		if tok.EOF() {
			return tokens, nil
		}
	}
}

// sqlDefinition implements lexer.Definition for the query dialect.
type sqlDefinition struct{}

// Symbols returns the mapping of symbol names to token types.
func (sqlDefinition) Symbols() map[string]lexer.TokenType {
	return symbols
}

// Lex creates a new Lexer for the given reader.
//
//nolint:ireturn // Required by participle's lexer.Definition interface.
func (d sqlDefinition) Lex(filename string, r io.Reader) (lexer.Lexer, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	return newLexerState(filename, string(data)), nil
}

// LexString implements lexer.StringDefinition for efficiency.
//
//nolint:ireturn // Required by participle's lexer.StringDefinition interface.
func (sqlDefinition) LexString(filename string, input string) (lexer.Lexer, error) {
	return newLexerState(filename, input), nil
}

// LexBytes implements lexer.BytesDefinition for efficiency.
//
//nolint:ireturn // Required by participle's lexer.BytesDefinition interface.
func (sqlDefinition) LexBytes(filename string, data []byte) (lexer.Lexer, error) {
	return newLexerState(filename, string(data)), nil
}

// lexerState holds the state for lexing.
type lexerState struct {
	filename string
	input    string
	offset   int
	line     int
	col      int
}

func newLexerState(filename, input string) *lexerState {
	return &lexerState{
		filename: filename,
		input:    input,
		line:     1,
		col:      1,
	}
}

// Next returns the next token.
func (l *lexerState) Next() (lexer.Token, error) {
	if l.eof() {
		return lexer.EOFToken(l.pos()), nil
	}

	start := l.pos()
	r := l.peek()

	if isSpace(r) {
		for !l.eof() && isSpace(l.peek()) {
			l.advance()
		}

		return l.token(TokenWhitespace, start), nil
	}

	// Line comment
	if r == '-' && l.peekAt(1) == '-' {
		for !l.eof() && l.peek() != '\n' {
			l.advance()
		}

		return l.token(TokenComment, start), nil
	}

	if r == '\'' {
		return l.scanString(start)
	}

	if r == '[' {
		return l.scanBracketIdent(start)
	}

	if isDigit(r) || (r == '-' && isDigit(l.peekAt(1))) {
		return l.scanNumber(start), nil
	}

	// Identifier or keyword
	if isIdentStart(r) {
		l.advance()

		for !l.eof() && isIdentContinue(l.peek()) {
			l.advance()
		}

		tok := l.token(TokenIdent, start)
		tok.Type = Classify(strings.ToUpper(tok.Value))

		return tok, nil
	}

	// Multi-character operators (check before single-char)
	for _, op := range multiOps {
		if l.match(op.op) {
			for range len(op.op) {
				l.advance()
			}

			return l.token(op.typ, start), nil
		}
	}

	switch r {
	case '=':
		l.advance()
		return l.token(TokenEq, start), nil
	case '<':
		l.advance()
		return l.token(TokenLt, start), nil
	case '>':
		l.advance()
		return l.token(TokenGt, start), nil
	case ',':
		l.advance()
		return l.token(TokenComma, start), nil
	case '.':
		l.advance()
		return l.token(TokenDot, start), nil
	case '(':
		l.advance()
		return l.token(TokenLParen, start), nil
	case ')':
		l.advance()
		return l.token(TokenRParen, start), nil
	case '*':
		l.advance()
		return l.token(TokenStar, start), nil
	case ';':
		l.advance()
		return l.token(TokenSemi, start), nil
	}

	return lexer.Token{}, ErrUnexpectedCharacter.withPos(start).withChar(r)
}

func (l *lexerState) pos() lexer.Position {
	return lexer.Position{
		Filename: l.filename,
		Offset:   l.offset,
		Line:     l.line,
		Column:   l.col,
	}
}

func (l *lexerState) eof() bool {
	return l.offset >= len(l.input)
}

func (l *lexerState) peek() rune {
	if l.eof() {
		return 0
	}

	r, _ := utf8.DecodeRuneInString(l.input[l.offset:])

	return r
}

func (l *lexerState) peekAt(n int) rune {
	off := l.offset + n
	if off >= len(l.input) {
		return 0
	}

	r, _ := utf8.DecodeRuneInString(l.input[off:])

	return r
}

func (l *lexerState) advance() {
	if l.eof() {
		return
	}

	r, size := utf8.DecodeRuneInString(l.input[l.offset:])
	l.offset += size

	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
}

func (l *lexerState) match(s string) bool {
	return strings.HasPrefix(l.input[l.offset:], s)
}

func (l *lexerState) token(typ lexer.TokenType, start lexer.Position) lexer.Token {
	return lexer.Token{
		Type:  typ,
		Value: l.input[start.Offset:l.offset],
		Pos:   start,
	}
}

// scanString scans a single-quoted string; a doubled quote is an escaped quote.
func (l *lexerState) scanString(start lexer.Position) (lexer.Token, error) {
	l.advance() // opening quote

	for !l.eof() {
		if l.peek() == '\'' {
			if l.peekAt(1) == '\'' {
				l.advance()
				l.advance()

				continue
			}

			l.advance() // closing quote

			return l.token(TokenString, start), nil
		}

		l.advance()
	}

	return lexer.Token{}, ErrUnterminatedString.withPos(start)
}

func (l *lexerState) scanBracketIdent(start lexer.Position) (lexer.Token, error) {
	l.advance() // [

	for !l.eof() {
		ch := l.peek()
		if ch == ']' {
			l.advance()

			return l.token(TokenIdent, start), nil
		}

		if ch == '\n' {
			break
		}

		l.advance()
	}

	return lexer.Token{}, ErrUnterminatedIdentifier.withPos(start)
}

func (l *lexerState) scanNumber(start lexer.Position) lexer.Token {
	if l.peek() == '-' {
		l.advance()
	}

	for !l.eof() && isDigit(l.peek()) {
		l.advance()
	}

	// Fractional part
	if l.peek() == '.' && isDigit(l.peekAt(1)) {
		l.advance() // .

		for !l.eof() && isDigit(l.peek()) {
			l.advance()
		}
	}

	return l.token(TokenNumber, start)
}

// Character helpers.

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentContinue(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
