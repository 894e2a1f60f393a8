package dvql_test

import (
	"errors"
	"testing"

	"github.com/alecthomas/participle/v2/lexer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rlch/dvql"
)

type tokenExpect struct {
	typ string
	val string
}

func lexTokens(t *testing.T, input string) []tokenExpect {
	t.Helper()

	tokens, err := dvql.Tokenize(input)
	if err != nil {
		t.Fatalf("Tokenize() error: %v", err)
	}

	var out []tokenExpect

	for _, tok := range tokens {
		if tok.EOF() {
			break
		}

		out = append(out, tokenExpect{typ: dvql.TokenName(tok.Type), val: tok.Value})
	}

	return out
}

func assertTokens(t *testing.T, expected, got []tokenExpect) {
	t.Helper()

	if len(expected) != len(got) {
		t.Fatalf("token count mismatch: expected %d, got %d\nexpected: %v\ngot: %v",
			len(expected), len(got), expected, got)
	}

	for i := range expected {
		if expected[i] != got[i] {
			t.Errorf("token[%d]: expected %v, got %v", i, expected[i], got[i])
		}
	}
}

func TestLexer_Keywords(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected []tokenExpect
	}{
		{"SELECT", []tokenExpect{{"Select", "SELECT"}}},
		{"select", []tokenExpect{{"Select", "select"}}},
		{"Select Distinct", []tokenExpect{{"Select", "Select"}, {"Distinct", "Distinct"}}},
		{"FROM WHERE", []tokenExpect{{"From", "FROM"}, {"Where", "WHERE"}}},
		{"inner join", []tokenExpect{{"Inner", "inner"}, {"Join", "join"}}},
		{"LEFT OUTER JOIN", []tokenExpect{{"Left", "LEFT"}, {"Outer", "OUTER"}, {"Join", "JOIN"}}},
		{"order by desc", []tokenExpect{{"Order", "order"}, {"By", "by"}, {"Desc", "desc"}}},
		{"is not null", []tokenExpect{{"Is", "is"}, {"Not", "not"}, {"Null", "null"}}},
		{"selected", []tokenExpect{{"Ident", "selected"}}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			assertTokens(t, tt.expected, lexTokens(t, tt.input))
		})
	}
}

func TestLexer_Operators(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected []tokenExpect
	}{
		{"=", []tokenExpect{{"Eq", "="}}},
		{"<>", []tokenExpect{{"NotEq", "<>"}}},
		{"!=", []tokenExpect{{"NotEq", "!="}}},
		{"<", []tokenExpect{{"Lt", "<"}}},
		{">", []tokenExpect{{"Gt", ">"}}},
		{"<=", []tokenExpect{{"Lte", "<="}}},
		{">=", []tokenExpect{{"Gte", ">="}}},
		{"a<=b", []tokenExpect{{"Ident", "a"}, {"Lte", "<="}, {"Ident", "b"}}},
		{"< =", []tokenExpect{{"Lt", "<"}, {"Eq", "="}}},
		{"(a, b.c);*", []tokenExpect{
			{"LParen", "("}, {"Ident", "a"}, {"Comma", ","}, {"Ident", "b"},
			{"Dot", "."}, {"Ident", "c"}, {"RParen", ")"}, {"Semi", ";"}, {"Star", "*"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			assertTokens(t, tt.expected, lexTokens(t, tt.input))
		})
	}
}

func TestLexer_Literals(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected []tokenExpect
	}{
		{"123", []tokenExpect{{"Number", "123"}}},
		{"12.5", []tokenExpect{{"Number", "12.5"}}},
		{"-4", []tokenExpect{{"Number", "-4"}}},
		{"'contoso'", []tokenExpect{{"String", "'contoso'"}}},
		{"'it''s'", []tokenExpect{{"String", "'it''s'"}}},
		{"''", []tokenExpect{{"String", "''"}}},
		{"[account name]", []tokenExpect{{"Ident", "[account name]"}}},
		{"new_custom1", []tokenExpect{{"Ident", "new_custom1"}}},
		{"name -- trailing comment", []tokenExpect{{"Ident", "name"}}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			assertTokens(t, tt.expected, lexTokens(t, tt.input))
		})
	}
}

func TestLexer_Positions(t *testing.T) {
	t.Parallel()

	tokens, err := dvql.Tokenize("SELECT name\nFROM account")
	require.NoError(t, err)
	require.Len(t, tokens, 5)

	offsets := []int{0, 7, 12, 17, 24}
	for i, tok := range tokens {
		assert.Equal(t, offsets[i], tok.Pos.Offset, "token %d (%s)", i, tok.Value)
		assert.GreaterOrEqual(t, tok.Pos.Offset, 0)
	}

	assert.Equal(t, 2, tokens[2].Pos.Line)
	assert.Equal(t, 1, tokens[2].Pos.Column)
	assert.True(t, tokens[4].EOF())
}

func TestLexer_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		want   error
		offset int
		ch     rune
	}{
		{"unexpected character", "SELECT name FROM account WHERE a # 1", dvql.ErrUnexpectedCharacter, 33, '#'},
		{"bare minus", "a - b", dvql.ErrUnexpectedCharacter, 2, '-'},
		{"unterminated string", "WHERE name = 'abc", dvql.ErrUnterminatedString, 13, 0},
		{"unterminated bracket", "SELECT [name", dvql.ErrUnterminatedIdentifier, 7, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tokens, err := dvql.Tokenize(tt.input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)

			var lexErr *dvql.LexerError
			require.ErrorAs(t, err, &lexErr)
			assert.Equal(t, tt.offset, lexErr.Position().Offset)
			assert.Equal(t, tt.ch, lexErr.Char())

			// Tokens before the error are still reported.
			for _, tok := range tokens {
				assert.Less(t, tok.Pos.Offset, tt.offset)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	assert.Equal(t, dvql.TokenSelect, dvql.Classify("SELECT"))
	assert.Equal(t, dvql.TokenBetween, dvql.Classify("BETWEEN"))
	assert.Equal(t, dvql.TokenIdent, dvql.Classify("select"), "lookup is case-sensitive")
	assert.Equal(t, dvql.TokenIdent, dvql.Classify("account"))
}

func TestToken_Predicates(t *testing.T) {
	t.Parallel()

	tokens, err := dvql.Tokenize("WHERE a >= 1 AND b <> 'x'")
	require.NoError(t, err)

	var keywords, comparisons []string

	for _, tok := range tokens {
		if tok.IsKeyword() {
			keywords = append(keywords, tok.Value)
		}

		if tok.IsComparisonOperator() {
			comparisons = append(comparisons, tok.Value)
		}
	}

	assert.Equal(t, []string{"WHERE", "AND"}, keywords)
	assert.Equal(t, []string{">=", "<>"}, comparisons)

	assert.True(t, tokens[1].IsOneOf(dvql.TokenNumber, dvql.TokenIdent))
	assert.False(t, tokens[1].IsOneOf(dvql.TokenNumber, dvql.TokenString))
	assert.False(t, tokens[1].IsOneOf())
}

func TestLexer_Symbols(t *testing.T) {
	t.Parallel()

	def := dvql.ExportedLexer()
	syms := def.Symbols()

	for _, name := range []string{"EOF", "Whitespace", "Comment", "String", "Number", "Ident", "Select", "Between"} {
		if _, ok := syms[name]; !ok {
			t.Errorf("missing symbol: %s", name)
		}
	}

	seen := make(map[lexer.TokenType]string)
	for name, typ := range syms {
		if other, dup := seen[typ]; dup {
			t.Errorf("symbols %s and %s share token type %d", name, other, typ)
		}

		seen[typ] = name
	}

	for _, kw := range dvql.Keywords() {
		if !dvql.IsKeywordToken(dvql.Classify(kw)) {
			t.Errorf("keyword %s not classified as keyword", kw)
		}
	}
}
