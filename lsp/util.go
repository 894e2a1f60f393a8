package lsp

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/alecthomas/participle/v2/lexer"
	"go.lsp.dev/protocol"

	"github.com/rlch/dvql"
)

// offsetAt converts an LSP position to a byte offset into content.
// Characters are counted as bytes, clamped to the line and content length.
func offsetAt(content string, pos protocol.Position) int {
	offset := 0

	for range pos.Line {
		i := strings.IndexByte(content[offset:], '\n')
		if i < 0 {
			return len(content)
		}

		offset += i + 1
	}

	lineEnd := strings.IndexByte(content[offset:], '\n')
	if lineEnd < 0 {
		lineEnd = len(content) - offset
	}

	return offset + min(int(pos.Character), lineEnd)
}

// lexerToPosition converts a 1-based lexer position to a 0-based LSP position.
func lexerToPosition(pos lexer.Position) protocol.Position {
	return protocol.Position{
		Line:      uint32(max(0, pos.Line-1)),   //nolint:gosec // G115: values are small line numbers
		Character: uint32(max(0, pos.Column-1)), //nolint:gosec // G115: values are small column numbers
	}
}

// tokenRange returns the range a token covers. Tokens never span lines
// except string literals, which are clamped to their first line.
func tokenRange(tok dvql.Token) protocol.Range {
	start := lexerToPosition(tok.Pos)

	width := len(tok.Value)
	if i := strings.IndexByte(tok.Value, '\n'); i >= 0 {
		width = i
	}

	end := start
	end.Character += uint32(width) //nolint:gosec // G115: token widths are small

	return protocol.Range{Start: start, End: end}
}

// pointRange is a one-character range at pos.
func pointRange(pos lexer.Position) protocol.Range {
	start := lexerToPosition(pos)
	end := start
	end.Character++

	return protocol.Range{Start: start, End: end}
}

// documentEnd returns the position just past the last character of content.
func documentEnd(content string) protocol.Position {
	lines := strings.Count(content, "\n")
	lastLineLen := len(content) - strings.LastIndex(content, "\n") - 1

	return protocol.Position{
		Line:      uint32(lines),       //nolint:gosec // G115: values are small line numbers
		Character: uint32(lastLineLen), //nolint:gosec // G115: values are small column numbers
	}
}

// extractPrefix returns the identifier being typed at the end of text.
func extractPrefix(text string) string {
	end := len(text)
	start := end

	for start > 0 {
		r, size := utf8.DecodeLastRuneInString(text[:start])
		if !isIdentRune(r) {
			break
		}

		start -= size
	}

	return text[start:end]
}

func isIdentRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// identName strips the brackets of a [bracketed] identifier.
func identName(v string) string {
	if strings.HasPrefix(v, "[") && strings.HasSuffix(v, "]") && len(v) >= 2 {
		return v[1 : len(v)-1]
	}

	return v
}
