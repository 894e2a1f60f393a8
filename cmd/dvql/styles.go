package main

import (
	"io"
	"os"

	"github.com/alecthomas/participle/v2/lexer"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/rlch/dvql"
)

// Semantic colors.
var (
	colorKeyword  = lipgloss.Color("#3b82f6") // blue-500
	colorString   = lipgloss.Color("#10b981") // green-500
	colorNumber   = lipgloss.Color("#f59e0b") // amber-500
	colorOperator = lipgloss.Color("#d946ef") // fuchsia-500
	colorError    = lipgloss.Color("#ef4444") // red-500
	colorDim      = lipgloss.Color("#6b7280") // gray-500
	colorMuted    = lipgloss.Color("#9ca3af") // gray-400
)

// Styles holds the lipgloss styles for CLI output.
type Styles struct {
	Keyword  lipgloss.Style
	Ident    lipgloss.Style
	String   lipgloss.Style
	Number   lipgloss.Style
	Operator lipgloss.Style
	Comment  lipgloss.Style
	Error    lipgloss.Style

	Dim    lipgloss.Style
	Muted  lipgloss.Style
	Bold   lipgloss.Style
	Header lipgloss.Style
}

// DefaultStyles returns the styles used on a terminal.
func DefaultStyles() *Styles {
	return &Styles{
		Keyword:  lipgloss.NewStyle().Foreground(colorKeyword).Bold(true),
		Ident:    lipgloss.NewStyle(),
		String:   lipgloss.NewStyle().Foreground(colorString),
		Number:   lipgloss.NewStyle().Foreground(colorNumber),
		Operator: lipgloss.NewStyle().Foreground(colorOperator),
		Comment:  lipgloss.NewStyle().Foreground(colorDim).Italic(true),
		Error:    lipgloss.NewStyle().Foreground(colorError).Bold(true),

		Dim:    lipgloss.NewStyle().Foreground(colorDim),
		Muted:  lipgloss.NewStyle().Foreground(colorMuted),
		Bold:   lipgloss.NewStyle().Bold(true),
		Header: lipgloss.NewStyle().Bold(true).Underline(true),
	}
}

// PlainStyles returns styles that render text unchanged.
func PlainStyles() *Styles {
	plain := lipgloss.NewStyle()

	return &Styles{
		Keyword:  plain,
		Ident:    plain,
		String:   plain,
		Number:   plain,
		Operator: plain,
		Comment:  plain,
		Error:    plain,
		Dim:      plain,
		Muted:    plain,
		Bold:     plain,
		Header:   plain,
	}
}

// stylesFor picks DefaultStyles for terminals and PlainStyles otherwise.
// NO_COLOR disables colour everywhere.
func stylesFor(w io.Writer, color bool) *Styles {
	if !color || os.Getenv("NO_COLOR") != "" {
		return PlainStyles()
	}

	if f, ok := w.(*os.File); !ok || !isatty.IsTerminal(f.Fd()) {
		return PlainStyles()
	}

	return DefaultStyles()
}

// Token returns the style for a token type.
func (s *Styles) Token(typ lexer.TokenType) lipgloss.Style {
	switch {
	case dvql.IsKeywordToken(typ):
		return s.Keyword
	case typ == dvql.TokenString:
		return s.String
	case typ == dvql.TokenNumber:
		return s.Number
	case typ == dvql.TokenComment:
		return s.Comment
	case typ == dvql.TokenIdent:
		return s.Ident
	default:
		return s.Operator
	}
}
