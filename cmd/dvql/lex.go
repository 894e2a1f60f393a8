package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/rlch/dvql"
)

func lexCommand() *cli.Command {
	return &cli.Command{
		Name:      "lex",
		Usage:     "Print the tokens of a query",
		ArgsUsage: "[file]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "query",
				Aliases: []string{"q"},
				Usage:   "query text (instead of a file or stdin)",
			},
			&cli.BoolFlag{
				Name:  "highlight",
				Usage: "print the query with syntax colouring instead of a token list",
			},
			colorFlag(),
		},
		Action: runLex,
	}
}

func runLex(_ context.Context, cmd *cli.Command) error {
	query, err := readQuery(cmd)
	if err != nil {
		return err
	}

	out := cmd.Root().Writer
	styles := stylesFor(out, cmd.Bool("color"))

	if cmd.Bool("highlight") {
		return highlight(out, styles, query)
	}

	tokens, lexErr := dvql.Tokenize(query)

	for _, tok := range tokens {
		if tok.EOF() {
			break
		}

		pos := fmt.Sprintf("%d:%d", tok.Pos.Line, tok.Pos.Column)
		_, _ = fmt.Fprintf(out, "%s  %s  %s\n",
			styles.Dim.Render(fmt.Sprintf("%-7s", pos)),
			styles.Muted.Render(fmt.Sprintf("%-10s", dvql.TokenName(tok.Type))),
			styles.Token(tok.Type).Render(tok.Value))
	}

	return lexErr
}

// highlight writes query with every token coloured, whitespace included.
func highlight(out io.Writer, styles *Styles, query string) error {
	lex, err := dvql.ExportedLexer().Lex("", strings.NewReader(query))
	if err != nil {
		return err
	}

	var (
		b      strings.Builder
		end    int
		lexErr error
	)

	for {
		tok, err := lex.Next()
		if err != nil {
			// Show the unlexed remainder so the error position is visible.
			lexErr = err
			b.WriteString(styles.Error.Render(query[end:]))

			break
		}

		if tok.EOF() {
			break
		}

		if tok.Type == dvql.TokenWhitespace {
			b.WriteString(tok.Value)
		} else {
			b.WriteString(styles.Token(tok.Type).Render(tok.Value))
		}

		end = tok.Pos.Offset + len(tok.Value)
	}

	if !strings.HasSuffix(b.String(), "\n") {
		b.WriteString("\n")
	}

	_, err = io.WriteString(out, b.String())
	if err != nil {
		return err
	}

	return lexErr
}
