package lsp

import (
	"context"

	"github.com/alecthomas/participle/v2/lexer"
	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/rlch/dvql"
)

// DocumentSymbol handles textDocument/documentSymbol requests.
// The outline lists the tables of a SQL statement, each with the columns
// selected from it.
func (s *Server) DocumentSymbol(_ context.Context, params *protocol.DocumentSymbolParams) ([]any, error) {
	s.logger.Debug("DocumentSymbol",
		zap.String("uri", string(params.TextDocument.URI)))

	doc, ok := s.getDocument(params.TextDocument.URI)
	if !ok || doc.Statement == nil {
		return nil, nil
	}

	symbols := buildDocumentSymbols(doc.Statement)

	// Convert to []any for the protocol
	result := make([]any, len(symbols))
	for i, sym := range symbols {
		result[i] = sym
	}

	return result, nil
}

// buildDocumentSymbols creates one symbol per table, in statement order.
func buildDocumentSymbols(stmt *dvql.Select) []protocol.DocumentSymbol {
	symbols := []protocol.DocumentSymbol{tableSymbol(stmt.From, "from")}
	index := map[string]int{stmt.From.Name(): 0}

	for _, join := range stmt.Joins {
		detail := "inner join"
		if join.Left {
			detail = "left outer join"
		}

		index[join.Table.Name()] = len(symbols)
		symbols = append(symbols, tableSymbol(join.Table, detail))
	}

	for _, col := range stmt.Columns {
		i, ok := index[col.Column.Qualifier()]
		if !ok {
			// Unqualified or unknown qualifier
			i = 0
		}

		name := col.Column.Name()
		if col.Alias != "" {
			name += " AS " + col.Alias
		}

		rng := nameRange(col.Column.Pos, col.Column.String())
		symbols[i].Children = append(symbols[i].Children, protocol.DocumentSymbol{
			Name:           name,
			Kind:           protocol.SymbolKindField,
			Range:          rng,
			SelectionRange: rng,
		})
	}

	return symbols
}

func tableSymbol(t *dvql.TableRef, detail string) protocol.DocumentSymbol {
	if t.Alias != "" {
		detail += " as " + t.Alias
	}

	rng := nameRange(t.Pos, t.Entity)

	return protocol.DocumentSymbol{
		Name:           t.Entity,
		Detail:         detail,
		Kind:           protocol.SymbolKindClass,
		Range:          rng,
		SelectionRange: rng,
	}
}

func nameRange(pos lexer.Position, name string) protocol.Range {
	return tokenRange(dvql.Token{Type: dvql.TokenIdent, Value: name, Pos: pos})
}
