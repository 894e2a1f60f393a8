package lsp

import (
	"context"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/rlch/dvql"
)

// Formatting handles textDocument/formatting requests for SQL documents.
func (s *Server) Formatting(_ context.Context, params *protocol.DocumentFormattingParams) ([]protocol.TextEdit, error) {
	s.logger.Debug("Formatting", zap.String("uri", string(params.TextDocument.URI)))

	doc, ok := s.getDocument(params.TextDocument.URI)
	if !ok || doc.Language != LanguageSQL {
		return nil, nil
	}

	formatted, err := dvql.Format(doc.Content)
	if err != nil {
		// Unformattable until the lexer error is fixed
		s.logger.Debug("Formatting skipped", zap.Error(err))

		return nil, nil
	}

	// If no change, return empty edits
	if formatted == doc.Content {
		return []protocol.TextEdit{}, nil
	}

	// Return a single edit that replaces the entire document
	return []protocol.TextEdit{
		{
			Range: protocol.Range{
				Start: protocol.Position{Line: 0, Character: 0},
				End:   documentEnd(doc.Content),
			},
			NewText: formatted,
		},
	}, nil
}
