package lsp

import (
	"context"
	"errors"
	"fmt"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/rlch/dvql"
)

// ErrInvalidAlias is returned when a rename target is not a plain identifier.
var ErrInvalidAlias = errors.New("invalid table alias")

// DocumentHighlight handles textDocument/documentHighlight requests.
// Highlights the declaration and every qualified use of the table alias
// under the cursor.
func (s *Server) DocumentHighlight(_ context.Context, params *protocol.DocumentHighlightParams) ([]protocol.DocumentHighlight, error) {
	s.logger.Debug("DocumentHighlight",
		zap.String("uri", string(params.TextDocument.URI)),
		zap.Uint32("line", params.Position.Line),
		zap.Uint32("character", params.Position.Character))

	ref, ok := s.aliasAt(params.TextDocument.URI, params.Position)
	if !ok {
		return nil, nil
	}

	highlights := make([]protocol.DocumentHighlight, 0, len(ref.uses))

	for _, i := range ref.uses {
		kind := protocol.DocumentHighlightKindRead
		if i == ref.decl {
			kind = protocol.DocumentHighlightKindWrite
		}

		highlights = append(highlights, protocol.DocumentHighlight{
			Range: tokenRange(ref.tokens[i]),
			Kind:  kind,
		})
	}

	return highlights, nil
}

// References handles textDocument/references requests for table aliases.
func (s *Server) References(_ context.Context, params *protocol.ReferenceParams) ([]protocol.Location, error) {
	s.logger.Debug("References",
		zap.String("uri", string(params.TextDocument.URI)),
		zap.Uint32("line", params.Position.Line),
		zap.Uint32("character", params.Position.Character))

	ref, ok := s.aliasAt(params.TextDocument.URI, params.Position)
	if !ok {
		return nil, nil
	}

	var locations []protocol.Location

	for _, i := range ref.uses {
		if i == ref.decl && !params.Context.IncludeDeclaration {
			continue
		}

		locations = append(locations, protocol.Location{
			URI:   params.TextDocument.URI,
			Range: tokenRange(ref.tokens[i]),
		})
	}

	return locations, nil
}

// PrepareRename handles textDocument/prepareRename requests.
// Only table aliases can be renamed; entity and attribute names belong to the
// environment.
func (s *Server) PrepareRename(_ context.Context, params *protocol.PrepareRenameParams) (*protocol.Range, error) {
	s.logger.Debug("PrepareRename",
		zap.String("uri", string(params.TextDocument.URI)),
		zap.Uint32("line", params.Position.Line),
		zap.Uint32("character", params.Position.Character))

	ref, ok := s.aliasAt(params.TextDocument.URI, params.Position)
	if !ok {
		return nil, nil //nolint:nilnil
	}

	rng := tokenRange(ref.tokens[ref.at])

	return &rng, nil
}

// Rename handles textDocument/rename requests for table aliases.
func (s *Server) Rename(_ context.Context, params *protocol.RenameParams) (*protocol.WorkspaceEdit, error) {
	s.logger.Debug("Rename",
		zap.String("uri", string(params.TextDocument.URI)),
		zap.Uint32("line", params.Position.Line),
		zap.Uint32("character", params.Position.Character),
		zap.String("newName", params.NewName))

	ref, ok := s.aliasAt(params.TextDocument.URI, params.Position)
	if !ok {
		return nil, nil //nolint:nilnil
	}

	tokens, err := dvql.Tokenize(params.NewName)
	if err != nil || len(tokens) != 2 || tokens[0].Type != dvql.TokenIdent { //nolint:mnd // identifier and EOF
		return nil, fmt.Errorf("%w: %q", ErrInvalidAlias, params.NewName)
	}

	edits := make([]protocol.TextEdit, 0, len(ref.uses))
	for _, i := range ref.uses {
		edits = append(edits, protocol.TextEdit{
			Range:   tokenRange(ref.tokens[i]),
			NewText: params.NewName,
		})
	}

	return &protocol.WorkspaceEdit{
		Changes: map[protocol.DocumentURI][]protocol.TextEdit{
			params.TextDocument.URI: edits,
		},
	}, nil
}

// aliasRef is a table alias and the tokens naming it.
type aliasRef struct {
	tokens []dvql.Token
	at     int   // token under the cursor
	decl   int   // declaring token
	uses   []int // declaration and qualifiers, in document order
}

// aliasAt finds the table alias under the cursor of a SQL document. The
// cursor must be on the declaration or on a qualifier (`alias.column`).
func (s *Server) aliasAt(uri protocol.DocumentURI, pos protocol.Position) (*aliasRef, bool) {
	doc, ok := s.getDocument(uri)
	if !ok || doc.Language != LanguageSQL {
		return nil, false
	}

	tokens, _ := dvql.Tokenize(doc.Content)

	at := identAt(tokens, offsetAt(doc.Content, pos))
	if at < 0 {
		return nil, false
	}

	scope := scanTables(tokens)
	name := identName(tokens[at].Value)

	decl, ok := scope.decls[name]
	if !ok || (at != decl && !isQualifier(tokens, at)) {
		return nil, false
	}

	ref := &aliasRef{tokens: tokens, at: at, decl: decl}

	for i, tok := range tokens {
		if tok.Type != dvql.TokenIdent || identName(tok.Value) != name {
			continue
		}

		if i == decl || isQualifier(tokens, i) {
			ref.uses = append(ref.uses, i)
		}
	}

	return ref, true
}

func isQualifier(tokens []dvql.Token, i int) bool {
	return i+1 < len(tokens) && tokens[i+1].Type == dvql.TokenDot
}
