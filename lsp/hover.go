package lsp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/rlch/dvql"
	"github.com/rlch/dvql/completion"
	"github.com/rlch/dvql/metadata"
)

// Hover handles textDocument/hover requests. Identifiers of SQL documents
// show the metadata of the entity or attribute they name.
func (s *Server) Hover(ctx context.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	s.logger.Debug("Hover",
		zap.String("uri", string(params.TextDocument.URI)),
		zap.Uint32("line", params.Position.Line),
		zap.Uint32("character", params.Position.Character))

	doc, ok := s.getDocument(params.TextDocument.URI)
	if !ok || doc.Language != LanguageSQL {
		return nil, nil //nolint:nilnil
	}

	env, ok := s.env.ActiveEnvironment()
	if !ok {
		return nil, nil //nolint:nilnil
	}

	tokens, _ := dvql.Tokenize(doc.Content)
	offset := offsetAt(doc.Content, params.Position)

	i := identAt(tokens, offset)
	if i < 0 {
		return nil, nil //nolint:nilnil
	}

	content, err := s.hoverContent(ctx, env, tokens, i)
	if err != nil || content == "" {
		return nil, err
	}

	rng := tokenRange(tokens[i])

	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.Markdown,
			Value: content,
		},
		Range: &rng,
	}, nil
}

// identAt returns the index of the identifier token covering offset, or -1.
func identAt(tokens []dvql.Token, offset int) int {
	for i, tok := range tokens {
		if tok.Type != dvql.TokenIdent {
			continue
		}

		if offset >= tok.Pos.Offset && offset <= tok.Pos.Offset+len(tok.Value) {
			return i
		}
	}

	return -1
}

func (s *Server) hoverContent(ctx context.Context, env string, tokens []dvql.Token, i int) (string, error) {
	name := identName(tokens[i].Value)
	scope := scanTables(tokens)

	var prev dvql.Token
	if i > 0 {
		prev = tokens[i-1]
	}

	switch {
	case prev.IsOneOf(dvql.TokenFrom, dvql.TokenJoin):
		return s.hoverEntity(ctx, env, name)
	case prev.Type == dvql.TokenDot && i >= 2: //nolint:mnd // alias before the dot
		return s.hoverAttribute(ctx, env, scope.resolve(identName(tokens[i-2].Value)), name)
	case i+1 < len(tokens) && tokens[i+1].Type == dvql.TokenDot:
		// Alias qualifying a column
		return s.hoverEntity(ctx, env, scope.resolve(name))
	default:
		return s.hoverAttribute(ctx, env, scope.primary, name)
	}
}

func (s *Server) hoverEntity(ctx context.Context, env, entity string) (string, error) {
	if entity == "" {
		return "", nil
	}

	entities, err := s.cache.EntitySuggestions(ctx, env)
	if err != nil {
		return "", err
	}

	for _, e := range entities {
		if strings.EqualFold(e.LogicalName, entity) {
			return hoverMarkdown(e.DisplayName, e.LogicalName, completion.EntityDocumentation(e)), nil
		}
	}

	return "", nil
}

func (s *Server) hoverAttribute(ctx context.Context, env, entity, attribute string) (string, error) {
	if entity == "" {
		return "", nil
	}

	attrs, err := s.cache.AttributeSuggestions(ctx, env, entity)
	if errors.Is(err, metadata.ErrUnknownEntity) {
		return "", nil
	}

	if err != nil {
		return "", err
	}

	for _, a := range attrs {
		if strings.EqualFold(a.LogicalName, attribute) {
			return hoverMarkdown(a.DisplayName, entity+"."+a.LogicalName, completion.AttributeDocumentation(a)), nil
		}
	}

	return "", nil
}

func hoverMarkdown(displayName, logicalName, doc string) string {
	var b strings.Builder

	if displayName != "" {
		fmt.Fprintf(&b, "**%s**\n\n", displayName)
	}

	fmt.Fprintf(&b, "`%s`\n\n%s", logicalName, doc)

	return b.String()
}
