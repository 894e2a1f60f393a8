package lsp

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/rlch/dvql"
	"github.com/rlch/dvql/completion"
	"github.com/rlch/dvql/metadata"
)

// Completion handles textDocument/completion requests.
func (s *Server) Completion(ctx context.Context, params *protocol.CompletionParams) (*protocol.CompletionList, error) {
	s.logger.Debug("Completion",
		zap.String("uri", string(params.TextDocument.URI)),
		zap.Uint32("line", params.Position.Line),
		zap.Uint32("character", params.Position.Character))

	doc, ok := s.getDocument(params.TextDocument.URI)
	if !ok {
		return nil, nil //nolint:nilnil
	}

	offset := offsetAt(doc.Content, params.Position)

	var cc *CompletionContext
	if doc.Language == LanguageFetchXML {
		cc = fetchXMLCompletionContext(doc.Content[:offset])
	} else {
		cc = sqlCompletionContext(doc.Content, offset)
	}

	s.logger.Debug("Completion context",
		zap.String("kind", string(cc.Kind)),
		zap.String("entity", cc.Entity),
		zap.String("prefix", cc.Prefix))

	items, err := s.completionItems(ctx, cc)
	if err != nil {
		return nil, err
	}

	// Filter by prefix if present
	if cc.Prefix != "" {
		items = filterByPrefix(items, cc.Prefix)
	}

	return &protocol.CompletionList{
		IsIncomplete: false,
		Items:        items,
	}, nil
}

// CompletionKind indicates what kind of completion is expected at a position.
type CompletionKind string

const (
	// CompletionKindNone indicates no completion, e.g. inside a string literal.
	CompletionKindNone CompletionKind = "none"
	// CompletionKindKeyword indicates SQL keywords.
	CompletionKindKeyword CompletionKind = "keyword"
	// CompletionKindEntity indicates entity logical names.
	CompletionKindEntity CompletionKind = "entity"
	// CompletionKindAttribute indicates attribute logical names of one entity.
	CompletionKindAttribute CompletionKind = "attribute"
	// CompletionKindElement indicates FetchXML child elements.
	CompletionKindElement CompletionKind = "element"
)

// CompletionContext holds information about where completion was triggered.
type CompletionContext struct {
	Kind   CompletionKind
	Prefix string // Identifier being typed (for filtering)
	Entity string // Entity whose attributes are offered
	Parent string // Enclosing FetchXML element ("" at the document root)

	// WithKeywords appends keywords after attributes.
	WithKeywords bool
}

func (s *Server) completionItems(ctx context.Context, cc *CompletionContext) ([]protocol.CompletionItem, error) {
	switch cc.Kind {
	case CompletionKindKeyword:
		return keywordItems(0), nil
	case CompletionKindEntity:
		return s.entityItems(ctx)
	case CompletionKindAttribute:
		items, err := s.attributeItems(ctx, cc.Entity)
		if err != nil {
			return nil, err
		}

		if cc.WithKeywords {
			items = append(items, keywordItems(len(items))...)
		}

		return items, nil
	case CompletionKindElement:
		return completion.ElementItems(completion.FetchXMLChildren(cc.Parent)), nil
	default:
		return nil, nil
	}
}

// entityItems lists the active environment's entities. Without an active
// environment there is nothing to offer.
func (s *Server) entityItems(ctx context.Context) ([]protocol.CompletionItem, error) {
	env, ok := s.env.ActiveEnvironment()
	if !ok {
		return nil, nil
	}

	entities, err := s.cache.EntitySuggestions(ctx, env)
	if err != nil {
		return nil, err
	}

	entities, err = s.entityFilter.Apply(entities)
	if err != nil {
		return nil, err
	}

	return completion.EntityItems(entities), nil
}

func (s *Server) attributeItems(ctx context.Context, entity string) ([]protocol.CompletionItem, error) {
	env, ok := s.env.ActiveEnvironment()
	if !ok || entity == "" {
		return nil, nil
	}

	attrs, err := s.cache.AttributeSuggestions(ctx, env, entity)
	if errors.Is(err, metadata.ErrUnknownEntity) {
		// Usually an entity name still being typed
		s.logger.Debug("No attributes for unknown entity", zap.String("entity", entity))

		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return completion.AttributeItems(attrs), nil
}

// keywordItems returns the keywords alphabetically, sorted after start items.
func keywordItems(start int) []protocol.CompletionItem {
	keywords := dvql.Keywords()
	sort.Strings(keywords)

	items := make([]protocol.CompletionItem, 0, len(keywords))

	for i, kw := range keywords {
		items = append(items, protocol.CompletionItem{
			Label:    kw,
			Kind:     protocol.CompletionItemKindKeyword,
			Detail:   "keyword",
			SortText: completion.SortText(start + i),
		})
	}

	return items
}

// sqlCompletionContext classifies the cursor position in a SQL document.
func sqlCompletionContext(content string, offset int) *CompletionContext {
	before := content[:offset]
	prefix := extractPrefix(before)

	cc := &CompletionContext{Kind: CompletionKindNone, Prefix: prefix}

	// A lexer error other than an open string still leaves usable tokens.
	tokens, err := dvql.Tokenize(before[:len(before)-len(prefix)])
	if errors.Is(err, dvql.ErrUnterminatedString) {
		return cc
	}

	tokens = withoutEOF(tokens)
	all, _ := dvql.Tokenize(content)
	scope := scanTables(all)

	if len(tokens) == 0 {
		cc.Kind = CompletionKindKeyword

		return cc
	}

	prev := tokens[len(tokens)-1]

	switch {
	case prev.Type == dvql.TokenDot:
		if len(tokens) >= 2 && tokens[len(tokens)-2].Type == dvql.TokenIdent { //nolint:mnd // alias before the dot
			cc.Entity = scope.resolve(identName(tokens[len(tokens)-2].Value))
		}

		if cc.Entity != "" {
			cc.Kind = CompletionKindAttribute
		}

		return cc
	case prev.IsOneOf(dvql.TokenFrom, dvql.TokenJoin):
		cc.Kind = CompletionKindEntity

		return cc
	case prev.Type == dvql.TokenString, prev.Type == dvql.TokenNumber:
		cc.Kind = CompletionKindKeyword

		return cc
	}

	switch lastClause(tokens) {
	case dvql.TokenSelect, dvql.TokenWhere, dvql.TokenOn, dvql.TokenBy:
		cc.Entity = scope.primary
		cc.WithKeywords = true

		cc.Kind = CompletionKindKeyword
		if cc.Entity != "" {
			cc.Kind = CompletionKindAttribute
		}
	default:
		cc.Kind = CompletionKindKeyword
	}

	return cc
}

// lastClause returns the keyword that opened the clause the tokens end in.
func lastClause(tokens []dvql.Token) lexer.TokenType {
	for i := len(tokens) - 1; i >= 0; i-- {
		tok := tokens[i]
		if tok.IsOneOf(dvql.TokenSelect, dvql.TokenFrom, dvql.TokenJoin, dvql.TokenWhere, dvql.TokenOn, dvql.TokenBy) {
			return tok.Type
		}
	}

	return dvql.TokenEOF
}

func withoutEOF(tokens []dvql.Token) []dvql.Token {
	if n := len(tokens); n > 0 && tokens[n-1].EOF() {
		return tokens[:n-1]
	}

	return tokens
}

// tableScope maps the entity names and aliases of a statement to entities.
type tableScope struct {
	primary string
	aliases map[string]string
	// decls holds the index of the token declaring each alias.
	decls map[string]int
}

// resolve returns the entity an alias or entity name refers to, or "".
func (t tableScope) resolve(name string) string {
	return t.aliases[name]
}

// scanTables collects `FROM entity [AS] alias` and `JOIN entity [AS] alias`
// from tokens. It works on documents that do not parse.
func scanTables(tokens []dvql.Token) tableScope {
	scope := tableScope{aliases: make(map[string]string), decls: make(map[string]int)}

	for i, tok := range tokens {
		if !tok.IsOneOf(dvql.TokenFrom, dvql.TokenJoin) || i+1 >= len(tokens) || tokens[i+1].Type != dvql.TokenIdent {
			continue
		}

		entity := identName(tokens[i+1].Value)
		scope.aliases[entity] = entity

		if scope.primary == "" && tok.Type == dvql.TokenFrom {
			scope.primary = entity
		}

		j := i + 2 //nolint:mnd // token after the entity name
		if j < len(tokens) && tokens[j].Type == dvql.TokenAs {
			j++
		}

		if j < len(tokens) && tokens[j].Type == dvql.TokenIdent {
			alias := identName(tokens[j].Value)
			scope.aliases[alias] = entity
			scope.decls[alias] = j
		}
	}

	return scope
}

var (
	// xmlTagRe matches complete start, end and self-closing tags.
	xmlTagRe = regexp.MustCompile(`<(/?)([A-Za-z][\w-]*)([^<>]*?)(/?)>`)
	// xmlAttrRe matches a complete name="value" pair.
	xmlAttrRe = regexp.MustCompile(`([\w-]+)\s*=\s*"([^"]*)"`)
	// xmlOpenValueRe matches an attribute value still being typed.
	xmlOpenValueRe = regexp.MustCompile(`([\w-]+)\s*=\s*"([^"]*)$`)
	// xmlTagStartRe matches an element name still being typed.
	xmlTagStartRe = regexp.MustCompile(`<([\w-]*)$`)
	// xmlTagNameRe matches the element name of an open tag.
	xmlTagNameRe = regexp.MustCompile(`^<([\w-]+)`)
)

// xmlFrame is one open FetchXML element.
type xmlFrame struct {
	name   string
	entity string // name attribute of entity and link-entity
}

// fetchXMLCompletionContext classifies the cursor position given the text
// before it.
func fetchXMLCompletionContext(before string) *CompletionContext {
	cc := &CompletionContext{Kind: CompletionKindNone}

	lt := strings.LastIndex(before, "<")
	if lt < 0 || strings.LastIndex(before, ">") > lt {
		// Text content
		return cc
	}

	stack := elementStack(before[:lt])
	tag := before[lt:]

	if m := xmlTagStartRe.FindStringSubmatch(tag); m != nil {
		cc.Kind = CompletionKindElement
		cc.Prefix = m[1]

		if len(stack) > 0 {
			cc.Parent = stack[len(stack)-1].name
		}

		return cc
	}

	name := xmlTagNameRe.FindStringSubmatch(tag)
	value := xmlOpenValueRe.FindStringSubmatch(tag)

	if name == nil || value == nil {
		return cc
	}

	element, attr := name[1], value[1]
	cc.Prefix = value[2]

	switch {
	case (element == "entity" || element == "link-entity") && attr == "name":
		cc.Kind = CompletionKindEntity
	case element == "link-entity" && attr == "from":
		// from names a column of the linked entity itself.
		cc.Entity = tagAttr(tag, "name")
	case element == "link-entity" && attr == "to":
		cc.Entity = nearestEntity(stack)
	case (element == "attribute" || element == "order" || element == "condition") &&
		(attr == "name" || attr == "attribute"):
		cc.Entity = nearestEntity(stack)
	}

	if cc.Entity != "" {
		cc.Kind = CompletionKindAttribute
	}

	return cc
}

// elementStack returns the elements still open at the end of text.
func elementStack(text string) []xmlFrame {
	var stack []xmlFrame

	for _, m := range xmlTagRe.FindAllStringSubmatch(text, -1) {
		closing, name, attrs, selfClosing := m[1] == "/", m[2], m[3], m[4] == "/"

		switch {
		case closing:
			for i := len(stack) - 1; i >= 0; i-- {
				if stack[i].name == name {
					stack = stack[:i]

					break
				}
			}
		case selfClosing:
		default:
			frame := xmlFrame{name: name}
			if name == "entity" || name == "link-entity" {
				frame.entity = tagAttr(attrs, "name")
			}

			stack = append(stack, frame)
		}
	}

	return stack
}

func nearestEntity(stack []xmlFrame) string {
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i].entity != "" {
			return stack[i].entity
		}
	}

	return ""
}

func tagAttr(tag, attr string) string {
	for _, m := range xmlAttrRe.FindAllStringSubmatch(tag, -1) {
		if m[1] == attr {
			return m[2]
		}
	}

	return ""
}

// filterByPrefix keeps items whose label, or a word of their filter text,
// starts with prefix, ignoring case.
func filterByPrefix(items []protocol.CompletionItem, prefix string) []protocol.CompletionItem {
	lower := strings.ToLower(prefix)

	var filtered []protocol.CompletionItem

	for _, item := range items {
		if matchesPrefix(item, lower) {
			filtered = append(filtered, item)
		}
	}

	return filtered
}

func matchesPrefix(item protocol.CompletionItem, lower string) bool {
	if strings.HasPrefix(strings.ToLower(item.Label), lower) {
		return true
	}

	for _, word := range strings.Fields(strings.ToLower(item.FilterText)) {
		if strings.HasPrefix(word, lower) {
			return true
		}
	}

	return false
}
