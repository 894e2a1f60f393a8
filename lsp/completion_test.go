package lsp_test

import (
	"context"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"
)

// complete opens text with a "|" cursor marker and returns the completion labels.
func (s *testServer) complete(t *testing.T, uri protocol.DocumentURI, languageID, text string) []string {
	t.Helper()

	items := s.completeItems(t, uri, languageID, text)

	labels := make([]string, len(items))
	for i, item := range items {
		labels[i] = item.Label
	}

	return labels
}

func (s *testServer) completeItems(
	t *testing.T, uri protocol.DocumentURI, languageID, text string,
) []protocol.CompletionItem {
	t.Helper()

	content, pos := cursor(text)
	s.open(t, uri, languageID, content)

	result, err := s.Completion(context.Background(), &protocol.CompletionParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: uri},
			Position:     pos,
		},
	})
	require.NoError(t, err)
	require.NotNil(t, result)

	return result.Items
}

func TestServer_Completion_SQL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		text     string
		expected []string
	}{
		{
			name:     "entities after FROM",
			text:     "SELECT * FROM |",
			expected: []string{"account", "contact", "new_project"},
		},
		{
			name:     "entities filtered by prefix",
			text:     "SELECT * FROM acc|",
			expected: []string{"account"},
		},
		{
			name:     "entities after JOIN",
			text:     "SELECT * FROM account a JOIN c|",
			expected: []string{"contact"},
		},
		{
			name:     "attributes after alias dot",
			text:     "SELECT a.| FROM account a",
			expected: []string{"accountid", "name", "revenue"},
		},
		{
			name:     "attributes of joined alias",
			text:     "SELECT c.full| FROM account a JOIN contact AS c ON c.parentcustomerid = a.accountid",
			expected: []string{"fullname"},
		},
		{
			name:     "entity name as qualifier",
			text:     "SELECT account.rev| FROM account",
			expected: []string{"revenue"},
		},
		{
			name:     "bracketed alias",
			text:     "SELECT [a].n| FROM account [a]",
			expected: []string{"name"},
		},
		{
			name:     "prefix matches display name",
			text:     "SELECT Annual| FROM account",
			expected: []string{"revenue"},
		},
		{
			name:     "prefix matches later display name word",
			text:     "SELECT Nam| FROM account",
			expected: []string{"name"},
		},
		{
			name:     "keyword detail is not matched",
			text:     "SELECT * FROM account WHERE k|",
			expected: []string{},
		},
		{
			name:     "keyword by prefix",
			text:     "SELECT name FROM account WH|",
			expected: []string{"WHERE"},
		},
		{
			name:     "attributes and keywords in WHERE",
			text:     "SELECT name FROM account WHERE re|",
			expected: []string{"revenue"},
		},
		{
			name:     "unknown alias",
			text:     "SELECT x.| FROM account a",
			expected: []string{},
		},
		{
			name:     "inside string literal",
			text:     "SELECT name FROM account WHERE name = 'Con|",
			expected: []string{},
		},
		{
			name:     "unknown entity offers keywords only",
			text:     "SELECT DIST| FROM acc",
			expected: []string{"DISTINCT"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := newTestServer(t, "dev")
			labels := server.complete(t, "file:///test.sql", "sql", tt.text)

			assert.ElementsMatch(t, tt.expected, labels)
		})
	}
}

func TestServer_Completion_AttributesBeforeKeywords(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, "dev")
	items := server.completeItems(t, "file:///test.sql", "sql", "SELECT | FROM account")

	require.Greater(t, len(items), 3)
	assert.Equal(t, "accountid", items[0].Label)
	assert.Equal(t, protocol.CompletionItemKindField, items[0].Kind)
	assert.Equal(t, "Account", items[0].Detail)

	sorted := slices.IsSortedFunc(items, func(a, b protocol.CompletionItem) int {
		return strings.Compare(a.SortText, b.SortText)
	})
	assert.True(t, sorted, "sort text should follow item order")

	var keywords []string

	for _, item := range items[3:] {
		assert.Equal(t, protocol.CompletionItemKindKeyword, item.Kind)
		keywords = append(keywords, item.Label)
	}

	assert.Contains(t, keywords, "FROM")
	assert.True(t, slices.IsSorted(keywords))
}

func TestServer_Completion_EmptyDocument(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, "dev")
	items := server.completeItems(t, "file:///test.sql", "sql", "|")

	require.NotEmpty(t, items)

	for _, item := range items {
		assert.Equal(t, protocol.CompletionItemKindKeyword, item.Kind)
	}
}

func TestServer_Completion_NoActiveEnvironment(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, "")

	assert.Empty(t, server.complete(t, "file:///a.sql", "sql", "SELECT * FROM |"))

	// Keywords do not need metadata.
	assert.Equal(t, []string{"FROM"}, server.complete(t, "file:///b.sql", "sql", "SELECT name FR| FROM account"))
}

func TestServer_Completion_FollowsEnvironment(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, "dev")
	assert.NotEmpty(t, server.complete(t, "file:///test.sql", "sql", "SELECT * FROM |"))

	server.env.ClearActiveEnvironment()
	assert.Empty(t, server.complete(t, "file:///test.sql", "sql", "SELECT * FROM |"))

	server.env.SetActiveEnvironment("staging")

	_, pos := cursor("SELECT * FROM |")
	_, err := server.Completion(context.Background(), &protocol.CompletionParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: "file:///test.sql"},
			Position:     pos,
		},
	})
	require.Error(t, err, "metadata errors reach the client")
}

func TestServer_Completion_FetchXML(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		text     string
		expected []string
	}{
		{
			name:     "root element",
			text:     "<|",
			expected: []string{"fetch"},
		},
		{
			name:     "entity under fetch",
			text:     "<fetch>\n  <|",
			expected: []string{"entity"},
		},
		{
			name:     "children of entity",
			text:     "<fetch>\n  <entity name=\"account\">\n    <|",
			expected: []string{"attribute", "all-attributes", "order", "filter", "link-entity"},
		},
		{
			name:     "element prefix",
			text:     "<fetch><entity name=\"account\"><a|",
			expected: []string{"attribute", "all-attributes"},
		},
		{
			name:     "after closed sibling",
			text:     "<fetch><entity name=\"account\"><filter></filter><attribute name=\"name\"/><|",
			expected: []string{"attribute", "all-attributes", "order", "filter", "link-entity"},
		},
		{
			name:     "children of filter",
			text:     "<fetch><entity name=\"account\"><filter type=\"and\"><|",
			expected: []string{"condition", "filter"},
		},
		{
			name:     "entity name",
			text:     "<fetch><entity name=\"|",
			expected: []string{"account", "contact", "new_project"},
		},
		{
			name:     "entity name prefix",
			text:     "<fetch><entity name=\"con|",
			expected: []string{"contact"},
		},
		{
			name:     "attribute name",
			text:     "<fetch><entity name=\"account\"><attribute name=\"|",
			expected: []string{"accountid", "name", "revenue"},
		},
		{
			name:     "condition attribute",
			text:     "<fetch><entity name=\"account\"><filter><condition attribute=\"re|",
			expected: []string{"revenue"},
		},
		{
			name:     "order attribute",
			text:     "<fetch><entity name=\"account\"><order attribute=\"n|",
			expected: []string{"name"},
		},
		{
			name:     "link-entity from names its own columns",
			text:     "<fetch><entity name=\"account\"><link-entity name=\"contact\" from=\"|",
			expected: []string{"contactid", "fullname", "parentcustomerid"},
		},
		{
			name:     "link-entity to names parent columns",
			text:     "<fetch><entity name=\"account\"><link-entity name=\"contact\" from=\"parentcustomerid\" to=\"|",
			expected: []string{"accountid", "name", "revenue"},
		},
		{
			name: "attribute inside link-entity",
			text: "<fetch><entity name=\"account\">" +
				"<link-entity name=\"contact\" from=\"parentcustomerid\" to=\"accountid\"><attribute name=\"|",
			expected: []string{"contactid", "fullname", "parentcustomerid"},
		},
		{
			name: "attribute after closed link-entity",
			text: "<fetch><entity name=\"account\">" +
				"<link-entity name=\"contact\" from=\"parentcustomerid\" to=\"accountid\"></link-entity>" +
				"<attribute name=\"|",
			expected: []string{"accountid", "name", "revenue"},
		},
		{
			name:     "text content",
			text:     "<fetch><entity name=\"account\"><filter><condition attribute=\"name\" operator=\"in\"><value>|",
			expected: []string{},
		},
		{
			name:     "unknown attribute",
			text:     "<fetch><entity name=\"account\"><attribute alias=\"|",
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := newTestServer(t, "dev")
			labels := server.complete(t, "file:///query.fetchxml", "", tt.text)

			assert.ElementsMatch(t, tt.expected, labels)
		})
	}
}

func TestServer_Completion_FetchXMLElementSnippet(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, "")
	items := server.completeItems(t, "file:///query.xml", "xml", "<fetch><entity name=\"account\"><attr|")

	require.Len(t, items, 1)
	assert.Equal(t, "attribute", items[0].Label)
	assert.Equal(t, protocol.InsertTextFormatSnippet, items[0].InsertTextFormat)
	assert.Equal(t, "attribute $0/>", items[0].InsertText)
}
