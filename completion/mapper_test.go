package completion_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"go.lsp.dev/protocol"

	"github.com/rlch/dvql/completion"
	"github.com/rlch/dvql/metadata"
)

func TestEntityItem(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		suggestion metadata.EntitySuggestion
		index      int
		expected   protocol.CompletionItem
	}{
		{
			name:       "system entity",
			suggestion: metadata.EntitySuggestion{LogicalName: "account", DisplayName: "Account"},
			index:      3,
			expected: protocol.CompletionItem{
				Label:         "account",
				Kind:          protocol.CompletionItemKindClass,
				Detail:        "Account",
				Documentation: "System Entity",
				FilterText:    "account Account",
				InsertText:    "account",
				SortText:      "00003",
			},
		},
		{
			name: "custom entity",
			suggestion: metadata.EntitySuggestion{
				LogicalName: "new_project", DisplayName: "Project", IsCustomEntity: true,
			},
			index: 12345,
			expected: protocol.CompletionItem{
				Label:         "new_project",
				Kind:          protocol.CompletionItemKindClass,
				Detail:        "Project",
				Documentation: "Custom Entity",
				FilterText:    "new_project Project",
				InsertText:    "new_project",
				SortText:      "12345",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := completion.EntityItem(tt.suggestion, tt.index)
			if diff := cmp.Diff(tt.expected, got); diff != "" {
				t.Errorf("EntityItem() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAttributeItem(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		suggestion metadata.AttributeSuggestion
		doc        string
	}{
		{"typed system", metadata.AttributeSuggestion{LogicalName: "name", DisplayName: "Name", AttributeType: "String"}, "System Attribute (String)"},
		{"custom", metadata.AttributeSuggestion{LogicalName: "new_budget", IsCustomAttribute: true, AttributeType: "Money"}, "Custom Attribute (Money)"},
		{"untyped", metadata.AttributeSuggestion{LogicalName: "x"}, "System Attribute"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := completion.AttributeItem(tt.suggestion, 0)
			assert.Equal(t, tt.doc, got.Documentation)
			assert.Equal(t, tt.suggestion.LogicalName, got.Label)
			assert.Equal(t, tt.suggestion.LogicalName, got.InsertText)
			assert.Equal(t, tt.suggestion.DisplayName, got.Detail)
			assert.Equal(t, tt.suggestion.LogicalName+" "+tt.suggestion.DisplayName, got.FilterText)
			assert.Equal(t, protocol.CompletionItemKindField, got.Kind)
		})
	}
}

func TestToCompletionItems_PreservesInputOrder(t *testing.T) {
	t.Parallel()

	items := completion.EntityItems([]metadata.EntitySuggestion{
		{LogicalName: "b"},
		{LogicalName: "a"},
		{LogicalName: "c"},
	})

	labels := make([]string, len(items))
	sorts := make([]string, len(items))

	for i, item := range items {
		labels[i] = item.Label
		sorts[i] = item.SortText
	}

	assert.Equal(t, []string{"b", "a", "c"}, labels)
	assert.Equal(t, []string{"00000", "00001", "00002"}, sorts)
}

func TestToCompletionItems_LabelEqualsInsertText(t *testing.T) {
	t.Parallel()

	entities := completion.EntityItems([]metadata.EntitySuggestion{
		{LogicalName: "account", DisplayName: "Account"},
		{LogicalName: "new_project", DisplayName: "Project Display", IsCustomEntity: true},
	})
	attributes := completion.AttributeItems([]metadata.AttributeSuggestion{
		{LogicalName: "name", DisplayName: "Account Name"},
		{LogicalName: "new_budget", DisplayName: "Budget", IsCustomAttribute: true},
	})

	for _, item := range append(entities, attributes...) {
		assert.Equal(t, item.Label, item.InsertText)
		assert.NotEqual(t, item.Detail, item.InsertText)
	}
}

func TestToCompletionItems_Empty(t *testing.T) {
	t.Parallel()

	assert.Empty(t, completion.EntityItems(nil))
	assert.Empty(t, completion.AttributeItems([]metadata.AttributeSuggestion{}))
}

func TestSortText(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "00000", completion.SortText(0))
	assert.Equal(t, "00042", completion.SortText(42))
	assert.Equal(t, "99999", completion.SortText(99999))
}
