// Package completion turns metadata suggestions into LSP completion items.
//
// Mappers are pure: the same suggestion and index always produce the same
// item. The item label and insert text are always the logical name, never the
// display name.
package completion

import (
	"fmt"

	"go.lsp.dev/protocol"

	"github.com/rlch/dvql/metadata"
)

// TriggerSuggestCommand asks the editor to reopen the completion list.
const TriggerSuggestCommand = "editor.action.triggerSuggest"

// Mapper converts one suggestion into a completion item.
type Mapper[T any] func(suggestion T, sortIndex int) protocol.CompletionItem

// ToCompletionItems maps suggestions in order; item i has sort index i.
func ToCompletionItems[T any](mapper Mapper[T], suggestions []T) []protocol.CompletionItem {
	items := make([]protocol.CompletionItem, len(suggestions))
	for i, s := range suggestions {
		items[i] = mapper(s, i)
	}

	return items
}

// SortText zero-pads a sort index to five digits.
func SortText(sortIndex int) string {
	return fmt.Sprintf("%05d", sortIndex)
}

// EntityDocumentation classifies an entity as "System Entity" or "Custom Entity".
func EntityDocumentation(s metadata.EntitySuggestion) string {
	if s.IsCustomEntity {
		return "Custom Entity"
	}

	return "System Entity"
}

// AttributeDocumentation classifies an attribute and appends its type,
// e.g. "Custom Attribute (Money)".
func AttributeDocumentation(s metadata.AttributeSuggestion) string {
	doc := "System Attribute"
	if s.IsCustomAttribute {
		doc = "Custom Attribute"
	}

	if s.AttributeType != "" {
		doc += " (" + s.AttributeType + ")"
	}

	return doc
}

// EntityItem maps an entity suggestion.
func EntityItem(s metadata.EntitySuggestion, sortIndex int) protocol.CompletionItem {
	return protocol.CompletionItem{
		Label:         s.LogicalName,
		Kind:          protocol.CompletionItemKindClass,
		Detail:        s.DisplayName,
		Documentation: EntityDocumentation(s),
		FilterText:    filterText(s.LogicalName, s.DisplayName),
		InsertText:    s.LogicalName,
		SortText:      SortText(sortIndex),
	}
}

// AttributeItem maps an attribute suggestion.
func AttributeItem(s metadata.AttributeSuggestion, sortIndex int) protocol.CompletionItem {
	return protocol.CompletionItem{
		Label:         s.LogicalName,
		Kind:          protocol.CompletionItemKindField,
		Detail:        s.DisplayName,
		Documentation: AttributeDocumentation(s),
		FilterText:    filterText(s.LogicalName, s.DisplayName),
		InsertText:    s.LogicalName,
		SortText:      SortText(sortIndex),
	}
}

// EntityItems maps entity suggestions in order.
func EntityItems(suggestions []metadata.EntitySuggestion) []protocol.CompletionItem {
	return ToCompletionItems(EntityItem, suggestions)
}

// AttributeItems maps attribute suggestions in order.
func AttributeItems(suggestions []metadata.AttributeSuggestion) []protocol.CompletionItem {
	return ToCompletionItems(AttributeItem, suggestions)
}

func filterText(logical, display string) string {
	return logical + " " + display
}
