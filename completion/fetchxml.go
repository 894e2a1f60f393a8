package completion

import (
	"go.lsp.dev/protocol"
)

// ElementSuggestion describes a FetchXML element.
// Containers hold child elements; leaves are written self-closing.
type ElementSuggestion struct {
	Name        string
	DisplayName string
	Description string
	HasChildren bool
}

var (
	fetchElement = ElementSuggestion{
		Name: "fetch", DisplayName: "Fetch",
		Description: "Root of a FetchXML query.", HasChildren: true,
	}
	entityElement = ElementSuggestion{
		Name: "entity", DisplayName: "Entity",
		Description: "The table the query reads from.", HasChildren: true,
	}
	linkEntityElement = ElementSuggestion{
		Name: "link-entity", DisplayName: "Link Entity",
		Description: "Joins a related table.", HasChildren: true,
	}
	attributeElement = ElementSuggestion{
		Name: "attribute", DisplayName: "Attribute",
		Description: "A column to return.",
	}
	allAttributesElement = ElementSuggestion{
		Name: "all-attributes", DisplayName: "All Attributes",
		Description: "Returns every column of the table.",
	}
	orderElement = ElementSuggestion{
		Name: "order", DisplayName: "Order",
		Description: "Sorts results by a column.",
	}
	filterElement = ElementSuggestion{
		Name: "filter", DisplayName: "Filter",
		Description: "Groups conditions with and/or.", HasChildren: true,
	}
	conditionElement = ElementSuggestion{
		Name: "condition", DisplayName: "Condition",
		Description: "Compares a column with a value.",
	}
	valueElement = ElementSuggestion{
		Name: "value", DisplayName: "Value",
		Description: "One value of an in or between condition.", HasChildren: true,
	}
)

// fetchXMLChildren lists the elements allowed directly under each element.
// The empty key is the document root.
var fetchXMLChildren = map[string][]ElementSuggestion{
	"":            {fetchElement},
	"fetch":       {entityElement},
	"entity":      {attributeElement, allAttributesElement, orderElement, filterElement, linkEntityElement},
	"link-entity": {attributeElement, allAttributesElement, orderElement, filterElement, linkEntityElement},
	"filter":      {conditionElement, filterElement},
	"condition":   {valueElement},
}

// FetchXMLChildren returns the elements allowed under parent, in suggestion
// order. parent "" is the document root.
func FetchXMLChildren(parent string) []ElementSuggestion {
	return fetchXMLChildren[parent]
}

// ElementItem maps a FetchXML element. Containers insert `name>…</name>` and
// leaves `name …/>`, with the cursor at the ellipsis. Both reopen completion
// afterwards so nested elements can be picked next.
func ElementItem(s ElementSuggestion, sortIndex int) protocol.CompletionItem {
	insert := s.Name + " $0/>"
	if s.HasChildren {
		insert = s.Name + ">$0</" + s.Name + ">"
	}

	return protocol.CompletionItem{
		Label:            s.Name,
		Kind:             protocol.CompletionItemKindModule,
		Detail:           s.DisplayName,
		Documentation:    s.Description,
		FilterText:       filterText(s.Name, s.DisplayName),
		InsertText:       insert,
		InsertTextFormat: protocol.InsertTextFormatSnippet,
		SortText:         SortText(sortIndex),
		Command: &protocol.Command{
			Title:   "Suggest",
			Command: TriggerSuggestCommand,
		},
	}
}

// ElementItems maps element suggestions in order.
func ElementItems(suggestions []ElementSuggestion) []protocol.CompletionItem {
	return ToCompletionItems(ElementItem, suggestions)
}
