// Package metadata describes Dataverse schema suggestions and the sources they
// are loaded from.
package metadata

// EntitySuggestion describes one table of an environment.
// Values are compared by value and never mutated after construction.
type EntitySuggestion struct {
	LogicalName    string `json:"logicalName"              yaml:"logicalName"`
	DisplayName    string `json:"displayName,omitempty"    yaml:"displayName,omitempty"`
	IsCustomEntity bool   `json:"isCustomEntity,omitempty" yaml:"isCustomEntity,omitempty"`
}

// AttributeSuggestion describes one column of an entity.
type AttributeSuggestion struct {
	LogicalName       string `json:"logicalName"                 yaml:"logicalName"`
	DisplayName       string `json:"displayName,omitempty"       yaml:"displayName,omitempty"`
	AttributeType     string `json:"attributeType,omitempty"     yaml:"attributeType,omitempty"`
	IsCustomAttribute bool   `json:"isCustomAttribute,omitempty" yaml:"isCustomAttribute,omitempty"`
}
