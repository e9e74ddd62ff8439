package catalog

// Value types a token can hold.
const (
	ValueTypeColor  = "color"
	ValueTypeNumber = "number"
)

// TokenDefinition represents one named design token in the schema.
type TokenDefinition struct {
	Name        string `json:"name"`
	ValueType   string `json:"value_type"`
	Collection  string `json:"collection"`
	Description string `json:"description,omitempty"`
	Reference   string `json:"reference,omitempty"`
}

// ComponentInfo identifies a design-system component by its library key.
type ComponentInfo struct {
	Name string `json:"name"`
	Key  string `json:"key"`
}

// Category groups components logically.
type Category struct {
	Name       string          `json:"name"`
	Label      string          `json:"label"`
	Components []ComponentInfo `json:"components"`
}

// Stats summarises the catalog contents.
type Stats struct {
	TotalTokens     int            `json:"total_tokens"`
	TokensByType    map[string]int `json:"tokens_by_type"`
	TokensByCollect map[string]int `json:"tokens_by_collection"`
	TotalComponents int            `json:"total_components"`
	Categories      int            `json:"categories"`
	ThemeModes      []string       `json:"theme_modes"`
}
