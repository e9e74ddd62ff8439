package catalog

import (
	"regexp"
	"strconv"
	"strings"
)

// DefaultColorSuggestions is used when the catalog carries no default list.
var DefaultColorSuggestions = []string{"system/bg/primary", "system/fg/primary"}

// QueryService provides read-only query methods over a loaded catalog.
type QueryService struct {
	Catalog *Catalog
	Index   *CatalogIndex
}

// NewQueryService creates a QueryService from a validated catalog and its index.
func NewQueryService(cat *Catalog, idx *CatalogIndex) *QueryService {
	return &QueryService{Catalog: cat, Index: idx}
}

// LoadAndQuery loads a catalog from file and returns a ready-to-use QueryService.
func LoadAndQuery(path string) (*QueryService, error) {
	cat, idx, err := LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	return NewQueryService(cat, idx), nil
}

// LoadAndQueryBytes loads a catalog from raw JSON bytes and returns a ready-to-use QueryService.
func LoadAndQueryBytes(data []byte) (*QueryService, error) {
	cat, idx, err := LoadFromBytes(data)
	if err != nil {
		return nil, err
	}
	return NewQueryService(cat, idx), nil
}

// ListCategories returns all categories in the catalog.
func (q *QueryService) ListCategories() []Category {
	return q.Catalog.Categories
}

// ComponentsByCategory returns the components of one category, or nil when unknown.
func (q *QueryService) ComponentsByCategory(category string) []ComponentInfo {
	cat, ok := q.Index.CategoryByName[category]
	if !ok {
		return nil
	}
	return cat.Components
}

// GetComponentByKey looks up a component by its library key.
// The returned string is the owning category name.
func (q *QueryService) GetComponentByKey(key string) (*ComponentInfo, string, bool) {
	comp, ok := q.Index.ComponentByKey[key]
	if !ok {
		return nil, "", false
	}
	return comp, q.Index.CategoryOfKey[key], true
}

// ComponentInCategory reports whether key belongs to category.
func (q *QueryService) ComponentInCategory(category, key string) (*ComponentInfo, bool) {
	comp, owner, ok := q.GetComponentByKey(key)
	if !ok || owner != category {
		return nil, false
	}
	return comp, true
}

// GetToken looks up a token by exact name.
func (q *QueryService) GetToken(name string) (*TokenDefinition, bool) {
	tok, ok := q.Index.TokenByName[name]
	return tok, ok
}

// TokenNames returns every token name in catalog order.
func (q *QueryService) TokenNames() []string {
	names := make([]string, len(q.Catalog.Tokens))
	for i, t := range q.Catalog.Tokens {
		names[i] = t.Name
	}
	return names
}

// TokensByType returns tokens of one value type. Pass "" to return all tokens.
func (q *QueryService) TokensByType(valueType string) []TokenDefinition {
	if valueType == "" {
		return q.Catalog.Tokens
	}
	result := make([]TokenDefinition, 0)
	for _, t := range q.Catalog.Tokens {
		if t.ValueType == valueType {
			result = append(result, t)
		}
	}
	return result
}

// TokensByCollection returns the tokens of one collection in catalog order.
func (q *QueryService) TokensByCollection(collection string) []TokenDefinition {
	ptrs := q.Index.TokensByCollection[collection]
	result := make([]TokenDefinition, 0, len(ptrs))
	for _, t := range ptrs {
		result = append(result, *t)
	}
	return result
}

// SearchTokens performs a case-insensitive substring match on token names and
// descriptions, optionally restricted to one value type.
func (q *QueryService) SearchTokens(query, valueType string) []TokenDefinition {
	query = strings.ToLower(query)
	result := make([]TokenDefinition, 0)
	for _, t := range q.Catalog.Tokens {
		if valueType != "" && t.ValueType != valueType {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(t.Name), query) &&
			!strings.Contains(strings.ToLower(t.Description), query) {
			continue
		}
		result = append(result, t)
	}
	return result
}

// TokensWithPrefix returns tokens whose name starts with prefix, in catalog order.
func (q *QueryService) TokensWithPrefix(prefix string) []TokenDefinition {
	result := make([]TokenDefinition, 0)
	for _, t := range q.Catalog.Tokens {
		if strings.HasPrefix(t.Name, prefix) {
			result = append(result, t)
		}
	}
	return result
}

// SemanticRadius returns the semantic radius tokens in catalog order.
func (q *QueryService) SemanticRadius() []TokenDefinition {
	result := make([]TokenDefinition, 0, len(q.Index.SemanticRadius))
	for _, t := range q.Index.SemanticRadius {
		result = append(result, *t)
	}
	return result
}

var leadingPx = regexp.MustCompile(`^(\d+)px`)

// SuggestRadius returns the first semantic radius token whose description
// starts with "<radius>px". Only exact integer matches count.
func (q *QueryService) SuggestRadius(radius float64) (string, bool) {
	for _, t := range q.Index.SemanticRadius {
		m := leadingPx.FindStringSubmatch(t.Description)
		if m == nil {
			continue
		}
		px, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if float64(px) == radius {
			return t.Name, true
		}
	}
	return "", false
}

// SuggestColors returns the candidate fill tokens for a component category.
// The result is a copy.
func (q *QueryService) SuggestColors(category string) []string {
	if names, ok := q.Catalog.ColorSuggestions[category]; ok && len(names) > 0 {
		return append([]string(nil), names...)
	}
	if len(q.Catalog.DefaultColorSuggestions) > 0 {
		return append([]string(nil), q.Catalog.DefaultColorSuggestions...)
	}
	return append([]string(nil), DefaultColorSuggestions...)
}

// Stats summarises the catalog.
func (q *QueryService) Stats() Stats {
	s := Stats{
		TotalTokens:     len(q.Catalog.Tokens),
		TokensByType:    make(map[string]int),
		TokensByCollect: make(map[string]int),
		Categories:      len(q.Catalog.Categories),
		ThemeModes:      q.Catalog.ThemeModes,
	}
	for _, t := range q.Catalog.Tokens {
		s.TokensByType[t.ValueType]++
		s.TokensByCollect[t.Collection]++
	}
	for _, c := range q.Catalog.Categories {
		s.TotalComponents += len(c.Components)
	}
	return s
}
