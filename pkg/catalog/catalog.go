package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// SemanticRadiusPrefix marks the radius tokens used for radius suggestions.
const SemanticRadiusPrefix = "radius/semantic/"

// Catalog holds the full design-token schema.
type Catalog struct {
	Name        string            `json:"name"`
	Version     string            `json:"version"`
	Source      string            `json:"source"`
	ThemeModes  []string          `json:"theme_modes"`
	Collections []string          `json:"collections"`
	Tokens      []TokenDefinition `json:"tokens"`
	Categories  []Category        `json:"categories"`

	// ColorSuggestions maps a category name to its candidate fill tokens.
	ColorSuggestions        map[string][]string `json:"color_suggestions"`
	DefaultColorSuggestions []string            `json:"default_color_suggestions"`
}

// CatalogIndex provides O(1) lookups into the catalog.
// Built during LoadFromFile after validation passes.
type CatalogIndex struct {
	// TokenByName maps token name -> *TokenDefinition.
	TokenByName map[string]*TokenDefinition

	// TokensByCollection maps collection name -> tokens in catalog order.
	TokensByCollection map[string][]*TokenDefinition

	// CategoryByName maps category name -> *Category.
	CategoryByName map[string]*Category

	// ComponentByKey maps component key -> *ComponentInfo.
	ComponentByKey map[string]*ComponentInfo

	// CategoryOfKey maps component key -> owning category name.
	CategoryOfKey map[string]string

	// SemanticRadius lists the semantic radius tokens in catalog order.
	SemanticRadius []*TokenDefinition
}

var validValueTypes = map[string]bool{
	ValueTypeColor:  true,
	ValueTypeNumber: true,
}

// Validate checks the catalog for internal consistency.
// Returns a slice of validation errors (empty slice if valid).
func (c *Catalog) Validate() []error {
	var errs []error

	if c.Name == "" {
		errs = append(errs, fmt.Errorf("catalog name is required"))
	}
	if c.Version == "" {
		errs = append(errs, fmt.Errorf("catalog version is required"))
	}

	collections := make(map[string]bool, len(c.Collections))
	for _, name := range c.Collections {
		collections[name] = true
	}

	tokenNames := make(map[string]bool, len(c.Tokens))
	for i, tok := range c.Tokens {
		if tok.Name == "" {
			errs = append(errs, fmt.Errorf("tokens[%d]: name is required", i))
			continue
		}
		if tokenNames[tok.Name] {
			errs = append(errs, fmt.Errorf("token %q: duplicate token name", tok.Name))
			continue
		}
		tokenNames[tok.Name] = true

		if !validValueTypes[tok.ValueType] {
			errs = append(errs, fmt.Errorf("token %q: invalid value_type %q (must be color/number)", tok.Name, tok.ValueType))
		}
		if tok.Collection == "" {
			errs = append(errs, fmt.Errorf("token %q: collection is required", tok.Name))
		} else if len(collections) > 0 && !collections[tok.Collection] {
			errs = append(errs, fmt.Errorf("token %q: references unknown collection %q", tok.Name, tok.Collection))
		}
	}

	categoryNames := make(map[string]bool, len(c.Categories))
	keys := make(map[string]string)
	for i, cat := range c.Categories {
		if cat.Name == "" {
			errs = append(errs, fmt.Errorf("categories[%d]: name is required", i))
			continue
		}
		if categoryNames[cat.Name] {
			errs = append(errs, fmt.Errorf("categories[%d]: duplicate category name %q", i, cat.Name))
			continue
		}
		categoryNames[cat.Name] = true

		for j, comp := range cat.Components {
			if comp.Name == "" || comp.Key == "" {
				errs = append(errs, fmt.Errorf("category %q components[%d]: name and key are required", cat.Name, j))
				continue
			}
			if owner, dup := keys[comp.Key]; dup {
				errs = append(errs, fmt.Errorf("category %q: component key %q already used in %q", cat.Name, comp.Key, owner))
				continue
			}
			keys[comp.Key] = cat.Name
		}
	}

	// Cross-reference: suggestion lists must name known color tokens.
	checkSuggestions := func(owner string, names []string) {
		for _, name := range names {
			if !tokenNames[name] {
				errs = append(errs, fmt.Errorf("%s: references non-existent token %q", owner, name))
			}
		}
	}
	for cat, names := range c.ColorSuggestions {
		checkSuggestions(fmt.Sprintf("color_suggestions[%s]", cat), names)
	}
	checkSuggestions("default_color_suggestions", c.DefaultColorSuggestions)

	return errs
}

// BuildIndex creates lookup maps for fast access.
// Should be called after Validate() passes.
func (c *Catalog) BuildIndex() *CatalogIndex {
	idx := &CatalogIndex{
		TokenByName:        make(map[string]*TokenDefinition, len(c.Tokens)),
		TokensByCollection: make(map[string][]*TokenDefinition),
		CategoryByName:     make(map[string]*Category, len(c.Categories)),
		ComponentByKey:     make(map[string]*ComponentInfo),
		CategoryOfKey:      make(map[string]string),
	}

	for i := range c.Tokens {
		tok := &c.Tokens[i]
		idx.TokenByName[tok.Name] = tok
		idx.TokensByCollection[tok.Collection] = append(idx.TokensByCollection[tok.Collection], tok)
		if strings.HasPrefix(tok.Name, SemanticRadiusPrefix) {
			idx.SemanticRadius = append(idx.SemanticRadius, tok)
		}
	}

	for i := range c.Categories {
		cat := &c.Categories[i]
		idx.CategoryByName[cat.Name] = cat
		for j := range cat.Components {
			comp := &cat.Components[j]
			idx.ComponentByKey[comp.Key] = comp
			idx.CategoryOfKey[comp.Key] = cat.Name
		}
	}

	return idx
}

// LoadFromFile loads a catalog from a JSON file, validates it, and builds the index.
func LoadFromFile(path string) (*Catalog, *CatalogIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes parses a catalog from raw JSON bytes, validates it, and builds the index.
func LoadFromBytes(data []byte) (*Catalog, *CatalogIndex, error) {
	var catalog Catalog
	if err := json.Unmarshal(data, &catalog); err != nil {
		return nil, nil, fmt.Errorf("failed to parse catalog JSON: %w", err)
	}

	if errs := catalog.Validate(); len(errs) > 0 {
		return nil, nil, fmt.Errorf("catalog validation failed: %w", errors.Join(errs...))
	}

	index := catalog.BuildIndex()
	return &catalog, index, nil
}
