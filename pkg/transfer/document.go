// Package transfer implements the export document format and the
// preview/apply cycle that writes an export document into a token store.
package transfer

import (
	"encoding/json"

	"github.com/gnana997/stylesync/pkg/style"
	"github.com/gnana997/stylesync/pkg/tokens"
)

// DocumentVersion is written to meta.version of every export.
const DocumentVersion = "1.0.0"

// Property names the visual property a mapping captures.
type Property string

const (
	PropertyFill         Property = "fill"
	PropertyStroke       Property = "stroke"
	PropertyRadius       Property = "radius"
	PropertyStrokeWeight Property = "strokeWeight"
)

// Meta describes where an export came from.
type Meta struct {
	Version        string `json:"version"`
	ExportedAt     string `json:"exportedAt"`
	SourceFileName string `json:"sourceFileName"`
	SourceFileKey  string `json:"sourceFileKey"`
}

// SourceNode identifies the selected element an extraction was taken from.
type SourceNode struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DSComponent is the design-system component an extraction is mapped to.
type DSComponent struct {
	Category string            `json:"category"`
	Name     string            `json:"name"`
	Key      string            `json:"key"`
	Variants map[string]string `json:"variants,omitempty"`
}

// Properties are the raw extracted style values carried for reference.
type Properties struct {
	Fills        []style.Fill   `json:"fills"`
	Strokes      []style.Stroke `json:"strokes"`
	CornerRadius style.Radius   `json:"cornerRadius"`
}

// MappingEntry binds one extracted property to a token name.
// ExtractedValue is a hex string for colors and a number for sizes.
type MappingEntry struct {
	Property       Property `json:"property"`
	ExtractedValue any      `json:"extractedValue"`
	VariableName   string   `json:"variableName"`
}

// ExtractionItem is one captured selection with its token mappings.
type ExtractionItem struct {
	ID          string         `json:"id"`
	Timestamp   int64          `json:"timestamp"`
	SourceNode  SourceNode     `json:"sourceNode"`
	DSComponent DSComponent    `json:"dsComponent"`
	Properties  Properties     `json:"properties"`
	Mappings    []MappingEntry `json:"mappings"`
}

// AlphaSet is a base color with CSS renditions at named alpha levels.
type AlphaSet struct {
	Base  string            `json:"base"`
	Alpha map[string]string `json:"alpha"`
}

// DerivedTokens holds values computed from the mapped tokens.
type DerivedTokens struct {
	PrimaryColor *AlphaSet `json:"primaryColor,omitempty"`
}

// VariableMapping is one write request: a token name, the value and the
// modes it applies to.
type VariableMapping struct {
	VariableName string       `json:"variableName"`
	NewValue     tokens.Value `json:"newValue"`
	Modes        []string     `json:"modes"`
	Derived      bool         `json:"derived,omitempty"`
}

// ExportDocument is the file exchanged between the extract and apply sides.
type ExportDocument struct {
	Meta             Meta              `json:"meta"`
	Extractions      []ExtractionItem  `json:"extractions"`
	DerivedTokens    DerivedTokens     `json:"derivedTokens"`
	VariableMappings []VariableMapping `json:"variableMappings"`
}

// Encode renders the document as indented JSON.
func (d *ExportDocument) Encode() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}
