package transfer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gnana997/stylesync/pkg/tokens"
)

// ErrMalformedDocument is returned when an export document cannot be used at all.
var ErrMalformedDocument = errors.New("Invalid JSON")

// Status is the resolution outcome of one mapping.
type Status string

const (
	StatusReady        Status = "ready"
	StatusNotFound     Status = "not-found"
	StatusTypeMismatch Status = "type-mismatch"
)

const notFoundMessage = "Variable not found in this file"

// PreviewItem is one variableMapping resolved against the store.
// NewValue is kept as the raw JSON from the document.
type PreviewItem struct {
	VariableName string          `json:"variableName"`
	VariableID   string          `json:"variableId,omitempty"`
	Collection   string          `json:"collection,omitempty"`
	CurrentValue *tokens.Value   `json:"currentValue,omitempty"`
	NewValue     json.RawMessage `json:"newValue"`
	Status       Status          `json:"status"`
	ErrorMessage string          `json:"errorMessage,omitempty"`
}

// PreviewMeta summarises the parsed document.
type PreviewMeta struct {
	SourceFileName string `json:"sourceFileName"`
	ExportedAt     string `json:"exportedAt"`
	TotalMappings  int    `json:"totalMappings"`
}

// Preview is the full resolution of a document. It is recomputed on every parse.
type Preview struct {
	Meta       PreviewMeta   `json:"meta"`
	Items      []PreviewItem `json:"items"`
	ReadyCount int           `json:"readyCount"`
	ErrorCount int           `json:"errorCount"`
}

// Ready returns the items that can be applied.
func (p *Preview) Ready() []PreviewItem {
	var out []PreviewItem
	for _, it := range p.Items {
		if it.Status == StatusReady {
			out = append(out, it)
		}
	}
	return out
}

type rawMapping struct {
	VariableName string          `json:"variableName"`
	NewValue     json.RawMessage `json:"newValue"`
}

type rawMeta struct {
	SourceFileName string `json:"sourceFileName"`
	ExportedAt     string `json:"exportedAt"`
}

func firstByte(raw json.RawMessage) byte {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0
	}
	return raw[0]
}

// Parse resolves every variableMapping of an export document against the
// store without modifying it. A malformed document yields a single error
// and no preview.
func Parse(ctx context.Context, store tokens.Store, raw []byte) (*Preview, error) {
	return parseAt(ctx, store, raw, time.Now())
}

func parseAt(ctx context.Context, store tokens.Store, raw []byte, now time.Time) (*Preview, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}

	mappingsRaw, ok := top["variableMappings"]
	if !ok || firstByte(mappingsRaw) != '[' {
		return nil, fmt.Errorf("%w: missing variableMappings array", ErrMalformedDocument)
	}
	metaRaw, ok := top["meta"]
	if !ok || firstByte(metaRaw) != '{' {
		return nil, fmt.Errorf("%w: missing meta object", ErrMalformedDocument)
	}

	var mappings []rawMapping
	if err := json.Unmarshal(mappingsRaw, &mappings); err != nil {
		return nil, fmt.Errorf("%w: variableMappings: %v", ErrMalformedDocument, err)
	}
	var meta rawMeta
	if err := json.Unmarshal(metaRaw, &meta); err != nil {
		return nil, fmt.Errorf("%w: meta: %v", ErrMalformedDocument, err)
	}

	vars, err := store.LocalVariables(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read variables: %w", err)
	}
	byName := make(map[string]*tokens.Variable, len(vars))
	for i := range vars {
		if _, dup := byName[vars[i].Name]; !dup {
			byName[vars[i].Name] = &vars[i]
		}
	}

	collections := make(map[string]*tokens.Collection)
	collectionOf := func(id string) *tokens.Collection {
		if c, ok := collections[id]; ok {
			return c
		}
		c, err := store.CollectionByID(ctx, id)
		if err != nil {
			c = nil
		}
		collections[id] = c
		return c
	}

	p := &Preview{
		Meta: PreviewMeta{
			SourceFileName: meta.SourceFileName,
			ExportedAt:     meta.ExportedAt,
			TotalMappings:  len(mappings),
		},
		Items: make([]PreviewItem, 0, len(mappings)),
	}
	if p.Meta.SourceFileName == "" {
		p.Meta.SourceFileName = "Unknown"
	}
	if p.Meta.ExportedAt == "" {
		p.Meta.ExportedAt = now.UTC().Format(time.RFC3339)
	}

	for _, m := range mappings {
		item := resolve(m, byName, collectionOf)
		if item.Status == StatusReady {
			p.ReadyCount++
		}
		p.Items = append(p.Items, item)
	}
	p.ErrorCount = len(p.Items) - p.ReadyCount
	return p, nil
}

func resolve(m rawMapping, byName map[string]*tokens.Variable, collectionOf func(string) *tokens.Collection) PreviewItem {
	item := PreviewItem{VariableName: m.VariableName, NewValue: m.NewValue}
	if item.NewValue == nil {
		item.NewValue = json.RawMessage("null")
	}

	v, ok := byName[m.VariableName]
	if !ok {
		item.Status = StatusNotFound
		item.ErrorMessage = notFoundMessage
		return item
	}

	item.VariableID = v.ID
	if c := collectionOf(v.CollectionID); c != nil {
		item.Collection = c.Name
		if mode, ok := c.FirstMode(); ok {
			if cur, ok := v.ValuesByMode[mode.ModeID]; ok && !cur.IsAlias() {
				item.CurrentValue = &cur
			}
		}
	}

	expected := v.ResolvedType.Kind()
	var val tokens.Value
	if err := json.Unmarshal(m.NewValue, &val); err != nil || (!val.IsAlias() && val.Kind != expected) {
		item.Status = StatusTypeMismatch
		item.ErrorMessage = fmt.Sprintf("Type mismatch: expected %s, got %s", expected, tokens.ShapeOf(m.NewValue))
		return item
	}
	item.Status = StatusReady
	return item
}
