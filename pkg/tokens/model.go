// Package tokens models the document's variable store: collections with
// named modes, and variables holding one value per mode.
package tokens

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Store errors.
var (
	ErrNotFound     = errors.New("not found")
	ErrTypeMismatch = errors.New("type mismatch")
)

// ResolvedType is the declared value type of a variable.
type ResolvedType string

const (
	TypeColor   ResolvedType = "COLOR"
	TypeFloat   ResolvedType = "FLOAT"
	TypeString  ResolvedType = "STRING"
	TypeBoolean ResolvedType = "BOOLEAN"
)

// Kind returns the value kind a variable of this type accepts.
func (t ResolvedType) Kind() Kind {
	switch t {
	case TypeColor:
		return KindColor
	case TypeFloat:
		return KindNumber
	case TypeString:
		return KindString
	case TypeBoolean:
		return KindBoolean
	default:
		return Kind(strings.ToLower(string(t)))
	}
}

// Valid reports whether t is one of the known resolved types.
func (t ResolvedType) Valid() bool {
	switch t {
	case TypeColor, TypeFloat, TypeString, TypeBoolean:
		return true
	}
	return false
}

// Mode is one named column of values within a collection.
type Mode struct {
	ModeID string `json:"modeId"`
	Name   string `json:"name"`
}

// Collection groups variables that share the same set of modes.
type Collection struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Modes []Mode `json:"modes"`
}

// FirstMode returns the collection's first mode, if any.
func (c *Collection) FirstMode() (Mode, bool) {
	if len(c.Modes) == 0 {
		return Mode{}, false
	}
	return c.Modes[0], true
}

// ModeByName returns the mode with the given name (exact match).
func (c *Collection) ModeByName(name string) (Mode, bool) {
	for _, m := range c.Modes {
		if m.Name == name {
			return m, true
		}
	}
	return Mode{}, false
}

// ModeNames returns the collection's mode names in order.
func (c *Collection) ModeNames() []string {
	names := make([]string, len(c.Modes))
	for i, m := range c.Modes {
		names[i] = m.Name
	}
	return names
}

// Variable is a named token with one value per mode of its collection.
type Variable struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	CollectionID string           `json:"collectionId"`
	ResolvedType ResolvedType     `json:"resolvedType"`
	ValuesByMode map[string]Value `json:"valuesByMode"`
}

// Accepts checks that v can be stored in the variable. Aliases are always accepted.
func (v *Variable) Accepts(val Value) error {
	if val.Kind == KindAlias {
		return nil
	}
	if want := v.ResolvedType.Kind(); val.Kind != want {
		return fmt.Errorf("%w: %s expects %s, got %s", ErrTypeMismatch, v.Name, want, val.Kind)
	}
	return nil
}

// Store is the variable store of one document.
type Store interface {
	// LocalVariables returns every variable in a stable order.
	LocalVariables(ctx context.Context) ([]Variable, error)
	// VariableByID returns ErrNotFound when the id is unknown.
	VariableByID(ctx context.Context, id string) (*Variable, error)
	// LocalCollections returns every collection in a stable order.
	LocalCollections(ctx context.Context) ([]Collection, error)
	// CollectionByID returns ErrNotFound when the id is unknown.
	CollectionByID(ctx context.Context, id string) (*Collection, error)
	// SetValueForMode writes one value. It returns ErrNotFound for an unknown
	// variable or mode and ErrTypeMismatch when the value kind is rejected.
	SetValueForMode(ctx context.Context, variableID, modeID string, v Value) error
}

// Snapshot is a serialisable copy of a whole store.
type Snapshot struct {
	Collections []Collection `json:"collections"`
	Variables   []Variable   `json:"variables"`
}

// Validate checks the snapshot for dangling references and bad types.
func (s *Snapshot) Validate() []error {
	var errs []error
	modes := make(map[string]map[string]bool, len(s.Collections))
	for i, c := range s.Collections {
		if c.ID == "" {
			errs = append(errs, fmt.Errorf("collections[%d]: id is required", i))
			continue
		}
		if _, dup := modes[c.ID]; dup {
			errs = append(errs, fmt.Errorf("collection %q: duplicate id", c.ID))
			continue
		}
		ids := make(map[string]bool, len(c.Modes))
		for _, m := range c.Modes {
			ids[m.ModeID] = true
		}
		modes[c.ID] = ids
	}

	seen := make(map[string]bool, len(s.Variables))
	for i, v := range s.Variables {
		if v.ID == "" {
			errs = append(errs, fmt.Errorf("variables[%d]: id is required", i))
			continue
		}
		if seen[v.ID] {
			errs = append(errs, fmt.Errorf("variable %q: duplicate id", v.ID))
			continue
		}
		seen[v.ID] = true
		if !v.ResolvedType.Valid() {
			errs = append(errs, fmt.Errorf("variable %q: invalid resolvedType %q", v.Name, v.ResolvedType))
		}
		collModes, ok := modes[v.CollectionID]
		if !ok {
			errs = append(errs, fmt.Errorf("variable %q: references unknown collection %q", v.Name, v.CollectionID))
			continue
		}
		for modeID, val := range v.ValuesByMode {
			if !collModes[modeID] {
				errs = append(errs, fmt.Errorf("variable %q: value for unknown mode %q", v.Name, modeID))
			}
			if err := v.Accepts(val); err != nil {
				errs = append(errs, fmt.Errorf("variable %q mode %q: %w", v.Name, modeID, err))
			}
		}
	}
	return errs
}

// Export copies every collection and variable out of a store.
func Export(ctx context.Context, s Store) (*Snapshot, error) {
	colls, err := s.LocalCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	vars, err := s.LocalVariables(ctx)
	if err != nil {
		return nil, fmt.Errorf("list variables: %w", err)
	}
	return &Snapshot{Collections: colls, Variables: vars}, nil
}
