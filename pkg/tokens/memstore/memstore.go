// Package memstore is an in-memory tokens.Store.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/gnana997/stylesync/pkg/tokens"
)

func init() {
	tokens.Register("memory", func(_ context.Context, _ tokens.Config, seed *tokens.Snapshot) (tokens.Store, func() error, error) {
		s, err := New(seed)
		if err != nil {
			return nil, nil, err
		}
		return s, func() error { return nil }, nil
	})
}

// Store keeps collections and variables in insertion order behind a RWMutex.
type Store struct {
	mu          sync.RWMutex
	collections []tokens.Collection
	variables   []tokens.Variable
	collByID    map[string]int
	varByID     map[string]int
}

// New builds a store from a snapshot. A nil snapshot gives an empty store.
func New(seed *tokens.Snapshot) (*Store, error) {
	s := &Store{
		collByID: make(map[string]int),
		varByID:  make(map[string]int),
	}
	if seed == nil {
		return s, nil
	}
	if errs := seed.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid token snapshot: %v", errs[0])
	}
	for _, c := range seed.Collections {
		s.addCollection(c)
	}
	for _, v := range seed.Variables {
		s.addVariable(v)
	}
	return s, nil
}

func (s *Store) addCollection(c tokens.Collection) {
	c.Modes = append([]tokens.Mode(nil), c.Modes...)
	s.collByID[c.ID] = len(s.collections)
	s.collections = append(s.collections, c)
}

func (s *Store) addVariable(v tokens.Variable) {
	v.ValuesByMode = cloneValues(v.ValuesByMode)
	s.varByID[v.ID] = len(s.variables)
	s.variables = append(s.variables, v)
}

func cloneValues(in map[string]tokens.Value) map[string]tokens.Value {
	out := make(map[string]tokens.Value, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneVariable(v tokens.Variable) tokens.Variable {
	v.ValuesByMode = cloneValues(v.ValuesByMode)
	return v
}

// LocalVariables implements tokens.Store.
func (s *Store) LocalVariables(_ context.Context) ([]tokens.Variable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]tokens.Variable, len(s.variables))
	for i, v := range s.variables {
		out[i] = cloneVariable(v)
	}
	return out, nil
}

// VariableByID implements tokens.Store.
func (s *Store) VariableByID(_ context.Context, id string) (*tokens.Variable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.varByID[id]
	if !ok {
		return nil, fmt.Errorf("variable %q: %w", id, tokens.ErrNotFound)
	}
	v := cloneVariable(s.variables[i])
	return &v, nil
}

// LocalCollections implements tokens.Store.
func (s *Store) LocalCollections(_ context.Context) ([]tokens.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]tokens.Collection, len(s.collections))
	for i, c := range s.collections {
		c.Modes = append([]tokens.Mode(nil), c.Modes...)
		out[i] = c
	}
	return out, nil
}

// CollectionByID implements tokens.Store.
func (s *Store) CollectionByID(_ context.Context, id string) (*tokens.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.collByID[id]
	if !ok {
		return nil, fmt.Errorf("collection %q: %w", id, tokens.ErrNotFound)
	}
	c := s.collections[i]
	c.Modes = append([]tokens.Mode(nil), c.Modes...)
	return &c, nil
}

// SetValueForMode implements tokens.Store.
func (s *Store) SetValueForMode(_ context.Context, variableID, modeID string, v tokens.Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.varByID[variableID]
	if !ok {
		return fmt.Errorf("variable %q: %w", variableID, tokens.ErrNotFound)
	}
	variable := &s.variables[i]
	ci, ok := s.collByID[variable.CollectionID]
	if !ok {
		return fmt.Errorf("collection %q: %w", variable.CollectionID, tokens.ErrNotFound)
	}
	if _, ok := modeIndex(s.collections[ci], modeID); !ok {
		return fmt.Errorf("mode %q: %w", modeID, tokens.ErrNotFound)
	}
	if err := variable.Accepts(v); err != nil {
		return err
	}
	variable.ValuesByMode[modeID] = v
	return nil
}

// Rename changes a variable's name, as a concurrent editor in the host would.
func (s *Store) Rename(variableID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.varByID[variableID]
	if !ok {
		return fmt.Errorf("variable %q: %w", variableID, tokens.ErrNotFound)
	}
	s.variables[i].Name = name
	return nil
}

// Delete removes a variable.
func (s *Store) Delete(variableID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.varByID[variableID]
	if !ok {
		return fmt.Errorf("variable %q: %w", variableID, tokens.ErrNotFound)
	}
	s.variables = append(s.variables[:i], s.variables[i+1:]...)
	delete(s.varByID, variableID)
	for j := i; j < len(s.variables); j++ {
		s.varByID[s.variables[j].ID] = j
	}
	return nil
}

func modeIndex(c tokens.Collection, modeID string) (int, bool) {
	for i, m := range c.Modes {
		if m.ModeID == modeID {
			return i, true
		}
	}
	return 0, false
}
