// Package mapper turns selected styles into token mappings and assembles
// export documents from them.
package mapper

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gnana997/stylesync/pkg/catalog"
	"github.com/gnana997/stylesync/pkg/style"
	"github.com/gnana997/stylesync/pkg/transfer"
	"github.com/gnana997/stylesync/pkg/util"
)

var (
	ErrNoSelection      = errors.New("no element selected")
	ErrNoComponent      = errors.New("Please select a component to map to")
	ErrUnknownComponent = errors.New("component is not in the selected category")
)

// Notice is the user-facing text for an Add failure.
func Notice(err error) string {
	if errors.Is(err, ErrNoSelection) || errors.Is(err, ErrNoComponent) {
		return ErrNoComponent.Error()
	}
	return err.Error()
}

// AddRequest describes one mapping to capture. A nil token choice takes the
// catalog suggestion; an empty string skips that property.
type AddRequest struct {
	Selection    *style.ExtractedStyle
	Category     string
	ComponentKey string
	Variants     map[string]string

	FillToken         *string
	RadiusToken       *string
	StrokeToken       *string
	StrokeWeightToken *string
}

// Token is a helper for building AddRequest choices.
func Token(name string) *string { return &name }

// Session is the ordered list of captured extractions.
type Session struct {
	catalog *catalog.QueryService
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string

	mu    sync.Mutex
	items []transfer.ExtractionItem
}

// SessionConfig configures a Session.
type SessionConfig struct {
	Catalog *catalog.QueryService
	Logger  *slog.Logger
	// Now and NewID default to time.Now and random UUIDs.
	Now   func() time.Time
	NewID func() string
}

// NewSession creates an empty session.
func NewSession(cfg SessionConfig) *Session {
	s := &Session{
		catalog: cfg.Catalog,
		logger:  util.OrDefault(cfg.Logger),
		now:     cfg.Now,
		newID:   cfg.NewID,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = func() string { return "ext_" + uuid.New().String() }
	}
	return s
}

func (s *Session) fillSuggestion(category string) string {
	if names := s.catalog.SuggestColors(category); len(names) > 0 {
		return names[0]
	}
	return ""
}

func choose(choice *string, fallback func() string) string {
	if choice != nil {
		return *choice
	}
	return fallback()
}

// Add validates req and appends one extraction. The returned item is a copy.
func (s *Session) Add(req AddRequest) (transfer.ExtractionItem, error) {
	if req.Selection == nil {
		return transfer.ExtractionItem{}, ErrNoSelection
	}
	if req.Category == "" || req.ComponentKey == "" {
		return transfer.ExtractionItem{}, ErrNoComponent
	}
	comp, ok := s.catalog.ComponentInCategory(req.Category, req.ComponentKey)
	if !ok {
		return transfer.ExtractionItem{}, fmt.Errorf("%w: %s in %s", ErrUnknownComponent, req.ComponentKey, req.Category)
	}

	sel := req.Selection
	fillToken := choose(req.FillToken, func() string { return s.fillSuggestion(req.Category) })
	radiusToken := choose(req.RadiusToken, func() string {
		if r, ok := sel.CornerRadius.Number(); ok {
			name, _ := s.catalog.SuggestRadius(r)
			return name
		}
		return ""
	})
	strokeToken := choose(req.StrokeToken, func() string { return "" })
	strokeWeightToken := choose(req.StrokeWeightToken, func() string { return "" })

	var mappings []transfer.MappingEntry
	if fillToken != "" && len(sel.Fills) > 0 {
		mappings = append(mappings, transfer.MappingEntry{
			Property:       transfer.PropertyFill,
			ExtractedValue: sel.FirstFillHex(),
			VariableName:   fillToken,
		})
	}
	if r, ok := sel.CornerRadius.Number(); ok && radiusToken != "" && r != 0 {
		mappings = append(mappings, transfer.MappingEntry{
			Property:       transfer.PropertyRadius,
			ExtractedValue: r,
			VariableName:   radiusToken,
		})
	}
	if st, ok := sel.FirstStroke(); ok {
		if strokeToken != "" {
			mappings = append(mappings, transfer.MappingEntry{
				Property:       transfer.PropertyStroke,
				ExtractedValue: st.Hex,
				VariableName:   strokeToken,
			})
		}
		if strokeWeightToken != "" {
			mappings = append(mappings, transfer.MappingEntry{
				Property:       transfer.PropertyStrokeWeight,
				ExtractedValue: st.Weight,
				VariableName:   strokeWeightToken,
			})
		}
	}
	if mappings == nil {
		mappings = []transfer.MappingEntry{}
	}

	item := transfer.ExtractionItem{
		ID:         s.newID(),
		Timestamp:  s.now().UnixMilli(),
		SourceNode: transfer.SourceNode{ID: sel.ID, Name: sel.Name},
		DSComponent: transfer.DSComponent{
			Category: req.Category,
			Name:     comp.Name,
			Key:      comp.Key,
		},
		Properties: transfer.Properties{
			Fills:        sel.Fills,
			Strokes:      sel.Strokes,
			CornerRadius: sel.CornerRadius,
		},
		Mappings: mappings,
	}
	if len(req.Variants) > 0 {
		item.DSComponent.Variants = make(map[string]string, len(req.Variants))
		for k, v := range req.Variants {
			item.DSComponent.Variants[k] = v
		}
	}

	s.mu.Lock()
	s.items = append(s.items, item)
	s.mu.Unlock()

	s.logger.Debug("extraction added",
		"id", item.ID,
		"node", sel.Name,
		"component", comp.Name,
		"mappings", len(mappings))
	return item, nil
}

// Remove deletes the extraction with id and reports whether it existed.
func (s *Session) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return true
		}
	}
	return false
}

// Items returns the extractions in insertion order.
func (s *Session) Items() []transfer.ExtractionItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]transfer.ExtractionItem(nil), s.items...)
}

// Len returns the number of extractions.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Clear drops every extraction.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
}
