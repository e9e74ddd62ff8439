// Package variants resolves the variant properties of design-system
// components, from the team library or from the current selection.
package variants

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/gnana997/stylesync/pkg/host"
	"github.com/gnana997/stylesync/pkg/util"
)

// ErrNoComponentSet is reported for a standalone component.
var ErrNoComponentSet = errors.New("Component is not part of a ComponentSet (no variants)")

// Selection errors, reported verbatim to the user.
var (
	ErrNothingSelected = errors.New("No element selected")
	ErrNotAComponent   = errors.New("Selected element is not a component instance, component, or component set")
)

// Property is a component property as reported to the UI.
type Property struct {
	Name           string   `json:"name"`
	Type           string   `json:"type"`
	VariantOptions []string `json:"variantOptions,omitempty"`
	DefaultValue   any      `json:"defaultValue,omitempty"`
}

// Result is the answer to a variants request. Error is set instead of Go
// errors so a failed lookup still tells the UI which key it was about.
type Result struct {
	ComponentKey      string     `json:"componentKey"`
	ComponentSetName  string     `json:"componentSetName,omitempty"`
	VariantProperties []Property `json:"variantProperties"`
	Error             string     `json:"error,omitempty"`
	FromSelection     bool       `json:"fromSelection,omitempty"`
}

// ExtractProperties converts a set's property definitions. Unknown property
// types are skipped; INSTANCE_SWAP carries no default.
func ExtractProperties(set *host.ComponentSet) []Property {
	props := make([]Property, 0, len(set.Properties))
	for _, def := range set.Properties {
		switch def.Type {
		case host.PropertyVariant:
			props = append(props, Property{
				Name:           def.Name,
				Type:           def.Type,
				VariantOptions: append([]string(nil), def.VariantOptions...),
				DefaultValue:   def.DefaultValue,
			})
		case host.PropertyBoolean, host.PropertyText:
			props = append(props, Property{Name: def.Name, Type: def.Type, DefaultValue: def.DefaultValue})
		case host.PropertyInstanceSwap:
			props = append(props, Property{Name: def.Name, Type: def.Type})
		}
	}
	return props
}

// Selectable returns the VARIANT properties only; the others are reported
// but cannot be picked.
func Selectable(props []Property) []Property {
	out := make([]Property, 0, len(props))
	for _, p := range props {
		if p.Type == host.PropertyVariant {
			out = append(out, p)
		}
	}
	return out
}

// DefaultSelections picks, per VARIANT property, its default value when that
// is a string, else its first option.
func DefaultSelections(props []Property) map[string]string {
	sel := make(map[string]string)
	for _, p := range Selectable(props) {
		if s, ok := p.DefaultValue.(string); ok && s != "" {
			sel[p.Name] = s
			continue
		}
		if len(p.VariantOptions) > 0 {
			sel[p.Name] = p.VariantOptions[0]
		}
	}
	return sel
}

// Resolver looks up variant properties. Imported sets are kept in an LRU
// keyed by the requested component key.
type Resolver struct {
	library  host.Library
	doc      host.Document
	notifier host.Notifier
	cache    *lru.Cache[string, *host.ComponentSet]
	logger   *slog.Logger
}

// Config configures a Resolver.
type Config struct {
	Library  host.Library
	Document host.Document
	Notifier host.Notifier
	// CacheSize bounds the import cache. Defaults to 128.
	CacheSize int
	Logger    *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(cfg Config) (*Resolver, error) {
	size := cfg.CacheSize
	if size <= 0 {
		size = 128
	}
	logger := util.OrDefault(cfg.Logger)
	cache, err := lru.NewWithEvict(size, func(key string, set *host.ComponentSet) {
		logger.Debug("evicted component set", "key", key, "set", set.Name)
	})
	if err != nil {
		return nil, fmt.Errorf("create variant cache: %w", err)
	}
	return &Resolver{
		library:  cfg.Library,
		doc:      cfg.Document,
		notifier: cfg.Notifier,
		cache:    cache,
		logger:   logger,
	}, nil
}

func (r *Resolver) notify(msg string, isErr bool) {
	if r.notifier != nil {
		r.notifier.Notify(host.Notification{Message: msg, Error: isErr})
	}
}

// importSet imports key as a set, then as a component whose parent set is
// used. A standalone component yields ErrNoComponentSet and its name.
func (r *Resolver) importSet(ctx context.Context, key string) (*host.ComponentSet, string, error) {
	if set, ok := r.cache.Get(key); ok {
		return set, set.Name, nil
	}

	set, setErr := r.library.ImportComponentSetByKey(ctx, key)
	if setErr == nil {
		r.cache.Add(key, set)
		return set, set.Name, nil
	}
	r.logger.Debug("not a component set, trying component", "key", key, "error", setErr)

	comp, err := r.library.ImportComponentByKey(ctx, key)
	if err != nil {
		return nil, "", fmt.Errorf("Failed to import component: %w", err)
	}
	if comp.Parent == nil {
		return nil, comp.Name, ErrNoComponentSet
	}
	r.cache.Add(key, comp.Parent)
	return comp.Parent, comp.Parent.Name, nil
}

// FromLibrary resolves key through the library. When the import fails it
// falls back to the selected instance's component set.
func (r *Resolver) FromLibrary(ctx context.Context, key string) Result {
	set, name, err := r.importSet(ctx, key)
	switch {
	case err == nil:
		props := ExtractProperties(set)
		r.notify(fmt.Sprintf("Found %d properties for %q", len(props), set.Name), false)
		return Result{ComponentKey: key, ComponentSetName: set.Name, VariantProperties: props}

	case errors.Is(err, ErrNoComponentSet):
		return Result{ComponentKey: key, ComponentSetName: name, VariantProperties: []Property{}, Error: err.Error()}
	}

	r.logger.Warn("library import failed", "key", key, "error", err)

	if set, ok := r.selectedInstanceSet(); ok {
		props := ExtractProperties(set)
		r.notify(fmt.Sprintf("Found %d properties from selected instance", len(props)), false)
		return Result{ComponentKey: key, ComponentSetName: set.Name, VariantProperties: props, FromSelection: true}
	}

	r.notify("Error: Library not accessible. Select a component instance instead.", true)
	return Result{
		ComponentKey:      key,
		VariantProperties: []Property{},
		Error:             fmt.Sprintf("%s. Try selecting a component instance from the library, or ensure the library is enabled.", err),
	}
}

func (r *Resolver) selectedInstanceSet() (*host.ComponentSet, bool) {
	sel := r.doc.Selection()
	if len(sel) == 0 || sel[0].Type != host.NodeInstance {
		return nil, false
	}
	main, ok := r.doc.ComponentByKey(sel[0].MainComponentKey)
	if !ok || main.Parent == nil {
		return nil, false
	}
	return main.Parent, true
}

// FromSelection resolves the first selected node: an instance through its
// main component, a component through its parent set, a component set
// directly (keyed by its default variant).
func (r *Resolver) FromSelection() Result {
	sel := r.doc.Selection()
	if len(sel) == 0 {
		return Result{VariantProperties: []Property{}, Error: ErrNothingSelected.Error()}
	}
	node := sel[0]

	var (
		set *host.ComponentSet
		key string
	)
	switch node.Type {
	case host.NodeInstance:
		if main, ok := r.doc.ComponentByKey(node.MainComponentKey); ok {
			key = main.Key
			set = main.Parent
		}
	case host.NodeComponent:
		key = node.ComponentKey
		if node.ComponentSetID != "" {
			set, _ = r.doc.ComponentSetByID(node.ComponentSetID)
		}
	case host.NodeComponentSet:
		if s, ok := r.doc.ComponentSetByID(node.ComponentSetID); ok {
			set = s
			key = s.DefaultVariantKey
		}
	}

	if set == nil {
		return Result{ComponentKey: key, VariantProperties: []Property{}, Error: ErrNotAComponent.Error()}
	}

	props := ExtractProperties(set)
	r.notify(fmt.Sprintf("Found %d properties for %q", len(props), set.Name), false)
	return Result{ComponentKey: key, ComponentSetName: set.Name, VariantProperties: props, FromSelection: true}
}

// Cached reports how many imported sets are cached.
func (r *Resolver) Cached() int { return r.cache.Len() }

// Purge drops every cached import.
func (r *Resolver) Purge() { r.cache.Purge() }
