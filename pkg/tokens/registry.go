package tokens

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Config selects and configures a store backend.
type Config struct {
	Kind string `yaml:"kind"`
	DSN  string `yaml:"dsn"`
}

// Factory builds a store for a backend kind. The returned close func releases
// backend resources and is never nil.
type Factory func(ctx context.Context, cfg Config, seed *Snapshot) (Store, func() error, error)

var (
	factoriesMu sync.RWMutex
	factories   = map[string]Factory{}
)

// Register makes a backend available under kind. It is meant to be called
// from a backend package's init and panics on empty or duplicate kinds.
func Register(kind string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()

	if kind == "" {
		panic("tokens: Register called with empty kind")
	}
	if f == nil {
		panic("tokens: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("tokens: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// Open constructs a store using the registered backend for cfg.Kind.
// seed, when non-nil, is loaded into backends that start empty.
func Open(ctx context.Context, cfg Config, seed *Snapshot) (Store, func() error, error) {
	if cfg.Kind == "" {
		return nil, nil, fmt.Errorf("tokens: missing store kind")
	}

	factoriesMu.RLock()
	f := factories[cfg.Kind]
	factoriesMu.RUnlock()

	if f == nil {
		return nil, nil, fmt.Errorf("unsupported store kind=%s", cfg.Kind)
	}
	return f(ctx, cfg, seed)
}

// Kinds lists the registered backend kinds.
func Kinds() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	kinds := make([]string, 0, len(factories))
	for k := range factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
