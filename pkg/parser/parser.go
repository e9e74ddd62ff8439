// Package parser parses TypeScript and JavaScript schema sources with
// tree-sitter.
package parser

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"unsafe"

	ts "github.com/tree-sitter/go-tree-sitter"
	ts_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	ts_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"github.com/gnana997/stylesync/pkg/util"
)

// ErrUnsupportedLanguage is returned for sources that are neither TS nor JS.
var ErrUnsupportedLanguage = errors.New("unsupported language")

type poolKey struct {
	lang  Language
	isTSX bool
}

// Manager hands out pooled parsers per grammar. Pools are created on first
// use. Callers own the returned trees and must Close them.
//
//	m := parser.NewManager(parser.Config{Logger: logger})
//	defer m.Close()
//
//	tree, err := m.ParseFile(src, "tokens.ts")
//	if err != nil {
//	    return err
//	}
//	defer tree.Close()
type Manager struct {
	mu       sync.RWMutex
	pools    map[poolKey]*parserPool
	poolSize int
	logger   *slog.Logger
	parses   int
}

// Config configures a Manager.
type Config struct {
	// PoolSize caps the parsers per grammar; 0 sizes by CPU count.
	PoolSize int
	Logger   *slog.Logger
}

// NewManager creates a Manager.
func NewManager(cfg Config) *Manager {
	return &Manager{
		pools:    make(map[poolKey]*parserPool),
		poolSize: util.GetOptimalPoolSizeWithOverride(cfg.PoolSize),
		logger:   util.OrDefault(cfg.Logger),
	}
}

// Parse parses source with the grammar for lang. isTSX only matters for
// TypeScript. Trees with syntax errors are still returned.
func (m *Manager) Parse(source []byte, lang Language, isTSX bool) (*ts.Tree, error) {
	if lang == LanguageUnknown {
		return nil, ErrUnsupportedLanguage
	}
	if lang != LanguageTypeScript {
		isTSX = false
	}

	m.mu.Lock()
	m.parses++
	m.mu.Unlock()

	pool, err := m.pool(lang, isTSX)
	if err != nil {
		return nil, err
	}
	p, err := pool.acquire()
	if err != nil {
		return nil, fmt.Errorf("acquire %s parser: %w", lang, err)
	}
	tree := p.Parse(source, nil)
	pool.release(p)

	if tree == nil {
		return nil, fmt.Errorf("%s parser returned no tree", lang)
	}
	if tree.RootNode().HasError() {
		m.logger.Warn("schema source has syntax errors", "language", lang.String())
	}
	return tree, nil
}

// ParseFile detects the grammar from filePath and parses source.
func (m *Manager) ParseFile(source []byte, filePath string) (*ts.Tree, error) {
	lang := DetectLanguage(filePath)
	if lang == LanguageUnknown {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, filePath)
	}
	return m.Parse(source, lang, IsTSXFile(filePath))
}

// Close releases every pooled parser. The Manager is unusable afterwards.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.pools {
		p.close()
	}
	m.logger.Debug("parser manager closed", "pools", len(m.pools), "parses", m.parses)
	m.pools = make(map[poolKey]*parserPool)
	return nil
}

func (m *Manager) pool(lang Language, isTSX bool) (*parserPool, error) {
	key := poolKey{lang: lang, isTSX: isTSX}

	m.mu.RLock()
	p, ok := m.pools[key]
	m.mu.RUnlock()
	if ok {
		return p, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok = m.pools[key]; ok {
		return p, nil
	}

	ptr, err := LanguagePointer(lang, isTSX)
	if err != nil {
		return nil, err
	}
	p = newParserPool(lang, ptr, isTSX, m.poolSize, m.logger)
	m.pools[key] = p
	m.logger.Debug("created parser pool", "language", lang.String(), "tsx", isTSX, "max", m.poolSize)
	return p, nil
}

// LanguagePointer returns the grammar for lang, used to compile queries.
func LanguagePointer(lang Language, isTSX bool) (unsafe.Pointer, error) {
	switch lang {
	case LanguageTypeScript:
		if isTSX {
			return ts_typescript.LanguageTSX(), nil
		}
		return ts_typescript.LanguageTypescript(), nil
	case LanguageJavaScript:
		return ts_javascript.Language(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, lang)
	}
}

// Stats reports parser usage.
type Stats struct {
	ParsersCreated int
	ParsesCalled   int
}

// Stats returns usage counters.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	created := 0
	for _, p := range m.pools {
		created += p.createdCount()
	}
	return Stats{ParsersCreated: created, ParsesCalled: m.parses}
}
