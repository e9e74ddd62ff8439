// Package schemaimport builds a token catalog from a TypeScript or
// JavaScript schema source.
//
// Top-level const declarations are evaluated statically: literals, member
// access such as COLLECTIONS.THEME, spreads, template strings and
// array map/flatMap with arrow callbacks. Arrays of objects with a name and
// a type become tokens. An object whose values each carry a components list
// becomes the component categories.
package schemaimport

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/gnana997/stylesync/pkg/catalog"
	"github.com/gnana997/stylesync/pkg/parser"
	"github.com/gnana997/stylesync/pkg/parser/queries"
	"github.com/gnana997/stylesync/pkg/util"
)

// Default declaration names for the collection table and theme modes.
const (
	DefaultCollectionsDecl = "COLLECTIONS"
	DefaultThemeModesDecl  = "THEME_MODES"
)

// Options control how a source becomes a catalog.
type Options struct {
	Name    string
	Version string
	Source  string

	CollectionsDecl string
	ThemeModesDecl  string

	// Base supplies color suggestions, and categories and theme modes when
	// the source has none. Suggestions naming unknown tokens are dropped.
	Base *catalog.Catalog
}

// Skip records a declaration or token that was left out.
type Skip struct {
	Decl   string `json:"decl"`
	Line   uint32 `json:"line"`
	Reason string `json:"reason"`
}

// Result is an import outcome.
type Result struct {
	Catalog *catalog.Catalog `json:"catalog"`
	// TokenDecls names the declarations tokens were read from.
	TokenDecls []string `json:"token_decls"`
	Skipped    []Skip   `json:"skipped,omitempty"`
}

// Importer parses schema sources. It is safe for concurrent use.
type Importer struct {
	parsers *parser.Manager
	queries *queries.QueryManager
	logger  *slog.Logger
}

// New creates an Importer. Close releases its parsers.
func New(logger *slog.Logger) *Importer {
	logger = util.OrDefault(logger)
	return &Importer{
		parsers: parser.NewManager(parser.Config{Logger: logger}),
		queries: queries.NewQueryManager(logger),
		logger:  logger,
	}
}

// Close frees parsers and compiled queries.
func (im *Importer) Close() error {
	return errors.Join(im.queries.Close(), im.parsers.Close())
}

// ImportFile reads and imports path.
func (im *Importer) ImportFile(path string, opts Options) (*Result, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema source: %w", err)
	}
	if opts.Source == "" {
		opts.Source = path
	}
	return im.Import(src, path, opts)
}

// Import builds a catalog from src; path picks the grammar. The catalog is
// validated and a validation failure is returned with the Result.
func (im *Importer) Import(src []byte, path string, opts Options) (*Result, error) {
	lang := parser.DetectLanguage(path)
	isTSX := parser.IsTSXFile(path)
	tree, err := im.parsers.Parse(src, lang, isTSX)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	decls, err := im.queries.Declarations(tree, lang, isTSX, src)
	if err != nil {
		return nil, err
	}

	ev := newEvaluator(src)
	for _, d := range decls {
		ev.declare(d.Name, d.Value)
	}

	res := &Result{Catalog: &catalog.Catalog{
		Name:    orDefault(opts.Name, "imported"),
		Version: orDefault(opts.Version, "1.0.0"),
		Source:  opts.Source,
	}}
	b := builder{res: res, seen: make(map[string]catalog.TokenDefinition)}

	collectionsDecl := orDefault(opts.CollectionsDecl, DefaultCollectionsDecl)
	modesDecl := orDefault(opts.ThemeModesDecl, DefaultThemeModesDecl)

	for _, d := range decls {
		v, err := ev.decl(d.Name)
		if err != nil {
			res.Skipped = append(res.Skipped, Skip{Decl: d.Name, Line: d.Location.StartLine, Reason: err.Error()})
			continue
		}
		switch {
		case d.Name == collectionsDecl:
			res.Catalog.Collections = stringValues(v)
		case d.Name == modesDecl:
			res.Catalog.ThemeModes = stringList(v)
		default:
			b.harvest(d, v)
		}
	}

	applyBase(res.Catalog, opts.Base)

	im.logger.Debug("schema imported",
		"path", path,
		"tokens", len(res.Catalog.Tokens),
		"categories", len(res.Catalog.Categories),
		"skipped", len(res.Skipped))

	if errs := res.Catalog.Validate(); len(errs) > 0 {
		return res, fmt.Errorf("imported catalog is invalid: %w", errors.Join(errs...))
	}
	return res, nil
}

type builder struct {
	res  *Result
	seen map[string]catalog.TokenDefinition
}

func (b *builder) harvest(d queries.Declaration, v any) {
	switch t := v.(type) {
	case []any:
		if isTokenList(t) {
			b.tokens(d, t)
		}
	case *object:
		if cats, ok := categories(t); ok && len(b.res.Catalog.Categories) == 0 {
			b.res.Catalog.Categories = cats
		}
	}
}

func (b *builder) tokens(d queries.Declaration, items []any) {
	added := false
	for _, item := range items {
		obj := item.(*object)
		tok, err := tokenOf(obj)
		if err != nil {
			b.res.Skipped = append(b.res.Skipped, Skip{Decl: d.Name, Line: d.Location.StartLine, Reason: err.Error()})
			continue
		}
		if prev, ok := b.seen[tok.Name]; ok {
			// Aggregate lists repeat earlier definitions verbatim.
			if prev != tok {
				b.res.Skipped = append(b.res.Skipped, Skip{
					Decl:   d.Name,
					Line:   d.Location.StartLine,
					Reason: fmt.Sprintf("token %q conflicts with an earlier definition", tok.Name),
				})
			}
			continue
		}
		b.seen[tok.Name] = tok
		b.res.Catalog.Tokens = append(b.res.Catalog.Tokens, tok)
		added = true
	}
	if added {
		b.res.TokenDecls = append(b.res.TokenDecls, d.Name)
	}
}

func isTokenList(items []any) bool {
	if len(items) == 0 {
		return false
	}
	for _, item := range items {
		obj, ok := item.(*object)
		if !ok {
			return false
		}
		if _, ok := obj.get("name"); !ok {
			return false
		}
		if _, ok := obj.get("type"); !ok {
			return false
		}
	}
	return true
}

func tokenOf(obj *object) (catalog.TokenDefinition, error) {
	name := obj.str("name")
	if name == "" {
		return catalog.TokenDefinition{}, errors.New("token without a name")
	}
	var valueType string
	switch strings.ToUpper(obj.str("type")) {
	case "COLOR":
		valueType = catalog.ValueTypeColor
	case "NUMBER", "FLOAT":
		valueType = catalog.ValueTypeNumber
	default:
		return catalog.TokenDefinition{}, fmt.Errorf("token %q: unsupported type %q", name, obj.str("type"))
	}
	collection := obj.str("collection")
	if collection == "" {
		return catalog.TokenDefinition{}, fmt.Errorf("token %q: missing collection", name)
	}
	return catalog.TokenDefinition{
		Name:        name,
		ValueType:   valueType,
		Collection:  collection,
		Description: obj.str("description"),
		Reference:   obj.str("reference"),
	}, nil
}

func categories(obj *object) ([]catalog.Category, bool) {
	if len(obj.keys) == 0 {
		return nil, false
	}
	out := make([]catalog.Category, 0, len(obj.keys))
	for _, name := range obj.keys {
		cat, ok := obj.vals[name].(*object)
		if !ok {
			return nil, false
		}
		list, ok := cat.vals["components"].([]any)
		if !ok {
			return nil, false
		}
		c := catalog.Category{Name: name, Label: orDefault(cat.str("label"), name)}
		for _, item := range list {
			comp, ok := item.(*object)
			if !ok {
				return nil, false
			}
			c.Components = append(c.Components, catalog.ComponentInfo{Name: comp.str("name"), Key: comp.str("key")})
		}
		out = append(out, c)
	}
	return out, true
}

func applyBase(cat *catalog.Catalog, base *catalog.Catalog) {
	if base == nil {
		return
	}
	if len(cat.ThemeModes) == 0 {
		cat.ThemeModes = append([]string(nil), base.ThemeModes...)
	}
	if len(cat.Categories) == 0 {
		cat.Categories = append([]catalog.Category(nil), base.Categories...)
	}

	known := make(map[string]bool, len(cat.Tokens))
	for _, t := range cat.Tokens {
		known[t.Name] = true
	}
	keep := func(names []string) []string {
		var out []string
		for _, n := range names {
			if known[n] {
				out = append(out, n)
			}
		}
		return out
	}
	if len(base.ColorSuggestions) > 0 {
		cat.ColorSuggestions = make(map[string][]string, len(base.ColorSuggestions))
		for k, names := range base.ColorSuggestions {
			if kept := keep(names); len(kept) > 0 {
				cat.ColorSuggestions[k] = kept
			}
		}
	}
	cat.DefaultColorSuggestions = keep(base.DefaultColorSuggestions)
}

func stringValues(v any) []string {
	obj, ok := v.(*object)
	if !ok {
		return stringList(v)
	}
	out := make([]string, 0, len(obj.keys))
	for _, k := range obj.keys {
		if s, ok := obj.vals[k].(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func stringList(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, x := range list {
		if s, ok := x.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
