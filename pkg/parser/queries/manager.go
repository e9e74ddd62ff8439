// Package queries compiles, caches and runs tree-sitter queries over schema
// sources.
package queries

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/gnana997/stylesync/pkg/parser"
	"github.com/gnana997/stylesync/pkg/util"
)

// QueryType identifies a query set.
type QueryType int

const (
	// QueryTypeDeclarations finds top-level const declarations.
	QueryTypeDeclarations QueryType = iota
)

func (qt QueryType) String() string {
	switch qt {
	case QueryTypeDeclarations:
		return "declarations"
	default:
		return "unknown"
	}
}

// Queries are compiled per grammar, and TSX is a separate grammar.
type queryKey struct {
	lang  parser.Language
	isTSX bool
	qtype QueryType
}

// QueryManager compiles queries lazily and caches them until Close.
type QueryManager struct {
	mu     sync.RWMutex
	cache  map[queryKey]*ts.Query
	logger *slog.Logger
}

// NewQueryManager creates a QueryManager. logger may be nil.
func NewQueryManager(logger *slog.Logger) *QueryManager {
	return &QueryManager{
		cache:  make(map[queryKey]*ts.Query),
		logger: util.OrDefault(logger),
	}
}

// GetQuery returns the compiled query for a grammar and type.
func (qm *QueryManager) GetQuery(lang parser.Language, isTSX bool, qtype QueryType) (*ts.Query, error) {
	if lang != parser.LanguageTypeScript {
		isTSX = false
	}
	key := queryKey{lang: lang, isTSX: isTSX, qtype: qtype}

	qm.mu.RLock()
	query, ok := qm.cache[key]
	qm.mu.RUnlock()
	if ok {
		return query, nil
	}

	qm.mu.Lock()
	defer qm.mu.Unlock()
	if query, ok = qm.cache[key]; ok {
		return query, nil
	}

	src, err := queryString(qtype)
	if err != nil {
		return nil, err
	}
	ptr, err := parser.LanguagePointer(lang, isTSX)
	if err != nil {
		return nil, err
	}
	query, qerr := ts.NewQuery(ts.NewLanguage(ptr), src)
	if qerr != nil {
		return nil, fmt.Errorf("failed to compile %s query for %s: %s", qtype, lang, qerr.Message)
	}
	qm.cache[key] = query

	qm.logger.Debug("compiled query", "language", lang.String(), "tsx", isTSX, "type", qtype.String())
	return query, nil
}

func queryString(qtype QueryType) (string, error) {
	switch qtype {
	case QueryTypeDeclarations:
		return DeclarationQueries, nil
	default:
		return "", fmt.Errorf("unknown query type: %d", qtype)
	}
}

// ExecuteQuery runs query over tree. Captured nodes stay valid while tree
// is open.
func (qm *QueryManager) ExecuteQuery(tree *ts.Tree, query *ts.Query, source []byte) ([]QueryMatch, error) {
	if tree == nil {
		return nil, fmt.Errorf("tree is nil")
	}
	if query == nil {
		return nil, fmt.Errorf("query is nil")
	}

	cursor := ts.NewQueryCursor()
	defer cursor.Close()

	iter := cursor.Matches(query, tree.RootNode(), source)
	names := query.CaptureNames()

	var matches []QueryMatch
	for {
		match := iter.Next()
		if match == nil {
			break
		}
		captures := make([]QueryCapture, 0, len(match.Captures))
		for _, c := range match.Captures {
			var name string
			if int(c.Index) < len(names) {
				name = names[c.Index]
			}
			category, field := parseCaptureName(name)
			node := c.Node
			captures = append(captures, QueryCapture{
				Name:     name,
				Category: category,
				Field:    field,
				Node:     &node,
				Text:     node.Utf8Text(source),
				Location: nodeLocation(&node),
			})
		}
		matches = append(matches, QueryMatch{PatternIndex: uint32(match.PatternIndex), Captures: captures})
	}
	return matches, nil
}

// Declaration is one top-level `const Name = Value`.
type Declaration struct {
	Name     string
	Value    *ts.Node
	Location Location
}

// Declarations returns the top-level declarations of tree in source order.
func (qm *QueryManager) Declarations(tree *ts.Tree, lang parser.Language, isTSX bool, source []byte) ([]Declaration, error) {
	query, err := qm.GetQuery(lang, isTSX, QueryTypeDeclarations)
	if err != nil {
		return nil, err
	}
	matches, err := qm.ExecuteQuery(tree, query, source)
	if err != nil {
		return nil, err
	}

	decls := make([]Declaration, 0, len(matches))
	for _, m := range matches {
		var d Declaration
		for _, c := range m.Captures {
			switch c.Field {
			case "name":
				d.Name = c.Text
				d.Location = c.Location
			case "value":
				d.Value = c.Node
			}
		}
		if d.Name != "" && d.Value != nil {
			decls = append(decls, d)
		}
	}
	sort.SliceStable(decls, func(i, j int) bool {
		return decls[i].Location.StartByte < decls[j].Location.StartByte
	})
	return decls, nil
}

// Close frees every compiled query.
func (qm *QueryManager) Close() error {
	qm.mu.Lock()
	defer qm.mu.Unlock()

	for key, query := range qm.cache {
		query.Close()
		delete(qm.cache, key)
	}
	return nil
}

// QueryMatch is one pattern match.
type QueryMatch struct {
	PatternIndex uint32
	Captures     []QueryCapture
}

// QueryCapture is one captured node. Name "decl.value" splits into
// Category "decl" and Field "value".
type QueryCapture struct {
	Name     string
	Category string
	Field    string
	Node     *ts.Node
	Text     string
	Location Location
}

// Location is a 1-based line/column span plus 0-based byte offsets.
type Location struct {
	StartLine   uint32
	StartColumn uint32
	EndLine     uint32
	EndColumn   uint32
	StartByte   uint32
	EndByte     uint32
}

func parseCaptureName(name string) (category, field string) {
	if cat, f, ok := strings.Cut(name, "."); ok {
		return cat, f
	}
	return name, ""
}

func nodeLocation(node *ts.Node) Location {
	start := node.StartPosition()
	end := node.EndPosition()
	return Location{
		StartLine:   uint32(start.Row + 1),
		StartColumn: uint32(start.Column + 1),
		EndLine:     uint32(end.Row + 1),
		EndColumn:   uint32(end.Column + 1),
		StartByte:   uint32(node.StartByte()),
		EndByte:     uint32(node.EndByte()),
	}
}
