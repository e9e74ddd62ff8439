package parser

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const schemaTS = `
export const COLLECTIONS = { THEME: "theme" } as const;
export const BG: VariableDefinition[] = [
  { name: "system/bg/primary", type: "COLOR", collection: COLLECTIONS.THEME },
];
`

func newTestManager(t *testing.T, size int) *Manager {
	t.Helper()
	m := NewManager(Config{PoolSize: size})
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestParse(t *testing.T) {
	m := newTestManager(t, 2)

	tests := []struct {
		name  string
		src   string
		lang  Language
		isTSX bool
	}{
		{"typescript", schemaTS, LanguageTypeScript, false},
		{"tsx", `const el = <div className="x" />;`, LanguageTypeScript, true},
		{"javascript", `export const COLLECTIONS = { THEME: "theme" };`, LanguageJavaScript, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := m.Parse([]byte(tt.src), tt.lang, tt.isTSX)
			require.NoError(t, err)
			defer tree.Close()
			root := tree.RootNode()
			assert.Equal(t, "program", root.Kind())
			assert.False(t, root.HasError())
		})
	}
}

func TestParse_SyntaxErrorsStillReturnTree(t *testing.T) {
	m := newTestManager(t, 1)
	tree, err := m.Parse([]byte(`const x = {`), LanguageTypeScript, false)
	require.NoError(t, err)
	defer tree.Close()
	assert.True(t, tree.RootNode().HasError())
}

func TestParse_Unknown(t *testing.T) {
	m := newTestManager(t, 1)
	_, err := m.Parse([]byte("x"), LanguageUnknown, false)
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)

	_, err = m.ParseFile([]byte("x"), "tokens.json")
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)
}

func TestParseFile_LazyPools(t *testing.T) {
	m := newTestManager(t, 2)
	assert.Equal(t, Stats{}, m.Stats())

	for _, path := range []string{"a.ts", "b.ts", "c.js"} {
		tree, err := m.ParseFile([]byte(`const a = 1;`), path)
		require.NoError(t, err)
		tree.Close()
	}
	stats := m.Stats()
	assert.Equal(t, 3, stats.ParsesCalled)
	// Sequential parses reuse one parser per grammar.
	assert.Equal(t, 2, stats.ParsersCreated)
}

func TestParse_Concurrent(t *testing.T) {
	const poolSize = 3
	m := newTestManager(t, poolSize)

	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			lang := LanguageTypeScript
			if i%2 == 1 {
				lang = LanguageJavaScript
			}
			tree, err := m.Parse([]byte(`export const A = { B: "b" };`), lang, false)
			if err != nil {
				errs <- err
				return
			}
			tree.Close()
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	stats := m.Stats()
	assert.Equal(t, 40, stats.ParsesCalled)
	assert.LessOrEqual(t, stats.ParsersCreated, 2*poolSize)
}

func TestDetectLanguage(t *testing.T) {
	tests := map[string]Language{
		"tokens.ts":      LanguageTypeScript,
		"Tokens.TSX":     LanguageTypeScript,
		"schema.mts":     LanguageTypeScript,
		"schema.js":      LanguageJavaScript,
		"schema.cjs":     LanguageJavaScript,
		"catalog.json":   LanguageUnknown,
		"no-extension":   LanguageUnknown,
		"dir.ts/file.go": LanguageUnknown,
	}
	for path, want := range tests {
		assert.Equal(t, want, DetectLanguage(path), path)
	}
	assert.True(t, IsTSXFile("a.tsx"))
	assert.False(t, IsTSXFile("a.ts"))
}

func TestParseLanguageString(t *testing.T) {
	assert.Equal(t, LanguageTypeScript, ParseLanguageString("TS"))
	assert.Equal(t, LanguageJavaScript, ParseLanguageString("javascript"))
	assert.Equal(t, LanguageUnknown, ParseLanguageString("go"))
	assert.Equal(t, "typescript", LanguageTypeScript.String())
	assert.Equal(t, "unknown", LanguageUnknown.String())
}
