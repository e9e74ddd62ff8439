package schemaimport

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnana997/stylesync/catalogs"
	"github.com/gnana997/stylesync/pkg/catalog"
	"github.com/gnana997/stylesync/pkg/parser"
)

func newImporter(t *testing.T) *Importer {
	t.Helper()
	im := New(nil)
	t.Cleanup(func() { _ = im.Close() })
	return im
}

func tokenNames(c *catalog.Catalog) []string {
	names := make([]string, len(c.Tokens))
	for i, tok := range c.Tokens {
		names[i] = tok.Name
	}
	return names
}

func TestImportFile(t *testing.T) {
	im := newImporter(t)
	res, err := im.ImportFile(filepath.Join("testdata", "schema.ts"), Options{Name: "ds4ds", Version: "2024.12"})
	require.NoError(t, err)
	cat := res.Catalog

	assert.Equal(t, "ds4ds", cat.Name)
	assert.Equal(t, filepath.Join("testdata", "schema.ts"), cat.Source)
	assert.Equal(t, []string{"spacing", "border", "theme"}, cat.Collections)
	assert.Equal(t, []string{"Light", "Dark"}, cat.ThemeModes)
	assert.Empty(t, res.Skipped)

	assert.Equal(t, []string{
		"4", "8", "-4",
		"radius/semantic/large-controls",
		"alpha/primary/500-4p", "alpha/primary/500-50p", "system/bg/primary",
		"slate/50", "slate/100", "rose/50", "rose/100",
	}, tokenNames(cat))
	assert.Equal(t, []string{
		"SPACING_VARIABLES", "RADIUS_SEMANTIC_VARIABLES", "ALPHA_PRIMARY_VARIABLES", "PRIMITIVE_COLOR_VARIABLES",
	}, res.TokenDecls)

	assert.Equal(t, catalog.TokenDefinition{
		Name: "4", ValueType: catalog.ValueTypeNumber, Collection: "spacing", Description: "4px spacing",
	}, cat.Tokens[0])
	assert.Equal(t, catalog.TokenDefinition{
		Name:        "radius/semantic/large-controls",
		ValueType:   catalog.ValueTypeNumber,
		Collection:  "border",
		Description: "8px - Buttons, inputs",
		Reference:   "{radius.global.8}",
	}, cat.Tokens[3])
	assert.Equal(t, "Primary color at 4% opacity", cat.Tokens[4].Description)
	assert.Equal(t, catalog.ValueTypeColor, cat.Tokens[6].ValueType)

	require.Len(t, cat.Categories, 2)
	assert.Equal(t, "button", cat.Categories[0].Name)
	assert.Equal(t, "Buttons", cat.Categories[0].Label)
	assert.Len(t, cat.Categories[0].Components, 2)
	assert.Equal(t, "badge", cat.Categories[1].Name)
}

func TestImport_CatalogIsQueryable(t *testing.T) {
	im := newImporter(t)
	res, err := im.ImportFile(filepath.Join("testdata", "schema.ts"), Options{})
	require.NoError(t, err)

	data, err := json.Marshal(res.Catalog)
	require.NoError(t, err)
	qs, err := catalog.LoadAndQueryBytes(data)
	require.NoError(t, err)

	name, ok := qs.SuggestRadius(8)
	assert.True(t, ok)
	assert.Equal(t, "radius/semantic/large-controls", name)
	comp, cat, ok := qs.GetComponentByKey("383eda2f42660613057a870cde686c7e8b076904")
	require.True(t, ok)
	assert.Equal(t, "Badge", comp.Name)
	assert.Equal(t, "badge", cat)
	assert.Len(t, qs.TokensWithPrefix("alpha/primary/500-"), 2)
}

func TestImport_Base(t *testing.T) {
	base, _, err := catalog.LoadFromBytes(catalogs.DS4DSJSON)
	require.NoError(t, err)

	im := newImporter(t)
	src := []byte(`
export const COLLECTIONS = { THEME: "theme" } as const;
export const BG = [
  { name: "system/bg/primary", type: "COLOR", collection: COLLECTIONS.THEME },
];
`)
	res, err := im.Import(src, "bg.ts", Options{Base: base})
	require.NoError(t, err)

	cat := res.Catalog
	assert.Equal(t, base.ThemeModes, cat.ThemeModes)
	assert.Len(t, cat.Categories, len(base.Categories))
	assert.Equal(t, []string{"system/bg/primary"}, cat.ColorSuggestions["button"])
	assert.Equal(t, []string{"system/bg/primary"}, cat.DefaultColorSuggestions)
}

func TestImport_JavaScript(t *testing.T) {
	im := newImporter(t)
	src := []byte(`
const COLLECTIONS = { BORDER: 'border' };
const LEVELS = [1, 2];
module.exports.WIDTH = 1;
export const WIDTHS = LEVELS.map((n, i) => ({
  name: 'width/' + n,
  type: 'NUMBER',
  collection: COLLECTIONS.BORDER,
  description: "#" + i,
}));
`)
	res, err := im.Import(src, "schema.js", Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"width/1", "width/2"}, tokenNames(res.Catalog))
	assert.Equal(t, "#1", res.Catalog.Tokens[1].Description)
}

func TestImport_Skips(t *testing.T) {
	im := newImporter(t)
	src := []byte(`
export const COLLECTIONS = { THEME: "theme" } as const;
export const REMOTE = fetchTokens();
export const A = [
  { name: "system/bg/primary", type: "COLOR", collection: COLLECTIONS.THEME },
  { name: "labels/brand", type: "STRING", collection: COLLECTIONS.THEME },
  { name: "orphan", type: "COLOR" },
];
export const B = [
  { name: "system/bg/primary", type: "COLOR", collection: COLLECTIONS.THEME },
  { name: "system/bg/primary", type: "NUMBER", collection: COLLECTIONS.THEME },
];
export const C = [{ name: "x", type: "COLOR", collection: COLLECTIONS.MISSING }];
`)
	res, err := im.Import(src, "schema.ts", Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"system/bg/primary"}, tokenNames(res.Catalog))

	reasons := make(map[string][]string)
	for _, s := range res.Skipped {
		reasons[s.Decl] = append(reasons[s.Decl], s.Reason)
	}
	require.Len(t, reasons["REMOTE"], 1)
	assert.Contains(t, reasons["REMOTE"][0], "call_expression")
	assert.Equal(t, []string{
		`token "labels/brand": unsupported type "STRING"`,
		`token "orphan": missing collection`,
	}, reasons["A"])
	assert.Equal(t, []string{`token "system/bg/primary" conflicts with an earlier definition`}, reasons["B"])
	require.Len(t, reasons["C"], 1)
	assert.Contains(t, reasons["C"][0], "no property MISSING")
}

func TestImport_InvalidCatalog(t *testing.T) {
	im := newImporter(t)
	src := []byte(`
export const COLLECTIONS = { THEME: "theme" } as const;
export const A = [{ name: "spacing/4", type: "NUMBER", collection: "spacing" }];
`)
	res, err := im.Import(src, "schema.ts", Options{})
	require.Error(t, err)
	assert.ErrorContains(t, err, `unknown collection "spacing"`)
	require.NotNil(t, res)
	assert.Len(t, res.Catalog.Tokens, 1)
}

func TestImport_UnsupportedLanguage(t *testing.T) {
	im := newImporter(t)
	_, err := im.Import([]byte("{}"), "catalog.json", Options{})
	assert.ErrorIs(t, err, parser.ErrUnsupportedLanguage)

	_, err = im.ImportFile(filepath.Join(t.TempDir(), "missing.ts"), Options{})
	assert.ErrorContains(t, err, "failed to read schema source")
}

func TestUnescape(t *testing.T) {
	assert.Equal(t, "plain", unescape("plain"))
	assert.Equal(t, "a\nb", unescape(`a\nb`))
	assert.Equal(t, `it's "x"`, unescape(`it\'s \"x\"`))
	assert.Equal(t, "é", unescape(`é`))
}
