package transfer

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnana997/stylesync/pkg/color"
	"github.com/gnana997/stylesync/pkg/host"
	"github.com/gnana997/stylesync/pkg/tokens"
	"github.com/gnana997/stylesync/pkg/tokens/memstore"
	"github.com/gnana997/stylesync/pkg/tokens/tokenstest"
)

// testStore returns the shared fixture plus a collection that only has a
// Light mode.
func testStore(t *testing.T) *memstore.Store {
	t.Helper()
	snap := tokenstest.Fixture()
	snap.Collections = append(snap.Collections, tokens.Collection{
		ID: "c-light", Name: "light-only", Modes: []tokens.Mode{{ModeID: "m-lo", Name: "Light"}},
	})
	snap.Variables = append(snap.Variables,
		tokens.Variable{
			ID: "v-accent", Name: "system/accent", CollectionID: "c-light", ResolvedType: tokens.TypeColor,
			ValuesByMode: map[string]tokens.Value{},
		},
		tokens.Variable{
			ID: "v-bg-dup", Name: "system/bg/primary", CollectionID: "c-theme", ResolvedType: tokens.TypeFloat,
			ValuesByMode: map[string]tokens.Value{},
		},
	)
	s, err := memstore.New(snap)
	require.NoError(t, err)
	return s
}

func doc(mappings string) []byte {
	return []byte(`{"meta":{"version":"1.0.0","sourceFileName":"Kido App","exportedAt":"2024-12-22T10:00:00Z"},` +
		`"extractions":[],"derivedTokens":{},"variableMappings":` + mappings + `}`)
}

func TestParse_Statuses(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	p, err := Parse(ctx, s, doc(`[
		{"variableName":"system/bg/primary","newValue":{"r":1,"g":0,"b":0,"a":1},"modes":["Light"]},
		{"variableName":"radius/semantic/large-controls","newValue":12,"modes":["Light"]},
		{"variableName":"does/not/exist","newValue":4,"modes":["Light"]},
		{"variableName":"radius/semantic/large-controls","newValue":{"r":0,"g":0,"b":0},"modes":["Light"]},
		{"variableName":"system/bg/primary","newValue":8,"modes":["Light"]},
		{"variableName":"system/fg/primary","newValue":{"r":0,"g":1,"b":0},"modes":["Light"]}
	]`))
	require.NoError(t, err)

	assert.Equal(t, "Kido App", p.Meta.SourceFileName)
	assert.Equal(t, "2024-12-22T10:00:00Z", p.Meta.ExportedAt)
	assert.Equal(t, 6, p.Meta.TotalMappings)
	assert.Equal(t, 3, p.ReadyCount)
	assert.Equal(t, 3, p.ErrorCount)
	require.Len(t, p.Items, 6)

	bg := p.Items[0]
	assert.Equal(t, StatusReady, bg.Status)
	assert.Equal(t, "v-bg", bg.VariableID, "first variable with the name wins")
	assert.Equal(t, "theme", bg.Collection)
	require.NotNil(t, bg.CurrentValue)
	assert.Equal(t, tokens.ColorValue(color.RGB(0, 0, 1)), *bg.CurrentValue)

	radius := p.Items[1]
	assert.Equal(t, StatusReady, radius.Status)
	assert.Equal(t, "border", radius.Collection)
	assert.Equal(t, tokens.NumberValue(8), *radius.CurrentValue)

	missing := p.Items[2]
	assert.Equal(t, StatusNotFound, missing.Status)
	assert.Empty(t, missing.VariableID)
	assert.Equal(t, "Variable not found in this file", missing.ErrorMessage)

	colorForNumber := p.Items[3]
	assert.Equal(t, StatusTypeMismatch, colorForNumber.Status)
	assert.Equal(t, "Type mismatch: expected number, got color", colorForNumber.ErrorMessage)
	assert.Equal(t, "v-radius", colorForNumber.VariableID)
	assert.Equal(t, "border", colorForNumber.Collection)
	require.NotNil(t, colorForNumber.CurrentValue)
	assert.Equal(t, tokens.NumberValue(8), *colorForNumber.CurrentValue)

	numberForColor := p.Items[4]
	assert.Equal(t, StatusTypeMismatch, numberForColor.Status)
	assert.Equal(t, "Type mismatch: expected color, got number", numberForColor.ErrorMessage)
	assert.Equal(t, "v-bg", numberForColor.VariableID)
	assert.Equal(t, "theme", numberForColor.Collection)

	alias := p.Items[5]
	assert.Equal(t, StatusReady, alias.Status)
	assert.Nil(t, alias.CurrentValue, "aliases have no displayable value")
}

func TestParse_OddValueShapes(t *testing.T) {
	p, err := Parse(context.Background(), testStore(t), doc(`[
		{"variableName":"system/bg/primary","newValue":"#FF0000"},
		{"variableName":"system/bg/primary","newValue":null},
		{"variableName":"system/bg/primary"}
	]`))
	require.NoError(t, err)
	require.Len(t, p.Items, 3)
	assert.Equal(t, "Type mismatch: expected color, got string", p.Items[0].ErrorMessage)
	assert.Equal(t, "Type mismatch: expected color, got null", p.Items[1].ErrorMessage)
	assert.Equal(t, "Type mismatch: expected color, got nothing", p.Items[2].ErrorMessage)
	assert.Equal(t, 0, p.ReadyCount)
}

func TestParse_MetaDefaults(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	p, err := parseAt(context.Background(), testStore(t),
		[]byte(`{"meta":{},"variableMappings":[]}`), now)
	require.NoError(t, err)
	assert.Equal(t, "Unknown", p.Meta.SourceFileName)
	assert.Equal(t, "2025-01-02T03:04:05Z", p.Meta.ExportedAt)
	assert.Equal(t, 0, p.Meta.TotalMappings)
	assert.Empty(t, p.Items)
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"not json", `{"meta":`, "Invalid JSON: "},
		{"missing meta", `{"variableMappings":[]}`, "Invalid JSON: missing meta object"},
		{"meta not object", `{"meta":"x","variableMappings":[]}`, "Invalid JSON: missing meta object"},
		{"missing mappings", `{"meta":{}}`, "Invalid JSON: missing variableMappings array"},
		{"mappings not array", `{"meta":{},"variableMappings":{}}`, "Invalid JSON: missing variableMappings array"},
		{"top level array", `[]`, "Invalid JSON: "},
		{"top level null", `null`, "Invalid JSON: missing variableMappings array"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Parse(context.Background(), testStore(t), []byte(tt.raw))
			require.Error(t, err)
			assert.Nil(t, p)
			assert.True(t, errors.Is(err, ErrMalformedDocument))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParse_DoesNotWrite(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	before, err := tokens.Export(ctx, s)
	require.NoError(t, err)

	_, err = Parse(ctx, s, doc(`[{"variableName":"system/bg/primary","newValue":{"r":1,"g":1,"b":1}}]`))
	require.NoError(t, err)

	after, err := tokens.Export(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func ready(name, id, value string) PreviewItem {
	return PreviewItem{VariableName: name, VariableID: id, NewValue: json.RawMessage(value), Status: StatusReady}
}

func TestApply_AllRequestedModes(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	res := Apply(ctx, s, []string{"Light", "Dark"}, []PreviewItem{
		ready("system/bg/primary", "v-bg", `{"r":1,"g":0,"b":0}`),
	})
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.AppliedCount)
	assert.Empty(t, res.Errors)

	v, err := s.VariableByID(ctx, "v-bg")
	require.NoError(t, err)
	assert.Equal(t, tokens.ColorValue(color.RGB(1, 0, 0)), v.ValuesByMode["m-light"])
	assert.Equal(t, tokens.ColorValue(color.RGB(1, 0, 0)), v.ValuesByMode["m-dark"])
}

func TestApply_PartialModeMatch(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	res := Apply(ctx, s, []string{"Light", "Dark"}, []PreviewItem{
		ready("system/accent", "v-accent", `{"r":0,"g":1,"b":0}`),
	})
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.AppliedCount)
	assert.Empty(t, res.Errors)

	v, err := s.VariableByID(ctx, "v-accent")
	require.NoError(t, err)
	assert.Len(t, v.ValuesByMode, 1)
	assert.Equal(t, tokens.ColorValue(color.RGB(0, 1, 0)), v.ValuesByMode["m-lo"])
}

func TestApply_FirstModeFallback(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	res := Apply(ctx, s, []string{"Light", "Dark"}, []PreviewItem{
		ready("radius/semantic/large-controls", "v-radius", `12`),
	})
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.AppliedCount)

	v, err := s.VariableByID(ctx, "v-radius")
	require.NoError(t, err)
	assert.Equal(t, tokens.NumberValue(12), v.ValuesByMode["m-value"])
}

func TestApply_NoModesRequested(t *testing.T) {
	res := Apply(context.Background(), testStore(t), nil, []PreviewItem{
		ready("radius/semantic/large-controls", "v-radius", `12`),
	})
	assert.False(t, res.Success)
	assert.Equal(t, 0, res.AppliedCount)
	assert.Equal(t, []string{"radius/semantic/large-controls: No modes to apply"}, res.Errors)
}

type noCollections struct{ tokens.Store }

func (noCollections) CollectionByID(context.Context, string) (*tokens.Collection, error) {
	return nil, tokens.ErrNotFound
}

func TestApply_CollectsFailures(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	require.NoError(t, s.Delete("v-fg"))
	require.NoError(t, s.Rename("v-accent", "system/accent-renamed"))

	items := []PreviewItem{
		ready("system/bg/primary", "v-bg", `{"r":1,"g":1,"b":1}`),
		ready("system/fg/primary", "v-fg", `{"r":0,"g":0,"b":0}`),
		ready("radius/semantic/large-controls", "v-radius", `4`),
		ready("system/accent", "v-accent", `{"r":0,"g":0,"b":0}`),
		ready("labels/brand", "v-label", `3`),
		{VariableName: "skipped", NewValue: json.RawMessage(`1`), Status: StatusNotFound},
		{VariableName: "no id", NewValue: json.RawMessage(`1`), Status: StatusReady},
	}
	res := Apply(ctx, s, []string{"Light", "Dark"}, items)

	assert.False(t, res.Success)
	assert.Equal(t, 2, res.AppliedCount)
	require.Len(t, res.Errors, 3)
	assert.Equal(t, "system/fg/primary: Variable not found", res.Errors[0])
	assert.Contains(t, res.Errors[1], "system/accent: Variable was renamed")
	assert.Contains(t, res.Errors[2], "labels/brand: ")
	assert.Contains(t, res.Errors[2], "expects string, got number")

	res = Apply(ctx, noCollections{s}, []string{"Light"}, items[:1])
	assert.Equal(t, []string{"system/bg/primary: Collection not found"}, res.Errors)
}

func TestDefaultModes(t *testing.T) {
	assert.Equal(t, []string{"Light", "Dark"}, DefaultModes(nil))
	assert.Equal(t, []string{"Light", "Dark"}, DefaultModes([]tokens.Collection{{Name: "border", Modes: []tokens.Mode{{Name: "Value"}}}}))
	assert.Equal(t, []string{"Day", "Night", "HC"}, DefaultModes([]tokens.Collection{
		{Name: "border", Modes: []tokens.Mode{{Name: "Value"}}},
		{Name: "Theme", Modes: []tokens.Mode{{Name: "Day"}, {Name: "Night"}, {Name: "HC"}}},
	}))

	got := DefaultModes(nil)
	got[0] = "changed"
	assert.Equal(t, "Light", FallbackModes[0])
}

func TestEngine_Cycle(t *testing.T) {
	ctx := context.Background()
	var notes []host.Notification
	e := NewEngine(EngineConfig{
		Store:    testStore(t),
		Notifier: host.NotifierFunc(func(n host.Notification) { notes = append(notes, n) }),
	})
	assert.Equal(t, StateIdle, e.State())

	_, err := e.Apply(ctx, []string{"Light"}, nil)
	require.ErrorIs(t, err, ErrInvalidState)
	require.Len(t, notes, 1)
	assert.True(t, notes[0].Error)
	assert.Equal(t, "Error: invalid transfer state: cannot apply in state idle", notes[0].Message)

	_, err = e.Parse(ctx, []byte(`{"variableMappings":[]}`))
	require.Error(t, err)
	assert.Equal(t, StateParseFailed, e.State())
	assert.Nil(t, e.Preview())
	assert.ErrorIs(t, e.Err(), ErrMalformedDocument)
	require.Len(t, notes, 2)
	assert.True(t, notes[1].Error)
	assert.Equal(t, "Error: "+err.Error(), notes[1].Message)
	_, err = e.Apply(ctx, []string{"Light"}, nil)
	require.ErrorIs(t, err, ErrInvalidState)

	p, err := e.Parse(ctx, doc(`[
		{"variableName":"system/bg/primary","newValue":{"r":1,"g":0,"b":0}},
		{"variableName":"nope","newValue":1}
	]`))
	require.NoError(t, err)
	assert.Equal(t, StatePreviewReady, e.State())
	assert.Same(t, p, e.Preview())
	require.NotEmpty(t, notes)
	assert.Equal(t, "Parsed 2 mappings (1 ready)", notes[len(notes)-1].Message)

	res, err := e.Apply(ctx, []string{"Light"}, nil)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.AppliedCount)
	assert.Equal(t, StateApplied, e.State())
	assert.Equal(t, "Successfully applied 1 variable changes", notes[len(notes)-1].Message)
	assert.False(t, notes[len(notes)-1].Error)

	res, err = e.Apply(ctx, []string{"Light"}, []PreviewItem{ready("labels/brand", "v-label", `1`)})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, StateAppliedWithErrors, e.State())
	assert.Equal(t, "Applied 0 changes with 1 errors", notes[len(notes)-1].Message)
	assert.True(t, notes[len(notes)-1].Error)
	assert.Equal(t, &res, e.Result())

	e.Reset()
	assert.Equal(t, StateIdle, e.State())
	assert.Nil(t, e.Preview())
	assert.Nil(t, e.Result())
}

func TestExportDocument_RoundTrip(t *testing.T) {
	ctx := context.Background()
	d := ExportDocument{
		Meta:        Meta{Version: DocumentVersion, ExportedAt: "2024-12-22T10:00:00Z", SourceFileName: "Kido App"},
		Extractions: []ExtractionItem{},
		VariableMappings: []VariableMapping{
			{VariableName: "system/bg/primary", NewValue: tokens.ColorValue(color.RGB(0.2, 0.4, 1)), Modes: []string{"Light", "Dark"}},
			{VariableName: "radius/semantic/large-controls", NewValue: tokens.NumberValue(8), Modes: []string{"Light", "Dark"}},
			{VariableName: "system/bg/primary", NewValue: tokens.ColorValue(color.RGB(0.2, 0.4, 1).WithAlpha(0.1)), Modes: []string{"Light", "Dark"}, Derived: true},
		},
	}
	raw, err := d.Encode()
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"derived": true`)
	assert.Contains(t, string(raw), `"derivedTokens": {}`)

	p, err := Parse(ctx, testStore(t), raw)
	require.NoError(t, err)
	assert.Equal(t, 3, p.ReadyCount)
	for _, it := range p.Items {
		assert.Equal(t, StatusReady, it.Status, it.VariableName)
	}
}

func TestDiscoverExports(t *testing.T) {
	root := t.TempDir()
	write := func(rel string) {
		p := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(`{}`), 0o644))
	}
	write("b.json")
	write("exports/a.json")
	write("exports/notes.txt")
	write("node_modules/pkg/package.json")
	write(".stylesync/cache.json")

	files, err := DiscoverExports(root, nil, DefaultExclude)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, filepath.Join(root, "b.json"), files[0])
	assert.Equal(t, filepath.Join(root, "exports", "a.json"), files[1])

	files, err = DiscoverExports(root, []string{"exports/*.json"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "exports", "a.json")}, files)

	_, err = DiscoverExports(root, []string{"[bad"}, nil)
	assert.ErrorContains(t, err, "invalid include pattern")
	_, err = DiscoverExports(root, nil, []string{"[bad"})
	assert.ErrorContains(t, err, "invalid exclude pattern")
}
