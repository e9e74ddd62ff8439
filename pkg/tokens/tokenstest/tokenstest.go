// Package tokenstest provides a shared fixture and a behaviour suite for
// tokens.Store implementations.
package tokenstest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnana997/stylesync/pkg/color"
	"github.com/gnana997/stylesync/pkg/tokens"
)

// Fixture returns a small store snapshot: a theme collection with Light and
// Dark modes and a border collection with a single Value mode.
func Fixture() *tokens.Snapshot {
	return &tokens.Snapshot{
		Collections: []tokens.Collection{
			{ID: "c-theme", Name: "theme", Modes: []tokens.Mode{
				{ModeID: "m-light", Name: "Light"},
				{ModeID: "m-dark", Name: "Dark"},
			}},
			{ID: "c-border", Name: "border", Modes: []tokens.Mode{
				{ModeID: "m-value", Name: "Value"},
			}},
		},
		Variables: []tokens.Variable{
			{
				ID: "v-bg", Name: "system/bg/primary", CollectionID: "c-theme", ResolvedType: tokens.TypeColor,
				ValuesByMode: map[string]tokens.Value{
					"m-light": tokens.ColorValue(color.RGB(0, 0, 1)),
					"m-dark":  tokens.ColorValue(color.RGB(0, 0, 0.5)),
				},
			},
			{
				ID: "v-fg", Name: "system/fg/primary", CollectionID: "c-theme", ResolvedType: tokens.TypeColor,
				ValuesByMode: map[string]tokens.Value{
					"m-light": tokens.AliasValue("v-bg"),
				},
			},
			{
				ID: "v-radius", Name: "radius/semantic/large-controls", CollectionID: "c-border", ResolvedType: tokens.TypeFloat,
				ValuesByMode: map[string]tokens.Value{
					"m-value": tokens.NumberValue(8),
				},
			},
			{
				ID: "v-label", Name: "labels/brand", CollectionID: "c-border", ResolvedType: tokens.TypeString,
				ValuesByMode: map[string]tokens.Value{
					"m-value": tokens.StringValue("Kido"),
				},
			},
		},
	}
}

// RunStoreTests exercises the tokens.Store contract. newStore must return a
// store seeded with Fixture().
func RunStoreTests(t *testing.T, newStore func(t *testing.T) tokens.Store) {
	ctx := context.Background()

	t.Run("LocalVariables keeps order", func(t *testing.T) {
		s := newStore(t)
		vars, err := s.LocalVariables(ctx)
		require.NoError(t, err)
		require.Len(t, vars, 4)
		assert.Equal(t, "system/bg/primary", vars[0].Name)
		assert.Equal(t, "labels/brand", vars[3].Name)
		assert.Equal(t, tokens.TypeFloat, vars[2].ResolvedType)
		assert.Equal(t, tokens.NumberValue(8), vars[2].ValuesByMode["m-value"])
		assert.True(t, vars[1].ValuesByMode["m-light"].IsAlias())
	})

	t.Run("VariableByID", func(t *testing.T) {
		s := newStore(t)
		v, err := s.VariableByID(ctx, "v-bg")
		require.NoError(t, err)
		assert.Equal(t, "c-theme", v.CollectionID)
		assert.Equal(t, "#000080", v.ValuesByMode["m-dark"].Color.Hex())

		_, err = s.VariableByID(ctx, "missing")
		assert.ErrorIs(t, err, tokens.ErrNotFound)
	})

	t.Run("LocalCollections keeps mode order", func(t *testing.T) {
		s := newStore(t)
		colls, err := s.LocalCollections(ctx)
		require.NoError(t, err)
		require.Len(t, colls, 2)
		assert.Equal(t, "theme", colls[0].Name)
		assert.Equal(t, []string{"Light", "Dark"}, colls[0].ModeNames())
	})

	t.Run("CollectionByID", func(t *testing.T) {
		s := newStore(t)
		c, err := s.CollectionByID(ctx, "c-border")
		require.NoError(t, err)
		assert.Equal(t, "border", c.Name)
		first, ok := c.FirstMode()
		require.True(t, ok)
		assert.Equal(t, "m-value", first.ModeID)

		_, err = s.CollectionByID(ctx, "missing")
		assert.ErrorIs(t, err, tokens.ErrNotFound)
	})

	t.Run("SetValueForMode writes", func(t *testing.T) {
		s := newStore(t)
		red := tokens.ColorValue(color.RGB(1, 0, 0))
		require.NoError(t, s.SetValueForMode(ctx, "v-bg", "m-dark", red))
		require.NoError(t, s.SetValueForMode(ctx, "v-fg", "m-dark", red))

		v, err := s.VariableByID(ctx, "v-bg")
		require.NoError(t, err)
		assert.Equal(t, red, v.ValuesByMode["m-dark"])
		assert.Equal(t, "#0000FF", v.ValuesByMode["m-light"].Color.Hex())

		v, err = s.VariableByID(ctx, "v-fg")
		require.NoError(t, err)
		assert.Equal(t, red, v.ValuesByMode["m-dark"])
	})

	t.Run("SetValueForMode rejects wrong kind", func(t *testing.T) {
		s := newStore(t)
		err := s.SetValueForMode(ctx, "v-radius", "m-value", tokens.ColorValue(color.Black))
		assert.ErrorIs(t, err, tokens.ErrTypeMismatch)

		v, err := s.VariableByID(ctx, "v-radius")
		require.NoError(t, err)
		assert.Equal(t, tokens.NumberValue(8), v.ValuesByMode["m-value"])
	})

	t.Run("SetValueForMode unknown ids", func(t *testing.T) {
		s := newStore(t)
		assert.ErrorIs(t, s.SetValueForMode(ctx, "missing", "m-light", tokens.NumberValue(1)), tokens.ErrNotFound)
		assert.ErrorIs(t, s.SetValueForMode(ctx, "v-bg", "m-value", tokens.ColorValue(color.Black)), tokens.ErrNotFound)
	})

	t.Run("returned values are copies", func(t *testing.T) {
		s := newStore(t)
		v, err := s.VariableByID(ctx, "v-radius")
		require.NoError(t, err)
		v.ValuesByMode["m-value"] = tokens.NumberValue(99)

		again, err := s.VariableByID(ctx, "v-radius")
		require.NoError(t, err)
		assert.Equal(t, tokens.NumberValue(8), again.ValuesByMode["m-value"])
	})
}
