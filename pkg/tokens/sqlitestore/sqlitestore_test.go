package sqlitestore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnana997/stylesync/pkg/color"
	"github.com/gnana997/stylesync/pkg/tokens"
	"github.com/gnana997/stylesync/pkg/tokens/tokenstest"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenInMemory(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Import(context.Background(), tokenstest.Fixture()))
	return s
}

func TestStoreContract(t *testing.T) {
	tokenstest.RunStoreTests(t, func(t *testing.T) tokens.Store {
		return testStore(t)
	})
}

func TestOpen_MissingDSN(t *testing.T) {
	_, err := Open(context.Background(), "")
	assert.Error(t, err)
}

func TestMigrate_Idempotent(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.Migrate(context.Background()))
	empty, err := s.Empty(context.Background())
	require.NoError(t, err)
	assert.False(t, empty)
}

func TestImport_Replaces(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	snap := tokenstest.Fixture()
	snap.Variables = snap.Variables[:1]
	require.NoError(t, s.Import(ctx, snap))

	vars, err := s.LocalVariables(ctx)
	require.NoError(t, err)
	assert.Len(t, vars, 1)
}

func TestImport_Invalid(t *testing.T) {
	s := testStore(t)
	snap := tokenstest.Fixture()
	snap.Variables[0].ResolvedType = "VECTOR"
	err := s.Import(context.Background(), snap)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid resolvedType")

	vars, err := s.LocalVariables(context.Background())
	require.NoError(t, err)
	assert.Len(t, vars, 4)
}

func TestFileDatabasePersists(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "tokens.db")

	s, closeFn, err := tokens.Open(ctx, tokens.Config{Kind: "sqlite", DSN: dsn}, tokenstest.Fixture())
	require.NoError(t, err)
	require.NoError(t, s.SetValueForMode(ctx, "v-radius", "m-value", tokens.NumberValue(12)))
	require.NoError(t, closeFn())

	// Seed is ignored once the database has content.
	s, closeFn, err = tokens.Open(ctx, tokens.Config{Kind: "sqlite", DSN: dsn}, tokenstest.Fixture())
	require.NoError(t, err)
	defer closeFn()

	v, err := s.VariableByID(ctx, "v-radius")
	require.NoError(t, err)
	assert.Equal(t, tokens.NumberValue(12), v.ValuesByMode["m-value"])
}

func TestAliasRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	require.NoError(t, s.SetValueForMode(ctx, "v-bg", "m-light", tokens.AliasValue("v-fg")))
	v, err := s.VariableByID(ctx, "v-bg")
	require.NoError(t, err)
	assert.Equal(t, tokens.AliasValue("v-fg"), v.ValuesByMode["m-light"])
	assert.Equal(t, tokens.ColorValue(color.RGB(0, 0, 0.5)), v.ValuesByMode["m-dark"])
}
