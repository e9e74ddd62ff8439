// Package sqlitestore is a tokens.Store backed by SQLite (modernc.org/sqlite).
//
// Values are stored as their JSON encoding so every Value kind, aliases
// included, round-trips without a column per kind.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/gnana997/stylesync/pkg/tokens"
)

func init() {
	tokens.Register("sqlite", func(ctx context.Context, cfg tokens.Config, seed *tokens.Snapshot) (tokens.Store, func() error, error) {
		s, err := Open(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, nil, err
		}
		if seed != nil {
			empty, err := s.Empty(ctx)
			if err != nil {
				_ = s.Close()
				return nil, nil, err
			}
			if empty {
				if err := s.Import(ctx, seed); err != nil {
					_ = s.Close()
					return nil, nil, err
				}
			}
		}
		return s, s.Close, nil
	})
}

// Store implements tokens.Store over a *sql.DB.
type Store struct {
	db *sql.DB
}

// Open opens the database at dsn. ":memory:" gives a private in-memory database.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("sqlitestore: missing dsn")
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dsn, err)
	}
	if dsn == ":memory:" {
		// Each connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", dsn, err)
	}
	return &Store{db: db}, nil
}

// OpenInMemory opens and migrates a private in-memory store.
func OpenInMemory(ctx context.Context) (*Store, error) {
	s, err := Open(ctx, ":memory:")
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database.
func (s *Store) Close() error { return s.db.Close() }

var schema = []string{
	`CREATE TABLE IF NOT EXISTS collections (
		id       TEXT PRIMARY KEY,
		name     TEXT NOT NULL,
		position INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS modes (
		collection_id TEXT NOT NULL REFERENCES collections(id) ON DELETE CASCADE,
		mode_id       TEXT NOT NULL,
		name          TEXT NOT NULL,
		position      INTEGER NOT NULL,
		PRIMARY KEY (collection_id, mode_id)
	)`,
	`CREATE TABLE IF NOT EXISTS variables (
		id            TEXT PRIMARY KEY,
		name          TEXT NOT NULL,
		collection_id TEXT NOT NULL REFERENCES collections(id) ON DELETE CASCADE,
		resolved_type TEXT NOT NULL,
		position      INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS variables_name ON variables(name)`,
	`CREATE TABLE IF NOT EXISTS variable_values (
		variable_id TEXT NOT NULL REFERENCES variables(id) ON DELETE CASCADE,
		mode_id     TEXT NOT NULL,
		value_json  TEXT NOT NULL,
		PRIMARY KEY (variable_id, mode_id)
	)`,
}

// Migrate creates the schema. It is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Empty reports whether the store holds no collections.
func (s *Store) Empty(ctx context.Context) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM collections`).Scan(&n); err != nil {
		return false, fmt.Errorf("count collections: %w", err)
	}
	return n == 0, nil
}

// Import replaces the store contents with snap in one transaction.
func (s *Store) Import(ctx context.Context, snap *tokens.Snapshot) error {
	if errs := snap.Validate(); len(errs) > 0 {
		return fmt.Errorf("invalid token snapshot: %w", errors.Join(errs...))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range []string{
		`DELETE FROM variable_values`,
		`DELETE FROM variables`,
		`DELETE FROM modes`,
		`DELETE FROM collections`,
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clear store: %w", err)
		}
	}

	for i, c := range snap.Collections {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO collections (id, name, position) VALUES (?, ?, ?)`,
			c.ID, c.Name, i); err != nil {
			return fmt.Errorf("insert collection %s: %w", c.ID, err)
		}
		for j, m := range c.Modes {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO modes (collection_id, mode_id, name, position) VALUES (?, ?, ?, ?)`,
				c.ID, m.ModeID, m.Name, j); err != nil {
				return fmt.Errorf("insert mode %s/%s: %w", c.ID, m.ModeID, err)
			}
		}
	}

	for i, v := range snap.Variables {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO variables (id, name, collection_id, resolved_type, position) VALUES (?, ?, ?, ?, ?)`,
			v.ID, v.Name, v.CollectionID, string(v.ResolvedType), i); err != nil {
			return fmt.Errorf("insert variable %s: %w", v.ID, err)
		}
		for modeID, val := range v.ValuesByMode {
			data, err := json.Marshal(val)
			if err != nil {
				return fmt.Errorf("encode %s/%s: %w", v.ID, modeID, err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO variable_values (variable_id, mode_id, value_json) VALUES (?, ?, ?)`,
				v.ID, modeID, string(data)); err != nil {
				return fmt.Errorf("insert value %s/%s: %w", v.ID, modeID, err)
			}
		}
	}

	return tx.Commit()
}

// LocalCollections implements tokens.Store.
func (s *Store) LocalCollections(ctx context.Context) ([]tokens.Collection, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM collections ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query collections: %w", err)
	}
	var out []tokens.Collection
	for rows.Next() {
		var c tokens.Collection
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range out {
		modes, err := s.modes(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Modes = modes
	}
	return out, nil
}

func (s *Store) modes(ctx context.Context, collectionID string) ([]tokens.Mode, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT mode_id, name FROM modes WHERE collection_id = ? ORDER BY position`, collectionID)
	if err != nil {
		return nil, fmt.Errorf("query modes: %w", err)
	}
	defer rows.Close()

	modes := []tokens.Mode{}
	for rows.Next() {
		var m tokens.Mode
		if err := rows.Scan(&m.ModeID, &m.Name); err != nil {
			return nil, err
		}
		modes = append(modes, m)
	}
	return modes, rows.Err()
}

// CollectionByID implements tokens.Store.
func (s *Store) CollectionByID(ctx context.Context, id string) (*tokens.Collection, error) {
	c := tokens.Collection{ID: id}
	err := s.db.QueryRowContext(ctx, `SELECT name FROM collections WHERE id = ?`, id).Scan(&c.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("collection %q: %w", id, tokens.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query collection %s: %w", id, err)
	}
	if c.Modes, err = s.modes(ctx, id); err != nil {
		return nil, err
	}
	return &c, nil
}

// LocalVariables implements tokens.Store.
func (s *Store) LocalVariables(ctx context.Context) ([]tokens.Variable, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, collection_id, resolved_type FROM variables ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query variables: %w", err)
	}
	var out []tokens.Variable
	index := make(map[string]int)
	for rows.Next() {
		var v tokens.Variable
		var rt string
		if err := rows.Scan(&v.ID, &v.Name, &v.CollectionID, &rt); err != nil {
			rows.Close()
			return nil, err
		}
		v.ResolvedType = tokens.ResolvedType(rt)
		v.ValuesByMode = make(map[string]tokens.Value)
		index[v.ID] = len(out)
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	vrows, err := s.db.QueryContext(ctx, `SELECT variable_id, mode_id, value_json FROM variable_values`)
	if err != nil {
		return nil, fmt.Errorf("query values: %w", err)
	}
	defer vrows.Close()
	for vrows.Next() {
		var varID, modeID, data string
		if err := vrows.Scan(&varID, &modeID, &data); err != nil {
			return nil, err
		}
		i, ok := index[varID]
		if !ok {
			continue
		}
		var val tokens.Value
		if err := json.Unmarshal([]byte(data), &val); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", varID, modeID, err)
		}
		out[i].ValuesByMode[modeID] = val
	}
	return out, vrows.Err()
}

// VariableByID implements tokens.Store.
func (s *Store) VariableByID(ctx context.Context, id string) (*tokens.Variable, error) {
	v := tokens.Variable{ID: id, ValuesByMode: make(map[string]tokens.Value)}
	var rt string
	err := s.db.QueryRowContext(ctx,
		`SELECT name, collection_id, resolved_type FROM variables WHERE id = ?`, id).
		Scan(&v.Name, &v.CollectionID, &rt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("variable %q: %w", id, tokens.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query variable %s: %w", id, err)
	}
	v.ResolvedType = tokens.ResolvedType(rt)

	rows, err := s.db.QueryContext(ctx,
		`SELECT mode_id, value_json FROM variable_values WHERE variable_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("query values %s: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		var modeID, data string
		if err := rows.Scan(&modeID, &data); err != nil {
			return nil, err
		}
		var val tokens.Value
		if err := json.Unmarshal([]byte(data), &val); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", id, modeID, err)
		}
		v.ValuesByMode[modeID] = val
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &v, nil
}

// SetValueForMode implements tokens.Store.
func (s *Store) SetValueForMode(ctx context.Context, variableID, modeID string, v tokens.Value) error {
	variable, err := s.VariableByID(ctx, variableID)
	if err != nil {
		return err
	}
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM modes WHERE collection_id = ? AND mode_id = ?`,
		variable.CollectionID, modeID).Scan(&n); err != nil {
		return fmt.Errorf("query mode %s: %w", modeID, err)
	}
	if n == 0 {
		return fmt.Errorf("mode %q: %w", modeID, tokens.ErrNotFound)
	}
	if err := variable.Accepts(v); err != nil {
		return err
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode value: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO variable_values (variable_id, mode_id, value_json) VALUES (?, ?, ?)
		ON CONFLICT (variable_id, mode_id) DO UPDATE SET value_json = excluded.value_json
	`, variableID, modeID, string(data)); err != nil {
		return fmt.Errorf("write %s/%s: %w", variableID, modeID, err)
	}
	return nil
}
