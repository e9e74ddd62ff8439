package transfer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gnana997/stylesync/pkg/tokens"
)

// FallbackModes are used when no collection named "theme" exists.
var FallbackModes = []string{"Light", "Dark"}

// ApplyResult reports the outcome of one apply batch.
type ApplyResult struct {
	Success      bool     `json:"success"`
	AppliedCount int      `json:"appliedCount"`
	Errors       []string `json:"errors"`
}

// Apply writes every ready item to the store under the requested modes.
// Items are resolved by the variable id captured at preview time. A failing
// item is recorded in Errors and the batch continues.
//
// When none of the requested modes exist in a token's collection, the value
// is written to the collection's first mode.
//
// Resolution is by id, but the id must still carry the previewed name: an
// item whose variable was renamed or deleted since the preview fails instead
// of being written.
func Apply(ctx context.Context, store tokens.Store, modes []string, items []PreviewItem) ApplyResult {
	res := ApplyResult{Errors: []string{}}
	for _, it := range items {
		if it.Status != StatusReady || it.VariableID == "" {
			continue
		}
		if err := applyItem(ctx, store, modes, it); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %s", it.VariableName, err))
			continue
		}
		res.AppliedCount++
	}
	res.Success = len(res.Errors) == 0
	return res
}

func applyItem(ctx context.Context, store tokens.Store, modes []string, it PreviewItem) error {
	v, err := store.VariableByID(ctx, it.VariableID)
	if errors.Is(err, tokens.ErrNotFound) {
		return errors.New("Variable not found")
	}
	if err != nil {
		return err
	}
	if v.Name != it.VariableName {
		return fmt.Errorf("Variable was renamed to %q since preview", v.Name)
	}

	c, err := store.CollectionByID(ctx, v.CollectionID)
	if errors.Is(err, tokens.ErrNotFound) {
		return errors.New("Collection not found")
	}
	if err != nil {
		return err
	}

	var val tokens.Value
	if err := json.Unmarshal(it.NewValue, &val); err != nil {
		return err
	}

	targets := targetModes(c, modes)
	if len(targets) == 0 {
		return errors.New("No modes to apply")
	}
	for _, m := range targets {
		if err := store.SetValueForMode(ctx, v.ID, m.ModeID, val); err != nil {
			return err
		}
	}
	return nil
}

func targetModes(c *tokens.Collection, modes []string) []tokens.Mode {
	var out []tokens.Mode
	for _, name := range modes {
		if m, ok := c.ModeByName(name); ok {
			out = append(out, m)
		}
	}
	if len(out) == 0 && len(modes) > 0 {
		if m, ok := c.FirstMode(); ok {
			out = append(out, m)
		}
	}
	return out
}

// DefaultModes picks the modes offered for an apply: the modes of the
// collection named "theme" (any case), else FallbackModes.
func DefaultModes(collections []tokens.Collection) []string {
	for i := range collections {
		if strings.EqualFold(collections[i].Name, "theme") {
			if names := collections[i].ModeNames(); len(names) > 0 {
				return names
			}
		}
	}
	return append([]string(nil), FallbackModes...)
}
