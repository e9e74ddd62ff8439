package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gnana997/stylesync/pkg/host"
	"github.com/gnana997/stylesync/pkg/tokens"
	"github.com/gnana997/stylesync/pkg/util"
)

// ErrInvalidState is returned when an operation is not allowed in the current state.
var ErrInvalidState = errors.New("invalid transfer state")

// State is a step of the preview/apply cycle.
type State string

const (
	StateIdle              State = "idle"
	StateParsing           State = "parsing"
	StatePreviewReady      State = "preview-ready"
	StateParseFailed       State = "parse-failed"
	StateApplying          State = "applying"
	StateApplied           State = "applied"
	StateAppliedWithErrors State = "applied-with-errors"
)

// EngineConfig configures an Engine.
type EngineConfig struct {
	Store    tokens.Store
	Notifier host.Notifier
	Logger   *slog.Logger

	// StoreFunc returns the live store on every Parse and Apply, for hosts
	// whose store is replaced on reload. It takes precedence over Store.
	StoreFunc func() tokens.Store
}

// Engine runs the preview/apply cycle for one store. A new Parse replaces
// the previous preview wholesale.
type Engine struct {
	store    func() tokens.Store
	notifier host.Notifier
	logger   *slog.Logger

	mu      sync.Mutex
	state   State
	preview *Preview
	result  *ApplyResult
	err     error
}

// NewEngine creates an Engine in the idle state.
func NewEngine(cfg EngineConfig) *Engine {
	store := cfg.StoreFunc
	if store == nil {
		s := cfg.Store
		store = func() tokens.Store { return s }
	}
	return &Engine{
		store:    store,
		notifier: cfg.Notifier,
		logger:   util.OrDefault(cfg.Logger),
		state:    StateIdle,
	}
}

func (e *Engine) notify(msg string, isErr bool) {
	if e.notifier != nil {
		e.notifier.Notify(host.Notification{Message: msg, Error: isErr})
	}
}

// State returns the current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Preview returns the last successful preview, or nil.
func (e *Engine) Preview() *Preview {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.preview
}

// Result returns the last apply result, or nil.
func (e *Engine) Result() *ApplyResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.result
}

// Err returns the last parse error, or nil.
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// Parse resolves raw against the store and moves to PreviewReady or ParseFailed.
func (e *Engine) Parse(ctx context.Context, raw []byte) (*Preview, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.state = StateParsing
	e.preview, e.result, e.err = nil, nil, nil

	p, err := Parse(ctx, e.store(), raw)
	if err != nil {
		e.state = StateParseFailed
		e.err = err
		e.logger.Warn("export document rejected", "error", err)
		e.notify("Error: "+err.Error(), true)
		return nil, err
	}

	e.state = StatePreviewReady
	e.preview = p
	e.logger.Info("export document parsed",
		"mappings", p.Meta.TotalMappings,
		"ready", p.ReadyCount,
		"errors", p.ErrorCount)
	e.notify(fmt.Sprintf("Parsed %d mappings (%d ready)", p.Meta.TotalMappings, p.ReadyCount), false)
	return p, nil
}

// Apply writes items under modes. Items default to the ready items of the
// current preview when nil. Apply requires a preview.
func (e *Engine) Apply(ctx context.Context, modes []string, items []PreviewItem) (ApplyResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case StatePreviewReady, StateApplied, StateAppliedWithErrors:
	default:
		err := fmt.Errorf("%w: cannot apply in state %s", ErrInvalidState, e.state)
		e.notify("Error: "+err.Error(), true)
		return ApplyResult{Errors: []string{}}, err
	}
	if items == nil {
		items = e.preview.Ready()
	}

	e.state = StateApplying
	res := Apply(ctx, e.store(), modes, items)
	e.result = &res

	if res.Success {
		e.state = StateApplied
		e.notify(fmt.Sprintf("Successfully applied %d variable changes", res.AppliedCount), false)
	} else {
		e.state = StateAppliedWithErrors
		e.notify(fmt.Sprintf("Applied %d changes with %d errors", res.AppliedCount, len(res.Errors)), true)
	}
	e.logger.Info("changes applied",
		"applied", res.AppliedCount,
		"errors", len(res.Errors),
		"modes", modes)
	return res, nil
}

// Reset drops the preview and result and returns to Idle.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = StateIdle
	e.preview, e.result, e.err = nil, nil, nil
}
