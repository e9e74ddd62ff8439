package bridge

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gnana997/stylesync/pkg/host"
	"github.com/gnana997/stylesync/pkg/style"
	"github.com/gnana997/stylesync/pkg/tokens"
	"github.com/gnana997/stylesync/pkg/transfer"
	"github.com/gnana997/stylesync/pkg/util"
	"github.com/gnana997/stylesync/pkg/variants"
)

// CollectionInfo describes one token collection for the apply side.
type CollectionInfo struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Modes         []tokens.Mode `json:"modes"`
	VariableCount int           `json:"variableCount"`
}

// ParseResultPayload is the PARSE_RESULT payload.
type ParseResultPayload struct {
	Success bool              `json:"success"`
	Preview *transfer.Preview `json:"preview,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// ApplyRequest is the APPLY_CHANGES payload.
type ApplyRequest struct {
	Modes []string               `json:"modes"`
	Items []transfer.PreviewItem `json:"items"`
}

// HostConfig configures a Host.
type HostConfig struct {
	Document host.Document
	Library  host.Library
	Notifier host.Notifier
	// Resolver defaults to one built over Library and Document.
	Resolver *variants.Resolver
	Logger   *slog.Logger
}

// Host answers UI requests against a document. All handlers run on the
// host endpoint's loop.
type Host struct {
	ep       *Endpoint
	doc      host.Document
	notifier host.Notifier
	resolver *variants.Resolver
	engine   *transfer.Engine
	logger   *slog.Logger

	unsubscribe func()
}

// NewHost registers the host handlers on ep.
func NewHost(ep *Endpoint, cfg HostConfig) (*Host, error) {
	if cfg.Document == nil {
		return nil, errors.New("bridge: host requires a document")
	}
	logger := util.OrDefault(cfg.Logger)

	resolver := cfg.Resolver
	if resolver == nil {
		var err error
		resolver, err = variants.NewResolver(variants.Config{
			Library:  cfg.Library,
			Document: cfg.Document,
			Notifier: cfg.Notifier,
			Logger:   logger,
		})
		if err != nil {
			return nil, err
		}
	}

	h := &Host{
		ep:       ep,
		doc:      cfg.Document,
		notifier: cfg.Notifier,
		resolver: resolver,
		engine: transfer.NewEngine(transfer.EngineConfig{
			StoreFunc: cfg.Document.Tokens,
			Notifier:  cfg.Notifier,
			Logger:    logger,
		}),
		logger: logger,
	}

	ep.On(RequestSelection, func(context.Context, Message) { h.emitSelection() })
	ep.On(GetFileInfo, h.handleFileInfo)
	ep.On(GetComponentVariants, h.handleComponentVariants)
	ep.On(GetSelectionVariants, h.handleSelectionVariants)
	ep.On(GetCollections, h.handleCollections)
	ep.On(ParseJSON, h.handleParse)
	ep.On(ApplyChanges, h.handleApply)
	ep.On(Notify, h.handleNotify)
	ep.On(Close, func(context.Context, Message) { h.ep.Stop() })

	h.unsubscribe = cfg.Document.OnSelectionChange(func() {
		if err := ep.Do(func(context.Context) { h.emitSelection() }); err != nil {
			h.logger.Debug("selection change dropped", "error", err)
		}
	})
	return h, nil
}

// Engine returns the preview/apply engine of the host's token store.
func (h *Host) Engine() *transfer.Engine { return h.engine }

// Detach stops listening for selection changes.
func (h *Host) Detach() {
	if h.unsubscribe != nil {
		h.unsubscribe()
		h.unsubscribe = nil
	}
}

func (h *Host) notify(msg string, isErr bool) {
	if h.notifier != nil {
		h.notifier.Notify(host.Notification{Message: msg, Error: isErr})
	}
}

func (h *Host) emit(t Type, payload any) {
	if err := h.ep.Emit(t, payload); err != nil {
		h.logger.Warn("emit failed", "type", t, "error", err)
	}
}

func (h *Host) emitSelection() {
	sel := h.doc.Selection()
	if len(sel) == 0 {
		h.emit(SelectionChanged, nil)
		return
	}
	s := style.Extract(sel[0])
	h.emit(SelectionChanged, &s)
}

func (h *Host) handleFileInfo(context.Context, Message) {
	h.emit(FileInfo, h.doc.FileInfo())
}

// handleComponentVariants imports off the loop and posts the reply back onto it.
func (h *Host) handleComponentVariants(ctx context.Context, m Message) {
	var key string
	if err := m.Decode(&key); err != nil || key == "" {
		h.emit(ComponentVariants, variants.Result{Error: "component key is required"})
		return
	}
	go func() {
		res := h.resolver.FromLibrary(ctx, key)
		if err := h.ep.Do(func(context.Context) { h.emit(ComponentVariants, res) }); err != nil {
			h.logger.Debug("variant reply dropped", "key", key, "error", err)
		}
	}()
}

func (h *Host) handleSelectionVariants(context.Context, Message) {
	h.emit(ComponentVariants, h.resolver.FromSelection())
}

func (h *Host) handleCollections(ctx context.Context, _ Message) {
	infos, err := Collections(ctx, h.doc.Tokens())
	if err != nil {
		h.logger.Error("list collections failed", "error", err)
		h.notify("Error loading collections: "+err.Error(), true)
		infos = []CollectionInfo{}
	}
	h.emit(CollectionsResult, infos)
}

// Collections summarises the collections of a store.
func Collections(ctx context.Context, store tokens.Store) ([]CollectionInfo, error) {
	colls, err := store.LocalCollections(ctx)
	if err != nil {
		return nil, err
	}
	vars, err := store.LocalVariables(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(colls))
	for _, v := range vars {
		counts[v.CollectionID]++
	}
	infos := make([]CollectionInfo, 0, len(colls))
	for _, c := range colls {
		infos = append(infos, CollectionInfo{ID: c.ID, Name: c.Name, Modes: c.Modes, VariableCount: counts[c.ID]})
	}
	return infos, nil
}

func (h *Host) handleParse(ctx context.Context, m Message) {
	var raw string
	if err := m.Decode(&raw); err != nil {
		h.notify("Error: "+err.Error(), true)
		h.emit(ParseResult, ParseResultPayload{Error: err.Error()})
		return
	}
	p, err := h.engine.Parse(ctx, []byte(raw))
	if err != nil {
		h.emit(ParseResult, ParseResultPayload{Error: err.Error()})
		return
	}
	h.emit(ParseResult, ParseResultPayload{Success: true, Preview: p})
}

func (h *Host) handleApply(ctx context.Context, m Message) {
	var req ApplyRequest
	if err := m.Decode(&req); err != nil {
		h.notify("Error: "+err.Error(), true)
		h.emit(ApplyResult, transfer.ApplyResult{Errors: []string{err.Error()}})
		return
	}
	if req.Items == nil {
		req.Items = []transfer.PreviewItem{}
	}
	res, err := h.engine.Apply(ctx, req.Modes, req.Items)
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
	}
	h.emit(ApplyResult, res)
}

func (h *Host) handleNotify(_ context.Context, m Message) {
	var msg string
	if err := m.Decode(&msg); err != nil {
		h.logger.Warn("bad notify payload", "error", err)
		return
	}
	h.notify(msg, false)
}
