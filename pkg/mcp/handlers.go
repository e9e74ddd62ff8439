package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/gnana997/stylesync/pkg/bridge"
	"github.com/gnana997/stylesync/pkg/catalog"
	"github.com/gnana997/stylesync/pkg/mapper"
	"github.com/gnana997/stylesync/pkg/tokens"
	"github.com/gnana997/stylesync/pkg/transfer"
)

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return mcp.NewToolResultText(string(b)), nil
}

func bridgeError(err error) *mcp.CallToolResult {
	return mcp.NewToolResultErrorFromErr("host request failed", err)
}

// optionalString returns nil when key is absent so the caller can tell
// "not given" from "".
func optionalString(args map[string]any, key string) *string {
	v, ok := args[key]
	if !ok || v == nil {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return &s
}

func (s *Server) notify(msg string) {
	if err := s.client.Notify(msg); err != nil {
		s.logger.Debug("notify failed", "error", err)
	}
}

// --- selection and document ---

func (s *Server) handleGetSelection(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sel, err := s.client.Selection(ctx)
	if err != nil {
		return bridgeError(err), nil
	}
	return jsonResult(sel)
}

func (s *Server) handleSelectNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.selector == nil {
		return mcp.NewToolResultError("this host does not support changing the selection"), nil
	}
	ids := req.GetStringSlice("ids", nil)
	if len(ids) == 0 {
		return mcp.NewToolResultError("ids is required"), nil
	}
	if err := s.selector.Select(ids...); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.handleGetSelection(ctx, req)
}

func (s *Server) handleGetFileInfo(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	info, err := s.client.FileInfo(ctx)
	if err != nil {
		return bridgeError(err), nil
	}
	return jsonResult(info)
}

type collectionsResult struct {
	Collections  []bridge.CollectionInfo `json:"collections"`
	DefaultModes []string                `json:"default_modes"`
}

func (s *Server) collections(ctx context.Context) (collectionsResult, error) {
	infos, err := s.client.Collections(ctx)
	if err != nil {
		return collectionsResult{}, err
	}
	colls := make([]tokens.Collection, len(infos))
	for i, c := range infos {
		colls[i] = tokens.Collection{ID: c.ID, Name: c.Name, Modes: c.Modes}
	}
	return collectionsResult{Collections: infos, DefaultModes: transfer.DefaultModes(colls)}, nil
}

func (s *Server) handleGetCollections(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.collections(ctx)
	if err != nil {
		return bridgeError(err), nil
	}
	return jsonResult(res)
}

func (s *Server) handleGetComponentVariants(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := req.RequireString("component_key")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.client.ComponentVariants(ctx, key)
	if err != nil {
		return bridgeError(err), nil
	}
	return jsonResult(res)
}

func (s *Server) handleGetSelectionVariants(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.client.SelectionVariants(ctx)
	if err != nil {
		return bridgeError(err), nil
	}
	return jsonResult(res)
}

// --- catalog ---

type categorySummary struct {
	Name           string `json:"name"`
	Label          string `json:"label"`
	ComponentCount int    `json:"component_count"`
}

func (s *Server) handleListCategories(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cats := s.query.ListCategories()
	out := make([]categorySummary, len(cats))
	for i, c := range cats {
		out[i] = categorySummary{Name: c.Name, Label: c.Label, ComponentCount: len(c.Components)}
	}
	return jsonResult(out)
}

type componentSummary struct {
	Name     string `json:"name"`
	Key      string `json:"key"`
	Category string `json:"category"`
}

func (s *Server) handleListComponents(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	category := req.GetString("category", "")
	keyword := strings.ToLower(req.GetString("keyword", ""))

	if category != "" {
		if _, ok := s.query.Index.CategoryByName[category]; !ok {
			return mcp.NewToolResultError(fmt.Sprintf("unknown category %q", category)), nil
		}
	}

	out := make([]componentSummary, 0)
	for _, cat := range s.query.ListCategories() {
		if category != "" && cat.Name != category {
			continue
		}
		for _, c := range cat.Components {
			if keyword != "" && !strings.Contains(strings.ToLower(c.Name), keyword) {
				continue
			}
			out = append(out, componentSummary{Name: c.Name, Key: c.Key, Category: cat.Name})
		}
	}
	return jsonResult(out)
}

func (s *Server) handleSearchTokens(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	valueType := req.GetString("value_type", "")
	if valueType != "" && valueType != catalog.ValueTypeColor && valueType != catalog.ValueTypeNumber {
		return mcp.NewToolResultError(fmt.Sprintf("invalid value_type %q", valueType)), nil
	}
	collection := req.GetString("collection", "")

	found := s.query.SearchTokens(req.GetString("query", ""), valueType)
	out := make([]catalog.TokenDefinition, 0, len(found))
	for _, t := range found {
		if collection != "" && t.Collection != collection {
			continue
		}
		out = append(out, t)
	}
	return jsonResult(out)
}

type suggestions struct {
	Fill   []string `json:"fill"`
	Radius string   `json:"radius,omitempty"`
	// SemanticRadius lists every semantic radius token for a manual choice.
	SemanticRadius []string `json:"semantic_radius"`
}

func (s *Server) handleSuggestTokens(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out := suggestions{Fill: s.query.SuggestColors(req.GetString("category", ""))}
	for _, t := range s.query.SemanticRadius() {
		out.SemanticRadius = append(out.SemanticRadius, t.Name)
	}

	sel, err := s.client.Selection(ctx)
	if err != nil {
		return bridgeError(err), nil
	}
	if sel != nil {
		if r, ok := sel.CornerRadius.Number(); ok {
			out.Radius, _ = s.query.SuggestRadius(r)
		}
	}
	return jsonResult(out)
}

// --- session ---

func (s *Server) handleAddExtraction(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()

	sel, err := s.client.Selection(ctx)
	if err != nil {
		return bridgeError(err), nil
	}

	var variants map[string]string
	if raw, ok := args["variants"].(map[string]any); ok {
		variants = make(map[string]string, len(raw))
		for k, v := range raw {
			variants[k] = fmt.Sprint(v)
		}
	}

	item, err := s.session.Add(mapper.AddRequest{
		Selection:         sel,
		Category:          req.GetString("category", ""),
		ComponentKey:      req.GetString("component_key", ""),
		Variants:          variants,
		FillToken:         optionalString(args, "fill_token"),
		RadiusToken:       optionalString(args, "radius_token"),
		StrokeToken:       optionalString(args, "stroke_token"),
		StrokeWeightToken: optionalString(args, "stroke_weight_token"),
	})
	if err != nil {
		msg := mapper.Notice(err)
		s.notify(msg)
		return mcp.NewToolResultError(msg), nil
	}

	s.notify(fmt.Sprintf("Added %q mapping", item.SourceNode.Name))
	return jsonResult(item)
}

func (s *Server) handleRemoveExtraction(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !s.session.Remove(id) {
		return mcp.NewToolResultError(fmt.Sprintf("no extraction with id %q", id)), nil
	}
	return jsonResult(map[string]any{"removed": id, "remaining": s.session.Len()})
}

func (s *Server) handleListExtractions(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items := s.session.Items()
	if items == nil {
		items = []transfer.ExtractionItem{}
	}
	return jsonResult(items)
}

func (s *Server) handleExportDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.session.Len() == 0 {
		return mcp.NewToolResultError("no extractions to export"), nil
	}
	info, err := s.client.FileInfo(ctx)
	if err != nil {
		return bridgeError(err), nil
	}

	modes := req.GetStringSlice("modes", s.modes)
	doc := mapper.BuildExport(info, s.session.Items(), mapper.ExportOptions{
		Modes:       modes,
		Catalog:     s.query,
		SkipDerived: req.GetBool("skip_derived", false),
	})

	path := req.GetString("path", "")
	if path == "" {
		return jsonResult(doc)
	}
	data, err := doc.Encode()
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return mcp.NewToolResultErrorFromErr("failed to write export", err), nil
	}
	s.files.Invalidate(path)
	s.notify(fmt.Sprintf("Exported %d mappings", len(doc.VariableMappings)))
	return jsonResult(map[string]any{
		"path":              path,
		"extractions":       len(doc.Extractions),
		"variable_mappings": len(doc.VariableMappings),
	})
}

// --- transfer ---

func (s *Server) handleParseDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	document := req.GetString("document", "")
	if path := req.GetString("path", ""); path != "" {
		if document != "" {
			return mcp.NewToolResultError("give either document or path, not both"), nil
		}
		data, err := s.files.ReadAll(path)
		if err != nil {
			return mcp.NewToolResultErrorFromErr("failed to read export", err), nil
		}
		document = string(data)
	}
	if document == "" {
		return mcp.NewToolResultError("document or path is required"), nil
	}

	res, err := s.client.Parse(ctx, document)
	if err != nil {
		return bridgeError(err), nil
	}

	s.mu.Lock()
	s.preview = res.Preview
	s.mu.Unlock()

	if !res.Success {
		return mcp.NewToolResultError(res.Error), nil
	}
	return jsonResult(res.Preview)
}

func (s *Server) handleApplyChanges(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.mu.Lock()
	preview := s.preview
	s.mu.Unlock()
	if preview == nil {
		return mcp.NewToolResultError("parse a document before applying"), nil
	}

	items := preview.Ready()
	if names := req.GetStringSlice("variable_names", nil); len(names) > 0 {
		want := make(map[string]bool, len(names))
		for _, n := range names {
			want[n] = true
		}
		filtered := items[:0:0]
		for _, it := range items {
			if want[it.VariableName] {
				filtered = append(filtered, it)
			}
		}
		items = filtered
	}
	if len(items) == 0 {
		return mcp.NewToolResultError("no ready items to apply"), nil
	}

	modes := req.GetStringSlice("modes", nil)
	if len(modes) == 0 {
		colls, err := s.collections(ctx)
		if err != nil {
			return bridgeError(err), nil
		}
		modes = colls.DefaultModes
	}

	res, err := s.client.Apply(ctx, modes, items)
	if err != nil {
		return bridgeError(err), nil
	}
	return jsonResult(res)
}

func (s *Server) handleNotify(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	msg, err := req.RequireString("message")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.client.Notify(msg); err != nil {
		return bridgeError(err), nil
	}
	return mcp.NewToolResultText("ok"), nil
}
