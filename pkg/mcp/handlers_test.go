package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnana997/stylesync/catalogs"
	"github.com/gnana997/stylesync/pkg/bridge"
	"github.com/gnana997/stylesync/pkg/catalog"
	"github.com/gnana997/stylesync/pkg/host/snapshot"
	"github.com/gnana997/stylesync/pkg/host/snapshot/snapshottest"
	"github.com/gnana997/stylesync/pkg/mapper"
	"github.com/gnana997/stylesync/pkg/mcplog"
)

const buttonsKey = "1a45acec266bbb1bd1338744453eb9e33aa2af53"

// --- helpers ---

func testServer(t *testing.T) (*Server, *snapshot.Document) {
	t.Helper()
	qs, err := catalog.LoadAndQueryBytes(catalogs.DS4DSJSON)
	require.NoError(t, err)

	doc := snapshottest.Document()
	conn, err := bridge.Connect(context.Background(), bridge.HostConfig{Document: doc, Library: doc, Notifier: doc})
	require.NoError(t, err)
	t.Cleanup(func() {
		conn.Stop()
		_ = conn.Wait()
	})

	n := 0
	session := mapper.NewSession(mapper.SessionConfig{
		Catalog: qs,
		Now:     func() time.Time { return time.UnixMilli(1734861600000) },
		NewID: func() string {
			n++
			return fmt.Sprintf("ext_%d", n)
		},
	})

	s, err := NewServer(Config{Client: conn.Client, Catalog: qs, Session: session, Selector: doc})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, doc
}

func callTool(t *testing.T, s *Server, req mcp.CallToolRequest) *mcp.CallToolResult {
	t.Helper()
	var handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)
	for _, st := range s.tools() {
		if st.Tool.Name == req.Params.Name {
			handler = st.Handler
		}
	}
	if handler == nil {
		t.Fatalf("unknown tool: %s", req.Params.Name)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result, err := handler(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, result)
	return result
}

func makeRequest(toolName string, args map[string]any) mcp.CallToolRequest {
	var arguments any
	if args != nil {
		arguments = args
	}
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      toolName,
			Arguments: arguments,
		},
	}
}

func resultJSON(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	textContent, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected TextContent, got %T", result.Content[0])
	return textContent.Text
}

func decode(t *testing.T, result *mcp.CallToolResult, v any) {
	t.Helper()
	require.False(t, result.IsError, resultJSON(t, result))
	require.NoError(t, json.Unmarshal([]byte(resultJSON(t, result)), v))
}

// --- server ---

func TestNewServer_RequiresClientAndCatalog(t *testing.T) {
	_, err := NewServer(Config{})
	assert.Error(t, err)
}

func TestToolNames(t *testing.T) {
	s, _ := testServer(t)
	names := s.ToolNames()
	assert.Len(t, names, 17)
	assert.Equal(t, "get_selection", names[0])
	assert.Contains(t, names, "apply_changes")
	assert.Contains(t, names, "select_node")
}

// --- selection and document ---

func TestHandleGetSelection(t *testing.T) {
	s, doc := testServer(t)

	var sel map[string]any
	decode(t, callTool(t, s, makeRequest("get_selection", nil)), &sel)
	assert.Equal(t, "Primary Button", sel["name"])

	require.NoError(t, doc.Select())
	result := callTool(t, s, makeRequest("get_selection", nil))
	assert.False(t, result.IsError)
	assert.Equal(t, "null", resultJSON(t, result))
}

func TestHandleSelectNode(t *testing.T) {
	s, _ := testServer(t)

	var sel map[string]any
	decode(t, callTool(t, s, makeRequest("select_node", map[string]any{
		"ids": []any{snapshottest.CardNodeID},
	})), &sel)
	assert.Equal(t, "Card", sel["name"])

	result := callTool(t, s, makeRequest("select_node", map[string]any{"ids": []any{}}))
	assert.True(t, result.IsError)

	result = callTool(t, s, makeRequest("select_node", map[string]any{"ids": []any{"9:9"}}))
	assert.True(t, result.IsError)
}

func TestHandleSelectNode_NoSelector(t *testing.T) {
	s, _ := testServer(t)
	s.selector = nil
	result := callTool(t, s, makeRequest("select_node", map[string]any{"ids": []any{"1:1"}}))
	assert.True(t, result.IsError)
}

func TestHandleGetFileInfo(t *testing.T) {
	s, _ := testServer(t)
	var info map[string]any
	decode(t, callTool(t, s, makeRequest("get_file_info", nil)), &info)
	assert.Equal(t, "Kido App", info["fileName"])
}

func TestHandleGetCollections(t *testing.T) {
	s, _ := testServer(t)
	var res collectionsResult
	decode(t, callTool(t, s, makeRequest("get_collections", nil)), &res)
	require.Len(t, res.Collections, 2)
	assert.Equal(t, "theme", res.Collections[0].Name)
	assert.Equal(t, []string{"Light", "Dark"}, res.DefaultModes)
}

func TestHandleComponentVariants(t *testing.T) {
	s, doc := testServer(t)

	var res map[string]any
	decode(t, callTool(t, s, makeRequest("get_component_variants", map[string]any{
		"component_key": snapshottest.ButtonSetKey,
	})), &res)
	assert.Equal(t, "Buttons", res["componentSetName"])
	assert.Len(t, res["variantProperties"], 5)

	result := callTool(t, s, makeRequest("get_component_variants", nil))
	assert.True(t, result.IsError)

	require.NoError(t, doc.Select(snapshottest.InstanceNodeID))
	res = nil
	decode(t, callTool(t, s, makeRequest("get_selection_variants", nil)), &res)
	assert.Equal(t, snapshottest.ButtonKey, res["componentKey"])
	assert.Equal(t, true, res["fromSelection"])
}

// --- catalog ---

func TestHandleListCategories(t *testing.T) {
	s, _ := testServer(t)

	var cats []map[string]any
	decode(t, callTool(t, s, makeRequest("list_categories", nil)), &cats)
	assert.Len(t, cats, 28)
	assert.Equal(t, "avatar", cats[0]["name"])
	assert.Equal(t, float64(4), cats[0]["component_count"])
}

func TestHandleListComponents(t *testing.T) {
	s, _ := testServer(t)

	var comps []componentSummary
	decode(t, callTool(t, s, makeRequest("list_components", map[string]any{"category": "button"})), &comps)
	require.Len(t, comps, 3)
	assert.Equal(t, componentSummary{Name: "Buttons", Key: buttonsKey, Category: "button"}, comps[0])

	comps = nil
	decode(t, callTool(t, s, makeRequest("list_components", map[string]any{
		"category": "button",
		"keyword":  "ICON",
	})), &comps)
	require.Len(t, comps, 1)
	assert.Equal(t, "Button Icon", comps[0].Name)

	result := callTool(t, s, makeRequest("list_components", map[string]any{"category": "nope"}))
	assert.True(t, result.IsError)
}

func TestHandleSearchTokens(t *testing.T) {
	s, _ := testServer(t)

	var toks []catalog.TokenDefinition
	decode(t, callTool(t, s, makeRequest("search_tokens", map[string]any{
		"query":      "radius/semantic",
		"value_type": "number",
	})), &toks)
	assert.Len(t, toks, 8)

	toks = nil
	decode(t, callTool(t, s, makeRequest("search_tokens", map[string]any{
		"query":      "radius/semantic",
		"collection": "theme",
	})), &toks)
	assert.Empty(t, toks)

	result := callTool(t, s, makeRequest("search_tokens", map[string]any{"value_type": "string"}))
	assert.True(t, result.IsError)
}

func TestHandleSuggestTokens(t *testing.T) {
	s, doc := testServer(t)

	var got suggestions
	decode(t, callTool(t, s, makeRequest("suggest_tokens", map[string]any{"category": "button"})), &got)
	require.NotEmpty(t, got.Fill)
	assert.Equal(t, "system/bg/primary", got.Fill[0])
	assert.Equal(t, "radius/semantic/large-controls", got.Radius)
	assert.Len(t, got.SemanticRadius, 8)

	// Mixed corners have no radius suggestion.
	require.NoError(t, doc.Select(snapshottest.CardNodeID))
	got = suggestions{}
	decode(t, callTool(t, s, makeRequest("suggest_tokens", nil)), &got)
	assert.Empty(t, got.Radius)
}

// --- session ---

func TestHandleAddExtraction(t *testing.T) {
	s, doc := testServer(t)

	var item map[string]any
	decode(t, callTool(t, s, makeRequest("add_extraction", map[string]any{
		"category":      "button",
		"component_key": buttonsKey,
		"variants":      map[string]any{"Type": "Primary"},
	})), &item)
	assert.Equal(t, "ext_1", item["id"])
	mappings, ok := item["mappings"].([]any)
	require.True(t, ok)
	assert.Len(t, mappings, 2)
	assert.Equal(t, 1, s.Session().Len())
	assert.Equal(t, map[string]string{"Type": "Primary"}, s.Session().Items()[0].DSComponent.Variants)

	// The round trip flushes the fire-and-forget notify.
	callTool(t, s, makeRequest("get_file_info", nil))
	notes := doc.Notifications()
	require.NotEmpty(t, notes)
	assert.Equal(t, `Added "Primary Button" mapping`, notes[len(notes)-1].Message)
}

func TestHandleAddExtraction_ExplicitAndSkipped(t *testing.T) {
	s, _ := testServer(t)

	decode(t, callTool(t, s, makeRequest("add_extraction", map[string]any{
		"category":            "button",
		"component_key":       buttonsKey,
		"fill_token":          "",
		"radius_token":        "radius/semantic/default-surface",
		"stroke_token":        "system/border/static/01",
		"stroke_weight_token": "border/width/1",
	})), &map[string]any{})

	items := s.Session().Items()
	require.Len(t, items, 1)
	var names []string
	for _, m := range items[0].Mappings {
		names = append(names, m.VariableName)
	}
	assert.Equal(t, []string{"radius/semantic/default-surface", "system/border/static/01", "border/width/1"}, names)
}

func TestHandleAddExtraction_Errors(t *testing.T) {
	s, doc := testServer(t)

	result := callTool(t, s, makeRequest("add_extraction", map[string]any{"category": "button"}))
	assert.True(t, result.IsError)
	assert.Equal(t, mapper.ErrNoComponent.Error(), resultJSON(t, result))

	require.NoError(t, doc.Select())
	result = callTool(t, s, makeRequest("add_extraction", map[string]any{
		"category":      "button",
		"component_key": buttonsKey,
	}))
	assert.True(t, result.IsError)
	assert.Equal(t, mapper.ErrNoComponent.Error(), resultJSON(t, result))

	require.NoError(t, doc.Select(snapshottest.ButtonNodeID))
	result = callTool(t, s, makeRequest("add_extraction", map[string]any{
		"category":      "badge",
		"component_key": buttonsKey,
	}))
	assert.True(t, result.IsError)
	assert.Zero(t, s.Session().Len())
}

func TestHandleRemoveAndListExtractions(t *testing.T) {
	s, _ := testServer(t)

	var items []map[string]any
	decode(t, callTool(t, s, makeRequest("list_extractions", nil)), &items)
	assert.Empty(t, items)

	for i := 0; i < 2; i++ {
		callTool(t, s, makeRequest("add_extraction", map[string]any{"category": "button", "component_key": buttonsKey}))
	}

	var removed map[string]any
	decode(t, callTool(t, s, makeRequest("remove_extraction", map[string]any{"id": "ext_1"})), &removed)
	assert.Equal(t, float64(1), removed["remaining"])

	result := callTool(t, s, makeRequest("remove_extraction", map[string]any{"id": "ext_1"}))
	assert.True(t, result.IsError)

	items = nil
	decode(t, callTool(t, s, makeRequest("list_extractions", nil)), &items)
	require.Len(t, items, 1)
	assert.Equal(t, "ext_2", items[0]["id"])
}

// --- transfer ---

func TestExportParseApply(t *testing.T) {
	s, doc := testServer(t)

	result := callTool(t, s, makeRequest("export_document", nil))
	assert.True(t, result.IsError, "export with an empty session")

	callTool(t, s, makeRequest("add_extraction", map[string]any{"category": "button", "component_key": buttonsKey}))

	var inline map[string]any
	decode(t, callTool(t, s, makeRequest("export_document", map[string]any{"skip_derived": true})), &inline)
	assert.Len(t, inline["variableMappings"], 2)

	path := filepath.Join(t.TempDir(), "export.json")
	var written map[string]any
	decode(t, callTool(t, s, makeRequest("export_document", map[string]any{"path": path})), &written)
	assert.Equal(t, float64(8), written["variable_mappings"])
	_, err := os.Stat(path)
	require.NoError(t, err)

	var preview map[string]any
	decode(t, callTool(t, s, makeRequest("parse_document", map[string]any{"path": path})), &preview)
	assert.Equal(t, 1, s.files.Size(), "export reads go through the file cache")
	assert.Equal(t, float64(2), preview["readyCount"])
	assert.Equal(t, float64(6), preview["errorCount"])

	var applied map[string]any
	decode(t, callTool(t, s, makeRequest("apply_changes", nil)), &applied)
	assert.Equal(t, true, applied["success"])
	assert.Equal(t, float64(2), applied["appliedCount"])

	v, err := doc.Tokens().VariableByID(context.Background(), "v-bg")
	require.NoError(t, err)
	assert.InDelta(t, 0.2, v.ValuesByMode["m-dark"].Color.R, 1e-6)
	assert.InDelta(t, 0.4, v.ValuesByMode["m-light"].Color.G, 1e-6)
}

func TestHandleApplyChanges_Filtered(t *testing.T) {
	s, _ := testServer(t)

	result := callTool(t, s, makeRequest("apply_changes", nil))
	assert.True(t, result.IsError, "apply before parse")

	doc := `{"meta":{},"variableMappings":[
		{"variableName":"system/bg/primary","newValue":{"r":1,"g":0,"b":0}},
		{"variableName":"radius/semantic/large-controls","newValue":4}
	]}`
	var preview map[string]any
	decode(t, callTool(t, s, makeRequest("parse_document", map[string]any{"document": doc})), &preview)
	assert.Equal(t, float64(2), preview["readyCount"])

	var applied map[string]any
	decode(t, callTool(t, s, makeRequest("apply_changes", map[string]any{
		"variable_names": []any{"radius/semantic/large-controls"},
		"modes":          []any{"Value"},
	})), &applied)
	assert.Equal(t, float64(1), applied["appliedCount"])

	result = callTool(t, s, makeRequest("apply_changes", map[string]any{"variable_names": []any{"missing"}}))
	assert.True(t, result.IsError)
}

func TestHandleParseDocument_Errors(t *testing.T) {
	s, _ := testServer(t)

	result := callTool(t, s, makeRequest("parse_document", nil))
	assert.True(t, result.IsError)

	result = callTool(t, s, makeRequest("parse_document", map[string]any{"document": "{"}))
	assert.True(t, result.IsError)
	assert.Contains(t, resultJSON(t, result), "Invalid JSON")

	result = callTool(t, s, makeRequest("parse_document", map[string]any{"document": "{}", "path": "x.json"}))
	assert.True(t, result.IsError)

	result = callTool(t, s, makeRequest("parse_document", map[string]any{"path": filepath.Join(t.TempDir(), "missing.json")}))
	assert.True(t, result.IsError)

	// A failed parse clears the stored preview.
	result = callTool(t, s, makeRequest("apply_changes", nil))
	assert.True(t, result.IsError)
}

func TestHandleNotify(t *testing.T) {
	s, doc := testServer(t)

	result := callTool(t, s, makeRequest("notify", map[string]any{"message": "Export copied"}))
	assert.False(t, result.IsError)
	callTool(t, s, makeRequest("get_file_info", nil))
	notes := doc.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, "Export copied", notes[0].Message)

	result = callTool(t, s, makeRequest("notify", nil))
	assert.True(t, result.IsError)
}

// --- middleware ---

func TestLoggingMiddleware(t *testing.T) {
	s, _ := testServer(t)
	path := filepath.Join(t.TempDir(), "calls.jsonl")
	callLog, err := mcplog.Open(path)
	require.NoError(t, err)
	s.callLog = callLog

	handler := s.loggingMiddleware()(s.handleListComponents)
	_, err = handler(context.Background(), makeRequest("list_components", map[string]any{"category": "nope"}))
	require.NoError(t, err)
	require.NoError(t, callLog.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var entry mcplog.Entry
	require.NoError(t, json.Unmarshal(data, &entry))
	assert.Equal(t, "list_components", entry.Tool)
	assert.True(t, entry.ToolError)
	assert.Equal(t, map[string]any{"category": "nope"}, entry.Params)
	assert.Positive(t, entry.ResponseBytes)
}
