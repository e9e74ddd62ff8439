// Package mcp exposes the stylesync UI side as MCP tools over stdio.
package mcp

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/mark3labs/mcp-go/server"

	"github.com/gnana997/stylesync/pkg/bridge"
	"github.com/gnana997/stylesync/pkg/catalog"
	"github.com/gnana997/stylesync/pkg/mapper"
	"github.com/gnana997/stylesync/pkg/mcplog"
	"github.com/gnana997/stylesync/pkg/transfer"
	"github.com/gnana997/stylesync/pkg/util"
)

const serverVersion = "0.1.0-dev"

// Selector changes the host selection. Hosts without one make select_node fail.
type Selector interface {
	Select(ids ...string) error
}

// Config configures a Server.
type Config struct {
	Client  *bridge.Client
	Catalog *catalog.QueryService
	// Session defaults to a new session over Catalog.
	Session  *mapper.Session
	Selector Selector
	// CallLog records every tool call when set.
	CallLog     *mcplog.Logger
	Logger      *slog.Logger
	ExportModes []string
	// Files reads export documents named by path. The server opens and
	// closes its own cache when nil.
	Files util.FileCache
}

// Server is the MCP server. It plays the UI role: it talks to the host only
// through the bridge client.
type Server struct {
	mcpServer *server.MCPServer
	client    *bridge.Client
	query     *catalog.QueryService
	session   *mapper.Session
	selector  Selector
	callLog   *mcplog.Logger
	logger    *slog.Logger
	modes     []string
	files     util.FileCache
	ownFiles  bool

	mu      sync.Mutex
	preview *transfer.Preview
}

// NewServer creates the server and registers every tool.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Client == nil || cfg.Catalog == nil {
		return nil, errors.New("mcp: client and catalog are required")
	}
	s := &Server{
		client:   cfg.Client,
		query:    cfg.Catalog,
		session:  cfg.Session,
		selector: cfg.Selector,
		callLog:  cfg.CallLog,
		logger:   util.OrDefault(cfg.Logger),
		modes:    cfg.ExportModes,
		files:    cfg.Files,
	}
	if s.files == nil {
		fc := util.DefaultFileCacheConfig()
		fc.Logger = s.logger
		s.files = util.NewFileCache(fc)
		s.ownFiles = true
	}
	if s.session == nil {
		s.session = mapper.NewSession(mapper.SessionConfig{Catalog: cfg.Catalog, Logger: s.logger})
	}

	opts := []server.ServerOption{
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	}
	if s.callLog != nil {
		opts = append(opts, server.WithToolHandlerMiddleware(s.loggingMiddleware()))
	}
	s.mcpServer = server.NewMCPServer("stylesync", serverVersion, opts...)

	s.mcpServer.AddTools(s.tools()...)
	return s, nil
}

// Close releases the file cache when the server owns it.
func (s *Server) Close() error {
	if s.ownFiles {
		return s.files.Close()
	}
	return nil
}

func (s *Server) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: getSelectionTool(), Handler: s.handleGetSelection},
		{Tool: selectNodeTool(), Handler: s.handleSelectNode},
		{Tool: getFileInfoTool(), Handler: s.handleGetFileInfo},
		{Tool: getCollectionsTool(), Handler: s.handleGetCollections},
		{Tool: getComponentVariantsTool(), Handler: s.handleGetComponentVariants},
		{Tool: getSelectionVariantsTool(), Handler: s.handleGetSelectionVariants},
		{Tool: listCategoriesTool(), Handler: s.handleListCategories},
		{Tool: listComponentsTool(), Handler: s.handleListComponents},
		{Tool: searchTokensTool(), Handler: s.handleSearchTokens},
		{Tool: suggestTokensTool(), Handler: s.handleSuggestTokens},
		{Tool: addExtractionTool(), Handler: s.handleAddExtraction},
		{Tool: removeExtractionTool(), Handler: s.handleRemoveExtraction},
		{Tool: listExtractionsTool(), Handler: s.handleListExtractions},
		{Tool: exportDocumentTool(), Handler: s.handleExportDocument},
		{Tool: parseDocumentTool(), Handler: s.handleParseDocument},
		{Tool: applyChangesTool(), Handler: s.handleApplyChanges},
		{Tool: notifyTool(), Handler: s.handleNotify},
	}
}

// ToolNames lists the registered tool names in registration order.
func (s *Server) ToolNames() []string {
	tools := s.tools()
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.Tool.Name
	}
	return names
}

// Session returns the extraction session.
func (s *Server) Session() *mapper.Session { return s.session }

// ServeStdio serves MCP on stdin/stdout until the client disconnects.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
