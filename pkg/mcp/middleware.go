package mcp

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/gnana997/stylesync/pkg/mcplog"
)

// loggingMiddleware records every tool call in the call log.
func (s *Server) loggingMiddleware() server.ToolHandlerMiddleware {
	return func(next server.ToolHandlerFunc) server.ToolHandlerFunc {
		return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			start := mcplog.Now()
			result, err := next(ctx, req)

			entry := mcplog.Entry{
				Ts:            start.UTC().Format(time.RFC3339),
				Tool:          req.Params.Name,
				Params:        mcplog.SanitizeParams(req.GetArguments()),
				DurationMs:    time.Since(start).Milliseconds(),
				ResponseBytes: mcplog.ResponseBytes(result),
				ToolError:     result != nil && result.IsError,
			}
			if err != nil {
				msg := err.Error()
				entry.Error = &msg
			}
			if werr := s.callLog.Write(entry); werr != nil {
				s.logger.Warn("call log write failed", "error", werr)
			}
			return result, err
		}
	}
}
