package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	mcpserver "github.com/gnana997/stylesync/pkg/mcp"
	"github.com/gnana997/stylesync/pkg/mcplog"
	"github.com/gnana997/stylesync/pkg/watch"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		watchFile bool
		mcpLog    string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server on stdio",
		Long:  "Serve the document through the message bridge as MCP tools on stdin/stdout. With --watch the snapshot is reloaded when it changes on disk.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			qs, err := a.loadCatalog()
			if err != nil {
				return err
			}
			ws, err := a.openWorkspace(ctx)
			if err != nil {
				return err
			}
			defer ws.Close()

			conn, err := a.connect(ctx, ws)
			if err != nil {
				return err
			}

			callLog, err := mcplog.Open(firstNonEmpty(mcpLog, a.cfg.MCPLog))
			if err != nil {
				return errors.Join(err, closeConn(conn))
			}
			defer callLog.Close()

			srv, err := mcpserver.NewServer(mcpserver.Config{
				Client:      conn.Client,
				Catalog:     qs,
				Selector:    ws.doc,
				CallLog:     callLog,
				Logger:      a.logger,
				ExportModes: a.cfg.DefaultModes,
				Files:       ws.cache,
			})
			if err != nil {
				return errors.Join(err, closeConn(conn))
			}

			if watchFile || a.cfg.Watch {
				reload := watch.SnapshotReloader(ws.cache, ws.doc, conn.HostEndpoint(), a.logger)
				w, err := watch.New([]string{ws.path}, reload, watch.Options{Logger: a.logger})
				if err != nil {
					return errors.Join(err, closeConn(conn))
				}
				if err := w.Start(); err != nil {
					return errors.Join(err, closeConn(conn))
				}
				defer w.Stop()
			}

			a.logger.Info("mcp server starting", "document", ws.path, "tools", len(srv.ToolNames()))
			serveErr := srv.ServeStdio()
			if err := closeConn(conn); err != nil {
				a.logger.Warn("bridge shutdown", "error", err)
			}
			if serveErr != nil {
				return fmt.Errorf("server error: %w", serveErr)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&watchFile, "watch", false, "reload the document when it changes on disk")
	cmd.Flags().StringVar(&mcpLog, "mcp-log", "", "append MCP tool calls as JSON lines to this file")
	return cmd
}
