package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/gnana997/stylesync/pkg/bridge"
	"github.com/gnana997/stylesync/pkg/host/snapshot"
	"github.com/gnana997/stylesync/pkg/tokens"
	"github.com/gnana997/stylesync/pkg/util"
)

// workspace is an opened document snapshot with its token store.
type workspace struct {
	path  string
	cache util.FileCache
	file  *snapshot.File
	doc   *snapshot.Document
	store tokens.Config

	closeStore func() error
}

// openWorkspace reads the resolved document. Non-memory store kinds are
// opened through the backend registry and seeded from the snapshot tokens
// when empty.
func (a *app) openWorkspace(ctx context.Context) (*workspace, error) {
	path, err := a.resolveDocument()
	if err != nil {
		return nil, err
	}
	cache := util.NewFileCache(util.DefaultFileCacheConfig())
	f, err := snapshot.ReadFile(cache, path)
	if err != nil {
		_ = cache.Close()
		return nil, err
	}

	ws := &workspace{path: path, cache: cache, file: f, store: a.storeConfig(), closeStore: func() error { return nil }}
	opts := []snapshot.Option{snapshot.WithLogger(a.logger)}
	if ws.store.Kind != "memory" {
		store, closeFn, err := tokens.Open(ctx, ws.store, &f.Tokens)
		if err != nil {
			_ = cache.Close()
			return nil, fmt.Errorf("failed to open %s store: %w", ws.store.Kind, err)
		}
		ws.closeStore = closeFn
		opts = append(opts, snapshot.WithStore(store))
	}

	doc, err := snapshot.New(f, opts...)
	if err != nil {
		_ = ws.Close()
		return nil, err
	}
	ws.doc = doc
	a.logger.Debug("document opened", "path", path, "nodes", len(f.Nodes), "store", ws.store.Kind)
	return ws, nil
}

func (ws *workspace) Close() error {
	return errors.Join(ws.closeStore(), ws.cache.Close())
}

// connect runs a bridge host over the workspace document.
func (a *app) connect(ctx context.Context, ws *workspace) (*bridge.Conn, error) {
	return bridge.Connect(ctx, bridge.HostConfig{
		Document: ws.doc,
		Library:  ws.doc,
		Notifier: ws.doc,
		Logger:   a.logger,
	})
}

func closeConn(conn *bridge.Conn) error {
	conn.Stop()
	return conn.Wait()
}

// save writes the snapshot back with the current store contents.
func (ws *workspace) save(ctx context.Context) error {
	snap, err := tokens.Export(ctx, ws.doc.Tokens())
	if err != nil {
		return err
	}
	f := *ws.file
	f.Tokens = *snap
	data, err := json.MarshalIndent(&f, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(ws.path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", ws.path, err)
	}
	ws.cache.Invalidate(ws.path)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

const tablePadding = 2

func writeTable(out io.Writer, headers []string, rows [][]string) error {
	writer := tabwriter.NewWriter(out, 0, 0, tablePadding, ' ', tabwriter.StripEscape)
	if len(headers) > 0 {
		fmt.Fprintln(writer, strings.Join(headers, "\t"))
	}
	for _, row := range rows {
		fmt.Fprintln(writer, strings.Join(row, "\t"))
	}
	return writer.Flush()
}

func formatNumber(v float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}
