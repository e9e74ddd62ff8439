package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gnana997/stylesync/pkg/bridge"
	"github.com/gnana997/stylesync/pkg/tokens"
	"github.com/gnana997/stylesync/pkg/transfer"
)

func newCollectionsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "collections",
		Short: "List the token collections of the document and the default apply modes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ws, err := a.openWorkspace(ctx)
			if err != nil {
				return err
			}
			defer ws.Close()
			conn, err := a.connect(ctx, ws)
			if err != nil {
				return err
			}
			defer closeConn(conn)

			infos, err := conn.Client.Collections(ctx)
			if err != nil {
				return err
			}
			colls := make([]tokens.Collection, len(infos))
			for i, c := range infos {
				colls[i] = tokens.Collection{ID: c.ID, Name: c.Name, Modes: c.Modes}
			}
			defaults := transfer.DefaultModes(colls)

			out := cmd.OutOrStdout()
			if a.jsonOutput {
				return writeJSON(out, struct {
					Collections  []bridge.CollectionInfo `json:"collections"`
					DefaultModes []string                `json:"default_modes"`
				}{infos, defaults})
			}
			rows := make([][]string, len(infos))
			for i, c := range infos {
				rows[i] = []string{c.Name, strings.Join(colls[i].ModeNames(), ", "), strconv.Itoa(c.VariableCount)}
			}
			if err := writeTable(out, []string{"COLLECTION", "MODES", "VARIABLES"}, rows); err != nil {
				return err
			}
			fmt.Fprintf(out, "\nDefault modes: %s\n", strings.Join(defaults, ", "))
			return nil
		},
	}
}
