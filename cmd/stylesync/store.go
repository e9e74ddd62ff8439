package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gnana997/stylesync/pkg/host/snapshot"
	"github.com/gnana997/stylesync/pkg/tokens"
	"github.com/gnana997/stylesync/pkg/tokens/sqlitestore"
	"github.com/gnana997/stylesync/pkg/util"
)

func newStoreCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Manage the durable token store",
	}
	cmd.AddCommand(newStoreInitCmd(a), newStoreDumpCmd(a))
	return cmd
}

func newStoreInitCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a SQLite token store seeded from the document snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			dsn := a.storeConfig().DSN
			if dsn == "" {
				return errors.New("no store DSN: pass --store-dsn or set store.dsn in " + a.configPath)
			}
			path, err := a.resolveDocument()
			if err != nil {
				return err
			}
			cache := util.NewFileCache(util.DefaultFileCacheConfig())
			defer cache.Close()
			f, err := snapshot.ReadFile(cache, path)
			if err != nil {
				return err
			}

			s, err := sqlitestore.Open(ctx, dsn)
			if err != nil {
				return err
			}
			defer s.Close()
			if err := s.Migrate(ctx); err != nil {
				return err
			}
			empty, err := s.Empty(ctx)
			if err != nil {
				return err
			}
			if !empty && !force {
				return fmt.Errorf("store %s already holds tokens (use --force to replace them)", dsn)
			}
			if err := s.Import(ctx, &f.Tokens); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d collections and %d variables into %s\n",
				len(f.Tokens.Collections), len(f.Tokens.Variables), dsn)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "replace an existing store")
	return cmd
}

func newStoreDumpCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "dump",
		Short: "Print the configured token store as snapshot JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ws, err := a.openWorkspace(ctx)
			if err != nil {
				return err
			}
			defer ws.Close()
			snap, err := tokens.Export(ctx, ws.doc.Tokens())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), snap)
		},
	}
}
