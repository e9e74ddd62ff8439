package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gnana997/stylesync/catalogs"
	"github.com/gnana997/stylesync/pkg/catalog"
	"github.com/gnana997/stylesync/pkg/schemaimport"
)

func newCatalogCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Query or build the token catalog",
	}
	cmd.AddCommand(newCatalogListCmd(a), newCatalogSearchCmd(a), newCatalogStatsCmd(a), newCatalogImportCmd(a))
	return cmd
}

func newCatalogListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list [category]",
		Short: "List component categories, or the components of one category",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			qs, err := a.loadCatalog()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				comps := qs.ComponentsByCategory(args[0])
				if comps == nil {
					return fmt.Errorf("unknown category %q", args[0])
				}
				if a.jsonOutput {
					return writeJSON(out, comps)
				}
				rows := make([][]string, len(comps))
				for i, c := range comps {
					rows[i] = []string{c.Name, c.Key}
				}
				return writeTable(out, []string{"COMPONENT", "KEY"}, rows)
			}

			cats := qs.ListCategories()
			if a.jsonOutput {
				return writeJSON(out, cats)
			}
			rows := make([][]string, len(cats))
			for i, c := range cats {
				rows[i] = []string{c.Name, c.Label, strconv.Itoa(len(c.Components))}
			}
			return writeTable(out, []string{"CATEGORY", "LABEL", "COMPONENTS"}, rows)
		},
	}
}

func newCatalogSearchCmd(a *app) *cobra.Command {
	var (
		valueType  string
		collection string
	)
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search tokens by name or description",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch valueType {
			case "", catalog.ValueTypeColor, catalog.ValueTypeNumber:
			default:
				return fmt.Errorf("invalid --type %q: want color or number", valueType)
			}
			qs, err := a.loadCatalog()
			if err != nil {
				return err
			}
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			var found []catalog.TokenDefinition
			for _, t := range qs.SearchTokens(query, valueType) {
				if collection == "" || t.Collection == collection {
					found = append(found, t)
				}
			}

			out := cmd.OutOrStdout()
			if a.jsonOutput {
				if found == nil {
					found = []catalog.TokenDefinition{}
				}
				return writeJSON(out, found)
			}
			rows := make([][]string, len(found))
			for i, t := range found {
				rows[i] = []string{t.Name, t.ValueType, t.Collection, t.Description}
			}
			return writeTable(out, []string{"TOKEN", "TYPE", "COLLECTION", "DESCRIPTION"}, rows)
		},
	}
	cmd.Flags().StringVar(&valueType, "type", "", "value type filter (color, number)")
	cmd.Flags().StringVar(&collection, "collection", "", "collection filter")
	return cmd
}

func newCatalogStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarise the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			qs, err := a.loadCatalog()
			if err != nil {
				return err
			}
			stats := qs.Stats()
			out := cmd.OutOrStdout()
			if a.jsonOutput {
				return writeJSON(out, stats)
			}
			fmt.Fprintf(out, "%s %s\n\n", qs.Catalog.Name, qs.Catalog.Version)
			rows := [][]string{
				{"Tokens", strconv.Itoa(stats.TotalTokens)},
				{"Categories", strconv.Itoa(stats.Categories)},
				{"Components", strconv.Itoa(stats.TotalComponents)},
				{"Theme modes", strings.Join(stats.ThemeModes, ", ")},
			}
			for _, c := range sortedKeys(stats.TokensByCollect) {
				rows = append(rows, []string{"  " + c, strconv.Itoa(stats.TokensByCollect[c])})
			}
			return writeTable(out, nil, rows)
		},
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func newCatalogImportCmd(a *app) *cobra.Command {
	var (
		output  string
		name    string
		ver     string
		noBase  bool
		collDec string
	)
	cmd := &cobra.Command{
		Use:   "import <schema.ts>",
		Short: "Build a catalog JSON from a TypeScript or JavaScript token schema",
		Long: "Statically evaluate the schema's top-level const declarations and collect token definitions and component categories. " +
			"Color suggestions, categories and theme modes missing from the source come from the embedded DS4DS catalog unless --no-base is set.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := schemaimport.Options{Name: name, Version: ver, CollectionsDecl: collDec}
			if !noBase {
				base, _, err := catalog.LoadFromBytes(catalogs.DS4DSJSON)
				if err != nil {
					return err
				}
				opts.Base = base
			}

			im := schemaimport.New(a.logger)
			defer im.Close()
			res, err := im.ImportFile(args[0], opts)
			if res != nil {
				for _, s := range res.Skipped {
					fmt.Fprintf(cmd.ErrOrStderr(), "skipped %s (line %d): %s\n", s.Decl, s.Line, s.Reason)
				}
			}
			if err != nil {
				return err
			}

			data, err := json.MarshalIndent(res.Catalog, "", "  ")
			if err != nil {
				return err
			}
			data = append(data, '\n')
			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0644); err != nil {
				return fmt.Errorf("failed to write catalog: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Imported %d tokens and %d categories from %s into %s\n",
				len(res.Catalog.Tokens), len(res.Catalog.Categories), strings.Join(res.TokenDecls, ", "), output)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&output, "output", "o", "", "catalog JSON file (default: stdout)")
	f.StringVar(&name, "name", "", "catalog name")
	f.StringVar(&ver, "version", "", "catalog version")
	f.BoolVar(&noBase, "no-base", false, "do not merge suggestions and categories from the embedded catalog")
	f.StringVar(&collDec, "collections-decl", schemaimport.DefaultCollectionsDecl, "declaration holding the collection names")
	return cmd
}
