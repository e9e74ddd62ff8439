package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/gnana997/stylesync/pkg/transfer"
)

type batchFlags struct {
	root    string
	include []string
	exclude []string
	workers int
}

func (b *batchFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&b.root, "root", "", "discover export documents under this directory")
	f.StringSliceVar(&b.include, "glob", nil, "include pattern relative to --root (repeatable, default **/*.json)")
	f.StringSliceVar(&b.exclude, "exclude", transfer.DefaultExclude, "exclude pattern relative to --root")
	f.IntVar(&b.workers, "workers", 0, "parallel document parsers (0 = auto)")
}

// paths returns the file arguments followed by the documents discovered
// under --root.
func (b *batchFlags) paths(args []string) ([]string, error) {
	paths := append([]string(nil), args...)
	if b.root != "" {
		found, err := transfer.DiscoverExports(b.root, b.include, b.exclude)
		if err != nil {
			return nil, err
		}
		paths = append(paths, found...)
	}
	if len(paths) == 0 {
		return nil, errors.New("no export documents: pass files or --root")
	}
	return paths, nil
}

func newPreviewCmd(a *app) *cobra.Command {
	var b batchFlags
	cmd := &cobra.Command{
		Use:   "preview [export.json...]",
		Short: "Resolve export documents against the token store without writing",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBatch(cmd, &b, args, transfer.BatchOptions{DryRun: true}, false)
		},
	}
	b.register(cmd)
	return cmd
}

func newApplyCmd(a *app) *cobra.Command {
	var (
		b     batchFlags
		modes []string
		write bool
	)
	cmd := &cobra.Command{
		Use:   "apply [export.json...]",
		Short: "Write the ready mappings of export documents to the token store",
		Long: "Apply every ready variable mapping. Documents are previewed in parallel and applied in order, so later documents win. " +
			"With the memory store, --write saves the updated tokens back into the document snapshot.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBatch(cmd, &b, args, transfer.BatchOptions{Modes: modes}, write)
		},
	}
	b.register(cmd)
	cmd.Flags().StringSliceVar(&modes, "modes", nil, "modes to write (default: modes of the theme collection)")
	cmd.Flags().BoolVar(&write, "write", false, "save the updated tokens into the document snapshot")
	return cmd
}

func (a *app) runBatch(cmd *cobra.Command, b *batchFlags, args []string, opts transfer.BatchOptions, write bool) error {
	ctx := cmd.Context()
	paths, err := b.paths(args)
	if err != nil {
		return err
	}
	ws, err := a.openWorkspace(ctx)
	if err != nil {
		return err
	}
	defer ws.Close()

	opts.Workers = b.workers
	opts.ReadFile = ws.cache.ReadAll
	opts.Logger = a.logger
	results, stats, err := transfer.RunBatch(ctx, ws.doc.Tokens(), paths, opts)
	if err != nil {
		return err
	}
	if write && stats.Applied > 0 {
		if err := ws.save(ctx); err != nil {
			return err
		}
		a.logger.Info("document saved", "path", ws.path)
	}

	out := cmd.OutOrStdout()
	if a.jsonOutput {
		if err := writeJSON(out, struct {
			Results []transfer.BatchResult `json:"results"`
			Stats   transfer.BatchStats    `json:"stats"`
		}{results, stats}); err != nil {
			return err
		}
	} else if err := printBatchHuman(out, results, stats, opts.DryRun); err != nil {
		return err
	}
	if stats.Failed > 0 {
		return fmt.Errorf("%d of %d documents failed", stats.Failed, stats.Files)
	}
	return nil
}

func printBatchHuman(w io.Writer, results []transfer.BatchResult, stats transfer.BatchStats, dryRun bool) error {
	for _, r := range results {
		name := filepath.Base(r.Path)
		if r.Err != nil {
			fmt.Fprintf(w, "%s  ! %s\n", name, r.Error)
			continue
		}
		fmt.Fprintf(w, "%s  %s  (%d mappings)\n", name, r.Preview.Meta.SourceFileName, r.Preview.Meta.TotalMappings)
		rows := make([][]string, 0, len(r.Preview.Items))
		for _, it := range r.Preview.Items {
			rows = append(rows, []string{"  " + string(it.Status), it.VariableName, it.Collection, it.ErrorMessage})
		}
		if err := writeTable(w, nil, rows); err != nil {
			return err
		}
		if r.Apply != nil {
			fmt.Fprintf(w, "  applied %d\n", r.Apply.AppliedCount)
			for _, e := range r.Apply.Errors {
				fmt.Fprintf(w, "  ! %s\n", e)
			}
		}
	}
	fmt.Fprintln(w)
	summary := [][]string{
		{"Documents", strconv.Itoa(stats.Files)},
		{"Failed", strconv.Itoa(stats.Failed)},
		{"Ready", strconv.Itoa(stats.Ready)},
	}
	if !dryRun {
		summary = append(summary, []string{"Applied", strconv.Itoa(stats.Applied)})
	}
	return writeTable(w, nil, summary)
}
