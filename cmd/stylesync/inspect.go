package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gnana997/stylesync/pkg/style"
	"github.com/gnana997/stylesync/pkg/variants"
)

func newInspectCmd(a *app) *cobra.Command {
	var (
		nodes        []string
		showVariants bool
	)
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show the style of the selected element",
		Long:  "Print the fills, strokes and corner radius extracted from the document selection. --node selects elements first.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ws, err := a.openWorkspace(ctx)
			if err != nil {
				return err
			}
			defer ws.Close()

			if len(nodes) > 0 {
				if err := ws.doc.Select(nodes...); err != nil {
					return err
				}
			}
			conn, err := a.connect(ctx, ws)
			if err != nil {
				return err
			}
			defer closeConn(conn)

			sel, err := conn.Client.Selection(ctx)
			if err != nil {
				return err
			}
			var vr *variants.Result
			if showVariants && sel != nil {
				res, err := conn.Client.SelectionVariants(ctx)
				if err != nil {
					return err
				}
				vr = &res
			}

			out := cmd.OutOrStdout()
			if a.jsonOutput {
				return writeJSON(out, struct {
					Selection *style.ExtractedStyle `json:"selection"`
					Variants  *variants.Result      `json:"variants,omitempty"`
				}{sel, vr})
			}
			if sel == nil {
				fmt.Fprintln(out, "Nothing selected.")
				return nil
			}
			printStyleHuman(out, sel)
			if vr != nil {
				fmt.Fprintln(out)
				printVariantsHuman(out, vr)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&nodes, "node", "n", nil, "node id to select (repeatable)")
	cmd.Flags().BoolVar(&showVariants, "variants", false, "also list component variant properties")
	return cmd
}

// printStyleHuman prints a human-readable style summary.
func printStyleHuman(w io.Writer, s *style.ExtractedStyle) {
	fmt.Fprintf(w, "%s  [%s]  %sx%s\n", s.Name, s.Kind, formatNumber(s.Width), formatNumber(s.Height))
	fmt.Fprintf(w, "  id %s\n", s.ID)

	fmt.Fprintln(w)
	if len(s.Fills) == 0 {
		fmt.Fprintln(w, "Fills  (none)")
	} else {
		fmt.Fprintln(w, "Fills")
		for _, f := range s.Fills {
			if f.Kind != style.FillSolid {
				fmt.Fprintf(w, "  %s\n", f.Kind)
				continue
			}
			op := 1.0
			if f.Opacity != nil {
				op = *f.Opacity
			}
			fmt.Fprintf(w, "  %-8s %s  opacity %s\n", f.Kind, f.Hex, formatNumber(op))
		}
	}

	fmt.Fprintln(w)
	if len(s.Strokes) == 0 {
		fmt.Fprintln(w, "Strokes  (none)")
	} else {
		fmt.Fprintln(w, "Strokes")
		for _, st := range s.Strokes {
			fmt.Fprintf(w, "  %s  weight %s\n", st.Hex, formatNumber(st.Weight))
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Corner radius  %s\n", s.CornerRadius.String())
}

func printVariantsHuman(w io.Writer, r *variants.Result) {
	if r.Error != "" {
		fmt.Fprintf(w, "Variants  (%s)\n", r.Error)
		return
	}
	fmt.Fprintf(w, "Variants  %s\n", r.ComponentSetName)
	for _, p := range r.VariantProperties {
		line := fmt.Sprintf("  %-12s %s", p.Name, p.Type)
		if len(p.VariantOptions) > 0 {
			line += "  " + strings.Join(p.VariantOptions, " | ")
		}
		if p.DefaultValue != nil {
			line += fmt.Sprintf("  (default %v)", p.DefaultValue)
		}
		fmt.Fprintln(w, line)
	}
}
