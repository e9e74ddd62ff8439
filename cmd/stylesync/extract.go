package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gnana997/stylesync/pkg/catalog"
	"github.com/gnana997/stylesync/pkg/mapper"
)

type extractOptions struct {
	nodes       []string
	category    string
	component   string
	variants    map[string]string
	fill        string
	radius      string
	stroke      string
	strokeW     string
	modes       []string
	skipDerived bool
	output      string
}

func newExtractCmd(a *app) *cobra.Command {
	var o extractOptions
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Map selected elements to a component and write an export document",
		Long: "Capture the style of each --node (or the current selection), map it to a design-system component and its tokens, " +
			"and write the export document. Token flags override the catalog suggestions; an empty value skips the property.",
		Example: "  stylesync extract -d design.json --node 1:1 --category button --component Buttons -o export.json",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			qs, err := a.loadCatalog()
			if err != nil {
				return err
			}
			comp, err := resolveComponent(qs, o.category, o.component)
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
			defer closeConn(conn)

			session := mapper.NewSession(mapper.SessionConfig{Catalog: qs, Logger: a.logger})
			req := mapper.AddRequest{Category: o.category, ComponentKey: comp.Key, Variants: o.variants}
			flags := cmd.Flags()
			if flags.Changed("fill") {
				req.FillToken = mapper.Token(o.fill)
			}
			if flags.Changed("radius") {
				req.RadiusToken = mapper.Token(o.radius)
			}
			if flags.Changed("stroke") {
				req.StrokeToken = mapper.Token(o.stroke)
			}
			if flags.Changed("stroke-weight") {
				req.StrokeWeightToken = mapper.Token(o.strokeW)
			}

			targets := o.nodes
			if len(targets) == 0 {
				targets = []string{""}
			}
			for _, id := range targets {
				if id != "" {
					if err := ws.doc.Select(id); err != nil {
						return err
					}
				}
				sel, err := conn.Client.Selection(ctx)
				if err != nil {
					return err
				}
				req.Selection = sel
				item, err := session.Add(req)
				if err != nil {
					return errors.New(mapper.Notice(err))
				}
				a.logger.Info("mapping added", "node", item.SourceNode.Name, "mappings", len(item.Mappings))
			}

			info, err := conn.Client.FileInfo(ctx)
			if err != nil {
				return err
			}
			doc := mapper.BuildExport(info, session.Items(), mapper.ExportOptions{
				Modes:       firstNonEmptySlice(o.modes, a.cfg.DefaultModes),
				Catalog:     qs,
				SkipDerived: o.skipDerived,
			})
			data, err := doc.Encode()
			if err != nil {
				return err
			}
			if o.output == "" || o.output == "-" {
				_, err = cmd.OutOrStdout().Write(append(data, '\n'))
				return err
			}
			if err := os.WriteFile(o.output, append(data, '\n'), 0644); err != nil {
				return fmt.Errorf("failed to write export: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d mappings to %s\n", len(doc.VariableMappings), o.output)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringSliceVarP(&o.nodes, "node", "n", nil, "node id to capture (repeatable; default: current selection)")
	f.StringVar(&o.category, "category", "", "design-system component category")
	f.StringVar(&o.component, "component", "", "component name or key within the category")
	f.StringToStringVar(&o.variants, "variant", nil, "variant property value, e.g. Type=Primary (repeatable)")
	f.StringVar(&o.fill, "fill", "", "fill token (default: catalog suggestion)")
	f.StringVar(&o.radius, "radius", "", "radius token (default: catalog suggestion)")
	f.StringVar(&o.stroke, "stroke", "", "stroke color token")
	f.StringVar(&o.strokeW, "stroke-weight", "", "stroke weight token")
	f.StringSliceVar(&o.modes, "modes", nil, "modes written to each variable mapping (default Light,Dark)")
	f.BoolVar(&o.skipDerived, "skip-derived", false, "do not add derived primary alpha tokens")
	f.StringVarP(&o.output, "output", "o", "", "output file (default: stdout)")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("component")
	return cmd
}

// resolveComponent finds a component in category by key, else by
// case-insensitive name.
func resolveComponent(qs *catalog.QueryService, category, nameOrKey string) (*catalog.ComponentInfo, error) {
	comps := qs.ComponentsByCategory(category)
	if len(comps) == 0 {
		return nil, fmt.Errorf("unknown category %q", category)
	}
	for i := range comps {
		if comps[i].Key == nameOrKey {
			return &comps[i], nil
		}
	}
	for i := range comps {
		if strings.EqualFold(comps[i].Name, nameOrKey) {
			return &comps[i], nil
		}
	}
	return nil, fmt.Errorf("no component %q in category %q", nameOrKey, category)
}

func firstNonEmptySlice(values ...[]string) []string {
	for _, v := range values {
		if len(v) > 0 {
			return v
		}
	}
	return nil
}
