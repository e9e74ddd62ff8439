package mapper

import (
	"strconv"
	"strings"
	"time"

	"github.com/gnana997/stylesync/pkg/catalog"
	"github.com/gnana997/stylesync/pkg/color"
	"github.com/gnana997/stylesync/pkg/host"
	"github.com/gnana997/stylesync/pkg/tokens"
	"github.com/gnana997/stylesync/pkg/transfer"
)

const (
	// PrimaryToken is the fill token whose color seeds the derived alpha tokens.
	PrimaryToken = "system/bg/primary"
	// PrimaryAlphaPrefix names the alpha levels derived from PrimaryToken.
	PrimaryAlphaPrefix = "alpha/primary/500-"
)

// DefaultExportModes are written to every variable mapping unless overridden.
var DefaultExportModes = []string{"Light", "Dark"}

// ExportOptions tunes BuildExport.
type ExportOptions struct {
	Modes []string
	// Catalog supplies the alpha levels; derived tokens are skipped without it.
	Catalog     *catalog.QueryService
	SkipDerived bool
	Now         time.Time
}

// BuildExport assembles the export document for items. Every mapping becomes
// one variable mapping; a fill mapped to PrimaryToken adds the derived alpha
// tokens.
func BuildExport(file host.FileInfo, items []transfer.ExtractionItem, opts ExportOptions) transfer.ExportDocument {
	modes := opts.Modes
	if len(modes) == 0 {
		modes = DefaultExportModes
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	fileName := file.FileName
	if fileName == "" {
		fileName = "Unknown"
	}

	out := transfer.ExportDocument{
		Meta: transfer.Meta{
			Version:        transfer.DocumentVersion,
			ExportedAt:     now.UTC().Format(time.RFC3339),
			SourceFileName: fileName,
			SourceFileKey:  file.FileKey,
		},
		Extractions:      append([]transfer.ExtractionItem{}, items...),
		VariableMappings: []transfer.VariableMapping{},
	}

	var primary *color.Color
	mapped := make(map[string]bool)
	for _, item := range items {
		for _, m := range item.Mappings {
			val := mappingValue(item.Properties, m.Property)
			if m.Property == transfer.PropertyFill && m.VariableName == PrimaryToken && primary == nil {
				c := val.Color
				primary = &c
			}
			mapped[m.VariableName] = true
			out.VariableMappings = append(out.VariableMappings, transfer.VariableMapping{
				VariableName: m.VariableName,
				NewValue:     val,
				Modes:        append([]string(nil), modes...),
			})
		}
	}

	if primary != nil && !opts.SkipDerived && opts.Catalog != nil {
		set := transfer.AlphaSet{Base: primary.Hex(), Alpha: map[string]string{}}
		for _, level := range AlphaLevels(opts.Catalog) {
			c := primary.WithAlpha(level.Alpha)
			set.Alpha[level.Label] = c.CSS()
			if mapped[level.Token] {
				continue
			}
			out.VariableMappings = append(out.VariableMappings, transfer.VariableMapping{
				VariableName: level.Token,
				NewValue:     tokens.ColorValue(c),
				Modes:        append([]string(nil), modes...),
				Derived:      true,
			})
		}
		out.DerivedTokens.PrimaryColor = &set
	}
	return out
}

func mappingValue(p transfer.Properties, prop transfer.Property) tokens.Value {
	switch prop {
	case transfer.PropertyFill:
		if len(p.Fills) > 0 && p.Fills[0].Color != nil {
			return tokens.ColorValue(*p.Fills[0].Color)
		}
		return tokens.ColorValue(color.Black)
	case transfer.PropertyStroke:
		if len(p.Strokes) > 0 {
			return tokens.ColorValue(p.Strokes[0].Color)
		}
		return tokens.ColorValue(color.Black)
	case transfer.PropertyStrokeWeight:
		if len(p.Strokes) > 0 {
			return tokens.NumberValue(p.Strokes[0].Weight)
		}
		return tokens.NumberValue(0)
	default:
		r, _ := p.CornerRadius.Number()
		return tokens.NumberValue(r)
	}
}

// AlphaLevel is one derived transparency step of the primary color.
type AlphaLevel struct {
	Token string
	Label string
	Alpha float64
}

// AlphaLevels lists the catalog tokens under PrimaryAlphaPrefix whose suffix
// reads "<percent>p", in catalog order.
func AlphaLevels(qs *catalog.QueryService) []AlphaLevel {
	var levels []AlphaLevel
	for _, t := range qs.TokensWithPrefix(PrimaryAlphaPrefix) {
		label := strings.TrimPrefix(t.Name, PrimaryAlphaPrefix)
		pct, err := strconv.Atoi(strings.TrimSuffix(label, "p"))
		if err != nil || !strings.HasSuffix(label, "p") {
			continue
		}
		levels = append(levels, AlphaLevel{Token: t.Name, Label: label, Alpha: float64(pct) / 100})
	}
	return levels
}
