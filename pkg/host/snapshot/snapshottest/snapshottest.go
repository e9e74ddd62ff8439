// Package snapshottest builds snapshot documents for tests.
package snapshottest

import (
	"github.com/gnana997/stylesync/pkg/color"
	"github.com/gnana997/stylesync/pkg/host"
	"github.com/gnana997/stylesync/pkg/host/snapshot"
	"github.com/gnana997/stylesync/pkg/tokens/tokenstest"
)

// Node ids and component keys used by Fixture.
const (
	ButtonNodeID    = "1:1"
	CardNodeID      = "1:2"
	InstanceNodeID  = "1:3"
	SetNodeID       = "1:4"
	VariantNodeID   = "1:5"
	PlainNodeID     = "1:6"
	ButtonSetKey    = "set-button-key"
	ButtonKey       = "button-primary-key"
	IconKey         = "icon-key"
	LocalSetID      = "set:local"
	LibraryButtonID = "set:button"
)

func f(v float64) *float64 { return &v }
func b(v bool) *bool       { return &v }

// Fixture returns a document with a selected primary button frame.
func Fixture() *snapshot.File {
	buttonSet := host.ComponentSet{
		ID: LibraryButtonID, Key: ButtonSetKey, Name: "Buttons", DefaultVariantKey: ButtonKey,
		Properties: []host.PropertyDefinition{
			{Name: "Type", Type: host.PropertyVariant, VariantOptions: []string{"Primary", "Secondary"}, DefaultValue: "Primary"},
			{Name: "Size", Type: host.PropertyVariant, VariantOptions: []string{"L", "M", "S"}},
			{Name: "Icon", Type: host.PropertyBoolean, DefaultValue: false},
			{Name: "Glyph", Type: host.PropertyInstanceSwap},
			{Name: "Label", Type: host.PropertyText, DefaultValue: "Button"},
		},
	}
	localSet := buttonSet
	localSet.ID = LocalSetID

	blue := color.RGB(0.2, 0.4, 1)
	grey := color.RGB(0.5, 0.5, 0.5)

	return &snapshot.File{
		File:      host.FileInfo{FileName: "Kido App", FileKey: "file-123"},
		Selection: []string{ButtonNodeID},
		Nodes: []host.Node{
			{
				ID: ButtonNodeID, Name: "Primary Button", Type: host.NodeFrame, Width: 120, Height: 40,
				Fills: []host.Paint{
					{Type: host.PaintSolid, Color: &blue},
					{Type: host.PaintSolid, Color: &grey, Visible: b(false)},
					{Type: "GRADIENT_LINEAR"},
				},
				Strokes:      []host.Paint{{Type: host.PaintSolid, Color: &grey, Opacity: f(0.5)}},
				StrokeWeight: f(2),
				CornerRadius: f(8),
			},
			{
				ID: CardNodeID, Name: "Card", Type: host.NodeFrame, Width: 300, Height: 200,
				Fills:       []host.Paint{{Type: host.PaintImage}},
				CornerRadii: &host.Corners{TopLeft: 12, TopRight: 12, BottomRight: 0, BottomLeft: 0},
			},
			{ID: InstanceNodeID, Name: "Button instance", Type: host.NodeInstance, MainComponentKey: ButtonKey},
			{ID: SetNodeID, Name: "Buttons", Type: host.NodeComponentSet, ComponentSetID: LocalSetID},
			{ID: VariantNodeID, Name: "Type=Primary", Type: host.NodeComponent, ComponentKey: ButtonKey, ComponentSetID: LocalSetID},
			{ID: PlainNodeID, Name: "Icon", Type: host.NodeComponent, ComponentKey: IconKey},
		},
		Components: []host.Component{
			{Key: ButtonKey, Name: "Type=Primary", SetID: LocalSetID},
			{Key: IconKey, Name: "Icon"},
		},
		ComponentSets: []host.ComponentSet{localSet},
		Library: snapshot.LibraryFile{
			Components: []host.Component{
				{Key: ButtonKey, Name: "Type=Primary", SetID: LibraryButtonID},
				{Key: IconKey, Name: "Icon"},
			},
			ComponentSets: []host.ComponentSet{buttonSet},
		},
		Tokens: *tokenstest.Fixture(),
	}
}

// Document returns a snapshot.Document over Fixture.
func Document(opts ...snapshot.Option) *snapshot.Document {
	d, err := snapshot.New(Fixture(), opts...)
	if err != nil {
		panic(err)
	}
	return d
}
