// Package style extracts the visual properties of a scene node.
package style

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gnana997/stylesync/pkg/color"
	"github.com/gnana997/stylesync/pkg/host"
)

// Fill kinds.
const (
	FillSolid    = "solid"
	FillGradient = "gradient"
	FillOther    = "other"
)

// Fill is one visible fill layer. Color, Hex and Opacity are set for solid fills only.
type Fill struct {
	Kind    string       `json:"kind"`
	Color   *color.Color `json:"color,omitempty"`
	Hex     string       `json:"hex,omitempty"`
	Opacity *float64     `json:"opacity,omitempty"`
}

// Stroke is one visible solid stroke.
type Stroke struct {
	Color  color.Color `json:"color"`
	Hex    string      `json:"hex"`
	Weight float64     `json:"weight"`
}

// RadiusKind discriminates Radius.
type RadiusKind int

const (
	RadiusAbsent RadiusKind = iota
	RadiusUniform
	RadiusMixed
)

// Radius is the corner radius of a node: a single value, four differing
// corner values, or absent.
type Radius struct {
	Kind    RadiusKind
	Value   float64
	Corners host.Corners
}

// Uniform returns a single-valued radius.
func Uniform(v float64) Radius { return Radius{Kind: RadiusUniform, Value: v} }

// Mixed returns a per-corner radius.
func Mixed(c host.Corners) Radius { return Radius{Kind: RadiusMixed, Corners: c} }

// Absent is the radius of nodes without corners.
var Absent = Radius{}

// Number returns the uniform value.
func (r Radius) Number() (float64, bool) {
	return r.Value, r.Kind == RadiusUniform
}

// String renders the radius for humans.
func (r Radius) String() string {
	switch r.Kind {
	case RadiusUniform:
		return fmt.Sprintf("%g", r.Value)
	case RadiusMixed:
		c := r.Corners
		return fmt.Sprintf("mixed(%g %g %g %g)", c.TopLeft, c.TopRight, c.BottomRight, c.BottomLeft)
	default:
		return "none"
	}
}

// MarshalJSON encodes a number, the string "mixed", or null.
func (r Radius) MarshalJSON() ([]byte, error) {
	switch r.Kind {
	case RadiusUniform:
		return json.Marshal(r.Value)
	case RadiusMixed:
		return []byte(`"mixed"`), nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts a number, "mixed" or null. Corner values of a mixed
// radius travel separately in ExtractedStyle.CornerRadii.
func (r *Radius) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*r = Absent
	case bytes.Equal(data, []byte(`"mixed"`)):
		*r = Radius{Kind: RadiusMixed}
	default:
		var v float64
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("invalid corner radius %s", data)
		}
		*r = Uniform(v)
	}
	return nil
}

// ExtractedStyle is the style snapshot of one selected node.
type ExtractedStyle struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Kind         string        `json:"kind"`
	Width        float64       `json:"width"`
	Height       float64       `json:"height"`
	Fills        []Fill        `json:"fills"`
	Strokes      []Stroke      `json:"strokes"`
	CornerRadius Radius        `json:"cornerRadius"`
	CornerRadii  *host.Corners `json:"cornerRadii,omitempty"`
}

// UnmarshalJSON restores the per-corner values of a mixed radius.
func (s *ExtractedStyle) UnmarshalJSON(data []byte) error {
	type plain ExtractedStyle
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if p.CornerRadius.Kind == RadiusMixed && p.CornerRadii != nil {
		p.CornerRadius.Corners = *p.CornerRadii
	}
	*s = ExtractedStyle(p)
	return nil
}

// FirstFillHex returns the hex of the first fill, or "" when there is no
// fill or the first one is not solid.
func (s *ExtractedStyle) FirstFillHex() string {
	if len(s.Fills) == 0 {
		return ""
	}
	return s.Fills[0].Hex
}

// FirstFillColor returns the color of the first fill when it is solid.
func (s *ExtractedStyle) FirstFillColor() (color.Color, bool) {
	if len(s.Fills) == 0 || s.Fills[0].Color == nil {
		return color.Color{}, false
	}
	return *s.Fills[0].Color, true
}

// FirstStroke returns the first stroke.
func (s *ExtractedStyle) FirstStroke() (Stroke, bool) {
	if len(s.Strokes) == 0 {
		return Stroke{}, false
	}
	return s.Strokes[0], true
}

// Extract reads a node's style. Attributes the node lacks come back empty.
func Extract(node host.Node) ExtractedStyle {
	s := ExtractedStyle{
		ID:           node.ID,
		Name:         node.Name,
		Kind:         node.Type,
		Width:        node.Width,
		Height:       node.Height,
		Fills:        extractFills(node.Fills),
		Strokes:      extractStrokes(node),
		CornerRadius: extractRadius(node),
	}
	if s.CornerRadius.Kind == RadiusMixed {
		c := s.CornerRadius.Corners
		s.CornerRadii = &c
	}
	return s
}

func opacityOf(p host.Paint) float64 {
	if p.Opacity == nil {
		return 1
	}
	return *p.Opacity
}

func extractFills(paints []host.Paint) []Fill {
	fills := make([]Fill, 0, len(paints))
	for _, p := range paints {
		if !p.IsVisible() {
			continue
		}
		switch {
		case p.Type == host.PaintSolid && p.Color != nil:
			op := opacityOf(p)
			c := p.Color.WithAlpha(op)
			fills = append(fills, Fill{Kind: FillSolid, Color: &c, Hex: c.Hex(), Opacity: &op})
		case strings.Contains(p.Type, "GRADIENT"):
			fills = append(fills, Fill{Kind: FillGradient})
		default:
			fills = append(fills, Fill{Kind: FillOther})
		}
	}
	return fills
}

func extractStrokes(node host.Node) []Stroke {
	weight := 1.0
	if node.StrokeWeight != nil {
		weight = *node.StrokeWeight
	}
	strokes := make([]Stroke, 0, len(node.Strokes))
	for _, p := range node.Strokes {
		if !p.IsVisible() || p.Type != host.PaintSolid || p.Color == nil {
			continue
		}
		c := p.Color.WithAlpha(opacityOf(p))
		strokes = append(strokes, Stroke{Color: c, Hex: c.Hex(), Weight: weight})
	}
	return strokes
}

func extractRadius(node host.Node) Radius {
	if node.CornerRadius != nil {
		return Uniform(*node.CornerRadius)
	}
	if node.CornerRadii != nil {
		if node.CornerRadii.Uniform() {
			return Uniform(node.CornerRadii.TopLeft)
		}
		return Mixed(*node.CornerRadii)
	}
	return Absent
}
