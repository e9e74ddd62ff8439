// Package color holds the 0-1 floating RGBA color used across the extractor,
// the export document and the token store.
package color

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Color is an RGBA color with channels in the range 0-1.
type Color struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
	A float64 `json:"a"`
}

// RGB returns an opaque color.
func RGB(r, g, b float64) Color {
	return Color{R: r, G: g, B: b, A: 1}
}

// Black is the opaque zero color.
var Black = RGB(0, 0, 0)

func channel(v float64) int {
	n := int(math.Round(v * 255))
	if n < 0 {
		return 0
	}
	if n > 255 {
		return 255
	}
	return n
}

// Hex returns the uppercase #RRGGBB display form. Alpha is not encoded.
func (c Color) Hex() string {
	return fmt.Sprintf("#%02X%02X%02X", channel(c.R), channel(c.G), channel(c.B))
}

// WithAlpha returns a copy of c with alpha replaced.
func (c Color) WithAlpha(a float64) Color {
	c.A = a
	return c
}

// CSS returns the rgba() form with 0-255 channels.
func (c Color) CSS() string {
	return fmt.Sprintf("rgba(%d, %d, %d, %s)", channel(c.R), channel(c.G), channel(c.B),
		strconv.FormatFloat(c.A, 'f', -1, 64))
}

// ParseHex parses #RGB or #RRGGBB (the leading # is optional) into an opaque color.
func ParseHex(s string) (Color, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return Color{}, fmt.Errorf("invalid hex color %q", s)
	}
	n, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	return RGB(float64(n>>16&0xFF)/255, float64(n>>8&0xFF)/255, float64(n&0xFF)/255), nil
}
