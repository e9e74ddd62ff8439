package color

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHex(t *testing.T) {
	tests := []struct {
		name string
		c    Color
		want string
	}{
		{"red", RGB(1, 0, 0), "#FF0000"},
		{"black", Black, "#000000"},
		{"rounding", RGB(0.2, 0.4, 0.6), "#336699"},
		{"half rounds up", RGB(0.5, 0.5, 0.5), "#808080"},
		{"clamped", Color{R: 1.5, G: -0.2, B: 0}, "#FF0000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.c.Hex())
		})
	}
}

func TestCSS(t *testing.T) {
	assert.Equal(t, "rgba(255, 0, 0, 0.2)", RGB(1, 0, 0).WithAlpha(0.2).CSS())
	assert.Equal(t, "rgba(0, 0, 0, 1)", Black.CSS())
}

func TestParseHex(t *testing.T) {
	c, err := ParseHex("#336699")
	require.NoError(t, err)
	assert.Equal(t, "#336699", c.Hex())
	assert.Equal(t, 1.0, c.A)

	c, err = ParseHex("f00")
	require.NoError(t, err)
	assert.Equal(t, "#FF0000", c.Hex())

	_, err = ParseHex("#12")
	assert.Error(t, err)
	_, err = ParseHex("#GGGGGG")
	assert.Error(t, err)
}
