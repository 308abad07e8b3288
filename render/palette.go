package render

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/lixenwraith/sixty-below/constant"
)

var shadowColor = colorful.Color{R: 0, G: 0, B: 0}

// Palette precomputes a tcell style and RGB color per tile code and depth band
// Deeper rows are blended toward black in Lab space so hue survives the darkening
type Palette struct {
	height int
	glyphs [256]rune
	colors [256][constant.DepthBands]colorful.Color
	styles [256][constant.DepthBands]tcell.Style
}

// NewPalette builds the shading tables for a world of the given height
// An unparsable tile color is a programmer error in the tile table
func NewPalette(worldHeight int) (*Palette, error) {
	if worldHeight <= 0 {
		return nil, fmt.Errorf("palette: world height %d", worldHeight)
	}
	p := &Palette{height: worldHeight}

	for code := 0; code < 256; code++ {
		def := constant.Tile(byte(code))
		base, err := colorful.Hex(def.Color)
		if err != nil {
			return nil, fmt.Errorf("palette: tile %q color %q: %w", def.Name, def.Color, err)
		}
		p.glyphs[code] = def.Glyph

		for band := 0; band < constant.DepthBands; band++ {
			shade := constant.DepthShadeMax * float64(band) / float64(constant.DepthBands-1)
			c := base.BlendLab(shadowColor, shade).Clamped()
			p.colors[code][band] = c
			p.styles[code][band] = styleFor(def.Glyph, c)
		}
	}
	return p, nil
}

func toTcell(c colorful.Color) tcell.Color {
	r, g, b := c.RGB255()
	return tcell.NewRGBColor(int32(r), int32(g), int32(b))
}

// styleFor paints empty glyphs as background and the rest as foreground over a darker fill
func styleFor(glyph rune, c colorful.Color) tcell.Style {
	if glyph == ' ' {
		return tcell.StyleDefault.Background(toTcell(c))
	}
	fill := c.BlendLab(shadowColor, 0.5).Clamped()
	return tcell.StyleDefault.Foreground(toTcell(c)).Background(toTcell(fill))
}

func (p *Palette) band(y int) int {
	switch {
	case y <= 0:
		return 0
	case y >= p.height:
		return constant.DepthBands - 1
	}
	return y * constant.DepthBands / p.height
}

// Glyph returns the terminal rune of a tile code
func (p *Palette) Glyph(code byte) rune {
	return p.glyphs[code]
}

// Style returns the shaded style of a tile at world row y
func (p *Palette) Style(code byte, y int) tcell.Style {
	return p.styles[code][p.band(y)]
}

// RGB returns the shaded 8-bit color of a tile at world row y
func (p *Palette) RGB(code byte, y int) (r, g, b uint8) {
	return p.colors[code][p.band(y)].RGB255()
}
