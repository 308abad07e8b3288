package render

import (
	"github.com/gdamore/tcell/v2"

	"github.com/lixenwraith/sixty-below/constant"
	"github.com/lixenwraith/sixty-below/world"
)

// Cell is one pre-shaded tile of a chunk image
type Cell struct {
	Glyph rune
	Style tcell.Style
}

// ChunkImage is the rendered form of one chunk, row-major like the tile block
type ChunkImage struct {
	Index int
	Cells [constant.ChunkArea]Cell
}

// BuildChunkImage shades every tile of a chunk from the store
func BuildChunkImage(store *world.Store, pal *Palette, index int) *ChunkImage {
	var block [constant.ChunkArea]byte
	store.ChunkTileBlockInto(index, block[:])
	_, oy := store.Layout().ChunkOrigin(index)

	img := &ChunkImage{Index: index}
	for i, code := range block {
		img.Cells[i] = Cell{Glyph: pal.Glyph(code), Style: pal.Style(code, oy+i>>constant.ChunkShift)}
	}
	return img
}
