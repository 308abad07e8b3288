package world

import (
	"fmt"
	"math/bits"

	"github.com/lixenwraith/sixty-below/constant"
)

// Layout is the single encode/decode authority for tile and chunk addressing
// World dimensions are powers of two so every mapping is a shift or a mask
//
// Tile index:  (y << widthShift) | x
// Chunk index: (cy << rowShift) | cx, rowShift = widthShift - ChunkShift
type Layout struct {
	widthShift  uint
	heightShift uint
	rowShift    uint // log2(chunks per row)
	rowMask     int

	Width        int
	Height       int
	ChunksPerRow int
	ChunksPerCol int
	TotalChunks  int
}

// NewLayout builds a layout from log2 world dimensions
func NewLayout(widthShift, heightShift uint) (Layout, error) {
	if widthShift < constant.ChunkShift || heightShift < constant.ChunkShift {
		return Layout{}, fmt.Errorf("world shifts %d/%d below chunk shift %d", widthShift, heightShift, constant.ChunkShift)
	}
	if widthShift+heightShift > 30 {
		return Layout{}, fmt.Errorf("world shifts %d/%d exceed addressable size", widthShift, heightShift)
	}
	rowShift := widthShift - constant.ChunkShift
	l := Layout{
		widthShift:   widthShift,
		heightShift:  heightShift,
		rowShift:     rowShift,
		rowMask:      (1 << rowShift) - 1,
		Width:        1 << widthShift,
		Height:       1 << heightShift,
		ChunksPerRow: 1 << rowShift,
		ChunksPerCol: 1 << (heightShift - constant.ChunkShift),
	}
	l.TotalChunks = l.ChunksPerRow * l.ChunksPerCol
	return l, nil
}

// NewLayoutForSize validates tile dimensions and derives the shifts
func NewLayoutForSize(width, height int) (Layout, error) {
	if !isPow2(width) || !isPow2(height) {
		return Layout{}, fmt.Errorf("world size %dx%d must be powers of two", width, height)
	}
	return NewLayout(uint(bits.TrailingZeros(uint(width))), uint(bits.TrailingZeros(uint(height))))
}

// DefaultLayout is the 1024x512 world
func DefaultLayout() Layout {
	l, err := NewLayout(constant.WorldWidthShift, constant.WorldHeightShift)
	if err != nil {
		panic(err)
	}
	return l
}

func isPow2(v int) bool {
	return v > 0 && v&(v-1) == 0
}

// TileCount is the size of the flat tile array
func (l Layout) TileCount() int {
	return l.Width * l.Height
}

// TileIndex maps world coordinates into the flat array
func (l Layout) TileIndex(x, y int) int {
	return (y << l.widthShift) | x
}

// InBounds reports whether x,y addresses a tile
func (l Layout) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < l.Width && y < l.Height
}

// ChunkIndex encodes chunk coordinates
func (l Layout) ChunkIndex(cx, cy int) int {
	return (cy << l.rowShift) | cx
}

// DecodeChunk is the exact inverse of ChunkIndex
func (l Layout) DecodeChunk(index int) (cx, cy int) {
	return index & l.rowMask, index >> l.rowShift
}

// ChunkOf returns the chunk index owning world tile x,y
func (l Layout) ChunkOf(x, y int) int {
	return l.ChunkIndex(x>>constant.ChunkShift, y>>constant.ChunkShift)
}

// ChunkOrigin returns the world coordinates of a chunk's top-left tile
func (l Layout) ChunkOrigin(index int) (wx, wy int) {
	cx, cy := l.DecodeChunk(index)
	return cx << constant.ChunkShift, cy << constant.ChunkShift
}

// BlockOffset is the position of world tile x,y inside its chunk's 256-byte block
func (l Layout) BlockOffset(x, y int) int {
	return ((y & constant.ChunkMask) << constant.ChunkShift) | (x & constant.ChunkMask)
}

// ValidChunk reports whether index addresses a chunk of this layout
func (l Layout) ValidChunk(index int) bool {
	return index >= 0 && index < l.TotalChunks
}
