package render

import (
	"math"

	"github.com/lixenwraith/sixty-below/constant"
	"github.com/lixenwraith/sixty-below/world"
)

// Camera is the viewport over the world in tiles
// X, Y is the top-left tile; each terminal cell covers Zoom tiles on both axes
type Camera struct {
	layout world.Layout
	cols   int
	rows   int
	zoom   int

	x, y float64

	// Chunk lists are recomputed only when the covered chunk rectangle changes
	bounds  [4]int
	display []int
	preload []int
	version uint64
}

// NewCamera creates a camera for a terminal area of cols x rows cells at zoom 1
func NewCamera(layout world.Layout, cols, rows int) *Camera {
	c := &Camera{
		layout: layout,
		cols:   max(cols, 1),
		rows:   max(rows, 1),
		zoom:   constant.ZoomMin,
	}
	c.refresh(true)
	return c
}

// LogicalWidth is the number of tiles visible horizontally
func (c *Camera) LogicalWidth() int { return c.cols * c.zoom }

// LogicalHeight is the number of tiles visible vertically
func (c *Camera) LogicalHeight() int { return c.rows * c.zoom }

// Zoom returns tiles per cell
func (c *Camera) Zoom() int { return c.zoom }

// Origin returns the top-left tile
func (c *Camera) Origin() (x, y int) { return int(c.x), int(c.y) }

// Size returns the terminal area in cells
func (c *Camera) Size() (cols, rows int) { return c.cols, c.rows }

// Version increases whenever the chunk lists change
func (c *Camera) Version() uint64 { return c.version }

// DisplayChunks lists chunks intersecting the viewport, row-major
func (c *Camera) DisplayChunks() []int { return c.display }

// PreloadChunks lists the ring of chunks around the viewport
func (c *Camera) PreloadChunks() []int { return c.preload }

func (c *Camera) clampTarget(tx, ty float64) (float64, float64) {
	maxX := float64(c.layout.Width - c.LogicalWidth())
	maxY := float64(c.layout.Height - c.LogicalHeight())
	return math.Max(0, math.Min(tx, maxX)), math.Max(0, math.Min(ty, maxY))
}

// CenterOn moves the camera so tile (tx, ty) is centered, clamped to the world
func (c *Camera) CenterOn(tx, ty int) {
	c.x, c.y = c.clampTarget(float64(tx-c.LogicalWidth()/2), float64(ty-c.LogicalHeight()/2))
	c.x, c.y = math.Floor(c.x), math.Floor(c.y)
	c.refresh(true)
}

// Follow eases the camera toward centering (tx, ty)
// Returns true when the chunk lists changed
func (c *Camera) Follow(tx, ty int, speed float64) bool {
	dx, dy := c.clampTarget(float64(tx-c.LogicalWidth()/2), float64(ty-c.LogicalHeight()/2))
	c.x = approach(c.x, dx, speed)
	c.y = approach(c.y, dy, speed)
	return c.refresh(false)
}

// approach lerps cur toward dst by at least one whole tile per call
func approach(cur, dst, speed float64) float64 {
	d := dst - cur
	if math.Abs(d) <= 0.5 {
		return cur
	}
	step := d * speed
	if math.Abs(step) < 1 {
		step = math.Copysign(1, d)
	}
	if math.Abs(step) >= math.Abs(d) {
		return dst
	}
	return math.Floor(cur + step)
}

// SetZoom clamps level to the supported range and keeps the current center
func (c *Camera) SetZoom(level int) {
	level = min(max(level, constant.ZoomMin), constant.ZoomMax)
	if level == c.zoom {
		return
	}
	cx := int(c.x) + c.LogicalWidth()/2
	cy := int(c.y) + c.LogicalHeight()/2
	c.zoom = level
	c.CenterOn(cx, cy)
}

// Resize changes the terminal area and keeps the current center
func (c *Camera) Resize(cols, rows int) {
	cx := int(c.x) + c.LogicalWidth()/2
	cy := int(c.y) + c.LogicalHeight()/2
	c.cols, c.rows = max(cols, 1), max(rows, 1)
	c.CenterOn(cx, cy)
}

// WorldToScreen maps a tile to its cell; ok is false when off screen or
// not the tile sampled for that cell at the current zoom
func (c *Camera) WorldToScreen(wx, wy int) (sx, sy int, ok bool) {
	rx, ry := wx-int(c.x), wy-int(c.y)
	if rx < 0 || ry < 0 || rx%c.zoom != 0 || ry%c.zoom != 0 {
		return 0, 0, false
	}
	sx, sy = rx/c.zoom, ry/c.zoom
	return sx, sy, sx < c.cols && sy < c.rows
}

// ScreenToWorld maps a cell to the tile it shows
func (c *Camera) ScreenToWorld(sx, sy int) (wx, wy int) {
	return int(c.x) + sx*c.zoom, int(c.y) + sy*c.zoom
}

// refresh rebuilds the chunk lists when forced or when the covered chunks changed
func (c *Camera) refresh(force bool) bool {
	x0, y0 := int(c.x), int(c.y)
	x1 := min(x0+c.LogicalWidth(), c.layout.Width) - 1
	y1 := min(y0+c.LogicalHeight(), c.layout.Height) - 1
	cx0, cy0 := x0>>constant.ChunkShift, y0>>constant.ChunkShift
	cx1, cy1 := x1>>constant.ChunkShift, y1>>constant.ChunkShift

	bounds := [4]int{cx0, cy0, cx1, cy1}
	if !force && bounds == c.bounds {
		return false
	}
	c.bounds = bounds

	c.display = c.display[:0]
	for cy := cy0; cy <= cy1; cy++ {
		for cx := cx0; cx <= cx1; cx++ {
			c.display = append(c.display, c.layout.ChunkIndex(cx, cy))
		}
	}

	m := constant.ChunkPreloadMargin
	px0, py0 := max(cx0-m, 0), max(cy0-m, 0)
	px1, py1 := min(cx1+m, c.layout.ChunksPerRow-1), min(cy1+m, c.layout.ChunksPerCol-1)

	c.preload = c.preload[:0]
	for cy := py0; cy <= py1; cy++ {
		for cx := px0; cx <= px1; cx++ {
			if cx >= cx0 && cx <= cx1 && cy >= cy0 && cy <= cy1 {
				continue
			}
			c.preload = append(c.preload, c.layout.ChunkIndex(cx, cy))
		}
	}
	c.version++
	return true
}
