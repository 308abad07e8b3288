package worldgen

import (
	"github.com/lixenwraith/sixty-below/constant"
	"github.com/lixenwraith/sixty-below/world"
)

// Context is the shared scratch state passes read and write
type Context struct {
	Layout  world.Layout
	Seed    uint32
	Tiles   []byte
	Surface []int // Surface row per column, set by the terrain pass
}

func (c *Context) set(x, y int, code byte) {
	c.Tiles[c.Layout.TileIndex(x, y)] = code
}

func (c *Context) get(x, y int) byte {
	return c.Tiles[c.Layout.TileIndex(x, y)]
}

// Pass is one ordered generation step
type Pass interface {
	Name() string
	Run(ctx *Context)
}

type passFunc struct {
	name string
	fn   func(*Context)
}

func (p passFunc) Name() string     { return p.name }
func (p passFunc) Run(ctx *Context) { p.fn(ctx) }

// DefaultPipeline is terrain, caves, water, ores, trees, bedrock in that order
func DefaultPipeline() []Pass {
	return []Pass{
		passFunc{"terrain", terrain},
		passFunc{"caves", caves},
		passFunc{"water", water},
		passFunc{"ores", ores},
		passFunc{"trees", trees},
		passFunc{"bedrock", bedrock},
	}
}

// Generate builds a full world tile array for layout; same seed, same world
func Generate(layout world.Layout, seed int64) []byte {
	return Run(layout, seed, DefaultPipeline())
}

// Run applies passes in order to an all-air world
func Run(layout world.Layout, seed int64, passes []Pass) []byte {
	ctx := &Context{
		Layout:  layout,
		Seed:    Hash32(uint32(seed) ^ uint32(seed>>32)),
		Tiles:   make([]byte, layout.TileCount()),
		Surface: make([]int, layout.Width),
	}
	for i, p := range passes {
		// Each pass gets its own seed stream
		base := ctx.Seed
		ctx.Seed = Hash32(base + uint32(i+1))
		p.Run(ctx)
		ctx.Seed = base
	}
	return ctx.Tiles
}

func terrain(c *Context) {
	h := c.Layout.Height
	base := h / 4
	amp := float64(h) / 8

	for x := 0; x < c.Layout.Width; x++ {
		n := Value1D(c.Seed, x, 64)*0.7 + Value1D(c.Seed^0x5bd1e995, x, 16)*0.3
		surface := base + int((n-0.5)*2*amp)
		surface = max(1, min(surface, h-2))
		c.Surface[x] = surface

		dirtDepth := 4 + int(Hash2(c.Seed, int32(x), 1)%4)
		for y := surface; y < h; y++ {
			switch {
			case y == surface:
				c.set(x, y, constant.TileGrass)
			case y < surface+dirtDepth:
				c.set(x, y, constant.TileDirt)
			default:
				c.set(x, y, constant.TileStone)
			}
		}
	}
}

func caves(c *Context) {
	h := c.Layout.Height
	for y := 0; y < h; y++ {
		for x := 0; x < c.Layout.Width; x++ {
			if y <= c.Surface[x]+6 {
				continue
			}
			if Fractal2D(c.Seed, x, y, 32, 3) > 0.68 {
				fill := constant.TileAir
				if y > h-h/8 {
					fill = constant.TileLava
				}
				c.set(x, y, fill)
			}
		}
	}
}

// water fills surface basins below the median surface line
func water(c *Context) {
	level := c.Layout.Height / 4
	for x := 0; x < c.Layout.Width; x++ {
		for y := level; y < c.Surface[x]; y++ {
			if c.get(x, y) == constant.TileAir {
				c.set(x, y, constant.TileWater)
			}
		}
		if c.Surface[x] > level && c.get(x, c.Surface[x]) == constant.TileGrass {
			c.set(x, c.Surface[x], constant.TileSand)
		}
	}
}

func ores(c *Context) {
	for y := 0; y < c.Layout.Height; y++ {
		for x := 0; x < c.Layout.Width; x++ {
			if c.get(x, y) == constant.TileStone && Hash2(c.Seed, int32(x), int32(y))%97 == 0 {
				c.set(x, y, constant.TileOre)
			}
		}
	}
}

func trees(c *Context) {
	for x := 2; x < c.Layout.Width-2; x++ {
		s := c.Surface[x]
		if c.get(x, s) != constant.TileGrass || Hash2(c.Seed, int32(x), 0)%11 != 0 {
			continue
		}
		height := 3 + int(Hash2(c.Seed, int32(x), 2)%3)
		top := s - height
		if top < 2 {
			continue
		}
		for y := top; y < s; y++ {
			c.set(x, y, constant.TileWood)
		}
		for dx := -1; dx <= 1; dx++ {
			if c.get(x+dx, top-1) == constant.TileAir {
				c.set(x+dx, top-1, constant.TileLeaves)
			}
		}
	}
}

func bedrock(c *Context) {
	y := c.Layout.Height - 1
	for x := 0; x < c.Layout.Width; x++ {
		c.set(x, y, constant.TileBedrock)
	}
}
