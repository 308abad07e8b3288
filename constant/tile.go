package constant

// Tile codes stored in the world byte array
const (
	TileAir byte = iota
	TileDirt
	TileGrass
	TileStone
	TileSand
	TileWater
	TileLava
	TileWood
	TileLeaves
	TileOre
	TileBedrock
	TilePlatform
	TileWeb
)

// Collision flags per tile
const (
	CollisionNone     uint8 = 0
	CollisionSolid    uint8 = 1 << 0 // Blocks movement
	CollisionPlatform uint8 = 1 << 1 // Passable from below
	CollisionLiquid   uint8 = 1 << 2 // Swim, slows
	CollisionDamage   uint8 = 1 << 3 // Lava, spikes
	CollisionSlow     uint8 = 1 << 4 // Webs
)

// TileDef is the static description of a tile code
type TileDef struct {
	Name      string
	Glyph     rune
	Color     string // Hex, shaded by depth at render time
	Collision uint8
	Breakable bool
}

// Tiles is indexed by tile code; unknown codes fall back to TileAir's definition
var Tiles = [...]TileDef{
	TileAir:      {Name: "air", Glyph: ' ', Color: "#0d0d15", Collision: CollisionNone},
	TileDirt:     {Name: "dirt", Glyph: '▒', Color: "#6b4a2b", Collision: CollisionSolid, Breakable: true},
	TileGrass:    {Name: "grass", Glyph: '▀', Color: "#3f8f3a", Collision: CollisionSolid, Breakable: true},
	TileStone:    {Name: "stone", Glyph: '█', Color: "#7a7a80", Collision: CollisionSolid, Breakable: true},
	TileSand:     {Name: "sand", Glyph: '░', Color: "#d8c27a", Collision: CollisionSolid, Breakable: true},
	TileWater:    {Name: "water", Glyph: '≈', Color: "#2a5fb0", Collision: CollisionLiquid},
	TileLava:     {Name: "lava", Glyph: '≈', Color: "#e0521b", Collision: CollisionLiquid | CollisionDamage},
	TileWood:     {Name: "wood", Glyph: '║', Color: "#8a5a2e", Collision: CollisionSolid, Breakable: true},
	TileLeaves:   {Name: "leaves", Glyph: '♣', Color: "#2f6e2a", Collision: CollisionPlatform, Breakable: true},
	TileOre:      {Name: "ore", Glyph: '◆', Color: "#c9a13b", Collision: CollisionSolid, Breakable: true},
	TileBedrock:  {Name: "bedrock", Glyph: '▓', Color: "#26262b", Collision: CollisionSolid},
	TilePlatform: {Name: "platform", Glyph: '─', Color: "#a07040", Collision: CollisionPlatform, Breakable: true},
	TileWeb:      {Name: "web", Glyph: '#', Color: "#d0d0d0", Collision: CollisionSlow, Breakable: true},
}

// Tile returns the definition for a code
func Tile(code byte) TileDef {
	if int(code) < len(Tiles) {
		return Tiles[code]
	}
	return Tiles[TileAir]
}
