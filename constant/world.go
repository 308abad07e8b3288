package constant

// Default world dimensions in tiles, both powers of two
const (
	WorldWidth  = 1024
	WorldHeight = 512

	WorldWidthShift  = 10
	WorldHeightShift = 9
)

// Chunk geometry
const (
	ChunkShift = 4
	ChunkSize  = 1 << ChunkShift // 16 tiles
	ChunkMask  = ChunkSize - 1
	ChunkArea  = ChunkSize * ChunkSize // 256 bytes per block
)
