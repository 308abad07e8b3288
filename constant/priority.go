package constant

// Microtask cost table
// Priority: higher runs first. Capacity: estimated cost in quarter-millisecond units (1..20)
const (
	PriorityProcessSave = 20
	CapacityProcessSave = 8

	PriorityChunkImages = 15
	CapacityChunkImages = 6

	PriorityRenderDebugOverlay = 10
	CapacityRenderDebugOverlay = 4

	PriorityDebugProbe = 10
	CapacityDebugProbe = 2

	PriorityWorldMapSnapshot = 5
	CapacityWorldMapSnapshot = 20
)

// ChunkImagesPerTask bounds how many chunk images one chunk_images run rebuilds
const ChunkImagesPerTask = 4
