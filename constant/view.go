package constant

// Viewport and chunk image cache
const (
	// ZoomMin and ZoomMax bound tiles per terminal cell
	ZoomMin = 1
	ZoomMax = 2

	// ChunkCacheImages caps cached chunk images; a few screens of display plus preload
	ChunkCacheImages = 128

	// ChunkPreloadMargin is the ring of chunks around the display kept warm
	ChunkPreloadMargin = 1

	// DepthBands quantizes depth shading so styles are precomputed
	DepthBands = 16

	// DepthShadeMax is how far the deepest band is blended toward black
	DepthShadeMax = 0.65

	// CameraFollowSpeed is the lerp factor used when the camera tracks a target
	CameraFollowSpeed = 0.2
)
