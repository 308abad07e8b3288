package event

// Type identifies a bus topic
type Type int

const (
	// TypeNone is the zero value and never dispatched
	TypeNone Type = iota

	// === Frame ===

	// FrameSample carries per-phase timings of the last frame
	// Trigger: FrameLoop after the microtask phase
	// Consumer: debug Overlay, debug Server stream | Payload: *FrameSamplePayload
	FrameSample

	// === World ===

	// TileChanged reports a tile write that changed the stored value
	// Trigger: game Session dig/place
	// Consumer: audio CuePlayer | Payload: *TileChangedPayload
	TileChanged

	// ChunkImagesRebuilt reports one drain step of the chunk image builder
	// Trigger: WorldRenderer microtask | Payload: *ChunkImagesRebuiltPayload
	ChunkImagesRebuilt

	// === Persistence ===

	// SaveComplete reports a committed save batch
	// Trigger: SaveManager.Poll
	// Consumer: audio CuePlayer | Payload: *SaveCompletePayload
	SaveComplete

	// SaveFailed reports a rolled-back save batch; the chunks are re-marked dirty
	// Trigger: SaveManager.Poll | Payload: *SaveFailedPayload
	SaveFailed

	// SessionStarted reports the world identity after load or generation
	// Trigger: persistence.OpenWorld caller | Payload: *SessionStartedPayload
	SessionStarted

	// === UI ===

	// SetZoom changes how many tiles one terminal cell covers
	// Trigger: input | Consumer: WorldRenderer | Payload: *SetZoomPayload
	SetZoom

	// ToggleOverlay shows or hides the debug overlay
	// Trigger: input | Consumer: debug Overlay | Payload: nil
	ToggleOverlay
)
