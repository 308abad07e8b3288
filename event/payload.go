package event

import "time"

// FrameSamplePayload is one frame's timing breakdown
type FrameSamplePayload struct {
	Frame    uint64        `json:"frame"`
	Update   time.Duration `json:"update"`
	Render   time.Duration `json:"render"`
	Micro    time.Duration `json:"micro"`
	Executed int           `json:"executed"`
	MicroLen int           `json:"micro_queue"`
	SchedLen int           `json:"scheduler_queue"`
	Delta    time.Duration `json:"delta"`
	Paused   bool          `json:"paused"`
}

// TileChangedPayload describes one effective tile write
type TileChangedPayload struct {
	X     int  `json:"x"`
	Y     int  `json:"y"`
	Chunk int  `json:"chunk"`
	Old   byte `json:"old"`
	New   byte `json:"new"`
}

// ChunkImagesRebuiltPayload counts images rebuilt in one step and what is left
type ChunkImagesRebuiltPayload struct {
	Rebuilt int `json:"rebuilt"`
	Pending int `json:"pending"`
}

// SaveCompletePayload summarizes a committed batch
type SaveCompletePayload struct {
	Chunks   int           `json:"chunks"`
	Inserted int           `json:"inserted"`
	Static   int           `json:"static"`
	Elapsed  time.Duration `json:"elapsed"`
}

// SaveFailedPayload carries the repository error of a failed batch
type SaveFailedPayload struct {
	Chunks int   `json:"chunks"`
	Err    error `json:"-"`
}

// SessionStartedPayload identifies the opened world
type SessionStartedPayload struct {
	WorldID   string `json:"world_id"`
	Seed      int64  `json:"seed"`
	Generated bool   `json:"generated"`
}

// SetZoomPayload is the requested tiles-per-cell factor
type SetZoomPayload struct {
	Zoom int `json:"zoom"`
}
