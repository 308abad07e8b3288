package constant

import "time"

// Frame loop timing
const (
	// FramesPerSecond is the nominal display refresh the loop is paced at
	FramesPerSecond = 60

	// NominalFrame is one frame step at FramesPerSecond (~16.67ms)
	NominalFrame = time.Second / FramesPerSecond

	// MaxFrameGap is the dt above which the frame is treated as a resume from background
	// Simulation advances one NominalFrame instead of fast-forwarding
	MaxFrameGap = time.Second

	// MaxFrameDelta is the dt ceiling for ordinary hitches (GC pauses)
	MaxFrameDelta = 50 * time.Millisecond
)

// Per-frame time budgets in whole milliseconds
// Total frame budget is their sum; browser overhead is left out of the 16ms frame
const (
	BudgetUpdateMs    = 3
	BudgetRenderMs    = 4
	BudgetMicrotaskMs = 5
)

// Save cadence in logical time
const (
	AutoSaveInterval = 2 * time.Second
	AutoSaveID       = "auto_save"
)

// Debug overlay sampling
const (
	// OverlaySampleFrames must stay a power of two, averages are taken with a shift
	OverlaySampleFrames = 64
	OverlaySampleShift  = 6

	// OverlayHotMicros highlights phase maxima above 5ms
	OverlayHotMicros = 5000
)
