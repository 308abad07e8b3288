package input

// IntentType discriminates semantic actions
type IntentType uint8

const (
	IntentNone IntentType = iota

	// System
	IntentQuit          // Ctrl+Q, Ctrl+C, q
	IntentResize        // Terminal resize event
	IntentToggleOverlay // F3, `
	IntentTogglePause   // p

	// World
	IntentMove       // h,j,k,l, arrows; Dx/Dy set
	IntentDig        // space, d, left click
	IntentPlace      // f, right click
	IntentSelectTile // 1..9; Tile set
	IntentPointer    // Mouse move with no button
	IntentZoomIn     // +, =
	IntentZoomOut    // -
)

// Intent is one translated input event
// Cell coordinates are set for pointer-driven intents; Width/Height for resize
type Intent struct {
	Type   IntentType
	Dx, Dy int
	Count  int
	Tile   byte
	Cell   bool
	X, Y   int
	Width  int
	Height int
}
