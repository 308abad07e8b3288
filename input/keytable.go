package input

import (
	"maps"

	"github.com/gdamore/tcell/v2"

	"github.com/lixenwraith/sixty-below/constant"
)

// KeyEntry is the static intent a key produces
type KeyEntry struct {
	Type   IntentType
	Dx, Dy int
	Tile   byte
}

// KeyTable maps keys to intents
type KeyTable struct {
	// Special keys (Ctrl+*, arrows, function keys)
	SpecialKeys map[tcell.Key]KeyEntry

	// Printable runes
	Runes map[rune]KeyEntry
}

// DefaultKeyTable returns the default bindings
func DefaultKeyTable() *KeyTable {
	kt := &KeyTable{
		SpecialKeys: map[tcell.Key]KeyEntry{
			tcell.KeyCtrlQ:  {Type: IntentQuit},
			tcell.KeyCtrlC:  {Type: IntentQuit},
			tcell.KeyEscape: {Type: IntentQuit},
			tcell.KeyF3:     {Type: IntentToggleOverlay},
			tcell.KeyLeft:   {Type: IntentMove, Dx: -1},
			tcell.KeyRight:  {Type: IntentMove, Dx: 1},
			tcell.KeyUp:     {Type: IntentMove, Dy: -1},
			tcell.KeyDown:   {Type: IntentMove, Dy: 1},
			tcell.KeyEnter:  {Type: IntentDig},
		},
		Runes: map[rune]KeyEntry{
			'q': {Type: IntentQuit},
			'`': {Type: IntentToggleOverlay},
			'p': {Type: IntentTogglePause},
			'h': {Type: IntentMove, Dx: -1},
			'l': {Type: IntentMove, Dx: 1},
			'k': {Type: IntentMove, Dy: -1},
			'j': {Type: IntentMove, Dy: 1},
			'H': {Type: IntentMove, Dx: -constant.ChunkSize},
			'L': {Type: IntentMove, Dx: constant.ChunkSize},
			'K': {Type: IntentMove, Dy: -constant.ChunkSize},
			'J': {Type: IntentMove, Dy: constant.ChunkSize},
			' ': {Type: IntentDig},
			'd': {Type: IntentDig},
			'f': {Type: IntentPlace},
			'+': {Type: IntentZoomIn},
			'=': {Type: IntentZoomIn},
			'-': {Type: IntentZoomOut},
		},
	}

	// Hotbar: 1..9 select placeable tiles in table order
	slot := '1'
	for code := range constant.Tiles {
		def := constant.Tiles[code]
		if code == int(constant.TileAir) || !def.Breakable {
			continue
		}
		kt.Runes[slot] = KeyEntry{Type: IntentSelectTile, Tile: byte(code)}
		if slot++; slot > '9' {
			break
		}
	}
	return kt
}

// Clone returns a deep copy with independent maps
func (kt *KeyTable) Clone() *KeyTable {
	return &KeyTable{
		SpecialKeys: maps.Clone(kt.SpecialKeys),
		Runes:       maps.Clone(kt.Runes),
	}
}
