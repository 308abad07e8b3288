package input

import (
	"testing"

	"github.com/gdamore/tcell/v2"

	"github.com/lixenwraith/sixty-below/constant"
)

func TestTranslateKeys(t *testing.T) {
	tr := NewTranslator(nil)
	tests := []struct {
		name   string
		ev     *tcell.EventKey
		want   IntentType
		dx, dy int
	}{
		{"ctrl-q", tcell.NewEventKey(tcell.KeyCtrlQ, 0, tcell.ModCtrl), IntentQuit, 0, 0},
		{"h", tcell.NewEventKey(tcell.KeyRune, 'h', tcell.ModNone), IntentMove, -1, 0},
		{"J", tcell.NewEventKey(tcell.KeyRune, 'J', tcell.ModNone), IntentMove, 0, constant.ChunkSize},
		{"arrow up", tcell.NewEventKey(tcell.KeyUp, 0, tcell.ModNone), IntentMove, 0, -1},
		{"space", tcell.NewEventKey(tcell.KeyRune, ' ', tcell.ModNone), IntentDig, 0, 0},
		{"f3", tcell.NewEventKey(tcell.KeyF3, 0, tcell.ModNone), IntentToggleOverlay, 0, 0},
		{"unbound", tcell.NewEventKey(tcell.KeyRune, 'z', tcell.ModNone), IntentNone, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tr.Translate(tt.ev)
			if got.Type != tt.want || got.Dx != tt.dx || got.Dy != tt.dy {
				t.Errorf("got %+v, want type %v dx %d dy %d", got, tt.want, tt.dx, tt.dy)
			}
		})
	}
}

func TestHotbarSkipsUnbreakable(t *testing.T) {
	kt := DefaultKeyTable()
	seen := 0
	for r := '1'; r <= '9'; r++ {
		e, ok := kt.Runes[r]
		if !ok {
			continue
		}
		seen++
		def := constant.Tile(e.Tile)
		if e.Tile == constant.TileAir || !def.Breakable {
			t.Errorf("slot %c bound to %s", r, def.Name)
		}
	}
	if seen == 0 {
		t.Error("no hotbar slots bound")
	}
	if kt.Runes['1'].Tile != constant.TileDirt {
		t.Errorf("slot 1 = %d, want dirt", kt.Runes['1'].Tile)
	}
}

func TestMouseEdgeTriggered(t *testing.T) {
	tr := NewTranslator(nil)

	first := tr.Translate(tcell.NewEventMouse(4, 2, tcell.Button1, tcell.ModNone))
	if first.Type != IntentDig || !first.Cell || first.X != 4 || first.Y != 2 {
		t.Fatalf("press = %+v, want dig at (4,2)", first)
	}
	if held := tr.Translate(tcell.NewEventMouse(5, 2, tcell.Button1, tcell.ModNone)); held.Type != IntentPointer {
		t.Errorf("drag = %v, want pointer", held.Type)
	}
	tr.Translate(tcell.NewEventMouse(5, 2, tcell.ButtonNone, tcell.ModNone))
	if again := tr.Translate(tcell.NewEventMouse(5, 2, tcell.Button1, tcell.ModNone)); again.Type != IntentDig {
		t.Errorf("second press = %v, want dig", again.Type)
	}
	if wheel := tr.Translate(tcell.NewEventMouse(0, 0, tcell.WheelUp, tcell.ModNone)); wheel.Type != IntentZoomIn {
		t.Errorf("wheel up = %v, want zoom in", wheel.Type)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	kt := DefaultKeyTable()
	c := kt.Clone()
	c.Runes['h'] = KeyEntry{Type: IntentQuit}
	if kt.Runes['h'].Type != IntentMove {
		t.Error("clone shares rune map")
	}
}
