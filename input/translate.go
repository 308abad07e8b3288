package input

import "github.com/gdamore/tcell/v2"

// Translator turns tcell events into intents
// Mouse buttons are edge-triggered: holding a button acts once; wheel notches always act
type Translator struct {
	table   *KeyTable
	buttons tcell.ButtonMask
}

// NewTranslator uses DefaultKeyTable when table is nil
func NewTranslator(table *KeyTable) *Translator {
	if table == nil {
		table = DefaultKeyTable()
	}
	return &Translator{table: table}
}

// Translate maps one event; unknown input yields IntentNone
func (t *Translator) Translate(ev tcell.Event) Intent {
	switch e := ev.(type) {
	case *tcell.EventKey:
		return t.key(e)
	case *tcell.EventMouse:
		return t.mouse(e)
	case *tcell.EventResize:
		w, h := e.Size()
		return Intent{Type: IntentResize, Width: w, Height: h}
	}
	return Intent{}
}

func fromEntry(e KeyEntry) Intent {
	return Intent{Type: e.Type, Dx: e.Dx, Dy: e.Dy, Tile: e.Tile, Count: 1}
}

func (t *Translator) key(e *tcell.EventKey) Intent {
	if e.Key() == tcell.KeyRune {
		if entry, ok := t.table.Runes[e.Rune()]; ok {
			return fromEntry(entry)
		}
		return Intent{}
	}
	if entry, ok := t.table.SpecialKeys[e.Key()]; ok {
		return fromEntry(entry)
	}
	return Intent{}
}

func (t *Translator) mouse(e *tcell.EventMouse) Intent {
	x, y := e.Position()
	held := e.Buttons() & (tcell.Button1 | tcell.Button2)
	pressed := held &^ t.buttons
	t.buttons = held

	in := Intent{Cell: true, X: x, Y: y, Count: 1}
	switch {
	case pressed&tcell.Button1 != 0:
		in.Type = IntentDig
	case pressed&tcell.Button2 != 0:
		in.Type = IntentPlace
	case e.Buttons()&tcell.WheelUp != 0:
		in.Type = IntentZoomIn
	case e.Buttons()&tcell.WheelDown != 0:
		in.Type = IntentZoomOut
	default:
		in.Type = IntentPointer
	}
	return in
}
