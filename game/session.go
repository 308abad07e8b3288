package game

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/sirupsen/logrus"

	"github.com/lixenwraith/sixty-below/constant"
	"github.com/lixenwraith/sixty-below/event"
	"github.com/lixenwraith/sixty-below/input"
	"github.com/lixenwraith/sixty-below/render"
	"github.com/lixenwraith/sixty-below/status"
	"github.com/lixenwraith/sixty-below/world"
)

// GameStateCursor is the gamestate key holding the saved cursor
const GameStateCursor = "cursor"

// Cursor is a tile position, persisted as gamestate
type Cursor struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// ActionKind is a queued world edit
type ActionKind uint8

const (
	ActionDig ActionKind = iota + 1
	ActionPlace
)

// Action is one edit waiting for the update phase
type Action struct {
	Kind ActionKind
	X, Y int
	Tile byte
}

// Pauser is the part of the frame loop the pause key drives
type Pauser interface {
	Pause()
	Resume()
	Paused() bool
}

// SessionDeps are the collaborators of a Session
// Quit, Resize and Pauser are optional
type SessionDeps struct {
	Store  *world.Store
	Camera *render.Camera
	Bus    *event.Bus
	Keys   *input.KeyTable
	Log    logrus.FieldLogger
	Status *status.Registry
	Pauser Pauser
	Quit   func()
	Resize func(cols, rows int)
}

// Session is the player side of the world: a cursor, a selected tile and
// the dig/place actions aimed at the cursor
//
// Terminal events arrive from the input goroutine through Post. Poll
// translates them every frame, paused or not; Update applies queued edits
// with SetTile so the store's dirty tracking sees every change.
type Session struct {
	store  *world.Store
	camera *render.Camera
	bus    *event.Bus
	tr     *input.Translator
	log    logrus.FieldLogger
	pauser Pauser
	quit   func()
	resize func(cols, rows int)

	inbox chan tcell.Event

	cursor   Cursor
	selected byte
	actions  []Action

	statDug      *atomic.Int64
	statPlaced   *atomic.Int64
	statRejected *atomic.Int64
	statDropped  *atomic.Int64
}

// NewSession places the cursor on the surface at the world's center column
func NewSession(d SessionDeps) (*Session, error) {
	if d.Store == nil || d.Camera == nil || d.Bus == nil || d.Log == nil || d.Status == nil {
		return nil, errors.New("session: missing dependency")
	}
	s := &Session{
		store:        d.Store,
		camera:       d.Camera,
		bus:          d.Bus,
		tr:           input.NewTranslator(d.Keys),
		log:          d.Log.WithField("component", "session"),
		pauser:       d.Pauser,
		quit:         d.Quit,
		resize:       d.Resize,
		inbox:        make(chan tcell.Event, constant.InputBacklog),
		selected:     constant.TileDirt,
		statDug:      d.Status.Ints.Get("game.dug"),
		statPlaced:   d.Status.Ints.Get("game.placed"),
		statRejected: d.Status.Ints.Get("game.rejected"),
		statDropped:  d.Status.Ints.Get("game.input_dropped"),
	}
	layout := d.Store.Layout()
	s.SetCursor(layout.Width/2, s.surface(layout.Width/2))
	return s, nil
}

// surface returns the row above the first non-air tile in column x
func (s *Session) surface(x int) int {
	h := s.store.Layout().Height
	for y := 0; y < h; y++ {
		if s.store.Tile(x, y) != constant.TileAir {
			return max(y-1, 0)
		}
	}
	return h / 2
}

// Cursor returns the cursor tile
func (s *Session) Cursor() Cursor { return s.cursor }

// Selected returns the tile code placed by ActionPlace
func (s *Session) Selected() byte { return s.selected }

// SetCursor moves the cursor, clamped to the world, and recenters the camera
func (s *Session) SetCursor(x, y int) {
	l := s.store.Layout()
	s.cursor = Cursor{X: min(max(x, 0), l.Width-1), Y: min(max(y, 0), l.Height-1)}
	s.camera.CenterOn(s.cursor.X, s.cursor.Y)
}

// Post hands a terminal event to the frame goroutine; safe from any goroutine
// Returns false when the backlog is full and the event was dropped
func (s *Session) Post(ev tcell.Event) bool {
	select {
	case s.inbox <- ev:
		return true
	default:
		s.statDropped.Add(1)
		return false
	}
}

// Queue adds an edit for the next update
// Returns false when the backlog is full and the edit was dropped
func (s *Session) Queue(a Action) bool {
	if len(s.actions) >= constant.SessionActionBacklog {
		s.statDropped.Add(1)
		return false
	}
	s.actions = append(s.actions, a)
	return true
}

// Pending returns the number of queued edits
func (s *Session) Pending() int { return len(s.actions) }

// Poll translates buffered events; runs on the frame goroutine every frame
func (s *Session) Poll() {
	for {
		select {
		case ev := <-s.inbox:
			s.Handle(s.tr.Translate(ev))
		default:
			return
		}
	}
}

// Handle applies one intent
func (s *Session) Handle(in input.Intent) {
	if in.Cell {
		wx, wy := s.camera.ScreenToWorld(in.X, in.Y)
		l := s.store.Layout()
		if l.InBounds(wx, wy) {
			s.cursor = Cursor{X: wx, Y: wy}
		}
	}

	switch in.Type {
	case input.IntentQuit:
		s.log.Info("quit requested")
		if s.quit != nil {
			s.quit()
		}
	case input.IntentResize:
		if s.resize != nil {
			s.resize(in.Width, in.Height)
		}
	case input.IntentToggleOverlay:
		s.bus.Emit(event.ToggleOverlay, nil)
	case input.IntentTogglePause:
		if s.pauser == nil {
			return
		}
		if s.pauser.Paused() {
			s.pauser.Resume()
		} else {
			s.pauser.Pause()
		}
	case input.IntentMove:
		l := s.store.Layout()
		s.cursor.X = min(max(s.cursor.X+in.Dx, 0), l.Width-1)
		s.cursor.Y = min(max(s.cursor.Y+in.Dy, 0), l.Height-1)
	case input.IntentDig:
		s.Queue(Action{Kind: ActionDig, X: s.cursor.X, Y: s.cursor.Y})
	case input.IntentPlace:
		s.Queue(Action{Kind: ActionPlace, X: s.cursor.X, Y: s.cursor.Y, Tile: s.selected})
	case input.IntentSelectTile:
		s.selected = in.Tile
	case input.IntentZoomIn:
		s.bus.Emit(event.SetZoom, &event.SetZoomPayload{Zoom: s.camera.Zoom() - 1})
	case input.IntentZoomOut:
		s.bus.Emit(event.SetZoom, &event.SetZoomPayload{Zoom: s.camera.Zoom() + 1})
	}
}

// Update applies queued edits and eases the camera toward the cursor
func (s *Session) Update(time.Duration) {
	n := min(len(s.actions), constant.SessionMaxActions)
	for _, a := range s.actions[:n] {
		s.apply(a)
	}
	s.actions = append(s.actions[:0], s.actions[n:]...)

	s.camera.Follow(s.cursor.X, s.cursor.Y, constant.CameraFollowSpeed)
}

// apply performs one edit if the target tile allows it
// Dig needs a breakable tile; place needs a tile nothing solid occupies
func (s *Session) apply(a Action) {
	if !s.store.Layout().InBounds(a.X, a.Y) {
		s.statRejected.Add(1)
		s.log.WithFields(logrus.Fields{"x": a.X, "y": a.Y}).Debug("edit out of bounds")
		return
	}
	old := s.store.Tile(a.X, a.Y)
	def := constant.Tile(old)

	var code byte
	switch a.Kind {
	case ActionDig:
		if old == constant.TileAir || !def.Breakable {
			s.statRejected.Add(1)
			return
		}
		code = constant.TileAir
		s.statDug.Add(1)
	case ActionPlace:
		if a.Tile == constant.TileAir || a.Tile == old ||
			def.Collision&(constant.CollisionSolid|constant.CollisionPlatform) != 0 {
			s.statRejected.Add(1)
			return
		}
		code = a.Tile
		s.statPlaced.Add(1)
	default:
		return
	}

	s.store.SetTile(a.X, a.Y, code)
	s.bus.Emit(event.TileChanged, &event.TileChangedPayload{
		X:     a.X,
		Y:     a.Y,
		Chunk: s.store.Layout().ChunkOf(a.X, a.Y),
		Old:   old,
		New:   code,
	})
}

// Draw implements render.Layer: the cursor cell in reverse video
func (s *Session) Draw(screen tcell.Screen, cam *render.Camera) {
	ox, oy := cam.Origin()
	z := cam.Zoom()
	sx, sy := (s.cursor.X-ox)/z, (s.cursor.Y-oy)/z
	cols, rows := cam.Size()
	if s.cursor.X < ox || s.cursor.Y < oy || sx >= cols || sy >= rows {
		return
	}
	r, _, style, _ := screen.GetContent(sx, sy)
	screen.SetContent(sx, sy, r, nil, style.Reverse(true))
}
