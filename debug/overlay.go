package debug

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/lixenwraith/sixty-below/constant"
	"github.com/lixenwraith/sixty-below/event"
	"github.com/lixenwraith/sixty-below/microtask"
	"github.com/lixenwraith/sixty-below/render"
)

// Enqueuer is the part of the microtask queue debug tooling posts work to
type Enqueuer interface {
	Enqueue(job *microtask.Job, priority, capacity int, args ...any)
}

// Snapshot is one overlay refresh: phase averages and maxima in µs over a sample window
type Snapshot struct {
	Frame     uint64 `json:"frame"`
	AvgUpdate int64  `json:"avg_update_us"`
	AvgRender int64  `json:"avg_render_us"`
	AvgMicro  int64  `json:"avg_micro_us"`
	MaxUpdate int64  `json:"max_update_us"`
	MaxRender int64  `json:"max_render_us"`
	MaxMicro  int64  `json:"max_micro_us"`
	MicroLen  int    `json:"micro_queue"`
	MicroMax  int    `json:"micro_queue_max"`
	SchedLen  int    `json:"scheduler_queue"`
	SchedMax  int    `json:"scheduler_queue_max"`
}

// Line is one overlay row; Hot marks a maximum over the highlight threshold
type Line struct {
	Text string
	Hot  bool
}

func hot(us int64) bool { return us > constant.OverlayHotMicros }

// Lines lays the snapshot out as overlay rows
func (s Snapshot) Lines() []Line {
	return []Line{
		{fmt.Sprintf("Updt: %5dµs  Max: %5dµs", s.AvgUpdate, s.MaxUpdate), hot(s.MaxUpdate)},
		{fmt.Sprintf("Rndr: %5dµs  Max: %5dµs", s.AvgRender, s.MaxRender), hot(s.MaxRender)},
		{fmt.Sprintf("Micr: %5dµs  Max: %5dµs", s.AvgMicro, s.MaxMicro), hot(s.MaxMicro)},
		{fmt.Sprintf("µTsk: %5d    Max: %5d", s.MicroLen, s.MicroMax), false},
		{fmt.Sprintf("Tsk : %5d    Max: %5d", s.SchedLen, s.SchedMax), false},
	}
}

// Overlay accumulates frame samples and refreshes a small panel every
// OverlaySampleFrames frames. The refresh itself runs as a low priority
// microtask so it only happens in frames with time to spare.
type Overlay struct {
	queue Enqueuer
	job   *microtask.Job

	// Accumulators, frame goroutine only
	update, render, micro          int64
	maxUpdate, maxRender, maxMicro int64
	microMax, schedMax             int
	frames                         int

	shown   Snapshot
	hasShot bool
	visible bool

	latest atomic.Pointer[Snapshot]
}

// NewOverlay subscribes to frame samples and overlay toggles
func NewOverlay(bus *event.Bus, queue Enqueuer, visible bool) *Overlay {
	o := &Overlay{queue: queue, visible: visible, frames: constant.OverlaySampleFrames}
	o.job = microtask.NewJob("render_debug_overlay", o.refresh)

	event.Subscribe(bus, event.FrameSample, "debug_overlay", func(p *event.FrameSamplePayload) error {
		o.AddSample(p)
		return nil
	})
	bus.On(event.ToggleOverlay, "debug_overlay", func(any) error {
		o.visible = !o.visible
		return nil
	})
	return o
}

func micros(d time.Duration) int64 { return d.Microseconds() }

// AddSample folds one frame into the window and posts a refresh when the window fills
func (o *Overlay) AddSample(p *event.FrameSamplePayload) {
	u, r, m := micros(p.Update), micros(p.Render), micros(p.Micro)
	o.update += u
	o.render += r
	o.micro += m
	o.maxUpdate = max(o.maxUpdate, u)
	o.maxRender = max(o.maxRender, r)
	o.maxMicro = max(o.maxMicro, m)
	o.microMax = max(o.microMax, p.MicroLen)
	o.schedMax = max(o.schedMax, p.SchedLen)

	o.frames--
	if o.frames > 0 {
		return
	}

	snap := Snapshot{
		Frame:     p.Frame,
		AvgUpdate: o.update >> constant.OverlaySampleShift,
		AvgRender: o.render >> constant.OverlaySampleShift,
		AvgMicro:  o.micro >> constant.OverlaySampleShift,
		MaxUpdate: o.maxUpdate,
		MaxRender: o.maxRender,
		MaxMicro:  o.maxMicro,
		MicroLen:  p.MicroLen,
		MicroMax:  o.microMax,
		SchedLen:  p.SchedLen,
		SchedMax:  o.schedMax,
	}
	o.reset()
	o.queue.Enqueue(o.job, constant.PriorityRenderDebugOverlay, constant.CapacityRenderDebugOverlay, snap)
}

func (o *Overlay) reset() {
	o.update, o.render, o.micro = 0, 0, 0
	o.maxUpdate, o.maxRender, o.maxMicro = 0, 0, 0
	o.microMax, o.schedMax = 0, 0
	o.frames = constant.OverlaySampleFrames
}

// refresh is the render_debug_overlay microtask
func (o *Overlay) refresh(args ...any) error {
	if len(args) != 1 {
		return fmt.Errorf("overlay refresh: %d args", len(args))
	}
	snap, ok := args[0].(Snapshot)
	if !ok {
		return fmt.Errorf("overlay refresh: arg %T", args[0])
	}
	o.shown = snap
	o.hasShot = true
	o.latest.Store(&snap)
	return nil
}

// Latest returns the last published snapshot; safe from any goroutine
func (o *Overlay) Latest() (Snapshot, bool) {
	if p := o.latest.Load(); p != nil {
		return *p, true
	}
	return Snapshot{}, false
}

// Visible implements render.VisibilityToggle
func (o *Overlay) Visible() bool {
	return o.visible && o.hasShot
}

var (
	overlayStyle = tcell.StyleDefault.Foreground(tcell.NewHexColor(0xFFB000)).Background(tcell.ColorBlack)
	hotStyle     = overlayStyle.Foreground(tcell.ColorRed)
)

// Draw implements render.Layer: a panel in the bottom-right corner
func (o *Overlay) Draw(screen tcell.Screen, _ *render.Camera) {
	lines := o.shown.Lines()
	w, h := screen.Size()

	width := 0
	for _, l := range lines {
		width = max(width, len([]rune(l.Text)))
	}
	x0 := max(w-width-1, 0)
	y0 := max(h-len(lines)-1, 0)

	for i, l := range lines {
		style := overlayStyle
		if l.Hot {
			style = hotStyle
		}
		x := x0
		for _, r := range l.Text {
			screen.SetContent(x, y0+i, r, nil, style)
			x++
		}
	}
}
