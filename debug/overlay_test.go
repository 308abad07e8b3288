package debug

import (
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/lixenwraith/sixty-below/clock"
	"github.com/lixenwraith/sixty-below/constant"
	"github.com/lixenwraith/sixty-below/event"
	"github.com/lixenwraith/sixty-below/microtask"
	"github.com/lixenwraith/sixty-below/status"
)

func newOverlayFixture(t *testing.T) (*Overlay, *event.Bus, *microtask.Queue) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	bus := event.NewBus(logger)
	queue := microtask.NewQueue(clock.NewMockProvider(time.Unix(0, 0)), logger, status.NewRegistry())
	return NewOverlay(bus, queue, true), bus, queue
}

func sample(frame uint64, update, render, micro time.Duration, microLen, schedLen int) *event.FrameSamplePayload {
	return &event.FrameSamplePayload{
		Frame: frame, Update: update, Render: render, Micro: micro,
		MicroLen: microLen, SchedLen: schedLen,
	}
}

func TestOverlayRefreshEveryWindow(t *testing.T) {
	o, bus, queue := newOverlayFixture(t)

	for i := 1; i < constant.OverlaySampleFrames; i++ {
		bus.Emit(event.FrameSample, sample(uint64(i), time.Millisecond, 2*time.Millisecond, 0, i%3, 1))
	}
	if queue.Len() != 0 {
		t.Fatalf("refresh queued after %d frames", constant.OverlaySampleFrames-1)
	}

	bus.Emit(event.FrameSample, sample(64, time.Millisecond, 8*time.Millisecond, 640*time.Microsecond, 7, 4))
	if queue.Len() != 1 {
		t.Fatalf("queue len = %d, want 1 refresh", queue.Len())
	}
	if _, ok := o.Latest(); ok {
		t.Fatal("snapshot published before the refresh ran")
	}

	queue.Run(time.Hour)
	snap, ok := o.Latest()
	if !ok {
		t.Fatal("no snapshot after refresh")
	}

	want := Snapshot{
		Frame:     64,
		AvgUpdate: 1000,
		AvgRender: (63*2000 + 8000) >> 6,
		AvgMicro:  640 >> 6,
		MaxUpdate: 1000,
		MaxRender: 8000,
		MaxMicro:  640,
		MicroLen:  7,
		MicroMax:  7,
		SchedLen:  4,
		SchedMax:  4,
	}
	if snap != want {
		t.Errorf("snapshot = %+v\nwant %+v", snap, want)
	}

	// Window restarts from zero
	bus.Emit(event.FrameSample, sample(65, 0, 0, 0, 0, 0))
	if o.frames != constant.OverlaySampleFrames-1 || o.maxRender != 0 {
		t.Errorf("accumulators not reset: frames %d maxRender %d", o.frames, o.maxRender)
	}
}

func TestSnapshotLinesHighlight(t *testing.T) {
	lines := Snapshot{MaxUpdate: 5000, MaxRender: 5001}.Lines()
	if len(lines) != 5 {
		t.Fatalf("lines = %d, want 5", len(lines))
	}
	if lines[0].Hot {
		t.Error("5000µs highlighted, threshold is strictly above")
	}
	if !lines[1].Hot {
		t.Error("5001µs not highlighted")
	}
	if !strings.HasPrefix(lines[3].Text, "µTsk") || !strings.HasPrefix(lines[4].Text, "Tsk ") {
		t.Errorf("queue rows = %q / %q", lines[3].Text, lines[4].Text)
	}
}

func TestOverlayToggleAndDraw(t *testing.T) {
	o, bus, queue := newOverlayFixture(t)
	if o.Visible() {
		t.Error("visible before the first snapshot")
	}

	for i := 0; i < constant.OverlaySampleFrames; i++ {
		bus.Emit(event.FrameSample, sample(uint64(i), 0, 6*time.Millisecond, 0, 0, 0))
	}
	queue.Run(time.Hour)
	if !o.Visible() {
		t.Fatal("not visible after snapshot")
	}

	bus.Emit(event.ToggleOverlay, nil)
	if o.Visible() {
		t.Error("still visible after toggle")
	}
	bus.Emit(event.ToggleOverlay, nil)

	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		t.Fatal(err)
	}
	defer screen.Fini()
	screen.SetSize(60, 20)

	o.Draw(screen, nil)
	lines := o.shown.Lines()
	width := len([]rune(lines[0].Text))
	x0, y0 := 60-width-1, 20-len(lines)-1

	if r, _, _, _ := screen.GetContent(x0, y0); r != 'U' {
		t.Errorf("panel origin = %q, want U", r)
	}
	_, _, style, _ := screen.GetContent(x0, y0+1)
	if fg, _, _ := style.Decompose(); fg != tcell.ColorRed {
		t.Errorf("render row fg = %v, want red", fg)
	}
}
