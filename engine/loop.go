// @focus: #loop { frame }
package engine

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lixenwraith/sixty-below/clock"
	"github.com/lixenwraith/sixty-below/event"
	"github.com/lixenwraith/sixty-below/microtask"
	"github.com/lixenwraith/sixty-below/scheduler"
	"github.com/lixenwraith/sixty-below/status"
)

// Simulation advances game state by one clamped frame delta
// Implementations isolate their own errors; the loop never sees them
type Simulation interface {
	Update(dt time.Duration)
}

// SimulationFunc adapts a function to Simulation
type SimulationFunc func(dt time.Duration)

func (f SimulationFunc) Update(dt time.Duration) { f(dt) }

// Renderer draws the current state once per frame
type Renderer interface {
	Render()
}

// RendererFunc adapts a function to Renderer
type RendererFunc func()

func (f RendererFunc) Render() { f() }

// Simulations runs several simulations in order as one update phase
type Simulations []Simulation

func (s Simulations) Update(dt time.Duration) {
	for _, sim := range s {
		sim.Update(dt)
	}
}

// Deps are the collaborators a FrameLoop drives; all are required
type Deps struct {
	Clock      clock.Provider
	Logical    *clock.Logical
	Pump       *FramePump
	Queue      *microtask.Queue
	Scheduler  *scheduler.Scheduler
	Bus        *event.Bus
	Simulation Simulation
	Renderer   Renderer
	Log        logrus.FieldLogger
	Status     *status.Registry
}

func (d Deps) validate() error {
	switch {
	case d.Clock == nil:
		return errors.New("frame loop: nil clock")
	case d.Logical == nil:
		return errors.New("frame loop: nil logical clock")
	case d.Pump == nil:
		return errors.New("frame loop: nil pump")
	case d.Queue == nil:
		return errors.New("frame loop: nil microtask queue")
	case d.Scheduler == nil:
		return errors.New("frame loop: nil scheduler")
	case d.Bus == nil:
		return errors.New("frame loop: nil event bus")
	case d.Simulation == nil:
		return errors.New("frame loop: nil simulation")
	case d.Renderer == nil:
		return errors.New("frame loop: nil renderer")
	case d.Log == nil:
		return errors.New("frame loop: nil logger")
	case d.Status == nil:
		return errors.New("frame loop: nil status registry")
	}
	return nil
}

// FrameLoop divides each display frame between update, render and background work
//
// Per frame: clamp dt, advance the logical clock, run the simulation and promote
// due scheduler tasks (update phase), render, then give the microtask queue
// whatever is left of the total budget. The loop re-arms the pump before doing
// any of that, so a frame that panics still gets a successor.
type FrameLoop struct {
	deps   Deps
	budget Budget
	log    logrus.FieldLogger

	running atomic.Bool
	paused  atomic.Bool

	last  time.Time
	frame uint64

	statFrames         *atomic.Int64
	statUpdateUs       *atomic.Int64
	statRenderUs       *atomic.Int64
	statMicroUs        *atomic.Int64
	statMicroQueue     *atomic.Int64
	statSchedQueue     *atomic.Int64
	statUpdateOverruns *atomic.Int64
	statRenderOverruns *atomic.Int64
	statPaused         *atomic.Bool
	statBudgetUsed     *status.AtomicFloat
	statBudgetPeak     *status.AtomicFloat
}

// NewFrameLoop validates deps and budget and returns a stopped loop
func NewFrameLoop(deps Deps, budget Budget) (*FrameLoop, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if err := budget.Validate(); err != nil {
		return nil, err
	}
	reg := deps.Status
	return &FrameLoop{
		deps:               deps,
		budget:             budget,
		log:                deps.Log.WithField("component", "loop"),
		statFrames:         reg.Ints.Get("frame.count"),
		statUpdateUs:       reg.Ints.Get("frame.update_us"),
		statRenderUs:       reg.Ints.Get("frame.render_us"),
		statMicroUs:        reg.Ints.Get("frame.micro_us"),
		statMicroQueue:     reg.Ints.Get("microtask.queue"),
		statSchedQueue:     reg.Ints.Get("scheduler.queue"),
		statUpdateOverruns: reg.Ints.Get("frame.update_overruns"),
		statRenderOverruns: reg.Ints.Get("frame.render_overruns"),
		statPaused:         reg.Bools.Get("frame.paused"),
		statBudgetUsed:     reg.Floats.Get("frame.budget_used"),
		statBudgetPeak:     reg.Floats.Get("frame.budget_peak"),
	}, nil
}

// Start arms the first frame; false if already running
func (l *FrameLoop) Start() bool {
	if !l.running.CompareAndSwap(false, true) {
		return false
	}
	l.last = l.deps.Clock.Now()
	l.deps.Pump.Request(l.tick)
	l.log.Info("started")
	return true
}

// Stop halts the loop; an already armed frame exits without doing work
func (l *FrameLoop) Stop() {
	if l.running.CompareAndSwap(true, false) {
		l.deps.Pump.Cancel()
		l.log.Info("stopped")
	}
}

// Running reports whether the loop is started
func (l *FrameLoop) Running() bool {
	return l.running.Load()
}

// Pause freezes logical time and the simulation; render and background work continue
func (l *FrameLoop) Pause() {
	if l.paused.CompareAndSwap(false, true) {
		l.deps.Logical.Pause()
		l.statPaused.Store(true)
	}
}

// Resume undoes Pause
func (l *FrameLoop) Resume() {
	if l.paused.CompareAndSwap(true, false) {
		l.deps.Logical.Resume()
		l.statPaused.Store(false)
	}
}

// Paused reports whether logical time is frozen
func (l *FrameLoop) Paused() bool {
	return l.paused.Load()
}

func (l *FrameLoop) tick(now time.Time) {
	if !l.running.Load() {
		return
	}
	l.deps.Pump.Request(l.tick)
	l.Frame(now)
}

// Frame runs one full frame for display time now and returns its sample
func (l *FrameLoop) Frame(now time.Time) event.FrameSamplePayload {
	d := l.deps
	dt := ClampDelta(now.Sub(l.last))
	l.last = now
	l.frame++
	paused := l.paused.Load()

	start := d.Clock.Now()
	d.Logical.Advance(dt)
	if !paused {
		d.Simulation.Update(dt)
		d.Scheduler.Update(d.Logical.Now())
	}
	afterUpdate := d.Clock.Now()
	d.Renderer.Render()
	afterRender := d.Clock.Now()

	updateCost := afterUpdate.Sub(start)
	renderCost := afterRender.Sub(afterUpdate)

	var microCost time.Duration
	executed := 0
	if remaining := l.budget.Total() - updateCost - renderCost; remaining > 0 {
		executed = d.Queue.Run(remaining)
		microCost = d.Clock.Now().Sub(afterRender)
	}

	l.checkOverruns(updateCost, renderCost)

	sample := event.FrameSamplePayload{
		Frame:    l.frame,
		Update:   updateCost,
		Render:   renderCost,
		Micro:    microCost,
		Executed: executed,
		MicroLen: d.Queue.Len(),
		SchedLen: d.Scheduler.Len(),
		Delta:    dt,
		Paused:   paused,
	}
	l.publish(&sample)
	return sample
}

func (l *FrameLoop) checkOverruns(update, render time.Duration) {
	if update > l.budget.Update {
		l.statUpdateOverruns.Add(1)
		l.log.WithFields(logrus.Fields{
			"frame":   l.frame,
			"elapsed": update,
			"budget":  l.budget.Update,
		}).Warn("update phase over budget")
	}
	if render > l.budget.Render {
		l.statRenderOverruns.Add(1)
		l.log.WithFields(logrus.Fields{
			"frame":   l.frame,
			"elapsed": render,
			"budget":  l.budget.Render,
		}).Warn("render phase over budget")
	}
}

func (l *FrameLoop) publish(s *event.FrameSamplePayload) {
	l.statFrames.Store(int64(s.Frame))
	l.statUpdateUs.Store(s.Update.Microseconds())
	l.statRenderUs.Store(s.Render.Microseconds())
	l.statMicroUs.Store(s.Micro.Microseconds())
	l.statMicroQueue.Store(int64(s.MicroLen))
	l.statSchedQueue.Store(int64(s.SchedLen))

	// Fraction of the whole frame budget spent; above 1 means the frame ran long
	used := float64(s.Update+s.Render+s.Micro) / float64(l.budget.Total())
	l.statBudgetUsed.Set(used)
	l.statBudgetPeak.Max(used)

	l.deps.Bus.Emit(event.FrameSample, s)
}
