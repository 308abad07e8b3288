package render

import (
	"errors"
	"sync/atomic"

	"github.com/gdamore/tcell/v2"
	"github.com/sirupsen/logrus"

	"github.com/lixenwraith/sixty-below/constant"
	"github.com/lixenwraith/sixty-below/event"
	"github.com/lixenwraith/sixty-below/microtask"
	"github.com/lixenwraith/sixty-below/status"
	"github.com/lixenwraith/sixty-below/world"
)

// Layer draws on top of the world after chunks are blitted
type Layer interface {
	Draw(screen tcell.Screen, cam *Camera)
}

// VisibilityToggle is optionally implemented by layers that can be hidden
type VisibilityToggle interface {
	Visible() bool
}

// LayerFunc adapts a function to Layer
type LayerFunc func(screen tcell.Screen, cam *Camera)

// Draw implements Layer
func (f LayerFunc) Draw(screen tcell.Screen, cam *Camera) { f(screen, cam) }

type layerEntry struct {
	layer    Layer
	priority int
}

// Enqueuer is the part of the microtask queue the renderer schedules image rebuilds on
type Enqueuer interface {
	EnqueueOnce(job *microtask.Job, priority, capacity int, args ...any)
}

// RendererDeps are the collaborators of a WorldRenderer
type RendererDeps struct {
	Screen  tcell.Screen
	Store   *world.Store
	Camera  *Camera
	Palette *Palette
	Cache   *ChunkCache
	Queue   Enqueuer
	Bus     *event.Bus
	Log     logrus.FieldLogger
	Status  *status.Registry
}

// WorldRenderer draws the visible chunks from cached images
//
// Render-dirty chunks are invalidated and collected into a pending set; one
// chunk_images microtask rebuilds a few of them per run. A chunk on screen with
// no usable image is drawn tile by tile from the store for that frame.
type WorldRenderer struct {
	screen  tcell.Screen
	store   *world.Store
	camera  *Camera
	palette *Palette
	cache   *ChunkCache
	queue   Enqueuer
	bus     *event.Bus
	log     logrus.FieldLogger
	job     *microtask.Job

	layers []layerEntry

	pending     world.ChunkSet
	seenVersion uint64

	statDirect  *atomic.Int64
	statRebuilt *atomic.Int64
	statPending *atomic.Int64
}

// NewWorldRenderer wires a renderer; Init must run before the first frame
func NewWorldRenderer(d RendererDeps) (*WorldRenderer, error) {
	if d.Screen == nil || d.Store == nil || d.Camera == nil || d.Palette == nil ||
		d.Cache == nil || d.Queue == nil || d.Bus == nil || d.Log == nil || d.Status == nil {
		return nil, errors.New("world renderer: missing dependency")
	}
	r := &WorldRenderer{
		screen:      d.Screen,
		store:       d.Store,
		camera:      d.Camera,
		palette:     d.Palette,
		cache:       d.Cache,
		queue:       d.Queue,
		bus:         d.Bus,
		log:         d.Log.WithField("component", "render"),
		pending:     make(world.ChunkSet),
		statDirect:  d.Status.Ints.Get("render.direct_chunks"),
		statRebuilt: d.Status.Ints.Get("render.rebuilt_chunks"),
		statPending: d.Status.Ints.Get("render.pending_chunks"),
	}
	r.job = microtask.NewJob("chunk_images", r.rebuild)

	event.Subscribe(d.Bus, event.SetZoom, "world_renderer", func(p *event.SetZoomPayload) error {
		r.camera.SetZoom(p.Zoom)
		return nil
	})
	return r, nil
}

// Register adds a layer; lower priority draws first, ties keep registration order
func (r *WorldRenderer) Register(l Layer, priority int) {
	entry := layerEntry{layer: l, priority: priority}
	pos := len(r.layers)
	for i, e := range r.layers {
		if priority < e.priority {
			pos = i
			break
		}
	}
	r.layers = append(r.layers, layerEntry{})
	copy(r.layers[pos+1:], r.layers[pos:])
	r.layers[pos] = entry
}

// Camera returns the viewport
func (r *WorldRenderer) Camera() *Camera {
	return r.camera
}

// Init resets the cache and builds the displayed chunks synchronously
// so the first frame has images; preload chunks are queued
func (r *WorldRenderer) Init() {
	r.cache.Clear()
	clear(r.pending)
	r.store.ConsumeRenderDirty()

	display := r.camera.DisplayChunks()
	for _, idx := range display {
		r.cache.Put(BuildChunkImage(r.store, r.palette, idx))
	}
	r.seenVersion = r.camera.Version()
	r.queueMissing(r.camera.PreloadChunks())
	r.log.WithField("chunks", len(display)).Info("chunk images pre-warmed")
}

// Resize follows a terminal resize
func (r *WorldRenderer) Resize(cols, rows int) {
	r.camera.Resize(cols, rows)
	r.screen.Sync()
}

// Pending returns how many chunks wait for a rebuild
func (r *WorldRenderer) Pending() int {
	return len(r.pending)
}

func (r *WorldRenderer) queueMissing(indices []int) {
	for _, idx := range indices {
		if _, ok := r.cache.Get(idx); !ok {
			r.pending[idx] = struct{}{}
		}
	}
}

// isTracked reports whether a chunk is displayed or preloaded
func (r *WorldRenderer) isTracked(idx int) bool {
	for _, list := range [][]int{r.camera.DisplayChunks(), r.camera.PreloadChunks()} {
		for _, v := range list {
			if v == idx {
				return true
			}
		}
	}
	return false
}

// Render draws one frame; runs in the render phase
func (r *WorldRenderer) Render() {
	if dirty := r.store.ConsumeRenderDirty(); dirty != nil {
		for idx := range dirty {
			r.cache.Invalidate(idx)
			if r.isTracked(idx) {
				r.pending[idx] = struct{}{}
			}
		}
	}
	if v := r.camera.Version(); v != r.seenVersion {
		r.seenVersion = v
		r.queueMissing(r.camera.DisplayChunks())
		r.queueMissing(r.camera.PreloadChunks())
	}

	r.screen.Clear()
	for _, idx := range r.camera.DisplayChunks() {
		if img, ok := r.cache.Get(idx); ok {
			r.blitImage(img)
			continue
		}
		r.drawDirect(idx)
		r.pending[idx] = struct{}{}
		r.statDirect.Add(1)
	}

	for _, e := range r.layers {
		if v, ok := e.layer.(VisibilityToggle); ok && !v.Visible() {
			continue
		}
		e.layer.Draw(r.screen, r.camera)
	}
	r.screen.Show()

	r.statPending.Store(int64(len(r.pending)))
	if len(r.pending) > 0 {
		r.queue.EnqueueOnce(r.job, constant.PriorityChunkImages, constant.CapacityChunkImages)
	}
}

// blitImage copies the visible part of a chunk image to the screen
func (r *WorldRenderer) blitImage(img *ChunkImage) {
	ox, oy := r.store.Layout().ChunkOrigin(img.Index)
	for i := range img.Cells {
		sx, sy, ok := r.camera.WorldToScreen(ox+i&constant.ChunkMask, oy+i>>constant.ChunkShift)
		if !ok {
			continue
		}
		c := &img.Cells[i]
		r.screen.SetContent(sx, sy, c.Glyph, nil, c.Style)
	}
}

// drawDirect draws a chunk straight from tile data
func (r *WorldRenderer) drawDirect(idx int) {
	ox, oy := r.store.Layout().ChunkOrigin(idx)
	for dy := 0; dy < constant.ChunkSize; dy++ {
		for dx := 0; dx < constant.ChunkSize; dx++ {
			wx, wy := ox+dx, oy+dy
			sx, sy, ok := r.camera.WorldToScreen(wx, wy)
			if !ok {
				continue
			}
			code := r.store.Tile(wx, wy)
			r.screen.SetContent(sx, sy, r.palette.Glyph(code), nil, r.palette.Style(code, wy))
		}
	}
}

// rebuild is the chunk_images microtask: displayed chunks first, then preload,
// at most ChunkImagesPerTask per run
func (r *WorldRenderer) rebuild(...any) error {
	rebuilt := 0
	for _, list := range [][]int{r.camera.DisplayChunks(), r.camera.PreloadChunks()} {
		for _, idx := range list {
			if rebuilt == constant.ChunkImagesPerTask {
				break
			}
			if !r.pending.Has(idx) {
				continue
			}
			delete(r.pending, idx)
			r.cache.Put(BuildChunkImage(r.store, r.palette, idx))
			rebuilt++
		}
	}

	// Whatever is left scrolled out of view since it was queued
	if rebuilt < constant.ChunkImagesPerTask {
		for idx := range r.pending {
			if !r.isTracked(idx) {
				delete(r.pending, idx)
			}
		}
	}

	r.statRebuilt.Add(int64(rebuilt))
	r.bus.Emit(event.ChunkImagesRebuilt, &event.ChunkImagesRebuiltPayload{Rebuilt: rebuilt, Pending: len(r.pending)})
	return nil
}
