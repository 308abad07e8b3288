package debug

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"net"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/lixenwraith/sixty-below/constant"
	"github.com/lixenwraith/sixty-below/core"
	"github.com/lixenwraith/sixty-below/event"
	"github.com/lixenwraith/sixty-below/microtask"
	"github.com/lixenwraith/sixty-below/render"
	"github.com/lixenwraith/sixty-below/scheduler"
	"github.com/lixenwraith/sixty-below/status"
	"github.com/lixenwraith/sixty-below/world"
)

const (
	probeTimeout   = 2 * time.Second
	probeBacklog   = 8
	clientBacklog  = 64
	writeWait      = time.Second
	shutdownWait   = 2 * time.Second
	maxFrameClient = 8
)

// ErrBusy is reported when too many probes wait for the frame goroutine
var ErrBusy = errors.New("debug probe backlog full")

type probeKind int

const (
	probeTasks probeKind = iota
	probeScheduler
	probeMap
)

// probe asks the frame goroutine for state that is not safe to read elsewhere
type probe struct {
	kind  probeKind
	reply chan any
}

// TasksReport is the /debug/tasks body
type TasksReport struct {
	Queued int                   `json:"queued"`
	Order  string                `json:"order"`
	Stats  []microtask.TaskStats `json:"stats"`
	Text   string                `json:"text"`
}

// ServerDeps are the collaborators of the debug server
type ServerDeps struct {
	Addr      string
	Origins   []string
	Bus       *event.Bus
	Queue     *microtask.Queue
	Scheduler *scheduler.Scheduler
	Store     *world.Store
	Palette   *render.Palette
	Overlay   *Overlay // Optional
	Status    *status.Registry
	Log       logrus.FieldLogger
}

// Server exposes frame diagnostics over HTTP for local tooling
//
// Queue, scheduler and store belong to the frame goroutine. Handlers never touch
// them: they post a probe that the next FrameSample turns into a microtask, and
// wait for its reply.
type Server struct {
	addr      string
	queue     *microtask.Queue
	sched     *scheduler.Scheduler
	store     *world.Store
	palette   *render.Palette
	overlay   *Overlay
	reg       *status.Registry
	log       logrus.FieldLogger
	engine    *gin.Engine
	upgrader  websocket.Upgrader
	probes    chan probe
	jobs      [3]*microtask.Job
	dumper    *spew.ConfigState
	httpSrv   *http.Server
	listener  net.Listener
	started   atomic.Bool
	clientsMu sync.Mutex
	clients   map[*frameClient]struct{}

	statDropped *atomic.Int64
	statClients *atomic.Int64
}

type frameClient struct {
	conn *websocket.Conn
	send chan event.FrameSamplePayload
}

// NewServer builds the router and subscribes to frame samples; Start listens
func NewServer(d ServerDeps) (*Server, error) {
	if d.Bus == nil || d.Queue == nil || d.Scheduler == nil || d.Store == nil ||
		d.Palette == nil || d.Status == nil || d.Log == nil {
		return nil, errors.New("debug server: missing dependency")
	}
	if d.Addr == "" {
		return nil, errors.New("debug server: empty address")
	}

	s := &Server{
		addr:        d.Addr,
		queue:       d.Queue,
		sched:       d.Scheduler,
		store:       d.Store,
		palette:     d.Palette,
		overlay:     d.Overlay,
		reg:         d.Status,
		log:         d.Log.WithField("component", "debug"),
		probes:      make(chan probe, probeBacklog),
		clients:     make(map[*frameClient]struct{}),
		statDropped: d.Status.Ints.Get("debug.frames_dropped"),
		statClients: d.Status.Ints.Get("debug.frame_clients"),
		dumper: &spew.ConfigState{
			Indent:                  "  ",
			DisablePointerAddresses: true,
			DisableCapacities:       true,
			SortKeys:                true,
		},
	}
	s.jobs[probeTasks] = microtask.NewJob("debug_tasks", s.answerTasks)
	s.jobs[probeScheduler] = microtask.NewJob("debug_scheduler", s.answerScheduler)
	s.jobs[probeMap] = microtask.NewJob("world_map_snapshot", s.answerMap)

	s.upgrader = websocket.Upgrader{CheckOrigin: originChecker(d.Origins)}
	s.engine = s.routes(d.Origins)

	event.Subscribe(d.Bus, event.FrameSample, "debug_server", func(p *event.FrameSamplePayload) error {
		s.onFrame(p)
		return nil
	})
	return s, nil
}

// originChecker accepts same-origin and tool clients without an Origin header,
// plus any configured origin
func originChecker(origins []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || origin == "http://"+r.Host {
			return true
		}
		return slices.Contains(origins, origin)
	}
}

func (s *Server) routes(origins []string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, err any) {
		s.log.WithField("path", c.Request.URL.Path).Errorf("handler panic: %v", err)
		c.AbortWithStatus(http.StatusInternalServerError)
	}))
	r.Use(s.requestLogger())
	if len(origins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins: origins,
			AllowMethods: []string{http.MethodGet},
			MaxAge:       12 * time.Hour,
		}))
	}

	g := r.Group("/debug")
	g.GET("/stats", s.handleStats)
	g.GET("/tasks", s.handleTasks)
	g.GET("/scheduler", s.handleScheduler)
	g.GET("/map.png", s.handleMap)
	g.GET("/frames", s.handleFrames)
	g.GET("/events", s.handleEvents)
	g.GET("/events/:name", s.handleEvent)
	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"elapsed": time.Since(start),
		}).Debug("request")
	}
}

// Handler exposes the router, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Name implements service.Service
func (s *Server) Name() string { return "debug" }

// Dependencies implements service.Service
func (s *Server) Dependencies() []string { return nil }

// Init implements service.Service
func (s *Server) Init() error { return nil }

// Start binds the address and serves in the background
func (s *Server) Start() error {
	if !s.started.CompareAndSwap(false, true) {
		return errors.New("debug server already started")
	}
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.started.Store(false)
		return fmt.Errorf("debug server listen %s: %w", s.addr, err)
	}
	s.listener = ln
	s.httpSrv = &http.Server{Handler: s.engine, ReadHeaderTimeout: 5 * time.Second}

	core.Go(func() {
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("debug server stopped")
		}
	})
	s.log.WithField("addr", ln.Addr().String()).Info("debug server listening")
	return nil
}

// Addr returns the bound address, or the configured one before Start
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Stop shuts the HTTP server down and disconnects frame streams
func (s *Server) Stop() error {
	if !s.started.Load() || s.httpSrv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownWait)
	defer cancel()
	err := s.httpSrv.Shutdown(ctx)

	// Hijacked websocket connections are not tracked by Shutdown
	s.clientsMu.Lock()
	for c := range s.clients {
		c.conn.Close()
	}
	s.clientsMu.Unlock()
	return err
}

// onFrame runs on the frame goroutine: posts waiting probes and fans out the sample
func (s *Server) onFrame(p *event.FrameSamplePayload) {
drain:
	for {
		select {
		case pr := <-s.probes:
			prio, capacity := constant.PriorityDebugProbe, constant.CapacityDebugProbe
			if pr.kind == probeMap {
				prio, capacity = constant.PriorityWorldMapSnapshot, constant.CapacityWorldMapSnapshot
			}
			s.queue.Enqueue(s.jobs[pr.kind], prio, capacity, pr.reply)
		default:
			break drain
		}
	}

	s.clientsMu.Lock()
	for c := range s.clients {
		select {
		case c.send <- *p:
		default:
			s.statDropped.Add(1)
		}
	}
	s.clientsMu.Unlock()
}

func replyChan(args []any) (chan any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("probe: %d args", len(args))
	}
	ch, ok := args[0].(chan any)
	if !ok {
		return nil, fmt.Errorf("probe: arg %T", args[0])
	}
	return ch, nil
}

func (s *Server) answerTasks(args ...any) error {
	ch, err := replyChan(args)
	if err != nil {
		return err
	}
	ch <- TasksReport{
		Queued: s.queue.Len(),
		Order:  s.queue.Debug(),
		Stats:  s.queue.Stats().Snapshot(),
		Text:   s.queue.DebugStats(),
	}
	return nil
}

func (s *Server) answerScheduler(args ...any) error {
	ch, err := replyChan(args)
	if err != nil {
		return err
	}
	ch <- fmt.Sprintf("now=%v len=%d active=%d tombstones=%d\n%s",
		s.sched.Now(), s.sched.Len(), s.sched.Active(), s.sched.Tombstones(), s.dumper.Sdump(s.sched.Snapshot()))
	return nil
}

// answerMap copies the tile array; encoding happens on the handler goroutine
func (s *Server) answerMap(args ...any) error {
	ch, err := replyChan(args)
	if err != nil {
		return err
	}
	ch <- slices.Clone(s.store.Raw())
	return nil
}

// ask posts a probe and waits for the frame goroutine to answer it
func (s *Server) ask(ctx context.Context, kind probeKind) (any, error) {
	pr := probe{kind: kind, reply: make(chan any, 1)}
	select {
	case s.probes <- pr:
	default:
		return nil, ErrBusy
	}

	timer := time.NewTimer(probeTimeout)
	defer timer.Stop()
	select {
	case v := <-pr.reply:
		return v, nil
	case <-timer.C:
		return nil, context.DeadlineExceeded
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Server) probeError(c *gin.Context, err error) {
	code := http.StatusGatewayTimeout
	if errors.Is(err, ErrBusy) {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"error": err.Error()})
}

func (s *Server) handleStats(c *gin.Context) {
	body := gin.H{"status": s.reg.Snapshot()}
	if s.overlay != nil {
		if snap, ok := s.overlay.Latest(); ok {
			body["overlay"] = snap
		}
	}
	c.JSON(http.StatusOK, body)
}

// EventInfo describes one bus topic; Payload is the zero value of its payload struct
type EventInfo struct {
	Name    string `json:"name"`
	ID      int    `json:"id"`
	Payload any    `json:"payload,omitempty"`
}

func describeEvent(t event.Type) EventInfo {
	return EventInfo{Name: t.String(), ID: int(t), Payload: event.NewPayloadStruct(t)}
}

func (s *Server) handleEvents(c *gin.Context) {
	types := event.Types()
	out := make([]EventInfo, 0, len(types))
	for _, t := range types {
		out = append(out, describeEvent(t))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleEvent(c *gin.Context) {
	t, ok := event.LookupType(c.Param("name"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown event " + c.Param("name")})
		return
	}
	c.JSON(http.StatusOK, describeEvent(t))
}

func (s *Server) handleTasks(c *gin.Context) {
	v, err := s.ask(c.Request.Context(), probeTasks)
	if err != nil {
		s.probeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (s *Server) handleScheduler(c *gin.Context) {
	v, err := s.ask(c.Request.Context(), probeScheduler)
	if err != nil {
		s.probeError(c, err)
		return
	}
	c.String(http.StatusOK, "%s", v)
}

func (s *Server) handleMap(c *gin.Context) {
	v, err := s.ask(c.Request.Context(), probeMap)
	if err != nil {
		s.probeError(c, err)
		return
	}
	img := WorldImage(s.store.Layout(), s.palette, v.([]byte))
	c.Header("Content-Type", "image/png")
	c.Status(http.StatusOK)
	if err := png.Encode(c.Writer, img); err != nil {
		s.log.WithError(err).Warn("map encode failed")
	}
}

// WorldImage draws one pixel per tile with depth shading
func WorldImage(layout world.Layout, pal *render.Palette, tiles []byte) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, layout.Width, layout.Height))
	for i, code := range tiles {
		r, g, b := pal.RGB(code, i/layout.Width)
		p := i << 2
		img.Pix[p] = r
		img.Pix[p+1] = g
		img.Pix[p+2] = b
		img.Pix[p+3] = 0xFF
	}
	return img
}

func (s *Server) handleFrames(c *gin.Context) {
	s.clientsMu.Lock()
	full := len(s.clients) >= maxFrameClient
	s.clientsMu.Unlock()
	if full {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "too many frame clients"})
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.WithError(err).Debug("frame stream upgrade failed")
		return
	}
	client := &frameClient{conn: conn, send: make(chan event.FrameSamplePayload, clientBacklog)}

	s.clientsMu.Lock()
	s.clients[client] = struct{}{}
	s.statClients.Store(int64(len(s.clients)))
	s.clientsMu.Unlock()

	core.Go(func() { s.writeFrames(client) })

	// Reads only detect the close; clients send nothing
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.clientsMu.Lock()
	delete(s.clients, client)
	s.statClients.Store(int64(len(s.clients)))
	close(client.send)
	s.clientsMu.Unlock()
	conn.Close()
}

func (s *Server) writeFrames(c *frameClient) {
	for sample := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(sample); err != nil {
			c.conn.Close()
			for range c.send {
			}
			return
		}
	}
}
