package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/sirupsen/logrus"

	"github.com/lixenwraith/sixty-below/audio"
	"github.com/lixenwraith/sixty-below/clock"
	"github.com/lixenwraith/sixty-below/config"
	"github.com/lixenwraith/sixty-below/constant"
	"github.com/lixenwraith/sixty-below/core"
	"github.com/lixenwraith/sixty-below/debug"
	"github.com/lixenwraith/sixty-below/engine"
	"github.com/lixenwraith/sixty-below/event"
	"github.com/lixenwraith/sixty-below/game"
	"github.com/lixenwraith/sixty-below/microtask"
	"github.com/lixenwraith/sixty-below/persistence"
	"github.com/lixenwraith/sixty-below/render"
	"github.com/lixenwraith/sixty-below/scheduler"
	"github.com/lixenwraith/sixty-below/service"
	"github.com/lixenwraith/sixty-below/status"
	"github.com/lixenwraith/sixty-below/world"
	"github.com/lixenwraith/sixty-below/worldgen"
)

// Layer priorities: lower draws first
const (
	layerCursor  = 10
	layerOverlay = 100
)

var (
	configFlag = flag.String("config", "", "Config file (toml, yaml or json)")
	envFlag    = flag.String("env", ".env", "Env file with SIXTYBELOW_* overrides")
	seedFlag   = flag.Int64("seed", 0, "World seed for a new world, 0 picks one")
	resetFlag  = flag.Bool("new-world", false, "Erase the save file and generate a new world")
)

func main() {
	// Terminal must be restored even if the game crashes
	defer func() {
		if r := recover(); r != nil {
			core.HandleCrash(r)
		}
	}()

	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "sixty-below: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(*configFlag, *envFlag)
	if err != nil {
		return err
	}
	if *seedFlag != 0 {
		cfg.World.Seed = *seedFlag
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, logCloser, err := core.SetupLogging(cfg.Debug.Enabled, cfg.Log)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	layout, err := world.NewLayoutForSize(cfg.World.Width, cfg.World.Height)
	if err != nil {
		return err
	}
	store := world.NewStore(layout)

	repo, err := persistence.OpenBolt(cfg.Save.Path, logger)
	if err != nil {
		return err
	}
	defer repo.Close()

	if *resetFlag {
		logger.WithField("path", cfg.Save.Path).Warn("erasing save for a new world")
		if err := repo.ClearAll(); err != nil {
			return err
		}
	}

	seed := cfg.World.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	info, err := persistence.OpenWorld(repo, store, seed, worldgen.Generate, logger)
	if errors.Is(err, persistence.ErrWorldMismatch) {
		return fmt.Errorf("%w (run with -new-world to replace %s)", err, cfg.Save.Path)
	}
	if err != nil {
		return err
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("terminal: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("terminal: %w", err)
	}
	core.RegisterFinalizer(screen.Fini)
	defer screen.Fini()
	screen.EnableMouse()
	screen.HideCursor()

	reg := status.NewRegistry()
	bus := event.NewBus(logger)
	clk := clock.NewMonotonicProvider()
	queue := microtask.NewQueue(clk, logger, reg)
	sched := scheduler.New(queue, logger, reg)

	saves, err := persistence.NewSaveManager(persistence.SaveDeps{
		Store:     store,
		Scheduler: sched,
		Repo:      repo,
		Bus:       bus,
		Log:       logger,
		Status:    reg,
		Interval:  time.Duration(cfg.Save.IntervalMs) * time.Millisecond,
	})
	if err != nil {
		return err
	}

	// Run ids: the seed persists through the save batch whenever it rolls over
	ids := persistence.NewIDGenerator(func(seed string) {
		if err := saves.QueueGameState(persistence.GameStateIDSeed, seed); err != nil {
			logger.WithError(err).Warn("id seed not queued")
		}
	})
	var lastSeed string
	if _, err := repo.GameState(persistence.GameStateIDSeed, &lastSeed); err != nil {
		return err
	}
	ids.Init(lastSeed)
	log := logger.WithFields(logrus.Fields{"run": ids.Next(), "world": info.ID})

	palette, err := render.NewPalette(layout.Height)
	if err != nil {
		return err
	}
	cache, err := render.NewChunkCache(constant.ChunkCacheImages, reg)
	if err != nil {
		return err
	}
	defer cache.Close()

	cols, rows := screen.Size()
	camera := render.NewCamera(layout, cols, rows)
	renderer, err := render.NewWorldRenderer(render.RendererDeps{
		Screen:  screen,
		Store:   store,
		Camera:  camera,
		Palette: palette,
		Cache:   cache,
		Queue:   queue,
		Bus:     bus,
		Log:     log,
		Status:  reg,
	})
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var session *game.Session
	pump := engine.NewFramePump(log)
	loop, err := engine.NewFrameLoop(engine.Deps{
		Clock:     clk,
		Logical:   clock.NewLogical(),
		Pump:      pump,
		Queue:     queue,
		Scheduler: sched,
		Bus:       bus,
		Simulation: engine.SimulationFunc(func(dt time.Duration) {
			saves.Poll()
			session.Update(dt)
		}),
		// Input is read in the render phase so it keeps working while paused
		Renderer: engine.RendererFunc(func() {
			session.Poll()
			renderer.Render()
		}),
		Log:    log,
		Status: reg,
	}, engine.BudgetFromMillis(cfg.Budget.UpdateMs, cfg.Budget.RenderMs, cfg.Budget.MicrotaskMs))
	if err != nil {
		return err
	}

	session, err = game.NewSession(game.SessionDeps{
		Store:  store,
		Camera: camera,
		Bus:    bus,
		Log:    log,
		Status: reg,
		Pauser: loop,
		Quit:   cancel,
		Resize: renderer.Resize,
	})
	if err != nil {
		return err
	}
	var cursor game.Cursor
	if ok, err := repo.GameState(game.GameStateCursor, &cursor); err != nil {
		return err
	} else if ok {
		session.SetCursor(cursor.X, cursor.Y)
	}

	overlay := debug.NewOverlay(bus, queue, cfg.Debug.Overlay)
	renderer.Register(session, layerCursor)
	renderer.Register(overlay, layerOverlay)

	hub := service.NewHub(log)
	if err := hub.Register(saves); err != nil {
		return err
	}
	player, err := audio.NewCuePlayer(audio.PlayerDeps{
		Enabled: cfg.Audio.Enabled,
		Clock:   clk,
		Bus:     bus,
		Log:     log,
		Status:  reg,
	})
	if err != nil {
		return err
	}
	if err := hub.Register(player); err != nil {
		return err
	}
	if cfg.Debug.Enabled && cfg.Debug.Addr != "" {
		srv, err := debug.NewServer(debug.ServerDeps{
			Addr:      cfg.Debug.Addr,
			Origins:   cfg.Debug.CORSOrigins,
			Bus:       bus,
			Queue:     queue,
			Scheduler: sched,
			Store:     store,
			Palette:   palette,
			Overlay:   overlay,
			Status:    reg,
			Log:       log,
		})
		if err != nil {
			return err
		}
		if err := hub.Register(srv); err != nil {
			return err
		}
	}

	if err := hub.InitAll(); err != nil {
		return err
	}
	if err := hub.StartAll(); err != nil {
		hub.StopAll()
		return err
	}

	renderer.Init()
	bus.Emit(event.SessionStarted, &event.SessionStartedPayload{
		WorldID:   info.ID,
		Seed:      info.Seed,
		Generated: info.Generated,
	})

	core.Go(func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			session.Post(ev)
		}
	})

	log.WithFields(logrus.Fields{
		"chunks":    info.Chunks,
		"generated": info.Generated,
		"fps":       cfg.Frame.FPS,
	}).Info("session started")

	loop.Start()
	pump.Run(ctx, time.Second/time.Duration(cfg.Frame.FPS), clk)
	loop.Stop()

	// Frames have stopped; this goroutine owns the save queue again
	c := session.Cursor()
	if err := saves.QueueGameState(game.GameStateCursor, c); err != nil {
		log.WithError(err).Warn("cursor not saved")
	}
	hub.StopAll()
	log.Info("session ended")
	return nil
}
