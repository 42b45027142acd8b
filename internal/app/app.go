package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/gainaura/aura/internal/cleanup"
	"github.com/gainaura/aura/internal/config"
	"github.com/gainaura/aura/internal/engine"
	"github.com/gainaura/aura/internal/extractor"
	"github.com/gainaura/aura/internal/handlers"
	"github.com/gainaura/aura/internal/history"
	"github.com/gainaura/aura/internal/postproc"
	"github.com/gainaura/aura/pkg/storage"
)

// App wires the daemon together: extraction gateway, engine, post-processing
// pipeline, history store, cleanup and the HTTP surface.
type App struct {
	cfg     *config.Config
	logger  *zap.Logger
	engine  *engine.Engine
	history *history.Store
	sweeper *cleanup.Periodic
	fiber   *fiber.App
}

// New builds the daemon from configuration.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if err := os.MkdirAll(cfg.Extractor.StagingDir, 0755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}

	gateway := extractor.NewYtDlp(extractor.Options{
		BinaryPath:   cfg.Extractor.YtdlpPath,
		FFmpegPath:   cfg.Extractor.FFmpegPath,
		StagingDir:   cfg.Extractor.StagingDir,
		ProbeTimeout: cfg.Extractor.ProbeTimeout,
		CancelGrace:  cfg.Extractor.CancelGrace,
		CookiesFile:  cfg.Extractor.CookiesFile,
		Cookies:      cfg.Extractor.Cookies,
	}, logger)

	placer, err := storage.NewLocalPlacer(cfg.Output.Dir, logger)
	if err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	var library storage.Library
	if cfg.Output.LibraryDir != "" {
		lib, lerr := storage.NewSharedLibrary(cfg.Output.LibraryDir, logger)
		if lerr != nil {
			return nil, fmt.Errorf("create library dir: %w", lerr)
		}
		library = lib
	}

	remux := extractor.NewFFmpeg(cfg.Extractor.FFmpegPath, 30*time.Minute, logger)
	pipeline := postproc.New(placer, library, remux, logger)

	var store *history.Store
	if cfg.History.Enabled {
		store, err = history.Open(cfg.History.Path)
		if err != nil {
			return nil, fmt.Errorf("open history store: %w", err)
		}
	}

	var sink engine.History
	if store != nil {
		sink = store
	}
	eng := engine.New(engine.Config{
		OutputTemplate: cfg.Engine.OutputTemplate,
		GateRecheck:    cfg.Engine.GateRecheck,
	}, gateway, pipeline, sink, engine.OpenGate{}, logger)

	var sweeper *cleanup.Periodic
	if cfg.Cleanup.Enabled {
		sweeper = cleanup.NewPeriodic(
			cfg.Extractor.StagingDir,
			cfg.Cleanup.LogDir,
			cfg.Cleanup.MaxAge,
			cfg.Cleanup.Interval,
			logger,
		)
	}

	a := &App{
		cfg:     cfg,
		logger:  logger,
		engine:  eng,
		history: store,
		sweeper: sweeper,
	}
	a.fiber = a.buildRouter()
	return a, nil
}

func (a *App) buildRouter() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "aura",
		ReadTimeout:  a.cfg.API.ReadTimeout,
		WriteTimeout: a.cfg.API.WriteTimeout,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	tasks := handlers.NewTaskHandler(a.engine, a.logger)
	hist := handlers.NewHistoryHandler(a.history, a.logger)
	events := handlers.NewEventsHandler(a.engine, a.logger)
	health := handlers.NewHealthHandler(a.engine, a.logger)

	app.Get("/health", health.BasicHealth)
	app.Get("/health/detailed", health.DetailedHealth)

	api := app.Group("/api")
	api.Post("/tasks", tasks.Submit)
	api.Get("/tasks", tasks.List)
	api.Get("/tasks/:id", tasks.Get)
	api.Post("/tasks/:id/format", tasks.SelectFormat)
	api.Post("/tasks/:id/playlist", tasks.SelectPlaylist)
	api.Delete("/tasks/:id", tasks.Cancel)
	api.Post("/queue/acknowledge", tasks.Acknowledge)

	api.Get("/events", events.Stream)

	api.Get("/history", hist.List)
	api.Delete("/history/:id", hist.Delete)
	api.Delete("/history", hist.Clear)

	return app
}

// Engine exposes the download engine, mainly for embedding callers.
func (a *App) Engine() *engine.Engine {
	return a.engine
}

// Start launches the engine, the cleanup sweeper and the HTTP listener.
// Blocks until the listener exits.
func (a *App) Start() error {
	a.engine.Start()
	if a.sweeper != nil {
		a.sweeper.Start(context.Background())
	}

	addr := fmt.Sprintf("%s:%d", a.cfg.API.Host, a.cfg.API.Port)
	a.logger.Info("daemon listening", zap.String("addr", addr))
	return a.fiber.Listen(addr)
}

// Shutdown tears the daemon down in reverse construction order.
func (a *App) Shutdown(ctx context.Context) error {
	if err := a.fiber.ShutdownWithContext(ctx); err != nil {
		a.logger.Warn("http shutdown failed", zap.Error(err))
	}
	if a.sweeper != nil {
		a.sweeper.Stop()
	}
	if err := a.engine.Stop(ctx); err != nil {
		a.logger.Warn("engine shutdown timed out", zap.Error(err))
	}
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			a.logger.Warn("history close failed", zap.Error(err))
		}
	}
	return nil
}
