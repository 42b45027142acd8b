package main

import (
	"context"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/gainaura/aura/internal/app"
	"github.com/gainaura/aura/internal/config"
	"github.com/gainaura/aura/internal/logger"
	"github.com/gainaura/aura/internal/shutdown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	zapLogger, err := logger.FromOutput(cfg.Logger.Level, cfg.Logger.Format, cfg.Logger.OutputPath)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer zapLogger.Sync()

	daemon, err := app.New(cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to build daemon", zap.Error(err))
	}

	go func() {
		if err := daemon.Start(); err != nil {
			zapLogger.Fatal("Listener failed", zap.Error(err))
		}
	}()

	gs := shutdown.NewGracefulShutdown(zapLogger, 30*time.Second)
	gs.Register(func(ctx context.Context) error {
		return daemon.Shutdown(ctx)
	})
	gs.Wait()
}
