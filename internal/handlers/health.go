package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/gainaura/aura/internal/engine"
)

// HealthHandler provides health check endpoints
type HealthHandler struct {
	engine *engine.Engine
	logger *zap.Logger
}

// NewHealthHandler creates a health handler
func NewHealthHandler(eng *engine.Engine, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		engine: eng,
		logger: logger,
	}
}

// BasicHealth returns simple healthy status
func (h *HealthHandler) BasicHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// DetailedHealth returns engine status alongside liveness
func (h *HealthHandler) DetailedHealth(c *fiber.Ctx) error {
	snap := h.engine.Snapshot()

	status := "healthy"
	if snap.Halted {
		status = "degraded"
	}

	return c.JSON(fiber.Map{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"engine": fiber.Map{
			"phase":        snap.Phase,
			"halted":       snap.Halted,
			"queue_length": snap.QueueLength,
			"tasks":        len(snap.Tasks),
		},
	})
}
