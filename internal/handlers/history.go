package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/gainaura/aura/internal/history"
)

// HistoryHandler exposes the persisted download history
type HistoryHandler struct {
	store  *history.Store
	logger *zap.Logger
}

// NewHistoryHandler creates a new history handler. store may be nil when
// history is disabled; every endpoint then reports 404.
func NewHistoryHandler(store *history.Store, logger *zap.Logger) *HistoryHandler {
	return &HistoryHandler{
		store:  store,
		logger: logger,
	}
}

func (h *HistoryHandler) disabled(c *fiber.Ctx) bool {
	if h.store == nil {
		_ = c.Status(404).JSON(fiber.Map{"error": "history is disabled"})
		return true
	}
	return false
}

// List returns the most recent records, newest first
// GET /api/history
func (h *HistoryHandler) List(c *fiber.Ctx) error {
	if h.disabled(c) {
		return nil
	}

	limit := c.QueryInt("limit", 100)
	records, err := h.store.List(c.Context(), limit)
	if err != nil {
		h.logger.Error("history list failed", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{"error": "failed to read history"})
	}
	return c.JSON(fiber.Map{"records": records, "count": len(records)})
}

// Delete removes one record
// DELETE /api/history/:id
func (h *HistoryHandler) Delete(c *fiber.Ctx) error {
	if h.disabled(c) {
		return nil
	}

	if err := h.store.Delete(c.Context(), c.Params("id")); err != nil {
		h.logger.Error("history delete failed", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{"error": "failed to delete record"})
	}
	return c.JSON(fiber.Map{"success": true})
}

// Clear removes every record
// DELETE /api/history
func (h *HistoryHandler) Clear(c *fiber.Ctx) error {
	if h.disabled(c) {
		return nil
	}

	if err := h.store.Clear(c.Context()); err != nil {
		h.logger.Error("history clear failed", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{"error": "failed to clear history"})
	}
	return c.JSON(fiber.Map{"success": true})
}
