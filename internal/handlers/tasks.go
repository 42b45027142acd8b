package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/gainaura/aura/internal/apperr"
	"github.com/gainaura/aura/internal/engine"
	"github.com/gainaura/aura/internal/media"
	"github.com/gainaura/aura/internal/taskspec"
)

// TaskHandler exposes the download engine over HTTP
type TaskHandler struct {
	engine *engine.Engine
	logger *zap.Logger
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(eng *engine.Engine, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{
		engine: eng,
		logger: logger,
	}
}

// TaskOptions is the wire form of the per-task knobs
type TaskOptions struct {
	ExtractAudio      bool                 `json:"extract_audio"`
	EmbedSubtitles    bool                 `json:"embed_subtitles"`
	RestrictFilenames bool                 `json:"restrict_filenames"`
	SplitByChapter    bool                 `json:"split_by_chapter"`
	Clips             []taskspec.ClipRange `json:"clips"`
	TitleOverride     string               `json:"title_override"`
	CustomCommand     string               `json:"custom_command"`
	Quality           string               `json:"quality"` // fast|720p|1080p|2k|4k|highest
	SubtitleLangs     []string             `json:"subtitle_langs"`
}

var qualityTiers = map[string]media.Tier{
	"fast":    media.TierFast,
	"360p":    media.TierFast,
	"720p":    media.Tier720p,
	"1080p":   media.Tier1080p,
	"2k":      media.Tier1440p,
	"1440p":   media.Tier1440p,
	"4k":      media.Tier2160p,
	"2160p":   media.Tier2160p,
	"highest": media.TierHighest,
	"":        media.Tier1080p,
}

func (o TaskOptions) toSpec() (taskspec.Options, error) {
	tier, ok := qualityTiers[o.Quality]
	if !ok {
		return taskspec.Options{}, apperr.New(apperr.KindInvalidSelection, "unknown quality "+o.Quality)
	}
	return taskspec.Options{
		ExtractAudio:      o.ExtractAudio,
		EmbedSubtitles:    o.EmbedSubtitles,
		RestrictFilenames: o.RestrictFilenames,
		SplitByChapter:    o.SplitByChapter,
		Clips:             o.Clips,
		TitleOverride:     o.TitleOverride,
		CustomCommand:     o.CustomCommand,
		TargetTier:        tier,
		SubtitleLangs:     o.SubtitleLangs,
	}, nil
}

// Submit enqueues a URL for download
// POST /api/tasks
func (h *TaskHandler) Submit(c *fiber.Ctx) error {
	type Request struct {
		URL          string      `json:"url"`
		Options      TaskOptions `json:"options"`
		ChooseFormat bool        `json:"choose_format"`
	}

	var req Request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.URL == "" {
		return c.Status(400).JSON(fiber.Map{"error": "URL is required"})
	}

	opts, err := req.Options.toSpec()
	if err != nil {
		return errorResponse(c, err)
	}

	id, ok, err := h.engine.Submit(req.URL, engine.SubmitOptions{
		Options:                opts,
		RequireFormatSelection: req.ChooseFormat,
	})
	if err != nil {
		return errorResponse(c, err)
	}

	if !ok {
		return c.JSON(fiber.Map{"task_id": id, "deduplicated": true})
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"task_id": id})
}

// List returns the full engine snapshot
// GET /api/tasks
func (h *TaskHandler) List(c *fiber.Ctx) error {
	return c.JSON(h.engine.Snapshot())
}

// Get returns one task
// GET /api/tasks/:id
func (h *TaskHandler) Get(c *fiber.Ctx) error {
	id := c.Params("id")
	for _, t := range h.engine.Snapshot().Tasks {
		if t.ID == id {
			return c.JSON(t)
		}
	}
	return c.Status(404).JSON(fiber.Map{"error": "task not found"})
}

// SelectFormat resumes a task that is waiting for a format choice
// POST /api/tasks/:id/format
func (h *TaskHandler) SelectFormat(c *fiber.Ctx) error {
	type Request struct {
		FormatIDs []string     `json:"format_ids"`
		Options   *TaskOptions `json:"options"`
	}

	var req Request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request body"})
	}

	var override *taskspec.Options
	if req.Options != nil {
		opts, err := req.Options.toSpec()
		if err != nil {
			return errorResponse(c, err)
		}
		override = &opts
	}

	if err := h.engine.SelectFormat(c.Params("id"), req.FormatIDs, override); err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// SelectPlaylist expands a playlist task into the chosen entries
// POST /api/tasks/:id/playlist
func (h *TaskHandler) SelectPlaylist(c *fiber.Ctx) error {
	type Request struct {
		Indices []int `json:"indices"`
	}

	var req Request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if err := h.engine.SelectPlaylistEntries(c.Params("id"), req.Indices); err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// Cancel stops a task
// DELETE /api/tasks/:id
func (h *TaskHandler) Cancel(c *fiber.Ctx) error {
	if err := h.engine.Cancel(c.Params("id")); err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// Acknowledge clears a queue halt after a disk-full failure
// POST /api/queue/acknowledge
func (h *TaskHandler) Acknowledge(c *fiber.Ctx) error {
	h.engine.AcknowledgeError()
	return c.JSON(fiber.Map{"success": true})
}

func errorResponse(c *fiber.Ctx, err error) error {
	kind := apperr.KindOf(err)
	status := fiber.StatusInternalServerError
	switch kind {
	case apperr.KindInvalidSelection:
		status = fiber.StatusBadRequest
	case apperr.KindUnsupportedSource:
		status = fiber.StatusUnprocessableEntity
	}
	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
		"kind":  string(kind),
	})
}
