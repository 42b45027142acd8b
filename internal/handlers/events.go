package handlers

import (
	"bufio"
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/gainaura/aura/internal/engine"
)

// EventsHandler streams engine events to clients over server-sent events
type EventsHandler struct {
	engine *engine.Engine
	logger *zap.Logger
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(eng *engine.Engine, logger *zap.Logger) *EventsHandler {
	return &EventsHandler{
		engine: eng,
		logger: logger,
	}
}

// Stream opens an SSE stream: one initial snapshot, then every state
// transition, progress report, and outcome until the client disconnects.
// GET /api/events
func (h *EventsHandler) Stream(c *fiber.Ctx) error {
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	events, cancel := h.engine.Subscribe(64)
	snapshot := h.engine.Snapshot()

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cancel()

		if !writeEvent(w, engine.Event{Snapshot: &snapshot}) {
			return
		}

		keepalive := time.NewTicker(15 * time.Second)
		defer keepalive.Stop()

		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				if !writeEvent(w, ev) {
					return
				}
			case <-keepalive.C:
				if _, err := w.WriteString(": keepalive\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	}))

	return nil
}

func writeEvent(w *bufio.Writer, ev engine.Event) bool {
	payload, err := json.Marshal(ev)
	if err != nil {
		return false
	}
	name := "snapshot"
	switch {
	case ev.Progress != nil:
		name = "progress"
	case ev.Outcome != nil:
		name = "outcome"
	}
	if _, err := w.WriteString("event: " + name + "\ndata: " + string(payload) + "\n\n"); err != nil {
		return false
	}
	return w.Flush() == nil
}
