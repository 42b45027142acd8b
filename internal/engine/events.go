package engine

import (
	"sync"

	"github.com/gainaura/aura/internal/apperr"
)

// Phase is the engine-level activity summary derived from the task set.
type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseFetchingInfo Phase = "fetching_info"
	PhaseDownloading  Phase = "downloading"
	PhaseError        Phase = "error"
)

// Snapshot is the full observable state, published on every transition.
type Snapshot struct {
	Phase        Phase       `json:"phase"`
	Halted       bool        `json:"halted"`
	HaltKind     apperr.Kind `json:"halt_kind,omitempty"`
	ActiveTaskID string      `json:"active_task_id,omitempty"`
	QueueLength  int         `json:"queue_length"`
	Tasks        []TaskView  `json:"tasks"`
}

// ProgressEvent is a fine-grained fetch progress report. Published at the
// backend's cadence, not on state transitions.
type ProgressEvent struct {
	TaskID  string  `json:"task_id"`
	Percent float64 `json:"percent"`
	Stage   string  `json:"stage,omitempty"`
	Message string  `json:"message,omitempty"`
}

// Outcome announces a task reaching a terminal state.
type Outcome struct {
	TaskID   string      `json:"task_id"`
	State    TaskState   `json:"state"`
	ErrKind  apperr.Kind `json:"error_kind,omitempty"`
	Files    []string    `json:"files,omitempty"`
	Degraded bool        `json:"degraded,omitempty"`
}

// Event is the union delivered to subscribers; exactly one field is set.
type Event struct {
	Snapshot *Snapshot      `json:"snapshot,omitempty"`
	Progress *ProgressEvent `json:"progress,omitempty"`
	Outcome  *Outcome       `json:"outcome,omitempty"`
}

// hub fans events out to subscribers. Slow subscribers drop events rather
// than stall the engine loop; the next snapshot re-synchronizes them.
type hub struct {
	mu   sync.Mutex
	next int
	subs map[int]chan Event
}

func newHub() *hub {
	return &hub{subs: make(map[int]chan Event)}
}

func (h *hub) subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = ch
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

func (h *hub) publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
