package engine

import (
	"time"

	"github.com/gainaura/aura/internal/apperr"
	"github.com/gainaura/aura/internal/media"
	"github.com/gainaura/aura/internal/taskspec"
)

// TaskState is the lifecycle state of one download task.
type TaskState string

const (
	// StateQueued covers both freshly enqueued tasks and tasks whose spec is
	// ready and which wait for the single fetch slot.
	StateQueued TaskState = "queued"

	// StateFetchingInfo means the metadata probe is running.
	StateFetchingInfo TaskState = "fetching_info"

	// StatePlaylistPending suspends a task until the user picks entries.
	StatePlaylistPending TaskState = "playlist_pending"

	// StateFormatPending suspends a task until the user picks a format.
	StateFormatPending TaskState = "format_pending"

	// StateGateHeld parks a spec-ready task until the download gate opens.
	StateGateHeld TaskState = "gate_held"

	StateDownloading    TaskState = "downloading"
	StatePostProcessing TaskState = "post_processing"

	StateCompleted TaskState = "completed"
	StateFailed    TaskState = "failed"
	StateCancelled TaskState = "cancelled"

	// StateExpanded terminates a playlist container whose entries became
	// child tasks.
	StateExpanded TaskState = "expanded"
)

// Terminal reports whether the task has left the active set.
func (s TaskState) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled, StateExpanded:
		return true
	}
	return false
}

// Suspended reports whether the task waits on user input or the gate rather
// than on the queue.
func (s TaskState) Suspended() bool {
	switch s {
	case StatePlaylistPending, StateFormatPending, StateGateHeld:
		return true
	}
	return false
}

// Task is one queued or running unit of work: a spec (once resolved) plus
// engine-managed runtime state. Mutated only inside the engine loop.
type Task struct {
	ID  string
	Key string
	URL string

	Options   taskspec.Options
	NeedsPick bool // user asked to choose the format manually

	Spec     *taskspec.Spec
	Info     *media.MediaInfo
	Playlist *media.PlaylistInfo

	State    TaskState
	Percent  float64
	Stage    string
	Message  string
	ErrKind  apperr.Kind
	ErrText  string
	Files    []string
	Degraded bool
	Warnings []string

	EnqueuedAt time.Time
	StartedAt  time.Time
	FinishedAt time.Time
}

// TaskView is the read-only copy published to subscribers.
type TaskView struct {
	ID         string              `json:"id"`
	URL        string              `json:"url"`
	State      TaskState           `json:"state"`
	Title      string              `json:"title,omitempty"`
	Percent    float64             `json:"percent"`
	Stage      string              `json:"stage,omitempty"`
	Message    string              `json:"message,omitempty"`
	ErrKind    apperr.Kind         `json:"error_kind,omitempty"`
	ErrText    string              `json:"error,omitempty"`
	Files      []string            `json:"files,omitempty"`
	Degraded   bool                `json:"degraded,omitempty"`
	Warnings   []string            `json:"warnings,omitempty"`
	QuickPicks []media.QuickPick   `json:"quick_picks,omitempty"`
	Playlist   *media.PlaylistInfo `json:"playlist,omitempty"`
	EnqueuedAt time.Time           `json:"enqueued_at"`
	StartedAt  time.Time           `json:"started_at,omitempty"`
	FinishedAt time.Time           `json:"finished_at,omitempty"`
}

func (t *Task) view() TaskView {
	v := TaskView{
		ID:         t.ID,
		URL:        t.URL,
		State:      t.State,
		Percent:    t.Percent,
		Stage:      t.Stage,
		Message:    t.Message,
		ErrKind:    t.ErrKind,
		ErrText:    t.ErrText,
		Files:      append([]string(nil), t.Files...),
		Degraded:   t.Degraded,
		Warnings:   append([]string(nil), t.Warnings...),
		EnqueuedAt: t.EnqueuedAt,
		StartedAt:  t.StartedAt,
		FinishedAt: t.FinishedAt,
	}
	if t.Info != nil {
		v.Title = t.Info.Title
	}
	if t.State == StateFormatPending && t.Info != nil {
		v.QuickPicks = media.QuickPicks(t.Info)
	}
	if t.State == StatePlaylistPending {
		v.Playlist = t.Playlist
	}
	return v
}
