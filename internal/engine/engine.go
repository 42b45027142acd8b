package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gainaura/aura/internal/apperr"
	"github.com/gainaura/aura/internal/extractor"
	"github.com/gainaura/aura/internal/history"
	"github.com/gainaura/aura/internal/media"
	"github.com/gainaura/aura/internal/postproc"
	"github.com/gainaura/aura/internal/retry"
	"github.com/gainaura/aura/internal/taskspec"
)

// Gate decides whether a spec-ready task may enter the fetch slot. An engine
// with a closed gate keeps tasks parked without losing queue order.
type Gate interface {
	DownloadAllowed() bool
}

// OpenGate allows every download.
type OpenGate struct{}

func (OpenGate) DownloadAllowed() bool { return true }

// Postprocessor runs the post-fetch steps for one task.
type Postprocessor interface {
	Run(ctx context.Context, spec *taskspec.Spec, fetched []string) (postproc.Result, error)
}

// History receives one record per finished task. Failures are logged, never
// propagated into the task outcome.
type History interface {
	Add(ctx context.Context, rec history.Record) error
}

// SubmitOptions shapes a new submission.
type SubmitOptions struct {
	taskspec.Options

	// RequireFormatSelection suspends the task after the probe so the user
	// can pick from the resolved formats, unless exactly one quick-pick is
	// viable or a custom command bypasses selection.
	RequireFormatSelection bool
}

// Config tunes the engine.
type Config struct {
	// OutputTemplate is the backend output naming template applied to every
	// spec the engine builds on its own.
	OutputTemplate string

	// GateRecheck is how often parked tasks re-test the gate.
	GateRecheck time.Duration
}

func (c *Config) applyDefaults() {
	if c.OutputTemplate == "" {
		c.OutputTemplate = "%(title)s.%(ext)s"
	}
	if c.GateRecheck <= 0 {
		c.GateRecheck = 2 * time.Second
	}
}

// Engine owns the task set. All task state lives behind a single run loop
// that consumes commands from one channel, so transitions never race: public
// methods enqueue closures and backend goroutines report back the same way.
// Admission control is one fetch at a time; one metadata probe may run
// alongside it.
type Engine struct {
	cfg      Config
	gateway  extractor.Gateway
	pipeline Postprocessor
	hist     History
	gate     Gate
	logger   *zap.Logger

	cmds   chan func()
	stopCh chan struct{}
	doneCh chan struct{}
	hub    *hub

	// Loop-owned state below. Never touched outside the run loop.
	tasks     map[string]*Task
	order     []string          // every task ID in submission order
	keys      map[string]string // dedup key -> live task ID
	pending   []string          // queued task IDs awaiting probe or fetch
	activeID  string            // task holding the fetch slot
	probingID string            // task holding the probe slot
	cancels   map[string]context.CancelFunc
	halted    bool
	haltKind  apperr.Kind
}

// New builds a stopped engine. Call Start before submitting.
func New(cfg Config, gateway extractor.Gateway, pipeline Postprocessor, hist History, gate Gate, logger *zap.Logger) *Engine {
	cfg.applyDefaults()
	if gate == nil {
		gate = OpenGate{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:      cfg,
		gateway:  gateway,
		pipeline: pipeline,
		hist:     hist,
		gate:     gate,
		logger:   logger,
		cmds:     make(chan func(), 64),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		hub:      newHub(),
		tasks:    make(map[string]*Task),
		keys:     make(map[string]string),
		cancels:  make(map[string]context.CancelFunc),
	}
}

// Start launches the run loop.
func (e *Engine) Start() {
	go e.loop()
}

// Stop cancels every in-flight backend call and shuts the loop down. Blocks
// until the loop has exited or ctx expires.
func (e *Engine) Stop(ctx context.Context) error {
	close(e.stopCh)
	select {
	case <-e.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) loop() {
	defer close(e.doneCh)

	gateTick := time.NewTicker(e.cfg.GateRecheck)
	defer gateTick.Stop()

	for {
		select {
		case fn := <-e.cmds:
			fn()
		case <-gateTick.C:
			e.recheckGate()
		case <-e.stopCh:
			for id, cancel := range e.cancels {
				cancel()
				delete(e.cancels, id)
			}
			e.hub.closeAll()
			return
		}
	}
}

// exec runs fn inside the loop and waits for it.
func (e *Engine) exec(fn func()) error {
	done := make(chan struct{})
	select {
	case e.cmds <- func() { fn(); close(done) }:
	case <-e.doneCh:
		return apperr.New(apperr.KindInternal, "engine is stopped")
	}
	select {
	case <-done:
		return nil
	case <-e.doneCh:
		return apperr.New(apperr.KindInternal, "engine is stopped")
	}
}

// post runs fn inside the loop without waiting. Used by backend goroutines.
func (e *Engine) post(fn func()) {
	select {
	case e.cmds <- fn:
	case <-e.doneCh:
	}
}

// Subscribe returns a channel of engine events plus its cancel func. Slow
// consumers lose intermediate events, never the stream.
func (e *Engine) Subscribe(buffer int) (<-chan Event, func()) {
	return e.hub.subscribe(buffer)
}

// Snapshot returns the current observable state.
func (e *Engine) Snapshot() Snapshot {
	var snap Snapshot
	if err := e.exec(func() { snap = e.snapshot() }); err != nil {
		snap.Phase = PhaseIdle
	}
	return snap
}

// Submit enqueues a URL. A live task for the same normalized URL makes the
// submission collapse onto it: the existing task ID comes back with ok=false
// and nothing is enqueued.
func (e *Engine) Submit(url string, opts SubmitOptions) (id string, ok bool, err error) {
	key, kerr := DedupKey(url)
	if kerr != nil {
		return "", false, kerr
	}
	execErr := e.exec(func() {
		id, ok = e.enqueue(url, key, opts)
		if ok {
			e.promote()
			e.publishSnapshot()
		}
	})
	if execErr != nil {
		return "", false, execErr
	}
	return id, ok, nil
}

// enqueue adds a task unless the dedup index already holds a live one.
// Loop-only.
func (e *Engine) enqueue(url, key string, opts SubmitOptions) (string, bool) {
	if existing, dup := e.keys[key]; dup {
		e.logger.Info("duplicate submission collapsed",
			zap.String("task_id", existing), zap.String("url", url))
		return existing, false
	}

	t := &Task{
		ID:         uuid.New().String(),
		Key:        key,
		URL:        url,
		Options:    opts.Options,
		NeedsPick:  opts.RequireFormatSelection,
		State:      StateQueued,
		EnqueuedAt: time.Now(),
	}
	e.tasks[t.ID] = t
	e.order = append(e.order, t.ID)
	e.keys[key] = t.ID
	e.pending = append(e.pending, t.ID)

	e.logger.Info("task enqueued", zap.String("task_id", t.ID), zap.String("url", url))
	return t.ID, true
}

// SelectFormat resumes a format-pending task with up to two of its probed
// formats. An empty selection defers the choice to the backend.
func (e *Engine) SelectFormat(taskID string, formatIDs []string, override *taskspec.Options) error {
	var outErr error
	err := e.exec(func() {
		t := e.tasks[taskID]
		if t == nil {
			outErr = apperr.New(apperr.KindInvalidSelection, "unknown task "+taskID)
			return
		}
		if t.State != StateFormatPending {
			outErr = apperr.New(apperr.KindInvalidSelection, "task is not awaiting a format choice")
			return
		}

		selected := make([]media.Format, 0, len(formatIDs))
		for _, fid := range formatIDs {
			f, found := t.Info.FormatByID(fid)
			if !found {
				outErr = apperr.New(apperr.KindInvalidSelection, "unknown format "+fid)
				return
			}
			selected = append(selected, f)
		}

		opts := t.Options
		if override != nil {
			opts = *override
		}
		spec, berr := taskspec.Build(t.Info, selected, opts, e.cfg.OutputTemplate)
		if berr != nil {
			outErr = berr
			return
		}

		t.Options = opts
		t.Spec = spec
		t.State = StateQueued
		e.pending = append(e.pending, t.ID)
		e.promote()
		e.publishSnapshot()
	})
	if err != nil {
		return err
	}
	return outErr
}

// SelectPlaylistEntries expands a playlist-pending task into one child task
// per chosen entry, submission order preserved. The container terminates as
// expanded; an empty selection cancels it.
func (e *Engine) SelectPlaylistEntries(taskID string, indices []int) error {
	var outErr error
	err := e.exec(func() {
		t := e.tasks[taskID]
		if t == nil {
			outErr = apperr.New(apperr.KindInvalidSelection, "unknown task "+taskID)
			return
		}
		if t.State != StatePlaylistPending {
			outErr = apperr.New(apperr.KindInvalidSelection, "task is not awaiting playlist entries")
			return
		}
		for _, i := range indices {
			if i < 0 || i >= len(t.Playlist.Entries) {
				outErr = apperr.New(apperr.KindInvalidSelection, "playlist index out of range")
				return
			}
		}

		if len(indices) == 0 {
			e.finishCancelled(t)
			e.promote()
			e.publishSnapshot()
			return
		}

		for _, i := range indices {
			entry := t.Playlist.Entries[i]
			key, kerr := DedupKey(entry.URL)
			if kerr != nil {
				e.logger.Warn("skipping playlist entry with bad URL",
					zap.String("task_id", t.ID), zap.String("url", entry.URL))
				continue
			}
			// Children inherit the container's options but never re-prompt.
			e.enqueue(entry.URL, key, SubmitOptions{Options: t.Options})
		}

		t.State = StateExpanded
		t.FinishedAt = time.Now()
		e.releaseKey(t)
		e.hub.publish(Event{Outcome: &Outcome{TaskID: t.ID, State: StateExpanded}})

		e.promote()
		e.publishSnapshot()
	})
	if err != nil {
		return err
	}
	return outErr
}

// Cancel stops a task wherever it is. Running backend work is interrupted
// and given its grace period; queued or suspended tasks terminate at once.
// Cancelling a terminal task is a no-op.
func (e *Engine) Cancel(taskID string) error {
	var outErr error
	err := e.exec(func() {
		t := e.tasks[taskID]
		if t == nil {
			outErr = apperr.New(apperr.KindInvalidSelection, "unknown task "+taskID)
			return
		}
		if t.State.Terminal() {
			return
		}
		if cancel, running := e.cancels[taskID]; running {
			// The probe/fetch goroutine observes the cancellation and
			// reports back; the terminal transition happens there.
			cancel()
			return
		}
		e.finishCancelled(t)
		e.promote()
		e.publishSnapshot()
	})
	if err != nil {
		return err
	}
	return outErr
}

// AcknowledgeError clears a queue halt and resumes admission.
func (e *Engine) AcknowledgeError() {
	_ = e.exec(func() {
		if !e.halted {
			return
		}
		e.halted = false
		e.haltKind = ""
		e.logger.Info("queue halt acknowledged, resuming")
		e.promote()
		e.publishSnapshot()
	})
}

// promote fills the probe and fetch slots from the pending queue. Loop-only.
func (e *Engine) promote() {
	if e.halted {
		return
	}

	if e.activeID == "" {
		for _, id := range e.pending {
			t := e.tasks[id]
			if t == nil {
				continue
			}
			if t.State == StateGateHeld {
				// Head of the ready queue stays parked; order is preserved.
				break
			}
			if t.State == StateQueued && t.Spec != nil {
				e.startFetch(t)
				break
			}
		}
	}

	if e.probingID == "" {
		for _, id := range e.pending {
			t := e.tasks[id]
			if t == nil {
				continue
			}
			if t.State == StateQueued && t.Spec == nil && t.Info == nil {
				e.startProbe(t)
				break
			}
		}
	}
}

func (e *Engine) recheckGate() {
	if e.halted || !e.gate.DownloadAllowed() {
		return
	}
	changed := false
	for _, id := range e.pending {
		t := e.tasks[id]
		if t != nil && t.State == StateGateHeld {
			t.State = StateQueued
			changed = true
		}
	}
	if changed {
		e.promote()
		e.publishSnapshot()
	}
}

func (e *Engine) startProbe(t *Task) {
	t.State = StateFetchingInfo
	e.probingID = t.ID

	ctx, cancel := context.WithCancel(context.Background())
	e.cancels[t.ID] = cancel

	id, url := t.ID, t.URL
	go func() {
		defer cancel()
		var res *extractor.ProbeResult
		err := retry.Do(ctx, e.transientPolicy(id, "probe"), func() error {
			r, perr := e.gateway.Probe(ctx, url)
			if perr != nil {
				return perr
			}
			res = r
			return nil
		})
		e.post(func() { e.probeDone(id, res, err) })
	}()
}

func (e *Engine) probeDone(id string, res *extractor.ProbeResult, err error) {
	delete(e.cancels, id)
	if e.probingID == id {
		e.probingID = ""
	}

	t := e.tasks[id]
	if t == nil || t.State.Terminal() {
		e.promote()
		return
	}

	switch {
	case err != nil:
		if isCancellation(err) {
			e.finishCancelled(t)
		} else {
			e.fail(t, err)
		}

	case res != nil && res.Playlist != nil:
		t.Playlist = res.Playlist
		t.State = StatePlaylistPending
		e.removePending(t.ID)
		e.logger.Info("playlist discovered", zap.String("task_id", t.ID),
			zap.Int("entries", len(res.Playlist.Entries)))

	case res != nil && res.Info != nil:
		t.Info = res.Info
		e.resolveSpec(t)

	default:
		e.fail(t, apperr.New(apperr.KindExtraction, "probe produced no metadata"))
	}

	e.promote()
	e.publishSnapshot()
}

// resolveSpec either builds the spec automatically or suspends the task for
// a manual format choice. Loop-only; t.Info must be set.
func (e *Engine) resolveSpec(t *Task) {
	picks := media.QuickPicks(t.Info)
	if t.NeedsPick && t.Options.CustomCommand == "" && len(picks) != 1 {
		t.State = StateFormatPending
		e.removePending(t.ID)
		return
	}

	var (
		spec *taskspec.Spec
		err  error
	)
	switch {
	case t.Options.CustomCommand != "":
		spec, err = taskspec.Build(t.Info, nil, t.Options, e.cfg.OutputTemplate)
	case len(picks) == 1:
		spec, err = taskspec.Build(t.Info, []media.Format{picks[0].Format}, t.Options, e.cfg.OutputTemplate)
	default:
		spec, err = taskspec.BuildForTier(t.Info, t.Options, e.cfg.OutputTemplate)
	}
	if err != nil {
		e.fail(t, err)
		return
	}
	t.Spec = spec
	t.State = StateQueued
}

func (e *Engine) startFetch(t *Task) {
	if !e.gate.DownloadAllowed() {
		t.State = StateGateHeld
		e.logger.Info("task parked at download gate", zap.String("task_id", t.ID))
		return
	}

	t.State = StateDownloading
	t.StartedAt = time.Now()
	e.activeID = t.ID
	e.removePending(t.ID)

	ctx, cancel := context.WithCancel(context.Background())
	e.cancels[t.ID] = cancel

	id, spec := t.ID, t.Spec
	go func() {
		defer cancel()
		var files []string
		err := retry.Do(ctx, e.transientPolicy(id, "fetch"), func() error {
			fs, ferr := e.gateway.Fetch(ctx, spec, func(p extractor.Progress) {
				e.post(func() { e.progress(id, p) })
			})
			if ferr != nil {
				return ferr
			}
			files = fs
			return nil
		})
		if err != nil {
			e.post(func() { e.fetchFailed(id, err) })
			return
		}

		e.post(func() { e.beginPostProcessing(id) })
		// Post-processing is short and must run to completion so no
		// half-placed file survives; it does not observe cancellation.
		res, perr := e.pipeline.Run(context.Background(), spec, files)
		e.post(func() { e.pipelineDone(id, res, perr) })
	}()
}

func (e *Engine) transientPolicy(taskID, op string) retry.Config {
	cfg := retry.Transient(apperr.Retryable)
	cfg.OnRetry = func(attempt int, err error) {
		e.logger.Warn("transient failure, retrying",
			zap.String("task_id", taskID),
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}
	return cfg
}

func (e *Engine) progress(id string, p extractor.Progress) {
	t := e.tasks[id]
	if t == nil || t.State != StateDownloading {
		return
	}
	t.Percent = p.Percent
	t.Stage = p.Stage
	t.Message = p.Message
	e.hub.publish(Event{Progress: &ProgressEvent{
		TaskID:  id,
		Percent: p.Percent,
		Stage:   p.Stage,
		Message: p.Message,
	}})
}

func (e *Engine) fetchFailed(id string, err error) {
	delete(e.cancels, id)
	if e.activeID == id {
		e.activeID = ""
	}

	t := e.tasks[id]
	if t == nil || t.State.Terminal() {
		e.promote()
		return
	}

	if isCancellation(err) {
		e.finishCancelled(t)
	} else {
		e.fail(t, err)
	}
	e.promote()
	e.publishSnapshot()
}

func (e *Engine) beginPostProcessing(id string) {
	t := e.tasks[id]
	if t == nil || t.State != StateDownloading {
		return
	}
	t.State = StatePostProcessing
	t.Percent = 100
	t.Stage = "postprocess"
	e.publishSnapshot()
}

func (e *Engine) pipelineDone(id string, res postproc.Result, perr error) {
	delete(e.cancels, id)
	if e.activeID == id {
		e.activeID = ""
	}

	t := e.tasks[id]
	if t == nil || t.State.Terminal() {
		e.promote()
		return
	}

	if perr != nil {
		e.fail(t, perr)
	} else {
		t.State = StateCompleted
		t.Files = append([]string{res.PrimaryPath}, res.Companions...)
		t.Degraded = res.Degraded
		t.Warnings = res.Warnings
		t.Percent = 100
		t.FinishedAt = time.Now()
		e.releaseKey(t)
		e.record(t)
		e.hub.publish(Event{Outcome: &Outcome{
			TaskID:   t.ID,
			State:    StateCompleted,
			Files:    t.Files,
			Degraded: t.Degraded,
		}})
		e.logger.Info("task completed",
			zap.String("task_id", t.ID),
			zap.String("file", res.PrimaryPath),
			zap.Bool("degraded", res.Degraded))
	}

	e.promote()
	e.publishSnapshot()
}

// fail terminates a task with an error. A disk-full failure additionally
// halts admission until AcknowledgeError. Loop-only.
func (e *Engine) fail(t *Task, err error) {
	kind := apperr.KindOf(err)
	t.State = StateFailed
	t.ErrKind = kind
	t.ErrText = err.Error()
	t.FinishedAt = time.Now()
	e.removePending(t.ID)
	e.releaseKey(t)

	if kind == apperr.KindDiskFull {
		e.halted = true
		e.haltKind = kind
		e.logger.Error("queue halted: destination is out of space",
			zap.String("task_id", t.ID))
	} else {
		e.logger.Warn("task failed",
			zap.String("task_id", t.ID),
			zap.String("kind", string(kind)),
			zap.Error(err))
	}

	e.record(t)
	e.hub.publish(Event{Outcome: &Outcome{TaskID: t.ID, State: StateFailed, ErrKind: kind}})
}

// finishCancelled removes a task without recording history. Loop-only.
func (e *Engine) finishCancelled(t *Task) {
	t.State = StateCancelled
	t.ErrKind = apperr.KindCancelled
	t.FinishedAt = time.Now()
	e.removePending(t.ID)
	e.releaseKey(t)
	e.logger.Info("task cancelled", zap.String("task_id", t.ID))
	e.hub.publish(Event{Outcome: &Outcome{TaskID: t.ID, State: StateCancelled, ErrKind: apperr.KindCancelled}})
}

// record fires a history row for a completed or failed task. Best-effort.
func (e *Engine) record(t *Task) {
	if e.hist == nil {
		return
	}

	rec := history.Record{
		TaskID: t.ID,
		URL:    t.URL,
	}
	if t.Info != nil {
		rec.Title = t.Info.Title
		rec.Uploader = t.Info.DisplayAuthor()
		rec.Duration = t.Info.Duration
		rec.Extractor = t.Info.Extractor
	}
	if t.State == StateCompleted {
		rec.Status = history.StatusCompleted
		if len(t.Files) > 0 {
			rec.FilePath = t.Files[0]
			rec.ExtraFiles = t.Files[1:]
		}
	} else {
		rec.Status = history.StatusFailed
		rec.ErrorKind = string(t.ErrKind)
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.hist.Add(ctx, rec); err != nil {
			e.logger.Warn("history write failed",
				zap.String("task_id", rec.TaskID), zap.Error(err))
		}
	}()
}

func (e *Engine) releaseKey(t *Task) {
	if e.keys[t.Key] == t.ID {
		delete(e.keys, t.Key)
	}
}

func (e *Engine) removePending(id string) {
	for i, p := range e.pending {
		if p == id {
			e.pending = append(e.pending[:i], e.pending[i+1:]...)
			return
		}
	}
}

func (e *Engine) phase() Phase {
	switch {
	case e.halted:
		return PhaseError
	case e.activeID != "":
		return PhaseDownloading
	case e.probingID != "":
		return PhaseFetchingInfo
	default:
		return PhaseIdle
	}
}

func (e *Engine) snapshot() Snapshot {
	snap := Snapshot{
		Phase:        e.phase(),
		Halted:       e.halted,
		HaltKind:     e.haltKind,
		ActiveTaskID: e.activeID,
		QueueLength:  len(e.pending),
		Tasks:        make([]TaskView, 0, len(e.order)),
	}
	for _, id := range e.order {
		if t := e.tasks[id]; t != nil {
			snap.Tasks = append(snap.Tasks, t.view())
		}
	}
	return snap
}

func (e *Engine) publishSnapshot() {
	snap := e.snapshot()
	e.hub.publish(Event{Snapshot: &snap})
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) ||
		apperr.KindOf(err) == apperr.KindCancelled
}
