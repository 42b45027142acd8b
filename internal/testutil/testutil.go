// Package testutil provides in-memory fakes for the engine's collaborators.
package testutil

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/gainaura/aura/internal/extractor"
	"github.com/gainaura/aura/internal/history"
	"github.com/gainaura/aura/internal/postproc"
	"github.com/gainaura/aura/internal/taskspec"
)

// FakeGateway scripts probe and fetch outcomes per URL.
type FakeGateway struct {
	mu sync.Mutex

	// ProbeFunc handles Probe when set.
	ProbeFunc func(ctx context.Context, url string) (*extractor.ProbeResult, error)

	// FetchFunc handles Fetch when set.
	FetchFunc func(ctx context.Context, spec *taskspec.Spec, onProgress func(extractor.Progress)) ([]string, error)

	probeCalls []string
	fetchCalls []*taskspec.Spec
}

func (g *FakeGateway) Probe(ctx context.Context, url string) (*extractor.ProbeResult, error) {
	g.mu.Lock()
	g.probeCalls = append(g.probeCalls, url)
	fn := g.ProbeFunc
	g.mu.Unlock()

	if fn == nil {
		return nil, context.Canceled
	}
	return fn(ctx, url)
}

func (g *FakeGateway) Fetch(ctx context.Context, spec *taskspec.Spec, onProgress func(extractor.Progress)) ([]string, error) {
	g.mu.Lock()
	g.fetchCalls = append(g.fetchCalls, spec)
	fn := g.FetchFunc
	g.mu.Unlock()

	if fn == nil {
		return nil, context.Canceled
	}
	return fn(ctx, spec, onProgress)
}

// ProbeCalls returns the URLs probed so far.
func (g *FakeGateway) ProbeCalls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.probeCalls...)
}

// FetchCalls returns the specs fetched so far.
func (g *FakeGateway) FetchCalls() []*taskspec.Spec {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*taskspec.Spec(nil), g.fetchCalls...)
}

// FakePipeline scripts the post-processing outcome.
type FakePipeline struct {
	mu sync.Mutex

	// RunFunc handles Run when set; the default passes the first fetched
	// file through unchanged.
	RunFunc func(ctx context.Context, spec *taskspec.Spec, fetched []string) (postproc.Result, error)

	runs [][]string
}

func (p *FakePipeline) Run(ctx context.Context, spec *taskspec.Spec, fetched []string) (postproc.Result, error) {
	p.mu.Lock()
	p.runs = append(p.runs, fetched)
	fn := p.RunFunc
	p.mu.Unlock()

	if fn == nil {
		primary := ""
		if len(fetched) > 0 {
			primary = fetched[0]
		}
		return postproc.Result{PrimaryPath: primary}, nil
	}
	return fn(ctx, spec, fetched)
}

// Runs returns the fetched-file sets handed to the pipeline.
func (p *FakePipeline) Runs() [][]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]string(nil), p.runs...)
}

// MemoryHistory collects records in memory.
type MemoryHistory struct {
	mu      sync.Mutex
	records []history.Record

	// Err, when set, is returned from Add.
	Err error
}

func (m *MemoryHistory) Add(ctx context.Context, rec history.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.records = append(m.records, rec)
	return nil
}

// Records returns the collected records.
func (m *MemoryHistory) Records() []history.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]history.Record(nil), m.records...)
}

// StubGate is a toggleable download gate.
type StubGate struct {
	open atomic.Bool
}

// NewStubGate returns a gate in the given state.
func NewStubGate(open bool) *StubGate {
	g := &StubGate{}
	g.open.Store(open)
	return g
}

func (g *StubGate) DownloadAllowed() bool { return g.open.Load() }

// Set flips the gate.
func (g *StubGate) Set(open bool) { g.open.Store(open) }
