package postproc

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"go.uber.org/zap"

	"github.com/gainaura/aura/internal/apperr"
	"github.com/gainaura/aura/internal/taskspec"
	"github.com/gainaura/aura/pkg/storage"
)

type stubPlacer struct {
	dir string
	err error
}

func (p *stubPlacer) Place(ctx context.Context, srcPath, name string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	return filepath.Join(p.dir, name), nil
}

type stubLibrary struct {
	err     error
	exports []string
}

func (l *stubLibrary) Export(ctx context.Context, path string, role storage.FileRole) (string, error) {
	if l.err != nil {
		return "", l.err
	}
	l.exports = append(l.exports, path)
	return "/library/" + filepath.Base(path), nil
}

type stubRemuxer struct {
	err   error
	calls []string
}

func (r *stubRemuxer) RemuxAudio(inputPath, format string) (string, error) {
	r.calls = append(r.calls, inputPath)
	if r.err != nil {
		return "", r.err
	}
	return inputPath + "." + format, nil
}

func writeTemp(t *testing.T, dir, name string, size int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, make([]byte, size), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestClassify_LargestMediaWins(t *testing.T) {
	dir := t.TempDir()
	small := writeTemp(t, dir, "chapter1.mp4", 100)
	large := writeTemp(t, dir, "full.mp4", 1000)
	thumb := writeTemp(t, dir, "full.webp", 10)
	subs := writeTemp(t, dir, "full.en.srt", 5)

	c := Classify([]string{small, large, thumb, subs})
	if c.Primary != large {
		t.Errorf("expected primary %s, got %s", large, c.Primary)
	}
	if len(c.Thumbnails) != 1 || c.Thumbnails[0] != thumb {
		t.Errorf("thumbnails = %v", c.Thumbnails)
	}
	if len(c.Subtitles) != 1 || c.Subtitles[0] != subs {
		t.Errorf("subtitles = %v", c.Subtitles)
	}
}

func TestPipeline_NoMediaFileFails(t *testing.T) {
	p := New(&stubPlacer{dir: "/out"}, nil, nil, zap.NewNop())

	dir := t.TempDir()
	thumb := writeTemp(t, dir, "clip.webp", 10)

	_, err := p.Run(context.Background(), &taskspec.Spec{}, []string{thumb})
	if !apperr.IsKind(err, apperr.KindExtraction) {
		t.Errorf("expected extraction error, got %v", err)
	}
}

func TestPipeline_PlacesPrimaryAndCompanions(t *testing.T) {
	dir := t.TempDir()
	video := writeTemp(t, dir, "clip.mp4", 1000)
	thumb := writeTemp(t, dir, "clip.webp", 10)

	lib := &stubLibrary{}
	p := New(&stubPlacer{dir: "/out"}, lib, nil, zap.NewNop())

	res, err := p.Run(context.Background(), &taskspec.Spec{}, []string{video, thumb})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.PrimaryPath != "/out/clip.mp4" {
		t.Errorf("primary = %s", res.PrimaryPath)
	}
	if len(res.Companions) != 1 || res.Companions[0] != "/out/clip.webp" {
		t.Errorf("companions = %v", res.Companions)
	}
	if res.Degraded {
		t.Error("successful run must not be degraded")
	}
	if len(lib.exports) != 2 {
		t.Errorf("expected primary+companion exported, got %v", lib.exports)
	}
}

func TestPipeline_DiskFullOnPlacement(t *testing.T) {
	dir := t.TempDir()
	video := writeTemp(t, dir, "clip.mp4", 1000)

	p := New(&stubPlacer{err: syscall.ENOSPC}, nil, nil, zap.NewNop())

	_, err := p.Run(context.Background(), &taskspec.Spec{}, []string{video})
	if !apperr.IsKind(err, apperr.KindDiskFull) {
		t.Errorf("expected disk_full, got %v", err)
	}
}

func TestPipeline_GenericPlacementFailure(t *testing.T) {
	dir := t.TempDir()
	video := writeTemp(t, dir, "clip.mp4", 1000)

	p := New(&stubPlacer{err: errors.New("permission denied")}, nil, nil, zap.NewNop())

	_, err := p.Run(context.Background(), &taskspec.Spec{}, []string{video})
	if !apperr.IsKind(err, apperr.KindInternal) {
		t.Errorf("expected internal, got %v", err)
	}
}

func TestPipeline_CorrectiveRemux(t *testing.T) {
	dir := t.TempDir()
	video := writeTemp(t, dir, "clip.mp4", 1000)

	remux := &stubRemuxer{}
	p := New(&stubPlacer{dir: "/out"}, nil, remux, zap.NewNop())

	res, err := p.Run(context.Background(), &taskspec.Spec{ExtractAudio: true}, []string{video})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(remux.calls) != 1 || remux.calls[0] != video {
		t.Errorf("expected remux of %s, got %v", video, remux.calls)
	}
	if res.PrimaryPath != "/out/clip.mp4.mp3" {
		t.Errorf("primary = %s, expected remuxed name", res.PrimaryPath)
	}
}

func TestPipeline_RemuxSkippedForAudioContainer(t *testing.T) {
	dir := t.TempDir()
	audio := writeTemp(t, dir, "clip.mp3", 1000)

	remux := &stubRemuxer{}
	p := New(&stubPlacer{dir: "/out"}, nil, remux, zap.NewNop())

	if _, err := p.Run(context.Background(), &taskspec.Spec{ExtractAudio: true}, []string{audio}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(remux.calls) != 0 {
		t.Errorf("remux must be skipped for audio containers, got %v", remux.calls)
	}
}

func TestPipeline_RemuxFailureDegradesToWarning(t *testing.T) {
	dir := t.TempDir()
	video := writeTemp(t, dir, "clip.mp4", 1000)

	remux := &stubRemuxer{err: errors.New("codec missing")}
	p := New(&stubPlacer{dir: "/out"}, nil, remux, zap.NewNop())

	res, err := p.Run(context.Background(), &taskspec.Spec{ExtractAudio: true}, []string{video})
	if err != nil {
		t.Fatalf("remux failure must not fail the task: %v", err)
	}
	if res.PrimaryPath != "/out/clip.mp4" {
		t.Errorf("expected original container kept, got %s", res.PrimaryPath)
	}
	if len(res.Warnings) == 0 {
		t.Error("expected a warning for the failed conversion")
	}
}

func TestPipeline_LibraryFailureDegrades(t *testing.T) {
	dir := t.TempDir()
	video := writeTemp(t, dir, "clip.mp4", 1000)

	lib := &stubLibrary{err: errors.New("volume unavailable")}
	p := New(&stubPlacer{dir: "/out"}, lib, nil, zap.NewNop())

	res, err := p.Run(context.Background(), &taskspec.Spec{}, []string{video})
	if err != nil {
		t.Fatalf("library failure must not fail the task: %v", err)
	}
	if !res.Degraded {
		t.Error("expected degraded result")
	}
	if res.PrimaryPath != "/out/clip.mp4" {
		t.Errorf("app-owned copy must survive, got %s", res.PrimaryPath)
	}
}
