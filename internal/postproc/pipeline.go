package postproc

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/gainaura/aura/internal/apperr"
	"github.com/gainaura/aura/internal/taskspec"
	"github.com/gainaura/aura/pkg/storage"
)

// Remuxer performs the corrective audio remux of step 2.
type Remuxer interface {
	RemuxAudio(inputPath, format string) (string, error)
}

// Result is the outcome of a successful pipeline run.
type Result struct {
	PrimaryPath string
	Companions  []string
	Degraded    bool
	Warnings    []string
}

// Pipeline applies the ordered post-fetch steps: classification, corrective
// remux, placement into the output directory, shared-library export. Only a
// placement failure fails the overall task; remux and export failures
// degrade it.
type Pipeline struct {
	placer  storage.Placer
	library storage.Library
	remux   Remuxer
	logger  *zap.Logger
}

// New creates a pipeline. library and remux may be nil, disabling their
// steps.
func New(placer storage.Placer, library storage.Library, remux Remuxer, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		placer:  placer,
		library: library,
		remux:   remux,
		logger:  logger,
	}
}

// Run processes the fetched files for one task.
func (p *Pipeline) Run(ctx context.Context, spec *taskspec.Spec, fetched []string) (Result, error) {
	var res Result

	// Step 1: classify produced files by role.
	c := Classify(fetched)
	if c.Primary == "" {
		return res, apperr.New(apperr.KindExtraction, "no media file among backend outputs")
	}

	// Step 2: corrective remux when audio extraction came back in a video
	// container. A missed conversion is not fatal.
	primary := c.Primary
	if spec.ExtractAudio && !IsAudioContainer(primary) && p.remux != nil {
		remuxed, err := p.remux.RemuxAudio(primary, "mp3")
		if err != nil {
			p.logger.Warn("corrective remux failed, keeping original container",
				zap.String("file", primary),
				zap.Error(err),
			)
			res.Warnings = append(res.Warnings, fmt.Sprintf("audio conversion failed: %v", err))
		} else {
			primary = remuxed
		}
	}

	// Step 3: move the primary into the canonical output directory. The only
	// fatal step.
	placed, err := p.placer.Place(ctx, primary, filepath.Base(primary))
	if err != nil {
		return res, apperr.Wrap(placementKind(err), "cannot place output file", err)
	}
	res.PrimaryPath = placed

	// Companions follow best-effort.
	for _, sidecar := range append(append([]string{}, c.Subtitles...), c.Thumbnails...) {
		moved, err := p.placer.Place(ctx, sidecar, filepath.Base(sidecar))
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("sidecar %s not placed: %v", filepath.Base(sidecar), err))
			continue
		}
		res.Companions = append(res.Companions, moved)
	}

	// Step 4: shared-library export. Failure keeps the app-owned copy and
	// degrades the task instead of failing it.
	if p.library != nil {
		if _, err := p.library.Export(ctx, res.PrimaryPath, storage.RolePrimary); err != nil {
			p.logger.Warn("library export failed, keeping app-owned copy",
				zap.String("file", res.PrimaryPath),
				zap.Error(err),
			)
			res.Degraded = true
			res.Warnings = append(res.Warnings, fmt.Sprintf("library export failed: %v", err))
		} else {
			for _, companion := range res.Companions {
				role := storage.RoleThumbnail
				if subtitleExts[strings.ToLower(filepath.Ext(companion))] {
					role = storage.RoleSubtitle
				}
				if _, err := p.library.Export(ctx, companion, role); err != nil {
					res.Warnings = append(res.Warnings, fmt.Sprintf("companion export failed: %v", err))
				}
			}
		}
	}

	return res, nil
}

// placementKind distinguishes a full disk, which halts the whole queue, from
// an ordinary placement failure.
func placementKind(err error) apperr.Kind {
	if errors.Is(err, syscall.ENOSPC) || strings.Contains(strings.ToLower(err.Error()), "no space left") {
		return apperr.KindDiskFull
	}
	return apperr.KindInternal
}
