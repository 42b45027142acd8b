package extractor

import (
	"context"

	"github.com/gainaura/aura/internal/media"
	"github.com/gainaura/aura/internal/taskspec"
)

// ProbeResult is the outcome of a metadata probe: exactly one of Info or
// Playlist is set.
type ProbeResult struct {
	Info     *media.MediaInfo
	Playlist *media.PlaylistInfo
}

// Progress is one fetch progress report.
type Progress struct {
	Percent float64
	Stage   string
	Message string
}

// Gateway is the boundary to the extraction backend. Both calls are
// long-running and cancel through their context; Fetch must resolve with a
// cancelled error within a bounded grace period and must not leave partial
// output behind.
type Gateway interface {
	Probe(ctx context.Context, url string) (*ProbeResult, error)
	Fetch(ctx context.Context, spec *taskspec.Spec, onProgress func(Progress)) ([]string, error)
}
