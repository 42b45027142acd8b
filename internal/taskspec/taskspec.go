package taskspec

import (
	"fmt"
	"strings"

	"github.com/gainaura/aura/internal/apperr"
	"github.com/gainaura/aura/internal/media"
)

// ClipRange is one requested clip, seconds from the start of the media.
type ClipRange struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Options carries the user- and preference-driven knobs that shape a spec.
type Options struct {
	ExtractAudio      bool
	EmbedSubtitles    bool
	RestrictFilenames bool
	SplitByChapter    bool
	Clips             []ClipRange
	TitleOverride     string
	CustomCommand     string
	TargetTier        media.Tier

	// SubtitleLangs limits which subtitle tracks are fetched when
	// EmbedSubtitles is set. Empty means the backend default.
	SubtitleLangs []string
}

// Spec is the immutable, fully-resolved instruction set for one download.
// Built once; corrections require building a new Spec.
type Spec struct {
	URL               string      `json:"url"`
	FormatIDs         []string    `json:"format_ids,omitempty"` // 0 = backend best, 2 = separate mux
	OutputTemplate    string      `json:"output_template"`
	ExtractAudio      bool        `json:"extract_audio,omitempty"`
	EmbedSubtitles    bool        `json:"embed_subtitles,omitempty"`
	RestrictFilenames bool        `json:"restrict_filenames,omitempty"`
	SplitByChapter    bool        `json:"split_by_chapter,omitempty"`
	Clips             []ClipRange `json:"clips,omitempty"`
	TitleOverride     string      `json:"title_override,omitempty"`
	CustomCommand     string      `json:"custom_command,omitempty"`
	SubtitleLangs     []string    `json:"subtitle_langs,omitempty"`
}

// Build constructs a Spec from a probe result, 0-2 selected formats, and
// options. Zero formats means "let the backend choose best"; two means
// separate video+audio muxing. All preference reads arrive through opts and
// template so the transformation stays pure.
func Build(info *media.MediaInfo, selected []media.Format, opts Options, template string) (*Spec, error) {
	if info == nil {
		return nil, apperr.New(apperr.KindInvalidSelection, "metadata is required")
	}
	if err := ValidateTemplate(template); err != nil {
		return nil, err
	}
	if err := validateSelection(selected, opts); err != nil {
		return nil, err
	}

	url := info.OriginalURL
	if url == "" {
		return nil, apperr.New(apperr.KindInvalidSelection, "metadata carries no source URL")
	}

	ids := make([]string, 0, len(selected))
	for _, f := range selected {
		ids = append(ids, f.ID)
	}

	return &Spec{
		URL:               url,
		FormatIDs:         ids,
		OutputTemplate:    template,
		ExtractAudio:      opts.ExtractAudio,
		EmbedSubtitles:    opts.EmbedSubtitles,
		RestrictFilenames: opts.RestrictFilenames,
		SplitByChapter:    opts.SplitByChapter,
		Clips:             opts.Clips,
		TitleOverride:     strings.TrimSpace(opts.TitleOverride),
		CustomCommand:     strings.TrimSpace(opts.CustomCommand),
		SubtitleLangs:     opts.SubtitleLangs,
	}, nil
}

// BuildForTier resolves a quick-pick tier against the metadata and builds the
// spec from the winner. Audio extraction routes through the audio quick-picks
// (classic MP3 preferred) instead of the video tiers.
func BuildForTier(info *media.MediaInfo, opts Options, template string) (*Spec, error) {
	if info == nil {
		return nil, apperr.New(apperr.KindInvalidSelection, "metadata is required")
	}

	var pick *media.Format
	if opts.ExtractAudio {
		pick = media.SelectAudio(info, true)
	} else {
		pick = media.SelectForTier(info, opts.TargetTier)
	}

	if pick == nil {
		// Nothing sized to pick from; defer the choice to the backend.
		return Build(info, nil, opts, template)
	}
	return Build(info, []media.Format{*pick}, opts, template)
}

func validateSelection(selected []media.Format, opts Options) error {
	if len(selected) > 2 {
		return apperr.New(apperr.KindInvalidSelection,
			fmt.Sprintf("at most 2 formats may be selected, got %d", len(selected)))
	}

	for _, f := range selected {
		if !f.Valid() {
			return apperr.New(apperr.KindInvalidSelection,
				fmt.Sprintf("format %q carries neither audio nor video", f.ID))
		}
		if opts.ExtractAudio && f.VideoOnly() {
			return apperr.New(apperr.KindInvalidSelection,
				fmt.Sprintf("format %q is video-only but audio extraction was requested", f.ID))
		}
	}

	if len(selected) == 2 {
		hasVideo := selected[0].HasVideo() || selected[1].HasVideo()
		hasAudio := selected[0].HasAudio() || selected[1].HasAudio()
		if !hasVideo || !hasAudio {
			return apperr.New(apperr.KindInvalidSelection,
				"separate-stream selection needs one video and one audio format")
		}
	}

	for _, c := range opts.Clips {
		if c.End <= c.Start || c.Start < 0 {
			return apperr.New(apperr.KindInvalidSelection,
				fmt.Sprintf("clip range %.1f-%.1f is invalid", c.Start, c.End))
		}
	}

	return nil
}

const extPlaceholder = "%(ext)s"

var baseNamePlaceholders = []string{"%(title)s", "%(id)s"}

// ValidateTemplate enforces the one quasi-format contract the engine owns:
// an output-naming template must contain a base-name placeholder (title or
// id) and must end with the extension placeholder.
func ValidateTemplate(template string) error {
	if strings.TrimSpace(template) == "" {
		return apperr.New(apperr.KindInvalidSelection, "output template is empty")
	}
	if !strings.HasSuffix(template, extPlaceholder) {
		return apperr.New(apperr.KindInvalidSelection,
			fmt.Sprintf("output template must end with %s", extPlaceholder))
	}
	for _, p := range baseNamePlaceholders {
		if strings.Contains(template, p) {
			return nil
		}
	}
	return apperr.New(apperr.KindInvalidSelection,
		"output template needs a base-name placeholder (%(title)s or %(id)s)")
}
