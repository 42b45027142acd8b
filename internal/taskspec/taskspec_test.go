package taskspec

import (
	"testing"

	"github.com/gainaura/aura/internal/apperr"
	"github.com/gainaura/aura/internal/media"
)

const tmpl = "%(title)s.%(ext)s"

func testInfo() *media.MediaInfo {
	return &media.MediaInfo{
		Title:       "clip",
		Duration:    120,
		OriginalURL: "https://example.com/watch?v=abc",
		Formats: []media.Format{
			{ID: "v1080", Ext: "mp4", Height: 1080, VideoCodec: "avc1", AudioCodec: "none", FileSize: 5000},
			{ID: "a1", Ext: "m4a", AudioCodec: "mp4a", VideoCodec: "none", FileSize: 800},
			{ID: "c720", Ext: "mp4", Height: 720, VideoCodec: "avc1", AudioCodec: "mp4a", FileSize: 4000},
		},
	}
}

func format(t *testing.T, info *media.MediaInfo, id string) media.Format {
	t.Helper()
	f, ok := info.FormatByID(id)
	if !ok {
		t.Fatalf("test format %q missing", id)
	}
	return f
}

func TestBuild_SingleFormat(t *testing.T) {
	info := testInfo()
	spec, err := Build(info, []media.Format{format(t, info, "c720")}, Options{}, tmpl)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if spec.URL != info.OriginalURL {
		t.Errorf("expected URL %q, got %q", info.OriginalURL, spec.URL)
	}
	if len(spec.FormatIDs) != 1 || spec.FormatIDs[0] != "c720" {
		t.Errorf("expected format IDs [c720], got %v", spec.FormatIDs)
	}
}

func TestBuild_TwoFormatsNeedVideoAndAudio(t *testing.T) {
	info := testInfo()

	// Valid pair: video-only + audio-only.
	_, err := Build(info, []media.Format{format(t, info, "v1080"), format(t, info, "a1")}, Options{}, tmpl)
	if err != nil {
		t.Fatalf("video+audio pair rejected: %v", err)
	}

	// Invalid pair: two video-only streams.
	v := format(t, info, "v1080")
	_, err = Build(info, []media.Format{v, v}, Options{}, tmpl)
	if !apperr.IsKind(err, apperr.KindInvalidSelection) {
		t.Errorf("expected invalid_selection for video-only pair, got %v", err)
	}
}

func TestBuild_RejectsTooManyFormats(t *testing.T) {
	info := testInfo()
	f := format(t, info, "c720")
	_, err := Build(info, []media.Format{f, f, f}, Options{}, tmpl)
	if !apperr.IsKind(err, apperr.KindInvalidSelection) {
		t.Errorf("expected invalid_selection for 3 formats, got %v", err)
	}
}

func TestBuild_ExtractAudioRejectsVideoOnly(t *testing.T) {
	info := testInfo()
	_, err := Build(info, []media.Format{format(t, info, "v1080")}, Options{ExtractAudio: true}, tmpl)
	if !apperr.IsKind(err, apperr.KindInvalidSelection) {
		t.Errorf("expected invalid_selection, got %v", err)
	}
}

func TestBuild_RejectsBadClips(t *testing.T) {
	info := testInfo()
	tests := []ClipRange{
		{Start: 30, End: 10},
		{Start: -1, End: 10},
		{Start: 5, End: 5},
	}
	for _, clip := range tests {
		_, err := Build(info, nil, Options{Clips: []ClipRange{clip}}, tmpl)
		if !apperr.IsKind(err, apperr.KindInvalidSelection) {
			t.Errorf("clip %+v: expected invalid_selection, got %v", clip, err)
		}
	}
}

func TestBuild_EmptySelectionDefersToBackend(t *testing.T) {
	info := testInfo()
	spec, err := Build(info, nil, Options{}, tmpl)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(spec.FormatIDs) != 0 {
		t.Errorf("expected no format IDs, got %v", spec.FormatIDs)
	}
}

func TestBuild_CustomCommandSkipsFormatChecks(t *testing.T) {
	info := testInfo()
	opts := Options{CustomCommand: "-f bestvideo+bestaudio --concurrent-fragments 4"}

	spec, err := Build(info, nil, opts, tmpl)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if spec.CustomCommand != opts.CustomCommand {
		t.Errorf("CustomCommand = %q, expected %q", spec.CustomCommand, opts.CustomCommand)
	}
	if len(spec.FormatIDs) != 0 {
		t.Errorf("expected no format IDs, got %v", spec.FormatIDs)
	}

	// The output template contract still applies to override runs.
	if _, err := Build(info, nil, opts, "download.mp4"); !apperr.IsKind(err, apperr.KindInvalidSelection) {
		t.Errorf("expected invalid_selection for bad template, got %v", err)
	}
}

func TestBuildForTier_AudioRoute(t *testing.T) {
	info := testInfo()
	spec, err := BuildForTier(info, Options{ExtractAudio: true}, tmpl)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(spec.FormatIDs) != 1 || spec.FormatIDs[0] != "a1" {
		t.Errorf("expected audio format a1, got %v", spec.FormatIDs)
	}
	if !spec.ExtractAudio {
		t.Error("expected ExtractAudio carried into the spec")
	}
}

func TestValidateTemplate(t *testing.T) {
	tests := []struct {
		template string
		ok       bool
	}{
		{"%(title)s.%(ext)s", true},
		{"%(id)s.%(ext)s", true},
		{"media/%(title)s [%(id)s].%(ext)s", true},
		{"", false},
		{"   ", false},
		{"%(title)s.mp4", false},
		{"download.%(ext)s", false},
	}

	for _, test := range tests {
		err := ValidateTemplate(test.template)
		if test.ok && err != nil {
			t.Errorf("ValidateTemplate(%q) = %v, expected nil", test.template, err)
		}
		if !test.ok && !apperr.IsKind(err, apperr.KindInvalidSelection) {
			t.Errorf("ValidateTemplate(%q) = %v, expected invalid_selection", test.template, err)
		}
	}
}
