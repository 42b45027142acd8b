package media

import "testing"

func sampleInfo(formats ...Format) *MediaInfo {
	return &MediaInfo{
		Title:    "sample",
		Duration: 300,
		Formats:  formats,
	}
}

func combinedAt(id string, height int) Format {
	return Format{
		ID: id, Ext: "mp4", Height: height,
		VideoCodec: "avc1", AudioCodec: "mp4a",
		FileSize: int64(height) * 1000,
	}
}

func videoOnlyAt(id string, height int) Format {
	return Format{
		ID: id, Ext: "webm", Height: height,
		VideoCodec: "vp9", AudioCodec: "none",
		FileSize: int64(height) * 800,
	}
}

func TestSelectForTier_WindowMatch(t *testing.T) {
	info := sampleInfo(
		combinedAt("f360", 360),
		combinedAt("f720", 720),
		combinedAt("f1080", 1080),
	)

	got := SelectForTier(info, Tier1080p)
	if got == nil || got.ID != "f1080" {
		t.Fatalf("expected f1080, got %+v", got)
	}
}

func TestSelectForTier_HigherFormatOutsideWindow(t *testing.T) {
	// No format inside [1080, 1440); the next acceptable is the combined
	// format at or above the requested height.
	info := sampleInfo(
		combinedAt("f360", 360),
		combinedAt("f720", 720),
		combinedAt("f1440", 1440),
	)

	got := SelectForTier(info, Tier1080p)
	if got == nil || got.ID != "f1440" {
		t.Fatalf("expected f1440, got %+v", got)
	}
}

func TestSelectForTier_FallsBackToLowerTier(t *testing.T) {
	info := sampleInfo(
		combinedAt("f360", 360),
		combinedAt("f720", 720),
	)

	got := SelectForTier(info, Tier2160p)
	if got == nil || got.ID != "f720" {
		t.Fatalf("expected f720 (largest available), got %+v", got)
	}
}

func TestSelectForTier_PrefersCombinedOverVideoOnly(t *testing.T) {
	info := sampleInfo(
		videoOnlyAt("v1080", 1080),
		combinedAt("c1080", 1080),
	)

	got := SelectForTier(info, Tier1080p)
	if got == nil || got.ID != "c1080" {
		t.Fatalf("expected c1080, got %+v", got)
	}
}

func TestSelectForTier_FastPrefersSmall(t *testing.T) {
	info := sampleInfo(
		combinedAt("f1080", 1080),
		combinedAt("f240", 240),
	)

	got := SelectForTier(info, TierFast)
	if got == nil || got.ID != "f240" {
		t.Fatalf("expected f240, got %+v", got)
	}
}

func TestSelectForTier_Deterministic(t *testing.T) {
	info := sampleInfo(
		combinedAt("a", 720),
		combinedAt("b", 720),
	)

	first := SelectForTier(info, Tier720p)
	for i := 0; i < 10; i++ {
		again := SelectForTier(info, Tier720p)
		if again == nil || again.ID != first.ID {
			t.Fatalf("selection changed between runs: %+v vs %+v", first, again)
		}
	}
}

func TestSelectForTier_NoSizedFormats(t *testing.T) {
	info := sampleInfo(Format{ID: "x", Height: 720, VideoCodec: "avc1", AudioCodec: "mp4a"})
	info.Duration = 0 // no duration, no tbr: size unknown

	if got := SelectForTier(info, Tier720p); got != nil {
		t.Fatalf("expected nil for unsized formats, got %+v", got)
	}
}

func TestSelectAudio(t *testing.T) {
	opus := Format{ID: "opus", Ext: "webm", AudioCodec: "opus", VideoCodec: "none", FileSize: 900}
	mp3 := Format{ID: "mp3", Ext: "mp3", AudioCodec: "mp3", VideoCodec: "none", FileSize: 1200}
	info := sampleInfo(opus, mp3)

	classic := SelectAudio(info, true)
	if classic == nil || classic.ID != "mp3" {
		t.Errorf("classic pick: expected mp3, got %+v", classic)
	}

	fast := SelectAudio(info, false)
	if fast == nil || fast.ID != "opus" {
		t.Errorf("fast pick: expected opus (first sized), got %+v", fast)
	}

	noMP3 := sampleInfo(opus)
	if got := SelectAudio(noMP3, true); got == nil || got.ID != "opus" {
		t.Errorf("classic without mp3 stream: expected opus fallback, got %+v", got)
	}
}
