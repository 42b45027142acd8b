package media

// OptionKind tags a quick-pick entry.
type OptionKind string

const (
	OptionAudioFast    OptionKind = "audio_fast"
	OptionAudioClassic OptionKind = "audio_classic"
	OptionVideoFast    OptionKind = "video_fast"
	OptionVideo720     OptionKind = "video_720p"
	OptionVideo1080    OptionKind = "video_1080p"
	OptionVideo2K      OptionKind = "video_2k"
	OptionVideo4K      OptionKind = "video_4k"
)

var optionTiers = map[OptionKind]Tier{
	OptionVideoFast: TierFast,
	OptionVideo720:  Tier720p,
	OptionVideo1080: Tier1080p,
	OptionVideo2K:   Tier1440p,
	OptionVideo4K:   Tier2160p,
}

// QuickPick is one selectable entry of the simplified chooser: a resolved
// format plus its rendered size. Formats without a usable size estimate never
// appear here; they remain reachable through the full format list.
type QuickPick struct {
	Kind      OptionKind `json:"kind"`
	Format    Format     `json:"format"`
	SizeLabel string     `json:"size_label"`
}

// QuickPicks derives the quick-pick option set from a metadata snapshot:
// fast/classic audio first, then one entry per video tier that resolves to a
// distinct format. Deterministic for a given snapshot.
func QuickPicks(m *MediaInfo) []QuickPick {
	var out []QuickPick

	appendPick := func(kind OptionKind, f *Format) {
		if f == nil {
			return
		}
		size := f.EstimatedSize(m.Duration)
		if size <= 0 {
			return
		}
		out = append(out, QuickPick{Kind: kind, Format: *f, SizeLabel: HumanSize(size)})
	}

	fast := SelectAudio(m, false)
	classic := SelectAudio(m, true)
	appendPick(OptionAudioFast, fast)
	if classic != nil && (fast == nil || classic.ID != fast.ID) {
		appendPick(OptionAudioClassic, classic)
	}

	seen := map[string]bool{}
	for _, kind := range []OptionKind{OptionVideoFast, OptionVideo720, OptionVideo1080, OptionVideo2K, OptionVideo4K} {
		f := tierCandidate(m, optionTiers[kind])
		if f == nil || seen[f.ID] {
			continue
		}
		seen[f.ID] = true
		appendPick(kind, f)
	}

	return out
}
