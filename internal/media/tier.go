package media

// Tier is a target resolution bucket used for quick-pick selection.
type Tier int

const (
	TierFast    Tier = 360
	Tier720p    Tier = 720
	Tier1080p   Tier = 1080
	Tier1440p   Tier = 1440
	Tier2160p   Tier = 2160
	TierHighest Tier = 0
)

// tierOrder lists the defined tiers from highest to lowest. Fallback walks
// this list downward from the requested tier.
var tierOrder = []Tier{Tier2160p, Tier1440p, Tier1080p, Tier720p, TierFast}

// upperBound returns the exclusive height ceiling of the tier's window, or 0
// when the window is open-ended.
func (t Tier) upperBound() Tier {
	for i, tier := range tierOrder {
		if tier == t && i > 0 {
			return tierOrder[i-1]
		}
	}
	return 0
}

// findInWindow returns the first format with lo <= height < hi (hi 0 means
// unbounded) whose size estimate is known.
func findInWindow(formats []Format, lo, hi int, duration float64) *Format {
	for i := range formats {
		h := formats[i].Height
		if h < lo || (hi > 0 && h >= hi) {
			continue
		}
		if formats[i].SizeKnown(duration) {
			return &formats[i]
		}
	}
	return nil
}

// findAtMost returns the first format with height <= max and a known size.
func findAtMost(formats []Format, max int, duration float64) *Format {
	for i := range formats {
		if formats[i].Height > 0 && formats[i].Height <= max && formats[i].SizeKnown(duration) {
			return &formats[i]
		}
	}
	return nil
}

func firstSized(formats []Format, duration float64) *Format {
	for i := range formats {
		if formats[i].SizeKnown(duration) {
			return &formats[i]
		}
	}
	return nil
}

func lastSized(formats []Format, duration float64) *Format {
	for i := len(formats) - 1; i >= 0; i-- {
		if formats[i].SizeKnown(duration) {
			return &formats[i]
		}
	}
	return nil
}

// tierCandidate picks the representative format for a single tier without
// falling back to lower tiers. Search order within a tier: combined formats
// in the tier's height window, video-only formats in the window, then
// combined at-or-above the tier, then video-only at-or-above. The fast tier
// prefers small streams (height <= 360) and degrades to the first available.
// The top tier degrades to the last (largest) available. This ordering is
// what decides which format a user sees as "HD" versus "Fast", so it must be
// deterministic for a given metadata snapshot.
func tierCandidate(m *MediaInfo, tier Tier) *Format {
	combined := m.CombinedFormats()
	videoOnly := m.VideoOnlyFormats()
	d := m.Duration

	switch tier {
	case TierFast:
		if f := findAtMost(combined, 360, d); f != nil {
			return f
		}
		if f := findAtMost(videoOnly, 360, d); f != nil {
			return f
		}
		if f := firstSized(combined, d); f != nil {
			return f
		}
		return firstSized(videoOnly, d)

	case Tier2160p:
		if f := findInWindow(combined, 2160, 0, d); f != nil {
			return f
		}
		if f := findInWindow(videoOnly, 2160, 0, d); f != nil {
			return f
		}
		if f := lastSized(combined, d); f != nil {
			return f
		}
		return lastSized(videoOnly, d)

	default:
		lo := int(tier)
		hi := int(tier.upperBound())
		if f := findInWindow(combined, lo, hi, d); f != nil {
			return f
		}
		if f := findInWindow(videoOnly, lo, hi, d); f != nil {
			return f
		}
		if f := findInWindow(combined, lo, 0, d); f != nil {
			return f
		}
		return findInWindow(videoOnly, lo, 0, d)
	}
}

// SelectForTier resolves a requested tier to the best matching format using
// nearest-acceptable-tier fallback: the requested tier first, then each lower
// defined tier in turn. TierHighest starts from the top. Returns nil when the
// metadata has no sized format at all.
func SelectForTier(m *MediaInfo, tier Tier) *Format {
	start := 0
	if tier != TierHighest {
		for i, t := range tierOrder {
			if int(tier) >= int(t) {
				start = i
				break
			}
		}
	}
	for _, t := range tierOrder[start:] {
		if f := tierCandidate(m, t); f != nil {
			return f
		}
	}
	return nil
}

// SelectAudio resolves the audio quick-picks: classic prefers an mp3 stream,
// fast takes the first sized audio format.
func SelectAudio(m *MediaInfo, preferMP3 bool) *Format {
	audio := m.AudioFormats()
	d := m.Duration
	if preferMP3 {
		for i := range audio {
			if audio[i].Ext == "mp3" && audio[i].SizeKnown(d) {
				return &audio[i]
			}
		}
	}
	return firstSized(audio, d)
}
