package media

// MediaInfo aggregates everything a successful probe discovered about one
// playable URL. Immutable once constructed; consumed to build a task spec.
type MediaInfo struct {
	ID          string   `json:"id,omitempty"`
	Title       string   `json:"title"`
	Uploader    string   `json:"uploader,omitempty"`
	Channel     string   `json:"channel,omitempty"`
	Duration    float64  `json:"duration,omitempty"` // seconds, 0 = unknown
	Thumbnail   string   `json:"thumbnail,omitempty"`
	Extractor   string   `json:"extractor,omitempty"`
	OriginalURL string   `json:"original_url,omitempty"`
	Formats     []Format `json:"formats,omitempty"`
}

// SelectableFormats returns the formats that may appear in any selection set,
// dropping entries missing both codecs.
func (m *MediaInfo) SelectableFormats() []Format {
	out := make([]Format, 0, len(m.Formats))
	for _, f := range m.Formats {
		if f.Valid() {
			out = append(out, f)
		}
	}
	return out
}

// AudioFormats returns the audio-only formats in backend order.
func (m *MediaInfo) AudioFormats() []Format {
	var out []Format
	for _, f := range m.Formats {
		if f.AudioOnly() {
			out = append(out, f)
		}
	}
	return out
}

// CombinedFormats returns muxed video+audio formats in backend order.
func (m *MediaInfo) CombinedFormats() []Format {
	var out []Format
	for _, f := range m.Formats {
		if f.Combined() {
			out = append(out, f)
		}
	}
	return out
}

// VideoOnlyFormats returns video-without-audio formats in backend order.
func (m *MediaInfo) VideoOnlyFormats() []Format {
	var out []Format
	for _, f := range m.Formats {
		if f.VideoOnly() {
			out = append(out, f)
		}
	}
	return out
}

// FormatByID looks up a format by its backend identifier.
func (m *MediaInfo) FormatByID(id string) (Format, bool) {
	for _, f := range m.Formats {
		if f.ID == id {
			return f, true
		}
	}
	return Format{}, false
}

// DisplayAuthor prefers the uploader name, falling back to the channel.
func (m *MediaInfo) DisplayAuthor() string {
	if m.Uploader != "" {
		return m.Uploader
	}
	return m.Channel
}

// PlaylistItem is one entry of a discovered collection.
type PlaylistItem struct {
	URL      string  `json:"url"`
	Title    string  `json:"title,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

// PlaylistInfo is the alternative probe outcome when the input URL refers to
// a collection. Mutually exclusive with MediaInfo.
type PlaylistInfo struct {
	Title   string         `json:"title,omitempty"`
	Entries []PlaylistItem `json:"entries"`
}
