package media

import "fmt"

// Format is one concrete encoded stream a source URL can yield. Field names
// and JSON tags follow the extraction backend's info dump.
type Format struct {
	ID             string  `json:"format_id"`
	Ext            string  `json:"ext"`
	FormatNote     string  `json:"format_note,omitempty"`
	VideoCodec     string  `json:"vcodec,omitempty"`
	AudioCodec     string  `json:"acodec,omitempty"`
	Width          int     `json:"width,omitempty"`
	Height         int     `json:"height,omitempty"`
	FPS            float64 `json:"fps,omitempty"`
	TBR            float64 `json:"tbr,omitempty"`
	FileSize       int64   `json:"filesize,omitempty"`
	FileSizeApprox int64   `json:"filesize_approx,omitempty"`
}

// codecPresent reports whether a codec field names an actual codec. The
// backend uses "none" (and sometimes an empty string) for absent streams.
func codecPresent(codec string) bool {
	return codec != "" && codec != "none"
}

// HasVideo reports whether the format carries a video stream.
func (f Format) HasVideo() bool {
	return codecPresent(f.VideoCodec)
}

// HasAudio reports whether the format carries an audio stream.
func (f Format) HasAudio() bool {
	return codecPresent(f.AudioCodec)
}

// AudioOnly reports an audio stream without video.
func (f Format) AudioOnly() bool {
	return f.HasAudio() && !f.HasVideo()
}

// VideoOnly reports a video stream without audio.
func (f Format) VideoOnly() bool {
	return f.HasVideo() && !f.HasAudio()
}

// Combined reports a muxed video+audio stream.
func (f Format) Combined() bool {
	return f.HasVideo() && f.HasAudio()
}

// Valid reports whether the format is selectable at all. A format missing
// both codecs (storyboards, mhtml fragments) is excluded from every set.
func (f Format) Valid() bool {
	return f.HasVideo() || f.HasAudio()
}

// EstimatedSize returns the byte size estimate for the format given the
// media duration in seconds. Order: exact size, approximate size, then
// duration * tbr * 125 (kbit/s to bytes/s). Non-positive means unknown.
func (f Format) EstimatedSize(durationSec float64) int64 {
	if f.FileSize > 0 {
		return f.FileSize
	}
	if f.FileSizeApprox > 0 {
		return f.FileSizeApprox
	}
	if durationSec > 0 && f.TBR > 0 {
		return int64(durationSec * f.TBR * 125.0)
	}
	return 0
}

// SizeKnown reports whether a usable size estimate exists. Formats without
// one are hidden from quick-pick lists but stay available for manual
// selection.
func (f Format) SizeKnown(durationSec float64) bool {
	return f.EstimatedSize(durationSec) > 0
}

// Label returns a short human description, e.g. "1080p mp4" or "m4a audio".
func (f Format) Label() string {
	switch {
	case f.Height > 0:
		return fmt.Sprintf("%dp %s", f.Height, f.Ext)
	case f.AudioOnly():
		return fmt.Sprintf("%s audio", f.Ext)
	default:
		return f.Ext
	}
}

// HumanSize renders a byte count the way the selection UI shows it: KB below
// 1 MB, MB up to 1024 MB, GB above.
func HumanSize(bytes int64) string {
	if bytes <= 0 {
		return ""
	}
	sizeMB := float64(bytes) / (1024.0 * 1024.0)
	switch {
	case sizeMB >= 1024:
		return fmt.Sprintf("%.2f GB", sizeMB/1024.0)
	case sizeMB >= 1:
		return fmt.Sprintf("%.1f MB", sizeMB)
	default:
		return fmt.Sprintf("%.0f KB", sizeMB*1024.0)
	}
}
