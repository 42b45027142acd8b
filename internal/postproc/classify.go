package postproc

import (
	"os"
	"path/filepath"
	"strings"
)

// Classified groups a fetch's produced files by role: one primary media
// file, plus optional thumbnail and subtitle sidecars.
type Classified struct {
	Primary    string
	Thumbnails []string
	Subtitles  []string
}

var (
	subtitleExts  = map[string]bool{".srt": true, ".vtt": true, ".ass": true, ".lrc": true}
	thumbnailExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true}
	audioExts     = map[string]bool{".mp3": true, ".m4a": true, ".aac": true, ".opus": true, ".flac": true, ".wav": true, ".ogg": true}
	videoExts     = map[string]bool{".mp4": true, ".mkv": true, ".webm": true, ".mov": true, ".avi": true, ".ts": true}
)

// Classify sorts files into roles by extension. When several media files are
// present (separate chapters, leftovers from merging) the largest wins as
// primary and the rest are dropped from the roles.
func Classify(files []string) Classified {
	var c Classified
	var bestSize int64 = -1

	for _, f := range files {
		ext := strings.ToLower(filepath.Ext(f))
		switch {
		case subtitleExts[ext]:
			c.Subtitles = append(c.Subtitles, f)
		case thumbnailExts[ext]:
			c.Thumbnails = append(c.Thumbnails, f)
		case audioExts[ext] || videoExts[ext]:
			size := fileSize(f)
			if size > bestSize {
				bestSize = size
				c.Primary = f
			}
		}
	}
	return c
}

// IsAudioContainer reports whether the file's extension is an audio
// container. Used to detect a container mismatch after audio extraction.
func IsAudioContainer(path string) bool {
	return audioExts[strings.ToLower(filepath.Ext(path))]
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
