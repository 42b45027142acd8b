package extractor

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"
	"go.uber.org/zap"
)

// FFmpeg wraps ffmpeg-go for the corrective steps the backend sometimes
// leaves undone, mainly remuxing an audio extraction that came back in the
// wrong container.
type FFmpeg struct {
	binaryPath string
	timeout    time.Duration
	logger     *zap.Logger
}

// NewFFmpeg creates an FFmpeg wrapper.
func NewFFmpeg(binaryPath string, timeout time.Duration, logger *zap.Logger) *FFmpeg {
	return &FFmpeg{
		binaryPath: binaryPath,
		timeout:    timeout,
		logger:     logger,
	}
}

// audioCodecs maps target audio containers to encoders.
var audioCodecs = map[string]string{
	"mp3":  "libmp3lame",
	"m4a":  "aac",
	"aac":  "aac",
	"opus": "libopus",
	"flac": "flac",
}

// RemuxAudio converts a media file into the requested audio container,
// dropping any video stream. Returns the new file path.
func (f *FFmpeg) RemuxAudio(inputPath, format string) (string, error) {
	codec, ok := audioCodecs[format]
	if !ok {
		return "", fmt.Errorf("unsupported audio format %q", format)
	}

	outputPath := replaceExt(inputPath, "."+format)
	if strings.EqualFold(filepath.Clean(outputPath), filepath.Clean(inputPath)) {
		outputPath = appendSuffix(inputPath, "_remux")
	}

	f.logger.Info("remuxing audio",
		zap.String("input", inputPath),
		zap.String("output", outputPath),
	)

	err := ffmpeg.Input(inputPath).
		Output(outputPath, ffmpeg.KwArgs{
			"vn":     "",
			"acodec": codec,
		}).
		OverWriteOutput().
		ErrorToStdOut().
		SetFfmpegPath(f.binaryPath).
		Run()
	if err != nil {
		return "", fmt.Errorf("audio remux failed: %w", err)
	}
	return outputPath, nil
}

func replaceExt(path, newExt string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + newExt
}

func appendSuffix(path, suffix string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + suffix + ext
}
