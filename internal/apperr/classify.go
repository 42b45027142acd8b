package apperr

import (
	"context"
	"errors"
	"strings"
)

// Pattern lists for classifying yt-dlp output. Checked in order: disk-full
// first (it is also a write error and must win), then policy blocks, then
// transient network failures. Anything the backend reported that is none of
// those is an extraction failure.
var (
	diskFullPatterns = []string{
		"no space left on device",
		"disk full",
		"errno 28",
	}

	unsupportedPatterns = []string{
		"unsupported url",
		"unsupported site",
		"no suitable extractor",
		"is not a valid url",
	}

	networkPatterns = []string{
		"timeout",
		"timed out",
		"connection reset",
		"connection refused",
		"temporary failure",
		"network",
		"dns",
		"unable to connect",
		"500",
		"502",
		"503",
		"504",
	}

	extractionPatterns = []string{
		"video unavailable",
		"private video",
		"removed",
		"copyright",
		"geo restricted",
		"not available in your country",
		"sign in to confirm",
		"requested format is not available",
		"403",
		"404",
	}
)

// Classify maps a failed backend invocation to a Kind using the combined
// stderr/stdout text. A cancelled context always wins over output matching.
func Classify(output string, err error) Kind {
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}

	text := strings.ToLower(output)
	if err != nil {
		text += " " + strings.ToLower(err.Error())
	}

	for _, p := range diskFullPatterns {
		if strings.Contains(text, p) {
			return KindDiskFull
		}
	}
	for _, p := range unsupportedPatterns {
		if strings.Contains(text, p) {
			return KindUnsupportedSource
		}
	}
	for _, p := range extractionPatterns {
		if strings.Contains(text, p) {
			return KindExtraction
		}
	}
	for _, p := range networkPatterns {
		if strings.Contains(text, p) {
			return KindNetwork
		}
	}

	// Deadline without a recognizable message: treat as transient.
	if errors.Is(err, context.DeadlineExceeded) {
		return KindNetwork
	}

	return KindExtraction
}
