package extractor

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gainaura/aura/internal/apperr"
	"github.com/gainaura/aura/internal/media"
	"github.com/gainaura/aura/internal/taskspec"
)

// YtDlp runs the yt-dlp binary as the extraction backend.
type YtDlp struct {
	binaryPath   string
	ffmpegPath   string
	stagingDir   string
	probeTimeout time.Duration
	cancelGrace  time.Duration
	cookiesFile  string
	cookies      string
	logger       *zap.Logger
}

// Options configures the backend wrapper.
type Options struct {
	BinaryPath   string
	FFmpegPath   string
	StagingDir   string
	ProbeTimeout time.Duration
	CancelGrace  time.Duration
	// CookiesFile is the path of an existing cookie file the backend reads
	// in place. Cookies carries inline Netscape cookie text instead; it is
	// staged to a private file per run and removed afterwards, and takes
	// precedence when both are set.
	CookiesFile string
	Cookies     string
}

// NewYtDlp creates the yt-dlp gateway.
func NewYtDlp(opts Options, logger *zap.Logger) *YtDlp {
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = time.Minute
	}
	if opts.CancelGrace <= 0 {
		opts.CancelGrace = 5 * time.Second
	}
	return &YtDlp{
		binaryPath:   opts.BinaryPath,
		ffmpegPath:   opts.FFmpegPath,
		stagingDir:   opts.StagingDir,
		probeTimeout: opts.ProbeTimeout,
		cancelGrace:  opts.CancelGrace,
		cookiesFile:  opts.CookiesFile,
		cookies:      opts.Cookies,
		logger:       logger,
	}
}

// cookieFile resolves the --cookies argument for one backend run. Inline
// cookie text is staged to a private file the cleanup func removes; a
// preconfigured path is passed through and left alone.
func (y *YtDlp) cookieFile() (string, func(), error) {
	if y.cookies == "" {
		return y.cookiesFile, func() {}, nil
	}
	path, err := StageCookies(y.stagingDir, y.cookies)
	if err != nil {
		return "", nil, apperr.Wrap(apperr.KindInternal, "cookie staging failed", err)
	}
	return path, func() { os.Remove(path) }, nil
}

// probePayload mirrors the single JSON object -J prints. A playlist carries
// _type "playlist" and flat entries; anything else is one media item.
type probePayload struct {
	media.MediaInfo
	Type       string               `json:"_type"`
	Entries    []media.PlaylistItem `json:"entries"`
	WebpageURL string               `json:"webpage_url"`
}

// Probe extracts metadata for a URL without downloading. Bounded by the
// probe timeout; an elapsed timeout surfaces as a network error.
func (y *YtDlp) Probe(ctx context.Context, url string) (*ProbeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, y.probeTimeout)
	defer cancel()

	cookies, cleanupCookies, err := y.cookieFile()
	if err != nil {
		return nil, err
	}
	defer cleanupCookies()

	args := []string{
		"-J",
		"--flat-playlist",
		"--no-warnings",
	}
	if cookies != "" {
		args = append(args, "--cookies", cookies)
	}
	args = append(args, url)

	cmd := exec.CommandContext(ctx, y.binaryPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.Canceled {
			return nil, apperr.New(apperr.KindCancelled, "probe cancelled")
		}
		kind := apperr.Classify(stderr.String(), err)
		if ctx.Err() == context.DeadlineExceeded {
			kind = apperr.KindNetwork
		}
		y.logger.Warn("probe failed",
			zap.String("url", url),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		return nil, apperr.Wrap(kind, "probe failed", fmt.Errorf("%w: %s", err, firstLine(stderr.String())))
	}

	raw, err := lastJSONObject(stdout.String())
	if err != nil {
		return nil, apperr.Wrap(apperr.KindExtraction, "unparseable probe output", err)
	}

	var payload probePayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, apperr.Wrap(apperr.KindExtraction, "unparseable probe output", err)
	}

	if payload.Type == "playlist" {
		return &ProbeResult{Playlist: &media.PlaylistInfo{
			Title:   payload.Title,
			Entries: payload.Entries,
		}}, nil
	}

	info := payload.MediaInfo
	if info.OriginalURL == "" {
		info.OriginalURL = payload.WebpageURL
	}
	if info.OriginalURL == "" {
		info.OriginalURL = url
	}
	return &ProbeResult{Info: &info}, nil
}

var (
	progressRe = regexp.MustCompile(`\[download\]\s+(\d+(?:\.\d+)?)%`)
	stageRe    = regexp.MustCompile(`^\[([A-Za-z]+)\]`)
)

// Fetch downloads media described by the task spec into a fresh staging directory and
// returns every produced file. Cancellation interrupts the subprocess, waits
// out the grace period, and scrubs partial output so post-processing never
// mistakes it for a finished download.
func (y *YtDlp) Fetch(ctx context.Context, spec *taskspec.Spec, onProgress func(Progress)) ([]string, error) {
	stage, err := os.MkdirTemp(y.stagingDir, "fetch-")
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "cannot create staging dir", err)
	}

	cookies, cleanupCookies, err := y.cookieFile()
	if err != nil {
		return nil, err
	}
	defer cleanupCookies()

	args := y.buildFetchArgs(spec, stage, cookies)
	y.logger.Info("starting fetch",
		zap.String("url", spec.URL),
		zap.Strings("format_ids", spec.FormatIDs),
		zap.String("staging", stage),
	)

	cmd := exec.CommandContext(ctx, y.binaryPath, args...)
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = y.cancelGrace

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "pipe setup failed", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "pipe setup failed", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "cannot start backend", err)
	}

	var (
		mu        sync.Mutex
		stderrBuf bytes.Buffer
		wg        sync.WaitGroup
	)

	parseLine := func(line string) {
		if onProgress == nil {
			return
		}
		m := progressRe.FindStringSubmatch(line)
		if m == nil {
			return
		}
		pct, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return
		}
		stageName := "download"
		if s := stageRe.FindStringSubmatch(line); s != nil {
			stageName = strings.ToLower(s[1])
		}
		onProgress(Progress{Percent: pct, Stage: stageName, Message: strings.TrimSpace(line)})
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		sc := bufio.NewScanner(stdout)
		sc.Buffer(make([]byte, 64*1024), 1024*1024)
		for sc.Scan() {
			parseLine(sc.Text())
		}
	}()
	go func() {
		defer wg.Done()
		sc := bufio.NewScanner(stderrPipe)
		sc.Buffer(make([]byte, 64*1024), 512*1024)
		for sc.Scan() {
			line := sc.Text()
			parseLine(line)
			mu.Lock()
			stderrBuf.WriteString(line + "\n")
			mu.Unlock()
		}
	}()

	waitErr := cmd.Wait()
	wg.Wait()

	if waitErr != nil {
		mu.Lock()
		errText := stderrBuf.String()
		mu.Unlock()

		scrubStaging(stage, y.logger)

		if ctx.Err() == context.Canceled {
			return nil, apperr.New(apperr.KindCancelled, "fetch cancelled")
		}
		kind := apperr.Classify(errText, waitErr)
		y.logger.Error("fetch failed",
			zap.String("url", spec.URL),
			zap.String("kind", string(kind)),
			zap.Error(waitErr),
		)
		return nil, apperr.Wrap(kind, "fetch failed", fmt.Errorf("%w: %s", waitErr, firstLine(errText)))
	}

	files := collectOutputs(stage)
	if len(files) == 0 {
		return nil, apperr.New(apperr.KindExtraction, "backend produced no output files")
	}
	return files, nil
}

func (y *YtDlp) buildFetchArgs(spec *taskspec.Spec, stageDir, cookieFile string) []string {
	template := spec.OutputTemplate
	if spec.TitleOverride != "" {
		template = strings.ReplaceAll(template, "%(title)s", sanitizeName(spec.TitleOverride))
	}

	args := []string{
		"--no-playlist",
		"--no-warnings",
		"--progress",
		"--newline",
		"--write-thumbnail",
		"-o", filepath.Join(stageDir, template),
	}
	if y.ffmpegPath != "" {
		args = append(args, "--ffmpeg-location", y.ffmpegPath)
	}
	if cookieFile != "" {
		args = append(args, "--cookies", cookieFile)
	}
	if spec.RestrictFilenames {
		args = append(args, "--restrict-filenames")
	}

	if spec.CustomCommand != "" {
		// Raw override replaces generated selector arguments entirely.
		args = append(args, strings.Fields(spec.CustomCommand)...)
		args = append(args, spec.URL)
		return args
	}

	switch {
	case spec.ExtractAudio:
		args = append(args, "-x", "--audio-format", "mp3")
		if len(spec.FormatIDs) == 1 {
			args = append(args, "-f", spec.FormatIDs[0])
		}
	case len(spec.FormatIDs) == 1:
		args = append(args, "-f", spec.FormatIDs[0])
	case len(spec.FormatIDs) == 2:
		args = append(args, "-f", spec.FormatIDs[0]+"+"+spec.FormatIDs[1])
	default:
		args = append(args, "-f", "bestvideo+bestaudio/best")
	}

	if spec.EmbedSubtitles {
		args = append(args, "--write-subs", "--embed-subs", "--convert-subs", "srt")
		if len(spec.SubtitleLangs) > 0 {
			args = append(args, "--sub-langs", strings.Join(spec.SubtitleLangs, ","))
		}
	}
	if spec.SplitByChapter {
		args = append(args, "--split-chapters")
	}
	for _, c := range spec.Clips {
		args = append(args, "--download-sections", fmt.Sprintf("*%.1f-%.1f", c.Start, c.End))
	}

	args = append(args, spec.URL)
	return args
}

// partialSuffixes mark in-flight backend output that must never reach
// post-processing.
var partialSuffixes = []string{".part", ".ytdl", ".temp"}

func isPartial(name string) bool {
	lower := strings.ToLower(name)
	for _, s := range partialSuffixes {
		if strings.HasSuffix(lower, s) {
			return true
		}
	}
	return false
}

// collectOutputs lists finished files in the staging directory, newest last.
func collectOutputs(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || isPartial(e.Name()) {
			continue
		}
		if strings.HasSuffix(strings.ToLower(e.Name()), ".json") {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	return out
}

// scrubStaging removes whatever a failed or cancelled fetch left behind.
func scrubStaging(dir string, logger *zap.Logger) {
	if err := os.RemoveAll(dir); err != nil {
		logger.Warn("failed to scrub staging dir", zap.String("dir", dir), zap.Error(err))
	}
}

func lastJSONObject(output string) (string, error) {
	lines := strings.Split(output, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if strings.HasPrefix(line, "{") && strings.HasSuffix(line, "}") {
			return line, nil
		}
	}
	return "", fmt.Errorf("no JSON object in backend output")
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			return line
		}
	}
	return ""
}

var unsafeNameChars = regexp.MustCompile(`[/\\:*?"<>|%]`)

func sanitizeName(name string) string {
	return strings.TrimSpace(unsafeNameChars.ReplaceAllString(name, "_"))
}
