package extractor

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/gainaura/aura/internal/taskspec"
)

func args(t *testing.T, y *YtDlp, spec *taskspec.Spec) []string {
	t.Helper()
	return y.buildFetchArgs(spec, "/staging/fetch-x", y.cookiesFile)
}

func hasArgPair(argv []string, flag, value string) bool {
	for i := 0; i < len(argv)-1; i++ {
		if argv[i] == flag && argv[i+1] == value {
			return true
		}
	}
	return false
}

func hasArg(argv []string, flag string) bool {
	for _, a := range argv {
		if a == flag {
			return true
		}
	}
	return false
}

func testYtDlp() *YtDlp {
	return NewYtDlp(Options{
		BinaryPath: "yt-dlp",
		FFmpegPath: "/usr/bin/ffmpeg",
		StagingDir: os.TempDir(),
	}, zap.NewNop())
}

func TestBuildFetchArgs_FormatSelection(t *testing.T) {
	y := testYtDlp()
	base := taskspec.Spec{URL: "https://example.com/watch?v=abc", OutputTemplate: "%(title)s.%(ext)s"}

	// Single format.
	one := base
	one.FormatIDs = []string{"c720"}
	if got := args(t, y, &one); !hasArgPair(got, "-f", "c720") {
		t.Errorf("single format: missing -f c720 in %v", got)
	}

	// Separate video+audio pair.
	two := base
	two.FormatIDs = []string{"v1080", "a1"}
	if got := args(t, y, &two); !hasArgPair(got, "-f", "v1080+a1") {
		t.Errorf("format pair: missing -f v1080+a1 in %v", got)
	}

	// No selection defers to the backend.
	if got := args(t, y, &base); !hasArgPair(got, "-f", "bestvideo+bestaudio/best") {
		t.Errorf("empty selection: missing best fallback in %v", got)
	}
}

func TestBuildFetchArgs_AudioExtraction(t *testing.T) {
	y := testYtDlp()
	spec := taskspec.Spec{
		URL:            "https://example.com/watch?v=abc",
		OutputTemplate: "%(title)s.%(ext)s",
		ExtractAudio:   true,
		FormatIDs:      []string{"a1"},
	}

	got := args(t, y, &spec)
	if !hasArg(got, "-x") || !hasArgPair(got, "--audio-format", "mp3") {
		t.Errorf("audio extraction flags missing in %v", got)
	}
	if !hasArgPair(got, "-f", "a1") {
		t.Errorf("selected audio format missing in %v", got)
	}
}

func TestBuildFetchArgs_OptionsAndClips(t *testing.T) {
	y := testYtDlp()
	spec := taskspec.Spec{
		URL:               "https://example.com/watch?v=abc",
		OutputTemplate:    "%(title)s.%(ext)s",
		RestrictFilenames: true,
		EmbedSubtitles:    true,
		SubtitleLangs:     []string{"en", "de"},
		SplitByChapter:    true,
		Clips:             []taskspec.ClipRange{{Start: 10, End: 42.5}},
	}

	got := args(t, y, &spec)
	if !hasArg(got, "--restrict-filenames") {
		t.Errorf("missing --restrict-filenames in %v", got)
	}
	if !hasArg(got, "--embed-subs") || !hasArgPair(got, "--sub-langs", "en,de") {
		t.Errorf("subtitle flags missing in %v", got)
	}
	if !hasArg(got, "--split-chapters") {
		t.Errorf("missing --split-chapters in %v", got)
	}
	if !hasArgPair(got, "--download-sections", "*10.0-42.5") {
		t.Errorf("missing clip section in %v", got)
	}
	if got[len(got)-1] != spec.URL {
		t.Errorf("URL must be the last argument, got %v", got)
	}
}

func TestBuildFetchArgs_CustomCommandReplacesSelectors(t *testing.T) {
	y := testYtDlp()
	spec := taskspec.Spec{
		URL:            "https://example.com/watch?v=abc",
		OutputTemplate: "%(title)s.%(ext)s",
		CustomCommand:  "-f worst --no-mtime",
		ExtractAudio:   true, // must be ignored under a raw override
	}

	got := args(t, y, &spec)
	if !hasArgPair(got, "-f", "worst") || !hasArg(got, "--no-mtime") {
		t.Errorf("custom command fields missing in %v", got)
	}
	if hasArg(got, "-x") {
		t.Errorf("generated selector must not appear with a custom command: %v", got)
	}
}

func TestBuildFetchArgs_TitleOverrideSanitized(t *testing.T) {
	y := testYtDlp()
	spec := taskspec.Spec{
		URL:            "https://example.com/watch?v=abc",
		OutputTemplate: "%(title)s.%(ext)s",
		TitleOverride:  `my/evil:name?`,
	}

	got := args(t, y, &spec)
	var template string
	for i := 0; i < len(got)-1; i++ {
		if got[i] == "-o" {
			template = got[i+1]
		}
	}
	if template == "" {
		t.Fatalf("no -o argument in %v", got)
	}
	if strings.Contains(template, "%(title)s") {
		t.Errorf("title placeholder should be replaced, got %q", template)
	}
	if strings.Contains(filepath.Base(template), "/") || strings.Contains(template, "?") || strings.Contains(template, ":") {
		t.Errorf("unsafe characters survived sanitization: %q", template)
	}
}

func TestProgressLineParsing(t *testing.T) {
	tests := []struct {
		line    string
		percent string
		match   bool
	}{
		{"[download]  42.7% of 10.00MiB at 1.00MiB/s ETA 00:05", "42.7", true},
		{"[download] 100% of 10.00MiB in 00:10", "100", true},
		{"[info] Writing video metadata", "", false},
		{"[Merger] Merging formats", "", false},
	}

	for _, test := range tests {
		m := progressRe.FindStringSubmatch(test.line)
		if test.match && (m == nil || m[1] != test.percent) {
			t.Errorf("line %q: expected percent %s, got %v", test.line, test.percent, m)
		}
		if !test.match && m != nil {
			t.Errorf("line %q: unexpected progress match %v", test.line, m)
		}
	}

	if s := stageRe.FindStringSubmatch("[Merger] Merging formats"); s == nil || s[1] != "Merger" {
		t.Errorf("stage parsing failed: %v", s)
	}
}

func TestCollectOutputs_SkipsPartialsAndSidecars(t *testing.T) {
	dir := t.TempDir()
	files := map[string]bool{ // name -> expected in output
		"clip.mp4":       true,
		"clip.webp":      true,
		"clip.en.srt":    true,
		"clip.mp4.part":  false,
		"clip.mp4.ytdl":  false,
		"clip.temp":      false,
		"clip.info.json": false,
	}
	for name := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	got := collectOutputs(dir)
	found := map[string]bool{}
	for _, p := range got {
		found[filepath.Base(p)] = true
	}
	for name, want := range files {
		if found[name] != want {
			t.Errorf("%s: included=%v, expected %v", name, found[name], want)
		}
	}
}

func TestLastJSONObject(t *testing.T) {
	out := "WARNING: something\n{\"title\":\"clip\"}\n"
	got, err := lastJSONObject(out)
	if err != nil || got != `{"title":"clip"}` {
		t.Errorf("lastJSONObject = %q, %v", got, err)
	}

	if _, err := lastJSONObject("no json here"); err == nil {
		t.Error("expected error for output without JSON")
	}
}

func TestStageCookies(t *testing.T) {
	dir := t.TempDir()
	path, err := StageCookies(dir, "# Netscape HTTP Cookie File\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("staged file missing: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("cookies file mode = %v, expected 0600", info.Mode().Perm())
	}
}

func TestInlineCookies_StagedAndRemovedPerRun(t *testing.T) {
	dir := t.TempDir()
	y := NewYtDlp(Options{
		BinaryPath: "yt-dlp",
		StagingDir: dir,
		Cookies:    "# Netscape HTTP Cookie File\nexample.com\tFALSE\t/\tTRUE\t0\tsid\tabc\n",
	}, zap.NewNop())

	path, cleanup, err := y.cookieFile()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path == "" {
		t.Fatal("expected a staged cookie path")
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("staged file missing: %v", err)
	}
	if !strings.Contains(string(content), "sid\tabc") {
		t.Errorf("staged content = %q, expected cookie text", content)
	}

	spec := taskspec.Spec{URL: "https://example.com/watch?v=abc", OutputTemplate: "%(title)s.%(ext)s"}
	if argv := y.buildFetchArgs(&spec, "/staging/fetch-x", path); !hasArgPair(argv, "--cookies", path) {
		t.Errorf("missing --cookies %s in %v", path, argv)
	}

	cleanup()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected staged cookie file removed after run, stat err = %v", err)
	}
}

func TestCookieFile_PassthroughPathNotRemoved(t *testing.T) {
	existing := filepath.Join(t.TempDir(), "cookies.txt")
	if err := os.WriteFile(existing, []byte("# Netscape HTTP Cookie File\n"), 0600); err != nil {
		t.Fatalf("write cookie file: %v", err)
	}
	y := NewYtDlp(Options{BinaryPath: "yt-dlp", CookiesFile: existing}, zap.NewNop())

	path, cleanup, err := y.cookieFile()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != existing {
		t.Errorf("cookieFile path = %q, expected %q", path, existing)
	}

	cleanup()
	if _, err := os.Stat(existing); err != nil {
		t.Errorf("preconfigured cookie file must survive cleanup: %v", err)
	}
}
