package extractor

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// StageCookies writes Netscape-format cookie text to a private file the
// backend can read. The caller removes it when done.
func StageCookies(dir, content string) (string, error) {
	path := filepath.Join(dir, fmt.Sprintf("cookies-%d.txt", time.Now().UnixNano()))
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return "", fmt.Errorf("failed to stage cookies file: %w", err)
	}
	return path, nil
}
