package cleanup

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Sweeper removes leftovers from the staging area: per-fetch directories
// whose task died without scrubbing (crash, power loss) and stale rotated
// logs. Fresh staging directories are left alone so a running fetch never
// loses its partials.
type Sweeper struct {
	logger *zap.Logger
}

// NewSweeper creates a staging-area sweeper
func NewSweeper(logger *zap.Logger) *Sweeper {
	return &Sweeper{logger: logger}
}

// Result contains sweep operation results
type Result struct {
	Deleted    int64   // Number of entries deleted
	BytesFreed int64   // Number of bytes freed
	Dir        string  // Path to swept directory
	Errors     []error // Any errors that occurred
}

// SweepStaging removes fetch-* staging directories older than maxAge.
func (s *Sweeper) SweepStaging(stagingDir string, maxAge time.Duration) *Result {
	result := &Result{Dir: stagingDir}

	entries, err := os.ReadDir(stagingDir)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, fmt.Errorf("read staging dir: %w", err))
		}
		return result
	}

	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), "fetch-") {
			continue
		}

		path := filepath.Join(stagingDir, entry.Name())
		info, ierr := entry.Info()
		if ierr != nil {
			result.Errors = append(result.Errors, fmt.Errorf("stat %s: %w", path, ierr))
			continue
		}
		if time.Since(info.ModTime()) <= maxAge {
			continue
		}

		size, _ := dirSize(path)
		if rerr := os.RemoveAll(path); rerr != nil {
			result.Errors = append(result.Errors, fmt.Errorf("remove %s: %w", path, rerr))
			continue
		}

		result.Deleted++
		result.BytesFreed += size
		s.logger.Debug("Removed stale staging directory",
			zap.String("path", path),
			zap.Int64("size", size),
		)
	}

	s.logger.Info("Staging sweep completed",
		zap.String("dir", stagingDir),
		zap.Int64("deleted", result.Deleted),
		zap.Int64("bytes_freed", result.BytesFreed),
		zap.Int("errors", len(result.Errors)),
	)
	return result
}

// SweepLogs removes .log files older than maxAge.
func (s *Sweeper) SweepLogs(logDir string, maxAge time.Duration) *Result {
	result := &Result{Dir: logDir}

	err := filepath.Walk(logDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("access %s: %w", path, err))
			return nil
		}
		if info.IsDir() || filepath.Ext(path) != ".log" {
			return nil
		}
		if time.Since(info.ModTime()) <= maxAge {
			return nil
		}

		if rerr := os.Remove(path); rerr != nil {
			result.Errors = append(result.Errors, fmt.Errorf("delete %s: %w", path, rerr))
			return nil
		}
		result.Deleted++
		result.BytesFreed += info.Size()
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		result.Errors = append(result.Errors, fmt.Errorf("walk error: %w", err))
	}

	return result
}

func dirSize(dirPath string) (int64, error) {
	var total int64
	err := filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total, err
}
