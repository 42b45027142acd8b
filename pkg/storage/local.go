package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// LocalPlacer writes finished downloads into a single app-owned directory.
type LocalPlacer struct {
	baseDir string
	logger  *zap.Logger
}

// NewLocalPlacer creates the output directory if needed.
func NewLocalPlacer(baseDir string, logger *zap.Logger) (*LocalPlacer, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &LocalPlacer{baseDir: baseDir, logger: logger}, nil
}

// Place moves srcPath to baseDir/name, deduplicating the name with a numeric
// suffix when the target already exists. Rename first, copy across devices.
func (lp *LocalPlacer) Place(ctx context.Context, srcPath, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dst := filepath.Join(lp.baseDir, filepath.Base(name))
	dst = dedupedPath(dst)

	if err := os.Rename(srcPath, dst); err != nil {
		// Staging and output may live on different filesystems.
		if copyErr := copyFile(srcPath, dst); copyErr != nil {
			return "", fmt.Errorf("failed to place file: %w", copyErr)
		}
		_ = os.Remove(srcPath)
	}

	lp.logger.Info("file placed",
		zap.String("src", srcPath),
		zap.String("dst", dst),
	)
	return dst, nil
}

// SharedLibrary copies exported files into a public library directory, the
// shared media index analogue for a plain filesystem deployment.
type SharedLibrary struct {
	libraryDir string
	logger     *zap.Logger
}

// roleSubdirs routes each file role to its library subdirectory.
var roleSubdirs = map[FileRole]string{
	RolePrimary:   "media",
	RoleThumbnail: "thumbnails",
	RoleSubtitle:  "subtitles",
}

// NewSharedLibrary creates a shared library rooted at libraryDir.
func NewSharedLibrary(libraryDir string, logger *zap.Logger) (*SharedLibrary, error) {
	if err := os.MkdirAll(libraryDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create library directory: %w", err)
	}
	return &SharedLibrary{libraryDir: libraryDir, logger: logger}, nil
}

// Export copies the file into the library, keeping the app-owned original.
func (sl *SharedLibrary) Export(ctx context.Context, path string, role FileRole) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	sub, ok := roleSubdirs[role]
	if !ok {
		sub = "media"
	}
	dir := filepath.Join(sl.libraryDir, sub)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create library subdirectory: %w", err)
	}

	dst := dedupedPath(filepath.Join(dir, filepath.Base(path)))
	if err := copyFile(path, dst); err != nil {
		return "", fmt.Errorf("failed to export to library: %w", err)
	}

	sl.logger.Info("file exported to library",
		zap.String("path", dst),
		zap.String("role", string(role)),
	)
	return dst, nil
}

// dedupedPath appends " (n)" before the extension until the name is free.
func dedupedPath(path string) string {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, i, ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		_ = os.Remove(dst)
		return err
	}
	return out.Close()
}
