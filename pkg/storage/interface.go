package storage

import "context"

// Placer moves a finished download into the canonical app-owned output
// directory. This is the only placement step whose failure fails a task.
type Placer interface {
	Place(ctx context.Context, srcPath, name string) (string, error)
}

// FileRole classifies a produced file for export.
type FileRole string

const (
	RolePrimary   FileRole = "primary"
	RoleThumbnail FileRole = "thumbnail"
	RoleSubtitle  FileRole = "subtitle"
)

// Library exports files into the shared media library so they are visible
// outside the app. Export failure degrades a task, it never fails it.
type Library interface {
	Export(ctx context.Context, path string, role FileRole) (string, error)
}
