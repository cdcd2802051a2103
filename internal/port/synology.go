package port

import (
	"context"

	"github.com/vertextoedge/git-annex-remote-synology/internal/domain"
)

// FileEntry is a single entry of a FileStation listing
type FileEntry struct {
	Path  string `json:"path"`
	Name  string `json:"name"`
	IsDir bool   `json:"isdir"`
}

// ProgressFunc receives the cumulative number of bytes transferred so far.
type ProgressFunc func(bytes int64)

// FileStation defines the vendor API surface used by the tree adapter.
// Every call is a single request; an unsuccessful vendor response is returned as an error.
type FileStation interface {
	// ListDirectory lists the immediate children of a folder, in vendor order
	ListDirectory(ctx context.Context, path string) ([]FileEntry, error)

	// ListShares lists the top-level shared folders
	ListShares(ctx context.Context) ([]FileEntry, error)

	// CreateDirectory creates name under parent. The parent must exist.
	CreateDirectory(ctx context.Context, parent, name string) error

	// UploadFile uploads localFile into folder, keeping the base name unless name is set
	UploadFile(ctx context.Context, folder, localFile, name string, progress ProgressFunc) error

	// DownloadFile downloads remotePath into localDir and returns the local file path
	DownloadFile(ctx context.Context, remotePath, localDir string, progress ProgressFunc) (string, error)

	// DeleteFiles starts an asynchronous delete task and returns once it is accepted
	DeleteFiles(ctx context.Context, paths []string) error

	// Rename renames path in place to newName
	Rename(ctx context.Context, path, newName string) error

	// Logout ends the session
	Logout(ctx context.Context) error
}

// SessionFactory opens an authenticated FileStation session
type SessionFactory func(ctx context.Context, params domain.SessionParams) (FileStation, error)

// NotFoundError is implemented by vendor errors that mean "no such file or directory".
type NotFoundError interface {
	NotFound() bool
}

// SessionError is implemented by vendor errors that mean the session is no longer accepted.
type SessionError interface {
	IsSessionError() bool
}
