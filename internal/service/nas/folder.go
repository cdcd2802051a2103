package nas

import (
	"context"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/vertextoedge/git-annex-remote-synology/internal/domain"
)

// FolderObserver receives per-file progress from DownloadFolder
type FolderObserver interface {
	// FolderStarted is called once the files of a folder are known
	FolderStarted(remotePath string, files int)

	// FileDownloaded is called after each file of the folder completes
	FileDownloaded(remotePath, localPath string, done, total int)
}

// DownloadFolder mirrors remotePath into localDir. Subfolders are mirrored
// before the folder's own files. observer may be nil.
func (t *Tree) DownloadFolder(ctx context.Context, remotePath, localDir string, observer FolderObserver) error {
	if err := t.local.EnsureDir(localDir); err != nil {
		return err
	}

	entries, err := t.list(ctx, remotePath)
	if err != nil {
		return domain.NewRemoteIOError("list", remotePath, err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir {
			files = append(files, e.Path)
			continue
		}
		if err := t.DownloadFolder(ctx, e.Path, filepath.Join(localDir, e.Name), observer); err != nil {
			return err
		}
	}

	if observer != nil {
		observer.FolderStarted(remotePath, len(files))
	}

	for i, file := range files {
		localPath, err := t.DownloadFile(ctx, file, localDir, nil)
		if err != nil {
			return err
		}
		if observer != nil {
			observer.FileDownloaded(file, localPath, i+1, len(files))
		}
	}

	t.logger.Debug("downloaded folder",
		zap.String("path", remotePath),
		zap.String("local", localDir),
		zap.Int("files", len(files)))
	return nil
}
