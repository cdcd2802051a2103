// Package nas builds recursive tree operations on top of the vendor's
// single-directory FileStation calls. None of the multi-step operations
// roll back: a failure part way leaves the remote tree partially modified.
package nas

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/vertextoedge/git-annex-remote-synology/internal/domain"
	"github.com/vertextoedge/git-annex-remote-synology/internal/port"
)

// Tree provides existence, listing, create, delete and transfer operations
// over a FileStation session
type Tree struct {
	fs     port.FileStation
	local  port.LocalFS
	logger *zap.Logger
}

// New creates a Tree for an authenticated session
func New(fs port.FileStation, local port.LocalFS, logger *zap.Logger) *Tree {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tree{
		fs:     fs,
		local:  local,
		logger: logger,
	}
}

// isNotFound reports whether err is the vendor's "no such file or directory"
func isNotFound(err error) bool {
	var nf port.NotFoundError
	return errors.As(err, &nf) && nf.NotFound()
}

// list returns the children of dir; the root lists the shared folders
func (t *Tree) list(ctx context.Context, dir string) ([]port.FileEntry, error) {
	if domain.IsRoot(dir) {
		return t.fs.ListShares(ctx)
	}
	return t.fs.ListDirectory(ctx, dir)
}

// Lookup reports whether p exists by listing its parent. A missing parent
// means p is absent. Any other listing failure is returned wrapping
// domain.ErrRemoteUnreachable, so callers can tell "absent" from "unknown".
func (t *Tree) Lookup(ctx context.Context, p string) (bool, error) {
	if domain.IsRoot(p) {
		return true, nil
	}

	p = path.Clean(p)
	parent, _ := domain.SplitRemotePath(p)

	entries, err := t.list(ctx, parent)
	if err != nil {
		if isNotFound(err) {
			t.logger.Debug("parent does not exist", zap.String("path", p), zap.String("parent", parent))
			return false, nil
		}
		return false, domain.NewRemoteIOError("list", parent, fmt.Errorf("%w: %w", domain.ErrRemoteUnreachable, err))
	}

	for _, e := range entries {
		if e.Path == p {
			return true, nil
		}
	}
	return false, nil
}

// Exists reports whether p exists. It never fails: a listing error is
// logged and treated as "does not exist".
func (t *Tree) Exists(ctx context.Context, p string) bool {
	t.logger.Debug("checking existence", zap.String("path", p))

	found, err := t.Lookup(ctx, p)
	if err != nil {
		t.logger.Debug("listing failed, treating as absent", zap.String("path", p), zap.Error(err))
		return false
	}
	return found
}

// ListStructure returns the paths of the children of p in vendor order.
// With recursive, each child directory's contents follow the immediate
// children, depth-first. A missing p yields an empty result.
func (t *Tree) ListStructure(ctx context.Context, p string, recursive bool) ([]string, error) {
	entries, err := t.list(ctx, p)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, domain.NewRemoteIOError("list", p, err)
	}

	structure := make([]string, 0, len(entries))
	var dirs []string
	for _, e := range entries {
		structure = append(structure, e.Path)
		if e.IsDir {
			dirs = append(dirs, e.Path)
		}
	}

	if recursive {
		for _, dir := range dirs {
			children, err := t.ListStructure(ctx, dir, true)
			if err != nil {
				return nil, err
			}
			structure = append(structure, children...)
		}
	}

	t.logger.Debug("listed structure", zap.String("path", p), zap.Int("entries", len(structure)))
	return structure, nil
}

// FindLeafNodes returns every file path under p, excluding directories
func (t *Tree) FindLeafNodes(ctx context.Context, p string) ([]string, error) {
	entries, err := t.list(ctx, p)
	if err != nil {
		return nil, domain.NewRemoteIOError("list", p, err)
	}

	var leaves []string
	var dirs []string
	for _, e := range entries {
		if e.IsDir {
			dirs = append(dirs, e.Path)
		} else {
			leaves = append(leaves, e.Path)
		}
	}

	for _, dir := range dirs {
		children, err := t.FindLeafNodes(ctx, dir)
		if err != nil {
			return nil, err
		}
		leaves = append(leaves, children...)
	}
	return leaves, nil
}

// CreateFolder creates p and any missing ancestors, root to leaf. It
// returns immediately when p already exists.
func (t *Tree) CreateFolder(ctx context.Context, p string) error {
	if t.Exists(ctx, p) {
		return nil
	}

	p = path.Clean(p)
	parent, name := domain.SplitRemotePath(p)
	if domain.IsRoot(parent) {
		return domain.NewRemoteIOError("create", p, errors.New("shared folder does not exist"))
	}

	if err := t.CreateFolder(ctx, parent); err != nil {
		return err
	}

	t.logger.Debug("creating folder", zap.String("parent", parent), zap.String("name", name))
	if err := t.fs.CreateDirectory(ctx, parent, name); err != nil {
		return domain.NewRemoteIOError("create", p, err)
	}
	return nil
}

// DeleteFiles sends one batch delete request. Success means the request was
// accepted; the vendor deletes asynchronously.
func (t *Tree) DeleteFiles(ctx context.Context, paths ...string) error {
	if err := t.fs.DeleteFiles(ctx, paths); err != nil {
		return domain.NewRemoteIOError("delete", strings.Join(paths, ","), err)
	}
	return nil
}

// Rename renames p in place
func (t *Tree) Rename(ctx context.Context, p, newName string) error {
	if err := t.fs.Rename(ctx, p, newName); err != nil {
		return domain.NewRemoteIOError("rename", p, err)
	}
	return nil
}

// UploadFile uploads localFile into folder as name
func (t *Tree) UploadFile(ctx context.Context, folder, localFile, name string, progress port.ProgressFunc) error {
	if info, err := os.Stat(localFile); err == nil {
		t.logger.Debug("uploading",
			zap.String("folder", folder),
			zap.String("name", name),
			zap.String("size", humanize.Bytes(uint64(info.Size()))))
	}

	if err := t.fs.UploadFile(ctx, folder, localFile, name, progress); err != nil {
		return domain.NewRemoteIOError("upload", path.Join(folder, name), err)
	}
	return nil
}

// DownloadFile downloads remotePath into localDir and returns the local path
func (t *Tree) DownloadFile(ctx context.Context, remotePath, localDir string, progress port.ProgressFunc) (string, error) {
	localPath, err := t.fs.DownloadFile(ctx, remotePath, localDir, progress)
	if err != nil {
		return "", domain.NewRemoteIOError("download", remotePath, err)
	}

	if info, err := os.Stat(localPath); err == nil {
		t.logger.Debug("downloaded",
			zap.String("path", remotePath),
			zap.String("size", humanize.Bytes(uint64(info.Size()))))
	}
	return localPath, nil
}
