package filesystem

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vertextoedge/git-annex-remote-synology/internal/port"
)

// stagingPattern names the private directories created next to a destination
const stagingPattern = ".annex-synology-*"

// Manager handles local filesystem operations
type Manager struct {
	dirMode os.FileMode
}

// Ensure Manager implements port.LocalFS
var _ port.LocalFS = (*Manager)(nil)

// NewManager creates a new filesystem manager
func NewManager() *Manager {
	return &Manager{dirMode: 0755}
}

// EnsureDir ensures dir and its parents exist
func (m *Manager) EnsureDir(dir string) error {
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, m.dirMode); err != nil {
		return fmt.Errorf("failed to create dir %s: %w", dir, err)
	}
	return nil
}

// NewStaging creates a private staging directory in the same directory as
// dest, so that Commit is a same-filesystem rename.
func (m *Manager) NewStaging(dest string) (port.Staging, error) {
	parent := filepath.Dir(dest)
	if err := m.EnsureDir(parent); err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp(parent, stagingPattern)
	if err != nil {
		return nil, fmt.Errorf("failed to create staging dir: %w", err)
	}
	return &Staging{dir: dir}, nil
}

// Staging is a private directory that receives a download before it is
// moved into place
type Staging struct {
	dir string
}

// Dir returns the staging directory
func (s *Staging) Dir() string {
	return s.dir
}

// Commit renames stagedFile to dest. dest is replaced if it exists.
func (s *Staging) Commit(stagedFile, dest string) error {
	rel, err := filepath.Rel(s.dir, stagedFile)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%s is not inside staging dir %s", stagedFile, s.dir)
	}

	info, err := os.Stat(stagedFile)
	if err != nil {
		return fmt.Errorf("staged file missing: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("staged path %s is a directory", stagedFile)
	}

	if err := os.Rename(stagedFile, dest); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", filepath.Base(dest), err)
	}
	return nil
}

// Discard removes the staging directory and anything left in it
func (s *Staging) Discard() error {
	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("failed to remove staging dir: %w", err)
	}
	return nil
}
