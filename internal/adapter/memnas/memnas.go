// Package memnas is an in-memory FileStation. It keeps a real directory tree,
// records every call, and can inject failures per operation and path, which
// makes it useful for testing the tree adapter and the remote.
package memnas

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/vertextoedge/git-annex-remote-synology/internal/domain"
	"github.com/vertextoedge/git-annex-remote-synology/internal/port"
)

// Operation names used for call records and failure injection
const (
	OpList     = "list"
	OpShares   = "list_share"
	OpCreate   = "create"
	OpUpload   = "upload"
	OpDownload = "download"
	OpDelete   = "delete"
	OpRename   = "rename"
	OpLogout   = "logout"
)

// ErrUnreachable simulates a transport failure
var ErrUnreachable = errors.New("dial tcp: connection refused")

// NotFoundError mimics the vendor "no such file or directory" response
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no such file or directory: %s", e.Path)
}

// NotFound implements port.NotFoundError
func (e *NotFoundError) NotFound() bool {
	return true
}

// Call is one recorded FileStation call
type Call struct {
	Op   string
	Path string
}

type node struct {
	isDir    bool
	content  []byte
	children []string // child names in creation order
}

// NAS is an in-memory FileStation. It is safe for concurrent use.
type NAS struct {
	mu       sync.Mutex
	nodes    map[string]*node
	calls    []Call
	failures map[string]error

	// PartialBytes is how much of a file a failing download writes before erroring
	PartialBytes int
}

// Ensure NAS implements port.FileStation
var _ port.FileStation = (*NAS)(nil)

// New creates a NAS with the given top-level shares, e.g. "/volume1"
func New(shares ...string) *NAS {
	n := &NAS{
		nodes:        map[string]*node{"/": {isDir: true}},
		failures:     make(map[string]error),
		PartialBytes: 3,
	}
	for _, s := range shares {
		n.MkdirAll(s)
	}
	return n
}

// Factory returns a SessionFactory that always hands out n
func (n *NAS) Factory() port.SessionFactory {
	return func(ctx context.Context, params domain.SessionParams) (port.FileStation, error) {
		return n, nil
	}
}

func clean(p string) string {
	if p == "" {
		return "/"
	}
	return path.Clean("/" + p)
}

// Fail makes op on p return err. Use "*" as p to fail op on every path.
func (n *NAS) Fail(op, p string, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if p != "*" {
		p = clean(p)
	}
	n.failures[op+" "+p] = err
}

// ClearFailures removes all injected failures
func (n *NAS) ClearFailures() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failures = make(map[string]error)
}

// Calls returns a copy of the recorded calls
func (n *NAS) Calls() []Call {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Call(nil), n.calls...)
}

// CallsFor returns the paths of recorded calls for op, in order
func (n *NAS) CallsFor(op string) []string {
	var paths []string
	for _, c := range n.Calls() {
		if c.Op == op {
			paths = append(paths, c.Path)
		}
	}
	return paths
}

// ResetCalls clears the call record
func (n *NAS) ResetCalls() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = nil
}

// record logs the call and returns any injected failure; n.mu must be held
func (n *NAS) record(op, p string) error {
	n.calls = append(n.calls, Call{Op: op, Path: p})
	if err, ok := n.failures[op+" "+p]; ok {
		return err
	}
	if err, ok := n.failures[op+" *"]; ok {
		return err
	}
	return nil
}

// MkdirAll creates p and missing parents without recording calls
func (n *NAS) MkdirAll(p string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.mkdirAll(clean(p))
}

func (n *NAS) mkdirAll(p string) {
	if _, ok := n.nodes[p]; ok || p == "/" {
		return
	}
	parent := path.Dir(p)
	n.mkdirAll(parent)
	n.nodes[p] = &node{isDir: true}
	n.nodes[parent].children = append(n.nodes[parent].children, path.Base(p))
}

// PutFile stores content at p, creating parents, without recording calls
func (n *NAS) PutFile(p string, content []byte) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.putFile(clean(p), content)
}

func (n *NAS) putFile(p string, content []byte) {
	parent := path.Dir(p)
	n.mkdirAll(parent)
	if existing, ok := n.nodes[p]; ok {
		existing.content = append([]byte(nil), content...)
		return
	}
	n.nodes[p] = &node{content: append([]byte(nil), content...)}
	n.nodes[parent].children = append(n.nodes[parent].children, path.Base(p))
}

// Has reports whether p exists
func (n *NAS) Has(p string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, ok := n.nodes[clean(p)]
	return ok
}

// Content returns the content of file p
func (n *NAS) Content(p string) ([]byte, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	nd, ok := n.nodes[clean(p)]
	if !ok || nd.isDir {
		return nil, false
	}
	return append([]byte(nil), nd.content...), true
}

// Paths returns every path in the tree, sorted
func (n *NAS) Paths() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	paths := make([]string, 0, len(n.nodes))
	for p := range n.nodes {
		if p != "/" {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	return paths
}

func (n *NAS) entries(dir string) []port.FileEntry {
	nd := n.nodes[dir]
	entries := make([]port.FileEntry, 0, len(nd.children))
	for _, name := range nd.children {
		p := path.Join(dir, name)
		entries = append(entries, port.FileEntry{Path: p, Name: name, IsDir: n.nodes[p].isDir})
	}
	return entries
}

// ListDirectory implements port.FileStation
func (n *NAS) ListDirectory(ctx context.Context, dir string) ([]port.FileEntry, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	dir = clean(dir)
	if err := n.record(OpList, dir); err != nil {
		return nil, err
	}
	nd, ok := n.nodes[dir]
	if !ok || !nd.isDir || dir == "/" {
		return nil, &NotFoundError{Path: dir}
	}
	return n.entries(dir), nil
}

// ListShares implements port.FileStation
func (n *NAS) ListShares(ctx context.Context) ([]port.FileEntry, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.record(OpShares, "/"); err != nil {
		return nil, err
	}
	return n.entries("/"), nil
}

// CreateDirectory implements port.FileStation
func (n *NAS) CreateDirectory(ctx context.Context, parent, name string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	p := clean(path.Join(parent, name))
	if err := n.record(OpCreate, p); err != nil {
		return err
	}
	pn, ok := n.nodes[clean(parent)]
	if !ok || !pn.isDir {
		return &NotFoundError{Path: parent}
	}
	n.mkdirAll(p)
	return nil
}

// UploadFile implements port.FileStation
func (n *NAS) UploadFile(ctx context.Context, folder, localFile, name string, progress port.ProgressFunc) error {
	if name == "" {
		name = filepath.Base(localFile)
	}
	content, err := os.ReadFile(localFile)
	if err != nil {
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	p := clean(path.Join(folder, name))
	if err := n.record(OpUpload, p); err != nil {
		return err
	}
	n.putFile(p, content)
	if progress != nil {
		progress(int64(len(content)))
	}
	return nil
}

// DownloadFile implements port.FileStation. An injected failure leaves
// PartialBytes of the file behind in localDir, like an interrupted transfer.
func (n *NAS) DownloadFile(ctx context.Context, remotePath, localDir string, progress port.ProgressFunc) (string, error) {
	n.mu.Lock()
	p := clean(remotePath)
	failure := n.record(OpDownload, p)
	nd, ok := n.nodes[p]
	var content []byte
	if ok {
		content = append([]byte(nil), nd.content...)
	}
	partial := n.PartialBytes
	n.mu.Unlock()

	if !ok || nd.isDir {
		return "", &NotFoundError{Path: p}
	}

	localPath := filepath.Join(localDir, path.Base(p))
	if failure != nil {
		if partial > len(content) {
			partial = len(content)
		}
		os.WriteFile(localPath, content[:partial], 0o644)
		return "", failure
	}

	if err := os.WriteFile(localPath, content, 0o644); err != nil {
		return "", err
	}
	if progress != nil {
		progress(int64(len(content)))
	}
	return localPath, nil
}

// DeleteFiles implements port.FileStation. Deletion is applied immediately.
func (n *NAS) DeleteFiles(ctx context.Context, paths []string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, p := range paths {
		if err := n.record(OpDelete, clean(p)); err != nil {
			return err
		}
	}
	for _, p := range paths {
		n.remove(clean(p))
	}
	return nil
}

func (n *NAS) remove(p string) {
	if _, ok := n.nodes[p]; !ok || p == "/" {
		return
	}
	prefix := p + "/"
	for k := range n.nodes {
		if k == p || strings.HasPrefix(k, prefix) {
			delete(n.nodes, k)
		}
	}
	parent := n.nodes[path.Dir(p)]
	name := path.Base(p)
	for i, c := range parent.children {
		if c == name {
			parent.children = append(parent.children[:i], parent.children[i+1:]...)
			break
		}
	}
}

// Rename implements port.FileStation
func (n *NAS) Rename(ctx context.Context, p, newName string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	p = clean(p)
	if err := n.record(OpRename, p); err != nil {
		return err
	}
	if _, ok := n.nodes[p]; !ok {
		return &NotFoundError{Path: p}
	}
	parent := path.Dir(p)
	target := path.Join(parent, newName)
	if _, ok := n.nodes[target]; ok {
		return fmt.Errorf("rename %s: %s already exists", p, target)
	}

	prefix := p + "/"
	moved := make(map[string]*node)
	for k, v := range n.nodes {
		if k == p {
			moved[target] = v
		} else if strings.HasPrefix(k, prefix) {
			moved[target+"/"+strings.TrimPrefix(k, prefix)] = v
		}
	}
	for k := range n.nodes {
		if k == p || strings.HasPrefix(k, prefix) {
			delete(n.nodes, k)
		}
	}
	for k, v := range moved {
		n.nodes[k] = v
	}

	siblings := n.nodes[parent].children
	for i, c := range siblings {
		if c == path.Base(p) {
			siblings[i] = newName
			break
		}
	}
	return nil
}

// Logout implements port.FileStation
func (n *NAS) Logout(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.record(OpLogout, "/")
}
