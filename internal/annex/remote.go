// Package annex drives a special remote over git-annex's line protocol on
// stdin and stdout.
package annex

import (
	"context"
)

// SpecialRemote is the operation set git-annex drives
type SpecialRemote interface {
	InitRemote(ctx context.Context) error
	Prepare(ctx context.Context) error
	TransferStore(ctx context.Context, key, file string) error
	TransferRetrieve(ctx context.Context, key, file string) error
	CheckPresent(ctx context.Context, key string) (bool, error)
	Remove(ctx context.Context, key string) error
}

// ConfigLister is implemented by remotes that describe their settings
type ConfigLister interface {
	ListConfigs() [][2]string
}

// Host is what a remote may ask of git-annex while handling a request
type Host interface {
	// GetConfig returns the remote's setting, or "" when unset
	GetConfig(name string) (string, error)

	// Debug sends a debug line
	Debug(message string)

	// Progress reports bytes transferred so far for the current transfer
	Progress(bytes int64)
}

// RemoteError is the single failure signal reported to git-annex.
// Err, when set, is the underlying cause.
type RemoteError struct {
	Message string
	Err     error
}

// Error returns the error message
func (e *RemoteError) Error() string {
	return e.Message
}

// Unwrap returns the underlying error
func (e *RemoteError) Unwrap() error {
	return e.Err
}
