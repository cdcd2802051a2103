package port

// Staging is a private local area where a download is written before it
// is moved into its final place.
type Staging interface {
	// Dir returns the staging directory
	Dir() string

	// Commit atomically moves the staged file to dest
	Commit(stagedFile, dest string) error

	// Discard removes the staging directory and anything left in it
	Discard() error
}

// LocalFS defines the local filesystem operations used by transfers
type LocalFS interface {
	// NewStaging creates a private staging area on the same filesystem as dest
	NewStaging(dest string) (Staging, error)

	// EnsureDir creates dir and any missing parents
	EnsureDir(dir string) error
}
