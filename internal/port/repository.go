package port

import (
	"context"

	"github.com/vertextoedge/git-annex-remote-synology/internal/domain"
)

// CredentialStore persists the non-secret part of a credential, keyed by hostname
type CredentialStore interface {
	// Get returns the record for hostname, or nil if none exists
	Get(ctx context.Context, hostname string) (*domain.CredentialRecord, error)

	// Upsert inserts the record, or overwrites username and totp command on hostname conflict
	Upsert(ctx context.Context, record *domain.CredentialRecord) error

	// Close releases the underlying connection
	Close() error
}

// StoreOpener opens a CredentialStore. Each resolver scope opens and closes its own.
type StoreOpener func(ctx context.Context) (CredentialStore, error)

// Vault is the OS secret store.
// Get returns an empty string and no error when no secret is stored.
type Vault interface {
	Get(service, account string) (string, error)
	Set(service, account, secret string) error
	Delete(service, account string) error
}

// Prompter asks the user for missing credentials
type Prompter interface {
	Username() (string, error)
	Password() (string, error)
}
