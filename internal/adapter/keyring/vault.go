package keyring

import (
	"errors"

	gokeyring "github.com/zalando/go-keyring"

	"github.com/vertextoedge/git-annex-remote-synology/internal/domain"
	"github.com/vertextoedge/git-annex-remote-synology/internal/port"
)

// Vault stores secrets in the OS keychain (Secret Service, macOS Keychain, Windows Credential Manager)
type Vault struct{}

// Ensure Vault implements port.Vault
var _ port.Vault = Vault{}

// New returns the OS keychain vault
func New() Vault {
	return Vault{}
}

// Get returns the secret, or "" if none is stored
func (Vault) Get(service, account string) (string, error) {
	secret, err := gokeyring.Get(service, account)
	if errors.Is(err, gokeyring.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", &domain.VaultError{Op: "get", Err: err}
	}
	return secret, nil
}

// Set stores the secret, replacing any previous one
func (Vault) Set(service, account, secret string) error {
	if err := gokeyring.Set(service, account, secret); err != nil {
		return &domain.VaultError{Op: "set", Err: err}
	}
	return nil
}

// Delete removes the secret. A missing secret is reported as domain.ErrNotFound.
func (Vault) Delete(service, account string) error {
	err := gokeyring.Delete(service, account)
	if errors.Is(err, gokeyring.ErrNotFound) {
		return domain.ErrNotFound
	}
	if err != nil {
		return &domain.VaultError{Op: "delete", Err: err}
	}
	return nil
}
