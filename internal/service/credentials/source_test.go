package credentials

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vertextoedge/git-annex-remote-synology/internal/domain"
)

func clearCredentialEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{domain.UsernameEnv, domain.PasswordEnv, domain.TOTPCommandEnv} {
		t.Setenv(name, "")
	}
}

func TestSource_ResolvesStoredCredentials(t *testing.T) {
	clearCredentialEnv(t)
	f := newFixture()
	f.store.records[testHost] = domain.CredentialRecord{Hostname: testHost, Username: "annex"}
	f.vault.secrets[domain.ServiceID(testHost)+"/annex"] = "secret"

	source := Source(f.store.opener(), f.vault, nil)
	creds, err := source(context.Background(), testHost)
	require.NoError(t, err)

	assert.Equal(t, "annex", creds.Username)
	assert.Equal(t, "secret", creds.Password)
	assert.Empty(t, creds.TOTPCode)
	assert.Equal(t, 1, f.store.closed)
}

func TestSource_NeverPrompts(t *testing.T) {
	clearCredentialEnv(t)
	f := newFixture()
	f.store.records[testHost] = domain.CredentialRecord{Hostname: testHost, Username: "annex"}

	source := Source(f.store.opener(), f.vault, nil)
	_, err := source(context.Background(), testHost)

	var ce *domain.CredentialsError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "password", ce.Field)
	assert.True(t, errors.Is(err, domain.ErrPromptDisallowed))
	assert.Equal(t, 1, f.store.closed)
}

func TestSource_EnvironmentOverride(t *testing.T) {
	clearCredentialEnv(t)
	t.Setenv(domain.UsernameEnv, "ci")
	t.Setenv(domain.PasswordEnv, "from-env")
	f := newFixture()

	creds, err := Source(f.store.opener(), f.vault, nil)(context.Background(), testHost)
	require.NoError(t, err)
	assert.Equal(t, "ci", creds.Username)
	assert.Equal(t, "from-env", creds.Password)
	assert.Equal(t, "ci", f.store.records[testHost].Username)
}
