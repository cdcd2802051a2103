package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vertextoedge/git-annex-remote-synology/internal/domain"
)

func openTestStore(t *testing.T, opts *Options) (*Store, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "nested", "config.db")
	store, err := Open(context.Background(), dbPath, opts)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, dbPath
}

func TestOpen_CreatesSchema(t *testing.T) {
	store, _ := openTestStore(t, nil)

	tables := []string{"users", "schema_migrations"}
	for _, table := range tables {
		var name string
		err := store.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		assert.NoError(t, err, "table %s was not created", table)
	}
}

func TestOpen_Reopen(t *testing.T) {
	ctx := context.Background()
	store, dbPath := openTestStore(t, nil)
	require.NoError(t, store.Upsert(ctx, &domain.CredentialRecord{Hostname: "nas.local", Username: "annex"}))
	require.NoError(t, store.Close())

	reopened, err := Open(ctx, dbPath, nil)
	require.NoError(t, err)
	defer reopened.Close()

	record, err := reopened.Get(ctx, "nas.local")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "annex", record.Username)
}

func TestGet_Missing(t *testing.T) {
	store, _ := openTestStore(t, nil)

	record, err := store.Get(context.Background(), "unknown.local")
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestUpsert_OverwritesOnConflict(t *testing.T) {
	ctx := context.Background()
	store, _ := openTestStore(t, nil)

	require.NoError(t, store.Upsert(ctx, &domain.CredentialRecord{
		Hostname: "nas.local", Username: "first", TOTPCommand: "oathtool --totp ABC",
	}))
	require.NoError(t, store.Upsert(ctx, &domain.CredentialRecord{
		Hostname: "nas.local", Username: "second",
	}))
	require.NoError(t, store.Upsert(ctx, &domain.CredentialRecord{
		Hostname: "other.local", Username: "third",
	}))

	record, err := store.Get(ctx, "nas.local")
	require.NoError(t, err)
	assert.Equal(t, &domain.CredentialRecord{Hostname: "nas.local", Username: "second"}, record)

	var count int
	require.NoError(t, store.db.QueryRow("SELECT COUNT(*) FROM users").Scan(&count))
	assert.Equal(t, 2, count)
}

func TestUpsert_InvalidInput(t *testing.T) {
	store, _ := openTestStore(t, nil)

	err := store.Upsert(context.Background(), &domain.CredentialRecord{Username: "x"})
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

// lockDatabase holds a write lock on dbPath until the returned func is called
func lockDatabase(t *testing.T, dbPath string) func() {
	t.Helper()
	ctx := context.Background()

	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	conn, err := db.Conn(ctx)
	require.NoError(t, err)
	_, err = conn.ExecContext(ctx, "BEGIN EXCLUSIVE")
	require.NoError(t, err)

	return func() {
		conn.ExecContext(ctx, "COMMIT")
		conn.Close()
		db.Close()
	}
}

func TestUpsert_RetriesLockContention(t *testing.T) {
	store, dbPath := openTestStore(t, &Options{
		BusyTimeout:     0,
		MaxRetries:      50,
		InitialInterval: 10 * time.Millisecond,
	})

	unlock := lockDatabase(t, dbPath)
	go func() {
		time.Sleep(150 * time.Millisecond)
		unlock()
	}()

	err := store.Upsert(context.Background(), &domain.CredentialRecord{Hostname: "nas.local", Username: "annex"})
	require.NoError(t, err)

	record, err := store.Get(context.Background(), "nas.local")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "annex", record.Username)
}

func TestUpsert_GivesUpAfterMaxRetries(t *testing.T) {
	store, dbPath := openTestStore(t, &Options{
		BusyTimeout:     0,
		MaxRetries:      2,
		InitialInterval: time.Millisecond,
	})

	unlock := lockDatabase(t, dbPath)
	defer unlock()

	err := store.Upsert(context.Background(), &domain.CredentialRecord{Hostname: "nas.local", Username: "annex"})
	require.Error(t, err)
	assert.True(t, domain.IsRetryable(err))
	assert.Contains(t, err.Error(), "giving up after 3 attempts")
}

func TestIsTransient_PlainError(t *testing.T) {
	assert.False(t, isTransient(errors.New("disk I/O error")))
	assert.False(t, isTransient(nil))
}
