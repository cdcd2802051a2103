package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/vertextoedge/git-annex-remote-synology/internal/domain"
	"github.com/vertextoedge/git-annex-remote-synology/internal/port"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Store implements port.CredentialStore using SQLite
type Store struct {
	db      *sql.DB
	options Options
}

// Ensure Store implements port.CredentialStore
var _ port.CredentialStore = (*Store)(nil)

// Options tunes the connection and the lock-contention retry policy
type Options struct {
	BusyTimeout     time.Duration // SQLite busy_timeout; 0 disables waiting inside SQLite
	MaxRetries      uint64        // retries after the first attempt on SQLITE_BUSY/SQLITE_LOCKED
	InitialInterval time.Duration // first backoff interval
	Logger          *zap.Logger
}

// DefaultOptions returns the options used when none are given
func DefaultOptions() Options {
	return Options{
		BusyTimeout:     5 * time.Second,
		MaxRetries:      5,
		InitialInterval: 100 * time.Millisecond,
		Logger:          zap.NewNop(),
	}
}

// Open opens (creating if needed) the credential database at dbPath and migrates it
func Open(ctx context.Context, dbPath string, opts *Options) (*Store, error) {
	options := DefaultOptions()
	if opts != nil {
		options = *opts
		if options.Logger == nil {
			options.Logger = zap.NewNop()
		}
		if options.InitialInterval <= 0 {
			options.InitialInterval = 100 * time.Millisecond
		}
	}

	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create database dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)", dbPath, options.BusyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db, options: options}

	if err := store.withRetry(ctx, "migrate", store.migrate); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Opener returns a port.StoreOpener for dbPath
func Opener(dbPath string, opts *Options) port.StoreOpener {
	return func(ctx context.Context) (port.CredentialStore, error) {
		return Open(ctx, dbPath, opts)
	}
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// migrate brings the schema to the latest embedded version
func (s *Store) migrate() error {
	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("failed to read migration files: %w", err)
	}

	driver, err := migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
	if err != nil {
		source.Close()
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	// Closing m would close s.db; the store owns the connection.
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		source.Close()
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// Get returns the record for hostname, or nil if none exists
func (s *Store) Get(ctx context.Context, hostname string) (*domain.CredentialRecord, error) {
	var record *domain.CredentialRecord

	err := s.withRetry(ctx, "get credential", func() error {
		var username string
		var totpCommand sql.NullString

		err := s.db.QueryRowContext(ctx,
			"SELECT username, totp_command FROM users WHERE hostname = ?", hostname,
		).Scan(&username, &totpCommand)
		if err == sql.ErrNoRows {
			record = nil
			return nil
		}
		if err != nil {
			return err
		}

		record = &domain.CredentialRecord{
			Hostname:    hostname,
			Username:    username,
			TOTPCommand: totpCommand.String,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// Upsert inserts record, overwriting username and totp_command on hostname conflict
func (s *Store) Upsert(ctx context.Context, record *domain.CredentialRecord) error {
	if record == nil || record.Hostname == "" {
		return fmt.Errorf("upsert credential: %w", domain.ErrInvalidInput)
	}

	query := `
		INSERT INTO users (hostname, username, totp_command)
		VALUES (?, ?, ?)
		ON CONFLICT (hostname) DO
		UPDATE SET username = excluded.username, totp_command = excluded.totp_command
	`

	return s.withRetry(ctx, "upsert credential", func() error {
		_, err := s.db.ExecContext(ctx, query, record.Hostname, record.Username, record.TOTPCommand)
		return err
	})
}

// withRetry runs fn, retrying lock contention with bounded exponential backoff.
// Any other error is returned immediately.
func (s *Store) withRetry(ctx context.Context, op string, fn func() error) error {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = s.options.InitialInterval
	expo.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(expo, s.options.MaxRetries), ctx)

	attempts := 0
	err := backoff.RetryNotify(func() error {
		attempts++
		err := fn()
		if err == nil {
			return nil
		}
		if isTransient(err) {
			return domain.NewLocalStoreTransientError(err)
		}
		return backoff.Permanent(err)
	}, policy, func(err error, wait time.Duration) {
		s.options.Logger.Debug("local store busy, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempts),
			zap.Duration("wait", wait),
			zap.Error(err))
	})
	if err == nil {
		return nil
	}

	if domain.IsRetryable(err) {
		return fmt.Errorf("%s: giving up after %d attempts: %w", op, attempts, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// isTransient returns true for SQLITE_BUSY and SQLITE_LOCKED, including extended codes
func isTransient(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	return false
}
