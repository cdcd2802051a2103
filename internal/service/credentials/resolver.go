// Package credentials resolves the username, password and one-time code for a
// NAS host from the environment, the local store, the OS vault and the user.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/vertextoedge/git-annex-remote-synology/internal/domain"
	"github.com/vertextoedge/git-annex-remote-synology/internal/port"
)

// Config contains resolver configuration
type Config struct {
	// Hostname the credentials belong to
	Hostname string

	// Headless forbids interactive prompts
	Headless bool

	// Getenv reads override variables; defaults to os.Getenv
	Getenv func(string) string

	// RunCommand runs the one-time code command; defaults to running it with os/exec
	RunCommand CommandRunner
}

// Resolver resolves credentials for one hostname. It holds an open
// CredentialStore between Open and Close and is not safe for concurrent use.
type Resolver struct {
	config   Config
	store    port.CredentialStore
	vault    port.Vault
	prompter port.Prompter
	logger   *zap.Logger

	username    string
	totpCommand string
}

// step is one source in a resolution cascade. persist marks values that
// must be written back once found.
type step struct {
	source  string
	lookup  func(ctx context.Context) (string, error)
	persist bool
}

// Open opens the credential store and returns a Resolver scoped to it.
// The caller must Close the Resolver; see WithResolver.
func Open(ctx context.Context, cfg Config, opener port.StoreOpener, vault port.Vault, prompter port.Prompter, logger *zap.Logger) (*Resolver, error) {
	if cfg.Hostname == "" {
		return nil, domain.NewConfigurationError(domain.SettingHostname, "is required", nil)
	}
	if cfg.Getenv == nil {
		cfg.Getenv = os.Getenv
	}
	if cfg.RunCommand == nil {
		cfg.RunCommand = ExecCommand
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	store, err := opener(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open credential store: %w", err)
	}

	return &Resolver{
		config:   cfg,
		store:    store,
		vault:    vault,
		prompter: prompter,
		logger:   logger.With(zap.String("hostname", cfg.Hostname)),
	}, nil
}

// WithResolver opens a Resolver, runs fn and closes the Resolver on every exit path
func WithResolver(ctx context.Context, cfg Config, opener port.StoreOpener, vault port.Vault, prompter port.Prompter, logger *zap.Logger, fn func(*Resolver) error) (err error) {
	r, err := Open(ctx, cfg, opener, vault, prompter, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := r.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close credential store: %w", closeErr)
		}
	}()
	return fn(r)
}

// Close releases the credential store
func (r *Resolver) Close() error {
	if r.store == nil {
		return nil
	}
	err := r.store.Close()
	r.store = nil
	return err
}

// Hostname returns the hostname the resolver serves
func (r *Resolver) Hostname() string {
	return r.config.Hostname
}

// ServiceID returns the vault service id for the hostname
func (r *Resolver) ServiceID() string {
	return domain.ServiceID(r.config.Hostname)
}

// resolve returns the first non-empty value produced by steps, and the step that produced it
func resolve(ctx context.Context, steps []step) (string, *step, error) {
	for i := range steps {
		value, err := steps[i].lookup(ctx)
		if err != nil {
			return "", &steps[i], err
		}
		if value != "" {
			return value, &steps[i], nil
		}
	}
	return "", nil, nil
}

func (r *Resolver) envStep(name string) step {
	return step{
		source:  "env " + name,
		persist: true,
		lookup: func(ctx context.Context) (string, error) {
			return r.config.Getenv(name), nil
		},
	}
}

// record reads the stored row for the hostname
func (r *Resolver) record(ctx context.Context) (*domain.CredentialRecord, error) {
	if r.store == nil {
		return nil, errors.New("credential store is closed")
	}
	return r.store.Get(ctx, r.config.Hostname)
}

func (r *Resolver) usernameSteps() []step {
	return []step{
		r.envStep(domain.UsernameEnv),
		{source: "cache", lookup: func(ctx context.Context) (string, error) {
			return r.username, nil
		}},
		{source: "store", lookup: func(ctx context.Context) (string, error) {
			rec, err := r.record(ctx)
			if err != nil || rec == nil {
				return "", err
			}
			return rec.Username, nil
		}},
		{source: "prompt", persist: true, lookup: func(ctx context.Context) (string, error) {
			return r.prompt("username", r.prompterUsername)
		}},
	}
}

func (r *Resolver) totpCommandSteps() []step {
	return []step{
		r.envStep(domain.TOTPCommandEnv),
		{source: "cache", lookup: func(ctx context.Context) (string, error) {
			return r.totpCommand, nil
		}},
		{source: "store", lookup: func(ctx context.Context) (string, error) {
			rec, err := r.record(ctx)
			if err != nil || rec == nil {
				return "", err
			}
			return rec.TOTPCommand, nil
		}},
	}
}

func (r *Resolver) prompterUsername() (string, error) {
	return r.prompter.Username()
}

func (r *Resolver) prompterPassword() (string, error) {
	return r.prompter.Password()
}

func (r *Resolver) prompt(field string, ask func() (string, error)) (string, error) {
	if r.config.Headless || r.prompter == nil {
		return "", &domain.CredentialsError{Field: field, Err: domain.ErrPromptDisallowed}
	}
	r.logger.Debug("prompting", zap.String("field", field))
	value, err := ask()
	if err != nil {
		return "", &domain.CredentialsError{Field: field, Err: fmt.Errorf("%w: prompt failed: %v", domain.ErrCredentialsUnavailable, err)}
	}
	return value, nil
}

// Username resolves the username: environment, this session's cache, the
// store, then a prompt. New values from the environment or a prompt are
// written to the store before they are returned.
func (r *Resolver) Username(ctx context.Context) (string, error) {
	username, src, err := resolve(ctx, r.usernameSteps())
	if err != nil {
		return "", err
	}
	if username == "" {
		r.logger.Debug("username was not resolved")
		return "", &domain.CredentialsError{Field: "username", Err: domain.ErrCredentialsUnavailable}
	}

	if src.persist && username != r.username {
		totpCommand, err := r.peekTOTPCommand(ctx)
		if err != nil {
			return "", err
		}
		if err := r.save(ctx, username, totpCommand); err != nil {
			return "", err
		}
	}

	r.username = username
	r.logger.Debug("resolved username", zap.String("username", username), zap.String("source", src.source))
	return username, nil
}

// TOTPCommand resolves the one-time code command: environment, this session's
// cache, then the store. An empty result is valid.
func (r *Resolver) TOTPCommand(ctx context.Context) (string, error) {
	command, src, err := resolve(ctx, r.totpCommandSteps())
	if err != nil {
		return "", err
	}
	if command == "" {
		return "", nil
	}

	if src.persist && command != r.totpCommand {
		username, err := r.Username(ctx)
		if err != nil {
			return "", err
		}
		if err := r.save(ctx, username, command); err != nil {
			return "", err
		}
	}

	r.totpCommand = command
	r.logger.Debug("resolved totp command", zap.String("source", src.source))
	return command, nil
}

// peekTOTPCommand resolves the command without writing anything back
func (r *Resolver) peekTOTPCommand(ctx context.Context) (string, error) {
	command, _, err := resolve(ctx, r.totpCommandSteps())
	return command, err
}

func (r *Resolver) save(ctx context.Context, username, totpCommand string) error {
	if r.store == nil {
		return errors.New("credential store is closed")
	}
	err := r.store.Upsert(ctx, &domain.CredentialRecord{
		Hostname:    r.config.Hostname,
		Username:    username,
		TOTPCommand: totpCommand,
	})
	if err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	r.logger.Debug("saved credential record", zap.String("username", username))
	return nil
}

// Password resolves the password: environment, the vault, then a prompt.
// Values from the environment or a prompt are written to the vault.
// The password is never written to the store.
func (r *Resolver) Password(ctx context.Context) (string, error) {
	username, err := r.Username(ctx)
	if err != nil {
		return "", err
	}
	service := r.ServiceID()

	steps := []step{
		r.envStep(domain.PasswordEnv),
		{source: "vault", lookup: func(ctx context.Context) (string, error) {
			return r.vault.Get(service, username)
		}},
		{source: "prompt", persist: true, lookup: func(ctx context.Context) (string, error) {
			return r.prompt("password", r.prompterPassword)
		}},
	}

	password, src, err := resolve(ctx, steps)
	if err != nil {
		return "", err
	}
	if password == "" {
		r.logger.Debug("password was not resolved")
		return "", &domain.CredentialsError{Field: "password", Err: domain.ErrCredentialsUnavailable}
	}

	if src.persist {
		if err := r.vault.Set(service, username, password); err != nil {
			return "", err
		}
	}

	r.logger.Debug("resolved password", zap.String("source", src.source))
	return password, nil
}

// TOTPCode runs the one-time code command, if any, and returns its output.
// A failing command yields an empty code. The code is never cached.
func (r *Resolver) TOTPCode(ctx context.Context) (string, error) {
	command, err := r.TOTPCommand(ctx)
	if err != nil || command == "" {
		return "", err
	}

	code, err := runTOTP(ctx, r.config.RunCommand, command)
	if err != nil {
		r.logger.Warn("one-time code command failed, continuing without a code", zap.Error(err))
		return "", nil
	}
	r.logger.Debug("one-time code generated", zap.Bool("present", code != ""))
	return code, nil
}

// Resolve returns a complete set of credentials
func (r *Resolver) Resolve(ctx context.Context) (*domain.Credentials, error) {
	username, err := r.Username(ctx)
	if err != nil {
		return nil, err
	}
	password, err := r.Password(ctx)
	if err != nil {
		return nil, err
	}
	totpCommand, err := r.TOTPCommand(ctx)
	if err != nil {
		return nil, err
	}
	code, err := r.TOTPCode(ctx)
	if err != nil {
		return nil, err
	}

	return &domain.Credentials{
		Username:    username,
		Password:    password,
		TOTPCommand: totpCommand,
		TOTPCode:    code,
	}, nil
}

// DeletePassword removes the vault entry for the resolved username.
// The stored username and command are left alone.
func (r *Resolver) DeletePassword(ctx context.Context) error {
	username, err := r.Username(ctx)
	if err != nil {
		return err
	}
	err = r.vault.Delete(r.ServiceID(), username)
	if errors.Is(err, domain.ErrNotFound) {
		r.logger.Debug("no stored password to delete", zap.String("username", username))
		return nil
	}
	if err != nil {
		return err
	}
	r.logger.Info("deleted stored password", zap.String("username", username))
	return nil
}
