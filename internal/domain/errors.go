package domain

import (
	"errors"
	"fmt"
)

// Common domain errors
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")

	// Credential errors
	ErrCredentialsUnavailable = errors.New("credentials unavailable")
	ErrPromptDisallowed       = errors.New("interactive prompt not allowed in headless mode")

	// Remote errors
	ErrRemoteUnreachable = errors.New("remote unreachable")
	ErrAmbiguousObject   = errors.New("more than one candidate object under key")
)

// ConfigurationError reports a missing or invalid required setting.
type ConfigurationError struct {
	Setting string
	Reason  string
	Err     error
}

// Error returns the error message
func (e *ConfigurationError) Error() string {
	msg := fmt.Sprintf("config '%s': %s", e.Setting, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// NewConfigurationError creates a new configuration error
func NewConfigurationError(setting, reason string, err error) *ConfigurationError {
	return &ConfigurationError{Setting: setting, Reason: reason, Err: err}
}

// IsConfiguration returns true if err is a configuration error
func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// CredentialsError reports that a credential field could not be resolved.
// Err is ErrCredentialsUnavailable or ErrPromptDisallowed.
type CredentialsError struct {
	Field string
	Err   error
}

// Error returns the error message
func (e *CredentialsError) Error() string {
	switch {
	case errors.Is(e.Err, ErrPromptDisallowed):
		return fmt.Sprintf("%s has not been stored, please rerun setup", e.Field)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s", e.Field, e.Err.Error())
	}
	return e.Field + ": credentials unavailable"
}

// Unwrap returns the underlying error
func (e *CredentialsError) Unwrap() error {
	return e.Err
}

// AuthenticationError reports that the vendor rejected the credentials or
// that the session could not be constructed.
type AuthenticationError struct {
	Hostname string
	Err      error
}

// Error returns the error message
func (e *AuthenticationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication with %s failed: %s", e.Hostname, e.Err.Error())
	}
	return fmt.Sprintf("authentication with %s failed", e.Hostname)
}

// Unwrap returns the underlying error
func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// IsAuthentication returns true if err is an authentication error
func IsAuthentication(err error) bool {
	var ae *AuthenticationError
	return errors.As(err, &ae)
}

// RemoteIOError reports a failed or unsuccessful vendor call.
type RemoteIOError struct {
	Op   string
	Path string
	Err  error
}

// Error returns the error message
func (e *RemoteIOError) Error() string {
	msg := e.Op
	if e.Path != "" {
		msg += fmt.Sprintf(" %q", e.Path)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg + " failed"
}

// Unwrap returns the underlying error
func (e *RemoteIOError) Unwrap() error {
	return e.Err
}

// NewRemoteIOError creates a new remote I/O error
func NewRemoteIOError(op, path string, err error) *RemoteIOError {
	return &RemoteIOError{Op: op, Path: path, Err: err}
}

// IsRemoteIO returns true if err is a remote I/O error
func IsRemoteIO(err error) bool {
	var re *RemoteIOError
	return errors.As(err, &re)
}

// VaultError reports a failure of the OS secret store. It is never retried.
type VaultError struct {
	Op  string
	Err error
}

// Error returns the error message
func (e *VaultError) Error() string {
	return fmt.Sprintf("vault %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *VaultError) Unwrap() error {
	return e.Err
}

// LocalStoreTransientError represents lock contention on the local
// credential database. It should trigger a retry.
type LocalStoreTransientError struct {
	Err error
}

// Error returns the error message
func (e *LocalStoreTransientError) Error() string {
	if e.Err != nil {
		return "local store busy: " + e.Err.Error()
	}
	return "local store busy"
}

// Unwrap returns the underlying error
func (e *LocalStoreTransientError) Unwrap() error {
	return e.Err
}

// NewLocalStoreTransientError creates a new transient store error
func NewLocalStoreTransientError(err error) *LocalStoreTransientError {
	return &LocalStoreTransientError{Err: err}
}

// IsRetryable returns true if the error should be retried
func IsRetryable(err error) bool {
	var te *LocalStoreTransientError
	return errors.As(err, &te)
}
