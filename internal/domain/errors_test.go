package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestConfigurationError_Error(t *testing.T) {
	tests := []struct {
		name    string
		setting string
		reason  string
		err     error
		want    string
	}{
		{
			name:    "missing value",
			setting: "hostname",
			reason:  "a value must be provided",
			want:    "config 'hostname': a value must be provided",
		},
		{
			name:    "with underlying error",
			setting: "port",
			reason:  "not an integer",
			err:     errors.New("parse error"),
			want:    "config 'port': not an integer: parse error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ce := NewConfigurationError(tt.setting, tt.reason, tt.err)
			if got := ce.Error(); got != tt.want {
				t.Errorf("Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsConfiguration(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "configuration error",
			err:  NewConfigurationError("path", "required", nil),
			want: true,
		},
		{
			name: "wrapped configuration error",
			err:  fmt.Errorf("prepare: %w", NewConfigurationError("path", "required", nil)),
			want: true,
		},
		{
			name: "regular error",
			err:  errors.New("regular error"),
			want: false,
		},
		{
			name: "nil error",
			err:  nil,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsConfiguration(tt.err); got != tt.want {
				t.Errorf("IsConfiguration() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCredentialsError_Distinguishable(t *testing.T) {
	headless := &CredentialsError{Field: "password", Err: ErrPromptDisallowed}
	empty := &CredentialsError{Field: "password", Err: ErrCredentialsUnavailable}

	if !errors.Is(headless, ErrPromptDisallowed) {
		t.Error("headless error should match ErrPromptDisallowed")
	}
	if errors.Is(headless, ErrCredentialsUnavailable) {
		t.Error("headless error should not match ErrCredentialsUnavailable")
	}
	if !errors.Is(empty, ErrCredentialsUnavailable) {
		t.Error("empty error should match ErrCredentialsUnavailable")
	}
	if got, want := headless.Error(), "password has not been stored, please rerun setup"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestRemoteIOError(t *testing.T) {
	underlying := errors.New("connection refused")
	re := NewRemoteIOError("list", "/volume1", underlying)

	if got, want := re.Error(), `list "/volume1": connection refused`; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if got := re.Unwrap(); got != underlying {
		t.Errorf("Unwrap() = %v, want %v", got, underlying)
	}
	if !IsRemoteIO(fmt.Errorf("wrapped: %w", re)) {
		t.Error("IsRemoteIO() should see through wrapping")
	}

	noCause := NewRemoteIOError("delete", "", nil)
	if got, want := noCause.Error(), "delete failed"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestAuthenticationError(t *testing.T) {
	err := fmt.Errorf("prepare: %w", &AuthenticationError{Hostname: "nas.local", Err: errors.New("code 400")})
	if !IsAuthentication(err) {
		t.Error("IsAuthentication() = false, want true")
	}
	if IsAuthentication(errors.New("other")) {
		t.Error("IsAuthentication() = true for plain error")
	}
}

func TestLocalStoreTransientError(t *testing.T) {
	err := NewLocalStoreTransientError(errors.New("database is locked"))

	if got, want := err.Error(), "local store busy: database is locked"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !IsRetryable(fmt.Errorf("wrapped: %w", err)) {
		t.Error("IsRetryable() = false, want true")
	}
	if IsRetryable(errors.New("plain")) {
		t.Error("IsRetryable() = true for plain error")
	}
}

func TestSplitRemotePath(t *testing.T) {
	tests := []struct {
		in         string
		wantParent string
		wantName   string
	}{
		{"/volume1/annex", "/volume1", "annex"},
		{"/volume1", "", "volume1"},
		{"/volume1/annex/", "/volume1", "annex"},
		{"annex", "", "annex"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			parent, name := SplitRemotePath(tt.in)
			if parent != tt.wantParent || name != tt.wantName {
				t.Errorf("SplitRemotePath(%q) = (%q, %q), want (%q, %q)", tt.in, parent, name, tt.wantParent, tt.wantName)
			}
		})
	}
}

func TestServiceIDAndBaseURL(t *testing.T) {
	if got, want := ServiceID("nas.local"), "nas.local-git-annex-remote-synology"; got != want {
		t.Errorf("ServiceID() = %q, want %q", got, want)
	}

	tests := []struct {
		params SessionParams
		want   string
	}{
		{SessionParams{Hostname: "nas.local", Port: 5001, Secure: true}, "https://nas.local:5001"},
		{SessionParams{Hostname: "192.168.1.10", Port: 5000}, "http://192.168.1.10:5000"},
		{SessionParams{Hostname: "fd00::10", Port: 5001, Secure: true}, "https://[fd00::10]:5001"},
	}
	for _, tt := range tests {
		if got := tt.params.BaseURL(); got != tt.want {
			t.Errorf("BaseURL() = %q, want %q", got, tt.want)
		}
	}
}
