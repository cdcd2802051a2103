package credentials

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/google/shlex"
)

// CommandRunner runs argv and returns its standard output
type CommandRunner func(ctx context.Context, argv []string) ([]byte, error)

// ExecCommand runs argv directly, without a shell
func ExecCommand(ctx context.Context, argv []string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return out, nil
}

// runTOTP splits command with shell quoting rules, runs it and returns
// its trimmed output
func runTOTP(ctx context.Context, run CommandRunner, command string) (string, error) {
	argv, err := shlex.Split(command)
	if err != nil {
		return "", fmt.Errorf("invalid one-time code command: %w", err)
	}
	if len(argv) == 0 {
		return "", fmt.Errorf("invalid one-time code command: empty")
	}

	out, err := run(ctx, argv)
	if err != nil {
		return "", fmt.Errorf("one-time code command %s: %w", argv[0], err)
	}
	return strings.TrimSpace(string(out)), nil
}
