package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/vertextoedge/git-annex-remote-synology/internal/logger"
	"github.com/vertextoedge/git-annex-remote-synology/internal/port"
	"github.com/vertextoedge/git-annex-remote-synology/internal/service/credentials"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Store the username and password for a NAS",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		hostname, _ := cmd.Flags().GetString("hostname")
		clearPassword, _ := cmd.Flags().GetBool("clear-password")

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer logger.Sync()

		ctx, cancel := signalContext()
		defer cancel()

		prompter := credentials.NewTerminalPrompter(os.Stderr)
		ok, err := a.setup(ctx, cmd.OutOrStdout(), prompter, hostname, clearPassword)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("credentials for %s are incomplete", hostname)
		}
		return nil
	},
}

// setup resolves the username and password once, optionally deleting the
// stored password first. It reports whether both were obtained.
func (a *app) setup(ctx context.Context, out io.Writer, prompter port.Prompter, hostname string, clearPassword bool) (bool, error) {
	var username, password string
	cfg := credentials.Config{Hostname: hostname}

	err := credentials.WithResolver(ctx, cfg, a.opener, a.vault, prompter, a.logger, func(r *credentials.Resolver) error {
		if clearPassword {
			if err := r.DeletePassword(ctx); err != nil {
				return err
			}
		}

		var err error
		if username, err = r.Username(ctx); err != nil {
			return err
		}
		password, err = r.Password(ctx)
		return err
	})
	if err != nil {
		fmt.Fprintf(out, "We failed to collect username and password: %v\n", err)
		return false, nil
	}

	if username == "" || password == "" {
		fmt.Fprintln(out, "We failed to collect username and password.")
		return false, nil
	}
	fmt.Fprintf(out, "We found a password for %s.\n", username)
	return true, nil
}
