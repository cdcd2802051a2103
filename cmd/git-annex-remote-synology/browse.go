package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vertextoedge/git-annex-remote-synology/internal/adapter/filesystem"
	"github.com/vertextoedge/git-annex-remote-synology/internal/annex"
	"github.com/vertextoedge/git-annex-remote-synology/internal/domain"
	"github.com/vertextoedge/git-annex-remote-synology/internal/logger"
	"github.com/vertextoedge/git-annex-remote-synology/internal/port"
	"github.com/vertextoedge/git-annex-remote-synology/internal/service/credentials"
	"github.com/vertextoedge/git-annex-remote-synology/internal/service/nas"
	"github.com/vertextoedge/git-annex-remote-synology/internal/service/remote"
)

// flagHost serves remote settings from command line flags
type flagHost struct {
	values map[string]string
	logger *zap.Logger
}

// Ensure flagHost implements annex.Host
var _ annex.Host = (*flagHost)(nil)

func (h *flagHost) GetConfig(name string) (string, error) {
	return h.values[name], nil
}

func (h *flagHost) Debug(message string) {
	h.logger.Debug(message)
}

func (h *flagHost) Progress(bytes int64) {}

func addConnectionFlags(cmd *cobra.Command) {
	cmd.Flags().String("hostname", "", "Hostname of the Synology NAS")
	cmd.Flags().Int("port", domain.DefaultPort, "Port of the Synology NAS")
	cmd.Flags().String("protocol", domain.DefaultProtocol, "Protocol, 'http' or 'https'")
	cmd.Flags().Bool("ignore-ssl", domain.DefaultIgnoreSSL, "Ignore certificate errors with https")
	cmd.Flags().Int("dsm-version", domain.DefaultDSMVersion, "Major DSM version")
	cmd.MarkFlagRequired("hostname")
}

// hostFromFlags maps the connection flags onto remote setting names
func hostFromFlags(cmd *cobra.Command, log *zap.Logger) *flagHost {
	hostname, _ := cmd.Flags().GetString("hostname")
	port, _ := cmd.Flags().GetInt("port")
	protocol, _ := cmd.Flags().GetString("protocol")
	ignoreSSL, _ := cmd.Flags().GetBool("ignore-ssl")
	dsmVersion, _ := cmd.Flags().GetInt("dsm-version")

	return &flagHost{
		values: map[string]string{
			domain.SettingHostname:   hostname,
			domain.SettingPort:       strconv.Itoa(port),
			domain.SettingProtocol:   protocol,
			domain.SettingIgnoreSSL:  strconv.FormatBool(ignoreSSL),
			domain.SettingDSMVersion: strconv.Itoa(dsmVersion),
		},
		logger: log,
	}
}

// interactiveSource resolves credentials, prompting on the terminal when needed
func (a *app) interactiveSource(prompter port.Prompter) remote.CredentialSource {
	return func(ctx context.Context, hostname string) (*domain.Credentials, error) {
		var creds *domain.Credentials
		cfg := credentials.Config{Hostname: hostname}
		err := credentials.WithResolver(ctx, cfg, a.opener, a.vault, prompter, a.logger, func(r *credentials.Resolver) error {
			var err error
			creds, err = r.Resolve(ctx)
			return err
		})
		return creds, err
	}
}

// connect opens a session from the connection flags and runs fn on its tree
func connect(cmd *cobra.Command, fn func(ctx context.Context, tree *nas.Tree) error) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, cancel := signalContext()
	defer cancel()

	r := remote.New(
		hostFromFlags(cmd, a.logger),
		a.sessionFactory(a.logger),
		a.interactiveSource(credentials.NewTerminalPrompter(os.Stderr)),
		filesystem.NewManager(),
		remote.Config{ProgressInterval: a.cfg.Transfer.GetProgressInterval()},
		a.logger,
	)
	defer func() {
		if err := r.Close(context.Background()); err != nil {
			a.logger.Warn("failed to log out", zap.Error(err))
		}
	}()

	tree, err := r.Tree(ctx)
	if err != nil {
		return err
	}
	return fn(ctx, tree)
}

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List a remote folder",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		remotePath, _ := cmd.Flags().GetString("path")
		recursive, _ := cmd.Flags().GetBool("recursive")

		return connect(cmd, func(ctx context.Context, tree *nas.Tree) error {
			return list(ctx, cmd.OutOrStdout(), tree, remotePath, recursive)
		})
	},
}

func list(ctx context.Context, out io.Writer, tree *nas.Tree, remotePath string, recursive bool) error {
	paths, err := tree.ListStructure(ctx, remotePath, recursive)
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Fprintln(out, p)
	}
	return nil
}

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download a remote folder recursively",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		remotePath, _ := cmd.Flags().GetString("path")
		dest, _ := cmd.Flags().GetString("dest")

		return connect(cmd, func(ctx context.Context, tree *nas.Tree) error {
			return tree.DownloadFolder(ctx, remotePath, dest, &printObserver{out: cmd.OutOrStdout()})
		})
	},
}

// printObserver prints per-file download progress
type printObserver struct {
	out io.Writer
}

func (o *printObserver) FolderStarted(remotePath string, files int) {
	fmt.Fprintf(o.out, "%s: %d files\n", remotePath, files)
}

func (o *printObserver) FileDownloaded(remotePath, localPath string, done, total int) {
	fmt.Fprintf(o.out, "[%d/%d] %s -> %s\n", done, total, remotePath, localPath)
}
