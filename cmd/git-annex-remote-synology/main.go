package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vertextoedge/git-annex-remote-synology/internal/adapter/filesystem"
	"github.com/vertextoedge/git-annex-remote-synology/internal/adapter/keyring"
	"github.com/vertextoedge/git-annex-remote-synology/internal/adapter/sqlite"
	"github.com/vertextoedge/git-annex-remote-synology/internal/adapter/synology"
	"github.com/vertextoedge/git-annex-remote-synology/internal/annex"
	"github.com/vertextoedge/git-annex-remote-synology/internal/config"
	"github.com/vertextoedge/git-annex-remote-synology/internal/logger"
	"github.com/vertextoedge/git-annex-remote-synology/internal/port"
	"github.com/vertextoedge/git-annex-remote-synology/internal/service/credentials"
	"github.com/vertextoedge/git-annex-remote-synology/internal/service/remote"
)

const version = "0.3.0"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app holds what every command needs
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	opener port.StoreOpener
	vault  port.Vault
}

// newApp loads the configuration and initializes logging.
// The caller must defer logger.Sync().
func newApp(cmd *cobra.Command) (*app, error) {
	configPath, _ := cmd.Flags().GetString("config")

	dir, err := config.Dir()
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(configPath, dir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File); err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	zapLogger := logger.GetZapLogger()

	return &app{
		cfg:    cfg,
		logger: zapLogger,
		opener: sqlite.Opener(cfg.Database.Path, &sqlite.Options{
			BusyTimeout: cfg.Database.GetBusyTimeout(),
			MaxRetries:  uint64(cfg.Database.MaxRetries),
			Logger:      zapLogger,
		}),
		vault: keyring.New(),
	}, nil
}

// sessionFactory returns the vendor client factory
func (a *app) sessionFactory(log *zap.Logger) port.SessionFactory {
	return synology.Factory(&synology.ClientConfig{
		Timeout:      a.cfg.HTTP.GetTimeout(),
		BufferSizeKB: a.cfg.HTTP.BufferSizeKB,
		Logger:       log,
	})
}

// signalContext returns a context cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

var rootCmd = &cobra.Command{
	Use:           "git-annex-remote-synology",
	Short:         "git-annex special remote for Synology NAS",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer logger.Sync()
		return listen(a, os.Stdin, os.Stdout)
	},
}

// listen serves git-annex on in and out until it closes the pipe. Nothing
// may be written to out before Listen sends VERSION.
func listen(a *app, in io.Reader, out io.Writer) error {
	ctx, cancel := signalContext()
	defer cancel()

	a.logger.Debug("starting special remote", zap.String("version", version))

	master := annex.NewMaster(in, out)
	log := logger.WithHost(a.logger, master.Debug)

	r := remote.New(
		master,
		a.sessionFactory(log),
		credentials.Source(a.opener, a.vault, log),
		filesystem.NewManager(),
		remote.Config{ProgressInterval: a.cfg.Transfer.GetProgressInterval()},
		log,
	)
	master.LinkRemote(r)

	err := master.Listen(ctx)
	if closeErr := r.Close(context.Background()); closeErr != nil {
		a.logger.Warn("failed to log out", zap.Error(closeErr))
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error("listen stopped with error", zap.Error(err))
		return err
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to configuration file (default: config.yaml in the user config dir)")

	rootCmd.AddCommand(setupCmd)
	setupCmd.Flags().String("hostname", "", "Hostname of the Synology NAS")
	setupCmd.Flags().Bool("clear-password", false, "Delete the stored password before asking for it again")
	setupCmd.MarkFlagRequired("hostname")

	rootCmd.AddCommand(lsCmd)
	addConnectionFlags(lsCmd)
	lsCmd.Flags().String("path", "/", "Remote folder to list")
	lsCmd.Flags().BoolP("recursive", "r", false, "Recurse into subfolders")

	rootCmd.AddCommand(downloadCmd)
	addConnectionFlags(downloadCmd)
	downloadCmd.Flags().String("path", "", "Remote folder to download")
	downloadCmd.Flags().String("dest", ".", "Local destination directory")
	downloadCmd.MarkFlagRequired("path")
}
