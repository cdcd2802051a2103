// Package remote implements the Synology special remote: host settings,
// lazy authentication and the six operations git-annex drives.
package remote

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/git-annex-remote-synology/internal/annex"
	"github.com/vertextoedge/git-annex-remote-synology/internal/domain"
	"github.com/vertextoedge/git-annex-remote-synology/internal/port"
	"github.com/vertextoedge/git-annex-remote-synology/internal/service/nas"
	"github.com/vertextoedge/git-annex-remote-synology/internal/util/ratelimiter"
)

// stagingSuffix marks a key folder whose upload has not completed
const stagingSuffix = ".uploading"

// State is the lifecycle state of a Remote
type State int

const (
	StateUnconfigured State = iota
	StateAuthenticated
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUnconfigured:
		return "unconfigured"
	case StateAuthenticated:
		return "authenticated"
	case StateReady:
		return "ready"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// CredentialSource resolves credentials for hostname without prompting
type CredentialSource func(ctx context.Context, hostname string) (*domain.Credentials, error)

// Config contains remote configuration
type Config struct {
	// ProgressInterval is the minimum time between progress reports
	ProgressInterval time.Duration
}

// Remote is the special remote. It serves one request at a time.
type Remote struct {
	host        annex.Host
	newSession  port.SessionFactory
	credentials CredentialSource
	local       port.LocalFS
	config      Config
	logger      *zap.Logger

	settings settings
	session  port.FileStation
	tree     *nas.Tree
	state    State
}

// Ensure Remote implements the annex interfaces
var (
	_ annex.SpecialRemote = (*Remote)(nil)
	_ annex.ConfigLister  = (*Remote)(nil)
)

// New creates a Remote
func New(host annex.Host, newSession port.SessionFactory, credentials CredentialSource, local port.LocalFS, cfg Config, logger *zap.Logger) *Remote {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Remote{
		host:        host,
		newSession:  newSession,
		credentials: credentials,
		local:       local,
		config:      cfg,
		logger:      logger,
	}
}

// State returns the current lifecycle state
func (r *Remote) State() State {
	return r.state
}

// ListConfigs describes the host settings
func (r *Remote) ListConfigs() [][2]string {
	return domain.SettingDescriptions
}

// authenticate creates the session once. On failure the remote stays
// unconfigured and the next operation tries again.
func (r *Remote) authenticate(ctx context.Context) error {
	if r.session != nil {
		return nil
	}

	params, err := r.sessionParams()
	if err != nil {
		return err
	}

	r.logger.Debug("starting authentication", zap.String("hostname", params.Hostname))
	creds, err := r.credentials(ctx, params.Hostname)
	if err != nil {
		return err
	}
	params.Username = creds.Username
	params.Password = creds.Password
	params.OTPCode = creds.TOTPCode

	r.logger.Debug("opening session",
		zap.String("hostname", params.Hostname),
		zap.Int("port", params.Port),
		zap.Bool("secure", params.Secure),
		zap.Bool("cert_verify", params.CertVerify),
		zap.Int("dsm_version", params.DSMVersion),
		zap.String("username", params.Username),
		zap.Bool("otp", params.OTPCode != ""))

	session, err := r.newSession(ctx, params)
	if err != nil {
		return &domain.AuthenticationError{Hostname: params.Hostname, Err: err}
	}

	r.session = session
	r.tree = nas.New(session, r.local, r.logger)
	r.state = StateAuthenticated
	return nil
}

// keyPath authenticates and returns the remote folder for key
func (r *Remote) keyPath(ctx context.Context, key string) (string, error) {
	if err := r.authenticate(ctx); err != nil {
		return "", err
	}
	root, err := r.RootPath()
	if err != nil {
		return "", err
	}
	return domain.KeyPath(root, key), nil
}

// isSessionError reports whether the vendor rejected the session itself
func isSessionError(err error) bool {
	var se port.SessionError
	return errors.As(err, &se) && se.IsSessionError()
}

// fail translates err into the host's error signal
func (r *Remote) fail(op string, err error) error {
	if err == nil {
		return nil
	}
	r.logger.Debug("operation failed", zap.String("op", op), zap.Error(err))

	var re *annex.RemoteError
	if errors.As(err, &re) {
		return re
	}

	var msg string
	switch {
	case domain.IsConfiguration(err):
		msg = err.Error()
	case domain.IsAuthentication(err):
		msg = fmt.Sprintf("authentication failed: %v", err)
	case isSessionError(err):
		msg = fmt.Sprintf("%s: session rejected by the NAS, restart to log in again: %v", op, err)
	case errors.Is(err, domain.ErrRemoteUnreachable):
		msg = fmt.Sprintf("%s: remote could not be reached: %v", op, err)
	case domain.IsRemoteIO(err):
		msg = fmt.Sprintf("%s: remote operation failed: %v", op, err)
	default:
		msg = fmt.Sprintf("%s: %v", op, err)
	}
	return &annex.RemoteError{Message: msg, Err: err}
}

// InitRemote authenticates; the root path does not need to exist yet
func (r *Remote) InitRemote(ctx context.Context) error {
	return r.fail("initremote", r.authenticate(ctx))
}

// Prepare authenticates and makes sure the root path exists
func (r *Remote) Prepare(ctx context.Context) error {
	if err := r.authenticate(ctx); err != nil {
		return r.fail("prepare", err)
	}

	root, err := r.RootPath()
	if err != nil {
		return r.fail("prepare", err)
	}

	if err := r.tree.CreateFolder(ctx, root); err != nil {
		return r.fail("prepare", domain.NewConfigurationError(domain.SettingPath, fmt.Sprintf("could not create path '%s'", root), err))
	}

	r.state = StateReady
	r.logger.Debug("remote ready", zap.String("path", root))
	return nil
}

// progress returns a throttled reporter for the current transfer
func (r *Remote) progress() *ratelimiter.Progress {
	return ratelimiter.NewProgress(r.config.ProgressInterval, r.host.Progress)
}

// TransferStore uploads file as key. The content goes into a staging
// folder which is renamed to the key folder once the upload completed,
// so the key folder never holds partial content.
func (r *Remote) TransferStore(ctx context.Context, key, file string) error {
	target, err := r.keyPath(ctx, key)
	if err != nil {
		return r.fail("store", err)
	}
	r.logger.Debug("storing", zap.String("file", file), zap.String("key", key))

	found, err := r.tree.Lookup(ctx, target)
	if err != nil {
		return r.fail("store", err)
	}
	if found {
		r.logger.Debug("key already present", zap.String("key", key))
		return nil
	}

	staging := target + stagingSuffix
	if err := r.tree.CreateFolder(ctx, staging); err != nil {
		return r.fail("store", err)
	}

	progress := r.progress()
	if err := r.tree.UploadFile(ctx, staging, file, key, progress.Update); err != nil {
		return r.fail("store", err)
	}
	progress.Flush()

	if err := r.tree.Rename(ctx, staging, key); err != nil {
		return r.fail("store", err)
	}
	return nil
}

// object picks the stored file for key among the leaves of its folder
func object(target, key string, leaves []string) (string, error) {
	want := path.Join(target, key)
	for _, leaf := range leaves {
		if leaf == want {
			return leaf, nil
		}
	}

	switch len(leaves) {
	case 0:
		return "", domain.NewRemoteIOError("retrieve", target, domain.ErrNotFound)
	case 1:
		return leaves[0], nil
	}
	return "", domain.NewRemoteIOError("retrieve", target, domain.ErrAmbiguousObject)
}

// TransferRetrieve downloads key into a staging directory next to file and
// moves it into place once complete. file is never partially written.
func (r *Remote) TransferRetrieve(ctx context.Context, key, file string) error {
	target, err := r.keyPath(ctx, key)
	if err != nil {
		return r.fail("retrieve", err)
	}
	r.logger.Debug("retrieving", zap.String("key", key), zap.String("file", file))

	leaves, err := r.tree.FindLeafNodes(ctx, target)
	if err != nil {
		return r.fail("retrieve", err)
	}
	remotePath, err := object(target, key, leaves)
	if err != nil {
		return r.fail("retrieve", err)
	}

	staging, err := r.local.NewStaging(file)
	if err != nil {
		return r.fail("retrieve", err)
	}
	defer func() {
		if err := staging.Discard(); err != nil {
			r.logger.Warn("failed to clean up staging dir", zap.String("dir", staging.Dir()), zap.Error(err))
		}
	}()

	progress := r.progress()
	staged, err := r.tree.DownloadFile(ctx, remotePath, staging.Dir(), progress.Update)
	if err != nil {
		return r.fail("retrieve", err)
	}
	progress.Flush()

	if err := staging.Commit(staged, file); err != nil {
		return r.fail("retrieve", err)
	}
	return nil
}

// CheckPresent reports whether key is stored. An unreachable remote is an
// error, not an absent key.
func (r *Remote) CheckPresent(ctx context.Context, key string) (bool, error) {
	target, err := r.keyPath(ctx, key)
	if err != nil {
		return false, r.fail("checkpresent", err)
	}

	found, err := r.tree.Lookup(ctx, target)
	if err != nil {
		return false, r.fail("checkpresent", err)
	}
	return found, nil
}

// Remove requests deletion of key. The vendor deletes asynchronously, so
// success means the request was accepted.
func (r *Remote) Remove(ctx context.Context, key string) error {
	target, err := r.keyPath(ctx, key)
	if err != nil {
		return r.fail("remove", err)
	}
	return r.fail("remove", r.tree.DeleteFiles(ctx, target))
}

// Close logs the session out, if one was opened
func (r *Remote) Close(ctx context.Context) error {
	if r.session == nil {
		return nil
	}
	err := r.session.Logout(ctx)
	r.session = nil
	r.tree = nil
	r.state = StateUnconfigured
	return err
}

// Tree returns the tree adapter for the authenticated session
func (r *Remote) Tree(ctx context.Context) (*nas.Tree, error) {
	if err := r.authenticate(ctx); err != nil {
		return nil, r.fail("connect", err)
	}
	return r.tree, nil
}
