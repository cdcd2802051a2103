package credentials

import (
	"context"

	"go.uber.org/zap"

	"github.com/vertextoedge/git-annex-remote-synology/internal/domain"
	"github.com/vertextoedge/git-annex-remote-synology/internal/port"
)

// Source returns a headless credential lookup for the special remote. Each
// call opens the store, resolves a complete login and closes the store again.
func Source(opener port.StoreOpener, vault port.Vault, logger *zap.Logger) func(ctx context.Context, hostname string) (*domain.Credentials, error) {
	return func(ctx context.Context, hostname string) (*domain.Credentials, error) {
		var creds *domain.Credentials
		cfg := Config{Hostname: hostname, Headless: true}
		err := WithResolver(ctx, cfg, opener, vault, nil, logger, func(r *Resolver) error {
			var err error
			creds, err = r.Resolve(ctx)
			return err
		})
		if err != nil {
			return nil, err
		}
		return creds, nil
	}
}
