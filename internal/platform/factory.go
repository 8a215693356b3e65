package platform

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"golang.org/x/time/rate"

	"github.com/aretw0/livefield/pkg/core"
	"github.com/aretw0/livefield/pkg/globalsearch"
	"github.com/aretw0/livefield/pkg/workspace"
)

// Open loads the config at configPath and wires a workspace to its server.
//
//	ws, err := platform.Open(ctx, "config.json", platform.WithGit(true))
func Open(ctx context.Context, configPath string, opts ...Option) (*workspace.Workspace, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	cfg, err := workspace.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	store := o.store
	if store == nil {
		store = newClient(cfg, o)
	}

	if o.versionCheck {
		if err := checkVersion(ctx, store, cfg, o.logger); err != nil {
			return nil, err
		}
	}

	return workspace.New(cfg, store,
		workspace.WithLogger(o.logger),
		workspace.WithGit(o.git),
	)
}

// newClient builds the GlobalSearch client described by cfg.
func newClient(cfg *workspace.Config, o *options) *globalsearch.Client {
	clientOpts := []globalsearch.Option{
		globalsearch.WithCredentials(cfg.User, cfg.Secret()),
		globalsearch.WithLogger(o.logger),
	}
	if cfg.RateLimit > 0 {
		burst := int(math.Ceil(cfg.RateLimit))
		clientOpts = append(clientOpts, globalsearch.WithRateLimit(rate.Limit(cfg.RateLimit), burst))
	}
	if o.httpClient != nil {
		clientOpts = append(clientOpts, globalsearch.WithHTTPClient(o.httpClient))
	}
	return globalsearch.New(cfg.API, cfg.DatabaseID, clientOpts...)
}

func checkVersion(ctx context.Context, store core.FieldStore, cfg *workspace.Config, logger *slog.Logger) error {
	raw, err := store.Version(ctx)
	if err != nil {
		return fmt.Errorf("failed to read server version: %w", err)
	}
	logger.Debug("server version", "version", raw)
	return globalsearch.CheckVersion(raw, cfg.VersionIgnore, logger)
}
