package livefield

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/aretw0/livefield/internal/platform"
	"github.com/aretw0/livefield/pkg/core"
	"github.com/aretw0/livefield/pkg/workspace"
)

// --- Types ---

// Workspace is a public alias for the workspace type.
type Workspace = workspace.Workspace

// Config is a public alias for the workspace config file.
type Config = workspace.Config

// --- Configuration ---

// Option defines a functional option for opening a workspace.
type Option = platform.Option

// WithLogger sets the logger shared by the client and the workspace.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithStore injects a custom field store instead of the GlobalSearch client.
func WithStore(store core.FieldStore) Option {
	return platform.WithStore(store)
}

// WithHTTPClient replaces the HTTP client used to reach the server.
func WithHTTPClient(hc *http.Client) Option {
	return platform.WithHTTPClient(hc)
}

// WithGit enables git snapshots of the workspace root.
func WithGit(enabled bool) Option {
	return platform.WithGit(enabled)
}

// WithVersionCheck controls the server version gate run by Open.
func WithVersionCheck(enabled bool) Option {
	return platform.WithVersionCheck(enabled)
}

// --- Factory ---

// Open loads the config file at path and connects a workspace to its server.
func Open(ctx context.Context, path string, opts ...Option) (*Workspace, error) {
	return platform.Open(ctx, path, opts...)
}

// FindConfig looks upwards from startDir for a config file called name.
func FindConfig(startDir, name string) (string, error) {
	return platform.FindConfig(startDir, name)
}
