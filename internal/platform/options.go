package platform

import (
	"log/slog"
	"net/http"

	"github.com/aretw0/livefield/pkg/core"
)

// options holds the internal configuration used to assemble a workspace.
type options struct {
	store        core.FieldStore
	logger       *slog.Logger
	httpClient   *http.Client
	git          bool
	versionCheck bool
}

// Option defines a functional option for opening a workspace.
type Option func(*options)

func defaultOptions() *options {
	return &options{
		versionCheck: true,
	}
}

// WithLogger sets the logger shared by the client and the workspace.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithStore injects a custom field store (e.g. a fake in tests).
// If provided, no GlobalSearch client is built.
func WithStore(store core.FieldStore) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithHTTPClient replaces the HTTP client of the GlobalSearch client.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) {
		o.httpClient = hc
	}
}

// WithGit enables git snapshots of the workspace root.
func WithGit(enabled bool) Option {
	return func(o *options) {
		o.git = enabled
	}
}

// WithVersionCheck controls whether the server version is compared against
// the newest tested release when the workspace is opened. Enabled by default.
func WithVersionCheck(enabled bool) Option {
	return func(o *options) {
		o.versionCheck = enabled
	}
}
