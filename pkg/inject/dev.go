package inject

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"
)

// DevContext is a Context whose members are backed by local stand-ins:
// notifications become log records and the persistence hooks only count calls.
type DevContext struct {
	*Context
	pending atomic.Int64
	saves   atomic.Int64
}

// devOptions holds the values a development context is seeded with.
type devOptions struct {
	logger      *slog.Logger
	authToken   string
	config      any
	document    Document
	fields      any
	tableFields any
	newGuid     func() string
}

// DevOption configures NewDevContext.
type DevOption func(*devOptions)

// WithLogger sets the sink behind `log` and `notify`.
func WithLogger(logger *slog.Logger) DevOption {
	return func(o *devOptions) {
		o.logger = logger
	}
}

// WithAuthToken sets `properties.authToken`.
func WithAuthToken(token string) DevOption {
	return func(o *devOptions) {
		o.authToken = token
	}
}

// WithConfig sets `properties.config`.
func WithConfig(config any) DevOption {
	return func(o *devOptions) {
		o.config = config
	}
}

// WithDocument sets `properties.document`.
func WithDocument(doc Document) DevOption {
	return func(o *devOptions) {
		o.document = doc
	}
}

// WithFields sets `fields`.
func WithFields(fields any) DevOption {
	return func(o *devOptions) {
		o.fields = fields
	}
}

// WithTableFields sets `tableFields`.
func WithTableFields(tableFields any) DevOption {
	return func(o *devOptions) {
		o.tableFields = tableFields
	}
}

// WithGuidGenerator replaces the UUID based `utility.newGuid`.
func WithGuidGenerator(fn func() string) DevOption {
	return func(o *devOptions) {
		o.newGuid = fn
	}
}

// NewDevContext builds a complete context for previews and tests.
func NewDevContext(opts ...DevOption) *DevContext {
	o := &devOptions{
		newGuid: uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	logger := o.logger.With("component", "inject")
	notify := func(level slog.Level, kind string) func() {
		return func() {
			logger.Log(context.Background(), level, "script notification", "kind", kind)
		}
	}

	doc := o.document
	d := &DevContext{}
	d.Context = &Context{
		Log: o.logger,
		Notify: Notify{
			Info:    notify(slog.LevelInfo, "info"),
			Warn:    notify(slog.LevelWarn, "warn"),
			Error:   notify(slog.LevelError, "error"),
			Success: notify(slog.LevelInfo, "success"),
			Toast:   notify(slog.LevelInfo, "toast"),
		},
		Properties: Properties{
			AuthToken: o.authToken,
			Config:    o.config,
			Document:  &doc,
		},
		Utility: Utility{
			NewGuid: o.newGuid,
		},
		TableFields: o.tableFields,
		Fields:      o.fields,
		SetPendingChanges: func() {
			d.pending.Add(1)
		},
		Save: func() {
			d.saves.Add(1)
		},
	}
	return d
}

// PendingChanges returns how often setPendingChanges was called.
func (d *DevContext) PendingChanges() int64 {
	return d.pending.Load()
}

// Saves returns how often save was called.
func (d *DevContext) Saves() int64 {
	return d.saves.Load()
}
