package workspace

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/aretw0/lifecycle/pkg/core/supervisor"
	"github.com/aretw0/lifecycle/pkg/core/worker"

	"github.com/aretw0/livefield/pkg/core"
)

const watcherName = "script-watcher"

// ErrWatcherFailed is returned by Monitor when the supervised watcher keeps
// failing and will not be restarted again.
var ErrWatcherFailed = errors.New("script watcher failed")

// MonitorOption configures Monitor.
type MonitorOption func(*monitorOptions)

type monitorOptions struct {
	catchUp bool
	onPush  func(core.Mapping, error)

	backoff      supervisor.Backoff
	healthEvery  time.Duration
	stallTimeout time.Duration
	// onWorker sees every watcher the supervisor creates.
	onWorker func(*watchWorker)
}

func defaultMonitorOptions() *monitorOptions {
	return &monitorOptions{
		backoff: supervisor.Backoff{
			InitialInterval: 100 * time.Millisecond,
			MaxInterval:     5 * time.Second,
			Multiplier:      2,
			ResetDuration:   time.Minute,
			MaxRestarts:     10,
			MaxDuration:     10 * time.Minute,
		},
		healthEvery:  time.Second,
		stallTimeout: 30 * time.Second,
	}
}

// WithCatchUp pushes scripts edited while no monitor was running before
// watching starts.
func WithCatchUp(enabled bool) MonitorOption {
	return func(o *monitorOptions) {
		o.catchUp = enabled
	}
}

// WithPushHook is called after every push attempt triggered by a file event.
func WithPushHook(fn func(core.Mapping, error)) MonitorOption {
	return func(o *monitorOptions) {
		o.onPush = fn
	}
}

// Monitor watches the script directory and the config file until ctx is
// cancelled. Saved scripts are pushed after the debounce period; config edits
// are reloaded in place. The watcher runs under a supervisor that restarts it
// when it fails. Monitor returns ErrWatcherFailed once the supervisor gives up
// on the watcher.
func (w *Workspace) Monitor(ctx context.Context, opts ...MonitorOption) error {
	o := defaultMonitorOptions()
	for _, opt := range opts {
		opt(o)
	}

	events := make(chan core.Event, 16)
	spec := w.watcherSpec(events, o)

	sup := supervisor.New("livefield-monitor", supervisor.StrategyOneForOne, spec)
	if err := sup.Start(ctx); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := sup.Stop(stopCtx); err != nil {
			w.logger.Error("failed to stop watcher", "error", err)
		}
	}()

	watchCtx, cancelWatch := context.WithCancel(ctx)
	defer cancelWatch()
	changes := sup.Watch(watchCtx)

	health := time.NewTicker(o.healthEvery)
	defer health.Stop()

	cfg := w.Config()
	w.logger.Info("monitoring workspace",
		"dir", cfg.ScriptDir(),
		"pattern", cfg.WatchPattern(),
		"debounce", cfg.DebounceInterval(),
		"fields", len(cfg.Mapping),
	)

	if o.catchUp {
		w.catchUp(ctx)
	}

	var downSince time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case change, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			if err := watcherFailure(change.NewState); err != nil {
				return err
			}

		case <-health.C:
			st := sup.State()
			if err := watcherFailure(st); err != nil {
				return err
			}
			// A restart whose Start fails leaves the watcher pending for good.
			if watcherRunning(st) {
				downSince = time.Time{}
			} else if downSince.IsZero() {
				downSince = time.Now()
			} else if time.Since(downSince) > o.stallTimeout {
				return fmt.Errorf("%w: not running for %s", ErrWatcherFailed, time.Since(downSince).Round(time.Second))
			}

		case e := <-events:
			if !w.handleEvent(ctx, e, o) {
				continue
			}
			if err := restartWatcher(sup, w.watcherSpec(events, o)); err != nil {
				return err
			}
			downSince = time.Time{}
			cfg := w.Config()
			w.logger.Info("watcher restarted",
				"dir", cfg.ScriptDir(),
				"pattern", cfg.WatchPattern(),
				"debounce", cfg.DebounceInterval(),
			)
		}
	}
}

func (w *Workspace) watcherSpec(events chan<- core.Event, o *monitorOptions) supervisor.Spec {
	return supervisor.Spec{
		Name: watcherName,
		Type: string(worker.TypeGoroutine),
		Factory: func() (worker.Worker, error) {
			ww := newWatchWorker(w, events)
			if o.onWorker != nil {
				o.onWorker(ww)
			}
			return ww, nil
		},
		Backoff:       o.backoff,
		RestartPolicy: supervisor.RestartOnFailure,
	}
}

// restartWatcher replaces the supervised watcher so it picks up the current
// directory, pattern and debounce settings.
func restartWatcher(sup supervisor.Supervisor, spec supervisor.Spec) error {
	if err := sup.Remove(spec.Name); err != nil {
		return fmt.Errorf("failed to stop watcher: %w", err)
	}
	if err := sup.Add(spec); err != nil {
		return fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}
	return nil
}

// watcherFailure reports a watcher whose restart circuit breaker tripped.
func watcherFailure(st worker.State) error {
	for _, child := range st.Children {
		if child.Name != watcherName {
			continue
		}
		if child.Metadata[worker.MetadataCircuitBreaker] == "triggered" {
			return fmt.Errorf("%w: gave up after %s restarts", ErrWatcherFailed, child.Metadata[worker.MetadataRestarts])
		}
	}
	return nil
}

func watcherRunning(st worker.State) bool {
	for _, child := range st.Children {
		if child.Name == watcherName {
			return child.Status == worker.StatusRunning
		}
	}
	return false
}

// catchUp runs a non-forced sync in a tracked goroutine.
func (w *Workspace) catchUp(ctx context.Context) {
	lifecycle.Go(ctx, func(ctx context.Context) error {
		results, err := w.Sync(ctx, false)
		if err != nil {
			w.logger.Error("catch-up sync failed", "error", err)
		}
		pushed := 0
		for _, r := range results {
			if r.Pushed {
				pushed++
			}
		}
		w.logger.Info("catch-up sync finished", "pushed", pushed, "fields", len(results))
		return err
	}, lifecycle.WithErrorHandler(func(err error) {
		w.logger.Error("catch-up sync panic", "error", err)
	}))
}

// handleEvent pushes or reloads for e. It reports whether the watcher has to
// be restarted because the reloaded config watches something else.
func (w *Workspace) handleEvent(ctx context.Context, e core.Event, o *monitorOptions) bool {
	cfg := w.Config()

	if e.Path == cfg.Path() {
		if e.Type == core.EventDelete {
			w.logger.Warn("config file removed, keeping the last mapping", "path", e.Path)
			return false
		}
		if err := w.Reload(); err != nil {
			w.logger.Error("failed to reload config", "error", err)
			return false
		}
		next := w.Config()
		w.logger.Info("config reloaded", "fields", len(next.Mapping))
		return watchSettingsChanged(cfg, next)
	}

	if e.Type == core.EventDelete {
		w.logger.Debug("script removed, nothing to push", "path", e.Path)
		return false
	}

	m, ok := cfg.MappingByPath(e.Path)
	if !ok {
		w.logger.Debug("ignoring unmapped file", "path", cfg.Rel(e.Path))
		return false
	}

	w.logger.Info("updating field", "name", m.Name, "file", m.Filename)
	pushed, err := w.PushFile(ctx, e.Path)
	if err != nil {
		w.logger.Error("push failed", "name", m.Name, "error", err)
	} else if !pushed {
		w.logger.Debug("script unchanged", "name", m.Name)
	}
	if o.onPush != nil {
		o.onPush(m, err)
	}
	return false
}

func watchSettingsChanged(prev, next *Config) bool {
	return prev.ScriptDir() != next.ScriptDir() ||
		prev.WatchPattern() != next.WatchPattern() ||
		prev.DebounceInterval() != next.DebounceInterval()
}
