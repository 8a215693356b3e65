// Package workspace keeps a directory of live field scripts in step with a
// GlobalSearch database.
//
// A workspace is rooted at the directory of its config file. Scripts live
// under the configured directory, their server bindings in the config's
// mapping, and per-field hashes in .livefield/state.json. The FieldStore is
// the only way the workspace reaches the server.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/livefield/internal/fsutil"
	"github.com/aretw0/livefield/pkg/core"
	"github.com/aretw0/livefield/pkg/git"
	"github.com/aretw0/livefield/pkg/inject"
)

// Workspace binds a config, its script files and a remote FieldStore.
type Workspace struct {
	store  core.FieldStore
	state  *stateCache
	git    *git.Client
	logger *slog.Logger

	mu            sync.RWMutex
	config        *Config
	watcherActive bool
}

type options struct {
	logger *slog.Logger
	git    bool
}

// Option configures a Workspace.
type Option func(*options)

// WithLogger sets the logger for the workspace.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithGit enables git snapshots of the workspace root.
func WithGit(enabled bool) Option {
	return func(o *options) {
		o.git = enabled
	}
}

// New opens the workspace described by cfg. The state cache is loaded
// eagerly; a corrupt cache is treated as empty.
func New(cfg *Config, store core.FieldStore, opts ...Option) (*Workspace, error) {
	if cfg.Path() == "" {
		return nil, errors.New("config has no file path")
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	w := &Workspace{
		store:  store,
		state:  newStateCache(cfg.Root()),
		logger: o.logger,
		config: cfg,
	}
	if o.git {
		w.git = git.NewClient(cfg.Root(), SystemDir+".lock", o.logger)
	}

	if err := w.state.Load(); err != nil {
		return nil, err
	}
	return w, nil
}

// Config returns the current config. Callers must not mutate it.
func (w *Workspace) Config() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.config
}

// Store returns the remote field store.
func (w *Workspace) Store() core.FieldStore {
	return w.store
}

// updateConfig applies fn to a copy of the config, saves it and swaps it in.
func (w *Workspace) updateConfig(fn func(*Config)) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	next := w.config.clone()
	fn(next)
	if err := next.Save(); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	w.config = next
	return nil
}

// Reload re-reads the config file, e.g. after it was edited by hand.
func (w *Workspace) Reload() error {
	cfg, err := LoadConfig(w.Config().Path())
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.config = cfg
	w.mu.Unlock()
	return nil
}

// Init imports every live field of the database into the script directory
// and rebuilds the mapping from scratch.
func (w *Workspace) Init(ctx context.Context) ([]core.Mapping, error) {
	cfg := w.Config()

	fields, err := w.store.LiveFields(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list live fields: %w", err)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].ID < fields[j].ID })

	dir := cfg.ScriptDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create script directory: %w", err)
	}

	names := scriptNames(fields)
	mapping := make([]core.Mapping, 0, len(fields))
	keep := make(map[int]bool, len(fields))
	now := time.Now()

	for _, f := range fields {
		path := filepath.Join(dir, names[f.ID])
		remote := f.ExtendedConfig.LiveField.Script
		script := core.NormalizeScript(remote)

		if err := fsutil.WriteFileAtomic(path, []byte(script), 0644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", path, err)
		}
		w.logger.Info("imported live field", "id", f.ID, "name", f.Name, "file", cfg.Rel(path))

		mapping = append(mapping, core.MappingFor(f, cfg.Rel(path)))
		keep[f.ID] = true
		w.state.Set(stateEntry{
			ID:         f.ID,
			Name:       f.Name,
			LocalHash:  hashScript([]byte(script)),
			RemoteHash: hashScript([]byte(remote)),
			SyncedAt:   now,
		})
	}
	w.state.Prune(keep)

	if err := w.updateConfig(func(c *Config) { c.Mapping = mapping }); err != nil {
		return nil, err
	}
	if err := w.state.Save(); err != nil {
		return nil, fmt.Errorf("failed to save state: %w", err)
	}
	if _, err := inject.WriteDeclaration(dir); err != nil {
		return nil, fmt.Errorf("failed to write typings: %w", err)
	}

	return mapping, nil
}

// SyncResult reports the outcome of a sync for one mapping.
type SyncResult struct {
	Mapping core.Mapping
	Pushed  bool
	Err     error
}

// Sync pushes every mapped script. Unchanged scripts are skipped unless force
// is set. A failing field does not stop the others; their errors are joined.
func (w *Workspace) Sync(ctx context.Context, force bool) ([]SyncResult, error) {
	remote, err := w.store.LiveFields(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list live fields: %w", err)
	}

	var errs []error
	cfg, err := w.resolveIDs(remote)
	if err != nil {
		errs = append(errs, err)
	}

	results := make([]SyncResult, 0, len(cfg.Mapping))
	for _, m := range cfg.Mapping {
		pushed, err := w.push(ctx, cfg, m, force)
		if err != nil {
			err = fmt.Errorf("%s (%d): %w", m.Name, m.ID, err)
			errs = append(errs, err)
		}
		results = append(results, SyncResult{Mapping: m, Pushed: pushed, Err: err})
		if ctx.Err() != nil {
			break
		}
	}

	if err := w.state.Save(); err != nil {
		errs = append(errs, fmt.Errorf("failed to save state: %w", err))
	}
	return results, errors.Join(errs...)
}

// resolveIDs re-points each mapping at the live field of the same name and
// keeps the mapped ID when the name is unknown. Moved IDs are saved to the
// config; their state entries are dropped because the recreated field's
// script was never seen.
func (w *Workspace) resolveIDs(remote []core.Field) (*Config, error) {
	byName := make(map[string]int, len(remote))
	for _, f := range remote {
		byName[f.Name] = f.ID
	}

	cfg := w.Config()
	moved := make(map[int]int)
	for _, m := range cfg.Mapping {
		if id, ok := byName[m.Name]; ok && id != m.ID {
			moved[m.ID] = id
		}
	}
	if len(moved) == 0 {
		return cfg, nil
	}

	if err := w.updateConfig(func(c *Config) {
		for i := range c.Mapping {
			if id, ok := moved[c.Mapping[i].ID]; ok {
				c.Mapping[i].ID = id
			}
		}
	}); err != nil {
		return cfg, err
	}
	for from, to := range moved {
		w.logger.Info("live field was recreated, mapping updated", "from", from, "to", to)
		w.state.Delete(from)
	}
	if err := w.state.Save(); err != nil {
		return w.Config(), fmt.Errorf("failed to save state: %w", err)
	}
	return w.Config(), nil
}

// push uploads one mapped script and records it in the state cache.
func (w *Workspace) push(ctx context.Context, cfg *Config, m core.Mapping, force bool) (bool, error) {
	path := cfg.Resolve(m)
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("failed to read script: %w", err)
	}

	hash := hashScript(data)
	if prev, ok := w.state.Get(m.ID); ok && !force && prev.LocalHash == hash {
		w.logger.Debug("script unchanged, skipping", "id", m.ID, "file", m.Filename)
		return false, nil
	}

	if err := w.store.UpdateLiveField(ctx, m.ID, string(data), m); err != nil {
		return false, err
	}
	w.logger.Info("updated live field", "id", m.ID, "name", m.Name, "file", m.Filename)

	w.state.Set(stateEntry{
		ID:         m.ID,
		Name:       m.Name,
		LocalHash:  hash,
		RemoteHash: hash,
		SyncedAt:   time.Now(),
	})
	return true, nil
}

// PushFile pushes the mapped script stored at path. It returns false without
// error when the file is not mapped or did not change since its last push.
func (w *Workspace) PushFile(ctx context.Context, path string) (bool, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false, err
	}
	if _, ok := w.Config().MappingByPath(abs); !ok {
		w.logger.Debug("file is not mapped", "path", abs)
		return false, nil
	}

	remote, err := w.store.LiveFields(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to list live fields: %w", err)
	}
	cfg, err := w.resolveIDs(remote)
	if err != nil {
		return false, err
	}
	m, ok := cfg.MappingByPath(abs)
	if !ok {
		return false, nil
	}

	pushed, err := w.push(ctx, cfg, m, false)
	if err != nil {
		return false, fmt.Errorf("%s (%d): %w", m.Name, m.ID, err)
	}
	if err := w.state.Save(); err != nil {
		return pushed, fmt.Errorf("failed to save state: %w", err)
	}
	return pushed, nil
}

// Update pushes the script at path to the mapped field id, regardless of
// whether it changed.
func (w *Workspace) Update(ctx context.Context, id int, path string) error {
	cfg := w.Config()
	m, ok := cfg.MappingByID(id)
	if !ok {
		return fmt.Errorf("%w: %d", core.ErrUnmapped, id)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read script: %w", err)
	}
	if err := w.store.UpdateLiveField(ctx, id, string(data), m); err != nil {
		return err
	}

	// Only a push of the mapped file itself says anything about its state.
	abs, _ := filepath.Abs(path)
	if abs == cfg.Resolve(m) {
		hash := hashScript(data)
		w.state.Set(stateEntry{ID: id, Name: m.Name, LocalHash: hash, RemoteHash: hash, SyncedAt: time.Now()})
		return w.state.Save()
	}
	return nil
}

// MakeField creates a live field from the script at path and maps it. When
// path lies outside the script directory the script is copied into it.
func (w *Workspace) MakeField(ctx context.Context, name, path string) (core.Mapping, error) {
	cfg := w.Config()
	data, err := os.ReadFile(path)
	if err != nil {
		return core.Mapping{}, fmt.Errorf("failed to read script: %w", err)
	}

	field, err := w.store.CreateLiveField(ctx, name, string(data))
	if err != nil {
		return core.Mapping{}, err
	}
	w.logger.Info("created live field", "id", field.ID, "name", name)

	abs, err := filepath.Abs(path)
	if err != nil {
		return core.Mapping{}, err
	}
	dir := cfg.ScriptDir()
	if !isWithin(dir, abs) {
		target := filepath.Join(dir, SanitizeName(name, field.ID)+ScriptExt)
		if _, err := os.Stat(target); err == nil {
			target = filepath.Join(dir, fmt.Sprintf("%s-%d%s", SanitizeName(name, field.ID), field.ID, ScriptExt))
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return core.Mapping{}, err
		}
		if err := fsutil.WriteFileAtomic(target, data, 0644); err != nil {
			return core.Mapping{}, err
		}
		abs = target
	}

	m := core.MappingFor(field, cfg.Rel(abs))
	if err := w.updateConfig(func(c *Config) {
		c.Mapping = append(c.Mapping, m)
	}); err != nil {
		return m, err
	}

	if field.ID != 0 {
		hash := hashScript(data)
		w.state.Set(stateEntry{ID: field.ID, Name: name, LocalHash: hash, RemoteHash: hash, SyncedAt: time.Now()})
		if err := w.state.Save(); err != nil {
			return m, err
		}
	}
	return m, nil
}

// Remove deletes a field on the server and forgets its mapping. The local
// script file is left in place.
func (w *Workspace) Remove(ctx context.Context, id int) error {
	if err := w.store.DeleteField(ctx, id); err != nil {
		return fmt.Errorf("failed to delete field %d: %w", id, err)
	}
	w.logger.Warn("deleted field", "id", id)

	if err := w.updateConfig(func(c *Config) {
		kept := c.Mapping[:0]
		for _, m := range c.Mapping {
			if m.ID != id {
				kept = append(kept, m)
			}
		}
		c.Mapping = kept
	}); err != nil {
		return err
	}

	w.state.Delete(id)
	return w.state.Save()
}

func isWithin(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// List returns the live fields on the server ordered by ID.
func (w *Workspace) List(ctx context.Context) ([]core.Field, error) {
	fields, err := w.store.LiveFields(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].ID < fields[j].ID })
	return fields, nil
}
