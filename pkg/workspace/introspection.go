package workspace

import (
	"time"

	"github.com/aretw0/introspection"
)

// WorkspaceState exposes internal state for observability.
type WorkspaceState struct {
	Root          string     `json:"root"`
	ConfigPath    string     `json:"config_path"`
	ScriptDir     string     `json:"script_dir"`
	Mapped        int        `json:"mapped"`
	Tracked       int        `json:"tracked"`
	Git           bool       `json:"git"`
	WatcherActive bool       `json:"watcher_active"`
	LastSync      *time.Time `json:"last_sync,omitempty"`
}

// State implements introspection.Introspectable.
func (w *Workspace) State() any {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return WorkspaceState{
		Root:          w.config.Root(),
		ConfigPath:    w.config.Path(),
		ScriptDir:     w.config.ScriptDir(),
		Mapped:        len(w.config.Mapping),
		Tracked:       w.state.Len(),
		Git:           w.git != nil,
		WatcherActive: w.watcherActive,
		LastSync:      w.state.LastSync(),
	}
}

// ComponentType implements introspection.Component.
func (w *Workspace) ComponentType() string {
	return "workspace"
}

var _ introspection.Introspectable = (*Workspace)(nil)
var _ introspection.Component = (*Workspace)(nil)

func (w *Workspace) setWatcherActive(active bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.watcherActive = active
}
