package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/livefield/pkg/git"
)

// ErrGitDisabled is returned by Snapshot when the workspace was opened
// without git support.
var ErrGitDisabled = errors.New("git snapshots are disabled for this workspace")

// Snapshot commits the workspace root with msg as the subject and the changed
// paths as the body. The repository is created on first use and the system
// dir is kept out of it. It returns false when there was
// nothing to commit.
func (w *Workspace) Snapshot(ctx context.Context, msg string) (bool, error) {
	if w.git == nil {
		return false, ErrGitDisabled
	}
	if !git.IsInstalled() {
		return false, errors.New("git is not installed")
	}

	unlock, err := w.git.Lock(ctx)
	if err != nil {
		return false, err
	}
	defer unlock()

	if !w.git.IsRepo() {
		if err := w.git.Init(); err != nil {
			return false, fmt.Errorf("failed to git init: %w", err)
		}
	}
	if _, err := w.ensureIgnore(); err != nil {
		return false, fmt.Errorf("failed to ensure .gitignore: %w", err)
	}

	status, err := w.git.Status()
	if err != nil {
		return false, err
	}
	if status == "" {
		return false, nil
	}

	if err := w.git.AddAll(); err != nil {
		return false, err
	}
	if err := w.git.Commit(git.CommitMessage(git.CommitTypeChore, "fields", msg, status)); err != nil {
		return false, err
	}
	w.logger.Info("workspace snapshot committed", "message", msg)
	return true, nil
}

// ensureIgnore keeps the system dir, the git lock and the config file, which
// holds credentials, out of snapshots.
func (w *Workspace) ensureIgnore() (bool, error) {
	cfg := w.Config()
	ignorePath := filepath.Join(cfg.Root(), ".gitignore")
	wanted := []string{SystemDir + "/", SystemDir + ".lock", "/" + cfg.Rel(cfg.Path())}

	content, err := os.ReadFile(ignorePath)
	if err != nil && !os.IsNotExist(err) {
		return false, err
	}

	present := make(map[string]bool)
	for _, line := range strings.Split(string(content), "\n") {
		present[strings.TrimSpace(line)] = true
	}

	var missing []string
	for _, entry := range wanted {
		if !present[entry] {
			missing = append(missing, entry)
		}
	}
	if len(missing) == 0 {
		return false, nil
	}

	f, err := os.OpenFile(ignorePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return false, err
	}
	defer f.Close()

	if len(content) > 0 && !strings.HasSuffix(string(content), "\n") {
		if _, err := f.WriteString("\n"); err != nil {
			return false, err
		}
	}
	if _, err := f.WriteString(strings.Join(missing, "\n") + "\n"); err != nil {
		return false, err
	}
	return true, nil
}
