package workspace

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/aretw0/livefield/pkg/core"
)

// Change classifies one side of a mapped field against the last sync.
type Change string

const (
	Unchanged Change = "unchanged"
	Modified  Change = "modified"
	Missing   Change = "missing"
	Untracked Change = "untracked"
)

// FieldStatus compares a mapping with its local file and the server.
type FieldStatus struct {
	Mapping  core.Mapping `json:"mapping"`
	Local    Change       `json:"local"`
	Remote   Change       `json:"remote"`
	SyncedAt *time.Time   `json:"syncedAt,omitempty"`
}

// Status reports, per mapping, whether the file or the server script moved
// since the last pull or push. Mappings follow recreated fields by name, as
// in Sync.
func (w *Workspace) Status(ctx context.Context) ([]FieldStatus, error) {
	remote, err := w.store.LiveFields(ctx)
	if err != nil {
		return nil, err
	}
	cfg, err := w.resolveIDs(remote)
	if err != nil {
		return nil, err
	}
	byID := make(map[int]core.Field, len(remote))
	for _, f := range remote {
		byID[f.ID] = f
	}

	out := make([]FieldStatus, 0, len(cfg.Mapping))
	for _, m := range cfg.Mapping {
		st := FieldStatus{Mapping: m, Local: Untracked, Remote: Untracked}
		prev, tracked := w.state.Get(m.ID)
		if tracked {
			t := prev.SyncedAt
			st.SyncedAt = &t
		}

		data, err := os.ReadFile(cfg.Resolve(m))
		switch {
		case errors.Is(err, os.ErrNotExist):
			st.Local = Missing
		case err != nil:
			return nil, err
		case tracked:
			st.Local = compare(prev.LocalHash, hashScript(data))
		}

		f, ok := byID[m.ID]
		switch {
		case !ok:
			st.Remote = Missing
		case tracked:
			st.Remote = compare(prev.RemoteHash, hashScript([]byte(f.ExtendedConfig.LiveField.Script)))
		}

		out = append(out, st)
	}
	return out, nil
}

func compare(recorded, current string) Change {
	if recorded == current {
		return Unchanged
	}
	return Modified
}
