package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aretw0/livefield/pkg/core"
)

// memStore is an in-memory core.FieldStore.
type memStore struct {
	mu      sync.Mutex
	fields  map[int]core.Field
	nextID  int
	updates []int
	failIDs map[int]error
}

func newMemStore(fields ...core.Field) *memStore {
	s := &memStore{
		fields:  make(map[int]core.Field),
		nextID:  100,
		failIDs: make(map[int]error),
	}
	for _, f := range fields {
		s.fields[f.ID] = f
	}
	return s
}

func liveField(id int, name, script string) core.Field {
	f := core.NewLiveFieldTemplate(name, script)
	f.ID = id
	return f
}

func (s *memStore) Token(ctx context.Context) (string, error)   { return "tok", nil }
func (s *memStore) Version(ctx context.Context) (string, error) { return "6.3.188.0", nil }

func (s *memStore) Field(ctx context.Context, id int) (core.Field, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.fields[id]
	if !ok {
		return core.Field{}, fmt.Errorf("%w: %d", core.ErrFieldNotFound, id)
	}
	return f, nil
}

func (s *memStore) Fields(ctx context.Context) ([]core.Field, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Field, 0, len(s.fields))
	for _, f := range s.fields {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *memStore) LiveFields(ctx context.Context) ([]core.Field, error) {
	all, _ := s.Fields(ctx)
	var live []core.Field
	for _, f := range all {
		if f.IsLive() {
			live = append(live, f)
		}
	}
	return live, nil
}

func (s *memStore) CreateLiveField(ctx context.Context, name, script string) (core.Field, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.fields {
		if f.Name == name {
			return core.Field{}, core.ErrFieldExists
		}
	}
	s.nextID++
	f := liveField(s.nextID, name, script)
	s.fields[f.ID] = f
	return f, nil
}

func (s *memStore) UpdateLiveField(ctx context.Context, id int, script string, m core.Mapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failIDs[id]; err != nil {
		return err
	}
	f, ok := s.fields[id]
	if !ok {
		return fmt.Errorf("%w: %d", core.ErrFieldNotFound, id)
	}
	if f.ExtendedConfig.LiveField == nil {
		return core.ErrNotLive
	}
	lf := *f.ExtendedConfig.LiveField
	lf.Script = script
	m.Apply(&lf)
	f.ExtendedConfig.LiveField = &lf
	s.fields[id] = f
	s.updates = append(s.updates, id)
	return nil
}

func (s *memStore) DeleteField(ctx context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.fields[id]; !ok {
		return fmt.Errorf("%w: %d", core.ErrFieldNotFound, id)
	}
	delete(s.fields, id)
	return nil
}

func (s *memStore) script(id int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fields[id].ExtendedConfig.LiveField.Script
}

func (s *memStore) setScript(id int, script string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.fields[id]
	lf := *f.ExtendedConfig.LiveField
	lf.Script = script
	f.ExtendedConfig.LiveField = &lf
	s.fields[id] = f
}

// recreate moves a field to a new ID, as deleting and recreating it on the
// server would.
func (s *memStore) recreate(from, to int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.fields[from]
	delete(s.fields, from)
	f.ID = to
	s.fields[to] = f
}

func (s *memStore) updateCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.updates)
}

var _ core.FieldStore = (*memStore)(nil)

// writeConfig creates a workspace config in a temp dir and returns its path.
func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

const baseConfig = `{
    "square9api": "https://gs.example.test/square9api",
    "user": "admin",
    "password": "secret",
    "dbid": 9,
    "directory": "scripts",
    "debounce": "20ms",
    "mapping": []
}`

// openWorkspace loads baseConfig and opens a workspace over store.
func openWorkspace(t *testing.T, store core.FieldStore, opts ...Option) *Workspace {
	t.Helper()
	cfg, err := LoadConfig(writeConfig(t, "config.json", baseConfig))
	require.NoError(t, err)
	ws, err := New(cfg, store, opts...)
	require.NoError(t, err)
	return ws
}
