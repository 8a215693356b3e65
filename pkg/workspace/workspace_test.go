package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/livefield/pkg/core"
	"github.com/aretw0/livefield/pkg/inject"
)

func initWorkspace(t *testing.T, store *memStore) *Workspace {
	t.Helper()
	ws := openWorkspace(t, store)
	_, err := ws.Init(context.Background())
	require.NoError(t, err)
	return ws
}

func TestInit_ImportsLiveFields(t *testing.T) {
	plain := core.Field{ID: 1, Name: "Plain"}
	store := newMemStore(
		plain,
		liveField(2, "Total", "var a = 1;\nreturn a;"),
		liveField(3, "Legacy/Escaped", `var b = 2;\nreturn b;`),
	)
	ws := openWorkspace(t, store)

	mapping, err := ws.Init(context.Background())
	require.NoError(t, err)
	require.Len(t, mapping, 2)

	assert.Equal(t, 2, mapping[0].ID)
	assert.Equal(t, "scripts/Total.js", mapping[0].Filename)
	assert.Equal(t, "scripts/Legacy_Escaped.js", mapping[1].Filename)

	cfg := ws.Config()
	data, err := os.ReadFile(cfg.Resolve(mapping[1]))
	require.NoError(t, err)
	assert.Equal(t, "var b = 2;\nreturn b;", string(data))

	// Mapping was persisted.
	reloaded, err := LoadConfig(cfg.Path())
	require.NoError(t, err)
	assert.Len(t, reloaded.Mapping, 2)

	// Typings were written next to the scripts.
	_, err = os.Stat(filepath.Join(cfg.ScriptDir(), inject.DeclarationFile))
	assert.NoError(t, err)

	// State is tracked for both fields.
	state := ws.State().(WorkspaceState)
	assert.Equal(t, 2, state.Tracked)
	assert.Equal(t, 2, state.Mapped)
	assert.NotNil(t, state.LastSync)
}

func TestSync_SkipsUnchangedAndPushesEdits(t *testing.T) {
	store := newMemStore(
		liveField(2, "Total", "return 1;"),
		liveField(3, "Score", "return 2;"),
	)
	ws := initWorkspace(t, store)
	ctx := context.Background()

	results, err := ws.Sync(ctx, false)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Zero(t, store.updateCount(), "freshly imported scripts must not be pushed")

	m, _ := ws.Config().MappingByID(3)
	require.NoError(t, os.WriteFile(ws.Config().Resolve(m), []byte("return 3;"), 0644))

	results, err = ws.Sync(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, store.updateCount())
	assert.Equal(t, "return 3;", store.script(3))

	pushed := 0
	for _, r := range results {
		if r.Pushed {
			pushed++
			assert.Equal(t, 3, r.Mapping.ID)
		}
	}
	assert.Equal(t, 1, pushed)

	_, err = ws.Sync(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 3, store.updateCount())
}

func TestSync_ResolvesIDsByName(t *testing.T) {
	store := newMemStore(liveField(2, "Total", "return 1;"))
	ws := initWorkspace(t, store)

	// The field was recreated on the server under a new ID.
	store.recreate(2, 20)

	results, err := ws.Sync(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 20, results[0].Mapping.ID)
	assert.True(t, results[0].Pushed, "a recreated field gets the local script even when unchanged")

	reloaded, err := LoadConfig(ws.Config().Path())
	require.NoError(t, err)
	assert.Equal(t, 20, reloaded.Mapping[0].ID)
}

func TestPushFile_FollowsRecreatedField(t *testing.T) {
	store := newMemStore(liveField(2, "Total", "return 1;"))
	ws := initWorkspace(t, store)
	ctx := context.Background()

	m, _ := ws.Config().MappingByID(2)
	path := ws.Config().Resolve(m)
	store.recreate(2, 20)

	require.NoError(t, os.WriteFile(path, []byte("return 20;"), 0644))
	pushed, err := ws.PushFile(ctx, path)
	require.NoError(t, err)
	assert.True(t, pushed)
	assert.Equal(t, "return 20;", store.script(20))

	_, ok := ws.Config().MappingByID(20)
	assert.True(t, ok)

	statuses, err := ws.Status(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, 20, statuses[0].Mapping.ID)
	assert.Equal(t, Unchanged, statuses[0].Local)
	assert.Equal(t, Unchanged, statuses[0].Remote)
}

func TestStatus_FollowsRecreatedField(t *testing.T) {
	store := newMemStore(liveField(2, "Total", "return 1;"))
	ws := initWorkspace(t, store)
	store.recreate(2, 20)

	statuses, err := ws.Status(context.Background())
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, 20, statuses[0].Mapping.ID)
	assert.Equal(t, Untracked, statuses[0].Remote, "the recreated script was never pulled")
}

func TestSync_CollectsErrors(t *testing.T) {
	store := newMemStore(
		liveField(2, "Total", "return 1;"),
		liveField(3, "Score", "return 2;"),
		liveField(4, "Rank", "return 3;"),
	)
	ws := initWorkspace(t, store)

	boom := errors.New("boom")
	store.failIDs[2] = boom

	m, _ := ws.Config().MappingByID(4)
	require.NoError(t, os.Remove(ws.Config().Resolve(m)))

	results, err := ws.Sync(context.Background(), true)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "Rank (4)")
	assert.ErrorIs(t, err, os.ErrNotExist)

	require.Len(t, results, 3)
	assert.Equal(t, 1, store.updateCount(), "Score still syncs")
}

func TestPushFile(t *testing.T) {
	store := newMemStore(liveField(2, "Total", "return 1;"))
	ws := initWorkspace(t, store)
	ctx := context.Background()

	m, _ := ws.Config().MappingByID(2)
	path := ws.Config().Resolve(m)

	pushed, err := ws.PushFile(ctx, path)
	require.NoError(t, err)
	assert.False(t, pushed)

	require.NoError(t, os.WriteFile(path, []byte("return 10;"), 0644))
	pushed, err = ws.PushFile(ctx, path)
	require.NoError(t, err)
	assert.True(t, pushed)
	assert.Equal(t, "return 10;", store.script(2))

	pushed, err = ws.PushFile(ctx, filepath.Join(ws.Config().Root(), "other.js"))
	require.NoError(t, err)
	assert.False(t, pushed)
}

func TestUpdate(t *testing.T) {
	store := newMemStore(liveField(2, "Total", "return 1;"))
	ws := initWorkspace(t, store)
	ctx := context.Background()

	other := filepath.Join(t.TempDir(), "draft.js")
	require.NoError(t, os.WriteFile(other, []byte("return 'draft';"), 0644))

	require.NoError(t, ws.Update(ctx, 2, other))
	assert.Equal(t, "return 'draft';", store.script(2))

	err := ws.Update(ctx, 99, other)
	assert.ErrorIs(t, err, core.ErrUnmapped)
}

func TestMakeField(t *testing.T) {
	store := newMemStore()
	ws := openWorkspace(t, store)
	ctx := context.Background()

	src := filepath.Join(t.TempDir(), "new.js")
	require.NoError(t, os.WriteFile(src, []byte("return 'new';"), 0644))

	m, err := ws.MakeField(ctx, "Brand New", src)
	require.NoError(t, err)
	assert.Equal(t, 101, m.ID)
	assert.Equal(t, "scripts/Brand New.js", m.Filename)

	data, err := os.ReadFile(ws.Config().Resolve(m))
	require.NoError(t, err)
	assert.Equal(t, "return 'new';", string(data))

	reloaded, err := LoadConfig(ws.Config().Path())
	require.NoError(t, err)
	require.Len(t, reloaded.Mapping, 1)
	assert.Equal(t, "Brand New", reloaded.Mapping[0].Name)

	_, err = ws.MakeField(ctx, "Brand New", src)
	assert.ErrorIs(t, err, core.ErrFieldExists)
}

func TestMakeField_InsideScriptDir(t *testing.T) {
	store := newMemStore()
	ws := openWorkspace(t, store)

	dir := ws.Config().ScriptDir()
	require.NoError(t, os.MkdirAll(dir, 0755))
	src := filepath.Join(dir, "inplace.js")
	require.NoError(t, os.WriteFile(src, []byte("return 0;"), 0644))

	m, err := ws.MakeField(context.Background(), "Renamed", src)
	require.NoError(t, err)
	assert.Equal(t, "scripts/inplace.js", m.Filename)
}

func TestRemove(t *testing.T) {
	store := newMemStore(
		liveField(2, "Total", "return 1;"),
		liveField(3, "Score", "return 2;"),
	)
	ws := initWorkspace(t, store)

	m, _ := ws.Config().MappingByID(2)
	require.NoError(t, ws.Remove(context.Background(), 2))

	_, ok := ws.Config().MappingByID(2)
	assert.False(t, ok)
	assert.Len(t, ws.Config().Mapping, 1)

	_, err := store.Field(context.Background(), 2)
	assert.ErrorIs(t, err, core.ErrFieldNotFound)

	// Script stays on disk.
	_, err = os.Stat(ws.Config().Resolve(m))
	assert.NoError(t, err)

	err = ws.Remove(context.Background(), 2)
	assert.ErrorIs(t, err, core.ErrFieldNotFound)
}

func TestStatus(t *testing.T) {
	store := newMemStore(
		liveField(2, "Total", "return 1;"),
		liveField(3, "Score", "return 2;"),
		liveField(4, "Rank", "return 3;"),
	)
	ws := initWorkspace(t, store)
	ctx := context.Background()
	cfg := ws.Config()

	m3, _ := cfg.MappingByID(3)
	require.NoError(t, os.WriteFile(cfg.Resolve(m3), []byte("local edit"), 0644))
	store.setScript(4, "remote edit")

	statuses, err := ws.Status(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 3)

	byID := make(map[int]FieldStatus)
	for _, s := range statuses {
		byID[s.Mapping.ID] = s
	}
	assert.Equal(t, Unchanged, byID[2].Local)
	assert.Equal(t, Unchanged, byID[2].Remote)
	assert.Equal(t, Modified, byID[3].Local)
	assert.Equal(t, Unchanged, byID[3].Remote)
	assert.Equal(t, Unchanged, byID[4].Local)
	assert.Equal(t, Modified, byID[4].Remote)

	require.NoError(t, store.DeleteField(ctx, 2))
	statuses, err = ws.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, Missing, statuses[0].Remote)

	data, err := json.Marshal(statuses[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), `"remote":"missing"`)
}

func TestList(t *testing.T) {
	store := newMemStore(
		core.Field{ID: 1, Name: "Plain"},
		liveField(5, "B", ""),
		liveField(2, "A", ""),
	)
	ws := openWorkspace(t, store)

	fields, err := ws.List(context.Background())
	require.NoError(t, err)
	require.Len(t, fields, 2)
	assert.Equal(t, 2, fields[0].ID)
	assert.Equal(t, 5, fields[1].ID)
}

func TestReload(t *testing.T) {
	store := newMemStore(liveField(2, "Total", "return 1;"))
	ws := initWorkspace(t, store)
	cfg := ws.Config()

	edited := cfg.clone()
	edited.Mapping[0].URL = "https://changed.test"
	require.NoError(t, edited.Save())

	require.NoError(t, ws.Reload())
	assert.Equal(t, "https://changed.test", ws.Config().Mapping[0].URL)
}
