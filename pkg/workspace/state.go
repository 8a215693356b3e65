package workspace

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/zeebo/blake3"

	"github.com/aretw0/livefield/internal/fsutil"
)

// SystemDir holds workspace bookkeeping and is ignored by git snapshots.
const SystemDir = ".livefield"

const stateVersion = 1

// stateEntry records what a field looked like at its last pull or push.
type stateEntry struct {
	ID         int       `json:"id"`
	Name       string    `json:"name"`
	LocalHash  string    `json:"localHash"`
	RemoteHash string    `json:"remoteHash"`
	SyncedAt   time.Time `json:"syncedAt"`
}

// stateIndex is the persisted form of the state cache.
type stateIndex struct {
	Version int                    `json:"version"`
	Entries map[string]*stateEntry `json:"entries"` // keyed by field ID
	dirty   bool
	mu      sync.RWMutex
}

// stateCache tracks per-field hashes under {root}/.livefield/state.json.
type stateCache struct {
	Path  string
	index *stateIndex
}

func newStateCache(root string) *stateCache {
	return &stateCache{
		Path: filepath.Join(root, SystemDir, "state.json"),
		index: &stateIndex{
			Version: stateVersion,
			Entries: make(map[string]*stateEntry),
		},
	}
}

// hashScript returns the hex BLAKE3 digest of a script.
func hashScript(script []byte) string {
	sum := blake3.Sum256(script)
	return hex.EncodeToString(sum[:])
}

func stateKey(id int) string {
	return strconv.Itoa(id)
}

// Load reads the cache from disk. Missing or corrupt files yield an empty cache.
func (c *stateCache) Load() error {
	c.index.mu.Lock()
	defer c.index.mu.Unlock()

	data, err := os.ReadFile(c.Path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read state: %w", err)
	}

	var loaded struct {
		Version int                    `json:"version"`
		Entries map[string]*stateEntry `json:"entries"`
	}
	if err := json.Unmarshal(data, &loaded); err != nil || loaded.Version != stateVersion || loaded.Entries == nil {
		c.index.Entries = make(map[string]*stateEntry)
		return nil
	}

	c.index.Entries = loaded.Entries
	c.index.dirty = false
	return nil
}

// Save persists the cache if it changed.
func (c *stateCache) Save() error {
	c.index.mu.RLock()
	if !c.index.dirty {
		c.index.mu.RUnlock()
		return nil
	}
	data, err := json.MarshalIndent(c.index, "", "  ")
	c.index.mu.RUnlock()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(c.Path), 0755); err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(c.Path, data, 0644); err != nil {
		return err
	}

	c.index.mu.Lock()
	c.index.dirty = false
	c.index.mu.Unlock()
	return nil
}

// Get returns a copy of the entry of a field.
func (c *stateCache) Get(id int) (stateEntry, bool) {
	c.index.mu.RLock()
	defer c.index.mu.RUnlock()

	e, ok := c.index.Entries[stateKey(id)]
	if !ok {
		return stateEntry{}, false
	}
	return *e, true
}

// Set records the entry of a field.
func (c *stateCache) Set(e stateEntry) {
	c.index.mu.Lock()
	defer c.index.mu.Unlock()

	c.index.Entries[stateKey(e.ID)] = &e
	c.index.dirty = true
}

// Delete drops the entry of a field.
func (c *stateCache) Delete(id int) {
	c.index.mu.Lock()
	defer c.index.mu.Unlock()

	if _, ok := c.index.Entries[stateKey(id)]; ok {
		delete(c.index.Entries, stateKey(id))
		c.index.dirty = true
	}
}

// Prune removes entries of fields not in keep.
func (c *stateCache) Prune(keep map[int]bool) {
	c.index.mu.Lock()
	defer c.index.mu.Unlock()

	for k, e := range c.index.Entries {
		if !keep[e.ID] {
			delete(c.index.Entries, k)
			c.index.dirty = true
		}
	}
}

// Len returns the number of tracked fields.
func (c *stateCache) Len() int {
	c.index.mu.RLock()
	defer c.index.mu.RUnlock()
	return len(c.index.Entries)
}

// LastSync returns the most recent sync time across all fields.
func (c *stateCache) LastSync() *time.Time {
	c.index.mu.RLock()
	defer c.index.mu.RUnlock()

	var last *time.Time
	for _, e := range c.index.Entries {
		if last == nil || e.SyncedAt.After(*last) {
			t := e.SyncedAt
			last = &t
		}
	}
	return last
}
