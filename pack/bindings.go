package pack

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/cwbudde/thock/engine"
	"github.com/cwbudde/thock/internal/keymap"
	"github.com/cwbudde/thock/sample"
)

// Bindings is the user's per-key custom sample table, layered over whatever
// pack is active and persisted as a small JSON file of key → wav path.
type Bindings struct {
	path string

	mu sync.Mutex
	m  map[keymap.KeyID]string
}

// LoadBindings reads the table at path. A missing file is an empty table,
// not an error: the file first appears when a binding is saved.
func LoadBindings(path string) (*Bindings, error) {
	b := &Bindings{path: path, m: make(map[keymap.KeyID]string)}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return b, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read bindings: %w", err)
	}
	if err := json.Unmarshal(raw, &b.m); err != nil {
		return nil, fmt.Errorf("parse bindings %s: %w", path, err)
	}
	return b, nil
}

// Set binds key to the sample at wavPath. Takes effect on the next Apply.
func (b *Bindings) Set(key keymap.KeyID, wavPath string) {
	b.mu.Lock()
	b.m[key] = wavPath
	b.mu.Unlock()
}

// Remove drops the binding for key.
func (b *Bindings) Remove(key keymap.KeyID) {
	b.mu.Lock()
	delete(b.m, key)
	b.mu.Unlock()
}

// Get reports the bound path for key.
func (b *Bindings) Get(key keymap.KeyID) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.m[key]
	return p, ok
}

// Len reports the number of bindings.
func (b *Bindings) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.m)
}

// Save writes the table to its file, replacing it atomically so a crash
// mid-write never leaves a truncated table behind.
func (b *Bindings) Save() error {
	b.mu.Lock()
	raw, err := json.MarshalIndent(b.m, "", "  ")
	b.mu.Unlock()
	if err != nil {
		return fmt.Errorf("encode bindings: %w", err)
	}
	tmp := b.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write bindings: %w", err)
	}
	if err := os.Rename(tmp, b.path); err != nil {
		return fmt.Errorf("replace bindings: %w", err)
	}
	return nil
}

// Apply layers the bindings over snap, returning a new snapshot for the
// engine to swap in. Bindings whose file fails to load are skipped with a
// warning so one bad path cannot take down a reload.
func (b *Bindings) Apply(snap *engine.Snapshot, store *sample.Store) *engine.Snapshot {
	b.mu.Lock()
	bound := make(map[keymap.KeyID]string, len(b.m))
	for k, v := range b.m {
		bound[k] = v
	}
	b.mu.Unlock()

	out := &engine.Snapshot{Keys: make(map[keymap.KeyID]*engine.SoundSet)}
	if snap != nil {
		out.KeyboardDefault = snap.KeyboardDefault
		out.HeavyDefault = snap.HeavyDefault
		out.MouseDefault = snap.MouseDefault
		for k, v := range snap.Keys {
			out.Keys[k] = v
		}
	}
	for key, path := range bound {
		buf, err := store.Load(path)
		if err != nil {
			slog.Warn("skipping custom binding", "key", key, "path", path, "err", err)
			continue
		}
		out.Keys[key] = engine.NewSoundSet("binding:"+string(key), []*sample.Buffer{buf})
	}
	return out
}
