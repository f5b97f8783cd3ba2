// Package pack loads sound packs from disk and builds the immutable binding
// snapshots the engine routes on. Two layouts are supported: a plain folder
// with class recordings (normal.wav, heavy.wav, mouse.wav plus optional
// per-key overrides under keys/), and mechvibes-style packs described by a
// config.json manifest.
package pack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/cwbudde/thock/dsp"
	"github.com/cwbudde/thock/engine"
	"github.com/cwbudde/thock/internal/keymap"
	"github.com/cwbudde/thock/sample"
)

// Class source file names for folder packs.
const (
	normalSource = "normal.wav"
	heavySource  = "heavy.wav"
	mouseSource  = "mouse.wav"
	overrideDir  = "keys"
)

// Info summarizes a loaded pack for logs and status output.
type Info struct {
	Name     string
	Mode     string // "folder" or "manifest"
	Keys     int    // per-key bindings
	Variants int    // renditions rendered for the class defaults
}

// Loader renders pack sources into engine snapshots.
type Loader struct {
	store    *sample.Store
	poolSize int
}

// NewLoader builds a loader on top of store. poolSize is the number of
// renditions rendered per class default; values below 1 fall back to 1.
func NewLoader(store *sample.Store, poolSize int) *Loader {
	if poolSize < 1 {
		poolSize = 1
	}
	return &Loader{store: store, poolSize: poolSize}
}

// Load reads the pack at dir in whichever layout it uses: a config.json
// marks a manifest pack, anything else is treated as a folder pack.
func (l *Loader) Load(ctx context.Context, dir string) (*engine.Snapshot, Info, error) {
	if _, err := os.Stat(filepath.Join(dir, manifestName)); err == nil {
		return l.loadManifest(ctx, dir)
	}
	return l.loadFolder(ctx, dir)
}

func (l *Loader) loadFolder(ctx context.Context, dir string) (*engine.Snapshot, Info, error) {
	snap := &engine.Snapshot{Keys: make(map[keymap.KeyID]*engine.SoundSet)}
	info := Info{Name: filepath.Base(dir), Mode: "folder"}

	classes := []struct {
		file     string
		params   dsp.Params
		dst      **engine.SoundSet
		required bool
	}{
		{normalSource, dsp.NormalPreset(), &snap.KeyboardDefault, true},
		{heavySource, dsp.HeavyPreset(), &snap.HeavyDefault, false},
		{mouseSource, dsp.MousePreset(), &snap.MouseDefault, false},
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, c := range classes {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			src, err := l.store.Load(filepath.Join(dir, c.file))
			if err != nil {
				if !c.required && errors.Is(err, os.ErrNotExist) {
					return nil
				}
				return fmt.Errorf("load %s: %w", c.file, err)
			}
			variants, err := dsp.RenderPool(src, c.params, l.poolSize)
			if err != nil {
				return fmt.Errorf("render %s: %w", c.file, err)
			}
			*c.dst = engine.NewSoundSet(strings.TrimSuffix(c.file, ".wav"), variants)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, Info{}, err
	}
	for _, s := range []*engine.SoundSet{snap.KeyboardDefault, snap.HeavyDefault, snap.MouseDefault} {
		if s != nil {
			info.Variants += s.Len()
		}
	}

	if err := l.loadOverrides(dir, snap); err != nil {
		return nil, Info{}, err
	}
	info.Keys = len(snap.Keys)
	return snap, info, nil
}

// loadOverrides binds each wav under keys/ to the key its file name aliases.
// Overrides play as-is: no variant rendering on top of a hand-picked sample.
func (l *Loader) loadOverrides(dir string, snap *engine.Snapshot) error {
	entries, err := os.ReadDir(filepath.Join(dir, overrideDir))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read key overrides: %w", err)
	}
	for _, ent := range entries {
		if ent.IsDir() || !strings.EqualFold(filepath.Ext(ent.Name()), ".wav") {
			continue
		}
		stem := strings.TrimSuffix(ent.Name(), filepath.Ext(ent.Name()))
		key, ok := keymap.FromFilename(stem)
		if !ok {
			slog.Warn("override file matches no key", "file", ent.Name())
			continue
		}
		buf, err := l.store.Load(filepath.Join(dir, overrideDir, ent.Name()))
		if err != nil {
			return fmt.Errorf("load override %s: %w", ent.Name(), err)
		}
		snap.Keys[key] = engine.NewSoundSet(overrideDir+"/"+stem, []*sample.Buffer{buf})
	}
	return nil
}

func (l *Loader) loadManifest(ctx context.Context, dir string) (*engine.Snapshot, Info, error) {
	m, err := parseManifest(filepath.Join(dir, manifestName))
	if err != nil {
		return nil, Info{}, err
	}
	name := m.Name
	if name == "" {
		name = filepath.Base(dir)
	}
	info := Info{Name: name, Mode: "manifest"}
	snap := &engine.Snapshot{Keys: make(map[keymap.KeyID]*engine.SoundSet)}

	switch m.KeyDefineType {
	case "single":
		master, err := l.store.Load(filepath.Join(dir, m.Sound))
		if err != nil {
			return nil, Info{}, fmt.Errorf("load master recording: %w", err)
		}
		for _, seg := range m.segments() {
			buf := master.Slice(seg.Start, seg.Dur)
			snap.Keys[seg.Key] = engine.NewSoundSet(string(seg.Key), []*sample.Buffer{buf})
		}

	case "multi":
		g, ctx := errgroup.WithContext(ctx)
		var mu sync.Mutex
		for _, fd := range m.files() {
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				buf, err := l.store.Load(filepath.Join(dir, fd.File))
				if err != nil {
					return fmt.Errorf("load %s: %w", fd.File, err)
				}
				set := engine.NewSoundSet(fd.File, []*sample.Buffer{buf})
				mu.Lock()
				snap.Keys[fd.Key] = set
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, Info{}, err
		}
	}

	info.Keys = len(snap.Keys)
	return snap, info, nil
}
