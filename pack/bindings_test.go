package pack

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cwbudde/thock/engine"
	"github.com/cwbudde/thock/internal/keymap"
	"github.com/cwbudde/thock/sample"
)

func TestBindingsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bindings.json")

	b, err := LoadBindings(path)
	if err != nil {
		t.Fatalf("LoadBindings on a missing file: %v", err)
	}
	if b.Len() != 0 {
		t.Fatalf("expected an empty table, got %d", b.Len())
	}

	b.Set("space", "/sounds/thock.wav")
	b.Set("enter", "/sounds/clack.wav")
	if err := b.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("expected the temp file renamed away")
	}

	again, err := LoadBindings(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got, _ := again.Get("space"); got != "/sounds/thock.wav" {
		t.Errorf("expected the space binding to round-trip, got %q", got)
	}
	if again.Len() != 2 {
		t.Errorf("expected 2 bindings, got %d", again.Len())
	}

	again.Remove("space")
	if _, ok := again.Get("space"); ok {
		t.Error("expected the removed binding gone")
	}
}

func TestBindingsApplyLayersOverSnapshot(t *testing.T) {
	dir := t.TempDir()
	goodWAV := filepath.Join(dir, "good.wav")
	writeWAV(t, goodWAV, click(480), 48000, 1)

	store := sample.NewStore(48000, 1)
	base := &engine.Snapshot{
		Keys: map[keymap.KeyID]*engine.SoundSet{
			"a": engine.NewSoundSet("a", nil),
		},
		KeyboardDefault: engine.NewSoundSet("kb", nil),
	}

	b, err := LoadBindings(filepath.Join(dir, "bindings.json"))
	if err != nil {
		t.Fatal(err)
	}
	b.Set("b", goodWAV)
	b.Set("c", filepath.Join(dir, "missing.wav"))

	out := b.Apply(base, store)
	if out == base {
		t.Fatal("expected Apply to build a new snapshot")
	}
	if out.Keys["a"] != base.Keys["a"] {
		t.Error("expected existing bindings preserved")
	}
	if out.KeyboardDefault != base.KeyboardDefault {
		t.Error("expected class defaults preserved")
	}
	set, ok := out.Keys["b"]
	if !ok || set.Len() != 1 {
		t.Fatalf("expected the good binding applied as a single rendition, got %v", set)
	}
	if _, ok := out.Keys["c"]; ok {
		t.Error("expected the broken binding skipped")
	}
	if _, ok := base.Keys["b"]; ok {
		t.Error("expected the base snapshot left untouched")
	}
}

func TestBindingsApplyWithoutBase(t *testing.T) {
	dir := t.TempDir()
	goodWAV := filepath.Join(dir, "good.wav")
	writeWAV(t, goodWAV, click(480), 48000, 1)
	store := sample.NewStore(48000, 1)

	b, err := LoadBindings(filepath.Join(dir, "bindings.json"))
	if err != nil {
		t.Fatal(err)
	}
	b.Set("space", goodWAV)

	out := b.Apply(nil, store)
	if _, ok := out.Keys["space"]; !ok {
		t.Fatal("expected the binding present without a base snapshot")
	}
}
