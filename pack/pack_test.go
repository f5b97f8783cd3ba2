package pack

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/cwbudde/wav"
	"github.com/go-audio/audio"

	"github.com/cwbudde/thock/sample"
)

func writeWAV(t *testing.T, path string, data []float32, rate, channels int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	enc := wav.NewEncoder(f, rate, 16, channels, 1)
	buf := &audio.Float32Buffer{
		Format:         &audio.Format{SampleRate: rate, NumChannels: channels},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close file: %v", err)
	}
}

// click returns a short decaying burst, enough signal for the variant
// render chain to chew on.
func click(frames int) []float32 {
	data := make([]float32, frames)
	for i := range data {
		env := float32(math.Exp(-6 * float64(i) / float64(frames)))
		data[i] = 0.6 * env * float32(math.Sin(2*math.Pi*900*float64(i)/48000))
	}
	return data
}

func TestLoadFolderRendersClassDefaults(t *testing.T) {
	dir := t.TempDir()
	writeWAV(t, filepath.Join(dir, "normal.wav"), click(480), 48000, 1)

	store := sample.NewStore(48000, 1)
	l := NewLoader(store, 3)
	snap, info, err := l.Load(context.Background(), dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if snap.KeyboardDefault == nil || snap.KeyboardDefault.Len() != 3 {
		t.Fatalf("expected 3 keyboard renditions, got %v", snap.KeyboardDefault)
	}
	if snap.HeavyDefault != nil {
		t.Error("expected no heavy default without heavy.wav")
	}
	if snap.MouseDefault != nil {
		t.Error("expected no mouse default without mouse.wav")
	}
	if info.Mode != "folder" {
		t.Errorf("expected folder mode, got %q", info.Mode)
	}
	if info.Variants != 3 {
		t.Errorf("expected 3 rendered variants, got %d", info.Variants)
	}
	if info.Name != filepath.Base(dir) {
		t.Errorf("expected the directory name %q, got %q", filepath.Base(dir), info.Name)
	}
}

func TestLoadFolderAllClasses(t *testing.T) {
	dir := t.TempDir()
	writeWAV(t, filepath.Join(dir, "normal.wav"), click(480), 48000, 1)
	writeWAV(t, filepath.Join(dir, "heavy.wav"), click(960), 48000, 1)
	writeWAV(t, filepath.Join(dir, "mouse.wav"), click(240), 48000, 1)

	store := sample.NewStore(48000, 1)
	l := NewLoader(store, 2)
	snap, info, err := l.Load(context.Background(), dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if snap.KeyboardDefault.Len() != 2 || snap.HeavyDefault.Len() != 2 || snap.MouseDefault.Len() != 2 {
		t.Fatal("expected 2 renditions per class")
	}
	if info.Variants != 6 {
		t.Errorf("expected 6 variants total, got %d", info.Variants)
	}
}

func TestLoadFolderMissingNormalFails(t *testing.T) {
	dir := t.TempDir()
	store := sample.NewStore(48000, 1)
	l := NewLoader(store, 2)
	if _, _, err := l.Load(context.Background(), dir); err == nil {
		t.Fatal("expected an error for a folder pack without normal.wav")
	}
}

func TestLoadFolderKeyOverrides(t *testing.T) {
	dir := t.TempDir()
	writeWAV(t, filepath.Join(dir, "normal.wav"), click(480), 48000, 1)
	if err := os.Mkdir(filepath.Join(dir, "keys"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeWAV(t, filepath.Join(dir, "keys", "Space.wav"), click(200), 48000, 1)
	writeWAV(t, filepath.Join(dir, "keys", "not-a-key.wav"), click(200), 48000, 1)

	store := sample.NewStore(48000, 1)
	l := NewLoader(store, 1)
	snap, info, err := l.Load(context.Background(), dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	set, ok := snap.Keys["space"]
	if !ok {
		t.Fatal("expected Space.wav bound to the space key")
	}
	if set.Len() != 1 {
		t.Fatalf("expected overrides to stay single renditions, got %d", set.Len())
	}
	if _, ok := snap.Keys["not_a_key"]; ok {
		t.Error("expected the unknown file name to be skipped")
	}
	if info.Keys != 1 {
		t.Errorf("expected 1 per-key binding, got %d", info.Keys)
	}
}

func TestLoadManifestSingle(t *testing.T) {
	dir := t.TempDir()
	writeWAV(t, filepath.Join(dir, "sound.wav"), click(4800), 48000, 1)
	manifest := `{
		"name": "Test Pack",
		"key_define_type": "single",
		"sound": "sound.wav",
		"defines": {
			"57": [0, 50],
			"28": [50, 50],
			"1": null,
			"999999": [0, 10]
		}
	}`
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}

	store := sample.NewStore(48000, 1)
	l := NewLoader(store, 4)
	snap, info, err := l.Load(context.Background(), dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if info.Mode != "manifest" {
		t.Errorf("expected manifest mode, got %q", info.Mode)
	}
	if info.Name != "Test Pack" {
		t.Errorf("expected the manifest name, got %q", info.Name)
	}
	space, ok := snap.Keys["space"]
	if !ok {
		t.Fatal("expected scan code 57 bound to space")
	}
	if got := space.Pick().Frames(); got != 2400 {
		t.Errorf("expected a 50ms segment of 2400 frames, got %d", got)
	}
	if _, ok := snap.Keys["enter"]; !ok {
		t.Error("expected scan code 28 bound to enter")
	}
	if _, ok := snap.Keys["esc"]; ok {
		t.Error("expected the null define to stay unbound")
	}
	if snap.KeyboardDefault != nil {
		t.Error("manifest packs carry no class defaults")
	}
	if info.Keys != 2 {
		t.Errorf("expected 2 bindings, got %d", info.Keys)
	}
}

func TestLoadManifestSingleSharesMasterMemory(t *testing.T) {
	dir := t.TempDir()
	writeWAV(t, filepath.Join(dir, "sound.wav"), click(4800), 48000, 1)
	manifest := `{"key_define_type": "single", "sound": "sound.wav", "defines": {"57": [10, 20]}}`
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}

	store := sample.NewStore(48000, 1)
	snap, _, err := NewLoader(store, 1).Load(context.Background(), dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	master, err := store.Load(filepath.Join(dir, "sound.wav"))
	if err != nil {
		t.Fatalf("reload master: %v", err)
	}
	seg := snap.Keys["space"].Pick()
	if &seg.Data[0] != &master.Data[480] {
		t.Error("expected the segment to be a view into the master recording")
	}
}

func TestLoadManifestMulti(t *testing.T) {
	dir := t.TempDir()
	writeWAV(t, filepath.Join(dir, "space.wav"), click(480), 48000, 1)
	writeWAV(t, filepath.Join(dir, "esc.wav"), click(240), 48000, 1)
	manifest := `{
		"name": "Multi Pack",
		"key_define_type": "multi",
		"defines": {"57": "space.wav", "1": "esc.wav", "28": null}
	}`
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}

	store := sample.NewStore(48000, 1)
	snap, info, err := NewLoader(store, 1).Load(context.Background(), dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if info.Keys != 2 {
		t.Fatalf("expected 2 bindings, got %d", info.Keys)
	}
	if _, ok := snap.Keys["space"]; !ok {
		t.Error("expected space bound")
	}
	if _, ok := snap.Keys["esc"]; !ok {
		t.Error("expected esc bound")
	}
}

func TestLoadManifestMultiMissingFileFails(t *testing.T) {
	dir := t.TempDir()
	manifest := `{"key_define_type": "multi", "defines": {"57": "nope.wav"}}`
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}
	store := sample.NewStore(48000, 1)
	if _, _, err := NewLoader(store, 1).Load(context.Background(), dir); err == nil {
		t.Fatal("expected an error for a define pointing at a missing file")
	}
}

func TestParseManifestRejectsBadType(t *testing.T) {
	dir := t.TempDir()
	cases := []string{
		`{"key_define_type": "weird", "sound": "s.wav", "defines": {}}`,
		`{"sound": "s.wav", "defines": {}}`,
		`{"key_define_type": "single", "defines": {}}`,
	}
	for i, m := range cases {
		path := filepath.Join(dir, "config.json")
		if err := os.WriteFile(path, []byte(m), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := parseManifest(path); err == nil {
			t.Errorf("case %d: expected a manifest error", i)
		}
	}
}
