// Command thock-pack inspects and converts sound packs: per-key loudness
// reports, per-key WAV export from mechvibes packs, and offline resampling
// of foreign packs to the engine rate.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cwbudde/thock/engine"
	"github.com/cwbudde/thock/internal/keymap"
	"github.com/cwbudde/thock/internal/wavio"
	"github.com/cwbudde/thock/pack"
	"github.com/cwbudde/thock/sample"
)

func main() {
	mech := flag.String("mechvibes", "", "mechvibes pack: path to its config.json")
	dir := flag.String("dir", "", "folder pack directory")
	rate := flag.Int("rate", 48000, "target sample rate in Hz")
	channels := flag.Int("channels", 2, "target channel count")
	poolSize := flag.Int("pool", 1, "variant renditions per class default")
	report := flag.Bool("report", false, "print a per-key table: variants, duration, peak, RMS")
	export := flag.String("export", "", "write one WAV per key binding into this directory")
	outDir := flag.String("out", "", "resample every pack WAV to -rate into this directory")
	flag.Parse()

	var srcDir string
	switch {
	case *mech != "" && *dir != "":
		fmt.Fprintln(os.Stderr, "thock-pack: pass either -mechvibes or -dir, not both")
		os.Exit(1)
	case *mech != "":
		srcDir = filepath.Dir(*mech)
	case *dir != "":
		srcDir = *dir
	default:
		fmt.Fprintln(os.Stderr, "thock-pack: pass -mechvibes config.json or -dir folder")
		os.Exit(1)
	}
	if !*report && *export == "" && *outDir == "" {
		*report = true
	}

	// Resampling works on the raw files and needs no engine load; it is
	// how a pack recorded at a foreign rate becomes playable at all.
	if *outDir != "" {
		if err := resampleDir(srcDir, *outDir, *rate); err != nil {
			fmt.Fprintf(os.Stderr, "thock-pack: resample: %v\n", err)
			os.Exit(1)
		}
	}

	if !*report && *export == "" {
		return
	}

	store := sample.NewStore(*rate, *channels)
	loader := pack.NewLoader(store, *poolSize)
	snap, info, err := loader.Load(context.Background(), srcDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "thock-pack: loading %q: %v\n", srcDir, err)
		os.Exit(1)
	}
	fmt.Printf("Pack %q (%s): %d key bindings, %d rendered variants\n",
		info.Name, info.Mode, info.Keys, info.Variants)

	if *report {
		printReport(snap)
	}
	if *export != "" {
		if err := exportKeys(snap, *export, *rate, *channels); err != nil {
			fmt.Fprintf(os.Stderr, "thock-pack: export: %v\n", err)
			os.Exit(1)
		}
	}
}

func printReport(snap *engine.Snapshot) {
	keys := make([]string, 0, len(snap.Keys))
	for k := range snap.Keys {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)

	fmt.Printf("%-14s %8s %10s %10s %10s\n", "key", "variants", "duration", "peak", "rms")
	for _, k := range keys {
		printSetRow(k, snap.Keys[keymap.KeyID(k)])
	}
	printSetRow("(keyboard)", snap.KeyboardDefault)
	printSetRow("(heavy)", snap.HeavyDefault)
	printSetRow("(mouse)", snap.MouseDefault)
}

func printSetRow(name string, set *engine.SoundSet) {
	if set == nil || set.Len() == 0 {
		return
	}
	buf := set.Variant(0)
	peak := 0.0
	for _, s := range buf.Data {
		if a := math.Abs(float64(s)); a > peak {
			peak = a
		}
	}
	fmt.Printf("%-14s %8d %8dms %8.1fdB %8.1fdB\n",
		name, set.Len(), buf.Duration().Milliseconds(), dbfs(peak), dbfs(wavio.RMS(buf.Data)))
}

// exportKeys writes each key's first rendition as <key>.wav, spelling
// punctuation keys with their alias names so every file is filesystem-safe.
func exportKeys(snap *engine.Snapshot, outDir string, rate, channels int) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	n := 0
	for k, set := range snap.Keys {
		if set == nil || set.Len() == 0 {
			continue
		}
		path := filepath.Join(outDir, exportName(string(k))+".wav")
		if err := wavio.WriteWAV(path, set.Variant(0).Data, rate, channels); err != nil {
			return err
		}
		n++
	}
	fmt.Printf("Exported %d key sounds to %s\n", n, outDir)
	return nil
}

// exportName spells KeyIDs that are not filesystem-safe.
var exportAliases = map[string]string{
	".": "period", ",": "comma", ";": "semicolon", "'": "quote",
	"/": "slash", "\\": "backslash", "`": "backtick",
	"-": "minus", "=": "equals", "+": "plus", "*": "asterisk",
	"[": "open_bracket", "]": "close_bracket",
}

func exportName(key string) string {
	if alias, ok := exportAliases[key]; ok {
		return alias
	}
	return key
}

// resampleDir converts every WAV in srcDir to the target rate, preserving
// names and channel counts.
func resampleDir(srcDir, outDir string, targetRate int) error {
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}

	n := 0
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".wav") {
			continue
		}
		data, fileRate, ch, err := wavio.ReadWAV(filepath.Join(srcDir, e.Name()))
		if err != nil {
			return fmt.Errorf("%s: %w", e.Name(), err)
		}
		res, err := wavio.ResampleInterleaved(data, ch, fileRate, targetRate)
		if err != nil {
			return fmt.Errorf("%s: %w", e.Name(), err)
		}
		if err := wavio.WriteWAV(filepath.Join(outDir, e.Name()), res, targetRate, ch); err != nil {
			return err
		}
		n++
	}
	fmt.Printf("Resampled %d files to %d Hz in %s\n", n, targetRate, outDir)
	return nil
}

func dbfs(v float64) float64 {
	if v <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(v)
}
