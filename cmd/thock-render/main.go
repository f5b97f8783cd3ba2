// Command thock-render drives the engine offline and writes the mix to a
// WAV file: a typing burst without a soundcard, for listening tests and
// pack comparisons.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"sort"

	"github.com/cwbudde/thock/config"
	"github.com/cwbudde/thock/engine"
	"github.com/cwbudde/thock/internal/keymap"
	"github.com/cwbudde/thock/internal/wavio"
	"github.com/cwbudde/thock/pack"
	"github.com/cwbudde/thock/sample"
)

type keyEvent struct {
	frame int
	key   keymap.KeyID
	down  bool
}

func main() {
	packDir := flag.String("pack", "", "sound pack directory (overrides the config's pack_dir)")
	configPath := flag.String("config", "", "optional YAML config for engine and pack settings")
	script := flag.String("script", "", "text whose characters become key presses")
	random := flag.Int("random", 0, "number of random presses when no script is given")
	cps := flag.Float64("cps", 8.0, "typing cadence in characters per second")
	seed := flag.Int64("seed", 1, "random seed for cadence jitter and key choice")
	seconds := flag.Float64("seconds", 0, "total length in seconds; 0 sizes to the last event plus a tail")
	output := flag.String("out", "thock-render.wav", "output WAV file path")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "thock-render: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *packDir != "" {
		cfg.Sounds.PackDir = *packDir
	}
	if cfg.Sounds.PackDir == "" {
		fmt.Fprintln(os.Stderr, "thock-render: no pack: pass -pack or a -config with sounds.pack_dir")
		os.Exit(1)
	}

	rate := cfg.Audio.SampleRate
	channels := cfg.Audio.Channels

	eng := engine.New(engine.Options{
		SampleRate:   rate,
		Channels:     channels,
		Polyphony:    cfg.Audio.Polyphony,
		Volume:       float32(cfg.Engine.Volume),
		AdaptiveGain: cfg.Engine.AdaptiveGain,
		StealFade:    cfg.Engine.StealFade(),
	})
	defer eng.Close()

	store := sample.NewStore(rate, channels)
	loader := pack.NewLoader(store, cfg.Sounds.PoolSize)
	snap, info, err := loader.Load(context.Background(), cfg.Sounds.PackDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "thock-render: loading pack %q: %v\n", cfg.Sounds.PackDir, err)
		os.Exit(1)
	}
	eng.SwapSnapshot(snap)

	fmt.Printf("Pack %q (%s): %d key sounds, %d variants\n", info.Name, info.Mode, info.Keys, info.Variants)

	rng := rand.New(rand.NewSource(*seed))
	events := buildSchedule(rng, *script, *random, *cps, rate)
	if len(events) == 0 {
		fmt.Fprintln(os.Stderr, "thock-render: nothing to play: pass -script or -random")
		os.Exit(1)
	}

	totalFrames := events[len(events)-1].frame + rate // one second of tail
	if *seconds > 0 {
		totalFrames = int(*seconds * float64(rate))
		if totalFrames < 1 {
			totalFrames = 1
		}
	}

	blockSize := 128
	mix := eng.Mixer()
	out := make([]float32, 0, totalFrames*channels)
	block := make([]float32, blockSize*channels)

	next := 0
	for frame := 0; frame < totalFrames; frame += blockSize {
		for next < len(events) && events[next].frame <= frame {
			ev := events[next]
			e := engine.Event{Key: ev.key, Class: ev.key.Class()}
			if ev.down {
				eng.OnKeyDown(e)
			} else {
				eng.OnKeyUp(e)
			}
			next++
		}

		n := blockSize
		if frame+n > totalFrames {
			n = totalFrames - frame
		}
		b := block[:n*channels]
		mix.MixInto(b)
		out = append(out, b...)
	}

	if err := wavio.WriteWAV(*output, out, rate, channels); err != nil {
		fmt.Fprintf(os.Stderr, "thock-render: writing %q: %v\n", *output, err)
		os.Exit(1)
	}

	peak := 0.0
	for _, s := range out {
		if a := math.Abs(float64(s)); a > peak {
			peak = a
		}
	}
	s := eng.Stats()
	fmt.Printf("Rendered %d presses over %.2fs: %d triggers, %d steals, %d clipped samples\n",
		len(events)/2, float64(totalFrames)/float64(rate), s.Triggers, s.Steals, s.Clips)
	fmt.Printf("Wrote %s (%d frames, peak %.1f dBFS, RMS %.1f dBFS)\n",
		*output, totalFrames, dbfs(peak), dbfs(wavio.RMS(out)))
}

// buildSchedule lays presses on a jittered cadence grid; each press holds
// for 60ms before its release. Deterministic for a given seed.
func buildSchedule(rng *rand.Rand, script string, random int, cps float64, rate int) []keyEvent {
	if cps <= 0 {
		cps = 8
	}
	period := 1.0 / cps

	var keys []keymap.KeyID
	if script != "" {
		for _, r := range script {
			if k, ok := keymap.FromRune(r); ok {
				keys = append(keys, k)
			}
		}
	} else {
		letters := []rune("etaoinshrdlucmfwyp")
		for i := 0; i < random; i++ {
			if (i+1)%6 == 0 {
				keys = append(keys, "space")
				continue
			}
			if k, ok := keymap.FromRune(letters[rng.Intn(len(letters))]); ok {
				keys = append(keys, k)
			}
		}
	}

	const holdSec = 0.06
	events := make([]keyEvent, 0, len(keys)*2)
	at := 0.0
	for _, k := range keys {
		events = append(events,
			keyEvent{frame: int(at * float64(rate)), key: k, down: true},
			keyEvent{frame: int((at + holdSec) * float64(rate)), key: k, down: false},
		)
		// ±12.5% cadence wobble so bursts do not sound mechanical.
		at += period * (1 + 0.25*(rng.Float64()-0.5))
	}
	sort.Slice(events, func(i, j int) bool { return events[i].frame < events[j].frame })
	return events
}

func dbfs(v float64) float64 {
	if v <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(v)
}
