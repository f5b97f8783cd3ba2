// Command thock turns keystrokes into mechanical keyboard sounds. It loads
// a sound pack, opens the audio output and feeds every key and mouse event
// through the trigger engine.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/cwbudde/thock/config"
	"github.com/cwbudde/thock/engine"
	"github.com/cwbudde/thock/internal/device"
	"github.com/cwbudde/thock/internal/observe"
	"github.com/cwbudde/thock/pack"
	"github.com/cwbudde/thock/sample"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "thock.yaml", "path to the YAML configuration file")
	noUI := flag.Bool("no-ui", false, "skip the raw-terminal UI and read line commands from stdin")
	mouse := flag.Bool("mouse", false, "also read mouse buttons from /dev/input/mice (Linux)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "thock: config file %q not found; copy thock.example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "thock: %v\n", err)
		}
		return 1
	}

	logLevel := new(slog.LevelVar)
	logLevel.Set(cfg.Log.Level.Level())
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("thock starting",
		"config", *configPath,
		"pack", cfg.Sounds.PackDir,
		"backend", cfg.Audio.Backend,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Metrics are optional; without an address nothing OTel-related runs.
	var prov *observe.Provider
	var met *observe.Metrics
	if cfg.Metrics.Addr != "" {
		prov, err = observe.InitProvider(ctx, observe.ProviderConfig{Addr: cfg.Metrics.Addr})
		if err != nil {
			slog.Error("metrics init failed", "err", err)
			return 1
		}
		slog.Info("metrics endpoint up", "addr", prov.ScrapeAddr())
	}

	eng := engine.New(engine.Options{
		SampleRate:     cfg.Audio.SampleRate,
		Channels:       cfg.Audio.Channels,
		Polyphony:      cfg.Audio.Polyphony,
		Volume:         float32(cfg.Engine.Volume),
		AdaptiveGain:   cfg.Engine.AdaptiveGain,
		StealFade:      cfg.Engine.StealFade(),
		RepeatInterval: cfg.Repeat.Interval(),
	})
	eng.SetRepeat(cfg.Repeat.Enabled)

	if prov != nil {
		met, err = observe.NewMetrics(otel.GetMeterProvider(), eng.Stats)
		if err != nil {
			slog.Error("metrics instruments failed", "err", err)
			return 1
		}
	}

	ps := &packState{eng: eng, met: met}
	if err := ps.load(ctx, cfg); err != nil {
		slog.Error("pack load failed", "pack", cfg.Sounds.PackDir, "err", err)
		eng.Close()
		return 1
	}

	var src device.Source = eng.Mixer()
	if met != nil {
		src = met.InstrumentSource(eng.Mixer())
	}
	out, err := device.Open(device.Options{
		Source:     src,
		SampleRate: cfg.Audio.SampleRate,
		Channels:   cfg.Audio.Channels,
		Buffer:     cfg.Audio.BufferDuration(),
		Backend:    string(cfg.Audio.Backend),
	})
	if err != nil {
		slog.Error("audio device open failed", "backend", cfg.Audio.Backend, "err", err)
		eng.Close()
		return 1
	}
	if met != nil {
		if err := met.ObserveUnderruns(out.Underruns); err != nil {
			slog.Warn("underrun metric unavailable", "err", err)
		}
	}

	watcher, err := config.NewWatcher(*configPath, func(oldCfg, newCfg *config.Config) {
		applyReload(ctx, eng, ps, logLevel, oldCfg, newCfg)
	})
	if err != nil {
		// The same file loaded fine above, so this is unexpected; the
		// daemon still works without hot reload.
		slog.Warn("config watcher disabled", "err", err)
	}

	if cfg.Sounds.BindingsFile != "" {
		go pollBindings(ctx, cfg.Sounds.BindingsFile, ps)
	}
	if *mouse {
		go runMouseFeeder(ctx, eng)
	}

	info := ps.Info()
	fmt.Printf("thock: %s pack %q, %d key sounds, %d rendered variants\n",
		info.Mode, info.Name, info.Keys, info.Variants)
	fmt.Printf("audio: %s, %d Hz, %d ch, %v buffer\n",
		out.Backend(), cfg.Audio.SampleRate, cfg.Audio.Channels, cfg.Audio.BufferDuration())
	if prov != nil {
		fmt.Printf("metrics: http://%s/metrics\n", prov.ScrapeAddr())
	}

	ui := newUI(eng, os.Stdin, os.Stdout, *noUI)
	if err := ui.run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("input loop error", "err", err)
	}
	stop()

	slog.Info("shutting down")
	if err := out.Close(); err != nil {
		slog.Warn("audio device close", "err", err)
	}
	eng.Close()
	if watcher != nil {
		watcher.Stop()
	}
	if met != nil {
		if err := met.Close(); err != nil {
			slog.Warn("metrics close", "err", err)
		}
	}
	if prov != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := prov.Shutdown(shutdownCtx); err != nil {
			slog.Warn("metrics shutdown", "err", err)
		}
	}

	s := eng.Stats()
	slog.Info("session finished",
		"triggers", s.Triggers,
		"steals", s.Steals,
		"clips", s.Clips,
		"underruns", out.Underruns(),
	)
	return 0
}

// applyReload maps a config file change onto the running engine. Only the
// hot-reloadable fields are applied; everything else needs a restart.
func applyReload(ctx context.Context, eng *engine.Engine, ps *packState, lvl *slog.LevelVar, oldCfg, newCfg *config.Config) {
	d := config.Diff(oldCfg, newCfg)
	if !d.Any() {
		return
	}
	if d.VolumeChanged {
		eng.SetVolume(float32(d.NewVolume))
		slog.Info("volume updated", "volume", d.NewVolume)
	}
	if d.RepeatChanged {
		eng.SetRepeat(d.RepeatEnabled)
		slog.Info("repeat updated", "enabled", d.RepeatEnabled)
	}
	if d.LogLevelChanged {
		lvl.Set(d.NewLogLevel.Level())
		slog.Info("log level updated", "level", d.NewLogLevel)
	}
	if d.PackChanged {
		if err := ps.load(ctx, newCfg); err != nil {
			slog.Error("pack reload failed, keeping previous pack", "err", err)
		}
	}
}

// packState owns the loaded pack and re-applies custom bindings over the
// base snapshot whenever either side changes.
type packState struct {
	eng *engine.Engine
	met *observe.Metrics

	mu    sync.Mutex
	store *sample.Store
	base  *engine.Snapshot
	info  pack.Info
}

// load builds a fresh store and snapshot from cfg and swaps it in. On error
// the engine keeps playing the previous snapshot.
func (p *packState) load(ctx context.Context, cfg *config.Config) error {
	start := time.Now()
	store := sample.NewStore(cfg.Audio.SampleRate, cfg.Audio.Channels)
	loader := pack.NewLoader(store, cfg.Sounds.PoolSize)
	snap, info, err := loader.Load(ctx, cfg.Sounds.PackDir)
	if err != nil {
		return err
	}

	active := snap
	if cfg.Sounds.BindingsFile != "" {
		binds, err := pack.LoadBindings(cfg.Sounds.BindingsFile)
		if err != nil {
			slog.Warn("bindings file unreadable, continuing without",
				"path", cfg.Sounds.BindingsFile, "err", err)
		} else if binds.Len() > 0 {
			active = binds.Apply(snap, store)
		}
	}

	p.mu.Lock()
	p.store, p.base, p.info = store, snap, info
	p.mu.Unlock()

	p.eng.SwapSnapshot(active)
	if p.met != nil {
		p.met.RecordPackLoad(ctx, time.Since(start))
	}
	slog.Info("pack loaded",
		"name", info.Name,
		"mode", info.Mode,
		"keys", info.Keys,
		"variants", info.Variants,
		"took", time.Since(start),
	)
	return nil
}

// reapplyBindings re-reads the bindings file and layers it over the current
// base snapshot.
func (p *packState) reapplyBindings(path string) {
	binds, err := pack.LoadBindings(path)
	if err != nil {
		slog.Warn("bindings reload failed", "path", path, "err", err)
		return
	}

	p.mu.Lock()
	base, store := p.base, p.store
	p.mu.Unlock()
	if base == nil {
		return
	}

	p.eng.SwapSnapshot(binds.Apply(base, store))
	slog.Info("bindings reloaded", "path", path, "bound", binds.Len())
}

func (p *packState) Info() pack.Info {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.info
}

// pollBindings watches the bindings file mtime. The file is tiny and edits
// are rare, so a coarse poll is plenty.
func pollBindings(ctx context.Context, path string, ps *packState) {
	var lastMod time.Time
	if st, err := os.Stat(path); err == nil {
		lastMod = st.ModTime()
	}

	t := time.NewTicker(2 * time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			st, err := os.Stat(path)
			if err != nil {
				continue
			}
			if st.ModTime().Equal(lastMod) {
				continue
			}
			lastMod = st.ModTime()
			ps.reapplyBindings(path)
		}
	}
}
