// Package engine implements the low-latency trigger and mix core: a
// fixed-size polyphonic voice pool fed by input events, drained by an audio
// callback, with FIFO stealing, adaptive gain, master volume and held-key
// repeat.
package engine

import (
	"time"

	"github.com/cwbudde/thock/internal/keymap"
)

// Options configure a new Engine. Zero values pick sensible defaults.
type Options struct {
	// SampleRate in Hz. Defaults to 48000.
	SampleRate int
	// Channels of interleaved output. Defaults to 2.
	Channels int
	// Polyphony is the fixed number of simultaneous voices. Defaults to 12.
	Polyphony int
	// Volume is the initial master volume in [0, 1]. Values <= 0 fall back
	// to 1 so a zero Options starts audible; call SetVolume(0) to mute.
	Volume float32
	// AdaptiveGain attenuates dense bursts to keep headroom.
	AdaptiveGain bool
	// StealFade is the fade-in applied to a voice that reuses a stolen
	// slot. Defaults to 2ms.
	StealFade time.Duration
	// RepeatInterval is the held-key re-trigger period. Defaults to 55ms.
	RepeatInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.SampleRate <= 0 {
		o.SampleRate = 48000
	}
	if o.Channels <= 0 {
		o.Channels = 2
	}
	if o.Polyphony <= 0 {
		o.Polyphony = 12
	}
	if o.Volume <= 0 {
		o.Volume = 1.0
	}
	if o.StealFade <= 0 {
		o.StealFade = 2 * time.Millisecond
	}
	if o.RepeatInterval <= 0 {
		o.RepeatInterval = 55 * time.Millisecond
	}
	return o
}

// Engine ties the voice pool, mixer, repeater and router into one unit.
type Engine struct {
	opts   Options
	pool   *Pool
	mixer  *Mixer
	rep    *Repeater
	router *Router
}

// Stats is a snapshot of the engine's counters.
type Stats struct {
	Triggers     uint64
	Steals       uint64
	Finished     uint64
	Released     uint64
	Clips        uint64
	ActiveVoices int
	HeldKeys     int
}

// New builds an engine from opts. The returned engine is silent until a
// snapshot is swapped in; Close must be called to stop its goroutines.
func New(opts Options) *Engine {
	opts = opts.withDefaults()
	fade := int(opts.StealFade.Seconds() * float64(opts.SampleRate))
	pool := NewPool(opts.Polyphony, opts.Channels, fade, opts.AdaptiveGain)
	mixer := NewMixer(pool, opts.Volume)

	// The repeater callback closes over the router before the router
	// exists; the repeater only invokes it from its own goroutine after
	// NewRouter returns.
	var router *Router
	rep := NewRepeater(opts.RepeatInterval, func(key keymap.KeyID, class keymap.DeviceClass) {
		router.repeatFire(key, class)
	})
	router = NewRouter(pool, rep)

	return &Engine{
		opts:   opts,
		pool:   pool,
		mixer:  mixer,
		rep:    rep,
		router: router,
	}
}

// SampleRate reports the engine's sample rate in Hz.
func (e *Engine) SampleRate() int { return e.opts.SampleRate }

// Channels reports the engine's channel count.
func (e *Engine) Channels() int { return e.opts.Channels }

// Mixer exposes the audio-side entry point for output backends.
func (e *Engine) Mixer() *Mixer { return e.mixer }

// OnKeyDown routes one press.
func (e *Engine) OnKeyDown(ev Event) { e.router.OnKeyDown(ev) }

// OnKeyUp routes one release.
func (e *Engine) OnKeyUp(ev Event) { e.router.OnKeyUp(ev) }

// SwapSnapshot atomically replaces the binding mapping.
func (e *Engine) SwapSnapshot(s *Snapshot) { e.router.SwapSnapshot(s) }

// Snapshot returns the active binding mapping.
func (e *Engine) Snapshot() *Snapshot { return e.router.Snapshot() }

// SetVolume sets master volume, clamped to [0, 1].
func (e *Engine) SetVolume(v float32) { e.mixer.SetVolume(v) }

// Volume reports the master volume.
func (e *Engine) Volume() float32 { return e.mixer.Volume() }

// SetRepeat toggles held-key repeat.
func (e *Engine) SetRepeat(on bool) { e.router.SetRepeat(on) }

// RepeatEnabled reports the repeat toggle.
func (e *Engine) RepeatEnabled() bool { return e.router.RepeatEnabled() }

// Stats snapshots the counters. Safe to call concurrently with everything.
func (e *Engine) Stats() Stats {
	return Stats{
		Triggers:     e.pool.Triggers(),
		Steals:       e.pool.Steals(),
		Finished:     e.pool.Finished(),
		Released:     e.pool.Released(),
		Clips:        e.mixer.Clips(),
		ActiveVoices: e.pool.ActiveVoices(),
		HeldKeys:     e.router.Held(),
	}
}

// Close stops the repeater and the watchdog. The pool and mixer hold no
// goroutines and need no teardown.
func (e *Engine) Close() {
	e.router.Close()
	e.rep.Close()
}
