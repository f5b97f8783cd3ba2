// Package config provides the configuration schema, loader, and file watcher
// for the thock daemon.
package config

import (
	"log/slog"
	"time"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Level converts l to the slog level it names. Unknown values map to info.
func (l LogLevel) Level() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Backend selects the audio output driver.
type Backend string

const (
	// BackendAuto picks the first backend that opens successfully.
	BackendAuto Backend = "auto"

	// BackendOto uses the oto library (ALSA, CoreAudio, WASAPI).
	BackendOto Backend = "oto"

	// BackendPortAudio uses the PortAudio C library via cgo.
	BackendPortAudio Backend = "portaudio"

	// BackendNone runs the engine without an audio device, for benchmarks
	// and headless rendering.
	BackendNone Backend = "none"
)

// IsValid reports whether b is a recognised backend.
func (b Backend) IsValid() bool {
	switch b {
	case BackendAuto, BackendOto, BackendPortAudio, BackendNone:
		return true
	}
	return false
}

// Config is the root configuration structure for thock.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Audio   AudioConfig   `yaml:"audio"`
	Engine  EngineConfig  `yaml:"engine"`
	Repeat  RepeatConfig  `yaml:"repeat"`
	Sounds  SoundsConfig  `yaml:"sounds"`
	Metrics MetricsConfig `yaml:"metrics"`
	Log     LogConfig     `yaml:"log"`
}

// AudioConfig holds the output device and mix format settings. These are
// fixed for the lifetime of the process.
type AudioConfig struct {
	// SampleRate is the engine and device rate in Hz. Every sample in the
	// active pack must match it.
	SampleRate int `yaml:"sample_rate"`

	// Channels is the output channel count: 1 or 2.
	Channels int `yaml:"channels"`

	// BufferMs is the requested device buffer in milliseconds. Smaller is
	// lower latency but riskier on loaded machines.
	BufferMs int `yaml:"buffer_ms"`

	// Polyphony is the fixed number of simultaneous voices.
	Polyphony int `yaml:"polyphony"`

	// Backend selects the output driver.
	Backend Backend `yaml:"backend"`
}

// EngineConfig holds mixing behaviour settings.
type EngineConfig struct {
	// Volume is the master volume in [0, 1]. Hot-reloadable.
	Volume float64 `yaml:"volume"`

	// AdaptiveGain attenuates dense typing bursts to keep headroom.
	AdaptiveGain bool `yaml:"adaptive_gain"`

	// StealFadeMs is the fade-in, in milliseconds, applied when a voice
	// slot is stolen mid-playback.
	StealFadeMs int `yaml:"steal_fade_ms"`
}

// RepeatConfig holds held-key repeat settings.
type RepeatConfig struct {
	// Enabled turns held-key re-triggering on. Hot-reloadable.
	Enabled bool `yaml:"enabled"`

	// IntervalMs is the re-trigger period in milliseconds.
	IntervalMs int `yaml:"interval_ms"`
}

// SoundsConfig points at the sample sources.
type SoundsConfig struct {
	// PackDir is the sound pack directory. Hot-reloadable.
	PackDir string `yaml:"pack_dir"`

	// PoolSize is the number of renditions rendered per class default.
	PoolSize int `yaml:"pool_size"`

	// BindingsFile is the per-key custom binding table. Empty disables
	// custom bindings.
	BindingsFile string `yaml:"bindings_file"`
}

// MetricsConfig controls the metrics endpoint.
type MetricsConfig struct {
	// Addr is the listen address for the Prometheus scrape endpoint
	// (e.g. ":9090"). Empty disables metrics entirely.
	Addr string `yaml:"addr"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level controls verbosity. Hot-reloadable.
	Level LogLevel `yaml:"level"`
}

// Default returns the configuration used when a field is absent from the
// file. Load decodes on top of it, so a partial file inherits these values.
func Default() *Config {
	return &Config{
		Audio: AudioConfig{
			SampleRate: 48000,
			Channels:   2,
			BufferMs:   10,
			Polyphony:  12,
			Backend:    BackendAuto,
		},
		Engine: EngineConfig{
			Volume:       1.0,
			AdaptiveGain: true,
			StealFadeMs:  2,
		},
		Repeat: RepeatConfig{
			Enabled:    false,
			IntervalMs: 55,
		},
		Sounds: SoundsConfig{
			PoolSize: 4,
		},
		Log: LogConfig{
			Level: LogInfo,
		},
	}
}

// BufferDuration returns the device buffer as a duration.
func (a AudioConfig) BufferDuration() time.Duration {
	return time.Duration(a.BufferMs) * time.Millisecond
}

// StealFade returns the steal fade as a duration.
func (e EngineConfig) StealFade() time.Duration {
	return time.Duration(e.StealFadeMs) * time.Millisecond
}

// Interval returns the repeat period as a duration.
func (r RepeatConfig) Interval() time.Duration {
	return time.Duration(r.IntervalMs) * time.Millisecond
}
