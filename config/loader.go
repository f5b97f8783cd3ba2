package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r on top of [Default] and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Audio.SampleRate < 8000 || cfg.Audio.SampleRate > 192000 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d is out of range [8000, 192000]", cfg.Audio.SampleRate))
	}
	if cfg.Audio.Channels != 1 && cfg.Audio.Channels != 2 {
		errs = append(errs, fmt.Errorf("audio.channels %d is invalid; valid values: 1, 2", cfg.Audio.Channels))
	}
	if cfg.Audio.BufferMs < 1 || cfg.Audio.BufferMs > 100 {
		errs = append(errs, fmt.Errorf("audio.buffer_ms %d is out of range [1, 100]", cfg.Audio.BufferMs))
	}
	if cfg.Audio.Polyphony < 1 || cfg.Audio.Polyphony > 64 {
		errs = append(errs, fmt.Errorf("audio.polyphony %d is out of range [1, 64]", cfg.Audio.Polyphony))
	}
	if !cfg.Audio.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("audio.backend %q is invalid; valid values: auto, oto, portaudio, none", cfg.Audio.Backend))
	}

	if cfg.Engine.Volume < 0 || cfg.Engine.Volume > 1 {
		errs = append(errs, fmt.Errorf("engine.volume %.2f is out of range [0, 1]", cfg.Engine.Volume))
	}
	if cfg.Engine.StealFadeMs < 0 || cfg.Engine.StealFadeMs > 50 {
		errs = append(errs, fmt.Errorf("engine.steal_fade_ms %d is out of range [0, 50]", cfg.Engine.StealFadeMs))
	}

	if cfg.Repeat.IntervalMs < 10 || cfg.Repeat.IntervalMs > 2000 {
		errs = append(errs, fmt.Errorf("repeat.interval_ms %d is out of range [10, 2000]", cfg.Repeat.IntervalMs))
	}

	if cfg.Sounds.PackDir == "" {
		errs = append(errs, fmt.Errorf("sounds.pack_dir is required"))
	}
	if cfg.Sounds.PoolSize < 1 || cfg.Sounds.PoolSize > 32 {
		errs = append(errs, fmt.Errorf("sounds.pool_size %d is out of range [1, 32]", cfg.Sounds.PoolSize))
	}

	if !cfg.Log.Level.IsValid() {
		errs = append(errs, fmt.Errorf("log.level %q is invalid; valid values: debug, info, warn, error", cfg.Log.Level))
	}

	return errors.Join(errs...)
}
