// Package device opens the audio output and keeps the engine's mixer
// pulled. Backends are selected at open time; the oto backend can be
// compiled out with the headless build tag and portaudio is only compiled
// in with the portaudio tag (it needs cgo and the C library).
package device

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Source produces the next interleaved float32 block on demand. The
// engine's mixer satisfies it. MixInto runs on the backend's playback
// goroutine and must stay wait-free.
type Source interface {
	MixInto(dst []float32)
}

// ErrBackendUnavailable is returned when the requested backend was compiled
// out of this build.
var ErrBackendUnavailable = errors.New("audio backend unavailable in this build")

// Options configure an output device.
type Options struct {
	Source     Source
	SampleRate int
	Channels   int
	// Buffer is the requested device buffer; smaller means lower latency.
	Buffer time.Duration
	// Backend selects the driver: "auto", "oto", "portaudio" or "none".
	Backend string
}

// Output is an opened audio device pulling from a Source.
type Output interface {
	// Backend names the driver in use.
	Backend() string
	// Underruns counts blocks that fell back to silence because the
	// source failed mid-pull.
	Underruns() uint64
	Close() error
}

// Open opens the configured backend. "auto" tries oto first and falls back
// to portaudio; "none" returns an output that never pulls, for benchmarks
// and offline rendering.
func Open(opts Options) (Output, error) {
	if opts.Source == nil {
		return nil, errors.New("device: nil source")
	}
	if opts.SampleRate <= 0 || opts.Channels <= 0 {
		return nil, fmt.Errorf("device: invalid format %d Hz / %d ch", opts.SampleRate, opts.Channels)
	}

	switch opts.Backend {
	case "oto":
		return newOtoOutput(opts)
	case "portaudio":
		return newPortAudioOutput(opts)
	case "none":
		return newNullOutput(), nil
	case "", "auto":
		out, otoErr := newOtoOutput(opts)
		if otoErr == nil {
			return out, nil
		}
		out, paErr := newPortAudioOutput(opts)
		if paErr == nil {
			slog.Info("oto unavailable, using portaudio", "err", otoErr)
			return out, nil
		}
		return nil, errors.Join(otoErr, paErr)
	default:
		return nil, fmt.Errorf("device: unknown backend %q", opts.Backend)
	}
}

// nullOutput never pulls the source; the caller drives the mixer directly.
type nullOutput struct{}

func newNullOutput() Output { return nullOutput{} }

func (nullOutput) Backend() string   { return "none" }
func (nullOutput) Underruns() uint64 { return 0 }
func (nullOutput) Close() error      { return nil }
