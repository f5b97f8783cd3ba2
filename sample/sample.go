// Package sample decodes WAV files into the engine's fixed PCM format and
// caches the decoded buffers so repeated bindings to one file share memory.
package sample

import (
	"fmt"
	"os"
	"time"

	"github.com/cwbudde/wav"
)

// Buffer holds a fully decoded sound: interleaved float32 PCM at the engine
// sample rate. Buffers are immutable after load; voices read them
// concurrently without copying.
type Buffer struct {
	Data       []float32
	SampleRate int
	Channels   int
}

// Frames returns the number of sample frames (samples per channel).
func (b *Buffer) Frames() int {
	if b.Channels == 0 {
		return 0
	}
	return len(b.Data) / b.Channels
}

// Duration returns the playback length at the buffer's sample rate.
func (b *Buffer) Duration() time.Duration {
	if b.SampleRate == 0 {
		return 0
	}
	return time.Duration(float64(b.Frames()) / float64(b.SampleRate) * float64(time.Second))
}

// Slice returns a view covering durMs milliseconds starting at startMs,
// clamped to the available data. The view shares the underlying samples.
func (b *Buffer) Slice(startMs, durMs int) *Buffer {
	frames := b.Frames()
	start := b.SampleRate * startMs / 1000
	if start < 0 {
		start = 0
	}
	if start > frames {
		start = frames
	}
	dur := b.SampleRate * durMs / 1000
	if dur < 0 {
		dur = 0
	}
	end := start + dur
	if end > frames {
		end = frames
	}
	return &Buffer{
		Data:       b.Data[start*b.Channels : end*b.Channels],
		SampleRate: b.SampleRate,
		Channels:   b.Channels,
	}
}

// FormatError reports a file the engine cannot play: not a decodable WAV, or
// a sample rate different from the engine rate. The mixer performs no runtime
// resampling, so rate mismatches are rejected at load time.
type FormatError struct {
	Path   string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("unsupported sample %q: %s", e.Path, e.Reason)
}

func decodeWAV(path string, rate, channels int) (*Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sample: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat sample: %w", err)
	}
	if info.Size() == 0 {
		// Empty files are deliberate silent bindings, not corruption.
		return &Buffer{SampleRate: rate, Channels: channels}, nil
	}

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, &FormatError{Path: path, Reason: "not a valid wav file"}
	}
	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, &FormatError{Path: path, Reason: err.Error()}
	}
	if pcm == nil || pcm.Format == nil || pcm.Format.NumChannels < 1 {
		return nil, &FormatError{Path: path, Reason: "no pcm data"}
	}
	if pcm.Format.SampleRate != rate {
		return nil, &FormatError{
			Path:   path,
			Reason: fmt.Sprintf("sample rate %d, engine runs at %d", pcm.Format.SampleRate, rate),
		}
	}
	return &Buffer{
		Data:       convertChannels(pcm.Data, pcm.Format.NumChannels, channels),
		SampleRate: rate,
		Channels:   channels,
	}, nil
}

// convertChannels folds or duplicates channels to the engine layout. Like
// bit-depth conversion this is a decode step; it never touches the time axis.
func convertChannels(in []float32, from, to int) []float32 {
	if from == to {
		return in
	}
	frames := len(in) / from
	out := make([]float32, frames*to)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < from; c++ {
			sum += in[i*from+c]
		}
		mono := sum / float32(from)
		for c := 0; c < to; c++ {
			out[i*to+c] = mono
		}
	}
	return out
}
