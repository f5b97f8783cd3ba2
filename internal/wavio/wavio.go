// Package wavio reads and writes WAV files for offline tooling: the render
// command and the pack importer. The realtime path never resamples; rate
// conversion lives here so imported packs can be rewritten at the engine rate
// before they are ever loaded.
package wavio

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	dspresample "github.com/cwbudde/algo-dsp/dsp/resample"
	"github.com/cwbudde/wav"
	"github.com/go-audio/audio"
)

// ReadWAV decodes a WAV file without any format enforcement and returns
// interleaved float32 samples plus the file's own rate and channel count.
func ReadWAV(path string) ([]float32, int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, 0, err
	}
	defer f.Close()
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, 0, 0, fmt.Errorf("invalid wav file: %s", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, 0, err
	}
	if buf == nil || buf.Format == nil || buf.Format.NumChannels < 1 {
		return nil, 0, 0, fmt.Errorf("invalid wav buffer: %s", path)
	}
	return buf.Data, buf.Format.SampleRate, buf.Format.NumChannels, nil
}

// WriteWAV writes interleaved float32 samples as a 16-bit WAV file, creating
// parent directories as needed.
func WriteWAV(path string, samples []float32, sampleRate, channels int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	defer enc.Close()

	buf := &audio.Float32Buffer{
		Format: &audio.Format{
			SampleRate:  sampleRate,
			NumChannels: channels,
		},
		Data:           samples,
		SourceBitDepth: 16,
	}
	return enc.Write(buf)
}

// ResampleIfNeeded converts a mono signal between sample rates, returning the
// input unchanged when the rates already match.
func ResampleIfNeeded(in []float64, fromRate, toRate int) ([]float64, error) {
	if fromRate == toRate {
		return in, nil
	}
	r, err := dspresample.NewForRates(
		float64(fromRate),
		float64(toRate),
		dspresample.WithQuality(dspresample.QualityBest),
	)
	if err != nil {
		return nil, err
	}
	return r.Process(in), nil
}

// ResampleInterleaved converts an interleaved multi-channel signal between
// sample rates, processing each channel independently.
func ResampleInterleaved(in []float32, channels, fromRate, toRate int) ([]float32, error) {
	if fromRate == toRate || len(in) == 0 {
		return in, nil
	}
	frames := len(in) / channels
	resampled := make([][]float64, channels)
	outFrames := 0
	for c := 0; c < channels; c++ {
		mono := make([]float64, frames)
		for i := 0; i < frames; i++ {
			mono[i] = float64(in[i*channels+c])
		}
		out, err := ResampleIfNeeded(mono, fromRate, toRate)
		if err != nil {
			return nil, err
		}
		resampled[c] = out
		if c == 0 || len(out) < outFrames {
			outFrames = len(out)
		}
	}
	out := make([]float32, outFrames*channels)
	for c := 0; c < channels; c++ {
		for i := 0; i < outFrames; i++ {
			out[i*channels+c] = float32(resampled[c][i])
		}
	}
	return out, nil
}

// RMS returns the root-mean-square level of the samples.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}
