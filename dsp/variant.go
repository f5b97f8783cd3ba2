package dsp

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/cwbudde/algo-approx"
	dspresample "github.com/cwbudde/algo-dsp/dsp/resample"
	algofft "github.com/cwbudde/algo-fft"

	"github.com/cwbudde/thock/sample"
)

// Range is a parameter interval; the variation seed picks a point inside it.
type Range struct {
	Min, Max float64
}

func (r Range) at(u float64) float64 { return r.Min + u*(r.Max-r.Min) }

func (r Range) zero() bool { return r.Min == 0 && r.Max == 0 }

// Params controls the variation render chain. One uniform draw per variation
// positions every range, so a deep pitch always pairs with the fuller body it
// would have on a real board.
type Params struct {
	// Pitch is the resample factor range; values < 1 play deeper and longer.
	Pitch Range

	// HighpassHz cuts rumble below the key body. 0 disables the stage.
	HighpassHz float64

	// BassDB boosts lows at BassHz through a parallel lowpass add. A zero
	// range disables the stage.
	BassDB Range
	BassHz Range

	// PresenceDB lifts the click band at PresenceHz. A zero range disables
	// the stage.
	PresenceDB Range
	PresenceHz float64

	// ReflectMs mixes in a single early reflection at ReflectGain. A zero
	// range disables the stage.
	ReflectMs   Range
	ReflectGain Range

	// NormalizePeak rescales the final peak. 0 disables.
	NormalizePeak float64

	Seed int64
}

// NormalPreset returns the chain for ordinary alphanumeric keys.
func NormalPreset() Params {
	return Params{
		Pitch:         Range{0.94, 1.06},
		HighpassHz:    80,
		PresenceDB:    Range{1.5, 3.0},
		PresenceHz:    2200,
		ReflectMs:     Range{8, 18},
		ReflectGain:   Range{0.12, 0.25},
		NormalizePeak: 0.25,
		Seed:          42,
	}
}

// HeavyPreset returns the deeper chain for spacebar, enter and modifiers.
func HeavyPreset() Params {
	return Params{
		Pitch:         Range{0.70, 0.82},
		HighpassHz:    70,
		BassDB:        Range{6, 10},
		BassHz:        Range{260, 400},
		ReflectMs:     Range{10, 18},
		ReflectGain:   Range{0.15, 0.25},
		NormalizePeak: 0.28,
		Seed:          99,
	}
}

// MousePreset returns the lighter chain for mouse buttons.
func MousePreset() Params {
	return Params{
		Pitch:         Range{0.96, 1.04},
		HighpassHz:    90,
		PresenceDB:    Range{1.0, 2.0},
		PresenceHz:    2600,
		ReflectMs:     Range{6, 12},
		ReflectGain:   Range{0.10, 0.18},
		NormalizePeak: 0.22,
		Seed:          77,
	}
}

func (p *Params) Validate() error {
	if p.Pitch.Min <= 0 || p.Pitch.Max < p.Pitch.Min {
		return fmt.Errorf("pitch range must be positive and ascending")
	}
	if p.HighpassHz < 0 {
		return fmt.Errorf("highpass cutoff must be >= 0")
	}
	if p.BassDB.Min < 0 || p.BassDB.Max < p.BassDB.Min {
		return fmt.Errorf("bass boost range must be >= 0 and ascending")
	}
	if !p.BassDB.zero() && (p.BassHz.Min <= 0 || p.BassHz.Max < p.BassHz.Min) {
		return fmt.Errorf("bass cutoff range must be positive and ascending")
	}
	if p.PresenceDB.Min < 0 || p.PresenceDB.Max < p.PresenceDB.Min {
		return fmt.Errorf("presence range must be >= 0 and ascending")
	}
	if !p.PresenceDB.zero() && p.PresenceHz <= 0 {
		return fmt.Errorf("presence cutoff must be > 0")
	}
	if p.ReflectMs.Min < 0 || p.ReflectMs.Max < p.ReflectMs.Min {
		return fmt.Errorf("reflection delay range must be >= 0 and ascending")
	}
	if p.ReflectGain.Min < 0 || p.ReflectGain.Max < p.ReflectGain.Min {
		return fmt.Errorf("reflection gain range must be >= 0 and ascending")
	}
	if p.NormalizePeak < 0 {
		return fmt.Errorf("normalize peak must be >= 0")
	}
	return nil
}

// RenderPool renders n seeded variations of src through the chain. Rendering
// happens at load time only, never on the audio path. The result is
// deterministic for a given seed; n == 1 renders a single variation at the
// center of every range.
func RenderPool(src *sample.Buffer, p Params, n int) ([]*sample.Buffer, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if n < 1 {
		n = 1
	}
	out := make([]*sample.Buffer, 0, n)
	if src.Frames() == 0 {
		for i := 0; i < n; i++ {
			out = append(out, src)
		}
		return out, nil
	}
	rng := rand.New(rand.NewSource(p.Seed))
	for i := 0; i < n; i++ {
		u := 0.5
		if n > 1 {
			u = rng.Float64()
		}
		v, err := renderVariation(src, p, u)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func renderVariation(src *sample.Buffer, p Params, u float64) (*sample.Buffer, error) {
	rate := src.SampleRate
	planes := deinterleave(src.Data, src.Channels)

	factor := p.Pitch.at(u)
	if math.Abs(factor-1.0) >= 0.002 {
		for c := range planes {
			shifted, err := pitchShift(planes[c], rate, factor)
			if err != nil {
				return nil, err
			}
			planes[c] = shifted
		}
	}

	if p.HighpassHz > 0 {
		for _, plane := range planes {
			hp := NewHighpass(float32(p.HighpassHz), float32(rate), 0.7071)
			hp.ProcessBlock(plane)
		}
	}

	if !p.BassDB.zero() {
		g := dbGain(p.BassDB.at(u)) - 1.0
		cutoff := float32(p.BassHz.at(u))
		for _, plane := range planes {
			lp := NewLowpass(cutoff, float32(rate), 0.7071)
			for i, s := range plane {
				plane[i] = s + g*FlushDenormals(lp.Process(s))
			}
		}
	}

	if !p.PresenceDB.zero() {
		g := (dbGain(p.PresenceDB.at(u)) - 1.0) * 0.5
		for _, plane := range planes {
			hp := NewHighpass(float32(p.PresenceHz), float32(rate), 0.7071)
			for i, s := range plane {
				plane[i] = s + g*FlushDenormals(hp.Process(s))
			}
		}
	}

	if !p.ReflectMs.zero() {
		delay := int(float64(rate) * p.ReflectMs.at(u) / 1000.0)
		gain := float32(p.ReflectGain.at(u))
		for c := range planes {
			echoed, err := reflect(planes[c], delay, gain)
			if err != nil {
				return nil, err
			}
			planes[c] = echoed
		}
	}

	if p.NormalizePeak > 0 {
		normalizePeak(planes, float32(p.NormalizePeak))
	}

	return &sample.Buffer{
		Data:       interleave(planes),
		SampleRate: rate,
		Channels:   src.Channels,
	}, nil
}

// pitchShift resamples the plane so that playback at the original rate lands
// at factor times the original pitch. factor < 1 is deeper and longer, the
// way a heavier switch sounds.
func pitchShift(plane []float32, rate int, factor float64) ([]float32, error) {
	r, err := dspresample.NewForRates(
		float64(rate)*factor,
		float64(rate),
		dspresample.WithQuality(dspresample.QualityBest),
	)
	if err != nil {
		return nil, err
	}
	in := make([]float64, len(plane))
	for i, s := range plane {
		in[i] = float64(s)
	}
	out := r.Process(in)
	res := make([]float32, len(out))
	for i, s := range out {
		res[i] = float32(s)
	}
	return res, nil
}

// reflect convolves the plane with a two-tap impulse (direct path plus one
// delayed echo) and trims the result back to the original length.
func reflect(plane []float32, delay int, gain float32) ([]float32, error) {
	if delay < 1 || delay >= len(plane) {
		return plane, nil
	}
	ir := make([]float32, delay+1)
	ir[0] = 1
	ir[delay] = gain
	dst := make([]float32, len(plane)+len(ir)-1)
	if err := algofft.ConvolveReal(dst, plane, ir); err != nil {
		return nil, err
	}
	return dst[:len(plane)], nil
}

// dbGain converts decibels to linear gain.
func dbGain(db float64) float32 {
	const ln10over20 = 0.11512925464970229
	return approx.FastExp(float32(db) * ln10over20)
}

func normalizePeak(planes [][]float32, target float32) {
	var peak float32
	for _, plane := range planes {
		for _, s := range plane {
			if a := float32(math.Abs(float64(s))); a > peak {
				peak = a
			}
		}
	}
	if peak < 1e-7 {
		return
	}
	scale := target / peak
	for _, plane := range planes {
		for i := range plane {
			plane[i] *= scale
		}
	}
}

func deinterleave(data []float32, channels int) [][]float32 {
	frames := len(data) / channels
	planes := make([][]float32, channels)
	for c := 0; c < channels; c++ {
		plane := make([]float32, frames)
		for i := 0; i < frames; i++ {
			plane[i] = data[i*channels+c]
		}
		planes[c] = plane
	}
	return planes
}

func interleave(planes [][]float32) []float32 {
	channels := len(planes)
	frames := len(planes[0])
	out := make([]float32, frames*channels)
	for c, plane := range planes {
		for i, s := range plane {
			out[i*channels+c] = s
		}
	}
	return out
}
