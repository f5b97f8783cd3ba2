package dsp

import (
	"math"
	"testing"

	"github.com/cwbudde/thock/sample"
)

// testClick builds a short decaying stereo burst, the rough shape of a
// recorded key strike.
func testClick(frames, rate int) *sample.Buffer {
	data := make([]float32, frames*2)
	for i := 0; i < frames; i++ {
		env := math.Exp(-6 * float64(i) / float64(frames))
		v := float32(env * math.Sin(2*math.Pi*900*float64(i)/float64(rate)))
		data[i*2] = v
		data[i*2+1] = v * 0.9
	}
	return &sample.Buffer{Data: data, SampleRate: rate, Channels: 2}
}

func TestRenderPoolDeterministic(t *testing.T) {
	src := testClick(2400, 48000)
	p := NormalPreset()

	a, err := RenderPool(src, p, 4)
	if err != nil {
		t.Fatalf("RenderPool: %v", err)
	}
	b, err := RenderPool(src, p, 4)
	if err != nil {
		t.Fatalf("RenderPool: %v", err)
	}
	if len(a) != 4 || len(b) != 4 {
		t.Fatalf("expected 4 variations, got %d and %d", len(a), len(b))
	}
	for i := range a {
		if len(a[i].Data) != len(b[i].Data) {
			t.Fatalf("variation %d length differs between runs", i)
		}
		for j := range a[i].Data {
			if a[i].Data[j] != b[i].Data[j] {
				t.Fatalf("variation %d sample %d differs between runs", i, j)
			}
		}
	}
}

func TestRenderPoolSeedChangesOutput(t *testing.T) {
	src := testClick(2400, 48000)
	p := NormalPreset()
	a, err := RenderPool(src, p, 3)
	if err != nil {
		t.Fatalf("RenderPool: %v", err)
	}
	p.Seed = 1234
	b, err := RenderPool(src, p, 3)
	if err != nil {
		t.Fatalf("RenderPool: %v", err)
	}
	for i := range a {
		if len(a[i].Data) != len(b[i].Data) {
			return
		}
		for j := range a[i].Data {
			if a[i].Data[j] != b[i].Data[j] {
				return
			}
		}
	}
	t.Fatalf("different seeds should produce different pools")
}

func TestHeavyPresetDeepensAndStretches(t *testing.T) {
	src := testClick(2400, 48000)
	out, err := RenderPool(src, HeavyPreset(), 1)
	if err != nil {
		t.Fatalf("RenderPool: %v", err)
	}
	// Center pitch factor 0.76 lengthens the hit by roughly 1/0.76.
	gotFrames := out[0].Frames()
	if gotFrames < src.Frames()*6/5 {
		t.Fatalf("heavy render should stretch: %d -> %d frames", src.Frames(), gotFrames)
	}
	if out[0].Channels != 2 || out[0].SampleRate != 48000 {
		t.Fatalf("render must keep engine format, got ch=%d rate=%d", out[0].Channels, out[0].SampleRate)
	}
}

func TestNormalPresetCenterKeepsLength(t *testing.T) {
	src := testClick(2400, 48000)
	out, err := RenderPool(src, NormalPreset(), 1)
	if err != nil {
		t.Fatalf("RenderPool: %v", err)
	}
	// The center of the normal pitch range is exactly 1.0, which skips the
	// resampler entirely.
	if out[0].Frames() != src.Frames() {
		t.Fatalf("center render should keep length: %d -> %d", src.Frames(), out[0].Frames())
	}
}

func TestRenderPoolNormalizesPeak(t *testing.T) {
	src := testClick(2400, 48000)
	p := NormalPreset()
	out, err := RenderPool(src, p, 1)
	if err != nil {
		t.Fatalf("RenderPool: %v", err)
	}
	var peak float64
	for _, s := range out[0].Data {
		if a := math.Abs(float64(s)); a > peak {
			peak = a
		}
	}
	if math.Abs(peak-p.NormalizePeak) > 1e-3 {
		t.Fatalf("expected peak %f, got %f", p.NormalizePeak, peak)
	}
}

func TestRenderPoolEmptySource(t *testing.T) {
	src := &sample.Buffer{SampleRate: 48000, Channels: 2}
	out, err := RenderPool(src, HeavyPreset(), 5)
	if err != nil {
		t.Fatalf("RenderPool: %v", err)
	}
	if len(out) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(out))
	}
	for _, v := range out {
		if v.Frames() != 0 {
			t.Fatalf("silent source must stay silent")
		}
	}
}

func TestRenderPoolRejectsInvalidParams(t *testing.T) {
	src := testClick(100, 48000)
	if _, err := RenderPool(src, Params{}, 2); err == nil {
		t.Fatalf("zero pitch range should be rejected")
	}
	p := NormalPreset()
	p.ReflectGain = Range{0.5, 0.1}
	if _, err := RenderPool(src, p, 2); err == nil {
		t.Fatalf("descending gain range should be rejected")
	}
}

func TestReflectPlacesEcho(t *testing.T) {
	plane := make([]float32, 100)
	plane[0] = 1
	out, err := reflect(plane, 10, 0.5)
	if err != nil {
		t.Fatalf("reflect: %v", err)
	}
	if len(out) != 100 {
		t.Fatalf("reflect must keep length, got %d", len(out))
	}
	if math.Abs(float64(out[0]-1)) > 1e-4 {
		t.Fatalf("direct tap wrong: %f", out[0])
	}
	if math.Abs(float64(out[10]-0.5)) > 1e-4 {
		t.Fatalf("echo tap wrong: %f", out[10])
	}
	if math.Abs(float64(out[5])) > 1e-4 {
		t.Fatalf("expected silence between taps, got %f", out[5])
	}
}

func TestDBGain(t *testing.T) {
	if g := dbGain(0); math.Abs(float64(g)-1) > 0.01 {
		t.Fatalf("0 dB should be unity, got %f", g)
	}
	if g := dbGain(6.0206); math.Abs(float64(g)-2) > 0.04 {
		t.Fatalf("+6dB should double, got %f", g)
	}
}
