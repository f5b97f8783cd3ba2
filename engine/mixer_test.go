package engine

import (
	"testing"

	"github.com/cwbudde/thock/sample"
)

func TestMixerVolumeZeroSilences(t *testing.T) {
	pool := NewPool(2, 1, 0, false)
	pool.Trigger("s", constBuf(100, 1, 0.8), "a")
	m := NewMixer(pool, 1.0)

	block := make([]float32, 4)
	m.MixInto(block)
	if block[0] == 0 {
		t.Fatal("expected audible output before muting")
	}

	m.SetVolume(0)
	m.MixInto(block)
	for i := 1; i < len(block); i++ {
		if block[i] >= block[i-1] && block[i] != 0 {
			t.Fatalf("expected the transition block to ramp down, got %v", block)
		}
	}
	if block[len(block)-1] != 0 {
		t.Fatalf("expected the ramp to reach zero by block end, got %f", block[len(block)-1])
	}

	m.MixInto(block)
	for i, s := range block {
		if s != 0 {
			t.Fatalf("expected silence at volume 0, got %f at %d", s, i)
		}
	}
}

func TestMixerConstructedAtZeroIsImmediatelySilent(t *testing.T) {
	pool := NewPool(2, 1, 0, false)
	pool.Trigger("s", constBuf(100, 1, 0.8), "a")
	m := NewMixer(pool, 0)

	block := make([]float32, 8)
	m.MixInto(block)
	for i, s := range block {
		if s != 0 {
			t.Fatalf("expected silence from the first block, got %f at %d", s, i)
		}
	}
}

func TestMixerUnityVolumePassesThrough(t *testing.T) {
	pool := NewPool(2, 1, 0, false)
	data := []float32{0.1, -0.5, 0.9, -0.9, 0.25, 0.0, 0.75, -0.125}
	pool.Trigger("s", &sample.Buffer{Data: data, SampleRate: 48000, Channels: 1}, "a")
	m := NewMixer(pool, 1.0)

	block := make([]float32, len(data))
	m.MixInto(block)
	for i := range data {
		if block[i] != data[i] {
			t.Fatalf("sample %d: expected bit-exact passthrough of %f, got %f", i, data[i], block[i])
		}
	}
}

func TestMixerSetVolumeClamps(t *testing.T) {
	m := NewMixer(NewPool(1, 1, 0, false), 1.0)
	m.SetVolume(3)
	if got := m.Volume(); got != 1 {
		t.Errorf("expected volume clamped to 1, got %f", got)
	}
	m.SetVolume(-2)
	if got := m.Volume(); got != 0 {
		t.Errorf("expected volume clamped to 0, got %f", got)
	}
}

func TestMixerHalfVolumeScales(t *testing.T) {
	pool := NewPool(2, 1, 0, false)
	pool.Trigger("s", constBuf(100, 1, 0.8), "a")
	m := NewMixer(pool, 0.5)

	block := make([]float32, 4)
	m.MixInto(block)
	want := float32(0.8) * 0.5
	for i, s := range block {
		if s != want {
			t.Fatalf("sample %d: expected %f at half volume, got %f", i, want, s)
		}
	}
}

func TestMixerHardClips(t *testing.T) {
	pool := NewPool(4, 1, 0, false)
	pool.Trigger("a", constBuf(100, 1, 0.8), "a")
	pool.Trigger("b", constBuf(100, 1, 0.8), "b")
	m := NewMixer(pool, 1.0)

	block := make([]float32, 4)
	m.MixInto(block)
	for i, s := range block {
		if s != 1.0 {
			t.Fatalf("sample %d: expected hard clip to 1.0, got %f", i, s)
		}
	}
	if got := m.Clips(); got != 4 {
		t.Errorf("expected 4 clipped samples, got %d", got)
	}

	pool2 := NewPool(4, 1, 0, false)
	pool2.Trigger("a", constBuf(100, 1, -0.8), "a")
	pool2.Trigger("b", constBuf(100, 1, -0.8), "b")
	m2 := NewMixer(pool2, 1.0)
	m2.MixInto(block)
	for i, s := range block {
		if s != -1.0 {
			t.Fatalf("sample %d: expected hard clip to -1.0, got %f", i, s)
		}
	}
}
