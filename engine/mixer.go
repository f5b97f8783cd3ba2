package engine

import (
	"math"
	"sync/atomic"
)

// Mixer applies the process-wide volume on top of the pool mix and hard-clips
// into the device range. It is the source the audio backend pulls from, once
// per output block.
type Mixer struct {
	pool *Pool

	volumeBits atomic.Uint32

	// prev is the volume at the end of the previous block, owned by the
	// audio side. A changed setting ramps linearly across one block
	// instead of stepping, which would click.
	prev float32

	clips atomic.Uint64
}

// NewMixer wraps pool at the given initial volume.
func NewMixer(pool *Pool, volume float32) *Mixer {
	m := &Mixer{pool: pool}
	m.SetVolume(volume)
	m.prev = m.Volume()
	return m
}

// SetVolume clamps v to [0,1] and publishes it. The next mixed block ramps
// to the new value; out-of-range input is clamped, not rejected.
func (m *Mixer) SetVolume(v float32) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	m.volumeBits.Store(math.Float32bits(v))
}

// Volume returns the current volume setting.
func (m *Mixer) Volume() float32 {
	return math.Float32frombits(m.volumeBits.Load())
}

// MixInto fills dst with the next block. Wait-free, and always produces a
// full valid block; unity volume passes pool samples through untouched.
func (m *Mixer) MixInto(dst []float32) {
	m.pool.MixInto(dst)

	target := m.Volume()
	switch {
	case m.prev != target:
		frames := len(dst) / m.pool.channels
		if frames > 0 {
			step := (target - m.prev) / float32(frames)
			g := m.prev
			for f := 0; f < frames; f++ {
				g += step
				for c := 0; c < m.pool.channels; c++ {
					dst[f*m.pool.channels+c] *= g
				}
			}
		}
		m.prev = target
	case target == 1:
		// Unity gain: no multiply.
	default:
		for i := range dst {
			dst[i] *= target
		}
	}

	for i, s := range dst {
		if s > 1 {
			dst[i] = 1
			m.clips.Add(1)
		} else if s < -1 {
			dst[i] = -1
			m.clips.Add(1)
		}
	}
}

// Clips reports how many samples have been hard-clipped so far.
func (m *Mixer) Clips() uint64 { return m.clips.Load() }
