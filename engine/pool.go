package engine

import (
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"github.com/cwbudde/thock/internal/keymap"
	"github.com/cwbudde/thock/sample"
)

// minTriggerGain floors the adaptive polyphony gain so bursts stay audible.
const minTriggerGain = 0.42

// Pool is the fixed set of playback voices. Trigger and Release run on the
// input side behind a mutex shared only by input callers; MixInto runs on
// the audio callback and never locks, blocks, or allocates.
type Pool struct {
	voices   []Voice
	channels int

	mu      sync.Mutex // serializes trigger-side callers only
	nextSeq uint64

	stealRamp    int32 // frames
	adaptiveGain bool

	triggers atomic.Uint64
	steals   atomic.Uint64
	finished atomic.Uint64
	released atomic.Uint64
}

// NewPool allocates n voices mixing into interleaved buffers of the given
// channel count. stealFadeFrames is the fade-in masking the cursor jump when
// a slot restarts mid-playback.
func NewPool(n, channels, stealFadeFrames int, adaptiveGain bool) *Pool {
	if n < 1 {
		n = 1
	}
	if channels < 1 {
		channels = 1
	}
	if stealFadeFrames < 0 {
		stealFadeFrames = 0
	}
	return &Pool{
		voices:       make([]Voice, n),
		channels:     channels,
		stealRamp:    int32(stealFadeFrames),
		adaptiveGain: adaptiveGain,
	}
}

// Cap returns the polyphony limit.
func (p *Pool) Cap() int { return len(p.voices) }

// Channels returns the interleaved channel count MixInto expects.
func (p *Pool) Channels() int { return p.channels }

// Trigger starts buf on a free slot, stealing the slot with the earliest
// trigger sequence when the pool is full. The new trigger is never dropped
// and the call never waits on the audio callback. Nil and zero-length
// buffers are accepted and finish immediately without taking a slot.
func (p *Pool) Trigger(soundID string, buf *sample.Buffer, key keymap.KeyID) {
	if buf == nil || buf.Frames() == 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	gain := float32(1.0)
	if p.adaptiveGain {
		// Count before claiming: a lone trigger stays at unity gain.
		g := 1.0 / float32(math.Sqrt(float64(p.activeLocked()+1)))
		if g < minTriggerGain {
			g = minTriggerGain
		}
		gain = g
	}

	for {
		for i := range p.voices {
			v := &p.voices[i]
			w := v.word.Load()
			if slotState(w) != slotFree {
				continue
			}
			if p.claim(v, w, soundID, buf, key, gain, 0) {
				p.triggers.Add(1)
				return
			}
		}

		var victim *Voice
		var victimWord uint64
		for i := range p.voices {
			v := &p.voices[i]
			w := v.word.Load()
			if slotState(w) != slotActive {
				continue
			}
			if victim == nil || v.seq < victim.seq {
				victim = v
				victimWord = w
			}
		}
		if victim == nil {
			// Everything retired between the two scans; rescan for a
			// free slot.
			continue
		}
		if p.claim(victim, victimWord, soundID, buf, key, gain, p.stealRamp) {
			p.triggers.Add(1)
			p.steals.Add(1)
			slog.Debug("voice stolen", "sound", soundID, "key", key)
			return
		}
		// The victim finished on its own in the meantime; try again.
	}
}

// claim moves a slot through claimed to active, writing the payload into the
// bank named by the new epoch's parity. Fails when the slot word moved under
// us, which only the mixer retiring a voice can cause.
func (p *Pool) claim(v *Voice, w uint64, soundID string, buf *sample.Buffer, key keymap.KeyID, gain float32, ramp int32) bool {
	claimed := ((w &^ slotStateMask) + slotEpochInc) | slotClaimed
	if !v.word.CompareAndSwap(w, claimed) {
		return false
	}
	bank := &v.banks[bankIndex(claimed)]
	bank.buf = buf
	bank.soundID = soundID
	bank.key = key
	bank.gain = gain
	bank.ramp = ramp
	p.nextSeq++
	v.seq = p.nextSeq
	v.word.Store((claimed &^ slotStateMask) | slotActive)
	return true
}

func (p *Pool) activeLocked() int {
	n := 0
	for i := range p.voices {
		if slotState(p.voices[i].word.Load()) == slotActive {
			n++
		}
	}
	return n
}

// Release records a key-up. Playback always runs to its natural end and
// repeat cancellation lives at the router, so this is bookkeeping only.
func (p *Pool) Release(key keymap.KeyID) {
	p.released.Add(1)
}

// MixInto renders the next len(dst)/channels frames: zero the block, advance
// every active voice, sum contributions, retire voices that reach the end of
// their buffer. Wait-free: one fixed pass over the slots, no locks, no
// allocation, nothing that can panic.
func (p *Pool) MixInto(dst []float32) {
	for i := range dst {
		dst[i] = 0
	}
	frames := len(dst) / p.channels
	if frames == 0 {
		return
	}

	for i := range p.voices {
		v := &p.voices[i]
		w := v.word.Load()
		if slotState(w) != slotActive {
			continue
		}
		if v.seen != w {
			// First block of a new activation for this slot.
			v.seen = w
			v.cur = v.banks[bankIndex(w)]
			v.pos = 0
			v.rampLeft = int(v.cur.ramp)
		}

		buf := v.cur.buf
		n := buf.Frames() - v.pos
		if n > frames {
			n = frames
		}
		base := v.pos * p.channels
		gain := v.cur.gain

		if v.rampLeft == 0 {
			for s := 0; s < n*p.channels; s++ {
				dst[s] += buf.Data[base+s] * gain
			}
		} else {
			total := float32(v.cur.ramp) + 1
			for f := 0; f < n; f++ {
				g := gain
				if v.rampLeft > 0 {
					g *= 1 - float32(v.rampLeft)/total
					v.rampLeft--
				}
				for c := 0; c < p.channels; c++ {
					dst[f*p.channels+c] += buf.Data[base+f*p.channels+c] * g
				}
			}
		}

		v.pos += n
		if v.pos >= buf.Frames() {
			// Retire; losing the race means the slot was just stolen
			// and the new activation plays next block.
			if v.word.CompareAndSwap(w, (w&^slotStateMask)|slotFree) {
				p.finished.Add(1)
			}
		}
	}
}

// ActiveVoices reports how many slots are currently playing.
func (p *Pool) ActiveVoices() int {
	n := 0
	for i := range p.voices {
		if slotState(p.voices[i].word.Load()) == slotActive {
			n++
		}
	}
	return n
}

// Triggers returns the number of accepted triggers.
func (p *Pool) Triggers() uint64 { return p.triggers.Load() }

// Steals returns the number of triggers that had to evict a running voice.
func (p *Pool) Steals() uint64 { return p.steals.Load() }

// Finished returns the number of voices that played to their natural end.
func (p *Pool) Finished() uint64 { return p.finished.Load() }

// Released returns the number of key-up releases recorded.
func (p *Pool) Released() uint64 { return p.released.Load() }
