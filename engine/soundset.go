package engine

import (
	"math/rand"
	"sync/atomic"

	"github.com/cwbudde/thock/internal/keymap"
	"github.com/cwbudde/thock/sample"
)

// SoundSet is a group of interchangeable renditions of one sound. Picks
// avoid returning the same rendition twice in a row, so fast typing does not
// machine-gun a single sample.
type SoundSet struct {
	ID       string
	variants []*sample.Buffer
	last     atomic.Int32
}

// NewSoundSet builds a set from rendered variants, dropping nil entries.
// Zero-length buffers are kept: a silent binding is a valid binding.
func NewSoundSet(id string, variants []*sample.Buffer) *SoundSet {
	kept := make([]*sample.Buffer, 0, len(variants))
	for _, v := range variants {
		if v != nil {
			kept = append(kept, v)
		}
	}
	s := &SoundSet{ID: id, variants: kept}
	s.last.Store(-1)
	return s
}

// Len reports the number of renditions.
func (s *SoundSet) Len() int { return len(s.variants) }

// Variant returns rendition i, or nil when out of range. Buffers are
// immutable; callers may read but never modify them.
func (s *SoundSet) Variant(i int) *sample.Buffer {
	if i < 0 || i >= len(s.variants) {
		return nil
	}
	return s.variants[i]
}

// Pick returns a rendition, never the previous pick when more than one is
// available. Safe for concurrent use by input feeders and the repeater.
func (s *SoundSet) Pick() *sample.Buffer {
	n := len(s.variants)
	if n == 0 {
		return nil
	}
	if n == 1 {
		return s.variants[0]
	}
	last := s.last.Load()
	var idx int32
	if last < 0 || last >= int32(n) {
		idx = int32(rand.Intn(n))
	} else {
		// Draw uniformly from the renditions that are not the last pick.
		idx = int32(rand.Intn(n - 1))
		if idx >= last {
			idx++
		}
	}
	s.last.Store(idx)
	return s.variants[idx]
}

// Snapshot is an immutable key→sound mapping plus the class fallbacks. The
// router swaps whole snapshots atomically and never mutates one in place, so
// readers can never observe a half-updated mapping.
type Snapshot struct {
	Keys map[keymap.KeyID]*SoundSet

	KeyboardDefault *SoundSet
	HeavyDefault    *SoundSet
	MouseDefault    *SoundSet
}

// Resolve finds the sound for a key: the key's own binding first, then the
// class default, with the heavy fallback for unbound heavy keyboard keys.
// Nil means nothing is bound.
func (s *Snapshot) Resolve(key keymap.KeyID, class keymap.DeviceClass) *SoundSet {
	if s == nil {
		return nil
	}
	if set, ok := s.Keys[key]; ok {
		return set
	}
	if class == keymap.Mouse {
		return s.MouseDefault
	}
	if key.IsHeavy() && s.HeavyDefault != nil {
		return s.HeavyDefault
	}
	return s.KeyboardDefault
}
