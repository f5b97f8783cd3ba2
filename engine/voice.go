package engine

import (
	"sync/atomic"

	"github.com/cwbudde/thock/internal/keymap"
	"github.com/cwbudde/thock/sample"
)

// Voice slot states, packed into the low bits of the slot word. The epoch
// occupies the bits above and advances by one on every claim, so the mixer
// can tell a restarted slot apart from the activation it was reading.
const (
	slotFree uint64 = iota
	slotClaimed
	slotActive

	slotStateMask uint64 = 3
	slotEpochInc  uint64 = 4
)

func slotState(w uint64) uint64 { return w & slotStateMask }

// bankIndex selects the payload bank for a slot word: epoch parity alternates
// per activation, so the trigger side always writes the bank the mixer is
// not reading.
func bankIndex(w uint64) int { return int(w / slotEpochInc & 1) }

// activation carries everything the mixer needs to play one trigger.
type activation struct {
	buf     *sample.Buffer
	soundID string
	key     keymap.KeyID
	gain    float32
	ramp    int32 // fade-in frames after a steal; 0 on a fresh slot
}

// Voice is one playback slot. The word is the only field both concurrency
// domains write. The trigger side fills a payload bank while the slot is
// claimed and publishes it by storing the active word; the mixer side owns
// the cursor fields below and never takes a lock.
type Voice struct {
	word  atomic.Uint64
	banks [2]activation

	// mixer-owned
	pos      int
	rampLeft int
	seen     uint64
	cur      activation

	// trigger-owned, guarded by the pool mutex
	seq uint64
}
