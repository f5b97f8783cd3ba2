package engine

import (
	"fmt"
	"testing"
	"time"

	"github.com/cwbudde/thock/internal/keymap"
	"github.com/cwbudde/thock/sample"
)

// newPlainRouter builds a router without repeat whose watchdog never fires
// during the test.
func newPlainRouter(t *testing.T, pool *Pool) *Router {
	t.Helper()
	r := newRouterWithTiming(pool, nil, time.Hour, time.Hour)
	t.Cleanup(r.Close)
	return r
}

// newRepeatRouter wires a router to a live repeater the way the engine does.
func newRepeatRouter(t *testing.T, pool *Pool, interval, stuck, tick time.Duration) *Router {
	t.Helper()
	var r *Router
	rep := NewRepeater(interval, func(k keymap.KeyID, c keymap.DeviceClass) {
		r.repeatFire(k, c)
	})
	r = newRouterWithTiming(pool, rep, stuck, tick)
	t.Cleanup(func() {
		r.Close()
		rep.Close()
	})
	return r
}

func oneFrameSet(id string, amp float32) *SoundSet {
	return NewSoundSet(id, []*sample.Buffer{constBuf(1, 1, amp)})
}

func TestRouterTriggersBoundSound(t *testing.T) {
	pool := NewPool(4, 1, 0, false)
	r := newPlainRouter(t, pool)
	r.SwapSnapshot(&Snapshot{
		Keys: map[keymap.KeyID]*SoundSet{"a": oneFrameSet("a", 0.5)},
	})

	r.OnKeyDown(Event{Key: "a", Class: keymap.Keyboard})
	if got := pool.Triggers(); got != 1 {
		t.Fatalf("expected 1 trigger, got %d", got)
	}
	block := make([]float32, 1)
	pool.MixInto(block)
	if block[0] != 0.5 {
		t.Fatalf("expected the bound sound at 0.5, got %f", block[0])
	}
}

func TestRouterFallsBackByClass(t *testing.T) {
	pool := NewPool(4, 1, 0, false)
	r := newPlainRouter(t, pool)
	r.SwapSnapshot(&Snapshot{
		KeyboardDefault: oneFrameSet("kb", 0.1),
		HeavyDefault:    oneFrameSet("heavy", 0.2),
		MouseDefault:    oneFrameSet("mouse", 0.3),
	})

	block := make([]float32, 1)
	cases := []struct {
		ev   Event
		want float32
	}{
		{Event{Key: "q", Class: keymap.Keyboard}, 0.1},
		{Event{Key: "enter", Class: keymap.Keyboard}, 0.2},
		{Event{Key: "mouse_left", Class: keymap.Mouse}, 0.3},
	}
	for _, c := range cases {
		r.OnKeyDown(c.ev)
		pool.MixInto(block)
		if block[0] != c.want {
			t.Errorf("key %q: expected amplitude %f, got %f", c.ev.Key, c.want, block[0])
		}
	}
}

func TestRouterUnboundKeyIsSilent(t *testing.T) {
	pool := NewPool(4, 1, 0, false)
	r := newPlainRouter(t, pool)

	// No snapshot swapped in at all.
	r.OnKeyDown(Event{Key: "a", Class: keymap.Keyboard})
	if got := pool.Triggers(); got != 0 {
		t.Fatalf("expected no trigger without a snapshot, got %d", got)
	}
	r.OnKeyUp(Event{Key: "a", Class: keymap.Keyboard})

	r.SwapSnapshot(&Snapshot{})
	r.OnKeyDown(Event{Key: "a", Class: keymap.Keyboard})
	if got := pool.Triggers(); got != 0 {
		t.Fatalf("expected no trigger from an empty snapshot, got %d", got)
	}
}

func TestRouterIgnoresOSRepeat(t *testing.T) {
	pool := NewPool(4, 1, 0, false)
	r := newPlainRouter(t, pool)
	r.SwapSnapshot(&Snapshot{KeyboardDefault: oneFrameSet("kb", 0.5)})

	r.OnKeyDown(Event{Key: "a", Class: keymap.Keyboard, Repeat: true})
	if got := pool.Triggers(); got != 0 {
		t.Errorf("expected OS auto-repeat to be ignored, got %d triggers", got)
	}
	if got := r.Held(); got != 0 {
		t.Errorf("expected no held bookkeeping for auto-repeat, got %d", got)
	}
}

func TestRouterIgnoresSecondDownWhileHeld(t *testing.T) {
	pool := NewPool(4, 1, 0, false)
	r := newPlainRouter(t, pool)
	r.SwapSnapshot(&Snapshot{KeyboardDefault: oneFrameSet("kb", 0.5)})

	r.OnKeyDown(Event{Key: "a", Class: keymap.Keyboard})
	r.OnKeyDown(Event{Key: "a", Class: keymap.Keyboard})
	if got := pool.Triggers(); got != 1 {
		t.Fatalf("expected 1 trigger for a doubled down, got %d", got)
	}
	r.OnKeyUp(Event{Key: "a", Class: keymap.Keyboard})
	r.OnKeyDown(Event{Key: "a", Class: keymap.Keyboard})
	if got := pool.Triggers(); got != 2 {
		t.Fatalf("expected a fresh press after release to trigger, got %d", got)
	}
}

func TestRouterKeyUpLetsPlaybackFinish(t *testing.T) {
	pool := NewPool(4, 1, 0, false)
	r := newPlainRouter(t, pool)
	r.SwapSnapshot(&Snapshot{
		Keys: map[keymap.KeyID]*SoundSet{
			"a": NewSoundSet("a", []*sample.Buffer{constBuf(10, 1, 0.5)}),
		},
	})

	r.OnKeyDown(Event{Key: "a", Class: keymap.Keyboard})
	block := make([]float32, 4)
	nonzero := 0
	pool.MixInto(block)
	for _, s := range block {
		if s != 0 {
			nonzero++
		}
	}

	r.OnKeyUp(Event{Key: "a", Class: keymap.Keyboard})
	if got := pool.Released(); got != 1 {
		t.Errorf("expected 1 release recorded, got %d", got)
	}
	for i := 0; i < 3; i++ {
		pool.MixInto(block)
		for _, s := range block {
			if s != 0 {
				nonzero++
			}
		}
	}
	if nonzero != 10 {
		t.Fatalf("expected the full 10 frames despite the early key-up, got %d", nonzero)
	}
}

func TestRouterRepeatRefiresWhileHeld(t *testing.T) {
	pool := NewPool(4, 1, 0, false)
	r := newRepeatRouter(t, pool, 10*time.Millisecond, time.Hour, time.Hour)
	r.SwapSnapshot(&Snapshot{KeyboardDefault: oneFrameSet("kb", 0.5)})
	r.SetRepeat(true)

	r.OnKeyDown(Event{Key: "a", Class: keymap.Keyboard})
	time.Sleep(60 * time.Millisecond)
	if got := pool.Triggers(); got < 3 {
		t.Fatalf("expected the press plus repeats within 60ms, got %d triggers", got)
	}

	r.OnKeyUp(Event{Key: "a", Class: keymap.Keyboard})
	time.Sleep(20 * time.Millisecond)
	base := pool.Triggers()
	time.Sleep(40 * time.Millisecond)
	if got := pool.Triggers(); got > base {
		t.Fatalf("expected repeats to stop after key-up, got %d more", got-base)
	}
}

func TestRouterRepeatOffByDefault(t *testing.T) {
	pool := NewPool(4, 1, 0, false)
	r := newRepeatRouter(t, pool, 10*time.Millisecond, time.Hour, time.Hour)
	r.SwapSnapshot(&Snapshot{KeyboardDefault: oneFrameSet("kb", 0.5)})

	r.OnKeyDown(Event{Key: "a", Class: keymap.Keyboard})
	time.Sleep(50 * time.Millisecond)
	if got := pool.Triggers(); got != 1 {
		t.Fatalf("expected a single trigger with repeat off, got %d", got)
	}
}

func TestRouterSetRepeatOffCancelsArmedKeys(t *testing.T) {
	pool := NewPool(4, 1, 0, false)
	r := newRepeatRouter(t, pool, time.Second, time.Hour, time.Hour)
	r.SwapSnapshot(&Snapshot{KeyboardDefault: oneFrameSet("kb", 0.5)})
	r.SetRepeat(true)

	r.OnKeyDown(Event{Key: "a", Class: keymap.Keyboard})
	if got := r.rep.Armed(); got != 1 {
		t.Fatalf("expected 1 armed key, got %d", got)
	}
	r.SetRepeat(false)
	if got := r.rep.Armed(); got != 0 {
		t.Fatalf("expected repeat-off to disarm everything, got %d", got)
	}
	if got := r.Held(); got != 1 {
		t.Fatalf("expected the key to stay held, got %d", got)
	}
}

func TestRouterRepeatResolvesCurrentSnapshot(t *testing.T) {
	pool := NewPool(4, 1, 0, false)
	r := newRepeatRouter(t, pool, 10*time.Millisecond, time.Hour, time.Hour)
	r.SwapSnapshot(&Snapshot{KeyboardDefault: oneFrameSet("kb", 0.5)})
	r.SetRepeat(true)

	r.OnKeyDown(Event{Key: "a", Class: keymap.Keyboard})
	time.Sleep(35 * time.Millisecond)
	if got := pool.Triggers(); got < 2 {
		t.Fatalf("expected repeats before the swap, got %d", got)
	}

	// Swapping in an empty mapping mid-hold silences further repeats
	// without disarming them.
	r.SwapSnapshot(&Snapshot{})
	time.Sleep(20 * time.Millisecond)
	base := pool.Triggers()
	time.Sleep(40 * time.Millisecond)
	if got := pool.Triggers(); got != base {
		t.Fatalf("expected repeats to resolve against the new snapshot, got %d more triggers", got-base)
	}
	if got := r.rep.Armed(); got != 1 {
		t.Fatalf("expected the key to stay armed through the swap, got %d", got)
	}
}

func TestRouterWatchdogReleasesStuckKeys(t *testing.T) {
	pool := NewPool(4, 1, 0, false)
	r := newRepeatRouter(t, pool, 10*time.Millisecond, 30*time.Millisecond, 10*time.Millisecond)
	r.SwapSnapshot(&Snapshot{KeyboardDefault: oneFrameSet("kb", 0.5)})
	r.SetRepeat(true)

	r.OnKeyDown(Event{Key: "a", Class: keymap.Keyboard})
	if got := r.Held(); got != 1 {
		t.Fatalf("expected 1 held key, got %d", got)
	}

	time.Sleep(100 * time.Millisecond)
	if got := r.Held(); got != 0 {
		t.Fatalf("expected the watchdog to force-release the stuck key, still %d held", got)
	}
	if got := r.rep.Armed(); got != 0 {
		t.Fatalf("expected the watchdog to disarm repeat, %d still armed", got)
	}
	if got := pool.Released(); got == 0 {
		t.Fatal("expected a release to be recorded for the stuck key")
	}
}

func TestRouterHeldOverflowClears(t *testing.T) {
	pool := NewPool(4, 1, 0, false)
	r := newPlainRouter(t, pool)

	for i := 0; i < maxHeld; i++ {
		r.OnKeyDown(Event{Key: keymap.KeyID(fmt.Sprintf("k%d", i)), Class: keymap.Keyboard})
	}
	if got := r.Held(); got != maxHeld {
		t.Fatalf("expected %d held keys, got %d", maxHeld, got)
	}
	r.OnKeyDown(Event{Key: "overflow", Class: keymap.Keyboard})
	if got := r.Held(); got != 1 {
		t.Fatalf("expected the table to clear on overflow, got %d held", got)
	}
}
