package engine

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cwbudde/thock/internal/keymap"
)

// Event is one key or button transition from an input feeder.
type Event struct {
	Key    keymap.KeyID
	Class  keymap.DeviceClass
	Repeat bool // set when the OS generated this down as auto-repeat
	Time   time.Time
}

// Stuck keys are force-released after stuckAfter without a key-up: flaky
// feeders drop release events, and repeat mode must not fire forever.
const (
	defaultStuckAfter    = 2500 * time.Millisecond
	defaultWatchdogEvery = 500 * time.Millisecond
	maxHeld              = 64
)

// Router resolves input events against the active binding snapshot and
// drives the pool and the repeater. Feeders may call OnKeyDown and OnKeyUp
// from any goroutine.
type Router struct {
	pool *Pool
	rep  *Repeater

	snap     atomic.Pointer[Snapshot]
	repeatOn atomic.Bool

	mu   sync.Mutex
	held map[keymap.KeyID]time.Time

	stuckAfter    time.Duration
	watchdogEvery time.Duration

	done     chan struct{}
	stopOnce sync.Once
}

// NewRouter wires the router to pool and repeater and starts the stuck-key
// watchdog.
func NewRouter(pool *Pool, rep *Repeater) *Router {
	return newRouterWithTiming(pool, rep, defaultStuckAfter, defaultWatchdogEvery)
}

func newRouterWithTiming(pool *Pool, rep *Repeater, stuckAfter, tick time.Duration) *Router {
	r := &Router{
		pool:          pool,
		rep:           rep,
		held:          make(map[keymap.KeyID]time.Time),
		stuckAfter:    stuckAfter,
		watchdogEvery: tick,
		done:          make(chan struct{}),
	}
	go r.watchdog()
	return r
}

// SwapSnapshot atomically replaces the binding mapping. Readers see either
// the old or the new snapshot, never a mix, so swapping while audio mixes
// and keys fire is safe.
func (r *Router) SwapSnapshot(s *Snapshot) {
	r.snap.Store(s)
}

// Snapshot returns the active binding mapping.
func (r *Router) Snapshot() *Snapshot {
	return r.snap.Load()
}

// SetRepeat toggles held-key repeat globally. Turning it off cancels every
// armed key.
func (r *Router) SetRepeat(on bool) {
	r.repeatOn.Store(on)
	if !on && r.rep != nil {
		r.rep.CancelAll()
	}
}

// RepeatEnabled reports the repeat toggle.
func (r *Router) RepeatEnabled() bool { return r.repeatOn.Load() }

// OnKeyDown triggers the key's sound and, when repeat is on, arms the
// repeater. OS auto-repeat downs and already-held keys are ignored: the
// engine owns the repeat cadence, not the OS.
func (r *Router) OnKeyDown(ev Event) {
	if ev.Repeat {
		return
	}
	when := ev.Time
	if when.IsZero() {
		when = time.Now()
	}

	r.mu.Lock()
	if _, ok := r.held[ev.Key]; ok {
		r.mu.Unlock()
		return
	}
	if len(r.held) >= maxHeld {
		// A feeder lost its key-ups wholesale; start over rather than
		// leak held state.
		r.held = make(map[keymap.KeyID]time.Time)
		slog.Warn("held-key table overflow, clearing")
	}
	r.held[ev.Key] = when
	r.mu.Unlock()

	if !r.trigger(ev.Key, ev.Class) {
		return
	}
	if r.repeatOn.Load() && r.rep != nil {
		r.rep.Schedule(ev.Key, ev.Class)
	}
}

// OnKeyUp drops held bookkeeping and cancels any pending repeat. In-flight
// playback always finishes naturally.
func (r *Router) OnKeyUp(ev Event) {
	r.mu.Lock()
	_, ok := r.held[ev.Key]
	if ok {
		delete(r.held, ev.Key)
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	if r.rep != nil {
		r.rep.Cancel(ev.Key)
	}
	r.pool.Release(ev.Key)
}

// trigger resolves one press and fires it. Reports whether a sound was
// bound; an unbound key logs at debug and plays nothing.
func (r *Router) trigger(key keymap.KeyID, class keymap.DeviceClass) bool {
	set := r.snap.Load().Resolve(key, class)
	if set == nil {
		slog.Debug("no sound bound", "key", key, "class", class)
		return false
	}
	buf := set.Pick()
	if buf == nil {
		slog.Debug("sound set is empty", "sound", set.ID, "key", key)
		return false
	}
	r.pool.Trigger(set.ID, buf, key)
	return true
}

// repeatFire is the repeater callback. A held key re-resolves against the
// current snapshot, so a hot-swapped binding takes effect mid-hold. A key
// released since its last arm is disarmed here, which also reaps an entry
// armed just after a racing key-up.
func (r *Router) repeatFire(key keymap.KeyID, class keymap.DeviceClass) {
	r.mu.Lock()
	_, held := r.held[key]
	r.mu.Unlock()
	if !held {
		if r.rep != nil {
			r.rep.Cancel(key)
		}
		return
	}
	r.trigger(key, class)
}

// Held reports how many keys are currently down.
func (r *Router) Held() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.held)
}

// Close stops the watchdog.
func (r *Router) Close() {
	r.stopOnce.Do(func() { close(r.done) })
}

func (r *Router) watchdog() {
	ticker := time.NewTicker(r.watchdogEvery)
	defer ticker.Stop()
	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			r.releaseStuck()
		}
	}
}

func (r *Router) releaseStuck() {
	now := time.Now()
	var stuck []keymap.KeyID
	r.mu.Lock()
	for key, since := range r.held {
		if now.Sub(since) >= r.stuckAfter {
			stuck = append(stuck, key)
			delete(r.held, key)
		}
	}
	r.mu.Unlock()
	for _, key := range stuck {
		if r.rep != nil {
			r.rep.Cancel(key)
		}
		r.pool.Release(key)
		slog.Debug("stuck key force-released", "key", key)
	}
}
