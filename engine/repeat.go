package engine

import (
	"container/heap"
	"sync"
	"time"

	"github.com/cwbudde/thock/internal/keymap"
)

// Repeater re-fires held keys on a fixed cadence. A single scheduler
// goroutine owns a min-heap of pending fires; Schedule and Cancel touch it
// behind a short mutex and nudge the scheduler through a wake channel.
type Repeater struct {
	interval time.Duration
	fire     func(key keymap.KeyID, class keymap.DeviceClass)

	mu      sync.Mutex
	pending fireHeap
	byKey   map[keymap.KeyID]*fireEntry

	wake     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

type fireEntry struct {
	key   keymap.KeyID
	class keymap.DeviceClass
	at    time.Time
	index int // heap position; -1 when removed
}

type fireHeap []*fireEntry

func (h fireHeap) Len() int           { return len(h) }
func (h fireHeap) Less(i, j int) bool { return h[i].at.Before(h[j].at) }
func (h fireHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *fireHeap) Push(x any) {
	e := x.(*fireEntry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *fireHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// NewRepeater starts the scheduler. fire runs on the scheduler goroutine
// outside the lock, so it may call back into Schedule or Cancel.
func NewRepeater(interval time.Duration, fire func(keymap.KeyID, keymap.DeviceClass)) *Repeater {
	if interval <= 0 {
		interval = 55 * time.Millisecond
	}
	r := &Repeater{
		interval: interval,
		fire:     fire,
		byKey:    make(map[keymap.KeyID]*fireEntry),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	go r.run()
	return r
}

// Interval returns the repeat cadence.
func (r *Repeater) Interval() time.Duration { return r.interval }

// Schedule arms repeat fires for a held key, the first one interval from
// now. Re-scheduling an armed key pushes its next fire back.
func (r *Repeater) Schedule(key keymap.KeyID, class keymap.DeviceClass) {
	r.mu.Lock()
	if e, ok := r.byKey[key]; ok {
		e.at = time.Now().Add(r.interval)
		heap.Fix(&r.pending, e.index)
	} else {
		e := &fireEntry{key: key, class: class, at: time.Now().Add(r.interval)}
		heap.Push(&r.pending, e)
		r.byKey[key] = e
	}
	r.mu.Unlock()
	r.nudge()
}

// Cancel disarms a key. A fire already dispatched may still land; callers
// tolerate at most that one extra trigger past the key-up.
func (r *Repeater) Cancel(key keymap.KeyID) {
	r.mu.Lock()
	if e, ok := r.byKey[key]; ok {
		delete(r.byKey, key)
		if e.index >= 0 {
			heap.Remove(&r.pending, e.index)
		}
	}
	r.mu.Unlock()
}

// CancelAll disarms every key, for the repeat-mode-off toggle.
func (r *Repeater) CancelAll() {
	r.mu.Lock()
	r.pending = nil
	r.byKey = make(map[keymap.KeyID]*fireEntry)
	r.mu.Unlock()
}

// Armed reports how many keys currently have pending fires.
func (r *Repeater) Armed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byKey)
}

// Close stops the scheduler goroutine.
func (r *Repeater) Close() {
	r.stopOnce.Do(func() { close(r.done) })
}

func (r *Repeater) nudge() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *Repeater) run() {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()
	due := make([]*fireEntry, 0, 8)

	for {
		due = due[:0]
		r.mu.Lock()
		now := time.Now()
		for r.pending.Len() > 0 && !r.pending[0].at.After(now) {
			e := r.pending[0]
			due = append(due, e)
			// Re-arm for the next period before dispatching.
			e.at = now.Add(r.interval)
			heap.Fix(&r.pending, 0)
		}
		wait := time.Hour
		if r.pending.Len() > 0 {
			wait = time.Until(r.pending[0].at)
		}
		r.mu.Unlock()

		for _, e := range due {
			r.fire(e.key, e.class)
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-r.done:
			return
		case <-timer.C:
		case <-r.wake:
		}
	}
}
