// internal/schedule/schedule.go
package schedule

import (
	"sync"
	"time"
)

// DefaultFrameInterval approximates one display refresh at 60Hz.
const DefaultFrameInterval = 16 * time.Millisecond

// Timer is a pending one-shot function call.
type Timer interface {
	// Stop prevents the call from running. It reports false if the call had
	// already run or been stopped.
	Stop() bool
}

// Clock abstracts wall time and delayed calls.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

// FrameScheduler runs work at the next frame boundary.
type FrameScheduler interface {
	// RequestFrame schedules fn for the next frame. The returned function
	// cancels it if it has not run yet.
	RequestFrame(fn func()) (cancel func())
}

// -- Real implementations --

type realClock struct{}

// RealClock is backed by the time package.
func RealClock() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// IntervalFrames runs each requested frame after a fixed interval, the way a
// display refresh would.
type IntervalFrames struct {
	clock    Clock
	interval time.Duration
}

// NewIntervalFrames creates a frame scheduler ticking every interval on clock.
func NewIntervalFrames(clock Clock, interval time.Duration) *IntervalFrames {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &IntervalFrames{clock: clock, interval: interval}
}

func (f *IntervalFrames) RequestFrame(fn func()) func() {
	t := f.clock.AfterFunc(f.interval, fn)
	return func() { t.Stop() }
}

// -- Manual implementations --

// ManualClock only moves when Advance is called. Timers fire synchronously
// on the goroutine calling Advance, in deadline order.
type ManualClock struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers []*manualTimer
}

type manualTimer struct {
	clock    *ManualClock
	deadline time.Time
	seq      int
	fn       func()
	stopped  bool
	fired    bool
}

// NewManualClock starts at start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) AfterFunc(d time.Duration, fn func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &manualTimer{clock: c, deadline: c.now.Add(d), seq: c.seq, fn: fn}
	c.timers = append(c.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves the clock forward by d, running every timer whose deadline
// falls inside the window.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		next := c.nextDueLocked(target)
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		next.fired = true
		if next.deadline.After(c.now) {
			c.now = next.deadline
		}
		c.mu.Unlock()
		next.fn()
	}
}

func (c *ManualClock) nextDueLocked(target time.Time) *manualTimer {
	var next *manualTimer
	live := c.timers[:0]
	for _, t := range c.timers {
		if t.stopped || t.fired {
			continue
		}
		live = append(live, t)
		if t.deadline.After(target) {
			continue
		}
		if next == nil || t.deadline.Before(next.deadline) ||
			(t.deadline.Equal(next.deadline) && t.seq < next.seq) {
			next = t
		}
	}
	c.timers = live
	return next
}

// Pending is the number of timers that have neither fired nor been stopped.
func (c *ManualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// ManualFrames queues requested frames until Flush is called.
type ManualFrames struct {
	mu      sync.Mutex
	seq     int
	pending map[int]func()
	order   []int
}

func NewManualFrames() *ManualFrames {
	return &ManualFrames{pending: make(map[int]func())}
}

func (f *ManualFrames) RequestFrame(fn func()) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	id := f.seq
	f.pending[id] = fn
	f.order = append(f.order, id)
	return func() {
		f.mu.Lock()
		delete(f.pending, id)
		f.mu.Unlock()
	}
}

// Flush runs every frame requested before the call. Frames requested while
// flushing wait for the next Flush.
func (f *ManualFrames) Flush() int {
	f.mu.Lock()
	order := f.order
	f.order = nil
	var fns []func()
	for _, id := range order {
		if fn, ok := f.pending[id]; ok {
			fns = append(fns, fn)
			delete(f.pending, id)
		}
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
	return len(fns)
}

// Pending is the number of queued frames.
func (f *ManualFrames) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}
