package nci

import (
	"sort"
	"sync"
	"time"
)

// Clock abstracts time so the Adapter's event loop can be driven
// deterministically in tests (spec.md §5: deferred mode-check, periodic
// presence-check timer).
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
	NewTimer(d time.Duration) Timer
	// AfterFunc schedules f to run once after d elapses, returning a
	// Timer that can cancel it before it fires.
	AfterFunc(d time.Duration, f func()) Timer
}

// Ticker is an interface over time.Ticker.
type Ticker interface {
	C() <-chan time.Time
	Stop()
	Reset(d time.Duration)
}

// Timer is an interface over time.Timer.
type Timer interface {
	C() <-chan time.Time
	Stop() bool
	Reset(d time.Duration) bool
}

// RealClock implements Clock using the time package.
type RealClock struct{}

// NewRealClock returns a Clock backed by real wall-clock time.
func NewRealClock() Clock { return &RealClock{} }

func (RealClock) Now() time.Time { return time.Now() }

func (RealClock) NewTicker(d time.Duration) Ticker {
	return &realTicker{ticker: time.NewTicker(d)}
}

func (RealClock) NewTimer(d time.Duration) Timer {
	return &realTimer{timer: time.NewTimer(d)}
}

func (RealClock) AfterFunc(d time.Duration, f func()) Timer {
	return &realTimer{timer: time.AfterFunc(d, f)}
}

type realTicker struct{ ticker *time.Ticker }

func (t *realTicker) C() <-chan time.Time    { return t.ticker.C }
func (t *realTicker) Stop()                  { t.ticker.Stop() }
func (t *realTicker) Reset(d time.Duration)  { t.ticker.Reset(d) }

type realTimer struct{ timer *time.Timer }

func (t *realTimer) C() <-chan time.Time       { return t.timer.C }
func (t *realTimer) Stop() bool                { return t.timer.Stop() }
func (t *realTimer) Reset(d time.Duration) bool { return t.timer.Reset(d) }

// FakeClock implements Clock for deterministic tests. Advance fires any
// ticker or one-shot timer (including AfterFunc callbacks) whose deadline
// has been reached: tickers first, then timers in deadline order.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
	timers  []*fakeTimer
}

// NewFakeClock returns a FakeClock starting at start.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

func (fc *FakeClock) Now() time.Time {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.now
}

func (fc *FakeClock) NewTicker(d time.Duration) Ticker {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	ft := &fakeTicker{clock: fc, interval: d, c: make(chan time.Time, 1), deadline: fc.now.Add(d)}
	fc.tickers = append(fc.tickers, ft)
	return ft
}

func (fc *FakeClock) NewTimer(d time.Duration) Timer {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	ft := &fakeTimer{clock: fc, deadline: fc.now.Add(d), c: make(chan time.Time, 1)}
	fc.timers = append(fc.timers, ft)
	return ft
}

func (fc *FakeClock) AfterFunc(d time.Duration, f func()) Timer {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	ft := &fakeTimer{clock: fc, deadline: fc.now.Add(d), fn: f}
	fc.timers = append(fc.timers, ft)
	return ft
}

// Advance moves the clock forward by d and fires everything due, timers
// in ascending deadline order. The set of due timers is fixed before any
// callback runs, so a timer a callback schedules during Advance waits for
// the next Advance.
func (fc *FakeClock) Advance(d time.Duration) {
	fc.mu.Lock()
	fc.now = fc.now.Add(d)
	target := fc.now

	var due []*fakeTimer
	for _, t := range fc.timers {
		if !t.stopped && !t.fired && !target.Before(t.deadline) {
			due = append(due, t)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].deadline.Before(due[j].deadline) })
	for _, t := range due {
		t.fired = true
	}

	for _, t := range fc.tickers {
		if t.stopped {
			continue
		}
		for !target.Before(t.deadline) {
			select {
			case t.c <- target:
			default:
			}
			t.deadline = t.deadline.Add(t.interval)
		}
	}
	fc.mu.Unlock()

	for _, t := range due {
		if t.fn != nil {
			t.fn()
		} else {
			select {
			case t.c <- target:
			default:
			}
		}
	}
}

type fakeTicker struct {
	clock    *FakeClock
	interval time.Duration
	deadline time.Time
	c        chan time.Time
	stopped  bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.c }

func (t *fakeTicker) Stop() {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	t.stopped = true
}

func (t *fakeTicker) Reset(d time.Duration) {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	t.interval = d
	t.deadline = t.clock.now.Add(d)
	t.stopped = false
}

type fakeTimer struct {
	clock    *FakeClock
	deadline time.Time
	c        chan time.Time
	fn       func()
	stopped  bool
	fired    bool
}

func (t *fakeTimer) C() <-chan time.Time { return t.c }

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	fired := t.stopped || t.fired
	t.stopped = true
	return !fired
}

func (t *fakeTimer) Reset(d time.Duration) bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = false
	t.fired = false
	t.deadline = t.clock.now.Add(d)
	return active
}
