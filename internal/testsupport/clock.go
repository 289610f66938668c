package testsupport

import (
	"sort"
	"sync"
	"testing"
	"time"

	"amequeue/internal/job"
)

var _ job.Clock = (*ManualClock)(nil)

// ManualClock is a clock whose time only moves when told to. Timers fire on
// the goroutine that advances the clock.
type ManualClock struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers []*manualTimer
}

type manualTimer struct {
	clock *ManualClock
	at    time.Time
	seq   int
	fn    func()
	done  bool
}

// NewManualClock starts at a fixed instant.
func NewManualClock() *ManualClock {
	return &ManualClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc schedules fn to run when the clock reaches now+d.
func (c *ManualClock) AfterFunc(d time.Duration, fn func()) job.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	timer := &manualTimer{clock: c, at: c.now.Add(d), seq: c.seq, fn: fn}
	c.timers = append(c.timers, timer)
	return timer
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	t.clock.removeLocked(t)
	return true
}

func (c *ManualClock) removeLocked(target *manualTimer) {
	out := c.timers[:0]
	for _, timer := range c.timers {
		if timer != target {
			out = append(out, timer)
		}
	}
	c.timers = out
}

// Pending returns the number of scheduled timers.
func (c *ManualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// FireNext moves time to the earliest timer and runs it. It reports false
// when nothing is scheduled.
func (c *ManualClock) FireNext() bool {
	c.mu.Lock()
	if len(c.timers) == 0 {
		c.mu.Unlock()
		return false
	}
	sort.Slice(c.timers, func(i, j int) bool {
		if c.timers[i].at.Equal(c.timers[j].at) {
			return c.timers[i].seq < c.timers[j].seq
		}
		return c.timers[i].at.Before(c.timers[j].at)
	})
	next := c.timers[0]
	c.timers = c.timers[1:]
	next.done = true
	if next.at.After(c.now) {
		c.now = next.at
	}
	c.mu.Unlock()
	next.fn()
	return true
}

// Advance moves time forward by d, firing every timer that falls due.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()
	for {
		c.mu.Lock()
		var due *manualTimer
		for _, timer := range c.timers {
			if !timer.at.After(target) && (due == nil || timer.at.Before(due.at) || (timer.at.Equal(due.at) && timer.seq < due.seq)) {
				due = timer
			}
		}
		if due == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		due.done = true
		c.removeLocked(due)
		c.now = due.at
		c.mu.Unlock()
		due.fn()
	}
}

// Drive fires timers until done is closed, waiting for in-flight work to
// schedule the next timer. It fails the test after timeout of wall time.
func (c *ManualClock) Drive(t testing.TB, done <-chan struct{}, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		select {
		case <-done:
			return
		default:
		}
		if time.Now().After(deadline) {
			t.Fatalf("manual clock: job did not finish within %s", timeout)
		}
		if !c.FireNext() {
			time.Sleep(time.Millisecond)
		}
	}
}
