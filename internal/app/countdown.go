package app

import (
	"sync"
	"time"
)

// Countdown is a one-shot timer controller for a timed attempt. It fires the
// expiry callback at most once; Cancel prevents a pending fire and is safe to
// call at any point, including before Start and after natural expiry.
type Countdown struct {
	mu       sync.Mutex
	now      func() time.Time
	timer    *time.Timer
	deadline time.Time
	running  bool
	done     bool
}

func NewCountdown() *Countdown {
	return &Countdown{now: time.Now}
}

// newCountdownWithClock allows deterministic Remaining values in tests.
func newCountdownWithClock(now func() time.Time) *Countdown {
	return &Countdown{now: now}
}

// Start arms the countdown. A non-positive duration means the attempt is
// untimed and the controller never arms. Starting twice is a no-op.
func (c *Countdown) Start(d time.Duration, onExpire func()) {
	if d <= 0 || onExpire == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running || c.done {
		return
	}
	c.running = true
	c.deadline = c.now().Add(d)
	c.timer = time.AfterFunc(d, func() {
		c.mu.Lock()
		if c.done {
			c.mu.Unlock()
			return
		}
		c.done = true
		c.running = false
		c.mu.Unlock()
		onExpire()
	})
}

// Cancel stops the countdown and guarantees the expiry callback will not fire
// afterwards.
func (c *Countdown) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.done = true
	c.running = false
	if c.timer != nil {
		c.timer.Stop()
	}
}

// Remaining reports the time left, clamped at zero. It is zero for untimed,
// cancelled, or expired countdowns.
func (c *Countdown) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return 0
	}
	left := c.deadline.Sub(c.now())
	if left < 0 {
		left = 0
	}
	return left
}
