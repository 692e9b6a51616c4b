package partner

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultTick is how often a running countdown re-reads the clock.
const DefaultTick = 100 * time.Millisecond

// OfferTimer runs at most one countdown at a time. Remaining time is always
// recomputed from the absolute deadline, so a process that stopped ticking while
// suspended fires on the first check after it resumes.
type OfferTimer struct {
	clock clockwork.Clock
	tick  time.Duration

	mu     sync.Mutex
	active *countdown
}

type countdown struct {
	orderID  string
	deadline time.Time
	onExpire func(orderID string)
	stop     chan struct{}
}

// NewOfferTimer creates an idle timer.
func NewOfferTimer(clock clockwork.Clock, tick time.Duration) *OfferTimer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if tick <= 0 {
		tick = DefaultTick
	}
	return &OfferTimer{clock: clock, tick: tick}
}

// Start replaces any running countdown with one for orderID.
// onExpire runs once, outside the timer lock, unless the countdown is cancelled first.
func (t *OfferTimer) Start(orderID string, deadline time.Time, onExpire func(orderID string)) {
	c := &countdown{
		orderID:  orderID,
		deadline: deadline,
		onExpire: onExpire,
		stop:     make(chan struct{}),
	}

	t.mu.Lock()
	t.stopLocked()
	t.active = c
	t.mu.Unlock()

	ticker := t.clock.NewTicker(t.tick)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-c.stop:
				return
			case <-ticker.Chan():
				t.fireIfDue(c)
			}
		}
	}()
}

// Cancel stops the countdown of orderID. It reports whether one was running.
func (t *OfferTimer) Cancel(orderID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active == nil || t.active.orderID != orderID {
		return false
	}
	t.stopLocked()
	return true
}

// Stop cancels whatever countdown is running.
func (t *OfferTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

// Check re-evaluates the running countdown now; call it on resume.
func (t *OfferTimer) Check() {
	t.mu.Lock()
	c := t.active
	t.mu.Unlock()
	if c != nil {
		t.fireIfDue(c)
	}
}

// Remaining reports the order being counted down and the time left, never negative.
func (t *OfferTimer) Remaining() (string, time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active == nil {
		return "", 0, false
	}
	left := t.active.deadline.Sub(t.clock.Now())
	if left < 0 {
		left = 0
	}
	return t.active.orderID, left, true
}

func (t *OfferTimer) fireIfDue(c *countdown) {
	t.mu.Lock()
	if t.active != c || t.clock.Now().Before(c.deadline) {
		t.mu.Unlock()
		return
	}
	t.stopLocked()
	t.mu.Unlock()

	if c.onExpire != nil {
		c.onExpire(c.orderID)
	}
}

func (t *OfferTimer) stopLocked() {
	if t.active == nil {
		return
	}
	close(t.active.stop)
	t.active = nil
}
