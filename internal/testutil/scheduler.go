package testutil

import (
	"sync"
	"time"

	"github.com/deepguard/backend/internal/models"
)

// FixedSource always draws the same value.
type FixedSource struct {
	Value float64
}

func (s FixedSource) Float64() float64 { return s.Value }

// ManualTimer is a pending callback owned by a ManualScheduler.
type ManualTimer struct {
	Delay   time.Duration
	fn      func()
	stopped bool
	fired   bool
	sched   *ManualScheduler
}

// Stop cancels the timer, reporting whether it was still pending.
func (t *ManualTimer) Stop() bool {
	t.sched.mu.Lock()
	defer t.sched.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// ManualScheduler replaces time.AfterFunc in tests; callbacks run only
// when the test fires them.
type ManualScheduler struct {
	mu     sync.Mutex
	timers []*ManualTimer
}

// AfterFunc records f without scheduling it. The returned value satisfies
// any interface with a Stop() bool method.
func (s *ManualScheduler) AfterFunc(d time.Duration, f func()) *ManualTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &ManualTimer{Delay: d, fn: f, sched: s}
	s.timers = append(s.timers, t)
	return t
}

// Timers returns every timer created so far.
func (s *ManualScheduler) Timers() []*ManualTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*ManualTimer(nil), s.timers...)
}

// Fire runs timer i's callback regardless of Stop, the way a timer that
// already fired races a cancellation. It reports whether the timer had
// been stopped first.
func (s *ManualScheduler) Fire(i int) (wasStopped bool) {
	s.mu.Lock()
	t := s.timers[i]
	wasStopped = t.stopped
	t.fired = true
	s.mu.Unlock()
	t.fn()
	return wasStopped
}

// FirePending runs every timer that was neither stopped nor fired.
func (s *ManualScheduler) FirePending() int {
	s.mu.Lock()
	var due []*ManualTimer
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			t.fired = true
			due = append(due, t)
		}
	}
	s.mu.Unlock()
	for _, t := range due {
		t.fn()
	}
	return len(due)
}

// Clock is a settable time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts a clock at t.
func NewClock(t time.Time) *Clock {
	return &Clock{now: t}
}

// Now returns the current instant.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// RecordingSink keeps every notification it receives.
type RecordingSink struct {
	mu   sync.Mutex
	seen []models.Notification
}

func (r *RecordingSink) Notify(n models.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, n)
}

// Notifications returns a copy of what was received.
func (r *RecordingSink) Notifications() []models.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Notification(nil), r.seen...)
}

// Titles returns the received titles in order.
func (r *RecordingSink) Titles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	titles := make([]string, len(r.seen))
	for i, n := range r.seen {
		titles[i] = n.Title
	}
	return titles
}
