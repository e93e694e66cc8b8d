// Package notify carries user-facing notifications (title, description,
// variant) from the demo state machine to whatever renders them.
package notify

import (
	"sync"
	"time"

	"github.com/deepguard/backend/internal/models"
)

// Sink accepts notifications.
type Sink interface {
	Notify(n models.Notification)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(models.Notification)

// Notify calls f(n).
func (f SinkFunc) Notify(n models.Notification) { f(n) }

// Discard drops every notification.
var Discard Sink = SinkFunc(func(models.Notification) {})

// Info builds a default-variant notification.
func Info(title, description string) models.Notification {
	return models.Notification{Title: title, Description: description, Variant: models.VariantDefault}
}

// Destructive builds a destructive-variant notification.
func Destructive(title, description string) models.Notification {
	return models.Notification{Title: title, Description: description, Variant: models.VariantDestructive}
}

// Feed keeps a bounded backlog of notifications and fans them out to
// subscribers. Slow subscribers miss messages rather than block the sender.
type Feed struct {
	mu      sync.RWMutex
	backlog []models.Notification
	limit   int
	subs    map[int]chan models.Notification
	nextSub int
	now     func() time.Time
}

// NewFeed creates a feed retaining up to limit notifications.
func NewFeed(limit int) *Feed {
	if limit <= 0 {
		limit = 20
	}
	return &Feed{
		limit: limit,
		subs:  make(map[int]chan models.Notification),
		now:   time.Now,
	}
}

// Notify records n and delivers it to every subscriber.
func (f *Feed) Notify(n models.Notification) {
	if n.Timestamp.IsZero() {
		n.Timestamp = f.now()
	}
	if n.Variant == "" {
		n.Variant = models.VariantDefault
	}

	f.mu.Lock()
	f.backlog = append(f.backlog, n)
	if over := len(f.backlog) - f.limit; over > 0 {
		f.backlog = append(f.backlog[:0:0], f.backlog[over:]...)
	}
	for _, ch := range f.subs {
		select {
		case ch <- n:
		default:
		}
	}
	f.mu.Unlock()
}

// Recent returns a copy of the backlog, oldest first.
func (f *Feed) Recent() []models.Notification {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]models.Notification, len(f.backlog))
	copy(out, f.backlog)
	return out
}

// Subscribe registers a listener. The returned cancel func must be called
// to release it; it closes the channel and is safe to call twice.
func (f *Feed) Subscribe(buffer int) (<-chan models.Notification, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan models.Notification, buffer)

	f.mu.Lock()
	id := f.nextSub
	f.nextSub++
	f.subs[id] = ch
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if c, ok := f.subs[id]; ok {
			delete(f.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// Close releases all subscribers.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, ch := range f.subs {
		delete(f.subs, id)
		close(ch)
	}
}
