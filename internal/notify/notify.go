// Package notify carries user-visible notifications (delivered reminders and
// non-fatal warnings) from background services to the presentation layer.
package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"simpletodo/internal/reminder"
)

// Level represents the severity of a notification.
type Level string

const (
	LevelInfo     Level = "info"
	LevelReminder Level = "reminder"
	LevelWarning  Level = "warning"
	LevelError    Level = "error"

	// LevelRetracted tells subscribers that the reminder for Key was
	// withdrawn. It is never kept in the history.
	LevelRetracted Level = "retracted"
)

const defaultHistory = 50

// Notification represents a single notification event. Key is the alarm key
// for reminder notifications and zero otherwise.
type Notification struct {
	Level     Level
	Message   string
	Key       int64
	CreatedAt time.Time
}

// Subscriber is a callback invoked when a notification is published.
type Subscriber func(Notification)

// Bus is a synchronous in-process notification bus. It dispatches
// notifications to subscribers inline and keeps a bounded history of the
// ones still visible.
type Bus struct {
	log         zerolog.Logger
	max         int
	mu          sync.Mutex
	subscribers []Subscriber
	history     []Notification
}

var _ reminder.Notifier = (*Bus)(nil)

// NewBus creates a notification bus that keeps at most max notifications in
// its history. A non-positive max uses the default.
func NewBus(log zerolog.Logger, max int) *Bus {
	if max <= 0 {
		max = defaultHistory
	}
	return &Bus{
		log: log.With().Str("cmp", "notify").Logger(),
		max: max,
	}
}

// Subscribe registers a callback that will be invoked on every Publish.
func (b *Bus) Subscribe(fn Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, fn)
}

// Publish records a notification and dispatches it to all subscribers.
func (b *Bus) Publish(n Notification) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	b.mu.Lock()
	b.history = append(b.history, n)
	if len(b.history) > b.max {
		b.history = b.history[len(b.history)-b.max:]
	}
	subs := make([]Subscriber, len(b.subscribers))
	copy(subs, b.subscribers)
	b.mu.Unlock()

	b.log.Debug().Str("level", string(n.Level)).Int64("key", n.Key).Msg(n.Message)

	for _, fn := range subs {
		fn(n)
	}
}

// Infof publishes an info-level notification.
func (b *Bus) Infof(format string, args ...any) {
	b.Publish(Notification{Level: LevelInfo, Message: fmt.Sprintf(format, args...)})
}

// Warnf publishes a warning-level notification.
func (b *Bus) Warnf(format string, args ...any) {
	b.Publish(Notification{Level: LevelWarning, Message: fmt.Sprintf(format, args...)})
}

// Errorf publishes an error-level notification.
func (b *Bus) Errorf(format string, args ...any) {
	b.Publish(Notification{Level: LevelError, Message: fmt.Sprintf(format, args...)})
}

// Notify publishes a fired reminder.
func (b *Bus) Notify(r reminder.Reminder) {
	b.Publish(Notification{
		Level:   LevelReminder,
		Message: r.Title,
		Key:     r.Key,
	})
}

// Retract removes the reminder notification for key from the history and
// tells subscribers it is gone.
func (b *Bus) Retract(key int64) {
	b.mu.Lock()
	kept := b.history[:0]
	for _, n := range b.history {
		if n.Level == LevelReminder && n.Key == key {
			continue
		}
		kept = append(kept, n)
	}
	b.history = kept
	subs := make([]Subscriber, len(b.subscribers))
	copy(subs, b.subscribers)
	b.mu.Unlock()

	b.log.Debug().Int64("key", key).Msg("reminder retracted")

	n := Notification{Level: LevelRetracted, Key: key, CreatedAt: time.Now()}
	for _, fn := range subs {
		fn(n)
	}
}

// List returns the retained notifications, oldest first.
func (b *Bus) List() []Notification {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Notification, len(b.history))
	copy(out, b.history)
	return out
}

// Clear drops all retained notifications.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.history = nil
}
