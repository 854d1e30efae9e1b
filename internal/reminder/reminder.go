// Package reminder schedules one-shot notifications for tasks with a due
// date. Each task is tracked by its alarm key; scheduling the same key again
// replaces the previous registration.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"simpletodo/internal/storage"
)

var (
	// ErrNoDueDate is returned when scheduling a task without a due date.
	ErrNoDueDate = errors.New("task has no due date")
	// ErrNoAlarmKey is returned when scheduling a task that was never stamped.
	ErrNoAlarmKey = errors.New("task has no alarm key")
	// ErrStopped is returned after Stop has been called.
	ErrStopped = errors.New("reminder scheduler stopped")
)

// State is the lifecycle state of a single alarm key.
type State int

const (
	StateUnscheduled State = iota
	StatePending
	StateDelivered
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateDelivered:
		return "delivered"
	default:
		return "unscheduled"
	}
}

// Reminder is what gets delivered when a timer fires.
type Reminder struct {
	Key    int64
	TaskID int64
	Title  string
	Due    time.Time
}

// Notifier surfaces fired reminders to the user.
type Notifier interface {
	Notify(r Reminder)
	// Retract removes a delivered reminder that is still visible.
	Retract(key int64)
}

// Timer is the subset of *time.Timer the scheduler relies on.
type Timer interface {
	Stop() bool
}

// TimerFunc arranges for f to run after d.
type TimerFunc func(d time.Duration, f func()) Timer

// Source lists the tasks whose reminders must be re-registered on start-up.
type Source interface {
	ListWithReminders(ctx context.Context) ([]storage.Task, error)
}

type entry struct {
	seq      uint64
	timer    Timer
	reminder Reminder
}

// Scheduler tracks pending reminders. It is safe for concurrent use; timer
// callbacks run on their own goroutines.
type Scheduler struct {
	notifier  Notifier
	log       zerolog.Logger
	now       func() time.Time
	afterFunc TimerFunc

	mu        sync.Mutex
	seq       uint64
	pending   map[int64]*entry
	delivered map[int64]struct{}
	stopped   bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger used for scheduling diagnostics.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Scheduler) { s.log = l.With().Str("cmp", "reminder").Logger() }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithTimerFunc overrides time.AfterFunc.
func WithTimerFunc(fn TimerFunc) Option {
	return func(s *Scheduler) { s.afterFunc = fn }
}

// New creates a Scheduler that delivers fired reminders to notifier.
func New(notifier Notifier, opts ...Option) *Scheduler {
	s := &Scheduler{
		notifier: notifier,
		log:      zerolog.Nop(),
		now:      time.Now,
		afterFunc: func(d time.Duration, f func()) Timer {
			return time.AfterFunc(d, f)
		},
		pending:   make(map[int64]*entry),
		delivered: make(map[int64]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule registers a one-shot reminder for task. A due date in the past
// fires immediately.
func (s *Scheduler) Schedule(task storage.Task) error {
	if !task.HasReminder() {
		return fmt.Errorf("schedule task %d: %w", task.ID, ErrNoDueDate)
	}
	key := task.AlarmKey()
	if key == 0 {
		return fmt.Errorf("schedule task %d: %w", task.ID, ErrNoAlarmKey)
	}

	r := Reminder{Key: key, TaskID: task.ID, Title: task.Title, Due: task.Due()}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	if old, ok := s.pending[key]; ok && old.timer != nil {
		old.timer.Stop()
	}
	delete(s.delivered, key)
	s.seq++
	seq := s.seq
	s.pending[key] = &entry{seq: seq, reminder: r}
	delay := r.Due.Sub(s.now())
	s.mu.Unlock()

	if delay < 0 {
		delay = 0
	}

	// The timer is created outside the lock: a zero delay may fire
	// synchronously with some TimerFunc implementations.
	timer := s.afterFunc(delay, func() { s.fire(key, seq) })

	s.mu.Lock()
	if e, ok := s.pending[key]; ok && e.seq == seq {
		e.timer = timer
	}
	s.mu.Unlock()

	s.log.Debug().
		Int64("key", key).
		Int64("task_id", task.ID).
		Dur("delay", delay).
		Msg("reminder scheduled")
	return nil
}

func (s *Scheduler) fire(key int64, seq uint64) {
	s.mu.Lock()
	e, ok := s.pending[key]
	if !ok || e.seq != seq {
		s.mu.Unlock()
		return
	}
	delete(s.pending, key)
	s.delivered[key] = struct{}{}
	s.mu.Unlock()

	s.log.Info().Int64("key", key).Int64("task_id", e.reminder.TaskID).Msg("reminder fired")
	s.notifier.Notify(e.reminder)
}

// Cancel unregisters the reminder for key and retracts it if it was already
// delivered. Unknown keys are ignored.
func (s *Scheduler) Cancel(key int64) {
	s.mu.Lock()
	if e, ok := s.pending[key]; ok {
		if e.timer != nil {
			e.timer.Stop()
		}
		delete(s.pending, key)
	}
	_, wasDelivered := s.delivered[key]
	delete(s.delivered, key)
	s.mu.Unlock()

	if wasDelivered {
		s.notifier.Retract(key)
	}
}

// Restore re-registers every reminder known to src, returning how many were
// scheduled. Tasks that fail to schedule are skipped and reported in the
// joined error.
func (s *Scheduler) Restore(ctx context.Context, src Source) (int, error) {
	tasks, err := src.ListWithReminders(ctx)
	if err != nil {
		return 0, fmt.Errorf("restore reminders: %w", err)
	}

	var errs []error
	n := 0
	for _, t := range tasks {
		if err := s.Schedule(t); err != nil {
			errs = append(errs, err)
			continue
		}
		n++
	}

	s.log.Info().Int("restored", n).Int("failed", len(errs)).Msg("reminders restored")
	return n, errors.Join(errs...)
}

// State reports the lifecycle state of key.
func (s *Scheduler) State(key int64) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pending[key]; ok {
		return StatePending
	}
	if _, ok := s.delivered[key]; ok {
		return StateDelivered
	}
	return StateUnscheduled
}

// Pending returns the alarm keys that have not fired yet, in ascending order.
func (s *Scheduler) Pending() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]int64, 0, len(s.pending))
	for k := range s.pending {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Stop cancels every pending timer. Later calls to Schedule fail.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, e := range s.pending {
		if e.timer != nil {
			e.timer.Stop()
		}
		delete(s.pending, key)
	}
	s.stopped = true
}
