// Package tasklist keeps the ordered, in-memory view of the task list in
// step with the task store.
//
// A Controller is not safe for concurrent use: every mutation is expected to
// come from a single foreground flow such as the UI update loop. Position
// writes are handed to a background queue and are not awaited; call Flush to
// wait for them and collect failures.
package tasklist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"simpletodo/internal/storage"
)

// DefaultUndoWindow is how long a removed task can be restored.
const DefaultUndoWindow = 3 * time.Second

var (
	// ErrIndexOutOfRange is returned for an index outside the list.
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrNoPendingDeletion is returned by Undo when the token is unknown,
	// already undone, or already committed.
	ErrNoPendingDeletion = errors.New("no pending deletion")
	// ErrDuplicate is returned when inserting a task that is already listed.
	ErrDuplicate = errors.New("task already in list")
)

// Task is the element type of the list.
type Task = storage.Task

// Store is the persistence the controller depends on.
type Store interface {
	PositionWriter
	Create(ctx context.Context, t *storage.Task) (int64, error)
	Get(ctx context.Context, id int64) (storage.Task, error)
	Update(ctx context.Context, t storage.Task) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]storage.Task, error)
	Search(ctx context.Context, text string) ([]storage.Task, error)
}

// Reminders registers and cancels reminders by alarm key.
type Reminders interface {
	Schedule(t storage.Task) error
	Cancel(key int64)
}

// Warner receives non-fatal problems worth showing to the user.
type Warner interface {
	Warnf(format string, args ...any)
}

// Token identifies a pending deletion.
type Token uint64

// PendingDeletion is a task that has left the list but is still in the
// store until its deadline passes without an undo.
type PendingDeletion struct {
	Token    Token
	Task     Task
	Index    int
	Deadline time.Time
}

type Controller struct {
	store      Store
	reminders  Reminders
	warner     Warner
	log        zerolog.Logger
	now        func() time.Time
	undoWindow time.Duration

	tasks     []Task
	pending   []PendingDeletion
	nextToken Token
	queue     *writeQueue
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger used for list diagnostics.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Controller) { c.log = l.With().Str("cmp", "tasklist").Logger() }
}

// WithUndoWindow sets how long a removed task can still be restored.
func WithUndoWindow(d time.Duration) Option {
	return func(c *Controller) { c.undoWindow = d }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithWarner sets where reminder scheduling failures are reported.
func WithWarner(w Warner) Option {
	return func(c *Controller) { c.warner = w }
}

// New creates a Controller. reminders may be nil when reminders are
// disabled.
func New(store Store, reminders Reminders, opts ...Option) *Controller {
	c := &Controller{
		store:      store,
		reminders:  reminders,
		log:        zerolog.Nop(),
		now:        time.Now,
		undoWindow: DefaultUndoWindow,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.queue = newWriteQueue(store, c.log)
	return c
}

// Load fills the list from the store.
func (c *Controller) Load(ctx context.Context) error {
	return c.Reconcile(ctx)
}

// Reconcile replaces the in-memory list with a fresh read of the store.
// Tasks that are pending deletion stay hidden.
func (c *Controller) Reconcile(ctx context.Context) error {
	if err := c.queue.Flush(ctx); err != nil {
		c.log.Warn().Err(err).Msg("position writes failed before reconcile")
	}

	tasks, err := c.store.List(ctx)
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	c.tasks = c.withoutPending(tasks)
	c.reindex(0)
	return nil
}

// Tasks returns a copy of the list in display order.
func (c *Controller) Tasks() []Task {
	out := make([]Task, len(c.tasks))
	copy(out, c.tasks)
	return out
}

func (c *Controller) Len() int {
	return len(c.tasks)
}

func (c *Controller) At(i int) (Task, error) {
	if i < 0 || i >= len(c.tasks) {
		return Task{}, fmt.Errorf("task %d: %w", i, ErrIndexOutOfRange)
	}
	return c.tasks[i], nil
}

// Add appends a new task with the given title and due date (epoch
// milliseconds, 0 for none).
func (c *Controller) Add(ctx context.Context, title string, due int64) (Task, error) {
	return c.Insert(ctx, Task{Title: title, Date: due}, -1)
}

// Insert places t at index, or at the end when index is outside 0..Len().
// A task without an ID is created in the store; a task with an ID must
// already exist there and only its position is written. Tasks after index
// shift down by one.
func (c *Controller) Insert(ctx context.Context, t Task, index int) (Task, error) {
	t.Title = strings.TrimSpace(t.Title)
	if t.Title == "" {
		return Task{}, fmt.Errorf("insert task: %w", storage.ErrInvalidInput)
	}
	if index < 0 || index > len(c.tasks) {
		index = len(c.tasks)
	}
	t.Position = index

	if t.ID == 0 {
		if _, err := c.store.Create(ctx, &t); err != nil {
			return Task{}, err
		}
	} else {
		if c.IndexOf(t.ID) >= 0 {
			return Task{}, fmt.Errorf("insert task %d: %w", t.ID, ErrDuplicate)
		}
		if _, err := c.store.Get(ctx, t.ID); err != nil {
			return Task{}, err
		}
		c.enqueue(t)
	}

	c.tasks = append(c.tasks, Task{})
	copy(c.tasks[index+1:], c.tasks[index:])
	c.tasks[index] = t

	for _, shifted := range c.reindex(index + 1) {
		c.enqueue(shifted)
	}

	c.log.Debug().Int64("task_id", t.ID).Int("index", index).Msg("task inserted")
	c.scheduleReminder(t)
	return t, nil
}

// Edit changes the title and due date of the task at index and keeps its
// reminder in step.
func (c *Controller) Edit(ctx context.Context, index int, title string, due int64) (Task, error) {
	if index < 0 || index >= len(c.tasks) {
		return Task{}, fmt.Errorf("edit task %d: %w", index, ErrIndexOutOfRange)
	}

	prev := c.tasks[index]
	updated := prev
	updated.Title = strings.TrimSpace(title)
	updated.Date = due
	if err := c.store.Update(ctx, updated); err != nil {
		return Task{}, err
	}
	c.tasks[index] = updated

	// A delivered reminder stays delivered unless the due date moves.
	if updated.Date == prev.Date {
		return updated, nil
	}
	if updated.HasReminder() {
		c.scheduleReminder(updated)
	} else if c.reminders != nil {
		c.reminders.Cancel(updated.AlarmKey())
	}
	return updated, nil
}

// Remove takes the task at index out of the list straight away. The store
// delete and reminder cancellation happen when the undo window expires (see
// CommitExpired) unless Undo is called first.
func (c *Controller) Remove(index int) (PendingDeletion, error) {
	if index < 0 || index >= len(c.tasks) {
		return PendingDeletion{}, fmt.Errorf("remove task %d: %w", index, ErrIndexOutOfRange)
	}

	t := c.tasks[index]
	c.tasks = append(c.tasks[:index], c.tasks[index+1:]...)
	c.reindex(index)

	c.nextToken++
	p := PendingDeletion{
		Token:    c.nextToken,
		Task:     t,
		Index:    index,
		Deadline: c.now().Add(c.undoWindow),
	}
	c.pending = append(c.pending, p)

	c.log.Debug().Int64("task_id", t.ID).Int("index", index).Time("deadline", p.Deadline).Msg("task removed, pending deletion")
	return p, nil
}

// Undo restores a removed task at its original index.
func (c *Controller) Undo(token Token) (Task, error) {
	i := c.pendingIndex(token)
	if i < 0 {
		return Task{}, ErrNoPendingDeletion
	}
	p := c.pending[i]
	c.pending = append(c.pending[:i], c.pending[i+1:]...)

	index := p.Index
	if index > len(c.tasks) {
		index = len(c.tasks)
	}
	t := p.Task
	t.Position = index

	c.tasks = append(c.tasks, Task{})
	copy(c.tasks[index+1:], c.tasks[index:])
	c.tasks[index] = t

	// The stored position may be stale if the list was reordered meanwhile.
	c.enqueue(t)
	for _, shifted := range c.reindex(index + 1) {
		c.enqueue(shifted)
	}

	c.log.Debug().Int64("task_id", t.ID).Int("index", index).Msg("deletion undone")
	return t, nil
}

// Pending returns the deletions that can still be undone, oldest first.
func (c *Controller) Pending() []PendingDeletion {
	out := make([]PendingDeletion, len(c.pending))
	copy(out, c.pending)
	return out
}

// NextDeadline returns the earliest pending deletion deadline.
func (c *Controller) NextDeadline() (time.Time, bool) {
	if len(c.pending) == 0 {
		return time.Time{}, false
	}
	next := c.pending[0].Deadline
	for _, p := range c.pending[1:] {
		if p.Deadline.Before(next) {
			next = p.Deadline
		}
	}
	return next, true
}

// CommitExpired makes every pending deletion whose deadline is not after now
// permanent and returns how many were committed. A deletion whose store
// delete fails stays pending.
func (c *Controller) CommitExpired(ctx context.Context, now time.Time) (int, error) {
	return c.commit(ctx, func(p PendingDeletion) bool { return !now.Before(p.Deadline) })
}

// CommitAll makes every pending deletion permanent regardless of deadline.
func (c *Controller) CommitAll(ctx context.Context) (int, error) {
	return c.commit(ctx, func(PendingDeletion) bool { return true })
}

func (c *Controller) commit(ctx context.Context, due func(PendingDeletion) bool) (int, error) {
	var (
		errs []error
		kept []PendingDeletion
		n    int
	)
	for _, p := range c.pending {
		if !due(p) {
			kept = append(kept, p)
			continue
		}
		err := c.store.Delete(ctx, p.Task.ID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			errs = append(errs, err)
			kept = append(kept, p)
			continue
		}
		if c.reminders != nil {
			c.reminders.Cancel(p.Task.AlarmKey())
		}
		n++
		c.log.Debug().Int64("task_id", p.Task.ID).Msg("deletion committed")
	}
	c.pending = kept

	if n > 0 {
		c.persistAll()
	}
	return n, errors.Join(errs...)
}

// Move relocates the task at from to index to. Every task between the two
// indices shifts by one, and the position of every task in the list is
// written back.
func (c *Controller) Move(from, to int) error {
	if from < 0 || from >= len(c.tasks) || to < 0 || to >= len(c.tasks) {
		return fmt.Errorf("move %d to %d: %w", from, to, ErrIndexOutOfRange)
	}
	if from == to {
		return nil
	}

	moved := c.tasks[from]
	if from < to {
		copy(c.tasks[from:to], c.tasks[from+1:to+1])
	} else {
		copy(c.tasks[to+1:from+1], c.tasks[to:from])
	}
	c.tasks[to] = moved

	c.log.Debug().Int64("task_id", moved.ID).Int("from", from).Int("to", to).Msg("task moved")
	c.persistAll()
	return nil
}

// Search returns the stored tasks whose title contains text, ignoring case,
// in display order. Tasks pending deletion are excluded.
func (c *Controller) Search(ctx context.Context, text string) ([]Task, error) {
	if err := c.queue.Flush(ctx); err != nil {
		c.log.Warn().Err(err).Msg("position writes failed before search")
	}
	found, err := c.store.Search(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return c.withoutPending(found), nil
}

// Flush waits for queued position writes and returns any that failed since
// the last Flush.
func (c *Controller) Flush(ctx context.Context) error {
	return c.queue.Flush(ctx)
}

// Close commits outstanding deletions, drains the write queue and stops it.
func (c *Controller) Close(ctx context.Context) error {
	_, commitErr := c.CommitAll(ctx)
	return errors.Join(commitErr, c.queue.Close())
}

func (c *Controller) persistAll() {
	c.reindex(0)
	for _, t := range c.tasks {
		c.enqueue(t)
	}
}

func (c *Controller) enqueue(t Task) {
	if !c.queue.Enqueue(t.ID, t.Position) {
		c.log.Warn().Int64("task_id", t.ID).Msg("write queue closed, position not saved")
	}
}

// reindex sets Position to the slice index for every task from start on and
// returns the tasks whose position changed.
func (c *Controller) reindex(start int) []Task {
	var changed []Task
	for i := start; i < len(c.tasks); i++ {
		if c.tasks[i].Position != i {
			c.tasks[i].Position = i
			changed = append(changed, c.tasks[i])
		}
	}
	return changed
}

func (c *Controller) scheduleReminder(t Task) {
	if c.reminders == nil || !t.HasReminder() {
		return
	}
	if err := c.reminders.Schedule(t); err != nil {
		c.log.Warn().Err(err).Int64("task_id", t.ID).Msg("reminder not scheduled")
		if c.warner != nil {
			c.warner.Warnf("reminder for %q not scheduled: %v", t.Title, err)
		}
	}
}

// IndexOf returns the index of the task with the given ID, or -1.
func (c *Controller) IndexOf(id int64) int {
	for i, t := range c.tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (c *Controller) pendingIndex(token Token) int {
	for i, p := range c.pending {
		if p.Token == token {
			return i
		}
	}
	return -1
}

func (c *Controller) withoutPending(tasks []Task) []Task {
	if len(c.pending) == 0 {
		return tasks
	}
	hidden := make(map[int64]struct{}, len(c.pending))
	for _, p := range c.pending {
		hidden[p.Task.ID] = struct{}{}
	}
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if _, ok := hidden[t.ID]; !ok {
			out = append(out, t)
		}
	}
	return out
}
