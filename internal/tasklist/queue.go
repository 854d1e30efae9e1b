package tasklist

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"simpletodo/internal/storage"
)

const (
	queueSize      = 256
	busyRetries    = 3
	busyRetryDelay = 50 * time.Millisecond
)

// PositionWriter persists the display position of a single task.
type PositionWriter interface {
	UpdatePosition(ctx context.Context, id int64, position int) error
}

type positionWrite struct {
	id       int64
	position int
}

// request is either a write or, when done is set, a flush marker.
type request struct {
	write positionWrite
	done  chan struct{}
}

// writeQueue applies position writes on a single background goroutine in
// submission order. Callers never wait for an individual write; failures are
// collected and handed back by the next Flush.
type writeQueue struct {
	store PositionWriter
	log   zerolog.Logger
	ch    chan request
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	errMu sync.Mutex
	errs  []error
}

func newWriteQueue(store PositionWriter, log zerolog.Logger) *writeQueue {
	q := &writeQueue{
		store: store,
		log:   log,
		ch:    make(chan request, queueSize),
	}
	q.wg.Add(1)
	go q.run()
	return q
}

func (q *writeQueue) run() {
	defer q.wg.Done()
	for req := range q.ch {
		if req.done != nil {
			close(req.done)
			continue
		}
		q.apply(req.write)
	}
}

func (q *writeQueue) apply(w positionWrite) {
	ctx := context.Background()

	var err error
	for attempt := 0; attempt < busyRetries; attempt++ {
		err = q.store.UpdatePosition(ctx, w.id, w.position)
		if !storage.IsBusyError(err) {
			break
		}
		time.Sleep(busyRetryDelay * time.Duration(attempt+1))
	}

	switch {
	case err == nil:
		q.log.Debug().Int64("task_id", w.id).Int("position", w.position).Msg("position saved")
	case errors.Is(err, storage.ErrNotFound):
		// The task was deleted after the write was queued.
		q.log.Debug().Int64("task_id", w.id).Msg("position write skipped, task gone")
	default:
		q.log.Error().Err(err).Int64("task_id", w.id).Int("position", w.position).Msg("position write failed")
		q.errMu.Lock()
		q.errs = append(q.errs, err)
		q.errMu.Unlock()
	}
}

// Enqueue submits a position write. It returns false once the queue is
// closed.
func (q *writeQueue) Enqueue(id int64, position int) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return false
	}
	q.ch <- request{write: positionWrite{id: id, position: position}}
	return true
}

// Flush waits until every write submitted before the call has been applied
// and returns the failures collected since the previous Flush.
func (q *writeQueue) Flush(ctx context.Context) error {
	done := make(chan struct{})

	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return q.takeErrors()
	}
	q.ch <- request{done: done}
	q.mu.RUnlock()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return q.takeErrors()
}

// Close drains outstanding writes and stops the worker.
func (q *writeQueue) Close() error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
	q.mu.Unlock()

	q.wg.Wait()
	return q.takeErrors()
}

func (q *writeQueue) takeErrors() error {
	q.errMu.Lock()
	defer q.errMu.Unlock()
	err := errors.Join(q.errs...)
	q.errs = nil
	return err
}
