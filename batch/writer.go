// Package batch queues document writes and commits them as one atomic unit
// against a pluggable backend.
//
// Queueing (Set, Update, Delete, Add) never touches the network and fails
// immediately on a malformed path. Commit applies everything queued in one
// backend call and always leaves the queue empty afterwards.
package batch

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/legisync/errors"
	"github.com/teranos/legisync/logger"
)

// DefaultMaxOps is the per-commit operation ceiling of the document store
const DefaultMaxOps = 500

// Backend applies a batch of operations atomically: all or none
type Backend interface {
	Name() string
	MaxOps() int
	Apply(ctx context.Context, ops []Operation) error
}

// Writer is a queue of pending operations with an atomic commit
type Writer interface {
	Set(path string, data map[string]any, opts ...SetOption) error
	Update(path string, data map[string]any) error
	Delete(path string) error
	Add(op Operation) error
	Pending() int
	MaxOps() int
	Discard() int
	Commit(ctx context.Context) (*Result, error)
}

// Queue is the Writer shared by every backend
type Queue struct {
	backend Backend
	logger  *zap.SugaredLogger

	mu  sync.Mutex
	ops []Operation
}

// New creates a writer over backend
func New(backend Backend, log *zap.SugaredLogger) *Queue {
	if log == nil {
		log = logger.ComponentLogger("batch")
	}
	return &Queue{
		backend: backend,
		logger:  log.With(logger.FieldBackend, backend.Name()),
	}
}

// Backend returns the backend commits go to
func (q *Queue) Backend() Backend {
	return q.backend
}

// Set queues a full replace (or merge, with Merge/MergeFields)
func (q *Queue) Set(path string, data map[string]any, opts ...SetOption) error {
	op, err := SetOp(path, data, opts...)
	if err != nil {
		return err
	}
	return q.Add(op)
}

// Update queues a partial merge into an existing document
func (q *Queue) Update(path string, data map[string]any) error {
	op, err := UpdateOp(path, data)
	if err != nil {
		return err
	}
	return q.Add(op)
}

// Delete queues a document delete
func (q *Queue) Delete(path string) error {
	op, err := DeleteOp(path)
	if err != nil {
		return err
	}
	return q.Add(op)
}

// Add queues a prepared operation
func (q *Queue) Add(op Operation) error {
	if err := op.validate(); err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.ops) >= q.backend.MaxOps() {
		return errors.NewValidationError("batch is full (%d operations), commit before queueing %s %s",
			q.backend.MaxOps(), op.Kind, op.Path)
	}
	q.ops = append(q.ops, op)
	return nil
}

// Pending returns the number of queued operations
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ops)
}

// Discard drops every queued operation and returns how many there were
func (q *Queue) Discard() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.ops)
	q.ops = nil
	return n
}

// MaxOps returns the backend's per-commit ceiling
func (q *Queue) MaxOps() int {
	return q.backend.MaxOps()
}

// Commit applies all queued operations in one backend call. The queue is
// cleared whether or not the backend accepted the batch. On failure the
// returned error is a *CommitError carrying the same Result.
func (q *Queue) Commit(ctx context.Context) (*Result, error) {
	q.mu.Lock()
	ops := q.ops
	q.ops = nil
	q.mu.Unlock()

	if len(ops) == 0 {
		return &Result{Backend: q.backend.Name()}, nil
	}

	start := time.Now()
	err := q.backend.Apply(ctx, ops)
	elapsed := time.Since(start).Milliseconds()

	result := newResult(q.backend.Name(), ops, err, elapsed)
	if err != nil {
		q.logger.Errorw("Batch commit failed",
			logger.FieldBatchSize, len(ops),
			logger.FieldDurationMS, elapsed,
			logger.FieldError, err.Error(),
		)
		return result, errors.Mark(&CommitError{Result: result, Err: err}, errors.ErrBatchCommit)
	}

	q.logger.Debugw("Batch committed",
		logger.FieldBatchSize, len(ops),
		logger.FieldDurationMS, elapsed,
	)
	return result, nil
}
