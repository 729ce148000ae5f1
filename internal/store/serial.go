// File: internal/store/serial.go
package store

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/formweaver/formweaver/api/schemas"
)

// SerialStore wraps any BatchStore and routes every operation through a
// single in-process queue, guaranteeing that concurrent persistence calls
// against the same underlying store are strictly ordered. Interleaved
// read-modify-write cycles would otherwise lose updates.
type SerialStore struct {
	inner  schemas.BatchStore
	logger *zap.Logger

	queue     chan writeTask
	closeOnce sync.Once
	done      chan struct{}
}

type writeTask struct {
	ctx     context.Context
	batchID string
	batch   *schemas.Batch
	result  chan error
}

// NewSerialStore starts the write queue over the given store.
func NewSerialStore(inner schemas.BatchStore, logger *zap.Logger) *SerialStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &SerialStore{
		inner:  inner,
		logger: logger.Named("store"),
		queue:  make(chan writeTask, 64),
		done:   make(chan struct{}),
	}
	go s.drain()
	return s
}

// drain is the single writer. All saves funnel through here in arrival
// order.
func (s *SerialStore) drain() {
	for task := range s.queue {
		task.result <- s.inner.Save(task.ctx, task.batchID, task.batch)
	}
	close(s.done)
}

// Save implements schemas.BatchStore. It blocks until the queued write has
// been applied so callers keep the persist-then-continue semantics.
func (s *SerialStore) Save(ctx context.Context, batchID string, batch *schemas.Batch) (err error) {
	defer func() {
		if r := recover(); r != nil {
			// Save after Close.
			err = fmt.Errorf("store is closed")
		}
	}()

	task := writeTask{ctx: ctx, batchID: batchID, batch: batch, result: make(chan error, 1)}
	select {
	case s.queue <- task:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-task.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LoadAll implements schemas.BatchStore. Reads go straight to the inner
// store; only writes need ordering.
func (s *SerialStore) LoadAll(ctx context.Context) (map[string]*schemas.Batch, error) {
	return s.inner.LoadAll(ctx)
}

// Close stops the writer after the queue is drained. Save calls made after
// Close fail.
func (s *SerialStore) Close() {
	s.closeOnce.Do(func() {
		close(s.queue)
		<-s.done
	})
}
