package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/japaniel/hoverdict/pkg/logging"
)

// WriteFunc performs database writes inside the batch transaction.
type WriteFunc func(ctx context.Context, tx *sql.Tx) error

// CheckpointFunc runs after the writes of a batch, in the same transaction.
// The ingester uses it to store the last annotated sentence of the source.
type CheckpointFunc func(ctx context.Context, tx *sql.Tx) error

// BatchWriter groups writes into transactions of up to size writes. A batch
// is committed when it is full, when the flush interval elapses, or on Close.
// Batches are committed one at a time, in submission order.
type BatchWriter struct {
	// Checkpoint is called once per batch after its writes. nil skips it.
	Checkpoint CheckpointFunc
	// OnError receives every asynchronous failure: failed commits and
	// batches dropped after cancellation.
	OnError func(error)
	// Logger receives a debug line per committed batch. nil means no logging.
	Logger logging.Logger

	db   *sql.DB
	size int

	mu      sync.Mutex
	pending []WriteFunc
	closed  bool

	queue  chan []WriteFunc
	ticker *time.Ticker
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	committed atomic.Int64

	errMu    sync.Mutex
	firstErr error
}

// NewBatchWriter starts a writer over conn. A non-positive size defaults to
// 10; a zero flushInterval disables time-based flushing. A nil conn runs the
// writes with a nil transaction, which tests use to observe batching alone.
func NewBatchWriter(conn *sql.DB, size int, flushInterval time.Duration) *BatchWriter {
	if size <= 0 {
		size = 10
	}
	ctx, cancel := context.WithCancel(context.Background())
	bw := &BatchWriter{
		db:      conn,
		size:    size,
		pending: make([]WriteFunc, 0, size),
		queue:   make(chan []WriteFunc, 2),
		ctx:     ctx,
		cancel:  cancel,
	}

	bw.wg.Add(1)
	go bw.commitLoop()

	if flushInterval > 0 {
		bw.ticker = time.NewTicker(flushInterval)
		bw.wg.Add(1)
		go bw.tickLoop()
	}
	return bw
}

// Submit queues w. It blocks while two full batches are already waiting to
// be committed.
func (bw *BatchWriter) Submit(w WriteFunc) error {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	if bw.closed {
		return ErrBatchWriterClosed
	}
	bw.pending = append(bw.pending, w)
	if len(bw.pending) >= bw.size {
		bw.enqueueLocked()
	}
	return nil
}

// enqueueLocked hands the pending writes to the committer. bw.mu must be held.
func (bw *BatchWriter) enqueueLocked() {
	if len(bw.pending) == 0 {
		return
	}
	batch := bw.pending
	bw.pending = make([]WriteFunc, 0, bw.size)

	select {
	case bw.queue <- batch:
	case <-bw.ctx.Done():
		bw.fail(fmt.Errorf("batch writer: dropping batch of %d items due to context cancellation", len(batch)))
	}
}

func (bw *BatchWriter) commitLoop() {
	defer bw.wg.Done()
	for batch := range bw.queue {
		if err := bw.commit(batch); err != nil {
			bw.fail(err)
		}
	}
}

func (bw *BatchWriter) tickLoop() {
	defer bw.wg.Done()
	for {
		select {
		case <-bw.ctx.Done():
			return
		case <-bw.ticker.C:
			bw.mu.Lock()
			bw.enqueueLocked()
			bw.mu.Unlock()
		}
	}
}

func (bw *BatchWriter) commit(batch []WriteFunc) error {
	// bw.ctx is canceled by Close while the last batches are still queued.
	ctx := context.Background()

	if bw.db == nil {
		if err := bw.apply(ctx, nil, batch); err != nil {
			return err
		}
		bw.committed.Add(int64(len(batch)))
		return nil
	}

	tx, err := bw.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin batch tx: %w", err)
	}
	defer tx.Rollback() // no-op after Commit

	if err := bw.apply(ctx, tx, batch); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch (%d items): %w", len(batch), err)
	}
	bw.committed.Add(int64(len(batch)))
	logging.OrNop(bw.Logger).Debugf("batch writer: committed %d writes", len(batch))
	return nil
}

func (bw *BatchWriter) apply(ctx context.Context, tx *sql.Tx, batch []WriteFunc) error {
	for _, w := range batch {
		if err := w(ctx, tx); err != nil {
			return err
		}
	}
	if bw.Checkpoint != nil {
		if err := bw.Checkpoint(ctx, tx); err != nil {
			return fmt.Errorf("checkpoint: %w", err)
		}
	}
	return nil
}

// fail keeps the first error for Close and reports every error to OnError.
func (bw *BatchWriter) fail(err error) {
	bw.errMu.Lock()
	if bw.firstErr == nil {
		bw.firstErr = err
	}
	bw.errMu.Unlock()
	if bw.OnError != nil {
		bw.OnError(err)
	}
}

// Committed returns the number of writes committed so far.
func (bw *BatchWriter) Committed() int64 {
	return bw.committed.Load()
}

// Close commits what is pending, waits for the committer and returns the
// first error seen. Later calls return ErrBatchWriterClosed.
func (bw *BatchWriter) Close() error {
	bw.mu.Lock()
	if bw.closed {
		bw.mu.Unlock()
		return ErrBatchWriterClosed
	}
	bw.closed = true
	if bw.ticker != nil {
		bw.ticker.Stop()
	}
	bw.enqueueLocked()
	bw.mu.Unlock()

	bw.cancel()
	close(bw.queue)
	bw.wg.Wait()

	bw.errMu.Lock()
	defer bw.errMu.Unlock()
	return bw.firstErr
}

// ErrBatchWriterClosed is returned by Submit and Close after Close.
var ErrBatchWriterClosed = &BatchWriterError{"batch writer closed"}

type BatchWriterError struct{ msg string }

func (e *BatchWriterError) Error() string { return e.msg }
