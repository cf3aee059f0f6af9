package core

// executor.go owns the batch lifecycle:
//
//	pending -> processing -> committed
//	                      -> processing (retry after backoff)
//	                      -> failed (retries exhausted or job cancelled)
//
// Batches run strictly one at a time in index order on the job's session.
// A failed batch never stops the job.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
)

// DefaultMaxRetries is the number of attempts made per batch.
const DefaultMaxRetries = 3

// DomainProcessor writes one batch inside the executor's transaction.
// A returned error rolls the batch back and makes it eligible for retry.
// Per-item business problems are reported in ItemOutcome.Err instead.
type DomainProcessor[R any] interface {
	Process(ctx context.Context, tx DBTX, job UploadJob, items []CandidateItem) ([]ItemOutcome[R], error)
}

// ExecutorOptions configures retry behaviour.
type ExecutorOptions struct {
	MaxRetries int           // Attempts per batch (default: 3)
	Backoff    BackoffPolicy // Delay between attempts (default: linear, 1s base)
	Sleep      SleepFunc     // Replaced in tests
	Logger     *slog.Logger
}

// Executor runs batches through a domain processor.
type Executor[R any] struct {
	proc DomainProcessor[R]
	opts ExecutorOptions
}

// NewExecutor creates an executor, filling unset options with defaults.
func NewExecutor[R any](proc DomainProcessor[R], opts ExecutorOptions) *Executor[R] {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.Backoff == nil {
		opts.Backoff = LinearBackoff{Base: DefaultRetryDelay}
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Executor[R]{proc: proc, opts: opts}
}

// BatchOutcome is the immutable result of running one batch.
type BatchOutcome[R any] struct {
	Index    int
	Size     int
	Status   BatchStatus
	Attempts int
	Items    []ItemOutcome[R] // nil unless committed
	Err      error            // *BatchFailedError when failed
}

// Run executes batches in order, handing each outcome to done before the
// next batch starts. Once ctx ends, the remaining batches fail without
// being attempted.
func (e *Executor[R]) Run(ctx context.Context, sess Session, job UploadJob, batches []*Batch, done func(BatchOutcome[R])) {
	for _, b := range batches {
		done(e.Execute(ctx, sess, job, b))
	}
}

// Execute drives a single batch to a terminal state.
func (e *Executor[R]) Execute(ctx context.Context, sess Session, job UploadJob, b *Batch) BatchOutcome[R] {
	b.Status = BatchProcessing
	log := e.opts.Logger.With("batch", b.Number(), "size", len(b.Items))

	for {
		if err := ctx.Err(); err != nil {
			return e.fail(b, fmt.Errorf("%w: %v", ErrJobCancelled, err))
		}

		b.Attempt++
		items, err := e.attempt(ctx, sess, job, b)
		if err == nil {
			b.Status = BatchCommitted
			log.Debug("batch committed", "attempt", b.Attempt)
			return BatchOutcome[R]{
				Index:    b.Index,
				Size:     len(b.Items),
				Status:   BatchCommitted,
				Attempts: b.Attempt,
				Items:    items,
			}
		}

		berr := &BatchError{Index: b.Index, Attempt: b.Attempt, Err: err}
		if b.Attempt >= e.opts.MaxRetries {
			log.Error("batch failed", "attempts", b.Attempt, "error", err)
			return e.fail(b, berr)
		}

		delay := e.opts.Backoff.NextDelay(b.Attempt)
		log.Warn("batch attempt failed, retrying", "attempt", b.Attempt, "delay", delay, "error", err)
		if err := e.opts.Sleep(ctx, delay); err != nil {
			return e.fail(b, fmt.Errorf("%w during retry: %v", ErrJobCancelled, berr))
		}
	}
}

// attempt runs one transaction. Panics inside the processor are turned
// into errors so the batch is rolled back and retried like any failure.
func (e *Executor[R]) attempt(ctx context.Context, sess Session, job UploadJob, b *Batch) (items []ItemOutcome[R], err error) {
	tx, err := sess.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if r := recover(); r != nil {
			items, err = nil, fmt.Errorf("processor panic: %v", r)
		}
		if committed {
			return
		}
		// Roll back even when ctx has ended so the session is reusable.
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			e.opts.Logger.Warn("rollback failed", "batch", b.Number(), "error", rbErr)
		}
	}()

	items, err = e.proc.Process(ctx, tx, job, b.Items)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	committed = true
	return items, nil
}

func (e *Executor[R]) fail(b *Batch, cause error) BatchOutcome[R] {
	b.Status = BatchFailed
	return BatchOutcome[R]{
		Index:    b.Index,
		Size:     len(b.Items),
		Status:   BatchFailed,
		Attempts: b.Attempt,
		Err:      &BatchFailedError{Index: b.Index, Attempts: b.Attempt, Err: cause},
	}
}

// BatchReport is the type-erased form of a BatchOutcome consumed by the
// aggregator.
type BatchReport struct {
	Index      int
	Size       int
	Status     BatchStatus
	Attempts   int
	Created    int
	Updated    int
	ItemErrors []string
	Notices    []string
	Err        error
}

// Report erases the processor's result type.
func (o BatchOutcome[R]) Report() BatchReport {
	r := BatchReport{
		Index:    o.Index,
		Size:     o.Size,
		Status:   o.Status,
		Attempts: o.Attempts,
		Err:      o.Err,
	}
	for _, it := range o.Items {
		switch {
		case it.Err != nil:
			r.ItemErrors = append(r.ItemErrors, fmt.Sprintf("row %d: %v", it.Line, it.Err))
		case it.Action == ActionUpdated:
			r.Updated++
		default:
			r.Created++
		}
		if it.Err != nil {
			continue
		}
		if n, ok := any(it.Result).(Notable); ok {
			if msg, ok := n.Notice(); ok {
				r.Notices = append(r.Notices, fmt.Sprintf("row %d: %s: %s", it.Line, it.Key, msg))
			}
		}
	}
	return r
}
