package core

// pipeline.go wires the engine together for one domain:
//
//	bytes -> RowParser -> Validator -> Split -> Executor -> Aggregator
//
// with a progress event at start, after every terminal batch, and at the end.

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// ImportRequest is one submitted file.
type ImportRequest struct {
	UploadID  string
	Scope     Scope
	BatchSize int // <= 0 uses DefaultBatchSize
	Source    io.Reader
	FileName  string
}

// JobEnv carries the collaborators a job runs against.
type JobEnv struct {
	Store       Store
	Broadcaster Broadcaster
	MaxRetries  int
	Backoff     BackoffPolicy
	Sleep       SleepFunc
	Logger      *slog.Logger
	Now         func() time.Time
}

func (env JobEnv) withDefaults() JobEnv {
	if env.Broadcaster == nil {
		env.Broadcaster = NopBroadcaster{}
	}
	if env.Logger == nil {
		env.Logger = slog.Default()
	}
	if env.Now == nil {
		env.Now = time.Now
	}
	return env
}

// Importer runs imports for one domain. Pipeline is the only implementation;
// the interface erases its result type so importers can share a registry.
type Importer interface {
	Info() DomainInfo
	Columns() []ColumnSpec
	Import(ctx context.Context, env JobEnv, req ImportRequest) (*ResultSummary, error)
}

// Pipeline is the import flow for a domain whose processor yields R.
type Pipeline[R any] struct {
	info     DomainInfo
	cols     []ColumnSpec
	validate Validator
	proc     DomainProcessor[R]
}

// NewPipeline creates a pipeline. rules run after the column checks.
func NewPipeline[R any](info DomainInfo, cols []ColumnSpec, proc DomainProcessor[R], rules ...Rule) *Pipeline[R] {
	return &Pipeline[R]{
		info:     info,
		cols:     cols,
		validate: NewValidator(cols, rules...),
		proc:     proc,
	}
}

// Info implements Importer.
func (p *Pipeline[R]) Info() DomainInfo { return p.info }

// Columns implements Importer.
func (p *Pipeline[R]) Columns() []ColumnSpec { return p.cols }

// Import runs the whole job. It returns a *JobError wrapping
// ErrNoValidItems, together with the partial summary, when nothing
// survives parsing and validation; no session is acquired in that case.
// Batch failures are reported in the summary, never as an error.
func (p *Pipeline[R]) Import(ctx context.Context, env JobEnv, req ImportRequest) (*ResultSummary, error) {
	env = env.withDefaults()
	start := env.Now()
	log := env.Logger.With("upload_id", req.UploadID, "domain", p.info.Key)

	tracker := &progressTracker{uploadID: req.UploadID, merchantID: req.Scope.MerchantID}
	publish := func(currentBatch int, errs []string, errorCount int, completed bool) {
		env.Broadcaster.Publish(req.UploadID, tracker.event(currentBatch, errs, errorCount, completed))
	}

	agg := NewAggregator()
	valid, err := p.collect(req.Source, agg, log)
	if err != nil {
		// Subscribers that connected before the upload still get a terminal event.
		publish(0, []string{err.Error()}, 1, true)
		return nil, err
	}

	if len(valid) == 0 {
		summary := agg.Summary(env.Now().Sub(start))
		log.Info("import rejected, no valid items", "errors", summary.ErrorCount)
		publish(0, sampleErrors(summary.Errors), summary.ErrorCount, true)
		return &summary, &JobError{Err: ErrNoValidItems, Errors: summary.Errors}
	}

	size := req.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	batches := Split(valid, size)
	agg.SetTotalBatches(len(batches))

	job := UploadJob{
		UploadID:   req.UploadID,
		Scope:      req.Scope,
		Domain:     p.info.Key,
		TotalItems: len(valid),
		BatchSize:  size,
		CreatedAt:  start,
	}
	tracker.totalItems = job.TotalItems
	tracker.totalBatches = len(batches)

	log.Info("import started", "items", job.TotalItems, "batches", len(batches), "batch_size", size)
	errs, errCount := agg.ErrorSample(MaxProgressErrors)
	publish(0, errs, errCount, false)

	sess, err := env.Store.Acquire(ctx)
	if err != nil {
		err = fmt.Errorf("acquire connection: %w", err)
		errs, errCount := agg.ErrorSample(MaxProgressErrors - 1)
		publish(0, append(errs, err.Error()), errCount+1, true)
		return nil, err
	}
	defer sess.Release()

	exec := NewExecutor(p.proc, ExecutorOptions{
		MaxRetries: env.MaxRetries,
		Backoff:    env.Backoff,
		Sleep:      env.Sleep,
		Logger:     log,
	})
	exec.Run(ctx, sess, job, batches, func(o BatchOutcome[R]) {
		agg.Fold(o.Report())
		tracker.processed += o.Size
		errs, errCount := agg.ErrorSample(MaxProgressErrors)
		publish(o.Index+1, errs, errCount, false)
	})

	summary := agg.Summary(env.Now().Sub(start))
	publish(len(batches), sampleErrors(summary.Errors), summary.ErrorCount, true)

	log.Info("import finished",
		"success", summary.Success,
		"processed", summary.ProcessedCount,
		"created", summary.CreatedCount,
		"updated", summary.UpdatedCount,
		"errors", summary.ErrorCount,
		"failed_batches", summary.FailedBatches,
		"duration_ms", summary.DurationMs,
	)
	return &summary, nil
}

// collect parses and validates every row, recording problems in agg.
func (p *Pipeline[R]) collect(src io.Reader, agg *Aggregator, log *slog.Logger) ([]CandidateItem, error) {
	parser, err := NewRowParser(src, p.cols)
	if err != nil {
		return nil, &JobError{Err: err}
	}
	if unknown := parser.UnknownHeaders(); len(unknown) > 0 {
		log.Debug("ignoring unknown columns", "columns", unknown)
	}

	var valid []CandidateItem
	for {
		rec, err := parser.Next()
		if errors.Is(err, io.EOF) {
			return valid, nil
		}
		var rowErr *RowParseError
		if errors.As(err, &rowErr) {
			agg.AddParseError(rowErr)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read rows: %w", err)
		}

		item := CandidateItem{Line: rec.Line, Fields: rec.Fields}
		res := p.validate(item)
		item.Valid, item.Reason = res.Valid, res.Reason()
		if !res.Valid {
			agg.AddValidationError(res.Error)
			continue
		}
		valid = append(valid, item)
	}
}

// sampleErrors returns a copy of at most MaxProgressErrors of errs.
func sampleErrors(errs []string) []string {
	n := min(len(errs), MaxProgressErrors)
	out := make([]string, n)
	copy(out, errs[:n])
	return out
}
