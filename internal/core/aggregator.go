package core

import (
	"fmt"
	"time"
)

// Aggregator folds parse errors, validation errors and batch outcomes
// into a ResultSummary. It is owned by the coordinating flow of one job
// and is not safe for concurrent use.
type Aggregator struct {
	errors  []string
	notices []string

	totalBatches int
	successful   int
	failed       int
	processed    int
	created      int
	updated      int
	skipped      int
}

// NewAggregator returns an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// AddParseError records a row that could not be parsed.
func (a *Aggregator) AddParseError(err error) {
	a.errors = append(a.errors, err.Error())
}

// AddValidationError records an item excluded by the validator.
func (a *Aggregator) AddValidationError(err *ValidationError) {
	a.errors = append(a.errors, err.Error())
}

// SetTotalBatches records how many batches the job was split into.
func (a *Aggregator) SetTotalBatches(n int) {
	a.totalBatches = n
}

// Commit folds a committed batch. All of its items count as processed;
// item-level rejections are also recorded as errors and skipped items.
func (a *Aggregator) Commit(r BatchReport) {
	a.successful++
	a.processed += r.Size
	a.created += r.Created
	a.updated += r.Updated
	a.skipped += len(r.ItemErrors)
	a.errors = append(a.errors, r.ItemErrors...)
	a.notices = append(a.notices, r.Notices...)
}

// Fail folds a batch whose retries were exhausted. Its items are not
// counted as processed and a single error names the batch.
func (a *Aggregator) Fail(r BatchReport) {
	a.failed++
	if r.Err != nil {
		a.errors = append(a.errors, r.Err.Error())
		return
	}
	a.errors = append(a.errors, fmt.Sprintf("batch %d failed", r.Index+1))
}

// Fold dispatches a report on its terminal status.
func (a *Aggregator) Fold(r BatchReport) {
	if r.Status == BatchCommitted {
		a.Commit(r)
		return
	}
	a.Fail(r)
}

// Errors returns a copy of the errors recorded so far, in production order.
func (a *Aggregator) Errors() []string {
	out := make([]string, len(a.errors))
	copy(out, a.errors)
	return out
}

// ErrorSample returns a copy of at most n of the earliest errors and the
// total number recorded.
func (a *Aggregator) ErrorSample(n int) ([]string, int) {
	if n > len(a.errors) {
		n = len(a.errors)
	}
	out := make([]string, n)
	copy(out, a.errors[:n])
	return out, len(a.errors)
}

// Summary returns the job summary.
func (a *Aggregator) Summary(elapsed time.Duration) ResultSummary {
	return ResultSummary{
		Success:           a.failed == 0 && len(a.errors) == 0,
		ProcessedCount:    a.processed,
		ErrorCount:        len(a.errors),
		Errors:            a.Errors(),
		TotalBatches:      a.totalBatches,
		SuccessfulBatches: a.successful,
		FailedBatches:     a.failed,
		CreatedCount:      a.created,
		UpdatedCount:      a.updated,
		SkippedCount:      a.skipped,
		Notices:           append([]string(nil), a.notices...),
		DurationMs:        elapsed.Milliseconds(),
	}
}

// Message renders the completion message shown to callers. Partial
// success is reported as such rather than as overall success.
func (s ResultSummary) Message(label string) string {
	switch {
	case s.Success:
		return fmt.Sprintf("Imported %d %s in %d batches", s.ProcessedCount, label, s.TotalBatches)
	case s.FailedBatches > 0:
		return fmt.Sprintf("Import completed with errors: %d of %d batches failed, %d %s processed",
			s.FailedBatches, s.TotalBatches, s.ProcessedCount, label)
	default:
		return fmt.Sprintf("Import completed with errors: %d %s processed, %d errors",
			s.ProcessedCount, label, s.ErrorCount)
	}
}
