package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNoValidItems is returned when nothing in the file survived parsing
	// and validation. No transaction is opened.
	ErrNoValidItems = errors.New("no valid items")

	// ErrEmptyFile is returned when the input has no header row.
	ErrEmptyFile = errors.New("empty file")

	// ErrMissingColumns is returned when the header cannot resolve any
	// identity column for the domain.
	ErrMissingColumns = errors.New("missing required column")

	// ErrUnknownDomain is returned for import domains that are not registered.
	ErrUnknownDomain = errors.New("unknown import domain")

	// ErrJobNotFound is returned when no active or recorded job matches an upload ID.
	ErrJobNotFound = errors.New("import job not found")

	// ErrJobCancelled is the cause recorded for batches skipped after cancellation.
	ErrJobCancelled = errors.New("import job cancelled")

	// ErrMissingScope is returned when an import has no merchant scope.
	ErrMissingScope = errors.New("merchant scope is required")

	// ErrJobActive is returned when an upload ID is already running.
	ErrJobActive = errors.New("import already running for upload id")
)

// RowParseError is a row that could not be mapped to a candidate item.
// The row is skipped and parsing continues.
type RowParseError struct {
	Line   int
	Reason string
}

func (e *RowParseError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Line, e.Reason)
}

// ValidationError is a parsed item that failed a business rule.
type ValidationError struct {
	Line    int
	Field   string // Canonical column name
	Value   string // The invalid value
	Message string // Human-readable error message
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("row %d: %s: %s", e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("row %d: %s", e.Line, e.Message)
}

// BatchError is one failed attempt at a batch. The transaction was rolled
// back and the batch may be retried.
type BatchError struct {
	Index   int
	Attempt int
	Err     error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch %d attempt %d: %v", e.Index+1, e.Attempt, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// BatchFailedError records a batch whose retries were exhausted. None of
// its items were written; the job continues with the next batch.
type BatchFailedError struct {
	Index    int
	Attempts int
	Err      error
}

func (e *BatchFailedError) Error() string {
	return fmt.Sprintf("batch %d failed after %d attempts: %v", e.Index+1, e.Attempts, rootCause(e.Err))
}

func (e *BatchFailedError) Unwrap() error { return e.Err }

// rootCause strips BatchError wrappers so failure messages name the
// underlying problem once.
func rootCause(err error) error {
	var be *BatchError
	for errors.As(err, &be) {
		err = be.Err
	}
	return err
}

// JobError rejects a whole import request. Errors carries every row-level
// problem found before the job was rejected.
type JobError struct {
	Err    error
	Errors []string
}

func (e *JobError) Error() string {
	if len(e.Errors) == 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v (%d row errors)", e.Err, len(e.Errors))
}

func (e *JobError) Unwrap() error { return e.Err }
