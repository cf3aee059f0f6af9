package core

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the interface for database operations.
// Satisfied by *pgxpool.Pool, *pgxpool.Conn and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Tx is one batch transaction.
type Tx interface {
	DBTX
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Session is a connection checked out for the lifetime of one job.
// Every batch transaction of the job is opened on the same session.
type Session interface {
	Begin(ctx context.Context) (Tx, error)
	Release()
}

// Store hands out job sessions.
type Store interface {
	Acquire(ctx context.Context) (Session, error)
}

// Scope identifies the tenant a job writes for. It is supplied by
// trusted middleware and never derived from file contents.
type Scope struct {
	MerchantID string
}

// FieldType represents the expected data type for a CSV field.
type FieldType int

const (
	FieldText FieldType = iota
	FieldEnum
	FieldDate
	FieldNumeric
	FieldInteger
)

// ColumnSpec describes one logical column of a domain import.
type ColumnSpec struct {
	Name        string              // Canonical field name, used as the key in CandidateItem.Fields
	Aliases     []string            // Alternative header spellings, matched case-insensitively
	Type        FieldType           // Expected data type
	Required    bool                // Value must be non-empty
	Identity    bool                // Row is unparseable without at least one identity value
	NonNegative bool                // Numeric and integer values must be >= 0
	EnumValues  []string            // Valid values for FieldEnum type
	Normalizer  func(string) string // Optional transformation applied after cell cleaning
}

// DomainInfo contains display information about an import domain.
type DomainInfo struct {
	Key   string `json:"key"`   // Route key: "inventory"
	Label string `json:"label"` // Display name: "Inventory Items"
	Table string `json:"table"` // Target table: "inventory_items"
}

// UploadJob is the in-memory state of one pipeline run.
type UploadJob struct {
	UploadID   string
	Scope      Scope
	Domain     string
	TotalItems int
	BatchSize  int
	CreatedAt  time.Time
}

// CandidateItem is one parsed row. Fields are keyed by canonical column name.
type CandidateItem struct {
	Line   int
	Fields map[string]string
	Valid  bool
	Reason string
}

// Get returns the value of a field, or "" if absent.
func (c CandidateItem) Get(name string) string {
	return c.Fields[name]
}

// BatchStatus is the lifecycle state of a batch.
type BatchStatus string

const (
	BatchPending    BatchStatus = "pending"
	BatchProcessing BatchStatus = "processing"
	BatchCommitted  BatchStatus = "committed"
	BatchFailed     BatchStatus = "failed"
)

// Batch is a fixed-size slice of valid items committed in one transaction.
// Index is zero-based; user-facing messages number batches from 1.
type Batch struct {
	Index   int
	Items   []CandidateItem
	Attempt int
	Status  BatchStatus
}

// Number returns the one-based batch number used in messages.
func (b *Batch) Number() int {
	return b.Index + 1
}

// ProgressEvent is a snapshot of job completion. It is never modified
// after it has been published.
//
// Errors holds at most MaxProgressErrors messages, oldest first;
// ErrorCount is the total so far. MerchantID scopes the event to its
// tenant and is never serialized to clients.
type ProgressEvent struct {
	UploadID       string   `json:"uploadId"`
	MerchantID     string   `json:"-"`
	Progress       int      `json:"progress"`
	CurrentItem    int      `json:"currentItem"`
	TotalItems     int      `json:"totalItems"`
	ProcessedItems int      `json:"processedItems"`
	Errors         []string `json:"errors"`
	ErrorCount     int      `json:"errorCount"`
	Completed      bool     `json:"completed"`
	CurrentBatch   int      `json:"currentBatch,omitempty"`
	TotalBatches   int      `json:"totalBatches,omitempty"`
}

// ResultSummary is the final outcome of a job.
type ResultSummary struct {
	Success           bool     `json:"success"`
	ProcessedCount    int      `json:"processedCount"`
	ErrorCount        int      `json:"errorCount"`
	Errors            []string `json:"errors"`
	TotalBatches      int      `json:"totalBatches"`
	SuccessfulBatches int      `json:"successfulBatches"`
	FailedBatches     int      `json:"failedBatches"`
	CreatedCount      int      `json:"createdCount"`
	UpdatedCount      int      `json:"updatedCount"`
	SkippedCount      int      `json:"skippedCount"`
	Notices           []string `json:"notices,omitempty"`
	DurationMs        int64    `json:"durationMs"`
}

// ItemAction reports what an upsert did to a row.
type ItemAction string

const (
	ActionCreated ItemAction = "created"
	ActionUpdated ItemAction = "updated"
)

// Notable is implemented by processor results that deserve a mention in
// the job summary without being errors.
type Notable interface {
	// Notice returns a short message and whether there is one.
	Notice() (string, bool)
}

// ItemOutcome is the per-item result of a domain processor. A non-nil Err
// marks an item-level business rejection: the item is not written but the
// rest of the batch still commits.
type ItemOutcome[R any] struct {
	Line   int
	Key    string
	Action ItemAction
	Result R
	Err    error
}
