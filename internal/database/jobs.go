package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/merchant-import/internal/core"
)

// JobStore keeps import job summaries in import_jobs.
type JobStore struct {
	db core.DBTX
}

// NewJobStore creates a JobStore. db is usually the pool.
func NewJobStore(db core.DBTX) *JobStore {
	return &JobStore{db: db}
}

var _ core.JobRecorder = (*JobStore)(nil)

const jobColumns = `upload_id, merchant_id, domain, file_name, status, batch_size,
	summary, error, started_at, finished_at`

const upsertJob = `INSERT INTO import_jobs (` + jobColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (merchant_id, upload_id) DO UPDATE SET
		domain = EXCLUDED.domain,
		file_name = EXCLUDED.file_name,
		status = EXCLUDED.status,
		batch_size = EXCLUDED.batch_size,
		summary = EXCLUDED.summary,
		error = EXCLUDED.error,
		started_at = EXCLUDED.started_at,
		finished_at = EXCLUDED.finished_at`

// RecordJob implements core.JobRecorder.
func (s *JobStore) RecordJob(ctx context.Context, rec core.JobRecord) error {
	var summary []byte
	if rec.Summary != nil {
		var err error
		if summary, err = json.Marshal(rec.Summary); err != nil {
			return fmt.Errorf("encode summary: %w", err)
		}
	}

	var finished pgtype.Timestamptz
	if rec.FinishedAt != nil {
		finished = pgtype.Timestamptz{Time: *rec.FinishedAt, Valid: true}
	}

	_, err := s.db.Exec(ctx, upsertJob,
		rec.UploadID,
		rec.MerchantID,
		rec.Domain,
		core.ToPgText(rec.FileName),
		string(rec.Status),
		rec.BatchSize,
		summary,
		core.ToPgText(rec.Error),
		rec.StartedAt,
		finished,
	)
	if err != nil {
		return fmt.Errorf("record job %s: %w", rec.UploadID, err)
	}
	return nil
}

// ListJobs implements core.JobRecorder.
func (s *JobStore) ListJobs(ctx context.Context, scope core.Scope, domain string, limit int) ([]core.JobRecord, error) {
	wb := newWhereBuilder()
	wb.add("merchant_id", scope.MerchantID)
	wb.add("domain", domain)
	where, args := wb.build()

	query := fmt.Sprintf("SELECT %s FROM import_jobs%s ORDER BY started_at DESC LIMIT $%d",
		jobColumns, where, wb.next())
	args = append(args, limit)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]core.JobRecord, 0)
	for rows.Next() {
		rec, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

// GetJob implements core.JobRecorder.
func (s *JobStore) GetJob(ctx context.Context, scope core.Scope, uploadID string) (*core.JobRecord, error) {
	query := "SELECT " + jobColumns + " FROM import_jobs WHERE upload_id = $1 AND merchant_id = $2"

	rec, err := scanJob(s.db.QueryRow(ctx, query, uploadID, scope.MerchantID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// PurgeJobs implements core.JobRecorder. Running jobs are never purged.
func (s *JobStore) PurgeJobs(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx,
		"DELETE FROM import_jobs WHERE finished_at IS NOT NULL AND finished_at < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanJob(row pgx.Row) (*core.JobRecord, error) {
	var (
		rec      core.JobRecord
		status   string
		fileName pgtype.Text
		summary  []byte
		errText  pgtype.Text
		finished pgtype.Timestamptz
	)

	err := row.Scan(
		&rec.UploadID, &rec.MerchantID, &rec.Domain, &fileName, &status,
		&rec.BatchSize, &summary, &errText, &rec.StartedAt, &finished,
	)
	if err != nil {
		return nil, err
	}

	rec.Status = core.JobStatus(status)
	rec.FileName = fileName.String
	rec.Error = errText.String
	if finished.Valid {
		t := finished.Time
		rec.FinishedAt = &t
	}
	if summary != nil {
		rec.Summary = new(core.ResultSummary)
		if err := json.Unmarshal(summary, rec.Summary); err != nil {
			return nil, fmt.Errorf("decode summary of %s: %w", rec.UploadID, err)
		}
	}
	return &rec, nil
}

// whereBuilder collects equality filters, skipping empty values.
type whereBuilder struct {
	clauses []string
	args    []any
}

func newWhereBuilder() *whereBuilder {
	return &whereBuilder{}
}

func (w *whereBuilder) add(column, value string) {
	if value == "" {
		return
	}
	w.args = append(w.args, value)
	w.clauses = append(w.clauses, fmt.Sprintf("%s = $%d", column, len(w.args)))
}

// next is the placeholder index for the next argument.
func (w *whereBuilder) next() int {
	return len(w.args) + 1
}

func (w *whereBuilder) build() (string, []any) {
	if len(w.clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(w.clauses, " AND "), w.args
}
