package core

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/merchant-import/internal/config"
	"github.com/JonMunkholm/merchant-import/internal/logging"
)

// Service is the entry point for running and observing imports.
type Service struct {
	store       Store
	cfg         config.UploadConfig
	history     JobRecorder
	hub         *Hub
	broadcaster Broadcaster
	limiter     *JobLimiter
	sleep       SleepFunc

	mu     sync.RWMutex
	active map[jobKey]*activeJob
}

// jobKey identifies a job. Upload IDs are chosen by callers, so they are
// only unique within a merchant.
type jobKey struct {
	merchantID string
	uploadID   string
}

type activeJob struct {
	rec    JobRecord
	cancel context.CancelFunc
}

// ServiceOptions holds optional collaborators.
type ServiceOptions struct {
	// History stores job summaries. Nil disables the history endpoints.
	History JobRecorder

	// Hub receives local progress events. Nil creates one.
	Hub *Hub

	// Broadcasters receive every event in addition to the hub, e.g. Redis.
	Broadcasters []Broadcaster

	// Sleep replaces the retry backoff sleep in tests.
	Sleep SleepFunc
}

// NewService creates a Service.
func NewService(store Store, cfg *config.Config, opts ServiceOptions) *Service {
	hub := opts.Hub
	if hub == nil {
		hub = NewHub(cfg.Upload.ProgressRetention)
	}

	broadcasters := append(MultiBroadcaster{hub}, opts.Broadcasters...)

	return &Service{
		store:       store,
		cfg:         cfg.Upload,
		history:     opts.History,
		hub:         hub,
		broadcaster: broadcasters,
		limiter:     NewJobLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime),
		sleep:       opts.Sleep,
		active:      make(map[jobKey]*activeJob),
	}
}

// ImportResult is what a caller gets back from a finished job.
type ImportResult struct {
	UploadID  string
	Domain    DomainInfo
	BatchSize int
	Summary   ResultSummary
}

// Import runs one job to completion on the caller's goroutine. The job
// is detached from ctx cancellation so a client disconnect does not stop
// it; it is bounded by the upload timeout and by CancelJob instead.
//
// When nothing in the file is valid the result is returned together with
// a *JobError.
func (s *Service) Import(ctx context.Context, domain string, req ImportRequest) (*ImportResult, error) {
	imp, ok := Get(domain)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDomain, domain)
	}
	if req.Scope.MerchantID == "" {
		return nil, ErrMissingScope
	}
	if req.UploadID == "" {
		req.UploadID = uuid.NewString()
	}
	req.BatchSize = s.batchSize(req.BatchSize)

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	var (
		jobCtx   context.Context
		cancel   context.CancelFunc
		detached = context.WithoutCancel(ctx)
	)
	if s.cfg.Timeout > 0 {
		jobCtx, cancel = context.WithTimeout(detached, s.cfg.Timeout)
	} else {
		jobCtx, cancel = context.WithCancel(detached)
	}
	defer cancel()

	job := &activeJob{
		rec: JobRecord{
			UploadID:   req.UploadID,
			MerchantID: req.Scope.MerchantID,
			Domain:     domain,
			FileName:   req.FileName,
			Status:     JobRunning,
			BatchSize:  req.BatchSize,
			StartedAt:  time.Now().UTC(),
		},
		cancel: cancel,
	}
	if err := s.track(job); err != nil {
		return nil, err
	}
	defer s.untrack(req.Scope, req.UploadID)

	log := logging.WithFields(ctx, "merchant_id", req.Scope.MerchantID)
	s.record(jobCtx, job.rec)

	env := JobEnv{
		Store:       s.store,
		Broadcaster: s.broadcaster,
		MaxRetries:  s.cfg.MaxRetries,
		Backoff:     LinearBackoff{Base: s.cfg.RetryDelay},
		Sleep:       s.sleep,
		Logger:      log,
	}
	summary, err := imp.Import(jobCtx, env, req)

	finished := time.Now().UTC()
	rec := job.rec
	rec.Status = statusFor(summary, err)
	rec.Summary = summary
	rec.FinishedAt = &finished
	if err != nil {
		rec.Error = err.Error()
	}
	s.record(jobCtx, rec)

	if summary == nil {
		return nil, err
	}
	return &ImportResult{
		UploadID:  req.UploadID,
		Domain:    imp.Info(),
		BatchSize: req.BatchSize,
		Summary:   *summary,
	}, err
}

// batchSize applies the configured default and cap to a caller override.
func (s *Service) batchSize(requested int) int {
	size := requested
	if size <= 0 {
		size = s.cfg.BatchSize
	}
	if size <= 0 {
		size = DefaultBatchSize
	}
	if s.cfg.MaxBatchSize > 0 && size > s.cfg.MaxBatchSize {
		size = s.cfg.MaxBatchSize
	}
	return size
}

func (s *Service) track(job *activeJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := jobKey{job.rec.MerchantID, job.rec.UploadID}
	if _, running := s.active[key]; running {
		return fmt.Errorf("%w: %s", ErrJobActive, job.rec.UploadID)
	}
	s.active[key] = job
	return nil
}

func (s *Service) untrack(scope Scope, uploadID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, jobKey{scope.MerchantID, uploadID})
}

// record writes a history entry. Failures are logged; they never fail the job.
func (s *Service) record(ctx context.Context, rec JobRecord) {
	if s.history == nil {
		return
	}
	if err := s.history.RecordJob(ctx, rec); err != nil {
		logging.FromContext(ctx).Warn("failed to record job history",
			"upload_id", rec.UploadID,
			"error", err,
		)
	}
}

// SubscribeProgress returns the progress events of scope's upload and a
// function to stop receiving them. See Hub.Subscribe.
func (s *Service) SubscribeProgress(scope Scope, uploadID string) (<-chan ProgressEvent, func()) {
	return s.hub.Subscribe(scope, uploadID)
}

// Hub returns the local progress hub, e.g. for a cross-instance relay.
func (s *Service) Hub() *Hub {
	return s.hub
}

// CancelJob stops a running job for scope. Batches already committed
// stay committed; the remaining batches are recorded as failed.
func (s *Service) CancelJob(scope Scope, uploadID string) error {
	s.mu.RLock()
	job, ok := s.active[jobKey{scope.MerchantID, uploadID}]
	s.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, uploadID)
	}
	job.cancel()
	return nil
}

// ActiveJobs returns the running jobs for scope, oldest first.
func (s *Service) ActiveJobs(scope Scope) []JobRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]JobRecord, 0)
	for _, job := range s.active {
		if job.rec.MerchantID == scope.MerchantID {
			out = append(out, job.rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// GetJob returns a running job or, failing that, its stored record.
func (s *Service) GetJob(ctx context.Context, scope Scope, uploadID string) (*JobRecord, error) {
	s.mu.RLock()
	job, ok := s.active[jobKey{scope.MerchantID, uploadID}]
	s.mu.RUnlock()

	if ok {
		rec := job.rec
		return &rec, nil
	}
	if s.history == nil {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, uploadID)
	}
	return s.history.GetJob(ctx, scope, uploadID)
}

// ListJobs returns recent jobs for scope, newest first. Without a
// recorder only running jobs are listed.
func (s *Service) ListJobs(ctx context.Context, scope Scope, domain string, limit int) ([]JobRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if s.history != nil {
		return s.history.ListJobs(ctx, scope, domain, limit)
	}

	out := make([]JobRecord, 0)
	active := s.ActiveJobs(scope)
	for i := len(active) - 1; i >= 0 && len(out) < limit; i-- {
		if domain == "" || active[i].Domain == domain {
			out = append(out, active[i])
		}
	}
	return out, nil
}

// Domains returns the registered importers sorted by key.
func (s *Service) Domains() []Importer {
	return All()
}

// LimiterStatus reports job slot occupancy.
func (s *Service) LimiterStatus() LimiterStatus {
	return s.limiter.Status()
}

// WaitForJobs blocks until all running jobs finish or ctx ends.
func (s *Service) WaitForJobs(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// Close releases progress subscribers. Call after WaitForJobs.
func (s *Service) Close() {
	s.hub.Close()
}
