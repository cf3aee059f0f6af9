package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeStore hands out a single fakeSession and counts acquisitions.
type fakeStore struct {
	mu         sync.Mutex
	acquires   int
	acquireErr error
	sess       *fakeSession
}

func newFakeStore() *fakeStore {
	return &fakeStore{sess: &fakeSession{}}
}

func (s *fakeStore) Acquire(context.Context) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.acquireErr != nil {
		return nil, s.acquireErr
	}
	s.acquires++
	return s.sess, nil
}

func (s *fakeStore) Acquires() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acquires
}

type fakeSession struct {
	mu        sync.Mutex
	begins    int
	commits   int
	rollbacks int
	releases  int
	commitErr error
}

func (s *fakeSession) Begin(context.Context) (Tx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.begins++
	return &fakeTx{sess: s}, nil
}

func (s *fakeSession) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releases++
}

func (s *fakeSession) counts() (begins, commits, rollbacks, releases int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.begins, s.commits, s.rollbacks, s.releases
}

type fakeTx struct {
	sess   *fakeSession
	closed bool
}

func (tx *fakeTx) Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (tx *fakeTx) Query(context.Context, string, ...interface{}) (pgx.Rows, error) {
	return nil, errors.New("fakeTx: Query not supported")
}

func (tx *fakeTx) QueryRow(context.Context, string, ...interface{}) pgx.Row {
	return nil
}

func (tx *fakeTx) Commit(context.Context) error {
	tx.sess.mu.Lock()
	defer tx.sess.mu.Unlock()
	if tx.closed {
		return pgx.ErrTxClosed
	}
	tx.closed = true
	if tx.sess.commitErr != nil {
		return tx.sess.commitErr
	}
	tx.sess.commits++
	return nil
}

func (tx *fakeTx) Rollback(context.Context) error {
	tx.sess.mu.Lock()
	defer tx.sess.mu.Unlock()
	if tx.closed {
		return pgx.ErrTxClosed
	}
	tx.closed = true
	tx.sess.rollbacks++
	return nil
}

// fakeProcessor marks every item created. fail decides whether the
// attempt-th call for the batch starting at firstLine returns an error.
// reject turns individual items into item-level errors.
type fakeProcessor struct {
	mu       sync.Mutex
	attempts map[int]int
	fail     func(firstLine, attempt int) error
	reject   func(CandidateItem) error
	panicOn  int
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{attempts: make(map[int]int)}
}

func (p *fakeProcessor) Process(_ context.Context, _ DBTX, _ UploadJob, items []CandidateItem) ([]ItemOutcome[string], error) {
	first := items[0].Line

	p.mu.Lock()
	p.attempts[first]++
	attempt := p.attempts[first]
	p.mu.Unlock()

	if p.panicOn != 0 && p.panicOn == first && attempt == 1 {
		panic("boom")
	}
	if p.fail != nil {
		if err := p.fail(first, attempt); err != nil {
			return nil, err
		}
	}

	out := make([]ItemOutcome[string], 0, len(items))
	for _, it := range items {
		o := ItemOutcome[string]{Line: it.Line, Key: it.Get("name"), Action: ActionCreated, Result: it.Get("name")}
		if p.reject != nil {
			o.Err = p.reject(it)
		}
		out = append(out, o)
	}
	return out, nil
}

func (p *fakeProcessor) attemptsFor(firstLine int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts[firstLine]
}

// recordingBroadcaster keeps every published event.
type recordingBroadcaster struct {
	mu     sync.Mutex
	events []ProgressEvent
}

func (r *recordingBroadcaster) Publish(_ string, ev ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingBroadcaster) Events() []ProgressEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ProgressEvent, len(r.events))
	copy(out, r.events)
	return out
}

// noSleep records requested delays without waiting.
type noSleep struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *noSleep) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}
