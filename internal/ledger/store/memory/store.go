// Package memory is the in-process ledger backend used for development and
// tests. Transactions stage writes in an overlay and apply them under the
// write lock on commit, so readers never observe a partial unit of work.
package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"donation-ledger/internal/audit"
	"donation-ledger/internal/ledger/store"
	"donation-ledger/pkg/platform/sentinel"
)

const defaultTxTimeout = 5 * time.Second

// Store holds the committed ledger state.
type Store struct {
	reader

	mu        sync.RWMutex
	committed *state
	published map[int64]time.Time
	auditSeq  int64
	lastStamp time.Time
	clock     func() time.Time

	campaignSeq     atomic.Int64
	receiverSeq     atomic.Int64
	donationSeq     atomic.Int64
	allocationSeq   atomic.Int64
	disbursementSeq atomic.Int64
	documentSeq     atomic.Int64

	timeout time.Duration
	closed  atomic.Bool
}

type Option func(*Store)

// WithTxTimeout bounds each unit of work that arrives without a deadline.
func WithTxTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithClock sets the clock that stamps audit entries at commit.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.clock = now
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		committed: newState(),
		published: make(map[int64]time.Time),
		timeout:   defaultTxTimeout,
		clock:     func() time.Time { return time.Now().UTC() },
	}
	empty := newState()
	s.reader = reader{acquire: func() (view, func()) {
		s.mu.RLock()
		return view{base: s.committed, over: empty}, s.mu.RUnlock
	}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ store.Store = (*Store)(nil)

// RunInTx runs fn against a fresh overlay and commits it if fn returns nil
// before the deadline. IDs drawn by an aborted unit of work are not reused.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	if s.closed.Load() {
		return fmt.Errorf("memory store closed: %w", sentinel.ErrUnavailable)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transaction aborted: %v: %w", err, sentinel.ErrUnavailable)
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	tx := newTx(s)
	if err := fn(ctx, tx); err != nil {
		return err
	}
	return s.commit(ctx, tx)
}

func (s *Store) commit(ctx context.Context, tx *Tx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transaction aborted before commit: %v: %w", err, sentinel.ErrUnavailable)
	}
	s.committed.apply(tx.staged)
	for _, e := range tx.staged.audit {
		s.auditSeq++
		e.Seq = s.auditSeq
		e.OccurredAt = s.stamp()
		stored := e.Clone()
		s.committed.audit = append(s.committed.audit, &stored)
	}
	return nil
}

// stamp returns the commit time, never earlier than the previous stamp, so
// OccurredAt does not decrease along Seq. Callers hold s.mu.
func (s *Store) stamp() time.Time {
	now := s.clock()
	if now.Before(s.lastStamp) {
		now = s.lastStamp
	}
	s.lastStamp = now
	return now
}

// ListUnpublished returns up to limit committed audit entries the relay has
// not yet published, in sequence order.
func (s *Store) ListUnpublished(_ context.Context, limit int) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Entry
	for _, e := range s.committed.audit {
		if _, done := s.published[e.Seq]; done {
			continue
		}
		out = append(out, e.Clone())
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) MarkPublished(_ context.Context, seqs []int64) error {
	now := time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, seq := range seqs {
		if _, done := s.published[seq]; !done {
			s.published[seq] = now
		}
	}
	return nil
}

// Close rejects further units of work. Committed state stays readable.
func (s *Store) Close() error {
	s.closed.Store(true)
	return nil
}
