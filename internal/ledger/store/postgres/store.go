// Package postgres is the PostgreSQL ledger backend (lib/pq).
//
// The open transaction travels in the context (pkg/platform/tx), so the same
// query code serves committed reads and reads inside a unit of work.
// Every engine mutation takes the campaign row lock (CampaignForUpdate)
// before reading the rows it changes, and updates are conditional on the
// state that was read, so instances serialize even with in-process lockers.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"donation-ledger/internal/audit"
	"donation-ledger/internal/ledger/store"
	"donation-ledger/pkg/platform/sentinel"
	txcontext "donation-ledger/pkg/platform/tx"

	"github.com/lib/pq"
)

const defaultTxTimeout = 5 * time.Second

// Store persists the ledger in PostgreSQL.
type Store struct {
	queries
	timeout time.Duration
	logger  *slog.Logger
}

type Option func(*Store)

func WithTxTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New wraps an open database. Call Migrate first.
func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{queries: queries{db: db}, timeout: defaultTxTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ store.Store = (*Store)(nil)

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transaction aborted: %v: %w", err, sentinel.ErrUnavailable)
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	sqlTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return classify(err, "begin transaction")
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	ctx = txcontext.WithTx(ctx, sqlTx)
	if err := fn(ctx, &Tx{queries: s.queries}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return classify(err, "commit")
	}
	return nil
}

func (s *Store) ListUnpublished(ctx context.Context, limit int) ([]audit.Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT `+auditColumns+` FROM audit_log WHERE published_at IS NULL ORDER BY seq LIMIT $1`, limit)
	if err != nil {
		return nil, classify(err, "list unpublished audit")
	}
	return scanAudit(rows)
}

func (s *Store) MarkPublished(ctx context.Context, seqs []int64) error {
	if len(seqs) == 0 {
		return nil
	}
	_, err := s.q(ctx).ExecContext(ctx,
		`UPDATE audit_log SET published_at = now() WHERE seq = ANY($1) AND published_at IS NULL`,
		pq.Array(seqs))
	return classify(err, "mark audit published")
}

// Close closes the underlying pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return classify(s.db.PingContext(ctx), "ping")
}
