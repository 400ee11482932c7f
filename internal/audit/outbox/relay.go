// Package outbox relays committed audit entries to a downstream publisher.
//
// Entries are read in sequence order, published as one batch, then marked.
// A crash between publish and mark re-delivers the batch, so consumers
// deduplicate on the event id.
package outbox

//go:generate mockgen -source=relay.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"donation-ledger/internal/audit"
	"donation-ledger/pkg/platform/circuit"
)

// Publisher delivers a batch of audit entries downstream. It must be
// all-or-nothing from the relay's point of view: a nil error means every
// entry in the batch was accepted.
type Publisher interface {
	Publish(ctx context.Context, entries []audit.Entry) error
}

// Source is the store side of the outbox.
type Source interface {
	ListUnpublished(ctx context.Context, limit int) ([]audit.Entry, error)
	MarkPublished(ctx context.Context, seqs []int64) error
}

// Relay polls a Source and forwards entries to a Publisher.
type Relay struct {
	source    Source
	publisher Publisher
	breaker   *circuit.Breaker
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
	metrics   *Metrics
}

type Option func(*Relay)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		r.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(r *Relay) {
		r.metrics = m
	}
}

// WithInterval sets the delay between polls when the outbox is drained.
func WithInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithBreaker replaces the default publish breaker.
func WithBreaker(b *circuit.Breaker) Option {
	return func(r *Relay) {
		r.breaker = b
	}
}

func New(source Source, publisher Publisher, opts ...Option) *Relay {
	r := &Relay{
		source:    source,
		publisher: publisher,
		interval:  time.Second,
		batchSize: 100,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.breaker == nil {
		r.breaker = circuit.New("audit-outbox",
			circuit.WithFailureThreshold(5),
			circuit.WithOpenTimeout(30*time.Second),
			circuit.WithStateChange(r.onStateChange),
		)
	}
	return r
}

// Run polls until ctx is cancelled. A full batch is followed immediately by
// another poll; an empty or failed one waits for the interval.
func (r *Relay) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "audit outbox relay started",
		"interval", r.interval,
		"batch_size", r.batchSize,
	)
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "audit outbox relay stopped")
			return nil
		case <-timer.C:
		}

		n, err := r.RunOnce(ctx)
		switch {
		case err != nil && !errors.Is(err, context.Canceled):
			r.logger.WarnContext(ctx, "audit outbox relay batch failed", "error", err)
			timer.Reset(r.interval)
		case n == r.batchSize:
			timer.Reset(0)
		default:
			timer.Reset(r.interval)
		}
	}
}

// RunOnce publishes at most one batch and reports how many entries were
// marked published.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	entries, err := r.source.ListUnpublished(ctx, r.batchSize)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}

	err = r.breaker.Execute(func() error {
		return r.publisher.Publish(ctx, entries)
	})
	if err != nil {
		r.observeFailure()
		return 0, err
	}

	seqs := make([]int64, len(entries))
	for i, e := range entries {
		seqs[i] = e.Seq
	}
	if err := r.source.MarkPublished(ctx, seqs); err != nil {
		// Entries were delivered; the next poll re-publishes them.
		r.observeFailure()
		return 0, err
	}

	r.observePublished(len(entries))
	r.logger.DebugContext(ctx, "audit entries published",
		"count", len(entries),
		"first_seq", seqs[0],
		"last_seq", seqs[len(seqs)-1],
	)
	return len(entries), nil
}

func (r *Relay) onStateChange(name string, from, to circuit.State) {
	r.logger.Warn("audit outbox breaker state changed",
		"breaker", name,
		"from", from.String(),
		"to", to.String(),
	)
	if r.metrics != nil {
		r.metrics.BreakerState.Set(float64(to))
	}
}

func (r *Relay) observePublished(n int) {
	if r.metrics != nil {
		r.metrics.Published.Add(float64(n))
	}
}

func (r *Relay) observeFailure() {
	if r.metrics != nil {
		r.metrics.Failures.Inc()
	}
}
