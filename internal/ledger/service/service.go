// Package service is the lifecycle engine: every ledger mutation enters here.
//
// Each mutation runs as one atomic unit of work:
//
//	policy check → campaign lock → store tx { validate → mutate → balance → audit } → commit
//
// A failure at any step leaves no trace: no state change, no balance change,
// no audit entry.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"donation-ledger/internal/access"
	"donation-ledger/internal/audit"
	"donation-ledger/internal/ledger/accountant"
	ledgermetrics "donation-ledger/internal/ledger/metrics"
	"donation-ledger/internal/ledger/models"
	"donation-ledger/internal/ledger/store"
	"donation-ledger/internal/platform/lock"
	"donation-ledger/pkg/domain"
	dErrors "donation-ledger/pkg/domain-errors"
	"donation-ledger/pkg/money"
	"donation-ledger/pkg/platform/sentinel"
	"donation-ledger/pkg/requestcontext"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "donation-ledger/internal/ledger/service"

// Service orchestrates the donation → allocation → disbursement lifecycle.
type Service struct {
	store      store.Store
	locker     lock.Locker
	policy     access.Policy
	accountant *accountant.Accountant
	recorder   *audit.Recorder
	assigner   ReceiverAssigner
	logger     *slog.Logger
	metrics    *ledgermetrics.Metrics
	tracer     trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *ledgermetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithLocker replaces the in-process campaign locker, for example with a
// redis-backed one shared across instances.
func WithLocker(l lock.Locker) Option {
	return func(s *Service) {
		s.locker = l
	}
}

func WithAssigner(a ReceiverAssigner) Option {
	return func(s *Service) {
		s.assigner = a
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// New builds the engine over st. The store's lifecycle stays with the caller.
func New(st store.Store, opts ...Option) *Service {
	s := &Service{
		store:      st,
		locker:     lock.NewLocal(),
		accountant: accountant.New(),
		assigner:   RoundRobinAssigner{},
		tracer:     otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.recorder = audit.NewRecorder(st, audit.WithLogger(s.logger))
	return s
}

func campaignLockKey(id domain.CampaignID) string {
	return "campaign:" + id.String()
}

// begin opens a span for op and returns a finisher that records metrics and
// the span outcome.
func (s *Service) begin(ctx context.Context, op access.Operation, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "ledger."+string(op), trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
		}
		span.End()
		if s.metrics != nil {
			s.metrics.ObserveOperation(string(op), start, err)
		}
	}
}

// authorize checks the policy table for the actor in ctx.
func (s *Service) authorize(ctx context.Context, op access.Operation) (domain.Actor, error) {
	actor := requestcontext.Actor(ctx)
	if err := s.policy.Check(actor, op); err != nil {
		s.logDenied(ctx, actor, op)
		return domain.Actor{}, err
	}
	return actor, nil
}

// mutate runs fn as one unit of work, serialized with every other mutation
// on the same campaign when campaignID is set.
func (s *Service) mutate(ctx context.Context, campaignID domain.CampaignID, fn func(ctx context.Context, tx store.Tx) error) error {
	run := func(ctx context.Context) error {
		return s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
			if err := s.touchActor(ctx, tx); err != nil {
				return err
			}
			return fn(ctx, tx)
		})
	}
	var err error
	if campaignID != 0 {
		err = s.locker.WithLock(ctx, campaignLockKey(campaignID), run)
	} else {
		err = run(ctx)
	}
	return translate(err)
}

// lockCampaign takes the campaign row lock. Mutations call it before reading
// the rows they change.
func lockCampaign(ctx context.Context, tx store.Tx, id domain.CampaignID) (*models.Campaign, error) {
	campaign, err := tx.CampaignForUpdate(ctx, id)
	if err != nil {
		return nil, notFound(err, dErrors.CodeCampaignNotFound, "campaign not found")
	}
	return campaign, nil
}

// touchActor keeps the display-name directory current for the acting user.
func (s *Service) touchActor(ctx context.Context, tx store.Tx) error {
	actor := requestcontext.Actor(ctx)
	existing, err := tx.GetActor(ctx, actor.ID)
	switch {
	case err == nil:
		if existing.Role == actor.Role && (actor.Name == "" || existing.Name == actor.Name) {
			return nil
		}
		if actor.Name == "" {
			actor.Name = existing.Name
		}
	case !errors.Is(err, sentinel.ErrNotFound):
		return err
	}
	return tx.UpsertActor(ctx, &models.ActorProfile{ID: actor.ID, Name: actor.Name, Role: actor.Role})
}

// translate maps store and lock failures onto coded errors. Coded errors
// pass through untouched.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var coded *dErrors.Error
	if errors.As(err, &coded) {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrUnavailable),
		errors.Is(err, lock.ErrNotAcquired),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "ledger storage unavailable, retry later")
	case errors.Is(err, sentinel.ErrNotFound), errors.Is(err, sentinel.ErrBrokenReference):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "referenced record not found")
	case errors.Is(err, sentinel.ErrOutOfRange):
		return dErrors.Wrap(err, dErrors.CodeInvalidAmount, "amount outside the supported range")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeInvalidTransition, "conflicting ledger state")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "ledger operation failed")
	}
}

// notFound converts a store miss into code, leaving other errors for translate.
func notFound(err error, code dErrors.Code, msg string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(code, msg)
	}
	return err
}

func (s *Service) logAudit(ctx context.Context, event audit.Action, attributes ...any) {
	if s.logger == nil {
		return
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	actor := requestcontext.Actor(ctx)
	args := append(attributes, "actor_id", actor.ID, "actor_role", actor.Role, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, string(event), args...)
}

func (s *Service) logDenied(ctx context.Context, actor domain.Actor, op access.Operation) {
	if s.logger == nil {
		return
	}
	s.logger.WarnContext(ctx, "operation denied",
		"operation", op,
		"actor_id", actor.ID,
		"actor_role", actor.Role,
		"request_id", requestcontext.RequestID(ctx),
	)
}

func (s *Service) observeBalance(id domain.CampaignID, balance money.Amount) {
	if s.metrics != nil {
		s.metrics.SetBalance(id, balance)
	}
}
