package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"donation-ledger/pkg/requestcontext"
)

// Appender is the write side of the audit log. The ledger store's unit of
// work implements it so an entry commits or rolls back with the mutation it
// describes.
type Appender interface {
	AppendAudit(ctx context.Context, entry *Entry) error
}

// Reader is the read side of the audit log.
type Reader interface {
	ListAudit(ctx context.Context, filter Filter) ([]Entry, error)
}

// Record describes one state change before it is stamped into an Entry.
type Record struct {
	Action     Action
	EntityType EntityType
	EntityID   string
	Before     Snapshot
	After      Snapshot
}

var (
	errMissingActor  = errors.New("audit record requires an actor")
	errMissingAction = errors.New("audit record requires an action")
	errMissingTarget = errors.New("audit record requires an entity type and id")
)

// Recorder stamps and appends audit entries with fail-closed semantics: if
// the append fails the enclosing operation must fail.
type Recorder struct {
	reader Reader
	logger *slog.Logger
}

type Option func(*Recorder)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) {
		r.logger = logger
	}
}

// NewRecorder builds a Recorder reading from reader.
func NewRecorder(reader Reader, opts ...Option) *Recorder {
	r := &Recorder{reader: reader}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Append builds an entry from rec and the actor/time/request id in ctx and
// writes it through w. The returned entry carries the store-assigned Seq.
func (r *Recorder) Append(ctx context.Context, w Appender, rec Record) (*Entry, error) {
	actor := requestcontext.Actor(ctx)
	if actor.IsZero() {
		return nil, errMissingActor
	}
	if rec.Action == "" {
		return nil, errMissingAction
	}
	if rec.EntityType == "" || rec.EntityID == "" {
		return nil, errMissingTarget
	}

	before, err := marshalSnapshot(rec.Before)
	if err != nil {
		return nil, fmt.Errorf("marshal audit before: %w", err)
	}
	after, err := marshalSnapshot(rec.After)
	if err != nil {
		return nil, fmt.Errorf("marshal audit after: %w", err)
	}

	entry := &Entry{
		OccurredAt: requestcontext.Now(ctx),
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     rec.Action,
		EntityType: rec.EntityType,
		EntityID:   rec.EntityID,
		Before:     before,
		After:      after,
		RequestID:  requestcontext.RequestID(ctx),
	}
	if err := w.AppendAudit(ctx, entry); err != nil {
		if r.logger != nil {
			r.logger.ErrorContext(ctx, "CRITICAL: audit append failed",
				"action", rec.Action,
				"entity_type", rec.EntityType,
				"entity_id", rec.EntityID,
				"error", err,
			)
		}
		return nil, fmt.Errorf("audit append failed: %w", err)
	}
	return entry, nil
}

// List returns entries matching filter in sequence order.
func (r *Recorder) List(ctx context.Context, filter Filter) ([]Entry, error) {
	return r.reader.ListAudit(ctx, filter)
}

func marshalSnapshot(s Snapshot) (json.RawMessage, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}
