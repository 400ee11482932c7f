package service

import (
	"context"

	"donation-ledger/internal/access"
	"donation-ledger/internal/audit"
)

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 1000
)

// ListAudit returns audit entries in sequence order with actor display names.
func (s *Service) ListAudit(ctx context.Context, filter audit.Filter) (_ []audit.EntryView, err error) {
	ctx, done := s.begin(ctx, access.OpReadAudit)
	defer func() { done(err) }()

	if _, err := s.authorize(ctx, access.OpReadAudit); err != nil {
		return nil, err
	}
	switch {
	case filter.Limit <= 0:
		filter.Limit = defaultAuditLimit
	case filter.Limit > maxAuditLimit:
		filter.Limit = maxAuditLimit
	}
	entries, err := s.recorder.List(ctx, filter)
	if err != nil {
		return nil, translate(err)
	}

	names := s.newNameCache()
	views := make([]audit.EntryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, audit.EntryView{Entry: e, ActorName: names.actor(ctx, e.ActorID)})
	}
	return views, nil
}
