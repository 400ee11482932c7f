package service

import (
	"context"

	"donation-ledger/internal/access"
	"donation-ledger/internal/audit"
	"donation-ledger/internal/ledger/models"
	"donation-ledger/internal/ledger/store"
	"donation-ledger/pkg/domain"
	dErrors "donation-ledger/pkg/domain-errors"
	"donation-ledger/pkg/requestcontext"

	"go.opentelemetry.io/otel/attribute"
)

func (s *Service) CreateCampaign(ctx context.Context, req models.CreateCampaignRequest) (_ *models.Campaign, err error) {
	ctx, done := s.begin(ctx, access.OpCreateCampaign)
	defer func() { done(err) }()

	actor, err := s.authorize(ctx, access.OpCreateCampaign)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	start := now
	if req.StartDate != nil {
		start = req.StartDate.UTC()
	}
	campaign, err := models.NewCampaign(req.Title, req.Description, start, req.EndDate, actor.ID, now)
	if err != nil {
		return nil, err
	}

	err = s.mutate(ctx, 0, func(ctx context.Context, tx store.Tx) error {
		if err := tx.CreateCampaign(ctx, campaign); err != nil {
			return err
		}
		_, err := s.recorder.Append(ctx, tx, audit.Record{
			Action:     audit.ActionCampaignCreated,
			EntityType: audit.EntityCampaign,
			EntityID:   campaign.ID.String(),
			After:      audit.Snapshot{"campaign": campaign},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, audit.ActionCampaignCreated, "campaign_id", campaign.ID)
	s.observeBalance(campaign.ID, campaign.Balance)
	return campaign, nil
}

func (s *Service) GetCampaign(ctx context.Context, id domain.CampaignID) (_ *models.Campaign, err error) {
	ctx, done := s.begin(ctx, access.OpReadLedger, attribute.Int64("campaign_id", int64(id)))
	defer func() { done(err) }()

	if _, err := s.authorize(ctx, access.OpReadLedger); err != nil {
		return nil, err
	}
	c, err := s.store.GetCampaign(ctx, id)
	if err != nil {
		return nil, translate(notFound(err, dErrors.CodeCampaignNotFound, "campaign not found"))
	}
	return c, nil
}

func (s *Service) ListCampaigns(ctx context.Context) (_ []*models.Campaign, err error) {
	ctx, done := s.begin(ctx, access.OpReadLedger)
	defer func() { done(err) }()

	if _, err := s.authorize(ctx, access.OpReadLedger); err != nil {
		return nil, err
	}
	campaigns, err := s.store.ListCampaigns(ctx)
	return campaigns, translate(err)
}

// ReconcileCampaign recomputes the balance from history and reports whether
// it matches the stored value. Drift is logged; it is never auto-corrected.
func (s *Service) ReconcileCampaign(ctx context.Context, id domain.CampaignID) (_ *models.Reconciliation, err error) {
	ctx, done := s.begin(ctx, access.OpReconcile, attribute.Int64("campaign_id", int64(id)))
	defer func() { done(err) }()

	if _, err := s.authorize(ctx, access.OpReconcile); err != nil {
		return nil, err
	}
	var rec *models.Reconciliation
	err = s.locker.WithLock(ctx, campaignLockKey(id), func(ctx context.Context) error {
		var err error
		rec, err = s.accountant.Reconcile(ctx, s.store, id)
		return err
	})
	if err != nil {
		return nil, translate(notFound(err, dErrors.CodeCampaignNotFound, "campaign not found"))
	}
	if !rec.Consistent && s.logger != nil {
		s.logger.ErrorContext(ctx, "campaign balance drift detected",
			"campaign_id", id,
			"stored_balance", rec.StoredBalance.String(),
			"computed_balance", rec.ComputedBalance.String(),
		)
	}
	return rec, nil
}

func (s *Service) CreateReceiver(ctx context.Context, req models.CreateReceiverRequest) (_ *models.Receiver, err error) {
	ctx, done := s.begin(ctx, access.OpCreateReceiver)
	defer func() { done(err) }()

	if _, err := s.authorize(ctx, access.OpCreateReceiver); err != nil {
		return nil, err
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	receiver := &models.Receiver{
		Name:               req.Name,
		Category:           req.Category,
		PaymentDestination: req.PaymentDestination,
		CreatedAt:          requestcontext.Now(ctx),
	}
	err = s.mutate(ctx, 0, func(ctx context.Context, tx store.Tx) error {
		if err := tx.CreateReceiver(ctx, receiver); err != nil {
			return err
		}
		_, err := s.recorder.Append(ctx, tx, audit.Record{
			Action:     audit.ActionReceiverCreated,
			EntityType: audit.EntityReceiver,
			EntityID:   receiver.ID.String(),
			After:      audit.Snapshot{"receiver": receiver},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, audit.ActionReceiverCreated, "receiver_id", receiver.ID)
	return receiver, nil
}

func (s *Service) ListReceivers(ctx context.Context) (_ []*models.Receiver, err error) {
	ctx, done := s.begin(ctx, access.OpReadLedger)
	defer func() { done(err) }()

	if _, err := s.authorize(ctx, access.OpReadLedger); err != nil {
		return nil, err
	}
	receivers, err := s.store.ListReceivers(ctx)
	return receivers, translate(err)
}
