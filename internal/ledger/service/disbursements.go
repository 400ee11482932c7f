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

// RecordDisbursement records the external payment of an approved allocation
// and debits the campaign. If the balance cannot cover it nothing changes.
func (s *Service) RecordDisbursement(ctx context.Context, req models.RecordDisbursementRequest) (_ *models.DisbursementResult, err error) {
	ctx, done := s.begin(ctx, access.OpRecordDisbursement, attribute.Int64("allocation_id", int64(req.AllocationID)))
	defer func() { done(err) }()

	actor, err := s.authorize(ctx, access.OpRecordDisbursement)
	if err != nil {
		return nil, err
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	pre, err := s.store.GetAllocation(ctx, req.AllocationID)
	if err != nil {
		return nil, translate(notFound(err, dErrors.CodeNotFound, "allocation not found"))
	}

	now := requestcontext.Now(ctx)
	result := &models.DisbursementResult{}
	err = s.mutate(ctx, pre.CampaignID, func(ctx context.Context, tx store.Tx) error {
		campaign, err := lockCampaign(ctx, tx, pre.CampaignID)
		if err != nil {
			return err
		}
		allocation, err := tx.GetAllocation(ctx, req.AllocationID)
		if err != nil {
			return notFound(err, dErrors.CodeNotFound, "allocation not found")
		}
		if err := allocation.CanDisburse(req.Amount); err != nil {
			return err
		}
		previous := campaign.Balance
		balance, err := s.accountant.Debit(ctx, tx, allocation.CampaignID, req.Amount)
		if err != nil {
			return err
		}

		before := *allocation
		allocation.ApplyDisbursed(now)
		if err := tx.UpdateAllocation(ctx, allocation, before.Status); err != nil {
			return err
		}
		disbursement := &models.Disbursement{
			AllocationID: allocation.ID,
			Amount:       req.Amount,
			ExecutedBy:   actor.ID,
			PaymentRef:   req.PaymentRef,
			ExecutedAt:   now,
		}
		if err := tx.CreateDisbursement(ctx, disbursement); err != nil {
			return err
		}

		if _, err := s.recorder.Append(ctx, tx, audit.Record{
			Action:     audit.ActionDisbursementRecorded,
			EntityType: audit.EntityDisbursement,
			EntityID:   disbursement.ID.String(),
			Before:     audit.Snapshot{"allocation": before, "campaign_balance": previous},
			After: audit.Snapshot{
				"disbursement":     disbursement,
				"allocation":       allocation,
				"campaign_balance": balance,
			},
		}); err != nil {
			return err
		}
		result.Disbursement = disbursement
		result.Allocation = allocation
		result.NewBalance = balance
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.observeBalance(pre.CampaignID, result.NewBalance)
	s.logAudit(ctx, audit.ActionDisbursementRecorded,
		"campaign_id", pre.CampaignID,
		"allocation_id", req.AllocationID,
		"disbursement_id", result.Disbursement.ID,
		"amount", req.Amount.String(),
		"new_balance", result.NewBalance.String(),
	)
	return result, nil
}

// AttachDocument records evidence metadata for a disbursement. The content
// hash is mandatory so the stored object can later be checked for integrity.
func (s *Service) AttachDocument(ctx context.Context, req models.AttachDocumentRequest) (_ *models.Document, err error) {
	ctx, done := s.begin(ctx, access.OpAttachDocument, attribute.Int64("disbursement_id", int64(req.DisbursementID)))
	defer func() { done(err) }()

	actor, err := s.authorize(ctx, access.OpAttachDocument)
	if err != nil {
		return nil, err
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	doc := &models.Document{
		DisbursementID: req.DisbursementID,
		StorageLocator: req.StorageLocator,
		ContentHash:    req.ContentHash,
		UploadedBy:     actor.ID,
		UploadedAt:     requestcontext.Now(ctx),
	}
	err = s.mutate(ctx, 0, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.GetDisbursement(ctx, req.DisbursementID); err != nil {
			return notFound(err, dErrors.CodeNotFound, "disbursement not found")
		}
		if err := tx.CreateDocument(ctx, doc); err != nil {
			return err
		}
		_, err := s.recorder.Append(ctx, tx, audit.Record{
			Action:     audit.ActionDocumentAttached,
			EntityType: audit.EntityDocument,
			EntityID:   doc.ID.String(),
			After:      audit.Snapshot{"document": doc},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, audit.ActionDocumentAttached,
		"disbursement_id", req.DisbursementID,
		"document_id", doc.ID,
	)
	return doc, nil
}

func (s *Service) ListDisbursements(ctx context.Context, filter models.DisbursementFilter) (_ []*models.DisbursementView, err error) {
	ctx, done := s.begin(ctx, access.OpListDisbursements)
	defer func() { done(err) }()

	if _, err := s.authorize(ctx, access.OpListDisbursements); err != nil {
		return nil, err
	}
	disbursements, err := s.store.ListDisbursements(ctx, filter)
	if err != nil {
		return nil, translate(err)
	}

	names := s.newNameCache()
	views := make([]*models.DisbursementView, 0, len(disbursements))
	for _, d := range disbursements {
		view := &models.DisbursementView{
			Disbursement:  *d,
			CampaignTitle: models.UnknownCampaign,
			ReceiverName:  models.UnknownReceiver,
			RecordedBy:    names.actor(ctx, d.ExecutedBy),
		}
		if a, err := s.store.GetAllocation(ctx, d.AllocationID); err == nil {
			view.CampaignTitle = names.campaign(ctx, a.CampaignID)
			view.ReceiverName = names.receiver(ctx, a.ReceiverID)
		}
		views = append(views, view)
	}
	return views, nil
}

func (s *Service) ListDocuments(ctx context.Context, id domain.DisbursementID) (_ []*models.Document, err error) {
	ctx, done := s.begin(ctx, access.OpListDisbursements, attribute.Int64("disbursement_id", int64(id)))
	defer func() { done(err) }()

	if _, err := s.authorize(ctx, access.OpListDisbursements); err != nil {
		return nil, err
	}
	if _, err := s.store.GetDisbursement(ctx, id); err != nil {
		return nil, translate(notFound(err, dErrors.CodeNotFound, "disbursement not found"))
	}
	docs, err := s.store.ListDocuments(ctx, id)
	return docs, translate(err)
}
