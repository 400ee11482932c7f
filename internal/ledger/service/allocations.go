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

// SetAllocationStatus moves an allocation along a manual edge of the state
// machine (approve, reject, revert). It never touches the balance.
func (s *Service) SetAllocationStatus(ctx context.Context, id domain.AllocationID, status string) (_ *models.AllocationResult, err error) {
	ctx, done := s.begin(ctx, access.OpSetAllocationStatus,
		attribute.Int64("allocation_id", int64(id)),
		attribute.String("status", status),
	)
	defer func() { done(err) }()

	if _, err := s.authorize(ctx, access.OpSetAllocationStatus); err != nil {
		return nil, err
	}
	next, err := models.ParseAllocationStatus(status)
	if err != nil {
		return nil, err
	}
	pre, err := s.store.GetAllocation(ctx, id)
	if err != nil {
		return nil, translate(notFound(err, dErrors.CodeNotFound, "allocation not found"))
	}

	now := requestcontext.Now(ctx)
	result := &models.AllocationResult{}
	err = s.mutate(ctx, pre.CampaignID, func(ctx context.Context, tx store.Tx) error {
		if _, err := lockCampaign(ctx, tx, pre.CampaignID); err != nil {
			return err
		}
		allocation, err := tx.GetAllocation(ctx, id)
		if err != nil {
			return notFound(err, dErrors.CodeNotFound, "allocation not found")
		}
		if err := allocation.CanSetStatus(next); err != nil {
			return err
		}
		before := *allocation
		allocation.ApplyStatus(next, now)
		if err := tx.UpdateAllocation(ctx, allocation, before.Status); err != nil {
			return err
		}
		if _, err := s.recorder.Append(ctx, tx, audit.Record{
			Action:     audit.ActionAllocationStatusChanged,
			EntityType: audit.EntityAllocation,
			EntityID:   allocation.ID.String(),
			Before:     audit.Snapshot{"allocation": before},
			After:      audit.Snapshot{"allocation": allocation},
		}); err != nil {
			return err
		}
		result.Allocation = allocation
		result.PreviousStatus = before.Status
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, audit.ActionAllocationStatusChanged,
		"campaign_id", pre.CampaignID,
		"allocation_id", id,
		"from", result.PreviousStatus,
		"to", next,
	)
	return result, nil
}

// ListAllocations returns allocations with display names. Donors only see
// allocations of their own donations.
func (s *Service) ListAllocations(ctx context.Context, filter models.AllocationFilter) (_ []*models.AllocationView, err error) {
	ctx, done := s.begin(ctx, access.OpReadLedger)
	defer func() { done(err) }()

	actor, err := s.authorize(ctx, access.OpReadLedger)
	if err != nil {
		return nil, err
	}
	if actor.Role == domain.RoleDonor {
		filter.DonorID = actor.ID
	}
	allocations, err := s.store.ListAllocations(ctx, filter)
	if err != nil {
		return nil, translate(err)
	}

	names := s.newNameCache()
	views := make([]*models.AllocationView, 0, len(allocations))
	for _, a := range allocations {
		view := &models.AllocationView{
			Allocation:    *a,
			CampaignTitle: names.campaign(ctx, a.CampaignID),
			ReceiverName:  names.receiver(ctx, a.ReceiverID),
			DonorName:     models.UnknownActor,
		}
		if d, err := s.store.GetDonation(ctx, a.DonationID); err == nil {
			view.DonorName = names.actor(ctx, d.DonorID)
			view.DonationVerified = d.Verified
		}
		views = append(views, view)
	}
	return views, nil
}
