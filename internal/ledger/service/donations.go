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

// RecordDonation records an unverified donation and its pending allocation
// in one unit of work. The campaign balance is untouched until verification.
func (s *Service) RecordDonation(ctx context.Context, req models.RecordDonationRequest) (_ *models.DonationResult, err error) {
	ctx, done := s.begin(ctx, access.OpRecordDonation, attribute.Int64("campaign_id", int64(req.CampaignID)))
	defer func() { done(err) }()

	actor, err := s.authorize(ctx, access.OpRecordDonation)
	if err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	donorID, err := resolveDonor(actor, req.DonorID)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	result := &models.DonationResult{}
	err = s.mutate(ctx, req.CampaignID, func(ctx context.Context, tx store.Tx) error {
		campaign, err := lockCampaign(ctx, tx, req.CampaignID)
		if err != nil {
			return err
		}
		if campaign.IsClosedAt(now) {
			return dErrors.New(dErrors.CodeCampaignClosed, "campaign no longer accepts donations")
		}
		if req.ReceiverID != 0 {
			if _, err := tx.GetReceiver(ctx, req.ReceiverID); err != nil {
				return notFound(err, dErrors.CodeNotFound, "receiver not found")
			}
		}

		donation := &models.Donation{
			DonorID:    donorID,
			CampaignID: campaign.ID,
			Amount:     req.Amount,
			DonatedAt:  now,
		}
		if err := tx.CreateDonation(ctx, donation); err != nil {
			return err
		}

		receiverID := req.ReceiverID
		if receiverID == 0 {
			receivers, err := tx.ListReceivers(ctx)
			if err != nil {
				return err
			}
			if len(receivers) == 0 {
				return errNoReceivers
			}
			receiverID = s.assigner.Assign(donation, receivers)
		}

		allocation := models.NewAllocation(donation, receiverID)
		if err := tx.CreateAllocation(ctx, allocation); err != nil {
			return err
		}

		if _, err := s.recorder.Append(ctx, tx, audit.Record{
			Action:     audit.ActionDonationRecorded,
			EntityType: audit.EntityDonation,
			EntityID:   donation.ID.String(),
			After:      audit.Snapshot{"donation": donation, "allocation": allocation},
		}); err != nil {
			return err
		}
		result.Donation = donation
		result.Allocation = allocation
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, audit.ActionDonationRecorded,
		"campaign_id", req.CampaignID,
		"donation_id", result.Donation.ID,
		"allocation_id", result.Allocation.ID,
		"receiver_id", result.Allocation.ReceiverID,
		"amount", req.Amount.String(),
	)
	return result, nil
}

// resolveDonor decides whose donation this is. Donors only ever donate as
// themselves; an Admin may record on behalf of any donor.
func resolveDonor(actor domain.Actor, requested domain.ActorID) (domain.ActorID, error) {
	if requested.IsNil() || requested == actor.ID {
		return actor.ID, nil
	}
	if actor.Role != domain.RoleAdmin {
		return "", dErrors.New(dErrors.CodeForbidden, "operation not permitted")
	}
	return requested, nil
}

// VerifyDonation confirms receipt of funds and credits the campaign balance.
// A donation is verified at most once.
func (s *Service) VerifyDonation(ctx context.Context, id domain.DonationID) (_ *models.VerifyResult, err error) {
	ctx, done := s.begin(ctx, access.OpVerifyDonation, attribute.Int64("donation_id", int64(id)))
	defer func() { done(err) }()

	actor, err := s.authorize(ctx, access.OpVerifyDonation)
	if err != nil {
		return nil, err
	}
	pre, err := s.store.GetDonation(ctx, id)
	if err != nil {
		return nil, translate(notFound(err, dErrors.CodeNotFound, "donation not found"))
	}

	now := requestcontext.Now(ctx)
	result := &models.VerifyResult{}
	err = s.mutate(ctx, pre.CampaignID, func(ctx context.Context, tx store.Tx) error {
		campaign, err := lockCampaign(ctx, tx, pre.CampaignID)
		if err != nil {
			return err
		}
		donation, err := tx.GetDonation(ctx, id)
		if err != nil {
			return notFound(err, dErrors.CodeNotFound, "donation not found")
		}
		if err := donation.CanVerify(); err != nil {
			return err
		}
		before := *donation
		previous := campaign.Balance

		donation.ApplyVerification(actor.ID, now)
		if err := tx.UpdateDonation(ctx, donation); err != nil {
			return err
		}
		balance, err := s.accountant.Credit(ctx, tx, donation.CampaignID, donation.Amount)
		if err != nil {
			return err
		}

		if _, err := s.recorder.Append(ctx, tx, audit.Record{
			Action:     audit.ActionDonationVerified,
			EntityType: audit.EntityDonation,
			EntityID:   donation.ID.String(),
			Before:     audit.Snapshot{"donation": before, "campaign_balance": previous},
			After:      audit.Snapshot{"donation": donation, "campaign_balance": balance},
		}); err != nil {
			return err
		}
		result.Donation = donation
		result.NewBalance = balance
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.observeBalance(pre.CampaignID, result.NewBalance)
	s.logAudit(ctx, audit.ActionDonationVerified,
		"campaign_id", pre.CampaignID,
		"donation_id", id,
		"new_balance", result.NewBalance.String(),
	)
	return result, nil
}

// ListDonations returns donations with display names. Donors only ever see
// their own.
func (s *Service) ListDonations(ctx context.Context, filter models.DonationFilter) (_ []*models.DonationView, err error) {
	ctx, done := s.begin(ctx, access.OpReadLedger)
	defer func() { done(err) }()

	actor, err := s.authorize(ctx, access.OpReadLedger)
	if err != nil {
		return nil, err
	}
	if actor.Role == domain.RoleDonor {
		filter.DonorID = actor.ID
	}
	donations, err := s.store.ListDonations(ctx, filter)
	if err != nil {
		return nil, translate(err)
	}

	names := s.newNameCache()
	views := make([]*models.DonationView, 0, len(donations))
	for _, d := range donations {
		views = append(views, &models.DonationView{
			Donation:      *d,
			CampaignTitle: names.campaign(ctx, d.CampaignID),
			DonorName:     names.actor(ctx, d.DonorID),
		})
	}
	return views, nil
}

// nameCache resolves display names once per read.
type nameCache struct {
	store     store.Reader
	campaigns map[domain.CampaignID]string
	receivers map[domain.ReceiverID]string
	actors    map[domain.ActorID]string
}

func (s *Service) newNameCache() *nameCache {
	return &nameCache{
		store:     s.store,
		campaigns: make(map[domain.CampaignID]string),
		receivers: make(map[domain.ReceiverID]string),
		actors:    make(map[domain.ActorID]string),
	}
}

func (n *nameCache) campaign(ctx context.Context, id domain.CampaignID) string {
	if v, ok := n.campaigns[id]; ok {
		return v
	}
	v := models.UnknownCampaign
	if c, err := n.store.GetCampaign(ctx, id); err == nil {
		v = c.Title
	}
	n.campaigns[id] = v
	return v
}

func (n *nameCache) receiver(ctx context.Context, id domain.ReceiverID) string {
	if v, ok := n.receivers[id]; ok {
		return v
	}
	v := models.UnknownReceiver
	if r, err := n.store.GetReceiver(ctx, id); err == nil {
		v = r.Name
	}
	n.receivers[id] = v
	return v
}

func (n *nameCache) actor(ctx context.Context, id domain.ActorID) string {
	if v, ok := n.actors[id]; ok {
		return v
	}
	v := models.UnknownActor
	if a, err := n.store.GetActor(ctx, id); err == nil && a.Name != "" {
		v = a.Name
	}
	n.actors[id] = v
	return v
}
