package memory

import (
	"context"
	"fmt"

	"donation-ledger/internal/audit"
	"donation-ledger/internal/ledger/models"
	"donation-ledger/pkg/domain"
	"donation-ledger/pkg/money"
	"donation-ledger/pkg/platform/sentinel"
)

// view implements store.Reader over a committed layer and an optional staged
// layer. Callers hold the store's read lock while using it.
type view struct {
	base *state
	over *state
}

func (v view) campaign(id domain.CampaignID) (*models.Campaign, error) {
	if c, ok := lookup(v.base.campaigns, v.over.campaigns, id); ok {
		return c, nil
	}
	return nil, fmt.Errorf("campaign %d: %w", id, sentinel.ErrNotFound)
}

func (v view) receiver(id domain.ReceiverID) (*models.Receiver, error) {
	if r, ok := lookup(v.base.receivers, v.over.receivers, id); ok {
		return r, nil
	}
	return nil, fmt.Errorf("receiver %d: %w", id, sentinel.ErrNotFound)
}

func (v view) donation(id domain.DonationID) (*models.Donation, error) {
	if d, ok := lookup(v.base.donations, v.over.donations, id); ok {
		return d, nil
	}
	return nil, fmt.Errorf("donation %d: %w", id, sentinel.ErrNotFound)
}

func (v view) allocation(id domain.AllocationID) (*models.Allocation, error) {
	if a, ok := lookup(v.base.allocations, v.over.allocations, id); ok {
		return a, nil
	}
	return nil, fmt.Errorf("allocation %d: %w", id, sentinel.ErrNotFound)
}

func (v view) allocationByDonation(id domain.DonationID) (*models.Allocation, error) {
	found := collect(v.base.allocations, v.over.allocations, func(a *models.Allocation) bool {
		return a.DonationID == id
	})
	if len(found) == 0 {
		return nil, fmt.Errorf("allocation for donation %d: %w", id, sentinel.ErrNotFound)
	}
	return found[0], nil
}

func (v view) disbursement(id domain.DisbursementID) (*models.Disbursement, error) {
	if d, ok := lookup(v.base.disbursements, v.over.disbursements, id); ok {
		return d, nil
	}
	return nil, fmt.Errorf("disbursement %d: %w", id, sentinel.ErrNotFound)
}

func (v view) campaigns() []*models.Campaign {
	return collect(v.base.campaigns, v.over.campaigns, nil)
}

func (v view) receiversByID() []*models.Receiver {
	return collect(v.base.receivers, v.over.receivers, nil)
}

func (v view) donations(f models.DonationFilter) []*models.Donation {
	return collect(v.base.donations, v.over.donations, f.Matches)
}

func (v view) allocations(f models.AllocationFilter) []*models.Allocation {
	return collect(v.base.allocations, v.over.allocations, func(a *models.Allocation) bool {
		if f.CampaignID != 0 && a.CampaignID != f.CampaignID {
			return false
		}
		if f.Status != "" && a.Status != f.Status {
			return false
		}
		if f.DonorID != "" {
			d, ok := lookup(v.base.donations, v.over.donations, a.DonationID)
			if !ok || d.DonorID != f.DonorID {
				return false
			}
		}
		return true
	})
}

func (v view) disbursements(f models.DisbursementFilter) []*models.Disbursement {
	return collect(v.base.disbursements, v.over.disbursements, func(d *models.Disbursement) bool {
		if f.CampaignID == 0 {
			return true
		}
		a, ok := lookup(v.base.allocations, v.over.allocations, d.AllocationID)
		return ok && a.CampaignID == f.CampaignID
	})
}

func (v view) documents(id domain.DisbursementID) []*models.Document {
	return collect(v.base.documents, v.over.documents, func(d *models.Document) bool {
		return d.DisbursementID == id
	})
}

func (v view) actor(id domain.ActorID) (*models.ActorProfile, error) {
	if a, ok := lookup(v.base.actors, v.over.actors, id); ok {
		return a, nil
	}
	return nil, fmt.Errorf("actor %s: %w", id, sentinel.ErrNotFound)
}

func (v view) auditEntries(f audit.Filter) []audit.Entry {
	var out []audit.Entry
	for _, layer := range [][]*audit.Entry{v.base.audit, v.over.audit} {
		for _, e := range layer {
			if !f.Matches(e) {
				continue
			}
			out = append(out, e.Clone())
			if f.Limit > 0 && len(out) == f.Limit {
				return out
			}
		}
	}
	return out
}

func (v view) sumVerified(id domain.CampaignID) money.Amount {
	total := money.Zero
	for _, d := range v.donations(models.DonationFilter{CampaignID: id}) {
		if d.Verified {
			total = total.Add(d.Amount)
		}
	}
	return total
}

func (v view) sumDisbursed(id domain.CampaignID) money.Amount {
	total := money.Zero
	for _, d := range v.disbursements(models.DisbursementFilter{CampaignID: id}) {
		total = total.Add(d.Amount)
	}
	return total
}

// reader adapts a view producer to store.Reader. acquire returns the view
// and the function releasing any lock taken for it.
type reader struct {
	acquire func() (view, func())
}

func (r reader) GetCampaign(_ context.Context, id domain.CampaignID) (*models.Campaign, error) {
	v, release := r.acquire()
	defer release()
	return v.campaign(id)
}

func (r reader) ListCampaigns(context.Context) ([]*models.Campaign, error) {
	v, release := r.acquire()
	defer release()
	return v.campaigns(), nil
}

func (r reader) GetReceiver(_ context.Context, id domain.ReceiverID) (*models.Receiver, error) {
	v, release := r.acquire()
	defer release()
	return v.receiver(id)
}

func (r reader) ListReceivers(context.Context) ([]*models.Receiver, error) {
	v, release := r.acquire()
	defer release()
	return v.receiversByID(), nil
}

func (r reader) GetDonation(_ context.Context, id domain.DonationID) (*models.Donation, error) {
	v, release := r.acquire()
	defer release()
	return v.donation(id)
}

func (r reader) ListDonations(_ context.Context, f models.DonationFilter) ([]*models.Donation, error) {
	v, release := r.acquire()
	defer release()
	return v.donations(f), nil
}

func (r reader) GetAllocation(_ context.Context, id domain.AllocationID) (*models.Allocation, error) {
	v, release := r.acquire()
	defer release()
	return v.allocation(id)
}

func (r reader) GetAllocationByDonation(_ context.Context, id domain.DonationID) (*models.Allocation, error) {
	v, release := r.acquire()
	defer release()
	return v.allocationByDonation(id)
}

func (r reader) ListAllocations(_ context.Context, f models.AllocationFilter) ([]*models.Allocation, error) {
	v, release := r.acquire()
	defer release()
	return v.allocations(f), nil
}

func (r reader) GetDisbursement(_ context.Context, id domain.DisbursementID) (*models.Disbursement, error) {
	v, release := r.acquire()
	defer release()
	return v.disbursement(id)
}

func (r reader) ListDisbursements(_ context.Context, f models.DisbursementFilter) ([]*models.Disbursement, error) {
	v, release := r.acquire()
	defer release()
	return v.disbursements(f), nil
}

func (r reader) ListDocuments(_ context.Context, id domain.DisbursementID) ([]*models.Document, error) {
	v, release := r.acquire()
	defer release()
	return v.documents(id), nil
}

func (r reader) GetActor(_ context.Context, id domain.ActorID) (*models.ActorProfile, error) {
	v, release := r.acquire()
	defer release()
	return v.actor(id)
}

func (r reader) ListAudit(_ context.Context, f audit.Filter) ([]audit.Entry, error) {
	v, release := r.acquire()
	defer release()
	return v.auditEntries(f), nil
}

func (r reader) SumVerifiedDonations(_ context.Context, id domain.CampaignID) (money.Amount, error) {
	v, release := r.acquire()
	defer release()
	return v.sumVerified(id), nil
}

func (r reader) SumDisbursements(_ context.Context, id domain.CampaignID) (money.Amount, error) {
	v, release := r.acquire()
	defer release()
	return v.sumDisbursed(id), nil
}
