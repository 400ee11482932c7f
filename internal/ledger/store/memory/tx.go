package memory

import (
	"context"
	"fmt"

	"donation-ledger/internal/audit"
	"donation-ledger/internal/ledger/models"
	"donation-ledger/internal/ledger/store"
	"donation-ledger/pkg/domain"
	"donation-ledger/pkg/money"
	"donation-ledger/pkg/platform/sentinel"
)

// Tx is a staged unit of work. It is not safe for concurrent use.
type Tx struct {
	reader
	s      *Store
	staged *state
}

func newTx(s *Store) *Tx {
	t := &Tx{s: s, staged: newState()}
	t.reader = reader{acquire: t.view}
	return t
}

func (t *Tx) view() (view, func()) {
	t.s.mu.RLock()
	return view{base: t.s.committed, over: t.staged}, t.s.mu.RUnlock
}

func (t *Tx) CampaignForUpdate(ctx context.Context, id domain.CampaignID) (*models.Campaign, error) {
	return t.GetCampaign(ctx, id)
}

func (t *Tx) SetCampaignBalance(ctx context.Context, id domain.CampaignID, balance money.Amount) error {
	c, err := t.GetCampaign(ctx, id)
	if err != nil {
		return err
	}
	c.Balance = balance
	t.staged.campaigns[id] = c
	return nil
}

func (t *Tx) CreateCampaign(_ context.Context, c *models.Campaign) error {
	c.ID = domain.CampaignID(t.s.campaignSeq.Add(1))
	cp := *c
	t.staged.campaigns[c.ID] = &cp
	return nil
}

func (t *Tx) CreateReceiver(_ context.Context, r *models.Receiver) error {
	r.ID = domain.ReceiverID(t.s.receiverSeq.Add(1))
	cp := *r
	t.staged.receivers[r.ID] = &cp
	return nil
}

func (t *Tx) CreateDonation(ctx context.Context, d *models.Donation) error {
	if _, err := t.GetCampaign(ctx, d.CampaignID); err != nil {
		return fmt.Errorf("donation campaign %d: %w", d.CampaignID, sentinel.ErrBrokenReference)
	}
	d.ID = domain.DonationID(t.s.donationSeq.Add(1))
	cp := *d
	t.staged.donations[d.ID] = &cp
	return nil
}

func (t *Tx) CreateAllocation(ctx context.Context, a *models.Allocation) error {
	if _, err := t.GetDonation(ctx, a.DonationID); err != nil {
		return fmt.Errorf("allocation donation %d: %w", a.DonationID, sentinel.ErrBrokenReference)
	}
	if _, err := t.GetReceiver(ctx, a.ReceiverID); err != nil {
		return fmt.Errorf("allocation receiver %d: %w", a.ReceiverID, sentinel.ErrBrokenReference)
	}
	if _, err := t.GetAllocationByDonation(ctx, a.DonationID); err == nil {
		return fmt.Errorf("donation %d already allocated: %w", a.DonationID, sentinel.ErrConflict)
	}
	a.ID = domain.AllocationID(t.s.allocationSeq.Add(1))
	cp := *a
	t.staged.allocations[a.ID] = &cp
	return nil
}

func (t *Tx) CreateDisbursement(ctx context.Context, d *models.Disbursement) error {
	if _, err := t.GetAllocation(ctx, d.AllocationID); err != nil {
		return fmt.Errorf("disbursement allocation %d: %w", d.AllocationID, sentinel.ErrBrokenReference)
	}
	v, release := t.view()
	existing := collect(v.base.disbursements, v.over.disbursements, func(x *models.Disbursement) bool {
		return x.AllocationID == d.AllocationID
	})
	release()
	if len(existing) > 0 {
		return fmt.Errorf("allocation %d already disbursed: %w", d.AllocationID, sentinel.ErrConflict)
	}
	d.ID = domain.DisbursementID(t.s.disbursementSeq.Add(1))
	cp := *d
	t.staged.disbursements[d.ID] = &cp
	return nil
}

func (t *Tx) CreateDocument(ctx context.Context, d *models.Document) error {
	if _, err := t.GetDisbursement(ctx, d.DisbursementID); err != nil {
		return fmt.Errorf("document disbursement %d: %w", d.DisbursementID, sentinel.ErrBrokenReference)
	}
	d.ID = domain.DocumentID(t.s.documentSeq.Add(1))
	cp := *d
	t.staged.documents[d.ID] = &cp
	return nil
}

func (t *Tx) UpdateDonation(ctx context.Context, d *models.Donation) error {
	current, err := t.GetDonation(ctx, d.ID)
	if err != nil {
		return err
	}
	if current.Verified {
		return fmt.Errorf("donation %d already verified: %w", d.ID, sentinel.ErrConflict)
	}
	cp := *d
	t.staged.donations[d.ID] = &cp
	return nil
}

func (t *Tx) UpdateAllocation(ctx context.Context, a *models.Allocation, from models.AllocationStatus) error {
	current, err := t.GetAllocation(ctx, a.ID)
	if err != nil {
		return err
	}
	if current.Status != from {
		return fmt.Errorf("allocation %d is %s, not %s: %w", a.ID, current.Status, from, sentinel.ErrConflict)
	}
	cp := *a
	t.staged.allocations[a.ID] = &cp
	return nil
}

func (t *Tx) UpsertActor(_ context.Context, a *models.ActorProfile) error {
	cp := *a
	t.staged.actors[a.ID] = &cp
	return nil
}

// AppendAudit stages entry. Its Seq is assigned when the unit of work commits.
func (t *Tx) AppendAudit(_ context.Context, entry *audit.Entry) error {
	t.staged.audit = append(t.staged.audit, entry)
	return nil
}

var _ store.Tx = (*Tx)(nil)
