package postgres

import (
	"context"
	"fmt"

	"donation-ledger/internal/audit"
	"donation-ledger/internal/ledger/models"
	"donation-ledger/internal/ledger/store"
	"donation-ledger/pkg/domain"
	"donation-ledger/pkg/money"
)

// Tx is the write side of a unit of work. It only works with a context
// carrying the transaction opened by Store.RunInTx.
type Tx struct {
	queries
}

var _ store.Tx = (*Tx)(nil)

func (t *Tx) CampaignForUpdate(ctx context.Context, id domain.CampaignID) (*models.Campaign, error) {
	c, err := scanCampaign(t.q(ctx).QueryRowContext(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, classify(err, fmt.Sprintf("campaign %d for update", id))
	}
	return c, nil
}

func (t *Tx) SetCampaignBalance(ctx context.Context, id domain.CampaignID, balance money.Amount) error {
	res, err := t.q(ctx).ExecContext(ctx, `UPDATE campaigns SET balance = $2 WHERE id = $1`, id, balance)
	if err != nil {
		return classify(err, "set campaign balance")
	}
	return requireRow(res, fmt.Sprintf("campaign %d", id))
}

func (t *Tx) CreateCampaign(ctx context.Context, c *models.Campaign) error {
	err := t.q(ctx).QueryRowContext(ctx,
		`INSERT INTO campaigns (title, description, start_date, end_date, created_by, balance, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		c.Title, c.Description, c.StartDate, c.EndDate, c.CreatedBy, c.Balance, c.CreatedAt,
	).Scan(&c.ID)
	return classify(err, "create campaign")
}

func (t *Tx) CreateReceiver(ctx context.Context, r *models.Receiver) error {
	err := t.q(ctx).QueryRowContext(ctx,
		`INSERT INTO receivers (name, category, payment_destination, created_at)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		r.Name, r.Category, r.PaymentDestination, r.CreatedAt,
	).Scan(&r.ID)
	return classify(err, "create receiver")
}

func (t *Tx) CreateDonation(ctx context.Context, d *models.Donation) error {
	err := t.q(ctx).QueryRowContext(ctx,
		`INSERT INTO donations (donor_id, campaign_id, amount, donated_at, verified, verified_at, verified_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		d.DonorID, d.CampaignID, d.Amount, d.DonatedAt, d.Verified, d.VerifiedAt, d.VerifiedBy,
	).Scan(&d.ID)
	return classify(err, "create donation")
}

func (t *Tx) CreateAllocation(ctx context.Context, a *models.Allocation) error {
	err := t.q(ctx).QueryRowContext(ctx,
		`INSERT INTO allocations (donation_id, campaign_id, receiver_id, amount, status, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		a.DonationID, a.CampaignID, a.ReceiverID, a.Amount, string(a.Status), a.UpdatedAt,
	).Scan(&a.ID)
	return classify(err, "create allocation")
}

func (t *Tx) CreateDisbursement(ctx context.Context, d *models.Disbursement) error {
	err := t.q(ctx).QueryRowContext(ctx,
		`INSERT INTO disbursements (allocation_id, amount, executed_by, payment_ref, executed_at)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		d.AllocationID, d.Amount, d.ExecutedBy, d.PaymentRef, d.ExecutedAt,
	).Scan(&d.ID)
	return classify(err, "create disbursement")
}

func (t *Tx) CreateDocument(ctx context.Context, d *models.Document) error {
	err := t.q(ctx).QueryRowContext(ctx,
		`INSERT INTO documents (disbursement_id, storage_locator, content_hash, uploaded_by, uploaded_at)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		d.DisbursementID, d.StorageLocator, d.ContentHash, d.UploadedBy, d.UploadedAt,
	).Scan(&d.ID)
	return classify(err, "create document")
}

func (t *Tx) UpdateDonation(ctx context.Context, d *models.Donation) error {
	res, err := t.q(ctx).ExecContext(ctx,
		`UPDATE donations SET verified = $2, verified_at = $3, verified_by = $4 WHERE id = $1 AND NOT verified`,
		d.ID, d.Verified, d.VerifiedAt, d.VerifiedBy)
	if err != nil {
		return classify(err, "update donation")
	}
	return requireTransition(res, fmt.Sprintf("donation %d unverified", d.ID))
}

func (t *Tx) UpdateAllocation(ctx context.Context, a *models.Allocation, from models.AllocationStatus) error {
	res, err := t.q(ctx).ExecContext(ctx,
		`UPDATE allocations SET status = $2, receiver_id = $3, updated_at = $4 WHERE id = $1 AND status = $5`,
		a.ID, string(a.Status), a.ReceiverID, a.UpdatedAt, string(from))
	if err != nil {
		return classify(err, "update allocation")
	}
	return requireTransition(res, fmt.Sprintf("allocation %d in status %s", a.ID, from))
}

func (t *Tx) UpsertActor(ctx context.Context, a *models.ActorProfile) error {
	_, err := t.q(ctx).ExecContext(ctx,
		`INSERT INTO actors (id, name, role) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, role = EXCLUDED.role`,
		a.ID, a.Name, string(a.Role))
	return classify(err, "upsert actor")
}

func (t *Tx) AppendAudit(ctx context.Context, e *audit.Entry) error {
	err := t.q(ctx).QueryRowContext(ctx,
		`INSERT INTO audit_log (occurred_at, actor_id, actor_role, action, entity_type, entity_id, before, after, request_id)
		 VALUES (clock_timestamp(), $1, $2, $3, $4, $5, $6, $7, $8) RETURNING seq, occurred_at`,
		e.ActorID, string(e.ActorRole), string(e.Action), string(e.EntityType), e.EntityID,
		nullableJSON(e.Before), nullableJSON(e.After), e.RequestID,
	).Scan(&e.Seq, &e.OccurredAt)
	if err != nil {
		return classify(err, "append audit entry")
	}
	e.OccurredAt = e.OccurredAt.UTC()
	return nil
}

func nullableJSON(raw []byte) any {
	if raw == nil {
		return nil
	}
	return string(raw)
}
