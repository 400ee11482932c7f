package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"donation-ledger/internal/audit"
	"donation-ledger/internal/ledger/models"
	"donation-ledger/pkg/domain"
	"donation-ledger/pkg/money"
	txcontext "donation-ledger/pkg/platform/tx"
)

// queries implements store.Reader against the transaction in ctx, or the
// pool when there is none.
type queries struct {
	db *sql.DB
}

func (r queries) q(ctx context.Context) txcontext.Querier {
	return txcontext.QuerierFrom(ctx, r.db)
}

const (
	campaignColumns     = `id, title, description, start_date, end_date, created_by, balance, created_at`
	receiverColumns     = `id, name, category, payment_destination, created_at`
	donationColumns     = `id, donor_id, campaign_id, amount, donated_at, verified, verified_at, verified_by`
	allocationColumns   = `a.id, a.donation_id, a.campaign_id, a.receiver_id, a.amount, a.status, a.updated_at`
	disbursementColumns = `d.id, d.allocation_id, d.amount, d.executed_by, d.payment_ref, d.executed_at`
	documentColumns     = `id, disbursement_id, storage_locator, content_hash, uploaded_by, uploaded_at`
	auditColumns        = `seq, occurred_at, actor_id, actor_role, action, entity_type, entity_id, before, after, request_id`
)

type scanner interface {
	Scan(dest ...any) error
}

func scanCampaign(row scanner) (*models.Campaign, error) {
	var c models.Campaign
	var end sql.NullTime
	if err := row.Scan(&c.ID, &c.Title, &c.Description, &c.StartDate, &end, &c.CreatedBy, &c.Balance, &c.CreatedAt); err != nil {
		return nil, err
	}
	if end.Valid {
		t := end.Time.UTC()
		c.EndDate = &t
	}
	c.StartDate = c.StartDate.UTC()
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

func scanReceiver(row scanner) (*models.Receiver, error) {
	var r models.Receiver
	if err := row.Scan(&r.ID, &r.Name, &r.Category, &r.PaymentDestination, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.CreatedAt = r.CreatedAt.UTC()
	return &r, nil
}

func scanDonation(row scanner) (*models.Donation, error) {
	var d models.Donation
	var verifiedAt sql.NullTime
	if err := row.Scan(&d.ID, &d.DonorID, &d.CampaignID, &d.Amount, &d.DonatedAt, &d.Verified, &verifiedAt, &d.VerifiedBy); err != nil {
		return nil, err
	}
	if verifiedAt.Valid {
		t := verifiedAt.Time.UTC()
		d.VerifiedAt = &t
	}
	d.DonatedAt = d.DonatedAt.UTC()
	return &d, nil
}

func scanAllocation(row scanner) (*models.Allocation, error) {
	var a models.Allocation
	if err := row.Scan(&a.ID, &a.DonationID, &a.CampaignID, &a.ReceiverID, &a.Amount, &a.Status, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.UpdatedAt = a.UpdatedAt.UTC()
	return &a, nil
}

func scanDisbursement(row scanner) (*models.Disbursement, error) {
	var d models.Disbursement
	if err := row.Scan(&d.ID, &d.AllocationID, &d.Amount, &d.ExecutedBy, &d.PaymentRef, &d.ExecutedAt); err != nil {
		return nil, err
	}
	d.ExecutedAt = d.ExecutedAt.UTC()
	return &d, nil
}

func scanDocument(row scanner) (*models.Document, error) {
	var d models.Document
	if err := row.Scan(&d.ID, &d.DisbursementID, &d.StorageLocator, &d.ContentHash, &d.UploadedBy, &d.UploadedAt); err != nil {
		return nil, err
	}
	d.UploadedAt = d.UploadedAt.UTC()
	return &d, nil
}

func scanAudit(rows *sql.Rows) ([]audit.Entry, error) {
	defer rows.Close()
	var out []audit.Entry
	for rows.Next() {
		var e audit.Entry
		var before, after []byte
		if err := rows.Scan(&e.Seq, &e.OccurredAt, &e.ActorID, &e.ActorRole, &e.Action, &e.EntityType, &e.EntityID, &before, &after, &e.RequestID); err != nil {
			return nil, classify(err, "scan audit entry")
		}
		e.OccurredAt = e.OccurredAt.UTC()
		if before != nil {
			e.Before = json.RawMessage(before)
		}
		if after != nil {
			e.After = json.RawMessage(after)
		}
		out = append(out, e)
	}
	return out, classify(rows.Err(), "iterate audit entries")
}

// collectRows drains rows through scan.
func collectRows[T any](rows *sql.Rows, scan func(scanner) (*T, error), what string) ([]*T, error) {
	defer rows.Close()
	var out []*T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, classify(err, what)
		}
		out = append(out, v)
	}
	return out, classify(rows.Err(), what)
}

func (r queries) GetCampaign(ctx context.Context, id domain.CampaignID) (*models.Campaign, error) {
	c, err := scanCampaign(r.q(ctx).QueryRowContext(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE id = $1`, id))
	if err != nil {
		return nil, classify(err, fmt.Sprintf("campaign %d", id))
	}
	return c, nil
}

func (r queries) ListCampaigns(ctx context.Context) ([]*models.Campaign, error) {
	rows, err := r.q(ctx).QueryContext(ctx, `SELECT `+campaignColumns+` FROM campaigns ORDER BY id`)
	if err != nil {
		return nil, classify(err, "list campaigns")
	}
	return collectRows(rows, scanCampaign, "list campaigns")
}

func (r queries) GetReceiver(ctx context.Context, id domain.ReceiverID) (*models.Receiver, error) {
	rec, err := scanReceiver(r.q(ctx).QueryRowContext(ctx,
		`SELECT `+receiverColumns+` FROM receivers WHERE id = $1`, id))
	if err != nil {
		return nil, classify(err, fmt.Sprintf("receiver %d", id))
	}
	return rec, nil
}

func (r queries) ListReceivers(ctx context.Context) ([]*models.Receiver, error) {
	rows, err := r.q(ctx).QueryContext(ctx, `SELECT `+receiverColumns+` FROM receivers ORDER BY id`)
	if err != nil {
		return nil, classify(err, "list receivers")
	}
	return collectRows(rows, scanReceiver, "list receivers")
}

func (r queries) GetDonation(ctx context.Context, id domain.DonationID) (*models.Donation, error) {
	d, err := scanDonation(r.q(ctx).QueryRowContext(ctx,
		`SELECT `+donationColumns+` FROM donations WHERE id = $1`, id))
	if err != nil {
		return nil, classify(err, fmt.Sprintf("donation %d", id))
	}
	return d, nil
}

func (r queries) ListDonations(ctx context.Context, f models.DonationFilter) ([]*models.Donation, error) {
	w := &where{}
	if f.CampaignID != 0 {
		w.add("campaign_id = ?", f.CampaignID)
	}
	if f.DonorID != "" {
		w.add("donor_id = ?", f.DonorID)
	}
	if f.Verified != nil {
		w.add("verified = ?", *f.Verified)
	}
	rows, err := r.q(ctx).QueryContext(ctx,
		`SELECT `+donationColumns+` FROM donations`+w.sql()+` ORDER BY id`, w.args...)
	if err != nil {
		return nil, classify(err, "list donations")
	}
	return collectRows(rows, scanDonation, "list donations")
}

func (r queries) GetAllocation(ctx context.Context, id domain.AllocationID) (*models.Allocation, error) {
	a, err := scanAllocation(r.q(ctx).QueryRowContext(ctx,
		`SELECT `+allocationColumns+` FROM allocations a WHERE a.id = $1`, id))
	if err != nil {
		return nil, classify(err, fmt.Sprintf("allocation %d", id))
	}
	return a, nil
}

func (r queries) GetAllocationByDonation(ctx context.Context, id domain.DonationID) (*models.Allocation, error) {
	a, err := scanAllocation(r.q(ctx).QueryRowContext(ctx,
		`SELECT `+allocationColumns+` FROM allocations a WHERE a.donation_id = $1`, id))
	if err != nil {
		return nil, classify(err, fmt.Sprintf("allocation for donation %d", id))
	}
	return a, nil
}

func (r queries) ListAllocations(ctx context.Context, f models.AllocationFilter) ([]*models.Allocation, error) {
	from := ` FROM allocations a`
	w := &where{}
	if f.CampaignID != 0 {
		w.add("a.campaign_id = ?", f.CampaignID)
	}
	if f.Status != "" {
		w.add("a.status = ?", string(f.Status))
	}
	if f.DonorID != "" {
		from += ` JOIN donations d ON d.id = a.donation_id`
		w.add("d.donor_id = ?", f.DonorID)
	}
	rows, err := r.q(ctx).QueryContext(ctx,
		`SELECT `+allocationColumns+from+w.sql()+` ORDER BY a.id`, w.args...)
	if err != nil {
		return nil, classify(err, "list allocations")
	}
	return collectRows(rows, scanAllocation, "list allocations")
}

func (r queries) GetDisbursement(ctx context.Context, id domain.DisbursementID) (*models.Disbursement, error) {
	d, err := scanDisbursement(r.q(ctx).QueryRowContext(ctx,
		`SELECT `+disbursementColumns+` FROM disbursements d WHERE d.id = $1`, id))
	if err != nil {
		return nil, classify(err, fmt.Sprintf("disbursement %d", id))
	}
	return d, nil
}

func (r queries) ListDisbursements(ctx context.Context, f models.DisbursementFilter) ([]*models.Disbursement, error) {
	from := ` FROM disbursements d`
	w := &where{}
	if f.CampaignID != 0 {
		from += ` JOIN allocations a ON a.id = d.allocation_id`
		w.add("a.campaign_id = ?", f.CampaignID)
	}
	rows, err := r.q(ctx).QueryContext(ctx,
		`SELECT `+disbursementColumns+from+w.sql()+` ORDER BY d.id`, w.args...)
	if err != nil {
		return nil, classify(err, "list disbursements")
	}
	return collectRows(rows, scanDisbursement, "list disbursements")
}

func (r queries) ListDocuments(ctx context.Context, id domain.DisbursementID) ([]*models.Document, error) {
	rows, err := r.q(ctx).QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE disbursement_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, classify(err, "list documents")
	}
	return collectRows(rows, scanDocument, "list documents")
}

func (r queries) GetActor(ctx context.Context, id domain.ActorID) (*models.ActorProfile, error) {
	var a models.ActorProfile
	err := r.q(ctx).QueryRowContext(ctx, `SELECT id, name, role FROM actors WHERE id = $1`, id).
		Scan(&a.ID, &a.Name, &a.Role)
	if err != nil {
		return nil, classify(err, "actor "+id.String())
	}
	return &a, nil
}

func (r queries) ListAudit(ctx context.Context, f audit.Filter) ([]audit.Entry, error) {
	w := &where{}
	if f.EntityType != "" {
		w.add("entity_type = ?", string(f.EntityType))
	}
	if f.EntityID != "" {
		w.add("entity_id = ?", f.EntityID)
	}
	if !f.From.IsZero() {
		w.add("occurred_at >= ?", f.From)
	}
	if !f.To.IsZero() {
		w.add("occurred_at < ?", f.To)
	}
	if f.AfterSeq > 0 {
		w.add("seq > ?", f.AfterSeq)
	}
	query := `SELECT ` + auditColumns + ` FROM audit_log` + w.sql() + ` ORDER BY seq`
	if f.Limit > 0 {
		query += ` LIMIT ` + strconv.Itoa(f.Limit)
	}
	rows, err := r.q(ctx).QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, classify(err, "list audit")
	}
	return scanAudit(rows)
}

func (r queries) SumVerifiedDonations(ctx context.Context, id domain.CampaignID) (money.Amount, error) {
	var total money.Amount
	err := r.q(ctx).QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM donations WHERE campaign_id = $1 AND verified`, id).Scan(&total)
	if err != nil {
		return money.Zero, classify(err, "sum verified donations")
	}
	return total, nil
}

func (r queries) SumDisbursements(ctx context.Context, id domain.CampaignID) (money.Amount, error) {
	var total money.Amount
	err := r.q(ctx).QueryRowContext(ctx,
		`SELECT COALESCE(SUM(d.amount), 0) FROM disbursements d
		 JOIN allocations a ON a.id = d.allocation_id
		 WHERE a.campaign_id = $1`, id).Scan(&total)
	if err != nil {
		return money.Zero, classify(err, "sum disbursements")
	}
	return total, nil
}

// where accumulates AND-ed predicates, rewriting ? into numbered placeholders.
type where struct {
	clauses []string
	args    []any
}

func (w *where) add(clause string, arg any) {
	w.args = append(w.args, arg)
	w.clauses = append(w.clauses, strings.Replace(clause, "?", "$"+strconv.Itoa(len(w.args)), 1))
}

func (w *where) sql() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}
