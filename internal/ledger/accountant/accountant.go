// Package accountant owns the campaign balance.
//
// The balance is stored but derived:
//
//	balance = Σ verified donations − Σ disbursements
//
// Credit runs when a donation is verified, Debit when a disbursement is
// recorded. Both run inside the engine's unit of work, so a failed Debit
// rolls back everything else the operation did. Recompute rebuilds the value
// from history for reconciliation.
package accountant

import (
	"context"

	"donation-ledger/internal/ledger/models"
	"donation-ledger/pkg/domain"
	dErrors "donation-ledger/pkg/domain-errors"
	"donation-ledger/pkg/money"
)

// BalanceWriter is the transactional slice of the store the accountant needs.
type BalanceWriter interface {
	CampaignForUpdate(ctx context.Context, id domain.CampaignID) (*models.Campaign, error)
	SetCampaignBalance(ctx context.Context, id domain.CampaignID, balance money.Amount) error
}

// HistoryReader exposes the totals the balance is derived from.
type HistoryReader interface {
	GetCampaign(ctx context.Context, id domain.CampaignID) (*models.Campaign, error)
	SumVerifiedDonations(ctx context.Context, id domain.CampaignID) (money.Amount, error)
	SumDisbursements(ctx context.Context, id domain.CampaignID) (money.Amount, error)
}

type Accountant struct{}

func New() *Accountant {
	return &Accountant{}
}

// Credit adds amount to the campaign balance and returns the new balance.
func (a *Accountant) Credit(ctx context.Context, w BalanceWriter, id domain.CampaignID, amount money.Amount) (money.Amount, error) {
	if !amount.IsPositive() {
		return money.Zero, dErrors.New(dErrors.CodeInvalidAmount, "credit amount must be greater than zero")
	}
	campaign, err := w.CampaignForUpdate(ctx, id)
	if err != nil {
		return money.Zero, err
	}
	next := campaign.Balance.Add(amount)
	if !next.InRange() {
		return money.Zero, dErrors.New(dErrors.CodeInvalidAmount, "campaign balance would exceed "+money.Max.String())
	}
	if err := w.SetCampaignBalance(ctx, id, next); err != nil {
		return money.Zero, err
	}
	return next, nil
}

// Debit subtracts amount from the campaign balance. It refuses with
// CodeInsufficientBalance rather than let the balance go negative.
func (a *Accountant) Debit(ctx context.Context, w BalanceWriter, id domain.CampaignID, amount money.Amount) (money.Amount, error) {
	if !amount.IsPositive() {
		return money.Zero, dErrors.New(dErrors.CodeInvalidAmount, "debit amount must be greater than zero")
	}
	campaign, err := w.CampaignForUpdate(ctx, id)
	if err != nil {
		return money.Zero, err
	}
	next := campaign.Balance.Sub(amount)
	if next.IsNegative() {
		return money.Zero, dErrors.New(dErrors.CodeInsufficientBalance,
			"campaign balance "+campaign.Balance.String()+" cannot cover "+amount.String())
	}
	if err := w.SetCampaignBalance(ctx, id, next); err != nil {
		return money.Zero, err
	}
	return next, nil
}

// Totals is the history a balance is derived from.
type Totals struct {
	Verified  money.Amount
	Disbursed money.Amount
}

func (t Totals) Balance() money.Amount {
	return t.Verified.Sub(t.Disbursed)
}

// Recompute derives the campaign's totals from donation and disbursement history.
func (a *Accountant) Recompute(ctx context.Context, r HistoryReader, id domain.CampaignID) (Totals, error) {
	verified, err := r.SumVerifiedDonations(ctx, id)
	if err != nil {
		return Totals{}, err
	}
	disbursed, err := r.SumDisbursements(ctx, id)
	if err != nil {
		return Totals{}, err
	}
	return Totals{Verified: verified, Disbursed: disbursed}, nil
}

// Reconcile compares the stored balance with the recomputed one.
func (a *Accountant) Reconcile(ctx context.Context, r HistoryReader, id domain.CampaignID) (*models.Reconciliation, error) {
	campaign, err := r.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	totals, err := a.Recompute(ctx, r, id)
	if err != nil {
		return nil, err
	}
	computed := totals.Balance()
	return &models.Reconciliation{
		Campaign:        campaign,
		StoredBalance:   campaign.Balance,
		Verified:        totals.Verified,
		Disbursed:       totals.Disbursed,
		ComputedBalance: computed,
		Consistent:      campaign.Balance.Equal(computed),
	}, nil
}
