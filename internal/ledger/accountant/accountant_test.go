package accountant

import (
	"context"
	"errors"
	"testing"

	"donation-ledger/internal/ledger/models"
	"donation-ledger/pkg/domain"
	dErrors "donation-ledger/pkg/domain-errors"
	"donation-ledger/pkg/money"
	"donation-ledger/pkg/platform/sentinel"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type fakeLedger struct {
	campaigns map[domain.CampaignID]*models.Campaign
	verified  money.Amount
	disbursed money.Amount
	writes    int
}

func (f *fakeLedger) CampaignForUpdate(_ context.Context, id domain.CampaignID) (*models.Campaign, error) {
	c, ok := f.campaigns[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeLedger) GetCampaign(ctx context.Context, id domain.CampaignID) (*models.Campaign, error) {
	return f.CampaignForUpdate(ctx, id)
}

func (f *fakeLedger) SetCampaignBalance(_ context.Context, id domain.CampaignID, b money.Amount) error {
	f.campaigns[id].Balance = b
	f.writes++
	return nil
}

func (f *fakeLedger) SumVerifiedDonations(context.Context, domain.CampaignID) (money.Amount, error) {
	return f.verified, nil
}

func (f *fakeLedger) SumDisbursements(context.Context, domain.CampaignID) (money.Amount, error) {
	return f.disbursed, nil
}

type AccountantSuite struct {
	suite.Suite
	ledger *fakeLedger
	acct   *Accountant
	ctx    context.Context
}

func TestAccountantSuite(t *testing.T) {
	suite.Run(t, new(AccountantSuite))
}

func (s *AccountantSuite) SetupTest() {
	s.ctx = context.Background()
	s.acct = New()
	s.ledger = &fakeLedger{campaigns: map[domain.CampaignID]*models.Campaign{
		1: {ID: 1, Title: "Relief", Balance: money.MustParse("50.00")},
	}}
}

func (s *AccountantSuite) TestCredit() {
	s.Run("adds to the stored balance", func() {
		next, err := s.acct.Credit(s.ctx, s.ledger, 1, money.MustParse("25.50"))
		s.Require().NoError(err)
		s.Equal("75.50", next.String())
		s.Equal("75.50", s.ledger.campaigns[1].Balance.String())
	})

	s.Run("rejects non-positive amounts", func() {
		_, err := s.acct.Credit(s.ctx, s.ledger, 1, money.Zero)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidAmount))
	})

	s.Run("refuses to push the balance past the maximum", func() {
		s.ledger.campaigns[1].Balance = money.Max
		writes := s.ledger.writes

		_, err := s.acct.Credit(s.ctx, s.ledger, 1, money.MustParse("0.01"))
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidAmount))
		s.True(s.ledger.campaigns[1].Balance.Equal(money.Max))
		s.Equal(writes, s.ledger.writes)
	})

	s.Run("surfaces missing campaign", func() {
		_, err := s.acct.Credit(s.ctx, s.ledger, 9, money.MustParse("1.00"))
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *AccountantSuite) TestDebit() {
	s.Run("exact balance drains to zero", func() {
		next, err := s.acct.Debit(s.ctx, s.ledger, 1, money.MustParse("50.00"))
		s.Require().NoError(err)
		s.True(next.IsZero())
	})

	s.Run("refuses to go negative and leaves balance untouched", func() {
		s.ledger.campaigns[1].Balance = money.MustParse("10.00")
		writes := s.ledger.writes

		_, err := s.acct.Debit(s.ctx, s.ledger, 1, money.MustParse("10.01"))
		s.True(dErrors.HasCode(err, dErrors.CodeInsufficientBalance))
		s.Equal("10.00", s.ledger.campaigns[1].Balance.String())
		s.Equal(writes, s.ledger.writes)
	})
}

func (s *AccountantSuite) TestReconcile() {
	s.ledger.verified = money.MustParse("80.00")
	s.ledger.disbursed = money.MustParse("30.00")

	rec, err := s.acct.Reconcile(s.ctx, s.ledger, 1)
	s.Require().NoError(err)
	s.True(rec.Consistent)
	s.Equal("50.00", rec.ComputedBalance.String())

	s.ledger.campaigns[1].Balance = money.MustParse("49.00")
	rec, err = s.acct.Reconcile(s.ctx, s.ledger, 1)
	s.Require().NoError(err)
	s.False(rec.Consistent)
	s.Equal("49.00", rec.StoredBalance.String())
}

type failingHistory struct{ fakeLedger }

func (failingHistory) SumDisbursements(context.Context, domain.CampaignID) (money.Amount, error) {
	return money.Zero, errors.New("boom")
}

func TestRecomputePropagatesErrors(t *testing.T) {
	_, err := New().Recompute(context.Background(), &failingHistory{}, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}
