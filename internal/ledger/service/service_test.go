package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"donation-ledger/internal/audit"
	ledgermetrics "donation-ledger/internal/ledger/metrics"
	"donation-ledger/internal/ledger/models"
	"donation-ledger/internal/ledger/store/memory"
	"donation-ledger/internal/platform/lock"
	"donation-ledger/pkg/domain"
	dErrors "donation-ledger/pkg/domain-errors"
	"donation-ledger/pkg/money"
	"donation-ledger/pkg/platform/sentinel"
	"donation-ledger/pkg/requestcontext"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

var now = time.Date(2026, 4, 10, 14, 30, 0, 0, time.UTC)

var (
	admin      = domain.Actor{ID: "admin-1", Name: "Ada Admin", Role: domain.RoleAdmin}
	donor      = domain.Actor{ID: "donor-1", Name: "Dana Donor", Role: domain.RoleDonor}
	otherDonor = domain.Actor{ID: "donor-2", Name: "Dev Donor", Role: domain.RoleDonor}
	operator   = domain.Actor{ID: "op-1", Name: "Olu Operator", Role: domain.RoleOperator}
	acct       = domain.Actor{ID: "acct-1", Name: "Ari Accountant", Role: domain.RoleAccountant}
	auditor    = domain.Actor{ID: "aud-1", Name: "Avi Auditor", Role: domain.RoleAuditor}
)

type ServiceSuite struct {
	suite.Suite
	store   *memory.Store
	svc     *Service
	metrics *ledgermetrics.Metrics
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = memory.New(memory.WithClock(func() time.Time { return now }))
	s.metrics = ledgermetrics.New(prometheus.NewRegistry())
	s.svc = New(s.store, WithMetrics(s.metrics))
}

func (s *ServiceSuite) TearDownTest() {
	s.Require().NoError(s.store.Close())
}

func as(actor domain.Actor) context.Context {
	ctx := requestcontext.WithActor(context.Background(), actor)
	ctx = requestcontext.WithRequestID(ctx, "req-test")
	return requestcontext.WithTime(ctx, now)
}

func amt(s string) money.Amount { return money.MustParse(s) }

func (s *ServiceSuite) campaign(title string) *models.Campaign {
	c, err := s.svc.CreateCampaign(as(admin), models.CreateCampaignRequest{Title: title})
	s.Require().NoError(err)
	return c
}

func (s *ServiceSuite) receiver(name string) *models.Receiver {
	r, err := s.svc.CreateReceiver(as(admin), models.CreateReceiverRequest{Name: name, Category: "food", PaymentDestination: "IBAN-" + name})
	s.Require().NoError(err)
	return r
}

func (s *ServiceSuite) donate(actor domain.Actor, c *models.Campaign, amount string) *models.DonationResult {
	res, err := s.svc.RecordDonation(as(actor), models.RecordDonationRequest{CampaignID: c.ID, Amount: amt(amount)})
	s.Require().NoError(err)
	return res
}

func (s *ServiceSuite) approve(id domain.AllocationID) {
	_, err := s.svc.SetAllocationStatus(as(operator), id, string(models.AllocationApproved))
	s.Require().NoError(err)
}

func (s *ServiceSuite) auditCount() int {
	entries, err := s.store.ListAudit(context.Background(), audit.Filter{})
	s.Require().NoError(err)
	return len(entries)
}

func (s *ServiceSuite) balance(id domain.CampaignID) money.Amount {
	c, err := s.store.GetCampaign(context.Background(), id)
	s.Require().NoError(err)
	return c.Balance
}

// assertBalanceInvariant checks stored balance == Σ verified − Σ disbursed.
func (s *ServiceSuite) assertBalanceInvariant(id domain.CampaignID) {
	rec, err := s.svc.ReconcileCampaign(as(auditor), id)
	s.Require().NoError(err)
	s.True(rec.Consistent, "stored %s computed %s", rec.StoredBalance, rec.ComputedBalance)
	s.False(rec.StoredBalance.IsNegative())
}

func (s *ServiceSuite) TestHappyPathFiftyDollars() {
	c := s.campaign("Flood Relief")
	r := s.receiver("Shelter")

	recorded := s.donate(donor, c, "50.00")
	s.Equal(models.AllocationPending, recorded.Allocation.Status)
	s.Equal(r.ID, recorded.Allocation.ReceiverID)
	s.False(recorded.Donation.Verified)
	s.True(s.balance(c.ID).IsZero(), "recording does not credit")

	verified, err := s.svc.VerifyDonation(as(operator), recorded.Donation.ID)
	s.Require().NoError(err)
	s.Equal("50.00", verified.NewBalance.String())
	s.Equal(domain.ActorID("op-1"), verified.Donation.VerifiedBy)

	s.approve(recorded.Allocation.ID)

	paid, err := s.svc.RecordDisbursement(as(acct), models.RecordDisbursementRequest{
		AllocationID: recorded.Allocation.ID,
		Amount:       amt("50.00"),
		PaymentRef:   "WIRE-001",
	})
	s.Require().NoError(err)
	s.True(paid.NewBalance.IsZero())
	s.Equal(models.AllocationDisbursed, paid.Allocation.Status)
	s.Equal(domain.ActorID("acct-1"), paid.Disbursement.ExecutedBy)

	doc, err := s.svc.AttachDocument(as(acct), models.AttachDocumentRequest{
		DisbursementID: paid.Disbursement.ID,
		StorageLocator: "s3://receipts/wire-001.pdf",
		ContentHash:    "sha256:abc",
	})
	s.Require().NoError(err)
	s.Equal(paid.Disbursement.ID, doc.DisbursementID)

	s.assertBalanceInvariant(c.ID)

	entries, err := s.svc.ListAudit(as(auditor), audit.Filter{})
	s.Require().NoError(err)
	actions := make([]audit.Action, 0, len(entries))
	for _, e := range entries {
		actions = append(actions, e.Action)
	}
	s.Equal([]audit.Action{
		audit.ActionCampaignCreated,
		audit.ActionReceiverCreated,
		audit.ActionDonationRecorded,
		audit.ActionDonationVerified,
		audit.ActionAllocationStatusChanged,
		audit.ActionDisbursementRecorded,
		audit.ActionDocumentAttached,
	}, actions)
	s.Equal("Olu Operator", entries[3].ActorName)

	s.Equal(1.0, testutil.ToFloat64(s.metrics.Operations.WithLabelValues("record_disbursement", "ok")))
	s.Equal(0.0, testutil.ToFloat64(s.metrics.CampaignBalance.WithLabelValues(c.ID.String())))
}

func (s *ServiceSuite) TestDisbursementAmountMismatch() {
	c := s.campaign("Relief")
	s.receiver("Shelter")
	d := s.donate(donor, c, "50.00")
	_, err := s.svc.VerifyDonation(as(operator), d.Donation.ID)
	s.Require().NoError(err)
	s.approve(d.Allocation.ID)
	entriesBefore := s.auditCount()

	_, err = s.svc.RecordDisbursement(as(acct), models.RecordDisbursementRequest{
		AllocationID: d.Allocation.ID, Amount: amt("49.99"), PaymentRef: "WIRE-002",
	})
	s.True(dErrors.HasCode(err, dErrors.CodeAmountMismatch))

	s.Equal("50.00", s.balance(c.ID).String())
	a, _ := s.store.GetAllocation(context.Background(), d.Allocation.ID)
	s.Equal(models.AllocationApproved, a.Status)
	s.Equal(entriesBefore, s.auditCount())
}

func (s *ServiceSuite) TestDonorCannotSetAllocationStatus() {
	c := s.campaign("Relief")
	s.receiver("Shelter")
	d := s.donate(donor, c, "10.00")
	entriesBefore := s.auditCount()

	_, err := s.svc.SetAllocationStatus(as(donor), d.Allocation.ID, "approved")
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	s.Equal("operation not permitted", err.Error())
	s.Equal(entriesBefore, s.auditCount())
}

func (s *ServiceSuite) TestPolicyIsEnforcedForEveryMutation() {
	c := s.campaign("Relief")
	s.receiver("Shelter")
	d := s.donate(donor, c, "10.00")

	cases := []struct {
		name  string
		actor domain.Actor
		call  func(ctx context.Context) error
	}{
		{"operator records donation", operator, func(ctx context.Context) error {
			_, err := s.svc.RecordDonation(ctx, models.RecordDonationRequest{CampaignID: c.ID, Amount: amt("1.00")})
			return err
		}},
		{"accountant verifies", acct, func(ctx context.Context) error {
			_, err := s.svc.VerifyDonation(ctx, d.Donation.ID)
			return err
		}},
		{"operator disburses", operator, func(ctx context.Context) error {
			_, err := s.svc.RecordDisbursement(ctx, models.RecordDisbursementRequest{AllocationID: d.Allocation.ID, Amount: amt("10.00"), PaymentRef: "x"})
			return err
		}},
		{"auditor attaches document", auditor, func(ctx context.Context) error {
			_, err := s.svc.AttachDocument(ctx, models.AttachDocumentRequest{DisbursementID: 1, StorageLocator: "l", ContentHash: "h"})
			return err
		}},
		{"operator reads audit", operator, func(ctx context.Context) error {
			_, err := s.svc.ListAudit(ctx, audit.Filter{})
			return err
		}},
		{"donor lists disbursements", donor, func(ctx context.Context) error {
			_, err := s.svc.ListDisbursements(ctx, models.DisbursementFilter{})
			return err
		}},
		{"anonymous reads campaigns", domain.Actor{}, func(ctx context.Context) error {
			_, err := s.svc.ListCampaigns(ctx)
			return err
		}},
		{"accountant creates campaign", acct, func(ctx context.Context) error {
			_, err := s.svc.CreateCampaign(ctx, models.CreateCampaignRequest{Title: "x"})
			return err
		}},
		{"operator reconciles", operator, func(ctx context.Context) error {
			_, err := s.svc.ReconcileCampaign(ctx, c.ID)
			return err
		}},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			before := s.auditCount()
			err := tc.call(as(tc.actor))
			s.True(dErrors.HasCode(err, dErrors.CodeForbidden), "got %v", err)
			s.Equal(before, s.auditCount())
		})
	}
}

func (s *ServiceSuite) TestRecordDonation() {
	c := s.campaign("Relief")

	s.Run("no receivers", func() {
		_, err := s.svc.RecordDonation(as(donor), models.RecordDonationRequest{CampaignID: c.ID, Amount: amt("5.00")})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	r1 := s.receiver("A")
	r2 := s.receiver("B")

	s.Run("non-positive amount", func() {
		_, err := s.svc.RecordDonation(as(donor), models.RecordDonationRequest{CampaignID: c.ID, Amount: amt("0.00")})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidAmount))
		_, err = s.svc.RecordDonation(as(donor), models.RecordDonationRequest{CampaignID: c.ID, Amount: amt("-1.00")})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidAmount))
	})

	s.Run("unknown campaign", func() {
		_, err := s.svc.RecordDonation(as(donor), models.RecordDonationRequest{CampaignID: 999, Amount: amt("5.00")})
		s.True(dErrors.HasCode(err, dErrors.CodeCampaignNotFound))
	})

	s.Run("unknown explicit receiver", func() {
		_, err := s.svc.RecordDonation(as(donor), models.RecordDonationRequest{CampaignID: c.ID, Amount: amt("5.00"), ReceiverID: 77})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("explicit receiver wins", func() {
		res, err := s.svc.RecordDonation(as(donor), models.RecordDonationRequest{CampaignID: c.ID, Amount: amt("5.00"), ReceiverID: r2.ID})
		s.Require().NoError(err)
		s.Equal(r2.ID, res.Allocation.ReceiverID)
	})

	s.Run("round robin by donation id", func() {
		first := s.donate(donor, c, "1.00")
		second := s.donate(donor, c, "1.00")
		receivers := []domain.ReceiverID{r1.ID, r2.ID}
		s.Equal(receivers[(int64(first.Donation.ID)-1)%2], first.Allocation.ReceiverID)
		s.Equal(receivers[(int64(second.Donation.ID)-1)%2], second.Allocation.ReceiverID)
		s.NotEqual(first.Allocation.ReceiverID, second.Allocation.ReceiverID)
	})

	s.Run("donor cannot donate for someone else", func() {
		_, err := s.svc.RecordDonation(as(donor), models.RecordDonationRequest{CampaignID: c.ID, Amount: amt("5.00"), DonorID: "donor-2"})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("admin records on behalf of donor", func() {
		res, err := s.svc.RecordDonation(as(admin), models.RecordDonationRequest{CampaignID: c.ID, Amount: amt("5.00"), DonorID: "donor-2"})
		s.Require().NoError(err)
		s.Equal(domain.ActorID("donor-2"), res.Donation.DonorID)
	})

	s.Run("allocation mirrors donation", func() {
		res := s.donate(donor, c, "12.34")
		s.Equal(res.Donation.ID, res.Allocation.DonationID)
		s.True(res.Donation.Amount.Equal(res.Allocation.Amount))
		s.Equal(c.ID, res.Allocation.CampaignID)
	})
}

func (s *ServiceSuite) TestClosedCampaignRejectsDonations() {
	end := now.Add(-48 * time.Hour)
	start := end.Add(-72 * time.Hour)
	c, err := s.svc.CreateCampaign(as(operator), models.CreateCampaignRequest{Title: "Past", StartDate: &start, EndDate: &end})
	s.Require().NoError(err)
	s.receiver("A")

	_, err = s.svc.RecordDonation(as(donor), models.RecordDonationRequest{CampaignID: c.ID, Amount: amt("5.00")})
	s.True(dErrors.HasCode(err, dErrors.CodeCampaignClosed))

	endsToday := now.Truncate(24 * time.Hour)
	open, err := s.svc.CreateCampaign(as(operator), models.CreateCampaignRequest{Title: "Ends today", EndDate: &endsToday})
	s.Require().NoError(err)
	_, err = s.svc.RecordDonation(as(donor), models.RecordDonationRequest{CampaignID: open.ID, Amount: amt("5.00")})
	s.NoError(err)
}

func (s *ServiceSuite) TestVerifyOnce() {
	c := s.campaign("Relief")
	s.receiver("A")
	d := s.donate(donor, c, "20.00")

	_, err := s.svc.VerifyDonation(as(operator), d.Donation.ID)
	s.Require().NoError(err)
	entries := s.auditCount()

	_, err = s.svc.VerifyDonation(as(admin), d.Donation.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeAlreadyVerified))
	s.Equal("20.00", s.balance(c.ID).String())
	s.Equal(entries, s.auditCount())

	_, err = s.svc.VerifyDonation(as(operator), 999)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestAllocationStateMachine() {
	c := s.campaign("Relief")
	s.receiver("A")

	s.Run("approve, revert, approve", func() {
		d := s.donate(donor, c, "5.00")
		res, err := s.svc.SetAllocationStatus(as(operator), d.Allocation.ID, "approved")
		s.Require().NoError(err)
		s.Equal(models.AllocationPending, res.PreviousStatus)
		res, err = s.svc.SetAllocationStatus(as(acct), d.Allocation.ID, "pending")
		s.Require().NoError(err)
		s.Equal(models.AllocationApproved, res.PreviousStatus)
		_, err = s.svc.SetAllocationStatus(as(operator), d.Allocation.ID, "approved")
		s.Require().NoError(err)
	})

	s.Run("same status is not a transition", func() {
		d := s.donate(donor, c, "5.00")
		_, err := s.svc.SetAllocationStatus(as(operator), d.Allocation.ID, "pending")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})

	s.Run("rejected is terminal", func() {
		d := s.donate(donor, c, "5.00")
		_, err := s.svc.SetAllocationStatus(as(operator), d.Allocation.ID, "rejected")
		s.Require().NoError(err)
		for _, next := range []string{"pending", "approved", "disbursed"} {
			_, err := s.svc.SetAllocationStatus(as(admin), d.Allocation.ID, next)
			s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition), next)
		}
	})

	s.Run("disbursed only through disbursement", func() {
		d := s.donate(donor, c, "5.00")
		s.approve(d.Allocation.ID)
		_, err := s.svc.SetAllocationStatus(as(admin), d.Allocation.ID, "disbursed")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})

	s.Run("disbursed is terminal", func() {
		d := s.donate(donor, c, "5.00")
		_, err := s.svc.VerifyDonation(as(operator), d.Donation.ID)
		s.Require().NoError(err)
		s.approve(d.Allocation.ID)
		_, err = s.svc.RecordDisbursement(as(acct), models.RecordDisbursementRequest{AllocationID: d.Allocation.ID, Amount: amt("5.00"), PaymentRef: "P"})
		s.Require().NoError(err)

		for _, next := range []string{"pending", "approved", "rejected"} {
			_, err := s.svc.SetAllocationStatus(as(admin), d.Allocation.ID, next)
			s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition), next)
		}
		_, err = s.svc.RecordDisbursement(as(acct), models.RecordDisbursementRequest{AllocationID: d.Allocation.ID, Amount: amt("5.00"), PaymentRef: "P2"})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})

	s.Run("unknown status and allocation", func() {
		_, err := s.svc.SetAllocationStatus(as(operator), 1, "paid")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		_, err = s.svc.SetAllocationStatus(as(operator), 999, "approved")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.assertBalanceInvariant(c.ID)
}

func (s *ServiceSuite) TestInsufficientBalanceLeavesEverythingUnchanged() {
	c := s.campaign("Relief")
	s.receiver("A")
	d := s.donate(donor, c, "30.00")
	s.approve(d.Allocation.ID)
	entries := s.auditCount()

	_, err := s.svc.RecordDisbursement(as(acct), models.RecordDisbursementRequest{
		AllocationID: d.Allocation.ID, Amount: amt("30.00"), PaymentRef: "WIRE-9",
	})
	s.True(dErrors.HasCode(err, dErrors.CodeInsufficientBalance))

	a, _ := s.store.GetAllocation(context.Background(), d.Allocation.ID)
	s.Equal(models.AllocationApproved, a.Status)
	s.True(s.balance(c.ID).IsZero())
	disbursements, _ := s.store.ListDisbursements(context.Background(), models.DisbursementFilter{})
	s.Empty(disbursements)
	s.Equal(entries, s.auditCount())
	s.assertBalanceInvariant(c.ID)
}

func (s *ServiceSuite) TestDisbursementValidation() {
	c := s.campaign("Relief")
	s.receiver("A")
	d := s.donate(donor, c, "10.00")

	cases := []struct {
		name string
		req  models.RecordDisbursementRequest
		code dErrors.Code
	}{
		{"missing payment ref", models.RecordDisbursementRequest{AllocationID: d.Allocation.ID, Amount: amt("10.00"), PaymentRef: "  "}, dErrors.CodeValidation},
		{"zero amount", models.RecordDisbursementRequest{AllocationID: d.Allocation.ID, Amount: amt("0.00"), PaymentRef: "P"}, dErrors.CodeInvalidAmount},
		{"unknown allocation", models.RecordDisbursementRequest{AllocationID: 404, Amount: amt("10.00"), PaymentRef: "P"}, dErrors.CodeNotFound},
		{"pending allocation", models.RecordDisbursementRequest{AllocationID: d.Allocation.ID, Amount: amt("10.00"), PaymentRef: "P"}, dErrors.CodeInvalidTransition},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			_, err := s.svc.RecordDisbursement(as(acct), tc.req)
			s.True(dErrors.HasCode(err, tc.code), "got %v", err)
		})
	}
}

func (s *ServiceSuite) TestAttachDocumentValidation() {
	s.Run("missing hash", func() {
		_, err := s.svc.AttachDocument(as(acct), models.AttachDocumentRequest{DisbursementID: 1, StorageLocator: "s3://x"})
		s.True(dErrors.HasCode(err, dErrors.CodeMissingHash))
	})
	s.Run("missing locator", func() {
		_, err := s.svc.AttachDocument(as(acct), models.AttachDocumentRequest{DisbursementID: 1, ContentHash: "h"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
	s.Run("unknown disbursement", func() {
		_, err := s.svc.AttachDocument(as(acct), models.AttachDocumentRequest{DisbursementID: 1, StorageLocator: "s3://x", ContentHash: "h"})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestAuditSnapshotsMatchState() {
	c := s.campaign("Relief")
	s.receiver("A")
	d := s.donate(donor, c, "40.00")
	_, err := s.svc.VerifyDonation(as(operator), d.Donation.ID)
	s.Require().NoError(err)

	entries, err := s.svc.ListAudit(as(auditor), audit.Filter{
		EntityType: audit.EntityDonation,
		EntityID:   d.Donation.ID.String(),
	})
	s.Require().NoError(err)
	s.Require().Len(entries, 2)

	recorded := entries[0]
	s.Nil(recorded.Before)
	var after struct {
		Donation   models.Donation   `json:"donation"`
		Allocation models.Allocation `json:"allocation"`
	}
	s.Require().NoError(json.Unmarshal(recorded.After, &after))
	s.Equal(d.Donation.ID, after.Donation.ID)
	s.Equal(d.Allocation.ID, after.Allocation.ID)
	s.Equal(domain.ActorID("donor-1"), recorded.ActorID)
	s.Equal(domain.RoleDonor, recorded.ActorRole)
	s.Equal("req-test", recorded.RequestID)
	s.Equal(now, recorded.OccurredAt)

	verified := entries[1]
	var before, afterV struct {
		Donation models.Donation `json:"donation"`
		Balance  money.Amount    `json:"campaign_balance"`
	}
	s.Require().NoError(json.Unmarshal(verified.Before, &before))
	s.Require().NoError(json.Unmarshal(verified.After, &afterV))
	s.False(before.Donation.Verified)
	s.True(afterV.Donation.Verified)
	s.Equal("0.00", before.Balance.String())
	s.Equal("40.00", afterV.Balance.String())
	s.Less(recorded.Seq, verified.Seq)
}

func (s *ServiceSuite) TestRejectedAllocationKeepsVerifiedFunds() {
	c := s.campaign("Relief")
	s.receiver("A")
	d := s.donate(donor, c, "15.00")
	_, err := s.svc.VerifyDonation(as(operator), d.Donation.ID)
	s.Require().NoError(err)
	_, err = s.svc.SetAllocationStatus(as(operator), d.Allocation.ID, "rejected")
	s.Require().NoError(err)

	s.Equal("15.00", s.balance(c.ID).String())
	s.assertBalanceInvariant(c.ID)
}

func (s *ServiceSuite) TestReadViews() {
	c := s.campaign("Relief")
	s.receiver("Shelter")
	mine := s.donate(donor, c, "10.00")
	s.donate(otherDonor, c, "20.00")

	s.Run("donor sees only own donations", func() {
		views, err := s.svc.ListDonations(as(donor), models.DonationFilter{})
		s.Require().NoError(err)
		s.Require().Len(views, 1)
		s.Equal(mine.Donation.ID, views[0].ID)
		s.Equal("Relief", views[0].CampaignTitle)
		s.Equal("Dana Donor", views[0].DonorName)
	})

	s.Run("donor filter cannot be widened", func() {
		views, err := s.svc.ListAllocations(as(donor), models.AllocationFilter{DonorID: "donor-2"})
		s.Require().NoError(err)
		s.Require().Len(views, 1)
		s.Equal(mine.Allocation.ID, views[0].ID)
		s.Equal("Shelter", views[0].ReceiverName)
		s.False(views[0].DonationVerified)
	})

	s.Run("operator sees all", func() {
		views, err := s.svc.ListDonations(as(operator), models.DonationFilter{CampaignID: c.ID})
		s.Require().NoError(err)
		s.Len(views, 2)
	})

	s.Run("disbursement views", func() {
		_, err := s.svc.VerifyDonation(as(operator), mine.Donation.ID)
		s.Require().NoError(err)
		s.approve(mine.Allocation.ID)
		_, err = s.svc.RecordDisbursement(as(acct), models.RecordDisbursementRequest{AllocationID: mine.Allocation.ID, Amount: amt("10.00"), PaymentRef: "P"})
		s.Require().NoError(err)

		views, err := s.svc.ListDisbursements(as(auditor), models.DisbursementFilter{CampaignID: c.ID})
		s.Require().NoError(err)
		s.Require().Len(views, 1)
		s.Equal("Relief", views[0].CampaignTitle)
		s.Equal("Shelter", views[0].ReceiverName)
		s.Equal("Ari Accountant", views[0].RecordedBy)

		docs, err := s.svc.ListDocuments(as(auditor), views[0].ID)
		s.Require().NoError(err)
		s.Empty(docs)
	})

	s.Run("campaign lookups", func() {
		got, err := s.svc.GetCampaign(as(donor), c.ID)
		s.Require().NoError(err)
		s.Equal("Relief", got.Title)
		_, err = s.svc.GetCampaign(as(donor), 999)
		s.True(dErrors.HasCode(err, dErrors.CodeCampaignNotFound))

		all, err := s.svc.ListCampaigns(as(donor))
		s.Require().NoError(err)
		s.Require().Len(all, 1)
		s.Equal(c.ID, all[0].ID)
	})

	s.Run("receivers listed by id", func() {
		s.receiver("Clinic")
		receivers, err := s.svc.ListReceivers(as(auditor))
		s.Require().NoError(err)
		s.Require().Len(receivers, 2)
		s.Equal("Shelter", receivers[0].Name)
		s.Equal("Clinic", receivers[1].Name)
	})
}

func (s *ServiceSuite) TestAuditListLimit() {
	for i := range 5 {
		s.campaign("C" + domain.CampaignID(i).String())
	}
	entries, err := s.svc.ListAudit(as(admin), audit.Filter{Limit: 2})
	s.Require().NoError(err)
	s.Len(entries, 2)
}

func (s *ServiceSuite) TestConcurrentDisbursementsNeverOverdraw() {
	c := s.campaign("Relief")
	s.receiver("A")

	// 10.00 verified, two approved 10.00 allocations: only one may be paid.
	funded := s.donate(donor, c, "10.00")
	_, err := s.svc.VerifyDonation(as(operator), funded.Donation.ID)
	s.Require().NoError(err)
	unfunded := s.donate(donor, c, "10.00")
	s.approve(funded.Allocation.ID)
	s.approve(unfunded.Allocation.ID)

	errs := make(chan error, 2)
	for _, id := range []domain.AllocationID{funded.Allocation.ID, unfunded.Allocation.ID} {
		go func() {
			_, err := s.svc.RecordDisbursement(as(acct), models.RecordDisbursementRequest{AllocationID: id, Amount: amt("10.00"), PaymentRef: "P-" + id.String()})
			errs <- err
		}()
	}
	var ok, insufficient int
	for range 2 {
		err := <-errs
		switch {
		case err == nil:
			ok++
		case dErrors.HasCode(err, dErrors.CodeInsufficientBalance):
			insufficient++
		default:
			s.Failf("unexpected error", "%v", err)
		}
	}
	s.Equal(1, ok)
	s.Equal(1, insufficient)
	s.True(s.balance(c.ID).IsZero())
	s.assertBalanceInvariant(c.ID)
}

func (s *ServiceSuite) TestStorageUnavailableIsRetryable() {
	c := s.campaign("Relief")
	s.receiver("A")
	s.Require().NoError(s.store.Close())

	_, err := s.svc.RecordDonation(as(donor), models.RecordDonationRequest{CampaignID: c.ID, Amount: amt("1.00")})
	s.True(dErrors.IsRetryable(err))
	s.True(dErrors.HasCode(err, dErrors.CodeStorageUnavailable))
}

func (s *ServiceSuite) TestBalanceCannotExceedMaximumAmount() {
	c := s.campaign("Relief")
	s.receiver("A")
	big := s.donate(donor, c, money.Max.String())
	cent := s.donate(donor, c, "0.01")

	_, err := s.svc.VerifyDonation(as(operator), big.Donation.ID)
	s.Require().NoError(err)
	entries := s.auditCount()

	_, err = s.svc.VerifyDonation(as(operator), cent.Donation.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidAmount))

	d, err := s.store.GetDonation(context.Background(), cent.Donation.ID)
	s.Require().NoError(err)
	s.False(d.Verified)
	s.Equal(entries, s.auditCount())
	s.True(s.balance(c.ID).Equal(money.Max))
}

func TestTranslate(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want dErrors.Code
	}{
		{"unavailable", fmt.Errorf("tx: %w", sentinel.ErrUnavailable), dErrors.CodeStorageUnavailable},
		{"lock", lock.ErrNotAcquired, dErrors.CodeStorageUnavailable},
		{"missing row", fmt.Errorf("get: %w", sentinel.ErrNotFound), dErrors.CodeNotFound},
		{"stale state", fmt.Errorf("update: %w", sentinel.ErrConflict), dErrors.CodeInvalidTransition},
		{"numeric overflow", fmt.Errorf("insert: %w", sentinel.ErrOutOfRange), dErrors.CodeInvalidAmount},
		{"anything else", errors.New("boom"), dErrors.CodeInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, dErrors.CodeOf(translate(tc.err)))
		})
	}
	assert.NoError(t, translate(nil))
}

func (s *ServiceSuite) TestOperationsAreTraced() {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	s.T().Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	svc := New(s.store, WithTracer(tp.Tracer("ledger-test")))

	c, err := svc.CreateCampaign(as(admin), models.CreateCampaignRequest{Title: "Traced"})
	s.Require().NoError(err)
	_, err = svc.CreateReceiver(as(admin), models.CreateReceiverRequest{Name: "R", Category: "food", PaymentDestination: "IBAN"})
	s.Require().NoError(err)
	d, err := svc.RecordDonation(as(donor), models.RecordDonationRequest{CampaignID: c.ID, Amount: amt("5.00")})
	s.Require().NoError(err)
	_, err = svc.SetAllocationStatus(as(donor), d.Allocation.ID, "approved")
	s.Require().Error(err)

	spans := recorder.Ended()
	s.Require().Len(spans, 4, "one span per operation")
	names := make([]string, 0, len(spans))
	for _, span := range spans {
		names = append(names, span.Name())
	}
	s.Equal([]string{
		"ledger.create_campaign",
		"ledger.create_receiver",
		"ledger.record_donation",
		"ledger.set_allocation_status",
	}, names)

	s.Equal(otelcodes.Unset, spans[2].Status().Code)
	s.Contains(spans[2].Attributes(), attribute.Int64("campaign_id", int64(c.ID)))

	denied := spans[3]
	s.Equal(otelcodes.Error, denied.Status().Code)
	s.Equal(string(dErrors.CodeForbidden), denied.Status().Description)
	s.Require().NotEmpty(denied.Events())
	s.Equal("exception", denied.Events()[0].Name)
}
