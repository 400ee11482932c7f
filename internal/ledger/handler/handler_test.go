package handler

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"donation-ledger/internal/audit"
	"donation-ledger/internal/ledger/models"
	"donation-ledger/internal/ledger/service"
	"donation-ledger/internal/ledger/store/memory"
	"donation-ledger/pkg/domain"
	"donation-ledger/pkg/testutil"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

var (
	admin    = domain.Actor{ID: "admin-1", Name: "Ada Admin", Role: domain.RoleAdmin}
	donor    = domain.Actor{ID: "donor-1", Name: "Dana Donor", Role: domain.RoleDonor}
	operator = domain.Actor{ID: "op-1", Name: "Olu Operator", Role: domain.RoleOperator}
	acct     = domain.Actor{ID: "acct-1", Name: "Ari Accountant", Role: domain.RoleAccountant}
	auditor  = domain.Actor{ID: "aud-1", Name: "Avi Auditor", Role: domain.RoleAuditor}
)

type HandlerSuite struct {
	suite.Suite
	router chi.Router
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.New(memory.New(), service.WithLogger(logger))
	s.router = chi.NewRouter()
	New(svc, logger).Register(s.router)
}

func (s *HandlerSuite) do(actor domain.Actor, method, path string, body any) *httptest.ResponseRecorder {
	req := testutil.NewJSONRequest(s.T(), method, path, body)
	return testutil.DoRequest(s.router, testutil.WithActor(req, actor))
}

func (s *HandlerSuite) mustCreated(rr *httptest.ResponseRecorder) {
	s.T().Helper()
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
}

func (s *HandlerSuite) seedCampaign() *models.Campaign {
	rr := s.do(admin, http.MethodPost, "/campaigns", map[string]any{"title": "Flood Relief"})
	s.mustCreated(rr)
	return testutil.UnmarshalResponse[models.Campaign](s.T(), rr)
}

func (s *HandlerSuite) seedReceiver() *models.Receiver {
	rr := s.do(admin, http.MethodPost, "/receivers", map[string]any{
		"name": "Shelter", "category": "housing", "payment_destination": "IBAN-1",
	})
	s.mustCreated(rr)
	return testutil.UnmarshalResponse[models.Receiver](s.T(), rr)
}

func (s *HandlerSuite) TestDonationLifecycleOverHTTP() {
	t := s.T()
	c := s.seedCampaign()
	s.seedReceiver()

	var donation *models.DonationResult
	testutil.Given(t, "a donor records $50", func(t *testing.T) {
		rr := s.do(donor, http.MethodPost, "/donations", map[string]any{"campaign_id": c.ID, "amount": "50.00"})
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		donation = testutil.UnmarshalResponse[models.DonationResult](t, rr)
		assert.Equal(t, models.AllocationPending, donation.Allocation.Status)
	})

	testutil.When(t, "an operator verifies and approves it", func(t *testing.T) {
		rr := s.do(operator, http.MethodPut, "/donations/"+donation.Donation.ID.String()+"/verify", nil)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		testutil.AssertJSONContains(t, rr, "new_balance", "50.00")

		rr = s.do(operator, http.MethodPut, "/allocations/"+donation.Allocation.ID.String()+"/status", map[string]any{"status": "approved"})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		testutil.AssertJSONContains(t, rr, "previous_status", "pending")
	})

	testutil.Then(t, "an accountant can disburse exactly the allocation", func(t *testing.T) {
		rr := s.do(acct, http.MethodPost, "/disbursements", map[string]any{
			"allocation_id": donation.Allocation.ID, "amount": "49.99", "payment_ref": "TX-1",
		})
		testutil.AssertStatusAndError(t, rr, http.StatusUnprocessableEntity, "amount_mismatch")

		rr = s.do(acct, http.MethodPost, "/disbursements", map[string]any{
			"allocation_id": donation.Allocation.ID, "amount": "50.00", "payment_ref": "TX-1",
		})
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		res := testutil.UnmarshalResponse[models.DisbursementResult](t, rr)
		assert.Equal(t, "0.00", res.NewBalance.String())
		assert.Equal(t, models.AllocationDisbursed, res.Allocation.Status)

		rr = s.do(acct, http.MethodPost, "/documents", map[string]any{
			"disbursement_id": res.Disbursement.ID, "storage_locator": "s3://receipts/1.pdf", "content_hash": "sha256:abc",
		})
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

		rr = s.do(auditor, http.MethodGet, "/disbursements/"+res.Disbursement.ID.String()+"/documents", nil)
		testutil.AssertStatusOK(t, rr)
		testutil.AssertJSONContains(t, rr, "count", float64(1))
	})

	testutil.Then(t, "the auditor sees every mutation in order", func(t *testing.T) {
		rr := s.do(auditor, http.MethodGet, "/audit", nil)
		testutil.AssertStatusOK(t, rr)
		page := testutil.UnmarshalResponse[listResponse[audit.EntryView]](t, rr)
		actions := make([]audit.Action, 0, page.Count)
		for _, e := range page.Items {
			actions = append(actions, e.Action)
		}
		assert.Equal(t, []audit.Action{
			audit.ActionCampaignCreated,
			audit.ActionReceiverCreated,
			audit.ActionDonationRecorded,
			audit.ActionDonationVerified,
			audit.ActionAllocationStatusChanged,
			audit.ActionDisbursementRecorded,
			audit.ActionDocumentAttached,
		}, actions)

		rr = s.do(auditor, http.MethodGet, "/campaigns/"+c.ID.String()+"/reconcile", nil)
		testutil.AssertStatusOK(t, rr)
		testutil.AssertJSONContains(t, rr, "consistent", true)
	})
}

func (s *HandlerSuite) TestErrorMapping() {
	c := s.seedCampaign()
	s.seedReceiver()
	rr := s.do(donor, http.MethodPost, "/donations", map[string]any{"campaign_id": c.ID, "amount": "10.00"})
	s.mustCreated(rr)
	d := testutil.UnmarshalResponse[models.DonationResult](s.T(), rr)
	verifyPath := "/donations/" + d.Donation.ID.String() + "/verify"

	cases := []struct {
		name   string
		actor  domain.Actor
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"donor cannot change allocation status", donor, http.MethodPut, "/allocations/" + d.Allocation.ID.String() + "/status", map[string]any{"status": "approved"}, http.StatusForbidden, "forbidden"},
		{"donor with malformed disbursement is still forbidden", donor, http.MethodPost, "/disbursements", map[string]any{"allocation_id": 0}, http.StatusForbidden, "forbidden"},
		{"donor with unparseable amount is still forbidden", donor, http.MethodPost, "/disbursements", map[string]any{"amount": "1.005"}, http.StatusForbidden, "forbidden"},
		{"auditor posting an empty document is forbidden", auditor, http.MethodPost, "/documents", map[string]any{}, http.StatusForbidden, "forbidden"},
		{"operator creating a blank receiver is forbidden", operator, http.MethodPost, "/receivers", map[string]any{}, http.StatusForbidden, "forbidden"},
		{"large amount", donor, http.MethodPost, "/donations", map[string]any{"campaign_id": c.ID, "amount": "1000000000000.00"}, http.StatusBadRequest, "invalid_amount"},
		{"unknown campaign", admin, http.MethodGet, "/campaigns/999", nil, http.StatusNotFound, "campaign_not_found"},
		{"malformed id", admin, http.MethodGet, "/campaigns/abc", nil, http.StatusBadRequest, "bad_request"},
		{"zero amount", donor, http.MethodPost, "/donations", map[string]any{"campaign_id": c.ID, "amount": "0"}, http.StatusBadRequest, "invalid_amount"},
		{"sub-cent amount", donor, http.MethodPost, "/donations", map[string]any{"campaign_id": c.ID, "amount": "1.005"}, http.StatusBadRequest, "invalid_amount"},
		{"missing hash", acct, http.MethodPost, "/documents", map[string]any{"disbursement_id": 1, "storage_locator": "s3://x"}, http.StatusBadRequest, "missing_hash"},
		{"unknown status", operator, http.MethodPut, "/allocations/" + d.Allocation.ID.String() + "/status", map[string]any{"status": "paid"}, http.StatusBadRequest, "validation_failed"},
		{"bad audit filter", auditor, http.MethodGet, "/audit?entity_type=wallet", nil, http.StatusBadRequest, "bad_request"},
		{"bad audit range", auditor, http.MethodGet, "/audit?from=2026-05-01&to=2026-04-01", nil, http.StatusBadRequest, "bad_request"},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			rr := s.do(tc.actor, tc.method, tc.path, tc.body)
			testutil.AssertStatusAndError(s.T(), rr, tc.status, tc.code)
		})
	}

	s.Run("second verification conflicts", func() {
		rr := s.do(operator, http.MethodPut, verifyPath, nil)
		testutil.AssertStatusOK(s.T(), rr)
		rr = s.do(operator, http.MethodPut, verifyPath, nil)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, "already_verified")
	})
}

func (s *HandlerSuite) TestListFilters() {
	c := s.seedCampaign()
	s.seedReceiver()
	for _, amount := range []string{"5.00", "7.50"} {
		s.mustCreated(s.do(donor, http.MethodPost, "/donations", map[string]any{"campaign_id": c.ID, "amount": amount}))
	}
	s.mustCreated(s.do(admin, http.MethodPost, "/donations", map[string]any{"campaign_id": c.ID, "amount": "1.00", "donor_id": "donor-9"}))

	s.Run("donor only sees own donations", func() {
		rr := s.do(donor, http.MethodGet, "/donations", nil)
		testutil.AssertStatusOK(s.T(), rr)
		testutil.AssertJSONContains(s.T(), rr, "count", float64(2))
	})

	s.Run("admin filters by verified", func() {
		rr := s.do(admin, http.MethodGet, "/donations?verified=false&campaign_id="+c.ID.String(), nil)
		testutil.AssertStatusOK(s.T(), rr)
		testutil.AssertJSONContains(s.T(), rr, "count", float64(3))
	})

	s.Run("allocations by status", func() {
		rr := s.do(operator, http.MethodGet, "/allocations?status=approved", nil)
		testutil.AssertStatusOK(s.T(), rr)
		testutil.AssertJSONContains(s.T(), rr, "count", float64(0))
	})

	s.Run("empty lists encode as arrays", func() {
		rr := s.do(acct, http.MethodGet, "/disbursements", nil)
		testutil.AssertStatusOK(s.T(), rr)
		s.JSONEq(`{"items":[],"count":0}`, rr.Body.String())
	})

	s.Run("audit filter by entity", func() {
		rr := s.do(auditor, http.MethodGet, "/audit?entity_type=campaign&entity_id="+c.ID.String(), nil)
		testutil.AssertStatusOK(s.T(), rr)
		testutil.AssertJSONContains(s.T(), rr, "count", float64(1))
	})

	s.Run("bad verified flag", func() {
		rr := s.do(admin, http.MethodGet, "/donations?verified=maybe", nil)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
	})
}
