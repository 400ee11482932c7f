// Package handler exposes the lifecycle engine over JSON/HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"donation-ledger/internal/access"
	"donation-ledger/internal/audit"
	"donation-ledger/internal/ledger/models"
	"donation-ledger/pkg/domain"
	"donation-ledger/pkg/platform/httputil"
	"donation-ledger/pkg/requestcontext"

	"github.com/go-chi/chi/v5"
)

// Service is the lifecycle engine as seen by the transport.
type Service interface {
	CreateCampaign(ctx context.Context, req models.CreateCampaignRequest) (*models.Campaign, error)
	GetCampaign(ctx context.Context, id domain.CampaignID) (*models.Campaign, error)
	ListCampaigns(ctx context.Context) ([]*models.Campaign, error)
	ReconcileCampaign(ctx context.Context, id domain.CampaignID) (*models.Reconciliation, error)
	CreateReceiver(ctx context.Context, req models.CreateReceiverRequest) (*models.Receiver, error)
	ListReceivers(ctx context.Context) ([]*models.Receiver, error)
	RecordDonation(ctx context.Context, req models.RecordDonationRequest) (*models.DonationResult, error)
	VerifyDonation(ctx context.Context, id domain.DonationID) (*models.VerifyResult, error)
	ListDonations(ctx context.Context, filter models.DonationFilter) ([]*models.DonationView, error)
	SetAllocationStatus(ctx context.Context, id domain.AllocationID, status string) (*models.AllocationResult, error)
	ListAllocations(ctx context.Context, filter models.AllocationFilter) ([]*models.AllocationView, error)
	RecordDisbursement(ctx context.Context, req models.RecordDisbursementRequest) (*models.DisbursementResult, error)
	ListDisbursements(ctx context.Context, filter models.DisbursementFilter) ([]*models.DisbursementView, error)
	AttachDocument(ctx context.Context, req models.AttachDocumentRequest) (*models.Document, error)
	ListDocuments(ctx context.Context, id domain.DisbursementID) ([]*models.Document, error)
	ListAudit(ctx context.Context, filter audit.Filter) ([]audit.EntryView, error)
}

// Handler wires ledger endpoints to the engine.
type Handler struct {
	service Service
	policy  access.Policy
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts the ledger endpoints. Authentication is applied by the
// caller's router group; mutation routes check the policy table before the
// body is read.
func (h *Handler) Register(r chi.Router) {
	r.Route("/campaigns", func(r chi.Router) {
		r.With(h.require(access.OpCreateCampaign)).Post("/", h.handleCreateCampaign)
		r.Get("/", h.handleListCampaigns)
		r.Get("/{id}", h.handleGetCampaign)
		r.Get("/{id}/reconcile", h.handleReconcileCampaign)
	})
	r.With(h.require(access.OpCreateReceiver)).Post("/receivers", h.handleCreateReceiver)
	r.Get("/receivers", h.handleListReceivers)

	r.With(h.require(access.OpRecordDonation)).Post("/donations", h.handleRecordDonation)
	r.Get("/donations", h.handleListDonations)
	r.With(h.require(access.OpVerifyDonation)).Put("/donations/{id}/verify", h.handleVerifyDonation)

	r.Get("/allocations", h.handleListAllocations)
	r.With(h.require(access.OpSetAllocationStatus)).Put("/allocations/{id}/status", h.handleSetAllocationStatus)

	r.With(h.require(access.OpRecordDisbursement)).Post("/disbursements", h.handleRecordDisbursement)
	r.Get("/disbursements", h.handleListDisbursements)
	r.Get("/disbursements/{id}/documents", h.handleListDocuments)
	r.With(h.require(access.OpAttachDocument)).Post("/documents", h.handleAttachDocument)

	r.Get("/audit", h.handleListAudit)
}

// require answers 403 for actors the policy table does not allow op, before
// the body is decoded. The engine checks again.
func (h *Handler) require(op access.Operation) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := h.policy.Check(requestcontext.Actor(r.Context()), op); err != nil {
				h.fail(w, r, "operation denied", err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// fail logs err at a level matching its class and writes the response.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	ctx := r.Context()
	status := httputil.StatusOf(err)
	attrs := []any{
		"request_id", requestcontext.RequestID(ctx),
		"actor_id", requestcontext.Actor(ctx).ID,
		"status", status,
		"error", err,
	}
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, msg, attrs...)
	} else {
		h.logger.WarnContext(ctx, msg, attrs...)
	}
	httputil.WriteError(w, err)
}

// decode runs DecodeAndPrepare with the request's logging context.
func decode[T any](h *Handler, w http.ResponseWriter, r *http.Request) (*T, bool) {
	ctx := r.Context()
	return httputil.DecodeAndPrepare[T](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
}

type listResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

func list[T any](items []T) listResponse[T] {
	if items == nil {
		items = []T{}
	}
	return listResponse[T]{Items: items, Count: len(items)}
}
