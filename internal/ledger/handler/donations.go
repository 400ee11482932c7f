package handler

import (
	"net/http"

	"donation-ledger/internal/ledger/models"
	"donation-ledger/pkg/domain"
	"donation-ledger/pkg/platform/httputil"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) handleRecordDonation(w http.ResponseWriter, r *http.Request) {
	req, ok := decode[models.RecordDonationRequest](h, w, r)
	if !ok {
		return
	}
	result, err := h.service.RecordDonation(r.Context(), *req)
	if err != nil {
		h.fail(w, r, "record donation failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, result)
}

func (h *Handler) handleVerifyDonation(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseDonationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	result, err := h.service.VerifyDonation(r.Context(), id)
	if err != nil {
		h.fail(w, r, "verify donation failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleListDonations(w http.ResponseWriter, r *http.Request) {
	filter, err := parseDonationFilter(r.URL.Query())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	donations, err := h.service.ListDonations(r.Context(), filter)
	if err != nil {
		h.fail(w, r, "list donations failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list(donations))
}

func (h *Handler) handleSetAllocationStatus(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseAllocationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := decode[models.SetAllocationStatusRequest](h, w, r)
	if !ok {
		return
	}
	result, err := h.service.SetAllocationStatus(r.Context(), id, req.Status)
	if err != nil {
		h.fail(w, r, "set allocation status failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleListAllocations(w http.ResponseWriter, r *http.Request) {
	filter, err := parseAllocationFilter(r.URL.Query())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	allocations, err := h.service.ListAllocations(r.Context(), filter)
	if err != nil {
		h.fail(w, r, "list allocations failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list(allocations))
}
