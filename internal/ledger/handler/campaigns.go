package handler

import (
	"net/http"

	"donation-ledger/internal/ledger/models"
	"donation-ledger/pkg/domain"
	"donation-ledger/pkg/platform/httputil"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) handleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	req, ok := decode[models.CreateCampaignRequest](h, w, r)
	if !ok {
		return
	}
	campaign, err := h.service.CreateCampaign(r.Context(), *req)
	if err != nil {
		h.fail(w, r, "create campaign failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, campaign)
}

func (h *Handler) handleListCampaigns(w http.ResponseWriter, r *http.Request) {
	campaigns, err := h.service.ListCampaigns(r.Context())
	if err != nil {
		h.fail(w, r, "list campaigns failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list(campaigns))
}

func (h *Handler) handleGetCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseCampaignID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	campaign, err := h.service.GetCampaign(r.Context(), id)
	if err != nil {
		h.fail(w, r, "get campaign failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, campaign)
}

func (h *Handler) handleReconcileCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseCampaignID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	rec, err := h.service.ReconcileCampaign(r.Context(), id)
	if err != nil {
		h.fail(w, r, "reconcile campaign failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec)
}

func (h *Handler) handleCreateReceiver(w http.ResponseWriter, r *http.Request) {
	req, ok := decode[models.CreateReceiverRequest](h, w, r)
	if !ok {
		return
	}
	receiver, err := h.service.CreateReceiver(r.Context(), *req)
	if err != nil {
		h.fail(w, r, "create receiver failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, receiver)
}

func (h *Handler) handleListReceivers(w http.ResponseWriter, r *http.Request) {
	receivers, err := h.service.ListReceivers(r.Context())
	if err != nil {
		h.fail(w, r, "list receivers failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list(receivers))
}
