package handler

import (
	"net/http"

	"donation-ledger/internal/ledger/models"
	"donation-ledger/pkg/domain"
	"donation-ledger/pkg/platform/httputil"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) handleRecordDisbursement(w http.ResponseWriter, r *http.Request) {
	req, ok := decode[models.RecordDisbursementRequest](h, w, r)
	if !ok {
		return
	}
	result, err := h.service.RecordDisbursement(r.Context(), *req)
	if err != nil {
		h.fail(w, r, "record disbursement failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, result)
}

func (h *Handler) handleListDisbursements(w http.ResponseWriter, r *http.Request) {
	filter, err := parseDisbursementFilter(r.URL.Query())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	disbursements, err := h.service.ListDisbursements(r.Context(), filter)
	if err != nil {
		h.fail(w, r, "list disbursements failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list(disbursements))
}

func (h *Handler) handleAttachDocument(w http.ResponseWriter, r *http.Request) {
	req, ok := decode[models.AttachDocumentRequest](h, w, r)
	if !ok {
		return
	}
	doc, err := h.service.AttachDocument(r.Context(), *req)
	if err != nil {
		h.fail(w, r, "attach document failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, doc)
}

func (h *Handler) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseDisbursementID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	docs, err := h.service.ListDocuments(r.Context(), id)
	if err != nil {
		h.fail(w, r, "list documents failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list(docs))
}
