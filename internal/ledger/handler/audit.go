package handler

import (
	"net/http"

	"donation-ledger/pkg/platform/httputil"
)

func (h *Handler) handleListAudit(w http.ResponseWriter, r *http.Request) {
	filter, err := parseAuditFilter(r.URL.Query())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	entries, err := h.service.ListAudit(r.Context(), filter)
	if err != nil {
		h.fail(w, r, "list audit failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list(entries))
}
