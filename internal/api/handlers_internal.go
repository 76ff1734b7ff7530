package api

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dulu/payments-service/internal/store"
)

// InternalAuthMiddleware validates the internal API key for server-to-server
// calls. An unconfigured key disables the internal surface entirely rather
// than leaving it open.
func InternalAuthMiddleware(requiredKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if requiredKey == "" {
				http.Error(w, "Internal API not configured", http.StatusServiceUnavailable)
				return
			}

			provided := r.Header.Get("X-Internal-API-Key")
			if provided == "" || provided != requiredKey {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ReconcileDepositHandler re-polls the processor for a deposit that may have
// missed its webhook and applies the result through the normal transition
// rules. Called by operations tooling and the scheduler, not by clients.
func (h *PaymentHandlers) ReconcileDepositHandler(w http.ResponseWriter, r *http.Request) {
	depositID := strings.TrimSpace(chi.URLParam(r, "depositID"))
	if depositID == "" {
		h.writeError(w, http.StatusBadRequest, "Deposit ID is required")
		return
	}

	resp, err := h.payments.CheckDepositStatus(r.Context(), depositID, true)
	if err != nil {
		if errors.Is(err, store.ErrTransactionNotFound) {
			h.writeError(w, http.StatusNotFound, "Deposit not found")
			return
		}
		log.Printf("level=error component=api endpoint=internal_reconcile outcome=failed deposit_id=%s err=%v", depositID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	log.Printf("level=info component=api endpoint=internal_reconcile deposit_id=%s status=%s", depositID, resp.Status)
	h.writeJSON(w, http.StatusOK, resp)
}
