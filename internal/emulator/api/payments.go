package api

import (
	"log/slog"
	"net/http"

	"github.com/shunichi-ikebuchi/billing-portal/internal/emulator/store"
)

// PaymentsHandler handles payment endpoints.
type PaymentsHandler struct {
	store *store.Store
}

// NewPaymentsHandler creates a new PaymentsHandler.
func NewPaymentsHandler(s *store.Store) *PaymentsHandler {
	return &PaymentsHandler{store: s}
}

// List handles GET /api/payments/get.
func (h *PaymentsHandler) List(w http.ResponseWriter, r *http.Request) {
	payments, err := h.store.ListPayments(userID(r))
	if err != nil {
		slog.Error("failed to list payments", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "Failed to list payments")
		return
	}

	writeJSON(w, http.StatusOK, "Payments retrieved successfully", payments)
}
