package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shunichi-ikebuchi/billing-portal/internal/emulator/models"
	"github.com/shunichi-ikebuchi/billing-portal/internal/emulator/store"
)

// InvoicesHandler handles invoice endpoints.
type InvoicesHandler struct {
	store *store.Store
}

// NewInvoicesHandler creates a new InvoicesHandler.
func NewInvoicesHandler(s *store.Store) *InvoicesHandler {
	return &InvoicesHandler{store: s}
}

// List handles GET /api/invoices/get.
func (h *InvoicesHandler) List(w http.ResponseWriter, r *http.Request) {
	invoices, err := h.store.ListInvoices(userID(r))
	if err != nil {
		slog.Error("failed to list invoices", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "Failed to list invoices")
		return
	}

	writeJSON(w, http.StatusOK, "Invoices retrieved successfully", invoices)
}

type detailRequest struct {
	InvoiceID string `json:"invoice_id"`
}

// Detail handles POST /api/invoices/get/detail. The response is not wrapped
// in the envelope.
func (h *InvoicesHandler) Detail(w http.ResponseWriter, r *http.Request) {
	var req detailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Failed to parse request body")
		return
	}

	id := strings.TrimSpace(req.InvoiceID)
	if id == "" {
		writeJSONError(w, http.StatusBadRequest, "Missing invoice_id")
		return
	}

	inv, details, err := h.store.GetInvoice(userID(r), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "Invoice not found")
			return
		}
		slog.Error("failed to get invoice", "error", err, "invoice_id", id)
		writeJSONError(w, http.StatusInternalServerError, "Failed to get invoice")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(models.InvoiceDetailResponse{
		Invoice:        *inv,
		InvoiceDetails: details,
	})
}
