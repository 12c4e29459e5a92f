package portal

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/shunichi-ikebuchi/billing-portal/pkg/billing"
	"github.com/shunichi-ikebuchi/billing-portal/pkg/db"
)

const (
	exportErrorMessage = "Failed to generate PDF"
	maxExportBody      = 1 << 20
)

type exportRequest struct {
	InvoiceID string `json:"invoice_id"`
	JWTToken  string `json:"jwt_token"`
}

// generatePDF handles POST /api/generate-pdf. Each request performs one
// detail fetch and one render; nothing is shared between requests.
func (s *Server) generatePDF(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxExportBody)).Decode(&req); err != nil {
		s.metrics.observeExport(exportBadRequest)
		writeJSONError(w, http.StatusBadRequest, exportErrorMessage, "invalid request body: "+err.Error())
		return
	}

	invoiceID := strings.TrimSpace(req.InvoiceID)
	if invoiceID == "" {
		s.metrics.observeExport(exportBadRequest)
		writeJSONError(w, http.StatusBadRequest, exportErrorMessage, "invoice_id is required")
		return
	}

	// The page script relies on the session cookie; API callers pass the
	// bearer token in the body.
	var email, sessionToken string
	if id, err := s.sessions.Read(r); err == nil {
		email, sessionToken = id.Email, id.Token
	}
	token := strings.TrimSpace(req.JWTToken)
	if token == "" {
		token = sessionToken
	}
	if token == "" {
		s.metrics.observeExport(exportUnauthorized)
		writeJSONError(w, http.StatusUnauthorized, exportErrorMessage, "missing authentication token")
		return
	}

	logger := s.logger.With("invoice_id", invoiceID)

	detail, err := s.billing.GetInvoiceDetail(r.Context(), token, invoiceID)
	if err != nil {
		if errors.Is(err, billing.ErrUnauthenticated) {
			s.metrics.observeExport(exportUnauthorized)
			writeJSONError(w, http.StatusUnauthorized, exportErrorMessage, err.Error())
			return
		}
		logger.Error("failed to fetch invoice for export", "error", err)
		s.metrics.observeExport(exportFailed)
		writeJSONError(w, http.StatusInternalServerError, exportErrorMessage, err.Error())
		return
	}

	pdf, err := s.renderer.Render(r.Context(), &detail.Invoice, detail.Items)
	if err != nil {
		logger.Error("failed to render invoice", "error", err)
		s.metrics.observeExport(exportFailed)
		writeJSONError(w, http.StatusInternalServerError, exportErrorMessage, "document rendering failed")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="`+ExportFilename(detail.Invoice)+`"`)
	w.Header().Set("Cache-Control", "no-store, max-age=0")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(pdf); err != nil {
		logger.Warn("failed to write pdf response", "error", err)
		return
	}

	s.metrics.observeExport(exportSuccess)
	logger.Info("invoice exported", "bytes", len(pdf))

	if s.history != nil {
		err := s.history.Record(r.Context(), db.ExportRecord{
			InvoiceID:     detail.Invoice.ID,
			InvoiceNumber: detail.Invoice.Number,
			UserEmail:     email,
			Source:        db.SourcePortal,
			Bytes:         len(pdf),
			ExportedAt:    s.now(),
		})
		if err != nil {
			logger.Warn("failed to record export", "error", err)
		}
	}
}

// ExportFilename is the download name of an invoice document, built from the
// invoice number or, when that is blank, the invoice ID.
func ExportFilename(inv billing.Invoice) string {
	name := inv.Number
	if name == "" {
		name = inv.ID
	}
	return "invoice-" + safeFilename(name) + ".pdf"
}

// safeFilename keeps letters, digits, dot, dash and underscore and replaces
// anything else with a dash.
func safeFilename(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		}
		return '-'
	}, name)
}
