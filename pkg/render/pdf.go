// Package render produces invoice PDF documents.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/shunichi-ikebuchi/billing-portal/pkg/billing"
)

// ErrNoInvoice is returned when Render is called without an invoice.
var ErrNoInvoice = errors.New("render: no invoice to render")

// RenderError is returned when the PDF could not be composed or serialized.
// No partial document accompanies it.
type RenderError struct {
	InvoiceID string
	Err       error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render failed for invoice %s: %v", e.InvoiceID, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

const (
	marginLeft   = 15.0
	marginTop    = 15.0
	marginRight  = 15.0
	marginBottom = 20.0
	lineHeight   = 6.0
	logoWidth    = 30.0
	headerHeight = 8.0
	maxLogoSize  = 5 << 20
)

// Config represents the configuration for a Renderer.
type Config struct {
	Issuer      Issuer
	HTTPClient  *http.Client  // used for logo URLs
	LogoTimeout time.Duration // Default: 10 seconds
	Logger      *slog.Logger
}

// Renderer turns invoices into PDF bytes. It is safe for concurrent use; each
// call builds its own document.
type Renderer struct {
	issuer      Issuer
	httpClient  *http.Client
	logoTimeout time.Duration
	logger      *slog.Logger
	compress    bool
}

// New creates a Renderer.
func New(config Config) *Renderer {
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	logoTimeout := config.LogoTimeout
	if logoTimeout == 0 {
		logoTimeout = 10 * time.Second
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	issuer := config.Issuer
	if issuer.Name == "" {
		issuer = DefaultIssuer()
	}

	return &Renderer{
		issuer:      issuer,
		httpClient:  httpClient,
		logoTimeout: logoTimeout,
		logger:      logger,
		compress:    true,
	}
}

// Issuer returns the issuer profile printed on every document.
func (r *Renderer) Issuer() Issuer {
	return r.issuer
}

// Render produces an A4 PDF for inv and its line items. Identical input
// yields identical bytes.
func (r *Renderer) Render(ctx context.Context, inv *billing.Invoice, items []billing.InvoiceLineItem) (out []byte, err error) {
	if inv == nil {
		return nil, ErrNoInvoice
	}

	defer func() {
		if rec := recover(); rec != nil {
			out = nil
			err = &RenderError{InvoiceID: inv.ID, Err: fmt.Errorf("panic: %v", rec)}
		}
	}()

	doc := Compose(*inv, items, r.issuer)
	logo := r.loadLogo(ctx, inv.ID)

	pdf := r.newPDF(inv)
	w := &writer{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
	w.draw(doc, logo)

	if err := pdf.Error(); err != nil {
		return nil, &RenderError{InvoiceID: inv.ID, Err: err}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, &RenderError{InvoiceID: inv.ID, Err: err}
	}
	return buf.Bytes(), nil
}

func (r *Renderer) newPDF(inv *billing.Invoice) *gofpdf.Fpdf {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(r.compress)
	pdf.SetCatalogSort(true)

	created := inv.IssueDate
	if created.IsZero() {
		created = time.Unix(0, 0).UTC()
	}
	pdf.SetCreationDate(created)
	pdf.SetModificationDate(created)

	title := "Invoice " + inv.Number
	if inv.Number == "" {
		title = "Invoice " + inv.ID
	}
	pdf.SetTitle(title, true)
	pdf.SetAuthor(r.issuer.Name, true)
	pdf.SetCreator("billing-portal", false)

	pdf.SetMargins(marginLeft, marginTop, marginRight)
	pdf.SetAutoPageBreak(true, marginBottom)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Arial", "I", 8)
		pdf.SetTextColor(150, 150, 150)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d of {nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	return pdf
}

// logoImage is a fetched logo ready for registration.
type logoImage struct {
	data      []byte
	imageType string
	failed    bool
}

// loadLogo fetches the configured logo. Failures are logged and reported via
// failed so the header can draw a placeholder instead.
func (r *Renderer) loadLogo(ctx context.Context, invoiceID string) *logoImage {
	src := strings.TrimSpace(r.issuer.Logo)
	if src == "" {
		return nil
	}

	data, err := r.fetchLogo(ctx, src)
	if err == nil {
		imageType := detectImageType(data)
		if imageType != "" {
			return &logoImage{data: data, imageType: imageType}
		}
		err = fmt.Errorf("unsupported image format %q", http.DetectContentType(data))
	}

	r.logger.Warn("logo unavailable, using placeholder",
		slog.String("invoice_id", invoiceID),
		slog.String("logo", src),
		slog.String("error", err.Error()))
	return &logoImage{failed: true}
}

func (r *Renderer) fetchLogo(ctx context.Context, src string) ([]byte, error) {
	if !strings.HasPrefix(src, "http://") && !strings.HasPrefix(src, "https://") {
		return os.ReadFile(src)
	}

	ctx, cancel := context.WithTimeout(ctx, r.logoTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download logo: %s", resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxLogoSize))
}

func detectImageType(data []byte) string {
	switch http.DetectContentType(data) {
	case "image/png":
		return "png"
	case "image/jpeg":
		return "jpg"
	case "image/gif":
		return "gif"
	}
	return ""
}

// writer draws a Document onto a gofpdf page stream.
type writer struct {
	pdf *gofpdf.Fpdf
	tr  func(string) string
}

func (w *writer) draw(doc Document, logo *logoImage) {
	w.pdf.AddPage()
	w.header(doc, logo)
	w.meta(doc)
	w.items(doc)
	w.totals(doc)
	w.footer(doc)
}

func (w *writer) header(doc Document, logo *logoImage) {
	pdf := w.pdf
	top := pdf.GetY()
	textX := marginLeft

	if logo != nil {
		if !logo.failed && w.registerLogo(logo) {
			pdf.ImageOptions("logo", marginLeft, top, logoWidth, 0, false,
				gofpdf.ImageOptions{ImageType: logo.imageType}, 0, "")
		} else {
			pdf.SetFont("Arial", "B", 9)
			pdf.SetTextColor(150, 150, 150)
			pdf.SetXY(marginLeft, top)
			pdf.CellFormat(logoWidth, 15, "LOGO", "1", 0, "C", false, 0, "")
		}
		textX = marginLeft + logoWidth + 5
	}

	pdf.SetXY(textX, top)
	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 7, w.tr(doc.Issuer.Name), "", 1, "L", false, 0, "")

	pdf.SetFont("Arial", "", 9)
	pdf.SetTextColor(80, 80, 80)
	var contact []string
	contact = append(contact, doc.Issuer.Address...)
	for _, s := range []string{doc.Issuer.Email, doc.Issuer.Phone, doc.Issuer.Website} {
		if s != "" {
			contact = append(contact, s)
		}
	}
	for _, line := range contact {
		pdf.SetX(textX)
		pdf.CellFormat(0, 4.5, w.tr(line), "", 1, "L", false, 0, "")
	}

	if pdf.GetY() < top+18 {
		pdf.SetY(top + 18)
	}
	pdf.Ln(4)

	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Arial", "B", 22)
	pdf.CellFormat(0, 10, doc.Title, "", 1, "L", false, 0, "")

	y := pdf.GetY() + 1
	pdf.SetDrawColor(0, 0, 0)
	pdf.SetLineWidth(0.5)
	pdf.Line(marginLeft, y, w.contentRight(), y)
	pdf.SetLineWidth(0.2)
	pdf.Ln(5)
}

// registerLogo registers the image and reports whether gofpdf accepted it.
// A rejected image leaves the document usable.
func (w *writer) registerLogo(logo *logoImage) bool {
	w.pdf.RegisterImageOptionsReader("logo", gofpdf.ImageOptions{ImageType: logo.imageType}, bytes.NewReader(logo.data))
	if !w.pdf.Ok() {
		w.pdf.ClearError()
		return false
	}
	return true
}

func (w *writer) meta(doc Document) {
	pdf := w.pdf
	for _, f := range doc.Meta {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(45, lineHeight, w.tr(f.Label)+":", "", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, lineHeight, w.tr(f.Value), "", 1, "L", false, 0, "")
	}
	pdf.Ln(6)
}

func (w *writer) tableHeader(doc Document) {
	pdf := w.pdf
	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(245, 245, 245)
	pdf.SetDrawColor(220, 220, 220)
	for _, c := range doc.Columns {
		pdf.CellFormat(c.Width, headerHeight, c.Title, "1", 0, c.Align, true, 0, "")
	}
	pdf.Ln(-1)
}

func (w *writer) items(doc Document) {
	pdf := w.pdf
	w.tableHeader(doc)

	descWidth := doc.Columns[0].Width
	for _, row := range doc.Rows {
		pdf.SetFont("Arial", "", 9)
		lines := pdf.SplitLines([]byte(w.tr(row.Description)), descWidth-2)
		if len(lines) == 0 {
			lines = [][]byte{nil}
		}

		// Keep a row on one page when it fits on an empty one.
		rowHeight := float64(len(lines)) * lineHeight
		if pdf.GetY()+rowHeight > w.pageBottom() && rowHeight <= w.pageBottom()-marginTop-headerHeight {
			w.breakTable(doc)
		}

		// Rows taller than a page continue on the next one; the numbers stay
		// on the page where the row starts.
		values := []string{row.Quantity, row.UnitPrice, row.Amount}
		for first := true; len(lines) > 0; first = false {
			room := int((w.pageBottom() - pdf.GetY()) / lineHeight)
			if room < 1 {
				w.breakTable(doc)
				room = int((w.pageBottom() - pdf.GetY()) / lineHeight)
			}
			n := min(room, len(lines))
			chunk := lines[:n]
			lines = lines[n:]

			x, y := pdf.GetXY()
			for i, line := range chunk {
				border := "LR"
				if i == len(chunk)-1 {
					border = "LRB"
				}
				pdf.SetX(x)
				pdf.CellFormat(descWidth, lineHeight, string(line), border, 2, "L", false, 0, "")
			}

			chunkHeight := float64(n) * lineHeight
			pdf.SetXY(x+descWidth, y)
			for i, v := range values {
				c := doc.Columns[i+1]
				if !first {
					v = ""
				}
				pdf.CellFormat(c.Width, chunkHeight, w.tr(v), "RB", 0, c.Align, false, 0, "")
			}
			pdf.SetXY(x, y+chunkHeight)
		}
	}
	pdf.Ln(4)
}

// breakTable starts a new page and repeats the table header.
func (w *writer) breakTable(doc Document) {
	w.pdf.AddPage()
	w.tableHeader(doc)
	w.pdf.SetFont("Arial", "", 9)
}

func (w *writer) totals(doc Document) {
	pdf := w.pdf
	height := float64(len(doc.Totals)) * (lineHeight + 1)
	if pdf.GetY()+height > w.pageBottom() {
		pdf.AddPage()
	}

	labelWidth := 40.0
	valueWidth := 45.0
	x := w.contentRight() - labelWidth - valueWidth
	for i, f := range doc.Totals {
		last := i == len(doc.Totals)-1
		style := ""
		if last {
			style = "B"
		}
		pdf.SetX(x)
		pdf.SetFont("Arial", style, 10)
		border := ""
		if last {
			border = "T"
		}
		pdf.CellFormat(labelWidth, lineHeight+1, w.tr(f.Label), border, 0, "L", false, 0, "")
		pdf.CellFormat(valueWidth, lineHeight+1, w.tr(f.Value), border, 1, "R", false, 0, "")
	}
	pdf.Ln(8)
}

func (w *writer) footer(doc Document) {
	if len(doc.Footer) == 0 {
		return
	}
	pdf := w.pdf
	if pdf.GetY()+float64(len(doc.Footer))*5+4 > w.pageBottom() {
		pdf.AddPage()
	}

	y := pdf.GetY()
	pdf.SetDrawColor(220, 220, 220)
	pdf.Line(marginLeft, y, w.contentRight(), y)
	pdf.Ln(3)
	pdf.SetFont("Arial", "", 9)
	pdf.SetTextColor(120, 120, 120)
	for _, line := range doc.Footer {
		pdf.CellFormat(0, 5, w.tr(line), "", 1, "C", false, 0, "")
	}
	pdf.SetTextColor(0, 0, 0)
}

func (w *writer) pageBottom() float64 {
	_, h := w.pdf.GetPageSize()
	return h - marginBottom
}

func (w *writer) contentRight() float64 {
	pw, _ := w.pdf.GetPageSize()
	return pw - marginRight
}
