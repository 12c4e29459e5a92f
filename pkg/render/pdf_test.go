package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shunichi-ikebuchi/billing-portal/pkg/billing"
)

func sampleInvoice() billing.Invoice {
	return billing.Invoice{
		ID:            "inv-1",
		Number:        "INV-2024-001",
		IssueDate:     time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		DueDate:       time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC),
		TaxRate:       decimal.NewFromInt(11),
		TaxAmount:     decimal.NewFromInt(110000),
		SubTotal:      decimal.NewFromInt(1000000),
		Total:         decimal.NewFromInt(1110000),
		AmountPaid:    decimal.Zero,
		PaymentStatus: billing.StatusPending,
	}
}

func sampleItems() []billing.InvoiceLineItem {
	return []billing.InvoiceLineItem{
		{ID: "d1", Note: "Delivery Jakarta - Bandung", PricePerDelivery: decimal.NewFromInt(200000), DeliveryCount: 3, Amount: decimal.NewFromInt(600000)},
		{ID: "d2", Note: "   ", PricePerDelivery: decimal.NewFromInt(400000), DeliveryCount: 1, Amount: decimal.NewFromInt(400000)},
	}
}

func TestCompose(t *testing.T) {
	doc := Compose(sampleInvoice(), sampleItems(), DefaultIssuer())

	if len(doc.Rows) != 2 {
		t.Fatalf("got %d rows, expected 2", len(doc.Rows))
	}
	if doc.Rows[0].Description != "Delivery Jakarta - Bandung" {
		t.Errorf("Rows[0].Description = %q", doc.Rows[0].Description)
	}
	if doc.Rows[1].Description != "Service Item 2" {
		t.Errorf("Rows[1].Description = %q, expected fallback", doc.Rows[1].Description)
	}
	if doc.Rows[0].Quantity != "3" || doc.Rows[0].UnitPrice != "Rp 200.000,00" {
		t.Errorf("unexpected row: %+v", doc.Rows[0])
	}

	expectedTotals := []Field{
		{Label: "Subtotal", Value: "Rp 1.000.000,00"},
		{Label: "Tax (11%)", Value: "Rp 110.000,00"},
		{Label: "Total", Value: "Rp 1.110.000,00"},
	}
	for i, want := range expectedTotals {
		if doc.Totals[i] != want {
			t.Errorf("Totals[%d] = %+v, expected %+v", i, doc.Totals[i], want)
		}
	}

	meta := map[string]string{}
	for _, f := range doc.Meta {
		meta[f.Label] = f.Value
	}
	checks := map[string]string{
		"Invoice Number": "INV-2024-001",
		"Issue Date":     "15 Januari 2024",
		"Due Date":       "15 Februari 2024",
		"Status":         "PENDING",
		"Tax Invoice No": "-",
		"Tax Rate":       "11%",
		"Amount Paid":    "Rp 0,00",
	}
	for label, want := range checks {
		if meta[label] != want {
			t.Errorf("meta %q = %q, expected %q", label, meta[label], want)
		}
	}
	if _, ok := meta["Voided"]; ok {
		t.Error("Voided should only be shown for voided invoices")
	}
}

func TestComposeTotalsNotRecomputed(t *testing.T) {
	inv := sampleInvoice()
	inv.Total = decimal.NewFromInt(42)

	doc := Compose(inv, sampleItems(), DefaultIssuer())
	if got := doc.Totals[2].Value; got != "Rp 42,00" {
		t.Errorf("Total = %q, expected the invoice's own total", got)
	}
}

func TestRender(t *testing.T) {
	r := New(Config{})
	inv := sampleInvoice()

	out, err := r.Render(context.Background(), &inv, sampleItems())
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF-")) {
		t.Errorf("output does not start with %%PDF-: %q", out[:min(len(out), 8)])
	}
}

func TestRenderContent(t *testing.T) {
	r := New(Config{})
	r.compress = false
	inv := sampleInvoice()

	out, err := r.Render(context.Background(), &inv, sampleItems())
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	for _, want := range []string{"Service Item 2", "Rp 1.110.000,00", "15 Januari 2024", DefaultIssuer().Name} {
		if !bytes.Contains(out, []byte(want)) {
			t.Errorf("PDF does not contain %q", want)
		}
	}
}

func TestRenderNoInvoice(t *testing.T) {
	r := New(Config{})

	out, err := r.Render(context.Background(), nil, sampleItems())
	if !errors.Is(err, ErrNoInvoice) {
		t.Fatalf("Render(nil) error = %v, expected ErrNoInvoice", err)
	}
	if out != nil {
		t.Error("Render(nil) returned bytes")
	}
}

func TestRenderDeterministic(t *testing.T) {
	r := New(Config{})
	inv := sampleInvoice()
	items := sampleItems()

	const workers = 4
	results := make([][]byte, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = r.Render(context.Background(), &inv, items)
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("render %d error = %v", i, errs[i])
		}
		if !bytes.Equal(results[0], results[i]) {
			t.Errorf("render %d differs from render 0", i)
		}
	}
}

func TestRenderPagination(t *testing.T) {
	r := New(Config{})
	r.compress = false
	inv := sampleInvoice()

	items := make([]billing.InvoiceLineItem, 80)
	for i := range items {
		items[i] = billing.InvoiceLineItem{
			Note:             fmt.Sprintf("Delivery batch %d", i+1),
			PricePerDelivery: decimal.NewFromInt(1000),
			DeliveryCount:    1,
			Amount:           decimal.NewFromInt(1000),
		}
	}

	out, err := r.Render(context.Background(), &inv, items)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !bytes.Contains(out, []byte("Page 2 of")) {
		t.Error("expected a second page for 80 line items")
	}
	if !bytes.Contains(out, []byte("Delivery batch 80")) {
		t.Error("last line item missing")
	}
}

func TestRenderRowTallerThanPage(t *testing.T) {
	r := New(Config{})
	r.compress = false
	inv := sampleInvoice()

	note := strings.TrimSpace(strings.Repeat("freight ", 3000)) + " lastword"
	items := []billing.InvoiceLineItem{
		{Note: note, PricePerDelivery: decimal.NewFromInt(777777), DeliveryCount: 1, Amount: decimal.NewFromInt(777777)},
		{Note: "Closing delivery", PricePerDelivery: decimal.NewFromInt(1000), DeliveryCount: 1, Amount: decimal.NewFromInt(1000)},
	}

	out, err := r.Render(context.Background(), &inv, items)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	// Pages are written in order, so the first page's footer separates its
	// content from the rest.
	firstPageEnd := bytes.Index(out, []byte("Page 1 of"))
	amount := bytes.Index(out, []byte("Rp 777.777,00"))
	if firstPageEnd < 0 || amount < 0 {
		t.Fatalf("footer at %d, amount at %d", firstPageEnd, amount)
	}
	if amount > firstPageEnd {
		t.Error("amount of the tall row is not on the page where the row starts")
	}
	if !bytes.Contains(out, []byte("Page 3 of")) {
		t.Error("expected the tall row to continue over several pages")
	}
	for _, want := range []string{"lastword", "Closing delivery"} {
		if !bytes.Contains(out, []byte(want)) {
			t.Errorf("PDF does not contain %q", want)
		}
	}
}

func TestRenderLogoFallback(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	logoURL := server.URL + "/logo.png"
	server.Close()

	var logs bytes.Buffer
	issuer := DefaultIssuer()
	issuer.Logo = logoURL

	r := New(Config{
		Issuer: issuer,
		Logger: slog.New(slog.NewTextHandler(&logs, nil)),
	})
	inv := sampleInvoice()

	out, err := r.Render(context.Background(), &inv, sampleItems())
	if err != nil {
		t.Fatalf("Render() error = %v, expected placeholder fallback", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF-")) {
		t.Error("output is not a PDF")
	}
	if !strings.Contains(logs.String(), "logo unavailable") {
		t.Errorf("expected a warning, got logs: %s", logs.String())
	}
}

func TestRenderLogoNotAnImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logo.png")
	if err := os.WriteFile(path, []byte("not an image"), 0o600); err != nil {
		t.Fatal(err)
	}

	issuer := DefaultIssuer()
	issuer.Logo = path
	r := New(Config{Issuer: issuer, Logger: slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))})
	inv := sampleInvoice()

	if _, err := r.Render(context.Background(), &inv, sampleItems()); err != nil {
		t.Fatalf("Render() error = %v, expected placeholder fallback", err)
	}
}

func TestRenderLogo(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 30, B: 30, A: 255})
		}
	}
	var pngData bytes.Buffer
	if err := png.Encode(&pngData, img); err != nil {
		t.Fatal(err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(pngData.Bytes())
	}))
	t.Cleanup(server.Close)

	issuer := DefaultIssuer()
	issuer.Logo = server.URL + "/logo.png"
	r := New(Config{Issuer: issuer})
	inv := sampleInvoice()

	out, err := r.Render(context.Background(), &inv, sampleItems())
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !bytes.Contains(out, []byte("/Subtype /Image")) {
		t.Error("expected an embedded image")
	}
}

func TestLoadIssuer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "issuer.yaml")
	content := `name: PT Contoh Jaya
address:
  - Jl. Merdeka 1
email: finance@contoh.id
footer:
  - Terima kasih
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	issuer, err := LoadIssuer(path)
	if err != nil {
		t.Fatalf("LoadIssuer() error = %v", err)
	}
	if issuer.Name != "PT Contoh Jaya" || len(issuer.Address) != 1 || issuer.Email != "finance@contoh.id" {
		t.Errorf("unexpected issuer: %+v", issuer)
	}
	if issuer.Phone != DefaultIssuer().Phone {
		t.Errorf("Phone = %q, expected default to be kept", issuer.Phone)
	}

	if _, err := LoadIssuer(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
