package billing

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

const invoiceListBody = `{
  "code": 200,
  "message": "ok",
  "data": [
    {
      "invoice_id": "inv-1",
      "invoice_number": "INV-2024-001",
      "issue_date": "2024-01-15T00:00:00Z",
      "due_date": "2024-02-15",
      "tax_rate": 11,
      "tax_amount": 110000,
      "sub_total": 1000000,
      "total": 1110000,
      "tax_invoice_number": null,
      "amount_paid": 0,
      "payment_status": "PENDING",
      "voided_at": ""
    }
  ]
}`

const invoiceDetailBody = `{
  "invoice": {
    "invoice_id": "inv-1",
    "invoice_number": "INV-2024-001",
    "issue_date": "2024-01-15",
    "due_date": "2024-02-15",
    "tax_rate": 11,
    "tax_amount": 110000,
    "sub_total": 1000000,
    "total": 1110000,
    "amount_paid": 0,
    "payment_status": "pending"
  },
  "invoice_details": [
    {"invoice_detail_id": "d1", "invoice_id": "inv-1", "amount": 600000, "price_per_delivery": 200000, "delivery_count": 3, "transaction_note": "Delivery A", "created_at": "2024-01-15T08:00:00Z", "updated_at": "2024-01-15T08:00:00Z"},
    {"invoice_detail_id": "d2", "invoice_id": "inv-1", "amount": 400000, "price_per_delivery": 400000, "delivery_count": 1, "transaction_note": "", "created_at": "2024-01-15T08:00:00Z", "updated_at": "2024-01-15T08:00:00Z"}
  ]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(ClientConfig{APIURL: server.URL, Timeout: 2 * time.Second})
}

func TestListInvoices(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/invoices/get" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-123" {
			t.Errorf("Authorization = %q, expected bearer token", got)
		}
		_, _ = io.WriteString(w, invoiceListBody)
	})

	invoices, err := client.ListInvoices(context.Background(), "tok-123")
	if err != nil {
		t.Fatalf("ListInvoices() error = %v", err)
	}
	if len(invoices) != 1 {
		t.Fatalf("ListInvoices() returned %d invoices, expected 1", len(invoices))
	}

	inv := invoices[0]
	if inv.ID != "inv-1" || inv.Number != "INV-2024-001" {
		t.Errorf("unexpected identity: %+v", inv)
	}
	if inv.PaymentStatus != StatusPending {
		t.Errorf("PaymentStatus = %q, expected pending", inv.PaymentStatus)
	}
	if !inv.Total.Equal(decimal.NewFromInt(1110000)) {
		t.Errorf("Total = %s, expected 1110000", inv.Total)
	}
	if inv.VoidedAt != nil {
		t.Errorf("VoidedAt = %v, expected nil for empty string", inv.VoidedAt)
	}
	if inv.TaxInvoiceNumber != "" {
		t.Errorf("TaxInvoiceNumber = %q, expected empty", inv.TaxInvoiceNumber)
	}
}

func TestListInvoicesNullData(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"code":200,"message":"ok","data":null}`)
	})

	invoices, err := client.ListInvoices(context.Background(), "tok")
	if err != nil {
		t.Fatalf("ListInvoices() error = %v", err)
	}
	if len(invoices) != 0 {
		t.Errorf("expected empty list, got %d", len(invoices))
	}
}

func TestGetInvoiceDetail(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bare", invoiceDetailBody},
		{"enveloped", `{"code":200,"message":"ok","data":` + invoiceDetailBody + `}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost || r.URL.Path != "/api/invoices/get/detail" {
					t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
				}
				var req struct {
					InvoiceID string `json:"invoice_id"`
				}
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.InvoiceID != "inv-1" {
					t.Errorf("unexpected body: %+v (%v)", req, err)
				}
				_, _ = io.WriteString(w, tt.body)
			})

			detail, err := client.GetInvoiceDetail(context.Background(), "tok", "inv-1")
			if err != nil {
				t.Fatalf("GetInvoiceDetail() error = %v", err)
			}
			if detail.Invoice.ID != "inv-1" {
				t.Errorf("Invoice.ID = %q", detail.Invoice.ID)
			}
			if len(detail.Items) != 2 {
				t.Fatalf("got %d items, expected 2", len(detail.Items))
			}
			if detail.Items[0].ID != "d1" || detail.Items[1].ID != "d2" {
				t.Errorf("line item order not preserved: %s, %s", detail.Items[0].ID, detail.Items[1].ID)
			}
			if detail.Items[0].DeliveryCount != 3 {
				t.Errorf("DeliveryCount = %d, expected 3", detail.Items[0].DeliveryCount)
			}
		})
	}
}

func TestGetInvoiceDetailValidation(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	if _, err := client.GetInvoiceDetail(context.Background(), "tok", "  "); !errors.Is(err, ErrInvalidInvoiceID) {
		t.Errorf("empty id: error = %v, expected ErrInvalidInvoiceID", err)
	}
	if _, err := client.GetInvoiceDetail(context.Background(), "", "inv-1"); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("empty token: error = %v, expected ErrUnauthenticated", err)
	}
	if calls.Load() != 0 {
		t.Errorf("validation failures should not reach the API, got %d calls", calls.Load())
	}
}

func TestFetchErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantReason string
		wantUnauth bool
		wantNotFnd bool
	}{
		{"envelope message", http.StatusNotFound, `{"code":404,"message":"invoice not found"}`, "invoice not found", false, true},
		{"oauth style", http.StatusUnauthorized, `{"error":"invalid_token","error_description":"expired"}`, "invalid_token - expired", true, false},
		{"forbidden", http.StatusForbidden, `{"error":"forbidden"}`, "forbidden", true, false},
		{"plain text", http.StatusBadGateway, "upstream down", "upstream down", false, false},
		{"empty body", http.StatusInternalServerError, "", "Internal Server Error", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			_, err := client.GetInvoiceDetail(context.Background(), "tok", "missing")
			var fetchErr *FetchError
			if !errors.As(err, &fetchErr) {
				t.Fatalf("error = %v, expected *FetchError", err)
			}
			if fetchErr.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, expected %d", fetchErr.StatusCode, tt.status)
			}
			if fetchErr.Reason != tt.wantReason {
				t.Errorf("Reason = %q, expected %q", fetchErr.Reason, tt.wantReason)
			}
			if errors.Is(err, ErrUnauthenticated) != tt.wantUnauth {
				t.Errorf("errors.Is(ErrUnauthenticated) = %v, expected %v", !tt.wantUnauth, tt.wantUnauth)
			}
			if errors.Is(err, ErrNotFound) != tt.wantNotFnd {
				t.Errorf("errors.Is(ErrNotFound) = %v, expected %v", !tt.wantNotFnd, tt.wantNotFnd)
			}
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `<html>oops</html>`},
		{"missing data", `{"code":200,"message":"ok"}`},
		{"missing id", `{"data":[{"issue_date":"2024-01-01","due_date":"2024-01-02","total":1,"payment_status":"paid"}]}`},
		{"unknown status", `{"data":[{"invoice_id":"x","issue_date":"2024-01-01","due_date":"2024-01-02","total":1,"payment_status":"settled"}]}`},
		{"bad date", `{"data":[{"invoice_id":"x","issue_date":"15/01/2024","due_date":"2024-01-02","total":1,"payment_status":"paid"}]}`},
		{"missing total", `{"data":[{"invoice_id":"x","issue_date":"2024-01-01","due_date":"2024-01-02","payment_status":"paid"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, tt.body)
			})

			_, err := client.ListInvoices(context.Background(), "tok")
			var decodeErr *DecodeError
			if !errors.As(err, &decodeErr) {
				t.Fatalf("error = %v, expected *DecodeError", err)
			}
		})
	}
}

func TestUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := NewClient(ClientConfig{APIURL: url, Timeout: time.Second})
	_, err := client.ListInvoices(context.Background(), "tok")

	var unreachable *UnreachableError
	if !errors.As(err, &unreachable) {
		t.Fatalf("error = %v, expected *UnreachableError", err)
	}
}

func TestTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(server.Close)
	t.Cleanup(func() { close(release) })

	client := NewClient(ClientConfig{APIURL: server.URL, Timeout: 50 * time.Millisecond})
	_, err := client.ListInvoices(context.Background(), "tok")

	var timeoutErr *TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("error = %v, expected *TimeoutError", err)
	}
	if timeoutErr.After != 50*time.Millisecond {
		t.Errorf("After = %s", timeoutErr.After)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("TimeoutError should match context.DeadlineExceeded")
	}
}

func TestCallerCancellation(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, invoiceListBody)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.ListInvoices(ctx, "tok")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, expected context.Canceled", err)
	}
	var timeoutErr *TimeoutError
	if errors.As(err, &timeoutErr) {
		t.Error("caller cancellation must not be reported as a timeout")
	}
}

func TestListPayments(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/payments/get" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = io.WriteString(w, `{"code":200,"message":"ok","data":[
			{"invoice_number":"INV-1","payment_date":"2024-02-01T10:00:00Z","amount_paid":500000,"proof_of_transfer":"uploads/proof-1.jpg","voided_at":null},
			{"invoice_number":"INV-2","payment_date":"2024-02-03","amount_paid":"250000.50","proof_of_transfer":"data:image/png;base64,aGVsbG8=","voided_at":"2024-02-04T00:00:00Z"}
		]}`)
	})

	payments, err := client.ListPayments(context.Background(), "tok")
	if err != nil {
		t.Fatalf("ListPayments() error = %v", err)
	}
	if len(payments) != 2 {
		t.Fatalf("got %d payments, expected 2", len(payments))
	}

	if payments[0].ProofOfTransfer.Filename != "proof-1.jpg" {
		t.Errorf("Filename = %q", payments[0].ProofOfTransfer.Filename)
	}
	if payments[0].IsVoid() {
		t.Error("first payment should not be void")
	}

	proof := payments[1].ProofOfTransfer
	if !proof.IsInline() || proof.MediaType != "image/png" || string(proof.Data) != "hello" {
		t.Errorf("unexpected inline proof: %+v", proof)
	}
	if !payments[1].AmountPaid.Equal(decimal.RequireFromString("250000.50")) {
		t.Errorf("AmountPaid = %s", payments[1].AmountPaid)
	}
	if !payments[1].IsVoid() {
		t.Error("second payment should be void")
	}
}

func TestListPaymentsBadProof(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":[{"invoice_number":"INV-1","payment_date":"2024-02-01","amount_paid":1,"proof_of_transfer":"data:image/png;base64,***"}]}`)
	})

	_, err := client.ListPayments(context.Background(), "tok")
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("error = %v, expected *DecodeError", err)
	}
}

func TestNotifications(t *testing.T) {
	var marked atomic.Bool
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/notifications":
			_, _ = io.WriteString(w, `{"code":200,"message":"ok","data":[
				{"NotificationID":7,"ClientID":"c1","Message":"Invoice INV-1 issued","Read":false,"CreatedAt":"2024-01-15T08:00:00Z"}
			]}`)
		case r.Method == http.MethodPut && r.URL.Path == "/api/notifications/mark-as-read":
			marked.Store(true)
			_, _ = io.WriteString(w, `{"code":200,"message":"ok","data":null}`)
		default:
			http.NotFound(w, r)
		}
	})

	notifications, err := client.ListNotifications(context.Background(), "tok")
	if err != nil {
		t.Fatalf("ListNotifications() error = %v", err)
	}
	if len(notifications) != 1 || notifications[0].ID != 7 || notifications[0].Read {
		t.Errorf("unexpected notifications: %+v", notifications)
	}

	if err := client.MarkNotificationsRead(context.Background(), "tok"); err != nil {
		t.Fatalf("MarkNotificationsRead() error = %v", err)
	}
	if !marked.Load() {
		t.Error("mark-as-read endpoint was not called")
	}
}

func TestObserver(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(server.Close)

	var gotOp string
	var gotStatus int
	client := NewClient(ClientConfig{
		APIURL: server.URL,
		Observer: func(op string, status int, elapsed time.Duration) {
			gotOp, gotStatus = op, status
		},
	})

	_, _ = client.ListPayments(context.Background(), "tok")
	if gotOp != "list payments" || gotStatus != http.StatusNotFound {
		t.Errorf("observer got (%q, %d)", gotOp, gotStatus)
	}
	if client.Timeout() != DefaultTimeout {
		t.Errorf("Timeout() = %s, expected default", client.Timeout())
	}
}
