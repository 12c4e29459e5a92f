package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shunichi-ikebuchi/billing-portal/pkg/billing"
)

var now = time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

func invoice(id string, status billing.PaymentStatus, total, paid int64, due time.Time) billing.Invoice {
	return billing.Invoice{
		ID:            id,
		Number:        "INV-" + id,
		DueDate:       due,
		Total:         decimal.NewFromInt(total),
		AmountPaid:    decimal.NewFromInt(paid),
		PaymentStatus: status,
	}
}

func testInvoices() []billing.Invoice {
	past := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	future := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	return []billing.Invoice{
		invoice("1", billing.StatusPaid, 1000, 1000, past),
		invoice("2", billing.StatusPartial, 1000, 400, past),
		invoice("3", billing.StatusPending, 500, 0, future),
		invoice("4", billing.StatusOverdue, 300, 0, past),
		invoice("5", billing.StatusCancelled, 200, 0, future),
		invoice("6", billing.StatusPending, 100, 0, future),
	}
}

func TestSummarize(t *testing.T) {
	notifications := []billing.Notification{{ID: 1, Read: true}, {ID: 2}, {ID: 3}}
	s := Summarize(testInvoices(), []billing.Payment{{}, {}}, notifications, now)

	// 600 + 500 + 300 + 200 + 100
	if !s.TotalOutstanding.Equal(decimal.NewFromInt(1700)) {
		t.Errorf("TotalOutstanding = %s, expected 1700", s.TotalOutstanding)
	}
	if !s.TotalPaid.Equal(decimal.NewFromInt(1400)) {
		t.Errorf("TotalPaid = %s, expected 1400", s.TotalPaid)
	}
	if s.OverdueCount != 2 {
		t.Errorf("OverdueCount = %d, expected 2", s.OverdueCount)
	}
	if s.InvoiceCount != 6 || s.PaymentCount != 2 || s.UnreadCount != 2 {
		t.Errorf("counts = %d/%d/%d, expected 6/2/2", s.InvoiceCount, s.PaymentCount, s.UnreadCount)
	}
	if len(s.RecentInvoices) != RecentLimit || s.RecentInvoices[0].ID != "1" || s.RecentInvoices[4].ID != "5" {
		t.Errorf("RecentInvoices = %+v", s.RecentInvoices)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil, nil, nil, now)
	if !s.TotalOutstanding.IsZero() || !s.TotalPaid.IsZero() || s.InvoiceCount != 0 || len(s.RecentInvoices) != 0 {
		t.Errorf("unexpected summary for no data: %+v", s)
	}
}

type fakeSource struct {
	invoices      []billing.Invoice
	notifications []billing.Notification
	paymentsErr   error
}

func (f *fakeSource) ListInvoices(ctx context.Context, token string) ([]billing.Invoice, error) {
	return f.invoices, nil
}

func (f *fakeSource) ListPayments(ctx context.Context, token string) ([]billing.Payment, error) {
	if f.paymentsErr != nil {
		return nil, f.paymentsErr
	}
	return []billing.Payment{{InvoiceNumber: "INV-1"}}, nil
}

func (f *fakeSource) ListNotifications(ctx context.Context, token string) ([]billing.Notification, error) {
	return f.notifications, nil
}

func TestLoad(t *testing.T) {
	src := &fakeSource{invoices: testInvoices(), notifications: []billing.Notification{{ID: 1}}}

	s, err := Load(context.Background(), src, "tok", now)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.InvoiceCount != 6 || s.PaymentCount != 1 || s.UnreadCount != 1 {
		t.Errorf("unexpected summary: %+v", s)
	}
}

func TestLoadError(t *testing.T) {
	src := &fakeSource{invoices: testInvoices(), paymentsErr: billing.ErrUnauthenticated}

	_, err := Load(context.Background(), src, "tok", now)
	if !errors.Is(err, billing.ErrUnauthenticated) {
		t.Fatalf("Load() error = %v, expected ErrUnauthenticated", err)
	}
}
