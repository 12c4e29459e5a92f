// Package dashboard computes the account summary shown on the portal home page.
package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/shunichi-ikebuchi/billing-portal/pkg/billing"
)

// RecentLimit is the number of invoices listed as recent.
const RecentLimit = 5

// Source is the subset of the billing client the dashboard reads from.
type Source interface {
	ListInvoices(ctx context.Context, token string) ([]billing.Invoice, error)
	ListPayments(ctx context.Context, token string) ([]billing.Payment, error)
	ListNotifications(ctx context.Context, token string) ([]billing.Notification, error)
}

// Summary is the dashboard view model.
type Summary struct {
	TotalOutstanding decimal.Decimal
	TotalPaid        decimal.Decimal
	OverdueCount     int
	InvoiceCount     int
	PaymentCount     int
	UnreadCount      int
	RecentInvoices   []billing.Invoice
}

// Summarize computes a Summary from already fetched data. Only invoices with
// status paid are excluded from the outstanding total and the overdue count.
func Summarize(invoices []billing.Invoice, payments []billing.Payment, notifications []billing.Notification, now time.Time) Summary {
	s := Summary{
		TotalOutstanding: decimal.Zero,
		TotalPaid:        decimal.Zero,
		InvoiceCount:     len(invoices),
		PaymentCount:     len(payments),
	}

	for _, inv := range invoices {
		s.TotalPaid = s.TotalPaid.Add(inv.AmountPaid)
		if inv.PaymentStatus == billing.StatusPaid {
			continue
		}
		s.TotalOutstanding = s.TotalOutstanding.Add(inv.Outstanding())
		if inv.IsOverdue(now) {
			s.OverdueCount++
		}
	}

	for _, n := range notifications {
		if !n.Read {
			s.UnreadCount++
		}
	}

	recent := invoices
	if len(recent) > RecentLimit {
		recent = recent[:RecentLimit]
	}
	s.RecentInvoices = append([]billing.Invoice(nil), recent...)

	return s
}

// Load fetches invoices, payments and notifications concurrently and
// summarizes them. The first failure cancels the other calls and is returned.
func Load(ctx context.Context, src Source, token string, now time.Time) (*Summary, error) {
	var (
		invoices      []billing.Invoice
		payments      []billing.Payment
		notifications []billing.Notification
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		invoices, err = src.ListInvoices(ctx, token)
		return err
	})
	g.Go(func() error {
		var err error
		payments, err = src.ListPayments(ctx, token)
		return err
	})
	g.Go(func() error {
		var err error
		notifications, err = src.ListNotifications(ctx, token)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load dashboard: %w", err)
	}

	s := Summarize(invoices, payments, notifications, now)
	return &s, nil
}
