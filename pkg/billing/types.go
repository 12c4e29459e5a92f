// Package billing provides a client for the upstream billing API and the
// canonical invoice, payment and notification types the portal works with.
package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is the settlement state of an invoice.
type PaymentStatus string

// Payment statuses reported by the billing API.
const (
	StatusPaid      PaymentStatus = "paid"
	StatusPending   PaymentStatus = "pending"
	StatusPartial   PaymentStatus = "partial"
	StatusOverdue   PaymentStatus = "overdue"
	StatusCancelled PaymentStatus = "cancelled"
)

// ParsePaymentStatus normalizes a wire status. Matching is case-insensitive and
// "unpaid" is accepted as an alias of pending.
func ParsePaymentStatus(s string) (PaymentStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "paid":
		return StatusPaid, nil
	case "pending", "unpaid":
		return StatusPending, nil
	case "partial":
		return StatusPartial, nil
	case "overdue":
		return StatusOverdue, nil
	case "cancelled", "canceled":
		return StatusCancelled, nil
	}
	return "", fmt.Errorf("unknown payment status %q", s)
}

// Invoice is a billable document issued to a client.
type Invoice struct {
	ID               string
	Number           string
	IssueDate        time.Time
	DueDate          time.Time
	TaxRate          decimal.Decimal // percentage, e.g. 11 for 11%
	TaxAmount        decimal.Decimal
	SubTotal         decimal.Decimal
	Total            decimal.Decimal
	TaxInvoiceNumber string
	AmountPaid       decimal.Decimal
	PaymentStatus    PaymentStatus
	VoidedAt         *time.Time
}

// IsVoid reports whether the invoice has been voided upstream.
func (i Invoice) IsVoid() bool {
	return i.VoidedAt != nil
}

// IsOverdue reports whether the invoice due date has passed as of now.
func (i Invoice) IsOverdue(now time.Time) bool {
	return IsOverdue(i.DueDate, now)
}

// Outstanding returns the unpaid remainder of the invoice.
func (i Invoice) Outstanding() decimal.Decimal {
	return i.Total.Sub(i.AmountPaid)
}

// IsOverdue is true iff the due date, truncated to a calendar day, is strictly
// before the current calendar day. Both days are taken in now's location.
func IsOverdue(due, now time.Time) bool {
	loc := now.Location()
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, loc)
	dy, dm, dd := due.In(loc).Date()
	dueDay := time.Date(dy, dm, dd, 0, 0, 0, 0, loc)
	return dueDay.Before(today)
}

// InvoiceLineItem is one billed service entry of an invoice.
type InvoiceLineItem struct {
	ID               string
	InvoiceID        string
	Note             string
	PricePerDelivery decimal.Decimal
	DeliveryCount    int64
	Amount           decimal.Decimal
	CreatedAt        time.Time
	UpdatedAt        time.Time
	DeletedAt        *time.Time
}

// InvoiceDetail is an invoice together with its line items in upstream order.
type InvoiceDetail struct {
	Invoice Invoice
	Items   []InvoiceLineItem
}

// Payment is a recorded transfer against an invoice.
type Payment struct {
	InvoiceNumber   string
	PaymentDate     time.Time
	AmountPaid      decimal.Decimal
	ProofOfTransfer ProofOfTransfer
	VoidedAt        *time.Time
}

// IsVoid reports whether the payment has been voided upstream.
func (p Payment) IsVoid() bool {
	return p.VoidedAt != nil
}

// ProofOfTransfer references the uploaded transfer receipt. Older API versions
// return a filename, newer ones inline the file as a base64 data URL.
type ProofOfTransfer struct {
	Raw       string
	Filename  string
	MediaType string
	Data      []byte
}

// IsInline reports whether the proof was delivered as a data URL.
func (p ProofOfTransfer) IsInline() bool {
	return p.Data != nil
}

// Label returns a short human-readable reference.
func (p ProofOfTransfer) Label() string {
	switch {
	case p.IsInline():
		return fmt.Sprintf("inline %s (%d bytes)", p.MediaType, len(p.Data))
	case p.Filename != "":
		return p.Filename
	}
	return "-"
}

// Notification is an account message shown in the notification center.
type Notification struct {
	ID        int64
	ClientID  string
	Message   string
	Read      bool
	CreatedAt time.Time
}
