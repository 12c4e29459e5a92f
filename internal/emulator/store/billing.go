package store

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shunichi-ikebuchi/billing-portal/internal/emulator/models"
)

// CreateUser stores a user keyed by lowercased email. A missing ID is generated.
func (s *Store) CreateUser(user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	return s.Put(BucketUsers, strings.ToLower(user.Email), user)
}

// GetUserByEmail looks a user up by email, case-insensitively.
func (s *Store) GetUserByEmail(email string) (*models.User, error) {
	var user models.User
	if err := s.Get(BucketUsers, strings.ToLower(strings.TrimSpace(email)), &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateInvoice stores an invoice with its line items. Missing IDs are
// generated and sub total, tax amount and total are derived from the items.
func (s *Store) CreateInvoice(inv *models.Invoice, details []models.InvoiceDetail) error {
	if inv.InvoiceID == "" {
		inv.InvoiceID = uuid.NewString()
	}

	subTotal := decimal.Zero
	now := time.Now().UTC().Format(time.RFC3339)
	for i := range details {
		d := &details[i]
		if d.InvoiceDetailID == "" {
			d.InvoiceDetailID = uuid.NewString()
		}
		d.InvoiceID = inv.InvoiceID
		d.Amount = d.PricePerDelivery.Mul(decimal.NewFromInt(d.DeliveryCount))
		if d.CreatedAt == "" {
			d.CreatedAt = now
		}
		if d.UpdatedAt == "" {
			d.UpdatedAt = d.CreatedAt
		}
		subTotal = subTotal.Add(d.Amount)
	}

	inv.SubTotal = subTotal
	inv.TaxAmount = subTotal.Mul(inv.TaxRate).Div(decimal.NewFromInt(100)).Round(2)
	inv.Total = inv.SubTotal.Add(inv.TaxAmount)

	if err := s.Put(BucketInvoices, inv.InvoiceID, inv); err != nil {
		return fmt.Errorf("failed to store invoice: %w", err)
	}
	for i, d := range details {
		if err := s.Put(BucketInvoiceDetails, seqKey(inv.InvoiceID+"/", int64(i)), d); err != nil {
			return fmt.Errorf("failed to store invoice detail: %w", err)
		}
	}
	return nil
}

// ListInvoices returns the invoices of a client, newest issue date first.
func (s *Store) ListInvoices(clientID string) ([]models.Invoice, error) {
	rows, err := s.List(BucketInvoices, nil)
	if err != nil {
		return nil, err
	}

	invoices := make([]models.Invoice, 0, len(rows))
	for _, row := range rows {
		var inv models.Invoice
		if err := json.Unmarshal(row, &inv); err != nil {
			return nil, fmt.Errorf("failed to unmarshal invoice: %w", err)
		}
		if inv.ClientID == clientID {
			invoices = append(invoices, inv)
		}
	}

	slices.SortStableFunc(invoices, func(a, b models.Invoice) int {
		if c := strings.Compare(b.IssueDate, a.IssueDate); c != 0 {
			return c
		}
		return strings.Compare(b.InvoiceNumber, a.InvoiceNumber)
	})
	return invoices, nil
}

// GetInvoice returns one invoice of a client with its line items in stored
// order. Invoices of other clients are reported as not found.
func (s *Store) GetInvoice(clientID, invoiceID string) (*models.Invoice, []models.InvoiceDetail, error) {
	var inv models.Invoice
	if err := s.Get(BucketInvoices, invoiceID, &inv); err != nil {
		return nil, nil, err
	}
	if inv.ClientID != clientID {
		return nil, nil, ErrNotFound
	}

	rows, err := s.ListPrefix(BucketInvoiceDetails, invoiceID+"/")
	if err != nil {
		return nil, nil, err
	}
	details := make([]models.InvoiceDetail, 0, len(rows))
	for _, row := range rows {
		var d models.InvoiceDetail
		if err := json.Unmarshal(row, &d); err != nil {
			return nil, nil, fmt.Errorf("failed to unmarshal invoice detail: %w", err)
		}
		if d.DeletedAt == nil {
			details = append(details, d)
		}
	}
	return &inv, details, nil
}

// CreatePayment records a payment and adds it to the invoice's amount paid,
// updating the invoice status.
func (s *Store) CreatePayment(p *models.Payment) error {
	seq, err := s.NextID(BucketPayments)
	if err != nil {
		return fmt.Errorf("failed to generate ID: %w", err)
	}
	if p.PaymentID == "" {
		p.PaymentID = uuid.NewString()
	}
	if err := s.Put(BucketPayments, seqKey("", seq), p); err != nil {
		return fmt.Errorf("failed to store payment: %w", err)
	}
	if p.VoidedAt != nil {
		return nil
	}

	return s.Update(BucketInvoices, func(data []byte) ([]byte, bool, error) {
		var inv models.Invoice
		if err := json.Unmarshal(data, &inv); err != nil {
			return nil, false, err
		}
		if inv.ClientID != p.ClientID || inv.InvoiceNumber != p.InvoiceNumber {
			return nil, false, nil
		}

		inv.AmountPaid = inv.AmountPaid.Add(p.AmountPaid)
		switch {
		case inv.AmountPaid.GreaterThanOrEqual(inv.Total):
			inv.PaymentStatus = "paid"
		case inv.AmountPaid.IsPositive():
			inv.PaymentStatus = "partial"
		}

		updated, err := json.Marshal(inv)
		return updated, err == nil, err
	})
}

// ListPayments returns the payments of a client in recorded order.
func (s *Store) ListPayments(clientID string) ([]models.Payment, error) {
	rows, err := s.List(BucketPayments, nil)
	if err != nil {
		return nil, err
	}

	payments := make([]models.Payment, 0, len(rows))
	for _, row := range rows {
		var p models.Payment
		if err := json.Unmarshal(row, &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payment: %w", err)
		}
		if p.ClientID == clientID {
			payments = append(payments, p)
		}
	}
	return payments, nil
}

// CreateNotification stores a notification with the next numeric ID.
func (s *Store) CreateNotification(n *models.Notification) error {
	id, err := s.NextID(BucketNotifications)
	if err != nil {
		return fmt.Errorf("failed to generate ID: %w", err)
	}
	n.NotificationID = id
	if n.CreatedAt == "" {
		n.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	return s.Put(BucketNotifications, seqKey("", id), n)
}

// ListNotifications returns the notifications of a client, newest first.
func (s *Store) ListNotifications(clientID string) ([]models.Notification, error) {
	rows, err := s.List(BucketNotifications, nil)
	if err != nil {
		return nil, err
	}

	notifications := make([]models.Notification, 0, len(rows))
	for _, row := range rows {
		var n models.Notification
		if err := json.Unmarshal(row, &n); err != nil {
			return nil, fmt.Errorf("failed to unmarshal notification: %w", err)
		}
		if n.ClientID == clientID {
			notifications = append(notifications, n)
		}
	}
	slices.Reverse(notifications)
	return notifications, nil
}

// MarkNotificationsRead marks every unread notification of a client as read
// and returns how many changed.
func (s *Store) MarkNotificationsRead(clientID string) (int, error) {
	changed := 0
	err := s.Update(BucketNotifications, func(data []byte) ([]byte, bool, error) {
		var n models.Notification
		if err := json.Unmarshal(data, &n); err != nil {
			return nil, false, err
		}
		if n.ClientID != clientID || n.Read {
			return nil, false, nil
		}

		n.Read = true
		updated, err := json.Marshal(n)
		if err != nil {
			return nil, false, err
		}
		changed++
		return updated, true, nil
	})
	return changed, err
}
