package emulator

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shunichi-ikebuchi/billing-portal/internal/emulator/auth"
	"github.com/shunichi-ikebuchi/billing-portal/internal/emulator/models"
	"github.com/shunichi-ikebuchi/billing-portal/internal/emulator/store"
)

// Credentials of the seeded client account.
const (
	SeedEmail    = "client@example.com"
	SeedPassword = "password"
	SeedName     = "PT Contoh Pelanggan"
)

// 1x1 transparent PNG used as an inline transfer receipt.
const seedProofPNG = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

// Seed populates an empty store with one client account and sample billing
// data. Dates are relative to now so that some invoices are overdue. Seeding a
// store that already has the account is a no-op.
func Seed(st *store.Store, now time.Time) error {
	if _, err := st.GetUserByEmail(SeedEmail); err == nil {
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("failed to check seed user: %w", err)
	}

	hash, err := auth.HashPassword(SeedPassword)
	if err != nil {
		return err
	}
	user := &models.User{Name: SeedName, Email: SeedEmail, PasswordHash: hash}
	if err := st.CreateUser(user); err != nil {
		return fmt.Errorf("failed to create seed user: %w", err)
	}

	day := func(offset int) string {
		return now.AddDate(0, 0, offset).Format("2006-01-02")
	}
	taxInvoice := "010.000-24.00000001"
	voided := now.AddDate(0, 0, -40).UTC().Format(time.RFC3339)
	rate := decimal.NewFromInt(11)

	invoices := []struct {
		inv   models.Invoice
		items []models.InvoiceDetail
	}{
		{
			inv: models.Invoice{
				InvoiceNumber: "INV-2024-001", IssueDate: day(-90), DueDate: day(-60),
				TaxInvoiceNumber: &taxInvoice,
			},
			items: []models.InvoiceDetail{
				{PricePerDelivery: decimal.NewFromInt(25000), DeliveryCount: 20, TransactionNote: "Pengiriman Jakarta - Bandung"},
				{PricePerDelivery: decimal.NewFromInt(40000), DeliveryCount: 5},
			},
		},
		{
			inv: models.Invoice{InvoiceNumber: "INV-2024-002", IssueDate: day(-45), DueDate: day(-15)},
			items: []models.InvoiceDetail{
				{PricePerDelivery: decimal.NewFromInt(30000), DeliveryCount: 12, TransactionNote: "Pengiriman Jakarta - Surabaya"},
				{PricePerDelivery: decimal.RequireFromString("17500.50"), DeliveryCount: 8, TransactionNote: "Same-day courier"},
			},
		},
		{
			inv: models.Invoice{InvoiceNumber: "INV-2024-003", IssueDate: day(-10), DueDate: day(20)},
			items: []models.InvoiceDetail{
				{PricePerDelivery: decimal.NewFromInt(50000), DeliveryCount: 10, TransactionNote: "Cold chain delivery"},
				{PricePerDelivery: decimal.NewFromInt(15000), DeliveryCount: 30},
				{PricePerDelivery: decimal.NewFromInt(100000), DeliveryCount: 1, TransactionNote: "Handling fee"},
			},
		},
		{
			inv: models.Invoice{InvoiceNumber: "INV-2024-004", IssueDate: day(-50), DueDate: day(-20), VoidedAt: &voided},
			items: []models.InvoiceDetail{
				{PricePerDelivery: decimal.NewFromInt(20000), DeliveryCount: 3, TransactionNote: "Cancelled shipment"},
			},
		},
	}

	created := make([]models.Invoice, 0, len(invoices))
	for _, seed := range invoices {
		inv := seed.inv
		inv.ClientID = user.ID
		inv.TaxRate = rate
		inv.PaymentStatus = "pending"
		if inv.VoidedAt != nil {
			inv.PaymentStatus = "cancelled"
		}
		if err := st.CreateInvoice(&inv, seed.items); err != nil {
			return err
		}
		created = append(created, inv)
	}

	payments := []models.Payment{
		{
			InvoiceNumber:   created[0].InvoiceNumber,
			PaymentDate:     day(-62),
			AmountPaid:      created[0].Total,
			ProofOfTransfer: "https://files.example.com/receipts/transfer-inv-2024-001.pdf",
		},
		{
			InvoiceNumber:   created[1].InvoiceNumber,
			PaymentDate:     day(-14),
			AmountPaid:      decimal.NewFromInt(200000),
			ProofOfTransfer: seedProofPNG,
		},
		{
			InvoiceNumber:   created[3].InvoiceNumber,
			PaymentDate:     day(-45),
			AmountPaid:      decimal.NewFromInt(10000),
			ProofOfTransfer: "https://files.example.com/receipts/transfer-inv-2024-004.jpg",
			VoidedAt:        &voided,
		},
	}
	for i := range payments {
		payments[i].ClientID = user.ID
		if err := st.CreatePayment(&payments[i]); err != nil {
			return err
		}
	}

	notifications := []models.Notification{
		{Message: "Invoice INV-2024-001 has been paid in full.", Read: true, CreatedAt: day(-62) + "T09:00:00Z"},
		{Message: "Invoice INV-2024-004 was voided.", Read: true, CreatedAt: day(-40) + "T10:30:00Z"},
		{Message: "Invoice INV-2024-002 is overdue.", CreatedAt: day(-14) + "T08:00:00Z"},
		{Message: "New invoice INV-2024-003 is available.", CreatedAt: day(-10) + "T08:00:00Z"},
	}
	for i := range notifications {
		notifications[i].ClientID = user.ID
		if err := st.CreateNotification(&notifications[i]); err != nil {
			return err
		}
	}

	return nil
}
