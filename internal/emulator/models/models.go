// Package models defines the records served by the billing API emulator.
// JSON tags follow the upstream billing API wire format.
package models

import (
	"github.com/shopspring/decimal"
)

// User is an account that can sign in and owns invoices.
type User struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	PasswordHash string `json:"password_hash"`
}

// Invoice represents an invoice issued to a user.
type Invoice struct {
	InvoiceID        string          `json:"invoice_id"`
	ClientID         string          `json:"client_id"`
	InvoiceNumber    string          `json:"invoice_number"`
	IssueDate        string          `json:"issue_date"`
	DueDate          string          `json:"due_date"`
	TaxRate          decimal.Decimal `json:"tax_rate"`
	TaxAmount        decimal.Decimal `json:"tax_amount"`
	SubTotal         decimal.Decimal `json:"sub_total"`
	Total            decimal.Decimal `json:"total"`
	TaxInvoiceNumber *string         `json:"tax_invoice_number"`
	AmountPaid       decimal.Decimal `json:"amount_paid"`
	PaymentStatus    string          `json:"payment_status"`
	VoidedAt         *string         `json:"voided_at"`
}

// InvoiceDetail represents one line item of an invoice.
type InvoiceDetail struct {
	InvoiceDetailID  string          `json:"invoice_detail_id"`
	InvoiceID        string          `json:"invoice_id"`
	Amount           decimal.Decimal `json:"amount"`
	PricePerDelivery decimal.Decimal `json:"price_per_delivery"`
	DeliveryCount    int64           `json:"delivery_count"`
	TransactionNote  string          `json:"transaction_note"`
	CreatedAt        string          `json:"created_at"`
	UpdatedAt        string          `json:"updated_at"`
	DeletedAt        *string         `json:"deleted_at"`
}

// Payment represents a transfer recorded against an invoice.
type Payment struct {
	PaymentID       string          `json:"payment_id"`
	ClientID        string          `json:"client_id"`
	InvoiceNumber   string          `json:"invoice_number"`
	PaymentDate     string          `json:"payment_date"`
	AmountPaid      decimal.Decimal `json:"amount_paid"`
	ProofOfTransfer string          `json:"proof_of_transfer"`
	VoidedAt        *string         `json:"voided_at"`
}

// Notification represents an account notification. The upstream API uses
// PascalCase keys for this resource.
type Notification struct {
	NotificationID int64  `json:"NotificationID"`
	ClientID       string `json:"ClientID"`
	Message        string `json:"Message"`
	Read           bool   `json:"Read"`
	CreatedAt      string `json:"CreatedAt"`
}

// Envelope is the standard response wrapper.
type Envelope struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Data      any    `json:"data"`
	Timestamp string `json:"timestamp,omitempty"`
}

// InvoiceDetailResponse is the body of POST /api/invoices/get/detail.
type InvoiceDetailResponse struct {
	Invoice        Invoice         `json:"invoice"`
	InvoiceDetails []InvoiceDetail `json:"invoice_details"`
}

// LoginRequest is the body of POST /api/user/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginUser is the data returned on a successful login.
type LoginUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Token string `json:"token"`
}
