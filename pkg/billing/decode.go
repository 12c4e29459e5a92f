package billing

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Wire shapes of the billing API. Every response passes through these and is
// converted to the canonical types above; conversion fails instead of guessing.

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type invoiceWire struct {
	InvoiceID        string           `json:"invoice_id"`
	InvoiceNumber    string           `json:"invoice_number"`
	IssueDate        string           `json:"issue_date"`
	DueDate          string           `json:"due_date"`
	TaxRate          *decimal.Decimal `json:"tax_rate"`
	TaxAmount        *decimal.Decimal `json:"tax_amount"`
	SubTotal         *decimal.Decimal `json:"sub_total"`
	Total            *decimal.Decimal `json:"total"`
	TaxInvoiceNumber *string          `json:"tax_invoice_number"`
	AmountPaid       *decimal.Decimal `json:"amount_paid"`
	PaymentStatus    string           `json:"payment_status"`
	VoidedAt         *string          `json:"voided_at"`
}

type lineItemWire struct {
	InvoiceDetailID  string           `json:"invoice_detail_id"`
	InvoiceID        string           `json:"invoice_id"`
	Amount           *decimal.Decimal `json:"amount"`
	PricePerDelivery *decimal.Decimal `json:"price_per_delivery"`
	DeliveryCount    *int64           `json:"delivery_count"`
	TransactionNote  string           `json:"transaction_note"`
	CreatedAt        string           `json:"created_at"`
	UpdatedAt        string           `json:"updated_at"`
	DeletedAt        *string          `json:"deleted_at"`
}

type invoiceDetailWire struct {
	Invoice        *invoiceWire   `json:"invoice"`
	InvoiceDetails []lineItemWire `json:"invoice_details"`
}

type paymentWire struct {
	InvoiceNumber   string           `json:"invoice_number"`
	PaymentDate     string           `json:"payment_date"`
	AmountPaid      *decimal.Decimal `json:"amount_paid"`
	ProofOfTransfer string           `json:"proof_of_transfer"`
	VoidedAt        *string          `json:"voided_at"`
}

type notificationWire struct {
	NotificationID *int64 `json:"NotificationID"`
	ClientID       string `json:"ClientID"`
	Message        string `json:"Message"`
	Read           bool   `json:"Read"`
	CreatedAt      string `json:"CreatedAt"`
}

// decodeEnvelope unwraps {code, message, data}. A missing data key is an error,
// an explicit null yields nil.
func decodeEnvelope(body []byte) (json.RawMessage, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}
	if len(env.Data) == 0 {
		return nil, errors.New("response has no data field")
	}
	if bytes.Equal(bytes.TrimSpace(env.Data), []byte("null")) {
		return nil, nil
	}
	return env.Data, nil
}

func decodeInvoiceList(body []byte) ([]Invoice, error) {
	data, err := decodeEnvelope(body)
	if err != nil {
		return nil, err
	}
	var wires []invoiceWire
	if data != nil {
		if err := json.Unmarshal(data, &wires); err != nil {
			return nil, err
		}
	}

	invoices := make([]Invoice, 0, len(wires))
	for i, w := range wires {
		inv, err := w.toInvoice()
		if err != nil {
			return nil, fmt.Errorf("invoice[%d]: %w", i, err)
		}
		invoices = append(invoices, inv)
	}
	return invoices, nil
}

// decodeInvoiceDetail accepts both the bare {invoice, invoice_details} body
// and the same object wrapped in the standard envelope.
func decodeInvoiceDetail(body []byte) (*InvoiceDetail, error) {
	var wire invoiceDetailWire
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, err
	}
	if wire.Invoice == nil {
		var env envelope
		if err := json.Unmarshal(body, &env); err == nil && len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &wire); err != nil {
				return nil, err
			}
		}
	}
	if wire.Invoice == nil {
		return nil, errors.New("response has no invoice")
	}

	inv, err := wire.Invoice.toInvoice()
	if err != nil {
		return nil, fmt.Errorf("invoice: %w", err)
	}

	items := make([]InvoiceLineItem, 0, len(wire.InvoiceDetails))
	for i, w := range wire.InvoiceDetails {
		item, err := w.toLineItem()
		if err != nil {
			return nil, fmt.Errorf("invoice_details[%d]: %w", i, err)
		}
		items = append(items, item)
	}
	return &InvoiceDetail{Invoice: inv, Items: items}, nil
}

func decodePaymentList(body []byte) ([]Payment, error) {
	data, err := decodeEnvelope(body)
	if err != nil {
		return nil, err
	}
	var wires []paymentWire
	if data != nil {
		if err := json.Unmarshal(data, &wires); err != nil {
			return nil, err
		}
	}

	payments := make([]Payment, 0, len(wires))
	for i, w := range wires {
		p, err := w.toPayment()
		if err != nil {
			return nil, fmt.Errorf("payment[%d]: %w", i, err)
		}
		payments = append(payments, p)
	}
	return payments, nil
}

func decodeNotificationList(body []byte) ([]Notification, error) {
	data, err := decodeEnvelope(body)
	if err != nil {
		return nil, err
	}
	var wires []notificationWire
	if data != nil {
		if err := json.Unmarshal(data, &wires); err != nil {
			return nil, err
		}
	}

	notifications := make([]Notification, 0, len(wires))
	for i, w := range wires {
		if w.NotificationID == nil {
			return nil, fmt.Errorf("notification[%d]: missing NotificationID", i)
		}
		createdAt, err := parseTime(w.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("notification[%d]: CreatedAt: %w", i, err)
		}
		notifications = append(notifications, Notification{
			ID:        *w.NotificationID,
			ClientID:  w.ClientID,
			Message:   w.Message,
			Read:      w.Read,
			CreatedAt: createdAt,
		})
	}
	return notifications, nil
}

func (w invoiceWire) toInvoice() (Invoice, error) {
	if strings.TrimSpace(w.InvoiceID) == "" {
		return Invoice{}, errors.New("missing invoice_id")
	}
	if w.Total == nil {
		return Invoice{}, errors.New("missing total")
	}
	issue, err := parseTime(w.IssueDate)
	if err != nil {
		return Invoice{}, fmt.Errorf("issue_date: %w", err)
	}
	due, err := parseTime(w.DueDate)
	if err != nil {
		return Invoice{}, fmt.Errorf("due_date: %w", err)
	}
	status, err := ParsePaymentStatus(w.PaymentStatus)
	if err != nil {
		return Invoice{}, fmt.Errorf("payment_status: %w", err)
	}
	voided, err := parseOptionalTime(w.VoidedAt)
	if err != nil {
		return Invoice{}, fmt.Errorf("voided_at: %w", err)
	}

	inv := Invoice{
		ID:            w.InvoiceID,
		Number:        w.InvoiceNumber,
		IssueDate:     issue,
		DueDate:       due,
		TaxRate:       orZero(w.TaxRate),
		TaxAmount:     orZero(w.TaxAmount),
		SubTotal:      orZero(w.SubTotal),
		Total:         *w.Total,
		AmountPaid:    orZero(w.AmountPaid),
		PaymentStatus: status,
		VoidedAt:      voided,
	}
	if w.TaxInvoiceNumber != nil {
		inv.TaxInvoiceNumber = *w.TaxInvoiceNumber
	}
	return inv, nil
}

func (w lineItemWire) toLineItem() (InvoiceLineItem, error) {
	if w.Amount == nil {
		return InvoiceLineItem{}, errors.New("missing amount")
	}
	if w.PricePerDelivery == nil {
		return InvoiceLineItem{}, errors.New("missing price_per_delivery")
	}
	if w.DeliveryCount == nil {
		return InvoiceLineItem{}, errors.New("missing delivery_count")
	}
	created, err := parseTimeOrZero(w.CreatedAt)
	if err != nil {
		return InvoiceLineItem{}, fmt.Errorf("created_at: %w", err)
	}
	updated, err := parseTimeOrZero(w.UpdatedAt)
	if err != nil {
		return InvoiceLineItem{}, fmt.Errorf("updated_at: %w", err)
	}
	deleted, err := parseOptionalTime(w.DeletedAt)
	if err != nil {
		return InvoiceLineItem{}, fmt.Errorf("deleted_at: %w", err)
	}

	return InvoiceLineItem{
		ID:               w.InvoiceDetailID,
		InvoiceID:        w.InvoiceID,
		Note:             w.TransactionNote,
		PricePerDelivery: *w.PricePerDelivery,
		DeliveryCount:    *w.DeliveryCount,
		Amount:           *w.Amount,
		CreatedAt:        created,
		UpdatedAt:        updated,
		DeletedAt:        deleted,
	}, nil
}

func (w paymentWire) toPayment() (Payment, error) {
	if w.AmountPaid == nil {
		return Payment{}, errors.New("missing amount_paid")
	}
	date, err := parseTime(w.PaymentDate)
	if err != nil {
		return Payment{}, fmt.Errorf("payment_date: %w", err)
	}
	proof, err := parseProofOfTransfer(w.ProofOfTransfer)
	if err != nil {
		return Payment{}, fmt.Errorf("proof_of_transfer: %w", err)
	}
	voided, err := parseOptionalTime(w.VoidedAt)
	if err != nil {
		return Payment{}, fmt.Errorf("voided_at: %w", err)
	}

	return Payment{
		InvoiceNumber:   w.InvoiceNumber,
		PaymentDate:     date,
		AmountPaid:      *w.AmountPaid,
		ProofOfTransfer: proof,
		VoidedAt:        voided,
	}, nil
}

// parseProofOfTransfer accepts a plain filename or a base64 data URL.
func parseProofOfTransfer(raw string) (ProofOfTransfer, error) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "data:") {
		p := ProofOfTransfer{Raw: raw}
		if raw != "" {
			name := raw
			if u, err := url.Parse(raw); err == nil && u.Path != "" {
				name = u.Path
			}
			p.Filename = path.Base(name)
		}
		return p, nil
	}

	meta, payload, ok := strings.Cut(strings.TrimPrefix(raw, "data:"), ",")
	if !ok {
		return ProofOfTransfer{}, errors.New("malformed data URL")
	}
	mediaType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return ProofOfTransfer{}, errors.New("data URL is not base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return ProofOfTransfer{}, fmt.Errorf("data URL payload: %w", err)
	}
	if mediaType == "" {
		mediaType = "text/plain"
	}
	return ProofOfTransfer{Raw: raw, MediaType: mediaType, Data: data}, nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("missing value")
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

func parseTimeOrZero(s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, nil
	}
	return parseTime(s)
}

// parseOptionalTime maps null and "" to nil; both mean "not set" upstream.
func parseOptionalTime(s *string) (*time.Time, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	t, err := parseTime(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func orZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}
