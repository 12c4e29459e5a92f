package render

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shunichi-ikebuchi/billing-portal/pkg/billing"
)

// Field is a labelled value in the metadata or totals block.
type Field struct {
	Label string
	Value string
}

// Row is one line item as printed.
type Row struct {
	Description string
	Quantity    string
	UnitPrice   string
	Amount      string
}

// Column describes a line item table column. Widths are in millimetres.
type Column struct {
	Title string
	Width float64
	Align string
}

// Document is the fully formatted content of an invoice PDF. Composing it is
// separate from drawing so the content can be checked without parsing PDF.
type Document struct {
	Title   string
	Issuer  Issuer
	Meta    []Field
	Columns []Column
	Rows    []Row
	Totals  []Field
	Footer  []string
}

var itemColumns = []Column{
	{Title: "Description", Width: 85, Align: "L"},
	{Title: "Qty", Width: 20, Align: "C"},
	{Title: "Unit Price", Width: 37.5, Align: "R"},
	{Title: "Amount", Width: 37.5, Align: "R"},
}

// Compose lays out an invoice. Items keep their input order and totals are
// taken from the invoice as issued, never recomputed from the items.
func Compose(inv billing.Invoice, items []billing.InvoiceLineItem, issuer Issuer) Document {
	taxRate := inv.TaxRate.String() + "%"

	taxRef := inv.TaxInvoiceNumber
	if strings.TrimSpace(taxRef) == "" {
		taxRef = "-"
	}

	number := inv.Number
	if number == "" {
		number = inv.ID
	}

	meta := []Field{
		{Label: "Invoice Number", Value: number},
		{Label: "Issue Date", Value: FormatDate(inv.IssueDate)},
		{Label: "Due Date", Value: FormatDate(inv.DueDate)},
		{Label: "Status", Value: strings.ToUpper(string(inv.PaymentStatus))},
		{Label: "Tax Invoice No", Value: taxRef},
		{Label: "Tax Rate", Value: taxRate},
		{Label: "Amount Paid", Value: FormatCurrency(inv.AmountPaid)},
	}
	if inv.VoidedAt != nil {
		meta = append(meta, Field{Label: "Voided", Value: FormatDate(*inv.VoidedAt)})
	}

	rows := make([]Row, 0, len(items))
	for i, item := range items {
		desc := strings.TrimSpace(item.Note)
		if desc == "" {
			desc = fmt.Sprintf("Service Item %d", i+1)
		}
		rows = append(rows, Row{
			Description: desc,
			Quantity:    strconv.FormatInt(item.DeliveryCount, 10),
			UnitPrice:   FormatCurrency(item.PricePerDelivery),
			Amount:      FormatCurrency(item.Amount),
		})
	}

	return Document{
		Title:   "INVOICE",
		Issuer:  issuer,
		Meta:    meta,
		Columns: itemColumns,
		Rows:    rows,
		Totals: []Field{
			{Label: "Subtotal", Value: FormatCurrency(inv.SubTotal)},
			{Label: "Tax (" + taxRate + ")", Value: FormatCurrency(inv.TaxAmount)},
			{Label: "Total", Value: FormatCurrency(inv.Total)},
		},
		Footer: issuer.Footer,
	}
}
