// Package table filters and sorts invoice and payment lists for display.
//
// Functions here never modify their input; they return a new slice.
package table

import (
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shunichi-ikebuchi/billing-portal/pkg/billing"
)

// SortDir is a sort direction.
type SortDir string

// Sort directions.
const (
	Asc  SortDir = "asc"
	Desc SortDir = "desc"
)

// Filter values understood by the overdue and voided filters.
const (
	FilterOverdue = "overdue"
	FilterOnTime  = "ontime"
	FilterActive  = "active"
	FilterVoided  = "voided"
)

// Invoice sort columns.
const (
	ColInvoiceNumber = "invoice_number"
	ColIssueDate     = "issue_date"
	ColDueDate       = "due_date"
	ColTotal         = "total"
	ColPaymentStatus = "payment_status"
	ColAmountPaid    = "amount_paid"
	ColVoidedAt      = "voided_at"
)

// Payment sort columns not shared with invoices.
const (
	ColPaymentDate     = "payment_date"
	ColProofOfTransfer = "proof_of_transfer"
)

// InvoiceQuery selects and orders invoices.
type InvoiceQuery struct {
	Search  string
	Status  string
	Overdue string
	Voided  string
	Sort    string
	Dir     SortDir
}

// PaymentQuery selects and orders payments.
type PaymentQuery struct {
	Search string
	Voided string
	Sort   string
	Dir    SortDir
}

// ParseInvoiceQuery reads q, status, overdue, voided, sort and dir.
func ParseInvoiceQuery(v url.Values) InvoiceQuery {
	return InvoiceQuery{
		Search:  strings.TrimSpace(v.Get("q")),
		Status:  normalize(v.Get("status")),
		Overdue: normalize(v.Get("overdue")),
		Voided:  normalize(v.Get("voided")),
		Sort:    normalize(v.Get("sort")),
		Dir:     parseDir(v.Get("dir")),
	}
}

// ParsePaymentQuery reads q, voided, sort and dir.
func ParsePaymentQuery(v url.Values) PaymentQuery {
	return PaymentQuery{
		Search: strings.TrimSpace(v.Get("q")),
		Voided: normalize(v.Get("voided")),
		Sort:   normalize(v.Get("sort")),
		Dir:    parseDir(v.Get("dir")),
	}
}

// Values encodes the query back into URL parameters. Empty fields are omitted.
func (q InvoiceQuery) Values() url.Values {
	v := url.Values{}
	setIf(v, "q", q.Search)
	setIf(v, "status", q.Status)
	setIf(v, "overdue", q.Overdue)
	setIf(v, "voided", q.Voided)
	if q.Sort != "" {
		v.Set("sort", q.Sort)
		v.Set("dir", string(q.Dir))
	}
	return v
}

// SortBy returns the query a click on column's header leads to.
func (q InvoiceQuery) SortBy(column string) InvoiceQuery {
	q.Sort, q.Dir = NextSort(q.Sort, q.Dir, column)
	return q
}

// Values encodes the query back into URL parameters. Empty fields are omitted.
func (q PaymentQuery) Values() url.Values {
	v := url.Values{}
	setIf(v, "q", q.Search)
	setIf(v, "voided", q.Voided)
	if q.Sort != "" {
		v.Set("sort", q.Sort)
		v.Set("dir", string(q.Dir))
	}
	return v
}

// SortBy returns the query a click on column's header leads to.
func (q PaymentQuery) SortBy(column string) PaymentQuery {
	q.Sort, q.Dir = NextSort(q.Sort, q.Dir, column)
	return q
}

// NextSort applies the header toggle rule: clicking the active column flips
// the direction, clicking another column sorts it ascending.
func NextSort(current string, dir SortDir, clicked string) (string, SortDir) {
	if clicked == current {
		if dir == Asc {
			return clicked, Desc
		}
		return clicked, Asc
	}
	return clicked, Asc
}

// Invoices returns the invoices matching q, sorted by q.Sort. Overdue is
// evaluated against now.
func Invoices(rows []billing.Invoice, q InvoiceQuery, now time.Time) []billing.Invoice {
	search := strings.ToLower(q.Search)

	var status billing.PaymentStatus
	statusFilter := q.Status != "" && q.Status != "all"
	if statusFilter {
		// An unknown status matches nothing.
		status, _ = billing.ParsePaymentStatus(q.Status)
	}

	out := make([]billing.Invoice, 0, len(rows))
	for _, inv := range rows {
		if search != "" && !strings.Contains(strings.ToLower(inv.Number), search) {
			continue
		}
		if statusFilter && inv.PaymentStatus != status {
			continue
		}
		switch q.Overdue {
		case FilterOverdue:
			if !inv.IsOverdue(now) {
				continue
			}
		case FilterOnTime:
			if inv.IsOverdue(now) {
				continue
			}
		}
		if !matchVoided(q.Voided, inv.IsVoid()) {
			continue
		}
		out = append(out, inv)
	}

	cmp := invoiceComparator(q.Sort)
	if cmp == nil {
		return out
	}
	sortStable(out, cmp, q.Dir)
	return out
}

// Payments returns the payments matching q, sorted by q.Sort.
func Payments(rows []billing.Payment, q PaymentQuery) []billing.Payment {
	search := strings.ToLower(q.Search)

	out := make([]billing.Payment, 0, len(rows))
	for _, p := range rows {
		if search != "" && !strings.Contains(strings.ToLower(p.InvoiceNumber), search) {
			continue
		}
		if !matchVoided(q.Voided, p.IsVoid()) {
			continue
		}
		out = append(out, p)
	}

	cmp := paymentComparator(q.Sort)
	if cmp == nil {
		return out
	}
	sortStable(out, cmp, q.Dir)
	return out
}

func invoiceComparator(column string) func(a, b billing.Invoice) int {
	switch column {
	case ColInvoiceNumber:
		return func(a, b billing.Invoice) int { return compareText(a.Number, b.Number) }
	case ColIssueDate:
		return func(a, b billing.Invoice) int { return a.IssueDate.Compare(b.IssueDate) }
	case ColDueDate:
		return func(a, b billing.Invoice) int { return a.DueDate.Compare(b.DueDate) }
	case ColTotal:
		return func(a, b billing.Invoice) int { return compareAmount(a.Total, b.Total) }
	case ColPaymentStatus:
		return func(a, b billing.Invoice) int {
			return compareText(string(a.PaymentStatus), string(b.PaymentStatus))
		}
	case ColAmountPaid:
		return func(a, b billing.Invoice) int { return compareAmount(a.AmountPaid, b.AmountPaid) }
	case ColVoidedAt:
		return func(a, b billing.Invoice) int { return compareOptionalTime(a.VoidedAt, b.VoidedAt) }
	}
	return nil
}

func paymentComparator(column string) func(a, b billing.Payment) int {
	switch column {
	case ColInvoiceNumber:
		return func(a, b billing.Payment) int { return compareText(a.InvoiceNumber, b.InvoiceNumber) }
	case ColPaymentDate:
		return func(a, b billing.Payment) int { return a.PaymentDate.Compare(b.PaymentDate) }
	case ColAmountPaid:
		return func(a, b billing.Payment) int { return compareAmount(a.AmountPaid, b.AmountPaid) }
	case ColProofOfTransfer:
		return func(a, b billing.Payment) int {
			return compareText(proofKey(a.ProofOfTransfer), proofKey(b.ProofOfTransfer))
		}
	case ColVoidedAt:
		return func(a, b billing.Payment) int { return compareOptionalTime(a.VoidedAt, b.VoidedAt) }
	}
	return nil
}

func sortStable[T any](rows []T, cmp func(a, b T) int, dir SortDir) {
	if dir == Desc {
		slices.SortStableFunc(rows, func(a, b T) int { return cmp(b, a) })
		return
	}
	slices.SortStableFunc(rows, cmp)
}

func compareText(a, b string) int {
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

func compareAmount(a, b decimal.Decimal) int {
	return a.Cmp(b)
}

// compareOptionalTime orders a missing time before any set one.
func compareOptionalTime(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return a.Compare(*b)
}

// proofKey is the sortable text of a proof; a missing proof sorts as "".
func proofKey(p billing.ProofOfTransfer) string {
	if p.IsInline() {
		return p.MediaType
	}
	return p.Filename
}

func matchVoided(filter string, void bool) bool {
	switch filter {
	case FilterActive:
		return !void
	case FilterVoided:
		return void
	}
	return true
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func parseDir(s string) SortDir {
	if normalize(s) == string(Desc) {
		return Desc
	}
	return Asc
}

func setIf(v url.Values, key, value string) {
	if value != "" {
		v.Set(key, value)
	}
}
