package portal

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/shunichi-ikebuchi/billing-portal/pkg/billing"
	"github.com/shunichi-ikebuchi/billing-portal/pkg/dashboard"
	"github.com/shunichi-ikebuchi/billing-portal/pkg/identity"
	"github.com/shunichi-ikebuchi/billing-portal/pkg/render"
	"github.com/shunichi-ikebuchi/billing-portal/pkg/table"
)

type loginView struct {
	Email string
}

func (s *Server) loginPage(w http.ResponseWriter, r *http.Request) {
	if _, err := s.sessions.Read(r); err == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.render(w, http.StatusOK, "login", pageData{Title: "Sign in", Data: loginView{}})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.render(w, http.StatusBadRequest, "login", pageData{Title: "Sign in", Error: "Invalid form submission.", Data: loginView{}})
		return
	}
	email := strings.TrimSpace(r.PostForm.Get("email"))
	password := r.PostForm.Get("password")

	id, err := s.identity.Login(r.Context(), email, password)
	if err != nil {
		status := http.StatusUnauthorized
		message := "Invalid email or password."
		switch {
		case errors.Is(err, identity.ErrMissingCredentials):
			status = http.StatusBadRequest
			message = "Email and password are required."
		case !errors.Is(err, identity.ErrInvalidCredentials):
			s.logger.Error("login failed", "error", err)
			status = http.StatusBadGateway
			message = "Sign-in is unavailable right now. Please try again later."
		}
		s.render(w, status, "login", pageData{Title: "Sign in", Error: message, Data: loginView{Email: email}})
		return
	}

	if err := s.sessions.Issue(w, id); err != nil {
		s.logger.Error("failed to issue session", "error", err)
		s.render(w, http.StatusInternalServerError, "login", pageData{Title: "Sign in", Error: "Could not start a session.", Data: loginView{Email: email}})
		return
	}

	s.logger.Info("user signed in", "user_id", id.ID)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	s.sessions.Clear(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// pageFailed handles an upstream error on a page: a rejected token ends the
// session, anything else is shown as a banner in place of the data view.
func (s *Server) pageFailed(w http.ResponseWriter, r *http.Request, name string, data pageData, err error) {
	if errors.Is(err, billing.ErrUnauthenticated) {
		s.sessions.Clear(w)
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	s.logger.Warn("billing api call failed", "page", name, "error", err)
	data.Error = describeError(err)
	data.Data = nil
	s.render(w, http.StatusBadGateway, name, data)
}

func (s *Server) basePage(r *http.Request, title, active string) pageData {
	data := pageData{Title: title, Active: active}
	if id := identityFrom(r.Context()); id != nil {
		data.User = id.Name
		if data.User == "" {
			data.User = id.Email
		}
	}
	return data
}

func bearer(r *http.Request) string {
	if id := identityFrom(r.Context()); id != nil {
		return id.Token
	}
	return ""
}

type invoiceRow struct {
	billing.Invoice
	Overdue bool
}

func invoiceRows(invoices []billing.Invoice, now time.Time) []invoiceRow {
	rows := make([]invoiceRow, len(invoices))
	for i, inv := range invoices {
		rows[i] = invoiceRow{
			Invoice: inv,
			Overdue: inv.PaymentStatus != billing.StatusPaid && inv.IsOverdue(now),
		}
	}
	return rows
}

type dashboardView struct {
	Summary *dashboard.Summary
	Recent  []invoiceRow
}

func (s *Server) dashboardPage(w http.ResponseWriter, r *http.Request) {
	data := s.basePage(r, "Dashboard", "dashboard")
	now := s.now()

	summary, err := dashboard.Load(r.Context(), s.billing, bearer(r), now)
	if err != nil {
		s.pageFailed(w, r, "dashboard", data, err)
		return
	}

	data.Unread = summary.UnreadCount
	data.Data = dashboardView{
		Summary: summary,
		Recent:  invoiceRows(summary.RecentInvoices, now),
	}
	s.render(w, http.StatusOK, "dashboard", data)
}

type sortHeader struct {
	Label     string
	URL       string
	Indicator string
	Numeric   bool
}

type filterLink struct {
	Label  string
	URL    string
	Active bool
}

type column struct {
	key     string
	label   string
	numeric bool
}

var invoiceColumns = []column{
	{key: table.ColInvoiceNumber, label: "Invoice Number"},
	{key: table.ColIssueDate, label: "Issue Date"},
	{key: table.ColDueDate, label: "Due Date"},
	{key: table.ColTotal, label: "Total", numeric: true},
	{key: table.ColPaymentStatus, label: "Status"},
	{key: table.ColAmountPaid, label: "Amount Paid", numeric: true},
	{key: table.ColVoidedAt, label: "Voided At"},
}

var paymentColumns = []column{
	{key: table.ColInvoiceNumber, label: "Invoice Number"},
	{key: table.ColPaymentDate, label: "Payment Date"},
	{key: table.ColAmountPaid, label: "Amount Paid", numeric: true},
	{key: table.ColProofOfTransfer, label: "Proof of Transfer"},
	{key: table.ColVoidedAt, label: "Voided At"},
}

func sortIndicator(active bool, dir table.SortDir) string {
	switch {
	case !active:
		return ""
	case dir == table.Desc:
		return "▼"
	}
	return "▲"
}

func pageURL(path string, values interface{ Encode() string }) string {
	if encoded := values.Encode(); encoded != "" {
		return path + "?" + encoded
	}
	return path
}

type invoicesView struct {
	Query          table.InvoiceQuery
	Rows           []invoiceRow
	Count          int
	Headers        []sortHeader
	StatusFilters  []filterLink
	OverdueFilters []filterLink
	VoidedFilters  []filterLink
	Filtered       bool
	ClearURL       string
}

func (s *Server) invoicesPage(w http.ResponseWriter, r *http.Request) {
	data := s.basePage(r, "Invoices", "invoices")
	now := s.now()
	q := table.ParseInvoiceQuery(r.URL.Query())

	invoices, err := s.billing.ListInvoices(r.Context(), bearer(r))
	if err != nil {
		s.pageFailed(w, r, "invoices", data, err)
		return
	}

	view := invoicesView{
		Query:    q,
		Rows:     invoiceRows(table.Invoices(invoices, q, now), now),
		Count:    len(invoices),
		Filtered: q.Search != "" || q.Status != "" || q.Overdue != "" || q.Voided != "",
	}

	for _, col := range invoiceColumns {
		view.Headers = append(view.Headers, sortHeader{
			Label:     col.label,
			URL:       pageURL("/invoices", q.SortBy(col.key).Values()),
			Indicator: sortIndicator(q.Sort == col.key, q.Dir),
			Numeric:   col.numeric,
		})
	}

	filter := func(label string, set func(*table.InvoiceQuery), active bool) filterLink {
		next := q
		set(&next)
		return filterLink{Label: label, URL: pageURL("/invoices", next.Values()), Active: active}
	}
	view.StatusFilters = []filterLink{
		filter("All", func(n *table.InvoiceQuery) { n.Status = "" }, q.Status == ""),
	}
	for _, status := range []string{"paid", "partial", "unpaid"} {
		view.StatusFilters = append(view.StatusFilters,
			filter(titleCase(status), func(n *table.InvoiceQuery) { n.Status = status }, q.Status == status))
	}
	view.OverdueFilters = []filterLink{
		filter("All", func(n *table.InvoiceQuery) { n.Overdue = "" }, q.Overdue == ""),
		filter("Overdue", func(n *table.InvoiceQuery) { n.Overdue = table.FilterOverdue }, q.Overdue == table.FilterOverdue),
		filter("Before Due", func(n *table.InvoiceQuery) { n.Overdue = table.FilterOnTime }, q.Overdue == table.FilterOnTime),
	}
	view.VoidedFilters = []filterLink{
		filter("All", func(n *table.InvoiceQuery) { n.Voided = "" }, q.Voided == ""),
		filter("Active", func(n *table.InvoiceQuery) { n.Voided = table.FilterActive }, q.Voided == table.FilterActive),
		filter("Voided", func(n *table.InvoiceQuery) { n.Voided = table.FilterVoided }, q.Voided == table.FilterVoided),
	}
	view.ClearURL = pageURL("/invoices", table.InvoiceQuery{Sort: q.Sort, Dir: q.Dir}.Values())

	data.Data = view
	s.render(w, http.StatusOK, "invoices", data)
}

type invoiceDetailView struct {
	Invoice  invoiceRow
	Document render.Document
}

func (s *Server) invoiceDetailPage(w http.ResponseWriter, r *http.Request) {
	data := s.basePage(r, "Invoice", "invoices")
	id := chi.URLParam(r, "id")

	detail, err := s.billing.GetInvoiceDetail(r.Context(), bearer(r), id)
	if err != nil {
		if errors.Is(err, billing.ErrNotFound) || errors.Is(err, billing.ErrInvalidInvoiceID) {
			s.notFoundPage(w, r)
			return
		}
		s.pageFailed(w, r, "invoice_detail", data, err)
		return
	}

	if detail.Invoice.Number != "" {
		data.Title = "Invoice " + detail.Invoice.Number
	}
	data.Data = invoiceDetailView{
		Invoice:  invoiceRows([]billing.Invoice{detail.Invoice}, s.now())[0],
		Document: render.Compose(detail.Invoice, detail.Items, s.renderer.Issuer()),
	}
	s.render(w, http.StatusOK, "invoice_detail", data)
}

type paymentsView struct {
	Query         table.PaymentQuery
	Rows          []billing.Payment
	Count         int
	Headers       []sortHeader
	VoidedFilters []filterLink
	Filtered      bool
	ClearURL      string
}

func (s *Server) paymentsPage(w http.ResponseWriter, r *http.Request) {
	data := s.basePage(r, "Payments", "payments")
	q := table.ParsePaymentQuery(r.URL.Query())

	payments, err := s.billing.ListPayments(r.Context(), bearer(r))
	if err != nil {
		s.pageFailed(w, r, "payments", data, err)
		return
	}

	view := paymentsView{
		Query:    q,
		Rows:     table.Payments(payments, q),
		Count:    len(payments),
		Filtered: q.Search != "" || q.Voided != "",
	}
	for _, col := range paymentColumns {
		view.Headers = append(view.Headers, sortHeader{
			Label:     col.label,
			URL:       pageURL("/payments", q.SortBy(col.key).Values()),
			Indicator: sortIndicator(q.Sort == col.key, q.Dir),
			Numeric:   col.numeric,
		})
	}
	for _, f := range []struct{ label, value string }{
		{"All", ""},
		{"Active", table.FilterActive},
		{"Voided", table.FilterVoided},
	} {
		next := q
		next.Voided = f.value
		view.VoidedFilters = append(view.VoidedFilters, filterLink{
			Label:  f.label,
			URL:    pageURL("/payments", next.Values()),
			Active: q.Voided == f.value,
		})
	}
	view.ClearURL = pageURL("/payments", table.PaymentQuery{Sort: q.Sort, Dir: q.Dir}.Values())

	data.Data = view
	s.render(w, http.StatusOK, "payments", data)
}

type notificationRow struct {
	billing.Notification
	Ago string
}

type notificationsView struct {
	Rows []notificationRow
}

func (s *Server) notificationsPage(w http.ResponseWriter, r *http.Request) {
	data := s.basePage(r, "Notifications", "notifications")
	now := s.now()

	notifications, err := s.billing.ListNotifications(r.Context(), bearer(r))
	if err != nil {
		s.pageFailed(w, r, "notifications", data, err)
		return
	}

	rows := make([]notificationRow, len(notifications))
	for i, n := range notifications {
		rows[i] = notificationRow{Notification: n, Ago: timeAgo(n.CreatedAt, now)}
		if !n.Read {
			data.Unread++
		}
	}
	if r.URL.Query().Get("marked") == "1" {
		data.Flash = "All notifications marked as read."
	}

	data.Data = notificationsView{Rows: rows}
	s.render(w, http.StatusOK, "notifications", data)
}

func (s *Server) markNotificationsRead(w http.ResponseWriter, r *http.Request) {
	if err := s.billing.MarkNotificationsRead(r.Context(), bearer(r)); err != nil {
		s.pageFailed(w, r, "notifications", s.basePage(r, "Notifications", "notifications"), err)
		return
	}
	http.Redirect(w, r, "/notifications?marked=1", http.StatusSeeOther)
}

func (s *Server) notFoundPage(w http.ResponseWriter, r *http.Request) {
	data := s.basePage(r, "Page not found", "")
	if data.User == "" {
		if id, err := s.sessions.Read(r); err == nil {
			data.User = id.Name
		}
	}
	s.render(w, http.StatusNotFound, "not_found", data)
}
