package portal

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/shunichi-ikebuchi/billing-portal/pkg/billing"
	"github.com/shunichi-ikebuchi/billing-portal/pkg/render"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageNames = []string{
	"login",
	"dashboard",
	"invoices",
	"invoice_detail",
	"payments",
	"notifications",
	"not_found",
}

var templateFuncs = template.FuncMap{
	"currency":    render.FormatCurrency,
	"date":        render.FormatShortDate,
	"longDate":    render.FormatDate,
	"optDate":     optionalDate,
	"statusLabel": statusLabel,
	"statusClass": statusClass,
}

type templates struct {
	pages map[string]*template.Template
}

func parseTemplates() (*templates, error) {
	t := &templates{pages: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		page, err := template.New(name).Funcs(templateFuncs).ParseFS(templateFS,
			"templates/layout.html",
			"templates/"+name+".html",
		)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		t.pages[name] = page
	}
	return t, nil
}

// pageData is passed to every page template.
type pageData struct {
	Title  string
	Active string
	User   string
	Unread int
	Error  string
	Flash  string
	Data   any
}

// render executes a page into a buffer so a template failure never produces
// a partial page.
func (s *Server) render(w http.ResponseWriter, status int, name string, data pageData) {
	page, ok := s.templates.pages[name]
	if !ok {
		s.logger.Error("unknown template", "template", name)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := page.ExecuteTemplate(&buf, "layout", data); err != nil {
		s.logger.Error("failed to render template", "template", name, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func optionalDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return render.FormatShortDate(*t)
}

func statusLabel(status billing.PaymentStatus) string {
	if status == "" {
		return "-"
	}
	return titleCase(string(status))
}

// titleCase capitalizes each word. A Caser keeps state, so each call gets
// its own.
func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}

func statusClass(status billing.PaymentStatus) string {
	switch status {
	case billing.StatusPaid:
		return "badge-paid"
	case billing.StatusPending, billing.StatusPartial:
		return "badge-pending"
	case billing.StatusOverdue, billing.StatusCancelled:
		return "badge-danger"
	}
	return "badge"
}

// timeAgo describes how long before now t was.
func timeAgo(t, now time.Time) string {
	seconds := int64(now.Sub(t).Seconds())
	plural := func(n int64, unit string) string {
		if n == 1 {
			return fmt.Sprintf("1 %s ago", unit)
		}
		return fmt.Sprintf("%d %ss ago", n, unit)
	}

	switch {
	case seconds < 60:
		return "just now"
	case seconds < 3600:
		return plural(seconds/60, "minute")
	case seconds < 86400:
		return plural(seconds/3600, "hour")
	case seconds < 2592000:
		return plural(seconds/86400, "day")
	case seconds < 31536000:
		return plural(seconds/2592000, "month")
	}
	return plural(seconds/31536000, "year")
}
