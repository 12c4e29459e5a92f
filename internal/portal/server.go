// Package portal serves the billing client portal: session-gated HTML pages
// over the billing API and the invoice PDF export endpoint.
package portal

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/shunichi-ikebuchi/billing-portal/pkg/billing"
	"github.com/shunichi-ikebuchi/billing-portal/pkg/dashboard"
	"github.com/shunichi-ikebuchi/billing-portal/pkg/db"
	"github.com/shunichi-ikebuchi/billing-portal/pkg/identity"
	"github.com/shunichi-ikebuchi/billing-portal/pkg/render"
)

// BillingAPI is the part of the billing client the portal uses.
type BillingAPI interface {
	dashboard.Source
	GetInvoiceDetail(ctx context.Context, token, invoiceID string) (*billing.InvoiceDetail, error)
	MarkNotificationsRead(ctx context.Context, token string) error
}

// Authenticator signs users in.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*identity.Identity, error)
}

// ExportRecorder keeps a history of exported documents.
type ExportRecorder interface {
	Record(ctx context.Context, record db.ExportRecord) error
}

// Config represents the dependencies of a Server.
type Config struct {
	Billing  BillingAPI
	Identity Authenticator
	Renderer *render.Renderer
	Sessions *SessionManager
	History  ExportRecorder   // optional
	Metrics  *Metrics         // Default: a fresh registry
	Logger   *slog.Logger     // Default: slog.Default()
	Now      func() time.Time // Default: time.Now
}

// Server is the portal HTTP application.
type Server struct {
	billing   BillingAPI
	identity  Authenticator
	renderer  *render.Renderer
	sessions  *SessionManager
	history   ExportRecorder
	metrics   *Metrics
	logger    *slog.Logger
	now       func() time.Time
	templates *templates
}

// New creates a Server.
func New(config Config) (*Server, error) {
	if config.Billing == nil || config.Identity == nil || config.Renderer == nil || config.Sessions == nil {
		return nil, errors.New("portal: billing, identity, renderer and sessions are required")
	}

	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	s := &Server{
		billing:   config.Billing,
		identity:  config.Identity,
		renderer:  config.Renderer,
		sessions:  config.Sessions,
		history:   config.History,
		metrics:   config.Metrics,
		logger:    config.Logger,
		now:       config.Now,
		templates: tmpl,
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Handler builds the portal router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(s.metrics.Middleware)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Get("/login", s.loginPage)
	r.Post("/login", s.login)
	r.Post("/logout", s.logout)

	// The export endpoint answers with JSON errors instead of redirects.
	r.Post("/api/generate-pdf", s.generatePDF)

	r.Group(func(r chi.Router) {
		r.Use(s.requireSession)

		r.Get("/", s.dashboardPage)
		r.Get("/invoices", s.invoicesPage)
		r.Get("/invoices/{id}", s.invoiceDetailPage)
		r.Get("/payments", s.paymentsPage)
		r.Get("/notifications", s.notificationsPage)
		r.Post("/notifications/mark-as-read", s.markNotificationsRead)
	})

	r.NotFound(s.notFoundPage)

	return r
}
