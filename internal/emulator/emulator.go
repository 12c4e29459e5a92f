// Package emulator wires a local stand-in for the upstream billing API.
package emulator

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/shunichi-ikebuchi/billing-portal/internal/emulator/api"
	"github.com/shunichi-ikebuchi/billing-portal/internal/emulator/auth"
	"github.com/shunichi-ikebuchi/billing-portal/internal/emulator/store"
)

// NewRouter builds the emulator HTTP handler. Request logging is left to the
// caller so tests stay quiet.
func NewRouter(st *store.Store, tokenManager *auth.TokenManager, mws ...func(http.Handler) http.Handler) http.Handler {
	usersHandler := api.NewUsersHandler(tokenManager)
	invoicesHandler := api.NewInvoicesHandler(st)
	paymentsHandler := api.NewPaymentsHandler(st)
	notificationsHandler := api.NewNotificationsHandler(st)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	for _, mw := range mws {
		r.Use(mw)
	}
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Sign-in (no authentication required).
	r.Post("/api/user/login", usersHandler.Login)

	r.Group(func(r chi.Router) {
		r.Use(api.AuthMiddleware(tokenManager))

		r.Post("/api/user/logout", usersHandler.Logout)

		r.Get("/api/invoices/get", invoicesHandler.List)
		r.Post("/api/invoices/get/detail", invoicesHandler.Detail)
		r.Get("/api/payments/get", paymentsHandler.List)
		r.Get("/api/notifications", notificationsHandler.List)
		r.Put("/api/notifications/mark-as-read", notificationsHandler.MarkAsRead)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return r
}
