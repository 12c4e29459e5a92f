package cmd

import (
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/shunichi-ikebuchi/billing-portal/internal/portal"
	"github.com/shunichi-ikebuchi/billing-portal/pkg/billing"
	"github.com/shunichi-ikebuchi/billing-portal/pkg/db"
	"github.com/shunichi-ikebuchi/billing-portal/pkg/identity"
	"github.com/shunichi-ikebuchi/billing-portal/pkg/render"
)

var secureCookies bool

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the client portal",
	Long: `Run the billing client portal HTTP server.

The portal signs clients in against the authentication service, renders
their invoices, payments and notifications from the billing API and serves
invoice PDFs at POST /api/generate-pdf.

Required environment:
  SESSION_SECRET   key used to sign session cookies
  BILLING_API_URL  base URL of the billing API

Set HISTORY_DB_PATH to record every export in a SQLite database.

Example:
  billing-portal serve
  SESSION_SECRET=change-me ISSUER_PROFILE=issuer.yaml billing-portal serve --secure-cookies`,
	Annotations: map[string]string{"log": "json"},
	Run:         runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&secureCookies, "secure-cookies", false, "mark the session cookie Secure (HTTPS deployments)")
}

func runServe(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig(
		[]string{"session", "secret"},
		[]string{"billing", "apiUrl"},
		[]string{"server", "port"},
	)
	exitOnError(err, "failed to load configuration")

	issuer := render.DefaultIssuer()
	if cfg.Render.IssuerProfile != "" {
		issuer, err = render.LoadIssuer(cfg.Render.IssuerProfile)
		exitOnError(err, "failed to load issuer profile")
	}

	metrics := portal.NewMetrics()

	billingClient := billing.NewClient(billing.ClientConfig{
		APIURL:   cfg.Billing.APIURL,
		Timeout:  cfg.Billing.Timeout,
		Observer: metrics.ObserveUpstream,
	})
	identityClient := identity.NewClient(identity.ClientConfig{
		APIURL:  cfg.Auth.APIURL,
		Timeout: cfg.Billing.Timeout,
	})

	var history portal.ExportRecorder
	if cfg.History.DBPath != "" {
		conn, err := db.Open(cfg.History.DBPath)
		exitOnError(err, "failed to open export history")
		defer conn.Close()
		history = db.NewExportHistory(conn)
		slog.Info("recording exports", "db_path", conn.Path())
	}

	srv, err := portal.New(portal.Config{
		Billing:  billingClient,
		Identity: identityClient,
		Renderer: render.New(render.Config{Issuer: issuer}),
		Sessions: portal.NewSessionManager(cfg.Session.Secret, cfg.Session.TTL, secureCookies),
		History:  history,
		Metrics:  metrics,
	})
	exitOnError(err, "failed to create portal")

	server := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Server.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Exports wait on the billing API before rendering.
		WriteTimeout: cfg.Billing.Timeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	exitOnError(listenAndServe(server), "server error")
}
